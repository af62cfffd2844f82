package session

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"go.uber.org/goleak"
)

func TestSessionRepository(t *testing.T) {
	t.Run("should Set and Get successfully", func(t *testing.T) {
		id := uuid.Must(uuid.NewV4())
		repository := New(tally.NewTestScope("testing", nil))

		err := repository.Set(context.Background(), &entity.Session{UUID: id, WorkspaceRoot: "/repo"})
		require.NoError(t, err)
		val, err := repository.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, val.UUID)
		assert.Equal(t, "/repo", val.WorkspaceRoot)
	})

	t.Run("should fail to get something that was not Set", func(t *testing.T) {
		repository := New(tally.NewTestScope("testing", nil))

		id := uuid.Must(uuid.NewV4())
		_, err := repository.Get(context.Background(), id)
		var nf *errors.UUIDNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, id, nf.UUID)
	})

	t.Run("nil session", func(t *testing.T) {
		repository := New(tally.NewTestScope("testing", nil))
		assert.Error(t, repository.Set(context.Background(), nil))
	})
}

func TestGetFromContext(t *testing.T) {
	repository := New(tally.NewTestScope("testing", nil))
	id := uuid.Must(uuid.NewV4())
	require.NoError(t, repository.Set(context.Background(), &entity.Session{UUID: id}))

	t.Run("uuid in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, id)
		val, err := repository.GetFromContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, val.UUID)
	})

	t.Run("no uuid in context", func(t *testing.T) {
		_, err := repository.GetFromContext(context.Background())
		assert.IsType(t, &errors.NoSessionFoundError{}, err)
	})

	t.Run("unknown uuid in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, uuid.Must(uuid.NewV4()))
		_, err := repository.GetFromContext(ctx)
		_, ok := errors.NotFoundUUID(err)
		assert.True(t, ok)
	})
}

func TestDeleteAndCount(t *testing.T) {
	scope := tally.NewTestScope("testing", nil)
	repository := New(scope)
	ctx := context.Background()

	ids := []uuid.UUID{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}
	for _, id := range ids {
		require.NoError(t, repository.Set(ctx, &entity.Session{UUID: id}))
	}
	count, err := repository.SessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repository.Delete(ctx, ids[0]))
	require.NoError(t, repository.Delete(ctx, ids[0]))
	count, err = repository.SessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	gauge, ok := scope.Snapshot().Gauges()["testing.active_connections+"]
	require.True(t, ok)
	assert.Equal(t, float64(1), gauge.Value())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
