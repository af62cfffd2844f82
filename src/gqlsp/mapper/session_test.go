package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/factory"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"github.com/uber/gql-panel-lsp/src/gqlsp/model"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/goleak"
)

func TestSessionToModel(t *testing.T) {
	f := &entity.Session{
		UUID:             factory.UUID(),
		InitializeParams: &protocol.InitializeParams{},
		Conn:             jsonrpc2.NewConn(nil),
		WorkspaceRoot:    "test/workspace",
	}
	m := SessionToModel(f)
	assert.Equal(t, f.UUID, m.UUID)
	assert.Equal(t, f.InitializeParams, m.InitializeParams)
	assert.Equal(t, f.Conn, m.Conn)
	assert.Equal(t, f.WorkspaceRoot, m.WorkspaceRoot)
}

func TestModelToSession(t *testing.T) {
	m := &model.Session{
		UUID:             factory.UUID(),
		InitializeParams: &protocol.InitializeParams{},
		Conn:             jsonrpc2.NewConn(nil),
		WorkspaceRoot:    "test/workspace",
	}
	f, err := ModelToSession(m)
	require.NoError(t, err)
	assert.Equal(t, m.UUID, f.UUID)
	assert.Equal(t, m.InitializeParams, f.InitializeParams)
	assert.Equal(t, m.Conn, f.Conn)
	assert.Equal(t, m.WorkspaceRoot, f.WorkspaceRoot)
}

func TestUUIDToSession(t *testing.T) {
	u := factory.UUID()
	s := UUIDToSession(u, nil)
	assert.Equal(t, u, s.UUID)
	assert.Nil(t, s.Conn)
}

func TestContextToSessionUUID(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		u := factory.UUID()
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, u)
		result, err := ContextToSessionUUID(ctx)
		require.NoError(t, err)
		assert.Equal(t, u, result)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ContextToSessionUUID(context.Background())
		assert.IsType(t, &errors.NoSessionFoundError{}, err)
	})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
