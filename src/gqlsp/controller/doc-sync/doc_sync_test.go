package docsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/factory"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"github.com/uber/gql-panel-lsp/src/gqlsp/repository/session/repositorymock"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newTestController(sessions *repositorymock.MockRepository) *controller {
	return &controller{
		sessions:         sessions,
		logger:           zap.NewNop().Sugar(),
		documents:        make(documentStore),
		stats:            tally.NewTestScope("testing", make(map[string]string, 0)),
		maxFileSizeBytes: 2000,
	}
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		mockConfig, _ := config.NewStaticProvider(map[string]interface{}{
			_maxFileSizeKey: 2000,
		})
		assert.NotPanics(t, func() {
			New(Params{
				Stats:  tally.NewTestScope("testing", make(map[string]string, 0)),
				Config: mockConfig,
				Logger: zap.NewNop().Sugar(),
			})
		})
	})

	t.Run("missing size limit", func(t *testing.T) {
		mockConfig, _ := config.NewStaticProvider(map[string]interface{}{})
		assert.Panics(t, func() {
			New(Params{
				Stats:  tally.NewTestScope("testing", make(map[string]string, 0)),
				Config: mockConfig,
				Logger: zap.NewNop().Sugar(),
			})
		})
	})
}

func TestStartupInfo(t *testing.T) {
	ctx := context.Background()
	c := controller{}
	result, err := c.StartupInfo(ctx)

	assert.NoError(t, err)
	assert.NoError(t, result.Validate())
	assert.Equal(t, _nameKey, result.NameKey)
}

func TestInitializeAndShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).Times(2)

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)
	c := newTestController(sessionRepository)

	require.NoError(t, c.initialize(ctx, &protocol.InitializeParams{}, &protocol.InitializeResult{}))
	_, ok := c.documents[s.UUID]
	assert.True(t, ok)
	assert.Len(t, c.documents, 1)

	require.NoError(t, c.shutdown(ctx))
	assert.Len(t, c.documents, 0)
}

func TestEndSession(t *testing.T) {
	c := newTestController(nil)
	id := factory.UUID()
	c.documents[id] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)

	assert.NoError(t, c.endSession(context.Background(), id))
	assert.Len(t, c.documents, 0)

	// A second call for the same session is a no-op.
	assert.NoError(t, c.endSession(context.Background(), id))
}

func TestDidOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	docs := []protocol.TextDocumentItem{
		factory.TextDocumentItem("/repo/a.ts", factory.SourceWithQueries("query A { a }")),
		factory.TextDocumentItem("/repo/b.graphql", "query B { b }"),
	}

	t.Run("session not initialized", func(t *testing.T) {
		c := newTestController(sessionRepository)
		err := c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: docs[0]})
		var notFound *gqlsperrors.UUIDNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("documents are stored", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)

		for i, doc := range docs {
			require.NoError(t, c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: doc}))
			assert.Len(t, c.documents[s.UUID], i+1)

			got, err := c.GetTextDocument(ctx, protocol.TextDocumentIdentifier{URI: doc.URI})
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		}

		snapshot := c.stats.(tally.TestScope).Snapshot()
		assert.Equal(t, float64(2), snapshot.Gauges()["testing.open_docs+"].Value())
	})

	t.Run("oversized document is ignored", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.maxFileSizeBytes = 4
		c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)

		require.NoError(t, c.didOpen(ctx, &protocol.DidOpenTextDocumentParams{TextDocument: docs[1]}))
		_, err := c.GetTextDocument(ctx, protocol.TextDocumentIdentifier{URI: docs[1].URI})
		var notFound *gqlsperrors.DocumentNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestDidChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	doc := factory.TextDocumentItem("/repo/a.graphql", "query A {\n  a\n}\n")
	id := protocol.TextDocumentIdentifier{URI: doc.URI}
	change := func(version int32, changes ...protocol.TextDocumentContentChangeEvent) *protocol.DidChangeTextDocumentParams {
		return &protocol.DidChangeTextDocumentParams{
			TextDocument: protocol.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: id,
				Version:                version,
			},
			ContentChanges: changes,
		}
	}

	t.Run("missing session", func(t *testing.T) {
		c := newTestController(sessionRepository)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, errors.New("error"))
		assert.Error(t, c.didChange(ctx, change(2)))
	})

	t.Run("unknown document", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)

		err := c.didChange(ctx, change(2))
		var notFound *gqlsperrors.DocumentNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("apply incremental changes", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc}}
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).Times(2)

		err := c.didChange(ctx, change(2,
			protocol.TextDocumentContentChangeEvent{
				Range: protocol.Range{
					Start: protocol.Position{Line: 1, Character: 2},
					End:   protocol.Position{Line: 1, Character: 3},
				},
				Text: "b\n  c",
			},
		))
		require.NoError(t, err)

		got, err := c.GetTextDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "query A {\n  b\n  c\n}\n", got.Text)
		assert.Equal(t, int32(2), got.Version)
		assert.True(t, c.documents[s.UUID][id].Dirty)
	})

	t.Run("invalid range", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc}}
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)

		err := c.didChange(ctx, change(2,
			protocol.TextDocumentContentChangeEvent{
				Range: protocol.Range{
					Start: protocol.Position{Line: 40, Character: 0},
					End:   protocol.Position{Line: 41, Character: 0},
				},
				Text: "x",
			},
		))
		assert.Error(t, err)
		assert.Equal(t, doc.Text, c.documents[s.UUID][id].Document.Text)
	})

	t.Run("change exceeding size limit stops tracking", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.maxFileSizeBytes = int64(len(doc.Text)) + 1
		c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc}}
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)

		err := c.didChange(ctx, change(2,
			protocol.TextDocumentContentChangeEvent{
				Range: protocol.Range{
					Start: protocol.Position{Line: 0, Character: 0},
					End:   protocol.Position{Line: 0, Character: 0},
				},
				Text: "# too long\n",
			},
		))
		var sizeErr *gqlsperrors.DocumentSizeLimitError
		assert.ErrorAs(t, err, &sizeErr)
		_, ok := c.documents[s.UUID][id]
		assert.False(t, ok)
	})
}

func TestDidClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).Times(2)
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	doc := factory.TextDocumentItem("/repo/a.graphql", "{ a }")
	id := protocol.TextDocumentIdentifier{URI: doc.URI}
	c := newTestController(sessionRepository)
	c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc}}

	require.NoError(t, c.didClose(ctx, &protocol.DidCloseTextDocumentParams{TextDocument: id}))
	assert.Len(t, c.documents[s.UUID], 0)

	// Closing an unknown document is not an error.
	assert.NoError(t, c.didClose(ctx, &protocol.DidCloseTextDocumentParams{TextDocument: id}))
}

func TestDidSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	doc := factory.TextDocumentItem("/repo/a.graphql", "{ a }")
	id := protocol.TextDocumentIdentifier{URI: doc.URI}

	t.Run("reconciles text", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc, Dirty: true}}

		require.NoError(t, c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: id, Text: "{ b }"}))
		got, err := c.GetTextDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "{ b }", got.Text)
		assert.False(t, c.documents[s.UUID][id].Dirty)
	})

	t.Run("no text keeps mirror", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = map[protocol.TextDocumentIdentifier]*documentStoreEntry{id: {Document: doc, Dirty: true}}

		require.NoError(t, c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: id}))
		assert.Equal(t, doc.Text, c.documents[s.UUID][id].Document.Text)
	})

	t.Run("unknown document", func(t *testing.T) {
		c := newTestController(sessionRepository)
		c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)

		err := c.didSave(ctx, &protocol.DidSaveTextDocumentParams{TextDocument: id})
		var notFound *gqlsperrors.DocumentNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestGetTextDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{UUID: factory.UUID()}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)
	id := protocol.TextDocumentIdentifier{URI: "file:///repo/a.ts"}

	t.Run("session error", func(t *testing.T) {
		c := newTestController(sessionRepository)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, errors.New("no session"))
		_, err := c.GetTextDocument(ctx, id)
		assert.Error(t, err)
	})

	t.Run("uninitialized session", func(t *testing.T) {
		c := newTestController(sessionRepository)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)
		_, err := c.GetTextDocument(ctx, id)
		missing, ok := gqlsperrors.NotFoundUUID(err)
		assert.True(t, ok)
		assert.Equal(t, s.UUID, missing)
	})
}
