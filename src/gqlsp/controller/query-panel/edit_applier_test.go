package querypanel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"github.com/uber/gql-panel-lsp/src/gql-lib/scanner"
	"github.com/uber/gql-panel-lsp/src/gqlsp/controller/doc-sync/docsyncmock"
	"github.com/uber/gql-panel-lsp/src/gqlsp/factory"
	"github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client/ideclientmock"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	protocolmapper "github.com/uber/gql-panel-lsp/src/gqlsp/internal/protocol"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _sevenLines = "line0\nline1\nline2\nline3\nline4\nabcdef\nline6\n"

type applierMocks struct {
	documents  *docsyncmock.MockController
	ideGateway *ideclientmock.MockGateway
	stats      tally.TestScope
}

func newTestApplier(ctrl *gomock.Controller, policy StaleRangePolicy) (*editApplier, applierMocks) {
	m := applierMocks{
		documents:  docsyncmock.NewMockController(ctrl),
		ideGateway: ideclientmock.NewMockGateway(ctrl),
		stats:      tally.NewTestScope("testing", make(map[string]string, 0)),
	}
	return &editApplier{
		documents:  m.documents,
		ideGateway: m.ideGateway,
		logger:     zap.NewNop().Sugar(),
		stats:      m.stats,
		policy:     policy,
	}, m
}

func counterValue(scope tally.TestScope, key string) int64 {
	c, ok := scope.Snapshot().Counters()[key]
	if !ok {
		return 0
	}
	return c.Value()
}

func singleEdit(t *testing.T, params *protocol.ApplyWorkspaceEditParams) protocol.TextEdit {
	t.Helper()
	require.Len(t, params.Edit.DocumentChanges, 1)
	require.Len(t, params.Edit.DocumentChanges[0].Edits, 1)
	return params.Edit.DocumentChanges[0].Edits[0]
}

// applyToText applies e to text the way the client applies the resulting workspace edit.
func applyToText(text string, e Edit) (string, error) {
	if e.Position == nil && e.Target == nil {
		return "", errors.New("edit has neither a position nor a target")
	}

	m := protocolmapper.NewTextOffsetMapper([]byte(text))
	r := e.Range(text)
	start, err := m.PositionOffset(r.Start)
	if err != nil {
		return "", fmt.Errorf("edit start: %w", err)
	}
	end, err := m.PositionOffset(r.End)
	if err != nil {
		return "", fmt.Errorf("edit end: %w", err)
	}
	if end < start {
		return "", fmt.Errorf("edit range end %v precedes start %v", r.End, r.Start)
	}
	return text[:start] + e.Content + text[end:], nil
}

func TestApplyToText(t *testing.T) {
	t.Run("insert at cursor", func(t *testing.T) {
		result, err := applyToText(_sevenLines, InsertEdit(fragment.Position{Line: 5, Character: 3}, "query { x }"))
		require.NoError(t, err)
		assert.Equal(t, "line0\nline1\nline2\nline3\nline4\nabcquery { x }def\nline6\n", result)
	})

	t.Run("replace tagged region", func(t *testing.T) {
		text := factory.SourceWithQueries("query A { a }", "query B { b }")
		regions := scanner.New(scanner.Options{}).Extract(scanner.Document{Path: "/a/b.ts", Text: text})
		require.Len(t, regions, 2)

		result, err := applyToText(text, ReplaceEdit(regions[1], "\nquery C { c }\n"))
		require.NoError(t, err)
		assert.Equal(t, factory.SourceWithQueries("query A { a }", "query C { c }"), result)
	})

	t.Run("whole document round trip", func(t *testing.T) {
		s := scanner.New(scanner.Options{})
		for _, original := range []string{"", "query A { a }", "query A {\n  a\n}\n", "query A {\n  a\n}\n\n\n"} {
			doc := scanner.Document{Path: "/a/b.graphql", Text: original}
			fragments := s.Extract(doc)
			require.Len(t, fragments, 1)

			replacement := "query B {\n  b\n}"
			result, err := applyToText(original, ReplaceEdit(fragments[0], replacement))
			require.NoError(t, err)

			doc.Text = result
			rescanned := s.Extract(doc)
			require.Len(t, rescanned, 1)
			assert.Equal(t, fragment.KindWholeDocument, rescanned[0].Kind)
			assert.Equal(t, replacement, rescanned[0].Content)
		}
	})

	t.Run("range past the end", func(t *testing.T) {
		_, err := applyToText("a", ReplaceEdit(factory.TaggedRegion(1, 3, "x"), "y"))
		assert.Error(t, err)
	})

	t.Run("empty edit", func(t *testing.T) {
		_, err := applyToText("a", Edit{})
		assert.Error(t, err)
	})
}

func TestEditRange(t *testing.T) {
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 5, Character: 3},
		End:   protocol.Position{Line: 5, Character: 3},
	}, InsertEdit(fragment.Position{Line: 5, Character: 3}, "x").Range(_sevenLines))

	assert.Equal(t, protocol.Range{
		End: protocol.Position{Line: 8},
	}, ReplaceEdit(factory.WholeDocument(_sevenLines), "x").Range(_sevenLines))

	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 14},
		End:   protocol.Position{Line: 3},
	}, ReplaceEdit(factory.TaggedRegion(1, 3, "x"), "y").Range(_sevenLines))
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	item := factory.TextDocumentItem("/a/b.ts", _sevenLines)
	doc := protocol.TextDocumentIdentifier{URI: item.URI}

	t.Run("insert foregrounds the document first", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(item, nil)
		gomock.InOrder(
			m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).DoAndReturn(
				func(ctx context.Context, params *protocol.ShowDocumentParams) (*protocol.ShowDocumentResult, error) {
					assert.Equal(t, item.URI, params.URI)
					assert.True(t, params.TakeFocus)
					return &protocol.ShowDocumentResult{Success: true}, nil
				}),
			m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
				func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
					assert.Equal(t, _labelInsert, params.Label)
					assert.Equal(t, doc, params.Edit.DocumentChanges[0].TextDocument.TextDocumentIdentifier)
					edit := singleEdit(t, params)
					assert.Equal(t, "query { x }", edit.NewText)
					assert.Equal(t, protocol.Position{Line: 5, Character: 3}, edit.Range.Start)
					assert.Equal(t, protocol.Position{Line: 5, Character: 3}, edit.Range.End)
					return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
				}),
		)

		require.NoError(t, a.apply(ctx, doc, InsertEdit(fragment.Position{Line: 5, Character: 3}, "query { x }")))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.edits_applied+"))
	})

	t.Run("show document failure does not block the edit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(item, nil)
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(nil, errors.New("unsupported"))
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).Return(&protocol.ApplyWorkspaceEditResponse{Applied: true}, nil)

		assert.NoError(t, a.apply(ctx, doc, InsertEdit(fragment.Position{Line: 0}, "x")))
	})

	t.Run("whole document", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeReject)
		graphqlItem := factory.TextDocumentItem("/a/b.graphql", "query A { a }")
		graphqlDoc := protocol.TextDocumentIdentifier{URI: graphqlItem.URI}

		m.documents.EXPECT().GetTextDocument(gomock.Any(), graphqlDoc).Return(graphqlItem, nil)
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				edit := singleEdit(t, params)
				assert.Equal(t, _labelReplace, params.Label)
				assert.Equal(t, protocol.Range{End: protocol.Position{Line: 1}}, edit.Range)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		// The captured content is stale, but a whole document is always replaced in full.
		assert.NoError(t, a.apply(ctx, graphqlDoc, ReplaceEdit(factory.WholeDocument("query A {\n  a\n}\n"), "query B { b }")))
		assert.Equal(t, int64(0), counterValue(m.stats, "testing.stale_ranges+"))
	})

	t.Run("client does not apply", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(item, nil)
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).Return(&protocol.ApplyWorkspaceEditResponse{Applied: false, FailureReason: "read only"}, nil)

		err := a.apply(ctx, doc, InsertEdit(fragment.Position{Line: 0}, "x"))
		assert.True(t, gqlsperrors.IsPanelError(err, gqlsperrors.EditFailed))
		assert.Contains(t, err.Error(), "read only")
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.edits_failed+"))
	})

	t.Run("apply edit transport error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(item, nil)
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection closed"))

		err := a.apply(ctx, doc, InsertEdit(fragment.Position{Line: 0}, "x"))
		assert.True(t, gqlsperrors.IsPanelError(err, gqlsperrors.EditFailed))
	})

	t.Run("document no longer mirrored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeReject)

		target := factory.TaggedRegion(1, 3, "\nquery A { a }\n")
		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(protocol.TextDocumentItem{}, &gqlsperrors.DocumentNotFoundError{Document: doc})
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				assert.Equal(t, target.Start.Line, singleEdit(t, params).Range.Start.Line)
				assert.Equal(t, target.End.Line, singleEdit(t, params).Range.End.Line)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		assert.NoError(t, a.apply(ctx, doc, ReplaceEdit(target, "x")))
	})

	t.Run("whole document no longer mirrored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		// The captured content has one line, the closed document may have any number.
		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(protocol.TextDocumentItem{}, &gqlsperrors.DocumentNotFoundError{Document: doc})

		err := a.apply(ctx, doc, ReplaceEdit(factory.WholeDocument("query A { a }"), "query B { b }"))
		assert.True(t, gqlsperrors.IsPanelError(err, gqlsperrors.StaleRange))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.stale_ranges+"))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.edits_failed+"))
	})

	t.Run("document lookup failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(protocol.TextDocumentItem{}, errors.New("no session"))

		err := a.apply(ctx, doc, InsertEdit(fragment.Position{Line: 0}, "x"))
		assert.True(t, gqlsperrors.IsPanelError(err, gqlsperrors.EditFailed))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.edits_failed+"))
	})

	t.Run("empty edit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, _ := newTestApplier(ctrl, StaleRangeClamp)
		assert.True(t, gqlsperrors.IsPanelError(a.apply(ctx, doc, Edit{}), gqlsperrors.EditFailed))
	})
}

func TestApplyStaleRange(t *testing.T) {
	ctx := context.Background()

	// Captured as lines [1,3) of a longer document, which has since shrunk to a single line.
	target := factory.TaggedRegion(1, 3, "\nquery A { a }\n")
	shrunk := factory.TextDocumentItem("/a/b.ts", "const q = 1;")
	doc := protocol.TextDocumentIdentifier{URI: shrunk.URI}

	t.Run("clamp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeClamp)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(shrunk, nil)
		m.ideGateway.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ShowMessageParams) error {
				assert.Equal(t, protocol.MessageTypeWarning, params.Type)
				return nil
			}).Times(2)
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)

		var applied string
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				edit := singleEdit(t, params)
				end := protocol.Position{Line: 0, Character: 12}
				assert.Equal(t, protocol.Range{Start: end, End: end}, edit.Range)

				var err error
				applied, err = applyToText(shrunk.Text, Edit{Position: &fragment.Position{Line: 0, Character: 12}, Content: edit.NewText})
				require.NoError(t, err)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		require.NoError(t, a.apply(ctx, doc, ReplaceEdit(target, "query B { b }")))
		// Nothing that was in the document is lost.
		assert.Equal(t, "const q = 1;query B { b }", applied)
		assert.Equal(t, int64(2), counterValue(m.stats, "testing.stale_ranges+"))
	})

	t.Run("reject", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeReject)

		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(shrunk, nil)

		err := a.apply(ctx, doc, ReplaceEdit(target, "query B { b }"))
		assert.True(t, gqlsperrors.IsPanelError(err, gqlsperrors.StaleRange))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.stale_ranges+"))
		assert.Equal(t, int64(1), counterValue(m.stats, "testing.edits_failed+"))
	})

	t.Run("content changed within range", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, m := newTestApplier(ctrl, StaleRangeReject)

		captured := scanner.New(scanner.Options{}).Extract(scanner.Document{Path: "/a/b.ts", Text: factory.SourceWithQueries("query A { a }")})
		require.Len(t, captured, 1)
		item := factory.TextDocumentItem("/a/b.ts", factory.SourceWithQueries("query A { b }"))
		m.documents.EXPECT().GetTextDocument(gomock.Any(), doc).Return(item, nil)
		m.ideGateway.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ShowMessageParams) error {
				assert.Contains(t, params.Message, "1 characters removed, 1 added")
				return nil
			})
		m.ideGateway.EXPECT().ShowDocument(gomock.Any(), gomock.Any()).Return(&protocol.ShowDocumentResult{Success: true}, nil)
		m.ideGateway.EXPECT().ApplyEdit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
				assert.Equal(t, regionRange(captured[0]), singleEdit(t, params).Range)
				return &protocol.ApplyWorkspaceEditResponse{Applied: true}, nil
			})

		assert.NoError(t, a.apply(ctx, doc, ReplaceEdit(captured[0], "\nquery C { c }\n")))
	})
}

func regionRange(d fragment.Descriptor) protocol.Range {
	return ReplaceEdit(d, "").Range("")
}

func TestDiffSummary(t *testing.T) {
	assert.Equal(t, "0 characters removed, 0 added (edit distance 0).", diffSummary("abc", "abc"))
	assert.Equal(t, "1 characters removed, 2 added (edit distance 2).", diffSummary("query a", "query bc"))
}
