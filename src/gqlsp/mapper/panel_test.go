package mapper

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/factory"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

func TestRequestToPanelMessage(t *testing.T) {
	t.Run("save", func(t *testing.T) {
		source := factory.TaggedRegion(2, 4, "\n  query A { a }\n")
		req := factory.JSONRPCRequest(entity.MethodPanelMessage, map[string]interface{}{
			"command":      "save",
			"targetSource": source,
			"newContent":   "\n  query A { b }\n",
		})
		msg, err := RequestToPanelMessage(req)
		require.NoError(t, err)
		assert.Equal(t, entity.PanelMessageSave, msg.Command)
		assert.Equal(t, &source, msg.TargetSource)
		assert.Equal(t, "\n  query A { b }\n", msg.NewContent)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := RequestToPanelMessage(factory.JSONRPCRequest(entity.MethodPanelMessage, map[string]string{"command": "explode"}))
		assert.True(t, errors.Is(err, jsonrpc2.ErrParse))
	})

	t.Run("no params", func(t *testing.T) {
		_, err := RequestToPanelMessage(factory.JSONRPCRequest(entity.MethodPanelMessage, nil))
		assert.True(t, errors.Is(err, gqlsperrors.NoMessageOnWireError))
	})
}

func TestRequestToPanelDisposeParams(t *testing.T) {
	params, err := RequestToPanelDisposeParams(factory.JSONRPCNotification(entity.MethodPanelDidDispose, entity.PanelDisposeParams{PanelID: "p1"}))
	require.NoError(t, err)
	assert.Equal(t, "p1", params.PanelID)

	params, err = RequestToPanelDisposeParams(factory.JSONRPCNotification(entity.MethodPanelDidDispose, nil))
	require.NoError(t, err)
	assert.Empty(t, params.PanelID)

	_, err = RequestToPanelDisposeParams(factory.JSONRPCNotification(entity.MethodPanelDidDispose, map[string]int{"panelId": 3}))
	assert.Error(t, err)
}

func TestExecuteCommandArguments(t *testing.T) {
	want := entity.CommandArguments{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///repo/app.ts"},
		Position:     protocol.Position{Line: 4, Character: 2},
	}
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  *protocol.ExecuteCommandParams
		wantErr bool
	}{
		{
			name:   "raw json argument",
			params: &protocol.ExecuteCommandParams{Command: entity.CommandEdit, Arguments: []interface{}{json.RawMessage(raw)}},
		},
		{
			name:   "decoded map argument",
			params: &protocol.ExecuteCommandParams{Command: entity.CommandEdit, Arguments: []interface{}{map[string]interface{}{"textDocument": map[string]interface{}{"uri": "file:///repo/app.ts"}, "position": map[string]interface{}{"line": 4, "character": 2}}}},
		},
		{
			name:    "nil params",
			wantErr: true,
		},
		{
			name:    "no arguments",
			params:  &protocol.ExecuteCommandParams{Command: entity.CommandEdit},
			wantErr: true,
		},
		{
			name:    "missing document",
			params:  &protocol.ExecuteCommandParams{Command: entity.CommandEdit, Arguments: []interface{}{json.RawMessage(`{"position":{"line":1,"character":0}}`)}},
			wantErr: true,
		},
		{
			name:    "malformed argument",
			params:  &protocol.ExecuteCommandParams{Command: entity.CommandEdit, Arguments: []interface{}{json.RawMessage(`"file:///repo/app.ts"`)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExecuteCommandArguments(tt.params)
			if tt.wantErr {
				assert.True(t, gqlsperrors.IsBadRequest(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestPositionConversions(t *testing.T) {
	p := protocol.Position{Line: 7, Character: 12}
	fp := ProtocolToFragmentPosition(p)
	assert.Equal(t, fragment.Position{Line: 7, Character: 12}, fp)
	assert.Equal(t, p, FragmentToProtocolPosition(fp))
}

func TestDescriptorRange(t *testing.T) {
	d := factory.TaggedRegion(2, 5, "q")
	r := DescriptorRange(d)
	assert.Equal(t, protocol.Position{Line: 2, Character: d.Start.Character}, r.Start)
	assert.Equal(t, protocol.Position{Line: 5, Character: d.End.Character}, r.End)
}

func TestSingleEditToApplyWorkspaceEditParams(t *testing.T) {
	doc := protocol.TextDocumentIdentifier{URI: "file:///repo/app.ts"}
	r := PositionsToRange(protocol.Position{Line: 1}, protocol.Position{Line: 2})
	params := SingleEditToApplyWorkspaceEditParams("Save query", doc, r, "new")

	assert.Equal(t, "Save query", params.Label)
	require.Len(t, params.Edit.DocumentChanges, 1)
	change := params.Edit.DocumentChanges[0]
	assert.Equal(t, doc, change.TextDocument.TextDocumentIdentifier)
	assert.Equal(t, []protocol.TextEdit{{Range: r, NewText: "new"}}, change.Edits)
	assert.Nil(t, params.Edit.Changes)
}
