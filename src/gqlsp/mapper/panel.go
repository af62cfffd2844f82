package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// RequestToPanelMessage maps the parameters of a gqlPanel/message request into an entity.PanelMessage.
func RequestToPanelMessage(req jsonrpc2.Request) (*entity.PanelMessage, error) {
	if raw := bytes.TrimSpace(req.Params()); len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, wrapErrParse(errors.NoMessageOnWireError)
	}
	params := entity.PanelMessage{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToPanelDisposeParams maps the parameters of a gqlPanel/didDispose notification into entity.PanelDisposeParams.
func RequestToPanelDisposeParams(req jsonrpc2.Request) (*entity.PanelDisposeParams, error) {
	params := entity.PanelDisposeParams{}
	if len(req.Params()) == 0 {
		return &params, nil
	}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// ExecuteCommandArguments decodes the first argument of a panel command.
func ExecuteCommandArguments(params *protocol.ExecuteCommandParams) (*entity.CommandArguments, error) {
	if params == nil || len(params.Arguments) == 0 || params.Arguments[0] == nil {
		return nil, errors.NoCommandArgumentsError
	}

	var raw []byte
	switch arg := params.Arguments[0].(type) {
	case json.RawMessage:
		raw = arg
	default:
		var err error
		if raw, err = json.Marshal(arg); err != nil {
			return nil, fmt.Errorf("encoding %s arguments: %w", params.Command, err)
		}
	}

	args := entity.CommandArguments{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.NoCommandArgumentsError, err)
	}
	if args.TextDocument.URI == "" {
		return nil, fmt.Errorf("%w: textDocument is missing", errors.NoCommandArgumentsError)
	}
	return &args, nil
}

// ProtocolToFragmentPosition converts an LSP position into a fragment position.
func ProtocolToFragmentPosition(p protocol.Position) fragment.Position {
	return fragment.Position{Line: p.Line, Character: p.Character}
}

// FragmentToProtocolPosition converts a fragment position into an LSP position.
func FragmentToProtocolPosition(p fragment.Position) protocol.Position {
	return protocol.Position{Line: p.Line, Character: p.Character}
}

// DescriptorRange returns the range covered by a tagged region.
func DescriptorRange(d fragment.Descriptor) protocol.Range {
	return PositionsToRange(FragmentToProtocolPosition(d.Start), FragmentToProtocolPosition(d.End))
}

// SingleEditToApplyWorkspaceEditParams creates an ApplyWorkspaceEditParams with a single edit to a single document.
func SingleEditToApplyWorkspaceEditParams(label string, doc protocol.TextDocumentIdentifier, editRange protocol.Range, newText string) *protocol.ApplyWorkspaceEditParams {
	return &protocol.ApplyWorkspaceEditParams{
		Label: label,
		Edit: protocol.WorkspaceEdit{
			DocumentChanges: []protocol.TextDocumentEdit{
				{
					TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{TextDocumentIdentifier: doc},
					Edits: []protocol.TextEdit{
						{Range: editRange, NewText: newText},
					},
				},
			},
		},
	}
}
