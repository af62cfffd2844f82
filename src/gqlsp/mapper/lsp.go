package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	protocolmapper "github.com/uber/gql-panel-lsp/src/gqlsp/internal/protocol"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// RequestToInitializeParams maps the parameters from a jsonrpc2.Request into protocol.InitializeParams.
func RequestToInitializeParams(req jsonrpc2.Request) (*protocol.InitializeParams, error) {
	params := protocol.InitializeParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToInitializedParams maps the parameters from a jsonrpc2.Request into protocol.InitializedParams.
func RequestToInitializedParams(req jsonrpc2.Request) (*protocol.InitializedParams, error) {
	params := protocol.InitializedParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidOpenTextDocumentParams maps the parameters from a jsonrpc2.Request into protocol.DidOpenTextDocumentParams.
func RequestToDidOpenTextDocumentParams(req jsonrpc2.Request) (*protocol.DidOpenTextDocumentParams, error) {
	params := protocol.DidOpenTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeTextDocumentParams maps the parameters from a jsonrpc2.Request into protocol.DidChangeTextDocumentParams.
func RequestToDidChangeTextDocumentParams(req jsonrpc2.Request) (*protocol.DidChangeTextDocumentParams, error) {
	params := protocol.DidChangeTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidCloseTextDocumentParams maps the parameters from a jsonrpc2.Request into protocol.DidCloseTextDocumentParams.
func RequestToDidCloseTextDocumentParams(req jsonrpc2.Request) (*protocol.DidCloseTextDocumentParams, error) {
	params := protocol.DidCloseTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidSaveTextDocumentParams maps the parameters from a jsonrpc2.Request into protocol.DidSaveTextDocumentParams.
func RequestToDidSaveTextDocumentParams(req jsonrpc2.Request) (*protocol.DidSaveTextDocumentParams, error) {
	params := protocol.DidSaveTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToCodeLensParams maps the parameters from a jsonrpc2.Request into protocol.CodeLensParams.
func RequestToCodeLensParams(req jsonrpc2.Request) (*protocol.CodeLensParams, error) {
	params := protocol.CodeLensParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToExecuteCommandParams maps the parameters from a jsonrpc2.Request into protocol.ExecuteCommandParams.
// Arguments are kept as raw JSON so that each plugin can decode its own argument types.
func RequestToExecuteCommandParams(req jsonrpc2.Request) (*protocol.ExecuteCommandParams, error) {
	var raw struct {
		Command   string            `json:"command"`
		Arguments []json.RawMessage `json:"arguments,omitempty"`
	}
	if err := json.Unmarshal(req.Params(), &raw); err != nil {
		return nil, wrapErrParse(err)
	}

	params := protocol.ExecuteCommandParams{Command: raw.Command}
	for _, arg := range raw.Arguments {
		params.Arguments = append(params.Arguments, arg)
	}
	return &params, nil
}

// NewCodeLens creates a new CodeLens with the given values.
func NewCodeLens(placementRange protocol.Range, title string, command string, arguments interface{}) protocol.CodeLens {
	return protocol.CodeLens{
		Range: placementRange,
		Command: &protocol.Command{
			Title:     title,
			Command:   command,
			Arguments: []interface{}{arguments},
		},
	}
}

// ApplyContentChanges applies the given incremental content change events, in order, to a given text string.
func ApplyContentChanges(initialText string, changes []protocol.TextDocumentContentChangeEvent) (string, error) {
	content := []byte(initialText)
	for _, change := range changes {
		m := protocolmapper.NewTextOffsetMapper(content)
		start, err := m.PositionOffset(change.Range.Start)
		if err != nil {
			return "", fmt.Errorf("unable to apply changes: %w", err)
		}
		end, err := m.PositionOffset(change.Range.End)
		if err != nil {
			return "", fmt.Errorf("unable to apply changes: %w", err)
		}
		if end < start {
			return "", fmt.Errorf("unable to apply changes: range end %v precedes start %v", change.Range.End, change.Range.Start)
		}

		var buf bytes.Buffer
		buf.Grow(len(content) - (end - start) + len(change.Text))
		buf.Write(content[:start])
		buf.WriteString(change.Text)
		buf.Write(content[end:])
		content = buf.Bytes()
	}

	return string(content), nil
}

// PositionsToRange converts two positions into a range.
func PositionsToRange(start, end protocol.Position) protocol.Range {
	return protocol.Range{
		Start: start,
		End:   end,
	}
}

func wrapErrParse(err error) error {
	return fmt.Errorf("%w: %w", jsonrpc2.ErrParse, err)
}
