package gqlspdaemon

import (
	"context"

	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) DidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToDidOpenTextDocumentParams, r.gqlspdaemon.DidOpen)
}

func (r *jsonRPCRouter) DidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToDidChangeTextDocumentParams, r.gqlspdaemon.DidChange)
}

func (r *jsonRPCRouter) DidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToDidCloseTextDocumentParams, r.gqlspdaemon.DidClose)
}

func (r *jsonRPCRouter) DidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToDidSaveTextDocumentParams, r.gqlspdaemon.DidSave)
}

// CodeLens replies with the "Edit query" lenses of every fragment in the document.
func (r *jsonRPCRouter) CodeLens(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return respond(ctx, reply, req, mapper.RequestToCodeLensParams, r.gqlspdaemon.CodeLens)
}
