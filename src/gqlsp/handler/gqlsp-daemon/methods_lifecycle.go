package gqlspdaemon

import (
	"context"

	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

// Initialize starts the session of a new editor connection and replies with the merged capabilities.
func (r *jsonRPCRouter) Initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return respond(ctx, reply, req, mapper.RequestToInitializeParams, r.gqlspdaemon.Initialize)
}

func (r *jsonRPCRouter) Initialized(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToInitializedParams, r.gqlspdaemon.Initialized)
}

// Shutdown only ends this connection's session unless RequestFullShutdown was received first.
func (r *jsonRPCRouter) Shutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, nil, r.gqlspdaemon.Shutdown(ctx))
}

// Exit replies before the controller tears anything down, since a full shutdown closes the connection.
func (r *jsonRPCRouter) Exit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if err := reply(ctx, nil, nil); err != nil {
		return err
	}
	return r.gqlspdaemon.Exit(ctx)
}

// RequestFullShutdown makes the next Shutdown and Exit stop the whole daemon rather than one session.
func (r *jsonRPCRouter) RequestFullShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, nil, r.gqlspdaemon.RequestFullShutdown(ctx))
}
