package gqlspdaemon

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	controller "github.com/uber/gql-panel-lsp/src/gqlsp/controller/gqlsp-daemon"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

type jsonRPCRouter struct {
	gqlspdaemon controller.Controller
	uuid        uuid.UUID
	stats       tally.Scope
}

// HandleReq handles routing for a single request.
func (r *jsonRPCRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	ctx = context.WithValue(ctx, entity.SessionContextKey, r.uuid)
	if r.stats != nil {
		defer r.stats.Tagged(map[string]string{"method": req.Method()}).Timer("latency").Start().Stop()
	}

	// Results are passed back to reply to be returned to the client.
	switch req.Method() {
	// Lifecycle related methods.
	case protocol.MethodInitialize:
		return r.Initialize(ctx, reply, req)

	case protocol.MethodInitialized:
		return r.Initialized(ctx, reply, req)

	case protocol.MethodShutdown:
		return r.Shutdown(ctx, reply, req)

	case protocol.MethodExit:
		return r.Exit(ctx, reply, req)

	case entity.MethodRequestFullShutdown:
		return r.RequestFullShutdown(ctx, reply, req)

	// Document related methods.
	case protocol.MethodTextDocumentDidOpen:
		return r.DidOpen(ctx, reply, req)

	case protocol.MethodTextDocumentDidChange:
		return r.DidChange(ctx, reply, req)

	case protocol.MethodTextDocumentDidClose:
		return r.DidClose(ctx, reply, req)

	case protocol.MethodTextDocumentDidSave:
		return r.DidSave(ctx, reply, req)

	case protocol.MethodTextDocumentCodeLens:
		return r.CodeLens(ctx, reply, req)

	// Workspace methods
	case protocol.MethodWorkspaceExecuteCommand:
		return r.ExecuteCommand(ctx, reply, req)

	// Panel methods
	case entity.MethodPanelMessage:
		return r.PanelMessage(ctx, reply, req)

	case entity.MethodPanelDidDispose:
		return r.PanelDidDispose(ctx, reply, req)

	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func (r *jsonRPCRouter) UUID() uuid.UUID {
	return r.uuid
}

// respond decodes the params of req, passes them to handle and replies with the result or error.
func respond[P, R any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, decode func(jsonrpc2.Request) (P, error), handle func(context.Context, P) (R, error)) error {
	params, err := decode(req)
	if err != nil {
		return reply(ctx, nil, err)
	}
	result, err := handle(ctx, params)
	if err != nil {
		return reply(ctx, nil, err)
	}
	return reply(ctx, result, nil)
}

// acknowledge is respond for notifications and requests without a result.
func acknowledge[P any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, decode func(jsonrpc2.Request) (P, error), handle func(context.Context, P) error) error {
	params, err := decode(req)
	if err != nil {
		return reply(ctx, nil, err)
	}
	return reply(ctx, nil, handle(ctx, params))
}
