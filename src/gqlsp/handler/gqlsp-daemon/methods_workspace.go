package gqlspdaemon

import (
	"context"

	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

// ExecuteCommand runs one of the query panel commands: edit, show or insert.
func (r *jsonRPCRouter) ExecuteCommand(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return respond(ctx, reply, req, mapper.RequestToExecuteCommandParams, r.gqlspdaemon.ExecuteCommand)
}
