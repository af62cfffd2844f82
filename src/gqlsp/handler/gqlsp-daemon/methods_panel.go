package gqlspdaemon

import (
	"context"

	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

// PanelMessage forwards a message posted by the query panel and replies with its outcome.
// A payload that cannot be decoded is answered with an InvalidParams error.
func (r *jsonRPCRouter) PanelMessage(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	decode := func(req jsonrpc2.Request) (*entity.PanelMessage, error) {
		msg, err := mapper.RequestToPanelMessage(req)
		if err != nil {
			return nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
		}
		return msg, nil
	}
	return respond(ctx, reply, req, decode, r.gqlspdaemon.PanelMessage)
}

// PanelDidDispose is sent when the user closes the query panel.
func (r *jsonRPCRouter) PanelDidDispose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return acknowledge(ctx, reply, req, mapper.RequestToPanelDisposeParams, r.gqlspdaemon.PanelDidDispose)
}
