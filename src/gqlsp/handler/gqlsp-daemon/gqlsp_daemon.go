// Package gqlspdaemon routes JSON-RPC requests of each client connection to the daemon controller.
package gqlspdaemon

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	controller "github.com/uber/gql-panel-lsp/src/gqlsp/controller/gqlsp-daemon"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/jsonrpcfx"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// Handler accepts client connections on behalf of the JSON-RPC module.
type Handler interface {
	jsonrpcfx.ConnectionManager
}

// New constructs a new gqlsp-daemon Handler and registers it with the JSON-RPC module.
func New(ctrl controller.Controller, jsonrpcmod jsonrpcfx.JSONRPCModule, logger *zap.SugaredLogger, stats tally.Scope) (Handler, error) {
	c := &jsonRPCConnectionManager{
		ctrl:   ctrl,
		logger: logger,
		stats:  stats.SubScope("json_rpc"),
	}
	if err := jsonrpcmod.RegisterConnectionManager(c); err != nil {
		return nil, err
	}
	return c, nil
}

type jsonRPCConnectionManager struct {
	ctrl   controller.Controller
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// NewConnection will store a new connection and return a router that includes its UUID.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn jsonrpc2.Conn) (router jsonrpcfx.Router, err error) {
	id, err := c.ctrl.InitSession(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}
	c.stats.Counter("connections").Inc(1)

	return &jsonRPCRouter{
		gqlspdaemon: c.ctrl,
		uuid:        id,
		stats:       c.stats,
	}, nil
}

// RemoveConnection cleans up a closed connection.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	// Ensure session is removed even if no Exit call has been received.
	ctx = context.WithValue(ctx, entity.SessionContextKey, id)
	if err := c.ctrl.EndSession(ctx, id); err != nil {
		c.logger.Debugw("ending session", "uuid", id.String(), zap.Error(err))
	}
}
