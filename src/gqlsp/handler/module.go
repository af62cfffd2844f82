// Package handler provides the inbound side of the daemon.
package handler

import (
	controller "github.com/uber/gql-panel-lsp/src/gqlsp/controller"
	gqlspdaemon "github.com/uber/gql-panel-lsp/src/gqlsp/controller/gqlsp-daemon"
	handler "github.com/uber/gql-panel-lsp/src/gqlsp/handler/gqlsp-daemon"
	"github.com/uber/gql-panel-lsp/src/gqlsp/repository/session"
	"go.uber.org/fx"
)

// Module provides the gqlsp-daemon server into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(session.New),
	fx.Provide(handler.New),
	fx.Invoke(func(m handler.Handler) {}),
	fx.Invoke(func(m gqlspdaemon.Controller) {}),
)
