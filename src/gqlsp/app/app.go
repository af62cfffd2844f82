// Package app composes the gqlsp-daemon application.
package app

import (
	"context"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/gateway"
	"github.com/uber/gql-panel-lsp/src/gqlsp/handler"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/core"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/fs"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/jsonrpcfx"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/serverinfofile"
	workspaceutils "github.com/uber/gql-panel-lsp/src/gqlsp/internal/workspace-utils"
	"go.uber.org/fx"
)

const _serviceName = "gqlsp"

// Module defines the gqlsp-daemon application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	serverinfofile.Module,
	workspaceutils.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(newStats),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)

// newStats creates the root metrics scope and closes it when the application stops.
func newStats(lc fx.Lifecycle) tally.Scope {
	rs, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags: map[string]string{
			"service": _serviceName,
		},
	}, 1*time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return rs
}
