// Package controller provides the daemon controller and its plugins.
package controller

import (
	docsync "github.com/uber/gql-panel-lsp/src/gqlsp/controller/doc-sync"
	gqlspdaemon "github.com/uber/gql-panel-lsp/src/gqlsp/controller/gqlsp-daemon"
	querypanel "github.com/uber/gql-panel-lsp/src/gqlsp/controller/query-panel"
	"go.uber.org/fx"
)

// Module provides the top-level controller and every plugin it may enable.
var Module = fx.Options(
	fx.Provide(gqlspdaemon.New),
	fx.Provide(docsync.New),
	fx.Provide(querypanel.New),
)
