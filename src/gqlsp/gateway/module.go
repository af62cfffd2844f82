// Package gateway provides the outbound dependencies of the daemon.
package gateway

import (
	ideclient "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client"
	schemaloader "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/schema-loader"
	"go.uber.org/fx"
)

// Module provides the editor client gateway and the schema loader.
var Module = fx.Options(
	fx.Provide(ideclient.New),
	fx.Provide(schemaloader.New),
)
