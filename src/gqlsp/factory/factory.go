// Package factory builds values for tests.
package factory

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// JSONRPCNotification is a factory for a JSON-RPC notification containing the specified method and parameters.
func JSONRPCNotification(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewNotification(method, params)
	return req
}

// PluginInfoValid is a factory for PluginInfo that passes validation.
func PluginInfoValid(id int) gqlspplugin.PluginInfo {
	return gqlspplugin.PluginInfo{
		Priorities: map[string]gqlspplugin.Priority{
			protocol.MethodTextDocumentDidOpen: gqlspplugin.PriorityHigh,
		},
		Methods: &gqlspplugin.Methods{
			PluginNameKey: fmt.Sprintf("test-plugin-%v", id),
			DidOpen: func(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
				return nil
			},
		},
		NameKey: fmt.Sprintf("test-plugin-%v", id),
	}
}

// PluginInfoInvalid is a factory for PluginInfo that fails validation.
func PluginInfoInvalid(id int) gqlspplugin.PluginInfo {
	return gqlspplugin.PluginInfo{
		Priorities: map[string]gqlspplugin.Priority{
			protocol.MethodTextDocumentDidOpen: gqlspplugin.PriorityHigh,
		},
		Methods: &gqlspplugin.Methods{},
		NameKey: fmt.Sprintf("test-plugin-%v", id),
	}
}
