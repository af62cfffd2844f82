package gqlspdaemon

import (
	"context"
	"fmt"
	"sync"

	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
)

// ExecuteCommand runs the command on every plugin that handles commands.
// Errors of synchronous plugins are returned to the client in addition to being logged.
func (c *controller) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error) {
	var (
		errMu   sync.Mutex
		callErr error
	)
	callSync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.ExecuteCommand(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
			errMu.Lock()
			callErr = multierr.Append(callErr, err)
			errMu.Unlock()
		}
	}
	callAsync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.ExecuteCommand(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}

	if err := c.executePluginMethods(ctx, protocol.MethodWorkspaceExecuteCommand, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	errMu.Lock()
	defer errMu.Unlock()
	return nil, callErr
}
