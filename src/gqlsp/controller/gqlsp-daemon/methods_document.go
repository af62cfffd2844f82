package gqlspdaemon

import (
	"context"
	"fmt"

	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	"go.lsp.dev/protocol"
)

func (c *controller) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.DidOpen(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodTextDocumentDidOpen, call, call)
}

func (c *controller) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.DidChange(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodTextDocumentDidChange, call, call)
}

func (c *controller) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.DidClose(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodTextDocumentDidClose, call, call)
}

func (c *controller) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.DidSave(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodTextDocumentDidSave, call, call)
}

// CodeLens collects the lenses of every synchronous plugin into a single result.
func (c *controller) CodeLens(ctx context.Context, params *protocol.CodeLensParams) ([]protocol.CodeLens, error) {
	result := []protocol.CodeLens{}

	callSync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.CodeLens(ctx, params, &result); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	callAsync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.CodeLens(ctx, params, nil); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}

	if err := c.executePluginMethods(ctx, protocol.MethodTextDocumentCodeLens, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	return result, nil
}
