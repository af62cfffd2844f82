package gqlspdaemon

import (
	"context"
	"fmt"

	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
)

const _reasonNoPanel = "No query panel is available for this session."

// PanelMessage hands a message from the panel to the plugin that owns the panel.
// The result is rejected when no plugin answered.
func (c *controller) PanelMessage(ctx context.Context, params *entity.PanelMessage) (*entity.PanelMessageResult, error) {
	result := &entity.PanelMessageResult{}

	callSync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.PanelMessage(ctx, params, result); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	callAsync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.PanelMessage(ctx, params, &entity.PanelMessageResult{}); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}

	if err := c.executePluginMethods(ctx, entity.MethodPanelMessage, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	if result.Status == "" {
		result.Status = entity.PanelMessageRejected
		result.Reason = _reasonNoPanel
	}
	return result, nil
}

// PanelDidDispose tells the plugins that the user closed the panel.
func (c *controller) PanelDidDispose(ctx context.Context, params *entity.PanelDisposeParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.PanelDidDispose(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, entity.MethodPanelDidDispose, call, call)
}
