package mapper

import (
	"fmt"

	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
)

// PluginInfoToRuntimePrioritizedMethods maps the PluginInfo of all running plugins into a prioritized list of modules to run per method.
func PluginInfoToRuntimePrioritizedMethods(allPluginInfo []gqlspplugin.PluginInfo) (gqlspplugin.RuntimePrioritizedMethods, error) {
	result := make(gqlspplugin.RuntimePrioritizedMethods)
	buckets := make(map[string]map[gqlspplugin.Priority][]*gqlspplugin.Methods)

	for _, pluginInfo := range allPluginInfo {
		if err := pluginInfo.Validate(); err != nil {
			return nil, fmt.Errorf("error validating plugin configuration: %w", err)
		}

		for method, priority := range pluginInfo.Priorities {
			if priority < gqlspplugin.PriorityHigh || priority > gqlspplugin.PriorityAsync {
				return nil, fmt.Errorf("plugin %q has invalid priority %d for %q", pluginInfo.NameKey, priority, method)
			}
			if _, ok := buckets[method]; !ok {
				buckets[method] = make(map[gqlspplugin.Priority][]*gqlspplugin.Methods)
			}
			buckets[method][priority] = append(buckets[method][priority], pluginInfo.Methods)
		}
	}

	// Flatten into sync and async lists, sync ordered by priority.
	for method, byPriority := range buckets {
		lists := gqlspplugin.MethodLists{}
		for priority := gqlspplugin.PriorityHigh; priority < gqlspplugin.PriorityAsync; priority++ {
			lists.Sync = append(lists.Sync, byPriority[priority]...)
		}
		lists.Async = append(lists.Async, byPriority[gqlspplugin.PriorityAsync]...)
		result[method] = lists
	}

	return result, nil
}
