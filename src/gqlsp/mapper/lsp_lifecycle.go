package mapper

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// InitializeResultAppendExecuteCommandProvider appends ExecuteCommandOptions into an existing InitializeResult.
// Commands must be unique across all plugins, and this function will fail if a duplicate is found.
func InitializeResultAppendExecuteCommandProvider(initResult *protocol.InitializeResult, newOptions *protocol.ExecuteCommandOptions) error {
	if newOptions == nil {
		return nil
	}

	if initResult.Capabilities.ExecuteCommandProvider == nil {
		initResult.Capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
			Commands: append([]string(nil), newOptions.Commands...),
		}
		return nil
	}

	seen := make(map[string]struct{}, len(initResult.Capabilities.ExecuteCommandProvider.Commands))
	for _, cmd := range initResult.Capabilities.ExecuteCommandProvider.Commands {
		seen[cmd] = struct{}{}
	}
	for _, cmd := range newOptions.Commands {
		if _, ok := seen[cmd]; ok {
			return fmt.Errorf("command %q in ExecuteCommandOptions already exists and cannot be duplicated", cmd)
		}
		seen[cmd] = struct{}{}
		initResult.Capabilities.ExecuteCommandProvider.Commands = append(initResult.Capabilities.ExecuteCommandProvider.Commands, cmd)
	}

	return nil
}

// InitializeResultEnsureCodeLensProvider ensures that a CodeLensProvider is present in an existing InitializeResult.
// If enableResolveProvider is true in at least one call across all plugins, ResolveProvider will be true.
func InitializeResultEnsureCodeLensProvider(initResult *protocol.InitializeResult, enableResolveProvider bool) {
	if initResult.Capabilities.CodeLensProvider == nil {
		initResult.Capabilities.CodeLensProvider = &protocol.CodeLensOptions{}
	}

	if enableResolveProvider {
		initResult.Capabilities.CodeLensProvider.ResolveProvider = true
	}
}

// InitializeResultEnsureIncrementalSync sets the text document sync options used by the document mirror.
func InitializeResultEnsureIncrementalSync(initResult *protocol.InitializeResult) {
	initResult.Capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: true,
		Change:    protocol.TextDocumentSyncKindIncremental,
		Save: &protocol.SaveOptions{
			IncludeText: false,
		},
	}
}
