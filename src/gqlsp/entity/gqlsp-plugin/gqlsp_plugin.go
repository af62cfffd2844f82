package gqlspplugin

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"go.lsp.dev/protocol"
)

const (
	_errorUnrecognizedMethod = "%q included in priority config, but is not a recognized method. Method name must be a valid LSP or panel method. If the method is new, ensure that gqlspplugin.Validate is updated."
	_errorMissingMethod      = "%q is included in the priority configuration, but is nil in Methods"
	_errorMissingField       = "missing %q field for this plugin"

	// MethodEndSession is an additional method outside of LSP protocol, which is called when the JSON-RPC connection has been closed.
	// This should be used to ensure cleanup of resources even if the client exits before calling 'shutdown' and 'exit'.
	MethodEndSession = "end_session"
)

// RuntimePrioritizedMethods represents ordered list of modules to run for a given method.
type RuntimePrioritizedMethods map[string]MethodLists

// MethodLists maintains ordered list of modules to run, segmented by sync and async.
type MethodLists struct {
	Sync  []*Methods
	Async []*Methods
}

// Priority represents the ranked priority in which a plugin method will be run for a given method.
type Priority int64

const (
	// PriorityHigh for plugin methods that should be run in the highest priority group.
	PriorityHigh Priority = iota
	// PriorityRegular for plugins methods that should be run with regular priority.
	PriorityRegular
	// PriorityAsync for plugin methods should be run asynchronously and won't be included in the response.
	PriorityAsync
)

//go:generate mockgen -source=gqlsp_plugin.go -destination=pluginmock/plugin_mock.go -package=pluginmock

// Plugin defines a plugin which contributes a portion of language server functionality.
type Plugin interface {
	StartupInfo(ctx context.Context) (PluginInfo, error)
}

// Methods defines methods which can be optionally implemented by a plugin.
type Methods struct {
	// PluginNameKey identifies the name of the plugin that provides these method implementations.
	PluginNameKey string

	// Lifecycle related methods.
	Initialize  func(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error
	Initialized func(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown    func(ctx context.Context) error
	Exit        func(ctx context.Context) error

	// Document related methods.
	DidOpen   func(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange func(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidClose  func(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error
	DidSave   func(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error

	CodeLens func(ctx context.Context, params *protocol.CodeLensParams, result *[]protocol.CodeLens) error

	// Workspace related methods.
	ExecuteCommand func(ctx context.Context, params *protocol.ExecuteCommandParams) error

	// Panel related methods outside of the LSP protocol.
	PanelMessage    func(ctx context.Context, params *entity.PanelMessage, result *entity.PanelMessageResult) error
	PanelDidDispose func(ctx context.Context, params *entity.PanelDisposeParams) error

	// Connection related methods outside of the LSP protocol.
	EndSession func(ctx context.Context, uuid uuid.UUID) error
}

// PluginInfo provides both prioritization for each method, as well as access to call each method implemented by this plugin.
type PluginInfo struct {
	Priorities map[string]Priority
	Methods    *Methods
	NameKey    string
}

// Validate provides runtime validation that a Plugin implementation returns valid PluginInfo.
func (m *PluginInfo) Validate() error {
	if len(m.Priorities) == 0 {
		return fmt.Errorf(_errorMissingField, "Priorities")
	} else if m.Methods == nil {
		return fmt.Errorf(_errorMissingField, "Methods")
	} else if m.NameKey == "" {
		return fmt.Errorf(_errorMissingField, "NameKey")
	} else if m.Methods.PluginNameKey != m.NameKey {
		return fmt.Errorf(_errorMissingField, "Methods.PluginNameKey")
	}

	// Each configuration key must have a matching entry in Methods.
	for key := range m.Priorities {
		var implemented bool
		switch key {
		case protocol.MethodInitialize:
			implemented = m.Methods.Initialize != nil
		case protocol.MethodInitialized:
			implemented = m.Methods.Initialized != nil
		case protocol.MethodShutdown:
			implemented = m.Methods.Shutdown != nil
		case protocol.MethodExit:
			implemented = m.Methods.Exit != nil
		case protocol.MethodTextDocumentDidOpen:
			implemented = m.Methods.DidOpen != nil
		case protocol.MethodTextDocumentDidChange:
			implemented = m.Methods.DidChange != nil
		case protocol.MethodTextDocumentDidClose:
			implemented = m.Methods.DidClose != nil
		case protocol.MethodTextDocumentDidSave:
			implemented = m.Methods.DidSave != nil
		case protocol.MethodTextDocumentCodeLens:
			implemented = m.Methods.CodeLens != nil
		case protocol.MethodWorkspaceExecuteCommand:
			implemented = m.Methods.ExecuteCommand != nil
		case entity.MethodPanelMessage:
			implemented = m.Methods.PanelMessage != nil
		case entity.MethodPanelDidDispose:
			implemented = m.Methods.PanelDidDispose != nil
		case MethodEndSession:
			implemented = m.Methods.EndSession != nil
		default:
			return fmt.Errorf(_errorUnrecognizedMethod, key)
		}

		if !implemented {
			return fmt.Errorf(_errorMissingMethod, key)
		}
	}
	return nil
}
