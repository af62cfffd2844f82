// Package gqlspdaemon fans each client request out to the enabled plugins of its session.
package gqlspdaemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	docsync "github.com/uber/gql-panel-lsp/src/gqlsp/controller/doc-sync"
	querypanel "github.com/uber/gql-panel-lsp/src/gqlsp/controller/query-panel"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	ideclient "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client"
	workspaceutils "github.com/uber/gql-panel-lsp/src/gqlsp/internal/workspace-utils"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"github.com/uber/gql-panel-lsp/src/gqlsp/repository/session"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// Error templates
	_errBadPluginCall       = "calling plugin: %s"
	_errPluginReturnedError = "plugin %q returned error: %s"

	// Configuration keys
	_idleTimeoutMinutesKey = "idleTimeoutMinutes"
	_pluginsKey            = "gqlspPlugins"

	_contextTimeoutAsync = 5 * time.Minute
	_serverName          = "GraphQL Panel Language Server"
)

//go:generate mockgen -source=gqlsp_daemon.go -destination=gqlspdaemonmock/gqlsp_daemon_mock.go -package=gqlspdaemonmock

// Controller orchestrates the business logic for each request.
type Controller interface {
	// LSP Methods defined per protocol.
	Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
	Initialized(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	// Document related methods.
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error
	DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error
	CodeLens(ctx context.Context, params *protocol.CodeLensParams) ([]protocol.CodeLens, error)

	// Workspace related methods.
	ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error)

	// Panel related methods.
	PanelMessage(ctx context.Context, params *entity.PanelMessage) (*entity.PanelMessageResult, error)
	PanelDidDispose(ctx context.Context, params *entity.PanelDisposeParams) error

	// Custom methods for use within this service.
	RequestFullShutdown(ctx context.Context) error
	InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error)
	EndSession(ctx context.Context, uuid uuid.UUID) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Shutdowner     fx.Shutdowner
	Sessions       session.Repository
	IdeGateway     ideclient.Gateway
	Logger         *zap.SugaredLogger
	Config         config.Provider
	Stats          tally.Scope
	WorkspaceUtils workspaceutils.WorkspaceUtils

	PluginDocSync    docsync.Controller
	PluginQueryPanel querypanel.Controller
}

type controller struct {
	sessions           session.Repository
	shutdowner         fx.Shutdowner
	fullShutdown       atomic.Bool
	idleTimer          *time.Timer
	idleTimerMu        sync.Mutex
	idleTimeoutMinutes time.Duration
	logger             *zap.SugaredLogger
	stats              tally.Scope
	ideGateway         ideclient.Gateway
	pluginMethods      map[uuid.UUID]gqlspplugin.RuntimePrioritizedMethods
	pluginMethodsMu    sync.RWMutex
	pluginConfig       map[string]bool
	pluginsAll         []gqlspplugin.Plugin
	wg                 sync.WaitGroup
	workspaceUtils     workspaceutils.WorkspaceUtils
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	ctx := context.Background()

	var timeoutMinutesRaw int64
	if err := p.Config.Get(_idleTimeoutMinutesKey).Populate(&timeoutMinutesRaw); err != nil || timeoutMinutesRaw <= 0 {
		return nil, fmt.Errorf("unable to get idle timeout from config: %v", err)
	}
	var pluginConfig map[string]bool
	if err := p.Config.Get(_pluginsKey).Populate(&pluginConfig); err != nil {
		return nil, fmt.Errorf("unable to get plugin keys from config: %w", err)
	}

	// When creating a new plugin, add it as a dependency in Params, then add it to the list of available plugins here.
	// Document sync comes first so that documents are mirrored before the panel reads them.
	availablePlugins := []gqlspplugin.Plugin{p.PluginDocSync, p.PluginQueryPanel}

	stats := p.Stats
	if stats == nil {
		stats = tally.NoopScope
	}

	c := &controller{
		sessions:       p.Sessions,
		shutdowner:     p.Shutdowner,
		logger:         p.Logger,
		stats:          stats,
		ideGateway:     p.IdeGateway,
		workspaceUtils: p.WorkspaceUtils,

		idleTimeoutMinutes: time.Duration(timeoutMinutesRaw) * time.Minute,
		pluginMethods:      map[uuid.UUID]gqlspplugin.RuntimePrioritizedMethods{},
		pluginConfig:       pluginConfig,
		pluginsAll:         availablePlugins,
	}
	c.refreshIdleTimer(ctx)

	return c, nil
}

func (c *controller) registerSessionPlugins(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("getting session from context: %w", err)
	}

	enabledPlugins := []gqlspplugin.PluginInfo{}
	for _, plugin := range c.pluginsAll {
		if plugin == nil {
			continue
		}
		info, err := plugin.StartupInfo(ctx)
		if err != nil {
			return fmt.Errorf("getting plugin startup info: %w", err)
		}

		if isEnabled := c.pluginConfig[info.NameKey]; isEnabled {
			c.logger.Infow("plugin registration", "plugin", info.NameKey, "status", "enabled")
			enabledPlugins = append(enabledPlugins, info)
		} else {
			c.logger.Infow("plugin registration", "plugin", info.NameKey, "status", "disabled")
		}
	}

	methods, err := mapper.PluginInfoToRuntimePrioritizedMethods(enabledPlugins)
	if err != nil {
		return fmt.Errorf("prioritizing plugin methods: %w", err)
	}

	c.pluginMethodsMu.Lock()
	defer c.pluginMethodsMu.Unlock()
	c.pluginMethods[s.UUID] = methods
	return nil
}

// methodLists returns the plugins registered for method in the session of ctx.
func (c *controller) methodLists(ctx context.Context, method string) (gqlspplugin.MethodLists, bool, error) {
	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return gqlspplugin.MethodLists{}, false, fmt.Errorf("getting session from context: %w", err)
	}

	c.pluginMethodsMu.RLock()
	defer c.pluginMethodsMu.RUnlock()
	sessionMethods, ok := c.pluginMethods[id]
	if !ok {
		return gqlspplugin.MethodLists{}, false, nil
	}
	lists, ok := sessionMethods[method]
	return lists, ok, nil
}

// executePluginMethods will execute modules in the order defined for the given method.
// The caller is responsible for defining and providing a handlerSync and handlerAsync function, which should call the corresponding method with proper arguments.
// The same function may be passed in for both sync and async if no difference is needed.
func (c *controller) executePluginMethods(ctx context.Context, method string, handlerSync func(ctx context.Context, m *gqlspplugin.Methods), handlerAsync func(ctx context.Context, m *gqlspplugin.Methods)) error {
	if handlerSync == nil || handlerAsync == nil {
		return fmt.Errorf("handlers cannot be nil")
	}

	methodLists, ok, err := c.methodLists(ctx, method)
	if err != nil {
		return err
	}
	if !ok {
		// No need to execute if this method has no registered plugins.
		return nil
	}

	for _, current := range methodLists.Sync {
		handlerSync(ctx, current)
	}

	if len(methodLists.Async) == 0 {
		return nil
	}

	// Asynchronous plugin methods outlive the request, so they get a fresh context that keeps only the session.
	// Plugins that implement asynchronous methods are responsible for respecting the context timeout or cancellation signal.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		asyncCtx := context.WithValue(context.Background(), entity.SessionContextKey, ctx.Value(entity.SessionContextKey))
		asyncCtx, cancel := context.WithTimeout(asyncCtx, _contextTimeoutAsync)
		defer cancel()

		var innerWg sync.WaitGroup
		for _, current := range methodLists.Async {
			innerWg.Add(1)
			go func(m *gqlspplugin.Methods) {
				defer innerWg.Done()
				handlerAsync(asyncCtx, m)
			}(current)
		}
		innerWg.Wait()
	}()

	return nil
}
