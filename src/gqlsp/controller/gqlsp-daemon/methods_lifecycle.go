package gqlspdaemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/uuid"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Initialize stores the client's parameters on the session, registers the enabled plugins and collects their capabilities.
func (c *controller) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	result := &protocol.InitializeResult{
		ServerInfo: &protocol.ServerInfo{
			Name: _serverName,
		},
	}

	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session from context: %w", err)
	}

	s.InitializeParams = params
	if s.WorkspaceRoot, err = c.workspaceUtils.GetWorkspaceRoot(ctx, s.WorkspaceFolders()); err != nil {
		c.logger.Warnf("getting workspace root: %s", err)
	}

	if err := c.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("setting updated session state: %w", err)
	}

	mapper.InitializeResultEnsureIncrementalSync(result)
	if err := c.registerSessionPlugins(ctx); err != nil {
		return nil, fmt.Errorf("registering session plugins: %w", err)
	}

	callSync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.Initialize(ctx, params, result); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	callAsync := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.Initialize(ctx, params, nil); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	if err := c.executePluginMethods(ctx, protocol.MethodInitialize, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	return result, nil
}

// Initialized handles any actions that need to occur immediately after initialization.
func (c *controller) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.Initialized(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	if err := c.executePluginMethods(ctx, protocol.MethodInitialized, call, call); err != nil {
		return fmt.Errorf(_errBadPluginCall, err)
	}

	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("getting session from context: %w", err)
	}

	message := &protocol.ShowMessageParams{
		Message: fmt.Sprintf("Connection to %s is now initialized.", _serverName),
		Type:    protocol.MessageTypeInfo,
	}
	if s.WorkspaceRoot == "" {
		message = &protocol.ShowMessageParams{
			Message: "No workspace folder is open. Queries can be edited, but no schema will be loaded.",
			Type:    protocol.MessageTypeWarning,
		}
	}
	if err := c.ideGateway.ShowMessage(ctx, message); err != nil {
		c.logger.Warnf("showing initialized message: %s", err)
	}
	return nil
}

// Shutdown is sent just before Exit to indicate that the session will exit.
func (c *controller) Shutdown(ctx context.Context) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.Shutdown(ctx); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	if err := c.executePluginMethods(ctx, protocol.MethodShutdown, call, call); err != nil {
		return fmt.Errorf(_errBadPluginCall, err)
	}
	return nil
}

// Exit will be used to either clean up from an individual connection, or shutdown the whole server.
func (c *controller) Exit(ctx context.Context) error {
	call := func(ctx context.Context, m *gqlspplugin.Methods) {
		if err := m.Exit(ctx); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	if err := c.executePluginMethods(ctx, protocol.MethodExit, call, call); err != nil {
		c.logger.Errorf(_errBadPluginCall, err)
	}

	if c.fullShutdown.Load() {
		// Zero out the timer to trigger immediate shutdown.
		c.idleTimerMu.Lock()
		c.idleTimer.Reset(0)
		c.idleTimerMu.Unlock()
		return nil
	}
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("error during session exit: %w", err)
	}

	return c.EndSession(ctx, s.UUID)
}

// RequestFullShutdown will set the controller to treat subsequent Shutdown and Exit requests as requests to exit the entire process.
func (c *controller) RequestFullShutdown(ctx context.Context) error {
	c.fullShutdown.Store(true)
	return nil
}

// InitSession creates a new empty session and returns its UUID.
func (c *controller) InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error) {
	defer c.refreshIdleTimer(ctx)

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}

	session := mapper.UUIDToSession(id, conn)
	if err := c.ideGateway.RegisterClient(ctx, id, conn); err != nil {
		return uuid.Nil, err
	}

	if err := c.sessions.Set(ctx, session); err != nil {
		return uuid.Nil, err
	}
	c.stats.Counter("sessions_started").Inc(1)
	return id, nil
}

// EndSession includes any cleanup at the end of the session, during or after the last JSON-RPC request.
// It is safe to call more than once for the same session.
func (c *controller) EndSession(ctx context.Context, id uuid.UUID) error {
	defer c.refreshIdleTimer(ctx)

	c.pluginMethodsMu.RLock()
	_, registered := c.pluginMethods[id]
	c.pluginMethodsMu.RUnlock()

	if registered {
		call := func(ctx context.Context, m *gqlspplugin.Methods) {
			if err := m.EndSession(ctx, id); err != nil {
				c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
			}
		}
		if err := c.executePluginMethods(ctx, gqlspplugin.MethodEndSession, call, call); err != nil {
			c.logger.Errorf(_errBadPluginCall, err)
		}
	}

	if err := c.ideGateway.DeregisterClient(ctx, id); err != nil {
		c.logger.Debugf("deregistering client: %s", err)
	}

	c.pluginMethodsMu.Lock()
	delete(c.pluginMethods, id)
	c.pluginMethodsMu.Unlock()
	return c.sessions.Delete(ctx, id)
}

// refreshIdleTimer ensures that the service shuts down after a defined inactivity period with no connections.
func (c *controller) refreshIdleTimer(ctx context.Context) error {
	c.idleTimerMu.Lock()
	defer c.idleTimerMu.Unlock()

	// First call initializes new timer and leaves it running prior to first connection.
	if c.idleTimer == nil {
		c.idleTimer = time.NewTimer(c.idleTimeoutMinutes)
		go func() {
			<-c.idleTimer.C
			c.logger.Info("Shutdown signal received.")
			if err := c.shutdowner.Shutdown(); err != nil {
				os.Exit(1)
			}
		}()
		return nil
	}

	// Subsequent calls stop the timer and reset it only if no connections are active.
	currentSessions, err := c.sessions.SessionCount(ctx)
	if err != nil {
		return fmt.Errorf("error resetting timeout: %w", err)
	}

	c.idleTimer.Stop()
	if currentSessions == 0 {
		c.idleTimer.Reset(c.idleTimeoutMinutes)
	}
	return nil
}
