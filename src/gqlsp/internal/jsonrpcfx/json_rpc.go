package jsonrpcfx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/serverinfofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAddress   = "jsonrpc.address"
	_configKeyTransport = "jsonrpc.transport"
	_outputKeyAddress   = "lsp-address"
	_outputKeyPID       = "pid"

	// TransportTCP accepts any number of clients on a TCP listener.
	TransportTCP = "tcp"
	// TransportStdio serves a single client over the process's standard input and output.
	TransportStdio = "stdio"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

//go:generate mockgen -source=json_rpc.go -destination=jsonrpcfxmock/json_rpc_mock.go -package=jsonrpcfxmock

// JSONRPCModule represents a module to manage JSON-RPC requests.
type JSONRPCModule interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
}

// Router serves as the interface through which handling of requests will be implemented.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager tracks each active connection and its corresponding Router for the lifetime of the connection.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

// Params define values to be used by the JSON-RPC module.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
	Shutdowner     fx.Shutdowner `optional:"true"`
}

type module struct {
	address   string
	transport string

	connectionMgr  ConnectionManager
	ln             net.Listener
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile
	shutdowner     fx.Shutdowner

	stdin  io.ReadCloser
	stdout io.WriteCloser

	mu      sync.Mutex
	cancel  context.CancelFunc
	serving sync.WaitGroup
}

// New creates a new server to handle JSON-RPC requests on the configured transport.
func New(p Params) (JSONRPCModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := &module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		shutdowner:     p.Shutdowner,
		stdin:          os.Stdin,
		stdout:         os.Stdout,
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})
	return m, nil
}

// OnStart begins accepting connections in the background.
func (m *module) OnStart(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	switch m.transport {
	case TransportStdio:
		m.serving.Add(1)
		go m.serveStdio(serveCtx)
		return nil
	default:
		if err := m.listen(); err != nil {
			cancel()
			return err
		}
		if err := m.serverInfoFile.UpdateField(_outputKeyAddress, m.ln.Addr().String()); err != nil {
			cancel()
			return err
		}
		if err := m.serverInfoFile.UpdateField(_outputKeyPID, fmt.Sprint(os.Getpid())); err != nil {
			cancel()
			return err
		}
		m.serving.Add(1)
		go m.serveTCP(serveCtx)
		return nil
	}
}

// OnStop closes the listener and waits for the serving goroutine to return.
func (m *module) OnStop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	ln := m.ln
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if ln != nil {
		if closeErr := ln.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
	}
	if m.transport == TransportStdio {
		m.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		m.serving.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// ServeStream is called when a new connection is initiated. Requests received via the connection will be routed to the handler, and answered via the connection's replier.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	if m.connectionMgr == nil {
		m.logger.Errorf("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	handler, err := m.connectionMgr.NewConnection(ctx, conn)
	if err != nil {
		return err
	}
	m.logger.Infow("client connected", zap.Stringer("uuid", handler.UUID()), zap.String("transport", m.transport))
	conn.Go(ctx, jsonrpc2.AsyncHandler(handler.HandleReq))

	select {
	case <-conn.Done():
	case <-ctx.Done():
		conn.Close()
		<-conn.Done()
	}

	m.connectionMgr.RemoveConnection(ctx, handler.UUID())
	m.logger.Infow("client disconnected", zap.Stringer("uuid", handler.UUID()))
	return conn.Err()
}

// RegisterConnectionManager sets the connection manager, which keeps track of current active connections and provides a Router implementation.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

func (m *module) listen() error {
	ln, err := net.Listen("tcp", m.address)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", m.address, err)
	}
	m.mu.Lock()
	m.ln = ln
	m.mu.Unlock()
	return nil
}

func (m *module) serveTCP(ctx context.Context) {
	defer m.serving.Done()

	m.logger.Infow("started JSON-RPC inbound", zap.String("address", m.ln.Addr().String()))
	if err := jsonrpc2.Serve(ctx, m.ln, m, 0); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Errorw("JSON-RPC listener stopped", zap.Error(err))
		m.shutdown()
	}
}

func (m *module) serveStdio(ctx context.Context) {
	defer m.serving.Done()

	m.logger.Infow("started JSON-RPC inbound", zap.String("transport", TransportStdio))
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&stdioReadWriteCloser{in: m.stdin, out: m.stdout}))
	if err := m.ServeStream(ctx, conn); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		m.logger.Warnw("stdio connection closed with error", zap.Error(err))
	}

	// A stdio server has exactly one client, so the process ends with it.
	if ctx.Err() == nil {
		m.shutdown()
	}
}

func (m *module) shutdown() {
	if m.shutdowner == nil {
		return
	}
	if err := m.shutdowner.Shutdown(); err != nil {
		m.logger.Errorw("requesting shutdown", zap.Error(err))
	}
}

func (m *module) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKeyTransport).Populate(&m.transport); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyTransport, err)
	}
	switch m.transport {
	case "":
		m.transport = TransportTCP
	case TransportTCP, TransportStdio:
	default:
		return fmt.Errorf("unsupported transport %q in config field %q", m.transport, _configKeyTransport)
	}

	if m.transport == TransportStdio {
		return nil
	}

	if err := cfg.Get(_configKeyAddress).Populate(&m.address); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}
	if m.address == "" {
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}
	return nil
}

type stdioReadWriteCloser struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Close closes only the input side; standard output stays open for log flushing by the host process.
func (s *stdioReadWriteCloser) Close() error {
	return s.in.Close()
}
