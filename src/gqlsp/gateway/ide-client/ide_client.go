// Package ideclient sends outbound notifications and calls to connected editor clients.
package ideclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

const _errSendToClient = "sending call/notification to IDE: %w"

//go:generate mockgen -source=ide_client.go -destination=ideclientmock/ide_client_mock.go -package=ideclientmock

// Gateway is used to send outbound notifications and calls to the IDE.
// All calls to the gateway should include a context with a session UUID, which is used to route them to the correct IDE session.
type Gateway interface {
	// RegisterClient registers a new client with the gateway. Should be called each time a new IDE connection is initialized.
	RegisterClient(ctx context.Context, id uuid.UUID, conn jsonrpc2.Conn) error
	// DeregisterClient removes a client from the gateway. Should be called each time an IDE connection is closed.
	DeregisterClient(ctx context.Context, id uuid.UUID) error

	LogMessage(ctx context.Context, params *protocol.LogMessageParams) error
	ShowMessage(ctx context.Context, params *protocol.ShowMessageParams) error
	ShowDocument(ctx context.Context, params *protocol.ShowDocumentParams) (*protocol.ShowDocumentResult, error)
	ApplyEdit(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error)

	// NotifyPanel sends one of the gqlPanel/* notifications that drive the client side panel.
	NotifyPanel(ctx context.Context, method string, params interface{}) error
}

type gateway struct {
	clients     map[uuid.UUID]protocol.Client
	connections map[uuid.UUID]jsonrpc2.Conn
	clientsMu   sync.Mutex
	logger      *zap.Logger
}

// New returns a Gateway for sending IDE notifications and calls.
func New(logger *zap.Logger) Gateway {
	return &gateway{
		clients:     make(map[uuid.UUID]protocol.Client),
		connections: make(map[uuid.UUID]jsonrpc2.Conn),
		logger:      logger,
	}
}

func (g *gateway) RegisterClient(ctx context.Context, id uuid.UUID, conn jsonrpc2.Conn) error {
	if conn == nil {
		return fmt.Errorf("registering client %q: connection is nil", id)
	}

	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	g.clients[id] = protocol.ClientDispatcher(conn, g.logger)
	g.connections[id] = conn
	return nil
}

func (g *gateway) DeregisterClient(ctx context.Context, id uuid.UUID) error {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	delete(g.clients, id)
	delete(g.connections, id)
	return nil
}

func (g *gateway) LogMessage(ctx context.Context, params *protocol.LogMessageParams) error {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return c.LogMessage(ctx, params)
}

func (g *gateway) ShowMessage(ctx context.Context, params *protocol.ShowMessageParams) error {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return c.ShowMessage(ctx, params)
}

func (g *gateway) ShowDocument(ctx context.Context, params *protocol.ShowDocumentParams) (*protocol.ShowDocumentResult, error) {
	_, conn, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}

	// protocol.Client does not include window/showDocument, so call the method directly.
	result := &protocol.ShowDocumentResult{}
	if err := protocol.Call(ctx, conn, protocol.MethodShowDocument, params, result); err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}
	return result, nil
}

func (g *gateway) ApplyEdit(ctx context.Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error) {
	_, conn, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}

	// protocol.Client.ApplyEdit drops the failure reason, so call the method directly.
	result := &protocol.ApplyWorkspaceEditResponse{}
	if err := protocol.Call(ctx, conn, protocol.MethodWorkspaceApplyEdit, params, result); err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}
	return result, nil
}

func (g *gateway) NotifyPanel(ctx context.Context, method string, params interface{}) error {
	_, conn, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	g.logger.Debug("notify panel", zap.String("method", method))
	if err := conn.Notify(ctx, method, params); err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return nil
}

func (g *gateway) getClient(ctx context.Context) (protocol.Client, jsonrpc2.Conn, error) {
	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return nil, nil, err
	}

	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	client, ok := g.clients[id]
	if !ok {
		return nil, nil, fmt.Errorf("client with id %q not found", id)
	}
	return client, g.connections[id], nil
}
