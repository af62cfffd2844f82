package querypanel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	ideclient "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// errPanelClosed is returned when an event is sent to a panel that has already been disposed.
var errPanelClosed = errors.New("panel is closed")

type panelState int

const (
	panelClosed panelState = iota
	panelOpenIdle
	panelOpenAwaitingEdit
)

func (s panelState) String() string {
	switch s {
	case panelClosed:
		return "closed"
	case panelOpenIdle:
		return "open-idle"
	case panelOpenAwaitingEdit:
		return "open-awaiting-edit"
	default:
		return fmt.Sprintf("panelState(%d)", int(s))
	}
}

type eventKind int

const (
	eventDispatch eventKind = iota
	eventMessage
	eventDispose
)

// panelEvent is the only way to act on a panel session. Events are consumed one at a time,
// in the order they were accepted, by the goroutine that owns the session state.
type panelEvent struct {
	kind eventKind
	ctx  context.Context

	// eventDispatch
	command  entity.PanelCommand
	document protocol.TextDocumentIdentifier
	schema   *entity.Schema

	// eventMessage
	message *entity.PanelMessage

	// eventDispose
	notifyClient bool

	reply chan panelReply
}

type panelReply struct {
	result entity.PanelMessageResult
	err    error
}

// binding is the document that edits from the panel are written back to.
type binding struct {
	document protocol.TextDocumentIdentifier
	command  entity.PanelCommand
}

// panelSession drives the single panel of a client connection.
type panelSession struct {
	id         string
	ideGateway ideclient.Gateway
	applier    *editApplier
	logger     *zap.SugaredLogger
	stats      tally.Scope

	events chan panelEvent
	done   chan struct{}

	// state and bound are written only by the run goroutine.
	mu            sync.RWMutex
	state         panelState
	bound         *binding
	subscriptions []func() error
}

func newPanelSession(ideGateway ideclient.Gateway, applier *editApplier, logger *zap.SugaredLogger, stats tally.Scope) *panelSession {
	id := uuid.Must(uuid.NewV4()).String()
	p := &panelSession{
		id:         id,
		ideGateway: ideGateway,
		applier:    applier,
		logger:     logger.With("panel", id),
		stats:      stats,
		events:     make(chan panelEvent),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

// subscribe registers a release function that is called once when the panel is disposed.
func (p *panelSession) subscribe(release func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = append(p.subscriptions, release)
}

// snapshot returns the current state and binding.
func (p *panelSession) snapshot() (panelState, *binding) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.bound
}

// dispatch creates or reveals the panel, binds document and sends the command and schema to the panel.
// It returns errPanelClosed if the panel was disposed before the event was accepted.
func (p *panelSession) dispatch(ctx context.Context, command entity.PanelCommand, document protocol.TextDocumentIdentifier, schema *entity.Schema) error {
	reply, err := p.send(panelEvent{
		kind:     eventDispatch,
		ctx:      ctx,
		command:  command,
		document: document,
		schema:   schema,
	})
	if err != nil {
		return err
	}
	return reply.err
}

// handleMessage processes a message sent by the panel.
func (p *panelSession) handleMessage(ctx context.Context, message *entity.PanelMessage) (entity.PanelMessageResult, error) {
	reply, err := p.send(panelEvent{kind: eventMessage, ctx: ctx, message: message})
	if errors.Is(err, errPanelClosed) {
		return messageWithoutPanel(message)
	}
	if err != nil {
		return entity.PanelMessageResult{Status: entity.PanelMessageRejected, Reason: err.Error()}, err
	}
	return reply.result, reply.err
}

// dispose closes the panel, clears the binding and releases all subscriptions. It is safe to call more than once.
// notifyClient is false when the client closed the panel itself or is no longer connected.
func (p *panelSession) dispose(ctx context.Context, notifyClient bool) error {
	reply, err := p.send(panelEvent{kind: eventDispose, ctx: ctx, notifyClient: notifyClient})
	if errors.Is(err, errPanelClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	return reply.err
}

func (p *panelSession) send(ev panelEvent) (panelReply, error) {
	ev.reply = make(chan panelReply, 1)
	select {
	case p.events <- ev:
	case <-p.done:
		return panelReply{}, errPanelClosed
	case <-ev.ctx.Done():
		return panelReply{}, ev.ctx.Err()
	}
	return <-ev.reply, nil
}

func (p *panelSession) run() {
	defer close(p.done)
	for {
		ev := <-p.events

		var (
			reply panelReply
			stop  bool
		)
		switch ev.kind {
		case eventDispatch:
			stop, reply.err = p.show(ev.ctx, ev.command, ev.document, ev.schema)
		case eventMessage:
			reply.result, stop, reply.err = p.receive(ev.ctx, ev.message)
		case eventDispose:
			stop, reply.err = true, p.close(ev.ctx, ev.notifyClient)
		default:
			reply.err = fmt.Errorf("unknown panel event %d", ev.kind)
		}
		ev.reply <- reply

		if stop {
			return
		}
	}
}

func (p *panelSession) show(ctx context.Context, command entity.PanelCommand, document protocol.TextDocumentIdentifier, schema *entity.Schema) (stop bool, err error) {
	state, previous := p.snapshot()

	created := state == panelClosed
	if err := p.ideGateway.NotifyPanel(ctx, entity.MethodPanelCreateOrShow, &entity.PanelCreateOrShowParams{PanelID: p.id, Created: created}); err != nil {
		if created {
			// Nothing was opened, release the session so that the next command starts over.
			if closeErr := p.close(ctx, false); closeErr != nil {
				p.logger.Warnf("releasing panel: %v", closeErr)
			}
			return true, gqlsperrors.NewPanelError(gqlsperrors.PanelUnavailable, err)
		}
		return false, gqlsperrors.NewPanelError(gqlsperrors.PanelUnavailable, err)
	}
	if created {
		p.setState(panelOpenIdle, nil)
	}

	if previous != nil {
		p.stats.Counter("binding_overwritten").Inc(1)
		p.logger.Warnw("panel rebound while an edit was pending",
			"previous", previous.document.URI,
			"previousCommand", previous.command.Kind,
			"document", document.URI,
			"command", command.Kind,
		)
		if err := p.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeWarning,
			Message: fmt.Sprintf("The query panel was reopened. Pending changes for %s will not be written back.", previous.document.URI),
		}); err != nil {
			p.logger.Errorf("unable to show warning: %v", err)
		}
	}
	p.setState(panelOpenAwaitingEdit, &binding{document: document, command: command})

	params := &entity.PanelPostMessageParams{
		PanelID: p.id,
		Command: command.Kind,
		Data:    entity.PanelData{Config: command, Schema: schema},
	}
	if err := p.ideGateway.NotifyPanel(ctx, entity.MethodPanelPostMessage, params); err != nil {
		return false, gqlsperrors.NewPanelError(gqlsperrors.PanelUnavailable, err)
	}
	return false, nil
}

func (p *panelSession) receive(ctx context.Context, message *entity.PanelMessage) (_ entity.PanelMessageResult, stop bool, _ error) {
	if message.PanelID != "" && message.PanelID != p.id {
		err := gqlsperrors.NewPanelError(gqlsperrors.MissingTargetDocument, fmt.Errorf("message for panel %q received by panel %q", message.PanelID, p.id))
		return rejected(err), false, err
	}

	if message.Command == entity.PanelMessageCancel {
		if err := p.close(ctx, true); err != nil {
			p.logger.Warnf("closing panel: %v", err)
		}
		return entity.PanelMessageResult{Status: entity.PanelMessageCancelled}, true, nil
	}

	_, bound := p.snapshot()
	if bound == nil {
		err := gqlsperrors.NewPanelError(gqlsperrors.MissingTargetDocument, nil)
		return rejected(err), false, err
	}

	var e Edit
	switch message.Command {
	case entity.PanelMessageInsert:
		e = InsertEdit(*message.Position, message.Content)
	case entity.PanelMessageSave:
		e = ReplaceEdit(*message.TargetSource, message.NewContent)
	default:
		err := fmt.Errorf("unknown panel message %q", message.Command)
		return rejected(err), false, err
	}

	// A failed edit keeps the binding and leaves the panel open so that the user can retry or cancel.
	if err := p.applier.apply(ctx, bound.document, e); err != nil {
		return rejected(err), false, err
	}

	if err := p.close(ctx, true); err != nil {
		p.logger.Warnf("closing panel: %v", err)
	}
	return entity.PanelMessageResult{Status: entity.PanelMessageApplied}, true, nil
}

// close notifies the client, clears the binding and releases every subscription.
func (p *panelSession) close(ctx context.Context, notifyClient bool) error {
	p.mu.Lock()
	p.state = panelClosed
	p.bound = nil
	subscriptions := p.subscriptions
	p.subscriptions = nil
	p.mu.Unlock()

	var err error
	if notifyClient {
		err = multierr.Append(err, p.ideGateway.NotifyPanel(ctx, entity.MethodPanelDispose, &entity.PanelDisposeParams{PanelID: p.id}))
	}
	for _, release := range subscriptions {
		err = multierr.Append(err, release())
	}
	return err
}

func (p *panelSession) setState(state panelState, bound *binding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.bound = bound
}

// messageWithoutPanel answers a message that arrives after the panel was disposed.
// A repeated cancel is not an error.
func messageWithoutPanel(message *entity.PanelMessage) (entity.PanelMessageResult, error) {
	if message.Command == entity.PanelMessageCancel {
		return entity.PanelMessageResult{Status: entity.PanelMessageCancelled}, nil
	}
	err := gqlsperrors.NewPanelError(gqlsperrors.MissingTargetDocument, nil)
	return rejected(err), err
}

func rejected(err error) entity.PanelMessageResult {
	reason := err.Error()
	var pe *gqlsperrors.PanelError
	if errors.As(err, &pe) {
		reason = pe.Message()
	}
	return entity.PanelMessageResult{Status: entity.PanelMessageRejected, Reason: reason}
}
