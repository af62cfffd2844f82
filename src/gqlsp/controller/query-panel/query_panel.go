// Package querypanel opens embedded GraphQL queries in the client's query panel and writes the panel's result back.
package querypanel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"github.com/uber/gql-panel-lsp/src/gql-lib/scanner"
	docsync "github.com/uber/gql-panel-lsp/src/gqlsp/controller/doc-sync"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	ideclient "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client"
	schemaloader "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/schema-loader"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	workspaceutils "github.com/uber/gql-panel-lsp/src/gqlsp/internal/workspace-utils"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"github.com/uber/gql-panel-lsp/src/gqlsp/repository/session"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey    = "query-panel"
	_configKey  = "queryPanel"
	_scannerKey = "scanner"

	_lensEdit         = "Edit query"
	_lensInsert       = "Insert query"
	_lensEditDocument = "Edit document"
)

var _commands = []string{entity.CommandEdit, entity.CommandShow, entity.CommandInsert}

//go:generate mockgen -source=query_panel.go -destination=querypanelmock/query_panel_mock.go -package=querypanelmock

// Controller defines the interface for the query panel controller.
type Controller interface {
	StartupInfo(ctx context.Context) (gqlspplugin.PluginInfo, error)
}

// Config is the queryPanel block of the configuration.
type Config struct {
	// CodeLens shows edit and insert lenses above each query.
	CodeLens bool `yaml:"codeLens"`
	// StaleRangePolicy is either "clamp" (default) or "reject".
	StaleRangePolicy StaleRangePolicy `yaml:"staleRangePolicy"`
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Config         config.Provider
	Sessions       session.Repository
	Documents      docsync.Controller
	IdeGateway     ideclient.Gateway
	SchemaLoader   schemaloader.Loader
	WorkspaceUtils workspaceutils.WorkspaceUtils
	Logger         *zap.SugaredLogger
	Stats          tally.Scope
}

type controller struct {
	sessions       session.Repository
	documents      docsync.Controller
	ideGateway     ideclient.Gateway
	schemaLoader   schemaloader.Loader
	workspaceUtils workspaceutils.WorkspaceUtils
	scanner        scanner.FragmentScanner
	applier        *editApplier
	logger         *zap.SugaredLogger
	stats          tally.Scope
	codeLens       bool

	// Each client connection owns at most one panel.
	panels   map[uuid.UUID]*panelSession
	panelsMu sync.Mutex
}

// New creates a new controller for the query panel.
func New(p Params) (Controller, error) {
	cfg := Config{}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting %s config: %w", _configKey, err)
	}
	switch cfg.StaleRangePolicy {
	case "":
		cfg.StaleRangePolicy = StaleRangeClamp
	case StaleRangeClamp, StaleRangeReject:
	default:
		return nil, fmt.Errorf("unknown %s.staleRangePolicy %q", _configKey, cfg.StaleRangePolicy)
	}

	opts := scanner.Options{}
	if err := p.Config.Get(_scannerKey).Populate(&opts); err != nil {
		return nil, fmt.Errorf("getting %s config: %w", _scannerKey, err)
	}

	logger := p.Logger.With("plugin", _nameKey)
	stats := p.Stats.SubScope("query_panel")
	c := &controller{
		sessions:       p.Sessions,
		documents:      p.Documents,
		ideGateway:     p.IdeGateway,
		schemaLoader:   p.SchemaLoader,
		workspaceUtils: p.WorkspaceUtils,
		scanner:        scanner.New(opts),
		applier: &editApplier{
			documents:  p.Documents,
			ideGateway: p.IdeGateway,
			logger:     logger,
			stats:      stats,
			policy:     cfg.StaleRangePolicy,
		},
		logger:   logger,
		stats:    stats,
		codeLens: cfg.CodeLens,
		panels:   make(map[uuid.UUID]*panelSession),
	}
	return c, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (gqlspplugin.PluginInfo, error) {
	priorities := map[string]gqlspplugin.Priority{
		protocol.MethodInitialize: gqlspplugin.PriorityRegular,
		protocol.MethodShutdown:   gqlspplugin.PriorityRegular,

		protocol.MethodTextDocumentCodeLens:    gqlspplugin.PriorityRegular,
		protocol.MethodWorkspaceExecuteCommand: gqlspplugin.PriorityRegular,

		entity.MethodPanelMessage:    gqlspplugin.PriorityRegular,
		entity.MethodPanelDidDispose: gqlspplugin.PriorityRegular,
		gqlspplugin.MethodEndSession: gqlspplugin.PriorityRegular,
	}

	methods := &gqlspplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize: c.initialize,
		Shutdown:   c.shutdown,

		CodeLens:       c.codeLensHandler,
		ExecuteCommand: c.executeCommand,

		PanelMessage:    c.panelMessage,
		PanelDidDispose: c.panelDidDispose,
		EndSession:      c.endSession,
	}

	return gqlspplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: _commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	if c.codeLens {
		mapper.InitializeResultEnsureCodeLensProvider(result, false)
	}
	return nil
}

// shutdown closes the panel of this session on the client.
func (c *controller) shutdown(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	return c.disposePanel(ctx, s.UUID, true)
}

// endSession releases the panel of a closed connection. The client can no longer be notified.
func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	return c.disposePanel(ctx, id, false)
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var kind entity.PanelCommandKind
	switch params.Command {
	case entity.CommandEdit:
		kind = entity.PanelCommandStartEditing
	case entity.CommandShow:
		kind = entity.PanelCommandShow
	case entity.CommandInsert:
		kind = entity.PanelCommandInsert
	default:
		return nil
	}

	c.stats.Tagged(map[string]string{"mode": string(kind)}).Counter("commands").Inc(1)
	if err := c.route(ctx, kind, params); err != nil {
		c.report(ctx, err)
		return err
	}
	return nil
}

// route resolves the document and cursor of a command, checks the precondition of the mode,
// loads the schema and hands the command to the panel of the session.
func (c *controller) route(ctx context.Context, kind entity.PanelCommandKind, params *protocol.ExecuteCommandParams) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	args, err := mapper.ExecuteCommandArguments(params)
	if err != nil {
		return gqlsperrors.NewPanelError(gqlsperrors.MissingActiveEditor, err)
	}
	item, err := c.documents.GetTextDocument(ctx, args.TextDocument)
	if err != nil {
		return gqlsperrors.NewPanelError(gqlsperrors.MissingActiveEditor, err)
	}

	fragments := c.scanner.Extract(scanner.Document{
		Path:       string(item.URI),
		LanguageID: string(item.LanguageID),
		Text:       item.Text,
	})
	if err := fragment.Validate(fragments); err != nil {
		return fmt.Errorf("scanning %q: %w", item.URI, err)
	}
	cursor := mapper.ProtocolToFragmentPosition(args.Position)
	located, err := fragment.Locate(fragments, cursor)

	command, err := buildCommand(kind, located, err, cursor)
	if err != nil {
		return err
	}

	schema, err := c.loadSchema(ctx, s, item.URI)
	if err != nil {
		return err
	}

	p := c.panelFor(s.UUID)
	err = p.dispatch(ctx, command, args.TextDocument, schema)
	if errors.Is(err, errPanelClosed) {
		// The panel was disposed while the command was being routed.
		err = c.panelFor(s.UUID).dispatch(ctx, command, args.TextDocument, schema)
	}
	return err
}

// buildCommand applies the precondition of the mode to the located fragment.
// locateErr is the error returned by fragment.Locate.
func buildCommand(kind entity.PanelCommandKind, located *fragment.Descriptor, locateErr error, cursor fragment.Position) (entity.PanelCommand, error) {
	if locateErr != nil && !errors.Is(locateErr, fragment.ErrNoSourcesFound) {
		return entity.PanelCommand{}, locateErr
	}

	switch kind {
	case entity.PanelCommandStartEditing:
		if locateErr != nil || located == nil {
			return entity.PanelCommand{}, gqlsperrors.NewPanelError(gqlsperrors.NoSourcesFound, locateErr)
		}
		if located.IsTaggedRegion() && located.IsBlank() {
			return entity.PanelCommand{}, gqlsperrors.NewPanelError(gqlsperrors.EmptyRegionForEdit, nil)
		}
		return entity.NewStartEditingCommand(*located), nil

	case entity.PanelCommandShow:
		if located.IsTaggedRegion() {
			return entity.PanelCommand{}, gqlsperrors.NewPanelError(gqlsperrors.CursorInsideTag, nil)
		}
		return entity.NewShowCommand(), nil

	case entity.PanelCommandInsert:
		if located.IsTaggedRegion() && !located.IsBlank() {
			return entity.PanelCommand{}, gqlsperrors.NewPanelError(gqlsperrors.NonEmptyRegionForInsert, nil)
		}
		return entity.NewInsertCommand(cursor), nil
	}
	return entity.PanelCommand{}, fmt.Errorf("unknown panel command %q", kind)
}

func (c *controller) loadSchema(ctx context.Context, s *entity.Session, document protocol.DocumentURI) (*entity.Schema, error) {
	root, err := c.workspaceUtils.ProjectRoot(ctx, s, document)
	if err != nil {
		return nil, gqlsperrors.NewPanelError(gqlsperrors.MissingProjectRoot, err)
	}
	if root == "" {
		return nil, gqlsperrors.NewPanelError(gqlsperrors.MissingProjectRoot, fmt.Errorf("no workspace folder contains %q", document))
	}

	schema, err := c.schemaLoader.Load(ctx, root)
	if err != nil {
		return nil, gqlsperrors.NewPanelError(gqlsperrors.SchemaLoadFailed, err)
	}
	if schema == nil {
		return nil, gqlsperrors.NewPanelError(gqlsperrors.SchemaUnavailable, fmt.Errorf("no schema found in %q", root))
	}
	return schema, nil
}

// panelFor returns the panel of a session, creating it on first use.
func (c *controller) panelFor(id uuid.UUID) *panelSession {
	c.panelsMu.Lock()
	defer c.panelsMu.Unlock()

	if p, ok := c.panels[id]; ok {
		return p
	}

	p := newPanelSession(c.ideGateway, c.applier, c.logger.With("session", id.String()), c.stats)
	p.subscribe(func() error {
		c.panelsMu.Lock()
		defer c.panelsMu.Unlock()
		if c.panels[id] == p {
			delete(c.panels, id)
		}
		c.stats.Gauge("open_panels").Update(float64(len(c.panels)))
		return nil
	})
	c.panels[id] = p
	c.stats.Gauge("open_panels").Update(float64(len(c.panels)))
	return p
}

func (c *controller) lookupPanel(id uuid.UUID) (*panelSession, bool) {
	c.panelsMu.Lock()
	defer c.panelsMu.Unlock()
	p, ok := c.panels[id]
	return p, ok
}

func (c *controller) disposePanel(ctx context.Context, id uuid.UUID, notifyClient bool) error {
	p, ok := c.lookupPanel(id)
	if !ok {
		return nil
	}
	return p.dispose(ctx, notifyClient)
}

func (c *controller) panelMessage(ctx context.Context, params *entity.PanelMessage, result *entity.PanelMessageResult) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	var res entity.PanelMessageResult
	if p, ok := c.lookupPanel(s.UUID); ok {
		res, err = p.handleMessage(ctx, params)
	} else {
		res, err = messageWithoutPanel(params)
	}
	*result = res

	if err != nil {
		// The rejection is part of the result, the request itself succeeded.
		c.report(ctx, err)
	}
	return nil
}

// panelDidDispose is received when the user closed the panel. It behaves as a cancel.
func (c *controller) panelDidDispose(ctx context.Context, params *entity.PanelDisposeParams) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	return c.disposePanel(ctx, s.UUID, false)
}

func (c *controller) codeLensHandler(ctx context.Context, params *protocol.CodeLensParams, result *[]protocol.CodeLens) error {
	if !c.codeLens {
		return nil
	}

	item, err := c.documents.GetTextDocument(ctx, params.TextDocument)
	if err != nil {
		var notFound *gqlsperrors.DocumentNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	fragments := c.scanner.Extract(scanner.Document{
		Path:       string(item.URI),
		LanguageID: string(item.LanguageID),
		Text:       item.Text,
	})
	*result = append(*result, codeLenses(params.TextDocument, fragments)...)
	return nil
}

// codeLenses returns one lens per fragment, placed at the start of the fragment.
func codeLenses(doc protocol.TextDocumentIdentifier, fragments []fragment.Descriptor) []protocol.CodeLens {
	lenses := make([]protocol.CodeLens, 0, len(fragments))
	for _, f := range fragments {
		title, command := _lensEdit, entity.CommandEdit
		switch {
		case f.Kind == fragment.KindWholeDocument:
			title = _lensEditDocument
		case fragment.IsBlank(f.Content):
			title, command = _lensInsert, entity.CommandInsert
		}

		start := mapper.FragmentToProtocolPosition(f.Start)
		args := entity.CommandArguments{TextDocument: doc, Position: start}
		lenses = append(lenses, mapper.NewCodeLens(mapper.PositionsToRange(start, start), title, command, args))
	}
	return lenses
}

// report shows err to the user and counts it.
func (c *controller) report(ctx context.Context, err error) {
	var pe *gqlsperrors.PanelError
	if !errors.As(err, &pe) {
		c.logger.Errorf("query panel: %v", err)
		c.stats.Tagged(map[string]string{"reason": "internal"}).Counter("rejected").Inc(1)
		if showErr := c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{Type: protocol.MessageTypeError, Message: err.Error()}); showErr != nil {
			c.logger.Errorf("unable to show error: %v", showErr)
		}
		return
	}

	c.stats.Tagged(map[string]string{"reason": string(pe.Kind)}).Counter("rejected").Inc(1)

	messageType, message := protocol.MessageTypeInfo, pe.Message()
	switch pe.Category() {
	case gqlsperrors.CategoryEnvironment, gqlsperrors.CategoryEdit:
		messageType, message = protocol.MessageTypeError, pe.Error()
		c.logger.Errorw("query panel command failed", "kind", pe.Kind, zap.Error(pe))
	case gqlsperrors.CategoryProtocol:
		messageType = protocol.MessageTypeWarning
		c.logger.Warnw("unexpected panel message", "kind", pe.Kind, zap.Error(pe))
	default:
		c.logger.Debugw("query panel command not applicable", "kind", pe.Kind)
	}

	if showErr := c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{Type: messageType, Message: message}); showErr != nil {
		c.logger.Errorf("unable to show message: %v", showErr)
	}
}
