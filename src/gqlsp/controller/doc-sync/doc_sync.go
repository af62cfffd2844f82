// Package docsync mirrors the text of the documents each client has open.
package docsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	gqlspplugin "github.com/uber/gql-panel-lsp/src/gqlsp/entity/gqlsp-plugin"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"github.com/uber/gql-panel-lsp/src/gqlsp/repository/session"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey        = "doc-sync"
	_maxFileSizeKey = "maxFileSizeBytes"
)

//go:generate mockgen -source=doc_sync.go -destination=docsyncmock/doc_sync_mock.go -package=docsyncmock

// Controller defines the interface for a document sync controller.
type Controller interface {
	StartupInfo(ctx context.Context) (gqlspplugin.PluginInfo, error)

	// GetTextDocument returns the text document as of the last received didChange.
	GetTextDocument(ctx context.Context, doc protocol.TextDocumentIdentifier) (protocol.TextDocumentItem, error)
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions session.Repository
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
	Config   config.Provider
}

type documentStoreEntry struct {
	Document protocol.TextDocumentItem
	// Dirty is set by didChange and cleared by didSave.
	Dirty bool
}

type documentStore map[uuid.UUID]map[protocol.TextDocumentIdentifier]*documentStoreEntry

type controller struct {
	sessions         session.Repository
	logger           *zap.SugaredLogger
	documents        documentStore
	documentsMu      sync.RWMutex
	stats            tally.Scope
	maxFileSizeBytes int64
}

// New creates a new controller for document sync.
func New(p Params) Controller {
	var maxFileSizeBytes int64
	if err := p.Config.Get(_maxFileSizeKey).Populate(&maxFileSizeBytes); err != nil || maxFileSizeBytes == 0 {
		panic(fmt.Errorf("unable to get maximum file size from config: %v", err))
	}

	c := &controller{
		sessions:         p.Sessions,
		logger:           p.Logger.With("plugin", _nameKey),
		documents:        make(documentStore),
		stats:            p.Stats.SubScope("doc_sync"),
		maxFileSizeBytes: maxFileSizeBytes,
	}
	defer c.updateMetrics()
	return c
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (gqlspplugin.PluginInfo, error) {
	// Documents must be mirrored before any other plugin reads them.
	priorities := map[string]gqlspplugin.Priority{
		protocol.MethodInitialize: gqlspplugin.PriorityHigh,
		protocol.MethodShutdown:   gqlspplugin.PriorityAsync,

		protocol.MethodTextDocumentDidOpen:   gqlspplugin.PriorityHigh,
		protocol.MethodTextDocumentDidChange: gqlspplugin.PriorityHigh,
		protocol.MethodTextDocumentDidClose:  gqlspplugin.PriorityAsync,
		protocol.MethodTextDocumentDidSave:   gqlspplugin.PriorityHigh,
		gqlspplugin.MethodEndSession:         gqlspplugin.PriorityRegular,
	}

	methods := &gqlspplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize: c.initialize,
		Shutdown:   c.shutdown,

		DidOpen:   c.didOpen,
		DidChange: c.didChange,
		DidClose:  c.didClose,
		DidSave:   c.didSave,

		EndSession: c.endSession,
	}

	return gqlspplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) GetTextDocument(ctx context.Context, doc protocol.TextDocumentIdentifier) (protocol.TextDocumentItem, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return protocol.TextDocumentItem{}, err
	}

	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	docs, ok := c.documents[s.UUID]
	if !ok {
		return protocol.TextDocumentItem{}, &gqlsperrors.UUIDNotFoundError{UUID: s.UUID}
	}

	entry, ok := docs[doc]
	if !ok {
		return protocol.TextDocumentItem{}, &gqlsperrors.DocumentNotFoundError{Document: doc}
	}
	return entry.Document, nil
}

// initialize adds an entry to keep track of this session's documents.
func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]*documentStoreEntry)
	return nil
}

// shutdown removes this session's documents.
func (c *controller) shutdown(ctx context.Context) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.disposeSession(s.UUID)
	return nil
}

// endSession removes this session's documents in case no shutdown request was received.
func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	defer c.updateMetrics()
	c.disposeSession(id)
	return nil
}

// didOpen stores the initial contents of a newly opened document.
func (c *controller) didOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	if c.documents[s.UUID] == nil {
		return &gqlsperrors.UUIDNotFoundError{UUID: s.UUID}
	}

	if err := c.validateSize(params.TextDocument.Text); err != nil {
		// Oversized documents are expected. Later commands on them report DocumentNotFoundError.
		c.logger.Warnf("unable to track open document %q: %v", params.TextDocument.URI, err)
		return nil
	}

	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: params.TextDocument.URI}] = &documentStoreEntry{Document: params.TextDocument}
	return nil
}

// didChange applies incremental changes to the mirrored text.
func (c *controller) didChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("adding changes to document: %w", err)
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()

	id := params.TextDocument.TextDocumentIdentifier
	entry, ok := c.documents[s.UUID][id]
	if !ok {
		return fmt.Errorf("adding changes to document: %w", &gqlsperrors.DocumentNotFoundError{Document: id})
	}

	doc := entry.Document
	doc.Text, err = mapper.ApplyContentChanges(doc.Text, params.ContentChanges)
	if err != nil {
		return fmt.Errorf("adding changes to document %q: %w", id.URI, err)
	}
	if err := c.validateSize(doc.Text); err != nil {
		// The mirror would be incomplete from here on, so stop tracking the document.
		delete(c.documents[s.UUID], id)
		return fmt.Errorf("adding changes to document %q: %w", id.URI, err)
	}
	doc.Version = params.TextDocument.Version

	c.documents[s.UUID][id] = &documentStoreEntry{Document: doc, Dirty: true}
	return nil
}

// didClose deletes the entry for a closed document.
func (c *controller) didClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	delete(c.documents[s.UUID], params.TextDocument)
	return nil
}

// didSave reconciles the mirrored text with the saved text, when the client includes it.
func (c *controller) didSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	defer c.updateMetrics()
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()

	entry, ok := c.documents[s.UUID][params.TextDocument]
	if !ok {
		return &gqlsperrors.DocumentNotFoundError{Document: params.TextDocument}
	}

	doc := entry.Document
	if params.Text != "" && params.Text != doc.Text {
		c.logger.Debugf("saved text of %q differs from mirror, replacing it", doc.URI)
		doc.Text = params.Text
	}
	c.documents[s.UUID][params.TextDocument] = &documentStoreEntry{Document: doc}
	return nil
}

func (c *controller) disposeSession(id uuid.UUID) {
	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	delete(c.documents, id)
}

func (c *controller) updateMetrics() {
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	openDocs := 0
	openBytes := 0
	dirtyDocs := 0
	for _, sessionDocs := range c.documents {
		openDocs += len(sessionDocs)
		for _, entry := range sessionDocs {
			openBytes += len(entry.Document.Text)
			if entry.Dirty {
				dirtyDocs++
			}
		}
	}
	c.stats.Gauge("open_docs").Update(float64(openDocs))
	c.stats.Gauge("open_bytes").Update(float64(openBytes))
	c.stats.Gauge("dirty_docs").Update(float64(dirtyDocs))
}

func (c *controller) validateSize(text string) error {
	if c.maxFileSizeBytes == 0 {
		return fmt.Errorf("max file size is not set")
	}

	size := int64(len(text))
	if size > c.maxFileSizeBytes {
		return &gqlsperrors.DocumentSizeLimitError{Size: size, Limit: c.maxFileSizeBytes}
	}
	return nil
}
