package querypanel

import (
	"context"
	"errors"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	docsync "github.com/uber/gql-panel-lsp/src/gqlsp/controller/doc-sync"
	ideclient "github.com/uber/gql-panel-lsp/src/gqlsp/gateway/ide-client"
	gqlsperrors "github.com/uber/gql-panel-lsp/src/gqlsp/internal/errors"
	protocolmapper "github.com/uber/gql-panel-lsp/src/gqlsp/internal/protocol"
	"github.com/uber/gql-panel-lsp/src/gqlsp/mapper"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

const (
	_labelInsert  = "Insert GraphQL query"
	_labelReplace = "Update GraphQL query"
)

// StaleRangePolicy decides what happens to a replace whose range extends past the end of the current document.
type StaleRangePolicy string

const (
	// StaleRangeClamp moves the range inside the document and applies the edit with a warning.
	StaleRangeClamp StaleRangePolicy = "clamp"
	// StaleRangeReject fails the edit with a StaleRange error.
	StaleRangeReject StaleRangePolicy = "reject"
)

// Edit is a single insert or replace requested by the panel.
// Exactly one of Position and Target is set.
type Edit struct {
	Position *fragment.Position
	Target   *fragment.Descriptor
	Content  string
}

// InsertEdit inserts content at position without deleting anything.
func InsertEdit(position fragment.Position, content string) Edit {
	return Edit{Position: &position, Content: content}
}

// ReplaceEdit replaces target with content. A tagged region is replaced using the range captured when it was scanned.
func ReplaceEdit(target fragment.Descriptor, content string) Edit {
	return Edit{Target: &target, Content: content}
}

// Range returns the range the edit replaces within text.
// A whole document target covers (0,0) up to the start of the line after the last line, so that it replaces
// everything even if the document shrank since it was scanned.
func (e Edit) Range(text string) protocol.Range {
	switch {
	case e.Position != nil:
		p := mapper.FragmentToProtocolPosition(*e.Position)
		return mapper.PositionsToRange(p, p)
	case e.Target.IsWholeDocument():
		lines := protocolmapper.NewTextOffsetMapper([]byte(text)).LineCount()
		return mapper.PositionsToRange(protocol.Position{}, protocol.Position{Line: uint32(lines)})
	default:
		return mapper.DescriptorRange(*e.Target)
	}
}

func (e Edit) label() string {
	if e.Position != nil {
		return _labelInsert
	}
	return _labelReplace
}

// editApplier foregrounds the bound document and then applies an edit to it as a single workspace edit.
type editApplier struct {
	documents  docsync.Controller
	ideGateway ideclient.Gateway
	logger     *zap.SugaredLogger
	stats      tally.Scope
	policy     StaleRangePolicy
}

// apply returns nil only if the client reports that the whole edit was applied.
func (a *editApplier) apply(ctx context.Context, doc protocol.TextDocumentIdentifier, e Edit) error {
	if e.Position == nil && e.Target == nil {
		return gqlsperrors.NewPanelError(gqlsperrors.EditFailed, errors.New("edit has neither a position nor a target"))
	}

	editRange, err := a.targetRange(ctx, doc, e)
	if err != nil {
		a.stats.Counter("edits_failed").Inc(1)
		return err
	}

	// The document is brought to the foreground before it is changed.
	shown, err := a.ideGateway.ShowDocument(ctx, &protocol.ShowDocumentParams{URI: doc.URI, TakeFocus: true})
	if err != nil {
		a.logger.Warnf("unable to show %q before editing it: %v", doc.URI, err)
	} else if !shown.Success {
		a.logger.Warnf("client did not show %q before editing it", doc.URI)
	}

	resp, err := a.ideGateway.ApplyEdit(ctx, mapper.SingleEditToApplyWorkspaceEditParams(e.label(), doc, editRange, e.Content))
	if err != nil {
		a.stats.Counter("edits_failed").Inc(1)
		return gqlsperrors.NewPanelError(gqlsperrors.EditFailed, err)
	}
	if !resp.Applied {
		a.stats.Counter("edits_failed").Inc(1)
		reason := resp.FailureReason
		if reason == "" {
			reason = "the client did not apply the edit"
		}
		return gqlsperrors.NewPanelError(gqlsperrors.EditFailed, errors.New(reason))
	}

	a.stats.Counter("edits_applied").Inc(1)
	return nil
}

// targetRange resolves the edit range against the mirrored text of the document.
func (a *editApplier) targetRange(ctx context.Context, doc protocol.TextDocumentIdentifier, e Edit) (protocol.Range, error) {
	item, err := a.documents.GetTextDocument(ctx, doc)
	if err != nil {
		var notFound *gqlsperrors.DocumentNotFoundError
		if !errors.As(err, &notFound) {
			return protocol.Range{}, gqlsperrors.NewPanelError(gqlsperrors.EditFailed, err)
		}

		// The end of a whole document replace is only known from the live text.
		if e.Target.IsWholeDocument() {
			a.stats.Counter("stale_ranges").Inc(1)
			return protocol.Range{}, gqlsperrors.NewPanelError(gqlsperrors.StaleRange,
				fmt.Errorf("document %q is not open, so its current end is unknown", doc.URI))
		}

		// The client still applies edits to closed documents, but there is nothing to validate against.
		a.logger.Debugf("document %q is not open, skipping stale range check", doc.URI)
		return e.Range(""), nil
	}

	return a.checkStaleness(ctx, item.Text, e)
}

// checkStaleness compares the captured range of a replace with the current text.
// Ranges past the end of the document are clamped or rejected depending on the policy.
// Content that no longer matches is reported but still replaced.
func (a *editApplier) checkStaleness(ctx context.Context, text string, e Edit) (protocol.Range, error) {
	r := e.Range(text)
	if e.Target.IsWholeDocument() {
		return r, nil
	}

	m := protocolmapper.NewTextOffsetMapper([]byte(text))
	start, startMoved := m.ClampPosition(r.Start)
	end, endMoved := m.ClampPosition(r.End)
	if startMoved || endMoved {
		a.stats.Counter("stale_ranges").Inc(1)
		if a.policy == StaleRangeReject {
			return protocol.Range{}, gqlsperrors.NewPanelError(gqlsperrors.StaleRange,
				fmt.Errorf("range %d:%d-%d:%d is outside of the document, which ends at %d:%d",
					r.Start.Line, r.Start.Character, r.End.Line, r.End.Character, m.EndPosition().Line, m.EndPosition().Character))
		}

		clamped := mapper.PositionsToRange(start, end)
		a.warn(ctx, fmt.Sprintf("The document changed since the query was opened. The edit was moved to %d:%d-%d:%d.",
			clamped.Start.Line, clamped.Start.Character, clamped.End.Line, clamped.End.Character))
		r = clamped
	}

	if e.Target == nil {
		return r, nil
	}
	current, err := textInRange(m, r)
	if err != nil {
		return protocol.Range{}, gqlsperrors.NewPanelError(gqlsperrors.EditFailed, err)
	}
	if current != e.Target.Content {
		a.stats.Counter("stale_ranges").Inc(1)
		a.warn(ctx, "The query in the document changed since it was opened and will be overwritten: "+diffSummary(e.Target.Content, current))
	}
	return r, nil
}

func (a *editApplier) warn(ctx context.Context, message string) {
	a.logger.Warn(message)
	if err := a.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{Type: protocol.MessageTypeWarning, Message: message}); err != nil {
		a.logger.Errorf("unable to show warning: %v", err)
	}
}

func textInRange(m *protocolmapper.TextOffsetMapper, r protocol.Range) (string, error) {
	start, err := m.PositionOffset(r.Start)
	if err != nil {
		return "", err
	}
	end, err := m.PositionOffset(r.End)
	if err != nil {
		return "", err
	}
	if end < start {
		return "", fmt.Errorf("range end %v precedes start %v", r.End, r.Start)
	}
	return string(m.Content[start:end]), nil
}

// diffSummary describes how current differs from captured.
func diffSummary(captured, current string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(captured, current, false))

	removed, added := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			removed += len([]rune(d.Text))
		case diffmatchpatch.DiffInsert:
			added += len([]rune(d.Text))
		}
	}
	return fmt.Sprintf("%d characters removed, %d added (edit distance %d).", removed, added, dmp.DiffLevenshtein(diffs))
}
