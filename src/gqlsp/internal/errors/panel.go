package errors

import (
	stderr "errors"
	"fmt"
)

// PanelErrorKind names a failure reported while routing a query panel command or applying a panel request.
type PanelErrorKind string

// Kinds of panel errors.
const (
	NoSourcesFound          PanelErrorKind = "NoSourcesFound"
	EmptyRegionForEdit      PanelErrorKind = "EmptyRegionForEdit"
	NonEmptyRegionForInsert PanelErrorKind = "NonEmptyRegionForInsert"
	CursorInsideTag         PanelErrorKind = "CursorInsideTag"
	MissingActiveEditor     PanelErrorKind = "MissingActiveEditor"

	MissingProjectRoot PanelErrorKind = "MissingProjectRoot"
	SchemaUnavailable  PanelErrorKind = "SchemaUnavailable"
	SchemaLoadFailed   PanelErrorKind = "SchemaLoadFailed"
	PanelUnavailable   PanelErrorKind = "PanelUnavailable"

	MissingTargetDocument PanelErrorKind = "MissingTargetDocument"

	EditFailed PanelErrorKind = "EditFailed"
	StaleRange PanelErrorKind = "StaleRange"
)

// PanelErrorCategory groups panel error kinds by how they are reported.
type PanelErrorCategory int

const (
	// CategoryUserPrecondition covers commands invoked in a position where they cannot act.
	CategoryUserPrecondition PanelErrorCategory = iota
	// CategoryEnvironment covers project or schema problems outside the user's cursor.
	CategoryEnvironment
	// CategoryProtocol covers panel messages that arrive in a state where they cannot be honoured.
	CategoryProtocol
	// CategoryEdit covers failures while mutating the bound document.
	CategoryEdit
)

var _panelMessages = map[PanelErrorKind]string{
	NoSourcesFound:          "No GraphQL sources found in the current document.",
	EmptyRegionForEdit:      "The query under the cursor is empty. Use the insert command to create a new query.",
	NonEmptyRegionForInsert: "The cursor is inside a query that is not empty. Use the edit command to change it.",
	CursorInsideTag:         "The cursor is inside a query. Use the edit command to change it, or move the cursor outside of it.",
	MissingActiveEditor:     "No active text editor. Open a document and place the cursor before running this command.",
	MissingProjectRoot:      "Unable to determine the project root for the current document.",
	SchemaUnavailable:       "No GraphQL schema was found for this project.",
	SchemaLoadFailed:        "Failed to load the GraphQL schema.",
	PanelUnavailable:        "Unable to open the query panel.",
	MissingTargetDocument:   "The query panel is not bound to a document. Run the edit or insert command again.",
	EditFailed:              "Unable to apply the edit to the document.",
	StaleRange:              "The document changed since the query was opened. Reopen the query panel and try again.",
}

// PanelError is a typed failure of the query panel workflow.
type PanelError struct {
	Kind PanelErrorKind
	// Detail carries diagnostic information that is surfaced alongside the message, such as a schema parse error.
	Detail string
	Err    error
}

// NewPanelError returns a PanelError of the given kind wrapping err, which may be nil.
func NewPanelError(kind PanelErrorKind, err error) *PanelError {
	pe := &PanelError{Kind: kind, Err: err}
	if err != nil {
		pe.Detail = err.Error()
	}
	return pe
}

// Error is an implementation of the error interface.
func (e *PanelError) Error() string {
	if e.Detail == "" {
		return e.Message()
	}
	return fmt.Sprintf("%s %s", e.Message(), e.Detail)
}

// Unwrap returns the underlying error.
func (e *PanelError) Unwrap() error {
	return e.Err
}

// Message returns the user facing message for this error's kind.
func (e *PanelError) Message() string {
	if msg, ok := _panelMessages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

// Category returns how the error should be reported.
func (e *PanelError) Category() PanelErrorCategory {
	switch e.Kind {
	case MissingProjectRoot, SchemaUnavailable, SchemaLoadFailed, PanelUnavailable:
		return CategoryEnvironment
	case MissingTargetDocument:
		return CategoryProtocol
	case EditFailed, StaleRange:
		return CategoryEdit
	default:
		return CategoryUserPrecondition
	}
}

// PanelErrorKindOf returns the kind of the first PanelError in the error chain.
func PanelErrorKindOf(e error) (_ PanelErrorKind, ok bool) {
	var pe *PanelError
	if !stderr.As(e, &pe) {
		return "", false
	}
	return pe.Kind, true
}

// IsPanelError reports whether a PanelError of the given kind is part of the error chain.
func IsPanelError(e error, kind PanelErrorKind) bool {
	k, ok := PanelErrorKindOf(e)
	return ok && k == kind
}
