package errors

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// DocumentNotFoundError reports a document that is not mirrored for the session,
// either because it was never opened or because it was too large to keep.
type DocumentNotFoundError struct {
	Document protocol.TextDocumentIdentifier
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %s is not open", e.Document.URI)
}

// DocumentSizeLimitError reports a document over the configured maxFileSizeBytes.
type DocumentSizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *DocumentSizeLimitError) Error() string {
	return fmt.Sprintf("document of %d bytes is over the %d byte limit", e.Size, e.Limit)
}
