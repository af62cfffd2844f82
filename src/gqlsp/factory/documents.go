package factory

import (
	"fmt"
	"strings"

	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// TextDocumentItem returns an opened document with the given path and text.
// The language is derived from the extension.
func TextDocumentItem(path string, text string) protocol.TextDocumentItem {
	languageID := protocol.TypeScriptLanguage
	switch {
	case strings.HasSuffix(path, ".graphql"), strings.HasSuffix(path, ".gql"):
		languageID = "graphql"
	case strings.HasSuffix(path, ".js"):
		languageID = protocol.JavaScriptLanguage
	}
	return protocol.TextDocumentItem{
		URI:        uri.File(path),
		LanguageID: languageID,
		Version:    1,
		Text:       text,
	}
}

// SourceWithQueries returns TypeScript source with one gql tagged template per query.
// Each template starts on its own line and occupies len(lines of query)+2 lines.
func SourceWithQueries(queries ...string) string {
	var b strings.Builder
	b.WriteString("import { gql } from 'graphql-tag';\n")
	for i, q := range queries {
		fmt.Fprintf(&b, "const q%d = gql`\n%s\n`;\n", i, q)
	}
	return b.String()
}

// TaggedRegion returns a region spanning startLine to endLine.
func TaggedRegion(startLine, endLine uint32, content string) fragment.Descriptor {
	return fragment.Descriptor{
		Kind:    fragment.KindTaggedRegion,
		Start:   fragment.Position{Line: startLine, Character: 14},
		End:     fragment.Position{Line: endLine, Character: 0},
		Content: content,
		Tag:     "gql",
	}
}

// WholeDocument returns a whole document fragment with content.
func WholeDocument(content string) fragment.Descriptor {
	return fragment.Descriptor{Kind: fragment.KindWholeDocument, Content: content}
}
