// Package scanner extracts embedded query fragments from source documents.
package scanner

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
)

const _commentTag = "GraphQL"

var (
	_defaultTags                    = []string{"gql", "graphql"}
	_defaultWholeDocumentLanguages  = []string{"graphql"}
	_defaultWholeDocumentExtensions = []string{".graphql", ".gql", ".graphqls"}
)

// Document is the minimal view of a text document needed for extraction.
type Document struct {
	// Path is the file system path or URI of the document. Only its extension is used.
	Path       string
	LanguageID string
	Text       string
}

// Options configure which documents are treated as whole fragments and which template tags introduce a region.
type Options struct {
	Tags                    []string `yaml:"tags"`
	WholeDocumentLanguages  []string `yaml:"wholeDocumentLanguages"`
	WholeDocumentExtensions []string `yaml:"wholeDocumentExtensions"`
}

// FragmentScanner returns the ordered fragments of a document.
type FragmentScanner interface {
	Extract(doc Document) []fragment.Descriptor
}

// Scanner finds tagged template literals (gql`...`, /* GraphQL */ `...`) in source files,
// and treats GraphQL documents as a single whole document fragment.
type Scanner struct {
	tags       map[string]struct{}
	languages  map[string]struct{}
	extensions map[string]struct{}
}

// New creates a Scanner, applying defaults for any empty option.
func New(opts Options) *Scanner {
	if len(opts.Tags) == 0 {
		opts.Tags = _defaultTags
	}
	if len(opts.WholeDocumentLanguages) == 0 {
		opts.WholeDocumentLanguages = _defaultWholeDocumentLanguages
	}
	if len(opts.WholeDocumentExtensions) == 0 {
		opts.WholeDocumentExtensions = _defaultWholeDocumentExtensions
	}

	return &Scanner{
		tags:       toSet(opts.Tags, false),
		languages:  toSet(opts.WholeDocumentLanguages, true),
		extensions: toSet(opts.WholeDocumentExtensions, true),
	}
}

// Extract returns the fragments found in doc, in ascending order. The result may be empty.
func (s *Scanner) Extract(doc Document) []fragment.Descriptor {
	if s.isWholeDocument(doc) {
		return []fragment.Descriptor{{
			Kind:    fragment.KindWholeDocument,
			Content: doc.Text,
		}}
	}

	spans := s.findTaggedTemplates(doc.Text)
	if len(spans) == 0 {
		return nil
	}

	idx := newLineIndex(doc.Text)
	result := make([]fragment.Descriptor, 0, len(spans))
	for _, sp := range spans {
		result = append(result, fragment.Descriptor{
			Kind:    fragment.KindTaggedRegion,
			Start:   idx.position(sp.start),
			End:     idx.position(sp.end),
			Content: doc.Text[sp.start:sp.end],
			Tag:     sp.tag,
		})
	}
	return result
}

func (s *Scanner) isWholeDocument(doc Document) bool {
	if _, ok := s.languages[strings.ToLower(doc.LanguageID)]; ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(doc.Path))
	if ext == "" {
		return false
	}
	_, ok := s.extensions[ext]
	return ok
}

// span is a byte range [start, end) of template literal content.
type span struct {
	start int
	end   int
	tag   string
}

// findTaggedTemplates walks the text once, skipping comments and string literals so that
// backticks inside them are not mistaken for templates.
func (s *Scanner) findTaggedTemplates(text string) []span {
	var (
		result      []span
		pendingTag  string
		identStart  = -1
		commentMark bool
	)

	i := 0
	for i < len(text) {
		c := text[i]

		switch {
		case isIdentByte(c):
			if identStart < 0 {
				identStart = i
			}
			i++
			continue

		case identStart >= 0:
			// End of an identifier.
			word := text[identStart:i]
			identStart = -1
			commentMark = false
			if _, ok := s.tags[word]; ok {
				pendingTag = word
			} else {
				pendingTag = ""
			}
			continue
		}

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				return result
			}
			i += end
			pendingTag = ""
			commentMark = false

		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return result
			}
			body := strings.TrimSpace(text[i+2 : i+2+end])
			i += end + 4
			pendingTag = ""
			commentMark = strings.EqualFold(body, _commentTag)

		case c == '\'' || c == '"':
			i = skipQuoted(text, i)
			pendingTag = ""
			commentMark = false

		case c == '`':
			tag := pendingTag
			if tag == "" && commentMark {
				tag = _commentTag
			}
			contentEnd, next, ok := scanTemplate(text, i+1)
			if !ok {
				return result
			}
			if tag != "" {
				result = append(result, span{start: i + 1, end: contentEnd, tag: tag})
			}
			i = next
			pendingTag = ""
			commentMark = false

		default:
			i++
			pendingTag = ""
			commentMark = false
		}
	}
	return result
}

// scanTemplate returns the offset of the closing backtick of a template literal whose content begins at start,
// and the offset just past it. Substitutions are skipped by tracking brace depth.
func scanTemplate(text string, start int) (contentEnd int, next int, ok bool) {
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '$':
			if depth == 0 && i+1 < len(text) && text[i+1] == '{' {
				depth = 1
				i++
			}
		case '{':
			if depth > 0 {
				depth++
			}
		case '}':
			if depth > 0 {
				depth--
			}
		case '`':
			if depth == 0 {
				return i, i + 1, true
			}
			// Nested template inside a substitution.
			_, after, nestedOK := scanTemplate(text, i+1)
			if !nestedOK {
				return 0, 0, false
			}
			i = after - 1
		}
	}
	return 0, 0, false
}

// skipQuoted returns the offset just past the string literal opened at start.
// Unterminated literals end at the next newline.
func skipQuoted(text string, start int) int {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			return i
		}
	}
	return len(text)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c >= utf8.RuneSelf
}

func toSet(values []string, lower bool) map[string]struct{} {
	result := make(map[string]struct{}, len(values))
	for _, v := range values {
		if lower {
			v = strings.ToLower(v)
		}
		result[v] = struct{}{}
	}
	return result
}
