package scanner

import (
	"sort"
	"unicode/utf8"

	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
)

// lineIndex converts byte offsets into positions with UTF-16 columns.
type lineIndex struct {
	text      string
	lineStart []int
}

func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{text: text, lineStart: starts}
}

func (l *lineIndex) position(offset int) fragment.Position {
	line := sort.Search(len(l.lineStart), func(i int) bool {
		return offset < l.lineStart[i]
	}) - 1

	col := 0
	for s := l.text[l.lineStart[line]:offset]; len(s) > 0; {
		r, size := utf8.DecodeRuneInString(s)
		col++
		if r >= 0x10000 {
			col++
		}
		s = s[size:]
	}
	return fragment.Position{Line: uint32(line), Character: uint32(col)}
}
