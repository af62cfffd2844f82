// This file includes a selection of byte offset conversion methods from the gopls "protocol" package.
// Based on the following: https://github.com/golang/tools/blob/67d73b2960c82b2c8db0b9d0694c66a789a1db11/gopls/internal/lsp/protocol/mapper.go

// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
// License Revision: https://github.com/golang/tools/blob/67d73b2960c82b2c8db0b9d0694c66a789a1db11/LICENSE

// Package protocol converts between LSP positions, which count UTF-16 code units, and byte offsets.
package protocol

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// TextOffsetMapper converts positions within a single immutable text.
type TextOffsetMapper struct {
	Content []byte

	linesOnce sync.Once
	// lineStart[i] is the byte offset of the first byte of line i.
	lineStart []int
}

// NewTextOffsetMapper creates a mapper for content.
func NewTextOffsetMapper(content []byte) *TextOffsetMapper {
	return &TextOffsetMapper{Content: content}
}

func (m *TextOffsetMapper) initLines() {
	m.linesOnce.Do(func() {
		m.lineStart = []int{0}
		for offset, b := range m.Content {
			if b == '\n' {
				m.lineStart = append(m.lineStart, offset+1)
			}
		}
	})
}

// LineCount returns the number of lines. A trailing newline starts a final empty line.
func (m *TextOffsetMapper) LineCount() int {
	m.initLines()
	return len(m.lineStart)
}

// EndPosition returns the position just past the last character of the content.
func (m *TextOffsetMapper) EndPosition() protocol.Position {
	m.initLines()
	last := len(m.lineStart) - 1
	return protocol.Position{
		Line:      uint32(last),
		Character: uint32(UTF16Len(m.Content[m.lineStart[last]:])),
	}
}

// PositionOffset converts p to a byte offset. It fails for positions outside of the content,
// except for the start of the line following the last line, which maps to the end of the content.
func (m *TextOffsetMapper) PositionOffset(p protocol.Position) (int, error) {
	m.initLines()

	lines := uint32(len(m.lineStart))
	switch {
	case p.Line > lines:
		return 0, fmt.Errorf("line number %d out of range 0-%d", p.Line, lines)
	case p.Line == lines:
		if p.Character == 0 {
			return len(m.Content), nil
		}
		return 0, fmt.Errorf("column is beyond end of file")
	}

	offset, ok, err := m.columnOffset(p)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("column %d is beyond end of line %d", p.Character, p.Line)
	}
	return offset, nil
}

// ClampPosition returns the nearest position to p that lies within the content, and whether p had to be moved.
func (m *TextOffsetMapper) ClampPosition(p protocol.Position) (protocol.Position, bool) {
	m.initLines()

	if int(p.Line) >= len(m.lineStart) {
		end := m.EndPosition()
		return end, end != p
	}

	if _, ok, err := m.columnOffset(p); ok && err == nil {
		return p, false
	}

	start := m.lineStart[p.Line]
	end := len(m.Content)
	if int(p.Line)+1 < len(m.lineStart) {
		end = m.lineStart[p.Line+1] - 1
	}
	if end > start && m.Content[end-1] == '\r' {
		end--
	}
	return protocol.Position{Line: p.Line, Character: uint32(UTF16Len(m.Content[start:end]))}, true
}

// OffsetPosition converts a byte offset to a position.
func (m *TextOffsetMapper) OffsetPosition(offset int) (protocol.Position, error) {
	if offset < 0 || offset > len(m.Content) {
		return protocol.Position{}, fmt.Errorf("invalid offset %d (want 0-%d)", offset, len(m.Content))
	}
	m.initLines()

	line := sort.Search(len(m.lineStart), func(i int) bool {
		return offset < m.lineStart[i]
	}) - 1
	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(UTF16Len(m.Content[m.lineStart[line]:offset])),
	}, nil
}

// columnOffset walks line p.Line until p.Character UTF-16 units have been consumed.
// ok is false when the line ends first.
func (m *TextOffsetMapper) columnOffset(p protocol.Position) (offset int, ok bool, err error) {
	offset = m.lineStart[p.Line]
	for col := uint32(0); col < p.Character; col++ {
		r, size := utf8.DecodeRune(m.Content[offset:])
		switch {
		case size == 0, r == '\n':
			return 0, false, nil
		case r == utf8.RuneError && size == 1:
			return 0, false, fmt.Errorf("invalid UTF-8 at offset %d", offset)
		}
		if r >= 0x10000 {
			col++
			if col == p.Character {
				// Position splits a surrogate pair; keep it before the rune.
				break
			}
		}
		offset += size
	}
	return offset, true, nil
}

// UTF16Len returns the number of code units in the UTF-16 encoding of s.
func UTF16Len(s []byte) int {
	n := 0
	for len(s) > 0 {
		if s[0] < utf8.RuneSelf {
			n++
			s = s[1:]
			continue
		}
		r, size := utf8.DecodeRune(s)
		n++
		if r >= 0x10000 {
			n++
		}
		s = s[size:]
	}
	return n
}
