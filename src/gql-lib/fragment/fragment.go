// Package fragment describes embedded query fragments found in a text document
// and selects the fragment that corresponds to a cursor position.
package fragment

import (
	"errors"
	"fmt"
	"unicode"
)

// Kind identifies whether a fragment is an entire document or a bounded region of one.
type Kind string

const (
	// KindWholeDocument indicates that the whole document is a single fragment.
	KindWholeDocument Kind = "WHOLE_DOCUMENT"
	// KindTaggedRegion indicates a fragment delimited by start and end boundaries within a larger document.
	KindTaggedRegion Kind = "TAGGED_REGION"
)

// ErrNoSourcesFound is returned by Locate when a document contains no fragments at all.
var ErrNoSourcesFound = errors.New("no query sources found in document")

// Position is a document relative position. Line and Character are both 0-based,
// with Character counted in UTF-16 code units.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Descriptor identifies a single fragment.
// Start and End are only meaningful for KindTaggedRegion; End is exclusive.
type Descriptor struct {
	Kind    Kind     `json:"kind"`
	Start   Position `json:"start"`
	End     Position `json:"end"`
	Content string   `json:"content"`
	// Tag is the identifier or comment marker that introduced a tagged region.
	Tag string `json:"tag,omitempty"`
}

// IsTaggedRegion reports whether the descriptor is a bounded region within a larger document.
func (d *Descriptor) IsTaggedRegion() bool {
	return d != nil && d.Kind == KindTaggedRegion
}

// IsWholeDocument reports whether the descriptor spans the entire document.
func (d *Descriptor) IsWholeDocument() bool {
	return d != nil && d.Kind == KindWholeDocument
}

// IsBlank reports whether the descriptor's content contains only whitespace.
func (d *Descriptor) IsBlank() bool {
	return d != nil && IsBlank(d.Content)
}

// Locate selects the fragment targeted by the cursor.
//
// A whole document fragment is returned regardless of the cursor. Otherwise the last
// tagged region whose start line is at or before the cursor line is returned, so a
// cursor past the end of a region but before the next region still selects it.
// Only the start line is considered. A nil descriptor is returned when the cursor
// precedes every region.
func Locate(fragments []Descriptor, cursor Position) (*Descriptor, error) {
	if len(fragments) == 0 {
		return nil, ErrNoSourcesFound
	}

	if fragments[0].Kind == KindWholeDocument {
		result := fragments[0]
		return &result, nil
	}

	var found *Descriptor
	for i := range fragments {
		if fragments[i].Kind != KindTaggedRegion {
			continue
		}
		if fragments[i].Start.Line <= cursor.Line {
			result := fragments[i]
			found = &result
		}
	}
	return found, nil
}

// IsBlank reports whether every character in s is whitespace.
func IsBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Validate checks that a fragment sequence is well formed: a whole document fragment
// must be the only entry, and tagged regions must be ascending and non-overlapping.
func Validate(fragments []Descriptor) error {
	for i, f := range fragments {
		switch f.Kind {
		case KindWholeDocument:
			if len(fragments) != 1 {
				return fmt.Errorf("whole document fragment at index %d is not the only fragment", i)
			}
		case KindTaggedRegion:
			if f.End.Before(f.Start) {
				return fmt.Errorf("region %d ends (%s) before it starts (%s)", i, f.End, f.Start)
			}
			if i > 0 && f.Start.Before(fragments[i-1].End) {
				return fmt.Errorf("region %d starting at %s overlaps previous region ending at %s", i, f.Start, fragments[i-1].End)
			}
		default:
			return fmt.Errorf("fragment %d has unknown kind %q", i, f.Kind)
		}
	}
	return nil
}
