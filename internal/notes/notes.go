// Package notes formats routine notes.
package notes

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned for a format outside the toolbar's set
var ErrUnknownFormat = errors.New("unknown format")

// Format is a markdown formatting action
type Format string

// Format constants
const (
	Bold       Format = "bold"
	Italic     Format = "italic"
	Heading    Format = "heading"
	Subheading Format = "subheading"
)

// IsValid reports whether f is a known format
func (f Format) IsValid() bool {
	switch f {
	case Bold, Italic, Heading, Subheading:
		return true
	}
	return false
}

// ApplyFormat wraps the runes of text in [start, end) with format.
// Offsets are clamped to the text and swapped if reversed.
func ApplyFormat(text string, start, end int, format Format) (string, error) {
	runes := []rune(text)
	start = clamp(start, 0, len(runes))
	end = clamp(end, 0, len(runes))
	if start > end {
		start, end = end, start
	}

	selected := string(runes[start:end])
	var replaced string
	switch format {
	case Bold:
		replaced = "**" + selected + "**"
	case Italic:
		replaced = "*" + selected + "*"
	case Heading:
		replaced = "# " + selected
	case Subheading:
		replaced = "### " + selected
	default:
		return text, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}

	return string(runes[:start]) + replaced + string(runes[end:]), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
