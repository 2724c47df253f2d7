package model

import (
	"strings"

	"github.com/dshills/margin/internal/textsim"
)

// NewAnchor builds an anchor over lines[start-1:end] of a file. Line numbers
// are 1-based and inclusive.
func NewAnchor(lines []string, start, end int) (Anchor, error) {
	if start < 1 || end < start {
		return Anchor{}, invalid("anchor", "invalid line range %d-%d", start, end)
	}
	if end > len(lines) {
		return Anchor{}, invalid("anchor", "line range %d-%d exceeds file length (%d lines)", start, end, len(lines))
	}
	region := lines[start-1 : end]
	before, after := ContextHashes(lines, start, end)
	return Anchor{
		StartLine:         start,
		EndLine:           end,
		ContentHash:       textsim.HashLines(region),
		ContextBeforeHash: before,
		ContextAfterHash:  after,
		Snippet:           strings.Join(region, "\n"),
		Health:            HealthAnchored,
		DriftDistance:     0,
	}, nil
}

// ContextHashes returns the hashes of the lines immediately before and after
// the 1-based inclusive range. A side that falls outside the file hashes to
// the empty string.
func ContextHashes(lines []string, start, end int) (before, after string) {
	if start-2 >= 0 && start-2 < len(lines) {
		before = textsim.HashText(lines[start-2])
	}
	if end >= 0 && end < len(lines) {
		after = textsim.HashText(lines[end])
	}
	return before, after
}

// LineCount returns the number of lines covered by the anchor.
func (a Anchor) LineCount() int {
	return a.EndLine - a.StartLine + 1
}

// Placement returns the anchor's current placement.
func (a Anchor) Placement() Placement {
	return Placement{
		StartLine:     a.StartLine,
		EndLine:       a.EndLine,
		Health:        a.Health,
		DriftDistance: a.DriftDistance,
	}
}

// Place replaces the anchor's placement. Health and drift distance always
// change together; an orphaned placement keeps the previous line range and
// resets drift to zero.
func (a *Anchor) Place(p Placement) {
	if p.Health == HealthOrphaned {
		a.Health = HealthOrphaned
		a.DriftDistance = 0
		return
	}
	a.StartLine = p.StartLine
	a.EndLine = p.EndLine
	a.Health = p.Health
	a.DriftDistance = p.DriftDistance
}

// SnippetLines returns the snippet split into lines.
func (a Anchor) SnippetLines() []string {
	return strings.Split(a.Snippet, "\n")
}
