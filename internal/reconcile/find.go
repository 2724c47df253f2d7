package reconcile

import (
	"strings"

	"github.com/dshills/margin/internal/textsim"
)

// Range is a 1-based inclusive line range.
type Range struct {
	Start int
	End   int
}

// FindText returns every line range in which text occurs. A single-line text
// matches any line containing it. A multi-line text must end its first line,
// match the middle lines exactly and begin its last line. Matching is
// case-sensitive on canonical text; at most one range is reported per start
// line.
func FindText(lines []string, text string) []Range {
	want := textsim.SplitLines(text)
	if len(want) == 0 || strings.TrimSpace(strings.Join(want, "")) == "" {
		return nil
	}
	m := len(want)
	var out []Range
	for s := 0; s+m <= len(lines); s++ {
		if m == 1 {
			if strings.Contains(lines[s], want[0]) {
				out = append(out, Range{Start: s + 1, End: s + 1})
			}
			continue
		}
		if !strings.HasSuffix(lines[s], want[0]) || !strings.HasPrefix(lines[s+m-1], want[m-1]) {
			continue
		}
		ok := true
		for j := 1; j < m-1; j++ {
			if lines[s+j] != want[j] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, Range{Start: s + 1, End: s + m})
		}
	}
	return out
}
