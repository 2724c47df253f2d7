package reconcile

import "github.com/dshills/margin/internal/textsim"

// fileIndex holds per-line data for one version of a source file.
type fileIndex struct {
	lines   []string
	hashes  []string
	corpus  *textsim.Corpus
	windows map[[2]int]textsim.Text
}

func newFileIndex(lines []string) *fileIndex {
	hashes := make([]string, len(lines))
	for i, l := range lines {
		hashes[i] = textsim.HashText(l)
	}
	return &fileIndex{lines: lines, hashes: hashes}
}

// text returns the normalized lines, built on first use since most anchors
// never reach fuzzy matching.
func (f *fileIndex) text() *textsim.Corpus {
	if f.corpus == nil {
		f.corpus = textsim.NewCorpus(f.lines)
	}
	return f.corpus
}

// window returns lines [start, end) prepared for comparison. Windows are
// shared by every anchor reconciled against this file.
func (f *fileIndex) window(start, end int) textsim.Text {
	key := [2]int{start, end}
	if w, ok := f.windows[key]; ok {
		return w
	}
	if f.windows == nil {
		f.windows = make(map[[2]int]textsim.Text)
	}
	w := f.text().Window(start, end)
	f.windows[key] = w
	return w
}

// contextAt returns the hashes of the lines around the 0-based half-open
// window, empty at the file boundaries.
func (f *fileIndex) contextAt(start, end int) (before, after string) {
	if start > 0 {
		before = f.hashes[start-1]
	}
	if end < len(f.hashes) {
		after = f.hashes[end]
	}
	return before, after
}

// boundaryHash returns the hash of 1-based line ln. The virtual lines 0 and
// len+1 hash to the empty string.
func (f *fileIndex) boundaryHash(ln int) string {
	if ln < 1 || ln > len(f.hashes) {
		return ""
	}
	return f.hashes[ln-1]
}

// search returns the 1-based line nearest to center, at most radius away and
// within [lo, hi], whose boundary hash is want. On equal distance the earlier
// line wins.
func (f *fileIndex) search(want string, center, radius, lo, hi int) (int, bool) {
	lo = max(lo, 0)
	hi = min(hi, len(f.hashes)+1)
	for d := 0; d <= radius; d++ {
		for _, ln := range [2]int{center - d, center + d} {
			if ln < lo || ln > hi {
				continue
			}
			if f.boundaryHash(ln) == want {
				return ln, true
			}
			if d == 0 {
				break
			}
		}
	}
	return 0, false
}
