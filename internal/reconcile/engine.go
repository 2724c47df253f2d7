package reconcile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/source"
	"github.com/dshills/margin/internal/textsim"
)

// epsilon absorbs float rounding when comparing scores against margins.
const epsilon = 1e-9

// Engine relocates anchors. It holds no per-file state and is safe for
// concurrent use.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New returns an Engine. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts.withDefaults(), logger: logger.With("component", "reconcile")}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// NeedsReconcile reports whether rec is out of date with respect to src. A
// nil src means the source file is gone.
func NeedsReconcile(rec *model.Record, src *source.File) bool {
	if src != nil {
		return rec.SourceHash != src.Hash
	}
	if rec.SourceHash != "" {
		return true
	}
	for _, t := range rec.Threads {
		if t.Anchor.Health != model.HealthOrphaned {
			return true
		}
	}
	return false
}

// Reconcile places every anchor in rec against src and stamps rec with the
// source hash. A nil src means the file no longer exists: every anchor is
// orphaned and the stored hash is cleared.
//
// An anchor that cannot be processed keeps its placement and carries the
// error in its result; the other anchors are unaffected. rec is modified only
// when the returned error is nil.
func (e *Engine) Reconcile(ctx context.Context, rec *model.Record, src *source.File) (*Report, error) {
	report := &Report{
		File:          rec.SourceFile,
		Stale:         NeedsReconcile(rec, src),
		SourceMissing: src == nil,
		PreviousHash:  rec.SourceHash,
		Results:       make([]AnchorResult, 0, len(rec.Threads)),
	}

	var f *fileIndex
	if src != nil {
		report.SourceHash = src.Hash
		f = newFileIndex(src.Lines())
	}

	after := make([]model.Placement, len(rec.Threads))
	for i, t := range rec.Threads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := AnchorResult{ThreadID: t.ID, Before: t.Anchor.Placement()}
		var m match
		if f == nil {
			m = orphan()
		} else {
			var err error
			m, err = e.locate(f, t.Anchor)
			if err != nil {
				res.Phase = PhaseError
				res.After = res.Before
				res.Err = fmt.Errorf("thread %s: %w", t.ID, err)
				after[i] = res.Before
				report.Results = append(report.Results, res)
				e.logger.Warn("anchor skipped", "file", rec.SourceFile, "thread", t.ID, "err", err)
				continue
			}
		}
		// Place applies the orphan rule, so compute the result through a copy.
		a := t.Anchor
		a.Place(m.placement)
		res.Phase = m.phase
		res.After = a.Placement()
		res.Score = m.score
		after[i] = res.After
		report.Results = append(report.Results, res)
		e.logger.Debug("anchor placed",
			"file", rec.SourceFile,
			"thread", t.ID,
			"phase", m.phase,
			"from", res.Before.StartLine,
			"to", res.After.StartLine,
			"health", res.After.Health,
			"score", m.score,
		)
	}

	for i := range rec.Threads {
		rec.Threads[i].Anchor.Place(after[i])
	}
	rec.SourceHash = report.SourceHash

	counts := report.Counts()
	e.logger.Debug("reconciled",
		"file", rec.SourceFile,
		"anchors", len(report.Results),
		"anchored", counts[model.HealthAnchored],
		"drifted", counts[model.HealthDrifted],
		"orphaned", counts[model.HealthOrphaned],
		"missing", report.SourceMissing,
	)
	return report, nil
}

// Locate finds where a single anchor belongs in lines without modifying it.
func (e *Engine) Locate(lines []string, a model.Anchor) (model.Placement, Phase, error) {
	m, err := e.locate(newFileIndex(lines), a)
	if err != nil {
		return a.Placement(), PhaseError, err
	}
	p := a
	p.Place(m.placement)
	return p.Placement(), m.phase, nil
}

type match struct {
	placement model.Placement
	phase     Phase
	score     float64
}

func orphan() match {
	return match{placement: model.Placement{Health: model.HealthOrphaned}, phase: PhaseOrphan}
}

func (e *Engine) locate(f *fileIndex, a model.Anchor) (match, error) {
	if a.StartLine < 1 || a.EndLine < a.StartLine {
		return match{}, fmt.Errorf("invalid line range %d-%d", a.StartLine, a.EndLine)
	}
	if a.ContentHash == "" {
		return match{}, errors.New("anchor has no content hash")
	}
	if len(f.lines) == 0 {
		return orphan(), nil
	}
	n := a.LineCount()

	if m, ok := e.exact(f, a, n); ok {
		return m, nil
	}

	target := textsim.Prepare(a.Snippet)
	if target.Norm == "" {
		// A blank region has nothing to compare.
		return orphan(), nil
	}
	origin := a.StartLine - 1

	if lo, hi, ok := e.contextRegion(f, a); ok {
		sizes := windowSizes(n, hi-lo)
		if c, ok := e.best(f, target, lo, hi, sizes, origin); ok {
			return fuzzyMatch(c, a, PhaseContext), nil
		}
	}

	lo := max(0, origin-e.opts.FuzzyWindow)
	hi := min(len(f.lines), a.EndLine+e.opts.FuzzyWindow)
	if c, ok := e.best(f, target, lo, hi, windowSizes(n, 0), origin); ok {
		return fuzzyMatch(c, a, PhaseFuzzy), nil
	}
	return orphan(), nil
}

// exact finds every occurrence of the anchor's content hash.
func (e *Engine) exact(f *fileIndex, a model.Anchor, n int) (match, bool) {
	first := textsim.HashText(a.SnippetLines()[0])
	var hits []int
	for s := 0; s+n <= len(f.lines); s++ {
		if f.hashes[s] != first {
			continue
		}
		if textsim.HashLines(f.lines[s:s+n]) == a.ContentHash {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 {
		return match{}, false
	}
	if len(hits) == 1 {
		return match{placement: place(hits[0], n, a, model.HealthAnchored), phase: PhaseExact, score: 1}, true
	}

	bestScore := -1
	var best []int
	for _, s := range hits {
		before, after := f.contextAt(s, s+n)
		score := 0
		if before == a.ContextBeforeHash {
			score++
		}
		if after == a.ContextAfterHash {
			score++
		}
		switch {
		case score > bestScore:
			bestScore, best = score, []int{s}
		case score == bestScore:
			best = append(best, s)
		}
	}
	if bestScore > 0 && len(best) == 1 {
		return match{placement: place(best[0], n, a, model.HealthAnchored), phase: PhaseExact, score: 1}, true
	}
	s := nearest(best, a.StartLine-1)
	return match{placement: place(s, n, a, model.HealthDrifted), phase: PhaseExact, score: 1}, true
}

// contextRegion looks for the stored context lines near the last known
// region and returns the 0-based half-open range of lines between them.
//
// Boundaries are 1-based line numbers; 0 and len+1 stand for the start and
// end of the file and match an empty context hash.
func (e *Engine) contextRegion(f *fileIndex, a model.Anchor) (lo, hi int, ok bool) {
	w := e.opts.ContextWindow
	total := len(f.lines)
	p, ok := f.search(a.ContextBeforeHash, a.StartLine-1, w, 0, total-1)
	if !ok {
		return 0, 0, false
	}
	q, ok := f.search(a.ContextAfterHash, a.EndLine+1, w, p+2, total+1)
	if !ok {
		return 0, 0, false
	}
	return p, q - 1, true
}

type candidate struct {
	start, end int // 0-based, half-open
	score      float64
}

func (c candidate) overlaps(o candidate) bool {
	return c.start < o.end && o.start < c.end
}

func distance(start, origin int) int {
	return abs(start - origin)
}

// best fuzzy matches every window of the given sizes inside [lo, hi) and
// applies the tie-break. origin is the 0-based last known start line. Starts
// are visited nearest first so a strong nearby match raises the cutoff early.
func (e *Engine) best(f *fileIndex, target textsim.Text, lo, hi int, sizes []int, origin int) (candidate, bool) {
	threshold, margin := e.opts.Threshold, e.opts.TieMargin
	var cands []candidate
	top := 0.0
	try := func(s int) {
		for _, k := range sizes {
			if s < lo || s+k > hi {
				continue
			}
			floor := max(threshold, top-margin-epsilon)
			sc, ok := textsim.CompareAtLeast(target, f.window(s, s+k), floor)
			if !ok || sc.Combined <= threshold || sc.Combined < top-margin-epsilon {
				continue
			}
			cands = append(cands, candidate{start: s, end: s + k, score: sc.Combined})
			top = max(top, sc.Combined)
		}
	}
	from := min(max(origin, lo), hi)
	for d := 0; from-d >= lo || from+d < hi; d++ {
		try(from - d)
		if d > 0 {
			try(from + d)
		}
	}
	if len(cands) == 0 {
		return candidate{}, false
	}

	slices.SortFunc(cands, func(x, y candidate) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		if c := cmp.Compare(distance(x.start, origin), distance(y.start, origin)); c != 0 {
			return c
		}
		if c := cmp.Compare(x.start, y.start); c != 0 {
			return c
		}
		return cmp.Compare(x.end, y.end)
	})

	leader := cands[0]
	winner := leader
	for _, c := range cands[1:] {
		if leader.score-c.score > margin+epsilon {
			break
		}
		if c.overlaps(leader) {
			continue
		}
		if distance(c.start, origin) < distance(winner.start, origin) {
			winner = c
		}
	}
	return winner, true
}

func fuzzyMatch(c candidate, a model.Anchor, phase Phase) match {
	return match{
		placement: place(c.start, c.end-c.start, a, model.HealthDrifted),
		phase:     phase,
		score:     c.score,
	}
}

// place builds a placement for a 0-based start and a size in lines.
func place(start, size int, a model.Anchor, h model.Health) model.Placement {
	line := start + 1
	return model.Placement{
		StartLine:     line,
		EndLine:       line + size - 1,
		Health:        h,
		DriftDistance: line - a.StartLine,
	}
}

// windowSizes returns the candidate window sizes for an anchor of n lines,
// plus extra when it is positive and not already included.
func windowSizes(n, extra int) []int {
	sizes := make([]int, 0, 4)
	for _, k := range []int{n - 1, n, n + 1, extra} {
		if k >= 1 && !slices.Contains(sizes, k) {
			sizes = append(sizes, k)
		}
	}
	return sizes
}

// nearest returns the element of starts closest to origin, preferring the
// earlier one on ties. starts must be ascending.
func nearest(starts []int, origin int) int {
	best := starts[0]
	for _, s := range starts[1:] {
		if distance(s, origin) < distance(best, origin) {
			best = s
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
