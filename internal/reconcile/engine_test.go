package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/source"
	"github.com/dshills/margin/internal/textsim"
)

// noise returns n distinct lines that are dissimilar to each other and to
// ordinary code.
func noise(n int, seed string) []string {
	lines := make([]string, n)
	for i := range lines {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", seed, i)))
		lines[i] = fmt.Sprintf("v%d = %q", i, hex.EncodeToString(h[:6]))
	}
	return lines
}

func srcOf(lines []string) *source.File {
	data := []byte(strings.Join(lines, "\n") + "\n")
	return &source.File{Path: "a.go", Content: data, Hash: textsim.Hash(data)}
}

func splice(lines []string, at int, insert ...string) []string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	return append(out, lines[at:]...)
}

func remove(lines []string, from, to int) []string {
	out := make([]string, 0, len(lines))
	out = append(out, lines[:from]...)
	return append(out, lines[to:]...)
}

func recordFor(t *testing.T, lines []string, ranges ...[2]int) *model.Record {
	t.Helper()
	rec := model.NewRecord("a.go", srcOf(lines).Hash)
	for _, r := range ranges {
		a, err := model.NewAnchor(lines, r[0], r[1])
		if err != nil {
			t.Fatal(err)
		}
		c, err := model.NewComment("alice", model.AuthorHuman, "look here", model.Now())
		if err != nil {
			t.Fatal(err)
		}
		rec.AddThread(model.NewThread(a, c, model.Now()))
	}
	return rec
}

func reconcileOne(t *testing.T, rec *model.Record, src *source.File) (*Report, model.Anchor) {
	t.Helper()
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, src)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	return report, rec.Threads[0].Anchor
}

func wantPlacement(t *testing.T, a model.Anchor, start, end int, h model.Health, drift int) {
	t.Helper()
	want := model.Placement{StartLine: start, EndLine: end, Health: h, DriftDistance: drift}
	if diff := cmp.Diff(want, a.Placement()); diff != "" {
		t.Errorf("placement mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_Unchanged(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{5, 7}, [2]int{20, 20})
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, srcOf(lines))
	if err != nil {
		t.Fatal(err)
	}
	if report.Stale || report.Changed() {
		t.Errorf("Stale = %v, Changed = %v; want false", report.Stale, report.Changed())
	}
	for _, res := range report.Results {
		if res.Phase != PhaseExact || res.After.Health != model.HealthAnchored {
			t.Errorf("result = %+v", res)
		}
	}
}

func TestReconcile_InsertionAbove(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{10, 12})
	orig := rec.Threads[0].Anchor

	edited := splice(lines, 0, noise(5, "inserted")...)
	report, a := reconcileOne(t, rec, srcOf(edited))

	wantPlacement(t, a, 15, 17, model.HealthAnchored, 5)
	if a.Snippet != orig.Snippet || a.ContentHash != orig.ContentHash || a.ContextBeforeHash != orig.ContextBeforeHash {
		t.Error("anchor signals changed")
	}
	if !report.Stale || report.Results[0].Phase != PhaseExact {
		t.Errorf("report = %+v", report)
	}
	if rec.SourceHash != srcOf(edited).Hash {
		t.Error("source hash not updated")
	}
}

func TestReconcile_DeletionAbove(t *testing.T) {
	lines := noise(40, "base")
	rec := recordFor(t, lines, [2]int{20, 22})

	_, a := reconcileOne(t, rec, srcOf(remove(lines, 2, 7)))
	wantPlacement(t, a, 15, 17, model.HealthAnchored, -5)
}

func TestReconcile_InsertAtLineTen(t *testing.T) {
	lines := noise(100, "base")
	rec := recordFor(t, lines, [2]int{42, 45})

	edited := splice(lines, 9, noise(3, "new")...)
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 45, 48, model.HealthAnchored, 3)
}

func TestReconcile_InsertBelowKeepsPosition(t *testing.T) {
	lines := noise(40, "base")
	rec := recordFor(t, lines, [2]int{10, 12})
	edited := splice(lines, 30, noise(8, "tail")...)
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 10, 12, model.HealthAnchored, 0)
}

func TestReconcile_DeletionOrphans(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{10, 12})
	orig := rec.Threads[0].Anchor

	report, a := reconcileOne(t, rec, srcOf(remove(lines, 9, 12)))
	wantPlacement(t, a, 10, 12, model.HealthOrphaned, 0)
	if a.Snippet != orig.Snippet {
		t.Errorf("Snippet = %q, want %q", a.Snippet, orig.Snippet)
	}
	if report.Results[0].Phase != PhaseOrphan {
		t.Errorf("Phase = %s", report.Results[0].Phase)
	}
}

func TestReconcile_OrphanReanchors(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{10, 12})
	reconcileOne(t, rec, srcOf(remove(lines, 9, 12)))
	if rec.Threads[0].Anchor.Health != model.HealthOrphaned {
		t.Fatal("expected orphan after deletion")
	}

	// The text comes back, further down.
	restored := splice(lines, 0, noise(2, "moved")...)
	_, a := reconcileOne(t, rec, srcOf(restored))
	wantPlacement(t, a, 12, 14, model.HealthAnchored, 2)
}

func TestReconcile_ContextFuzzy(t *testing.T) {
	lines := noise(40, "base")
	lines[19] = "total := computeTotal(items, taxRate)"
	rec := recordFor(t, lines, [2]int{20, 20})

	edited := append([]string(nil), lines...)
	edited[19] = "total := computeTotal(items, taxRate, discount)"
	edited = splice(edited, 3, noise(2, "shift")...)

	report, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 22, 22, model.HealthDrifted, 2)
	res := report.Results[0]
	if res.Phase != PhaseContext {
		t.Errorf("Phase = %s, want context", res.Phase)
	}
	if res.Score <= 0.6 {
		t.Errorf("Score = %v, want > 0.6", res.Score)
	}
}

func TestReconcile_FuzzyWithoutContext(t *testing.T) {
	lines := noise(80, "base")
	lines[29] = "total := computeTotal(items, taxRate)"
	rec := recordFor(t, lines, [2]int{30, 30})

	edited := noise(80, "rewritten")
	edited[49] = "total := computeTotal(items, taxRate, discount)"

	report, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 50, 50, model.HealthDrifted, 20)
	if report.Results[0].Phase != PhaseFuzzy {
		t.Errorf("Phase = %s, want fuzzy", report.Results[0].Phase)
	}
}

func TestReconcile_FuzzyBelowThresholdOrphans(t *testing.T) {
	lines := noise(40, "base")
	lines[19] = "total := computeTotal(items, taxRate)"
	rec := recordFor(t, lines, [2]int{20, 20})

	edited := append([]string(nil), lines...)
	edited[19] = "log.Printf(\"unrelated %d\", n)"
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 20, 20, model.HealthOrphaned, 0)
}

func TestReconcile_ExactTieBreak(t *testing.T) {
	lines := noise(40, "base")
	lines[19] = "return nil"
	rec := recordFor(t, lines, [2]int{20, 20})

	// Two copies, equally far from line 20, neither with the old context.
	edited := noise(40, "other")
	edited[9] = "return nil"
	edited[29] = "return nil"
	report, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 10, 10, model.HealthDrifted, -10)
	if report.Results[0].Phase != PhaseExact {
		t.Errorf("Phase = %s", report.Results[0].Phase)
	}
}

func TestReconcile_ExactContextDisambiguates(t *testing.T) {
	lines := noise(40, "base")
	lines[19] = "return nil"
	rec := recordFor(t, lines, [2]int{20, 20})

	// The copy at line 35 keeps the original line above it; the one at line
	// 21 is nearer but has no matching context.
	edited := noise(40, "other")
	edited[20] = "return nil"
	edited[33] = lines[18]
	edited[34] = "return nil"
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 35, 35, model.HealthAnchored, 15)
}

func TestReconcile_FuzzyTieBreakPrefersNearer(t *testing.T) {
	lines := noise(100, "base")
	lines[49] = "total := computeTotal(items, taxRate)"
	rec := recordFor(t, lines, [2]int{50, 50})

	edited := noise(100, "other")
	edited[19] = "total := computeTotal(items, taxRate, x)"  // farther, marginally better
	edited[69] = "total := computeTotal(items, taxRate, xy)" // nearer
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 70, 70, model.HealthDrifted, 20)
}

func TestReconcile_FuzzyClearWinnerBeatsNearer(t *testing.T) {
	lines := noise(100, "base")
	lines[49] = "total := computeTotal(items, taxRate)"
	rec := recordFor(t, lines, [2]int{50, 50})

	edited := noise(100, "other")
	edited[19] = "total := computeTotal(items, taxRate, x)"
	edited[59] = "total := computeTotal(items, taxRate, discount, shipping, handling)"
	_, a := reconcileOne(t, rec, srcOf(edited))
	wantPlacement(t, a, 20, 20, model.HealthDrifted, -30)
}

func TestReconcile_SourceMissing(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{3, 4}, [2]int{10, 12})
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.SourceMissing || rec.SourceHash != "" {
		t.Errorf("SourceMissing = %v, SourceHash = %q", report.SourceMissing, rec.SourceHash)
	}
	for _, th := range rec.Threads {
		if th.Anchor.Health != model.HealthOrphaned || th.Anchor.DriftDistance != 0 {
			t.Errorf("anchor = %+v, want orphaned", th.Anchor.Placement())
		}
	}
	if NeedsReconcile(rec, nil) {
		t.Error("fully orphaned record should not need another pass")
	}
}

func TestReconcile_BadAnchorIsolated(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{3, 4}, [2]int{10, 12})
	bad := &rec.Threads[0]
	bad.Anchor.ContentHash = ""
	badBefore := bad.Anchor.Placement()

	edited := splice(lines, 0, "// header")
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, srcOf(edited))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Errors()) != 1 {
		t.Fatalf("Errors = %v, want 1", report.Errors())
	}
	if report.Results[0].Phase != PhaseError {
		t.Errorf("Phase = %s", report.Results[0].Phase)
	}
	if got := rec.Threads[0].Anchor.Placement(); got != badBefore {
		t.Errorf("bad anchor moved to %+v", got)
	}
	if got := rec.Threads[1].Anchor; got.StartLine != 11 || got.Health != model.HealthAnchored {
		t.Errorf("sibling = %+v", got.Placement())
	}
}

func TestReconcile_Cancelled(t *testing.T) {
	lines := noise(30, "base")
	rec := recordFor(t, lines, [2]int{10, 12})
	before := rec.Threads[0].Anchor.Placement()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, nil).Reconcile(ctx, rec, srcOf(splice(lines, 0, "x")))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if rec.Threads[0].Anchor.Placement() != before || rec.SourceHash != srcOf(lines).Hash {
		t.Error("record modified by a cancelled pass")
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	lines := noise(60, "base")
	lines[9] = "return nil"
	lines[29] = "total := computeTotal(items, taxRate)"
	edited := noise(60, "other")
	edited[4] = "return nil"
	edited[14] = "return nil"
	edited[40] = "total := computeTotal(items, taxRate, x)"

	var first []model.Placement
	for run := 0; run < 3; run++ {
		rec := recordFor(t, lines, [2]int{10, 10}, [2]int{30, 30})
		if _, err := New(Options{}, nil).Reconcile(context.Background(), rec, srcOf(edited)); err != nil {
			t.Fatal(err)
		}
		var got []model.Placement
		for _, th := range rec.Threads {
			got = append(got, th.Anchor.Placement())
		}
		if run == 0 {
			first = got
			continue
		}
		if diff := cmp.Diff(first, got); diff != "" {
			t.Errorf("run %d differs (-first +got):\n%s", run, diff)
		}
	}
}

func TestReconcile_Performance(t *testing.T) {
	lines := noise(10000, "big")
	var ranges [][2]int
	for i := 0; i < 100; i++ {
		start := 50 + i*95
		ranges = append(ranges, [2]int{start, start + 2})
	}
	rec := recordFor(t, lines, ranges...)

	edited := splice(lines, 0, noise(7, "head")...)
	// Touch a tenth of the anchored regions so they need fuzzy matching.
	for i := 0; i < 100; i += 10 {
		idx := 7 + ranges[i][0] - 1
		edited[idx] += " // reviewed"
	}

	start := time.Now()
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, srcOf(edited))
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("100 anchors over 10,000 lines took %s", elapsed)
	}
	counts := report.Counts()
	if counts[model.HealthOrphaned] != 0 {
		t.Errorf("counts = %v, want no orphans", counts)
	}
	if counts[model.HealthAnchored] != 90 {
		t.Errorf("anchored = %d, want 90", counts[model.HealthAnchored])
	}
}

func TestReconcile_PerformanceRepetitiveEdits(t *testing.T) {
	// Every line shares most of its tokens with every other line, and every
	// line is edited, so no anchor matches exactly or by context.
	lines := make([]string, 10000)
	for i := range lines {
		lines[i] = fmt.Sprintf("result%d := computeTotal(items[%d], taxRate, discount)", i, (i*37)%1000)
	}
	var ranges [][2]int
	for i := 0; i < 100; i++ {
		start := 50 + i*95
		ranges = append(ranges, [2]int{start, start + 2})
	}
	rec := recordFor(t, lines, ranges...)

	edited := make([]string, len(lines))
	for i, l := range lines {
		edited[i] = l + " // x"
	}

	start := time.Now()
	report, err := New(Options{}, nil).Reconcile(context.Background(), rec, srcOf(edited))
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("100 anchors over 10,000 edited lines took %s", elapsed)
	}
	if counts := report.Counts(); counts[model.HealthDrifted] != 100 {
		t.Errorf("counts = %v, want 100 drifted", counts)
	}
	for i, th := range rec.Threads {
		a := th.Anchor
		if a.StartLine != ranges[i][0] || a.EndLine != ranges[i][1] || a.DriftDistance != 0 {
			t.Errorf("thread %d placed at %d-%d (drift %d), want %d-%d", i, a.StartLine, a.EndLine, a.DriftDistance, ranges[i][0], ranges[i][1])
		}
	}
}

func TestLocate(t *testing.T) {
	lines := noise(20, "base")
	a, err := model.NewAnchor(lines, 5, 6)
	if err != nil {
		t.Fatal(err)
	}
	p, phase, err := New(Options{}, nil).Locate(splice(lines, 0, "x", "y"), a)
	if err != nil {
		t.Fatal(err)
	}
	if phase != PhaseExact || p.StartLine != 7 || p.EndLine != 8 {
		t.Errorf("Locate = %+v, %s", p, phase)
	}
	if a.StartLine != 5 {
		t.Error("Locate modified its argument")
	}
}

func TestNeedsReconcile(t *testing.T) {
	lines := noise(5, "base")
	rec := recordFor(t, lines, [2]int{1, 1})
	if NeedsReconcile(rec, srcOf(lines)) {
		t.Error("fresh record reported stale")
	}
	if !NeedsReconcile(rec, srcOf(splice(lines, 0, "x"))) {
		t.Error("edited source not reported stale")
	}
	if !NeedsReconcile(rec, nil) {
		t.Error("missing source not reported stale")
	}
}

func TestWindowSizes(t *testing.T) {
	tests := []struct {
		n, extra int
		want     []int
	}{
		{1, 0, []int{1, 2}},
		{3, 0, []int{2, 3, 4}},
		{3, 3, []int{2, 3, 4}},
		{3, 9, []int{2, 3, 4, 9}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, windowSizes(tt.n, tt.extra)); diff != "" {
			t.Errorf("windowSizes(%d, %d) mismatch (-want +got):\n%s", tt.n, tt.extra, diff)
		}
	}
}
