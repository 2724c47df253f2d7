package reconcile

import "github.com/dshills/margin/internal/model"

// Phase names the step that placed an anchor.
type Phase string

const (
	PhaseExact   Phase = "exact"
	PhaseContext Phase = "context"
	PhaseFuzzy   Phase = "fuzzy"
	PhaseOrphan  Phase = "orphan"
	// PhaseError means the anchor could not be processed; its placement was
	// left unchanged.
	PhaseError Phase = "error"
)

// AnchorResult is the outcome for one thread's anchor.
type AnchorResult struct {
	ThreadID string
	Phase    Phase
	Before   model.Placement
	After    model.Placement
	// Score is the combined similarity for fuzzy placements, 1 for exact
	// ones and 0 otherwise.
	Score float64
	Err   error
}

// Moved reports whether the placement changed.
func (r AnchorResult) Moved() bool {
	return r.Before != r.After
}

// Report describes one reconciliation pass over a sidecar.
type Report struct {
	File string
	// Stale is true when the stored source hash differed from the source.
	Stale         bool
	SourceMissing bool
	PreviousHash  string
	SourceHash    string
	Results       []AnchorResult
}

// Counts tallies the resulting health of every anchor.
func (r *Report) Counts() map[model.Health]int {
	counts := make(map[model.Health]int, 3)
	for _, res := range r.Results {
		counts[res.After.Health]++
	}
	return counts
}

// Changed reports whether any placement moved.
func (r *Report) Changed() bool {
	for _, res := range r.Results {
		if res.Moved() {
			return true
		}
	}
	return false
}

// Errors returns the per-anchor errors, if any.
func (r *Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}
