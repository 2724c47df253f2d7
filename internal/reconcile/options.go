package reconcile

// Options tunes the search. Zero fields take their defaults.
type Options struct {
	// ContextWindow is how far, in lines, context lines are searched for
	// around the last known region.
	ContextWindow int
	// FuzzyWindow is how far, in lines, fuzzy search extends around the last
	// known region.
	FuzzyWindow int
	// Threshold is the combined similarity a fuzzy candidate must exceed.
	Threshold float64
	// TieMargin is the score difference within which two non-overlapping
	// candidates are considered tied.
	TieMargin float64
}

// DefaultOptions returns the default search parameters.
func DefaultOptions() Options {
	return Options{
		ContextWindow: 10,
		FuzzyWindow:   500,
		Threshold:     0.6,
		TieMargin:     0.05,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ContextWindow <= 0 {
		o.ContextWindow = d.ContextWindow
	}
	if o.FuzzyWindow <= 0 {
		o.FuzzyWindow = d.FuzzyWindow
	}
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.TieMargin <= 0 {
		o.TieMargin = d.TieMargin
	}
	return o
}
