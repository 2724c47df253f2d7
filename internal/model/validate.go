package model

import (
	"fmt"
	"path"
	"strings"
)

// Validate checks a record for structural validity and returns every problem
// found.
func Validate(r *Record) []ValidationError {
	var errs []ValidationError
	add := func(p, format string, args ...any) {
		errs = append(errs, ValidationError{Field: p, Message: fmt.Sprintf(format, args...)})
	}

	if r.Version != SchemaVersion {
		add("version", "unsupported schema version %d (want %d)", r.Version, SchemaVersion)
	}
	if err := ValidateSourcePath(r.SourceFile); err != nil {
		add("source_file", "%s", err.Message)
	}

	ids := make(map[string]bool)
	for i, t := range r.Threads {
		prefix := fmt.Sprintf("threads[%d]", i)
		if t.ID == "" {
			add(prefix+".id", "required")
		} else if ids[t.ID] {
			add(prefix+".id", "duplicate ID: %q", t.ID)
		} else {
			ids[t.ID] = true
		}
		if i > 0 && r.Threads[i-1].ID > t.ID {
			add(prefix+".id", "threads are not ordered by id")
		}
		if !t.Status.Valid() {
			add(prefix+".status", "invalid: %q", t.Status)
		}
		if t.CreatedAt.IsZero() {
			add(prefix+".created_at", "required")
		}
		switch {
		case t.Status == StatusOpen && t.ResolvedAt != nil:
			add(prefix+".resolved_at", "must be null for an open thread")
		case t.Status.Closed() && t.ResolvedAt == nil:
			add(prefix+".resolved_at", "required for a %s thread", t.Status)
		}
		if t.Status == StatusOpen && t.Decision != nil {
			add(prefix+".decision", "must be null for an open thread")
		}
		if t.Decision != nil {
			errs = append(errs, validateDecision(prefix+".decision", t.Decision)...)
		}
		for j, res := range t.Resolutions {
			rp := fmt.Sprintf("%s.resolutions[%d]", prefix, j)
			if !res.Status.Closed() {
				add(rp+".status", "invalid: %q", res.Status)
			}
			if res.ResolvedAt.IsZero() {
				add(rp+".resolved_at", "required")
			}
			if res.Decision != nil {
				errs = append(errs, validateDecision(rp+".decision", res.Decision)...)
			}
			if j < len(t.Resolutions)-1 && res.ReopenedAt == nil {
				add(rp+".reopened_at", "required for a superseded resolution")
			}
		}
		if len(t.Comments) == 0 {
			add(prefix+".comments", "at least one comment required")
		}
		commentIDs := make(map[string]bool)
		for j, c := range t.Comments {
			cp := fmt.Sprintf("%s.comments[%d]", prefix, j)
			if c.ID == "" {
				add(cp+".id", "required")
			} else if commentIDs[c.ID] {
				add(cp+".id", "duplicate ID: %q", c.ID)
			} else {
				commentIDs[c.ID] = true
			}
			if err := validateAuthor(c.Author, c.AuthorKind); err != nil {
				errs = append(errs, prefixed(cp, err))
			}
			if err := validateText("body", c.Body); err != nil {
				errs = append(errs, prefixed(cp, err))
			}
			if c.CreatedAt.IsZero() {
				add(cp+".created_at", "required")
			}
		}
		errs = append(errs, validateAnchor(prefix+".anchor", t.Anchor)...)
	}
	return errs
}

// ValidateSourcePath checks that p is a clean, slash-separated path relative
// to the project root.
func ValidateSourcePath(p string) *ValidationError {
	switch {
	case p == "":
		return invalid("source_file", "required")
	case strings.Contains(p, "\\"):
		return invalid("source_file", "must use forward slashes: %q", p)
	case path.IsAbs(p):
		return invalid("source_file", "must be relative: %q", p)
	case path.Clean(p) != p || p == ".":
		return invalid("source_file", "must be a clean path: %q", p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return invalid("source_file", "escapes the project root: %q", p)
	}
	return nil
}

func validateAnchor(prefix string, a Anchor) []ValidationError {
	var errs []ValidationError
	if a.StartLine < 1 {
		errs = append(errs, ValidationError{prefix + ".start_line", "must be >= 1"})
	}
	if a.EndLine < a.StartLine {
		errs = append(errs, ValidationError{prefix + ".end_line", "must be >= start_line"})
	}
	if a.ContentHash == "" {
		errs = append(errs, ValidationError{prefix + ".content_hash", "required"})
	}
	if !a.Health.Valid() {
		errs = append(errs, ValidationError{prefix + ".health", fmt.Sprintf("invalid: %q", a.Health)})
	}
	if a.Health == HealthOrphaned && a.DriftDistance != 0 {
		errs = append(errs, ValidationError{prefix + ".drift_distance", "must be 0 for an orphaned anchor"})
	}
	return errs
}

func validateDecision(prefix string, d *Decision) []ValidationError {
	var errs []ValidationError
	if d.ID == "" {
		errs = append(errs, ValidationError{prefix + ".id", "required"})
	}
	if err := validateText("summary", d.Summary); err != nil {
		errs = append(errs, prefixed(prefix, err))
	}
	if d.RecordedAt.IsZero() {
		errs = append(errs, ValidationError{prefix + ".recorded_at", "required"})
	}
	return errs
}

func prefixed(prefix string, err error) ValidationError {
	if v, ok := err.(*ValidationError); ok {
		return ValidationError{Field: prefix + "." + v.Field, Message: v.Message}
	}
	return ValidationError{Field: prefix, Message: err.Error()}
}
