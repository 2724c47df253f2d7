package model

// Status is the lifecycle state of a thread.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusWontfix  Status = "wontfix"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusWontfix:
		return true
	}
	return false
}

// Closed reports whether the status ends a resolution cycle.
func (s Status) Closed() bool {
	return s == StatusResolved || s == StatusWontfix
}

// Health describes how well an anchor still matches the source.
type Health string

const (
	// HealthAnchored means the exact content was found unambiguously.
	HealthAnchored Health = "anchored"
	// HealthDrifted means the anchor was placed by fuzzy matching or by a
	// positional tie-break.
	HealthDrifted Health = "drifted"
	// HealthOrphaned means no acceptable match was found. Line numbers and
	// snippet keep their last known values.
	HealthOrphaned Health = "orphaned"
)

func (h Health) Valid() bool {
	switch h {
	case HealthAnchored, HealthDrifted, HealthOrphaned:
		return true
	}
	return false
}

// AuthorKind distinguishes people from automated agents.
type AuthorKind string

const (
	AuthorHuman AuthorKind = "human"
	AuthorAgent AuthorKind = "agent"
)

func (k AuthorKind) Valid() bool {
	switch k {
	case AuthorHuman, AuthorAgent:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: "must be open, resolved or wontfix, got " + quote(s)}
	}
	return st, nil
}

// ParseHealth converts user input into a Health.
func ParseHealth(s string) (Health, error) {
	h := Health(s)
	if !h.Valid() {
		return "", &ValidationError{Field: "health", Message: "must be anchored, drifted or orphaned, got " + quote(s)}
	}
	return h, nil
}

// ParseAuthorKind converts user input into an AuthorKind.
func ParseAuthorKind(s string) (AuthorKind, error) {
	k := AuthorKind(s)
	if !k.Valid() {
		return "", &ValidationError{Field: "author_kind", Message: "must be human or agent, got " + quote(s)}
	}
	return k, nil
}
