package model

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// NewComment validates and builds a comment.
func NewComment(author string, kind AuthorKind, body string, at time.Time) (Comment, error) {
	if err := validateAuthor(author, kind); err != nil {
		return Comment{}, err
	}
	if err := validateText("body", body); err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:         NewID(),
		Author:     strings.TrimSpace(author),
		AuthorKind: kind,
		Body:       body,
		CreatedAt:  at,
	}, nil
}

// NewDecision validates and builds a decision.
func NewDecision(summary, author string, at time.Time) (*Decision, error) {
	if err := validateText("decision", summary); err != nil {
		return nil, err
	}
	return &Decision{
		ID:         NewID(),
		Summary:    summary,
		Author:     strings.TrimSpace(author),
		RecordedAt: at,
	}, nil
}

// NewThread builds an open thread from its first comment and anchor.
func NewThread(anchor Anchor, first Comment, at time.Time) Thread {
	return Thread{
		ID:          NewID(),
		Status:      StatusOpen,
		CreatedAt:   at,
		Resolutions: []Resolution{},
		Comments:    []Comment{first},
		Anchor:      anchor,
	}
}

// Reply appends c to the thread.
func (t *Thread) Reply(c Comment) {
	t.Comments = append(t.Comments, c)
}

// Close moves the thread to resolved or wontfix. Closing a thread that already
// has the requested status is a no-op and reports changed == false. Moving
// directly between resolved and wontfix is rejected; reopen first.
func (t *Thread) Close(status Status, decision *Decision, by string, at time.Time) (changed bool, err error) {
	if !status.Closed() {
		return false, invalid("status", "cannot close a thread as %s", quote(string(status)))
	}
	if t.Status == status {
		return false, nil
	}
	if t.Status != StatusOpen {
		return false, invalid("status", "thread %s is %s; reopen it before marking it %s", t.ID, t.Status, status)
	}
	closedAt := at
	t.Status = status
	t.ResolvedAt = &closedAt
	t.Decision = decision
	t.Resolutions = append(t.Resolutions, Resolution{
		Status:     status,
		ResolvedAt: at,
		ResolvedBy: strings.TrimSpace(by),
		Decision:   decision,
	})
	return true, nil
}

// Reopen moves a closed thread back to open. The closed cycle, including its
// decision, stays in Resolutions.
func (t *Thread) Reopen(at time.Time) error {
	if t.Status == StatusOpen {
		return invalid("status", "thread %s is already open", t.ID)
	}
	reopened := at
	if n := len(t.Resolutions); n > 0 {
		t.Resolutions[n-1].ReopenedAt = &reopened
	}
	t.Status = StatusOpen
	t.ResolvedAt = nil
	t.Decision = nil
	return nil
}

// LastActivity returns the time of the latest comment or status change.
func (t *Thread) LastActivity() time.Time {
	last := t.CreatedAt
	for _, c := range t.Comments {
		if c.CreatedAt.After(last) {
			last = c.CreatedAt
		}
	}
	for _, r := range t.Resolutions {
		if r.ResolvedAt.After(last) {
			last = r.ResolvedAt
		}
		if r.ReopenedAt != nil && r.ReopenedAt.After(last) {
			last = *r.ReopenedAt
		}
	}
	return last
}

// HasAuthor reports whether author wrote any comment in the thread.
func (t *Thread) HasAuthor(author string) bool {
	for _, c := range t.Comments {
		if strings.EqualFold(c.Author, author) {
			return true
		}
	}
	return false
}

func validateAuthor(author string, kind AuthorKind) error {
	if strings.TrimSpace(author) == "" {
		return invalid("author", "required")
	}
	if !kind.Valid() {
		return invalid("author_kind", "must be human or agent, got %s", quote(string(kind)))
	}
	return nil
}

func validateText(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(field, "must not be empty")
	}
	if n := utf8.RuneCountInString(s); n > MaxBodyLength {
		return invalid(field, "is %d characters; the limit is %d", n, MaxBodyLength)
	}
	if !utf8.ValidString(s) {
		return invalid(field, "must be valid UTF-8")
	}
	return nil
}

func sortThreads(ts []Thread) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
