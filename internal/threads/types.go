package threads

import (
	"errors"

	"github.com/dshills/margin/internal/model"
)

var (
	// ErrThreadNotFound means no sidecar holds a thread with the given id.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrConflictRetriesExhausted wraps the last conflict or lock timeout
	// after every retry lost the race.
	ErrConflictRetriesExhausted = errors.New("sidecar kept changing or stayed locked while saving")
)

// AnchorSpec selects the region a new thread is anchored to: either a line
// range or a piece of text that occurs exactly once in the file.
type AnchorSpec struct {
	StartLine int
	EndLine   int // defaults to StartLine
	Text      string
}

// AddRequest creates a thread.
type AddRequest struct {
	File       string
	Anchor     AnchorSpec
	Body       string
	Author     string
	AuthorKind model.AuthorKind
}

// ReplyRequest appends a comment to a thread.
type ReplyRequest struct {
	Body       string
	Author     string
	AuthorKind model.AuthorKind
}

// ResolveRequest closes a thread. Decision is optional.
type ResolveRequest struct {
	Decision string
	Author   string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	File   string
	Status model.Status
	Health model.Health
	Author string
}

func (f Filter) match(t *model.Thread) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Health != "" && t.Anchor.Health != f.Health {
		return false
	}
	if f.Author != "" && !t.HasAuthor(f.Author) {
		return false
	}
	return true
}

// ThreadView is a thread together with the file it belongs to.
type ThreadView struct {
	File   string       `json:"file"`
	Thread model.Thread `json:"thread"`
}

// Move is one sidecar relocated by Rename.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Summary counts sidecars and threads across the project.
type Summary struct {
	Sidecars    int                  `json:"sidecars"`
	Unreadable  int                  `json:"unreadable"`
	Threads     int                  `json:"threads"`
	ByStatus    map[model.Status]int `json:"byStatus"`
	ByHealth    map[model.Health]int `json:"byHealth"`
	TotalBytes  int64                `json:"totalBytes"`
	StrayTemps  int                  `json:"strayTemps"`
	SidecarRoot string               `json:"sidecarRoot"`
}
