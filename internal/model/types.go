package model

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the sidecar format version written by this package.
const SchemaVersion = 1

// MaxBodyLength is the maximum comment or decision length in characters.
const MaxBodyLength = 10000

// Record is the persisted sidecar for one source file.
type Record struct {
	Version    int      `json:"version"`
	SourceFile string   `json:"source_file"`
	SourceHash string   `json:"source_hash"`
	Threads    []Thread `json:"threads"`

	// Revision is the digest of the bytes this record was loaded from. It is
	// empty for records that have never been persisted.
	Revision string `json:"-"`
}

// Thread is a conversation anchored to one location in one file.
type Thread struct {
	ID          string       `json:"id"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at"`
	Decision    *Decision    `json:"decision"`
	Resolutions []Resolution `json:"resolutions"`
	Comments    []Comment    `json:"comments"`
	Anchor      Anchor       `json:"anchor"`
}

// Comment is one message in a thread.
type Comment struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"`
	AuthorKind AuthorKind `json:"author_kind"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Decision is the outcome recorded when a thread is closed. It is never
// modified after it is recorded.
type Decision struct {
	ID         string    `json:"id"`
	Summary    string    `json:"summary"`
	Author     string    `json:"author"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Resolution is one closed cycle of a thread. Reopening stamps ReopenedAt;
// the entry itself is kept.
type Resolution struct {
	Status     Status     `json:"status"`
	ResolvedAt time.Time  `json:"resolved_at"`
	ResolvedBy string     `json:"resolved_by"`
	Decision   *Decision  `json:"decision"`
	ReopenedAt *time.Time `json:"reopened_at"`
}

// Anchor is the positional claim a thread makes on its source file.
type Anchor struct {
	StartLine         int    `json:"start_line"`
	EndLine           int    `json:"end_line"`
	ContentHash       string `json:"content_hash"`
	ContextBeforeHash string `json:"context_before_hash"`
	ContextAfterHash  string `json:"context_after_hash"`
	Snippet           string `json:"snippet"`
	Health            Health `json:"health"`
	DriftDistance     int    `json:"drift_distance"`
}

// Placement is the mutable part of an anchor.
type Placement struct {
	StartLine     int
	EndLine       int
	Health        Health
	DriftDistance int
}

// NewID returns a new time-ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Now returns the current time in the form stored in records.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewRecord returns an empty record for sourceFile.
func NewRecord(sourceFile, sourceHash string) *Record {
	return &Record{
		Version:    SchemaVersion,
		SourceFile: sourceFile,
		SourceHash: sourceHash,
		Threads:    []Thread{},
	}
}

// Thread returns a pointer to the thread with id, or nil.
func (r *Record) Thread(id string) *Thread {
	for i := range r.Threads {
		if r.Threads[i].ID == id {
			return &r.Threads[i]
		}
	}
	return nil
}

// AddThread appends t keeping threads ordered by id.
func (r *Record) AddThread(t Thread) {
	r.Threads = append(r.Threads, t)
	sortThreads(r.Threads)
}
