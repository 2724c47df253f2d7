package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func testLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strings.Repeat("x", i%7) + string(rune('a'+i%26))
	}
	return lines
}

func sampleRecord(t *testing.T) *Record {
	t.Helper()
	lines := testLines(20)
	anchor, err := NewAnchor(lines, 3, 5)
	if err != nil {
		t.Fatalf("NewAnchor: %v", err)
	}
	c, err := NewComment("ada", AuthorHuman, "needs <null> check & more", testTime)
	if err != nil {
		t.Fatalf("NewComment: %v", err)
	}
	th := NewThread(anchor, c, testTime)
	reply, err := NewComment("bot", AuthorAgent, "agreed", testTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("NewComment: %v", err)
	}
	th.Reply(reply)
	d, err := NewDecision("added guard", "ada", testTime.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("NewDecision: %v", err)
	}
	if _, err := th.Close(StatusResolved, d, "ada", testTime.Add(2*time.Minute)); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := NewAnchor(lines, 10, 10)
	if err != nil {
		t.Fatalf("NewAnchor: %v", err)
	}
	c2, _ := NewComment("grace", AuthorHuman, "rename this", testTime)
	r := NewRecord("pkg/main.go", "sha256:abc")
	r.AddThread(NewThread(second, c2, testTime))
	r.AddThread(th)
	return r
}

func TestMarshal_RoundTrip(t *testing.T) {
	r := sampleRecord(t)
	data, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_ByteStable(t *testing.T) {
	r := sampleRecord(t)
	a, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("repeated Marshal produced different bytes")
	}

	// Same content with threads in a different slice order.
	shuffled := *r
	shuffled.Threads = []Thread{r.Threads[1], r.Threads[0]}
	c, err := Marshal(&shuffled)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, c) {
		t.Error("thread order in memory changed the serialized bytes")
	}

	// Re-serializing a decoded record is also stable.
	decoded, _ := Unmarshal(a)
	d, _ := Marshal(decoded)
	if !bytes.Equal(a, d) {
		t.Error("decode/encode cycle changed the bytes")
	}
}

func TestMarshal_Format(t *testing.T) {
	data, err := Marshal(sampleRecord(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.HasSuffix(s, "}\n") {
		t.Error("output should end with a newline")
	}
	if !strings.Contains(s, "\n  \"source_file\": \"pkg/main.go\"") {
		t.Error("expected two-space indentation")
	}
	if !strings.Contains(s, "<null> check & more") {
		t.Error("HTML characters should not be escaped")
	}
	if strings.Index(s, `"version"`) > strings.Index(s, `"threads"`) {
		t.Error("fields should follow declaration order")
	}
}

func TestMarshal_DoesNotReorderInput(t *testing.T) {
	r := sampleRecord(t)
	r.Threads[0], r.Threads[1] = r.Threads[1], r.Threads[0]
	first := r.Threads[0].ID
	if _, err := Marshal(r); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if r.Threads[0].ID != first {
		t.Error("Marshal mutated the caller's thread order")
	}
}

func TestUnmarshal_RejectsUnknownFields(t *testing.T) {
	data := []byte(`{"version":1,"source_file":"a.go","source_hash":"","threads":[],"extra":true}`)
	if _, err := Unmarshal(data); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestUnmarshal_RejectsTrailingData(t *testing.T) {
	data := []byte(`{"version":1,"source_file":"a.go","source_hash":"","threads":[]} {}`)
	if _, err := Unmarshal(data); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestValidate_Valid(t *testing.T) {
	if errs := Validate(sampleRecord(t)); len(errs) > 0 {
		for _, e := range errs {
			t.Errorf("unexpected error: %s", e)
		}
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		field  string
	}{
		{"bad version", func(r *Record) { r.Version = 99 }, "version"},
		{"absolute path", func(r *Record) { r.SourceFile = "/etc/passwd" }, "source_file"},
		{"traversal", func(r *Record) { r.SourceFile = "../x.go" }, "source_file"},
		{"unclean", func(r *Record) { r.SourceFile = "a/../b.go" }, "source_file"},
		{"duplicate id", func(r *Record) { r.Threads[1].ID = r.Threads[0].ID }, "threads[1].id"},
		{"bad status", func(r *Record) { r.Threads[0].Status = "closed" }, "threads[0].status"},
		{"bad health", func(r *Record) { r.Threads[0].Anchor.Health = "lost" }, "threads[0].anchor.health"},
		{"bad range", func(r *Record) { r.Threads[0].Anchor.EndLine = 0 }, "threads[0].anchor.end_line"},
		{"no comments", func(r *Record) { r.Threads[0].Comments = nil }, "threads[0].comments"},
		{"empty body", func(r *Record) { r.Threads[0].Comments[0].Body = " " }, "threads[0].comments[0].body"},
		{"bad kind", func(r *Record) { r.Threads[0].Comments[0].AuthorKind = "robot" }, "threads[0].comments[0].author_kind"},
		{"orphan drift", func(r *Record) {
			r.Threads[0].Anchor.Health = HealthOrphaned
			r.Threads[0].Anchor.DriftDistance = 3
		}, "threads[0].anchor.drift_distance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRecord(t)
			tt.mutate(r)
			found := false
			for _, e := range Validate(r) {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected validation error on %s, got %v", tt.field, Validate(r))
			}
		})
	}
}

func TestNewComment_Bounds(t *testing.T) {
	if _, err := NewComment("a", AuthorHuman, "", testTime); !IsValidation(err) {
		t.Errorf("empty body: err = %v, want ValidationError", err)
	}
	if _, err := NewComment("a", AuthorHuman, strings.Repeat("é", MaxBodyLength), testTime); err != nil {
		t.Errorf("body at limit: unexpected error %v", err)
	}
	if _, err := NewComment("a", AuthorHuman, strings.Repeat("x", MaxBodyLength+1), testTime); !IsValidation(err) {
		t.Errorf("body over limit: err = %v, want ValidationError", err)
	}
	if _, err := NewComment("", AuthorHuman, "hi", testTime); !IsValidation(err) {
		t.Errorf("missing author: err = %v, want ValidationError", err)
	}
	if _, err := NewComment("a", "robot", "hi", testTime); !IsValidation(err) {
		t.Errorf("bad kind: err = %v, want ValidationError", err)
	}
}

func TestNewAnchor(t *testing.T) {
	lines := []string{"alpha", "beta", "gamma", "delta"}
	a, err := NewAnchor(lines, 2, 3)
	if err != nil {
		t.Fatalf("NewAnchor: %v", err)
	}
	if a.Snippet != "beta\ngamma" {
		t.Errorf("Snippet = %q", a.Snippet)
	}
	if a.Health != HealthAnchored || a.DriftDistance != 0 {
		t.Errorf("new anchor placement = %+v", a.Placement())
	}
	if a.ContextBeforeHash == "" || a.ContextAfterHash == "" {
		t.Error("expected both context hashes")
	}

	edge, err := NewAnchor(lines, 1, 4)
	if err != nil {
		t.Fatalf("NewAnchor: %v", err)
	}
	if edge.ContextBeforeHash != "" || edge.ContextAfterHash != "" {
		t.Error("whole-file anchor should have empty context hashes")
	}

	for _, r := range [][2]int{{0, 1}, {3, 2}, {4, 5}} {
		if _, err := NewAnchor(lines, r[0], r[1]); !IsValidation(err) {
			t.Errorf("NewAnchor(%d, %d) err = %v, want ValidationError", r[0], r[1], err)
		}
	}
}

func TestAnchor_PlaceOrphanKeepsLines(t *testing.T) {
	a, _ := NewAnchor(testLines(10), 4, 6)
	a.Place(Placement{StartLine: 7, EndLine: 9, Health: HealthDrifted, DriftDistance: 3})
	a.Place(Placement{StartLine: 1, EndLine: 1, Health: HealthOrphaned, DriftDistance: 5})
	want := Placement{StartLine: 7, EndLine: 9, Health: HealthOrphaned, DriftDistance: 0}
	if diff := cmp.Diff(want, a.Placement()); diff != "" {
		t.Errorf("placement mismatch (-want +got):\n%s", diff)
	}
}

func TestThread_CloseIdempotent(t *testing.T) {
	r := sampleRecord(t)
	th := r.Threads[1]
	if th.Status != StatusResolved {
		th = r.Threads[0]
	}
	before, _ := json.Marshal(th)
	changed, err := th.Close(StatusResolved, nil, "ada", testTime.Add(time.Hour))
	if err != nil || changed {
		t.Fatalf("Close on resolved thread: changed=%v err=%v", changed, err)
	}
	after, _ := json.Marshal(th)
	if !bytes.Equal(before, after) {
		t.Error("idempotent close changed the thread")
	}
}

func TestThread_ReopenKeepsHistory(t *testing.T) {
	c, _ := NewComment("ada", AuthorHuman, "hm", testTime)
	a, _ := NewAnchor(testLines(3), 1, 1)
	th := NewThread(a, c, testTime)

	d1, _ := NewDecision("first", "ada", testTime)
	if _, err := th.Close(StatusResolved, d1, "ada", testTime); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := th.Reopen(testTime.Add(time.Minute)); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if th.Status != StatusOpen || th.ResolvedAt != nil || th.Decision != nil {
		t.Errorf("reopened thread = %+v", th)
	}
	d2, _ := NewDecision("second", "ada", testTime.Add(2*time.Minute))
	if _, err := th.Close(StatusResolved, d2, "ada", testTime.Add(2*time.Minute)); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(th.Resolutions) != 2 {
		t.Fatalf("len(Resolutions) = %d, want 2", len(th.Resolutions))
	}
	if th.Resolutions[0].Decision.Summary != "first" || th.Resolutions[0].ReopenedAt == nil {
		t.Errorf("first cycle not preserved: %+v", th.Resolutions[0])
	}
	if th.Decision.Summary != "second" || th.Decision.ID == d1.ID {
		t.Errorf("current decision = %+v", th.Decision)
	}
}

func TestThread_InvalidTransitions(t *testing.T) {
	c, _ := NewComment("ada", AuthorHuman, "hm", testTime)
	a, _ := NewAnchor(testLines(3), 1, 1)
	th := NewThread(a, c, testTime)

	if err := th.Reopen(testTime); !IsValidation(err) {
		t.Errorf("Reopen open thread: err = %v, want ValidationError", err)
	}
	if _, err := th.Close(StatusOpen, nil, "ada", testTime); !IsValidation(err) {
		t.Errorf("Close as open: err = %v, want ValidationError", err)
	}
	if _, err := th.Close(StatusWontfix, nil, "ada", testTime); err != nil {
		t.Fatalf("Close wontfix: %v", err)
	}
	if _, err := th.Close(StatusResolved, nil, "ada", testTime); !IsValidation(err) {
		t.Errorf("wontfix -> resolved: err = %v, want ValidationError", err)
	}
}

func TestIDsAreTimeOrdered(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		if next <= prev {
			t.Fatalf("NewID() not increasing: %s <= %s", next, prev)
		}
		prev = next
	}
}

func TestAmbiguousMatchError(t *testing.T) {
	err := error(&AmbiguousMatchError{Text: "return nil", Lines: []int{3, 9}})
	if !IsAmbiguous(err) {
		t.Error("IsAmbiguous should match")
	}
	if !strings.Contains(err.Error(), "2 locations") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseStatus("resolved"); err != nil {
		t.Errorf("ParseStatus: %v", err)
	}
	if _, err := ParseStatus("done"); !IsValidation(err) {
		t.Errorf("ParseStatus(done) err = %v", err)
	}
	if _, err := ParseHealth("orphaned"); err != nil {
		t.Errorf("ParseHealth: %v", err)
	}
	if _, err := ParseAuthorKind("agent"); err != nil {
		t.Errorf("ParseAuthorKind: %v", err)
	}
}
