package threads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/source"
	"github.com/dshills/margin/internal/store"
)

// DefaultMaxAttempts bounds the read, apply, save cycle under contention.
const DefaultMaxAttempts = 3

// Options configures a Service.
type Options struct {
	MaxAttempts int
	Logger      *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service implements the thread lifecycle on top of a store, a source
// provider and a reconciliation engine.
type Service struct {
	store       *store.Store
	sources     source.Provider
	engine      *reconcile.Engine
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// New returns a Service.
func New(st *store.Store, sources source.Provider, engine *reconcile.Engine, opts Options) *Service {
	s := &Service{
		store:       st,
		sources:     sources,
		engine:      engine,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "threads")
	if s.now == nil {
		s.now = model.Now
	}
	return s
}

// Add anchors a new open thread to a file.
func (s *Service) Add(ctx context.Context, req AddRequest) (*ThreadView, error) {
	rel, err := s.store.Rel(req.File)
	if err != nil {
		return nil, err
	}
	loc := req.Anchor
	hasLines := loc.StartLine != 0 || loc.EndLine != 0
	hasText := strings.TrimSpace(loc.Text) != ""
	switch {
	case hasLines && hasText:
		return nil, &model.ValidationError{Field: "anchor", Message: "give either a line range or text, not both"}
	case !hasLines && !hasText:
		return nil, &model.ValidationError{Field: "anchor", Message: "a line range or text is required"}
	}
	now := s.now()
	comment, err := model.NewComment(req.Author, req.AuthorKind, req.Body, now)
	if err != nil {
		return nil, err
	}

	var created model.Thread
	_, _, err = s.update(ctx, rel, updateOpts{create: true}, func(rec *model.Record, src *source.File) (bool, error) {
		if src == nil {
			return false, fmt.Errorf("cannot anchor to %s: %w", rel, fs.ErrNotExist)
		}
		lines := src.Lines()
		start, end := loc.StartLine, loc.EndLine
		if hasText {
			ranges := reconcile.FindText(lines, loc.Text)
			switch len(ranges) {
			case 0:
				return false, &model.ValidationError{Field: "anchor", Message: fmt.Sprintf("text %q not found in %s", truncate(loc.Text, 40), rel)}
			case 1:
				start, end = ranges[0].Start, ranges[0].End
			default:
				starts := make([]int, len(ranges))
				for i, r := range ranges {
					starts[i] = r.Start
				}
				return false, &model.AmbiguousMatchError{Text: loc.Text, Lines: starts}
			}
		}
		if end == 0 {
			end = start
		}
		anchor, err := model.NewAnchor(lines, start, end)
		if err != nil {
			return false, err
		}
		created = model.NewThread(anchor, comment, now)
		rec.AddThread(created)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("thread added", "file", rel, "thread", created.ID, "lines", fmt.Sprintf("%d-%d", created.Anchor.StartLine, created.Anchor.EndLine))
	return &ThreadView{File: rel, Thread: created}, nil
}

// Reply appends a comment to a thread. Closed threads accept replies too.
func (s *Service) Reply(ctx context.Context, threadID string, req ReplyRequest) (*ThreadView, error) {
	comment, err := model.NewComment(req.Author, req.AuthorKind, req.Body, s.now())
	if err != nil {
		return nil, err
	}
	return s.mutateThread(ctx, threadID, func(t *model.Thread) (bool, error) {
		t.Reply(comment)
		return true, nil
	})
}

// Resolve marks a thread resolved. Resolving a resolved thread changes
// nothing and is not an error.
func (s *Service) Resolve(ctx context.Context, threadID string, req ResolveRequest) (*ThreadView, error) {
	return s.close(ctx, threadID, model.StatusResolved, req)
}

// Dismiss marks a thread wontfix, with the same rules as Resolve.
func (s *Service) Dismiss(ctx context.Context, threadID string, req ResolveRequest) (*ThreadView, error) {
	return s.close(ctx, threadID, model.StatusWontfix, req)
}

func (s *Service) close(ctx context.Context, threadID string, status model.Status, req ResolveRequest) (*ThreadView, error) {
	now := s.now()
	var decision *model.Decision
	if strings.TrimSpace(req.Decision) != "" {
		d, err := model.NewDecision(req.Decision, req.Author, now)
		if err != nil {
			return nil, err
		}
		decision = d
	}
	return s.mutateThread(ctx, threadID, func(t *model.Thread) (bool, error) {
		return t.Close(status, decision, req.Author, now)
	})
}

// Reopen moves a closed thread back to open, keeping its history.
func (s *Service) Reopen(ctx context.Context, threadID string) (*ThreadView, error) {
	now := s.now()
	return s.mutateThread(ctx, threadID, func(t *model.Thread) (bool, error) {
		if err := t.Reopen(now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Get returns one thread, reconciling its sidecar first if needed.
func (s *Service) Get(ctx context.Context, threadID string) (*ThreadView, error) {
	return s.mutateThread(ctx, threadID, func(*model.Thread) (bool, error) {
		return false, nil
	})
}

// List returns the threads matching f, ordered by file and id. Without a file
// filter every sidecar is visited; unreadable sidecars are then skipped with
// a warning instead of failing the whole listing.
func (s *Service) List(ctx context.Context, f Filter) ([]ThreadView, error) {
	var rels []string
	if f.File != "" {
		rel, err := s.store.Rel(f.File)
		if err != nil {
			return nil, err
		}
		rels = []string{rel}
	} else {
		var err error
		if rels, err = s.sidecars(); err != nil {
			return nil, err
		}
	}

	views := []ThreadView{}
	for _, rel := range rels {
		rec, _, err := s.update(ctx, rel, updateOpts{}, nil)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			continue
		case f.File == "" && store.IsCorrupt(err):
			s.logger.Warn("skipping unreadable sidecar", "file", rel, "err", err)
			continue
		default:
			return nil, err
		}
		for i := range rec.Threads {
			if f.match(&rec.Threads[i]) {
				views = append(views, ThreadView{File: rel, Thread: rec.Threads[i]})
			}
		}
	}
	return views, nil
}

// Reconcile runs a reconciliation pass over a file even if its sidecar looks
// current, persists any change and returns the report.
func (s *Service) Reconcile(ctx context.Context, file string) (*reconcile.Report, error) {
	rel, err := s.store.Rel(file)
	if err != nil {
		return nil, err
	}
	_, report, err := s.update(ctx, rel, updateOpts{force: true}, nil)
	return report, err
}

// ReconcileAll reconciles every sidecar in the project. Per-file failures are
// collected and returned together after all files were attempted.
func (s *Service) ReconcileAll(ctx context.Context) ([]*reconcile.Report, error) {
	rels, err := s.sidecars()
	if err != nil {
		return nil, err
	}
	var reports []*reconcile.Report
	var errs []error
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		_, report, err := s.update(ctx, rel, updateOpts{force: true}, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// Rename moves sidecars to follow renamed source files. The whole mapping is
// validated before anything moves: targets must be distinct and may not be
// renamed themselves. Files without a sidecar are skipped.
func (s *Service) Rename(ctx context.Context, mapping map[string]string) ([]Move, error) {
	moves := make([]Move, 0, len(mapping))
	targets := make(map[string]string, len(mapping))
	sources := make(map[string]bool, len(mapping))
	for from, to := range mapping {
		oldRel, err := s.store.Rel(from)
		if err != nil {
			return nil, err
		}
		newRel, err := s.store.Rel(to)
		if err != nil {
			return nil, err
		}
		if oldRel == newRel {
			return nil, &model.ValidationError{Field: "rename", Message: fmt.Sprintf("%s is renamed to itself", oldRel)}
		}
		if prev, ok := targets[newRel]; ok {
			return nil, &model.ValidationError{Field: "rename", Message: fmt.Sprintf("%s and %s are both renamed to %s", prev, oldRel, newRel)}
		}
		targets[newRel] = oldRel
		sources[oldRel] = true
		moves = append(moves, Move{From: oldRel, To: newRel})
	}
	for _, m := range moves {
		if sources[m.To] {
			return nil, &model.ValidationError{Field: "rename", Message: fmt.Sprintf("%s is renamed to %s, which is itself renamed", m.From, m.To)}
		}
	}
	slices.SortFunc(moves, func(a, b Move) int { return strings.Compare(a.From, b.From) })

	done := make([]Move, 0, len(moves))
	for _, m := range moves {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ok, err := s.store.Exists(m.From)
		if err != nil {
			return done, err
		}
		if !ok {
			s.logger.Debug("no sidecar to rename", "file", m.From)
			continue
		}
		if _, err := s.store.Move(m.From, m.To); err != nil {
			return done, fmt.Errorf("renaming %s to %s: %w", m.From, m.To, err)
		}
		s.logger.Info("sidecar renamed", "from", m.From, "to", m.To)
		done = append(done, m)
	}
	return done, nil
}

// Summarize counts sidecars and threads. Sidecars are reconciled on the way.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	st, err := s.store.Stats()
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		ByStatus:    make(map[model.Status]int),
		ByHealth:    make(map[model.Health]int),
		TotalBytes:  st.TotalBytes,
		StrayTemps:  st.StrayTemps,
		SidecarRoot: st.Dir,
	}
	rels, err := s.sidecars()
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		rec, _, err := s.update(ctx, rel, updateOpts{}, nil)
		if err != nil {
			if store.IsCorrupt(err) {
				sum.Unreadable++
				continue
			}
			return nil, err
		}
		sum.Sidecars++
		for _, t := range rec.Threads {
			sum.Threads++
			sum.ByStatus[t.Status]++
			sum.ByHealth[t.Anchor.Health]++
		}
	}
	return sum, nil
}

// CleanTemps removes temporary files left by interrupted writes that are
// older than minAge.
func (s *Service) CleanTemps(minAge time.Duration) (int, error) {
	return s.store.CleanTemps(minAge)
}

// mutateThread finds the sidecar holding threadID and applies fn to the
// thread inside the read, reconcile, apply, save cycle.
func (s *Service) mutateThread(ctx context.Context, threadID string, fn func(*model.Thread) (bool, error)) (*ThreadView, error) {
	rel, err := s.locate(ctx, threadID)
	if err != nil {
		return nil, err
	}
	var view ThreadView
	_, _, err = s.update(ctx, rel, updateOpts{}, func(rec *model.Record, _ *source.File) (bool, error) {
		t := rec.Thread(threadID)
		if t == nil {
			return false, fmt.Errorf("%s: %w", threadID, ErrThreadNotFound)
		}
		changed, err := fn(t)
		if err != nil {
			return false, err
		}
		view = ThreadView{File: rel, Thread: *t}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// locate returns the file whose sidecar holds threadID.
func (s *Service) locate(ctx context.Context, threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", &model.ValidationError{Field: "thread_id", Message: "required"}
	}
	rels, err := s.sidecars()
	if err != nil {
		return "", err
	}
	var unreadable error
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rec, err := s.store.Load(rel)
		if err != nil {
			if store.IsCorrupt(err) {
				unreadable = err
				continue
			}
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return "", err
		}
		if rec.Thread(threadID) != nil {
			return rel, nil
		}
	}
	if unreadable != nil {
		return "", fmt.Errorf("%s: %w (and a sidecar could not be read: %w)", threadID, ErrThreadNotFound, unreadable)
	}
	return "", fmt.Errorf("%s: %w", threadID, ErrThreadNotFound)
}

func (s *Service) sidecars() ([]string, error) {
	var rels []string
	err := s.store.Walk(func(rel string) error {
		rels = append(rels, rel)
		return nil
	})
	return rels, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
