package threads

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/source"
	"github.com/dshills/margin/internal/store"
)

// applyFunc mutates a reconciled record and reports whether it changed it.
// src is nil when the source file does not exist.
type applyFunc func(rec *model.Record, src *source.File) (bool, error)

type updateOpts struct {
	// create starts a new record when the sidecar does not exist.
	create bool
	// force reconciles even when the stored source hash is current.
	force bool
}

// update runs read, reconcile if stale, apply, save. The record is saved when
// reconciliation ran and moved something or refreshed the hash, or when apply
// reports a change. A read or save that loses a race or times out on a lock
// is retried from the read.
func (s *Service) update(ctx context.Context, rel string, opts updateOpts, apply applyFunc) (*model.Record, *reconcile.Report, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := s.store.Load(rel)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound) && opts.create:
			rec = nil
		case store.IsRetryable(err):
			lastErr = err
			s.logger.Debug("load contended", "file", rel, "attempt", attempt, "err", err)
			continue
		default:
			return nil, nil, err
		}
		src, err := s.readSource(rel)
		if err != nil {
			return nil, nil, err
		}
		if rec == nil {
			hash := ""
			if src != nil {
				hash = src.Hash
			}
			rec = model.NewRecord(rel, hash)
		}
		expected := rec.SourceHash

		var report *reconcile.Report
		dirty := false
		if opts.force || reconcile.NeedsReconcile(rec, src) {
			report, err = s.engine.Reconcile(ctx, rec, src)
			if err != nil {
				return nil, nil, err
			}
			dirty = report.Stale || report.Changed()
		}
		if apply != nil {
			changed, err := apply(rec, src)
			if err != nil {
				return nil, nil, err
			}
			dirty = dirty || changed
		}
		if !dirty {
			return rec, report, nil
		}

		err = s.store.Save(rel, rec, expected)
		if err == nil {
			return rec, report, nil
		}
		if !store.IsRetryable(err) {
			return nil, nil, err
		}
		lastErr = err
		s.logger.Debug("save contended", "file", rel, "attempt", attempt, "err", err)
	}
	return nil, nil, fmt.Errorf("%s after %d attempts: %w", rel, s.maxAttempts, errors.Join(ErrConflictRetriesExhausted, lastErr))
}

// readSource returns nil without error when the file does not exist.
func (s *Service) readSource(rel string) (*source.File, error) {
	f, err := s.sources.Read(rel)
	if source.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
