package output

import (
	"errors"
	"time"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/threads"
)

var fixedTime = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func sampleView() threads.ThreadView {
	closed := fixedTime.Add(time.Hour)
	return threads.ThreadView{
		File: "pkg/server.go",
		Thread: model.Thread{
			ID:         "0190a1b2-0000-7000-8000-000000000001",
			Status:     model.StatusResolved,
			CreatedAt:  fixedTime,
			ResolvedAt: &closed,
			Decision: &model.Decision{
				ID: "d1", Summary: "Use a buffered channel", Author: "ana", RecordedAt: closed,
			},
			Resolutions: []model.Resolution{{
				Status: model.StatusResolved, ResolvedAt: closed, ResolvedBy: "ana",
			}},
			Comments: []model.Comment{
				{ID: "c1", Author: "ana", AuthorKind: model.AuthorHuman, Body: "This can block | forever\nsecond line", CreatedAt: fixedTime},
				{ID: "c2", Author: "bot", AuthorKind: model.AuthorAgent, Body: "Agreed.", CreatedAt: fixedTime.Add(time.Minute)},
			},
			Anchor: model.Anchor{
				StartLine: 12, EndLine: 13,
				Snippet:       "ch := make(chan int)\nch <- 1",
				Health:        model.HealthDrifted,
				DriftDistance: 3,
			},
		},
	}
}

func sampleReports() []*reconcile.Report {
	return []*reconcile.Report{
		{
			File:  "pkg/server.go",
			Stale: true,
			Results: []reconcile.AnchorResult{
				{
					ThreadID: "t-moved",
					Phase:    reconcile.PhaseExact,
					Before:   model.Placement{StartLine: 10, EndLine: 12, Health: model.HealthAnchored},
					After:    model.Placement{StartLine: 15, EndLine: 17, Health: model.HealthAnchored, DriftDistance: 5},
					Score:    1,
				},
				{
					ThreadID: "t-still",
					Phase:    reconcile.PhaseExact,
					Before:   model.Placement{StartLine: 1, EndLine: 1, Health: model.HealthAnchored},
					After:    model.Placement{StartLine: 1, EndLine: 1, Health: model.HealthAnchored},
					Score:    1,
				},
				{
					ThreadID: "t-bad",
					Phase:    reconcile.PhaseError,
					Before:   model.Placement{StartLine: 40, EndLine: 41, Health: model.HealthOrphaned},
					After:    model.Placement{StartLine: 40, EndLine: 41, Health: model.HealthOrphaned},
					Err:      errors.New("anchor has no content"),
				},
			},
		},
		{File: "gone.go", SourceMissing: true},
	}
}

func sampleSummary() *threads.Summary {
	return &threads.Summary{
		Sidecars:    2,
		Threads:     3,
		ByStatus:    map[model.Status]int{model.StatusOpen: 2, model.StatusResolved: 1},
		ByHealth:    map[model.Health]int{model.HealthAnchored: 2, model.HealthOrphaned: 1},
		TotalBytes:  2048,
		StrayTemps:  1,
		SidecarRoot: "/repo/.margin",
	}
}
