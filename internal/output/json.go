package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/threads"
)

// JSONWriter outputs indented JSON.
type JSONWriter struct {
	Options Options
}

type placementJSON struct {
	StartLine     int          `json:"startLine"`
	EndLine       int          `json:"endLine"`
	Health        model.Health `json:"health"`
	DriftDistance int          `json:"driftDistance"`
}

type anchorJSON struct {
	ThreadID string          `json:"threadId"`
	Phase    reconcile.Phase `json:"phase"`
	Before   placementJSON   `json:"before"`
	After    placementJSON   `json:"after"`
	Score    float64         `json:"score"`
	Error    string          `json:"error,omitempty"`
}

type reportJSON struct {
	File          string               `json:"file"`
	Stale         bool                 `json:"stale"`
	SourceMissing bool                 `json:"sourceMissing"`
	PreviousHash  string               `json:"previousHash"`
	SourceHash    string               `json:"sourceHash"`
	Counts        map[model.Health]int `json:"counts"`
	Anchors       []anchorJSON         `json:"anchors"`
}

func (j *JSONWriter) WriteThreads(w io.Writer, views []threads.ThreadView) error {
	if views == nil {
		views = []threads.ThreadView{}
	}
	return writeJSON(w, j.Options.views(views))
}

func (j *JSONWriter) WriteThread(w io.Writer, view *threads.ThreadView) error {
	v := j.Options.view(*view)
	return writeJSON(w, &v)
}

func (j *JSONWriter) WriteReports(w io.Writer, reports []*reconcile.Report) error {
	out := make([]reportJSON, 0, len(reports))
	for _, r := range reports {
		rj := reportJSON{
			File:          r.File,
			Stale:         r.Stale,
			SourceMissing: r.SourceMissing,
			PreviousHash:  r.PreviousHash,
			SourceHash:    r.SourceHash,
			Counts:        r.Counts(),
			Anchors:       make([]anchorJSON, 0, len(r.Results)),
		}
		for _, res := range r.Results {
			aj := anchorJSON{
				ThreadID: res.ThreadID,
				Phase:    res.Phase,
				Before:   placementJSON(res.Before),
				After:    placementJSON(res.After),
				Score:    res.Score,
			}
			if res.Err != nil {
				aj.Error = res.Err.Error()
			}
			rj.Anchors = append(rj.Anchors, aj)
		}
		out = append(out, rj)
	}
	return writeJSON(w, out)
}

func (j *JSONWriter) WriteSummary(w io.Writer, s *threads.Summary) error {
	return writeJSON(w, s)
}

func (j *JSONWriter) WriteMoves(w io.Writer, moves []threads.Move) error {
	if moves == nil {
		moves = []threads.Move{}
	}
	return writeJSON(w, moves)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
