package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Exporter streams a completed job's results as CSV.
type Exporter interface {
	ExportResults(ctx context.Context, id uuid.UUID, w io.Writer) error
}

// NewExportHandler returns an http.HandlerFunc for GET /jobs/{job_id}/export.csv.
func NewExportHandler(svc Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		out := &attachment{w: w, filename: fmt.Sprintf("job_%s_results.csv", id)}
		if err := svc.ExportResults(r.Context(), id, out); err != nil {
			if !out.started {
				writeError(w, r, err)
				return
			}
			// Headers are gone; the client sees a truncated file.
			slog.Error("export interrupted", "job_id", id, "error", err)
		}
	}
}

// attachment sends the CSV headers on the first write, so errors raised
// before any output can still be returned as JSON.
type attachment struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (a *attachment) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		h := a.w.Header()
		h.Set("Content-Type", "text/csv; charset=utf-8")
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.filename))
		a.w.WriteHeader(http.StatusOK)
	}
	return a.w.Write(p)
}
