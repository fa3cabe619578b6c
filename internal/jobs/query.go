package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	DefaultJobLimit    = 20
	MaxJobLimit        = 100
	DefaultResultLimit = 50
	MaxResultLimit     = 200
)

// JobPage is one page of jobs, newest first.
type JobPage struct {
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
	Items  []*models.Job `json:"items"`
}

// JobDetail is a job summary plus its last cached run, when known.
type JobDetail struct {
	*models.Job
	LastRun *models.JobRunSummary `json:"last_run,omitempty"`
}

// ResultPage is one page of a job's results in id order.
type ResultPage struct {
	Job    *models.Job      `json:"job"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Total  int              `json:"total"`
	Items  []*models.Result `json:"items"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ListJobs returns jobs newest first. limit is clamped to [1, MaxJobLimit]
// and offset to >= 0.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) (*JobPage, error) {
	limit = clamp(limit, 1, MaxJobLimit)
	offset = max(offset, 0)

	items, total, err := s.store.ListJobs(ctx, store.JobFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return &JobPage{Limit: limit, Offset: offset, Total: total, Items: items}, nil
}

// GetJob returns a job with its last run summary. Cache failures are logged
// and the summary omitted.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*JobDetail, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &JobDetail{Job: job}
	lastRun, ok, err := s.cache.GetLastRun(ctx, id)
	switch {
	case err != nil:
		slog.Warn("reading last run failed", "job_id", id, "error", err)
	case ok:
		detail.LastRun = lastRun
	}
	return detail, nil
}

// ListResults returns a job and one page of its results. limit is clamped to
// [1, MaxResultLimit] and offset to >= 0.
func (s *Service) ListResults(ctx context.Context, id uuid.UUID, limit, offset int) (*ResultPage, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	limit = clamp(limit, 1, MaxResultLimit)
	offset = max(offset, 0)

	items, total, err := s.store.ListResults(ctx, store.ResultFilter{JobID: id, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	return &ResultPage{Job: job, Limit: limit, Offset: offset, Total: total, Items: items}, nil
}
