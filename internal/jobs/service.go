// Package jobs turns uploads into jobs and drives their per-row fetch runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/cache"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/internal/upload"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	// InvalidPreviewLimit bounds the invalid rows echoed back after an upload.
	InvalidPreviewLimit = 20

	msgUnexpectedFetch = "Unexpected error while fetching metadata."
)

// Resolver looks up the fetcher for a platform name.
type Resolver interface {
	Resolve(platform string) (models.Fetcher, error)
}

// Service orchestrates job creation, runs and read projections.
type Service struct {
	store        store.Store
	cache        cache.Cache
	parser       *upload.Parser
	fetchers     Resolver
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewService creates a new Service.
func NewService(st store.Store, ca cache.Cache, parser *upload.Parser, fetchers Resolver, fetchTimeout time.Duration) *Service {
	return &Service{
		store:        st,
		cache:        ca,
		parser:       parser,
		fetchers:     fetchers,
		fetchTimeout: fetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Preview parses an upload without persisting anything.
func (s *Service) Preview(src upload.Source) (*models.UploadReport, error) {
	return s.parser.Parse(src)
}

// CreateFromUpload parses an upload and persists a queued Job plus one queued
// Result per valid row, atomically. Invalid rows are only reported.
func (s *Service) CreateFromUpload(ctx context.Context, src upload.Source) (*models.JobCreationSummary, error) {
	report, err := s.parser.Parse(src)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &models.Job{
		ID:        uuid.New(),
		Status:    models.JobStatusQueued,
		TotalRows: report.ValidRows,
		CreatedAt: now,
		UpdatedAt: now,
	}

	results := make([]*models.Result, 0, report.ValidRows)
	preview := []models.InvalidRow{}
	for _, row := range report.Rows {
		if !row.Valid() {
			if len(preview) < InvalidPreviewLimit {
				preview = append(preview, models.InvalidRow{RowIndex: row.RowIndex, ErrorMessages: row.ErrorMessages})
			}
			continue
		}
		results = append(results, &models.Result{
			JobID:    job.ID,
			Platform: *row.Platform,
			URL:      *row.URL,
			Status:   models.ResultStatusQueued,
		})
	}

	if err := s.store.CreateJobWithResults(ctx, job, results); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	slog.Info("job created", "job_id", job.ID, "total_rows", report.TotalRows,
		"valid_rows", report.ValidRows, "invalid_rows", report.InvalidRows)

	return &models.JobCreationSummary{
		JobID:          job.ID,
		TotalRows:      report.TotalRows,
		ValidRows:      report.ValidRows,
		InvalidRows:    report.InvalidRows,
		InvalidPreview: preview,
	}, nil
}

// StartRun moves a job to running. It fails with store.ErrNotFound for an
// unknown job and ErrRunInProgress when a run already holds it.
func (s *Service) StartRun(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.store.TransitionJob(ctx, id, models.JobStatusRunning)
	if errors.Is(err, store.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, id)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("job run started", "job_id", id)
	return job, nil
}

// AbortRun releases a running job back to queued and drops its cached last
// run, which no longer describes the job.
func (s *Service) AbortRun(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.TransitionJob(ctx, id, models.JobStatusQueued); err != nil {
		return fmt.Errorf("aborting run: %w", err)
	}
	if err := s.cache.Delete(ctx, cache.LastRunKey(id)); err != nil {
		slog.Warn("clearing last run failed", "job_id", id, "error", err)
	}
	slog.Warn("job run aborted", "job_id", id)
	return nil
}

// Run starts and processes a job synchronously.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (*models.JobRunSummary, error) {
	if _, err := s.StartRun(ctx, id); err != nil {
		return nil, err
	}
	return s.ProcessRun(ctx, id)
}

// ProcessRun visits every queued Result of a running job in id order, records
// each outcome individually and then completes the job. Fetch failures stay on
// their row; a store failure aborts the run and leaves the remaining rows queued.
func (s *Service) ProcessRun(ctx context.Context, id uuid.UUID) (*models.JobRunSummary, error) {
	queued, err := s.store.ListQueuedResults(ctx, id)
	if err != nil {
		return nil, s.abort(ctx, id, fmt.Errorf("loading queued results: %w", err))
	}

	summary := &models.JobRunSummary{JobID: id}
	for _, r := range queued {
		applyOutcome(r, s.fetch(ctx, r))

		if err := s.store.CompleteResult(ctx, r); err != nil {
			if errors.Is(err, store.ErrResultNotQueued) {
				slog.Warn("result already processed", "job_id", id, "result_id", r.ID)
				continue
			}
			return nil, s.abort(ctx, id, fmt.Errorf("saving result %d: %w", r.ID, err))
		}

		summary.ProcessedRows++
		if r.Status == models.ResultStatusSuccess {
			summary.SuccessRows++
		} else {
			summary.FailedRows++
			slog.Warn("row fetch failed", "job_id", id, "result_id", r.ID,
				"platform", r.Platform, "error", *r.ErrorMessage)
		}
	}

	job, err := s.store.CompleteJob(ctx, id)
	if err != nil {
		return nil, s.abort(ctx, id, fmt.Errorf("completing job: %w", err))
	}
	summary.Status = job.Status

	if err := s.cache.SetLastRun(ctx, summary, cache.LastRunTTL); err != nil {
		slog.Warn("caching last run failed", "job_id", id, "error", err)
	}

	slog.Info("job run finished", "job_id", id, "processed_rows", summary.ProcessedRows,
		"success_rows", summary.SuccessRows, "failed_rows", summary.FailedRows)
	return summary, nil
}

// abort releases the job after a run-level failure and returns cause.
func (s *Service) abort(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.AbortRun(context.WithoutCancel(ctx), id); err != nil {
		slog.Error("releasing failed run", "job_id", id, "error", err)
	}
	return cause
}

// fetch resolves and calls the row's fetcher. Unknown platforms, unexpected
// errors and panics all come back as failed outcomes.
func (s *Service) fetch(ctx context.Context, r *models.Result) (out models.FetchOutcome) {
	f, err := s.fetchers.Resolve(r.Platform)
	if err != nil {
		return models.FetchFailure(fmt.Sprintf("Unsupported platform: %s", r.Platform))
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in fetcher", "error", rec, "result_id", r.ID, "platform", r.Platform)
			out = models.FetchFailure(msgUnexpectedFetch)
		}
	}()

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	out, err = f.Fetch(fetchCtx, r.URL)
	if err != nil {
		slog.Error("fetcher error", "error", err, "result_id", r.ID, "platform", r.Platform)
		return models.FetchFailure(msgUnexpectedFetch)
	}
	return out
}

// applyOutcome moves a queued result to its terminal state.
func applyOutcome(r *models.Result, out models.FetchOutcome) {
	if !out.Succeeded() {
		msg := out.ErrorMessage()
		r.Status = models.ResultStatusFailed
		r.ErrorMessage = &msg
		r.Title, r.Views, r.Likes, r.Comments, r.PublishedAt, r.EngagementRate = nil, nil, nil, nil, nil, nil
		return
	}

	meta := out.Metadata()
	r.Status = models.ResultStatusSuccess
	r.ErrorMessage = nil
	r.Title = nil
	if meta.Title != "" {
		title := meta.Title
		r.Title = &title
	}
	r.Views, r.Likes, r.Comments = meta.Views, meta.Likes, meta.Comments
	r.PublishedAt = nil
	if meta.PublishedAt != nil {
		published := meta.PublishedAt.UTC()
		r.PublishedAt = &published
	}
	r.EngagementRate = models.EngagementRate(r.Views, r.Likes, r.Comments)
}
