package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a job is not in a status that may move
// to the requested one.
var ErrInvalidTransition = errors.New("invalid job status transition")

// ErrResultNotQueued is returned when completing a result that already left the queued state.
var ErrResultNotQueued = errors.New("result is not queued")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJobWithResults inserts the job and its results in one transaction.
	// Result IDs are assigned in slice order.
	CreateJobWithResults(ctx context.Context, job *models.Job, results []*models.Result) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	// TransitionJob moves the job to status `to` only if its current status
	// allows it, and returns the updated job.
	TransitionJob(ctx context.Context, id uuid.UUID, to string) (*models.Job, error)
	// CompleteJob marks a running job completed and recomputes processed_rows
	// from the number of terminal results.
	CompleteJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ResetStaleRuns releases every running job back to queued.
	ResetStaleRuns(ctx context.Context) (int64, error)

	ListResults(ctx context.Context, filter ResultFilter) ([]*models.Result, int, error)
	ListQueuedResults(ctx context.Context, jobID uuid.UUID) ([]*models.Result, error)
	// StreamResults calls fn for each result of the job in ID order.
	StreamResults(ctx context.Context, jobID uuid.UUID, fn func(*models.Result) error) error
	// CompleteResult persists the terminal state of a queued result.
	CompleteResult(ctx context.Context, result *models.Result) error
}

type JobFilter struct {
	Limit  int
	Offset int
}

type ResultFilter struct {
	JobID  uuid.UUID
	Limit  int
	Offset int
}
