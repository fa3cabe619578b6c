package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/api/response"
	"github.com/kiranshivaraju/linkmetrics/internal/jobs"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// JobReader defines the read operations the job handlers depend on.
type JobReader interface {
	ListJobs(ctx context.Context, limit, offset int) (*jobs.JobPage, error)
	GetJob(ctx context.Context, id uuid.UUID) (*jobs.JobDetail, error)
	ListResults(ctx context.Context, id uuid.UUID, limit, offset int) (*jobs.ResultPage, error)
}

// RunTrigger starts a job run in the background.
type RunTrigger interface {
	Trigger(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type runAccepted struct {
	JobID         uuid.UUID `json:"job_id"`
	Status        string    `json:"status"`
	TotalRows     int       `json:"total_rows"`
	ProcessedRows int       `json:"processed_rows"`
}

// NewRunHandler returns an http.HandlerFunc for POST /jobs/{job_id}/run.
func NewRunHandler(trigger RunTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		job, err := trigger.Trigger(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.Accepted(w, runAccepted{
			JobID:         job.ID,
			Status:        job.Status,
			TotalRows:     job.TotalRows,
			ProcessedRows: job.ProcessedRows,
		})
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /jobs.
func NewListJobsHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.ListJobs(r.Context(),
			queryInt(r, "limit", jobs.DefaultJobLimit),
			queryInt(r, "offset", 0))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, page)
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /jobs/{job_id}.
func NewGetJobHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetJob(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, detail)
	}
}

// NewListResultsHandler returns an http.HandlerFunc for GET /jobs/{job_id}/results.
func NewListResultsHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		page, err := svc.ListResults(r.Context(), id,
			queryInt(r, "limit", jobs.DefaultResultLimit),
			queryInt(r, "offset", 0))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, page)
	}
}
