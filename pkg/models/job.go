// Package models contains shared data models used across the linkmetrics codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
)

// jobTransitions lists the statuses a job may move to from each status.
// running -> queued releases a run that never reached completion.
var jobTransitions = map[string][]string{
	JobStatusQueued:    {JobStatusRunning},
	JobStatusRunning:   {JobStatusCompleted, JobStatusQueued},
	JobStatusCompleted: {JobStatusRunning},
}

// CanTransition reports whether a job in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which a job may move to status to.
func TransitionSources(to string) []string {
	var from []string
	for _, s := range []string{JobStatusQueued, JobStatusRunning, JobStatusCompleted} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// Job is one uploaded batch. Its status tracks orchestration progress, not row
// success: a completed job may still contain failed results.
type Job struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	Status        string    `db:"status"         json:"status"`
	TotalRows     int       `db:"total_rows"     json:"total_rows"`
	ProcessedRows int       `db:"processed_rows" json:"processed_rows"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// JobRunSummary reports the outcome of a single run over a job's queued results.
type JobRunSummary struct {
	JobID         uuid.UUID `json:"job_id"`
	Status        string    `json:"status"`
	ProcessedRows int       `json:"processed_rows"`
	SuccessRows   int       `json:"success_rows"`
	FailedRows    int       `json:"failed_rows"`
}

// JobCreationSummary is returned after an upload has been turned into a job.
type JobCreationSummary struct {
	JobID          uuid.UUID    `json:"job_id"`
	TotalRows      int          `json:"total_rows"`
	ValidRows      int          `json:"valid_rows"`
	InvalidRows    int          `json:"invalid_rows"`
	InvalidPreview []InvalidRow `json:"invalid_preview"`
}

// InvalidRow is a row that failed validation, as shown in upload previews.
type InvalidRow struct {
	RowIndex      int      `json:"row_index"`
	ErrorMessages []string `json:"error_messages"`
}
