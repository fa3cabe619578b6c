package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ResultStatusQueued  = "queued"
	ResultStatusSuccess = "success"
	ResultStatusFailed  = "failed"
)

// Result is one tracked (platform, url) work item owned by a Job.
// Success fields are set only when Status is success; ErrorMessage is set
// if and only if Status is failed.
type Result struct {
	ID             int64      `db:"id"              json:"id"`
	JobID          uuid.UUID  `db:"job_id"          json:"job_id"`
	Platform       string     `db:"platform"        json:"platform"`
	URL            string     `db:"url"             json:"url"`
	Status         string     `db:"status"          json:"status"`
	Title          *string    `db:"title"           json:"title"`
	Views          *int64     `db:"views"           json:"views"`
	Likes          *int64     `db:"likes"           json:"likes"`
	Comments       *int64     `db:"comments"        json:"comments"`
	PublishedAt    *time.Time `db:"published_at"    json:"published_at"`
	EngagementRate *float64   `db:"engagement_rate" json:"engagement_rate"`
	ErrorMessage   *string    `db:"error_message"   json:"error_message"`
}

// Terminal reports whether the result has left the queued state.
func (r *Result) Terminal() bool {
	return r.Status == ResultStatusSuccess || r.Status == ResultStatusFailed
}

// EngagementRate returns (likes + comments) / views, treating missing likes
// and comments as zero. It returns nil when views is missing or not positive.
func EngagementRate(views, likes, comments *int64) *float64 {
	if views == nil || *views <= 0 {
		return nil
	}
	var l, c int64
	if likes != nil {
		l = *likes
	}
	if comments != nil {
		c = *comments
	}
	rate := float64(l+c) / float64(*views)
	return &rate
}
