package models

import (
	"context"
	"time"
)

// Fetcher turns a URL into metadata for one platform. Expected failures
// (unavailable content, rate limits, network errors, bad URLs) are returned
// as a failed FetchOutcome; a non-nil error means something unexpected.
type Fetcher interface {
	Platform() string
	Fetch(ctx context.Context, url string) (FetchOutcome, error)
}

// FetchMetadata is what a successful fetch yields.
type FetchMetadata struct {
	Title       string
	Views       *int64
	Likes       *int64
	Comments    *int64
	PublishedAt *time.Time
}

const defaultFetchFailure = "Failed to fetch metadata."

// FetchOutcome holds either metadata or a failure message, never both.
// Build it with FetchSuccess or FetchFailure.
type FetchOutcome struct {
	metadata     *FetchMetadata
	errorMessage string
}

// FetchSuccess returns a successful outcome carrying m.
func FetchSuccess(m FetchMetadata) FetchOutcome {
	return FetchOutcome{metadata: &m}
}

// FetchFailure returns a failed outcome with a human-readable message.
func FetchFailure(msg string) FetchOutcome {
	if msg == "" {
		msg = defaultFetchFailure
	}
	return FetchOutcome{errorMessage: msg}
}

// Succeeded reports whether the outcome carries metadata.
func (o FetchOutcome) Succeeded() bool {
	return o.metadata != nil
}

// Metadata returns the fetched metadata; zero for a failed outcome.
func (o FetchOutcome) Metadata() FetchMetadata {
	if o.metadata == nil {
		return FetchMetadata{}
	}
	return *o.metadata
}

// ErrorMessage returns the failure message; empty for a successful outcome.
func (o FetchOutcome) ErrorMessage() string {
	if o.metadata != nil {
		return ""
	}
	if o.errorMessage == "" {
		return defaultFetchFailure
	}
	return o.errorMessage
}
