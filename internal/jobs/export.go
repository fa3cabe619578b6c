package jobs

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// ExportColumns is the header row of a results export.
var ExportColumns = []string{
	"platform", "url", "title", "views", "likes", "comments",
	"published_at", "engagement_rate", "status", "error_message",
}

const utf8BOM = "\ufeff"

// ExportResults streams a completed job's results to w as BOM-prefixed CSV in
// id order. Nothing reaches w unless the job exists, is completed and the
// results query has produced rows or finished.
func (s *Service) ExportResults(ctx context.Context, id uuid.UUID, w io.Writer) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusCompleted {
		return fmt.Errorf("%w: %s status=%s", ErrJobNotCompleted, id, job.Status)
	}

	// The BOM and header stay buffered until StreamResults delivers output.
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	cw := csv.NewWriter(bw)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	err = s.store.StreamResults(ctx, id, func(r *models.Result) error {
		return cw.Write(exportRecord(r))
	})
	if err != nil {
		return fmt.Errorf("exporting results: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func exportRecord(r *models.Result) []string {
	return []string{
		r.Platform,
		r.URL,
		deref(r.Title),
		formatCount(r.Views),
		formatCount(r.Likes),
		formatCount(r.Comments),
		formatTime(r.PublishedAt),
		FormatEngagementRate(r.Views, r.Likes, r.Comments),
		r.Status,
		deref(r.ErrorMessage),
	}
}

// FormatEngagementRate renders (likes+comments)/views with six decimals, or
// "" when views is missing or not positive.
func FormatEngagementRate(views, likes, comments *int64) string {
	rate := models.EngagementRate(views, likes, comments)
	if rate == nil {
		return ""
	}
	return strconv.FormatFloat(*rate, 'f', 6, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatCount(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
