// Package stub provides fixed-response fetchers used until real platform
// integrations are configured.
package stub

import (
	"context"
	"time"

	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	youTubeTitle    = "Example YouTube Video"
	youTubeViews    = 123456
	youTubeLikes    = 7890
	youTubeComments = 123

	tikTokFailure    = "Failed to fetch data from TikTok. This is a stub response for testing."
	instagramFailure = "Failed to fetch data from Instagram. This is a stub response for testing."
)

// YouTube always succeeds with fixed metadata published "now".
type YouTube struct {
	now func() time.Time
}

// NewYouTube returns a YouTube stub reading the publish time from now.
func NewYouTube(now func() time.Time) *YouTube {
	if now == nil {
		now = time.Now
	}
	return &YouTube{now: now}
}

func (y *YouTube) Platform() string { return models.PlatformYouTube }

func (y *YouTube) Fetch(_ context.Context, _ string) (models.FetchOutcome, error) {
	views, likes, comments := int64(youTubeViews), int64(youTubeLikes), int64(youTubeComments)
	published := y.now().UTC()
	return models.FetchSuccess(models.FetchMetadata{
		Title:       youTubeTitle,
		Views:       &views,
		Likes:       &likes,
		Comments:    &comments,
		PublishedAt: &published,
	}), nil
}

// Failing always returns the same failure for its platform.
type Failing struct {
	platform string
	message  string
}

func NewTikTok() *Failing    { return &Failing{platform: models.PlatformTikTok, message: tikTokFailure} }
func NewInstagram() *Failing { return &Failing{platform: models.PlatformInstagram, message: instagramFailure} }

func (f *Failing) Platform() string { return f.platform }

func (f *Failing) Fetch(_ context.Context, _ string) (models.FetchOutcome, error) {
	return models.FetchFailure(f.message), nil
}

var (
	_ models.Fetcher = (*YouTube)(nil)
	_ models.Fetcher = (*Failing)(nil)
)
