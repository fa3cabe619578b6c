package fetcher

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/linkmetrics/internal/config"
	"github.com/kiranshivaraju/linkmetrics/internal/fetcher/stub"
	"github.com/kiranshivaraju/linkmetrics/internal/fetcher/youtube"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// NewRegistry builds the fetcher set from config. Called once at server startup.
func NewRegistry(cfg config.FetcherConfig) (*Registry, error) {
	var yt models.Fetcher
	switch cfg.YouTube.Backend {
	case config.YouTubeBackendStub:
		yt = stub.NewYouTube(time.Now)
	case config.YouTubeBackendAPI:
		yt = youtube.NewClient(youtube.Options{
			BaseURL:           cfg.YouTube.BaseURL,
			APIKey:            cfg.YouTube.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		})
	default:
		return nil, fmt.Errorf("unknown youtube fetcher backend %q: must be one of stub, api", cfg.YouTube.Backend)
	}

	return New(yt, stub.NewTikTok(), stub.NewInstagram()), nil
}
