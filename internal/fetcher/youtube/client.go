// Package youtube fetches video metadata from the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/linkmetrics/pkg/models"
	"golang.org/x/time/rate"
)

const (
	msgInvalidURL   = "Could not extract a YouTube video ID from the URL."
	msgNotFound     = "YouTube video not found or not public."
	msgQuota        = "YouTube API quota or rate limit exceeded. Try again later."
	msgTimeout      = "YouTube API request timed out."
	msgUnreachable  = "Could not reach the YouTube API."
	msgBadResponse  = "YouTube API returned an unreadable response."
	msgStatusFormat = "YouTube API returned status %d."
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client implements models.Fetcher against the YouTube Data API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new YouTube Data API client.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  hc,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) Platform() string { return models.PlatformYouTube }

// Fetch looks up one video. Every expected failure comes back as a failed
// outcome; the returned error is reserved for request construction bugs.
func (c *Client) Fetch(ctx context.Context, rawURL string) (models.FetchOutcome, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		return models.FetchFailure(msgInvalidURL), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.FetchFailure(msgTimeout), nil
	}

	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {id},
		"key":  {c.apiKey},
	}
	u := fmt.Sprintf("%s/videos?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.FetchOutcome{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.FetchFailure(classifyError(err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.FetchFailure(classifyError(err)), nil
	}

	if resp.StatusCode != http.StatusOK {
		return models.FetchFailure(statusMessage(resp.StatusCode, body)), nil
	}

	var list videoListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return models.FetchFailure(msgBadResponse), nil
	}
	if len(list.Items) == 0 {
		return models.FetchFailure(msgNotFound), nil
	}

	meta, err := list.Items[0].metadata()
	if err != nil {
		return models.FetchFailure(msgBadResponse), nil
	}
	return models.FetchSuccess(meta), nil
}

// statusMessage maps a non-200 API response to a failure message.
func statusMessage(status int, body []byte) string {
	switch status {
	case http.StatusNotFound:
		return msgNotFound
	case http.StatusTooManyRequests:
		return msgQuota
	case http.StatusForbidden:
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.quotaExceeded() {
			return msgQuota
		}
	}
	return fmt.Sprintf(msgStatusFormat, status)
}

// classifyError maps transport-level errors to failure messages. The raw
// error is not surfaced because it carries the request URL and API key.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return msgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return msgTimeout
	}
	return msgUnreachable
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

func (v videoItem) metadata() (models.FetchMetadata, error) {
	meta := models.FetchMetadata{Title: v.Snippet.Title}

	var err error
	if meta.Views, err = parseCount(v.Statistics.ViewCount); err != nil {
		return meta, err
	}
	if meta.Likes, err = parseCount(v.Statistics.LikeCount); err != nil {
		return meta, err
	}
	if meta.Comments, err = parseCount(v.Statistics.CommentCount); err != nil {
		return meta, err
	}

	if v.Snippet.PublishedAt != "" {
		t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		if err != nil {
			return meta, fmt.Errorf("parsing publishedAt: %w", err)
		}
		t = t.UTC()
		meta.PublishedAt = &t
	}
	return meta, nil
}

// parseCount parses a string counter; hidden counters are omitted by the API.
func parseCount(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing count %q: %w", s, err)
	}
	return &n, nil
}

type apiErrorResponse struct {
	Error struct {
		Code   int `json:"code"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (r apiErrorResponse) quotaExceeded() bool {
	for _, e := range r.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

var _ models.Fetcher = (*Client)(nil)
