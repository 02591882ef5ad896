// Package indexer implements the HTTP search clients for configured torrent
// indexers, with per-indexer outbound rate limiting.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"golang.org/x/time/rate"

	"grabarr/internal/config"
	"grabarr/internal/services"
)

// HTTPDoer describes the HTTP client used for indexer queries.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries a single indexer's aggregate search endpoint. Outbound
// calls pass through both a token-bucket pacer and a sliding-window burst
// guard so a busy search cycle cannot hammer the provider.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	categories []int

	doer    HTTPDoer
	pacer   *rate.Limiter
	window  *slidingwindow.Limiter
	timeout time.Duration
}

// NewClient constructs a client for one configured indexer.
func NewClient(cfg config.Indexer) *Client {
	window, _ := slidingwindow.NewLimiter(
		time.Duration(cfg.LimiterSeconds)*time.Second,
		int64(cfg.LimiterCalls),
		func() (slidingwindow.Window, slidingwindow.StopFunc) { return slidingwindow.NewLocalWindow() },
	)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		categories: append([]int{}, cfg.Categories...),
		doer:       &http.Client{Timeout: timeout},
		pacer:      rate.NewLimiter(rate.Every(time.Duration(cfg.LimiterSeconds)*time.Second/time.Duration(maxInt(cfg.LimiterCalls, 1))), cfg.LimiterCalls),
		window:     window,
		timeout:    timeout,
	}
}

// WithDoer swaps the HTTP client, used by tests.
func (c *Client) WithDoer(doer HTTPDoer) *Client {
	c.doer = doer
	return c
}

// Name returns the configured indexer name.
func (c *Client) Name() string { return c.name }

type searchResponse struct {
	Results []searchResult `json:"Results"`
}

type searchResult struct {
	Title     string `json:"Title"`
	Size      int64  `json:"Size"`
	Seeders   int    `json:"Seeders"`
	Peers     int    `json:"Peers"`
	Tracker   string `json:"Tracker"`
	MagnetURI string `json:"MagnetUri"`
	Link      string `json:"Link"`
}

// Search runs one query against the indexer and returns the candidates it
// reported. The sliding window rejects immediately with a rate-limited error
// rather than queueing; the orchestrator's fixed retry interval absorbs the
// wait.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	if !c.window.Allow() {
		return nil, services.Wrap(services.ErrRateLimited, "indexer", c.name, "outbound window exhausted", nil)
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, "indexer", c.name, "rate pacer wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(query), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "indexer", c.name, "build search request", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "indexer", c.name, "search request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrRateLimited, "indexer", c.name, "provider throttled the query", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, services.Wrap(services.ErrAuthentication, "indexer", c.name, "api key rejected", nil)
	case resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrUnavailable, "indexer", c.name,
			fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrTransient, "indexer", c.name,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "indexer", c.name, "decode search response", err)
	}

	candidates := make([]Candidate, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		uri := result.MagnetURI
		if uri == "" {
			uri = result.Link
		}
		if uri == "" || strings.TrimSpace(result.Title) == "" {
			continue
		}
		leechers := result.Peers - result.Seeders
		if leechers < 0 {
			leechers = 0
		}
		candidates = append(candidates, Candidate{
			Title:    result.Title,
			SizeB:    result.Size,
			Seeders:  result.Seeders,
			Leechers: leechers,
			Quality:  DeriveQuality(result.Title),
			Format:   DeriveFormat(result.Title),
			Indexer:  c.name,
			URI:      uri,
		})
	}
	return candidates, nil
}

func (c *Client) buildURL(query string) string {
	var b strings.Builder
	b.Grow(len(c.baseURL) + len(query) + 64)
	b.WriteString(c.baseURL)
	if strings.Contains(c.baseURL, "?") {
		b.WriteString("&")
	} else {
		b.WriteString("?")
	}
	b.WriteString("apikey=")
	b.WriteString(url.QueryEscape(c.apiKey))
	b.WriteString("&Query=")
	b.WriteString(url.QueryEscape(query))
	for _, cat := range c.categories {
		b.WriteString("&Category%5B%5D=")
		b.WriteString(strconv.Itoa(cat))
	}
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DeriveQuality maps resolution tokens in a release title to the quality
// labels preference lists use.
func DeriveQuality(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "2160p"):
		return "UHD_2160P"
	case strings.Contains(lower, "1080p"):
		return "HD_1080P"
	case strings.Contains(lower, "720p"):
		return "HD_720P"
	case strings.Contains(lower, "480p"), strings.Contains(lower, "dvdrip"):
		return "SD_480P"
	default:
		return ""
	}
}

// DeriveFormat maps codec tokens in a release title to the format labels
// preference lists use.
func DeriveFormat(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "x265"), strings.Contains(lower, "h265"), strings.Contains(lower, "hevc"):
		return "x265"
	case strings.Contains(lower, "x264"), strings.Contains(lower, "h264"), strings.Contains(lower, "avc"):
		return "x264"
	case strings.Contains(lower, "xvid"):
		return "xvid"
	default:
		return ""
	}
}
