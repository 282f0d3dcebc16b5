package query

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/rewardsfarm/search/query/internal/feed"
)

// DefaultTrendsURL is the trending-searches RSS feed; %s is the geo code.
const DefaultTrendsURL = "https://trends.google.com/trending/rss?geo=%s"

// Trends fetches trending topics from an RSS or Atom feed.
type Trends struct {
	url      string
	withNews bool
	client   *resty.Client
	policy   *bluemonday.Policy
}

// TrendsOption configures a Trends provider.
type TrendsOption func(*Trends)

// WithNews also yields the headlines attached to each topic.
func WithNews() TrendsOption { return func(t *Trends) { t.withNews = true } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) TrendsOption {
	return func(t *Trends) { t.client = resty.NewWithClient(c) }
}

// WithFeedURL overrides the feed URL.
func WithFeedURL(u string) TrendsOption { return func(t *Trends) { t.url = u } }

// NewTrends creates a trending provider for geo (e.g. "US").
func NewTrends(geo string, opts ...TrendsOption) *Trends {
	if geo == "" {
		geo = "US"
	}
	t := &Trends{
		url:    fmt.Sprintf(DefaultTrendsURL, strings.ToUpper(geo)),
		policy: bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(t)
	}
	if t.client == nil {
		t.client = resty.New()
	}
	t.client.SetTimeout(20 * time.Second)
	t.client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	return t
}

func (t *Trends) Name() string { return "trends" }

// Terms fetches and parses the feed. Titles are stripped of markup.
func (t *Trends) Terms(ctx context.Context) ([]string, error) {
	res, err := t.client.R().SetContext(ctx).Get(t.url)
	if err != nil {
		return nil, fmt.Errorf("query: fetch trends: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("query: fetch trends: status %d", res.StatusCode())
	}
	f, err := feed.Parse(res.Body())
	if err != nil {
		return nil, fmt.Errorf("query: parse trends: %w", err)
	}
	raw := f.Terms(t.withNews)
	out := make([]string, 0, len(raw))
	for _, term := range raw {
		term = html.UnescapeString(t.policy.Sanitize(term))
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, term)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("query: trends feed %q had no items", f.Title)
	}
	return out, nil
}
