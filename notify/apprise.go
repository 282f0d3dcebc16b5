package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Apprise posts to an Apprise API server. With a key the server's stored
// configuration is used (/notify/{key}); otherwise URLs are sent inline.
type Apprise struct {
	endpoint string
	key      string
	urls     []string
	tag      string
	client   *resty.Client
}

// AppriseOption configures an Apprise notifier.
type AppriseOption func(*Apprise)

// WithAppriseKey targets a stored configuration.
func WithAppriseKey(key string) AppriseOption { return func(a *Apprise) { a.key = key } }

// WithAppriseTag restricts a stored configuration to one tag.
func WithAppriseTag(tag string) AppriseOption { return func(a *Apprise) { a.tag = tag } }

// WithAppriseClient replaces the HTTP client.
func WithAppriseClient(c *resty.Client) AppriseOption { return func(a *Apprise) { a.client = c } }

// NewApprise creates an Apprise notifier for the server at endpoint.
func NewApprise(endpoint string, urls []string, opts ...AppriseOption) *Apprise {
	a := &Apprise{endpoint: strings.TrimRight(endpoint, "/"), urls: urls}
	for _, o := range opts {
		o(a)
	}
	if a.client == nil {
		a.client = resty.New().SetTimeout(15 * time.Second)
	}
	return a
}

type appriseRequest struct {
	URLs  string `json:"urls,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  Level  `json:"type"`
}

func (a *Apprise) Notify(ctx context.Context, m Message) error {
	path := "/notify"
	if a.key != "" {
		path += "/" + a.key
	} else if len(a.urls) == 0 {
		return fmt.Errorf("notify: apprise: no urls and no key configured")
	}
	if m.Level == "" {
		m.Level = LevelInfo
	}

	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(appriseRequest{
			URLs:  strings.Join(a.urls, ","),
			Tag:   a.tag,
			Title: m.Title,
			Body:  m.Body,
			Type:  m.Level,
		}).
		Post(a.endpoint + path)
	if err != nil {
		return fmt.Errorf("notify: apprise: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("notify: apprise: status %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return nil
}
