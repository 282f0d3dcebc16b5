// Package session drives a browser against the rewards dashboard and the
// search engine. A Session is one signed-in Chrome profile on one
// platform; it satisfies search.Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/hazyhaar/rewardsfarm/search"
	"github.com/hazyhaar/rewardsfarm/session/internal/browser"
)

// Endpoints. Overridable for tests and regional mirrors.
var (
	RewardsURL = "https://rewards.bing.com/"
	SearchURL  = "https://www.bing.com/search"
	HomeURL    = "https://www.bing.com/"
)

// ErrNoDashboard is returned when the dashboard state is not on the page,
// usually because the session is not signed in.
var ErrNoDashboard = errors.New("session: dashboard state not found")

// Display re-exports the browser display modes.
type Display = browser.Display

const (
	DisplayHeadless = browser.DisplayHeadless
	DisplayXvfb     = browser.DisplayXvfb
	DisplayVisible  = browser.DisplayVisible
)

// Options configures Open.
type Options struct {
	Kind search.Kind

	// ProfileDir is the root of per-account Chrome profiles.
	ProfileDir string
	Username   string

	Proxy            string
	Lang             string
	Geo              string
	Display          Display
	RemoteURL        string
	ChromeBin        string
	ResourceBlocking []string

	Logger *slog.Logger
}

// page is the browser surface a Session needs.
type page interface {
	Navigate(ctx context.Context, url string) error
	URL() string
	HTML(ctx context.Context) (string, error)
	EvalString(ctx context.Context, fn string) (string, error)
	Has(ctx context.Context, selector string) bool
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// Session is a signed-in browser on one platform.
type Session struct {
	kind   search.Kind
	page   page
	closer func() error
	logger *slog.Logger
	geo    string

	mu            sync.Mutex
	dash          *Dashboard
	balance       int
	haveBalance   bool
	remaining     uint
	haveRemaining bool
	blocked       bool
}

// ProfilePath is where a given account keeps its Chrome profile for kind.
func ProfilePath(root, username string, kind search.Kind) string {
	return filepath.Join(root, safeName(username), kind.String())
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "_")
	if s == "" {
		return "default"
	}
	return s
}

// Open launches Chrome for opts.Kind and opens a tab.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("kind", opts.Kind.String())

	cfg := browser.Config{
		RemoteURL:        opts.RemoteURL,
		Bin:              opts.ChromeBin,
		Proxy:            opts.Proxy,
		Lang:             opts.Lang,
		Mobile:           opts.Kind == search.Mobile,
		Display:          opts.Display,
		ResourceBlocking: opts.ResourceBlocking,
		Logger:           logger,
	}
	if opts.ProfileDir != "" {
		cfg.UserDataDir = ProfilePath(opts.ProfileDir, opts.Username, opts.Kind)
	}

	mgr := browser.NewManager(cfg)
	if _, err := mgr.Start(ctx); err != nil {
		return nil, &search.SessionError{Op: "open", Cause: err}
	}
	p, err := mgr.NewPage(ctx)
	if err != nil {
		_ = mgr.Close()
		return nil, &search.SessionError{Op: "open", Cause: err}
	}

	s := newSession(opts.Kind, p, logger)
	s.geo = opts.Geo
	s.closer = func() error {
		_ = p.Close()
		return mgr.Close()
	}
	return s, nil
}

func newSession(kind search.Kind, p page, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{kind: kind, page: p, logger: logger, closer: p.Close}
}

// Kind is the platform this session searches as.
func (s *Session) Kind() search.Kind { return s.kind }

// Close closes the tab and the browser.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer()
	s.closer = nil
	return err
}

// Dashboard navigates to the rewards dashboard and reads its state.
func (s *Session) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := s.page.Navigate(ctx, RewardsURL); err != nil {
		return nil, err
	}
	if html, err := s.page.HTML(ctx); err == nil && IsSuspended(html) {
		s.mu.Lock()
		s.blocked = true
		s.mu.Unlock()
		return nil, fmt.Errorf("session: account suspended: %w", search.ErrBlocked)
	}
	raw, err := s.page.EvalString(ctx, `() => JSON.stringify(window.dashboard ?? null)`)
	if err != nil {
		return nil, err
	}
	if raw == "" || raw == "null" {
		return nil, ErrNoDashboard
	}
	d, err := ParseDashboard([]byte(raw))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.dash = d
	s.mu.Unlock()
	return d, nil
}

// RemainingSearches reads the per-platform search counters.
func (s *Session) RemainingSearches(ctx context.Context) (search.Quota, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return search.Quota{}, err
	}
	q := d.Remaining()
	s.mu.Lock()
	s.remaining, s.haveRemaining = q.Get(s.kind), true
	s.mu.Unlock()
	return q, nil
}

// AccountPoints reads the available points balance.
func (s *Session) AccountPoints(ctx context.Context) (int, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return 0, err
	}
	pts := d.UserStatus.AvailablePoints
	s.mu.Lock()
	s.balance, s.haveBalance = pts, true
	s.mu.Unlock()
	return pts, nil
}

// Goal reads the redeem goal.
func (s *Session) Goal(ctx context.Context) (Goal, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return Goal{}, err
	}
	return d.Goal(), nil
}

// PointsPerSearch is the rate from the last dashboard read, 0 if none.
func (s *Session) PointsPerSearch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dash == nil {
		return 0
	}
	return s.dash.PointsPerSearch()
}

// Blocked reports whether the account or the current page is behind a
// suspension notice or a human check.
func (s *Session) Blocked(ctx context.Context) bool {
	s.mu.Lock()
	blocked := s.blocked
	s.mu.Unlock()
	if blocked {
		return true
	}
	html, err := s.page.HTML(ctx)
	if err != nil {
		return false
	}
	if IsSuspended(html) {
		return true
	}
	serp, err := ParseSERP(html)
	return err == nil && serp.Challenge
}

// SearchTermURL builds the results URL for term.
func (s *Session) SearchTermURL(term string) string {
	v := url.Values{}
	v.Set("q", term)
	v.Set("form", "QBLH")
	if s.geo != "" {
		v.Set("cc", strings.ToUpper(s.geo))
	}
	return SearchURL + "?" + v.Encode()
}

// PerformSearch runs one search and decides whether it was credited: a
// higher balance badge on the results page means yes; without a badge the
// remaining-searches counter on the dashboard is compared instead.
func (s *Session) PerformSearch(ctx context.Context, term string) search.SearchOutcome {
	if err := s.page.Navigate(ctx, s.SearchTermURL(term)); err != nil {
		return search.SearchOutcome{Err: err}
	}
	html, err := s.page.HTML(ctx)
	if err != nil {
		return search.SearchOutcome{Err: err}
	}
	serp, err := ParseSERP(html)
	if err != nil {
		return search.SearchOutcome{Err: err}
	}
	if serp.Challenge {
		s.mu.Lock()
		s.blocked = true
		s.mu.Unlock()
		return search.SearchOutcome{Blocked: true}
	}

	s.mu.Lock()
	prev, havePrev := s.balance, s.haveBalance
	if serp.HasBalance {
		s.balance, s.haveBalance = serp.Balance, true
	}
	s.mu.Unlock()

	if serp.HasBalance && havePrev {
		credited := serp.Balance > prev
		s.logger.Debug("session: balance check", "term", term, "before", prev, "after", serp.Balance)
		return search.SearchOutcome{Credited: credited}
	}
	return s.creditedByCounter(ctx, term)
}

func (s *Session) creditedByCounter(ctx context.Context, term string) search.SearchOutcome {
	s.mu.Lock()
	before, have := s.remaining, s.haveRemaining
	s.mu.Unlock()

	q, err := s.RemainingSearches(ctx)
	if err != nil {
		if errors.Is(err, search.ErrBlocked) {
			return search.SearchOutcome{Blocked: true}
		}
		return search.SearchOutcome{Err: err}
	}
	after := q.Get(s.kind)
	s.logger.Debug("session: counter check", "term", term, "before", before, "after", after)
	if !have {
		// Without a baseline the search cannot be judged.
		return search.SearchOutcome{Credited: false}
	}
	return search.SearchOutcome{Credited: after < before}
}
