// Package config loads the farm configuration from YAML. Values missing
// from the file keep their defaults, and a sibling "<name>.local.yaml"
// overrides the main file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/rewardsfarm/notify"
	"github.com/hazyhaar/rewardsfarm/search"
	"github.com/hazyhaar/rewardsfarm/search/query"
	"github.com/hazyhaar/rewardsfarm/session"
)

// Config is the top-level configuration.
type Config struct {
	// Accounts is the JSON5 accounts file.
	Accounts string `yaml:"accounts"`
	// DataDir holds logs, the history database and browser profiles.
	DataDir string `yaml:"data_dir"`

	Browser BrowserConfig `yaml:"browser"`
	Search  SearchConfig  `yaml:"search"`
	Queries QueryConfig   `yaml:"queries"`
	Tasks   TasksConfig   `yaml:"tasks"`
	Farm    FarmConfig    `yaml:"farm"`
	Notify  NotifyConfig  `yaml:"notify"`
	Status  StatusConfig  `yaml:"status"`
	Log     LogConfig     `yaml:"log"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Display          string   `yaml:"display"` // headless | xvfb | visible
	Remote           string   `yaml:"remote"`
	ChromeBin        string   `yaml:"chrome_bin"`
	Lang             string   `yaml:"lang"`
	Geo              string   `yaml:"geo"`
	Proxy            string   `yaml:"proxy"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// SearchConfig tunes the pass loop.
type SearchConfig struct {
	Type             string        `yaml:"type"` // both | desktop | mobile
	MinDelay         time.Duration `yaml:"min_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	CautiousFactor   float64       `yaml:"cautious_factor"`
	CautiousAfter    uint          `yaml:"cautious_after"`
	AbortAfter       uint          `yaml:"abort_after"`
	ErrorBudget      uint          `yaml:"error_budget"`
	PointsPerSearch  int           `yaml:"points_per_search"`
	AnomalyTolerance int           `yaml:"anomaly_tolerance"`
	ResyncEvery      uint          `yaml:"resync_every"`
	QuotaRetryDelay  time.Duration `yaml:"quota_retry_delay"`
}

// QueryConfig picks term providers.
type QueryConfig struct {
	Providers  []string `yaml:"providers"` // trends, corpus; tried in order
	CorpusFile string   `yaml:"corpus_file"`
	Window     int      `yaml:"window"`
	Similarity float64  `yaml:"similarity"`
	TrendsNews bool     `yaml:"trends_news"`
	TrendsURL  string   `yaml:"trends_url"`
}

// TasksConfig lists bonus tasks to skip (daily_set, more_promotions).
type TasksConfig struct {
	Skip []string `yaml:"skip"`
}

// Enabled reports whether task name runs.
func (t TasksConfig) Enabled(name string) bool { return !slices.Contains(t.Skip, name) }

// FarmConfig controls cross-account scheduling.
type FarmConfig struct {
	Parallel int `yaml:"parallel"`
}

// NotifyConfig configures notifiers.
type NotifyConfig struct {
	Disabled bool                 `yaml:"disabled"`
	Summary  notify.SummaryPolicy `yaml:"summary"`
	Verbose  bool                 `yaml:"verbose"`
	Apprise  AppriseConfig        `yaml:"apprise"`
	Webhooks []string             `yaml:"webhooks"`
	SMTP     *notify.SMTPConfig   `yaml:"smtp"`
}

// AppriseConfig addresses an Apprise API server.
type AppriseConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Key      string   `yaml:"key"`
	Tag      string   `yaml:"tag"`
	URLs     []string `yaml:"urls"`
}

// StatusConfig configures the status endpoint. Empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
	File  string `yaml:"file"`  // relative to DataDir

	// Backups is how many rotated daily files to keep. The file rotates on
	// the first write of a new day.
	Backups int `yaml:"backups"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Accounts: "accounts.json",
		DataDir:  ".",
		Browser: BrowserConfig{
			Display: "headless",
			Lang:    "en",
			Geo:     "US",
		},
		Search: SearchConfig{
			Type:            "both",
			MinDelay:        8 * time.Second,
			MaxDelay:        18 * time.Second,
			CautiousFactor:  2.5,
			CautiousAfter:   3,
			AbortAfter:      8,
			ErrorBudget:     3,
			PointsPerSearch: 3,
			QuotaRetryDelay: 5 * time.Second,
		},
		Queries: QueryConfig{
			Providers:  []string{"trends", "corpus"},
			Window:     query.MinWindow,
			Similarity: 0.97,
		},
		Farm: FarmConfig{Parallel: 1},
		Log:  LogConfig{Level: "info", File: "logs/activity.log", Backups: 2},
	}
}

// Load reads path and its ".local" sibling over the defaults. A missing
// main file is not an error.
func Load(path string) (Config, error) {
	out := Default()
	if path == "" {
		return out, nil
	}

	for _, p := range []string{path, localPath(path)} {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("config: read %s: %w", p, err)
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return out, fmt.Errorf("config: parse %s: %w", p, err)
		}
		if err := mergo.Merge(&out, file, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("config: merge %s: %w", p, err)
		}
		slog.Debug("config: loaded", "path", p)
	}

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Search.MinDelay > c.Search.MaxDelay {
		errs = append(errs, fmt.Errorf("search.min_delay %s exceeds max_delay %s", c.Search.MinDelay, c.Search.MaxDelay))
	}
	if c.Search.AbortAfter != 0 && c.Search.AbortAfter <= c.Search.CautiousAfter {
		errs = append(errs, fmt.Errorf("search.abort_after must exceed cautious_after"))
	}
	if _, err := c.Kinds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Display(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Queries.Providers {
		if p != "trends" && p != "corpus" {
			errs = append(errs, fmt.Errorf("queries.providers: unknown provider %q", p))
		}
	}
	if c.Queries.Similarity < 0 || c.Queries.Similarity > 1 {
		errs = append(errs, fmt.Errorf("queries.similarity must be within [0,1]"))
	}
	if c.Farm.Parallel < 0 {
		errs = append(errs, fmt.Errorf("farm.parallel must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Kinds returns the platforms to search, in run order.
func (c Config) Kinds() ([]search.Kind, error) {
	switch strings.ToLower(c.Search.Type) {
	case "", "both":
		return []search.Kind{search.Desktop, search.Mobile}, nil
	case "desktop":
		return []search.Kind{search.Desktop}, nil
	case "mobile":
		return []search.Kind{search.Mobile}, nil
	}
	return nil, fmt.Errorf("search.type: unknown value %q (want both, desktop or mobile)", c.Search.Type)
}

// Display parses Browser.Display.
func (c Config) Display() (session.Display, error) {
	switch strings.ToLower(c.Browser.Display) {
	case "", "headless":
		return session.DisplayHeadless, nil
	case "xvfb":
		return session.DisplayXvfb, nil
	case "visible":
		return session.DisplayVisible, nil
	}
	return 0, fmt.Errorf("browser.display: unknown value %q (want headless, xvfb or visible)", c.Browser.Display)
}

// Engine converts the search section to the engine configuration.
func (c Config) Engine() search.Config {
	s := c.Search
	return search.Config{
		MinDelay:        s.MinDelay,
		MaxDelay:        s.MaxDelay,
		CautiousFactor:  s.CautiousFactor,
		CautiousAfter:   s.CautiousAfter,
		AbortAfter:      s.AbortAfter,
		ErrorBudget:     s.ErrorBudget,
		PointsPerSearch: s.PointsPerSearch,
		Tolerance:       s.AnomalyTolerance,
		ResyncEvery:     s.ResyncEvery,
		QuotaRetryDelay: s.QuotaRetryDelay,
	}
}

// Path resolves p against DataDir unless it is absolute.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
