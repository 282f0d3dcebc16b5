// Package query produces search terms for a platform pass.
//
// A Source pulls batches from an ordered list of providers (trending feed,
// static corpus) and never hands out a term that matches, or nearly
// matches, one of the last Window terms it returned. A Source keeps no
// state across runs: build a fresh one per pass, or Reset it.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
)

// MinWindow is the smallest accepted exclusion window.
const MinWindow = 20

// ErrExhausted is returned when no provider yields a fresh term.
var ErrExhausted = errors.New("query: no provider produced a fresh term")

// Provider yields batches of candidate terms.
type Provider interface {
	Name() string
	Terms(ctx context.Context) ([]string, error)
}

// Config configures a Source.
type Config struct {
	// Window is how many recent terms are excluded. Raised to MinWindow.
	Window int
	// Similarity is the Jaro-Winkler score at or above which a candidate
	// counts as a repeat of a recent term. 0 disables the fuzzy check.
	Similarity float64
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Window < MinWindow {
		c.Window = MinWindow
	}
	if c.Similarity < 0 || c.Similarity > 1 {
		c.Similarity = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Source is a lazy, restartable term generator. Not safe for concurrent use.
type Source struct {
	cfg       Config
	providers []Provider
	current   int
	buf       []string
	recent    []string // normalised, oldest first, at most cfg.Window
}

// NewSource creates a Source over providers, tried in order.
func NewSource(cfg Config, providers ...Provider) *Source {
	cfg.defaults()
	return &Source{cfg: cfg, providers: providers}
}

// Next returns the next fresh term. Provider errors fall through to the
// next provider; ErrExhausted is returned once every provider in a row has
// produced nothing fresh.
func (s *Source) Next(ctx context.Context) (string, error) {
	if len(s.providers) == 0 {
		return "", ErrExhausted
	}
	for tried := 0; ; {
		for len(s.buf) > 0 {
			term := s.buf[0]
			s.buf = s.buf[1:]
			if s.fresh(term) {
				s.remember(term)
				return term, nil
			}
		}
		if tried >= len(s.providers) {
			return "", ErrExhausted
		}

		p := s.providers[s.current]
		terms, err := p.Terms(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.cfg.Logger.Warn("query: provider failed", "provider", p.Name(), "error", err)
		}
		s.buf = cleanTerms(terms)
		if err != nil || !s.anyFresh(s.buf) {
			s.buf = nil
			s.advance()
			tried++
		}
	}
}

// Vary moves to the next provider and drops the buffered batch.
func (s *Source) Vary() {
	if len(s.providers) < 2 {
		s.buf = nil
		return
	}
	s.advance()
	s.buf = nil
	s.cfg.Logger.Info("query: switched provider", "provider", s.providers[s.current].Name())
}

// Reset forgets every returned term and returns to the first provider.
func (s *Source) Reset() {
	s.current = 0
	s.buf = nil
	s.recent = nil
}

// Provider returns the name of the provider currently in use.
func (s *Source) Provider() string {
	if len(s.providers) == 0 {
		return ""
	}
	return s.providers[s.current].Name()
}

func (s *Source) advance() {
	s.current = (s.current + 1) % len(s.providers)
}

func (s *Source) anyFresh(terms []string) bool {
	for _, t := range terms {
		if s.fresh(t) {
			return true
		}
	}
	return false
}

func (s *Source) fresh(term string) bool {
	n := normalize(term)
	if n == "" {
		return false
	}
	for _, r := range s.recent {
		if r == n {
			return false
		}
		if s.cfg.Similarity > 0 && matchr.JaroWinkler(r, n, false) >= s.cfg.Similarity {
			return false
		}
	}
	return true
}

func (s *Source) remember(term string) {
	s.recent = append(s.recent, normalize(term))
	if over := len(s.recent) - s.cfg.Window; over > 0 {
		s.recent = s.recent[over:]
	}
}

func normalize(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.Join(strings.Fields(t), " ")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// String describes the source for logs.
func (s *Source) String() string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return fmt.Sprintf("query.Source{providers: %s, window: %d}", strings.Join(names, ","), s.cfg.Window)
}
