// Package status serves a small read-only JSON API over the run history:
// recent passes, per-account daily points and the progress of the current run.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/rewardsfarm/history"
)

// History is the read side of the history store.
type History interface {
	LatestPasses(ctx context.Context, account string, limit int) ([]history.PassRecord, error)
	Daily(ctx context.Context, account string) ([]history.DailyRecord, error)
}

// Progress is the live state of the current run.
type Progress struct {
	Started  time.Time `json:"started"`
	Accounts int       `json:"accounts"`
	Done     int       `json:"done"`
	Current  []string  `json:"current"`
}

// Tracker records run progress. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex
	p  Progress
}

// Begin resets the tracker for a run over n accounts.
func (t *Tracker) Begin(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = Progress{Started: time.Now(), Accounts: n}
}

// Enter marks account as running.
func (t *Tracker) Enter(account string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Current = append(t.p.Current, account)
}

// Leave marks account as finished.
func (t *Tracker) Leave(account string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, a := range t.p.Current {
		if a == account {
			t.p.Current = append(t.p.Current[:i], t.p.Current[i+1:]...)
			break
		}
	}
	t.p.Done++
}

// Snapshot returns a copy of the progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.p
	p.Current = append([]string{}, t.p.Current...)
	return p
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler builds the router. tracker may be nil.
func Handler(h History, tracker *Tracker, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(HeadToGet)
	r.Use(SecurityHeaders(DefaultHeaders()))
	r.Use(RequestLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/passes", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxLimit)
		}
		passes, err := h.LatestPasses(r.Context(), r.URL.Query().Get("account"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if passes == nil {
			passes = []history.PassRecord{}
		}
		writeJSON(w, http.StatusOK, passes)
	})

	r.Get("/accounts/{account}/daily", func(w http.ResponseWriter, r *http.Request) {
		days, err := h.Daily(r.Context(), chi.URLParam(r, "account"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if days == nil {
			days = []history.DailyRecord{}
		}
		writeJSON(w, http.StatusOK, days)
	})

	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		if tracker == nil {
			writeJSON(w, http.StatusOK, Progress{Current: []string{}})
			return
		}
		writeJSON(w, http.StatusOK, tracker.Snapshot())
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	GetLogger(r.Context()).Error("status: handler failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// Server runs the status API in the background.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr and starts serving handler.
func Listen(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv:    &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status: serve", "error", err)
		}
	}()
	logger.Info("status: listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
