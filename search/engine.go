package search

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/rewardsfarm/search/query"
)

// Config tunes the pass loop. Zero fields take the defaults below.
type Config struct {
	MinDelay        time.Duration // baseline lower bound, default 8s
	MaxDelay        time.Duration // baseline upper bound, default 18s
	CautiousFactor  float64       // multiplier in Cautious, default 2.5, never below 2
	CautiousAfter   uint          // default 3
	AbortAfter      uint          // default 8, always above CautiousAfter
	ErrorBudget     uint          // default 3
	PointsPerSearch int           // reconciliation rate, default 3
	Tolerance       int           // accepted points mismatch, default 0
	ResyncEvery     uint          // credited searches between resyncs, 0 = never
	QuotaRetryDelay time.Duration // wait before the single quota retry, default 5s
	// FinalReadTimeout bounds the end-of-pass reads, which still run after
	// cancellation. Default 30s.
	FinalReadTimeout time.Duration
}

func (c *Config) defaults() {
	if c.MinDelay <= 0 {
		c.MinDelay = 8 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 18 * time.Second
	}
	if c.CautiousFactor < 2 {
		c.CautiousFactor = 2.5
	}
	if c.CautiousAfter == 0 {
		c.CautiousAfter = 3
	}
	if c.AbortAfter <= c.CautiousAfter {
		c.AbortAfter = max(8, c.CautiousAfter+1)
	}
	if c.ErrorBudget == 0 {
		c.ErrorBudget = 3
	}
	if c.PointsPerSearch == 0 {
		c.PointsPerSearch = 3
	}
	if c.QuotaRetryDelay <= 0 {
		c.QuotaRetryDelay = 5 * time.Second
	}
	if c.FinalReadTimeout <= 0 {
		c.FinalReadTimeout = 30 * time.Second
	}
}

// QueryFactory returns a fresh query source for a pass.
type QueryFactory func(kind Kind) Queries

// DefaultQueries draws from the built-in corpus.
func DefaultQueries(Kind) Queries {
	return query.NewSource(query.Config{}, query.NewCorpus(nil))
}

// Engine runs platform passes. An Engine holds no per-pass state and may be
// shared by passes of different accounts running in parallel.
type Engine struct {
	cfg      Config
	queries  QueryFactory
	reporter Reporter
	logger   *slog.Logger
	sleep    sleepFunc
	now      func() time.Time
	newRand  func() *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithSleep replaces the delay function (for tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithClock sets a custom clock.
func WithClock(fn func() time.Time) Option { return func(e *Engine) { e.now = fn } }

// WithRandSeed makes delay jitter deterministic.
func WithRandSeed(seed uint64) Option {
	return func(e *Engine) {
		e.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
	}
}

// NewEngine creates an engine drawing terms from queries. A nil factory
// uses DefaultQueries.
func NewEngine(cfg Config, queries QueryFactory, opts ...Option) *Engine {
	cfg.defaults()
	if queries == nil {
		queries = DefaultQueries
	}
	e := &Engine{
		cfg:      cfg,
		queries:  queries,
		reporter: Reporter{Tolerance: cfg.Tolerance},
		logger:   slog.Default(),
		sleep:    sleepCtx,
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// pass is the state owned by one RunPlatformPass call.
type pass struct {
	kind     Kind
	session  Session
	tracker  *QuotaTracker
	ctrl     *Controller
	queries  Queries
	log      *slog.Logger
	started  time.Time
	startPts int
	initial  uint
	credited uint
	err      error
	reason   StopReason
}

// RunPlatformPass drives searches for kind until the quota is exhausted or
// the controller aborts. Failures never escape as errors: they are folded
// into the result's Err and StopReason.
func (e *Engine) RunPlatformPass(ctx context.Context, kind Kind, session Session) PlatformRunResult {
	log := e.logger.With("kind", kind.String())
	tracker := NewQuotaTracker(session, e.cfg.QuotaRetryDelay, log)
	tracker.sleep = e.sleep
	p := &pass{
		kind:    kind,
		session: session,
		tracker: tracker,
		ctrl: NewController(kind, tracker, Thresholds{
			CautiousAfter: e.cfg.CautiousAfter,
			AbortAfter:    e.cfg.AbortAfter,
			ErrorBudget:   e.cfg.ErrorBudget,
		}, DelayPolicy{
			Min:            e.cfg.MinDelay,
			Max:            e.cfg.MaxDelay,
			CautiousFactor: e.cfg.CautiousFactor,
		}, e.newRand(), log),
		queries: e.queries(kind),
		log:     log,
		started: e.now(),
	}

	if session.Blocked(ctx) {
		p.ctrl.Abort(StopBlocked)
		p.reason, p.err = StopBlocked, ErrBlocked
		return e.finish(ctx, p, false)
	}

	pts, err := session.AccountPoints(ctx)
	if err != nil {
		log.Warn("search: points read failed, retrying once", "error", err)
		pts, err = session.AccountPoints(ctx)
	}
	if err != nil {
		p.ctrl.Abort(StopSessionError)
		p.reason, p.err = StopSessionError, &SessionError{Op: "points", Cause: err}
		return e.finish(ctx, p, false)
	}
	p.startPts = pts

	q, err := tracker.Refresh(ctx)
	if err != nil {
		p.ctrl.Abort(StopQuotaUnavailable)
		p.reason, p.err = StopQuotaUnavailable, err
		return e.finish(ctx, p, false)
	}
	p.initial = q.Get(kind)

	log.Info("search: pass started",
		"remaining", p.initial, "points", p.startPts, "quota", q.String())

	e.loop(ctx, p)
	return e.finish(ctx, p, true)
}

func (e *Engine) loop(ctx context.Context, p *pass) {
	if p.tracker.IsExhausted(p.kind) {
		p.reason = StopExhausted
		return
	}
	for n := 0; ; n++ {
		if ctx.Err() != nil {
			p.reason = StopCancelled
			return
		}
		if n > 0 {
			if err := e.sleep(ctx, p.ctrl.NextDelay()); err != nil {
				p.reason = StopCancelled
				return
			}
		}

		term, err := p.queries.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.reason = StopCancelled
				return
			}
			p.ctrl.Abort(StopQueriesExhausted)
			p.reason = StopQueriesExhausted
			p.err = fmt.Errorf("%w: %v", ErrQueriesExhausted, err)
			return
		}

		// The attempt in flight finishes even if ctx is cancelled meanwhile.
		out := p.session.PerformSearch(context.WithoutCancel(ctx), term)
		a := SearchAttempt{Term: term, At: e.now(), Outcome: out.Classify()}
		if out.Err != nil {
			a.Err = out.Err.Error()
		}
		p.log.Debug("search: attempt", "n", n+1, "term", term, "outcome", a.Outcome.String())

		d := p.ctrl.Observe(a)
		if a.Outcome == Credited {
			p.credited++
		}
		switch d.Action {
		case ActionVary:
			p.queries.Vary()
		case ActionComplete:
			p.reason = StopExhausted
			return
		case ActionAbort:
			p.reason = d.Reason
			switch d.Reason {
			case StopBlocked:
				p.err = ErrBlocked
			case StopErrorBudget:
				p.err = &SessionError{Op: "search", Cause: out.Err}
			}
			return
		}

		if a.Outcome == Credited && e.cfg.ResyncEvery > 0 && p.credited%e.cfg.ResyncEvery == 0 {
			if _, err := p.tracker.Resync(ctx); err != nil {
				p.log.Warn("search: mid-pass resync failed", "error", err)
			} else if p.tracker.IsExhausted(p.kind) {
				p.reason = StopExhausted
				return
			}
		}
	}
}

// finish reads the closing totals and assembles the result. The reads use
// a context detached from cancellation so a shutdown still reports.
func (e *Engine) finish(ctx context.Context, p *pass, started bool) PlatformRunResult {
	endPts := p.startPts
	rate := 0
	var extra []Anomaly

	if started {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.FinalReadTimeout)
		defer cancel()

		if server, err := p.session.RemainingSearches(rctx); err != nil {
			p.log.Warn("search: final quota read failed", "error", err)
		} else if a := p.tracker.Divergence(p.kind, server); a != nil {
			extra = append(extra, *a)
		}
		if n := p.tracker.Underflow(p.kind); n > 0 {
			extra = append(extra, Anomaly{Kind: AnomalyQuotaUnderflow, Expected: 0, Observed: -int(n)})
		}

		if pts, err := p.session.AccountPoints(rctx); err != nil {
			p.log.Warn("search: final points read failed", "error", err)
		} else {
			endPts = pts
			rate = e.cfg.PointsPerSearch
			if rr, ok := p.session.(RateReporter); ok && rr.PointsPerSearch() > 0 {
				rate = rr.PointsPerSearch()
			}
		}
	}

	attempts := p.ctrl.Attempts()
	res := e.reporter.Reconcile(ReconcileInput{
		Kind:            p.kind,
		StartingPoints:  p.startPts,
		EndingPoints:    endPts,
		AttemptsMade:    uint(len(attempts)),
		QuotaConsumed:   p.credited,
		InitialQuota:    p.initial,
		RemainingQuota:  p.tracker.Remaining(p.kind),
		PointsPerSearch: rate,
	})
	res.Anomalies = append(res.Anomalies, extra...)
	res.FinalState = p.ctrl.State().Strategy
	res.StopReason = p.reason
	res.Transitions = p.ctrl.Transitions()
	res.Attempts = attempts
	res.Err = p.err
	res.Duration = e.now().Sub(p.started)

	e.reporter.Log(e.logger, res)
	return res
}
