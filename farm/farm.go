// Package farm runs every account through its day: sign in on desktop,
// do the bonus tasks, run the desktop search pass, then sign in on mobile
// and run the mobile pass. Results go to history and notifications.
package farm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/rewardsfarm/account"
	"github.com/hazyhaar/rewardsfarm/history"
	"github.com/hazyhaar/rewardsfarm/notify"
	"github.com/hazyhaar/rewardsfarm/search"
	"github.com/hazyhaar/rewardsfarm/session"
)

// Session is a signed-in browser on one platform.
type Session interface {
	search.Session
	Login(ctx context.Context, c session.Credentials) error
	Goal(ctx context.Context) (session.Goal, error)
	Close() error
}

// Opener starts a session for an account on one platform.
type Opener interface {
	Open(ctx context.Context, a account.Account, kind search.Kind) (Session, error)
}

// Recorder persists results. *history.Store implements it.
type Recorder interface {
	RecordPass(ctx context.Context, runID, account string, res search.PlatformRunResult) error
	RecordDaily(ctx context.Context, r history.DailyRecord) error
	PreviousPoints(ctx context.Context, account, day string) (int, bool, error)
	Today() string
}

// Config configures a Farm.
type Config struct {
	// Kinds are the platforms to search, in order. Default: desktop, mobile.
	Kinds []search.Kind
	// Parallel bounds how many accounts run at once. Default: 1.
	Parallel int
	Engine   search.Config
	// EngineOptions are passed to every per-account engine.
	EngineOptions []search.Option
	// Queries builds the term factory for an account.
	Queries func(a account.Account) search.QueryFactory
	Summary notify.SummaryPolicy
	// CSVPath, when set, receives one row per account per run.
	CSVPath string
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if len(c.Kinds) == 0 {
		c.Kinds = search.Kinds
	}
	if c.Parallel <= 0 {
		c.Parallel = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Farm runs accounts.
type Farm struct {
	cfg      Config
	opener   Opener
	tasks    []Task
	recorder Recorder
	notifier notify.Notifier
	progress Progress
	logger   *slog.Logger
}

// Progress observes accounts entering and leaving the run.
type Progress interface {
	Begin(accounts int)
	Enter(account string)
	Leave(account string)
}

// Option configures a Farm.
type Option func(*Farm)

// WithTasks sets the bonus tasks run on the desktop session.
func WithTasks(tasks ...Task) Option { return func(f *Farm) { f.tasks = tasks } }

// WithRecorder persists results.
func WithRecorder(r Recorder) Option { return func(f *Farm) { f.recorder = r } }

// WithNotifier sends summaries and error reports.
func WithNotifier(n notify.Notifier) Option { return func(f *Farm) { f.notifier = n } }

// WithProgress reports run progress.
func WithProgress(p Progress) Option { return func(f *Farm) { f.progress = p } }

// New creates a Farm.
func New(cfg Config, opener Opener, opts ...Option) *Farm {
	cfg.defaults()
	f := &Farm{cfg: cfg, opener: opener, logger: cfg.Logger}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AccountResult is the outcome of one account's run.
type AccountResult struct {
	Account        string                     `json:"account"`
	RunID          string                     `json:"run_id"`
	StartingPoints int                        `json:"starting_points"`
	EndingPoints   int                        `json:"ending_points"`
	Goal           session.Goal               `json:"goal"`
	Remaining      search.Quota               `json:"remaining"`
	Passes         []search.PlatformRunResult `json:"passes"`
	TaskErrors     []string                   `json:"task_errors,omitempty"`
	Errors         []string                   `json:"errors,omitempty"`
	Duration       time.Duration              `json:"duration"`

	havePoints bool
}

// Earned is the points gained during the run.
func (r AccountResult) Earned() int { return r.EndingPoints - r.StartingPoints }

// Failed reports whether any platform could not finish.
func (r AccountResult) Failed() bool { return len(r.Errors) > 0 || r.Remaining.Total() > 0 }

// Run processes accounts with bounded parallelism. One account's failure
// never stops the others. Results are in input order.
func (f *Farm) Run(ctx context.Context, accounts []account.Account) []AccountResult {
	results := make([]AccountResult, len(accounts))
	if f.progress != nil {
		f.progress.Begin(len(accounts))
	}

	g := new(errgroup.Group)
	g.SetLimit(f.cfg.Parallel)
	for i, a := range accounts {
		if ctx.Err() != nil {
			results[i] = AccountResult{Account: a.Username, Errors: []string{ctx.Err().Error()}}
			continue
		}
		g.Go(func() error {
			if f.progress != nil {
				f.progress.Enter(a.Username)
				defer f.progress.Leave(a.Username)
			}
			results[i] = f.runAccount(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *Farm) runAccount(ctx context.Context, a account.Account) AccountResult {
	start := time.Now()
	res := AccountResult{Account: a.Username, RunID: history.NewRunID()}
	log := f.logger.With("account", a.Username, "run_id", res.RunID)
	log.Info("farm: account started", "kinds", fmt.Sprint(f.cfg.Kinds))

	engine := f.engineFor(a, log)
	for _, kind := range f.cfg.Kinds {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", kind, ctx.Err()))
			break
		}
		if err := f.runPlatform(ctx, engine, a, kind, &res, log.With("kind", kind.String())); err != nil {
			log.Error("farm: platform failed", "kind", kind.String(), "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", kind, err))
		}
	}
	res.Duration = time.Since(start)

	f.record(ctx, &res, log)
	f.report(ctx, res, log)
	log.Info("farm: account finished",
		"earned", res.Earned(), "total", res.EndingPoints,
		"remaining", res.Remaining.String(), "errors", len(res.Errors),
		"duration", res.Duration.Round(time.Second).String())
	return res
}

func (f *Farm) engineFor(a account.Account, log *slog.Logger) *search.Engine {
	var factory search.QueryFactory
	if f.cfg.Queries != nil {
		factory = f.cfg.Queries(a)
	}
	opts := append([]search.Option{search.WithLogger(log)}, f.cfg.EngineOptions...)
	return search.NewEngine(f.cfg.Engine, factory, opts...)
}

func (f *Farm) runPlatform(ctx context.Context, engine *search.Engine, a account.Account, kind search.Kind, res *AccountResult, log *slog.Logger) error {
	s, err := f.opener.Open(ctx, a, kind)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("farm: close session", "error", err)
		}
	}()

	if err := s.Login(ctx, session.Credentials{Username: a.Username, Password: a.Password}); err != nil {
		return err
	}

	// Starting points are taken once, before any task earns points.
	if !res.havePoints {
		pts, err := s.AccountPoints(ctx)
		if err != nil {
			return fmt.Errorf("starting points: %w", err)
		}
		res.StartingPoints, res.EndingPoints, res.havePoints = pts, pts, true
		log.Info("farm: starting points", "points", pts)
	}

	if kind == search.Desktop {
		f.runTasks(ctx, s, res, log)
	}

	pass := engine.RunPlatformPass(ctx, kind, s)
	res.Passes = append(res.Passes, pass)
	if f.recorder != nil {
		if err := f.recorder.RecordPass(ctx, res.RunID, a.Username, pass); err != nil {
			log.Warn("farm: record pass", "error", err)
		}
	}

	// Closing reads run even after cancellation so the summary is accurate.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if g, err := s.Goal(rctx); err == nil {
		res.Goal = g
	}
	if q, err := s.RemainingSearches(rctx); err == nil {
		setRemaining(&res.Remaining, kind, q.Get(kind))
	} else {
		setRemaining(&res.Remaining, kind, pass.RemainingQuota)
	}
	if pts, err := s.AccountPoints(rctx); err == nil {
		res.EndingPoints = pts
	} else if pass.EndingPoints != 0 {
		res.EndingPoints = pass.EndingPoints
	}

	if pass.Err != nil && !errors.Is(pass.Err, context.Canceled) {
		return fmt.Errorf("%s pass: %w", pass.StopReason, pass.Err)
	}
	return nil
}

func setRemaining(q *search.Quota, kind search.Kind, n uint) {
	if kind == search.Mobile {
		q.Mobile = n
		return
	}
	q.Desktop = n
}

func (f *Farm) runTasks(ctx context.Context, s Session, res *AccountResult, log *slog.Logger) {
	for _, t := range f.tasks {
		if ctx.Err() != nil {
			return
		}
		err := t.Run(ctx, s)
		switch {
		case errors.Is(err, ErrUnsupported):
			log.Debug("farm: task unsupported by session", "task", t.Name())
		case err != nil:
			log.Warn("farm: task failed", "task", t.Name(), "error", err)
			res.TaskErrors = append(res.TaskErrors, fmt.Sprintf("%s: %v", t.Name(), err))
		default:
			log.Info("farm: task done", "task", t.Name())
		}
	}
}

func (f *Farm) record(ctx context.Context, res *AccountResult, log *slog.Logger) {
	if !res.havePoints {
		return
	}
	ctx = context.WithoutCancel(ctx)
	day := history.DailyRecord{Account: res.Account, Earned: res.Earned(), Total: res.EndingPoints}

	if f.recorder != nil {
		day.Day = f.recorder.Today()
		prev, _, err := f.recorder.PreviousPoints(ctx, res.Account, day.Day)
		if err != nil {
			log.Warn("farm: previous points", "error", err)
		}
		day.Difference = res.EndingPoints - prev
		if err := f.recorder.RecordDaily(ctx, day); err != nil {
			log.Warn("farm: record daily", "error", err)
		}
	} else {
		day.Day = time.Now().Format(history.DayFormat)
		day.Difference = res.EndingPoints
	}

	if f.cfg.CSVPath != "" {
		if err := history.ExportCSV(f.cfg.CSVPath, day); err != nil {
			log.Warn("farm: export csv", "error", err)
		} else {
			log.Info("farm: points appended to csv", "path", f.cfg.CSVPath)
		}
	}
}

func (f *Farm) report(ctx context.Context, res AccountResult, log *slog.Logger) {
	if f.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if !res.havePoints && len(res.Errors) > 0 {
		msg := notify.Message{
			Title: "⚠️ Error occurred, please check the log",
			Body:  fmt.Sprintf("Account: %s\n%s", res.Account, res.Errors[0]),
			Level: notify.LevelFailure,
		}
		if err := f.notifier.Notify(ctx, msg); err != nil {
			log.Warn("farm: error notification", "error", err)
		}
		return
	}

	sum := Summarize(res)
	if !f.cfg.Summary.ShouldSend(sum) {
		return
	}
	if err := f.notifier.Notify(ctx, notify.FormatSummary(f.cfg.Summary, sum)); err != nil {
		log.Warn("farm: summary notification", "error", err)
	}
}

// Summarize converts an account result to a notification summary.
func Summarize(r AccountResult) notify.Summary {
	return notify.Summary{
		Account:        r.Account,
		StartingPoints: r.StartingPoints,
		EndingPoints:   r.EndingPoints,
		GoalTitle:      r.Goal.Title,
		GoalPoints:     r.Goal.Points,
		Remaining:      r.Remaining,
		Errors:         r.Errors,
	}
}
