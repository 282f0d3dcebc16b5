package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptSession replays outcomes and keeps a consistent server view:
// credited searches lower the server count and add perCredit points.
type scriptSession struct {
	kind      Kind
	server    Quota
	points    int
	perCredit int

	script []Outcome
	// next, when set, generates outcomes after script runs out.
	next func() Outcome
	// done is called once the script is consumed (next == nil).
	done func()

	blocked     bool
	quotaFails  int
	pointsFails int
	// keepServer leaves the server count untouched on credit.
	keepServer bool
	// onCredit runs after each credited search.
	onCredit func(s *scriptSession)

	searches int
	terms    []string
}

func (s *scriptSession) PerformSearch(_ context.Context, term string) SearchOutcome {
	s.terms = append(s.terms, term)
	var o Outcome
	switch {
	case s.searches < len(s.script):
		o = s.script[s.searches]
	case s.next != nil:
		o = s.next()
	default:
		o = NotCredited
	}
	s.searches++
	if s.next == nil && s.searches == len(s.script) && s.done != nil {
		s.done()
	}

	switch o {
	case Credited:
		if !s.keepServer {
			if s.kind == Mobile && s.server.Mobile > 0 {
				s.server.Mobile--
			} else if s.kind == Desktop && s.server.Desktop > 0 {
				s.server.Desktop--
			}
		}
		s.points += s.perCredit
		if s.onCredit != nil {
			s.onCredit(s)
		}
		return SearchOutcome{Credited: true}
	case Errored:
		return SearchOutcome{Err: errors.New("navigation timeout")}
	case Blocked:
		return SearchOutcome{Blocked: true}
	}
	return SearchOutcome{}
}

func (s *scriptSession) RemainingSearches(context.Context) (Quota, error) {
	if s.quotaFails > 0 {
		s.quotaFails--
		return Quota{}, errors.New("dashboard not parsable")
	}
	return s.server, nil
}

func (s *scriptSession) AccountPoints(context.Context) (int, error) {
	if s.pointsFails > 0 {
		s.pointsFails--
		return 0, errors.New("points element missing")
	}
	return s.points, nil
}

func (s *scriptSession) Blocked(context.Context) bool { return s.blocked }

type counterQueries struct {
	n      int
	varied int
	err    error
}

func (q *counterQueries) Next(context.Context) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.n++
	return fmt.Sprintf("term %d", q.n), nil
}

func (q *counterQueries) Vary() { q.varied++ }

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestEngine(cfg Config, q *counterQueries, rec *sleepRecorder) *Engine {
	if rec == nil {
		rec = &sleepRecorder{}
	}
	return NewEngine(cfg, func(Kind) Queries { return q },
		WithLogger(quietLogger()),
		WithSleep(rec.sleep),
		WithRandSeed(42),
	)
}
