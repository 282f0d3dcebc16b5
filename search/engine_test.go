package search

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPass_ThreeCredited(t *testing.T) {
	s := &scriptSession{
		server:    Quota{Desktop: 3},
		points:    1000,
		perCredit: 3,
		script:    []Outcome{Credited, Credited, Credited},
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.NoError(t, res.Err)
	require.Equal(t, StopExhausted, res.StopReason)
	require.Equal(t, uint(3), res.CreditedCount)
	require.Equal(t, uint(3), res.AttemptsMade)
	require.Equal(t, uint(0), res.RemainingQuota)
	require.Equal(t, Normal, res.FinalState)
	require.Empty(t, res.Anomalies)
	require.Equal(t, 9, res.Earned())
	require.True(t, res.Complete())
}

func TestPass_CautiousThenRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &scriptSession{
		server:    Quota{Desktop: 5},
		perCredit: 3,
		script:    []Outcome{NotCredited, NotCredited, NotCredited, Credited, Credited},
		done:      cancel,
	}
	q := &counterQueries{}
	e := newTestEngine(Config{}, q, nil)

	res := e.RunPlatformPass(ctx, Desktop, s)

	require.Equal(t, StopCancelled, res.StopReason)
	require.Equal(t, uint(2), res.CreditedCount)
	require.Equal(t, uint(5), res.AttemptsMade)
	require.Equal(t, uint(3), res.RemainingQuota)
	require.Equal(t, []Transition{
		{Attempt: 3, From: Normal, To: Cautious, Trigger: "not_credited"},
		{Attempt: 5, From: Cautious, To: Normal, Trigger: "credited"},
	}, res.Transitions)
	require.Equal(t, Normal, res.FinalState)
	require.Equal(t, 1, q.varied, "entering cautious switches query strategy")
	require.Empty(t, res.Anomalies)
}

func TestPass_BlockedStopsImmediately(t *testing.T) {
	s := &scriptSession{
		server:    Quota{Desktop: 10},
		perCredit: 3,
		script:    []Outcome{Credited, Blocked, Credited, Credited},
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.ErrorIs(t, res.Err, ErrBlocked)
	require.Equal(t, StopBlocked, res.StopReason)
	require.Equal(t, Aborting, res.FinalState)
	require.LessOrEqual(t, res.CreditedCount, uint(1))
	require.Equal(t, 2, s.searches, "no search after the block")
	require.Equal(t, uint(9), res.RemainingQuota)
}

func TestPass_OnlyNotCreditedAbortsWithinBound(t *testing.T) {
	s := &scriptSession{
		server: Quota{Desktop: 30},
		next:   func() Outcome { return NotCredited },
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.Equal(t, StopNoCredit, res.StopReason)
	require.Equal(t, Aborting, res.FinalState)
	require.LessOrEqual(t, s.searches, 8+1)
	require.Equal(t, 8, s.searches)
	require.Len(t, res.Transitions, 2)
	require.Equal(t, Cautious, res.Transitions[0].To)
	require.Equal(t, 3, res.Transitions[0].Attempt)
	require.Equal(t, uint(0), res.CreditedCount)
}

func TestPass_ErrorBudget(t *testing.T) {
	s := &scriptSession{
		server: Quota{Desktop: 10},
		script: []Outcome{Errored, NotCredited, Errored, Errored, Errored, Credited},
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.Equal(t, StopErrorBudget, res.StopReason)
	require.Equal(t, 5, s.searches, "errors must be consecutive to exhaust the budget")
	require.ErrorIs(t, res.Err, ErrSessionError)
	var se *SessionError
	require.True(t, errors.As(res.Err, &se))
	require.Equal(t, "search", se.Op)
}

func TestPass_ErroredDoesNotCountAsNoCredit(t *testing.T) {
	s := &scriptSession{
		server: Quota{Desktop: 10},
		script: []Outcome{NotCredited, NotCredited, Errored, Errored, Credited},
		next:   nil,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.done = cancel
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(ctx, Desktop, s)

	require.Empty(t, res.Transitions, "two misses and two errors stay Normal")
	require.Equal(t, Normal, res.FinalState)
}

func TestPass_PreflightBlocked(t *testing.T) {
	s := &scriptSession{server: Quota{Desktop: 10}, blocked: true}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.ErrorIs(t, res.Err, ErrBlocked)
	require.Equal(t, 0, s.searches)
	require.Equal(t, uint(0), res.AttemptsMade)
	require.Equal(t, Aborting, res.FinalState)
}

func TestPass_QuotaRetriedOnce(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		s := &scriptSession{
			server:     Quota{Desktop: 1},
			perCredit:  3,
			quotaFails: 1,
			script:     []Outcome{Credited},
		}
		rec := &sleepRecorder{}
		e := newTestEngine(Config{QuotaRetryDelay: time.Second}, &counterQueries{}, rec)

		res := e.RunPlatformPass(context.Background(), Desktop, s)

		require.NoError(t, res.Err)
		require.Equal(t, uint(1), res.CreditedCount)
		require.Equal(t, []time.Duration{time.Second}, rec.delays)
	})

	t.Run("fatal", func(t *testing.T) {
		s := &scriptSession{server: Quota{Desktop: 5}, quotaFails: 2, points: 50}
		e := newTestEngine(Config{}, &counterQueries{}, nil)

		res := e.RunPlatformPass(context.Background(), Desktop, s)

		require.ErrorIs(t, res.Err, ErrQuotaUnavailable)
		require.Equal(t, StopQuotaUnavailable, res.StopReason)
		require.Equal(t, 0, s.searches)
		require.Equal(t, 50, res.StartingPoints)
		require.Equal(t, 50, res.EndingPoints)
	})
}

func TestPass_ZeroQuotaRunsNothing(t *testing.T) {
	s := &scriptSession{server: Quota{Desktop: 0, Mobile: 20}}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.Equal(t, StopExhausted, res.StopReason)
	require.Equal(t, 0, s.searches)
}

func TestPass_MobileUsesMobileQuota(t *testing.T) {
	s := &scriptSession{
		kind:      Mobile,
		server:    Quota{Desktop: 7, Mobile: 2},
		perCredit: 3,
		script:    []Outcome{Credited, Credited},
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Mobile, s)

	require.Equal(t, Mobile, res.Kind)
	require.Equal(t, uint(2), res.InitialQuota)
	require.Equal(t, StopExhausted, res.StopReason)
	require.Empty(t, res.Anomalies)
}

func TestPass_QuerySourceExhausted(t *testing.T) {
	s := &scriptSession{server: Quota{Desktop: 4}}
	q := &counterQueries{err: errors.New("all providers empty")}
	e := newTestEngine(Config{}, q, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.ErrorIs(t, res.Err, ErrQueriesExhausted)
	require.Equal(t, StopQueriesExhausted, res.StopReason)
	require.Equal(t, Aborting, res.FinalState)
}

func TestPass_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scriptSession{server: Quota{Desktop: 4}, points: 10}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(ctx, Desktop, s)

	require.Equal(t, StopCancelled, res.StopReason)
	require.Equal(t, 0, s.searches)
	require.Empty(t, res.Attempts)
	require.Equal(t, 10, res.EndingPoints, "closing reads still run after cancel")
}

func TestPass_ResyncNeverRaisesCount(t *testing.T) {
	s := &scriptSession{
		server:    Quota{Desktop: 5},
		perCredit: 3,
		next:      func() Outcome { return Credited },
	}
	s.onCredit = func(s *scriptSession) {
		// Another device used most of the quota.
		if s.server.Desktop > 1 {
			s.server.Desktop = 1
		}
	}
	e := newTestEngine(Config{ResyncEvery: 1}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.Equal(t, StopExhausted, res.StopReason)
	require.Equal(t, uint(2), res.CreditedCount)
}

func TestPass_AnomaliesAreNonFatal(t *testing.T) {
	s := &scriptSession{
		server:     Quota{Desktop: 2},
		perCredit:  0,
		keepServer: true,
		script:     []Outcome{Credited, Credited},
	}
	e := newTestEngine(Config{}, &counterQueries{}, nil)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.NoError(t, res.Err)
	require.Equal(t, StopExhausted, res.StopReason)
	kinds := map[AnomalyKind]Anomaly{}
	for _, a := range res.Anomalies {
		kinds[a.Kind] = a
	}
	require.Contains(t, kinds, AnomalyPointsMismatch)
	require.Equal(t, 6, kinds[AnomalyPointsMismatch].Expected)
	require.Contains(t, kinds, AnomalyQuotaDivergence)
	require.Equal(t, 0, kinds[AnomalyQuotaDivergence].Expected)
	require.Equal(t, 2, kinds[AnomalyQuotaDivergence].Observed)
}

func TestPass_DelaysFollowStrategy(t *testing.T) {
	s := &scriptSession{
		server: Quota{Desktop: 10},
		next:   func() Outcome { return NotCredited },
	}
	rec := &sleepRecorder{}
	cfg := Config{MinDelay: time.Second, MaxDelay: 2 * time.Second, CautiousFactor: 3}
	e := newTestEngine(cfg, &counterQueries{}, rec)

	e.RunPlatformPass(context.Background(), Desktop, s)

	// 8 attempts, 7 pauses: the pauses before attempts 2 and 3 are Normal.
	require.Len(t, rec.delays, 7)
	for i, d := range rec.delays {
		lo, hi := time.Second, 2*time.Second
		if i >= 2 {
			lo, hi = 3*time.Second, 6*time.Second
		}
		require.GreaterOrEqual(t, d, lo, "delay %d", i)
		require.LessOrEqual(t, d, hi, "delay %d", i)
	}
}

func TestPass_RemainingMatchesCredited(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))
	outcomes := []Outcome{Credited, NotCredited, Errored}
	for i := 0; i < 200; i++ {
		initial := uint(rnd.IntN(15))
		s := &scriptSession{
			server:    Quota{Desktop: initial},
			perCredit: 3,
			next:      func() Outcome { return outcomes[rnd.IntN(len(outcomes))] },
		}
		e := newTestEngine(Config{}, &counterQueries{}, nil)

		res := e.RunPlatformPass(context.Background(), Desktop, s)

		require.LessOrEqual(t, res.CreditedCount, initial)
		require.Equal(t, initial-res.CreditedCount, res.RemainingQuota, "run %d", i)
		require.Equal(t, uint(s.searches), res.AttemptsMade)
	}
}

func TestPass_NilQueryFactoryUsesCorpus(t *testing.T) {
	s := &scriptSession{
		server:    Quota{Desktop: 2},
		perCredit: 3,
		script:    []Outcome{Credited, Credited},
	}
	e := NewEngine(Config{}, nil,
		WithLogger(quietLogger()),
		WithSleep((&sleepRecorder{}).sleep),
		WithRandSeed(1),
	)

	res := e.RunPlatformPass(context.Background(), Desktop, s)

	require.NoError(t, res.Err)
	require.Equal(t, StopExhausted, res.StopReason)
	require.Len(t, s.terms, 2)
	require.NotEqual(t, s.terms[0], s.terms[1])
}
