package search

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayPolicy picks the pause before each search. The baseline is uniform
// in [Min, Max]; in Cautious both bounds are multiplied by CautiousFactor.
type DelayPolicy struct {
	Min            time.Duration
	Max            time.Duration
	CautiousFactor float64
}

// Bounds returns the interval used for strategy.
func (p DelayPolicy) Bounds(s Strategy) (time.Duration, time.Duration) {
	lo, hi := p.Min, p.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if s == Cautious {
		lo = time.Duration(float64(lo) * p.CautiousFactor)
		hi = time.Duration(float64(hi) * p.CautiousFactor)
	}
	return lo, hi
}

// Pick draws a delay for strategy from rnd.
func (p DelayPolicy) Pick(s Strategy, rnd *rand.Rand) time.Duration {
	lo, hi := p.Bounds(s)
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rnd.Int64N(int64(hi-lo)+1))
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
