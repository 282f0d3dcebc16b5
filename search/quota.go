package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// QuotaTracker holds the authoritative remaining count for one pass.
// Counts never increase after the initial Refresh: a resync only lowers
// them. Owned by a single pass, no locking.
type QuotaTracker struct {
	session    Session
	retryDelay time.Duration
	sleep      sleepFunc
	logger     *slog.Logger

	quota     Quota
	underflow map[Kind]uint
}

// NewQuotaTracker creates a tracker reading from session.
func NewQuotaTracker(session Session, retryDelay time.Duration, logger *slog.Logger) *QuotaTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaTracker{
		session:    session,
		retryDelay: retryDelay,
		sleep:      sleepCtx,
		logger:     logger,
		underflow:  make(map[Kind]uint),
	}
}

// Refresh reads the remaining counts from the session, retrying exactly
// once. The second failure is returned wrapping ErrQuotaUnavailable.
func (t *QuotaTracker) Refresh(ctx context.Context) (Quota, error) {
	q, err := t.read(ctx)
	if err != nil {
		t.logger.Warn("search: quota read failed, retrying once", "error", err)
		if serr := t.sleep(ctx, t.retryDelay); serr != nil {
			return Quota{}, fmt.Errorf("%w: %v", ErrQuotaUnavailable, serr)
		}
		q, err = t.read(ctx)
		if err != nil {
			return Quota{}, err
		}
	}
	t.quota = q
	return q, nil
}

// Resync lowers the tracked counts to the server's when the server reports
// fewer. A failed read leaves the counts untouched.
func (t *QuotaTracker) Resync(ctx context.Context) (Quota, error) {
	q, err := t.read(ctx)
	if err != nil {
		return t.quota, err
	}
	if q.Desktop < t.quota.Desktop {
		t.quota.Desktop = q.Desktop
	}
	if q.Mobile < t.quota.Mobile {
		t.quota.Mobile = q.Mobile
	}
	return q, nil
}

func (t *QuotaTracker) read(ctx context.Context) (Quota, error) {
	q, err := t.session.RemainingSearches(ctx)
	if err != nil {
		return Quota{}, fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}
	return q, nil
}

// Decrement removes one search from kind's count. At zero the count stays
// zero and the underflow is remembered for reconciliation.
func (t *QuotaTracker) Decrement(kind Kind) {
	switch kind {
	case Desktop:
		if t.quota.Desktop == 0 {
			t.underflow[kind]++
			return
		}
		t.quota.Desktop--
	case Mobile:
		if t.quota.Mobile == 0 {
			t.underflow[kind]++
			return
		}
		t.quota.Mobile--
	}
}

// Remaining returns the tracked count for kind.
func (t *QuotaTracker) Remaining(kind Kind) uint { return t.quota.Get(kind) }

// IsExhausted reports whether kind's tracked count is zero.
func (t *QuotaTracker) IsExhausted(kind Kind) bool { return t.quota.Get(kind) == 0 }

// Quota returns a copy of the tracked counts.
func (t *QuotaTracker) Quota() Quota { return t.quota }

// Underflow returns how many credited searches arrived at a zero count.
func (t *QuotaTracker) Underflow(kind Kind) uint { return t.underflow[kind] }

// Divergence compares a server read against the tracked count for kind.
// It returns nil when they agree.
func (t *QuotaTracker) Divergence(kind Kind, server Quota) *Anomaly {
	local, remote := t.quota.Get(kind), server.Get(kind)
	if local == remote {
		return nil
	}
	return &Anomaly{Kind: AnomalyQuotaDivergence, Expected: int(local), Observed: int(remote)}
}
