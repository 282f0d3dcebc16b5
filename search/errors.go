package search

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaUnavailable is returned when the session cannot report the
	// remaining search counts. Retried once per pass, then fatal for it.
	ErrQuotaUnavailable = errors.New("search: quota unavailable")

	// ErrSessionError marks a transient automation failure.
	ErrSessionError = errors.New("search: session error")

	// ErrBlocked marks an explicit throttle or challenge signal.
	ErrBlocked = errors.New("search: blocked by remote service")

	// ErrQueriesExhausted is returned when the query source has no fresh term.
	ErrQueriesExhausted = errors.New("search: no fresh query available")
)

// SessionError wraps the cause of a failed session call so callers can
// match it with errors.Is(err, ErrSessionError) and still unwrap the cause.
type SessionError struct {
	Op    string
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("search: session %s: %v", e.Op, e.Cause)
}

func (e *SessionError) Unwrap() []error { return []error{ErrSessionError, e.Cause} }

// AnomalyKind names a reconciliation anomaly.
type AnomalyKind string

const (
	// AnomalyPointsMismatch: earned points disagree with credited searches
	// times the points-per-search rate.
	AnomalyPointsMismatch AnomalyKind = "points_mismatch"
	// AnomalyQuotaDivergence: the server's remaining count at pass end
	// differs from the locally decremented count.
	AnomalyQuotaDivergence AnomalyKind = "quota_divergence"
	// AnomalyQuotaUnderflow: a credited search arrived when the local count
	// was already zero.
	AnomalyQuotaUnderflow AnomalyKind = "quota_underflow"
)

// Anomaly is a non-fatal desynchronisation between local accounting and
// what the server reports. Logged, carried in the result, never retried.
type Anomaly struct {
	Kind     AnomalyKind `json:"kind"`
	Expected int         `json:"expected"`
	Observed int         `json:"observed"`
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("search: reconciliation anomaly %s: expected %d, observed %d",
		a.Kind, a.Expected, a.Observed)
}
