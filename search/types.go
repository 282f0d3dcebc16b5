// Package search drives the quota of rewarded search actions for one
// platform kind of one account. It turns a server-reported remaining count
// into a bounded sequence of searches, classifies each search by whether the
// server credited it, and slows down or stops when credit dries up.
//
// The package owns no browser: everything it knows about the remote service
// comes through the Session interface.
package search

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the platform a pass searches as.
type Kind int

const (
	Desktop Kind = iota
	Mobile
)

// Kinds lists the platform kinds in the order passes run.
var Kinds = []Kind{Desktop, Mobile}

func (k Kind) String() string {
	switch k {
	case Desktop:
		return "desktop"
	case Mobile:
		return "mobile"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps "desktop" or "mobile" (any case) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desktop":
		return Desktop, nil
	case "mobile":
		return Mobile, nil
	}
	return 0, fmt.Errorf("search: unknown platform kind %q", s)
}

// Outcome classifies one search attempt.
type Outcome int

const (
	Credited    Outcome = iota // counted toward the quota
	NotCredited                // executed, not counted
	Errored                    // session-level failure
	Blocked                    // throttle or challenge page
)

func (o Outcome) String() string {
	switch o {
	case Credited:
		return "credited"
	case NotCredited:
		return "not_credited"
	case Errored:
		return "errored"
	case Blocked:
		return "blocked"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Strategy is the state of the retry/backoff controller.
type Strategy int

const (
	Normal Strategy = iota
	Cautious
	Aborting
)

func (s Strategy) String() string {
	switch s {
	case Normal:
		return "normal"
	case Cautious:
		return "cautious"
	case Aborting:
		return "aborting"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Quota is the number of searches that will still earn points, per kind.
type Quota struct {
	Desktop uint `json:"desktop"`
	Mobile  uint `json:"mobile"`
}

// Get returns the count for kind.
func (q Quota) Get(kind Kind) uint {
	if kind == Mobile {
		return q.Mobile
	}
	return q.Desktop
}

// Total returns Desktop + Mobile.
func (q Quota) Total() uint { return q.Desktop + q.Mobile }

func (q Quota) String() string {
	return fmt.Sprintf("desktop=%d mobile=%d", q.Desktop, q.Mobile)
}

// SearchOutcome is what the session reports for one search.
// Blocked takes precedence over Err, Err over Credited.
type SearchOutcome struct {
	Credited bool
	Blocked  bool
	Err      error
}

// Classify maps the session's report to an Outcome.
func (o SearchOutcome) Classify() Outcome {
	switch {
	case o.Blocked:
		return Blocked
	case o.Err != nil:
		return Errored
	case o.Credited:
		return Credited
	}
	return NotCredited
}

// SearchAttempt is one recorded search. Immutable once appended to a pass.
type SearchAttempt struct {
	Term    string    `json:"term"`
	At      time.Time `json:"at"`
	Outcome Outcome   `json:"outcome"`
	Err     string    `json:"error,omitempty"`
}

// StopReason says why a pass stopped issuing searches.
type StopReason string

const (
	StopExhausted        StopReason = "exhausted"
	StopNoCredit         StopReason = "no_credit"
	StopErrorBudget      StopReason = "error_budget"
	StopBlocked          StopReason = "blocked"
	StopQuotaUnavailable StopReason = "quota_unavailable"
	StopQueriesExhausted StopReason = "queries_exhausted"
	StopCancelled        StopReason = "cancelled"
	StopSessionError     StopReason = "session_error"
)

// Transition records a controller state change and the attempt that caused it.
type Transition struct {
	Attempt int      `json:"attempt"`
	From    Strategy `json:"from"`
	To      Strategy `json:"to"`
	// Trigger is the outcome name, or the stop reason for aborts that did
	// not come from an attempt.
	Trigger string `json:"trigger"`
}

// PlatformRunResult is the outcome of one platform pass. The engine never
// persists it; callers hand it to history and notification.
type PlatformRunResult struct {
	Kind           Kind            `json:"kind"`
	StartingPoints int             `json:"starting_points"`
	EndingPoints   int             `json:"ending_points"`
	AttemptsMade   uint            `json:"attempts_made"`
	CreditedCount  uint            `json:"credited_count"`
	InitialQuota   uint            `json:"initial_quota"`
	RemainingQuota uint            `json:"remaining_quota"`
	FinalState     Strategy        `json:"final_state"`
	StopReason     StopReason      `json:"stop_reason"`
	ExpectedDelta  int             `json:"expected_delta"`
	Anomalies      []Anomaly       `json:"anomalies,omitempty"`
	Transitions    []Transition    `json:"transitions,omitempty"`
	Attempts       []SearchAttempt `json:"attempts,omitempty"`
	Duration       time.Duration   `json:"duration"`
	Err            error           `json:"-"`
}

// Earned returns EndingPoints - StartingPoints.
func (r PlatformRunResult) Earned() int { return r.EndingPoints - r.StartingPoints }

// Complete reports whether the pass consumed its whole quota.
func (r PlatformRunResult) Complete() bool {
	return r.Err == nil && r.StopReason == StopExhausted
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MarshalText renders the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// MarshalText renders the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
