package search

import (
	"log/slog"
	"math/rand/v2"
	"time"
)

// Thresholds are the escalation points of the controller.
type Thresholds struct {
	// CautiousAfter consecutive non-credited searches move Normal to Cautious.
	CautiousAfter uint
	// AbortAfter consecutive non-credited searches while Cautious abort the pass.
	AbortAfter uint
	// ErrorBudget consecutive errored searches abort the pass.
	ErrorBudget uint
}

// BackoffState is mutated after every attempt and reset for each pass.
type BackoffState struct {
	ConsecutiveNoCredit uint
	ConsecutiveErrors   uint
	// CautiousCredits counts credited searches since the last miss while
	// Cautious; two in a row return the controller to Normal.
	CautiousCredits uint
	CurrentDelay    time.Duration
	Strategy        Strategy
}

// Action is what the pass loop does next.
type Action int

const (
	ActionContinue Action = iota
	// ActionVary continues with a different query strategy.
	ActionVary
	// ActionComplete ends the pass: the quota is exhausted.
	ActionComplete
	// ActionAbort ends the pass short of the quota.
	ActionAbort
)

// Decision is the controller's verdict on one attempt.
type Decision struct {
	Action Action
	From   Strategy
	To     Strategy
	Reason StopReason
}

// Controller is the retry/backoff state machine for one pass. It owns the
// pass's attempt log and backoff state; create one per pass.
type Controller struct {
	kind       Kind
	tracker    *QuotaTracker
	thresholds Thresholds
	delays     DelayPolicy
	rnd        *rand.Rand
	logger     *slog.Logger

	state       BackoffState
	attempts    []SearchAttempt
	transitions []Transition
}

// NewController creates a controller in the Normal state.
func NewController(kind Kind, tracker *QuotaTracker, th Thresholds, delays DelayPolicy, rnd *rand.Rand, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &Controller{
		kind:       kind,
		tracker:    tracker,
		thresholds: th,
		delays:     delays,
		rnd:        rnd,
		logger:     logger,
		state:      BackoffState{Strategy: Normal},
	}
}

// State returns a copy of the backoff state.
func (c *Controller) State() BackoffState { return c.state }

// Attempts returns the attempts recorded so far.
func (c *Controller) Attempts() []SearchAttempt {
	out := make([]SearchAttempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}

// Transitions returns the state changes so far, oldest first.
func (c *Controller) Transitions() []Transition {
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

// NextDelay draws the pause before the next attempt for the current state.
func (c *Controller) NextDelay() time.Duration {
	d := c.delays.Pick(c.state.Strategy, c.rnd)
	c.state.CurrentDelay = d
	return d
}

// Abort moves the controller to Aborting for a reason outside the attempt
// stream (preflight block, query source exhaustion).
func (c *Controller) Abort(reason StopReason) Decision {
	from := c.state.Strategy
	c.state.Strategy = Aborting
	d := Decision{Action: ActionAbort, From: from, To: Aborting, Reason: reason}
	if from != Aborting {
		c.transitions = append(c.transitions, Transition{
			Attempt: len(c.attempts), From: from, To: Aborting, Trigger: string(reason),
		})
		c.logger.Info("search: state transition",
			"from", from.String(), "to", Aborting.String(),
			"reason", string(reason), "attempt", len(c.attempts))
	}
	return d
}

// Observe records attempt and applies the transition rules.
func (c *Controller) Observe(a SearchAttempt) Decision {
	c.attempts = append(c.attempts, a)
	from := c.state.Strategy
	d := Decision{Action: ActionContinue, From: from, To: from}

	if from == Aborting {
		d.Action = ActionAbort
		return d
	}

	switch a.Outcome {
	case Credited:
		c.state.ConsecutiveNoCredit = 0
		c.state.ConsecutiveErrors = 0
		c.tracker.Decrement(c.kind)
		if from == Cautious {
			c.state.CautiousCredits++
			if c.state.CautiousCredits >= 2 {
				c.state.Strategy = Normal
				c.state.CautiousCredits = 0
			}
		}
		if c.tracker.IsExhausted(c.kind) {
			d.Action = ActionComplete
			d.Reason = StopExhausted
		}

	case NotCredited:
		c.state.ConsecutiveErrors = 0
		c.state.CautiousCredits = 0
		c.state.ConsecutiveNoCredit++
		switch {
		case from == Cautious && c.state.ConsecutiveNoCredit >= c.thresholds.AbortAfter:
			c.state.Strategy = Aborting
			d.Action = ActionAbort
			d.Reason = StopNoCredit
		case from == Normal && c.state.ConsecutiveNoCredit >= c.thresholds.CautiousAfter:
			c.state.Strategy = Cautious
			d.Action = ActionVary
		}

	case Errored:
		c.state.ConsecutiveErrors++
		if c.state.ConsecutiveErrors >= c.thresholds.ErrorBudget {
			c.state.Strategy = Aborting
			d.Action = ActionAbort
			d.Reason = StopErrorBudget
		}

	case Blocked:
		c.state.Strategy = Aborting
		d.Action = ActionAbort
		d.Reason = StopBlocked
	}

	d.To = c.state.Strategy
	if d.To != from {
		c.transitions = append(c.transitions, Transition{
			Attempt: len(c.attempts), From: from, To: d.To, Trigger: a.Outcome.String(),
		})
		c.logger.Info("search: state transition",
			"from", from.String(),
			"to", d.To.String(),
			"outcome", a.Outcome.String(),
			"no_credit", c.state.ConsecutiveNoCredit,
			"errors", c.state.ConsecutiveErrors,
			"attempt", len(c.attempts))
	}
	return d
}
