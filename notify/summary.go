package notify

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hazyhaar/rewardsfarm/search"
)

// SummaryPolicy decides when an account summary is sent.
type SummaryPolicy int

const (
	SummaryAlways  SummaryPolicy = iota // after every account
	SummaryOnError                      // only when searches remain or the run failed
	SummaryNever
)

var policyNames = [...]string{"always", "on_error", "never"}

func (p SummaryPolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("SummaryPolicy(%d)", int(p))
}

// ParseSummaryPolicy reads "always", "on_error" or "never". Empty is always.
func ParseSummaryPolicy(s string) (SummaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always":
		return SummaryAlways, nil
	case "on_error", "onerror", "on-error":
		return SummaryOnError, nil
	case "never":
		return SummaryNever, nil
	}
	return 0, fmt.Errorf("notify: unknown summary policy %q", s)
}

func (p *SummaryPolicy) UnmarshalText(b []byte) error {
	v, err := ParseSummaryPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p SummaryPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Summary is the end-of-account report.
type Summary struct {
	Account        string
	StartingPoints int
	EndingPoints   int
	GoalTitle      string
	GoalPoints     int
	Remaining      search.Quota
	Errors         []string
}

// Earned is the points gained during the run.
func (s Summary) Earned() int { return s.EndingPoints - s.StartingPoints }

// Failed reports whether the run left searches undone or hit errors.
func (s Summary) Failed() bool { return s.Remaining.Total() > 0 || len(s.Errors) > 0 }

// ShouldSend applies the policy to s.
func (p SummaryPolicy) ShouldSend(s Summary) bool {
	switch p {
	case SummaryAlways:
		return true
	case SummaryOnError:
		return s.Failed()
	}
	return false
}

// FormatSummary renders s for the policy: a points update for always, an
// error report for on_error.
func FormatSummary(p SummaryPolicy, s Summary) Message {
	if p == SummaryOnError {
		lines := []string{fmt.Sprintf("Account: %s", s.Account)}
		if s.Remaining.Total() > 0 {
			lines = append(lines, fmt.Sprintf("Remaining searches: %s", s.Remaining))
		}
		for _, e := range s.Errors {
			lines = append(lines, "Error: "+e)
		}
		return Message{Title: "Error: remaining searches", Body: strings.Join(lines, "\n"), Level: LevelFailure}
	}

	lines := []string{
		fmt.Sprintf("👤 Account: %s", s.Account),
		fmt.Sprintf("⭐️ Points earned today: %s", FormatNumber(s.Earned())),
		fmt.Sprintf("💰 Total points: %s", FormatNumber(s.EndingPoints)),
	}
	if s.GoalPoints > 0 {
		pct := float64(s.EndingPoints) / float64(s.GoalPoints) * 100
		lines = append(lines, fmt.Sprintf("🎯 Goal reached: %.2f%% (%s)", pct, s.GoalTitle))
	}
	if s.Remaining.Total() > 0 {
		lines = append(lines, fmt.Sprintf("⚠️ Remaining searches: %s", s.Remaining))
	}
	level := LevelSuccess
	if s.Failed() {
		level = LevelWarning
	}
	return Message{Title: "Daily Points Update", Body: strings.Join(lines, "\n"), Level: level}
}

// FormatNumber groups thousands with commas.
func FormatNumber(n int) string { return humanize.Comma(int64(n)) }
