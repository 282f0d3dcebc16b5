package search

import (
	"log/slog"
	"time"
)

// ReconcileInput carries everything Reconcile looks at.
type ReconcileInput struct {
	Kind           Kind
	StartingPoints int
	EndingPoints   int
	AttemptsMade   uint
	QuotaConsumed  uint
	InitialQuota   uint
	RemainingQuota uint
	// PointsPerSearch is the rate a credited search earns. Zero disables
	// the points check.
	PointsPerSearch int
}

// Reporter compares point totals against consumed quota.
type Reporter struct {
	// Tolerance is the absolute points difference accepted before the
	// totals are flagged as mismatched.
	Tolerance int
}

// Reconcile builds the pass result from its inputs. It is a pure function:
// it calls nothing and identical inputs give identical results.
func (r Reporter) Reconcile(in ReconcileInput) PlatformRunResult {
	res := PlatformRunResult{
		Kind:           in.Kind,
		StartingPoints: in.StartingPoints,
		EndingPoints:   in.EndingPoints,
		AttemptsMade:   in.AttemptsMade,
		CreditedCount:  in.QuotaConsumed,
		InitialQuota:   in.InitialQuota,
		RemainingQuota: in.RemainingQuota,
	}
	if in.PointsPerSearch <= 0 {
		return res
	}
	expected := int(in.QuotaConsumed) * in.PointsPerSearch
	res.ExpectedDelta = expected
	observed := in.EndingPoints - in.StartingPoints
	diff := observed - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > r.Tolerance {
		res.Anomalies = append(res.Anomalies, Anomaly{
			Kind:     AnomalyPointsMismatch,
			Expected: expected,
			Observed: observed,
		})
	}
	return res
}

// Log emits one line per pass and one warning per anomaly.
func (r Reporter) Log(logger *slog.Logger, res PlatformRunResult) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"kind", res.Kind.String(),
		"attempts", res.AttemptsMade,
		"credited", res.CreditedCount,
		"initial_quota", res.InitialQuota,
		"remaining_quota", res.RemainingQuota,
		"earned", res.Earned(),
		"final_state", res.FinalState.String(),
		"stop_reason", string(res.StopReason),
		"duration", res.Duration.Round(time.Second).String(),
	}
	if res.Err != nil {
		logger.Warn("search: pass stopped", append(attrs, "error", res.Err)...)
	} else {
		logger.Info("search: pass finished", attrs...)
	}
	for _, a := range res.Anomalies {
		logger.Warn("search: reconciliation anomaly",
			"kind", res.Kind.String(),
			"anomaly", string(a.Kind),
			"expected", a.Expected,
			"observed", a.Observed)
	}
}
