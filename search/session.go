package search

import "context"

// Session is the remote capability a pass drives. One pass owns a Session
// at a time; implementations need not be safe for concurrent use.
type Session interface {
	// PerformSearch runs one search and reports whether it was credited.
	PerformSearch(ctx context.Context, term string) SearchOutcome
	// RemainingSearches returns the server's remaining counts.
	RemainingSearches(ctx context.Context) (Quota, error)
	// AccountPoints returns the current points balance.
	AccountPoints(ctx context.Context) (int, error)
	// Blocked reports an active throttle or challenge.
	Blocked(ctx context.Context) bool
}

// RateReporter is implemented by sessions that know how many points one
// credited search earns on the account's market.
type RateReporter interface {
	PointsPerSearch() int
}

// Queries is the query source a pass pulls terms from.
type Queries interface {
	Next(ctx context.Context) (string, error)
	// Vary switches to a different query strategy.
	Vary()
}
