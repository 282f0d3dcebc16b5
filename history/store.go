// Package history persists what each run did: one row per platform pass
// and one row per account per day with the points earned.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/rewardsfarm/history/internal/sqlitedb"
	"github.com/hazyhaar/rewardsfarm/search"
)

const schema = `
CREATE TABLE IF NOT EXISTS passes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT    NOT NULL,
	account           TEXT    NOT NULL,
	kind              TEXT    NOT NULL,
	recorded_at       INTEGER NOT NULL,
	starting_points   INTEGER NOT NULL,
	ending_points     INTEGER NOT NULL,
	attempts          INTEGER NOT NULL,
	credited          INTEGER NOT NULL,
	initial_quota     INTEGER NOT NULL,
	remaining_quota   INTEGER NOT NULL,
	final_state       TEXT    NOT NULL,
	stop_reason       TEXT    NOT NULL,
	expected_delta    INTEGER NOT NULL,
	anomalies         TEXT    NOT NULL DEFAULT '[]',
	error             TEXT    NOT NULL DEFAULT '',
	duration_ms       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS passes_account ON passes(account, recorded_at);

CREATE TABLE IF NOT EXISTS daily_points (
	account     TEXT    NOT NULL,
	day         TEXT    NOT NULL,
	earned      INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	difference  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (account, day)
);
`

// DayFormat is the layout of DailyRecord.Day.
const DayFormat = "2006-01-02"

// Store is a SQLite-backed history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, sqlitedb.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenMemory opens an in-memory store closed at test cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	return &Store{db: sqlitedb.OpenMemory(t, sqlitedb.WithSchema(schema)), now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// NewRunID returns a time-sortable run identifier.
func NewRunID() string { return "run_" + uuid.Must(uuid.NewV7()).String() }

// PassRecord is a stored platform pass.
type PassRecord struct {
	ID             int64             `json:"id"`
	RunID          string            `json:"run_id"`
	Account        string            `json:"account"`
	Kind           search.Kind       `json:"kind"`
	RecordedAt     time.Time         `json:"recorded_at"`
	StartingPoints int               `json:"starting_points"`
	EndingPoints   int               `json:"ending_points"`
	Attempts       uint              `json:"attempts"`
	Credited       uint              `json:"credited"`
	InitialQuota   uint              `json:"initial_quota"`
	RemainingQuota uint              `json:"remaining_quota"`
	FinalState     string            `json:"final_state"`
	StopReason     search.StopReason `json:"stop_reason"`
	ExpectedDelta  int               `json:"expected_delta"`
	Anomalies      []search.Anomaly  `json:"anomalies"`
	Error          string            `json:"error,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// Earned is the points the pass gained.
func (p PassRecord) Earned() int { return p.EndingPoints - p.StartingPoints }

// RecordPass stores one pass result under runID.
func (s *Store) RecordPass(ctx context.Context, runID, account string, res search.PlatformRunResult) error {
	anomalies := res.Anomalies
	if anomalies == nil {
		anomalies = []search.Anomaly{}
	}
	anomJSON, err := json.Marshal(anomalies)
	if err != nil {
		return fmt.Errorf("history: marshal anomalies: %w", err)
	}
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	return sqlitedb.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO passes (run_id, account, kind, recorded_at, starting_points, ending_points,
				attempts, credited, initial_quota, remaining_quota, final_state, stop_reason,
				expected_delta, anomalies, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, account, res.Kind.String(), s.now().UnixMilli(), res.StartingPoints, res.EndingPoints,
			res.AttemptsMade, res.CreditedCount, res.InitialQuota, res.RemainingQuota,
			res.FinalState.String(), string(res.StopReason), res.ExpectedDelta,
			string(anomJSON), errText, res.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("history: insert pass: %w", err)
		}
		return nil
	})
}

// LatestPasses returns up to limit passes, newest first. An empty account
// matches every account.
func (s *Store) LatestPasses(ctx context.Context, account string, limit int) ([]PassRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, account, kind, recorded_at, starting_points, ending_points,
			attempts, credited, initial_quota, remaining_quota, final_state, stop_reason,
			expected_delta, anomalies, error, duration_ms
		FROM passes
		WHERE ? = '' OR account = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, account, account, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query passes: %w", err)
	}
	defer rows.Close()

	var out []PassRecord
	for rows.Next() {
		var (
			p          PassRecord
			kind, anom string
			recorded   int64
			durationMS int64
			stop       string
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Account, &kind, &recorded, &p.StartingPoints,
			&p.EndingPoints, &p.Attempts, &p.Credited, &p.InitialQuota, &p.RemainingQuota,
			&p.FinalState, &stop, &p.ExpectedDelta, &anom, &p.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("history: scan pass: %w", err)
		}
		if p.Kind, err = search.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("history: pass %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(anom), &p.Anomalies); err != nil {
			return nil, fmt.Errorf("history: pass %d anomalies: %w", p.ID, err)
		}
		p.StopReason = search.StopReason(stop)
		p.RecordedAt = time.UnixMilli(recorded)
		p.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, p)
	}
	return out, rows.Err()
}

// DailyRecord is an account's points for one day.
type DailyRecord struct {
	Account string `json:"account"`
	Day     string `json:"day"`
	// Earned is the points gained during the day's run.
	Earned int `json:"earned"`
	// Total is the balance after the run.
	Total int `json:"total"`
	// Difference is Total minus the previous day's Total.
	Difference int `json:"difference"`
}

// Today formats the current day for DailyRecord.Day.
func (s *Store) Today() string { return s.now().Format(DayFormat) }

// RecordDaily upserts the day's row; a second run on the same day
// replaces the first.
func (s *Store) RecordDaily(ctx context.Context, r DailyRecord) error {
	if r.Day == "" {
		r.Day = s.Today()
	}
	return sqlitedb.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_points (account, day, earned, total, difference, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account, day) DO UPDATE SET
				earned = excluded.earned,
				total = excluded.total,
				difference = excluded.difference,
				updated_at = excluded.updated_at`,
			r.Account, r.Day, r.Earned, r.Total, r.Difference, s.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("history: upsert daily: %w", err)
		}
		return nil
	})
}

// PreviousPoints returns the latest total recorded for account strictly
// before day. ok is false when there is none.
func (s *Store) PreviousPoints(ctx context.Context, account, day string) (total int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT total FROM daily_points
		WHERE account = ? AND day < ?
		ORDER BY day DESC LIMIT 1`, account, day).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("history: previous points: %w", err)
	}
	return total, true, nil
}

// Daily returns the daily rows for account, oldest first.
func (s *Store) Daily(ctx context.Context, account string) ([]DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, day, earned, total, difference FROM daily_points
		WHERE account = ? ORDER BY day`, account)
	if err != nil {
		return nil, fmt.Errorf("history: query daily: %w", err)
	}
	defer rows.Close()
	var out []DailyRecord
	for rows.Next() {
		var r DailyRecord
		if err := rows.Scan(&r.Account, &r.Day, &r.Earned, &r.Total, &r.Difference); err != nil {
			return nil, fmt.Errorf("history: scan daily: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
