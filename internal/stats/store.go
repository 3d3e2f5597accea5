// internal/stats/store.go
//
// Round outcome log backed by SQLite.
// One row is appended per finished round (unlock or reject). Rows are
// aggregate history only; no game state is ever restored from them.

package stats

import (
	"context"
	"database/sql"
	"time"
)

// Result is the outcome recorded for a round.
type Result string

const (
	ResultUnlock Result = "unlock"
	ResultReject Result = "reject"
)

const defaultLeaderboardLimit = 20

// timeLayout is fixed-width so finished_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Round struct {
	SessionID  string    `json:"sessionId"`
	Generation uint64    `json:"generation"`
	Result     Result    `json:"result"`
	ElapsedMs  int64     `json:"elapsedMs"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Summary struct {
	Rounds  int `json:"rounds"`
	Unlocks int `json:"unlocks"`
	Rejects int `json:"rejects"`
}

type LBRow struct {
	SessionID  string `json:"sessionId"`
	ElapsedMs  int64  `json:"elapsedMs"`
	FinishedAt string `json:"finishedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record appends a finished round.
func (s *Store) Record(ctx context.Context, r Round) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rounds(session_id, generation, result, elapsed_ms, finished_at)
		VALUES(?,?,?,?,?)`,
		r.SessionID, r.Generation, string(r.Result), r.ElapsedMs, r.FinishedAt.UTC().Format(timeLayout),
	)
	return err
}

// Summary counts all recorded rounds by result.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
		        COALESCE(SUM(result = 'unlock'), 0),
		        COALESCE(SUM(result = 'reject'), 0)
		FROM rounds`,
	).Scan(&out.Rounds, &out.Unlocks, &out.Rejects)
	return out, err
}

// Leaderboard returns the fastest unlocks, ties broken by who finished first.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, elapsed_ms, finished_at
		FROM rounds
		WHERE result = 'unlock'
		ORDER BY elapsed_ms ASC, finished_at ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.SessionID, &r.ElapsedMs, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
