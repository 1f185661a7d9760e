package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sw33tLie/lifescore/pkg/scoring"
)

// ScoreSnapshot is a persisted score breakdown.
type ScoreSnapshot struct {
	UserID     string            `json:"user_id"`
	ComputedAt time.Time         `json:"computed_at"`
	Breakdown  scoring.Breakdown `json:"breakdown"`
}

// SaveScoreSnapshot appends a snapshot for the user.
func (d *DB) SaveScoreSnapshot(ctx context.Context, userID string, b scoring.Breakdown, at time.Time) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, "INSERT INTO score_snapshots(user_id, computed_at, score_total, confidence, breakdown) VALUES(?,?,?,?,?)",
		userID, formatTime(at), b.ScoreTotal, b.Confidence, string(raw))
	return err
}

// LatestScoreSnapshot returns nil, nil when the user has none.
func (d *DB) LatestScoreSnapshot(ctx context.Context, userID string) (*ScoreSnapshot, error) {
	var computedAt, raw string
	err := d.sql.QueryRowContext(ctx, "SELECT computed_at, breakdown FROM score_snapshots WHERE user_id = ? ORDER BY id DESC LIMIT 1", userID).Scan(&computedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := &ScoreSnapshot{UserID: userID, ComputedAt: parseTime(computedAt)}
	if err := json.Unmarshal([]byte(raw), &s.Breakdown); err != nil {
		return nil, err
	}
	return s, nil
}

// GetBonus returns nil, nil when the user never set one.
func (d *DB) GetBonus(ctx context.Context, userID string) (*scoring.Bonus, error) {
	var (
		b    scoring.Bonus
		note sql.NullString
	)
	err := d.sql.QueryRowContext(ctx, "SELECT points, note FROM score_bonuses WHERE user_id = ?", userID).Scan(&b.Points, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Note = note.String
	return &b, nil
}

func (d *DB) SetBonus(ctx context.Context, userID string, b scoring.Bonus, at time.Time) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO score_bonuses(user_id, points, note, updated_at) VALUES(?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET points = excluded.points, note = excluded.note, updated_at = excluded.updated_at`,
		userID, b.Points, nullIfEmpty(b.Note), formatTime(at))
	return err
}

// SyncStamp records the last sync of one provider for one user.
type SyncStamp struct {
	UserID   string    `json:"user_id"`
	Source   string    `json:"source"`
	RunID    string    `json:"run_id"`
	SyncedAt time.Time `json:"synced_at"`
	Imported int       `json:"imported"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
}

func (d *DB) RecordSync(ctx context.Context, s SyncStamp) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO provider_syncs(user_id, source, run_id, synced_at, imported, updated, skipped, errors) VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(user_id, source) DO UPDATE SET run_id = excluded.run_id, synced_at = excluded.synced_at,
  imported = excluded.imported, updated = excluded.updated, skipped = excluded.skipped, errors = excluded.errors`,
		s.UserID, s.Source, s.RunID, formatTime(s.SyncedAt), s.Imported, s.Updated, s.Skipped, s.Errors)
	return err
}

func (d *DB) ListSyncs(ctx context.Context, userID string) ([]SyncStamp, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT user_id, source, run_id, synced_at, imported, updated, skipped, errors FROM provider_syncs WHERE user_id = ? ORDER BY source", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncStamp
	for rows.Next() {
		var (
			s        SyncStamp
			syncedAt string
		)
		if err := rows.Scan(&s.UserID, &s.Source, &s.RunID, &syncedAt, &s.Imported, &s.Updated, &s.Skipped, &s.Errors); err != nil {
			return nil, err
		}
		s.SyncedAt = parseTime(syncedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
