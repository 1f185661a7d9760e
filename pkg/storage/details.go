package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sw33tLie/lifescore/pkg/detailcache"
)

// GetDetails returns nil, nil when no snapshot exists.
func (d *DB) GetDetails(ctx context.Context, userID string, releaseID int64) (*detailcache.Snapshot, error) {
	var fetchedAt, items string
	err := d.sql.QueryRowContext(ctx, "SELECT fetched_at, items FROM detail_sets WHERE user_id = ? AND release_id = ?", userID, releaseID).Scan(&fetchedAt, &items)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := &detailcache.Snapshot{FetchedAt: parseTime(fetchedAt)}
	if err := json.Unmarshal([]byte(items), &snap.Items); err != nil {
		return nil, err
	}
	return snap, nil
}

// PutDetails replaces the snapshot wholesale.
func (d *DB) PutDetails(ctx context.Context, userID string, releaseID int64, s detailcache.Snapshot) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO detail_sets(user_id, release_id, fetched_at, items) VALUES(?,?,?,?)
ON CONFLICT(user_id, release_id) DO UPDATE SET fetched_at = excluded.fetched_at, items = excluded.items`,
		userID, releaseID, formatTime(s.FetchedAt), string(items))
	return err
}
