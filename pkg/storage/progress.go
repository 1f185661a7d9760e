package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sw33tLie/lifescore/pkg/reconcile"
)

const progressColumns = "user_id, progress_key, source, native_id, release_id, title, platform, playtime_minutes, earned, total, hardcore, status, updated_at"

// GetProgress returns nil, nil when the user has no record for key.
func (d *DB) GetProgress(ctx context.Context, userID, key string) (*reconcile.Progress, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+progressColumns+" FROM progress WHERE user_id = ? AND progress_key = ?", userID, key)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) InsertProgress(ctx context.Context, p reconcile.Progress) error {
	_, err := d.sql.ExecContext(ctx, "INSERT INTO progress("+progressColumns+") VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)", progressArgs(p)...)
	return err
}

func (d *DB) UpdateProgress(ctx context.Context, p reconcile.Progress) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE progress SET source = ?, native_id = ?, release_id = ?, title = ?, platform = ?, playtime_minutes = ?, earned = ?, total = ?, hardcore = ?, status = ?, updated_at = ?
WHERE user_id = ? AND progress_key = ?`,
		p.Source, nullIfEmpty(p.NativeID), nullInt64(p.ReleaseID), p.Title, p.Platform, p.PlaytimeMinutes,
		nullInt(p.Earned), nullInt(p.Total), nullInt(p.Hardcore), nullString(p.Status), formatTime(p.UpdatedAt),
		p.UserID, p.Key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertProgressRaw writes without reading first. Playtime keeps the
// larger value; reported fields overwrite, unreported ones are kept.
func (d *DB) UpsertProgressRaw(ctx context.Context, p reconcile.Progress) error {
	_, err := d.sql.ExecContext(ctx, "INSERT INTO progress("+progressColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id, progress_key) DO UPDATE SET
  source = excluded.source,
  native_id = COALESCE(excluded.native_id, progress.native_id),
  release_id = COALESCE(progress.release_id, excluded.release_id),
  title = excluded.title,
  platform = excluded.platform,
  playtime_minutes = MAX(progress.playtime_minutes, excluded.playtime_minutes),
  earned = COALESCE(excluded.earned, progress.earned),
  total = COALESCE(excluded.total, progress.total),
  hardcore = COALESCE(excluded.hardcore, progress.hardcore),
  status = COALESCE(excluded.status, progress.status),
  updated_at = excluded.updated_at`, progressArgs(p)...)
	return err
}

// ListProgress returns every record of a user ordered by key.
func (d *DB) ListProgress(ctx context.Context, userID string) ([]reconcile.Progress, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+progressColumns+" FROM progress WHERE user_id = ? ORDER BY progress_key", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reconcile.Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(s scanner) (reconcile.Progress, error) {
	var (
		p                       reconcile.Progress
		nativeID, status        sql.NullString
		releaseID               sql.NullInt64
		earned, total, hardcore sql.NullInt64
		updatedAt               string
	)
	err := s.Scan(&p.UserID, &p.Key, &p.Source, &nativeID, &releaseID, &p.Title, &p.Platform, &p.PlaytimeMinutes,
		&earned, &total, &hardcore, &status, &updatedAt)
	if err != nil {
		return reconcile.Progress{}, err
	}
	p.NativeID = nativeID.String
	p.ReleaseID = int64Ptr(releaseID)
	p.Earned = intPtr(earned)
	p.Total = intPtr(total)
	p.Hardcore = intPtr(hardcore)
	p.Status = stringPtr(status)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func progressArgs(p reconcile.Progress) []interface{} {
	return []interface{}{
		p.UserID, p.Key, p.Source, nullIfEmpty(p.NativeID), nullInt64(p.ReleaseID), p.Title, p.Platform, p.PlaytimeMinutes,
		nullInt(p.Earned), nullInt(p.Total), nullInt(p.Hardcore), nullString(p.Status), formatTime(p.UpdatedAt),
	}
}
