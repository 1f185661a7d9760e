package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sw33tLie/lifescore/pkg/catalog"
)

// UpsertReleases inserts or renames catalog releases by id in one
// transaction. It returns how many rows were inserted and updated.
func (d *DB) UpsertReleases(ctx context.Context, releases []catalog.Release) (inserted, updated int, err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing := make(map[int64]catalog.Release)
	rows, err := tx.QueryContext(ctx, "SELECT id, title, platform FROM releases")
	if err != nil {
		return 0, 0, err
	}
	for rows.Next() {
		var r catalog.Release
		if err = rows.Scan(&r.ID, &r.Title, &r.Platform); err != nil {
			rows.Close()
			return 0, 0, err
		}
		existing[r.ID] = r
	}
	if err = rows.Close(); err != nil {
		return 0, 0, err
	}

	for _, r := range releases {
		old, ok := existing[r.ID]
		switch {
		case !ok:
			_, err = tx.ExecContext(ctx, "INSERT INTO releases(id, title, platform) VALUES(?,?,?)", r.ID, r.Title, r.Platform)
			if err != nil {
				return 0, 0, err
			}
			inserted++
		case old.Title != r.Title || old.Platform != r.Platform:
			_, err = tx.ExecContext(ctx, "UPDATE releases SET title = ?, platform = ? WHERE id = ?", r.Title, r.Platform, r.ID)
			if err != nil {
				return 0, 0, err
			}
			updated++
		}
		existing[r.ID] = r
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// GetRelease returns nil, nil when the id is unknown.
func (d *DB) GetRelease(ctx context.Context, id int64) (*catalog.Release, error) {
	var r catalog.Release
	err := d.sql.QueryRowContext(ctx, "SELECT id, title, platform FROM releases WHERE id = ?", id).Scan(&r.ID, &r.Title, &r.Platform)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) ListReleasesByPlatform(ctx context.Context, platform string) ([]catalog.Release, error) {
	return d.queryReleases(ctx, "SELECT id, title, platform FROM releases WHERE platform = ? ORDER BY id", platform)
}

// ListReleasesAfter pages releases by id. An empty platform matches all.
func (d *DB) ListReleasesAfter(ctx context.Context, afterID int64, platform string, limit int) ([]catalog.Release, error) {
	if platform == "" {
		return d.queryReleases(ctx, "SELECT id, title, platform FROM releases WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
	}
	return d.queryReleases(ctx, "SELECT id, title, platform FROM releases WHERE id > ? AND platform = ? ORDER BY id LIMIT ?", afterID, platform, limit)
}

func (d *DB) queryReleases(ctx context.Context, q string, args ...interface{}) ([]catalog.Release, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Release
	for rows.Next() {
		var r catalog.Release
		if err := rows.Scan(&r.ID, &r.Title, &r.Platform); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) FindMapping(ctx context.Context, releaseID int64, source string) (*catalog.Mapping, error) {
	return d.queryMapping(ctx, "SELECT release_id, source, native_id, created_at FROM provider_mappings WHERE release_id = ? AND source = ?", releaseID, source)
}

func (d *DB) FindMappingByNative(ctx context.Context, source, nativeID string) (*catalog.Mapping, error) {
	return d.queryMapping(ctx, "SELECT release_id, source, native_id, created_at FROM provider_mappings WHERE source = ? AND native_id = ? ORDER BY release_id LIMIT 1", source, nativeID)
}

func (d *DB) queryMapping(ctx context.Context, q string, args ...interface{}) (*catalog.Mapping, error) {
	var (
		m       catalog.Mapping
		created string
	)
	err := d.sql.QueryRowContext(ctx, q, args...).Scan(&m.ReleaseID, &m.Source, &m.NativeID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// ListMappings returns every provider mapping of a release.
func (d *DB) ListMappings(ctx context.Context, releaseID int64) ([]catalog.Mapping, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT release_id, source, native_id, created_at FROM provider_mappings WHERE release_id = ? ORDER BY source", releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Mapping
	for rows.Next() {
		var (
			m       catalog.Mapping
			created string
		)
		if err := rows.Scan(&m.ReleaseID, &m.Source, &m.NativeID, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMapping fails on the (release_id, source) unique constraint; the
// matcher checks for an existing mapping first.
func (d *DB) InsertMapping(ctx context.Context, m catalog.Mapping) error {
	_, err := d.sql.ExecContext(ctx, "INSERT INTO provider_mappings(release_id, source, native_id, created_at) VALUES(?,?,?,?)",
		m.ReleaseID, m.Source, m.NativeID, formatTime(m.CreatedAt))
	return err
}

// SaveReview keeps one entry per (source, raw title, release); a repeat
// refreshes the guess, score and timestamp. Release id 0 means the review
// has no catalog release attached.
func (d *DB) SaveReview(ctx context.Context, r catalog.Review) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO match_reviews(release_id, source, raw_title, guess_title, guess_id, native_id, score, reason, created_at)
VALUES(?,?,?,?,?,?,?,?,?)
ON CONFLICT(source, raw_title, release_id) DO UPDATE SET
  guess_title = excluded.guess_title,
  guess_id    = excluded.guess_id,
  native_id   = excluded.native_id,
  score       = excluded.score,
  reason      = excluded.reason,
  created_at  = excluded.created_at`,
		r.ReleaseID, r.Source, r.RawTitle, nullIfEmpty(r.GuessTitle), nullIfEmpty(r.GuessID), nullIfEmpty(r.NativeID), r.Score, r.Reason, formatTime(r.CreatedAt))
	return err
}

// ListReviews returns review entries, most recently queued first.
func (d *DB) ListReviews(ctx context.Context, source string, limit int) ([]catalog.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT release_id, source, raw_title, guess_title, guess_id, native_id, score, reason, created_at FROM match_reviews"
	args := []interface{}{}
	if source != "" {
		q += " WHERE source = ?"
		args = append(args, source)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []catalog.Review{}
	for rows.Next() {
		var (
			r          catalog.Review
			releaseID  sql.NullInt64
			guessTitle sql.NullString
			guessID    sql.NullString
			nativeID   sql.NullString
			created    string
		)
		if err := rows.Scan(&releaseID, &r.Source, &r.RawTitle, &guessTitle, &guessID, &nativeID, &r.Score, &r.Reason, &created); err != nil {
			return nil, err
		}
		r.ReleaseID = releaseID.Int64
		r.GuessTitle = guessTitle.String
		r.GuessID = guessID.String
		r.NativeID = nativeID.String
		r.CreatedAt = parseTime(created)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
