package storage

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the sqlite store behind the catalog, progress, detail cache and
// score snapshots.
type DB struct {
	sql *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS releases (
  id        INTEGER PRIMARY KEY,
  title     TEXT NOT NULL,
  platform  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_releases_platform ON releases(platform, id);
CREATE TABLE IF NOT EXISTS provider_mappings (
  release_id  INTEGER NOT NULL,
  source      TEXT NOT NULL,
  native_id   TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  UNIQUE(release_id, source)
);
CREATE INDEX IF NOT EXISTS idx_mappings_native ON provider_mappings(source, native_id);
CREATE TABLE IF NOT EXISTS match_reviews (
  id           INTEGER PRIMARY KEY,
  release_id   INTEGER NOT NULL DEFAULT 0,
  source       TEXT NOT NULL,
  raw_title    TEXT NOT NULL,
  guess_title  TEXT,
  guess_id     TEXT,
  native_id    TEXT,
  score        REAL NOT NULL,
  reason       TEXT NOT NULL,
  created_at   TEXT NOT NULL,
  UNIQUE(source, raw_title, release_id)
);
CREATE TABLE IF NOT EXISTS progress (
  user_id           TEXT NOT NULL,
  progress_key      TEXT NOT NULL,
  source            TEXT NOT NULL,
  native_id         TEXT,
  release_id        INTEGER,
  title             TEXT NOT NULL,
  platform          TEXT NOT NULL,
  playtime_minutes  INTEGER NOT NULL DEFAULT 0,
  earned            INTEGER,
  total             INTEGER,
  hardcore          INTEGER,
  status            TEXT,
  updated_at        TEXT NOT NULL,
  PRIMARY KEY(user_id, progress_key)
);
CREATE TABLE IF NOT EXISTS detail_sets (
  user_id     TEXT NOT NULL,
  release_id  INTEGER NOT NULL,
  fetched_at  TEXT NOT NULL,
  items       TEXT NOT NULL,
  PRIMARY KEY(user_id, release_id)
);
CREATE TABLE IF NOT EXISTS score_snapshots (
  id           INTEGER PRIMARY KEY,
  user_id      TEXT NOT NULL,
  computed_at  TEXT NOT NULL,
  score_total  INTEGER NOT NULL,
  confidence   INTEGER NOT NULL,
  breakdown    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_user ON score_snapshots(user_id, id);
CREATE TABLE IF NOT EXISTS provider_syncs (
  user_id    TEXT NOT NULL,
  source     TEXT NOT NULL,
  run_id     TEXT NOT NULL,
  synced_at  TEXT NOT NULL,
  imported   INTEGER NOT NULL DEFAULT 0,
  updated    INTEGER NOT NULL DEFAULT 0,
  skipped    INTEGER NOT NULL DEFAULT 0,
  errors     INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(user_id, source)
);
CREATE TABLE IF NOT EXISTS score_bonuses (
  user_id     TEXT PRIMARY KEY,
  points      INTEGER NOT NULL,
  note        TEXT,
  updated_at  TEXT NOT NULL
);
`

// Open opens the database at path and creates any missing tables.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts our own layout and sqlite's CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
