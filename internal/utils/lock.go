package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	lockFileSuffix = ".lock"
)

// ErrSyncInProgress is returned when another process holds a user's lease.
var ErrSyncInProgress = errors.New("a sync for this user is already running")

// DBLock serializes whole-database writers such as catalog imports.
type DBLock struct {
	lock *flock.Flock
	path string
}

// NewDBLock creates a new lock for the given database path.
func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &DBLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the database lock, waiting if necessary.
func (l *DBLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		Log.Warn("Another lifescore process is writing to the database, waiting for it to finish...")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the database lock.
func (l *DBLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SyncLease is the per-user guarantee that at most one sync runs at a time.
// It never waits: a busy lease fails with ErrSyncInProgress.
type SyncLease struct {
	UserID string
	Token  string
	lock   *flock.Flock
}

// AcquireSyncLease takes the lease for userID. Lease files live next to the
// database.
func AcquireSyncLease(dbPath, userID string) (*SyncLease, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(absPath), "leases")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(dir, unsafeFileChars.ReplaceAllString(userID, "_")+lockFileSuffix)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lease on %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, userID)
	}
	return &SyncLease{UserID: userID, Token: uuid.NewString(), lock: fl}, nil
}

// Held reports whether the lease is still owned by this process.
func (l *SyncLease) Held() bool {
	return l != nil && l.lock != nil && l.lock.Locked()
}

func (l *SyncLease) Release() error {
	if !l.Held() {
		return nil
	}
	return l.lock.Unlock()
}

// GetAbsDBPath resolves the database path.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "lifescore", "lifescore.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
