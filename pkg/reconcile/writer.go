package reconcile

import (
	"context"
	"time"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

// Store persists reconciled progress.
type Store interface {
	// GetProgress returns nil, nil when no record exists.
	GetProgress(ctx context.Context, userID, key string) (*Progress, error)
	InsertProgress(ctx context.Context, p Progress) error
	UpdateProgress(ctx context.Context, p Progress) error
	// UpsertProgressRaw writes p without a prior read. Playtime must still
	// be kept at the maximum of stored and incoming; everything else is
	// last writer wins.
	UpsertProgressRaw(ctx context.Context, p Progress) error
}

// Outcome says what Apply did with a signal.
type Outcome int

const (
	Unchanged Outcome = iota
	Inserted
	Updated
	// Upserted means the read failed and the raw fallback was used, so it
	// is unknown whether a record existed.
	Upserted
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Upserted:
		return "upserted"
	default:
		return "unchanged"
	}
}

// Logger is satisfied by logrus.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Writer applies signals to the store through Merge.
type Writer struct {
	Store Store
	Log   Logger
	Now   func() time.Time
}

// Apply reads the current record for the signal's key, merges the signal in
// and writes the result. releaseID, when positive, is attached to records
// that have no release yet. Callers must hold the user's sync lease.
func (w *Writer) Apply(ctx context.Context, userID string, in Signal, releaseID int64) (Progress, Outcome, error) {
	log := w.Log
	if log == nil {
		log = nopLogger{}
	}
	now := time.Now().UTC()
	if w.Now != nil {
		now = w.Now()
	}
	key := ResolveKey(in)

	existing, err := w.Store.GetProgress(ctx, userID, key)
	if err != nil {
		log.Warnf("Reading progress %s for %s failed, falling back to raw upsert: %v", key, userID, err)
		merged := Merge(nil, in, now)
		merged.UserID = userID
		AttachRelease(&merged, releaseID)
		if err := w.Store.UpsertProgressRaw(ctx, merged); err != nil {
			return Progress{}, Unchanged, errs.Wrap(errs.ErrPersistence, "upsert progress", key, err)
		}
		return merged, Upserted, nil
	}

	merged := Merge(existing, in, now)
	merged.UserID = userID
	AttachRelease(&merged, releaseID)

	if existing == nil {
		if err := w.Store.InsertProgress(ctx, merged); err != nil {
			return Progress{}, Unchanged, errs.Wrap(errs.ErrPersistence, "insert progress", key, err)
		}
		return merged, Inserted, nil
	}
	if Equal(*existing, merged) {
		log.Debugf("Progress %s unchanged", key)
		return merged, Unchanged, nil
	}
	if err := w.Store.UpdateProgress(ctx, merged); err != nil {
		return Progress{}, Unchanged, errs.Wrap(errs.ErrPersistence, "update progress", key, err)
	}
	return merged, Updated, nil
}
