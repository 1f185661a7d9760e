package polling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/providers"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/storage"
)

// ErrLeaseNotHeld is returned when SyncProvider is called without the
// user's sync lease.
var ErrLeaseNotHeld = errors.New("sync lease not held")

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Lease is the caller's proof that no other sync runs for the user.
type Lease interface {
	Held() bool
}

// Resolver maps a provider title to a catalog release.
type Resolver interface {
	Resolve(ctx context.Context, q catalog.Query) (catalog.MatchResult, error)
}

// ProgressWriter merges one signal into persisted progress.
type ProgressWriter interface {
	Apply(ctx context.Context, userID string, in reconcile.Signal, releaseID int64) (reconcile.Progress, reconcile.Outcome, error)
}

// StampRecorder stores the outcome of a sync run.
type StampRecorder interface {
	RecordSync(ctx context.Context, s storage.SyncStamp) error
}

// SyncConfig holds everything SyncProvider needs for one user and provider.
type SyncConfig struct {
	Provider   providers.Provider
	UserID     string
	Lease      Lease
	Authorizer providers.Authorizer
	Matcher    Resolver       // optional; nil = no catalog resolution
	Writer     ProgressWriter // required
	Stamps     StampRecorder  // optional
	Log        Logger         // optional; nil = no logging
	Now        func() time.Time

	// OnItemDone is called after each title is written. Enables the CLI to
	// stream progress. Nil = no callback.
	OnItemDone func(p reconcile.Progress, outcome reconcile.Outcome)
}

// SyncResult is the outcome of one provider sync.
type SyncResult struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	Imported   int              `json:"imported"`
	Updated    int              `json:"updated"`
	Skipped    int              `json:"skipped"`
	Errors     []errs.ItemError `json:"errors"`
	ErrorCount int              `json:"error_count"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// SyncProvider imports a user's library from one provider. Titles are
// processed one at a time; a bad title is recorded and the run continues.
// Authentication problems abort before any work. A failed progress write
// aborts the run and the partial result is returned with the error.
func SyncProvider(ctx context.Context, cfg SyncConfig) (*SyncResult, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	now := time.Now().UTC()
	if cfg.Now != nil {
		now = cfg.Now()
	}
	if cfg.Lease == nil || !cfg.Lease.Held() {
		return nil, fmt.Errorf("%w for %s", ErrLeaseNotHeld, cfg.UserID)
	}
	p := cfg.Provider
	result := &SyncResult{RunID: uuid.NewString(), Source: p.Name(), Errors: []errs.ItemError{}}

	auth, err := cfg.Authorizer.Authorize(ctx, cfg.UserID, p.Name())
	if err != nil {
		return nil, err
	}

	signals, err := p.ListOwned(ctx, auth)
	if err != nil {
		return nil, err
	}
	log.Infof("Syncing %d titles from %s for %s", len(signals), p.Name(), cfg.UserID)

	var report errs.Report
	var runErr error
	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if sig.Source == "" {
			sig.Source = p.Name()
		}
		if sig.NativeID == "" && sig.Title == "" {
			result.Skipped++
			report.Add("(untitled)", errs.Wrap(errs.ErrMalformedPayload, "sync", p.Name(), errors.New("title has neither id nor name")))
			continue
		}

		releaseID := resolveRelease(ctx, cfg.Matcher, sig, &report, log)

		progress, outcome, err := cfg.Writer.Apply(ctx, cfg.UserID, sig, releaseID)
		if err != nil {
			log.Errorf("Writing progress for %q failed: %v", sig.Title, err)
			report.Add(sig.Title, err)
			runErr = err
			break
		}
		switch outcome {
		case reconcile.Inserted, reconcile.Upserted:
			result.Imported++
		case reconcile.Updated:
			result.Updated++
		default:
			result.Skipped++
		}
		if cfg.OnItemDone != nil {
			cfg.OnItemDone(progress, outcome)
		}
	}

	result.Errors = report.Items()
	result.ErrorCount = report.Total()

	if cfg.Stamps != nil && runErr == nil {
		stamp := storage.SyncStamp{
			UserID:   cfg.UserID,
			Source:   p.Name(),
			RunID:    result.RunID,
			SyncedAt: now,
			Imported: result.Imported,
			Updated:  result.Updated,
			Skipped:  result.Skipped,
			Errors:   result.ErrorCount,
		}
		if err := cfg.Stamps.RecordSync(ctx, stamp); err != nil {
			log.Warnf("Could not record sync stamp for %s/%s: %v", cfg.UserID, p.Name(), err)
			result.Warnings = append(result.Warnings, "sync stamp was not saved: "+err.Error())
		}
	}

	return result, runErr
}

// resolveRelease returns the release id for sig, or 0 when the title could
// not be placed in the catalog. Lookup problems never stop the write.
func resolveRelease(ctx context.Context, m Resolver, sig reconcile.Signal, report *errs.Report, log Logger) int64 {
	if m == nil || sig.Title == "" {
		return 0
	}
	res, err := m.Resolve(ctx, catalog.Query{
		Source:         sig.Source,
		NativeID:       sig.NativeID,
		Title:          sig.Title,
		PlatformFields: []string{sig.PlatformLabel},
	})
	switch {
	case errors.Is(err, errs.ErrUnsupportedPlatform):
		log.Debugf("No catalog platform for %q (%s)", sig.Title, sig.PlatformLabel)
		return 0
	case err != nil:
		log.Warnf("Matching %q failed: %v", sig.Title, err)
		report.Add(sig.Title, err)
		return 0
	case !res.Mapped:
		return 0
	}
	return res.ReleaseID
}
