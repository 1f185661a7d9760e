// Package detailcache serves per-title achievement and trophy lists from a
// persisted snapshot while it is fresh, and refetches from the provider
// when it is stale, missing or explicitly bypassed.
package detailcache

import (
	"context"
	"sort"
	"strings"
	"time"
)

// DefaultTTL is how long a fetched detail set stays fresh.
const DefaultTTL = 24 * time.Hour

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// RawItem is a detail entry as a provider returns it.
type RawItem struct {
	ID          string
	Name        string
	Description string
	Points      int
	EarnedAt    *time.Time
	EarnedFlag  *bool
	ProgressPct *float64
	Rarity      *float64
}

// Item is a canonical detail entry.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Points      int        `json:"points"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
	Rarity      *float64   `json:"rarity,omitempty"`
}

// Snapshot is what the store keeps per (user, release).
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Items     []Item    `json:"items"`
}

// Fetcher loads details for one release from the provider that owns it.
type Fetcher interface {
	FetchDetails(ctx context.Context, userID string, releaseID int64) ([]RawItem, error)
}

// Store persists snapshots. Get returns nil, nil on a miss.
type Store interface {
	GetDetails(ctx context.Context, userID string, releaseID int64) (*Snapshot, error)
	PutDetails(ctx context.Context, userID string, releaseID int64, s Snapshot) error
}

// Logger is satisfied by logrus.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Result is returned by GetOrFetch.
type Result struct {
	Items     []Item    `json:"items"`
	Cached    bool      `json:"cached"`
	FetchedAt time.Time `json:"fetched_at"`
	Warning   string    `json:"warning,omitempty"`
}

// Service combines a store and a fetcher.
type Service struct {
	store   Store
	fetcher Fetcher
	clock   Clock
	ttl     time.Duration
	log     Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for cache warnings.
func WithLogger(l Logger) Option { return func(s *Service) { s.log = l } }

// New returns a Service.
func New(store Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{store: store, fetcher: fetcher, clock: systemClock{}, ttl: DefaultTTL, log: nopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fresh reports whether a snapshot fetched at fetchedAt may still be served.
func (s *Service) Fresh(fetchedAt time.Time) bool {
	return s.clock.Now().Sub(fetchedAt) < s.ttl
}

// GetOrFetch returns the cached detail set when it is fresh and force is
// false. Otherwise it fetches, canonicalizes and stores a new snapshot. Store
// failures never fail the call: a failed read is a miss and a failed write
// is reported in Result.Warning.
func (s *Service) GetOrFetch(ctx context.Context, userID string, releaseID int64, force bool) (Result, error) {
	if !force {
		snap, err := s.store.GetDetails(ctx, userID, releaseID)
		switch {
		case err != nil:
			s.log.Warnf("Reading cached details for %s/%d: %v", userID, releaseID, err)
		case snap != nil && s.Fresh(snap.FetchedAt):
			return Result{Items: snap.Items, Cached: true, FetchedAt: snap.FetchedAt}, nil
		}
	}

	raw, err := s.fetcher.FetchDetails(ctx, userID, releaseID)
	if err != nil {
		return Result{}, err
	}
	snap := Snapshot{FetchedAt: s.clock.Now(), Items: Canonicalize(raw)}

	res := Result{Items: snap.Items, FetchedAt: snap.FetchedAt}
	if err := s.store.PutDetails(ctx, userID, releaseID, snap); err != nil {
		s.log.Warnf("Caching details for %s/%d: %v", userID, releaseID, err)
		res.Warning = "details were not cached: " + err.Error()
	}
	return res, nil
}

// Canonicalize converts raw provider items and orders them earned first,
// most recent earn first, then by id.
func Canonicalize(raw []RawItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, Item{
			ID:          strings.TrimSpace(r.ID),
			Name:        r.Name,
			Description: r.Description,
			Points:      r.Points,
			Earned:      isEarned(r),
			EarnedAt:    r.EarnedAt,
			Rarity:      r.Rarity,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Earned != b.Earned {
			return a.Earned
		}
		at, bt := earnedUnix(a), earnedUnix(b)
		if at != bt {
			return at > bt
		}
		return a.ID < b.ID
	})
	return items
}

func isEarned(r RawItem) bool {
	switch {
	case r.EarnedAt != nil && !r.EarnedAt.IsZero():
		return true
	case r.EarnedFlag != nil && *r.EarnedFlag:
		return true
	case r.ProgressPct != nil && *r.ProgressPct >= 100:
		return true
	}
	return false
}

func earnedUnix(it Item) int64 {
	if it.EarnedAt == nil {
		return 0
	}
	return it.EarnedAt.Unix()
}
