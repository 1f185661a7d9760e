package detailcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type memStore struct {
	snaps    map[int64]Snapshot
	getErr   error
	putErr   error
	putCalls int
}

func (m *memStore) GetDetails(_ context.Context, _ string, releaseID int64) (*Snapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.snaps[releaseID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) PutDetails(_ context.Context, _ string, releaseID int64, s Snapshot) error {
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	m.snaps[releaseID] = s
	return nil
}

type countingFetcher struct {
	calls int
	items []RawItem
	err   error
}

func (f *countingFetcher) FetchDetails(context.Context, string, int64) ([]RawItem, error) {
	f.calls++
	return f.items, f.err
}

var base = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func TestGetOrFetchFreshness(t *testing.T) {
	clock := &fakeClock{now: base}
	store := &memStore{snaps: map[int64]Snapshot{}}
	fetcher := &countingFetcher{items: []RawItem{{ID: "a", Name: "First"}}}
	svc := New(store, fetcher, WithClock(clock))
	ctx := context.Background()

	res, err := svc.GetOrFetch(ctx, "u1", 1, false)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, base, res.FetchedAt)
	assert.Equal(t, 1, fetcher.calls)

	clock.now = base.Add(23 * time.Hour)
	res, err = svc.GetOrFetch(ctx, "u1", 1, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, fetcher.calls)

	clock.now = base.Add(25 * time.Hour)
	res, err = svc.GetOrFetch(ctx, "u1", 1, false)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, clock.now, res.FetchedAt)
}

func TestGetOrFetchExactTTLIsStale(t *testing.T) {
	clock := &fakeClock{now: base.Add(DefaultTTL)}
	store := &memStore{snaps: map[int64]Snapshot{1: {FetchedAt: base}}}
	fetcher := &countingFetcher{}
	_, err := New(store, fetcher, WithClock(clock)).GetOrFetch(context.Background(), "u1", 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetOrFetchForceBypassesCache(t *testing.T) {
	clock := &fakeClock{now: base}
	store := &memStore{snaps: map[int64]Snapshot{1: {FetchedAt: base}}}
	fetcher := &countingFetcher{}
	res, err := New(store, fetcher, WithClock(clock)).GetOrFetch(context.Background(), "u1", 1, true)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetOrFetchStoreFailures(t *testing.T) {
	store := &memStore{snaps: map[int64]Snapshot{}, getErr: errors.New("corrupt"), putErr: errors.New("read-only")}
	fetcher := &countingFetcher{items: []RawItem{{ID: "a"}}}
	res, err := New(store, fetcher).GetOrFetch(context.Background(), "u1", 1, false)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Contains(t, res.Warning, "read-only")
	assert.Equal(t, 1, store.putCalls)
}

func TestGetOrFetchFetchError(t *testing.T) {
	store := &memStore{snaps: map[int64]Snapshot{}}
	fetcher := &countingFetcher{err: errors.New("boom")}
	_, err := New(store, fetcher).GetOrFetch(context.Background(), "u1", 1, false)
	assert.Error(t, err)
	assert.Zero(t, store.putCalls)
}

func TestCanonicalize(t *testing.T) {
	yes := true
	no := false
	full := 100.0
	half := 50.0
	early := base.Add(-48 * time.Hour)
	late := base.Add(-time.Hour)

	items := Canonicalize([]RawItem{
		{ID: "locked"},
		{ID: "half", ProgressPct: &half},
		{ID: "flagged-no", EarnedFlag: &no},
		{ID: "early", EarnedAt: &early},
		{ID: "flag", EarnedFlag: &yes},
		{ID: "late", EarnedAt: &late},
		{ID: "pct", ProgressPct: &full},
	})

	var order []string
	for _, it := range items {
		order = append(order, it.ID)
	}
	assert.Equal(t, []string{"late", "early", "flag", "pct", "flagged-no", "half", "locked"}, order)
	assert.True(t, items[2].Earned)
	assert.True(t, items[3].Earned)
	assert.False(t, items[4].Earned)
}
