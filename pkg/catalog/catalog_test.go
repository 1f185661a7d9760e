package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

type memStore struct {
	releases []Release
	mappings []Mapping
	reviews  []Review
	inserts  int
}

func (s *memStore) FindMapping(_ context.Context, releaseID int64, source string) (*Mapping, error) {
	for _, m := range s.mappings {
		if m.ReleaseID == releaseID && m.Source == source {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindMappingByNative(_ context.Context, source, nativeID string) (*Mapping, error) {
	for _, m := range s.mappings {
		if m.Source == source && m.NativeID == nativeID {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertMapping(_ context.Context, m Mapping) error {
	s.inserts++
	s.mappings = append(s.mappings, m)
	return nil
}

func (s *memStore) ListReleasesByPlatform(_ context.Context, platform string) ([]Release, error) {
	var out []Release
	for _, r := range s.sorted() {
		if r.Platform == platform {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ListReleasesAfter(_ context.Context, afterID int64, platform string, limit int) ([]Release, error) {
	var out []Release
	for _, r := range s.sorted() {
		if r.ID <= afterID || (platform != "" && r.Platform != platform) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) SaveReview(_ context.Context, r Review) error {
	s.reviews = append(s.reviews, r)
	return nil
}

func (s *memStore) sorted() []Release {
	out := append([]Release(nil), s.releases...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeSearcher struct {
	name    string
	lists   map[string][]Candidate
	failing map[string]error
	calls   map[string]int
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) SystemFor(platform string) (string, bool) {
	switch platform {
	case "snes":
		return "3", true
	case "n64":
		return "2", true
	}
	return "", false
}

func (f *fakeSearcher) SearchSystem(_ context.Context, system string) ([]Candidate, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[system]++
	if err := f.failing[system]; err != nil {
		return nil, err
	}
	return f.lists[system], nil
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Chrono Trigger (USA)", "chrono trigger"},
		{"Chrono Trigger", "chrono trigger"},
		{"  Pokémon   Snap [Rev 1] ", "pokemon snap"},
		{"The Elder Scrolls V: Skyrim™ Special Edition", "the elder scrolls v: skyrim"},
		{"Batman: Arkham City - Game of the Year Edition", "batman: arkham city"},
		{"Portal 2®", "portal 2"},
		{"Minecraft Edition", "minecraft"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeTitle(tc.raw), tc.raw)
	}
}

func TestOverlap(t *testing.T) {
	// Scenario: region-annotated and plain titles are the same game.
	score := Overlap(NormalizeTitle("Chrono Trigger (USA)"), NormalizeTitle("Chrono Trigger"))
	assert.Equal(t, 1.0, score)

	assert.Equal(t, 0.0, Overlap("", "chrono trigger"))
	assert.Equal(t, 0.5, Overlap("super metroid", "metroid"))
	assert.InDelta(t, 0.6, Overlap("final fantasy tactics war lions", "final fantasy tactics advance"), 1e-9)
}

func TestResolvePlatform(t *testing.T) {
	cases := []struct {
		fields []string
		want   string
	}{
		{[]string{"Super Nintendo"}, "snes"},
		{[]string{"Nintendo Entertainment System"}, "nes"},
		{[]string{"Game Boy Advance"}, "gba"},
		{[]string{"Game Boy"}, "gb"},
		{[]string{"PlayStation Vita"}, "psvita"},
		{[]string{"PS5"}, "ps5"},
		{[]string{"PlayStation"}, "ps1"},
		{[]string{"", "Mega Drive"}, "genesis"},
		{[]string{"Steam", "windows"}, "pc"},
	}
	for _, tc := range cases {
		got, err := ResolvePlatform(nil, tc.fields...)
		require.NoError(t, err, tc.fields)
		assert.Equal(t, tc.want, got, tc.fields)
	}

	_, err := ResolvePlatform(nil, "Vectrex")
	assert.ErrorIs(t, err, errs.ErrUnsupportedPlatform)
	_, err = ResolvePlatform(nil, " ", "")
	assert.ErrorIs(t, err, errs.ErrUnsupportedPlatform)
}

func TestAcceptBoundary(t *testing.T) {
	m := NewMatcher(&memStore{})
	assert.True(t, m.Accept(0.72))
	assert.False(t, m.Accept(0.71999))

	var long, short []string
	for i := 0; i < 25; i++ {
		long = append(long, fmt.Sprintf("w%d", i))
	}
	short = long[:18]
	score := Overlap(strings.Join(short, " "), strings.Join(long, " "))
	assert.True(t, m.Accept(score), "18 of 25 tokens is exactly the threshold")
}

func TestResolvePersistsConfidentMatch(t *testing.T) {
	store := &memStore{releases: []Release{
		{ID: 1, Title: "Chrono Trigger", Platform: "snes"},
		{ID: 2, Title: "Chrono Cross", Platform: "ps1"},
	}}
	m := NewMatcher(store)

	res, err := m.Resolve(context.Background(), Query{
		Source: "retroachievements", NativeID: "319", Title: "Chrono Trigger (USA)", PlatformFields: []string{"SNES"},
	})
	require.NoError(t, err)
	assert.True(t, res.Mapped)
	assert.Equal(t, int64(1), res.ReleaseID)
	assert.Equal(t, "319", res.ExternalID)
	assert.Equal(t, 1.0, res.Score)
	require.Len(t, store.mappings, 1)

	// Second resolution hits the stored mapping and writes nothing.
	res, err = m.Resolve(context.Background(), Query{
		Source: "retroachievements", NativeID: "319", Title: "Chrono Trigger", PlatformFields: []string{"SNES"},
	})
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Equal(t, 1, store.inserts)
}

func TestResolveKeepsExistingReleaseMapping(t *testing.T) {
	store := &memStore{
		releases: []Release{{ID: 5, Title: "Super Metroid", Platform: "snes"}},
		mappings: []Mapping{{ReleaseID: 5, Source: "retroachievements", NativeID: "355"}},
	}
	m := NewMatcher(store)

	res, err := m.Resolve(context.Background(), Query{
		Source: "retroachievements", NativeID: "9999", Title: "Super Metroid", PlatformFields: []string{"SNES"},
	})
	require.NoError(t, err)
	assert.Equal(t, "355", res.ExternalID)
	assert.True(t, res.Existing)
	assert.Zero(t, store.inserts)
}

func TestResolveLowConfidence(t *testing.T) {
	store := &memStore{releases: []Release{{ID: 9, Title: "Final Fantasy Tactics Advance", Platform: "gba"}}}
	m := NewMatcher(store)

	res, err := m.Resolve(context.Background(), Query{
		Source: "retroachievements", NativeID: "1", Title: "Final Fantasy Tactics War Lions", PlatformFields: []string{"Game Boy Advance"},
	})
	require.NoError(t, err)
	assert.False(t, res.Mapped)
	require.NotNil(t, res.BestGuess)
	assert.Equal(t, int64(9), res.BestGuess.ReleaseID)
	assert.InDelta(t, 0.6, res.Score, 1e-9)
	assert.InDelta(t, 0.6, res.BestGuess.Score, 1e-9)
	assert.Equal(t, "no confident match", res.Reason)
	assert.Empty(t, store.mappings)
	require.Len(t, store.reviews, 1)
	review := store.reviews[0]
	assert.Equal(t, int64(9), review.ReleaseID)
	assert.Equal(t, "Final Fantasy Tactics Advance", review.GuessTitle)
	assert.Empty(t, review.GuessID, "the guessed release has no provider id yet")
	assert.Equal(t, "1", review.NativeID)
}

func TestResolveNoCandidates(t *testing.T) {
	store := &memStore{}
	m := NewMatcher(store)
	res, err := m.Resolve(context.Background(), Query{Source: "steam", NativeID: "400", Title: "Portal", PlatformFields: []string{"pc"}})
	require.NoError(t, err)
	assert.False(t, res.Mapped)
	assert.Nil(t, res.BestGuess)
	assert.Equal(t, "no search results", res.Reason)

	require.Len(t, store.reviews, 1)
	assert.Equal(t, "Portal", store.reviews[0].RawTitle)
	assert.Equal(t, "400", store.reviews[0].NativeID)
	assert.Zero(t, store.reviews[0].ReleaseID)
	assert.Equal(t, "no search results", store.reviews[0].Reason)
}

func TestResolveDeterministic(t *testing.T) {
	store := &memStore{releases: []Release{
		{ID: 4, Title: "Metroid", Platform: "nes"},
		{ID: 3, Title: "Metroid", Platform: "nes"},
	}}
	m := NewMatcher(store)
	for i := 0; i < 3; i++ {
		res, err := m.Resolve(context.Background(), Query{Source: "x", Title: "Metroid", PlatformFields: []string{"NES"}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.ReleaseID)
	}
}

func TestMapReleaseCandidateWithoutID(t *testing.T) {
	s := &fakeSearcher{name: "retroachievements", lists: map[string][]Candidate{
		"3": {{NativeID: "", Title: "Chrono Trigger"}},
	}}
	m := NewMatcher(&memStore{})
	_, err := m.MapRelease(context.Background(), Release{ID: 1, Title: "Chrono Trigger", Platform: "snes"}, s)
	assert.ErrorIs(t, err, errs.ErrDataIntegrity)
}

func TestMapReleaseUnsupportedPlatform(t *testing.T) {
	s := &fakeSearcher{name: "retroachievements"}
	m := NewMatcher(&memStore{})
	_, err := m.MapRelease(context.Background(), Release{ID: 1, Title: "Halo", Platform: "xbox"}, s)
	assert.ErrorIs(t, err, errs.ErrUnsupportedPlatform)
}

func TestMapBatchIsolatesItemErrors(t *testing.T) {
	store := &memStore{}
	var snes []Candidate
	for i := 1; i <= 100; i++ {
		platform := "snes"
		if i == 37 {
			platform = "n64"
		}
		title := fmt.Sprintf("Game %d", i)
		store.releases = append(store.releases, Release{ID: int64(i), Title: title, Platform: platform})
		snes = append(snes, Candidate{NativeID: fmt.Sprintf("ra-%d", i), Title: title})
	}
	s := &fakeSearcher{
		name:    "retroachievements",
		lists:   map[string][]Candidate{"3": snes},
		failing: map[string]error{"2": errs.Wrap(errs.ErrUpstreamUnavailable, "retroachievements", "game list", errors.New("502"))},
	}
	m := NewMatcher(store)

	res, err := m.MapBatch(context.Background(), BatchOptions{Searcher: s, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Processed)
	assert.Len(t, res.Items, 99)
	assert.Equal(t, 99, res.Mapped)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Game 37", res.Errors[0].Title)
	assert.Equal(t, "provider unavailable", res.Errors[0].Reason)
	assert.Equal(t, 1, s.calls["3"], "candidate list is fetched once per system")

	id, err := decodeCursor(res.Cursor)
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)

	// Resuming from the cursor finds nothing left; rerunning from scratch
	// finds everything already mapped.
	res, err = m.MapBatch(context.Background(), BatchOptions{Searcher: s, Cursor: res.Cursor})
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	res, err = m.MapBatch(context.Background(), BatchOptions{Searcher: s, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, res.AlreadyMapped)
}

func TestMapBatchResumesMidRun(t *testing.T) {
	store := &memStore{}
	var snes []Candidate
	for i := 1; i <= 20; i++ {
		title := fmt.Sprintf("Game %d", i)
		store.releases = append(store.releases, Release{ID: int64(i), Title: title, Platform: "snes"})
		snes = append(snes, Candidate{NativeID: fmt.Sprintf("ra-%d", i), Title: title})
	}
	s := &fakeSearcher{name: "retroachievements", lists: map[string][]Candidate{"3": snes}}
	m := NewMatcher(store)

	first, err := m.MapBatch(context.Background(), BatchOptions{Searcher: s, Limit: 10})
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	assert.Equal(t, int64(1), first.Items[0].ReleaseID)
	assert.Equal(t, int64(10), first.Items[9].ReleaseID)

	second, err := m.MapBatch(context.Background(), BatchOptions{Searcher: s, Limit: 10, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 10)
	assert.Equal(t, int64(11), second.Items[0].ReleaseID)
	assert.Equal(t, int64(20), second.Items[9].ReleaseID)
	assert.Equal(t, 10, second.Mapped)
	assert.Zero(t, second.AlreadyMapped)
}

func TestMapBatchStopsOnAuthFailure(t *testing.T) {
	store := &memStore{releases: []Release{
		{ID: 1, Title: "A", Platform: "snes"},
		{ID: 2, Title: "B", Platform: "snes"},
	}}
	s := &fakeSearcher{name: "retroachievements", failing: map[string]error{"3": errs.Wrap(errs.ErrNotAuthenticated, "retroachievements", "bad key", nil)}}
	res, err := NewMatcher(store).MapBatch(context.Background(), BatchOptions{Searcher: s})
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Processed)
}
