// Package catalog matches loosely specified provider titles to canonical
// releases and keeps the provider mappings that result.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

// DefaultThreshold is the minimum overlap score for a match to be accepted.
const DefaultThreshold = 0.72

// Logger is satisfied by logrus and most structured loggers.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Query is an external title to resolve against the catalog.
type Query struct {
	Source   string
	NativeID string
	Title    string
	// PlatformFields are every platform descriptor the provider returned;
	// they are joined before rule matching.
	PlatformFields []string
}

// Matcher resolves titles in both directions: provider title to release,
// and release to provider title.
type Matcher struct {
	Store     Store
	Threshold float64
	Rules     []PlatformRule
	Log       Logger
	Now       func() time.Time
}

// NewMatcher returns a Matcher with the default threshold and rules.
func NewMatcher(store Store) *Matcher {
	return &Matcher{Store: store, Threshold: DefaultThreshold}
}

// Accept reports whether score clears the configured threshold.
func (m *Matcher) Accept(score float64) bool {
	return score >= m.threshold()
}

func (m *Matcher) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

func (m *Matcher) log() Logger {
	if m.Log == nil {
		return nopLogger{}
	}
	return m.Log
}

func (m *Matcher) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now()
}

// Resolve matches a provider title against the catalog of its resolved
// platform. A confident match is persisted as a mapping unless one already
// exists for the release and source, in which case the existing mapping is
// returned untouched. A rejected match is not an error: the result carries
// the best guess and a reason, and a review entry is stored.
func (m *Matcher) Resolve(ctx context.Context, q Query) (MatchResult, error) {
	if q.NativeID != "" {
		existing, err := m.Store.FindMappingByNative(ctx, q.Source, q.NativeID)
		if err != nil {
			return MatchResult{}, errs.Wrap(errs.ErrPersistence, "find mapping", q.Title, err)
		}
		if existing != nil {
			return MatchResult{
				Mapped:     true,
				ReleaseID:  existing.ReleaseID,
				ExternalID: existing.NativeID,
				Score:      1,
				Existing:   true,
			}, nil
		}
	}

	platform, err := ResolvePlatform(m.Rules, q.PlatformFields...)
	if err != nil {
		return MatchResult{}, err
	}

	releases, err := m.Store.ListReleasesByPlatform(ctx, platform)
	if err != nil {
		return MatchResult{}, errs.Wrap(errs.ErrPersistence, "list releases", platform, err)
	}
	if len(releases) == 0 {
		result := MatchResult{Reason: errs.Reason(errs.ErrNoSearchResults)}
		m.review(ctx, Review{Source: q.Source, RawTitle: q.Title, NativeID: q.NativeID, Reason: result.Reason})
		return result, nil
	}

	normalized := NormalizeTitle(q.Title)
	best, score := bestRelease(normalized, releases)
	if !m.Accept(score) {
		m.log().Debugf("No confident match for %q on %s (best %q, %.3f)", q.Title, platform, best.Title, score)
		result := MatchResult{
			Score:     score,
			Reason:    errs.Reason(errs.ErrNoConfidentMatch),
			BestGuess: &Guess{ReleaseID: best.ID, Title: best.Title, Score: score},
		}
		m.review(ctx, Review{
			ReleaseID:  best.ID,
			Source:     q.Source,
			RawTitle:   q.Title,
			GuessTitle: best.Title,
			NativeID:   q.NativeID,
			Score:      score,
			Reason:     result.Reason,
		})
		return result, nil
	}

	existing, err := m.Store.FindMapping(ctx, best.ID, q.Source)
	if err != nil {
		return MatchResult{}, errs.Wrap(errs.ErrPersistence, "find mapping", best.Title, err)
	}
	if existing != nil {
		return MatchResult{Mapped: true, ReleaseID: existing.ReleaseID, ExternalID: existing.NativeID, Score: score, Existing: true}, nil
	}

	result := MatchResult{Mapped: true, ReleaseID: best.ID, ExternalID: q.NativeID, Score: score}
	if q.NativeID == "" {
		// Nothing stable to persist; the release id still applies to this signal.
		return result, nil
	}
	if err := m.Store.InsertMapping(ctx, Mapping{ReleaseID: best.ID, Source: q.Source, NativeID: q.NativeID, CreatedAt: m.now()}); err != nil {
		return MatchResult{}, errs.Wrap(errs.ErrPersistence, "insert mapping", best.Title, err)
	}
	m.log().Debugf("Mapped %q to release %d (%.3f)", q.Title, best.ID, score)
	return result, nil
}

// MapRelease finds the provider title for one catalog release by searching
// the provider's title list for the release's platform.
func (m *Matcher) MapRelease(ctx context.Context, r Release, s Searcher) (MatchResult, error) {
	source := s.Name()
	existing, err := m.Store.FindMapping(ctx, r.ID, source)
	if err != nil {
		return MatchResult{}, errs.Wrap(errs.ErrPersistence, "find mapping", r.Title, err)
	}
	if existing != nil {
		return MatchResult{Mapped: true, ReleaseID: r.ID, ExternalID: existing.NativeID, Score: 1, Existing: true}, nil
	}

	system, ok := s.SystemFor(r.Platform)
	if !ok {
		return MatchResult{}, errs.Wrap(errs.ErrUnsupportedPlatform, source, r.Platform, nil)
	}
	candidates, err := s.SearchSystem(ctx, system)
	if err != nil {
		return MatchResult{}, err
	}
	return m.pick(ctx, r, source, candidates)
}

func (m *Matcher) pick(ctx context.Context, r Release, source string, candidates []Candidate) (MatchResult, error) {
	if len(candidates) == 0 {
		m.review(ctx, Review{ReleaseID: r.ID, Source: source, RawTitle: r.Title, Reason: errs.Reason(errs.ErrNoSearchResults)})
		return MatchResult{Reason: errs.Reason(errs.ErrNoSearchResults)}, nil
	}

	normalized := NormalizeTitle(r.Title)
	best, score := bestCandidate(normalized, candidates)
	if !m.Accept(score) {
		result := MatchResult{
			Score:     score,
			Reason:    errs.Reason(errs.ErrNoConfidentMatch),
			BestGuess: &Guess{ExternalID: best.NativeID, Title: best.Title, Score: score},
		}
		m.review(ctx, Review{
			ReleaseID:  r.ID,
			Source:     source,
			RawTitle:   r.Title,
			GuessTitle: best.Title,
			GuessID:    best.NativeID,
			Score:      score,
			Reason:     result.Reason,
		})
		return result, nil
	}
	if strings.TrimSpace(best.NativeID) == "" {
		return MatchResult{}, errs.Wrap(errs.ErrDataIntegrity, source, "candidate "+best.Title+" has no id", nil)
	}

	if err := m.Store.InsertMapping(ctx, Mapping{ReleaseID: r.ID, Source: source, NativeID: best.NativeID, CreatedAt: m.now()}); err != nil {
		return MatchResult{}, errs.Wrap(errs.ErrPersistence, "insert mapping", r.Title, err)
	}
	return MatchResult{Mapped: true, ReleaseID: r.ID, ExternalID: best.NativeID, Score: score}, nil
}

func (m *Matcher) review(ctx context.Context, r Review) {
	r.CreatedAt = m.now()
	if err := m.Store.SaveReview(ctx, r); err != nil {
		m.log().Warnf("Could not queue %q for review: %v", r.RawTitle, err)
	}
}

// bestRelease returns the highest scoring release. Ties keep the lowest id,
// which is the order ListReleasesByPlatform returns.
func bestRelease(normalized string, releases []Release) (Release, float64) {
	var best Release
	bestScore := -1.0
	for _, r := range releases {
		score := Overlap(normalized, NormalizeTitle(r.Title))
		if score > bestScore || (score == bestScore && r.ID < best.ID) {
			best, bestScore = r, score
		}
	}
	return best, bestScore
}

// bestCandidate keeps the first candidate among equal scores so repeated
// runs over the same list pick the same title.
func bestCandidate(normalized string, candidates []Candidate) (Candidate, float64) {
	best := candidates[0]
	bestScore := Overlap(normalized, NormalizeTitle(best.Title))
	for _, c := range candidates[1:] {
		if score := Overlap(normalized, NormalizeTitle(c.Title)); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}
