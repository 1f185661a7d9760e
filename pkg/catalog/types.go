package catalog

import (
	"context"
	"time"
)

// Release is a canonical game+platform variant known to the catalog.
type Release struct {
	ID       int64  `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Platform string `json:"platform" yaml:"platform"`
}

// Mapping links one provider's native title id to a release.
type Mapping struct {
	ReleaseID int64     `json:"release_id"`
	Source    string    `json:"source"`
	NativeID  string    `json:"native_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is one entry of a provider's title search.
type Candidate struct {
	NativeID string
	Title    string
}

// Guess is the best candidate of a match attempt that was not accepted.
type Guess struct {
	ReleaseID  int64   `json:"release_id,omitempty"`
	ExternalID string  `json:"external_id,omitempty"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
}

// MatchResult is the outcome of one match attempt.
type MatchResult struct {
	Mapped     bool    `json:"mapped"`
	ReleaseID  int64   `json:"release_id"`
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
	BestGuess  *Guess  `json:"best_guess,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Existing   bool    `json:"existing,omitempty"`
}

// Review is a rejected match kept for manual follow-up. GuessID is the
// candidate's provider id and NativeID the id of the title being matched;
// each direction of matching fills only the one it knows.
type Review struct {
	ReleaseID  int64     `json:"release_id,omitempty"`
	Source     string    `json:"source"`
	RawTitle   string    `json:"raw_title"`
	GuessTitle string    `json:"guess_title,omitempty"`
	GuessID    string    `json:"guess_id,omitempty"`
	NativeID   string    `json:"native_id,omitempty"`
	Score      float64   `json:"score"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the catalog persistence the matcher needs.
type Store interface {
	FindMapping(ctx context.Context, releaseID int64, source string) (*Mapping, error)
	FindMappingByNative(ctx context.Context, source, nativeID string) (*Mapping, error)
	InsertMapping(ctx context.Context, m Mapping) error
	ListReleasesByPlatform(ctx context.Context, platform string) ([]Release, error)
	ListReleasesAfter(ctx context.Context, afterID int64, platform string, limit int) ([]Release, error)
	SaveReview(ctx context.Context, r Review) error
}

// Searcher lists the titles a provider knows for one of its systems.
type Searcher interface {
	Name() string
	SystemFor(platform string) (string, bool)
	SearchSystem(ctx context.Context, system string) ([]Candidate, error)
}
