// Package reconcile folds provider signals into one progress record per
// user and title. Merging never loses information: identity fields are
// only ever filled in, playtime only grows, and counters are only replaced
// by values a provider actually reported.
package reconcile

import (
	"strings"
	"time"

	"github.com/sw33tLie/lifescore/pkg/catalog"
)

// Signal is one title as reported by a provider during a sync.
type Signal struct {
	Source          string
	NativeID        string
	Title           string
	PlatformLabel   string
	PlaytimeMinutes *int
	Earned          *int
	Total           *int
	Hardcore        *int
	Status          *string
	LastActivity    *time.Time
}

// Progress is the reconciled record for one (user, key).
type Progress struct {
	UserID          string    `json:"user_id"`
	Key             string    `json:"key"`
	Source          string    `json:"source"`
	NativeID        string    `json:"native_id,omitempty"`
	ReleaseID       *int64    `json:"release_id,omitempty"`
	Title           string    `json:"title"`
	Platform        string    `json:"platform"`
	PlaytimeMinutes int       `json:"playtime_minutes"`
	Earned          *int      `json:"earned,omitempty"`
	Total           *int      `json:"total,omitempty"`
	Hardcore        *int      `json:"hardcore,omitempty"`
	Status          *string   `json:"status,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResolveKey returns the storage key for a signal. Keys are namespaced by
// source so two providers never collide on the same native id.
func ResolveKey(s Signal) string {
	if id := strings.TrimSpace(s.NativeID); id != "" {
		return s.Source + ":" + id
	}
	return s.Source + ":" + SyntheticID(s.Title, s.PlatformLabel)
}

// SyntheticID derives a stable id for titles a provider reports without a
// native id.
func SyntheticID(title, platformLabel string) string {
	return "t:" + catalog.NormalizeTitle(title) + "@" + strings.ToLower(strings.TrimSpace(platformLabel))
}

// Merge folds incoming into existing and returns the new record. existing
// may be nil for a first sighting; it is never modified. The function does
// no I/O, so applying the same signal twice yields the same record.
func Merge(existing *Progress, in Signal, now time.Time) Progress {
	var out Progress
	if existing != nil {
		out = *existing
	}

	if out.Key == "" {
		out.Key = ResolveKey(in)
	}
	if out.Source == "" {
		out.Source = in.Source
	}
	if out.NativeID == "" {
		out.NativeID = strings.TrimSpace(in.NativeID)
	}
	if out.Title == "" {
		out.Title = in.Title
	}
	if out.Platform == "" {
		out.Platform = in.PlatformLabel
	}

	if in.PlaytimeMinutes != nil && *in.PlaytimeMinutes > out.PlaytimeMinutes {
		out.PlaytimeMinutes = *in.PlaytimeMinutes
	}
	if in.Earned != nil {
		out.Earned = intPtr(*in.Earned)
	}
	if in.Total != nil {
		out.Total = intPtr(*in.Total)
	}
	if in.Hardcore != nil {
		out.Hardcore = intPtr(*in.Hardcore)
	}
	if in.Status != nil {
		s := *in.Status
		out.Status = &s
	}

	out.UpdatedAt = laterOf(out.UpdatedAt, in.LastActivity, now)
	return out
}

// AttachRelease sets the catalog release on p unless one is already set.
func AttachRelease(p *Progress, releaseID int64) {
	if p.ReleaseID == nil && releaseID > 0 {
		id := releaseID
		p.ReleaseID = &id
	}
}

// Equal reports whether two records would persist identically.
func Equal(a, b Progress) bool {
	return a.Key == b.Key &&
		a.Source == b.Source &&
		a.NativeID == b.NativeID &&
		eqInt64(a.ReleaseID, b.ReleaseID) &&
		a.Title == b.Title &&
		a.Platform == b.Platform &&
		a.PlaytimeMinutes == b.PlaytimeMinutes &&
		eqInt(a.Earned, b.Earned) &&
		eqInt(a.Total, b.Total) &&
		eqInt(a.Hardcore, b.Hardcore) &&
		eqString(a.Status, b.Status) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func laterOf(existing time.Time, incoming *time.Time, now time.Time) time.Time {
	switch {
	case incoming == nil && existing.IsZero():
		return now
	case incoming == nil:
		return existing
	case existing.IsZero() || incoming.After(existing):
		return *incoming
	default:
		return existing
	}
}

func intPtr(v int) *int { return &v }

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
