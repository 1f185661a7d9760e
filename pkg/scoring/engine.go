// Package scoring computes the lifetime score and its confidence from a
// user's reconciled progress. Compute is deterministic: it performs no I/O
// and orders its input before summing.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sw33tLie/lifescore/pkg/reconcile"
)

// Bonus is the optional self-reported input.
type Bonus struct {
	Points int    `json:"points"`
	Note   string `json:"note,omitempty"`
}

// SourceStats are the raw counts behind one source's component.
type SourceStats struct {
	Titles     int     `json:"titles"`
	Earned     int     `json:"earned"`
	Total      int     `json:"total"`
	Hardcore   int     `json:"hardcore"`
	Multiplier float64 `json:"multiplier"`
}

// Stats are the raw counts that feed the components.
type Stats struct {
	Titles       int                    `json:"titles"`
	Entries      int                    `json:"entries"`
	Minutes      int                    `json:"playtime_minutes"`
	Hours        float64                `json:"hours"`
	StatusCounts map[string]int         `json:"status_counts"`
	Sources      map[string]SourceStats `json:"sources"`
}

// ExplainLine is one human-readable component line.
type ExplainLine struct {
	Label  string `json:"label"`
	Points int    `json:"points"`
	Detail string `json:"detail"`
}

// Breakdown is the score result.
type Breakdown struct {
	ScoreTotal int            `json:"score_total"`
	Confidence int            `json:"confidence"`
	Components map[string]int `json:"components"`
	Stats      Stats          `json:"stats"`
	Explain    []ExplainLine  `json:"explain"`
}

// Engine computes breakdowns with a fixed set of weights.
type Engine struct {
	Weights Weights
}

// NewEngine returns an Engine using w.
func NewEngine(w Weights) *Engine {
	return &Engine{Weights: w}
}

type sourceAcc struct {
	titles    int
	earned    int
	hardcore  int
	total     int
	totalBase int // earned counted only where a total is known
}

// Compute scores rows. It does not modify rows.
func (e *Engine) Compute(rows []reconcile.Progress, bonus *Bonus) Breakdown {
	w := e.Weights
	sorted := make([]reconcile.Progress, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Key < sorted[j].Key
	})

	stats := Stats{
		Entries:      len(sorted),
		StatusCounts: map[string]int{},
		Sources:      map[string]SourceStats{},
	}
	titles := map[string]struct{}{}
	perSource := map[string]*sourceAcc{}
	statusPoints, unknownStatuses := 0, 0

	for _, r := range sorted {
		titles[titleIdentity(r)] = struct{}{}
		stats.Minutes += r.PlaytimeMinutes

		acc := perSource[r.Source]
		if acc == nil {
			acc = &sourceAcc{}
			perSource[r.Source] = acc
		}
		acc.titles++

		if r.Status != nil {
			status := strings.ToLower(strings.TrimSpace(*r.Status))
			if pts, ok := w.StatusPoints[status]; ok {
				statusPoints += pts
			} else {
				statusPoints += w.UnknownStatusPoints
				unknownStatuses++
			}
			stats.StatusCounts[status]++
		}

		if r.Earned != nil {
			acc.earned += *r.Earned
			if r.Hardcore != nil {
				acc.hardcore += *r.Hardcore
			}
			if r.Total != nil && *r.Total > 0 {
				acc.total += *r.Total
				acc.totalBase += *r.Earned
			}
		}
	}
	stats.Titles = len(titles)
	stats.Hours = float64(stats.Minutes) / 60

	components := map[string]int{}
	var explain []ExplainLine

	playtime := round(w.PlaytimeWeight * math.Log1p(stats.Hours))
	components["playtime"] = playtime
	explain = append(explain, ExplainLine{
		Label:  "playtime",
		Points: playtime,
		Detail: fmt.Sprintf("%s hours across %d titles", formatHours(stats.Hours), stats.Titles),
	})

	components["status"] = statusPoints
	explain = append(explain, ExplainLine{
		Label:  "status",
		Points: statusPoints,
		Detail: statusDetail(stats.StatusCounts, unknownStatuses),
	})

	sources := make([]string, 0, len(perSource))
	for s := range perSource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, src := range sources {
		acc := perSource[src]
		ss := SourceStats{Titles: acc.titles, Earned: acc.earned, Total: acc.total, Hardcore: acc.hardcore, Multiplier: 1}
		if acc.earned == 0 && acc.total == 0 {
			stats.Sources[src] = ss
			continue
		}
		if acc.total > 0 {
			ss.Multiplier = w.multiplier(float64(acc.totalBase) / float64(acc.total))
		}
		stats.Sources[src] = ss

		raw := float64(acc.earned) + w.HardcoreWeight*float64(acc.hardcore)
		pts := round(w.SecondaryWeight * math.Log1p(raw/w.normalizer(src)) * ss.Multiplier)
		label := "achievements:" + src
		components[label] = pts
		explain = append(explain, ExplainLine{
			Label:  label,
			Points: pts,
			Detail: achievementDetail(ss),
		})
	}

	total := 0
	for _, line := range explain {
		total += line.Points
	}
	if bonus != nil && bonus.Points != 0 {
		total += bonus.Points
		detail := "self-reported"
		if note := strings.TrimSpace(bonus.Note); note != "" {
			detail += ": " + note
		}
		explain = append(explain, ExplainLine{Label: "bonus", Points: bonus.Points, Detail: detail})
	}

	return Breakdown{
		ScoreTotal: total,
		Confidence: e.confidence(stats, bonus),
		Components: components,
		Stats:      stats,
		Explain:    explain,
	}
}

func (e *Engine) confidence(stats Stats, bonus *Bonus) int {
	w := e.Weights
	c := w.ConfidenceFloor
	for _, t := range w.TitleThresholds {
		if stats.Titles >= t {
			c += w.TitleIncrement
		}
	}
	for _, t := range w.HourThresholds {
		if stats.Hours >= t {
			c += w.HourIncrement
		}
	}
	for _, ss := range stats.Sources {
		if w.SyncedThreshold > 0 && ss.Titles >= w.SyncedThreshold {
			c += w.SyncedIncrement
		}
	}
	if bonus != nil && strings.TrimSpace(bonus.Note) != "" {
		c += w.HistoricalIncrement
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// titleIdentity counts the same release synced from two providers once.
func titleIdentity(r reconcile.Progress) string {
	if r.ReleaseID != nil {
		return "r:" + strconv.FormatInt(*r.ReleaseID, 10)
	}
	return r.Key
}

func round(v float64) int {
	return int(math.Round(v))
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64)
}

func statusDetail(counts map[string]int, unknown int) string {
	if len(counts) == 0 {
		return "no status reported"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	detail := strings.Join(parts, ", ")
	if unknown > 0 {
		detail += fmt.Sprintf(" (%d unrecognized)", unknown)
	}
	return detail
}

func achievementDetail(ss SourceStats) string {
	detail := fmt.Sprintf("%d earned", ss.Earned)
	if ss.Total > 0 {
		detail += fmt.Sprintf(" of %d", ss.Total)
	}
	if ss.Hardcore > 0 {
		detail += fmt.Sprintf(", %d hardcore", ss.Hardcore)
	}
	return detail + fmt.Sprintf(", x%.2f", ss.Multiplier)
}
