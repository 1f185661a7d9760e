package scoring

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/lifescore/pkg/reconcile"
)

func ip(v int) *int       { return &v }
func sp(v string) *string { return &v }

func sampleRows() []reconcile.Progress {
	return []reconcile.Progress{
		{Key: "retroachievements:355", Source: "retroachievements", Title: "Super Metroid", Earned: ip(30), Total: ip(50), Hardcore: ip(20), Status: sp("mastered")},
		{Key: "steam:620", Source: "steam", Title: "Portal 2", PlaytimeMinutes: 600, Earned: ip(10), Total: ip(51), Status: sp("completed")},
		{Key: "steam:400", Source: "steam", Title: "Portal", PlaytimeMinutes: 300, Earned: ip(5), Total: ip(15), Status: sp("owned")},
	}
}

func TestComputeComponents(t *testing.T) {
	e := NewEngine(DefaultWeights())
	b := e.Compute(sampleRows(), &Bonus{Points: 25, Note: "played since 1994"})

	assert.Equal(t, 277, b.Components["playtime"])
	assert.Equal(t, 55, b.Components["status"])
	assert.Equal(t, 36, b.Components["achievements:steam"])
	assert.Equal(t, 107, b.Components["achievements:retroachievements"])
	assert.Equal(t, 500, b.ScoreTotal)
	assert.Equal(t, 30, b.Confidence)

	assert.Equal(t, 3, b.Stats.Titles)
	assert.Equal(t, 900, b.Stats.Minutes)
	assert.Equal(t, 1, b.Stats.StatusCounts["mastered"])
	assert.Equal(t, 20, b.Stats.Sources["retroachievements"].Hardcore)

	// Explain lines carry the same numbers as the components.
	sum := 0
	for _, line := range b.Explain {
		if c, ok := b.Components[line.Label]; ok {
			assert.Equal(t, c, line.Points, line.Label)
		}
		sum += line.Points
	}
	assert.Equal(t, b.ScoreTotal, sum)
	assert.Equal(t, "bonus", b.Explain[len(b.Explain)-1].Label)
}

func TestComputeIsPure(t *testing.T) {
	e := NewEngine(DefaultWeights())
	rows := sampleRows()
	first, err := json.Marshal(e.Compute(rows, nil))
	require.NoError(t, err)

	reversed := []reconcile.Progress{rows[2], rows[1], rows[0]}
	second, err := json.Marshal(e.Compute(reversed, nil))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, "retroachievements:355", rows[0].Key, "input is not reordered")
}

func TestUnknownStatusDistinctFromLowest(t *testing.T) {
	w := DefaultWeights()
	e := NewEngine(w)
	unknown := e.Compute([]reconcile.Progress{{Key: "a", Source: "steam", Status: sp("abandoned?")}}, nil)
	dropped := e.Compute([]reconcile.Progress{{Key: "a", Source: "steam", Status: sp("dropped")}}, nil)
	assert.Equal(t, w.UnknownStatusPoints, unknown.Components["status"])
	assert.NotEqual(t, unknown.Components["status"], dropped.Components["status"])
}

func TestMultiplierBand(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 0.85, w.multiplier(0), 1e-9)
	assert.InDelta(t, 1.15, w.multiplier(1), 1e-9)
	assert.InDelta(t, 1.15, w.multiplier(3), 1e-9)

	e := NewEngine(w)
	b := e.Compute([]reconcile.Progress{{Key: "k", Source: "psn", Earned: ip(12)}}, nil)
	assert.Equal(t, 1.0, b.Stats.Sources["psn"].Multiplier, "unknown total leaves the count unscaled")
}

func TestConfidenceThresholdsAndClamp(t *testing.T) {
	var rows []reconcile.Progress
	for i := 0; i < 60; i++ {
		rows = append(rows, reconcile.Progress{Key: fmt.Sprintf("steam:%d", i), Source: "steam", PlaytimeMinutes: 600})
	}
	e := NewEngine(DefaultWeights())
	// 60 titles, 600 hours, one source over the synced threshold, history note.
	b := e.Compute(rows, &Bonus{Note: "retro collection"})
	assert.Equal(t, 20+20+20+5+10, b.Confidence)

	w := DefaultWeights()
	w.ConfidenceFloor = 95
	assert.Equal(t, 100, NewEngine(w).Compute(rows, nil).Confidence)

	w.ConfidenceFloor = -50
	assert.Equal(t, 0, NewEngine(w).Compute(nil, nil).Confidence)
}

func TestSameReleaseFromTwoSourcesCountsOnce(t *testing.T) {
	id := int64(42)
	rows := []reconcile.Progress{
		{Key: "steam:1", Source: "steam", ReleaseID: &id},
		{Key: "psn:x", Source: "psn", ReleaseID: &id},
	}
	b := NewEngine(DefaultWeights()).Compute(rows, nil)
	assert.Equal(t, 1, b.Stats.Titles)
	assert.Equal(t, 2, b.Stats.Entries)
}
