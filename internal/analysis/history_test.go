package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/risk.report/internal/risk"
)

func sampleAnalysis(id string, score int) *RiskAnalysis {
	return &RiskAnalysis{
		ID:          id,
		Location:    "Market St & 5th",
		RiskLevel:   risk.LevelForScore(score),
		RiskScore:   score,
		Source:      id + ".mp4",
		Violations:  []risk.Violation{{Type: risk.ViolationGeneralActivity, Count: score, Severity: risk.SeverityLow}},
		FrameScores: []FrameScore{{Frame: 0, Score: float64(score)}},
	}
}

func TestMemoryHistory_AppendListGet(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	require.NoError(t, h.Append(ctx, sampleAnalysis("a", 12)))
	require.NoError(t, h.Append(ctx, sampleAnalysis("b", 55)))

	list, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	got, err := h.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 55, got.RiskScore)

	_, err = h.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryHistory_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	a := sampleAnalysis("a", 30)
	require.NoError(t, h.Append(ctx, a))
	a.Violations[0].Count = 999
	a.RiskScore = 1

	got, err := h.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 30, got.RiskScore)
	assert.Equal(t, 30, got.Violations[0].Count)

	got.FrameScores[0].Score = -1
	again, _ := h.Get(ctx, "a")
	assert.Equal(t, 30.0, again.FrameScores[0].Score)
}

func TestMemoryHistory_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Append(ctx, sampleAnalysis(fmt.Sprintf("run-%d", i), i))
			_, _ = h.List(ctx)
		}(i)
	}
	wg.Wait()

	list, err := h.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 20)
	for _, a := range list {
		got, err := h.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.RiskScore, got.RiskScore)
	}
}

func TestRiskAnalysis_CloneNil(t *testing.T) {
	var a *RiskAnalysis
	assert.Nil(t, a.Clone())

	c := (&RiskAnalysis{ID: "x"}).Clone()
	assert.NotNil(t, c.Violations)
	assert.NotNil(t, c.FrameScores)
}
