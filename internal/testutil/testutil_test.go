package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/risk"
)

func TestAssertStatusCode(t *testing.T) {
	mockT := &testing.T{}
	AssertStatusCode(mockT, 200, 200)
	assert.False(t, mockT.Failed())
}

func TestNewJSONRequest(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPost, "/api/analyses", map[string]int{"stride": 2})
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	rec := httptest.NewRecorder()
	rec.Body.ReadFrom(req.Body)
	var got map[string]int
	DecodeJSON(t, rec, &got)
	assert.Equal(t, 2, got["stride"])
}

func TestSampleAnalysis(t *testing.T) {
	a := SampleAnalysis(3, risk.LevelHigh, 60)
	assert.Equal(t, "00000000-0000-4000-8000-000000000003", a.ID)
	assert.Equal(t, Epoch.Add(3*time.Minute), a.Timestamp)
	assert.Equal(t, 70.0, a.FrameStats.MaxFrameScore)
}

func TestSeedHistory(t *testing.T) {
	h := analysis.NewMemoryHistory()
	seeded := SeedHistory(t, h, 6)

	list, err := h.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 6)
	assert.Equal(t, seeded[0].ID, list[0].ID)
	assert.Equal(t, risk.LevelCritical, list[5].RiskLevel)
	assert.Equal(t, 90, list[5].RiskScore)
}
