// Package testutil provides shared test helpers and analysis fixtures for
// the transport packages.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/risk"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewJSONRequest creates a test request with body encoded as JSON. A nil
// body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorder body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
}

// Epoch is the timestamp of the first fixture analysis.
var Epoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// SampleAnalysis returns a populated record. The n-th sample is one minute
// after the previous one.
func SampleAnalysis(n int, level risk.Level, score int) *analysis.RiskAnalysis {
	return &analysis.RiskAnalysis{
		ID:        fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Location:  fmt.Sprintf("Junction %d", n),
		Latitude:  51.5 + float64(n)/1000,
		Longitude: -0.12,
		RiskLevel: level,
		RiskScore: score,
		Timestamp: Epoch.Add(time.Duration(n) * time.Minute),
		Source:    fmt.Sprintf("clip-%02d.mp4", n),
		Violations: []risk.Violation{
			{Type: risk.ViolationGeneralActivity, Count: 1, Severity: risk.SeverityLow},
		},
		FrameStats: risk.FrameStats{
			TotalFrames: 30, ProcessedFrames: 10, AvgVehicles: 3.2, AvgPersons: 0.4,
			MaxFrameScore: float64(score) + 10, MinFrameScore: max(0, float64(score)-10),
		},
		FrameScores: []analysis.FrameScore{{Frame: 0, Score: float64(score)}},
	}
}

// SeedHistory appends n sample analyses with rising scores.
func SeedHistory(t *testing.T, h analysis.History, n int) []*analysis.RiskAnalysis {
	t.Helper()
	out := make([]*analysis.RiskAnalysis, 0, n)
	for i := 1; i <= n; i++ {
		score := min(100, i*15)
		a := SampleAnalysis(i, risk.LevelForScore(score), score)
		if err := h.Append(t.Context(), a); err != nil {
			t.Fatalf("seed history: %v", err)
		}
		out = append(out, a)
	}
	return out
}
