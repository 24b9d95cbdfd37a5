package analysis

import (
	"time"

	"github.com/banshee-data/risk.report/internal/risk"
)

// Result is the outcome of one run before identity and location are attached.
type Result struct {
	RiskLevel   risk.Level           `json:"risk_level"`
	RiskScore   int                  `json:"risk_score"`
	Violations  []risk.Violation     `json:"violations"`
	Stats       risk.FrameStats      `json:"frame_stats"`
	FrameScores []FrameScore         `json:"frame_scores"`
	Frames      []risk.FrameAnalysis `json:"-"`
}

// FrameScore is one point of the per-frame score series.
type FrameScore struct {
	Frame int     `json:"frame"`
	Score float64 `json:"score"`
}

// degenerateResult is returned when no frame was scored.
func degenerateResult() *Result {
	return &Result{
		RiskLevel:   risk.LevelLow,
		Violations:  []risk.Violation{},
		FrameScores: []FrameScore{},
	}
}

// RiskAnalysis is the stored record of a completed run.
type RiskAnalysis struct {
	ID          string           `json:"id"`
	Location    string           `json:"location"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	RiskLevel   risk.Level       `json:"risk_level"`
	RiskScore   int              `json:"risk_score"`
	Timestamp   time.Time        `json:"timestamp"`
	Source      string           `json:"source"`
	Violations  []risk.Violation `json:"violations"`
	FrameStats  risk.FrameStats  `json:"frame_stats"`
	FrameScores []FrameScore     `json:"frame_scores"`
}

// Clone returns a deep copy of a.
func (a *RiskAnalysis) Clone() *RiskAnalysis {
	if a == nil {
		return nil
	}
	c := *a
	c.Violations = append([]risk.Violation(nil), a.Violations...)
	c.FrameScores = append([]FrameScore(nil), a.FrameScores...)
	if c.Violations == nil {
		c.Violations = []risk.Violation{}
	}
	if c.FrameScores == nil {
		c.FrameScores = []FrameScore{}
	}
	return &c
}
