package risk

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FrameStats summarises the frames of one run.
type FrameStats struct {
	TotalFrames     int     `json:"total_frames"`
	ProcessedFrames int     `json:"processed_frames"`
	AvgVehicles     float64 `json:"avg_vehicles"`
	AvgPersons      float64 `json:"avg_persons"`
	MaxFrameScore   float64 `json:"max_frame_score"`
	MinFrameScore   float64 `json:"min_frame_score"`
}

// ComputeFrameStats summarises frames. totalFrames is the frame count of the
// footage, of which frames is the processed subset. Averages are rounded to
// one decimal place; the score extremes are taken from the raw frame scores.
// With no frames every statistic except TotalFrames is zero.
func ComputeFrameStats(frames []FrameAnalysis, totalFrames int) FrameStats {
	st := FrameStats{TotalFrames: totalFrames, ProcessedFrames: len(frames)}
	if len(frames) == 0 {
		return st
	}

	scores := Scores(frames)
	vehicles := make([]float64, len(frames))
	persons := make([]float64, len(frames))
	for i, f := range frames {
		vehicles[i] = float64(f.VehicleCount)
		persons[i] = float64(f.PersonCount)
	}

	st.AvgVehicles = roundTenth(stat.Mean(vehicles, nil))
	st.AvgPersons = roundTenth(stat.Mean(persons, nil))
	st.MaxFrameScore = floats.Max(scores)
	st.MinFrameScore = floats.Min(scores)
	return st
}

// Scores extracts the frame scores in processing order.
func Scores(frames []FrameAnalysis) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Score
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
