package risk

import (
	"math"

	"github.com/banshee-data/risk.report/internal/detection"
	"github.com/banshee-data/risk.report/internal/geometry"
)

// Frame scoring calibration. These values are fixed; changing them changes
// every stored score.
const (
	VehicleWeight = 3.0
	PersonWeight  = 5.0

	// OverlapIoUThreshold is the IoU above which two vehicles count as a
	// near-collision.
	OverlapIoUThreshold = 0.1
	OverlapPenalty      = 20.0

	// A person counts as close to a vehicle when the person's center is in
	// the lower ProximityHeightFraction of the frame and within
	// ProximityWidthFraction of the frame width from the vehicle's center.
	ProximityHeightFraction = 0.5
	ProximityWidthFraction  = 0.2
	ProximityPenalty        = 30.0

	MinScore = 0.0
	MaxScore = 100.0
)

// FrameAnalysis is the scored result for one processed frame.
type FrameAnalysis struct {
	FrameIndex         int                   `json:"frame_index"`
	Score              float64               `json:"score"`
	Detections         []detection.Detection `json:"detections"`
	VehicleCount       int                   `json:"vehicle_count"`
	PersonCount        int                   `json:"person_count"`
	OverlapIncidents   int                   `json:"overlap_incidents"`
	ProximityIncidents int                   `json:"proximity_incidents"`
}

// EvaluateFrame scores one frame of detections. width and height are the
// frame dimensions in pixels and must be positive.
//
// Labels other than vehicles and persons are kept in the returned
// Detections but do not contribute to the score.
func EvaluateFrame(frameIndex int, dets []detection.Detection, width, height float64) FrameAnalysis {
	fa := FrameAnalysis{FrameIndex: frameIndex, Detections: dets}

	var vehicles, persons []detection.Detection
	for _, d := range dets {
		switch {
		case d.Label.IsVehicle():
			vehicles = append(vehicles, d)
		case d.Label.IsPerson():
			persons = append(persons, d)
		}
	}
	fa.VehicleCount = len(vehicles)
	fa.PersonCount = len(persons)

	score := VehicleWeight*float64(len(vehicles)) + PersonWeight*float64(len(persons))

	for i := 0; i < len(vehicles); i++ {
		for j := i + 1; j < len(vehicles); j++ {
			if geometry.IoU(vehicles[i].Box, vehicles[j].Box) > OverlapIoUThreshold {
				score += OverlapPenalty
				fa.OverlapIncidents++
			}
		}
	}

	lowerHalf := height * ProximityHeightFraction
	nearDistance := width * ProximityWidthFraction
	for _, v := range vehicles {
		vc := geometry.Center(v.Box)
		for _, p := range persons {
			pc := geometry.Center(p.Box)
			if pc.Y > lowerHalf && geometry.Distance(vc, pc) < nearDistance {
				score += ProximityPenalty
				fa.ProximityIncidents++
			}
		}
	}

	fa.Score = ClampScore(score)
	return fa
}

// ClampScore limits s to [MinScore, MaxScore].
func ClampScore(s float64) float64 {
	return math.Min(MaxScore, math.Max(MinScore, s))
}
