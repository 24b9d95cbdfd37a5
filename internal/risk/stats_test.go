package risk

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeFrameStats(t *testing.T) {
	fs := []FrameAnalysis{
		{Score: 12.5, VehicleCount: 2, PersonCount: 1},
		{Score: 80, VehicleCount: 3, PersonCount: 0},
		{Score: 7.25, VehicleCount: 2, PersonCount: 0},
	}
	got := ComputeFrameStats(fs, 150)
	want := FrameStats{
		TotalFrames:     150,
		ProcessedFrames: 3,
		AvgVehicles:     2.3,
		AvgPersons:      0.3,
		MaxFrameScore:   80,
		MinFrameScore:   7.25,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeFrameStats() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeFrameStats_NoFrames(t *testing.T) {
	got := ComputeFrameStats(nil, 0)
	if diff := cmp.Diff(FrameStats{}, got); diff != "" {
		t.Errorf("ComputeFrameStats() mismatch (-want +got):\n%s", diff)
	}
}
