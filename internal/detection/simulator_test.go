package detection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_DeterministicForSeed(t *testing.T) {
	cfg := SimulatorConfig{Seed: 42, Width: 640, Height: 480}
	a := NewSimulator(cfg)
	b := NewSimulator(cfg)

	for frame := 0; frame < 60; frame += 3 {
		da, err := a.Next(context.Background(), frame, 150)
		require.NoError(t, err)
		db, err := b.Next(context.Background(), frame, 150)
		require.NoError(t, err)
		if diff := cmp.Diff(da, db); diff != "" {
			t.Fatalf("frame %d mismatch (-a +b):\n%s", frame, diff)
		}
	}
}

func TestSimulator_BoxesInsideFrame(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 7, Width: 640, Height: 480})
	w, h := sim.FrameSize()

	for frame := 0; frame < 300; frame++ {
		dets, err := sim.Next(context.Background(), frame, 300)
		require.NoError(t, err)
		for _, d := range dets {
			assert.True(t, d.Box.Valid(), "frame %d: %s", frame, d)
			assert.GreaterOrEqual(t, d.Box.X1, 0.0)
			assert.GreaterOrEqual(t, d.Box.Y1, 0.0)
			assert.LessOrEqual(t, d.Box.X2, w)
			assert.LessOrEqual(t, d.Box.Y2, h)
			assert.GreaterOrEqual(t, d.Confidence, 0.0)
			assert.LessOrEqual(t, d.Confidence, 1.0)
			assert.NotEqual(t, -1, d.ClassID)
		}
	}
}

func TestSimulator_CountsWithinTierBounds(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 3, Width: 640, Height: 480})
	const total = 200

	for frame := 0; frame < total; frame++ {
		tier := tiers[sim.Intensity(frame, total)]
		dets, err := sim.Next(context.Background(), frame, total)
		require.NoError(t, err)

		vehicles, persons := 0, 0
		for _, d := range dets {
			switch {
			case d.Label.IsVehicle():
				vehicles++
			case d.Label.IsPerson():
				persons++
			}
		}
		assert.GreaterOrEqual(t, vehicles, tier.vehicleMin, "frame %d", frame)
		assert.LessOrEqual(t, vehicles, tier.vehicleMax, "frame %d", frame)
		assert.GreaterOrEqual(t, persons, tier.personMin, "frame %d", frame)
		assert.LessOrEqual(t, persons, tier.personMax, "frame %d", frame)
	}
}

func TestSimulator_PedestriansInLowerFrame(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 11, Width: 640, Height: 480})
	for frame := 0; frame < 100; frame++ {
		dets, err := sim.Next(context.Background(), frame, 100)
		require.NoError(t, err)
		for _, d := range dets {
			if d.Label.IsPerson() {
				assert.Greater(t, d.Center.Y, 480*0.4, "frame %d: %s", frame, d)
			}
		}
	}
}

func TestSimulator_HasPeaksAndTroughs(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		sim := NewSimulator(SimulatorConfig{Seed: seed})
		assert.GreaterOrEqual(t, len(sim.peaks), 2)
		assert.LessOrEqual(t, len(sim.peaks), 3)

		seen := map[Intensity]bool{}
		for frame := 0; frame < 500; frame++ {
			seen[sim.Intensity(frame, 500)] = true
		}
		assert.True(t, seen[IntensityHigh], "seed %d never reached high intensity", seed)
		assert.True(t, seen[IntensityLow] || seen[IntensityMedium], "seed %d never left high intensity", seed)
	}
}

func TestSimulator_ZeroTotalFrames(t *testing.T) {
	sim := NewSimulator(DefaultSimulatorConfig())
	assert.NotPanics(t, func() {
		_ = sim.Intensity(0, 0)
		_, _ = sim.Next(context.Background(), 0, 0)
	})
}

func TestSimulator_CancelledContext(t *testing.T) {
	sim := NewSimulator(DefaultSimulatorConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Next(ctx, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntensity_String(t *testing.T) {
	assert.Equal(t, "low", IntensityLow.String())
	assert.Equal(t, "medium", IntensityMedium.String())
	assert.Equal(t, "high", IntensityHigh.String())
	assert.Equal(t, "unknown", Intensity(9).String())
}
