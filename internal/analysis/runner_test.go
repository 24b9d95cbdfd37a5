package analysis

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/risk.report/internal/detection"
	"github.com/banshee-data/risk.report/internal/geometry"
	"github.com/banshee-data/risk.report/internal/monitoring"
	"github.com/banshee-data/risk.report/internal/risk"
)

func TestMain(m *testing.M) {
	restore := monitoring.SetLogger(nil)
	code := m.Run()
	restore()
	os.Exit(code)
}

// recordingSource returns dets for every frame and records the indices asked for.
type recordingSource struct {
	mu      sync.Mutex
	indices []int
	dets    []detection.Detection
}

func (s *recordingSource) Next(_ context.Context, frameIndex, _ int) ([]detection.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices = append(s.indices, frameIndex)
	return s.dets, nil
}

func (s *recordingSource) calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.indices...)
}

// overlappingPair is two vehicles with IoU 0.15, scoring 26.
func overlappingPair() []detection.Detection {
	return []detection.Detection{
		detection.New(detection.LabelCar, 0.9, geometry.BoundingBox{X1: 0, Y1: 0, X2: 23, Y2: 10}),
		detection.New(detection.LabelCar, 0.9, geometry.BoundingBox{X1: 17, Y1: 0, X2: 40, Y2: 10}),
	}
}

func footage(total int) Footage {
	return Footage{Label: "junction.mp4", TotalFrames: total}
}

func TestRunner_DegenerateRun(t *testing.T) {
	src := &recordingSource{}
	runner := NewRunner(src, DefaultRunnerConfig())

	var progress []int
	req := Request{Footage: footage(300), FrameCap: 0, Stride: 3, Progress: func(p int) {
		progress = append(progress, p)
	}}
	task := runner.Start(context.Background(), req)
	res, err := task.Result()
	require.NoError(t, err)

	want := &Result{
		RiskLevel:   risk.LevelLow,
		RiskScore:   0,
		Violations:  []risk.Violation{},
		Stats:       risk.FrameStats{},
		FrameScores: []FrameScore{},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("degenerate result mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, progress, 100)
	assert.Empty(t, src.calls())
	assert.Equal(t, StateCompleted, task.State())
}

func TestRunner_ShortFootageIsDegenerate(t *testing.T) {
	runner := NewRunner(&recordingSource{}, DefaultRunnerConfig())
	res, err := runner.Run(context.Background(), NewRequest(Footage{Label: "empty.mp4"}))
	require.NoError(t, err)
	assert.Equal(t, risk.LevelLow, res.RiskLevel)
	assert.Zero(t, res.RiskScore)
	assert.Empty(t, res.Violations)
}

func TestRunner_StrideAndCap(t *testing.T) {
	src := &recordingSource{}
	runner := NewRunner(src, DefaultRunnerConfig())

	var progress []int
	req := Request{Footage: footage(20), FrameCap: 5, Stride: 3, Progress: func(p int) {
		progress = append(progress, p)
	}}
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6, 9, 12}, src.calls())
	assert.Equal(t, []int{20, 40, 60, 80, 95, 100}, progress)
	assert.Equal(t, 20, res.Stats.TotalFrames)
	assert.Equal(t, 5, res.Stats.ProcessedFrames)
}

func TestRunner_StrideBeyondFootage(t *testing.T) {
	src := &recordingSource{}
	runner := NewRunner(src, DefaultRunnerConfig())

	_, err := runner.Run(context.Background(), Request{Footage: footage(10), FrameCap: 50, Stride: 4})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 8}, src.calls())
}

func TestRunner_EstimatesFramesFromSize(t *testing.T) {
	src := &recordingSource{}
	runner := NewRunner(src, DefaultRunnerConfig())

	req := NewRequest(Footage{Label: "clip.mov", SizeBytes: 10 * DefaultBytesPerFrame})
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6, 9}, src.calls())
	assert.Equal(t, 10, res.Stats.TotalFrames)
	assert.Equal(t, 4, res.Stats.ProcessedFrames)
}

func TestRunner_EstimateIsBounded(t *testing.T) {
	runner := NewRunner(&recordingSource{}, DefaultRunnerConfig())
	p := runner.plan(Request{Footage: Footage{Label: "long.mp4", SizeBytes: 1 << 40}, FrameCap: 10, Stride: 1})
	assert.Equal(t, DefaultMaxEstimatedFrames, p.total)
	assert.Len(t, p.indices, 10)
	assert.Equal(t, float64(DefaultFrameWidth), p.width)
}

// sizedSource draws its boxes in a fixed 640x480 frame.
type sizedSource struct {
	recordingSource
}

func (*sizedSource) FrameSize() (width, height float64) { return 640, 480 }

// pedestrianBesideCar is a person in the lower half of a 640x480 frame,
// 50px from a car. In a 1920x1080 frame the same person is in the upper half.
func pedestrianBesideCar() []detection.Detection {
	return []detection.Detection{
		detection.New(detection.LabelPerson, 0.8, geometry.BoundingBox{X1: 90, Y1: 270, X2: 110, Y2: 330}),
		detection.New(detection.LabelCar, 0.9, geometry.BoundingBox{X1: 110, Y1: 280, X2: 190, Y2: 320}),
	}
}

func TestRunner_SourceFrameSizeWins(t *testing.T) {
	src := &sizedSource{recordingSource{dets: pedestrianBesideCar()}}
	runner := NewRunner(src, DefaultRunnerConfig())

	req := NewRequest(Footage{Label: "hd.mp4", TotalFrames: 3, Width: 1920, Height: 1080})
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Frames, 1)
	assert.Equal(t, 1, res.Frames[0].ProximityIncidents)
	assert.Equal(t, 38.0, res.Frames[0].Score)
}

func TestRunner_DeclaredSizeUsedWithoutFrameSizer(t *testing.T) {
	src := &recordingSource{dets: pedestrianBesideCar()}
	runner := NewRunner(src, DefaultRunnerConfig())

	req := NewRequest(Footage{Label: "hd.mp4", TotalFrames: 3, Width: 1920, Height: 1080})
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Frames, 1)
	assert.Equal(t, 0, res.Frames[0].ProximityIncidents)
	assert.Equal(t, 8.0, res.Frames[0].Score)
}

func TestRunner_SimulatorIgnoresDeclaredSize(t *testing.T) {
	run := func(f Footage) *Result {
		sim := detection.NewSimulator(detection.DefaultSimulatorConfig())
		res, err := NewRunner(sim, DefaultRunnerConfig()).Run(context.Background(), NewRequest(f))
		require.NoError(t, err)
		return res
	}

	native := run(Footage{Label: "sim.mp4", TotalFrames: 600})
	declared := run(Footage{Label: "sim.mp4", TotalFrames: 600, Width: 1920, Height: 1080})

	assert.Equal(t, native.RiskScore, declared.RiskScore)
	assert.Equal(t, native.RiskLevel, declared.RiskLevel)
	if diff := cmp.Diff(native.Violations, declared.Violations); diff != "" {
		t.Errorf("violations differ (-native +declared):\n%s", diff)
	}
}

func TestRunner_ReplayFrameCount(t *testing.T) {
	replay := detection.NewReplay(map[int][]detection.Detection{
		0: overlappingPair(),
		3: overlappingPair(),
		6: overlappingPair(),
	})
	runner := NewRunner(replay, DefaultRunnerConfig())

	res, err := runner.Run(context.Background(), NewRequest(Footage{Label: "rec.mp4"}))
	require.NoError(t, err)
	assert.Equal(t, risk.LevelMedium, res.RiskLevel)
	assert.Equal(t, 26, res.RiskScore)
	assert.Equal(t, 7, res.Stats.TotalFrames)
	assert.Equal(t, 3, res.Stats.ProcessedFrames)

	// A declared frame count still takes precedence.
	res, err = runner.Run(context.Background(), NewRequest(Footage{Label: "rec.mp4", TotalFrames: 4}))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stats.TotalFrames)
	assert.Equal(t, 2, res.Stats.ProcessedFrames)
}

func TestRunner_AggregatesFrames(t *testing.T) {
	src := &recordingSource{dets: overlappingPair()}
	runner := NewRunner(src, DefaultRunnerConfig())

	res, err := runner.Run(context.Background(), Request{Footage: footage(12), FrameCap: 50, Stride: 3})
	require.NoError(t, err)

	assert.Equal(t, risk.LevelMedium, res.RiskLevel)
	assert.Equal(t, 26, res.RiskScore)
	want := []risk.Violation{{Type: risk.ViolationNearCollisions, Count: 4, Severity: risk.SeverityMedium}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, risk.FrameStats{
		TotalFrames:     12,
		ProcessedFrames: 4,
		AvgVehicles:     2,
		MaxFrameScore:   26,
		MinFrameScore:   26,
	}, res.Stats)
	assert.Equal(t, []FrameScore{{0, 26}, {3, 26}, {6, 26}, {9, 26}}, res.FrameScores)
	assert.Len(t, res.Frames, 4)
}

func TestRunner_ProgressChannelMatchesCallback(t *testing.T) {
	sim := detection.NewSimulator(detection.DefaultSimulatorConfig())
	runner := NewRunner(sim, DefaultRunnerConfig())

	var callback []int
	req := NewRequest(footage(600))
	req.Progress = func(p int) { callback = append(callback, p) }

	task := runner.Start(context.Background(), req)
	var channel []int
	for p := range task.Progress() {
		channel = append(channel, p)
	}
	_, err := task.Result()
	require.NoError(t, err)

	assert.Equal(t, callback, channel)
	require.NotEmpty(t, channel)
	assert.Equal(t, 100, channel[len(channel)-1])
	assert.True(t, sort.IntsAreSorted(channel), "progress not sorted: %v", channel)
	for i := 1; i < len(channel); i++ {
		assert.NotEqual(t, channel[i-1], channel[i], "duplicate progress value")
	}
	for _, p := range channel[:len(channel)-1] {
		assert.LessOrEqual(t, p, 95)
	}
}

func TestRunner_InputErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing label", Request{FrameCap: 5, Stride: 1}, "footage"},
		{"zero stride", Request{Footage: footage(10), FrameCap: 5}, "stride"},
		{"negative stride", Request{Footage: footage(10), FrameCap: 5, Stride: -2}, "stride"},
		{"negative cap", Request{Footage: footage(10), FrameCap: -1, Stride: 1}, "frame_cap"},
		{"negative size", Request{Footage: Footage{Label: "x", SizeBytes: -1}, FrameCap: 5, Stride: 1}, "footage.size_bytes"},
		{"negative width", Request{Footage: Footage{Label: "x", Width: -640, Height: 480}, FrameCap: 5, Stride: 1}, "footage.size"},
		{"width without height", Request{Footage: Footage{Label: "x", Width: 1920}, FrameCap: 5, Stride: 1}, "footage.size"},
		{"height without width", Request{Footage: Footage{Label: "x", Height: 1080}, FrameCap: 5, Stride: 1}, "footage.size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &recordingSource{}
			task := NewRunner(src, DefaultRunnerConfig()).Start(context.Background(), tt.req)
			res, err := task.Result()

			var inErr *InputError
			require.ErrorAs(t, err, &inErr)
			assert.Equal(t, tt.field, inErr.Field)
			assert.Nil(t, res)
			assert.Empty(t, src.calls())
			assert.Equal(t, StateFailed, task.State())

			_, open := <-task.Progress()
			assert.False(t, open)
		})
	}
}

func TestRunner_SourceError(t *testing.T) {
	cause := errors.New("detector offline")
	src := detection.SourceFunc(func(_ context.Context, frameIndex, _ int) ([]detection.Detection, error) {
		if frameIndex == 6 {
			return nil, cause
		}
		return overlappingPair(), nil
	})

	var progress []int
	req := Request{Footage: footage(30), FrameCap: 10, Stride: 3, Progress: func(p int) {
		progress = append(progress, p)
	}}
	task := NewRunner(src, DefaultRunnerConfig()).Start(context.Background(), req)
	res, err := task.Result()

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 6, srcErr.Frame)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, res)
	assert.Equal(t, StateFailed, task.State())
	assert.Equal(t, []int{10, 20}, progress)
}

func TestRunner_Cancel(t *testing.T) {
	reached := make(chan struct{})
	var calls []int
	src := detection.SourceFunc(func(ctx context.Context, frameIndex, _ int) ([]detection.Detection, error) {
		calls = append(calls, frameIndex)
		if frameIndex == 3 {
			close(reached)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	})

	task := NewRunner(src, DefaultRunnerConfig()).Start(context.Background(), NewRequest(footage(300)))
	<-reached
	task.Cancel()

	res, err := task.Result()
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, StateCancelled, task.State())
	assert.Equal(t, []int{0, 3}, calls)

	var progress []int
	for p := range task.Progress() {
		progress = append(progress, p)
	}
	assert.NotContains(t, progress, 100)
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &recordingSource{}
	_, err := NewRunner(src, DefaultRunnerConfig()).Run(ctx, NewRequest(footage(300)))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, src.calls())
}

func TestRunner_ConcurrentRuns(t *testing.T) {
	sim := detection.NewSimulator(detection.DefaultSimulatorConfig())
	runner := NewRunner(sim, DefaultRunnerConfig())

	tasks := make([]*Task, 8)
	for i := range tasks {
		tasks[i] = runner.Start(context.Background(), NewRequest(footage(150)))
	}
	for _, task := range tasks {
		res, err := task.Result()
		require.NoError(t, err)
		assert.Equal(t, 50, res.Stats.ProcessedFrames)
		assert.Equal(t, StateCompleted, task.State())
	}
}
