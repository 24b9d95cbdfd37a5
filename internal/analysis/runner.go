// Package analysis runs footage through the detection and risk pipeline.
//
// A Runner drives one Source frame by frame, scores each retained frame and
// reduces the run to a Result. A Manager wraps the Runner with the caller
// concerns: validity gate, location lookup, identity and history.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/risk.report/internal/detection"
	"github.com/banshee-data/risk.report/internal/monitoring"
	"github.com/banshee-data/risk.report/internal/risk"
)

// State is the lifecycle state of a Task.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// RunnerConfig holds the frame defaults used when a request leaves them unset.
type RunnerConfig struct {
	FrameWidth         float64
	FrameHeight        float64
	BytesPerFrame      int64
	MaxEstimatedFrames int
}

// DefaultRunnerConfig returns the built-in frame defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		FrameWidth:         DefaultFrameWidth,
		FrameHeight:        DefaultFrameHeight,
		BytesPerFrame:      DefaultBytesPerFrame,
		MaxEstimatedFrames: DefaultMaxEstimatedFrames,
	}
}

// Runner scores footage using a detection Source. A Runner holds no
// per-run state and may start any number of concurrent runs.
type Runner struct {
	source detection.Source
	cfg    RunnerConfig
}

// NewRunner creates a Runner. Zero frame dimensions in cfg fall back to
// the defaults.
func NewRunner(source detection.Source, cfg RunnerConfig) *Runner {
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		cfg.FrameWidth, cfg.FrameHeight = DefaultFrameWidth, DefaultFrameHeight
	}
	return &Runner{source: source, cfg: cfg}
}

// Run executes req synchronously.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	return r.Start(ctx, req).Result()
}

// Start launches req on its own goroutine and returns immediately. Request
// errors are reported through the returned Task, which is already finished.
func (r *Runner) Start(ctx context.Context, req Request) *Task {
	if err := req.Validate(); err != nil {
		t := newTask(0, func() {})
		t.finish(nil, err)
		return t
	}

	p := r.plan(req)
	ctx, cancel := context.WithCancel(ctx)
	// Progress values are deduplicated, so the buffer never fills.
	t := newTask(len(p.indices)+2, cancel)
	t.setState(StateRunning)

	go func() {
		defer cancel()
		res, err := r.run(ctx, t, req, p)
		t.finish(res, err)
	}()
	return t
}

func (r *Runner) run(ctx context.Context, t *Task, req Request, p plan) (*Result, error) {
	monitoring.Logf("[Runner] Starting %q: %d of %d frames (stride %d, cap %d)",
		req.Footage.Label, len(p.indices), p.total, req.Stride, req.FrameCap)

	frames := make([]risk.FrameAnalysis, 0, len(p.indices))
	for n, idx := range p.indices {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		dets, err := r.source.Next(ctx, idx, p.total)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, cancelled(ctxErr)
			}
			return nil, &SourceError{Frame: idx, Err: err}
		}
		frames = append(frames, risk.EvaluateFrame(idx, dets, p.width, p.height))
		t.report(req.Progress, min(95, (n+1)*100/len(p.indices)))
	}

	res := summarize(frames, p.total)
	t.report(req.Progress, 100)
	monitoring.Logf("[Runner] Finished %q: %s risk, score %d, %d violations",
		req.Footage.Label, res.RiskLevel, res.RiskScore, len(res.Violations))
	return res, nil
}

// summarize reduces scored frames to a Result.
func summarize(frames []risk.FrameAnalysis, totalFrames int) *Result {
	if len(frames) == 0 {
		return degenerateResult()
	}

	level, score := risk.AggregateVideoRisk(risk.Scores(frames))
	violations := risk.SummarizeViolations(frames, score)
	if violations == nil {
		violations = []risk.Violation{}
	}
	series := make([]FrameScore, len(frames))
	for i, f := range frames {
		series[i] = FrameScore{Frame: f.FrameIndex, Score: f.Score}
	}
	return &Result{
		RiskLevel:   level,
		RiskScore:   score,
		Violations:  violations,
		Stats:       risk.ComputeFrameStats(frames, totalFrames),
		FrameScores: series,
		Frames:      frames,
	}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// Task is a single asynchronous run.
type Task struct {
	progress chan int
	done     chan struct{}
	cancel   context.CancelFunc

	// lastProgress is only touched by the run goroutine.
	lastProgress int

	mu     sync.RWMutex
	state  State
	result *Result
	err    error
}

func newTask(buffer int, cancel context.CancelFunc) *Task {
	return &Task{
		progress:     make(chan int, buffer),
		done:         make(chan struct{}),
		cancel:       cancel,
		lastProgress: -1,
		state:        StateIdle,
	}
}

// Progress delivers percentages in non-decreasing order, ending with 100 on
// success. The channel is closed when the task finishes.
func (t *Task) Progress() <-chan int { return t.progress }

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel requests cancellation. The run stops before its next detection
// fetch and reports ErrCancelled.
func (t *Task) Cancel() { t.cancel() }

// Result waits for the task to finish and returns its outcome.
func (t *Task) Result() (*Result, error) {
	<-t.done
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *Task) report(cb func(int), percent int) {
	if percent <= t.lastProgress {
		return
	}
	t.lastProgress = percent
	select {
	case t.progress <- percent:
	default:
	}
	if cb != nil {
		cb(percent)
	}
}

func (t *Task) finish(res *Result, err error) {
	t.mu.Lock()
	switch {
	case err == nil:
		t.state = StateCompleted
	case errors.Is(err, ErrCancelled):
		t.state = StateCancelled
		monitoring.Logf("[Runner] Run cancelled")
	default:
		t.state = StateFailed
		monitoring.Logf("[Runner] Run failed: %v", err)
	}
	t.result, t.err = res, err
	t.mu.Unlock()

	close(t.progress)
	close(t.done)
}
