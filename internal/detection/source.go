package detection

import "context"

// Source produces the detections for one frame of a footage run.
// frameIndex is in [0, totalFrames). Implementations may block; they
// should return promptly once ctx is done.
type Source interface {
	Next(ctx context.Context, frameIndex, totalFrames int) ([]Detection, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, frameIndex, totalFrames int) ([]Detection, error)

// Next calls f.
func (f SourceFunc) Next(ctx context.Context, frameIndex, totalFrames int) ([]Detection, error) {
	return f(ctx, frameIndex, totalFrames)
}

// FrameSizer is implemented by sources whose boxes are drawn in a fixed
// frame. Scoring uses this size instead of the declared footage size.
type FrameSizer interface {
	FrameSize() (width, height float64)
}

// FrameCounter is implemented by sources that know how many frames the
// footage holds, such as recorded detector output.
type FrameCounter interface {
	FrameCount() int
}
