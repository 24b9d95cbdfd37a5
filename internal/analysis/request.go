package analysis

import (
	"math"

	"github.com/banshee-data/risk.report/internal/detection"
)

// Defaults applied by DefaultRequest and NewRequest.
const (
	DefaultFrameCap = 50
	DefaultStride   = 3

	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	// DefaultBytesPerFrame converts footage size to an estimated frame
	// count when the frame count is unknown.
	DefaultBytesPerFrame = 40_000

	// DefaultMaxEstimatedFrames bounds the byte-size estimate.
	DefaultMaxEstimatedFrames = 900
)

// Footage identifies the footage being analysed. Nothing here is decoded;
// Label is an opaque name (usually the uploaded file name).
type Footage struct {
	Label       string  `json:"label"`
	SizeBytes   int64   `json:"size_bytes,omitempty"`
	TotalFrames int     `json:"total_frames,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
}

// Request configures one run.
type Request struct {
	Footage Footage `json:"footage"`

	// FrameCap is the maximum number of frames scored. Zero scores nothing
	// and yields the degenerate result.
	FrameCap int `json:"frame_cap"`

	// Stride keeps every Stride-th frame, starting at frame 0.
	Stride int `json:"stride"`

	// Progress, when set, is called from the run goroutine with the same
	// values sent on Task.Progress.
	Progress func(percent int) `json:"-"`
}

// NewRequest returns a request for footage using the default cap and stride.
func NewRequest(footage Footage) Request {
	return Request{Footage: footage, FrameCap: DefaultFrameCap, Stride: DefaultStride}
}

// Validate checks the request shape. It does not look at footage content.
func (r Request) Validate() error {
	switch {
	case r.Footage.Label == "":
		return &InputError{Field: "footage", Reason: "label is required"}
	case r.Footage.SizeBytes < 0:
		return &InputError{Field: "footage.size_bytes", Reason: "must not be negative"}
	case r.Footage.TotalFrames < 0:
		return &InputError{Field: "footage.total_frames", Reason: "must not be negative"}
	case r.Footage.Width < 0 || r.Footage.Height < 0:
		return &InputError{Field: "footage.size", Reason: "frame dimensions must be positive"}
	case (r.Footage.Width == 0) != (r.Footage.Height == 0):
		return &InputError{Field: "footage.size", Reason: "frame dimensions must be positive; set both width and height or neither"}
	case r.FrameCap < 0:
		return &InputError{Field: "frame_cap", Reason: "must not be negative"}
	case r.Stride <= 0:
		return &InputError{Field: "stride", Reason: "must be positive"}
	}
	return nil
}

// plan resolves the frame geometry of a validated request. A source that
// reports its own frame size overrides the declared one, and a source that
// knows its frame count fills in an unknown TotalFrames before the byte-size
// estimate is tried.
type plan struct {
	total   int
	indices []int
	width   float64
	height  float64
}

func (r *Runner) plan(req Request) plan {
	p := plan{
		total:  req.Footage.TotalFrames,
		width:  req.Footage.Width,
		height: req.Footage.Height,
	}
	if p.total == 0 {
		if fc, ok := r.source.(detection.FrameCounter); ok {
			p.total = fc.FrameCount()
		}
	}
	if p.total == 0 {
		p.total = r.estimateFrames(req.Footage.SizeBytes)
	}
	if fs, ok := r.source.(detection.FrameSizer); ok {
		if w, h := fs.FrameSize(); w > 0 && h > 0 {
			p.width, p.height = w, h
		}
	}
	if p.width == 0 || p.height == 0 {
		p.width, p.height = r.cfg.FrameWidth, r.cfg.FrameHeight
	}
	for i := 0; i < p.total && len(p.indices) < req.FrameCap; i += req.Stride {
		p.indices = append(p.indices, i)
	}
	return p
}

func (r *Runner) estimateFrames(size int64) int {
	if size <= 0 || r.cfg.BytesPerFrame <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(size) / float64(r.cfg.BytesPerFrame)))
	if r.cfg.MaxEstimatedFrames > 0 && n > r.cfg.MaxEstimatedFrames {
		n = r.cfg.MaxEstimatedFrames
	}
	return n
}
