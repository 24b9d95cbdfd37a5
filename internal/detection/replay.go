package detection

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/risk.report/internal/geometry"
)

// maxReplaySize bounds recorded detection files.
const maxReplaySize = 64 * 1024 * 1024

// VideoLabels is the JSON layout of recorded detector output: one entry per
// frame that had detections.
type VideoLabels struct {
	Classes []string      `json:"classes,omitempty"`
	Frames  []FrameLabels `json:"frames"`
}

// FrameLabels holds the objects detected in one frame.
type FrameLabels struct {
	Frame   int           `json:"frame"`
	Objects []LabelledBox `json:"objects"`
}

// LabelledBox is one recorded object.
type LabelledBox struct {
	Class      string               `json:"class"`
	Confidence float64              `json:"confidence"`
	Box        geometry.BoundingBox `json:"bbox"`
}

// Replay serves detections recorded from a real detector. Frames with no
// recorded objects yield an empty list.
type Replay struct {
	frames     map[int][]Detection
	frameCount int
}

// NewReplay builds a Replay from detections keyed by frame index.
func NewReplay(frames map[int][]Detection) *Replay {
	r := &Replay{frames: make(map[int][]Detection, len(frames))}
	for idx, dets := range frames {
		r.add(idx, dets...)
	}
	return r
}

func (r *Replay) add(frame int, dets ...Detection) {
	r.frames[frame] = append(r.frames[frame], dets...)
	if frame+1 > r.frameCount {
		r.frameCount = frame + 1
	}
}

// FrameCount returns one past the highest recorded frame index.
func (r *Replay) FrameCount() int { return r.frameCount }

// Next implements Source. The returned slice is a copy.
func (r *Replay) Next(ctx context.Context, frameIndex, totalFrames int) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dets := r.frames[frameIndex]
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// LoadReplay reads recorded detections from a .json or .csv file.
func LoadReplay(path string) (*Replay, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat detections file: %w", err)
	}
	if info.Size() > maxReplaySize {
		return nil, fmt.Errorf("detections file too large: %d bytes (max %d)", info.Size(), maxReplaySize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		return ReadLabelsJSON(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("detections file must be .json or .csv, got %q", ext)
	}
}

// ReadLabelsJSON parses the VideoLabels layout.
func ReadLabelsJSON(rd io.Reader) (*Replay, error) {
	var labels VideoLabels
	if err := json.NewDecoder(rd).Decode(&labels); err != nil {
		return nil, fmt.Errorf("failed to parse detections JSON: %w", err)
	}

	r := NewReplay(nil)
	for _, fl := range labels.Frames {
		if fl.Frame < 0 {
			return nil, fmt.Errorf("frame index must be non-negative, got %d", fl.Frame)
		}
		for _, obj := range fl.Objects {
			label, err := ParseLabel(obj.Class)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", fl.Frame, err)
			}
			if err := checkObject(obj.Confidence, obj.Box.X1, obj.Box.Y1, obj.Box.X2, obj.Box.Y2); err != nil {
				return nil, fmt.Errorf("frame %d: %w", fl.Frame, err)
			}
			r.add(fl.Frame, New(label, obj.Confidence, geometry.NewBox(obj.Box.X1, obj.Box.Y1, obj.Box.X2, obj.Box.Y2)))
		}
		if len(fl.Objects) == 0 {
			r.add(fl.Frame)
		}
	}
	return r, nil
}

// csvColumns are the required CSV header fields.
var csvColumns = []string{"frame", "class", "confidence", "x1", "y1", "x2", "y2"}

// ReadCSV parses a detector export with one row per detection. Columns are
// located by header name, so extra columns are ignored.
func ReadCSV(rd io.Reader) (*Replay, error) {
	reader := csv.NewReader(rd)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range csvColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", col)
		}
	}

	r := NewReplay(nil)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		frame, err := strconv.Atoi(row[colMap["frame"]])
		if err != nil || frame < 0 {
			return nil, fmt.Errorf("line %d: invalid frame %q", line, row[colMap["frame"]])
		}
		label, err := ParseLabel(row[colMap["class"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		nums := make([]float64, 5)
		for i, col := range []string{"confidence", "x1", "y1", "x2", "y2"} {
			nums[i], err = strconv.ParseFloat(row[colMap[col]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, col, err)
			}
		}
		if err := checkObject(nums...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		r.add(frame, New(label, nums[0], geometry.NewBox(nums[1], nums[2], nums[3], nums[4])))
	}
	return r, nil
}

// checkObject validates a recorded confidence followed by box coordinates.
func checkObject(vals ...float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if i == 0 {
				return fmt.Errorf("confidence must be finite, got %v", v)
			}
			return fmt.Errorf("box coordinates must be finite, got %v", v)
		}
	}
	if c := vals[0]; c < 0 || c > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %v", c)
	}
	return nil
}
