package detection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/risk.report/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelsFixture = `{
  "classes": ["person", "car"],
  "frames": [
    {"frame": 0, "objects": [
      {"class": "car", "confidence": 0.91, "bbox": {"x1": 10, "y1": 200, "x2": 110, "y2": 270}},
      {"class": "person", "confidence": 0.80, "bbox": {"x1": 40, "y1": 300, "x2": 60, "y2": 360}}
    ]},
    {"frame": 6, "objects": [
      {"class": "traffic_light", "confidence": 0.7, "bbox": {"x1": 300, "y1": 10, "x2": 314, "y2": 46}}
    ]},
    {"frame": 9, "objects": []}
  ]
}`

func TestReadLabelsJSON(t *testing.T) {
	r, err := ReadLabelsJSON(strings.NewReader(labelsFixture))
	require.NoError(t, err)
	assert.Equal(t, 10, r.FrameCount())

	dets, err := r.Next(context.Background(), 0, r.FrameCount())
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, LabelCar, dets[0].Label)
	assert.Equal(t, 2, dets[0].ClassID)
	assert.Equal(t, geometry.Point{X: 60, Y: 235}, dets[0].Center)
	assert.Equal(t, LabelPerson, dets[1].Label)

	dets, err = r.Next(context.Background(), 6, r.FrameCount())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, LabelTrafficLight, dets[0].Label)

	// Unrecorded frames are empty, not errors.
	dets, err = r.Next(context.Background(), 3, r.FrameCount())
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestReadLabelsJSON_UnknownClass(t *testing.T) {
	_, err := ReadLabelsJSON(strings.NewReader(`{"frames":[{"frame":1,"objects":[{"class":"horse","confidence":1,"bbox":{"x1":0,"y1":0,"x2":1,"y2":1}}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 1")
}

func TestReplay_NextReturnsCopy(t *testing.T) {
	r := NewReplay(map[int][]Detection{
		0: {New(LabelCar, 0.9, geometry.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10})},
	})
	dets, err := r.Next(context.Background(), 0, 1)
	require.NoError(t, err)
	dets[0].Label = LabelBus

	again, err := r.Next(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, LabelCar, again[0].Label)
}

func TestReadCSV(t *testing.T) {
	content := `frame,timestamp_sec,class,confidence,x1,y1,x2,y2
0,0.000,car,0.91,10,200,110,270
0,0.000,truck,0.88,100,210,260,320
3,0.100,stop sign,0.66,500,40,528,68`

	r, err := ReadCSV(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 4, r.FrameCount())

	dets, _ := r.Next(context.Background(), 0, 4)
	require.Len(t, dets, 2)
	assert.Equal(t, LabelTruck, dets[1].Label)
	assert.Equal(t, 0.88, dets[1].Confidence)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("frame,class\n0,car"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ReadCSV(strings.NewReader("frame,class,confidence,x1,y1,x2,y2\n-1,car,0.9,0,0,1,1"))
	assert.ErrorContains(t, err, "invalid frame")

	_, err = ReadCSV(strings.NewReader("frame,class,confidence,x1,y1,x2,y2\n0,car,high,0,0,1,1"))
	assert.ErrorContains(t, err, "invalid confidence")
}

func TestReadCSV_RejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name, row, want string
	}{
		{"confidence above one", "0,car,1.5,0,0,10,10", "confidence must be in [0, 1]"},
		{"negative confidence", "0,car,-0.1,0,0,10,10", "confidence must be in [0, 1]"},
		{"nan confidence", "0,car,NaN,0,0,10,10", "confidence must be finite"},
		{"nan coordinate", "0,car,0.9,NaN,0,10,10", "box coordinates must be finite"},
		{"infinite coordinate", "0,car,0.9,0,0,+Inf,10", "box coordinates must be finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "frame,class,confidence,x1,y1,x2,y2\n0,car,0.9,0,0,5,5\n" + tt.row
			_, err := ReadCSV(strings.NewReader(content))
			require.Error(t, err)
			assert.ErrorContains(t, err, "line 3")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadLabelsJSON_RejectsConfidenceOutOfRange(t *testing.T) {
	_, err := ReadLabelsJSON(strings.NewReader(`{"frames":[{"frame":2,"objects":[{"class":"car","confidence":3,"bbox":{"x1":0,"y1":0,"x2":1,"y2":1}}]}]}`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "frame 2")
	assert.ErrorContains(t, err, "confidence must be in [0, 1]")
}

func TestLoadReplay(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "labels.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(labelsFixture), 0644))
	r, err := LoadReplay(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 10, r.FrameCount())

	txtPath := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0644))
	_, err = LoadReplay(txtPath)
	assert.ErrorContains(t, err, ".json or .csv")

	_, err = LoadReplay(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSourceFunc(t *testing.T) {
	var gotFrame, gotTotal int
	src := SourceFunc(func(ctx context.Context, frame, total int) ([]Detection, error) {
		gotFrame, gotTotal = frame, total
		return nil, nil
	})
	_, err := src.Next(context.Background(), 4, 12)
	require.NoError(t, err)
	assert.Equal(t, 4, gotFrame)
	assert.Equal(t, 12, gotTotal)
}
