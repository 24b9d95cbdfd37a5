// Package detection defines the per-frame object detections consumed by the
// risk pipeline and the Source seam that produces them.
//
// Two sources ship with the package: Simulator, a seeded scenario generator
// used while no detector is attached, and Replay, which serves detections
// recorded from a real detector. Anything implementing Source can stand in
// for either without touching scoring or aggregation.
package detection

import (
	"fmt"
	"strings"

	"github.com/banshee-data/risk.report/internal/geometry"
)

// Label is a detector class name from the fixed vocabulary below.
type Label string

const (
	LabelPerson       Label = "person"
	LabelBicycle      Label = "bicycle"
	LabelCar          Label = "car"
	LabelMotorcycle   Label = "motorcycle"
	LabelBus          Label = "bus"
	LabelTruck        Label = "truck"
	LabelTrafficLight Label = "traffic light"
	LabelStopSign     Label = "stop sign"
)

// classIDs follows the COCO numbering used by common detectors.
var classIDs = map[Label]int{
	LabelPerson:       0,
	LabelBicycle:      1,
	LabelCar:          2,
	LabelMotorcycle:   3,
	LabelBus:          5,
	LabelTruck:        7,
	LabelTrafficLight: 9,
	LabelStopSign:     11,
}

// Labels returns the vocabulary in class-id order.
func Labels() []Label {
	return []Label{
		LabelPerson, LabelBicycle, LabelCar, LabelMotorcycle,
		LabelBus, LabelTruck, LabelTrafficLight, LabelStopSign,
	}
}

// ParseLabel maps a class name onto the vocabulary. Matching ignores case,
// surrounding space and underscores ("traffic_light" is accepted).
func ParseLabel(s string) (Label, error) {
	norm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	l := Label(norm)
	if _, ok := classIDs[l]; !ok {
		return "", fmt.Errorf("unknown detection class %q", s)
	}
	return l, nil
}

// ClassID returns the numeric class id for l, or -1 if l is not in the vocabulary.
func (l Label) ClassID() int {
	id, ok := classIDs[l]
	if !ok {
		return -1
	}
	return id
}

// IsVehicle reports whether l counts as a vehicle for scoring.
func (l Label) IsVehicle() bool {
	switch l {
	case LabelCar, LabelMotorcycle, LabelBus, LabelTruck, LabelBicycle:
		return true
	}
	return false
}

// IsPerson reports whether l is a pedestrian.
func (l Label) IsPerson() bool { return l == LabelPerson }

// Detection is one object found in one frame.
type Detection struct {
	Label      Label                `json:"class"`
	Confidence float64              `json:"confidence"`
	Box        geometry.BoundingBox `json:"bbox"`
	ClassID    int                  `json:"class_id"`
	Center     geometry.Point       `json:"center"`
}

// New builds a Detection, deriving the class id and center.
func New(label Label, confidence float64, box geometry.BoundingBox) Detection {
	return Detection{
		Label:      label,
		Confidence: confidence,
		Box:        box,
		ClassID:    label.ClassID(),
		Center:     geometry.Center(box),
	}
}

func (d Detection) String() string {
	return fmt.Sprintf("%s(%.2f) [%.1f,%.1f,%.1f,%.1f]",
		d.Label, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}
