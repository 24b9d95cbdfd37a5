package detection

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/banshee-data/risk.report/internal/geometry"
	"gonum.org/v1/gonum/stat/distuv"
)

// Intensity is the coarse traffic density the simulator targets for a frame.
type Intensity int

const (
	IntensityLow Intensity = iota
	IntensityMedium
	IntensityHigh
)

func (i Intensity) String() string {
	switch i {
	case IntensityLow:
		return "low"
	case IntensityMedium:
		return "medium"
	case IntensityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Intensity thresholds on the [0, ~1] density curve.
const (
	mediumDensity = 0.40
	highDensity   = 0.70
)

// tierCounts bounds the number of objects drawn for one intensity tier.
// Counts are Poisson draws clamped to [min, max].
type tierCounts struct {
	vehicleMean, personMean float64
	vehicleMin, vehicleMax  int
	personMin, personMax    int
}

var tiers = map[Intensity]tierCounts{
	IntensityLow:    {vehicleMean: 2, personMean: 0.7, vehicleMin: 1, vehicleMax: 4, personMin: 0, personMax: 2},
	IntensityMedium: {vehicleMean: 6, personMean: 2, vehicleMin: 3, vehicleMax: 9, personMin: 1, personMax: 4},
	IntensityHigh:   {vehicleMean: 11, personMean: 5, vehicleMin: 7, vehicleMax: 16, personMin: 3, personMax: 9},
}

// vehicleMix is the cumulative label distribution for simulated vehicles.
var vehicleMix = []struct {
	label Label
	cum   float64
}{
	{LabelCar, 0.60},
	{LabelTruck, 0.72},
	{LabelBus, 0.80},
	{LabelMotorcycle, 0.90},
	{LabelBicycle, 1.00},
}

// peak is a Gaussian bump on the density curve, in normalised run time.
type peak struct {
	center, width, amplitude float64
}

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	Seed   uint64
	Width  float64 // frame width in pixels
	Height float64 // frame height in pixels
}

// DefaultSimulatorConfig returns a 640x480 simulator with a fixed seed.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{Seed: 1, Width: 640, Height: 480}
}

// Simulator generates plausible traffic detections while no real detector
// is wired in. Density follows a slow sinusoid with two or three injected
// peak windows, so a run sees calm stretches and busy bursts.
//
// A Simulator is safe for concurrent use. Output is deterministic for a
// given seed and call order.
type Simulator struct {
	mu     sync.Mutex
	src    rand.Source
	rng    *rand.Rand
	width  float64
	height float64
	peaks  []peak
}

// NewSimulator creates a Simulator from cfg. Non-positive frame dimensions
// fall back to 640x480.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	s := &Simulator{
		src:    src,
		rng:    rand.New(src),
		width:  cfg.Width,
		height: cfg.Height,
	}

	n := 2 + s.rng.IntN(2)
	for i := 0; i < n; i++ {
		// Spread peaks over the run: one per equal segment, jittered within it.
		seg := 1.0 / float64(n)
		s.peaks = append(s.peaks, peak{
			center:    seg*float64(i) + seg*(0.2+0.6*s.rng.Float64()),
			width:     0.04 + 0.04*s.rng.Float64(),
			amplitude: 0.55 + 0.15*s.rng.Float64(),
		})
	}
	return s
}

// FrameSize returns the simulated frame dimensions.
func (s *Simulator) FrameSize() (width, height float64) {
	return s.width, s.height
}

// Density returns the smooth traffic density for a frame, roughly in [0, 1.1].
func (s *Simulator) Density(frameIndex, totalFrames int) float64 {
	t := 0.0
	if totalFrames > 0 {
		t = float64(frameIndex) / float64(totalFrames)
	}
	d := 0.35 + 0.15*math.Sin(2*math.Pi*1.5*t)
	for _, p := range s.peaks {
		dt := t - p.center
		d += p.amplitude * math.Exp(-(dt*dt)/(2*p.width*p.width))
	}
	return d
}

// Intensity buckets Density into low, medium or high.
func (s *Simulator) Intensity(frameIndex, totalFrames int) Intensity {
	d := s.Density(frameIndex, totalFrames)
	switch {
	case d >= highDensity:
		return IntensityHigh
	case d >= mediumDensity:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// Next implements Source.
func (s *Simulator) Next(ctx context.Context, frameIndex, totalFrames int) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tier := tiers[s.Intensity(frameIndex, totalFrames)]

	s.mu.Lock()
	defer s.mu.Unlock()

	nVehicles := s.poisson(tier.vehicleMean, tier.vehicleMin, tier.vehicleMax)
	nPersons := s.poisson(tier.personMean, tier.personMin, tier.personMax)

	dets := make([]Detection, 0, nVehicles+nPersons+2)
	for i := 0; i < nVehicles; i++ {
		dets = append(dets, s.vehicle())
	}
	for i := 0; i < nPersons; i++ {
		dets = append(dets, s.pedestrian())
	}
	if s.rng.Float64() < 0.3 {
		dets = append(dets, s.fixture(LabelTrafficLight, 14, 36))
	}
	if s.rng.Float64() < 0.1 {
		dets = append(dets, s.fixture(LabelStopSign, 28, 28))
	}
	return dets, nil
}

func (s *Simulator) poisson(mean float64, lo, hi int) int {
	n := int(distuv.Poisson{Lambda: mean, Src: s.src}.Rand())
	return min(max(n, lo), hi)
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

func (s *Simulator) normal(mu, sigma, floor float64) float64 {
	return math.Max(floor, distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand())
}

func (s *Simulator) vehicleLabel() Label {
	r := s.rng.Float64()
	for _, m := range vehicleMix {
		if r < m.cum {
			return m.label
		}
	}
	return LabelCar
}

// vehicle places a vehicle in the middle and lower part of the frame.
func (s *Simulator) vehicle() Detection {
	label := s.vehicleLabel()
	var w, h float64
	switch label {
	case LabelBus, LabelTruck:
		w = s.normal(180, 35, 60)
		h = w * 0.65
	case LabelMotorcycle, LabelBicycle:
		w = s.normal(45, 10, 15)
		h = w * 1.2
	default:
		w = s.normal(110, 25, 30)
		h = w * 0.7
	}
	cx := s.uniform(0, s.width)
	cy := s.uniform(0.40*s.height, 0.92*s.height)
	return New(label, s.uniform(0.55, 0.98), s.clip(cx, cy, w, h))
}

// pedestrian places a person in the lower half, close to the left or right edge.
func (s *Simulator) pedestrian() Detection {
	w := s.normal(28, 6, 10)
	h := w * 2.4
	var cx float64
	if s.rng.Float64() < 0.5 {
		cx = s.uniform(0.02*s.width, 0.28*s.width)
	} else {
		cx = s.uniform(0.72*s.width, 0.98*s.width)
	}
	cy := s.uniform(0.55*s.height, 0.95*s.height)
	return New(LabelPerson, s.uniform(0.50, 0.95), s.clip(cx, cy, w, h))
}

// fixture places a sign or signal in the upper part of the frame.
func (s *Simulator) fixture(label Label, w, h float64) Detection {
	cx := s.uniform(0.05*s.width, 0.95*s.width)
	cy := s.uniform(0.05*s.height, 0.30*s.height)
	return New(label, s.uniform(0.60, 0.95), s.clip(cx, cy, w, h))
}

// clip centers a w x h box on (cx, cy) and keeps it inside the frame.
func (s *Simulator) clip(cx, cy, w, h float64) geometry.BoundingBox {
	w = math.Min(w, s.width)
	h = math.Min(h, s.height)
	x1 := math.Min(math.Max(cx-w/2, 0), s.width-w)
	y1 := math.Min(math.Max(cy-h/2, 0), s.height-h)
	return geometry.BoundingBox{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h}
}
