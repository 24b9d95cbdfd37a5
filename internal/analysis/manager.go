package analysis

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/banshee-data/risk.report/internal/timeutil"
)

// Validator decides whether a finished run plausibly shows a street scene.
// It is an external gate; the pipeline itself never inspects content.
type Validator interface {
	Validate(ctx context.Context, footage Footage, res *Result) (bool, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, footage Footage, res *Result) (bool, error)

func (f ValidatorFunc) Validate(ctx context.Context, footage Footage, res *Result) (bool, error) {
	return f(ctx, footage, res)
}

// AcceptAll is the default Validator.
var AcceptAll = ValidatorFunc(func(context.Context, Footage, *Result) (bool, error) {
	return true, nil
})

// Locator turns coordinates into a display name.
type Locator interface {
	ReverseLookup(ctx context.Context, lat, lon float64) (string, error)
}

// Publisher is notified of every stored analysis.
type Publisher interface {
	Publish(ctx context.Context, a *RiskAnalysis) error
}

// Location is where the footage was recorded. A non-empty Name skips the
// reverse lookup.
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AnalyzeRequest is a Manager run request.
type AnalyzeRequest struct {
	Request
	Location Location `json:"location"`
}

// Manager runs analyses on behalf of callers and records the results.
type Manager struct {
	runner     *Runner
	history    History
	validator  Validator
	locator    Locator
	publishers []Publisher
	clock      timeutil.Clock
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithValidator sets the footage validity gate.
func WithValidator(v Validator) ManagerOption {
	return func(m *Manager) { m.validator = v }
}

// WithLocator sets the reverse geocoder.
func WithLocator(l Locator) ManagerOption {
	return func(m *Manager) { m.locator = l }
}

// WithPublisher adds a publisher. Publishers are called in order.
func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.publishers = append(m.publishers, p) }
}

// WithClock overrides the clock used for timestamps.
func WithClock(c timeutil.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a Manager.
func NewManager(runner *Runner, history History, opts ...ManagerOption) *Manager {
	m := &Manager{
		runner:    runner,
		history:   history,
		validator: AcceptAll,
		clock:     timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// History returns the history the manager appends to.
func (m *Manager) History() History { return m.history }

// Analyze runs req, gates it through the validator, attaches identity and
// location, and appends the record to history.
func (m *Manager) Analyze(ctx context.Context, req AnalyzeRequest) (*RiskAnalysis, error) {
	start := m.clock.Now()
	res, err := m.runner.Run(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	ok, err := m.validator.Validate(ctx, req.Footage, res)
	if err != nil {
		return nil, fmt.Errorf("footage validation: %w", err)
	}
	if !ok {
		log.Printf("[Manager] Rejected footage %q", req.Footage.Label)
		return nil, ErrInvalidFootage
	}

	a := &RiskAnalysis{
		ID:          uuid.New().String(),
		Location:    m.locationName(ctx, req.Location),
		Latitude:    req.Location.Latitude,
		Longitude:   req.Location.Longitude,
		RiskLevel:   res.RiskLevel,
		RiskScore:   res.RiskScore,
		Timestamp:   m.clock.Now().UTC(),
		Source:      req.Footage.Label,
		Violations:  res.Violations,
		FrameStats:  res.Stats,
		FrameScores: res.FrameScores,
	}

	if err := m.history.Append(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}
	log.Printf("[Manager] Recorded analysis %s for %q: %s (%d) in %v",
		a.ID, a.Source, a.RiskLevel, a.RiskScore, m.clock.Since(start))

	for _, p := range m.publishers {
		if err := p.Publish(ctx, a); err != nil {
			log.Printf("[Manager] Failed to publish analysis %s: %v", a.ID, err)
		}
	}
	return a, nil
}

// locationName resolves a display name, falling back to the coordinates.
func (m *Manager) locationName(ctx context.Context, loc Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	if m.locator != nil {
		name, err := m.locator.ReverseLookup(ctx, loc.Latitude, loc.Longitude)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			log.Printf("[Manager] Reverse lookup failed for %.4f, %.4f: %v", loc.Latitude, loc.Longitude, err)
		}
	}
	return CoordinateName(loc.Latitude, loc.Longitude)
}

// CoordinateName formats a coordinate pair as a display name.
func CoordinateName(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}
