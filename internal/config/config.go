package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the checked-in defaults file.
const DefaultConfigPath = "config/riskreport.defaults.json"

// RiskConfig is the service configuration. Every field is optional; the
// Get* accessors supply defaults for anything the file leaves out.
type RiskConfig struct {
	// Run defaults
	FrameCap           *int     `json:"frame_cap,omitempty"`
	Stride             *int     `json:"stride,omitempty"`
	FrameWidth         *float64 `json:"frame_width,omitempty"`
	FrameHeight        *float64 `json:"frame_height,omitempty"`
	BytesPerFrame      *int64   `json:"bytes_per_frame,omitempty"`
	MaxEstimatedFrames *int     `json:"max_estimated_frames,omitempty"`

	// Detection source
	SimulatorSeed *uint64 `json:"simulator_seed,omitempty"`
	ReplayPath    *string `json:"replay_path,omitempty"` // recorded detections; empty uses the simulator

	// Geocoder
	GeocoderURL       *string `json:"geocoder_url,omitempty"`
	GeocoderUserAgent *string `json:"geocoder_user_agent,omitempty"`
	GeocoderTimeout   *string `json:"geocoder_timeout,omitempty"` // duration string like "5s"

	// Storage and listeners
	DBPath     *string `json:"db_path,omitempty"`
	HTTPListen *string `json:"http_listen,omitempty"`
	GRPCListen *string `json:"grpc_listen,omitempty"`

	// Publishing
	KafkaEnabled *bool `json:"kafka_enabled,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyRiskConfig returns a RiskConfig with every field unset.
func EmptyRiskConfig() *RiskConfig {
	return &RiskConfig{}
}

// DefaultRiskConfig returns a RiskConfig with every field set to its default.
func DefaultRiskConfig() *RiskConfig {
	c := EmptyRiskConfig()
	return &RiskConfig{
		FrameCap:           ptrInt(c.GetFrameCap()),
		Stride:             ptrInt(c.GetStride()),
		FrameWidth:         ptrFloat64(c.GetFrameWidth()),
		FrameHeight:        ptrFloat64(c.GetFrameHeight()),
		BytesPerFrame:      ptrInt64(c.GetBytesPerFrame()),
		MaxEstimatedFrames: ptrInt(c.GetMaxEstimatedFrames()),
		SimulatorSeed:      ptrUint64(c.GetSimulatorSeed()),
		GeocoderURL:        ptrString(c.GetGeocoderURL()),
		GeocoderUserAgent:  ptrString(c.GetGeocoderUserAgent()),
		GeocoderTimeout:    ptrString(c.GetGeocoderTimeout().String()),
		DBPath:             ptrString(c.GetDBPath()),
		HTTPListen:         ptrString(c.GetHTTPListen()),
		GRPCListen:         ptrString(c.GetGRPCListen()),
		KafkaEnabled:       ptrBool(c.GetKafkaEnabled()),
	}
}

// LoadRiskConfig loads a RiskConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadRiskConfig(path string) (*RiskConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRiskConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are set.
func (c *RiskConfig) Validate() error {
	if c.FrameCap != nil && *c.FrameCap < 0 {
		return fmt.Errorf("frame_cap must be non-negative, got %d", *c.FrameCap)
	}
	if c.Stride != nil && *c.Stride <= 0 {
		return fmt.Errorf("stride must be positive, got %d", *c.Stride)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %f", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %f", *c.FrameHeight)
	}
	if c.BytesPerFrame != nil && *c.BytesPerFrame <= 0 {
		return fmt.Errorf("bytes_per_frame must be positive, got %d", *c.BytesPerFrame)
	}
	if c.MaxEstimatedFrames != nil && *c.MaxEstimatedFrames < 0 {
		return fmt.Errorf("max_estimated_frames must be non-negative, got %d", *c.MaxEstimatedFrames)
	}

	if c.GeocoderTimeout != nil && *c.GeocoderTimeout != "" {
		d, err := time.ParseDuration(*c.GeocoderTimeout)
		if err != nil {
			return fmt.Errorf("invalid geocoder_timeout '%s': %w", *c.GeocoderTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("geocoder_timeout must be positive, got %s", d)
		}
	}

	if c.GeocoderURL != nil && *c.GeocoderURL != "" {
		u, err := url.Parse(*c.GeocoderURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid geocoder_url %q", *c.GeocoderURL)
		}
	}

	return nil
}

// GetFrameCap returns the frame_cap value or the default.
func (c *RiskConfig) GetFrameCap() int {
	if c.FrameCap == nil {
		return 50
	}
	return *c.FrameCap
}

// GetStride returns the stride value or the default.
func (c *RiskConfig) GetStride() int {
	if c.Stride == nil {
		return 3
	}
	return *c.Stride
}

// GetFrameWidth returns the frame_width value or the default.
func (c *RiskConfig) GetFrameWidth() float64 {
	if c.FrameWidth == nil {
		return 640
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *RiskConfig) GetFrameHeight() float64 {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}

// GetBytesPerFrame returns the bytes_per_frame value or the default.
func (c *RiskConfig) GetBytesPerFrame() int64 {
	if c.BytesPerFrame == nil {
		return 40_000
	}
	return *c.BytesPerFrame
}

// GetMaxEstimatedFrames returns the max_estimated_frames value or the default.
func (c *RiskConfig) GetMaxEstimatedFrames() int {
	if c.MaxEstimatedFrames == nil {
		return 900
	}
	return *c.MaxEstimatedFrames
}

// GetSimulatorSeed returns the simulator_seed value or the default.
func (c *RiskConfig) GetSimulatorSeed() uint64 {
	if c.SimulatorSeed == nil {
		return 1
	}
	return *c.SimulatorSeed
}

// GetReplayPath returns the replay_path value or "" when the simulator is used.
func (c *RiskConfig) GetReplayPath() string {
	if c.ReplayPath == nil {
		return ""
	}
	return *c.ReplayPath
}

// GetGeocoderURL returns the geocoder_url value or the public Nominatim endpoint.
func (c *RiskConfig) GetGeocoderURL() string {
	if c.GeocoderURL == nil || *c.GeocoderURL == "" {
		return "https://nominatim.openstreetmap.org"
	}
	return *c.GeocoderURL
}

// GetGeocoderUserAgent returns the geocoder_user_agent value or the default.
func (c *RiskConfig) GetGeocoderUserAgent() string {
	if c.GeocoderUserAgent == nil || *c.GeocoderUserAgent == "" {
		return "risk.report"
	}
	return *c.GeocoderUserAgent
}

// GetGeocoderTimeout parses and returns the geocoder_timeout value.
func (c *RiskConfig) GetGeocoderTimeout() time.Duration {
	if c.GeocoderTimeout == nil || *c.GeocoderTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.GeocoderTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetDBPath returns the db_path value or the default.
func (c *RiskConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "riskreport.db"
	}
	return *c.DBPath
}

// GetHTTPListen returns the http_listen value or the default.
func (c *RiskConfig) GetHTTPListen() string {
	if c.HTTPListen == nil || *c.HTTPListen == "" {
		return ":8080"
	}
	return *c.HTTPListen
}

// GetGRPCListen returns the grpc_listen value or the default.
func (c *RiskConfig) GetGRPCListen() string {
	if c.GRPCListen == nil || *c.GRPCListen == "" {
		return ":9090"
	}
	return *c.GRPCListen
}

// GetKafkaEnabled returns the kafka_enabled value or the default.
func (c *RiskConfig) GetKafkaEnabled() bool {
	if c.KafkaEnabled == nil {
		return false // default: publishing disabled
	}
	return *c.KafkaEnabled
}
