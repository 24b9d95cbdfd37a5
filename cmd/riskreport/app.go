package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/detection"
	"github.com/banshee-data/risk.report/internal/geocode"
	"github.com/banshee-data/risk.report/internal/httputil"
)

// errUsage is returned after flag parsing fails; the flag package has
// already printed the problem.
var errUsage = errors.New("usage")

// commonFlags are shared by every subcommand that touches config or the DB.
type commonFlags struct {
	configPath string
	dbPath     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to a JSON config file (default "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&c.dbPath, "db", "", "SQLite database path (overrides config)")
}

// load reads the config and applies flag overrides.
func (c *commonFlags) load() (*config.RiskConfig, error) {
	path := c.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}

	cfg := config.EmptyRiskConfig()
	if path != "" {
		loaded, err := config.LoadRiskConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.dbPath != "" {
		cfg.DBPath = &c.dbPath
	}
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// isSet reports whether the named flag was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// newSource returns the replay source when a recording is configured and
// the simulator otherwise.
func newSource(cfg *config.RiskConfig) (detection.Source, error) {
	if path := cfg.GetReplayPath(); path != "" {
		replay, err := detection.LoadReplay(path)
		if err != nil {
			return nil, err
		}
		return replay, nil
	}
	return detection.NewSimulator(detection.SimulatorConfig{
		Seed:   cfg.GetSimulatorSeed(),
		Width:  cfg.GetFrameWidth(),
		Height: cfg.GetFrameHeight(),
	}), nil
}

func newRunner(cfg *config.RiskConfig) (*analysis.Runner, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("detection source: %w", err)
	}
	return analysis.NewRunner(src, analysis.RunnerConfig{
		FrameWidth:         cfg.GetFrameWidth(),
		FrameHeight:        cfg.GetFrameHeight(),
		BytesPerFrame:      cfg.GetBytesPerFrame(),
		MaxEstimatedFrames: cfg.GetMaxEstimatedFrames(),
	}), nil
}

func newGeocoder(cfg *config.RiskConfig) (*geocode.Client, error) {
	hc := httputil.NewStandardClient(cfg.GetGeocoderTimeout())
	return geocode.NewClient(hc, cfg.GetGeocoderURL(), cfg.GetGeocoderUserAgent())
}
