package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/report"
	"github.com/banshee-data/risk.report/internal/security"
)

func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("analyze", stderr)
	var common commonFlags
	common.register(fs)
	var (
		sizeBytes = fs.Int64("size", 0, "Footage size in bytes, used to estimate the frame count")
		frames    = fs.Int("frames", 0, "Total frame count (overrides -size)")
		frameCap  = fs.Int("cap", 0, "Maximum frames to score (default from config)")
		stride    = fs.Int("stride", 0, "Score every Nth frame (default from config)")
		replay    = fs.String("replay", "", "Recorded detections (.json or .csv) instead of the simulator")
		place     = fs.String("location", "", "Location name; skips reverse geocoding")
		lat       = fs.Float64("lat", 0, "Latitude of the footage")
		lon       = fs.Float64("lon", 0, "Longitude of the footage")
		geocoding = fs.Bool("geocode", true, "Resolve -lat/-lon to a place name")
		plotPath  = fs.String("plot", "", "Write a per-frame score plot (.png, .svg or .pdf)")
		plotDir   = fs.String("plot-dir", "", "Write a PNG score plot named after the footage label into this directory")
		noStore   = fs.Bool("no-store", false, "Do not record the analysis in the database")
		quiet     = fs.Bool("quiet", false, "Do not print progress")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: riskreport analyze [flags] LABEL")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *replay != "" {
		cfg.ReplayPath = replay
	}
	runner, err := newRunner(cfg)
	if err != nil {
		return err
	}

	var history analysis.History = analysis.NewMemoryHistory()
	if !*noStore {
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		history = db.NewHistoryStore(database)
	}

	var opts []analysis.ManagerOption
	if *geocoding {
		geocoder, err := newGeocoder(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, analysis.WithLocator(geocoder))
	}
	mgr := analysis.NewManager(runner, history, opts...)

	req := analysis.AnalyzeRequest{
		Request: analysis.Request{
			Footage:  analysis.Footage{Label: fs.Arg(0), SizeBytes: *sizeBytes, TotalFrames: *frames},
			FrameCap: cfg.GetFrameCap(),
			Stride:   cfg.GetStride(),
		},
		Location: analysis.Location{Name: *place, Latitude: *lat, Longitude: *lon},
	}
	if isSet(fs, "cap") {
		req.FrameCap = *frameCap
	}
	if isSet(fs, "stride") {
		req.Stride = *stride
	}
	if !*quiet {
		label := req.Footage.Label
		req.Progress = func(pct int) { fmt.Fprintf(stderr, "\ranalysing %s: %3d%%", label, pct) }
	}

	a, err := mgr.Analyze(ctx, req)
	if !*quiet {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	if *plotPath != "" {
		if err := report.SaveScorePlot(*plotPath, a); err != nil {
			return err
		}
	}
	if *plotDir != "" {
		if err := os.MkdirAll(*plotDir, 0o755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
		path, err := security.ExportPath(*plotDir, a.Source+"-"+shortID(a.ID), ".png")
		if err != nil {
			return err
		}
		if err := report.SaveScorePlot(path, a); err != nil {
			return err
		}
		if !*quiet {
			fmt.Fprintf(stderr, "plot written to %s\n", path)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
