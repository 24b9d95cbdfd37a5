package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/risk"
)

// Plot dimensions.
const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// tierBoundaries are the score cut-offs drawn as reference lines.
var tierBoundaries = []struct {
	score float64
	level risk.Level
}{
	{20, risk.LevelMedium},
	{50, risk.LevelHigh},
	{75, risk.LevelCritical},
}

// ScorePlot builds a line plot of the per-frame scores of a, with dashed
// reference lines at the tier boundaries.
func ScorePlot(a *analysis.RiskAnalysis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s (%d)", a.Source, a.RiskLevel, a.RiskScore)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Frame risk score"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	maxFrame := 1.0
	if len(a.FrameScores) > 0 {
		pts := make(plotter.XYs, len(a.FrameScores))
		for i, fs := range a.FrameScores {
			pts[i] = plotter.XY{X: float64(fs.Frame), Y: fs.Score}
		}
		maxFrame = max(maxFrame, pts[len(pts)-1].X)

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("build score line: %w", err)
		}
		line.Color = levelRGBA(a.RiskLevel)
		line.Width = vg.Points(1.5)
		points.Shape = draw.CircleGlyph{}
		points.Color = line.Color
		p.Add(line, points)
		p.Legend.Add("frame score", line)
	}

	for _, b := range tierBoundaries {
		ref, err := plotter.NewLine(plotter.XYs{{X: 0, Y: b.score}, {X: maxFrame, Y: b.score}})
		if err != nil {
			return nil, fmt.Errorf("build %s boundary: %w", b.level, err)
		}
		ref.Color = levelRGBA(b.level)
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(ref)
		p.Legend.Add(strings.ToLower(string(b.level)), ref)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteScorePlot renders the score plot of a as PNG to w.
func WriteScorePlot(w io.Writer, a *analysis.RiskAnalysis) error {
	p, err := ScorePlot(a)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render score plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write score plot: %w", err)
	}
	return nil
}

// SaveScorePlot writes the score plot of a to path. The extension picks the
// format (png, svg, pdf...).
func SaveScorePlot(path string, a *analysis.RiskAnalysis) error {
	p, err := ScorePlot(a)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save score plot: %w", err)
	}
	return nil
}
