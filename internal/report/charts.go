package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/risk.report/internal/analysis"
)

// ScoreChart is the interactive counterpart of ScorePlot.
func ScoreChart(a *analysis.RiskAnalysis) *charts.Line {
	x := make([]string, len(a.FrameScores))
	y := make([]opts.LineData, len(a.FrameScores))
	for i, fs := range a.FrameScores {
		x[i] = strconv.Itoa(fs.Frame)
		y[i] = opts.LineData{Value: fs.Score}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame risk", Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    a.Source,
			Subtitle: fmt.Sprintf("%s  %s (%d)  %s", a.Location, a.RiskLevel, a.RiskScore, a.Timestamp.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score", Min: 0, Max: 100}),
	)
	line.SetXAxis(x).AddSeries("frame score", y,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false), ShowSymbol: opts.Bool(true)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: LevelColor(a.RiskLevel)}),
	)
	return line
}

// HistoryChart draws one bar per analysis, coloured by level, oldest first.
func HistoryChart(history []*analysis.RiskAnalysis) *charts.Bar {
	x := make([]string, len(history))
	y := make([]opts.BarData, len(history))
	for i, a := range history {
		x[i] = fmt.Sprintf("%s\n%s", a.Source, a.Timestamp.Format("2006-01-02 15:04"))
		y[i] = opts.BarData{
			Name:      a.Location,
			Value:     a.RiskScore,
			ItemStyle: &opts.ItemStyle{Color: LevelColor(a.RiskLevel)},
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Risk history", Width: "100%", Height: "560px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Risk history", Subtitle: fmt.Sprintf("%d analyses", len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Risk score", Min: 0, Max: 100}),
	)
	bar.SetXAxis(x).AddSeries("risk score", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// RenderAnalysisPage writes an HTML page with the score chart of a.
func RenderAnalysisPage(w io.Writer, a *analysis.RiskAnalysis) error {
	return renderPage(w, ScoreChart(a))
}

// RenderHistoryPage writes an HTML page with the history bar chart.
func RenderHistoryPage(w io.Writer, history []*analysis.RiskAnalysis) error {
	return renderPage(w, HistoryChart(history))
}

func renderPage(w io.Writer, c components.Charter) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(c)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
