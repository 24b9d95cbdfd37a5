// Package report renders per-frame and historical risk charts: PNG via
// gonum/plot for the CLI, HTML via go-echarts for the web server.
package report

import (
	"image/color"

	"github.com/banshee-data/risk.report/internal/risk"
)

// AssetsHost serves the echarts javascript bundle.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// levelColors are the hex colours used for each risk level.
var levelColors = map[risk.Level]string{
	risk.LevelLow:      "#2e7d32",
	risk.LevelMedium:   "#f9a825",
	risk.LevelHigh:     "#ef6c00",
	risk.LevelCritical: "#c62828",
}

// LevelColor returns the hex colour for level, grey when unknown.
func LevelColor(level risk.Level) string {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return "#757575"
}

// levelRGBA converts LevelColor to an image colour.
func levelRGBA(level risk.Level) color.RGBA {
	hex := LevelColor(level)
	var rgb [3]uint8
	for i := range rgb {
		rgb[i] = hexByte(hex[1+2*i], hex[2+2*i])
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexByte(hi, lo byte) uint8 {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
