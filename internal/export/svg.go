// Package export renders stored runs as standalone SVG charts.
package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/san-kum/motorkit/internal/sim"
)

type Point struct{ X, Y float64 }

// Series is one line on a chart.
type Series struct {
	Name   string
	Color  string
	Points []Point
}

// ChartSVG draws every series on shared axes. Series with fewer than two
// points are skipped; if none remain the result is empty.
func ChartSVG(series []Series, width, height int) string {
	var drawn []Series
	for _, s := range series {
		if len(s.Points) >= 2 {
			drawn = append(drawn, s)
		}
	}
	if len(drawn) == 0 {
		return ""
	}

	minX, maxX := drawn[0].Points[0].X, drawn[0].Points[0].X
	minY, maxY := drawn[0].Points[0].Y, drawn[0].Points[0].Y
	for _, s := range drawn {
		for _, p := range s.Points {
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		}
	}

	// Pad vertically so flat lines sit inside the frame.
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, s := range drawn {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, s.Color))
		for j, p := range s.Points {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
		sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, s.Color, html.EscapeString(s.Name)))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// RunSVG charts measured value and target against time in seconds.
func RunSVG(samples []sim.Sample, width, height int) string {
	measured := Series{Name: "measured", Color: "#00ff88", Points: make([]Point, len(samples))}
	target := Series{Name: "target", Color: "#ffcc00", Points: make([]Point, len(samples))}
	for i, s := range samples {
		t := float64(s.TimeMs) / 1000
		measured.Points[i] = Point{t, s.Measured}
		target.Points[i] = Point{t, s.Target}
	}
	return ChartSVG([]Series{measured, target}, width, height)
}
