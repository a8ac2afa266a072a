// Package chart lays out and renders the category pie chart.
//
// Slices follow the usual spreadsheet convention: the first category starts
// at twelve o'clock and slices run counter-clockwise, each labelled with its
// share as a percentage with one decimal.
package chart

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

const (
	// DefaultTitle is the heading drawn above the chart.
	DefaultTitle = "Expense Distribution by Category"

	startAngle = 90.0
	size       = 360.0
	radius     = 120.0
	margin     = 60.0
)

// palette is the ten-colour qualitative scheme most plotting tools default to.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Slice is one category's wedge. Angles are in degrees, counter-clockwise
// from three o'clock.
type Slice struct {
	Name    string
	Amount  decimal.Decimal
	Percent float64
	Start   float64
	End     float64
	Color   string
}

// Label is the percentage text drawn inside the wedge.
func (s Slice) Label() string {
	return fmt.Sprintf("%.1f%%", s.Percent)
}

// Pie turns category totals into wedges. Only positive totals can be drawn;
// core.ErrNoData is returned when none remain.
func Pie(totals []core.CategoryAmount) ([]Slice, error) {
	sum := decimal.Zero
	var positive []core.CategoryAmount
	for _, t := range totals {
		if t.Amount.IsPositive() {
			positive = append(positive, t)
			sum = sum.Add(t.Amount)
		}
	}
	if len(positive) == 0 {
		return nil, core.ErrNoData
	}

	slices := make([]Slice, 0, len(positive))
	angle := startAngle
	for i, t := range positive {
		frac := t.Amount.Div(sum).InexactFloat64()
		s := Slice{
			Name:    t.Name,
			Amount:  t.Amount,
			Percent: frac * 100,
			Start:   angle,
			End:     angle + frac*360,
			Color:   palette[i%len(palette)],
		}
		angle = s.End
		slices = append(slices, s)
	}
	// Close the circle exactly despite float drift.
	slices[len(slices)-1].End = startAngle + 360
	return slices, nil
}

// point maps a polar angle to SVG coordinates (y grows downwards).
func point(cx, cy, r, deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return cx + r*math.Cos(rad), cy - r*math.Sin(rad)
}

// Path returns the SVG path data for the wedge of a pie centred at cx, cy.
func (s Slice) Path(cx, cy, r float64) string {
	x0, y0 := point(cx, cy, r, s.Start)
	x1, y1 := point(cx, cy, r, s.End)
	large := 0
	if s.End-s.Start > 180 {
		large = 1
	}
	// sweep-flag 0 draws counter-clockwise on screen
	return fmt.Sprintf("M %.2f %.2f L %.2f %.2f A %.2f %.2f 0 %d 0 %.2f %.2f Z",
		cx, cy, x0, y0, r, r, large, x1, y1)
}

// RenderSVG writes a standalone SVG document of the chart.
func RenderSVG(w io.Writer, title string, slices []Slice) error {
	if len(slices) == 0 {
		return core.ErrNoData
	}
	full := size + 2*margin
	cx, cy := full/2, full/2+10

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="pie-chart" viewBox="0 0 %.0f %.0f" role="img" aria-label="%s">`,
		full, full, html.EscapeString(title))
	fmt.Fprintf(&b, `<text x="%.2f" y="24" text-anchor="middle" class="pie-title">%s</text>`, cx, html.EscapeString(title))

	for _, s := range slices {
		if len(slices) == 1 {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>`, cx, cy, radius, s.Color)
		} else {
			fmt.Fprintf(&b, `<path d="%s" fill="%s"/>`, s.Path(cx, cy, radius), s.Color)
		}
	}
	for _, s := range slices {
		mid := (s.Start + s.End) / 2
		px, py := point(cx, cy, radius*0.6, mid)
		lx, ly := point(cx, cy, radius*1.15, mid)
		anchor := "start"
		if lx < cx-1 {
			anchor = "end"
		} else if math.Abs(lx-cx) <= 1 {
			anchor = "middle"
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" text-anchor="middle" dominant-baseline="middle" class="pie-pct">%s</text>`,
			px, py, html.EscapeString(s.Label()))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" text-anchor="%s" dominant-baseline="middle" class="pie-label">%s</text>`,
			lx, ly, anchor, html.EscapeString(s.Name))
	}
	b.WriteString(`</svg>`)

	_, err := io.WriteString(w, b.String())
	return err
}
