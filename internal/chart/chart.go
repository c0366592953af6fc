// Package chart builds Plotly figure specs. Rendering happens in the browser with
// plotly.js; this package only shapes the traces.
package chart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"insightsnap/internal/table"
)

var ErrNoPoints = errors.New("no plottable points")

// ScatterRequest asks for an x/y scatter of two table columns.
type ScatterRequest struct {
	Table *table.Table
	X, Y  int
	// Trend adds an ordinary-least-squares line over the points.
	Trend bool
	Title string
}

// Figure is a Plotly figure: {"data": [...], "layout": {...}}.
type Figure struct {
	Data   []Trace    `json:"data"`
	Layout Layout     `json:"layout"`
	Trend  *Trendline `json:"trend,omitempty"`
}

type Trace struct {
	Type string    `json:"type"`
	Mode string    `json:"mode"`
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

type Layout struct {
	Title Text `json:"title"`
	XAxis Axis `json:"xaxis"`
	YAxis Axis `json:"yaxis"`
}

type Axis struct {
	Title Text `json:"title"`
}

type Text struct {
	Text string `json:"text"`
}

// Trendline holds the fitted y = Intercept + Slope*x and its R².
type Trendline struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
}

// Plotly is the default scatter engine.
type Plotly struct{}

// Scatter builds a markers trace and, when requested, an OLS trend trace.
// Rows where either value is missing or non-finite are dropped.
func (Plotly) Scatter(ctx context.Context, req ScatterRequest) (*Figure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := req.Table
	if t == nil {
		return nil, errors.New("table is required")
	}
	if req.X < 0 || req.X >= t.NumCols() || req.Y < 0 || req.Y >= t.NumCols() {
		return nil, fmt.Errorf("axis out of range: x=%d y=%d cols=%d", req.X, req.Y, t.NumCols())
	}

	xs := make([]float64, 0, t.NumRows())
	ys := make([]float64, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		x, okX := t.Float(i, req.X)
		y, okY := t.Float(i, req.Y)
		if !okX || !okY || !finite(x) || !finite(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) == 0 {
		return nil, ErrNoPoints
	}

	xName, yName := t.Columns[req.X].Name, t.Columns[req.Y].Name
	fig := &Figure{
		Data: []Trace{{Type: "scatter", Mode: "markers", Name: yName, X: xs, Y: ys}},
		Layout: Layout{
			Title: Text{Text: req.Title},
			XAxis: Axis{Title: Text{Text: xName}},
			YAxis: Axis{Title: Text{Text: yName}},
		},
	}
	if req.Trend {
		if line, trace, ok := fitTrend(xs, ys); ok {
			fig.Trend = line
			fig.Data = append(fig.Data, trace)
		}
	}
	return fig, nil
}

// fitTrend needs at least two distinct x values; otherwise the slope is undefined.
func fitTrend(xs, ys []float64) (*Trendline, Trace, bool) {
	if len(xs) < 2 {
		return nil, Trace{}, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if !finite(alpha) || !finite(beta) {
		return nil, Trace{}, false
	}
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return nil, Trace{}, false
	}
	trace := Trace{
		Type: "scatter",
		Mode: "lines",
		Name: "OLS trendline",
		X:    []float64{lo, hi},
		Y:    []float64{alpha + beta*lo, alpha + beta*hi},
	}
	return &Trendline{Intercept: alpha, Slope: beta, RSquared: r2}, trace, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
