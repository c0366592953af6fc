package chart

import (
	"context"
	"errors"
	"math"
	"testing"

	"insightsnap/internal/table"
)

func newTable(t *testing.T, header []string, rows [][]string) *table.Table {
	t.Helper()
	tbl, err := table.New(header, rows)
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	return tbl
}

func TestScatterWithTrend(t *testing.T) {
	tbl := newTable(t, []string{"x", "y"}, [][]string{{"1", "3"}, {"2", "5"}, {"3", "7"}})
	fig, err := Plotly{}.Scatter(context.Background(), ScatterRequest{Table: tbl, X: 0, Y: 1, Trend: true, Title: "Data Visualization"})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if len(fig.Data) != 2 {
		t.Fatalf("expected markers and trend traces, got %d", len(fig.Data))
	}
	if fig.Data[0].Mode != "markers" || fig.Data[1].Mode != "lines" {
		t.Fatalf("trace modes = %s, %s", fig.Data[0].Mode, fig.Data[1].Mode)
	}
	if fig.Trend == nil {
		t.Fatalf("trend missing")
	}
	if math.Abs(fig.Trend.Slope-2) > 1e-9 || math.Abs(fig.Trend.Intercept-1) > 1e-9 {
		t.Fatalf("trend = %+v, want y = 1 + 2x", fig.Trend)
	}
	if math.Abs(fig.Trend.RSquared-1) > 1e-9 {
		t.Fatalf("r2 = %v", fig.Trend.RSquared)
	}
	if fig.Layout.XAxis.Title.Text != "x" || fig.Layout.YAxis.Title.Text != "y" {
		t.Fatalf("axis titles = %+v", fig.Layout)
	}
}

func TestScatterDropsMissingPoints(t *testing.T) {
	tbl := newTable(t, []string{"x", "y"}, [][]string{{"1", ""}, {"2", "4"}, {"3", "6"}})
	fig, err := Plotly{}.Scatter(context.Background(), ScatterRequest{Table: tbl, X: 0, Y: 1})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if len(fig.Data) != 1 || len(fig.Data[0].X) != 2 {
		t.Fatalf("unexpected traces: %+v", fig.Data)
	}
	if fig.Trend != nil {
		t.Fatalf("trend drawn without being requested")
	}
}

func TestScatterSkipsDegenerateTrend(t *testing.T) {
	tbl := newTable(t, []string{"x", "y"}, [][]string{{"1", "1"}, {"1", "2"}})
	fig, err := Plotly{}.Scatter(context.Background(), ScatterRequest{Table: tbl, X: 0, Y: 1, Trend: true})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if fig.Trend != nil || len(fig.Data) != 1 {
		t.Fatalf("constant x should not produce a trend: %+v", fig)
	}
}

func TestScatterErrors(t *testing.T) {
	tbl := newTable(t, []string{"x", "y"}, [][]string{{"", "1"}})
	if _, err := (Plotly{}).Scatter(context.Background(), ScatterRequest{Table: tbl, X: 0, Y: 1}); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("err = %v, want ErrNoPoints", err)
	}
	if _, err := (Plotly{}).Scatter(context.Background(), ScatterRequest{Table: tbl, X: 0, Y: 5}); err == nil {
		t.Fatalf("expected out of range error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Plotly{}).Scatter(ctx, ScatterRequest{Table: tbl, X: 0, Y: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
