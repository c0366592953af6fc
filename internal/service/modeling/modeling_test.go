package modeling

import (
	"context"
	"errors"
	"strings"
	"testing"

	"insightsnap/internal/automl"
	"insightsnap/internal/chart"
	"insightsnap/internal/table"
)

type recordingCharter struct {
	calls []chart.ScatterRequest
	err   error
}

func (r *recordingCharter) Scatter(ctx context.Context, req chart.ScatterRequest) (*chart.Figure, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return chart.Plotly{}.Scatter(ctx, req)
}

type failingModeler struct {
	fitErr      error
	predictions *table.Table
}

func (f failingModeler) Fit(context.Context, automl.FitRequest) (*automl.Model, error) {
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return &automl.Model{ID: "m1", Name: "stub"}, nil
}

func (f failingModeler) Predict(context.Context, *automl.Model, *table.Table) (*table.Table, error) {
	return f.predictions, nil
}

func parse(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.Parse("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tbl
}

func TestRunRoundTrip(t *testing.T) {
	tbl := parse(t, "a,b\n1,2\n3,4\n5,6\n")
	charter := &recordingCharter{}
	a := NewAdapter(automl.Baseline{}, charter, 42, nil)

	res, err := a.Run(context.Background(), tbl, table.Positional{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Target != "b" {
		t.Fatalf("target = %q, want b", res.Target)
	}
	if res.Predictions.NumRows() != 3 || res.Predictions.NumCols() != 3 {
		t.Fatalf("predictions shape = %dx%d", res.Predictions.NumRows(), res.Predictions.NumCols())
	}
	if got := res.Predictions.Names()[2]; got != automl.PredictionColumn {
		t.Fatalf("appended column = %q", got)
	}
	if len(charter.calls) != 1 {
		t.Fatalf("charter calls = %d", len(charter.calls))
	}
	req := charter.calls[0]
	if req.X != 0 || req.Y != 1 || !req.Trend || req.Title != ChartTitle {
		t.Fatalf("scatter request = %+v", req)
	}
	if res.Chart == nil || res.Chart.Trend == nil {
		t.Fatalf("expected chart with trend")
	}
}

func TestRunSkipsChartWithoutTwoNumericColumns(t *testing.T) {
	tbl := parse(t, "name,score\nann,1\nbob,2\ncid,4\n")
	charter := &recordingCharter{}
	a := NewAdapter(automl.Baseline{}, charter, 42, nil)

	res, err := a.Run(context.Background(), tbl, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(charter.calls) != 0 {
		t.Fatalf("charter called %d times", len(charter.calls))
	}
	if res.Chart != nil {
		t.Fatalf("expected no chart")
	}
	if res.Predictions.NumRows() != 3 {
		t.Fatalf("predictions rows = %d", res.Predictions.NumRows())
	}
}

func TestRunFitFailureSkipsChart(t *testing.T) {
	boom := errors.New("engine down")
	charter := &recordingCharter{}
	a := NewAdapter(failingModeler{fitErr: boom}, charter, 42, nil)

	res, err := a.Run(context.Background(), parse(t, "a,b\n1,2\n3,4\n"), table.Positional{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if res != nil {
		t.Fatalf("partial result returned")
	}
	if len(charter.calls) != 0 {
		t.Fatalf("charter called after fit failure")
	}
}

func TestRunRejectsMalformedPredictions(t *testing.T) {
	tbl := parse(t, "a,b\n1,2\n3,4\n")
	short := parse(t, "a,b,prediction_label\n1,2,2\n")
	charter := &recordingCharter{}
	a := NewAdapter(failingModeler{predictions: short}, charter, 42, nil)

	if _, err := a.Run(context.Background(), tbl, table.Positional{}); !errors.Is(err, automl.ErrBadPredictions) {
		t.Fatalf("err = %v", err)
	}
	if len(charter.calls) != 0 {
		t.Fatalf("charter called after bad predictions")
	}
}

func TestRunChartFailureAbortsPass(t *testing.T) {
	boom := errors.New("renderer crashed")
	a := NewAdapter(automl.Baseline{}, &recordingCharter{err: boom}, 42, nil)
	res, err := a.Run(context.Background(), parse(t, "a,b\n1,2\n3,4\n5,7\n"), table.Positional{})
	if !errors.Is(err, boom) || res != nil {
		t.Fatalf("res = %v err = %v", res, err)
	}
}

func TestRunValidatesTarget(t *testing.T) {
	a := NewAdapter(automl.Baseline{}, &recordingCharter{}, 42, nil)
	tbl := parse(t, "x,label\n1,cat\n2,dog\n")

	if _, err := a.Run(context.Background(), tbl, table.Positional{}); !errors.Is(err, table.ErrInvalidTarget) {
		t.Fatalf("string target err = %v", err)
	}
	if _, err := a.Run(context.Background(), tbl, table.Named{Column: "missing"}); !errors.Is(err, table.ErrInvalidTarget) {
		t.Fatalf("missing target err = %v", err)
	}
}

func TestRunNamedTarget(t *testing.T) {
	tbl := parse(t, "a,b,c\n1,2,9\n2,4,8\n3,6,7\n4,8,5\n")
	a := NewAdapter(automl.Baseline{}, &recordingCharter{}, 42, nil)
	res, err := a.Run(context.Background(), tbl, table.Named{Column: "a"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Target != "a" {
		t.Fatalf("target = %q", res.Target)
	}
}
