// Package modeling runs one fit, predict and plot pass over an uploaded table.
package modeling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightsnap/internal/automl"
	"insightsnap/internal/chart"
	"insightsnap/internal/table"
)

// ChartTitle is the title every scatter figure carries.
const ChartTitle = "Data Visualization"

// ErrEngine wraps failures reported by the modeling or charting engine.
var ErrEngine = errors.New("engine failed")

// Modeler is an automated model-selection engine.
type Modeler interface {
	Fit(ctx context.Context, req automl.FitRequest) (*automl.Model, error)
	Predict(ctx context.Context, m *automl.Model, t *table.Table) (*table.Table, error)
}

// Charter renders a scatter plot.
type Charter interface {
	Scatter(ctx context.Context, req chart.ScatterRequest) (*chart.Figure, error)
}

// Result holds every output of a pass. It is only returned when all steps succeed.
type Result struct {
	Target      string
	Model       *automl.Model
	Predictions *table.Table
	// Chart is nil when the table has fewer than two numeric columns.
	Chart *chart.Figure
}

type Adapter struct {
	modeler Modeler
	charter Charter
	seed    int64
	logger  *zap.Logger
}

func NewAdapter(modeler Modeler, charter Charter, seed int64, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{modeler: modeler, charter: charter, seed: seed, logger: logger}
}

// Run fits a model on tbl, predicts over the same rows and plots the axes the
// policy picks. The first failing step ends the pass.
func (a *Adapter) Run(ctx context.Context, tbl *table.Table, policy table.SelectionPolicy) (*Result, error) {
	if tbl == nil {
		return nil, table.ErrEmptyTable
	}
	if policy == nil {
		policy = table.Positional{}
	}

	target, err := policy.Target(tbl)
	if err != nil {
		return nil, err
	}
	targetName := tbl.Columns[target].Name

	start := time.Now()
	model, err := a.modeler.Fit(ctx, automl.FitRequest{Table: tbl, Target: target, Seed: a.seed})
	if err != nil {
		return nil, fmt.Errorf("%w: fit: %w", ErrEngine, err)
	}
	a.logger.Info("model fitted",
		zap.String("target", targetName),
		zap.String("model", model.Name),
		zap.Duration("took", time.Since(start)),
	)

	predictions, err := a.modeler.Predict(ctx, model, tbl)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %w", ErrEngine, err)
	}
	if err := checkPredictions(tbl, predictions); err != nil {
		return nil, err
	}

	res := &Result{Target: targetName, Model: model, Predictions: predictions}

	x, y, ok := policy.Axes(tbl)
	if !ok {
		a.logger.Debug("chart skipped", zap.Int("numeric_columns", len(tbl.NumericColumns())))
		return res, nil
	}
	fig, err := a.charter.Scatter(ctx, chart.ScatterRequest{
		Table: tbl,
		X:     x,
		Y:     y,
		Trend: true,
		Title: ChartTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chart: %w", ErrEngine, err)
	}
	res.Chart = fig
	return res, nil
}

func checkPredictions(in, out *table.Table) error {
	if out == nil {
		return fmt.Errorf("%w: no table", automl.ErrBadPredictions)
	}
	if out.NumRows() != in.NumRows() {
		return fmt.Errorf("%w: %d rows, want %d", automl.ErrBadPredictions, out.NumRows(), in.NumRows())
	}
	if out.NumCols() != in.NumCols()+1 {
		return fmt.Errorf("%w: %d columns, want %d", automl.ErrBadPredictions, out.NumCols(), in.NumCols()+1)
	}
	return nil
}
