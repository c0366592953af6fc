package automl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"insightsnap/internal/table"
)

const baselineEngine = "baseline"

var ErrInsufficientRows = errors.New("not enough complete rows to fit")

// Baseline fits a single ordinary-least-squares model over the numeric feature
// columns. It performs no search and is used when no AutoML endpoint is configured.
type Baseline struct{}

type linearState struct {
	features []string
	coef     []float64 // intercept first
	means    []float64
}

// Fit solves the least-squares problem with an SVD so collinear features still
// produce a minimum-norm solution.
func (Baseline) Fit(ctx context.Context, req FitRequest) (*Model, error) {
	if err := validateFit(req); err != nil {
		return nil, err
	}
	t := req.Table
	if !t.Columns[req.Target].Numeric() {
		return nil, fmt.Errorf("baseline regression needs a numeric target, %q is %s", t.Columns[req.Target].Name, t.Columns[req.Target].Kind)
	}

	var features []int
	for _, idx := range t.NumericColumns() {
		if idx != req.Target {
			features = append(features, idx)
		}
	}

	means := make([]float64, len(features))
	for j, col := range features {
		means[j] = columnMean(t.FloatColumn(col))
	}

	var rows [][]float64
	var ys []float64
	for i := 0; i < t.NumRows(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y, ok := t.Float(i, req.Target)
		if !ok || math.IsInf(y, 0) {
			continue
		}
		row := make([]float64, len(features)+1)
		row[0] = 1
		for j, col := range features {
			v, ok := t.Float(i, col)
			if !ok || math.IsInf(v, 0) {
				v = means[j]
			}
			row[j+1] = v
		}
		rows = append(rows, row)
		ys = append(ys, y)
	}
	if len(rows) == 0 {
		return nil, ErrInsufficientRows
	}

	a := mat.NewDense(len(rows), len(features)+1, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	b := mat.NewDense(len(ys), 1, ys)

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("baseline: SVD factorization failed")
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return nil, ErrInsufficientRows
	}
	var x mat.Dense
	svd.SolveTo(&x, b, rank)

	coef := make([]float64, len(features)+1)
	for j := range coef {
		coef[j] = x.At(j, 0)
	}
	names := make([]string, len(features))
	for j, col := range features {
		names[j] = t.Columns[col].Name
	}
	state := &linearState{features: names, coef: coef, means: means}

	return &Model{
		ID:          uuid.NewString(),
		Name:        "Linear Regression",
		Description: describe(t.Columns[req.Target].Name, state, len(rows)),
		engine:      baselineEngine,
		state:       state,
	}, nil
}

// Predict appends PredictionColumn; missing feature values fall back to the training means.
func (Baseline) Predict(ctx context.Context, m *Model, t *table.Table) (*table.Table, error) {
	if m == nil || m.engine != baselineEngine {
		return nil, errors.New("model was not produced by this engine")
	}
	state, ok := m.state.(*linearState)
	if !ok {
		return nil, errors.New("baseline model state missing")
	}
	cols := make([]int, len(state.features))
	for j, name := range state.features {
		cols[j] = t.Index(name)
		if cols[j] < 0 {
			return nil, fmt.Errorf("%w: %q", table.ErrColumnMissing, name)
		}
	}
	labels := make([]string, t.NumRows())
	for i := range labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := state.coef[0]
		for j, col := range cols {
			v, ok := t.Float(i, col)
			if !ok || math.IsInf(v, 0) {
				v = state.means[j]
			}
			y += state.coef[j+1] * v
		}
		labels[i] = strconv.FormatFloat(y, 'g', 10, 64)
	}
	return t.WithColumn(PredictionColumn, labels)
}

func columnMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func describe(target string, s *linearState, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LinearRegression(baseline) predicting %q from ", target)
	if len(s.features) == 0 {
		b.WriteString("no features (mean model)")
	} else {
		b.WriteString(strings.Join(s.features, ", "))
	}
	fmt.Fprintf(&b, "; fitted on %d rows", rows)
	return b.String()
}
