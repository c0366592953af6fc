// Package automl talks to automated model-selection engines. The search itself
// always happens elsewhere; this package only ships tables there and back.
package automl

import (
	"errors"
	"fmt"

	"insightsnap/internal/table"
)

// PredictionColumn is the name of the column Predict appends.
const PredictionColumn = "prediction_label"

var ErrBadPredictions = errors.New("engine returned malformed predictions")

// FitRequest is one model-search run over a table.
type FitRequest struct {
	Table  *table.Table
	Target int
	Seed   int64
}

// Model is an opaque handle to the model an engine selected.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	engine string
	state  any
}

// EngineError is a non-success answer from a remote engine.
type EngineError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("automl %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func validateFit(req FitRequest) error {
	if req.Table == nil {
		return errors.New("table is required")
	}
	if req.Target < 0 || req.Target >= req.Table.NumCols() {
		return fmt.Errorf("target %d out of range", req.Target)
	}
	return nil
}
