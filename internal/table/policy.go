package table

import (
	"errors"
	"fmt"
)

var ErrInvalidTarget = errors.New("invalid prediction target")

// SelectionPolicy maps a table schema to the columns the modeling pass uses.
type SelectionPolicy interface {
	// Target returns the position of the prediction target.
	Target(t *Table) (int, error)
	// Axes returns the scatter-plot columns; ok is false when the table has no suitable pair.
	Axes(t *Table) (x, y int, ok bool)
}

// Positional treats the last column as the target and plots the first two numeric columns.
type Positional struct{}

func (Positional) Target(t *Table) (int, error) {
	return validateTarget(t, t.NumCols()-1)
}

func (Positional) Axes(t *Table) (int, int, bool) {
	return firstNumericPair(t)
}

// Named selects the target by column name and keeps positional axes.
type Named struct {
	Column string
}

func (n Named) Target(t *Table) (int, error) {
	idx := t.Index(n.Column)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %w: %q", ErrInvalidTarget, ErrColumnMissing, n.Column)
	}
	return validateTarget(t, idx)
}

func (Named) Axes(t *Table) (int, int, bool) {
	return firstNumericPair(t)
}

// PolicyFor returns Named when a target is given and Positional otherwise.
func PolicyFor(target string) SelectionPolicy {
	if target == "" {
		return Positional{}
	}
	return Named{Column: target}
}

// DefaultTarget is the name of the column Positional would pick.
func (t *Table) DefaultTarget() string {
	if t.NumCols() == 0 {
		return ""
	}
	return t.Columns[t.NumCols()-1].Name
}

func validateTarget(t *Table, idx int) (int, error) {
	if t.NumCols() < 2 {
		return -1, fmt.Errorf("%w: need at least one feature column besides the target", ErrInvalidTarget)
	}
	if idx < 0 || idx >= t.NumCols() {
		return -1, fmt.Errorf("%w: column %d out of range", ErrInvalidTarget, idx)
	}
	if col := t.Columns[idx]; !col.Numeric() {
		return -1, fmt.Errorf("%w: %q is %s, regression needs a numeric target", ErrInvalidTarget, col.Name, col.Kind)
	}
	return idx, nil
}

func firstNumericPair(t *Table) (int, int, bool) {
	numeric := t.NumericColumns()
	if len(numeric) < 2 {
		return -1, -1, false
	}
	return numeric[0], numeric[1], true
}
