package table

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func mustTable(t *testing.T, header []string, rows [][]string) *Table {
	t.Helper()
	tbl, err := New(header, rows)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func TestWithColumnAppendsWithoutMutating(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})
	out, err := tbl.WithColumn("prediction_label", []string{"2.1", "3.9"})
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if out.NumCols() != 3 || tbl.NumCols() != 2 {
		t.Fatalf("cols out=%d orig=%d", out.NumCols(), tbl.NumCols())
	}
	if len(tbl.Rows[0]) != 2 {
		t.Fatalf("original row mutated: %v", tbl.Rows[0])
	}
	if out.Columns[2].Kind != KindFloat {
		t.Fatalf("appended kind = %s", out.Columns[2].Kind)
	}
	if _, err := tbl.WithColumn("a", []string{"1", "2"}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("duplicate column err = %v", err)
	}
	if _, err := tbl.WithColumn("c", []string{"1"}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("short column err = %v", err)
	}
}

func TestFloatColumnUsesNaNForMissing(t *testing.T) {
	tbl := mustTable(t, []string{"x", "y"}, [][]string{{"1", "NA"}, {"2", "3"}})
	ys := tbl.FloatColumn(1)
	if !math.IsNaN(ys[0]) || ys[1] != 3 {
		t.Fatalf("ys = %v", ys)
	}
}

func TestMarshalJSON(t *testing.T) {
	tbl := mustTable(t, []string{"n", "s"}, [][]string{{"1", "x"}, {"", "y"}})
	data, err := json.Marshal(tbl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Columns []Column `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[1][0] != nil || got.Rows[0][1] != "x" {
		t.Fatalf("rows = %#v", got.Rows)
	}
}

func TestPolicies(t *testing.T) {
	tbl := mustTable(t, []string{"name", "x", "y", "label"}, [][]string{{"a", "1", "2", "red"}, {"b", "3", "4", "blue"}})

	if _, err := (Positional{}).Target(tbl); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("string target err = %v", err)
	}
	idx, err := Named{Column: "y"}.Target(tbl)
	if err != nil || idx != 2 {
		t.Fatalf("named target = %d, %v", idx, err)
	}
	if _, err := (Named{Column: "missing"}).Target(tbl); !errors.Is(err, ErrColumnMissing) {
		t.Fatalf("missing target err = %v", err)
	}
	x, y, ok := Positional{}.Axes(tbl)
	if !ok || x != 1 || y != 2 {
		t.Fatalf("axes = %d,%d,%v", x, y, ok)
	}

	single := mustTable(t, []string{"v"}, [][]string{{"1"}})
	if _, err := (Positional{}).Target(single); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("single column err = %v", err)
	}
	if _, _, ok := (Positional{}).Axes(single); ok {
		t.Fatalf("single column has no axes")
	}

	if _, ok := PolicyFor("").(Positional); !ok {
		t.Fatalf("empty target should select Positional")
	}
	if p, ok := PolicyFor("y").(Named); !ok || p.Column != "y" {
		t.Fatalf("PolicyFor(y) = %#v", PolicyFor("y"))
	}
}
