package pack

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dlg0/agent-zero/internal/assumptions"
)

// Column sets for the three CSV tables. Column presence is a validation
// issue; a present column that fails to parse is a load error.
var (
	assumptionsCols = []string{"param", "region", "sector", "tech", "year", "value", "unit", "source"}
	policyCols      = []string{"region", "year", "policy_type", "value", "unit"}
	patchCols       = []string{"target", "param", "region", "sector", "tech", "year", "operation", "value", "unit", "rationale"}
)

// csvTable is a CSV file with named-column access. Unknown columns are
// ignored so packs may carry extra annotations.
type csvTable struct {
	path    string
	cols    map[string]int
	records [][]string
}

func readCSVTable(path string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &csvTable{path: path, cols: map[string]int{}}
	if len(all) == 0 {
		return t, nil
	}
	for i, name := range all[0] {
		t.cols[strings.TrimSpace(name)] = i
	}
	t.records = all[1:]
	return t, nil
}

func (t *csvTable) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// missing reports which of the wanted columns the file lacks.
func (t *csvTable) missing(wanted []string) []string {
	var out []string
	for _, c := range wanted {
		if !t.has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (t *csvTable) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *csvTable) getFloat(rec []string, line int, col string) (float64, error) {
	s := t.get(rec, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %q is not a number", t.path, line, col, s)
	}
	return v, nil
}

func (t *csvTable) getInt(rec []string, line int, col string) (int, error) {
	s := t.get(rec, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %q is not an integer", t.path, line, col, s)
	}
	return v, nil
}

func readAssumptionsCSV(path string) ([]assumptions.Row, []string, error) {
	t, err := readCSVTable(path)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]assumptions.Row, 0, len(t.records))
	for n, rec := range t.records {
		line := n + 2
		year, err := t.getInt(rec, line, "year")
		if err != nil {
			return nil, nil, err
		}
		value, err := t.getFloat(rec, line, "value")
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, assumptions.Row{
			Param:  t.get(rec, "param"),
			Region: t.get(rec, "region"),
			Sector: t.get(rec, "sector"),
			Tech:   t.get(rec, "tech"),
			Year:   year,
			Value:  value,
			Unit:   t.get(rec, "unit"),
			Source: t.get(rec, "source"),
		})
	}
	return rows, t.missing(assumptionsCols), nil
}

// readPolicyCSV maps policy rows onto assumption rows with policy_type
// as the param and region as the only dimension, so the same resolver
// serves both tables.
func readPolicyCSV(path string) ([]assumptions.Row, []string, error) {
	t, err := readCSVTable(path)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]assumptions.Row, 0, len(t.records))
	for n, rec := range t.records {
		line := n + 2
		year, err := t.getInt(rec, line, "year")
		if err != nil {
			return nil, nil, err
		}
		value, err := t.getFloat(rec, line, "value")
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, assumptions.Row{
			Param:  t.get(rec, "policy_type"),
			Region: t.get(rec, "region"),
			Year:   year,
			Value:  value,
			Unit:   t.get(rec, "unit"),
		})
	}
	return rows, t.missing(policyCols), nil
}

func readPatchesCSV(path string) ([]assumptions.Patch, []string, error) {
	t, err := readCSVTable(path)
	if err != nil {
		return nil, nil, err
	}
	patches := make([]assumptions.Patch, 0, len(t.records))
	for n, rec := range t.records {
		line := n + 2
		value, err := t.getFloat(rec, line, "value")
		if err != nil {
			return nil, nil, err
		}
		var year *int
		if s := t.get(rec, "year"); s != "" {
			y, err := t.getInt(rec, line, "year")
			if err != nil {
				return nil, nil, err
			}
			year = &y
		}
		patches = append(patches, assumptions.Patch{
			Target:    t.get(rec, "target"),
			Param:     t.get(rec, "param"),
			Region:    t.get(rec, "region"),
			Sector:    t.get(rec, "sector"),
			Tech:      t.get(rec, "tech"),
			Year:      year,
			Op:        assumptions.Op(t.get(rec, "operation")),
			Value:     value,
			Unit:      t.get(rec, "unit"),
			Rationale: t.get(rec, "rationale"),
		})
	}
	return patches, t.missing(patchCols), nil
}
