package pack

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/dlg0/agent-zero/internal/assumptions"
)

// WriteAssumptionsCSV writes a resolved assumptions table in the same
// column layout the loader reads. Rows come out in canonical order, so
// rebuilding the same inputs yields a byte-identical file.
func WriteAssumptionsCSV(path string, t *assumptions.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(assumptionsCols); err != nil {
		f.Close()
		return err
	}
	for _, r := range t.Sorted() {
		rec := []string{
			r.Param,
			r.Region,
			r.Sector,
			r.Tech,
			strconv.Itoa(r.Year),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.Unit,
			r.Source,
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
