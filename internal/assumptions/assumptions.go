package assumptions

import "sort"

// Row is one entry in a dimensioned parameter table.
// Empty Region/Sector/Tech strings mean the row holds at the global level
// for that dimension. Units are free-form but must be consistent for a
// given param across rows.
type Row struct {
	Param  string
	Region string
	Sector string
	Tech   string
	Year   int
	Value  float64
	Unit   string
	Source string
}

// Table is an ordered collection of rows. Order matters only for patch
// application and serialization; lookups go through a Resolver.
type Table struct {
	rows []Row
}

func NewTable(rows []Row) *Table {
	t := &Table{rows: make([]Row, len(rows))}
	copy(t.rows, rows)
	return t
}

// Rows returns a copy of the table contents.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *Table) Len() int { return len(t.rows) }

// Clone returns an independent copy. Patch application never mutates the
// source table.
func (t *Table) Clone() *Table {
	return NewTable(t.rows)
}

// Sorted returns the rows in canonical order (param, region, sector, tech,
// year). Hashing and serialization use this so that row order in the input
// files does not leak into run identity.
func (t *Table) Sorted() []Row {
	out := t.Rows()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Param != b.Param {
			return a.Param < b.Param
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Year < b.Year
	})
	return out
}

// Params returns the distinct param names present in the table, sorted.
func (t *Table) Params() []string {
	seen := map[string]bool{}
	for _, r := range t.rows {
		seen[r.Param] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
