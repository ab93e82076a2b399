package assumptions

import "fmt"

// Op is a patch operation. The set is closed; anything else is a schema
// error.
type Op string

const (
	OpSet      Op = "set"      // overwrite matching rows, append if none match
	OpAdd      Op = "add"      // add Value to matching rows
	OpMultiply Op = "multiply" // scale matching rows by Value
)

// Patch targets.
const (
	TargetAssumptions = "assumptions"
	TargetPolicy      = "policy"
)

// Patch is one scenario override. Empty dimension strings are wildcards
// and match every row value for that dimension; a nil Year matches all
// years. Patches apply in file order so later patches win for the same key.
type Patch struct {
	Target    string
	Param     string
	Region    string
	Sector    string
	Tech      string
	Year      *int
	Op        Op
	Value     float64
	Unit      string
	Rationale string
}

// SchemaError reports malformed or internally inconsistent input data.
// It is always raised before the simulation loop starts.
type SchemaError struct {
	Key    string // offending param/field, e.g. "patch[3] co2_price"
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at %s: %s", e.Key, e.Reason)
}

func (p Patch) matches(r Row) bool {
	if p.Param != r.Param {
		return false
	}
	if p.Region != "" && p.Region != r.Region {
		return false
	}
	if p.Sector != "" && p.Sector != r.Sector {
		return false
	}
	if p.Tech != "" && p.Tech != r.Tech {
		return false
	}
	if p.Year != nil && *p.Year != r.Year {
		return false
	}
	return true
}

// Apply returns a new table with the patches applied in order. The input
// table is not modified. Patches must already be filtered to the table's
// target; Apply does not inspect Patch.Target.
func Apply(t *Table, patches []Patch) (*Table, error) {
	out := t.Clone()
	for i, p := range patches {
		if err := applyOne(out, i, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyOne(t *Table, idx int, p Patch) error {
	key := fmt.Sprintf("patch[%d] %s", idx, p.Param)

	switch p.Op {
	case OpSet, OpAdd, OpMultiply:
	default:
		return &SchemaError{Key: key, Reason: fmt.Sprintf("unknown operation %q", p.Op)}
	}

	matched := 0
	for j := range t.rows {
		r := &t.rows[j]
		if !p.matches(*r) {
			continue
		}
		if p.Unit != "" && r.Unit != "" && p.Unit != r.Unit {
			return &SchemaError{
				Key:    key,
				Reason: fmt.Sprintf("unit %q does not match baseline unit %q", p.Unit, r.Unit),
			}
		}
		matched++
		switch p.Op {
		case OpSet:
			r.Value = p.Value
		case OpAdd:
			r.Value += p.Value
		case OpMultiply:
			r.Value *= p.Value
		}
	}
	if matched > 0 {
		return nil
	}

	// No matching rows. A set appends a fully specified new row; add and
	// multiply against nothing would silently hide a typo in the key.
	if p.Op != OpSet {
		return &SchemaError{Key: key, Reason: fmt.Sprintf("%s matched no baseline rows", p.Op)}
	}
	if p.Year == nil {
		return &SchemaError{Key: key, Reason: "set with no matching rows requires a year"}
	}
	if p.Unit == "" {
		return &SchemaError{Key: key, Reason: "set with no matching rows requires a unit"}
	}
	t.rows = append(t.rows, Row{
		Param:  p.Param,
		Region: p.Region,
		Sector: p.Sector,
		Tech:   p.Tech,
		Year:   *p.Year,
		Value:  p.Value,
		Unit:   p.Unit,
		Source: "patch:" + p.Rationale,
	})
	return nil
}
