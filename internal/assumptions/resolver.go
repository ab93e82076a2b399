package assumptions

import "sort"

// Value is the result of a resolved lookup.
type Value struct {
	Value  float64
	Unit   string
	Source string
	Year   int // year of the defining row after carry-forward
}

type groupKey struct {
	param  string
	region string
	sector string
	tech   string
}

type yearVal struct {
	year   int
	value  float64
	unit   string
	source string
}

// Resolver answers parameter lookups against a table using a fixed
// specificity order: exact region+sector+tech, then tech only, then sector
// only, then region only, then global. Within the winning group, missing
// years carry forward from the nearest prior defined year; future years
// never apply. Build it once per run; lookups are read-only.
type Resolver struct {
	groups map[groupKey][]yearVal
}

func NewResolver(t *Table) *Resolver {
	r := &Resolver{groups: make(map[groupKey][]yearVal)}
	for _, row := range t.rows {
		k := groupKey{row.Param, row.Region, row.Sector, row.Tech}
		r.groups[k] = append(r.groups[k], yearVal{row.Year, row.Value, row.Unit, row.Source})
	}
	for k := range r.groups {
		vs := r.groups[k]
		sort.Slice(vs, func(i, j int) bool { return vs[i].year < vs[j].year })
		// Later rows win on duplicate years (patch append order).
		dedup := vs[:0]
		for _, v := range vs {
			if n := len(dedup); n > 0 && dedup[n-1].year == v.year {
				dedup[n-1] = v
				continue
			}
			dedup = append(dedup, v)
		}
		r.groups[k] = dedup
	}
	return r
}

// Resolve returns the value for (param, region, sector, tech, year), or
// ok=false when no row at any specificity level applies.
func (r *Resolver) Resolve(param, region, sector, tech string, year int) (Value, bool) {
	levels := [5]groupKey{
		{param, region, sector, tech},
		{param, "", "", tech},
		{param, "", sector, ""},
		{param, region, "", ""},
		{param, "", "", ""},
	}
	var prev groupKey
	for i, k := range levels {
		if i > 0 && k == prev {
			continue
		}
		prev = k
		if v, ok := r.at(k, year); ok {
			return v, true
		}
	}
	return Value{}, false
}

// Lookup is Resolve with a caller-provided default, for params that are
// optional in sparse packs.
func (r *Resolver) Lookup(param, region, sector, tech string, year int, def float64) float64 {
	if v, ok := r.Resolve(param, region, sector, tech, year); ok {
		return v.Value
	}
	return def
}

// Has reports whether the param resolves at all for the given key.
func (r *Resolver) Has(param, region, sector, tech string, year int) bool {
	_, ok := r.Resolve(param, region, sector, tech, year)
	return ok
}

func (r *Resolver) at(k groupKey, year int) (Value, bool) {
	vs, ok := r.groups[k]
	if !ok {
		return Value{}, false
	}
	// Largest defined year <= year. A group holding only future years does
	// not resolve and the next specificity level gets a chance.
	i := sort.Search(len(vs), func(i int) bool { return vs[i].year > year })
	if i == 0 {
		return Value{}, false
	}
	v := vs[i-1]
	return Value{Value: v.value, Unit: v.unit, Source: v.source, Year: v.year}, true
}
