// Package analysis computes derived views over run results: per-market
// price statistics, baseline/scenario summary deltas and a ranking of
// the markets that moved most between two runs.
package analysis

import (
	"math"
	"sort"

	"github.com/dlg0/agent-zero/internal/sim"
)

// MarketStats summarizes one market's price path over a run.
type MarketStats struct {
	Region    string `json:"region"`
	Commodity string `json:"commodity"`

	Count int `json:"count"`

	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	MeanPrice float64 `json:"mean_price"`
	P05Price  float64 `json:"p05_price"`
	P95Price  float64 `json:"p95_price"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`
}

// ComputeMarketStats groups timeseries rows by (region, commodity) and
// summarizes each market's price path. Markets come back sorted by
// region then commodity.
func ComputeMarketStats(rows []sim.TimeseriesRow) []MarketStats {
	type key struct{ region, commodity string }
	prices := map[key][]float64{}
	for _, r := range rows {
		k := key{r.Region, r.Commodity}
		prices[k] = append(prices[k], r.Price)
	}

	out := make([]MarketStats, 0, len(prices))
	for k, vals := range prices {
		s := MarketStats{Region: k.region, Commodity: k.commodity, Count: len(vals)}
		sum := 0.0
		minv := math.Inf(1)
		maxv := math.Inf(-1)
		for _, v := range vals {
			sum += v
			if v < minv {
				minv = v
			}
			if v > maxv {
				maxv = v
			}
		}
		sort.Float64s(vals)
		s.MinPrice = minv
		s.MaxPrice = maxv
		s.MeanPrice = sum / float64(len(vals))
		s.P05Price = percentileSorted(vals, 0.05)
		s.P95Price = percentileSorted(vals, 0.95)
		s.SpreadP95P05 = s.P95Price - s.P05Price
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
