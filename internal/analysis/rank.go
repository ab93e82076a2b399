package analysis

import (
	"math"
	"sort"

	"github.com/dlg0/agent-zero/internal/sim"
)

// Driver scores how strongly one market moved between a baseline run and
// a scenario run. Score sums the relative magnitudes of the price,
// emissions and supply changes, so a market that doubled its price
// outranks one that moved a large absolute amount off a huge base.
type Driver struct {
	Region    string `json:"region"`
	Commodity string `json:"commodity"`

	PriceDelta     float64 `json:"price_delta"`
	EmissionsDelta float64 `json:"emissions_delta"`
	SupplyDelta    float64 `json:"supply_delta"`

	Score float64 `json:"score"`
}

type marketTotals struct {
	priceSum  float64
	priceN    int
	emissions float64
	supply    float64
}

func (m marketTotals) meanPrice() float64 {
	if m.priceN == 0 {
		return 0
	}
	return m.priceSum / float64(m.priceN)
}

// RankDrivers compares two runs' timeseries and ranks markets by how
// much they changed, strongest first. Markets present in only one run
// still rank; the missing side counts as zero.
func RankDrivers(baseline, scenario []sim.TimeseriesRow) []Driver {
	type key struct{ region, commodity string }
	base := map[key]marketTotals{}
	scen := map[key]marketTotals{}
	accumulate := func(into map[key]marketTotals, rows []sim.TimeseriesRow) {
		for _, r := range rows {
			k := key{r.Region, r.Commodity}
			t := into[k]
			t.priceSum += r.Price
			t.priceN++
			t.emissions += r.Emissions
			t.supply += r.Supply
			into[k] = t
		}
	}
	accumulate(base, baseline)
	accumulate(scen, scenario)

	keys := map[key]bool{}
	for k := range base {
		keys[k] = true
	}
	for k := range scen {
		keys[k] = true
	}

	out := make([]Driver, 0, len(keys))
	for k := range keys {
		b, s := base[k], scen[k]
		d := Driver{
			Region:         k.region,
			Commodity:      k.commodity,
			PriceDelta:     s.meanPrice() - b.meanPrice(),
			EmissionsDelta: s.emissions - b.emissions,
			SupplyDelta:    s.supply - b.supply,
		}
		d.Score = relative(d.PriceDelta, b.meanPrice()) +
			relative(d.EmissionsDelta, b.emissions) +
			relative(d.SupplyDelta, b.supply)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}

// relative normalizes a change against its baseline magnitude. The floor
// of 1 keeps near-zero bases from dominating every ranking.
func relative(delta, base float64) float64 {
	return math.Abs(delta) / math.Max(math.Abs(base), 1)
}
