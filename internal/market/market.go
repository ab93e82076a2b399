package market

import (
	"fmt"
	"math"
	"sort"

	"github.com/dlg0/agent-zero/internal/decision"
)

// Key addresses one market: a commodity traded within a region.
type Key struct {
	Region    string
	Commodity string
}

// Row is the cleared outcome for one market in one year.
type Row struct {
	Region    string
	Commodity string
	Price     float64
	Demand    float64
	Supply    float64
	Emissions float64
	Shortage  bool
}

// State is the full market outcome for one year. States are rebuilt
// from scratch each step; nothing mutates a prior year's state.
type State struct {
	Year   int
	rows   map[Key]Row
	carbon map[string]float64
}

// NewState builds the pre-simulation seed state from reference prices
// and the start-year carbon schedule.
func NewState(year int, prices map[Key]float64, carbon map[string]float64) State {
	s := State{Year: year, rows: make(map[Key]Row, len(prices)), carbon: carbon}
	for k, p := range prices {
		s.rows[k] = Row{Region: k.Region, Commodity: k.Commodity, Price: p}
	}
	if s.carbon == nil {
		s.carbon = map[string]float64{}
	}
	return s
}

// Price returns the clearing price for a market, falling back to zero
// for a market that has never cleared.
func (s State) Price(region, commodity string) float64 {
	return s.rows[Key{region, commodity}].Price
}

// CarbonPrice returns the administered carbon price for a region.
func (s State) CarbonPrice(region string) float64 {
	if v, ok := s.carbon[region]; ok {
		return v
	}
	return s.carbon[""]
}

// Rows returns all market rows sorted by region then commodity. Output
// code iterates this, never the map.
func (s State) Rows() []Row {
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}

// RegionEmissions sums the commodity rows for one region.
func (s State) RegionEmissions(region string) float64 {
	total := 0.0
	for _, r := range s.rows {
		if r.Region == region {
			total += r.Emissions
		}
	}
	return total
}

// TotalEmissions sums every market row for the year.
func (s State) TotalEmissions() float64 {
	total := 0.0
	for _, r := range s.rows {
		total += r.Emissions
	}
	return total
}

// PriceAdjustFunc steps a market price from its prior value given the
// year's aggregate supply and demand. Implementations must return a
// finite, non-negative price.
type PriceAdjustFunc func(prior, supply, demand float64) float64

// ProportionalAdjust moves the price by rate times the normalized
// demand-supply gap: next = prior * (1 + rate*(demand-supply)/max(demand,supply)),
// clamped to floor. The gap lives in [-1, 1], so a balanced market holds
// its price and the step never exceeds rate regardless of market size.
func ProportionalAdjust(rate, floor float64) PriceAdjustFunc {
	return func(prior, supply, demand float64) float64 {
		next := prior
		if scale := math.Max(demand, supply); scale > 0 {
			gap := (demand - supply) / scale
			next = prior * (1 + rate*gap)
		}
		return math.Max(next, floor)
	}
}

// Clearing aggregates agent proposals into cleared markets.
type Clearing struct {
	adjust PriceAdjustFunc
}

func NewClearing(adjust PriceAdjustFunc) *Clearing {
	if adjust == nil {
		adjust = ProportionalAdjust(0.05, 0)
	}
	return &Clearing{adjust: adjust}
}

// Clear computes the year's market state from the prior state and the
// applied proposals. exoDemand supplies the exogenous demand for a
// market; carbon supplies the region's administered carbon price for
// the clearing year. Aggregation is a commutative sum, so proposal
// order does not affect the result.
func (c *Clearing) Clear(
	year int,
	prior State,
	proposals []decision.Proposal,
	exoDemand func(region, commodity string) float64,
	carbon func(region string) float64,
) (State, error) {
	next := State{Year: year, rows: make(map[Key]Row, len(prior.rows)), carbon: map[string]float64{}}

	// Every previously known market stays active; proposals can open
	// new ones.
	active := make(map[Key]bool, len(prior.rows))
	for k := range prior.rows {
		active[k] = true
	}

	supply := map[Key]float64{}
	demand := map[Key]float64{}
	emissions := map[Key]float64{}
	for _, p := range proposals {
		if p.Commodity == "" {
			continue
		}
		k := Key{p.Region, p.Commodity}
		active[k] = true
		supply[k] += p.Supply
		demand[k] += p.Demand
		emissions[k] += p.Emissions
	}

	regions := map[string]bool{}
	for k := range active {
		regions[k.Region] = true

		s := supply[k]
		d := demand[k] + exoDemand(k.Region, k.Commodity)
		price := c.adjust(prior.rows[k].Price, s, d)
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return State{}, fmt.Errorf("market %s/%s year %d: non-finite price", k.Region, k.Commodity, year)
		}
		if price < 0 {
			return State{}, fmt.Errorf("market %s/%s year %d: negative price %v", k.Region, k.Commodity, year, price)
		}
		next.rows[k] = Row{
			Region:    k.Region,
			Commodity: k.Commodity,
			Price:     price,
			Demand:    d,
			Supply:    s,
			Emissions: emissions[k],
			Shortage:  d > s,
		}
	}
	for r := range regions {
		next.carbon[r] = carbon(r)
	}
	return next, nil
}
