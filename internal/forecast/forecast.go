// Package forecast projects commodity prices over an agent's planning
// horizon. Projections are pure functions of the observed price history
// and a trend parameter; no agent can see another agent's forecast.
package forecast

import "math"

// Project returns expected prices for offsets 1..horizon from the last
// observed price: expected(k) = last * (1+trend)^k. The caller seeds the
// history with the reference price before the first simulated year, so a
// run's opening forecast compounds from the reference level.
func Project(history []float64, trend float64, horizon int) []float64 {
	if len(history) == 0 || horizon <= 0 {
		return nil
	}
	last := history[len(history)-1]
	out := make([]float64, horizon)
	for k := 1; k <= horizon; k++ {
		out[k-1] = last * math.Pow(1+trend, float64(k))
	}
	return out
}

// NPV discounts per-unit operating margins over the forecast horizon and
// subtracts capex: sum_k (price_k - opex - intensity*carbon) / (1+dr)^k - capex.
// Pass capex 0 for the operating NPV of an existing base.
func NPV(capex, opex float64, prices []float64, intensity, carbonPrice, discountRate float64) float64 {
	npv := 0.0
	for k, p := range prices {
		margin := p - opex - intensity*carbonPrice
		npv += margin / math.Pow(1+discountRate, float64(k+1))
	}
	return npv - capex
}
