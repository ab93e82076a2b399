package analysis

import (
	"github.com/dlg0/agent-zero/internal/sim"
)

// Compare computes the baseline-relative change block for a scenario
// run. Per-commodity maps cover the union of both runs' commodities; a
// commodity absent from one side contributes zero on that side.
func Compare(baseline, scenario sim.Summary) sim.SummaryDelta {
	d := sim.SummaryDelta{
		BaselineRunID:       baseline.RunID,
		CumulativeEmissions: scenario.CumulativeEmissions - baseline.CumulativeEmissions,
		PeakEmissions:       scenario.PeakEmissions - baseline.PeakEmissions,
		TotalInvestment:     scenario.TotalInvestment - baseline.TotalInvestment,
		ShortageYears:       scenario.ShortageYears - baseline.ShortageYears,
		AveragePrices:       mapDelta(baseline.AveragePrices, scenario.AveragePrices),
		SupplySecurity:      mapDelta(baseline.SupplySecurity, scenario.SupplySecurity),
	}
	if baseline.YearNetZero != nil && scenario.YearNetZero != nil {
		shift := *scenario.YearNetZero - *baseline.YearNetZero
		d.YearNetZeroShift = &shift
	}
	return d
}

func mapDelta(base, scen map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for k, v := range base {
		out[k] = -v
	}
	for k, v := range scen {
		out[k] += v
	}
	return out
}
