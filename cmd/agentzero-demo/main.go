// Demo runs a small two-region energy world built entirely in code:
// no packs on disk, no config file. It is the quickest way to see the
// engine clear markets year by year and to sanity-check a change to
// the decision rules.
//
//	go run ./cmd/agentzero-demo
//	go run ./cmd/agentzero-demo --years 2024:2040 --jitter 0.02 --out runs
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/assumptions"
	"github.com/dlg0/agent-zero/internal/bundle"
	"github.com/dlg0/agent-zero/internal/logging"
	"github.com/dlg0/agent-zero/internal/pack"
	"github.com/dlg0/agent-zero/internal/sim"
)

func main() {
	years := flag.String("years", "2024:2035", "year range, inclusive, as start:end")
	seed := flag.Uint64("seed", 42, "entropy seed")
	jitter := flag.Float64("jitter", 0, "demand jitter fraction (0 disables)")
	outDir := flag.String("out", "", "publish the run bundle under this directory")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	yearList, err := sim.ParseYears(*years)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(*logLevel, os.Stderr)
	assum, policy := demoTables()
	catalogue := demoAgents()

	store, err := agent.NewStore(catalogue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := sim.Options{DemandJitter: *jitter}
	clk, err := sim.New(sim.Config{
		Assumptions: assumptions.NewResolver(assum),
		Policy:      assumptions.NewResolver(policy),
		Store:       store,
		Entropy:     sim.NewEntropy(*seed),
		Logger:      log,
		Options:     opts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	res, err := clk.Run(yearList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("agent-zero demo  engine=%s  seed=%d\n", sim.EngineVersion, *seed)
	fmt.Printf("years %d-%d, %d agents, %d market rows\n\n",
		yearList[0], yearList[len(yearList)-1], len(catalogue), len(res.Timeseries))

	fmt.Printf("%-6s %-4s %-12s %10s %10s %10s %12s\n",
		"year", "reg", "commodity", "price", "demand", "supply", "emissions")
	for _, row := range res.Timeseries {
		flag := ""
		if row.Shortage {
			flag = "  SHORT"
		}
		fmt.Printf("%-6d %-4s %-12s %10.2f %10.1f %10.1f %12.1f%s\n",
			row.Year, row.Region, row.Commodity,
			row.Price, row.Demand, row.Supply, row.Emissions, flag)
	}

	sum := res.Summary
	fmt.Printf("\nDone. Cumulative emissions=%.1f tCO2e  Peak=%.1f (%d)  Total investment=%.1f MW  Shortage years=%d\n",
		sum.CumulativeEmissions, sum.PeakEmissions, sum.PeakEmissionsYear,
		sum.TotalInvestment, sum.ShortageYears)

	if *outDir != "" {
		resolved := pack.ResolvedHash(assum, policy, catalogue)
		ref := sim.PackRef{ID: "demo-inline", Version: "0.0.0", Hash: resolved}
		info := sim.NewRunInfo(ref, nil, resolved, yearList, *seed, opts)
		runDir, err := bundle.Write(*outDir, info, res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bundle write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Bundle written to %s\n", runDir)
	}
}

// demoTables builds the techno-economic and policy inputs in code.
// Numbers are round and plausible rather than calibrated.
func demoTables() (*assumptions.Table, *assumptions.Table) {
	assum := assumptions.NewTable([]assumptions.Row{
		// AUS electricity
		{Param: "capex", Region: "AUS", Sector: "power", Tech: "electricity", Year: 2024, Value: 45, Unit: "USD/MW"},
		{Param: "opex", Region: "AUS", Sector: "power", Tech: "electricity", Year: 2024, Value: 12, Unit: "USD/MWh"},
		{Param: "emissions_intensity", Region: "AUS", Sector: "power", Tech: "electricity", Year: 2024, Value: 0.7, Unit: "tCO2e/MWh"},
		{Param: "emissions_intensity", Region: "AUS", Sector: "power", Tech: "electricity", Year: 2032, Value: 0.45, Unit: "tCO2e/MWh"},
		{Param: "trend_param", Region: "AUS", Sector: "power", Tech: "electricity", Year: 2024, Value: 0.03},
		{Param: "ref_price", Region: "AUS", Tech: "electricity", Year: 2024, Value: 50, Unit: "USD/MWh"},
		{Param: "demand", Region: "AUS", Tech: "electricity", Year: 2024, Value: 40, Unit: "MWh"},

		// EU electricity: pricier capital, cleaner grid
		{Param: "capex", Region: "EU", Sector: "power", Tech: "electricity", Year: 2024, Value: 55, Unit: "USD/MW"},
		{Param: "opex", Region: "EU", Sector: "power", Tech: "electricity", Year: 2024, Value: 15, Unit: "USD/MWh"},
		{Param: "emissions_intensity", Region: "EU", Sector: "power", Tech: "electricity", Year: 2024, Value: 0.4, Unit: "tCO2e/MWh"},
		{Param: "trend_param", Region: "EU", Sector: "power", Tech: "electricity", Year: 2024, Value: 0.02},
		{Param: "ref_price", Region: "EU", Tech: "electricity", Year: 2024, Value: 60, Unit: "USD/MWh"},
		{Param: "demand", Region: "EU", Tech: "electricity", Year: 2024, Value: 50, Unit: "MWh"},

		// AUS hydrogen: young market, steep price trend
		{Param: "capex", Region: "AUS", Sector: "industry", Tech: "hydrogen", Year: 2024, Value: 90, Unit: "USD/t"},
		{Param: "opex", Region: "AUS", Sector: "industry", Tech: "hydrogen", Year: 2024, Value: 20, Unit: "USD/t"},
		{Param: "emissions_intensity", Region: "AUS", Sector: "industry", Tech: "hydrogen", Year: 2024, Value: 0.1, Unit: "tCO2e/t"},
		{Param: "trend_param", Region: "AUS", Sector: "industry", Tech: "hydrogen", Year: 2024, Value: 0.06},
		{Param: "ref_price", Region: "AUS", Tech: "hydrogen", Year: 2024, Value: 120, Unit: "USD/t"},
		{Param: "demand", Region: "AUS", Tech: "hydrogen", Year: 2024, Value: 5, Unit: "t"},
	})

	policy := assumptions.NewTable([]assumptions.Row{
		{Param: "carbon_price", Region: "AUS", Year: 2024, Value: 5, Unit: "USD/tCO2e"},
		{Param: "carbon_price", Region: "AUS", Year: 2030, Value: 25, Unit: "USD/tCO2e"},
		{Param: "carbon_price", Region: "EU", Year: 2024, Value: 30, Unit: "USD/tCO2e"},
		{Param: "carbon_price", Region: "EU", Year: 2030, Value: 60, Unit: "USD/tCO2e"},
	})
	return assum, policy
}

// demoAgents is a minimal catalogue with every decision rule in play.
func demoAgents() []agent.Config {
	return []agent.Config{
		{
			ID: "GEN-AUS", Type: "ElectricityProducer", Region: "AUS",
			Sector: "power", Tech: "electricity",
			InitialCapacity: 60, Horizon: 3, DiscountRate: 0.07, Vintage: 2020,
			Rule: agent.RuleNPVThreshold,
			Producer: &agent.ProducerParams{
				Commodity: "electricity", InvestStep: 10, MaxCapacity: 300, PersistenceWindow: 2,
			},
		},
		{
			ID: "GEN-EU", Type: "ElectricityProducer", Region: "EU",
			Sector: "power", Tech: "electricity",
			InitialCapacity: 80, Horizon: 3, DiscountRate: 0.06, Vintage: 2018,
			Rule: agent.RuleNPVThreshold,
			Producer: &agent.ProducerParams{
				Commodity: "electricity", InvestStep: 15, MaxCapacity: 350, PersistenceWindow: 2,
			},
		},
		{
			ID: "H2-AUS", Type: "HydrogenProducer", Region: "AUS",
			Sector: "industry", Tech: "hydrogen",
			InitialCapacity: 10, Horizon: 5, DiscountRate: 0.09, Vintage: 2023,
			Rule: agent.RuleNPVThreshold,
			Producer: &agent.ProducerParams{
				Commodity: "hydrogen", InvestStep: 5, MaxCapacity: math.Inf(1), PersistenceWindow: 3,
			},
		},
		{
			ID: "IND-AUS", Type: "IndustrialConsumer", Region: "AUS",
			Sector: "industry", Tech: "electricity",
			Horizon: 1, DiscountRate: 0.07,
			Rule:     agent.RulePriceResponsive,
			Consumer: &agent.ConsumerParams{Commodity: "electricity", DemandLow: 30, DemandHigh: 60},
		},
		{
			ID: "IND-EU", Type: "IndustrialConsumer", Region: "EU",
			Sector: "industry", Tech: "electricity",
			Horizon: 1, DiscountRate: 0.07,
			Rule:     agent.RulePriceResponsive,
			Consumer: &agent.ConsumerParams{Commodity: "electricity", DemandLow: 40, DemandHigh: 70},
		},
		{
			ID: "REF-AUS", Type: "Refiner", Region: "AUS",
			Sector: "industry", Tech: "hydrogen",
			Horizon: 1, DiscountRate: 0.07,
			Rule:     agent.RulePriceResponsive,
			Consumer: &agent.ConsumerParams{Commodity: "hydrogen", DemandLow: 4, DemandHigh: 12},
		},
		{
			ID: "REG-GLOBAL", Type: "Regulator", Region: "AUS",
			Sector: "policy", Tech: "",
			Horizon: 1, DiscountRate: 0.0,
			Rule:   agent.RulePolicySetter,
			Policy: &agent.PolicyParams{PolicyType: "carbon_price"},
		},
	}
}
