package sim

import (
	"sort"

	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/market"
)

// TimeseriesRow is one cleared market in one year. Run identifiers are
// stamped at write time, not stored per row.
type TimeseriesRow struct {
	Year      int
	Region    string
	Commodity string
	Price     float64
	Demand    float64
	Supply    float64
	Emissions float64
	Shortage  bool
}

// AgentExtra carries the remaining agent state fields as a closed
// struct. New state variables get a field here, not a key in a map.
type AgentExtra struct {
	Sector        string
	Tech          string
	Cash          float64
	Horizon       int
	Vintage       int
	CumInvestment float64
	CumEmissions  float64
	NegNPVStreak  int
}

// AgentRow is one agent's state after its action in one year.
type AgentRow struct {
	Year          int
	AgentID       string
	AgentType     string
	Region        string
	Capacity      float64
	Investment    float64
	ExpectedPrice *float64
	Action        decision.Action
	Extra         AgentExtra
}

// Summary holds the headline metrics for a run. It is deliberately
// timestamp-free so reproducing a run reproduces the file byte for byte;
// wall-clock times live in the manifest only.
type Summary struct {
	RunID               string             `json:"run_id"`
	FinalYear           int                `json:"final_year"`
	CumulativeEmissions float64            `json:"cumulative_emissions"`
	PeakEmissions       float64            `json:"peak_emissions"`
	PeakEmissionsYear   int                `json:"peak_emissions_year"`
	MinEmissionsYear    int                `json:"min_emissions_year"`
	YearNetZero         *int               `json:"year_net_zero"`
	AveragePrices       map[string]float64 `json:"average_prices"`
	TotalInvestment     float64            `json:"total_investment"`
	InvestmentByRegion  map[string]float64 `json:"investment_by_region"`
	SupplySecurity      map[string]float64 `json:"supply_security"`
	ShortageYears       int                `json:"shortage_years"`
	Warnings            []Warning          `json:"warnings"`
	BaselineDelta       *SummaryDelta      `json:"baseline_delta,omitempty"`
}

// SummaryDelta is the baseline-relative change block attached to a
// scenario run's summary when it was compared against a baseline run.
// Every value is scenario minus baseline.
type SummaryDelta struct {
	BaselineRunID       string             `json:"baseline_run_id"`
	CumulativeEmissions float64            `json:"cumulative_emissions"`
	PeakEmissions       float64            `json:"peak_emissions"`
	TotalInvestment     float64            `json:"total_investment"`
	ShortageYears       int                `json:"shortage_years"`
	AveragePrices       map[string]float64 `json:"average_prices"`
	SupplySecurity      map[string]float64 `json:"supply_security"`
	YearNetZeroShift    *int               `json:"year_net_zero_shift"`
}

// Recorder buffers everything a run produces. Nothing reaches disk until
// the run has finished cleanly; a fatal error discards the recorder.
type Recorder struct {
	timeseries []TimeseriesRow
	agents     []AgentRow
	traces     []decision.Trace
	warnings   []Warning
}

func NewRecorder() *Recorder { return &Recorder{} }

// RecordYear appends the cleared state and the year's agent rows and
// traces. Market rows arrive pre-sorted from State.Rows.
func (r *Recorder) RecordYear(st market.State, agents []AgentRow, traces []decision.Trace) {
	for _, row := range st.Rows() {
		r.timeseries = append(r.timeseries, TimeseriesRow{
			Year:      st.Year,
			Region:    row.Region,
			Commodity: row.Commodity,
			Price:     row.Price,
			Demand:    row.Demand,
			Supply:    row.Supply,
			Emissions: row.Emissions,
			Shortage:  row.Shortage,
		})
	}
	r.agents = append(r.agents, agents...)
	r.traces = append(r.traces, traces...)
}

func (r *Recorder) Warn(w Warning) { r.warnings = append(r.warnings, w) }

func (r *Recorder) Timeseries() []TimeseriesRow { return r.timeseries }
func (r *Recorder) AgentStates() []AgentRow     { return r.agents }
func (r *Recorder) Traces() []decision.Trace    { return r.traces }
func (r *Recorder) Warnings() []Warning         { return r.warnings }

// Summarize folds the buffered rows into headline metrics.
func (r *Recorder) Summarize() Summary {
	s := Summary{
		AveragePrices:      map[string]float64{},
		InvestmentByRegion: map[string]float64{},
		SupplySecurity:     map[string]float64{},
		Warnings:           append([]Warning{}, r.warnings...),
	}
	if len(r.timeseries) == 0 {
		return s
	}

	emissionsByYear := map[int]float64{}
	priceSum := map[string]float64{}
	priceN := map[string]int{}
	supplyByYear := map[string]map[int]float64{}
	demandByYear := map[string]map[int]float64{}
	shortageYears := map[int]bool{}
	years := map[int]bool{}

	for _, row := range r.timeseries {
		years[row.Year] = true
		emissionsByYear[row.Year] += row.Emissions
		priceSum[row.Commodity] += row.Price
		priceN[row.Commodity]++
		if supplyByYear[row.Commodity] == nil {
			supplyByYear[row.Commodity] = map[int]float64{}
			demandByYear[row.Commodity] = map[int]float64{}
		}
		supplyByYear[row.Commodity][row.Year] += row.Supply
		demandByYear[row.Commodity][row.Year] += row.Demand
		if row.Shortage {
			shortageYears[row.Year] = true
		}
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)
	s.FinalYear = yearList[len(yearList)-1]

	first := true
	for _, y := range yearList {
		e := emissionsByYear[y]
		s.CumulativeEmissions += e
		if first || e > s.PeakEmissions {
			s.PeakEmissions = e
			s.PeakEmissionsYear = y
		}
		if first || e < emissionsByYear[s.MinEmissionsYear] {
			s.MinEmissionsYear = y
		}
		if s.YearNetZero == nil && e <= 0 {
			yy := y
			s.YearNetZero = &yy
		}
		first = false
	}

	for commodity, sum := range priceSum {
		s.AveragePrices[commodity] = sum / float64(priceN[commodity])
	}

	for commodity, supplies := range supplyByYear {
		worst := 0.0
		seen := false
		for y, sup := range supplies {
			dem := demandByYear[commodity][y]
			if dem <= 0 {
				continue
			}
			ratio := sup / dem
			if !seen || ratio < worst {
				worst = ratio
				seen = true
			}
		}
		if seen {
			s.SupplySecurity[commodity] = worst
		}
	}

	s.ShortageYears = len(shortageYears)

	for _, row := range r.agents {
		s.TotalInvestment += row.Investment
		if row.Investment > 0 {
			s.InvestmentByRegion[row.Region] += row.Investment
		}
	}
	return s
}
