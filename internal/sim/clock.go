package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/assumptions"
	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/forecast"
	"github.com/dlg0/agent-zero/internal/market"
)

// Parameter defaults for sparse packs, matching the reference data set.
var defaultRefPrices = map[string]float64{
	"electricity": 50,
	"hydrogen":    3,
}

const (
	defaultCapex       = 1000.0
	defaultOpex        = 10.0
	defaultConsumerRef = 60.0
	defaultClearRate   = 0.05
)

// Parameter names the clock resolves from the assumptions table.
const (
	ParamCapex              = "capex"
	ParamOpex               = "opex"
	ParamEmissionsIntensity = "emissions_intensity"
	ParamTrend              = "trend_param"
	ParamRefPrice           = "ref_price"
	ParamDemand             = "demand"
	ParamCCSEnabled         = "ccs_enabled"
	ParamRegionalCeiling    = "regional_capacity_ceiling"
	PolicyCarbonPrice       = "carbon_price"
)

// Options are the result-affecting engine knobs. They feed the run
// identity hash; anything that cannot change outputs (worker count)
// stays out.
type Options struct {
	ClearingRate float64 `json:"clearing_rate" yaml:"clearing_rate"`
	DemandJitter float64 `json:"demand_jitter" yaml:"demand_jitter"`
	PriceFloor   float64 `json:"price_floor" yaml:"price_floor"`
}

func (o Options) withDefaults() Options {
	if o.ClearingRate == 0 {
		o.ClearingRate = defaultClearRate
	}
	return o
}

// Config wires a Clock. Assumptions and Policy are the patched,
// resolved tables; the Store already holds the catalogue.
type Config struct {
	Assumptions *assumptions.Resolver
	Policy      *assumptions.Resolver
	Store       *agent.Store
	Entropy     *Entropy
	Logger      *slog.Logger
	Options     Options
	// Threads caps concurrent decision evaluation; <= 1 runs serially.
	// Thread count never changes results.
	Threads int
}

// Result is everything a completed run produced, still in memory.
type Result struct {
	Years       []int
	Timeseries  []TimeseriesRow
	AgentStates []AgentRow
	Traces      []decision.Trace
	Warnings    []Warning
	Summary     Summary
}

// Clock drives the year loop: freeze the prior market state, collect
// every agent's proposal against it, reconcile shared constraints,
// apply mutations through the Store, clear markets, record. A run either
// completes or aborts; there is no mid-run cancellation.
type Clock struct {
	res      *assumptions.Resolver
	pol      *assumptions.Resolver
	store    *agent.Store
	clearing *market.Clearing
	jitter   *Entropy
	log      *slog.Logger
	opts     Options
	threads  int

	rules   map[agent.RuleKind]decision.Rule
	state   market.State
	history map[market.Key][]float64
	rec     *Recorder
}

func New(cfg Config) (*Clock, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.Assumptions == nil {
		return nil, fmt.Errorf("assumptions resolver is nil")
	}
	if cfg.Policy == nil {
		cfg.Policy = assumptions.NewResolver(assumptions.NewTable(nil))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Entropy == nil {
		cfg.Entropy = NewEntropy(0)
	}
	opts := cfg.Options.withDefaults()
	if opts.DemandJitter < 0 || opts.DemandJitter >= 1 {
		return nil, fmt.Errorf("demand_jitter must be in [0, 1)")
	}
	if opts.PriceFloor < 0 {
		return nil, fmt.Errorf("price_floor must be >= 0")
	}

	rules := map[agent.RuleKind]decision.Rule{}
	for _, kind := range []agent.RuleKind{
		agent.RuleNPVThreshold, agent.RulePriceResponsive, agent.RulePolicySetter,
	} {
		r, err := decision.New(kind)
		if err != nil {
			return nil, err
		}
		rules[kind] = r
	}

	return &Clock{
		res:      cfg.Assumptions,
		pol:      cfg.Policy,
		store:    cfg.Store,
		clearing: market.NewClearing(market.ProportionalAdjust(opts.ClearingRate, opts.PriceFloor)),
		jitter:   cfg.Entropy.Stream("demand_jitter"),
		log:      cfg.Logger,
		opts:     opts,
		threads:  cfg.Threads,
		rules:    rules,
		rec:      NewRecorder(),
	}, nil
}

// Run simulates the given years in order and returns the buffered
// results. Years must be strictly ascending.
func (c *Clock) Run(years []int) (*Result, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("no years to simulate")
	}
	for i := 1; i < len(years); i++ {
		if years[i] <= years[i-1] {
			return nil, fmt.Errorf("years must be strictly ascending")
		}
	}
	if err := c.seed(years[0]); err != nil {
		return nil, err
	}
	c.log.Info("run starting",
		"start", years[0], "end", years[len(years)-1], "agents", c.store.Len())

	for _, y := range years {
		if err := c.step(y); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Years:       append([]int{}, years...),
		Timeseries:  c.rec.Timeseries(),
		AgentStates: c.rec.AgentStates(),
		Traces:      c.rec.Traces(),
		Warnings:    c.rec.Warnings(),
		Summary:     c.rec.Summarize(),
	}
	c.log.Info("run complete",
		"years", len(years),
		"cumulative_emissions", res.Summary.CumulativeEmissions,
		"warnings", len(res.Warnings))
	return res, nil
}

// seed builds the pre-simulation market state: one market per agent
// commodity, priced at the resolved reference price, and the start-year
// carbon schedule. The price history opens with the reference price so
// the first forecast compounds from it.
func (c *Clock) seed(startYear int) error {
	prices := map[market.Key]float64{}
	regions := map[string]bool{}
	for _, ag := range c.store.Snapshot() {
		cfg := ag.Config
		regions[cfg.Region] = true
		commodity := cfg.CommodityName()
		if commodity == "" {
			continue
		}
		key := market.Key{Region: cfg.Region, Commodity: commodity}
		if _, done := prices[key]; done {
			continue
		}
		if v, ok := c.res.Resolve(ParamRefPrice, cfg.Region, "", commodity, startYear); ok {
			prices[key] = v.Value
		} else if def, ok := defaultRefPrices[commodity]; ok {
			prices[key] = def
		} else {
			return fmt.Errorf("no ref_price for commodity %q in region %q and no default", commodity, cfg.Region)
		}
	}

	carbon := map[string]float64{}
	for r := range regions {
		carbon[r] = c.pol.Lookup(PolicyCarbonPrice, r, "", "", startYear, 0)
	}

	c.state = market.NewState(startYear-1, prices, carbon)
	c.history = make(map[market.Key][]float64, len(prices))
	for k, p := range prices {
		c.history[k] = []float64{p}
	}
	return nil
}

func (c *Clock) step(year int) error {
	prior := c.state
	snap := c.store.Snapshot()

	proposals := c.decideAll(year, prior, snap)
	for i := range proposals {
		if err := proposals[i].Check(); err != nil {
			return &SimulationError{Year: year, AgentID: proposals[i].AgentID, Err: err}
		}
	}
	c.rationRegionalCapacity(year, snap, proposals)
	c.flagNegativeEmissions(year, snap, proposals)

	agentRows, traces, err := c.apply(year, snap, proposals)
	if err != nil {
		return err
	}

	exo := c.exogenousDemand(year, prior, proposals)
	next, err := c.clearing.Clear(year, prior, proposals,
		func(region, commodity string) float64 { return exo[market.Key{Region: region, Commodity: commodity}] },
		func(region string) float64 { return c.pol.Lookup(PolicyCarbonPrice, region, "", "", year, 0) },
	)
	if err != nil {
		return &SimulationError{Year: year, Err: err}
	}

	c.state = next
	for _, row := range next.Rows() {
		k := market.Key{Region: row.Region, Commodity: row.Commodity}
		c.history[k] = append(c.history[k], row.Price)
	}
	c.rec.RecordYear(next, agentRows, traces)

	c.log.Info("year cleared",
		"year", year,
		"emissions", next.TotalEmissions(),
		"markets", len(next.Rows()))
	return nil
}

// decideAll evaluates every agent against the frozen prior state. With
// Threads > 1 the evaluations run on a small worker pool; each worker
// writes only its own result slot, and nothing here mutates shared
// state, so the outcome is identical to the serial order.
func (c *Clock) decideAll(year int, prior market.State, snap []agent.Agent) []decision.Proposal {
	out := make([]decision.Proposal, len(snap))
	workers := c.threads
	if workers < 1 {
		workers = 1
	}
	if workers == 1 {
		for i := range snap {
			out[i] = c.decideOne(year, prior, snap[i])
		}
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = c.decideOne(year, prior, snap[i])
			}
		}()
	}
	for i := range snap {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (c *Clock) decideOne(year int, prior market.State, ag agent.Agent) decision.Proposal {
	cfg := ag.Config
	ctx := decision.Context{
		Year:        year,
		Agent:       ag,
		CarbonPrice: prior.CarbonPrice(cfg.Region),
	}

	switch cfg.Rule {
	case agent.RuleNPVThreshold:
		key := market.Key{Region: cfg.Region, Commodity: cfg.Producer.Commodity}
		ctx.Price = prior.Price(key.Region, key.Commodity)
		trend := c.res.Lookup(ParamTrend, cfg.Region, cfg.Sector, cfg.Tech, year, 0)
		ctx.Forecast = forecast.Project(c.history[key], trend, cfg.Horizon)
		ctx.Econ = decision.Economics{
			Capex:              c.res.Lookup(ParamCapex, cfg.Region, cfg.Sector, cfg.Tech, year, defaultCapex),
			Opex:               c.res.Lookup(ParamOpex, cfg.Region, cfg.Sector, cfg.Tech, year, defaultOpex),
			EmissionsIntensity: c.res.Lookup(ParamEmissionsIntensity, cfg.Region, cfg.Sector, cfg.Tech, year, 0),
		}
	case agent.RulePriceResponsive:
		// Reference prices key on the commodity, not the consumer's
		// own sector, so one row serves every buyer of the commodity.
		ctx.Price = prior.Price(cfg.Region, cfg.Consumer.Commodity)
		ctx.RefPrice = c.res.Lookup(ParamRefPrice, cfg.Region, "", cfg.Consumer.Commodity, year, defaultConsumerRef)
	case agent.RulePolicySetter:
		ctx.PolicyValue = c.pol.Lookup(cfg.Policy.PolicyType, cfg.Region, "", "", year, 0)
	}

	return c.rules[cfg.Rule].Decide(ctx)
}

// rationRegionalCapacity enforces the per-region capacity ceiling, when
// one resolves. Proposals are visited in ascending agent_id order and an
// invest that would push the region past the ceiling is downgraded to a
// hold, so rationing is reproducible by construction.
func (c *Clock) rationRegionalCapacity(year int, snap []agent.Agent, proposals []decision.Proposal) {
	type slot struct {
		idx int
		id  string
	}
	byRegion := map[string][]slot{}
	capacity := map[string]float64{}
	for i, ag := range snap {
		if ag.Config.Producer == nil {
			continue
		}
		r := ag.Config.Region
		byRegion[r] = append(byRegion[r], slot{idx: i, id: ag.Config.ID})
		capacity[r] += ag.State.Capacity
	}

	for region, slots := range byRegion {
		ceiling, ok := c.res.Resolve(ParamRegionalCeiling, region, "", "", year)
		if !ok {
			continue
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].id < slots[j].id })

		total := capacity[region]
		for _, s := range slots {
			p := &proposals[s.idx]
			if p.Invest > 0 && total+p.Invest-p.Retire > ceiling.Value {
				c.log.Debug("investment rationed",
					"year", year, "agent", p.AgentID, "region", region, "ceiling", ceiling.Value)
				prevSupply := p.Supply
				p.Supply -= p.Invest
				p.Invest = 0
				p.Action = decision.ActionHold
				p.Rationed = true
				if prevSupply > 0 {
					p.Emissions = p.Emissions * p.Supply / prevSupply
				}
			}
			total += p.Invest - p.Retire
		}
	}
}

// flagNegativeEmissions records a warning for any proposal emitting
// negative carbon from a tech that is not flagged as carbon capture.
func (c *Clock) flagNegativeEmissions(year int, snap []agent.Agent, proposals []decision.Proposal) {
	for i, p := range proposals {
		if p.Emissions >= 0 {
			continue
		}
		cfg := snap[i].Config
		if c.res.Lookup(ParamCCSEnabled, cfg.Region, cfg.Sector, cfg.Tech, year, 0) >= 1 {
			continue
		}
		c.rec.Warn(Warning{
			Code:      WarnNegativeEmissions,
			Message:   fmt.Sprintf("agent %s emitted %v without a ccs_enabled flag", p.AgentID, p.Emissions),
			Year:      year,
			AgentID:   p.AgentID,
			Region:    cfg.Region,
			Commodity: p.Commodity,
		})
	}
}

func (c *Clock) apply(year int, snap []agent.Agent, proposals []decision.Proposal) ([]AgentRow, []decision.Trace, error) {
	rows := make([]AgentRow, 0, len(snap))
	traces := make([]decision.Trace, 0, len(snap))

	for i, ag := range snap {
		p := proposals[i]
		before, after, err := c.store.Apply(agent.Change{
			AgentID:       p.AgentID,
			CapacityDelta: p.Invest - p.Retire,
			Investment:    p.Invest,
			Emissions:     p.Emissions,
			NPVNegative:   p.NPVNegative,
		})
		if err != nil {
			return nil, nil, &SimulationError{Year: year, AgentID: p.AgentID, Err: err}
		}

		cfg := ag.Config
		rows = append(rows, AgentRow{
			Year:          year,
			AgentID:       cfg.ID,
			AgentType:     cfg.Type,
			Region:        cfg.Region,
			Capacity:      after.Capacity,
			Investment:    p.Invest,
			ExpectedPrice: p.ExpectedPrice,
			Action:        p.Action,
			Extra: AgentExtra{
				Sector:        cfg.Sector,
				Tech:          cfg.Tech,
				Cash:          after.Cash,
				Horizon:       cfg.Horizon,
				Vintage:       cfg.Vintage,
				CumInvestment: after.CumInvestment,
				CumEmissions:  after.CumEmissions,
				NegNPVStreak:  after.NegNPVStreak,
			},
		})
		traces = append(traces, decision.Trace{
			Year:        year,
			AgentID:     cfg.ID,
			AgentType:   cfg.Type,
			Region:      cfg.Region,
			Rule:        cfg.Rule,
			Action:      p.Action,
			Rationed:    p.Rationed,
			Inputs:      p.Inputs,
			StateBefore: decision.RecordState(before),
			StateAfter:  decision.RecordState(after),
		})
	}
	return rows, traces, nil
}

// exogenousDemand resolves the demand parameter for every market active
// this year, in sorted key order so the optional jitter draws stay
// deterministic.
func (c *Clock) exogenousDemand(year int, prior market.State, proposals []decision.Proposal) map[market.Key]float64 {
	keys := map[market.Key]bool{}
	for _, row := range prior.Rows() {
		keys[market.Key{Region: row.Region, Commodity: row.Commodity}] = true
	}
	for _, p := range proposals {
		if p.Commodity != "" {
			keys[market.Key{Region: p.Region, Commodity: p.Commodity}] = true
		}
	}
	sorted := make([]market.Key, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Region != sorted[j].Region {
			return sorted[i].Region < sorted[j].Region
		}
		return sorted[i].Commodity < sorted[j].Commodity
	})

	out := make(map[market.Key]float64, len(sorted))
	for _, k := range sorted {
		d := c.res.Lookup(ParamDemand, k.Region, "", k.Commodity, year, 0)
		if c.opts.DemandJitter > 0 {
			d *= 1 + c.opts.DemandJitter*(2*c.jitter.Float64()-1)
		}
		out[k] = d
	}
	return out
}
