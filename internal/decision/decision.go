package decision

import (
	"fmt"
	"math"

	"github.com/dlg0/agent-zero/internal/agent"
)

// Action is the label recorded for one agent-year.
type Action string

const (
	ActionInvest Action = "invest"
	ActionRetire Action = "retire"
	ActionHold   Action = "hold"
	ActionSupply Action = "supply"
	ActionNone   Action = "none"
)

// Economics are the cost parameters resolved for a producer at the
// decision year.
type Economics struct {
	Capex              float64
	Opex               float64
	EmissionsIntensity float64
}

// Context carries everything one rule invocation may read. All fields
// are frozen prior-year observations plus resolved parameters; rules
// never touch shared state.
type Context struct {
	Year  int
	Agent agent.Agent

	// Price is the prior-year clearing price of the agent's commodity.
	Price       float64
	Forecast    []float64 // expected prices for offsets 1..horizon
	CarbonPrice float64

	Econ        Economics // producers
	RefPrice    float64   // consumers
	PolicyValue float64   // policy setters
}

// Inputs is the recorded input vector for a decision trace. Fields that
// do not apply to a rule stay nil and are omitted from the JSON.
type Inputs struct {
	CurrentPrice     float64   `json:"current_price"`
	ExpectedPrice    *float64  `json:"expected_price,omitempty"`
	Forecast         []float64 `json:"forecast,omitempty"`
	NPV              *float64  `json:"npv,omitempty"`
	OperatingNPV     *float64  `json:"operating_npv,omitempty"`
	CapacityHeadroom *float64  `json:"capacity_headroom,omitempty"`
	CarbonPrice      float64   `json:"carbon_price"`
	RefPrice         *float64  `json:"ref_price,omitempty"`
	Quantity         *float64  `json:"quantity,omitempty"`
	PolicyValue      *float64  `json:"policy_value,omitempty"`
}

// Proposal is a rule's requested outcome for one agent-year. The Store
// applies it; the market aggregates it. Supply already reflects the
// proposed capacity change.
type Proposal struct {
	AgentID   string
	Action    Action
	Region    string
	Commodity string

	Invest    float64
	Retire    float64
	Supply    float64
	Demand    float64
	Emissions float64

	ExpectedPrice *float64
	// NPVNegative marks a negative operating NPV observation this year,
	// feeding the retirement persistence streak.
	NPVNegative bool
	// Rationed is set by the engine when a shared constraint downgraded
	// the proposal after the rule ran.
	Rationed bool

	Inputs Inputs
}

// Check rejects proposals the engine must never apply.
func (p *Proposal) Check() error {
	for name, v := range map[string]float64{
		"invest":    p.Invest,
		"retire":    p.Retire,
		"supply":    p.Supply,
		"demand":    p.Demand,
		"emissions": p.Emissions,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("agent %s: non-finite %s", p.AgentID, name)
		}
		if name != "emissions" && v < 0 {
			return fmt.Errorf("agent %s: negative %s (%v)", p.AgentID, name, v)
		}
	}
	return nil
}

// Rule is one decision-rule implementation. Implementations are
// stateless; per-agent parameters arrive through the Context.
type Rule interface {
	Name() agent.RuleKind
	Decide(ctx Context) Proposal
}

// New returns the rule implementation for a kind. The set is closed.
func New(kind agent.RuleKind) (Rule, error) {
	switch kind {
	case agent.RuleNPVThreshold:
		return NPVThreshold{}, nil
	case agent.RulePriceResponsive:
		return PriceResponsive{}, nil
	case agent.RulePolicySetter:
		return PolicySetter{}, nil
	}
	return nil, fmt.Errorf("unknown decision rule %q", kind)
}

// StateRecord is the agent-state snapshot captured on either side of a
// decision.
type StateRecord struct {
	Capacity      float64 `json:"capacity"`
	Cash          float64 `json:"cash"`
	CumInvestment float64 `json:"cum_investment"`
	CumEmissions  float64 `json:"cum_emissions"`
	NegNPVStreak  int     `json:"neg_npv_streak"`
}

func RecordState(s agent.State) StateRecord {
	return StateRecord{
		Capacity:      s.Capacity,
		Cash:          s.Cash,
		CumInvestment: s.CumInvestment,
		CumEmissions:  s.CumEmissions,
		NegNPVStreak:  s.NegNPVStreak,
	}
}

// Trace reconstructs one decision without re-running the engine: the
// action, its full input vector and the state on both sides.
type Trace struct {
	Year        int            `json:"year"`
	AgentID     string         `json:"agent_id"`
	AgentType   string         `json:"agent_type"`
	Region      string         `json:"region"`
	Rule        agent.RuleKind `json:"rule"`
	Action      Action         `json:"action"`
	Rationed    bool           `json:"rationed,omitempty"`
	Inputs      Inputs         `json:"inputs"`
	StateBefore StateRecord    `json:"state_before"`
	StateAfter  StateRecord    `json:"state_after"`
}

func fp(v float64) *float64 { return &v }
