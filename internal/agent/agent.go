package agent

import (
	"errors"
	"fmt"
	"math"
)

// RuleKind names a decision rule implementation. The set is closed; a
// catalogue entry naming anything else fails validation.
type RuleKind string

const (
	RuleNPVThreshold    RuleKind = "npv_threshold"
	RulePriceResponsive RuleKind = "price_responsive"
	RulePolicySetter    RuleKind = "policy_setter"
)

// ProducerParams configure an npv_threshold agent.
// Units:
// - InvestStep, MaxCapacity: MW
// - InvestThreshold: USD (NPV hurdle per unit of capacity)
// - PersistenceWindow: consecutive years of negative operating NPV
//   tolerated before one invest_step is retired
type ProducerParams struct {
	Commodity         string
	InvestStep        float64
	MaxCapacity       float64
	InvestThreshold   float64
	PersistenceWindow int
}

// ConsumerParams configure a price_responsive agent. Demand ramps
// linearly from DemandHigh at price 0 down to DemandLow at twice the
// reference price.
type ConsumerParams struct {
	Commodity  string
	DemandLow  float64
	DemandHigh float64
}

// PolicyParams configure a policy_setter agent. PolicyType names the
// schedule row in the policy table, e.g. "carbon_price".
type PolicyParams struct {
	PolicyType string
}

// Config is the immutable catalogue entry for one agent. Exactly one of
// Producer/Consumer/Policy is set, matching Rule.
type Config struct {
	ID              string
	Type            string // descriptive, e.g. "ElectricityProducer"
	Region          string
	Sector          string
	Tech            string
	InitialCapacity float64
	Horizon         int
	DiscountRate    float64
	Vintage         int
	Rule            RuleKind

	Producer *ProducerParams
	Consumer *ConsumerParams
	Policy   *PolicyParams
}

// State is the mutable per-agent state. Only the Store writes it.
type State struct {
	Capacity      float64
	Cash          float64
	CumInvestment float64
	CumEmissions  float64
	// NegNPVStreak counts consecutive years the operating NPV of the
	// existing capacity base came out negative.
	NegNPVStreak int
}

// Agent bundles config + state. Decision rules receive value copies and
// can never mutate the stored state.
type Agent struct {
	Config Config
	State  State
}

func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("agent_id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("agent %s: agent_type is required", c.ID)
	}
	if c.Region == "" {
		return fmt.Errorf("agent %s: region is required", c.ID)
	}
	if c.InitialCapacity < 0 {
		return fmt.Errorf("agent %s: initial_capacity must be >= 0", c.ID)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("agent %s: horizon must be >= 1", c.ID)
	}
	if c.DiscountRate < 0 {
		return fmt.Errorf("agent %s: discount_rate must be >= 0", c.ID)
	}

	switch c.Rule {
	case RuleNPVThreshold:
		if c.Producer == nil || c.Consumer != nil || c.Policy != nil {
			return fmt.Errorf("agent %s: npv_threshold requires producer params only", c.ID)
		}
		p := c.Producer
		if p.Commodity == "" {
			return fmt.Errorf("agent %s: producer commodity is required", c.ID)
		}
		if p.InvestStep <= 0 {
			return fmt.Errorf("agent %s: invest_step must be > 0", c.ID)
		}
		if p.MaxCapacity <= 0 {
			return fmt.Errorf("agent %s: max_capacity must be > 0", c.ID)
		}
		if c.InitialCapacity > p.MaxCapacity {
			return fmt.Errorf("agent %s: initial_capacity exceeds max_capacity", c.ID)
		}
		if p.PersistenceWindow < 1 {
			return fmt.Errorf("agent %s: persistence_window must be >= 1", c.ID)
		}
	case RulePriceResponsive:
		if c.Consumer == nil || c.Producer != nil || c.Policy != nil {
			return fmt.Errorf("agent %s: price_responsive requires consumer params only", c.ID)
		}
		cn := c.Consumer
		if cn.Commodity == "" {
			return fmt.Errorf("agent %s: consumer commodity is required", c.ID)
		}
		if cn.DemandLow < 0 || cn.DemandHigh < cn.DemandLow {
			return fmt.Errorf("agent %s: demand bounds must satisfy 0 <= low <= high", c.ID)
		}
	case RulePolicySetter:
		if c.Policy == nil || c.Producer != nil || c.Consumer != nil {
			return fmt.Errorf("agent %s: policy_setter requires policy params only", c.ID)
		}
		if c.Policy.PolicyType == "" {
			return fmt.Errorf("agent %s: policy_type is required", c.ID)
		}
	default:
		return fmt.Errorf("agent %s: unknown decision_rule %q", c.ID, c.Rule)
	}
	return nil
}

// CommodityName returns the market the agent participates in, or "" for
// policy setters.
func (c *Config) CommodityName() string {
	switch {
	case c.Producer != nil:
		return c.Producer.Commodity
	case c.Consumer != nil:
		return c.Consumer.Commodity
	}
	return ""
}

func (s State) finite() bool {
	for _, v := range []float64{s.Capacity, s.Cash, s.CumInvestment, s.CumEmissions} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
