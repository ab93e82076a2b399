package pack

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dlg0/agent-zero/internal/agent"
)

// Catalogue defaults for omitted optional fields, matching the
// reference agent set.
const (
	defaultDiscountRate      = 0.07
	defaultInvestStep        = 10.0
	defaultInvestThreshold   = 0.0
	defaultPersistenceWindow = 2
	defaultDemandHigh        = 100.0
	defaultDemandLow         = 80.0
	defaultPolicyType        = "carbon_price"
)

// agentEntry is the on-disk catalogue row. Rule parameters stay as a
// raw node until the rule is known, then decode into the closed variant
// for that rule only.
type agentEntry struct {
	AgentID         string    `yaml:"agent_id"`
	AgentType       string    `yaml:"agent_type"`
	Region          string    `yaml:"region"`
	Sector          string    `yaml:"sector,omitempty"`
	Tech            string    `yaml:"tech,omitempty"`
	InitialCapacity float64   `yaml:"initial_capacity"`
	Horizon         int       `yaml:"horizon"`
	DiscountRate    *float64  `yaml:"discount_rate,omitempty"`
	Vintage         int       `yaml:"vintage,omitempty"`
	DecisionRule    string    `yaml:"decision_rule"`
	Params          yaml.Node `yaml:"params,omitempty"`
}

type producerEntry struct {
	Commodity         string   `yaml:"commodity,omitempty"`
	InvestStep        *float64 `yaml:"invest_step,omitempty"`
	MaxCapacity       *float64 `yaml:"max_capacity,omitempty"`
	InvestThreshold   *float64 `yaml:"invest_threshold,omitempty"`
	PersistenceWindow *int     `yaml:"persistence_window,omitempty"`
}

type consumerEntry struct {
	Commodity  string   `yaml:"commodity,omitempty"`
	DemandLow  *float64 `yaml:"demand_low,omitempty"`
	DemandHigh *float64 `yaml:"demand_high,omitempty"`
}

type policyEntry struct {
	PolicyType string `yaml:"policy_type,omitempty"`
}

type agentsFile struct {
	Agents []agentEntry `yaml:"agents"`
}

func readAgentsYAML(path string) ([]agent.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f agentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]agent.Config, 0, len(f.Agents))
	for i, e := range f.Agents {
		cfg, err := e.toConfig()
		if err != nil {
			return nil, fmt.Errorf("%s: agent %d (%s): %w", path, i, e.AgentID, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (e agentEntry) toConfig() (agent.Config, error) {
	cfg := agent.Config{
		ID:              e.AgentID,
		Type:            e.AgentType,
		Region:          e.Region,
		Sector:          e.Sector,
		Tech:            e.Tech,
		InitialCapacity: e.InitialCapacity,
		Horizon:         e.Horizon,
		DiscountRate:    floatOr(e.DiscountRate, defaultDiscountRate),
		Vintage:         e.Vintage,
		Rule:            agent.RuleKind(e.DecisionRule),
	}

	switch cfg.Rule {
	case agent.RuleNPVThreshold:
		var p producerEntry
		if err := decodeParams(e.Params, &p); err != nil {
			return agent.Config{}, err
		}
		commodity := p.Commodity
		if commodity == "" {
			commodity = e.Tech
		}
		cfg.Producer = &agent.ProducerParams{
			Commodity:         commodity,
			InvestStep:        floatOr(p.InvestStep, defaultInvestStep),
			MaxCapacity:       floatOr(p.MaxCapacity, math.Inf(1)),
			InvestThreshold:   floatOr(p.InvestThreshold, defaultInvestThreshold),
			PersistenceWindow: intOr(p.PersistenceWindow, defaultPersistenceWindow),
		}
	case agent.RulePriceResponsive:
		var c consumerEntry
		if err := decodeParams(e.Params, &c); err != nil {
			return agent.Config{}, err
		}
		commodity := c.Commodity
		if commodity == "" {
			commodity = e.Tech
		}
		cfg.Consumer = &agent.ConsumerParams{
			Commodity:  commodity,
			DemandLow:  floatOr(c.DemandLow, defaultDemandLow),
			DemandHigh: floatOr(c.DemandHigh, defaultDemandHigh),
		}
	case agent.RulePolicySetter:
		var p policyEntry
		if err := decodeParams(e.Params, &p); err != nil {
			return agent.Config{}, err
		}
		if p.PolicyType == "" {
			p.PolicyType = defaultPolicyType
		}
		cfg.Policy = &agent.PolicyParams{PolicyType: p.PolicyType}
	default:
		// Unknown rules load as-is; catalogue validation reports them.
	}
	return cfg, nil
}

func decodeParams(n yaml.Node, out any) error {
	if n.IsZero() {
		return nil
	}
	if err := n.Decode(out); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
