package decision

import (
	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/forecast"
)

// NPVThreshold is the producer rule. It invests one invest_step when the
// discounted margin of new capacity clears the threshold and the step
// fits under max_capacity; it retires one invest_step after the
// operating NPV of the existing base has stayed negative beyond the
// persistence window; otherwise it holds. Supply equals the post-action
// capacity.
type NPVThreshold struct{}

func (NPVThreshold) Name() agent.RuleKind { return agent.RuleNPVThreshold }

func (NPVThreshold) Decide(ctx Context) Proposal {
	cfg := ctx.Agent.Config
	st := ctx.Agent.State
	pp := cfg.Producer

	investNPV := forecast.NPV(
		ctx.Econ.Capex, ctx.Econ.Opex, ctx.Forecast,
		ctx.Econ.EmissionsIntensity, ctx.CarbonPrice, cfg.DiscountRate)
	operatingNPV := forecast.NPV(
		0, ctx.Econ.Opex, ctx.Forecast,
		ctx.Econ.EmissionsIntensity, ctx.CarbonPrice, cfg.DiscountRate)
	headroom := pp.MaxCapacity - st.Capacity
	npvNegative := operatingNPV < 0

	action := ActionHold
	invest, retire := 0.0, 0.0
	switch {
	case investNPV > pp.InvestThreshold && st.Capacity+pp.InvestStep <= pp.MaxCapacity:
		action = ActionInvest
		invest = pp.InvestStep
	case npvNegative && st.NegNPVStreak+1 > pp.PersistenceWindow && st.Capacity > 0:
		action = ActionRetire
		retire = pp.InvestStep
		if retire > st.Capacity {
			retire = st.Capacity
		}
	}

	supply := st.Capacity + invest - retire
	p := Proposal{
		AgentID:     cfg.ID,
		Action:      action,
		Region:      cfg.Region,
		Commodity:   pp.Commodity,
		Invest:      invest,
		Retire:      retire,
		Supply:      supply,
		Emissions:   supply * ctx.Econ.EmissionsIntensity,
		NPVNegative: npvNegative,
		Inputs: Inputs{
			CurrentPrice:     ctx.Price,
			Forecast:         ctx.Forecast,
			NPV:              fp(investNPV),
			OperatingNPV:     fp(operatingNPV),
			CapacityHeadroom: fp(headroom),
			CarbonPrice:      ctx.CarbonPrice,
		},
	}
	if len(ctx.Forecast) > 0 {
		p.ExpectedPrice = fp(ctx.Forecast[0])
		p.Inputs.ExpectedPrice = p.ExpectedPrice
	}
	return p
}
