package decision

import "github.com/dlg0/agent-zero/internal/agent"

// PriceResponsive is the consumer rule. Demand falls linearly from
// demand_high at a zero price to demand_low at twice the reference
// price, passing through the midpoint at the reference price itself.
// Consumers never invest or retire.
type PriceResponsive struct{}

func (PriceResponsive) Name() agent.RuleKind { return agent.RulePriceResponsive }

func (PriceResponsive) Decide(ctx Context) Proposal {
	cfg := ctx.Agent.Config
	cn := cfg.Consumer

	quantity := cn.DemandLow
	if ctx.RefPrice > 0 {
		t := ctx.Price / (2 * ctx.RefPrice)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		quantity = cn.DemandHigh + (cn.DemandLow-cn.DemandHigh)*t
	}

	action := ActionSupply
	if quantity <= 0 {
		action = ActionNone
		quantity = 0
	}

	return Proposal{
		AgentID:   cfg.ID,
		Action:    action,
		Region:    cfg.Region,
		Commodity: cn.Commodity,
		Demand:    quantity,
		Inputs: Inputs{
			CurrentPrice: ctx.Price,
			CarbonPrice:  ctx.CarbonPrice,
			RefPrice:     fp(ctx.RefPrice),
			Quantity:     fp(quantity),
		},
	}
}
