package decision

import "github.com/dlg0/agent-zero/internal/agent"

// PolicySetter looks up its schedule value for the year and takes no
// market action. The clearing step reads the policy table directly; the
// agent exists so the schedule shows up in the decision traces.
type PolicySetter struct{}

func (PolicySetter) Name() agent.RuleKind { return agent.RulePolicySetter }

func (PolicySetter) Decide(ctx Context) Proposal {
	return Proposal{
		AgentID: ctx.Agent.Config.ID,
		Action:  ActionNone,
		Region:  ctx.Agent.Config.Region,
		Inputs: Inputs{
			CurrentPrice: ctx.Price,
			CarbonPrice:  ctx.CarbonPrice,
			PolicyValue:  fp(ctx.PolicyValue),
		},
	}
}
