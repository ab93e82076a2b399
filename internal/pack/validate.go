package pack

import (
	"fmt"
	"strings"

	"github.com/dlg0/agent-zero/internal/assumptions"
)

// Allowed patch vocabulary.
var (
	allowedOps     = map[assumptions.Op]bool{assumptions.OpSet: true, assumptions.OpAdd: true, assumptions.OpMultiply: true}
	allowedTargets = map[string]bool{assumptions.TargetAssumptions: true, assumptions.TargetPolicy: true}
)

// Validate checks an assumptions pack and returns the list of problems
// found; an empty list means the pack is usable. Checks are per-file:
// required columns, non-empty units, agent catalogue field ranges and
// rule names, and manifest hash agreement.
func (p *AssumptionsPack) Validate() []string {
	var issues []string

	if p.Manifest.Type != TypeAssumptions {
		issues = append(issues, fmt.Sprintf("manifest type %q, want %q", p.Manifest.Type, TypeAssumptions))
	}
	if len(p.assumMissing) > 0 {
		issues = append(issues, "assumptions.csv missing columns: "+strings.Join(p.assumMissing, ", "))
	}
	if len(p.policyMissing) > 0 {
		issues = append(issues, "policy.csv missing columns: "+strings.Join(p.policyMissing, ", "))
	}
	if n := countEmptyUnits(p.Assumptions.Rows()); n > 0 {
		issues = append(issues, fmt.Sprintf("assumptions.csv has %d rows with an empty unit", n))
	}
	if n := countEmptyUnits(p.Policy.Rows()); n > 0 {
		issues = append(issues, fmt.Sprintf("policy.csv has %d rows with an empty unit", n))
	}

	if len(p.Agents) == 0 {
		issues = append(issues, "agents.yaml declares no agents")
	}
	seen := map[string]bool{}
	for i := range p.Agents {
		cfg := &p.Agents[i]
		if err := cfg.Validate(); err != nil {
			issues = append(issues, "agents.yaml: "+err.Error())
		}
		if cfg.ID != "" && seen[cfg.ID] {
			issues = append(issues, fmt.Sprintf("agents.yaml: duplicate agent_id %q", cfg.ID))
		}
		seen[cfg.ID] = true
	}

	if p.Manifest.Hash != "" && p.Manifest.Hash != p.ComputedHash {
		issues = append(issues, fmt.Sprintf(
			"manifest hash %s does not match computed content hash %s", p.Manifest.Hash, p.ComputedHash))
	}
	return issues
}

// Validate checks a scenario pack: required columns, allowed operations
// and targets, non-empty units, and manifest hash agreement.
func (p *ScenarioPack) Validate() []string {
	var issues []string

	if p.Manifest.Type != TypeScenario {
		issues = append(issues, fmt.Sprintf("manifest type %q, want %q", p.Manifest.Type, TypeScenario))
	}
	if p.Scenario.ID == "" {
		issues = append(issues, "scenario.yaml: id is required")
	}
	if len(p.patchMissing) > 0 {
		issues = append(issues, "patches.csv missing columns: "+strings.Join(p.patchMissing, ", "))
	}

	seenOp := map[assumptions.Op]bool{}
	seenTarget := map[string]bool{}
	emptyUnits := 0
	for _, patch := range p.Patches {
		if !allowedOps[patch.Op] && !seenOp[patch.Op] {
			seenOp[patch.Op] = true
			issues = append(issues, fmt.Sprintf("patches.csv contains invalid operation %q", patch.Op))
		}
		if !allowedTargets[patch.Target] && !seenTarget[patch.Target] {
			seenTarget[patch.Target] = true
			issues = append(issues, fmt.Sprintf("patches.csv contains invalid target %q", patch.Target))
		}
		if patch.Unit == "" {
			emptyUnits++
		}
	}
	if emptyUnits > 0 {
		issues = append(issues, fmt.Sprintf("patches.csv has %d rows with an empty unit", emptyUnits))
	}

	if p.Manifest.Hash != "" && p.Manifest.Hash != p.ComputedHash {
		issues = append(issues, fmt.Sprintf(
			"manifest hash %s does not match computed content hash %s", p.Manifest.Hash, p.ComputedHash))
	}
	return issues
}

func countEmptyUnits(rows []assumptions.Row) int {
	n := 0
	for _, r := range rows {
		if r.Unit == "" {
			n++
		}
	}
	return n
}
