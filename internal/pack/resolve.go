package pack

import (
	"fmt"
	"path/filepath"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/assumptions"
	"github.com/dlg0/agent-zero/internal/sim"
)

// Subdirectories of the data dir holding the two pack kinds.
const (
	AssumptionsDir = "assumptions_packs"
	ScenariosDir   = "scenario_packs"
)

// Resolved is the post-patch input set for one run: the tables and
// catalogue the clock consumes, plus the lineage back to the packs.
type Resolved struct {
	Assumptions *assumptions.Table
	Policy      *assumptions.Table
	Agents      []agent.Config

	Baseline *AssumptionsPack
	Scenario *ScenarioPack // nil for baseline-only runs

	// Hash covers the patched tables and catalogue.
	Hash string
}

// LoadResolved loads the named packs from dataDir, applies scenario
// patches when a scenario is given, and returns the resolved input set.
// Pack validation failures surface as errors; the run never starts.
func LoadResolved(dataDir, assumName, scenName string) (*Resolved, error) {
	ap, err := LoadAssumptions(filepath.Join(dataDir, AssumptionsDir, assumName))
	if err != nil {
		return nil, err
	}
	assum, policy := ap.Assumptions, ap.Policy

	var sp *ScenarioPack
	if scenName != "" {
		sp, err = LoadScenario(filepath.Join(dataDir, ScenariosDir, scenName))
		if err != nil {
			return nil, err
		}
		assum, policy, err = ApplyScenario(assum, policy, sp.Patches)
		if err != nil {
			return nil, err
		}
	}

	return &Resolved{
		Assumptions: assum,
		Policy:      policy,
		Agents:      ap.Agents,
		Baseline:    ap,
		Scenario:    sp,
		Hash:        ResolvedHash(assum, policy, ap.Agents),
	}, nil
}

// ApplyScenario splits the ordered patch list by target and applies
// each half to its table. Input tables are not modified.
func ApplyScenario(assum, policy *assumptions.Table, patches []assumptions.Patch) (*assumptions.Table, *assumptions.Table, error) {
	var assumPatches, policyPatches []assumptions.Patch
	for i, p := range patches {
		switch p.Target {
		case assumptions.TargetAssumptions:
			assumPatches = append(assumPatches, p)
		case assumptions.TargetPolicy:
			policyPatches = append(policyPatches, p)
		default:
			return nil, nil, &assumptions.SchemaError{
				Key:    fmt.Sprintf("patch[%d] %s", i, p.Param),
				Reason: fmt.Sprintf("unknown target %q", p.Target),
			}
		}
	}

	patchedAssum, err := assumptions.Apply(assum, assumPatches)
	if err != nil {
		return nil, nil, err
	}
	patchedPolicy, err := assumptions.Apply(policy, policyPatches)
	if err != nil {
		return nil, nil, err
	}
	return patchedAssum, patchedPolicy, nil
}

// RunInfo assembles the lineage for a run over this input set. Manifest
// hashes feed the run id; a manifest without a declared hash falls back
// to the computed content hash.
func (r *Resolved) RunInfo(years []int, seed uint64, opts sim.Options) sim.RunInfo {
	aref := r.Baseline.Manifest.Ref()
	if aref.Hash == "" {
		aref.Hash = r.Baseline.ComputedHash
	}
	var sref *sim.PackRef
	if r.Scenario != nil {
		ref := r.Scenario.Manifest.Ref()
		if ref.Hash == "" {
			ref.Hash = r.Scenario.ComputedHash
		}
		sref = &ref
	}
	return sim.NewRunInfo(aref, sref, r.Hash, years, seed, opts)
}

// Resolvers builds the two resolvers the clock consumes.
func (r *Resolved) Resolvers() (assum, policy *assumptions.Resolver) {
	return assumptions.NewResolver(r.Assumptions), assumptions.NewResolver(r.Policy)
}
