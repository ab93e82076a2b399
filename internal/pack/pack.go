// Package pack loads, validates and hashes the on-disk input packs: the
// baseline assumptions pack (manifest.yaml, assumptions.csv, policy.csv,
// agents.yaml) and the scenario pack (manifest.yaml, scenario.yaml,
// patches.csv).
package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/assumptions"
	"github.com/dlg0/agent-zero/internal/sim"
)

// Pack types as declared in manifest.yaml.
const (
	TypeAssumptions = "assumptions"
	TypeScenario    = "scenario"
)

// Manifest describes a pack. Hash, when declared, must match the
// computed content hash of the pack's data files.
type Manifest struct {
	Type          string `yaml:"type"`
	ID            string `yaml:"id"`
	Name          string `yaml:"name,omitempty"`
	Version       string `yaml:"version"`
	Description   string `yaml:"description,omitempty"`
	SchemaVersion string `yaml:"schema_version,omitempty"`
	Hash          string `yaml:"hash,omitempty"`
}

// Ref returns the lineage reference for this pack. Older manifests used
// name instead of id.
func (m Manifest) Ref() sim.PackRef {
	id := m.ID
	if id == "" {
		id = m.Name
	}
	return sim.PackRef{ID: id, Version: m.Version, Hash: m.Hash}
}

// Scenario is the scenario.yaml narrative block.
type Scenario struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	// Baseline names the assumptions pack this scenario was written
	// against. Informational; any baseline can be patched.
	Baseline string `yaml:"baseline,omitempty"`
}

// AssumptionsPack is a loaded baseline pack.
type AssumptionsPack struct {
	Dir      string
	Manifest Manifest

	Assumptions *assumptions.Table
	Policy      *assumptions.Table
	Agents      []agent.Config

	// ComputedHash is the sha256 content hash over the pack's data
	// files, computed at load time.
	ComputedHash string

	assumMissing  []string
	policyMissing []string
}

// ScenarioPack is a loaded scenario pack.
type ScenarioPack struct {
	Dir      string
	Manifest Manifest

	Scenario Scenario
	Patches  []assumptions.Patch

	ComputedHash string

	patchMissing []string
}

// LoadManifest reads a pack directory's manifest.yaml.
func LoadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("%s/manifest.yaml: %w", dir, err)
	}
	return m, nil
}

// LoadAssumptions loads and validates an assumptions pack.
func LoadAssumptions(dir string) (*AssumptionsPack, error) {
	p, err := LoadAssumptionsUnchecked(dir)
	if err != nil {
		return nil, err
	}
	if issues := p.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("assumptions pack %s: %s", dir, strings.Join(issues, "; "))
	}
	return p, nil
}

// LoadAssumptionsUnchecked loads an assumptions pack without semantic
// validation. File and parse errors still fail.
func LoadAssumptionsUnchecked(dir string) (*AssumptionsPack, error) {
	man, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	assum, assumMissing, err := readAssumptionsCSV(filepath.Join(dir, "assumptions.csv"))
	if err != nil {
		return nil, err
	}
	policy, policyMissing, err := readPolicyCSV(filepath.Join(dir, "policy.csv"))
	if err != nil {
		return nil, err
	}
	agents, err := readAgentsYAML(filepath.Join(dir, "agents.yaml"))
	if err != nil {
		return nil, err
	}
	hash, err := ContentHash(dir)
	if err != nil {
		return nil, err
	}
	return &AssumptionsPack{
		Dir:           dir,
		Manifest:      man,
		Assumptions:   assumptions.NewTable(assum),
		Policy:        assumptions.NewTable(policy),
		Agents:        agents,
		ComputedHash:  hash,
		assumMissing:  assumMissing,
		policyMissing: policyMissing,
	}, nil
}

// LoadScenario loads and validates a scenario pack.
func LoadScenario(dir string) (*ScenarioPack, error) {
	p, err := LoadScenarioUnchecked(dir)
	if err != nil {
		return nil, err
	}
	if issues := p.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("scenario pack %s: %s", dir, strings.Join(issues, "; "))
	}
	return p, nil
}

// LoadScenarioUnchecked loads a scenario pack without semantic
// validation.
func LoadScenarioUnchecked(dir string) (*ScenarioPack, error) {
	man, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		return nil, err
	}
	var scen Scenario
	if err := yaml.Unmarshal(raw, &scen); err != nil {
		return nil, fmt.Errorf("%s/scenario.yaml: %w", dir, err)
	}
	patches, patchMissing, err := readPatchesCSV(filepath.Join(dir, "patches.csv"))
	if err != nil {
		return nil, err
	}
	hash, err := ContentHash(dir)
	if err != nil {
		return nil, err
	}
	return &ScenarioPack{
		Dir:          dir,
		Manifest:     man,
		Scenario:     scen,
		Patches:      patches,
		ComputedHash: hash,
		patchMissing: patchMissing,
	}, nil
}
