package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WebAgent is one agents.json entry: the catalogue view a frontend
// renders as a card, derived from the agent's first recorded year.
type WebAgent struct {
	AgentID         string  `json:"agent_id"`
	AgentType       string  `json:"agent_type"`
	Region          string  `json:"region"`
	Sector          string  `json:"sector,omitempty"`
	Tech            string  `json:"tech,omitempty"`
	InitialCapacity float64 `json:"initial_capacity"`
	Horizon         int     `json:"horizon"`
	Vintage         int     `json:"vintage,omitempty"`
}

type webManifest struct {
	Manifest
	ReproductionCommand string `json:"reproduction_command"`
}

// ExportWeb converts a published bundle into the JSON files a browser
// frontend consumes: manifest.json, summary.json, timeseries.json,
// agents.json and agent_traces.json under outDir.
func ExportWeb(runDir, outDir string) error {
	man, err := ReadManifest(runDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	web := webManifest{Manifest: man, ReproductionCommand: reproductionCommand(man)}
	if err := writeJSON(filepath.Join(outDir, "manifest.json"), web); err != nil {
		return err
	}

	// summary.json is already JSON; copy it through untouched.
	raw, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "summary.json"), raw, 0o644); err != nil {
		return err
	}

	ts, err := ReadTimeseries(runDir)
	if err != nil {
		return err
	}
	if ts == nil {
		ts = []TimeseriesRecord{}
	}
	if err := writeJSON(filepath.Join(outDir, "timeseries.json"), ts); err != nil {
		return err
	}

	states, err := ReadAgentStates(runDir)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "agents.json"), webAgents(states)); err != nil {
		return err
	}

	traces, err := ReadTraces(runDir)
	if err != nil {
		return err
	}
	if traces == nil {
		traces = []json.RawMessage{}
	}
	return writeJSON(filepath.Join(outDir, "agent_traces.json"), traces)
}

func reproductionCommand(m Manifest) string {
	parts := []string{"agentzero", "run", "--assum", m.Assumptions.ID}
	if m.Scenario != nil && m.Scenario.ID != "" {
		parts = append(parts, "--scen", m.Scenario.ID)
	}
	parts = append(parts,
		"--years", fmt.Sprintf("%d:%d", m.Years.Start, m.Years.End),
		"--seed", strconv.FormatUint(m.Seed, 10),
	)
	return strings.Join(parts, " ")
}

func webAgents(states []AgentRecord) []WebAgent {
	out := []WebAgent{}
	seen := map[string]bool{}
	for _, s := range states {
		if seen[s.AgentID] {
			continue
		}
		seen[s.AgentID] = true
		out = append(out, WebAgent{
			AgentID:         s.AgentID,
			AgentType:       s.AgentType,
			Region:          s.Region,
			Sector:          s.Sector,
			Tech:            s.Tech,
			InitialCapacity: s.Capacity,
			Horizon:         s.Horizon,
			Vintage:         s.Vintage,
		})
	}
	return out
}
