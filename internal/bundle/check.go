package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
)

// Level classifies a validation issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Issue is one problem found while checking a published bundle.
type Issue struct {
	Level    Level  `json:"level"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Errors reports whether any issue is error-level.
func Errors(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

var summaryRequired = []string{
	"run_id", "final_year", "cumulative_emissions", "peak_emissions",
	"year_net_zero", "average_prices", "total_investment",
	"investment_by_region", "supply_security", "shortage_years",
}

// Check re-validates a published bundle: every artifact present and
// parseable, required columns and fields in place, value ranges sane,
// and the files in agreement with each other. Negative emissions are a
// warning, not an error, since carbon capture makes them legitimate.
func Check(runDir string) []Issue {
	var issues []Issue

	ts, tsIssues := checkTimeseries(runDir)
	issues = append(issues, tsIssues...)
	issues = append(issues, checkAgentStates(runDir)...)

	summary, sumIssues := checkSummary(runDir)
	issues = append(issues, sumIssues...)

	manifest, manIssues := checkManifest(runDir)
	issues = append(issues, manIssues...)

	issues = append(issues, checkTraces(runDir)...)

	if manifest != nil {
		if base := filepath.Base(filepath.Clean(runDir)); manifest.RunID != base {
			issues = append(issues, Issue{LevelError, "manifest.run_id",
				fmt.Sprintf("directory %q does not match run_id %q", base, manifest.RunID)})
		}
		if summary != nil {
			if sid, _ := summary["run_id"].(string); sid != manifest.RunID {
				issues = append(issues, Issue{LevelError, "summary.run_id",
					fmt.Sprintf("summary run_id %q does not match manifest run_id %q", sid, manifest.RunID)})
			}
		}
		if ts != nil {
			for _, row := range ts {
				if row.RunID != manifest.RunID {
					issues = append(issues, Issue{LevelError, "timeseries.run_id",
						fmt.Sprintf("row run_id %q does not match manifest run_id %q", row.RunID, manifest.RunID)})
					break
				}
			}
		}
	}
	if ts != nil && summary != nil {
		total := 0.0
		for _, row := range ts {
			total += row.Emissions
		}
		if cum, ok := summary["cumulative_emissions"].(float64); ok {
			if math.Abs(cum-total) > 1e-6 {
				issues = append(issues, Issue{LevelError, "summary.cumulative_emissions",
					fmt.Sprintf("summary reports %v but timeseries emissions total %v", cum, total)})
			}
		}
	}
	return issues
}

func checkTimeseries(runDir string) ([]TimeseriesRecord, []Issue) {
	path := filepath.Join(runDir, "timeseries.csv")
	t, err := readCSV(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Issue{{LevelError, "timeseries", "no timeseries.csv found"}}
		}
		return nil, []Issue{{LevelError, "timeseries", err.Error()}}
	}

	var issues []Issue
	for _, col := range timeseriesCols {
		if !t.has(col) {
			issues = append(issues, Issue{LevelError, "timeseries." + col, "missing required column " + col})
		}
	}
	for _, col := range []string{"price", "demand", "supply"} {
		if t.has(col) && anyBelow(t, col, 0) {
			issues = append(issues, Issue{LevelError, "timeseries." + col, "values below minimum 0 found"})
		}
	}
	if t.has("emissions") && anyBelow(t, "emissions", 0) {
		issues = append(issues, Issue{LevelWarning, "timeseries.emissions",
			"negative emissions found (allowed when carbon capture is enabled)"})
	}

	rows, err := ReadTimeseries(runDir)
	if err != nil {
		issues = append(issues, Issue{LevelError, "timeseries", err.Error()})
		return nil, issues
	}
	return rows, issues
}

func checkAgentStates(runDir string) []Issue {
	path := filepath.Join(runDir, "agent_states.csv")
	t, err := readCSV(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Issue{{LevelError, "agent_states", "no agent_states.csv found"}}
		}
		return []Issue{{LevelError, "agent_states", err.Error()}}
	}

	var issues []Issue
	for _, col := range agentStateCols {
		if !t.has(col) {
			issues = append(issues, Issue{LevelError, "agent_states." + col, "missing required column " + col})
		}
	}
	for _, col := range []string{"capacity", "investment"} {
		if t.has(col) && anyBelow(t, col, 0) {
			issues = append(issues, Issue{LevelError, "agent_states." + col, "values below minimum 0 found"})
		}
	}
	return issues
}

func checkSummary(runDir string) (map[string]any, []Issue) {
	raw, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Issue{{LevelError, "summary", "no summary.json found"}}
		}
		return nil, []Issue{{LevelError, "summary", err.Error()}}
	}
	var summary map[string]any
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, []Issue{{LevelError, "summary", err.Error()}}
	}

	var issues []Issue
	for _, field := range summaryRequired {
		if _, ok := summary[field]; !ok {
			issues = append(issues, Issue{LevelError, "summary." + field, "missing required field " + field})
		}
	}
	if sid, _ := summary["run_id"].(string); sid == "" {
		issues = append(issues, Issue{LevelError, "summary.run_id", "run_id is empty"})
	}
	return summary, issues
}

func checkManifest(runDir string) (*Manifest, []Issue) {
	m, err := ReadManifest(runDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Issue{{LevelError, "manifest", "no manifest.yaml found"}}
		}
		return nil, []Issue{{LevelError, "manifest", err.Error()}}
	}

	var issues []Issue
	if m.RunID == "" {
		issues = append(issues, Issue{LevelError, "manifest.run_id", "run_id is empty"})
	}
	if m.EngineVersion == "" {
		issues = append(issues, Issue{LevelError, "manifest.engine_version", "engine_version is empty"})
	}
	if m.CreatedAt == "" {
		issues = append(issues, Issue{LevelError, "manifest.created_at", "created_at is empty"})
	}
	if m.Years.Start > m.Years.End {
		issues = append(issues, Issue{LevelError, "manifest.years",
			fmt.Sprintf("start %d after end %d", m.Years.Start, m.Years.End)})
	}
	if m.Assumptions.ID == "" {
		issues = append(issues, Issue{LevelError, "manifest.assumptions", "assumptions pack id is empty"})
	}
	if m.Assumptions.Hash == "" {
		issues = append(issues, Issue{LevelError, "manifest.assumptions", "assumptions pack hash is empty"})
	}
	if m.Scenario != nil && m.Scenario.ID == "" {
		issues = append(issues, Issue{LevelError, "manifest.scenario", "scenario pack id is empty"})
	}
	return &m, issues
}

func checkTraces(runDir string) []Issue {
	if _, err := ReadTraces(runDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Issue{{LevelError, "traces", "no traces.jsonl found"}}
		}
		return []Issue{{LevelError, "traces", err.Error()}}
	}
	return nil
}

func anyBelow(t *csvFile, col string, min float64) bool {
	for n, rec := range t.rows {
		v, err := t.getFloat(rec, n+2, col)
		if err != nil {
			continue
		}
		if v < min {
			return true
		}
	}
	return false
}
