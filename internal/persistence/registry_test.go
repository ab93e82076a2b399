package persistence

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/sim"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func testInfo(seed uint64) sim.RunInfo {
	aref := sim.PackRef{ID: "baseline-v1", Version: "1.0.0", Hash: strings.Repeat("a", 64)}
	return sim.NewRunInfo(aref, nil, strings.Repeat("b", 64), []int{2024, 2025, 2026}, seed, sim.Options{})
}

func testSummary() sim.Summary {
	return sim.Summary{
		FinalYear:           2026,
		CumulativeEmissions: 150,
		TotalInvestment:     30,
		ShortageYears:       1,
		Warnings:            []sim.Warning{{Year: 2025, Code: "negative_emissions"}},
	}
}

func TestRecordRunAndList(t *testing.T) {
	reg := openTestRegistry(t)

	first, err := reg.RecordRun(testInfo(1), testSummary(), "runs/one")
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	second, err := reg.RecordRun(testInfo(2), testSummary(), "runs/two")
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if first == second {
		t.Fatalf("attempt ids must be distinct, both %q", first)
	}

	records, err := reg.Runs(0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	var found *RunRecord
	for i := range records {
		if records[i].AttemptID == second {
			found = &records[i]
		}
	}
	if found == nil {
		t.Fatalf("attempt %s missing from listing", second)
	}
	if found.Seed != 2 || found.StartYear != 2024 || found.EndYear != 2026 {
		t.Errorf("record = seed %d years %d..%d, want 2 2024..2026", found.Seed, found.StartYear, found.EndYear)
	}
	if found.AssumptionsID != "baseline-v1" || found.ScenarioID != "" {
		t.Errorf("pack ids = %q/%q, want baseline-v1 and empty scenario", found.AssumptionsID, found.ScenarioID)
	}
	if found.Warnings != 1 || found.ShortageYears != 1 {
		t.Errorf("warnings=%d shortage_years=%d, want 1 and 1", found.Warnings, found.ShortageYears)
	}
}

func TestRepeatedAttemptsShareRunID(t *testing.T) {
	reg := openTestRegistry(t)

	info := testInfo(7)
	if _, err := reg.RecordRun(info, testSummary(), "runs/x"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.RecordRun(info, testSummary(), "runs/x"); err != nil {
		t.Fatal(err)
	}

	attempts, err := reg.Attempts(info.RunID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if attempts[0].RunID != info.RunID || attempts[1].RunID != info.RunID {
		t.Errorf("attempts carry run ids %q, %q, want both %q", attempts[0].RunID, attempts[1].RunID, info.RunID)
	}
}

func TestSaveTracesReplacesPerRun(t *testing.T) {
	reg := openTestRegistry(t)
	runID := "abc123def456"

	traces := []decision.Trace{
		{Year: 2024, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS",
			Rule: agent.RuleNPVThreshold, Action: decision.ActionInvest,
			Inputs: decision.Inputs{CurrentPrice: 50}},
		{Year: 2024, AgentID: "ECON1", AgentType: "Household", Region: "AUS",
			Rule: agent.RulePriceResponsive, Action: decision.ActionSupply},
		{Year: 2025, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS",
			Rule: agent.RuleNPVThreshold, Action: decision.ActionHold, Rationed: true},
	}
	if err := reg.SaveTraces(runID, traces); err != nil {
		t.Fatalf("SaveTraces: %v", err)
	}
	// Re-recording the same run must not duplicate rows.
	if err := reg.SaveTraces(runID, traces); err != nil {
		t.Fatalf("SaveTraces again: %v", err)
	}

	all, err := reg.AgentTraces(runID, "")
	if err != nil {
		t.Fatalf("AgentTraces: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d traces, want 3", len(all))
	}
	if all[0].Year != 2024 || all[0].AgentID != "ECON1" {
		t.Errorf("first trace = %s/%d, want ECON1/2024 (year then agent order)", all[0].AgentID, all[0].Year)
	}

	gen, err := reg.AgentTraces(runID, "EGEN1")
	if err != nil {
		t.Fatalf("AgentTraces(EGEN1): %v", err)
	}
	if len(gen) != 2 {
		t.Fatalf("got %d EGEN1 traces, want 2", len(gen))
	}
	if gen[1].Action != string(decision.ActionHold) || !gen[1].Rationed {
		t.Errorf("2025 trace = action %q rationed %v, want hold/true", gen[1].Action, gen[1].Rationed)
	}
	if !strings.Contains(gen[0].Inputs, `"current_price":50`) {
		t.Errorf("inputs JSON missing current_price: %s", gen[0].Inputs)
	}
}
