package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/sim"
)

func fixtureInfo() sim.RunInfo {
	aref := sim.PackRef{ID: "baseline-v1", Version: "1.0.0", Hash: strings.Repeat("a", 64)}
	return sim.NewRunInfo(aref, nil, strings.Repeat("b", 64), []int{2024, 2025}, 42, sim.Options{})
}

func fixtureResult() *sim.Result {
	exp := 55.0
	return &sim.Result{
		Years: []int{2024, 2025},
		Timeseries: []sim.TimeseriesRow{
			{Year: 2024, Region: "AUS", Commodity: "electricity", Price: 50, Demand: 100, Supply: 110, Emissions: 55},
			{Year: 2025, Region: "AUS", Commodity: "electricity", Price: 52, Demand: 100, Supply: 120, Emissions: 60},
		},
		AgentStates: []sim.AgentRow{
			{
				Year: 2024, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS",
				Capacity: 110, Investment: 10, ExpectedPrice: &exp, Action: decision.ActionInvest,
				Extra: sim.AgentExtra{Sector: "power", Tech: "electricity", Horizon: 3, Vintage: 2024, CumInvestment: 10, CumEmissions: 55},
			},
			{
				Year: 2025, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS",
				Capacity: 120, Investment: 10, ExpectedPrice: &exp, Action: decision.ActionInvest,
				Extra: sim.AgentExtra{Sector: "power", Tech: "electricity", Horizon: 3, Vintage: 2024, CumInvestment: 20, CumEmissions: 115},
			},
		},
		Traces: []decision.Trace{
			{Year: 2024, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS", Rule: agent.RuleNPVThreshold, Action: decision.ActionInvest},
			{Year: 2025, AgentID: "EGEN1", AgentType: "ElectricityProducer", Region: "AUS", Rule: agent.RuleNPVThreshold, Action: decision.ActionInvest},
		},
		Summary: sim.Summary{
			FinalYear:           2025,
			CumulativeEmissions: 115,
			PeakEmissions:       60,
			PeakEmissionsYear:   2025,
			MinEmissionsYear:    2024,
			AveragePrices:       map[string]float64{"electricity": 51},
			TotalInvestment:     20,
			InvestmentByRegion:  map[string]float64{"AUS": 20},
			SupplySecurity:      map[string]float64{"electricity": 1.1},
			Warnings:            []sim.Warning{},
		},
	}
}

func writeFixture(t *testing.T) (string, sim.RunInfo) {
	t.Helper()
	info := fixtureInfo()
	runDir, err := Write(t.TempDir(), info, fixtureResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	return runDir, info
}

func hasIssue(issues []Issue, level Level, location string) bool {
	for _, i := range issues {
		if i.Level == level && i.Location == location {
			return true
		}
	}
	return false
}

func TestWritePublishesBundle(t *testing.T) {
	out := t.TempDir()
	info := fixtureInfo()
	runDir, err := Write(out, info, fixtureResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(runDir) != info.RunID {
		t.Errorf("run dir = %q, want named after run id %q", runDir, info.RunID)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("out dir has %d entries, want only the bundle", len(entries))
	}
	for _, name := range []string{"timeseries.csv", "agent_states.csv", "traces.jsonl", "summary.json", "manifest.yaml"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	if issues := Check(runDir); len(issues) != 0 {
		t.Errorf("fresh bundle has issues: %+v", issues)
	}

	summary, err := ReadSummary(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if summary.RunID != info.RunID {
		t.Errorf("summary run id = %q, want stamped %q", summary.RunID, info.RunID)
	}

	man, err := ReadManifest(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if man.RunID != info.RunID || man.Seed != 42 || man.EngineVersion != sim.EngineVersion {
		t.Errorf("manifest = %+v", man)
	}
	if man.Years != (YearRange{Start: 2024, End: 2025}) {
		t.Errorf("manifest years = %+v", man.Years)
	}
	if man.CreatedAt == "" {
		t.Error("manifest created_at is empty")
	}
	if man.SchemaVersions.Scenario != nil {
		t.Errorf("baseline run carries scenario schema %v", *man.SchemaVersions.Scenario)
	}
	if man.Units.Timeseries["price"] != "USD/MWh" || man.Units.AgentStates["capacity"] != "MW" {
		t.Errorf("manifest units = %+v", man.Units)
	}
	if man.Warnings != 0 {
		t.Errorf("manifest warnings = %d", man.Warnings)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	out := t.TempDir()
	info := fixtureInfo()
	runDir, err := Write(out, info, fixtureResult())
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	marker := filepath.Join(runDir, "timeseries.csv")
	if err := os.WriteFile(marker, []byte("tampered\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := Write(out, info, fixtureResult())
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second write err = %v, want ErrExists", err)
	}
	if again != runDir {
		t.Errorf("second write dir = %q, want %q", again, runDir)
	}
	raw, err := os.ReadFile(marker)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "tampered\n" {
		t.Error("existing bundle was rewritten")
	}
}

func TestWriteClearsStaleStaging(t *testing.T) {
	out := t.TempDir()
	info := fixtureInfo()
	stale := filepath.Join(out, ".staging-"+info.RunID)
	writeFilesDir(t, stale, map[string]string{"leftover.txt": "from a crashed run"})

	runDir, err := Write(out, info, fixtureResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale staging dir survived the write")
	}
	if _, err := os.Stat(filepath.Join(runDir, "leftover.txt")); !os.IsNotExist(err) {
		t.Error("stale staging contents leaked into the bundle")
	}
}

func writeFilesDir(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestArtifactsRoundTrip(t *testing.T) {
	runDir, info := writeFixture(t)

	ts, err := ReadTimeseries(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 {
		t.Fatalf("timeseries rows = %d, want 2", len(ts))
	}
	first := ts[0]
	if first.Year != 2024 || first.Price != 50 || first.Supply != 110 || first.Shortage {
		t.Errorf("first row = %+v", first)
	}
	if first.RunID != info.RunID || first.AssumptionsID != "baseline-v1" || first.ScenarioID != "" {
		t.Errorf("row ids = %+v", first)
	}

	states, err := ReadAgentStates(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("agent rows = %d, want 2", len(states))
	}
	ag := states[0]
	if ag.AgentID != "EGEN1" || ag.Capacity != 110 || ag.Action != "invest" {
		t.Errorf("agent row = %+v", ag)
	}
	if ag.ExpectedPrice == nil || *ag.ExpectedPrice != 55 {
		t.Errorf("expected price = %v, want 55", ag.ExpectedPrice)
	}
	if ag.Sector != "power" || ag.Horizon != 3 || ag.CumEmissions != 55 {
		t.Errorf("agent extras = %+v", ag)
	}

	traces, err := ReadTraces(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Fatalf("traces = %d, want 2", len(traces))
	}
	var tr decision.Trace
	if err := json.Unmarshal(traces[0], &tr); err != nil {
		t.Fatal(err)
	}
	if tr.AgentID != "EGEN1" || tr.Year != 2024 || tr.Action != decision.ActionInvest {
		t.Errorf("trace = %+v", tr)
	}
}

func TestWriteIsByteStable(t *testing.T) {
	info := fixtureInfo()
	dirA, err := Write(t.TempDir(), info, fixtureResult())
	if err != nil {
		t.Fatal(err)
	}
	dirB, err := Write(t.TempDir(), info, fixtureResult())
	if err != nil {
		t.Fatal(err)
	}

	// manifest.yaml carries the only wall-clock field and is excluded.
	for _, name := range []string{"timeseries.csv", "agent_states.csv", "traces.jsonl", "summary.json"} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between identical runs", name)
		}
	}
}

func TestCheckFlagsMissingTraces(t *testing.T) {
	runDir, _ := writeFixture(t)
	if err := os.Remove(filepath.Join(runDir, "traces.jsonl")); err != nil {
		t.Fatal(err)
	}
	issues := Check(runDir)
	if !hasIssue(issues, LevelError, "traces") {
		t.Errorf("issues = %+v, want traces error", issues)
	}
}

func TestCheckFlagsSummaryDisagreement(t *testing.T) {
	runDir, _ := writeFixture(t)
	broken := map[string]any{
		"run_id":               "somebody-else",
		"final_year":           2025,
		"cumulative_emissions": 1.0,
		"peak_emissions":       60.0,
		"year_net_zero":        nil,
		"average_prices":       map[string]float64{},
		"total_investment":     20.0,
		"investment_by_region": map[string]float64{},
		"supply_security":      map[string]float64{},
		"shortage_years":       0,
	}
	raw, err := json.Marshal(broken)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "summary.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	issues := Check(runDir)
	if !hasIssue(issues, LevelError, "summary.run_id") {
		t.Errorf("issues = %+v, want summary.run_id error", issues)
	}
	if !hasIssue(issues, LevelError, "summary.cumulative_emissions") {
		t.Errorf("issues = %+v, want cumulative_emissions error", issues)
	}
}

func TestCheckFlagsRenamedDirectory(t *testing.T) {
	runDir, _ := writeFixture(t)
	moved := filepath.Join(filepath.Dir(runDir), "not-the-run-id")
	if err := os.Rename(runDir, moved); err != nil {
		t.Fatal(err)
	}
	issues := Check(moved)
	if !hasIssue(issues, LevelError, "manifest.run_id") {
		t.Errorf("issues = %+v, want manifest.run_id error", issues)
	}
}

func TestCheckFlagsNegativePrice(t *testing.T) {
	runDir, info := writeFixture(t)
	csv := "year,region,commodity,price,demand,supply,emissions,shortage,scenario_id,assumptions_id,run_id\n" +
		"2024,AUS,electricity,-1.000000,100.000000,110.000000,115.000000,false,,baseline-v1," + info.RunID + "\n"
	if err := os.WriteFile(filepath.Join(runDir, "timeseries.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	issues := Check(runDir)
	if !hasIssue(issues, LevelError, "timeseries.price") {
		t.Errorf("issues = %+v, want timeseries.price error", issues)
	}
}

func TestCheckWarnsOnNegativeEmissions(t *testing.T) {
	res := fixtureResult()
	res.Timeseries[0].Emissions = -5
	res.Timeseries[1].Emissions = -5
	res.Summary.CumulativeEmissions = -10
	res.Summary.PeakEmissions = -5
	res.Summary.PeakEmissionsYear = 2024

	info := fixtureInfo()
	runDir, err := Write(t.TempDir(), info, res)
	if err != nil {
		t.Fatal(err)
	}
	issues := Check(runDir)
	if !hasIssue(issues, LevelWarning, "timeseries.emissions") {
		t.Errorf("issues = %+v, want emissions warning", issues)
	}
	if Errors(issues) {
		t.Errorf("negative emissions should not be error-level: %+v", issues)
	}
}

func TestExportWeb(t *testing.T) {
	runDir, info := writeFixture(t)
	out := filepath.Join(t.TempDir(), "web")
	if err := ExportWeb(runDir, out); err != nil {
		t.Fatalf("ExportWeb: %v", err)
	}

	for _, name := range []string{"manifest.json", "summary.json", "timeseries.json", "agents.json", "agent_traces.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing export %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var man struct {
		RunID               string `json:"run_id"`
		ReproductionCommand string `json:"reproduction_command"`
	}
	if err := json.Unmarshal(raw, &man); err != nil {
		t.Fatal(err)
	}
	if man.RunID != info.RunID {
		t.Errorf("manifest.json run id = %q", man.RunID)
	}
	want := "agentzero run --assum baseline-v1 --years 2024:2025 --seed 42"
	if man.ReproductionCommand != want {
		t.Errorf("reproduction command = %q, want %q", man.ReproductionCommand, want)
	}

	raw, err = os.ReadFile(filepath.Join(out, "agents.json"))
	if err != nil {
		t.Fatal(err)
	}
	var agents []WebAgent
	if err := json.Unmarshal(raw, &agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0].AgentID != "EGEN1" || agents[0].InitialCapacity != 110 {
		t.Errorf("agents.json = %+v", agents)
	}

	raw, err = os.ReadFile(filepath.Join(out, "timeseries.json"))
	if err != nil {
		t.Fatal(err)
	}
	var ts []TimeseriesRecord
	if err := json.Unmarshal(raw, &ts); err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 || ts[1].Year != 2025 {
		t.Errorf("timeseries.json = %+v", ts)
	}

	raw, err = os.ReadFile(filepath.Join(out, "agent_traces.json"))
	if err != nil {
		t.Fatal(err)
	}
	var traces []json.RawMessage
	if err := json.Unmarshal(raw, &traces); err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Errorf("agent_traces.json has %d entries, want 2", len(traces))
	}
}

func TestListSkipsNonBundles(t *testing.T) {
	out := t.TempDir()

	infoA := fixtureInfo()
	if _, err := Write(out, infoA, fixtureResult()); err != nil {
		t.Fatal(err)
	}
	aref := sim.PackRef{ID: "baseline-v1", Version: "1.0.0", Hash: strings.Repeat("a", 64)}
	infoB := sim.NewRunInfo(aref, nil, strings.Repeat("b", 64), []int{2024, 2025}, 43, sim.Options{})
	if _, err := Write(out, infoB, fixtureResult()); err != nil {
		t.Fatal(err)
	}

	writeFilesDir(t, filepath.Join(out, ".staging-junk"), map[string]string{"x": "y"})
	writeFilesDir(t, filepath.Join(out, "not-a-bundle"), map[string]string{"readme.txt": "hello"})
	if err := os.WriteFile(filepath.Join(out, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	manifests, err := List(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(manifests) != 2 {
		t.Fatalf("List = %d manifests, want 2", len(manifests))
	}
	ids := map[string]bool{manifests[0].RunID: true, manifests[1].RunID: true}
	if !ids[infoA.RunID] || !ids[infoB.RunID] {
		t.Errorf("List ids = %v, want %s and %s", ids, infoA.RunID, infoB.RunID)
	}
}

func TestListMissingDir(t *testing.T) {
	manifests, err := List(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("List on a missing dir: %v", err)
	}
	if len(manifests) != 0 {
		t.Errorf("manifests = %+v, want none", manifests)
	}
}
