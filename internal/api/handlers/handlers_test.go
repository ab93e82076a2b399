package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlg0/agent-zero/internal/api/models"
	"github.com/dlg0/agent-zero/internal/config"
	"github.com/dlg0/agent-zero/internal/logging"
	"github.com/dlg0/agent-zero/internal/persistence"

	"github.com/gin-gonic/gin"
)

const testManifest = `type: assumptions
id: baseline-test
version: 1.0.0
description: Minimal baseline fixture.
schema_version: 1.0.0
`

const testAssumptions = `param,region,sector,tech,year,value,unit,source
capex,AUS,power,electricity,2024,40,USD/MW,fixture
opex,AUS,power,electricity,2024,10,USD/MWh,fixture
emissions_intensity,AUS,power,electricity,2024,0.6,tCO2e/MWh,fixture
trend_param,AUS,power,electricity,2024,0.05,ratio,fixture
ref_price,AUS,,electricity,2024,50,USD/MWh,fixture
demand,AUS,,electricity,2024,100,MWh,fixture
`

const testPolicy = `region,year,policy_type,value,unit
AUS,2024,carbon_price,0,USD/tCO2e
AUS,2030,carbon_price,25,USD/tCO2e
`

const testAgents = `agents:
  - agent_id: EGEN1
    agent_type: ElectricityProducer
    region: AUS
    sector: power
    tech: electricity
    initial_capacity: 100
    horizon: 3
    vintage: 2024
    decision_rule: npv_threshold
    params:
      invest_step: 10
      max_capacity: 1000
  - agent_id: IND1
    agent_type: IndustrialConsumer
    region: AUS
    sector: industry
    initial_capacity: 0
    horizon: 1
    decision_rule: price_responsive
    params:
      commodity: electricity
      demand_low: 80
      demand_high: 100
  - agent_id: REG1
    agent_type: Regulator
    region: AUS
    initial_capacity: 0
    horizon: 1
    decision_rule: policy_setter
`

const testScenarioManifest = `type: scenario
id: carbon-up
version: 1.0.0
schema_version: 1.0.0
`

const testScenario = `id: carbon-up
description: Carbon price floor from 2024.
baseline: baseline-test
`

const testPatches = `target,param,region,sector,tech,year,operation,value,unit,rationale
policy,carbon_price,AUS,,,2024,set,50,USD/tCO2e,carbon price floor
assumptions,capex,,,electricity,,multiply,0.8,USD/MW,technology learning
`

func writeTestPacks(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()

	base := filepath.Join(dataDir, "assumptions_packs", "baseline-test")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"manifest.yaml":   testManifest,
		"assumptions.csv": testAssumptions,
		"policy.csv":      testPolicy,
		"agents.yaml":     testAgents,
	} {
		if err := os.WriteFile(filepath.Join(base, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	scen := filepath.Join(dataDir, "scenario_packs", "carbon-up")
	if err := os.MkdirAll(scen, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"manifest.yaml": testScenarioManifest,
		"scenario.yaml": testScenario,
		"patches.csv":   testPatches,
	} {
		if err := os.WriteFile(filepath.Join(scen, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return dataDir
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = writeTestPacks(t)
	cfg.OutDir = filepath.Join(t.TempDir(), "runs")
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config, reg *persistence.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.New("error", io.Discard)

	simulate := NewSimulateHandler(cfg, log, reg)
	runs := NewRunsHandler(cfg.OutDir, NewResponseCache(30*time.Second), log)
	packs := NewPacksHandler(cfg.DataDir, log)
	rules := NewRulesHandler()

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/simulate", simulate.RunSimulation)
	api.POST("/simulate/compare", simulate.CompareScenarios)
	api.GET("/runs", runs.ListRuns)
	api.GET("/runs/:id/manifest", runs.GetManifest)
	api.GET("/runs/:id/summary", runs.GetSummary)
	api.GET("/runs/:id/timeseries", runs.GetTimeseries)
	api.GET("/runs/:id/agents", runs.GetAgents)
	api.GET("/runs/:id/traces", runs.GetTraces)
	api.GET("/packs", packs.ListPacks)
	api.GET("/rules", rules.ListRules)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunSimulationEndpoint(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg, nil)

	body := models.SimulateRequest{
		Assumptions: "baseline-test",
		Years:       "2024:2026",
		Seed:        1,
		Options:     &models.SimulateOptions{IncludeTimeseries: true},
	}
	w := doJSON(t, router, http.MethodPost, "/api/v1/simulate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !runIDPattern.MatchString(resp.RunID) {
		t.Errorf("run id %q is not 12 hex chars", resp.RunID)
	}
	if resp.Status != "completed" {
		t.Errorf("status = %q, want completed", resp.Status)
	}
	if resp.Summary.FinalYear != 2026 {
		t.Errorf("final year = %d, want 2026", resp.Summary.FinalYear)
	}
	if resp.Summary.RunID != resp.RunID {
		t.Errorf("summary run id %q != response run id %q", resp.Summary.RunID, resp.RunID)
	}
	if len(resp.Timeseries) == 0 {
		t.Error("include_timeseries was set but response has no timeseries")
	}
	if _, err := os.Stat(filepath.Join(cfg.OutDir, resp.RunID, "manifest.yaml")); err != nil {
		t.Errorf("bundle was not published: %v", err)
	}

	// Same request again: already published, same id.
	w2 := doJSON(t, router, http.MethodPost, "/api/v1/simulate", body)
	if w2.Code != http.StatusOK {
		t.Fatalf("re-run status = %d", w2.Code)
	}
	var resp2 models.SimulateResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &resp2); err != nil {
		t.Fatal(err)
	}
	if resp2.RunID != resp.RunID {
		t.Errorf("re-run id %q != %q", resp2.RunID, resp.RunID)
	}
	if resp2.Status != "exists" {
		t.Errorf("re-run status = %q, want exists", resp2.Status)
	}
}

func TestRunSimulationRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg, nil)

	tests := []struct {
		name       string
		body       models.SimulateRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing years",
			body:       models.SimulateRequest{Assumptions: "baseline-test"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed years",
			body:       models.SimulateRequest{Assumptions: "baseline-test", Years: "2024"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_YEARS",
		},
		{
			name:       "unknown pack",
			body:       models.SimulateRequest{Assumptions: "no-such-pack", Years: "2024:2025"},
			wantStatus: http.StatusNotFound,
			wantCode:   "PACK_NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/simulate", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp models.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestCompareScenariosEndpoint(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg, nil)

	body := models.CompareRequest{
		Assumptions: "baseline-test",
		Years:       "2024:2026",
		Seed:        1,
		Variations: []models.ScenarioVariation{
			{Name: "carbon price floor", Scenario: "carbon-up"},
			{Name: "broken", Scenario: "no-such-scenario"},
		},
	}
	w := doJSON(t, router, http.MethodPost, "/api/v1/simulate/compare", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.CompareResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// Baseline plus the one valid variation; the broken one is skipped.
	if len(resp.Comparison) != 2 {
		t.Fatalf("got %d comparison entries, want 2", len(resp.Comparison))
	}
	if resp.Comparison[0].Name != "baseline" || resp.Comparison[0].RunID != resp.BaselineRunID {
		t.Errorf("first entry = %q/%q, want baseline/%q",
			resp.Comparison[0].Name, resp.Comparison[0].RunID, resp.BaselineRunID)
	}
	variation := resp.Comparison[1]
	if variation.Delta == nil {
		t.Fatal("variation has no delta block")
	}
	if variation.Delta.BaselineRunID != resp.BaselineRunID {
		t.Errorf("delta baseline = %q, want %q", variation.Delta.BaselineRunID, resp.BaselineRunID)
	}
	if variation.RunID == resp.BaselineRunID {
		t.Error("variation run id equals baseline run id; scenario hash did not feed the run id")
	}
}

func TestRunArtifactEndpoints(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Assumptions: "baseline-test",
		Years:       "2024:2025",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("simulate: %d %s", w.Code, w.Body.String())
	}
	var run models.SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}

	lw := doJSON(t, router, http.MethodGet, "/api/v1/runs", nil)
	if lw.Code != http.StatusOK {
		t.Fatalf("list runs: %d", lw.Code)
	}
	var listing models.RunsResponse
	if err := json.Unmarshal(lw.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Runs) != 1 || listing.Runs[0].RunID != run.RunID {
		t.Fatalf("listing = %+v, want the one published run", listing.Runs)
	}

	for _, path := range []string{"manifest", "summary", "timeseries", "agents", "traces"} {
		// Twice: cold read, then through the cache.
		for i := 0; i < 2; i++ {
			aw := doJSON(t, router, http.MethodGet, "/api/v1/runs/"+run.RunID+"/"+path, nil)
			if aw.Code != http.StatusOK {
				t.Errorf("%s (pass %d): status %d", path, i, aw.Code)
			}
		}
	}

	tw := doJSON(t, router, http.MethodGet, "/api/v1/runs/"+run.RunID+"/traces?agent_id=EGEN1", nil)
	var traces models.TracesResponse
	if err := json.Unmarshal(tw.Body.Bytes(), &traces); err != nil {
		t.Fatal(err)
	}
	if traces.Count != 2 {
		t.Errorf("EGEN1 traces = %d, want one per simulated year (2)", traces.Count)
	}

	bad := doJSON(t, router, http.MethodGet, "/api/v1/runs/not-a-run-id/summary", nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad run id: status %d, want 400", bad.Code)
	}
	missing := doJSON(t, router, http.MethodGet, "/api/v1/runs/aaaabbbbcccc/summary", nil)
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing run: status %d, want 404", missing.Code)
	}
}

func TestSimulateRecordsRegistry(t *testing.T) {
	cfg := testConfig(t)
	reg, err := persistence.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	router := newTestRouter(t, cfg, reg)

	w := doJSON(t, router, http.MethodPost, "/api/v1/simulate", models.SimulateRequest{
		Assumptions: "baseline-test",
		Years:       "2024:2025",
		Seed:        9,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("simulate: %d %s", w.Code, w.Body.String())
	}
	var run models.SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}

	records, err := reg.Runs(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].RunID != run.RunID {
		t.Fatalf("registry rows = %+v, want one row for %s", records, run.RunID)
	}
	traces, err := reg.AgentTraces(run.RunID, "EGEN1")
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Errorf("mirrored EGEN1 traces = %d, want 2", len(traces))
	}
}

func TestListPacksEndpoint(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/packs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Assumptions []models.PackInfo `json:"assumptions"`
		Scenarios   []models.PackInfo `json:"scenarios"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Assumptions) != 1 || resp.Assumptions[0].ID != "baseline-test" {
		t.Errorf("assumptions = %+v, want baseline-test", resp.Assumptions)
	}
	if len(resp.Scenarios) != 1 || resp.Scenarios[0].ID != "carbon-up" {
		t.Errorf("scenarios = %+v, want carbon-up", resp.Scenarios)
	}
	if resp.Assumptions[0].Hash == "" {
		t.Error("assumptions pack hash was not computed")
	}
}

func TestListRulesEndpoint(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/rules", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Rules []models.RuleInfo `json:"rules"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(resp.Rules))
	}
	names := map[string]bool{}
	for _, r := range resp.Rules {
		names[r.Name] = true
	}
	for _, want := range []string{"npv_threshold", "price_responsive", "policy_setter"} {
		if !names[want] {
			t.Errorf("rule %q missing from listing", want)
		}
	}
}
