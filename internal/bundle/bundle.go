// Package bundle writes, validates and exports run result bundles.
//
// A bundle directory is named after the run id and holds timeseries.csv,
// agent_states.csv, traces.jsonl, summary.json and manifest.yaml.
// Bundles are immutable once published: Write stages every artifact in a
// hidden sibling directory and renames it into place, and an existing
// run directory is never touched again.
package bundle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/sim"
)

// Schema versions stamped into every manifest. Bump when the artifact
// layout changes incompatibly.
const (
	AssumptionsSchemaVersion = "1.0.0"
	ScenarioSchemaVersion    = "1.0.0"
	ResultsSchemaVersion     = "1.0.0"
)

// ErrExists reports that a bundle for this run id has already been
// published. The existing directory is authoritative and left as is.
var ErrExists = errors.New("run bundle already exists")

// YearRange is the inclusive simulated span.
type YearRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// SchemaVersions records the schema of each input and output artifact.
// Scenario is nil for baseline-only runs.
type SchemaVersions struct {
	Assumptions string  `yaml:"assumptions" json:"assumptions"`
	Scenario    *string `yaml:"scenario" json:"scenario"`
	Results     string  `yaml:"results" json:"results"`
}

// Units maps artifact columns to their physical units. Dimensionless
// columns are absent.
type Units struct {
	Timeseries  map[string]string `yaml:"timeseries" json:"timeseries"`
	AgentStates map[string]string `yaml:"agent_states" json:"agent_states"`
}

// Manifest is the bundle's lineage record: everything needed to
// reproduce the run and to interpret its artifacts.
type Manifest struct {
	RunID          string         `yaml:"run_id" json:"run_id"`
	CreatedAt      string         `yaml:"created_at" json:"created_at"`
	EngineVersion  string         `yaml:"engine_version" json:"engine_version"`
	Seed           uint64         `yaml:"seed" json:"seed"`
	Years          YearRange      `yaml:"years" json:"years"`
	Assumptions    sim.PackRef    `yaml:"assumptions" json:"assumptions"`
	Scenario       *sim.PackRef   `yaml:"scenario" json:"scenario"`
	ResolvedHash   string         `yaml:"resolved_hash" json:"resolved_hash"`
	Options        sim.Options    `yaml:"options" json:"options"`
	SchemaVersions SchemaVersions `yaml:"schema_versions" json:"schema_versions"`
	Units          Units          `yaml:"units" json:"units"`
	Warnings       int            `yaml:"warnings" json:"warnings"`
}

// NewManifest builds the manifest for a finished run. CreatedAt is the
// only non-reproducible field in the whole bundle.
func NewManifest(info sim.RunInfo, warnings int) Manifest {
	var years YearRange
	if len(info.Years) > 0 {
		years = YearRange{Start: info.Years[0], End: info.Years[len(info.Years)-1]}
	}
	schemas := SchemaVersions{
		Assumptions: AssumptionsSchemaVersion,
		Results:     ResultsSchemaVersion,
	}
	if info.Scenario != nil {
		v := ScenarioSchemaVersion
		schemas.Scenario = &v
	}
	return Manifest{
		RunID:          info.RunID,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		EngineVersion:  info.EngineVersion,
		Seed:           info.Seed,
		Years:          years,
		Assumptions:    info.Assumptions,
		Scenario:       info.Scenario,
		ResolvedHash:   info.ResolvedHash,
		Options:        info.Options,
		SchemaVersions: schemas,
		Units:          defaultUnits(),
		Warnings:       warnings,
	}
}

func defaultUnits() Units {
	return Units{
		Timeseries: map[string]string{
			"price":     "USD/MWh",
			"demand":    "MWh",
			"supply":    "MWh",
			"emissions": "tCO2e",
		},
		AgentStates: map[string]string{
			"capacity":       "MW",
			"investment":     "MW",
			"expected_price": "USD/MWh",
		},
	}
}

// Write publishes a run bundle under outDir/<run_id>. All artifacts are
// written to a staging directory first and renamed into place in one
// step, so a crash never leaves a half-written bundle behind. If the run
// directory already exists its path is returned with ErrExists.
func Write(outDir string, info sim.RunInfo, res *sim.Result) (string, error) {
	if info.RunID == "" {
		return "", errors.New("run id is empty")
	}
	runDir := filepath.Join(outDir, info.RunID)
	if _, err := os.Stat(runDir); err == nil {
		return runDir, ErrExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	staging := filepath.Join(outDir, ".staging-"+info.RunID)
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	if err := writeArtifacts(staging, info, res); err != nil {
		os.RemoveAll(staging)
		return "", err
	}
	if err := os.Rename(staging, runDir); err != nil {
		os.RemoveAll(staging)
		return "", err
	}
	return runDir, nil
}

func writeArtifacts(dir string, info sim.RunInfo, res *sim.Result) error {
	if err := writeTimeseriesCSV(filepath.Join(dir, "timeseries.csv"), info, res.Timeseries); err != nil {
		return err
	}
	if err := writeAgentStatesCSV(filepath.Join(dir, "agent_states.csv"), res.AgentStates); err != nil {
		return err
	}
	if err := writeTracesJSONL(filepath.Join(dir, "traces.jsonl"), res.Traces); err != nil {
		return err
	}

	summary := res.Summary
	summary.RunID = info.RunID
	if err := writeJSON(filepath.Join(dir, "summary.json"), summary); err != nil {
		return err
	}

	raw, err := yaml.Marshal(NewManifest(info, len(res.Warnings)))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.yaml"), raw, 0o644)
}

func writeTracesJSONL(path string, traces []decision.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, tr := range traces {
		if err := enc.Encode(tr); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return os.WriteFile(path, raw, 0o644)
}

// ReadManifest loads a published bundle's manifest.yaml.
func ReadManifest(runDir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(runDir, "manifest.yaml"))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("%s/manifest.yaml: %w", runDir, err)
	}
	return m, nil
}

// ReadSummary loads a published bundle's summary.json.
func ReadSummary(runDir string) (sim.Summary, error) {
	raw, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		return sim.Summary{}, err
	}
	var s sim.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return sim.Summary{}, fmt.Errorf("%s/summary.json: %w", runDir, err)
	}
	return s, nil
}

// ReadTraces loads a bundle's decision traces as raw JSON objects, one
// per line of traces.jsonl.
func ReadTraces(runDir string) ([]json.RawMessage, error) {
	path := filepath.Join(runDir, "traces.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []json.RawMessage
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%s line %d: invalid JSON", path, line)
		}
		out = append(out, json.RawMessage(append([]byte(nil), raw...)))
	}
	return out, sc.Err()
}

// List returns the manifests of all published bundles under outDir,
// newest first. Staging directories and anything without a readable
// manifest are skipped.
func List(outDir string) ([]Manifest, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Manifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		m, err := ReadManifest(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}
