package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EngineVersion participates in the run identity hash; bump it whenever
// a change can alter results for identical inputs.
const EngineVersion = "0.1.0"

// PackRef identifies one input pack by name, version and content hash.
type PackRef struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
	Hash    string `json:"hash" yaml:"hash"`
}

// RunInfo is the lineage of one run: everything needed to reproduce it
// and to name its output bundle.
type RunInfo struct {
	RunID         string
	EngineVersion string
	Seed          uint64
	Years         []int
	Assumptions   PackRef
	Scenario      *PackRef
	// ResolvedHash covers the post-patch assumptions, policy and
	// catalogue actually fed to the clock.
	ResolvedHash string
	Options      Options
}

// MakeRunID derives the short run identifier from the run inputs. The
// payload is serialized with sorted keys, so the id is stable for a
// given engine version, input hashes, year list, seed and options.
// scenarioHash is empty for baseline-only runs.
func MakeRunID(engineVersion, assumptionsHash, scenarioHash string, years []int, seed uint64, opts Options) string {
	var scen *string
	if scenarioHash != "" {
		scen = &scenarioHash
	}
	if years == nil {
		years = []int{}
	}
	// Fields are declared in key order; encoding/json preserves it.
	payload := struct {
		AssumptionsHash string  `json:"assumptions_hash"`
		EngineVersion   string  `json:"engine_version"`
		Opts            Options `json:"opts"`
		ScenarioHash    *string `json:"scenario_hash"`
		Seed            uint64  `json:"seed"`
		Years           []int   `json:"years"`
	}{
		AssumptionsHash: assumptionsHash,
		EngineVersion:   engineVersion,
		Opts:            opts,
		ScenarioHash:    scen,
		Seed:            seed,
		Years:           years,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshalling a struct of strings, ints and floats cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12]
}

// NewRunInfo assembles the lineage for a run about to start.
func NewRunInfo(assumptions PackRef, scenario *PackRef, resolvedHash string, years []int, seed uint64, opts Options) RunInfo {
	scenHash := ""
	if scenario != nil {
		scenHash = scenario.Hash
	}
	opts = opts.withDefaults()
	return RunInfo{
		RunID:         MakeRunID(EngineVersion, assumptions.Hash, scenHash, years, seed, opts),
		EngineVersion: EngineVersion,
		Seed:          seed,
		Years:         append([]int{}, years...),
		Assumptions:   assumptions,
		Scenario:      scenario,
		ResolvedHash:  resolvedHash,
		Options:       opts,
	}
}
