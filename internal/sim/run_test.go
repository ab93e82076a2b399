package sim

import (
	"regexp"
	"testing"
)

func TestMakeRunIDStable(t *testing.T) {
	years := []int{2024, 2025, 2026}
	opts := Options{ClearingRate: 0.05}

	a := MakeRunID(EngineVersion, "abc123", "", years, 42, opts)
	b := MakeRunID(EngineVersion, "abc123", "", years, 42, opts)
	if a != b {
		t.Errorf("identical inputs gave %q and %q", a, b)
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(a) {
		t.Errorf("run id %q is not 12 hex chars", a)
	}
}

func TestMakeRunIDSensitivity(t *testing.T) {
	years := []int{2024, 2025}
	opts := Options{ClearingRate: 0.05}
	base := MakeRunID(EngineVersion, "abc123", "", years, 42, opts)

	variants := map[string]string{
		"engine version": MakeRunID("9.9.9", "abc123", "", years, 42, opts),
		"assumptions":    MakeRunID(EngineVersion, "def456", "", years, 42, opts),
		"scenario":       MakeRunID(EngineVersion, "abc123", "fff000", years, 42, opts),
		"years":          MakeRunID(EngineVersion, "abc123", "", []int{2024}, 42, opts),
		"seed":           MakeRunID(EngineVersion, "abc123", "", years, 43, opts),
		"options":        MakeRunID(EngineVersion, "abc123", "", years, 42, Options{ClearingRate: 0.05, DemandJitter: 0.1}),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the run id", name)
		}
	}
}

func TestNewRunInfo(t *testing.T) {
	assum := PackRef{ID: "baseline-v1", Version: "1.0.0", Hash: "abc123"}
	scen := &PackRef{ID: "net-zero", Version: "1.0.0", Hash: "fff000"}

	ri := NewRunInfo(assum, scen, "resolved1", []int{2024, 2025}, 42, Options{})
	if ri.RunID == "" || ri.EngineVersion != EngineVersion {
		t.Errorf("run info = %+v", ri)
	}
	if ri.Options.ClearingRate != 0.05 {
		t.Errorf("clearing rate = %v, want defaulted 0.05", ri.Options.ClearingRate)
	}
	if ri.Scenario == nil || ri.Scenario.Hash != "fff000" {
		t.Errorf("scenario ref = %+v", ri.Scenario)
	}

	// The id must line up with a direct MakeRunID call on the same
	// inputs, and drop back to the baseline id without the scenario.
	want := MakeRunID(EngineVersion, "abc123", "fff000", []int{2024, 2025}, 42, ri.Options)
	if ri.RunID != want {
		t.Errorf("run id = %q, want %q", ri.RunID, want)
	}
	baseline := NewRunInfo(assum, nil, "resolved1", []int{2024, 2025}, 42, Options{})
	if baseline.RunID == ri.RunID {
		t.Error("baseline and scenario runs share a run id")
	}
}
