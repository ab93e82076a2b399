package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.DataDir != "data" || c.OutDir != "runs" {
		t.Errorf("default dirs = %q %q", c.DataDir, c.OutDir)
	}
	if c.Engine.ClearingRate != 0.05 {
		t.Errorf("default clearing rate = %v", c.Engine.ClearingRate)
	}
	if c.Server.Addr != ":8080" || c.Server.CacheTTLSeconds != 30 {
		t.Errorf("default server = %+v", c.Server)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "data_dir: /srv/packs\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DataDir != "/srv/packs" {
		t.Errorf("data_dir = %q", c.DataDir)
	}
	if c.OutDir != "runs" || c.Engine.ClearingRate != 0.05 {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestLoadMergesEngineFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "engine.yaml", `engine:
  threads: 8
  clearing_rate: 0.1
  price_floor: 5
`)
	path := writeConfig(t, dir, "config.yaml", `engine_file: engine.yaml
engine:
  clearing_rate: 0.2
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Engine.Threads != 8 {
		t.Errorf("threads = %d, want 8 from engine file", c.Engine.Threads)
	}
	if c.Engine.ClearingRate != 0.2 {
		t.Errorf("clearing rate = %v, want 0.2 override", c.Engine.ClearingRate)
	}
	if c.Engine.PriceFloor != 5 {
		t.Errorf("price floor = %v, want 5 from engine file", c.Engine.PriceFloor)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"jitter too high", "engine:\n  demand_jitter: 1.0\n", "demand_jitter"},
		{"negative floor", "engine:\n  price_floor: -1\n", "price_floor"},
		{"rate above one", "engine:\n  clearing_rate: 1.5\n", "clearing_rate"},
		{"negative threads", "engine:\n  threads: -2\n", "threads"},
		{"negative ttl", "server:\n  cache_ttl_seconds: -1\n", "cache_ttl_seconds"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", c.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load accepted an invalid config")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, c.wantErr)
			}
		})
	}
}

func TestOptionsMapping(t *testing.T) {
	c := Default()
	c.Engine.DemandJitter = 0.1
	c.Engine.PriceFloor = 2

	opts := c.Options()
	if opts.ClearingRate != 0.05 || opts.DemandJitter != 0.1 || opts.PriceFloor != 2 {
		t.Errorf("options = %+v", opts)
	}
}
