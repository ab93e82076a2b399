package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dlg0/agent-zero/internal/sim"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load engine tuning from a separate YAML (e.g. shared
	// across deployments). Explicit values in this file override it.
	EngineFile string `yaml:"engine_file"`

	DataDir string `yaml:"data_dir"` // holds assumptions_packs/ and scenario_packs/
	OutDir  string `yaml:"out_dir"`  // run bundles are published here

	// Registry is the sqlite file recording every run attempt. Empty
	// disables the registry.
	Registry string `yaml:"registry"`

	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
}

type EngineConfig struct {
	Threads      int     `yaml:"threads"`
	ClearingRate float64 `yaml:"clearing_rate"`
	DemandJitter float64 `yaml:"demand_jitter"`
	PriceFloor   float64 `yaml:"price_floor"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.OutDir == "" {
		c.OutDir = "runs"
	}
	if c.Engine.ClearingRate == 0 {
		c.Engine.ClearingRate = 0.05
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CacheTTLSeconds == 0 {
		c.Server.CacheTTLSeconds = 30
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate or
// default it. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	// If engine_file is set, load it and overlay any explicit values
	// from this file on top.
	if c.EngineFile != "" {
		enginePath := c.EngineFile
		if !filepath.IsAbs(enginePath) {
			// Prefer interpreting relative paths as relative to the config
			// file directory, falling back to the path as given.
			cand := filepath.Join(filepath.Dir(path), enginePath)
			if _, err := os.Stat(cand); err == nil {
				enginePath = cand
			}
		}
		loaded, err := loadEngineFile(enginePath)
		if err != nil {
			return nil, err
		}
		c.Engine = MergeEngine(loaded, c.Engine)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.OutDir == "" {
		return errors.New("out_dir is required")
	}
	e := c.Engine
	if e.Threads < 0 {
		return fmt.Errorf("engine.threads must be >= 0, got %d", e.Threads)
	}
	if e.ClearingRate <= 0 || e.ClearingRate > 1 {
		return fmt.Errorf("engine.clearing_rate must be in (0, 1], got %v", e.ClearingRate)
	}
	if e.DemandJitter < 0 || e.DemandJitter >= 1 {
		return fmt.Errorf("engine.demand_jitter must be in [0, 1), got %v", e.DemandJitter)
	}
	if e.PriceFloor < 0 {
		return fmt.Errorf("engine.price_floor must be >= 0, got %v", e.PriceFloor)
	}
	if c.Server.CacheTTLSeconds < 0 {
		return fmt.Errorf("server.cache_ttl_seconds must be >= 0, got %d", c.Server.CacheTTLSeconds)
	}
	return nil
}

// Options maps the engine tuning onto simulation options.
func (c *Config) Options() sim.Options {
	return sim.Options{
		ClearingRate: c.Engine.ClearingRate,
		DemandJitter: c.Engine.DemandJitter,
		PriceFloor:   c.Engine.PriceFloor,
	}
}

type engineFileWrapper struct {
	Engine EngineConfig `yaml:"engine"`
}

func loadEngineFile(path string) (EngineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, err
	}
	var w engineFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return EngineConfig{}, err
	}
	return w.Engine, nil
}

// MergeEngine overlays non-zero fields from override onto base. Used
// when an engine file supplies shared tuning and the main config
// overrides part of it.
func MergeEngine(base, override EngineConfig) EngineConfig {
	out := base
	if override.Threads != 0 {
		out.Threads = override.Threads
	}
	if override.ClearingRate != 0 {
		out.ClearingRate = override.ClearingRate
	}
	if override.DemandJitter != 0 {
		out.DemandJitter = override.DemandJitter
	}
	if override.PriceFloor != 0 {
		out.PriceFloor = override.PriceFloor
	}
	return out
}
