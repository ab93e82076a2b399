package models

import (
	"github.com/dlg0/agent-zero/internal/analysis"
	"github.com/dlg0/agent-zero/internal/bundle"
	"github.com/dlg0/agent-zero/internal/sim"
)

// Run summaries and manifests reuse the engine's artifact types, so an
// API payload is byte-consistent with the summary.json and manifest.yaml
// the same run writes to disk.

// SimulateResponse represents the response from a simulation run
type SimulateResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"` // "completed", or "exists" when the bundle was already published

	Summary    sim.Summary       `json:"summary"`
	Timeseries []TimeseriesPoint `json:"timeseries,omitempty"`
	Agents     []AgentStatePoint `json:"agents,omitempty"`
}

// TimeseriesPoint represents one cleared market-year in an inline response
type TimeseriesPoint struct {
	Year      int     `json:"year"`
	Region    string  `json:"region"`
	Commodity string  `json:"commodity"`
	Price     float64 `json:"price"`
	Demand    float64 `json:"demand"`
	Supply    float64 `json:"supply"`
	Emissions float64 `json:"emissions"`
	Shortage  bool    `json:"shortage"`
}

// AgentStatePoint represents one agent-year state in an inline response
type AgentStatePoint struct {
	Year          int      `json:"year"`
	AgentID       string   `json:"agent_id"`
	AgentType     string   `json:"agent_type"`
	Region        string   `json:"region"`
	Capacity      float64  `json:"capacity"`
	Investment    float64  `json:"investment"`
	ExpectedPrice *float64 `json:"expected_price,omitempty"`
	Action        string   `json:"action"`
}

// CompareResponse represents the response from a scenario comparison
type CompareResponse struct {
	BaselineRunID string             `json:"baseline_run_id"`
	Comparison    []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Name    string            `json:"name"`
	RunID   string            `json:"run_id"`
	Summary sim.Summary       `json:"summary"`
	Delta   *sim.SummaryDelta `json:"delta,omitempty"`
	Drivers []analysis.Driver `json:"drivers,omitempty"`
}

// RunsResponse represents the run bundle listing
type RunsResponse struct {
	Runs []bundle.Manifest `json:"runs"`
}

// TracesResponse represents a run's decision traces, optionally filtered
// to one agent
type TracesResponse struct {
	RunID   string `json:"run_id"`
	AgentID string `json:"agent_id,omitempty"`
	Count   int    `json:"count"`
	Traces  []any  `json:"traces"`
}

// PackInfo represents information about an input pack
type PackInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // "assumptions" or "scenario"
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Dir         string `json:"dir"`
}

// RuleInfo represents information about a decision rule
type RuleInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a rule parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
