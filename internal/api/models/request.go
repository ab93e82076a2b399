package models

// SimulateRequest represents the request body for running a simulation
type SimulateRequest struct {
	Assumptions string           `json:"assumptions" binding:"required"` // assumptions pack name under data_dir
	Scenario    string           `json:"scenario,omitempty"`             // scenario pack name, empty for baseline
	Years       string           `json:"years" binding:"required"`       // "start:end", inclusive
	Seed        uint64           `json:"seed,omitempty"`
	Options     *SimulateOptions `json:"options,omitempty"`
}

// SimulateOptions contains optional simulation parameters
type SimulateOptions struct {
	ClearingRate float64 `json:"clearing_rate,omitempty"`
	DemandJitter float64 `json:"demand_jitter,omitempty"`
	PriceFloor   float64 `json:"price_floor,omitempty"`

	IncludeTimeseries bool `json:"include_timeseries,omitempty"` // default: false
	IncludeAgents     bool `json:"include_agents,omitempty"`     // default: false
}

// CompareRequest represents a request to run scenario variations against
// a shared baseline
type CompareRequest struct {
	Assumptions string              `json:"assumptions" binding:"required"`
	Years       string              `json:"years" binding:"required"`
	Seed        uint64              `json:"seed,omitempty"`
	Options     *SimulateOptions    `json:"options,omitempty"`
	Variations  []ScenarioVariation `json:"variations" binding:"required"`
}

// ScenarioVariation names one scenario pack to compare
type ScenarioVariation struct {
	Name     string `json:"name" binding:"required"`
	Scenario string `json:"scenario" binding:"required"`
}
