package sim

import "fmt"

// SimulationError is a fatal invariant violation inside the year loop:
// a non-finite value, negative capacity, or a decision outside its
// configured bounds. The run aborts and no bundle is published.
type SimulationError struct {
	Year    int
	AgentID string
	Param   string
	Err     error
}

func (e *SimulationError) Error() string {
	msg := fmt.Sprintf("simulation error in year %d", e.Year)
	if e.AgentID != "" {
		msg += " agent " + e.AgentID
	}
	if e.Param != "" {
		msg += " param " + e.Param
	}
	return msg + ": " + e.Err.Error()
}

func (e *SimulationError) Unwrap() error { return e.Err }

// Warning codes recorded in the summary.
const (
	WarnNegativeEmissions = "negative_emissions"
)

// Warning is a semantically suspicious but legal outcome. Warnings never
// abort a run; they ride along in the summary and manifest.
type Warning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Year      int    `json:"year,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Region    string `json:"region,omitempty"`
	Commodity string `json:"commodity,omitempty"`
}
