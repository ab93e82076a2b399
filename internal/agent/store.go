package agent

import (
	"fmt"
	"math"
	"sort"
)

// Change is the state mutation derived from one agent's accepted action
// for a single year. Deltas are in capacity units; Investment and
// CashDelta are money.
type Change struct {
	AgentID       string
	CapacityDelta float64
	Investment    float64
	Emissions     float64
	CashDelta     float64
	// NPVNegative marks a year in which the agent observed a negative
	// operating NPV on its existing base; it drives the retirement streak.
	NPVNegative bool
}

// Store owns every agent's mutable state. Decision code works on value
// copies from Snapshot; all writes go through Apply, which enforces the
// state invariants.
type Store struct {
	agents []*Agent
	byID   map[string]*Agent
}

func NewStore(configs []Config) (*Store, error) {
	s := &Store{byID: make(map[string]*Agent, len(configs))}
	for i := range configs {
		cfg := configs[i]
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate agent_id %q", cfg.ID)
		}
		a := &Agent{
			Config: cfg,
			State:  State{Capacity: cfg.InitialCapacity},
		}
		s.agents = append(s.agents, a)
		s.byID[cfg.ID] = a
	}
	return s, nil
}

func (s *Store) Len() int { return len(s.agents) }

// Snapshot returns value copies of all agents in catalogue order.
func (s *Store) Snapshot() []Agent {
	out := make([]Agent, len(s.agents))
	for i, a := range s.agents {
		out[i] = *a
	}
	return out
}

// Get returns a value copy of one agent.
func (s *Store) Get(id string) (Agent, bool) {
	a, ok := s.byID[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// IDs returns all agent IDs in ascending order.
func (s *Store) IDs() []string {
	out := make([]string, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.Config.ID)
	}
	sort.Strings(out)
	return out
}

// Apply commits one change and returns the state before and after. It
// rejects unknown agents, non-finite values, negative capacity and
// capacity beyond the producer's max_capacity; on error the stored state
// is untouched.
func (s *Store) Apply(ch Change) (before, after State, err error) {
	a, ok := s.byID[ch.AgentID]
	if !ok {
		return State{}, State{}, fmt.Errorf("unknown agent_id %q", ch.AgentID)
	}
	before = a.State

	next := before
	next.Capacity += ch.CapacityDelta
	next.Cash += ch.CashDelta
	next.CumInvestment += ch.Investment
	next.CumEmissions += ch.Emissions
	if ch.NPVNegative {
		next.NegNPVStreak++
	} else {
		next.NegNPVStreak = 0
	}

	if math.IsNaN(ch.CapacityDelta) || math.IsInf(ch.CapacityDelta, 0) || !next.finite() {
		return before, before, fmt.Errorf("agent %s: non-finite state update", ch.AgentID)
	}
	if next.Capacity < 0 {
		return before, before, fmt.Errorf("agent %s: capacity would become negative (%v)", ch.AgentID, next.Capacity)
	}
	if p := a.Config.Producer; p != nil && next.Capacity > p.MaxCapacity {
		return before, before, fmt.Errorf(
			"agent %s: capacity %v exceeds max_capacity %v", ch.AgentID, next.Capacity, p.MaxCapacity)
	}

	a.State = next
	return before, next, nil
}
