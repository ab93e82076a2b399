// Package persistence records run attempts in a local SQLite registry
// and mirrors decision traces into queryable rows. The registry is
// operational metadata, not a result artifact: bundles stay the
// canonical output, and re-running an already-published run id still
// registers a fresh attempt row.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dlg0/agent-zero/internal/decision"
	"github.com/dlg0/agent-zero/internal/sim"
)

// Registry wraps a SQLite connection for the run registry.
type Registry struct {
	conn *sqlx.DB
}

// Open opens or creates the registry database at the given path.
func Open(path string) (*Registry, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	r := &Registry{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return r, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.conn.Close()
}

func (r *Registry) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		attempt_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		seed INTEGER NOT NULL,
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL,
		assumptions_id TEXT NOT NULL,
		assumptions_hash TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		scenario_hash TEXT NOT NULL,
		resolved_hash TEXT NOT NULL,
		bundle_dir TEXT NOT NULL,
		warnings INTEGER NOT NULL,
		cumulative_emissions REAL NOT NULL,
		total_investment REAL NOT NULL,
		shortage_years INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decision_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		region TEXT NOT NULL,
		rule TEXT NOT NULL,
		action TEXT NOT NULL,
		rationed INTEGER NOT NULL,
		inputs_json TEXT NOT NULL,
		state_before_json TEXT NOT NULL,
		state_after_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_traces_run_agent ON decision_traces(run_id, agent_id);
	CREATE INDEX IF NOT EXISTS idx_traces_run_year ON decision_traces(run_id, year);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// RunRecord is one registry row: the lineage of a run attempt plus the
// headline metrics for quick listing.
type RunRecord struct {
	AttemptID           string  `db:"attempt_id"`
	RunID               string  `db:"run_id"`
	CreatedAt           string  `db:"created_at"`
	EngineVersion       string  `db:"engine_version"`
	Seed                int64   `db:"seed"`
	StartYear           int     `db:"start_year"`
	EndYear             int     `db:"end_year"`
	AssumptionsID       string  `db:"assumptions_id"`
	AssumptionsHash     string  `db:"assumptions_hash"`
	ScenarioID          string  `db:"scenario_id"` // empty for baseline-only runs
	ScenarioHash        string  `db:"scenario_hash"`
	ResolvedHash        string  `db:"resolved_hash"`
	BundleDir           string  `db:"bundle_dir"`
	Warnings            int     `db:"warnings"`
	CumulativeEmissions float64 `db:"cumulative_emissions"`
	TotalInvestment     float64 `db:"total_investment"`
	ShortageYears       int     `db:"shortage_years"`
}

// TraceRecord is one mirrored decision trace. JSON columns hold the
// input vector and state snapshots exactly as they appear in the
// bundle's traces.jsonl.
type TraceRecord struct {
	RunID       string `db:"run_id"`
	Year        int    `db:"year"`
	AgentID     string `db:"agent_id"`
	AgentType   string `db:"agent_type"`
	Region      string `db:"region"`
	Rule        string `db:"rule"`
	Action      string `db:"action"`
	Rationed    bool   `db:"rationed"`
	Inputs      string `db:"inputs_json"`
	StateBefore string `db:"state_before_json"`
	StateAfter  string `db:"state_after_json"`
}

// RecordRun inserts one attempt row and returns its id. Attempt ids are
// random; two attempts at the same run id get distinct rows.
func (r *Registry) RecordRun(info sim.RunInfo, sum sim.Summary, bundleDir string) (string, error) {
	attemptID := uuid.New().String()

	scenID, scenHash := "", ""
	if info.Scenario != nil {
		scenID = info.Scenario.ID
		scenHash = info.Scenario.Hash
	}
	startYear, endYear := 0, 0
	if len(info.Years) > 0 {
		startYear = info.Years[0]
		endYear = info.Years[len(info.Years)-1]
	}

	_, err := r.conn.Exec(`INSERT INTO runs
		(attempt_id, run_id, created_at, engine_version, seed, start_year, end_year,
		 assumptions_id, assumptions_hash, scenario_id, scenario_hash, resolved_hash,
		 bundle_dir, warnings, cumulative_emissions, total_investment, shortage_years)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attemptID, info.RunID, time.Now().UTC().Format(time.RFC3339), info.EngineVersion,
		int64(info.Seed), startYear, endYear,
		info.Assumptions.ID, info.Assumptions.Hash, scenID, scenHash, info.ResolvedHash,
		bundleDir, len(sum.Warnings), sum.CumulativeEmissions, sum.TotalInvestment, sum.ShortageYears,
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", info.RunID, err)
	}

	return attemptID, nil
}

// SaveTraces mirrors a run's decision traces (full replace per run id).
// Traces are identical across attempts at the same run id, so the table
// holds one copy per run id regardless of how often it was re-run.
func (r *Registry) SaveTraces(runID string, traces []decision.Trace) error {
	tx, err := r.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM decision_traces WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO decision_traces
		(run_id, year, agent_id, agent_type, region, rule, action, rationed,
		 inputs_json, state_before_json, state_after_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tr := range traces {
		inputsJSON, _ := json.Marshal(tr.Inputs)
		beforeJSON, _ := json.Marshal(tr.StateBefore)
		afterJSON, _ := json.Marshal(tr.StateAfter)

		rationed := 0
		if tr.Rationed {
			rationed = 1
		}

		_, err := stmt.Exec(
			runID, tr.Year, tr.AgentID, tr.AgentType, tr.Region,
			string(tr.Rule), string(tr.Action), rationed,
			string(inputsJSON), string(beforeJSON), string(afterJSON),
		)
		if err != nil {
			return fmt.Errorf("insert trace %s/%d: %w", tr.AgentID, tr.Year, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent attempt rows, newest first. limit <= 0
// returns everything.
func (r *Registry) Runs(limit int) ([]RunRecord, error) {
	q := "SELECT * FROM runs ORDER BY created_at DESC, attempt_id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	var records []RunRecord
	err := r.conn.Select(&records, q, args...)
	return records, err
}

// Attempts returns every attempt at one run id, newest first.
func (r *Registry) Attempts(runID string) ([]RunRecord, error) {
	var records []RunRecord
	err := r.conn.Select(&records,
		"SELECT * FROM runs WHERE run_id = ? ORDER BY created_at DESC, attempt_id DESC",
		runID,
	)
	return records, err
}

// AgentTraces returns one agent's decision history within a run, in
// year order. An empty agentID returns the whole run's traces ordered
// by year then agent id.
func (r *Registry) AgentTraces(runID, agentID string) ([]TraceRecord, error) {
	var records []TraceRecord
	q := `SELECT run_id, year, agent_id, agent_type, region, rule, action, rationed,
		inputs_json, state_before_json, state_after_json
		FROM decision_traces WHERE run_id = ?`
	args := []any{runID}
	if agentID != "" {
		q += " AND agent_id = ?"
		args = append(args, agentID)
	}
	q += " ORDER BY year, agent_id"
	err := r.conn.Select(&records, q, args...)
	return records, err
}
