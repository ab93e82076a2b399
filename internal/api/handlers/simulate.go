package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/analysis"
	"github.com/dlg0/agent-zero/internal/api/models"
	"github.com/dlg0/agent-zero/internal/bundle"
	"github.com/dlg0/agent-zero/internal/config"
	"github.com/dlg0/agent-zero/internal/pack"
	"github.com/dlg0/agent-zero/internal/persistence"
	"github.com/dlg0/agent-zero/internal/sim"

	"github.com/gin-gonic/gin"
)

// SimulateHandler handles simulation requests
type SimulateHandler struct {
	cfg *config.Config
	log *slog.Logger
	reg *persistence.Registry // nil disables the run registry
}

// NewSimulateHandler creates a new simulate handler
func NewSimulateHandler(cfg *config.Config, log *slog.Logger, reg *persistence.Registry) *SimulateHandler {
	return &SimulateHandler{cfg: cfg, log: log, reg: reg}
}

// runError classifies a failed run for the error envelope.
type runError struct {
	status  int
	code    string
	err     error
	details map[string]interface{}
}

func (e *runError) write(c *gin.Context) {
	c.JSON(e.status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    e.code,
			Message: e.err.Error(),
			Details: e.details,
		},
	})
}

// runOutcome is one completed in-memory run plus its publication status.
type runOutcome struct {
	info   sim.RunInfo
	result *sim.Result
	status string // "completed" or "exists"
}

// RunSimulation handles POST /api/v1/simulate
func (h *SimulateHandler) RunSimulation(c *gin.Context) {
	var req models.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	years, err := sim.ParseYears(req.Years)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_YEARS",
				Message: err.Error(),
			},
		})
		return
	}

	outcome, rerr := h.runOne(req.Assumptions, req.Scenario, years, req.Seed, req.Options)
	if rerr != nil {
		rerr.write(c)
		return
	}

	resp := models.SimulateResponse{
		RunID:   outcome.info.RunID,
		Status:  outcome.status,
		Summary: outcome.result.Summary,
	}
	if req.Options != nil && req.Options.IncludeTimeseries {
		resp.Timeseries = convertTimeseries(outcome.result.Timeseries)
	}
	if req.Options != nil && req.Options.IncludeAgents {
		resp.Agents = convertAgents(outcome.result.AgentStates)
	}
	c.JSON(http.StatusOK, resp)
}

// CompareScenarios handles POST /api/v1/simulate/compare
func (h *SimulateHandler) CompareScenarios(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	years, err := sim.ParseYears(req.Years)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_YEARS",
				Message: err.Error(),
			},
		})
		return
	}

	// The baseline must succeed; variations are best-effort.
	baseline, rerr := h.runOne(req.Assumptions, "", years, req.Seed, req.Options)
	if rerr != nil {
		rerr.write(c)
		return
	}
	baseSummary := baseline.result.Summary

	comparison := make([]models.ComparisonResult, 0, len(req.Variations)+1)
	comparison = append(comparison, models.ComparisonResult{
		Name:    "baseline",
		RunID:   baseline.info.RunID,
		Summary: baseSummary,
	})

	for _, variation := range req.Variations {
		outcome, rerr := h.runOne(req.Assumptions, variation.Scenario, years, req.Seed, req.Options)
		if rerr != nil {
			h.log.Warn("comparison variation failed",
				"name", variation.Name, "scenario", variation.Scenario, "error", rerr.err)
			continue // Skip failed variations
		}

		delta := analysis.Compare(baseSummary, outcome.result.Summary)
		sum := outcome.result.Summary
		sum.BaselineDelta = &delta

		comparison = append(comparison, models.ComparisonResult{
			Name:    variation.Name,
			RunID:   outcome.info.RunID,
			Summary: sum,
			Delta:   &delta,
			Drivers: analysis.RankDrivers(baseline.result.Timeseries, outcome.result.Timeseries),
		})
	}

	c.JSON(http.StatusOK, models.CompareResponse{
		BaselineRunID: baseline.info.RunID,
		Comparison:    comparison,
	})
}

// runOne loads packs, runs the clock and publishes the bundle. Re-runs
// of an already-published run id return status "exists" with the fresh
// in-memory results, which are identical by construction.
func (h *SimulateHandler) runOne(assum, scen string, years []int, seed uint64, opts *models.SimulateOptions) (*runOutcome, *runError) {
	resolved, err := pack.LoadResolved(h.cfg.DataDir, assum, scen)
	if err != nil {
		status, code := http.StatusBadRequest, "INVALID_PACK"
		if errors.Is(err, fs.ErrNotExist) {
			status, code = http.StatusNotFound, "PACK_NOT_FOUND"
		}
		return nil, &runError{status: status, code: code, err: err}
	}

	store, err := agent.NewStore(resolved.Agents)
	if err != nil {
		return nil, &runError{status: http.StatusBadRequest, code: "INVALID_PACK", err: err}
	}

	simOpts := mergeOptions(h.cfg.Options(), opts)
	info := resolved.RunInfo(years, seed, simOpts)

	assumRes, polRes := resolved.Resolvers()
	clk, err := sim.New(sim.Config{
		Assumptions: assumRes,
		Policy:      polRes,
		Store:       store,
		Entropy:     sim.NewEntropy(seed),
		Logger:      h.log,
		Options:     simOpts,
		Threads:     h.cfg.Engine.Threads,
	})
	if err != nil {
		return nil, &runError{status: http.StatusBadRequest, code: "INVALID_OPTIONS", err: err}
	}

	res, err := clk.Run(years)
	if err != nil {
		rerr := &runError{status: http.StatusInternalServerError, code: "SIMULATION_ERROR", err: err}
		var simErr *sim.SimulationError
		if errors.As(err, &simErr) {
			rerr.details = map[string]interface{}{"year": simErr.Year}
			if simErr.AgentID != "" {
				rerr.details["agent_id"] = simErr.AgentID
			}
		}
		return nil, rerr
	}

	status := "completed"
	if _, err := bundle.Write(h.cfg.OutDir, info, res); err != nil {
		if errors.Is(err, bundle.ErrExists) {
			status = "exists"
		} else {
			return nil, &runError{status: http.StatusInternalServerError, code: "BUNDLE_WRITE_ERROR", err: err}
		}
	}

	res.Summary.RunID = info.RunID
	h.record(info, res, status)

	return &runOutcome{info: info, result: res, status: status}, nil
}

// record mirrors the attempt into the registry. Failures are logged,
// never surfaced: the bundle is the canonical output.
func (h *SimulateHandler) record(info sim.RunInfo, res *sim.Result, status string) {
	if h.reg == nil {
		return
	}
	bundleDir := filepath.Join(h.cfg.OutDir, info.RunID)
	if _, err := h.reg.RecordRun(info, res.Summary, bundleDir); err != nil {
		h.log.Warn("registry record failed", "run_id", info.RunID, "error", err)
		return
	}
	if status == "completed" {
		if err := h.reg.SaveTraces(info.RunID, res.Traces); err != nil {
			h.log.Warn("registry trace mirror failed", "run_id", info.RunID, "error", err)
		}
	}
}

// Helper methods

func mergeOptions(base sim.Options, req *models.SimulateOptions) sim.Options {
	if req == nil {
		return base
	}
	if req.ClearingRate != 0 {
		base.ClearingRate = req.ClearingRate
	}
	if req.DemandJitter != 0 {
		base.DemandJitter = req.DemandJitter
	}
	if req.PriceFloor != 0 {
		base.PriceFloor = req.PriceFloor
	}
	return base
}

func convertTimeseries(rows []sim.TimeseriesRow) []models.TimeseriesPoint {
	result := make([]models.TimeseriesPoint, len(rows))
	for i, row := range rows {
		result[i] = models.TimeseriesPoint{
			Year:      row.Year,
			Region:    row.Region,
			Commodity: row.Commodity,
			Price:     row.Price,
			Demand:    row.Demand,
			Supply:    row.Supply,
			Emissions: row.Emissions,
			Shortage:  row.Shortage,
		}
	}
	return result
}

func convertAgents(rows []sim.AgentRow) []models.AgentStatePoint {
	result := make([]models.AgentStatePoint, len(rows))
	for i, row := range rows {
		result[i] = models.AgentStatePoint{
			Year:          row.Year,
			AgentID:       row.AgentID,
			AgentType:     row.AgentType,
			Region:        row.Region,
			Capacity:      row.Capacity,
			Investment:    row.Investment,
			ExpectedPrice: row.ExpectedPrice,
			Action:        string(row.Action),
		}
	}
	return result
}
