package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/dlg0/agent-zero/internal/api/models"
	"github.com/dlg0/agent-zero/internal/bundle"

	"github.com/gin-gonic/gin"
)

// Run ids are the first 12 hex chars of the input digest. Anything else
// is rejected before it can reach the filesystem.
var runIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// RunsHandler serves published run bundles
type RunsHandler struct {
	outDir string
	cache  *ResponseCache
	log    *slog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(outDir string, cache *ResponseCache, log *slog.Logger) *RunsHandler {
	return &RunsHandler{outDir: outDir, cache: cache, log: log}
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(c *gin.Context) {
	manifests, err := bundle.List(h.outDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "BUNDLE_READ_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	if manifests == nil {
		manifests = []bundle.Manifest{}
	}
	c.JSON(http.StatusOK, models.RunsResponse{Runs: manifests})
}

// GetManifest handles GET /api/v1/runs/:id/manifest
func (h *RunsHandler) GetManifest(c *gin.Context) {
	h.serveArtifact(c, "manifest", func(runDir string) (any, error) {
		return bundle.ReadManifest(runDir)
	})
}

// GetSummary handles GET /api/v1/runs/:id/summary
func (h *RunsHandler) GetSummary(c *gin.Context) {
	h.serveArtifact(c, "summary", func(runDir string) (any, error) {
		return bundle.ReadSummary(runDir)
	})
}

// GetTimeseries handles GET /api/v1/runs/:id/timeseries
func (h *RunsHandler) GetTimeseries(c *gin.Context) {
	h.serveArtifact(c, "timeseries", func(runDir string) (any, error) {
		rows, err := bundle.ReadTimeseries(runDir)
		if err != nil {
			return nil, err
		}
		return gin.H{"run_id": filepath.Base(runDir), "timeseries": rows}, nil
	})
}

// GetAgents handles GET /api/v1/runs/:id/agents
func (h *RunsHandler) GetAgents(c *gin.Context) {
	h.serveArtifact(c, "agents", func(runDir string) (any, error) {
		rows, err := bundle.ReadAgentStates(runDir)
		if err != nil {
			return nil, err
		}
		return gin.H{"run_id": filepath.Base(runDir), "agents": rows}, nil
	})
}

// GetTraces handles GET /api/v1/runs/:id/traces with an optional
// agent_id query filter
func (h *RunsHandler) GetTraces(c *gin.Context) {
	runID := c.Param("id")
	if !runIDPattern.MatchString(runID) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_RUN_ID",
				Message: "run id must be 12 lowercase hex characters",
			},
		})
		return
	}
	agentID := c.Query("agent_id")

	key := "traces:" + runID
	var raw []json.RawMessage
	if cached, ok := h.cache.Get(key); ok {
		raw = cached.([]json.RawMessage)
	} else {
		var err error
		raw, err = bundle.ReadTraces(filepath.Join(h.outDir, runID))
		if err != nil {
			h.writeReadError(c, runID, err)
			return
		}
		h.cache.Set(key, raw)
	}

	traces := make([]any, 0, len(raw))
	for _, line := range raw {
		if agentID != "" {
			var probe struct {
				AgentID string `json:"agent_id"`
			}
			if json.Unmarshal(line, &probe) != nil || probe.AgentID != agentID {
				continue
			}
		}
		traces = append(traces, line)
	}

	c.JSON(http.StatusOK, models.TracesResponse{
		RunID:   runID,
		AgentID: agentID,
		Count:   len(traces),
		Traces:  traces,
	})
}

// serveArtifact loads one bundle artifact through the cache and writes
// it out. The loader's value must be JSON-marshalable as-is.
func (h *RunsHandler) serveArtifact(c *gin.Context, name string, load func(runDir string) (any, error)) {
	runID := c.Param("id")
	if !runIDPattern.MatchString(runID) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_RUN_ID",
				Message: "run id must be 12 lowercase hex characters",
			},
		})
		return
	}

	key := name + ":" + runID
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	payload, err := load(filepath.Join(h.outDir, runID))
	if err != nil {
		h.writeReadError(c, runID, err)
		return
	}

	h.cache.Set(key, payload)
	c.JSON(http.StatusOK, payload)
}

func (h *RunsHandler) writeReadError(c *gin.Context, runID string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "RUN_NOT_FOUND",
				Message: "no published bundle for run id " + runID,
			},
		})
		return
	}
	h.log.Error("bundle read failed", "run_id", runID, "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "BUNDLE_READ_ERROR",
			Message: err.Error(),
		},
	})
}
