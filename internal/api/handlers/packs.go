package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dlg0/agent-zero/internal/api/models"
	"github.com/dlg0/agent-zero/internal/pack"

	"github.com/gin-gonic/gin"
)

// PacksHandler lists the input packs available under the data directory
type PacksHandler struct {
	dataDir string
	log     *slog.Logger
}

// NewPacksHandler creates a new packs handler
func NewPacksHandler(dataDir string, log *slog.Logger) *PacksHandler {
	return &PacksHandler{dataDir: dataDir, log: log}
}

// ListPacks handles GET /api/v1/packs
func (h *PacksHandler) ListPacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"assumptions": h.listDir(pack.AssumptionsDir, pack.TypeAssumptions),
		"scenarios":   h.listDir(pack.ScenariosDir, pack.TypeScenario),
	})
}

func (h *PacksHandler) listDir(subdir, typ string) []models.PackInfo {
	packs := []models.PackInfo{}

	dir := filepath.Join(h.dataDir, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.log.Debug("pack directory unreadable", "dir", dir, "error", err)
		return packs
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pdir := filepath.Join(dir, entry.Name())
		m, err := pack.LoadManifest(pdir)
		if err != nil {
			h.log.Warn("skipping pack with unreadable manifest", "dir", pdir, "error", err)
			continue // Skip invalid packs
		}

		hash := m.Hash
		if hash == "" {
			if computed, err := pack.ContentHash(pdir); err == nil {
				hash = computed
			}
		}

		packs = append(packs, models.PackInfo{
			ID:          m.Ref().ID,
			Type:        typ,
			Version:     m.Version,
			Description: m.Description,
			Hash:        hash,
			Dir:         entry.Name(),
		})
	}

	return packs
}
