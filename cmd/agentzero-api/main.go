package main

import (
	"flag"
	"os"
	"time"

	"github.com/dlg0/agent-zero/internal/api/handlers"
	"github.com/dlg0/agent-zero/internal/api/middleware"
	"github.com/dlg0/agent-zero/internal/config"
	"github.com/dlg0/agent-zero/internal/logging"
	"github.com/dlg0/agent-zero/internal/persistence"
	"github.com/dlg0/agent-zero/internal/sim"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := flag.String("config", "", "Optional YAML config file")
	addr := flag.String("addr", "", "Listen address override (e.g. :8080)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := logging.New(*logLevel, os.Stderr)

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Error("config load failed", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	var reg *persistence.Registry
	if cfg.Registry != "" {
		var err error
		reg, err = persistence.Open(cfg.Registry)
		if err != nil {
			log.Error("registry open failed", "path", cfg.Registry, "error", err)
			os.Exit(1)
		}
		defer reg.Close()
	}

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.ErrorHandler(log))

	// Initialize handlers
	cache := handlers.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	simulateHandler := handlers.NewSimulateHandler(cfg, log, reg)
	runsHandler := handlers.NewRunsHandler(cfg.OutDir, cache, log)
	packsHandler := handlers.NewPacksHandler(cfg.DataDir, log)
	rulesHandler := handlers.NewRulesHandler()

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "engine_version": sim.EngineVersion})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/simulate", simulateHandler.RunSimulation)
		api.POST("/simulate/compare", simulateHandler.CompareScenarios)

		api.GET("/runs", runsHandler.ListRuns)
		api.GET("/runs/:id/manifest", runsHandler.GetManifest)
		api.GET("/runs/:id/summary", runsHandler.GetSummary)
		api.GET("/runs/:id/timeseries", runsHandler.GetTimeseries)
		api.GET("/runs/:id/agents", runsHandler.GetAgents)
		api.GET("/runs/:id/traces", runsHandler.GetTraces)

		api.GET("/packs", packsHandler.ListPacks)
		api.GET("/rules", rulesHandler.ListRules)
	}

	// Serve a static frontend build if one is present
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); err == nil {
		router.Static("/assets", staticDir+"/assets")
		router.StaticFile("/favicon.ico", staticDir+"/favicon.ico")

		// Serve index.html for all non-API routes (SPA routing)
		router.NoRoute(func(c *gin.Context) {
			path := c.Request.URL.Path
			if len(path) >= 4 && path[:4] == "/api" {
				c.JSON(404, gin.H{"error": "Not found"})
			} else {
				c.File(staticDir + "/index.html")
			}
		})
		log.Info("serving static files", "dir", staticDir)
	}

	log.Info("starting API server",
		"addr", cfg.Server.Addr, "data_dir", cfg.DataDir, "out_dir", cfg.OutDir,
		"registry", cfg.Registry != "")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
