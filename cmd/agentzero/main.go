package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/bundle"
	"github.com/dlg0/agent-zero/internal/config"
	"github.com/dlg0/agent-zero/internal/logging"
	"github.com/dlg0/agent-zero/internal/pack"
	"github.com/dlg0/agent-zero/internal/persistence"
	"github.com/dlg0/agent-zero/internal/sim"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		cmdValidate(os.Args[2:])
	case "build":
		cmdBuild(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	case "check":
		cmdCheck(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "version":
		fmt.Println(sim.EngineVersion)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  agentzero validate <pack-dir>")
	fmt.Println("  agentzero build --assum baseline_v1 --scen fast_transition --out resolved.csv")
	fmt.Println("  agentzero run --assum baseline_v1 --scen fast_transition --years 2024:2035 --seed 42")
	fmt.Println("  agentzero runs")
	fmt.Println("  agentzero check <run-dir>")
	fmt.Println("  agentzero export <run-dir> --out web/")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - pack names resolve under <data>/assumptions_packs and <data>/scenario_packs")
	fmt.Println("  - a run bundle is named after its run id; identical inputs reproduce it byte for byte")
}

func die(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func cmdValidate(args []string) {
	if len(args) < 1 || args[0] == "" {
		fmt.Println("usage: agentzero validate <pack-dir>")
		os.Exit(2)
	}
	dir := args[0]

	m, err := pack.LoadManifest(dir)
	if err != nil {
		die(err)
	}

	var issues []string
	switch m.Type {
	case pack.TypeAssumptions:
		p, err := pack.LoadAssumptionsUnchecked(dir)
		if err != nil {
			die(err)
		}
		issues = p.Validate()
	case pack.TypeScenario:
		p, err := pack.LoadScenarioUnchecked(dir)
		if err != nil {
			die(err)
		}
		issues = p.Validate()
	default:
		die(fmt.Errorf("unknown pack type %q in manifest.yaml; expected %q or %q",
			m.Type, pack.TypeAssumptions, pack.TypeScenario))
	}

	if len(issues) > 0 {
		for _, e := range issues {
			fmt.Printf("ERROR: %s\n", e)
		}
		os.Exit(1)
	}
	fmt.Println("OK")
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	assum := fs.String("assum", "", "Assumptions pack name under <data>/assumptions_packs")
	scen := fs.String("scen", "", "Scenario pack name under <data>/scenario_packs")
	dataDir := fs.String("data", "data", "Data directory holding the pack trees")
	out := fs.String("out", "", "Output CSV path for the resolved assumptions table")
	_ = fs.Parse(args)

	if *assum == "" || *out == "" {
		fmt.Println("--assum and --out are required")
		os.Exit(2)
	}

	resolved, err := pack.LoadResolved(*dataDir, *assum, *scen)
	if err != nil {
		die(err)
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			die(err)
		}
	}
	if err := pack.WriteAssumptionsCSV(*out, resolved.Assumptions); err != nil {
		die(err)
	}
	fmt.Printf("Wrote resolved assumptions to %s\n", *out)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	assum := fs.String("assum", "", "Assumptions pack name under <data>/assumptions_packs")
	scen := fs.String("scen", "", "Scenario pack name under <data>/scenario_packs")
	years := fs.String("years", "", "Year range in the format start:end (inclusive)")
	seed := fs.Uint64("seed", 0, "Random seed")
	dataDir := fs.String("data", "", "Data directory holding the pack trees")
	outDir := fs.String("out", "", "Output directory for run bundles")
	cfgPath := fs.String("config", "", "Optional YAML config file")
	threads := fs.Int("threads", 0, "Decision evaluation threads (0 = serial; never changes results)")
	registry := fs.String("registry", "", "Optional sqlite run registry path")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	_ = fs.Parse(args)

	if *assum == "" || *years == "" {
		fmt.Println("--assum and --years are required")
		os.Exit(2)
	}

	log := logging.New(*logLevel, os.Stderr)

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			die(err)
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *threads > 0 {
		cfg.Engine.Threads = *threads
	}
	if *registry != "" {
		cfg.Registry = *registry
	}

	yearList, err := sim.ParseYears(*years)
	if err != nil {
		die(err)
	}

	resolved, err := pack.LoadResolved(cfg.DataDir, *assum, *scen)
	if err != nil {
		die(err)
	}
	store, err := agent.NewStore(resolved.Agents)
	if err != nil {
		die(err)
	}

	opts := cfg.Options()
	info := resolved.RunInfo(yearList, *seed, opts)

	assumRes, polRes := resolved.Resolvers()
	clk, err := sim.New(sim.Config{
		Assumptions: assumRes,
		Policy:      polRes,
		Store:       store,
		Entropy:     sim.NewEntropy(*seed),
		Logger:      log,
		Options:     opts,
		Threads:     cfg.Engine.Threads,
	})
	if err != nil {
		die(err)
	}

	res, err := clk.Run(yearList)
	if err != nil {
		die(err)
	}

	published := true
	runDir, err := bundle.Write(cfg.OutDir, info, res)
	if err != nil {
		if !errors.Is(err, bundle.ErrExists) {
			die(err)
		}
		published = false
	}

	if cfg.Registry != "" {
		recordRun(log, cfg.Registry, info, res, runDir, published)
	}

	fmt.Printf("Cumulative emissions=%.2f tCO2e  Total investment=%.2f  Warnings=%d\n",
		res.Summary.CumulativeEmissions, res.Summary.TotalInvestment, len(res.Summary.Warnings))
	if published {
		fmt.Printf("Run complete: %s\n", runDir)
	} else {
		fmt.Printf("Run already published: %s\n", runDir)
	}
}

// recordRun mirrors the attempt into the sqlite registry. Registry
// failures never fail the run; the bundle is the canonical output.
func recordRun(log *slog.Logger, path string, info sim.RunInfo, res *sim.Result, runDir string, published bool) {
	reg, err := persistence.Open(path)
	if err != nil {
		log.Warn("registry open failed", "path", path, "error", err)
		return
	}
	defer reg.Close()

	if _, err := reg.RecordRun(info, res.Summary, runDir); err != nil {
		log.Warn("registry record failed", "run_id", info.RunID, "error", err)
		return
	}
	if published {
		if err := reg.SaveTraces(info.RunID, res.Traces); err != nil {
			log.Warn("registry trace mirror failed", "run_id", info.RunID, "error", err)
		}
	}
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	outDir := fs.String("out", "runs", "Run bundle directory")
	_ = fs.Parse(args)

	manifests, err := bundle.List(*outDir)
	if err != nil {
		die(err)
	}
	if len(manifests) == 0 {
		fmt.Println("No runs yet.")
		return
	}

	fmt.Printf("%-14s %-22s %-11s %-20s %-20s\n", "run_id", "created_at", "years", "assumptions", "scenario")
	for _, m := range manifests {
		scen := "-"
		if m.Scenario != nil {
			scen = m.Scenario.ID
		}
		years := fmt.Sprintf("%d:%d", m.Years.Start, m.Years.End)
		fmt.Printf("%-14s %-22s %-11s %-20s %-20s\n", m.RunID, m.CreatedAt, years, m.Assumptions.ID, scen)
	}
}

func cmdCheck(args []string) {
	if len(args) < 1 || args[0] == "" {
		fmt.Println("usage: agentzero check <run-dir>")
		os.Exit(2)
	}
	runDir := args[0]

	issues := bundle.Check(runDir)
	for _, issue := range issues {
		fmt.Printf("%s: %s: %s\n", issue.Level, issue.Location, issue.Message)
	}
	if bundle.Errors(issues) {
		os.Exit(1)
	}
	if len(issues) == 0 {
		fmt.Println("OK")
	}
}

func cmdExport(args []string) {
	if len(args) < 1 || args[0] == "" || args[0][0] == '-' {
		fmt.Println("usage: agentzero export <run-dir> --out <dir>")
		os.Exit(2)
	}
	runDir := args[0]

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "web", "Output directory for the JSON export")
	_ = fs.Parse(args[1:])

	if err := bundle.ExportWeb(runDir, *out); err != nil {
		die(err)
	}
	fmt.Printf("Exported %s to %s\n", filepath.Base(runDir), *out)
}
