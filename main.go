package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/sim"
	"github.com/pthm-cable/evobee/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Save a snapshot every N ticks (0 = on bookmarks only)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = use config)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Each run writes into its own directory under -output-dir.
	runID := telemetry.NewRunID()
	runDir := ""
	if *outputDir != "" {
		runDir = filepath.Join(*outputDir, runID)
	}

	s, err := sim.New(cfg, sim.Options{
		Seed:          *seed,
		RunID:         runID,
		MaxTicks:      *maxTicks,
		LogStats:      *logStats,
		OutputDir:     runDir,
		SnapshotDir:   *snapshotDir,
		SnapshotEvery: *snapshotEvery,
	})
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}

	slog.Info("starting simulation",
		"run_id", runID,
		"seed", s.Seed(),
		"max_ticks", *maxTicks,
		"hives", len(s.Hives()),
		"plants", len(s.Environment().Plants()),
		"output_dir", runDir,
	)

	start := time.Now()
	runErr := s.Run()
	if err := s.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if runErr != nil {
		slog.Error("simulation aborted", "tick", s.Tick(), "error", runErr)
		os.Exit(1)
	}

	results := s.Results()
	final := results[len(results)-1]
	slog.Info("simulation finished",
		"ticks", len(results),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"total_pollinations", final.TotalPollinations,
		"agents", final.Agents,
		"plants", final.Plants,
	)
}
