package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/crprop/config"
	"github.com/pthm-cable/crprop/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV files, summary and config snapshot")
	seed := flag.Uint64("seed", 0, "Random seed (0 = use config)")
	primaries := flag.Int("primaries", 0, "Number of primaries (0 = use config)")
	workers := flag.Int("workers", -1, "Worker goroutines (-1 = use config, 0 = one per CPU)")
	logStats := flag.Bool("log-stats", false, "Output run stats and detection summary via slog")
	profileStages := flag.Bool("profile-stages", false, "Time every pipeline stage")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := sim.Options{
		OutputDir:     *outputDir,
		Logger:        logger,
		LogStats:      *logStats,
		ProfileStages: *profileStages,
	}
	if err := run(*configPath, *seed, *primaries, *workers, opts); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, seed uint64, primaries, workers int, opts sim.Options) error {
	// Initialize config before anything else
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := config.Cfg()

	// CLI overrides
	if seed != 0 {
		cfg.Run.Seed = seed
	}
	if primaries > 0 {
		cfg.Run.Primaries = primaries
	}
	if workers >= 0 {
		cfg.Run.Workers = workers
	}

	s, err := sim.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("invalid simulation setup: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("%w (stats: %+v)", err, report.Run)
	}

	slog.Info("simulation finished",
		"run_id", report.Run.RunID,
		"detections", report.Detections.Detections,
		"detected_weight", report.Detections.TotalWeight,
		"elapsed", report.Run.Elapsed,
		"output_dir", opts.OutputDir,
	)
	return nil
}
