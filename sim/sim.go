// Package sim assembles a complete propagation run from configuration:
// source, module pipeline, observer, detection archive and output files.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/config"
	"github.com/pthm-cable/crprop/module"
	"github.com/pthm-cable/crprop/source"
	"github.com/pthm-cable/crprop/telemetry"
)

// Options configures a simulation beyond the loaded config.
type Options struct {
	OutputDir     string       // empty disables file output
	Logger        *slog.Logger // nil uses slog.Default
	LogStats      bool         // log run stats, throughput and detection summary when done
	ProfileStages bool         // time every pipeline stage
}

// Simulation is a configured run, ready to start.
type Simulation struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	catalog    *Catalog
	reg        *candidate.Registry
	source     *source.Source
	list       *module.ModuleList
	stages     []stage
	archive    *telemetry.Archive
	output     *telemetry.OutputManager
	throughput *telemetry.ThroughputCollector
	perf       *StagePerf
	edges      []float64 // spectrum bin edges

	closed bool
}

// New builds a simulation from cfg. Every configuration error is reported
// here, before any candidate is created.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulation{
		cfg:        cfg,
		opts:       opts,
		logger:     logger,
		catalog:    NewCatalog(),
		reg:        candidate.NewRegistry(cfg.Run.Seed),
		archive:    telemetry.NewArchive(),
		throughput: telemetry.NewThroughputCollector(cfg.Telemetry.ThroughputWindow),
	}

	src, err := buildSource(cfg, s.reg)
	if err != nil {
		return nil, err
	}
	s.source = src

	stages, obs, err := buildPipeline(cfg)
	if err != nil {
		return nil, err
	}
	s.stages = stages

	tc := cfg.Telemetry
	s.edges, err = telemetry.EnergyEdges(tc.SpectrumEmin, tc.SpectrumEmax, tc.SpectrumBins, tc.SpectrumLog)
	if err != nil {
		return nil, fmt.Errorf("%w: spectrum: %w", ErrBuild, err)
	}

	// Output files are only created once the pipeline is known to be valid.
	output, err := telemetry.NewOutputManager(opts.OutputDir, cfg.Telemetry.CSVBatch)
	if err != nil {
		return nil, err
	}
	s.output = output

	obs.OnDetection(s.archive)
	if csv := output.Detections(); csv != nil {
		obs.OnDetection(csv)
	}

	s.list = module.New(
		module.WithWorkers(cfg.Run.Workers),
		module.WithLogger(logger),
		module.WithProgress(cfg.Derived.ProgressInterval),
		module.WithThroughputCollector(s.throughput),
	)
	if opts.ProfileStages {
		s.perf = NewStagePerf()
	}
	for _, st := range stages {
		m := st.m
		if s.perf != nil {
			m = s.perf.Wrap(st.id, m)
		}
		s.list.Add(m)
	}
	return s, nil
}

// Registry returns the run's serial-number registry.
func (s *Simulation) Registry() *candidate.Registry {
	return s.reg
}

// Archive returns the detections recorded so far.
func (s *Simulation) Archive() *telemetry.Archive {
	return s.archive
}

// Spectrum returns the weighted spectrum of the detections so far.
func (s *Simulation) Spectrum() []telemetry.SpectrumBin {
	return telemetry.Bins(s.edges, s.archive.Spectrum(s.edges))
}

// Pipeline returns one description line per stage, in order.
func (s *Simulation) Pipeline() []string {
	return s.list.Describe()
}

// Run processes the configured number of primaries and writes the outputs.
// A cancelled ctx or a panicking module aborts the run; the error is
// returned together with the partial stats.
func (s *Simulation) Run(ctx context.Context) (telemetry.Report, error) {
	defer s.Close()

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	logger.Info("simulation starting",
		"primaries", s.cfg.Run.Primaries,
		"workers", s.list.Workers(),
		"seed", s.cfg.Run.Seed,
		"source", s.source.Description(),
	)
	for i, st := range s.stages {
		info, _ := s.catalog.Get(st.id)
		logger.Info("pipeline stage",
			"index", i,
			"stage", info.Name,
			"category", info.Category,
			"module", module.Describe(st.m),
		)
	}

	if err := s.output.WriteConfig(s.cfg); err != nil {
		return telemetry.Report{}, err
	}

	stats, err := s.list.Run(ctx, s.source, s.cfg.Run.Primaries)
	stats.RunID = runID

	report := telemetry.Report{
		Run:        stats,
		Detections: s.archive.Summary(),
		Pipeline:   s.Pipeline(),
	}
	if err != nil {
		return report, fmt.Errorf("run %s: %w", runID, err)
	}

	if err := s.output.WriteSpectrum(s.Spectrum()); err != nil {
		return report, err
	}
	if err := s.output.WriteReport(report); err != nil {
		return report, err
	}
	if err := s.Close(); err != nil {
		return report, fmt.Errorf("closing output: %w", err)
	}

	if s.opts.LogStats {
		stats.LogStats()
		logger.Info("throughput", "stats", s.throughput.Stats())
		logger.Info("detections", "summary", report.Detections)
		if s.perf != nil {
			s.perf.Log(logger, s.catalog)
		}
	}
	return report, nil
}

// Close flushes and closes the output files. Run calls it; it only needs to
// be called directly when Run is never started.
func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.output.Close()
}
