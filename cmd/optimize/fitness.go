package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/crprop/config"
	"github.com/pthm-cable/crprop/sim"
	"github.com/pthm-cable/crprop/telemetry"
)

// penaltyFitness is returned for parameter sets that cannot be run.
const penaltyFitness = 1e9

// FitnessEvaluator runs simulations and scores splitting parameters by how
// much statistical precision they buy in the high-energy tail per unit of
// work.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []uint64
	baseConfig *config.Config
	tailEnergy float64
	logger     *slog.Logger

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestReport  *telemetry.Report
	lastESS     float64 // mean tail ESS from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Detections at or above
// tailEnergy count towards the figure of merit.
func NewFitnessEvaluator(params *ParamVector, seeds []uint64, baseCfg *config.Config, tailEnergy float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		baseConfig:  baseCfg,
		tailEnergy:  tailEnergy,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestReport returns the report of the best evaluation's first seed.
func (fe *FitnessEvaluator) BestReport() *telemetry.Report {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestReport
}

// LastESS returns the mean tail effective sample size of the most recent evaluation.
func (fe *FitnessEvaluator) LastESS() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastESS
}

// runResult holds the results from a single simulation run.
type runResult struct {
	report telemetry.Report
	ess    float64 // effective sample size above tailEnergy
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negative tail effective sample size per million steps,
// averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	g, ctx := errgroup.WithContext(context.Background())

	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runSimulation(ctx, x, seed)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fe.logger.Debug("evaluation failed", "error", err)
		return penaltyFitness
	}

	var totalFitness, totalESS float64
	for _, r := range results {
		totalFitness += computeFitness(r)
		totalESS += r.ess
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestReport = &results[0].report
	}
	fe.lastESS = totalESS / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single run with the given parameters and seed.
func (fe *FitnessEvaluator) runSimulation(ctx context.Context, x []float64, seed uint64) (runResult, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Run.Seed = seed
	cfg.Run.ProgressInterval = 0
	if err := cfg.Finalize(); err != nil {
		return runResult{}, err
	}

	s, err := sim.New(cfg, sim.Options{Logger: fe.logger})
	if err != nil {
		return runResult{}, err
	}
	report, err := s.Run(ctx)
	if err != nil {
		return runResult{}, err
	}
	return runResult{
		report: report,
		ess:    s.Archive().EffectiveSampleSize(fe.tailEnergy),
	}, nil
}

// copyConfig creates a copy of the base config. Slices are shared; nothing
// here modifies them.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(ESS_tail / steps × 10⁶)
func computeFitness(r runResult) float64 {
	steps := float64(r.report.Run.Steps)
	if steps == 0 {
		return 0
	}
	return -r.ess / steps * 1e6
}
