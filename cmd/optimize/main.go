package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/crprop/config"
)

type options struct {
	configPath string
	outputDir  string
	primaries  int
	workers    int
	seeds      int
	maxEvals   int
	population int
	tailEnergy float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.IntVar(&opts.primaries, "primaries", 200, "Primaries per evaluation run")
	flag.IntVar(&opts.workers, "workers", 1, "Worker goroutines per run (seeds run in parallel)")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 100, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.Float64Var(&opts.tailEnergy, "tail-energy", 100, "Detections at or above this energy count towards the figure of merit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(opts); err != nil {
		slog.Error("optimization failed", "error", err)
		os.Exit(1)
	}
}

// evalRow is one line of optimize_log.csv. Parameter columns follow
// NewParamVector order.
type evalRow struct {
	Eval      int     `csv:"eval"`
	Fitness   float64 `csv:"fitness"`
	TailESS   float64 `csv:"tail_ess"`
	NSplit    float64 `csv:"n_split"`
	Bins      float64 `csv:"bins"`
	Decades   float64 `csv:"emax_decades"`
	MinWeight float64 `csv:"min_weight_log10"`
}

// evalLog appends evaluation rows to a CSV file, writing the header once.
type evalLog struct {
	w       io.Writer
	started bool
}

func (l *evalLog) write(row evalRow) error {
	rows := []evalRow{row}
	if !l.started {
		l.started = true
		return gocsv.Marshal(rows, l.w)
	}
	return gocsv.MarshalWithoutHeaders(rows, l.w)
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if opts.seeds < 1 {
		return fmt.Errorf("-seeds must be positive, got %d", opts.seeds)
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base := config.Cfg()
	base.Run.Primaries = opts.primaries
	base.Run.Workers = opts.workers

	params := NewParamVector()
	seeds := make([]uint64, opts.seeds)
	for i := range seeds {
		seeds[i] = uint64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, seeds, base, opts.tailEnergy)

	logFile, err := os.Create(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()
	evals := &evalLog{w: logFile}

	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + 3*params.Dim()/2
	}

	var (
		count       int
		bestFitness = penaltyFitness
		best        []float64
		start       = time.Now()
	)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// clamped values are the ones the evaluator actually runs
			v := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(v)
			count++
			if fitness < bestFitness {
				bestFitness = fitness
				best = v
			}

			ess := evaluator.LastESS()
			if err := evals.write(evalRow{
				Eval: count, Fitness: fitness, TailESS: ess,
				NSplit: v[0], Bins: v[1], Decades: v[2], MinWeight: v[3],
			}); err != nil {
				slog.Warn("failed to write evaluation log", "error", err)
			}

			elapsed := time.Since(start)
			eta := time.Duration(opts.maxEvals-count) * (elapsed / time.Duration(count))
			slog.Info("evaluation",
				"eval", count,
				"max", opts.maxEvals,
				"ess_per_msteps", -fitness,
				"tail_ess", ess,
				"best", -bestFitness,
				"elapsed", elapsed.Round(time.Second).String(),
				"eta", eta.Round(time.Second).String(),
			)
			return fitness
		},
	}

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"primaries", opts.primaries,
	)

	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(base)))
	result, err := optimize.Minimize(problem, initX,
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize},
	)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no evaluation completed")
	}

	attrs := []any{"evals", count, "elapsed", time.Since(start).Round(time.Second).String(), "ess_per_msteps", -bestFitness}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, best[i])
	}
	slog.Info("optimization complete", attrs...)

	return writeBest(opts, params, best, evaluator)
}

// writeBest saves the best parameters as a full config and the report of
// the best run.
func writeBest(opts options, params *ParamVector, best []float64, evaluator *FitnessEvaluator) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	params.ApplyToConfig(cfg, best)

	configPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := cfg.WriteYAML(configPath); err != nil {
		return fmt.Errorf("write best config: %w", err)
	}
	slog.Info("best config saved", "path", configPath)

	report := evaluator.BestReport()
	if report == nil {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal best summary: %w", err)
	}
	summaryPath := filepath.Join(opts.outputDir, "best_summary.json")
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		return fmt.Errorf("write best summary: %w", err)
	}
	slog.Info("best summary saved", "path", summaryPath)
	return nil
}
