package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/telemetry"
)

// ErrModulePanic wraps a panic raised by a module during a run.
var ErrModulePanic = errors.New("module panicked")

// primariesPerWorker bounds how many primaries wait in the queue per worker.
const primariesPerWorker = 64

// ModuleList is an ordered pipeline of modules and the scheduler that drives
// candidates through it.
//
// Every step sets Previous to Current and then calls each module in order.
// A candidate is stepped until it becomes inactive. Secondaries appended
// during a step are queued after that step and start at the head of the
// pipeline on their own; they never resume the parent's remaining modules.
//
// A ModuleList is itself a Module, so lists can be nested.
type ModuleList struct {
	modules []Module

	workers          int
	logger           *slog.Logger
	progressInterval time.Duration
	throughput       *telemetry.ThroughputCollector
}

// Option configures a ModuleList.
type Option func(*ModuleList)

// WithWorkers sets the number of worker goroutines. 0 means one per
// available hardware thread.
func WithWorkers(n int) Option {
	return func(l *ModuleList) {
		l.workers = n
	}
}

// WithLogger sets the logger used for run and progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ModuleList) {
		l.logger = logger
	}
}

// WithProgress enables periodic progress reports during Run.
func WithProgress(interval time.Duration) Option {
	return func(l *ModuleList) {
		l.progressInterval = interval
	}
}

// WithThroughputCollector records progress samples into tc during Run.
// Samples are taken at the progress interval, or every second if progress
// reporting is disabled.
func WithThroughputCollector(tc *telemetry.ThroughputCollector) Option {
	return func(l *ModuleList) {
		l.throughput = tc
	}
}

// New creates an empty module list.
func New(opts ...Option) *ModuleList {
	l := &ModuleList{}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers <= 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Add appends m to the pipeline.
func (l *ModuleList) Add(m Module) {
	l.modules = append(l.modules, m)
}

// Modules returns the pipeline in order. The slice must not be modified.
func (l *ModuleList) Modules() []Module {
	return l.modules
}

// Len returns the number of modules.
func (l *ModuleList) Len() int {
	return len(l.modules)
}

// Workers returns the number of worker goroutines Run uses.
func (l *ModuleList) Workers() int {
	return l.workers
}

// Describe returns one description line per module.
func (l *ModuleList) Describe() []string {
	lines := make([]string, len(l.modules))
	for i, m := range l.modules {
		lines[i] = fmt.Sprintf("%d: %s", i, Describe(m))
	}
	return lines
}

// Description implements Describer.
func (l *ModuleList) Description() string {
	return fmt.Sprintf("ModuleList with %d modules", len(l.modules))
}

// Process advances c by one step through every module.
func (l *ModuleList) Process(c *candidate.Candidate) {
	c.Previous = c.Current
	for _, m := range l.modules {
		m.Process(c)
	}
}

// counters are the shared run statistics.
type counters struct {
	primaries   atomic.Int64
	candidates  atomic.Int64
	secondaries atomic.Int64
	steps       atomic.Int64
}

func (c *counters) stats(elapsed time.Duration) telemetry.RunStats {
	return telemetry.RunStats{
		Primaries:   c.primaries.Load(),
		Candidates:  c.candidates.Load(),
		Secondaries: c.secondaries.Load(),
		Steps:       c.steps.Load(),
		Elapsed:     elapsed,
	}
}

// advance steps c until it is inactive, handing new secondaries to push
// after every step.
func (l *ModuleList) advance(ctx context.Context, c *candidate.Candidate, push func([]*candidate.Candidate), cnt *counters) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: candidate %d: %v", ErrModulePanic, c.SerialNumber(), r)
		}
	}()

	for c.IsActive() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Process(c)
		cnt.steps.Add(1)
		if fresh := c.DrainSecondaries(); len(fresh) > 0 {
			cnt.secondaries.Add(int64(len(fresh)))
			push(fresh)
		}
	}
	cnt.candidates.Add(1)
	return nil
}

// RunCandidate processes c and all of its descendants to completion on the
// calling goroutine, depth first.
func (l *ModuleList) RunCandidate(ctx context.Context, c *candidate.Candidate) (telemetry.RunStats, error) {
	start := time.Now()
	var cnt counters

	stack := []*candidate.Candidate{c}
	push := func(cs []*candidate.Candidate) {
		// reversed so the first secondary is processed first
		for i := len(cs) - 1; i >= 0; i-- {
			stack = append(stack, cs[i])
		}
	}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := l.advance(ctx, next, push, &cnt); err != nil {
			return cnt.stats(time.Since(start)), err
		}
	}
	return cnt.stats(time.Since(start)), nil
}

// Run draws count primaries from src and processes them, together with every
// secondary they spawn, on the worker pool until the population is empty.
//
// A module panic or cancellation of ctx aborts the run: workers stop drawing
// candidates and everything still queued or in flight is discarded.
func (l *ModuleList) Run(ctx context.Context, src Source, count int) (telemetry.RunStats, error) {
	start := time.Now()
	var cnt counters

	q := newWorkQueue(l.workers * primariesPerWorker)
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, q.cancel)
	defer stop()

	l.logger.Debug("run starting",
		"primaries", count,
		"workers", l.workers,
		"modules", len(l.modules),
	)

	// Producer: the source is only ever touched from this goroutine.
	g.Go(func() error {
		defer q.closeInput()
		for i := 0; i < count; i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !q.pushPrimary(src.Candidate()) {
				return gctx.Err()
			}
			cnt.primaries.Add(1)
		}
		return nil
	})

	for w := 0; w < l.workers; w++ {
		g.Go(func() error {
			for {
				c, ok := q.pop()
				if !ok {
					return gctx.Err()
				}
				err := l.advance(gctx, c, q.pushSecondaries, &cnt)
				q.done()
				if err != nil {
					return err
				}
			}
		})
	}

	reportDone := make(chan struct{})
	reportStopped := make(chan struct{})
	go func() {
		defer close(reportStopped)
		l.report(q, &cnt, count, reportDone)
	}()

	err := g.Wait()
	close(reportDone)
	<-reportStopped

	stats := cnt.stats(time.Since(start))
	if err != nil {
		l.logger.Error("run aborted", "error", err, "stats", stats)
		return stats, err
	}
	l.logger.Debug("run finished", "stats", stats)
	return stats, nil
}

// report samples progress until done is closed.
func (l *ModuleList) report(q *workQueue, cnt *counters, total int, done <-chan struct{}) {
	interval := l.progressInterval
	if interval <= 0 {
		if l.throughput == nil {
			return
		}
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			sample := telemetry.ProgressSample{
				At:         now,
				Primaries:  cnt.primaries.Load(),
				Candidates: cnt.candidates.Load(),
				Queued:     q.length(),
			}
			if l.throughput != nil {
				l.throughput.Record(sample)
			}
			if l.progressInterval > 0 {
				pct := 0.0
				if total > 0 {
					pct = 100 * float64(sample.Primaries) / float64(total)
				}
				l.logger.Info("progress",
					"primaries", sample.Primaries,
					"total", total,
					"percent", pct,
					"candidates", sample.Candidates,
					"queued", sample.Queued,
				)
			}
		}
	}
}
