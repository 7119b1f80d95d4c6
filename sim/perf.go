package sim

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/module"
)

// stageClock accumulates the time spent in one stage.
type stageClock struct {
	total atomic.Int64 // nanoseconds
	calls atomic.Int64
}

// StagePerf tracks execution time for each pipeline stage.
// Safe for concurrent use.
type StagePerf struct {
	mu     sync.Mutex
	clocks map[string]*stageClock
}

// NewStagePerf creates a new stage timing tracker.
func NewStagePerf() *StagePerf {
	return &StagePerf{clocks: make(map[string]*stageClock)}
}

func (p *StagePerf) clock(id string) *stageClock {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clocks[id]
	if !ok {
		c = &stageClock{}
		p.clocks[id] = c
	}
	return c
}

// Wrap returns a module that times every call of m under id.
func (p *StagePerf) Wrap(id string, m module.Module) module.Module {
	return &timed{Module: m, clock: p.clock(id)}
}

// Record adds one call of duration d for the named stage.
func (p *StagePerf) Record(id string, d time.Duration) {
	c := p.clock(id)
	c.total.Add(int64(d))
	c.calls.Add(1)
}

// Avg returns the average duration of one call for the named stage.
func (p *StagePerf) Avg(id string) time.Duration {
	p.mu.Lock()
	c, ok := p.clocks[id]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	n := c.calls.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.total.Load() / n)
}

// Total returns the time spent in all stages.
func (p *StagePerf) Total() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total time.Duration
	for _, c := range p.clocks {
		total += time.Duration(c.total.Load())
	}
	return total
}

// SortedIDs returns stage IDs sorted by total time (descending).
func (p *StagePerf) SortedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.clocks))
	for id := range p.clocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return p.clocks[ids[i]].total.Load() > p.clocks[ids[j]].total.Load()
	})
	return ids
}

// Log writes one line per stage, slowest first.
func (p *StagePerf) Log(logger *slog.Logger, catalog *Catalog) {
	total := p.Total()
	for _, id := range p.SortedIDs() {
		share := 0.0
		if total > 0 {
			p.mu.Lock()
			share = float64(p.clocks[id].total.Load()) / float64(total)
			p.mu.Unlock()
		}
		logger.Info("stage time",
			"stage", catalog.Name(id),
			"avg", p.Avg(id),
			"share", share,
		)
	}
}

// timed wraps a module and records how long each call takes.
type timed struct {
	module.Module
	clock *stageClock
}

func (t *timed) Process(c *candidate.Candidate) {
	start := time.Now()
	t.Module.Process(c)
	t.clock.total.Add(int64(time.Since(start)))
	t.clock.calls.Add(1)
}

func (t *timed) Description() string {
	return module.Describe(t.Module)
}
