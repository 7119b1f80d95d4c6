package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// ProgressSample is a snapshot of scheduler progress.
type ProgressSample struct {
	At         time.Time
	Primaries  int64 // primaries drawn from the source
	Candidates int64 // candidates finished
	Queued     int   // candidates waiting in the active queue
}

// ThroughputCollector tracks scheduler progress over a rolling window.
// Safe for concurrent use.
type ThroughputCollector struct {
	mu          sync.Mutex
	windowSize  int
	samples     []ProgressSample
	writeIndex  int
	sampleCount int
}

// NewThroughputCollector creates a collector keeping the last windowSize samples.
func NewThroughputCollector(windowSize int) *ThroughputCollector {
	if windowSize < 2 {
		windowSize = 12
	}
	return &ThroughputCollector{
		windowSize: windowSize,
		samples:    make([]ProgressSample, windowSize),
	}
}

// Record adds a sample, evicting the oldest once the window is full.
func (p *ThroughputCollector) Record(s ProgressSample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples[p.writeIndex] = s
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// ThroughputStats holds rates computed over the collector window.
type ThroughputStats struct {
	Samples             int
	CandidatesPerSecond float64
	PrimariesPerSecond  float64
	MaxQueued           int
	Latest              ProgressSample
}

// Stats computes rates between the oldest and newest sample in the window.
func (p *ThroughputCollector) Stats() ThroughputStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := ThroughputStats{Samples: p.sampleCount}
	if p.sampleCount == 0 {
		return stats
	}

	oldest := (p.writeIndex - p.sampleCount + p.windowSize) % p.windowSize
	newest := (p.writeIndex - 1 + p.windowSize) % p.windowSize
	first, last := p.samples[oldest], p.samples[newest]
	stats.Latest = last

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[(oldest+i)%p.windowSize]
		stats.MaxQueued = max(stats.MaxQueued, s.Queued)
	}

	dt := last.At.Sub(first.At).Seconds()
	if dt > 0 {
		stats.CandidatesPerSecond = float64(last.Candidates-first.Candidates) / dt
		stats.PrimariesPerSecond = float64(last.Primaries-first.Primaries) / dt
	}
	return stats
}

// LogValue implements slog.LogValuer.
func (s ThroughputStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("primaries", s.Latest.Primaries),
		slog.Int64("candidates", s.Latest.Candidates),
		slog.Int("queued", s.Latest.Queued),
		slog.Float64("candidates_per_sec", s.CandidatesPerSecond),
		slog.Float64("primaries_per_sec", s.PrimariesPerSecond),
	)
}
