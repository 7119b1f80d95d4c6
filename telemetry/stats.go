package telemetry

import (
	"log/slog"
	"sort"
	"time"
)

// RunStats holds the counters of one scheduler run.
type RunStats struct {
	RunID       string        `json:"run_id"`
	Primaries   int64         `json:"primaries"`
	Candidates  int64         `json:"candidates"`  // candidates processed to completion
	Secondaries int64         `json:"secondaries"` // candidates spawned by modules
	Steps       int64         `json:"steps"`       // module-chain passes
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// CandidatesPerSecond returns the mean throughput of the run.
func (s RunStats) CandidatesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Candidates) / s.Elapsed.Seconds()
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int64("primaries", s.Primaries),
		slog.Int64("candidates", s.Candidates),
		slog.Int64("secondaries", s.Secondaries),
		slog.Int64("steps", s.Steps),
		slog.Duration("elapsed", s.Elapsed),
		slog.Float64("candidates_per_sec", s.CandidatesPerSecond()),
	)
}

// LogStats logs the run stats using slog.
func (s RunStats) LogStats() {
	slog.Info("run finished", "stats", s)
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeWeightStats returns the minimum and the 10th, 50th and 90th
// percentiles of a set of candidate weights.
func ComputeWeightStats(values []float64) (min, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return sorted[0], Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}
