package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeWeightStats(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	lo, p10, p50, p90 := ComputeWeightStats(values)

	if lo != 0.1 {
		t.Errorf("min = %v, want 0.1", lo)
	}
	if math.Abs(p10-0.19) > 0.001 {
		t.Errorf("p10 = %v, want 0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.001 {
		t.Errorf("p50 = %v, want 0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.001 {
		t.Errorf("p90 = %v, want 0.91", p90)
	}

	// Input must not be reordered.
	if values[0] != 1.0 {
		t.Error("ComputeWeightStats sorted its input")
	}
}

func TestComputeWeightStatsEmpty(t *testing.T) {
	lo, p10, p50, p90 := ComputeWeightStats(nil)

	if lo != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestRunStatsThroughput(t *testing.T) {
	s := RunStats{Candidates: 500, Elapsed: 2 * time.Second}
	if got := s.CandidatesPerSecond(); got != 250 {
		t.Errorf("CandidatesPerSecond = %v, want 250", got)
	}
	if got := (RunStats{Candidates: 5}).CandidatesPerSecond(); got != 0 {
		t.Errorf("zero elapsed: %v, want 0", got)
	}
}
