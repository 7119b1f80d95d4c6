package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/crprop/config"
	"github.com/pthm-cable/crprop/telemetry"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestClamp(t *testing.T) {
	pv := NewParamVector()
	got := pv.Clamp([]float64{2.6, 100, -3, -4.5})
	want := []float64{3, 16, 0.5, -4.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
}

func TestApplyExtract(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	pv.ApplyToConfig(cfg, []float64{4, 8, 2, -6})

	sc := cfg.Splitting
	if sc.NSplit != 4 || sc.Bins != 8 || sc.Mode != config.SplitBins || !sc.Log {
		t.Errorf("splitting = %+v", sc)
	}
	if math.Abs(sc.Emax/sc.Emin-100) > 1e-9 {
		t.Errorf("emax/emin = %v, want 100", sc.Emax/sc.Emin)
	}
	if math.Abs(sc.MinWeight-1e-6) > 1e-18 {
		t.Errorf("min weight = %v, want 1e-6", sc.MinWeight)
	}

	got := pv.ExtractFromConfig(cfg)
	want := []float64{4, 8, 2, -6}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("%s extracted %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
}

func TestComputeFitness(t *testing.T) {
	r := runResult{report: telemetry.Report{Run: telemetry.RunStats{Steps: 2_000_000}}, ess: 50}
	if got := computeFitness(r); got != -25 {
		t.Errorf("fitness = %v, want -25", got)
	}
	if got := computeFitness(runResult{ess: 5}); got != 0 {
		t.Errorf("no steps: %v, want 0", got)
	}
}

func TestEvaluatePenalizesInvalidSetup(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Splitting.Emin = 0 // log thresholds need a positive lower bound

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, []uint64{1}, cfg, 100)
	if got := fe.Evaluate(pv.DefaultVector()); got != penaltyFitness {
		t.Errorf("fitness = %v, want penalty", got)
	}
	if fe.BestReport() != nil {
		t.Error("failed evaluation should not become best")
	}
}

func TestEvaluate(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Run.Primaries = 10
	cfg.Run.Workers = 1
	cfg.Propagation = config.PropagationConfig{Mode: config.PropagateStraight, MinStep: 0.01, MaxStep: 1}
	cfg.Source.Isotropic = false
	cfg.Acceleration.Rate = 0.5

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, []uint64{1, 2}, cfg, 100)
	fitness := fe.Evaluate([]float64{2, 2, 2, -4})
	if !(fitness < 0) {
		t.Errorf("fitness = %v, want negative", fitness)
	}
	if fe.LastESS() <= 0 {
		t.Errorf("tail ESS = %v, want positive", fe.LastESS())
	}
	if fe.BestReport() == nil {
		t.Error("best report not recorded")
	}
}
