// Package main tunes candidate splitting parameters with CMA-ES.
package main

import (
	"math"

	"github.com/pthm-cable/crprop/config"
)

// ParamSpec is one searchable parameter. CMA-ES works on the unit
// interval; Min and Max map it back to the raw value.
type ParamSpec struct {
	Name    string
	Path    string // config key, for logs
	Min     float64
	Max     float64
	Default float64
	Integer bool // rounded before use
}

func (s ParamSpec) toUnit(v float64) float64   { return (v - s.Min) / (s.Max - s.Min) }
func (s ParamSpec) fromUnit(u float64) float64 { return s.Min + u*(s.Max-s.Min) }

func (s ParamSpec) clamp(v float64) float64 {
	v = math.Min(math.Max(v, s.Min), s.Max)
	if s.Integer {
		v = math.Round(v)
	}
	return v
}

// ParamVector is the ordered set of searched parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the splitting search space. The threshold span
// and the weight floor are searched in log10.
func NewParamVector() *ParamVector {
	return &ParamVector{Specs: []ParamSpec{
		{Name: "n_split", Path: "splitting.n_split", Min: 2, Max: 8, Default: 2, Integer: true},
		{Name: "bins", Path: "splitting.bins", Min: 1, Max: 16, Default: 6, Integer: true},
		{Name: "emax_decades", Path: "splitting.emax", Min: 0.5, Max: 5, Default: 3},
		{Name: "min_weight_log10", Path: "splitting.min_weight", Min: -10, Max: -1, Default: -4},
	}}
}

func (pv *ParamVector) Dim() int { return len(pv.Specs) }

func (pv *ParamVector) each(v []float64, f func(ParamSpec, float64) float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = f(s, v[i])
	}
	return out
}

func (pv *ParamVector) DefaultVector() []float64 {
	return pv.each(make([]float64, len(pv.Specs)), func(s ParamSpec, _ float64) float64 { return s.Default })
}

// Normalize maps raw values onto [0,1].
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	return pv.each(raw, ParamSpec.toUnit)
}

// Denormalize maps [0,1] values back to raw values.
func (pv *ParamVector) Denormalize(unit []float64) []float64 {
	return pv.each(unit, ParamSpec.fromUnit)
}

// Clamp bounds every value and rounds integer parameters.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	return pv.each(v, ParamSpec.clamp)
}

// ApplyToConfig writes values into cfg. Splitting switches to log-spaced
// explicit bins starting at the configured splitting.emin.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	v := pv.Clamp(values)

	sc := &cfg.Splitting
	sc.Enabled = true
	sc.Mode = config.SplitBins
	sc.Log = true
	sc.NSplit = int(v[0])
	sc.Bins = int(v[1])
	sc.Emax = sc.Emin * math.Pow(10, v[2])
	sc.MinWeight = math.Pow(10, v[3])
}

// ExtractFromConfig reads the searched values back out of cfg. A zero
// weight floor maps to the lowest searchable floor.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	sc := cfg.Splitting
	decades := 0.0
	if sc.Emin > 0 && sc.Emax > 0 {
		decades = math.Log10(sc.Emax / sc.Emin)
	}
	floor := pv.Specs[3].Min
	if sc.MinWeight > 0 {
		floor = math.Log10(sc.MinWeight)
	}
	return []float64{float64(sc.NSplit), float64(sc.Bins), decades, floor}
}
