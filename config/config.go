// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation error returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Splitting modes.
const (
	SplitBins          = "bins"
	SplitSpectralIndex = "spectral_index"
	SplitDSA           = "dsa"
)

// Propagation modes.
const (
	PropagateStraight   = "straight"
	PropagateRandomWalk = "random_walk"
)

// Observer shapes.
const (
	ShapeLargeSphere = "large_sphere"
	ShapeSmallSphere = "small_sphere"
	ShapePoint1D     = "point1d"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Run          RunConfig          `yaml:"run"`
	Source       SourceConfig       `yaml:"source"`
	Propagation  PropagationConfig  `yaml:"propagation"`
	Acceleration AccelerationConfig `yaml:"acceleration"`
	Limits       LimitsConfig       `yaml:"limits"`
	Splitting    SplittingConfig    `yaml:"splitting"`
	Observer     ObserverConfig     `yaml:"observer"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds scheduler settings.
type RunConfig struct {
	Primaries        int     `yaml:"primaries"`
	Workers          int     `yaml:"workers"`           // 0 = GOMAXPROCS
	Seed             uint64  `yaml:"seed"`              // Seeds every candidate's random stream
	ProgressInterval float64 `yaml:"progress_interval"` // Seconds between progress logs (0 = off)
}

// SourceConfig describes how primaries are emitted.
type SourceConfig struct {
	Position   []float64 `yaml:"position"`
	Radius     float64   `yaml:"radius"`    // > 0 spreads positions uniformly in a sphere
	Isotropic  bool      `yaml:"isotropic"` // false emits along Direction
	Direction  []float64 `yaml:"direction"`
	Spectrum   string    `yaml:"spectrum"` // "mono" or "power_law"
	Energy     float64   `yaml:"energy"`   // mono energy
	Emin       float64   `yaml:"emin"`
	Emax       float64   `yaml:"emax"`
	Index      float64   `yaml:"index"` // dN/dE ∝ E^index
	ParticleID int       `yaml:"particle_id"`
	Redshift   float64   `yaml:"redshift"`
}

// PropagationConfig holds propagator parameters.
type PropagationConfig struct {
	Mode    string  `yaml:"mode"`
	MinStep float64 `yaml:"min_step"` // straight
	MaxStep float64 `yaml:"max_step"` // straight
	Step    float64 `yaml:"step"`     // random walk
}

// AccelerationConfig holds continuous energy change parameters.
type AccelerationConfig struct {
	Rate       float64 `yaml:"rate"`        // Fractional energy gain per unit length (0 = off)
	LossLength float64 `yaml:"loss_length"` // e-folding length of losses (0 = off)
}

// LimitsConfig holds candidate termination conditions.
type LimitsConfig struct {
	MinEnergy     float64 `yaml:"min_energy"`     // 0 = off
	MaxTrajectory float64 `yaml:"max_trajectory"` // 0 = off
}

// SplittingConfig holds importance-splitting parameters.
type SplittingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Mode          string  `yaml:"mode"`
	Emin          float64 `yaml:"emin"`
	Emax          float64 `yaml:"emax"`
	Bins          int     `yaml:"bins"`
	Log           bool    `yaml:"log"`
	NSplit        int     `yaml:"n_split"`
	MinWeight     float64 `yaml:"min_weight"`     // 0 disables the weight floor
	SpectralIndex float64 `yaml:"spectral_index"` // spectral_index and dsa modes
}

// ObserverConfig holds the detection geometry.
type ObserverConfig struct {
	Shape      string    `yaml:"shape"`
	Center     []float64 `yaml:"center"`
	Radius     float64   `yaml:"radius"`
	Tag        string    `yaml:"tag"`
	Emin       float64   `yaml:"emin"` // energy window, both 0 = off
	Emax       float64   `yaml:"emax"`
	Deactivate bool      `yaml:"deactivate"`
}

// TelemetryConfig holds output and reporting parameters.
type TelemetryConfig struct {
	SpectrumBins     int     `yaml:"spectrum_bins"`
	SpectrumEmin     float64 `yaml:"spectrum_emin"`
	SpectrumEmax     float64 `yaml:"spectrum_emax"`
	SpectrumLog      bool    `yaml:"spectrum_log"`
	CSVBatch         int     `yaml:"csv_batch"`
	ThroughputWindow int     `yaml:"throughput_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ProgressInterval time.Duration
	SourcePosition   r3.Vec
	SourceDirection  r3.Vec
	ObserverCenter   r3.Vec
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates c and recomputes derived values. Call it after changing
// fields of a loaded config.
func (c *Config) Finalize() error {
	if err := c.validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

func (c *Config) validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Run.Primaries < 0 {
		return invalid("run.primaries must not be negative, got %d", c.Run.Primaries)
	}
	if c.Run.Workers < 0 {
		return invalid("run.workers must not be negative, got %d", c.Run.Workers)
	}
	for name, v := range map[string][]float64{
		"source.position":  c.Source.Position,
		"source.direction": c.Source.Direction,
		"observer.center":  c.Observer.Center,
	} {
		if len(v) != 0 && len(v) != 3 {
			return invalid("%s needs 3 components, got %d", name, len(v))
		}
	}

	switch c.Source.Spectrum {
	case "mono", "power_law":
	default:
		return invalid("unknown source.spectrum %q", c.Source.Spectrum)
	}
	switch c.Propagation.Mode {
	case PropagateStraight, PropagateRandomWalk:
	default:
		return invalid("unknown propagation.mode %q", c.Propagation.Mode)
	}
	switch c.Splitting.Mode {
	case SplitBins, SplitSpectralIndex, SplitDSA:
	default:
		return invalid("unknown splitting.mode %q", c.Splitting.Mode)
	}
	switch c.Observer.Shape {
	case ShapeLargeSphere, ShapeSmallSphere, ShapePoint1D:
	default:
		return invalid("unknown observer.shape %q", c.Observer.Shape)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ProgressInterval = time.Duration(c.Run.ProgressInterval * float64(time.Second))
	c.Derived.SourcePosition = vec(c.Source.Position, r3.Vec{})
	c.Derived.SourceDirection = vec(c.Source.Direction, r3.Vec{X: -1})
	c.Derived.ObserverCenter = vec(c.Observer.Center, r3.Vec{})
}

func vec(v []float64, fallback r3.Vec) r3.Vec {
	if len(v) != 3 {
		return fallback
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
