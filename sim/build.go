package sim

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/config"
	"github.com/pthm-cable/crprop/module"
	"github.com/pthm-cable/crprop/observer"
	"github.com/pthm-cable/crprop/physics"
	"github.com/pthm-cable/crprop/source"
)

// ErrBuild wraps every error raised while assembling a simulation.
var ErrBuild = errors.New("building simulation")

// stage is one module of the pipeline with its catalog ID.
type stage struct {
	id string
	m  module.Module
}

// buildSource creates the primary source described by cfg.
func buildSource(cfg *config.Config, reg *candidate.Registry) (*source.Source, error) {
	sc := cfg.Source
	src := source.New(reg)

	if sc.Radius > 0 {
		src.Add(source.UniformSphere{Center: cfg.Derived.SourcePosition, Radius: sc.Radius})
	} else {
		src.Add(source.Position{At: cfg.Derived.SourcePosition})
	}

	if sc.Isotropic {
		src.Add(source.IsotropicEmission{})
	} else {
		src.Add(source.Direction{Dir: cfg.Derived.SourceDirection})
	}

	switch sc.Spectrum {
	case "power_law":
		spec, err := source.NewPowerLawSpectrum(sc.Emin, sc.Emax, sc.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: source: %w", ErrBuild, err)
		}
		src.Add(spec)
	default:
		if !(sc.Energy > 0) {
			return nil, fmt.Errorf("%w: source: energy must be positive, got %v", ErrBuild, sc.Energy)
		}
		src.Add(source.MonoEnergy{Energy: sc.Energy})
	}

	if sc.ParticleID != 0 {
		src.Add(source.ParticleType{ID: sc.ParticleID})
	}
	if sc.Redshift != 0 {
		src.Add(source.Redshift{Z: sc.Redshift})
	}
	return src, nil
}

// buildPipeline creates the stages in their fixed order:
// propagation, energy changes, splitting, limits, observer.
// Optional stages are left out when disabled.
func buildPipeline(cfg *config.Config) ([]stage, *observer.Observer, error) {
	var stages []stage
	add := func(id string, m module.Module, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBuild, id, err)
		}
		stages = append(stages, stage{id: id, m: m})
		return nil
	}

	if err := add(buildPropagation(cfg.Propagation)); err != nil {
		return nil, nil, err
	}

	if cfg.Acceleration.Rate != 0 {
		m, err := physics.NewContinuousAcceleration(cfg.Acceleration.Rate)
		if err := add("acceleration", m, err); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Acceleration.LossLength != 0 {
		m, err := physics.NewContinuousLoss(cfg.Acceleration.LossLength)
		if err := add("loss", m, err); err != nil {
			return nil, nil, err
		}
	}

	if cfg.Splitting.Enabled {
		m, err := buildSplitting(cfg.Splitting)
		if err := add("splitting", m, err); err != nil {
			return nil, nil, err
		}
	}

	if cfg.Limits.MinEnergy > 0 {
		stages = append(stages, stage{id: "minEnergy", m: &physics.MinimumEnergy{Emin: cfg.Limits.MinEnergy}})
	}
	if cfg.Limits.MaxTrajectory > 0 {
		stages = append(stages, stage{id: "maxTrajectory", m: &physics.MaximumTrajectoryLength{Max: cfg.Limits.MaxTrajectory}})
	}

	obs, err := buildObserver(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: observer: %w", ErrBuild, err)
	}
	stages = append(stages, stage{id: "observer", m: obs})
	return stages, obs, nil
}

func buildPropagation(pc config.PropagationConfig) (string, module.Module, error) {
	switch pc.Mode {
	case config.PropagateRandomWalk:
		m, err := physics.NewRandomWalk(pc.Step)
		return "propagation", m, err
	default:
		m, err := physics.NewSimplePropagation(pc.MinStep, pc.MaxStep)
		return "propagation", m, err
	}
}

func buildSplitting(sc config.SplittingConfig) (*module.CandidateSplitting, error) {
	switch sc.Mode {
	case config.SplitSpectralIndex:
		// Bins counts decades above Emin.
		return module.NewSplittingForSpectralIndex(sc.SpectralIndex, sc.Emin, sc.Bins)
	case config.SplitDSA:
		return module.NewDSASplitting(sc.SpectralIndex, sc.Emin, sc.Bins)
	default:
		return module.NewCandidateSplitting(sc.NSplit, sc.Emin, sc.Emax, sc.Bins, sc.MinWeight, sc.Log)
	}
}

func buildObserver(cfg *config.Config) (*observer.Observer, error) {
	oc := cfg.Observer
	center := cfg.Derived.ObserverCenter

	var det observer.Detector
	switch oc.Shape {
	case config.ShapePoint1D:
		det = observer.Point1D{}
	case config.ShapeSmallSphere:
		if !(oc.Radius > 0) {
			return nil, fmt.Errorf("radius must be positive, got %v", oc.Radius)
		}
		det = observer.SmallSphere{Center: center, Radius: oc.Radius}
	default:
		if !(oc.Radius > 0) {
			return nil, fmt.Errorf("radius must be positive, got %v", oc.Radius)
		}
		det = observer.LargeSphere{Center: center, Radius: oc.Radius}
	}

	obs := observer.New(det)
	if oc.Emin != 0 || oc.Emax != 0 {
		if !(oc.Emin < oc.Emax) {
			return nil, fmt.Errorf("empty energy window [%v, %v)", oc.Emin, oc.Emax)
		}
		obs.Add(observer.EnergyWindow{Emin: oc.Emin, Emax: oc.Emax})
	}
	obs.SetTag(oc.Tag)
	obs.SetDeactivateOnDetection(oc.Deactivate)
	return obs, nil
}
