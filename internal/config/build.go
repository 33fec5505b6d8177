package config

import (
	"log/slog"

	"github.com/stefano-meschiari/gandalf/internal/boundary"
	"github.com/stefano-meschiari/gandalf/internal/comm"
	"github.com/stefano-meschiari/gandalf/internal/domain"
	"github.com/stefano-meschiari/gandalf/internal/eos"
	"github.com/stefano-meschiari/gandalf/internal/kernel"
	"github.com/stefano-meschiari/gandalf/internal/nbody"
	"github.com/stefano-meschiari/gandalf/internal/neighbor"
	"github.com/stefano-meschiari/gandalf/internal/sim"
	"github.com/stefano-meschiari/gandalf/internal/sink"
	"github.com/stefano-meschiari/gandalf/internal/sph"
	"github.com/stefano-meschiari/gandalf/internal/timestep"
)

// BuildSimulator wires every component a run needs from the validated
// config. c carries the worker endpoint in distributed runs and is nil
// otherwise; the caller installs the partition tree on the returned
// simulator's domain worker after the initial decomposition.
func BuildSimulator(cfg *Config, log *slog.Logger, c comm.Comm) (*sim.Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	box, err := cfg.Box()
	if err != nil {
		return nil, err
	}

	kern, err := kernel.New(cfg.Kernel, cfg.NDim)
	if err != nil {
		return nil, err
	}
	state, err := eos.New(cfg.Eos, eos.Params{
		Gamma:   cfg.Gamma,
		MuBar:   cfg.MuBar,
		Temp0:   cfg.Temp0,
		RhoBary: cfg.RhoBary,
	})
	if err != nil {
		return nil, err
	}

	engine, err := sph.New(kern, state, sph.Params{
		NDim:        cfg.NDim,
		HFac:        cfg.HFac,
		HConverge:   cfg.HConverge,
		Visc:        cfg.Avisc,
		Cond:        cfg.Acond,
		AlphaVisc:   cfg.AlphaVisc,
		BetaVisc:    cfg.BetaVisc,
		AlphaMin:    cfg.AlphaMin,
		AlphaCond:   cfg.AlphaCond,
		CAlpha:      cfg.CAlpha,
		SelfGravity: cfg.SelfGravity,
		G:           cfg.G,
		SoftenStars: cfg.SoftenStars,
	})
	if err != nil {
		return nil, err
	}

	steps := &timestep.Controller{
		NDim:         cfg.NDim,
		CourantMult:  cfg.CourantMult,
		AccelMult:    cfg.AccelMult,
		EnergyMult:   cfg.EnergyMult,
		DtMax:        cfg.DtMax,
		MaxLevels:    cfg.MaxLevels,
		LevelDiffMax: cfg.LevelDiffMax,
	}

	bound := &boundary.Manager{
		Box:       box,
		NDim:      cfg.NDim,
		KernRange: kern.Range(),
		RGhost:    cfg.GhostFac,
		TGhost:    cfg.DtMax,
		MaxGhosts: cfg.MaxGhosts,
	}

	var search neighbor.Source
	if cfg.Nsph > 200 {
		search = neighbor.NewGrid(cfg.NDim)
	} else {
		search = neighbor.NewBruteForce(cfg.NDim)
	}

	s, err := sim.New(sim.Options{
		NDim:           cfg.NDim,
		Box:            box,
		DtMax:          cfg.DtMax,
		TEnd:           cfg.TEnd,
		RebalanceEvery: cfg.Partition.RebalanceEvery,
		Hydro:          cfg.Hydro,
		SelfGravity:    cfg.SelfGravity,
		StarGravity:    cfg.StarGravity,
	}, engine, steps, bound, search, log)
	if err != nil {
		return nil, err
	}

	if cfg.StarGravity {
		s.NBody = &nbody.Integrator{
			Kern:        kern,
			NDim:        cfg.NDim,
			G:           cfg.G,
			SoftenStars: cfg.SoftenStars,
		}
	}
	if cfg.Sinks.Enabled {
		s.Sinks = &sink.Manager{Opt: sink.Options{
			NDim:      cfg.NDim,
			RhoSink:   cfg.Sinks.RhoSink,
			RadiusFac: cfg.Sinks.RadiusFac,
			Smooth:    cfg.Sinks.Smooth,
			G:         cfg.G,
			MassFloor: cfg.Sinks.MassFloor,
		}}
	}
	if c != nil && c.Size() > 1 {
		s.Dom = &domain.Worker{
			Comm:      c,
			NDim:      cfg.NDim,
			KernRange: kern.Range(),
			MaxPart:   cfg.Partition.MaxParticles,
		}
	}
	return s, nil
}
