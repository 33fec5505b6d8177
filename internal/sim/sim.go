// Package sim orchestrates the global step: wrap, rebalance, ghost
// build, neighbour search, density solve, force evaluation, block-step
// integration and sink accretion, in that order, and records per-step
// diagnostics.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/stefano-meschiari/gandalf/internal/boundary"
	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/domain"
	"github.com/stefano-meschiari/gandalf/internal/nbody"
	"github.com/stefano-meschiari/gandalf/internal/neighbor"
	"github.com/stefano-meschiari/gandalf/internal/sink"
	"github.com/stefano-meschiari/gandalf/internal/sph"
	"github.com/stefano-meschiari/gandalf/internal/timestep"
)

// Options fix the orchestration-level behaviour of a run.
type Options struct {
	NDim           int
	Box            core.Box
	DtMax          float64
	TEnd           float64
	RebalanceEvery int // macro steps between load-balance passes
	Hydro          bool
	SelfGravity    bool
	StarGravity    bool // stars feel and exert forces
}

// StepStats is one macro step's diagnostic record.
type StepStats struct {
	Step      int
	Time      float64
	Kinetic   float64
	Thermal   float64
	Potential float64
	Momentum  core.Vec
	MaxVel    float64
	NParts    int
	NGhosts   int
	NSinks    int
	Imbalance float64
}

// Result accumulates a run's diagnostics.
type Result struct {
	Stats      []StepStats
	StepsTaken int
}

// Simulator advances one worker's share of the system.
type Simulator struct {
	Opt    Options
	Engine *sph.Engine
	NBody  *nbody.Integrator
	Bound  *boundary.Manager
	Sinks  *sink.Manager
	Steps  *timestep.Controller
	Search neighbor.Source
	Dom    *domain.Worker // nil outside distributed runs
	Log    *slog.Logger
	Rep    *core.Reporter

	parts  []core.Particle
	nReal  int // owned real particles
	nLocal int // + boundary ghosts
	nTotal int // + remote ghosts
	stars  []core.Star

	step        int
	time        float64
	curMaxLevel int
}

// New wires a simulator; particle and star populations come from
// SetParticles/SetStars before Run.
func New(opt Options, engine *sph.Engine, steps *timestep.Controller, bound *boundary.Manager, search neighbor.Source, log *slog.Logger) (*Simulator, error) {
	if opt.DtMax <= 0 {
		return nil, fmt.Errorf("%w: dt_max must be positive", core.ErrConfig)
	}
	if opt.NDim < 1 || opt.NDim > 3 {
		return nil, fmt.Errorf("%w: ndim %d", core.ErrConfig, opt.NDim)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		Opt:    opt,
		Engine: engine,
		Steps:  steps,
		Bound:  bound,
		Search: search,
		Log:    log,
		// Embedded by default: errors flow back to the caller. A host
		// that sets Embedded to false aborts on the spot instead.
		Rep: &core.Reporter{Embedded: true, Log: log},
	}, nil
}

// SetParticles installs the fluid population.
func (s *Simulator) SetParticles(parts []core.Particle) {
	s.parts = parts
	s.nReal = len(parts)
	s.nLocal = s.nReal
	s.nTotal = s.nReal
	for i := range s.parts {
		s.parts[i].Sink = -1
		s.parts[i].Active = true
		s.parts[i].NStep = 1
	}
}

// SetStars installs the star population.
func (s *Simulator) SetStars(stars []core.Star) { s.stars = stars }

// Particles exposes the current real particles (diagnostics, output).
func (s *Simulator) Particles() []core.Particle { return s.parts[:s.nReal] }

// Stars exposes the star population including formed sinks.
func (s *Simulator) Stars() []core.Star {
	out := append([]core.Star(nil), s.stars...)
	if s.Sinks != nil {
		out = append(out, s.Sinks.Stars()...)
	}
	return out
}

// Time returns the current simulation time.
func (s *Simulator) Time() float64 { return s.time }

// allStars merges persistent stars with sink stars for force evaluation.
func (s *Simulator) allStars() []core.Star {
	if s.Sinks == nil || len(s.Sinks.Sinks) == 0 {
		return s.stars
	}
	return append(append([]core.Star(nil), s.stars...), s.Sinks.Stars()...)
}

// hcap bounds the h iteration by the box scale so isolated particles
// terminate instead of growing forever.
func (s *Simulator) hcap() float64 {
	span := 0.0
	for k := 0; k < s.Opt.NDim; k++ {
		size := s.Opt.Box.Size(k)
		if math.IsInf(size, 0) || size <= 0 {
			size = 1e10
		}
		if size > span {
			span = size
		}
	}
	return span
}

// Run advances the system until TEnd or until ctx is cancelled between
// macro steps; there is no cancellation inside a step.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for s.time < s.Opt.TEnd {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		if err := s.MacroStep(); err != nil {
			return res, s.Rep.Fatal(err)
		}
		res.StepsTaken++
		res.Stats = append(res.Stats, s.Diagnostics())
		if s.step%10 == 0 {
			st := res.Stats[len(res.Stats)-1]
			s.Log.Info("step",
				"n", s.step, "t", s.time,
				"parts", st.NParts, "ghosts", st.NGhosts,
				"sinks", st.NSinks, "ke", st.Kinetic)
		}
	}
	return res, nil
}
