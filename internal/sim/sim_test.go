package sim

import (
	"context"
	"math"
	"testing"

	"github.com/onsi/gomega"

	"github.com/stefano-meschiari/gandalf/internal/boundary"
	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/eos"
	"github.com/stefano-meschiari/gandalf/internal/kernel"
	"github.com/stefano-meschiari/gandalf/internal/nbody"
	"github.com/stefano-meschiari/gandalf/internal/neighbor"
	"github.com/stefano-meschiari/gandalf/internal/sink"
	"github.com/stefano-meschiari/gandalf/internal/sph"
	"github.com/stefano-meschiari/gandalf/internal/timestep"
)

// buildSim assembles a single-worker simulator by hand so the tests do
// not depend on the config package.
func buildSim(t *testing.T, ndim int, box core.Box, eosTag string, par sph.Params, opt Options) *Simulator {
	t.Helper()
	k, err := kernel.New("m4", ndim)
	if err != nil {
		t.Fatal(err)
	}
	es, err := eos.New(eosTag, eos.Params{Gamma: 5.0 / 3.0, MuBar: 1.0, Temp0: 1.0, RhoBary: 1e-2})
	if err != nil {
		t.Fatal(err)
	}
	par.NDim = ndim
	par.HFac = 1.2
	par.HConverge = 1e-3
	if par.Visc == "" {
		par.Visc = sph.ViscNone
	}
	if par.Cond == "" {
		par.Cond = sph.CondNone
	}
	engine, err := sph.New(k, es, par)
	if err != nil {
		t.Fatal(err)
	}
	steps := &timestep.Controller{
		NDim: ndim, CourantMult: 0.15, AccelMult: 0.3, EnergyMult: 0.3,
		DtMax: opt.DtMax, MaxLevels: 2, LevelDiffMax: 2,
	}
	bound := &boundary.Manager{
		Box: box, NDim: ndim, KernRange: k.Range(),
		RGhost: 1.1, TGhost: opt.DtMax, MaxGhosts: 1 << 18,
	}
	opt.NDim = ndim
	opt.Box = box
	s, err := New(opt, engine, steps, bound, neighbor.NewGrid(ndim), nil)
	if err != nil {
		t.Fatal(err)
	}
	if opt.StarGravity {
		s.NBody = &nbody.Integrator{Kern: k, NDim: ndim, G: 1.0}
	}
	return s
}

func periodicBox(ndim int, lo, hi float64) core.Box {
	var b core.Box
	for k := 0; k < 3; k++ {
		b.Min[k], b.Max[k] = lo, hi
	}
	for k := 0; k < ndim; k++ {
		b.Bound[k][0] = core.BoundaryPeriodic
		b.Bound[k][1] = core.BoundaryPeriodic
	}
	return b
}

// latticeCube fills the box with a side^3 lattice of unit total mass.
func latticeCube(box core.Box, side int) []core.Particle {
	m := 1.0 / float64(side*side*side)
	d := (box.Max[0] - box.Min[0]) / float64(side)
	var parts []core.Particle
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				parts = append(parts, core.Particle{
					R: core.Vec{
						box.Min[0] + (float64(x)+0.5)*d,
						box.Min[1] + (float64(y)+0.5)*d,
						box.Min[2] + (float64(z)+0.5)*d,
					},
					M: m, H: 1.2 * d, U: 1.0,
				})
			}
		}
	}
	return parts
}

// A uniform periodic cube must stay at rest: after ten macro steps the
// largest velocity stays tiny.
func TestStaticCubeEquilibrium(t *testing.T) {
	g := gomega.NewWithT(t)
	box := periodicBox(3, 0, 1)
	s := buildSim(t, 3, box, "isothermal", sph.Params{}, Options{
		DtMax: 0.002, TEnd: 0.02, Hydro: true,
	})
	s.SetParticles(latticeCube(box, 8))

	res, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(res.StepsTaken).To(gomega.BeNumerically("~", 10, 1))

	last := res.Stats[len(res.Stats)-1]
	g.Expect(last.MaxVel).To(gomega.BeNumerically("<", 1e-6),
		"lattice symmetry should keep the cube static")
}

// Hydrodynamic forces must conserve linear momentum step after step.
func TestMomentumConservedOverRun(t *testing.T) {
	g := gomega.NewWithT(t)
	box := periodicBox(3, 0, 1)
	s := buildSim(t, 3, box, "adiabatic", sph.Params{Visc: sph.ViscFixed, AlphaVisc: 1.0, BetaVisc: 2.0}, Options{
		DtMax: 0.001, TEnd: 0.005, Hydro: true,
	})
	parts := latticeCube(box, 6)
	// A sinusoidal velocity perturbation with zero net momentum.
	for i := range parts {
		parts[i].V[0] = 0.05 * math.Sin(2.0*math.Pi*parts[i].R[0])
	}
	s.SetParticles(parts)

	res, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())
	for _, st := range res.Stats {
		g.Expect(math.Abs(st.Momentum[0])).To(gomega.BeNumerically("<", 1e-10))
		g.Expect(math.Abs(st.Momentum[1])).To(gomega.BeNumerically("<", 1e-10))
	}
}

// Star-only run: one orbit of an equal-mass binary drifts the separation
// by less than a part in 1e4 (leapfrog second order).
func TestBinaryOrbitScenario(t *testing.T) {
	g := gomega.NewWithT(t)
	var box core.Box
	box.Min, box.Max = core.Vec{-2, -2, -2}, core.Vec{2, 2, 2}
	period := 2.0 * math.Pi
	s := buildSim(t, 3, box, "isothermal", sph.Params{}, Options{
		DtMax: 0.001, TEnd: period, Hydro: false, StarGravity: true,
	})
	s.SetParticles(nil)
	v := 0.5
	s.SetStars([]core.Star{
		{R: core.Vec{-0.5, 0, 0}, V: core.Vec{0, -v, 0}, M: 0.5, H: 1e-4, Binary: -1},
		{R: core.Vec{0.5, 0, 0}, V: core.Vec{0, v, 0}, M: 0.5, H: 1e-4, Binary: -1},
	})

	_, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	stars := s.Stars()
	sep := stars[1].R.Sub(stars[0].R).Norm(3)
	g.Expect(math.Abs(sep-1.0)).To(gomega.BeNumerically("<", 1e-4))
}

// A persistent star and a sink star must attract each other: the force
// pass treats both groups as one population.
func TestStarAndSinkMutualGravity(t *testing.T) {
	g := gomega.NewWithT(t)
	var box core.Box
	box.Min, box.Max = core.Vec{-2, -2, -2}, core.Vec{2, 2, 2}
	s := buildSim(t, 3, box, "isothermal", sph.Params{}, Options{
		DtMax: 0.001, TEnd: 0.001, Hydro: false, StarGravity: true,
	})
	s.SetParticles(nil)
	s.SetStars([]core.Star{{R: core.Vec{-0.5, 0, 0}, M: 1, H: 1e-4, Binary: -1}})
	s.Sinks = &sink.Manager{
		Opt: sink.Options{NDim: 3, RhoSink: 1e30, RadiusFac: 2, G: 1, MassFloor: 1e-3},
		Sinks: []sink.Sink{{
			Star:   core.Star{R: core.Vec{0.5, 0, 0}, M: 2, H: 1e-4, Binary: -1},
			Radius: 0.01,
		}},
	}

	_, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	stars := s.Stars() // persistent first, then the sink star
	g.Expect(stars).To(gomega.HaveLen(2))
	// Mutual attraction along x, antisymmetric in m*a.
	g.Expect(stars[0].A[0]).To(gomega.BeNumerically(">", 0))
	g.Expect(stars[1].A[0]).To(gomega.BeNumerically("<", 0))
	net := stars[0].M*stars[0].A[0] + stars[1].M*stars[1].A[0]
	g.Expect(math.Abs(net)).To(gomega.BeNumerically("<", 1e-12))
}

// The 1-D tube must keep positions and velocities finite through the
// shock transit, with every density inside a broad bracket around the
// two initial densities.
func TestShockTubeScenario(t *testing.T) {
	g := gomega.NewWithT(t)
	var box core.Box
	box.Min, box.Max = core.Vec{0, 0, 0}, core.Vec{1, 0, 0}
	box.Bound[0][0], box.Bound[0][1] = core.BoundaryPeriodic, core.BoundaryPeriodic

	s := buildSim(t, 1, box, "isothermal",
		sph.Params{Visc: sph.ViscFixed, AlphaVisc: 1.0, BetaVisc: 2.0, Cond: sph.CondWadsley, AlphaCond: 1.0},
		Options{DtMax: 0.001, TEnd: 0.05, Hydro: true})

	// 4:1 spacing contrast about the midpoint, equal masses.
	n := 200
	nLeft := n * 4 / 5
	m := 0.625 / float64(n)
	var parts []core.Particle
	dxL := 0.5 / float64(nLeft)
	for i := 0; i < nLeft; i++ {
		parts = append(parts, core.Particle{R: core.Vec{(float64(i) + 0.5) * dxL}, M: m, H: 2 * dxL, U: 1})
	}
	dxR := 0.5 / float64(n-nLeft)
	for i := 0; i < n-nLeft; i++ {
		parts = append(parts, core.Particle{R: core.Vec{0.5 + (float64(i)+0.5)*dxR}, M: m, H: 2 * dxR, U: 1})
	}
	s.SetParticles(parts)

	_, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	out := s.Particles()
	rhoLo, rhoHi := math.Inf(1), math.Inf(-1)
	for i := range out {
		g.Expect(math.IsNaN(out[i].R[0]) || math.IsNaN(out[i].V[0])).To(gomega.BeFalse())
		rhoLo = math.Min(rhoLo, out[i].Rho)
		rhoHi = math.Max(rhoHi, out[i].Rho)
	}
	// Densities stay bracketed by the expanding fan and the compressed
	// post-shock state.
	g.Expect(rhoLo).To(gomega.BeNumerically(">", 0.05))
	g.Expect(rhoHi).To(gomega.BeNumerically("<", 3.0))
}

// Self-gravitating cube from rest: kinetic energy must grow as the
// collapse proceeds, and the peak density must stay near or above the
// initial lattice value of about 1.
func TestCollapseGainsKineticEnergy(t *testing.T) {
	g := gomega.NewWithT(t)
	var box core.Box
	box.Min, box.Max = core.Vec{-2, -2, -2}, core.Vec{2, 2, 2}

	s := buildSim(t, 3, box, "adiabatic", sph.Params{
		Visc: sph.ViscFixed, AlphaVisc: 1.0, BetaVisc: 2.0,
		SelfGravity: true, G: 1.0,
	}, Options{DtMax: 0.002, TEnd: 0.02, Hydro: true, SelfGravity: true})

	side := 8
	parts := make([]core.Particle, 0, side*side*side)
	m := 1.0 / float64(side*side*side)
	d := 1.0 / float64(side)
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				parts = append(parts, core.Particle{
					R: core.Vec{
						-0.5 + (float64(x)+0.5)*d,
						-0.5 + (float64(y)+0.5)*d,
						-0.5 + (float64(z)+0.5)*d,
					},
					M: m, H: 1.2 * d, U: 0.01,
				})
			}
		}
	}
	s.SetParticles(parts)

	res, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	// Starting from rest, gravity must convert potential into kinetic
	// energy as the sphere contracts.
	first := res.Stats[0]
	last := res.Stats[len(res.Stats)-1]
	g.Expect(last.Kinetic).To(gomega.BeNumerically(">", first.Kinetic))
	g.Expect(s.PeakDensity()).To(gomega.BeNumerically(">", 0.9))
}
