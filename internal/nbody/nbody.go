// Package nbody integrates star, system and sink particles: direct
// softened star-star and star-gas gravity plus the drift-kick-drift
// leapfrog with per-block checkpoints.
package nbody

import (
	"math"
	"runtime"
	"sync"

	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/kernel"
)

// Integrator evaluates direct N-body forces for the star population.
type Integrator struct {
	Kern        kernel.Kernel
	NDim        int
	G           float64
	SoftenStars bool
}

// Forces fills A and Phi for every star from star-star and star-gas
// attraction. The star-gas effective softening mirrors the gas-side
// convention so the pair force stays antisymmetric.
func (nb *Integrator) Forces(stars []core.Star, parts []core.Particle, nGas int) {
	n := len(stars)
	if n == 0 {
		return
	}
	ndim := nb.NDim
	G := nb.G

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				si := &stars[i]
				var a core.Vec
				phi := 0.0

				for j := 0; j < n; j++ {
					if j == i {
						continue
					}
					sj := &stars[j]
					r2 := core.Dist2(si.R, sj.R, ndim)
					if r2 <= 0 {
						continue
					}
					r := math.Sqrt(r2)
					invR := 1.0 / r
					var g float64
					if nb.SoftenStars {
						hEff := 0.5 * (si.H + sj.H)
						g = nb.Kern.WGrav(r/hEff) / (hEff * hEff)
						phi -= G * sj.M * nb.Kern.WPot(r/hEff) / hEff
					} else {
						g = 1.0 / r2
						phi -= G * sj.M * invR
					}
					f := G * sj.M * g
					for k := 0; k < ndim; k++ {
						a[k] -= f * (si.R[k] - sj.R[k]) * invR
					}
				}

				for j := 0; j < nGas; j++ {
					pj := &parts[j]
					r2 := core.Dist2(si.R, pj.R, ndim)
					if r2 <= 0 {
						continue
					}
					r := math.Sqrt(r2)
					invR := 1.0 / r
					var hEff float64
					if nb.SoftenStars {
						hEff = 0.5 * (si.H + pj.H)
					} else {
						hEff = 0.5 * pj.H
					}
					g := nb.Kern.WGrav(r/hEff) / (hEff * hEff)
					phi -= G * pj.M * nb.Kern.WPot(r/hEff) / hEff
					f := G * pj.M * g
					for k := 0; k < ndim; k++ {
						a[k] -= f * (si.R[k] - pj.R[k]) * invR
					}
				}

				si.A = a
				si.Phi = phi
			}
		}(w*chunk, min(n, (w+1)*chunk))
	}
	wg.Wait()
}

// Checkpoint saves the start-of-block state of s at integer time t.
func Checkpoint(s *core.Star, t int) {
	s.R0 = s.R
	s.V0 = s.V
	s.A0 = s.A
	s.TLast = t
}

// Advance drifts and provisionally kicks s a time dt past its checkpoint:
// r = r0 + v0 dt + a0 dt^2/2, v = v0 + a0 dt.
func Advance(s *core.Star, dt float64, ndim int) {
	for k := 0; k < ndim; k++ {
		s.R[k] = s.R0[k] + s.V0[k]*dt + 0.5*s.A0[k]*dt*dt
		s.V[k] = s.V0[k] + s.A0[k]*dt
	}
}

// Correct applies the end-of-step velocity correction once the new
// acceleration is known: v = v0 + (a0 + a) dt/2.
func Correct(s *core.Star, dt float64, ndim int) {
	for k := 0; k < ndim; k++ {
		s.V[k] = s.V0[k] + 0.5*(s.A0[k]+s.A[k])*dt
	}
}

// Energy returns the total kinetic plus potential energy of the stars.
func (nb *Integrator) Energy(stars []core.Star) float64 {
	ke := 0.0
	pe := 0.0
	for i := range stars {
		ke += 0.5 * stars[i].M * stars[i].V.Dot(stars[i].V, nb.NDim)
		pe += 0.5 * stars[i].M * stars[i].Phi
	}
	return ke + pe
}

// Momentum returns the total linear momentum of the stars.
func (nb *Integrator) Momentum(stars []core.Star) core.Vec {
	var p core.Vec
	for i := range stars {
		for k := 0; k < nb.NDim; k++ {
			p[k] += stars[i].M * stars[i].V[k]
		}
	}
	return p
}
