// Package sph implements the grad-h SPH engine: the smoothing-length
// solver, density and correction summations, and the pairwise pressure,
// artificial viscosity, artificial conductivity and softened self-gravity
// forces.
package sph

import (
	"fmt"
	"math"
	"runtime"

	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/eos"
	"github.com/stefano-meschiari/gandalf/internal/kernel"
)

// Viscosity and conductivity modes.
const (
	ViscNone = "none"
	ViscFixed = "fixed"
	ViscTimeDep = "td"

	CondNone    = "none"
	CondWadsley = "wadsley"
	CondPrice   = "price"
)

// Params are the numerical constants of the engine.
type Params struct {
	NDim      int
	HFac      float64 // eta: h = HFac (m/rho)^(1/ndim)
	HConverge float64 // relative h tolerance
	HMin      float64 // lower h bound inside sink interiors

	Visc      string  // ViscNone, ViscFixed or ViscTimeDep
	Cond      string  // CondNone, CondWadsley or CondPrice
	AlphaVisc float64 // fixed alpha, and alpha_max in the td form
	BetaVisc  float64
	AlphaMin  float64 // td floor
	AlphaCond float64
	CAlpha    float64 // td decay constant

	SelfGravity  bool
	G            float64
	SoftenStars  bool
}

// Engine evaluates SPH sums for one worker's particle arrays.
type Engine struct {
	Kern kernel.Kernel
	Eos  eos.EOS
	Par  Params

	nthreads int
}

// New returns an engine; an invalid mode tag is a configuration error.
func New(k kernel.Kernel, e eos.EOS, par Params) (*Engine, error) {
	switch par.Visc {
	case ViscNone, ViscFixed, ViscTimeDep:
	default:
		return nil, fmt.Errorf("%w: unknown viscosity %q", core.ErrConfig, par.Visc)
	}
	switch par.Cond {
	case CondNone, CondWadsley, CondPrice:
	default:
		return nil, fmt.Errorf("%w: unknown conductivity %q", core.ErrConfig, par.Cond)
	}
	if par.HFac <= 0 || par.HConverge <= 0 {
		return nil, fmt.Errorf("%w: h_fac and h_converge must be positive", core.ErrConfig)
	}
	return &Engine{Kern: k, Eos: e, Par: par, nthreads: runtime.NumCPU()}, nil
}

// parallelFor runs fn over [0,n) in index chunks, one goroutine per chunk.
func (e *Engine) parallelFor(n int, fn func(tid, start, end int)) {
	workers := e.nthreads
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, 0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		go func(tid, s, t int) {
			fn(tid, s, t)
			done <- struct{}{}
		}(w, start, end)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
}

// powH returns h^n for the small integer exponents the sums need
// (ndim and ndim+1) without calling math.Pow in hot paths.
func powH(h float64, n int) float64 {
	switch n {
	case 1:
		return h
	case 2:
		return h * h
	case 3:
		return h * h * h
	}
	return h * h * h * h
}

// rootH returns x^(1/ndim).
func rootH(x float64, ndim int) float64 {
	switch ndim {
	case 1:
		return x
	case 2:
		return math.Sqrt(x)
	}
	return math.Cbrt(x)
}
