package sph

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// forceAccum is one thread's private accumulator set; partial sums are
// reduced after the loop so symmetric pair updates never race.
type forceAccum struct {
	a    []core.Vec
	dudt []float64
	divv []float64
	vsig []float64
}

func newForceAccum(n int) *forceAccum {
	return &forceAccum{
		a:    make([]core.Vec, n),
		dudt: make([]float64, n),
		divv: make([]float64, n),
		vsig: make([]float64, n),
	}
}

// HydroForces evaluates the pressure, viscosity and conductivity pair
// forces for the active particles. ids lists the active indices and
// lists[w] the candidate neighbours of ids[w]; nTotal counts real
// particles plus ghosts. Each pair is visited exactly once: from i's side
// when j > i, and also when j < i is inactive (an inactive j never loops).
func (e *Engine) HydroForces(ids []int, lists [][]int, parts []core.Particle, nTotal int) {
	ndim := e.Par.NDim
	norm := e.Kern.Norm()
	rngSqd := e.Kern.RangeSqd()

	for _, i := range ids {
		parts[i].A = core.Vec{}
		parts[i].DuDt = 0
		parts[i].DivV = 0
		parts[i].VsigMax = 0
	}

	nw := e.nthreads
	if nw > len(ids) {
		nw = len(ids)
	}
	if nw < 1 {
		return
	}
	accums := make([]*forceAccum, nw)

	e.parallelFor(len(ids), func(tid, start, end int) {
		acc := newForceAccum(nTotal)
		accums[tid] = acc
		for w := start; w < end; w++ {
			i := ids[w]
			e.pairSums(i, lists[w], parts, acc, ndim, norm, rngSqd)
		}
	})

	// Reduce private sums into the particle arrays.
	for _, acc := range accums {
		if acc == nil {
			continue
		}
		for _, i := range ids {
			for k := 0; k < ndim; k++ {
				parts[i].A[k] += acc.a[i][k]
			}
			parts[i].DuDt += acc.dudt[i]
			parts[i].DivV += acc.divv[i]
			if acc.vsig[i] > parts[i].VsigMax {
				parts[i].VsigMax = acc.vsig[i]
			}
		}
	}

	// Renormalise the divergence and apply the PdV term.
	for _, i := range ids {
		p := &parts[i]
		p.DivV /= p.Rho
		p.DuDt -= p.Pfactor * p.Rho * p.DivV
		if e.Par.Visc == ViscTimeDep {
			e.alphaDerivative(p)
		}
	}
}

func (e *Engine) pairSums(i int, cands []int, parts []core.Particle, acc *forceAccum, ndim int, norm, rngSqd float64) {
	pi := &parts[i]
	hi := pi.H
	invHi2 := 1.0 / (hi * hi)
	gradHi := norm / powH(hi, ndim+1)

	for _, j := range cands {
		if j == i {
			continue
		}
		// Owner protocol: each pair once.
		if j < i && parts[j].Active {
			continue
		}
		pj := &parts[j]
		hj := pj.H
		r2 := core.Dist2(pi.R, pj.R, ndim)
		si2 := r2 * invHi2
		sj2 := r2 / (hj * hj)
		if si2 >= rngSqd && sj2 >= rngSqd {
			continue
		}

		r := math.Sqrt(r2)
		if r <= 0 {
			continue
		}
		invR := 1.0 / r

		// Kernel gradient factors; W1 < 0 inside the support.
		wi := gradHi * e.Kern.W1(r/hi)
		wj := norm / powH(hj, ndim+1) * e.Kern.W1(r/hj)
		wMean := 0.5 * (wi + wj)

		var drHat core.Vec
		dvdr := 0.0
		for k := 0; k < ndim; k++ {
			drHat[k] = (pi.R[k] - pj.R[k]) * invR
			dvdr += (pi.V[k] - pj.V[k]) * drHat[k]
		}

		invRhoMean := 0.5 * (1.0/pi.Rho + 1.0/pj.Rho)

		// Pressure with the grad-h correction factors.
		fp := pi.Pfactor*wi + pj.Pfactor*wj

		vsig := pi.Sound + pj.Sound
		if dvdr < 0 {
			// Approaching: artificial viscosity.
			alpha := e.pairAlpha(pi, pj)
			if alpha > 0 {
				vsig = pi.Sound + pj.Sound - e.Par.BetaVisc*alpha*dvdr
				fp += alpha * vsig * (-dvdr) * invRhoMean * wMean
				heat := -0.5 * alpha * vsig * dvdr * dvdr * invRhoMean * wMean
				acc.dudt[i] += pj.M * heat
				acc.dudt[j] += pi.M * heat
			}
		}
		if vsig > acc.vsig[i] {
			acc.vsig[i] = vsig
		}
		if vsig > acc.vsig[j] {
			acc.vsig[j] = vsig
		}

		for k := 0; k < ndim; k++ {
			acc.a[i][k] -= pj.M * fp * drHat[k]
			acc.a[j][k] += pi.M * fp * drHat[k]
		}

		// Artificial conductivity deposits into du/dt only. The kernel
		// factors are negated so heat flows from the hotter particle to
		// the colder.
		if e.Par.Cond != CondNone {
			var cond float64
			switch e.Par.Cond {
			case CondWadsley:
				// |v.rhat|(u_j-u_i)(W_i'/rho_i + W_j'/rho_j): a sum of
				// per-particle ratios, not a product of means.
				cond = e.Par.AlphaCond * math.Abs(dvdr) * (pj.U - pi.U) * -(wi/pi.Rho + wj/pj.Rho)
			case CondPrice:
				// The single <1/rho> factor lives inside the signal
				// speed's square root.
				vsigU := math.Sqrt(math.Abs(pi.Press-pj.Press) * invRhoMean)
				cond = e.Par.AlphaCond * vsigU * (pj.U - pi.U) * (-wMean)
			}
			acc.dudt[i] += pj.M * cond
			acc.dudt[j] -= pi.M * cond
		}

		// Velocity divergence, gathered with each side's own kernel.
		acc.divv[i] -= pj.M * dvdr * wi
		acc.divv[j] -= pi.M * dvdr * wj
	}
}

// pairAlpha returns the viscosity coefficient for a pair.
func (e *Engine) pairAlpha(pi, pj *core.Particle) float64 {
	switch e.Par.Visc {
	case ViscFixed:
		return e.Par.AlphaVisc
	case ViscTimeDep:
		return 0.5 * (pi.Alpha + pj.Alpha)
	}
	return 0.0
}

// alphaDerivative fills the Morris & Monaghan source/decay derivative:
// dalpha/dt = (alpha_min - alpha)/tau + max(-div v, 0)(alpha_max - alpha).
func (e *Engine) alphaDerivative(p *core.Particle) {
	tau := p.H / (e.Par.CAlpha * math.Max(p.Sound, 1e-30))
	src := math.Max(-p.DivV, 0.0) * (e.Par.AlphaVisc - p.Alpha)
	p.DAlphaDt = (e.Par.AlphaMin-p.Alpha)/tau + src
}

// EvolveAlpha integrates the viscosity coefficient over dt and clamps it
// to [alpha_min, alpha_max].
func (e *Engine) EvolveAlpha(p *core.Particle, dt float64) {
	if e.Par.Visc != ViscTimeDep {
		return
	}
	p.Alpha += p.DAlphaDt * dt
	if p.Alpha < e.Par.AlphaMin {
		p.Alpha = e.Par.AlphaMin
	}
	if p.Alpha > e.Par.AlphaVisc {
		p.Alpha = e.Par.AlphaVisc
	}
}
