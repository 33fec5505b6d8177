package sph

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// GravityForces evaluates softened self-gravity for the active fluid
// particles by direct summation over the nReal real particles and the
// star list. Inside the kernel the softened profile plus the grad-h
// zeta/chi correction applies; the kernel functions reduce to the exact
// inverse-square law beyond their support, so distant pairs need no
// special casing. Ghosts never contribute to gravity.
func (e *Engine) GravityForces(ids []int, parts []core.Particle, nReal int, stars []core.Star) {
	if !e.Par.SelfGravity {
		return
	}
	ndim := e.Par.NDim
	norm := e.Kern.Norm()
	rngSqd := e.Kern.RangeSqd()
	G := e.Par.G

	e.parallelFor(len(ids), func(tid, start, end int) {
		for w := start; w < end; w++ {
			i := ids[w]
			pi := &parts[i]
			hi := pi.H
			invHi := 1.0 / hi
			var ag core.Vec
			phi := 0.0

			for j := 0; j < nReal; j++ {
				if j == i {
					continue
				}
				pj := &parts[j]
				r2 := core.Dist2(pi.R, pj.R, ndim)
				if r2 <= 0 {
					continue
				}
				r := math.Sqrt(r2)
				invR := 1.0 / r
				hj := pj.H
				si := r * invHi
				sj := r / hj

				// Symmetrised softened attraction.
				g := 0.5 * (e.Kern.WGrav(si)/(hi*hi) + e.Kern.WGrav(sj)/(hj*hj))
				phi -= G * pj.M * 0.5 * (e.Kern.WPot(si)/hi + e.Kern.WPot(sj)/hj)

				// Grad-h correction, zero outside both supports.
				corr := 0.0
				if si*si < rngSqd {
					corr += (pi.Zeta + pi.Chi) * norm * e.Kern.W1(si) / powH(hi, ndim+1)
				}
				if sj*sj < rngSqd {
					corr += (pj.Zeta + pj.Chi) * norm * e.Kern.W1(sj) / powH(hj, ndim+1)
				}

				f := G * pj.M * (g + 0.5*corr)
				for k := 0; k < ndim; k++ {
					ag[k] -= f * (pi.R[k] - pj.R[k]) * invR
				}
			}

			// Star-gas attraction with single-sided effective softening.
			for s := range stars {
				st := &stars[s]
				r2 := core.Dist2(pi.R, st.R, ndim)
				if r2 <= 0 {
					continue
				}
				r := math.Sqrt(r2)
				invR := 1.0 / r
				var hEff float64
				if e.Par.SoftenStars {
					hEff = 0.5 * (hi + st.H)
				} else {
					hEff = 0.5 * hi
				}
				g := e.Kern.WGrav(r/hEff) / (hEff * hEff)
				phi -= G * st.M * e.Kern.WPot(r/hEff) / hEff
				f := G * st.M * g
				for k := 0; k < ndim; k++ {
					ag[k] -= f * (pi.R[k] - st.R[k]) * invR
				}
			}

			pi.AGrav = ag
			pi.Phi = phi
		}
	})
}
