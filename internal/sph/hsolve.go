package sph

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/neighbor"
)

const (
	fixedPointIters = 30
	maxHIters       = 5 * fixedPointIters
)

// densityAt sums the kernel density for particle i at smoothing length h
// over the candidate list (which includes i itself).
func (e *Engine) densityAt(i int, h float64, parts []core.Particle, cands []int) float64 {
	ndim := e.Par.NDim
	norm := e.Kern.Norm()
	invH2 := 1.0 / (h * h)
	rngSqd := e.Kern.RangeSqd()
	sum := 0.0
	for _, j := range cands {
		s2 := core.Dist2(parts[i].R, parts[j].R, ndim) * invH2
		if s2 < rngSqd {
			sum += parts[j].M * e.Kern.W0S2(s2)
		}
	}
	return sum * norm / powH(h, ndim)
}

// SolveH iterates the smoothing length of particle i to satisfy
// h = HFac*(m/rho)^(1/ndim). cands must contain every particle within
// Range()*hmax of i; if the iteration wants h beyond hmax the transient
// ErrSmallNeighbourList is returned and the caller widens the list.
func (e *Engine) SolveH(i int, parts []core.Particle, cands []int, hmax float64) error {
	p := &parts[i]
	ndim := e.Par.NDim
	hFacD := powH(e.Par.HFac, ndim)

	hLo := 0.0
	if p.Sink >= 0 && e.Par.HMin > 0 {
		hLo = e.Par.HMin
	}
	hHi := hmax

	h := p.H
	if h <= 0 || h > hmax {
		h = 0.5 * hmax
	}

	bisect := false
	for iter := 0; iter < maxHIters; iter++ {
		rho := e.densityAt(i, h, parts, cands)

		if rho <= 0 {
			// Isolated particle: grow toward hmax before giving up.
			h *= 2.0
			if h >= hmax {
				return core.ErrSmallNeighbourList
			}
			continue
		}

		if !bisect && iter >= fixedPointIters {
			bisect = true
		}

		if bisect {
			// Classify: too much mass inside the kernel means h is too small.
			if rho*powH(h, ndim) > hFacD*p.M {
				hLo = h
			} else {
				hHi = h
			}
			hNew := 0.5 * (hLo + hHi)
			if math.Abs(hNew-h) < e.Par.HConverge*h {
				h = hNew
				p.H = math.Max(hLo, e.Par.HFac*rootH(p.M/rho, ndim))
				p.Rho = e.densityAt(i, p.H, parts, cands)
				return nil
			}
			h = hNew
			continue
		}

		hNew := e.Par.HFac * rootH(p.M/rho, ndim)
		if hNew >= hmax {
			return core.ErrSmallNeighbourList
		}
		if math.Abs(hNew-h) < e.Par.HConverge*h {
			p.H = math.Max(hLo, hNew)
			p.Rho = rho
			return nil
		}
		h = hNew
	}

	return fmt.Errorf("%w: particle %d h=%g rho=%g", core.ErrHIterationDiverged, i, h, p.Rho)
}

// ComputeProperties fills the grad-h corrections, thermodynamics and the
// potential-minimum flag of particle i after its h has converged.
func (e *Engine) ComputeProperties(i int, parts []core.Particle, cands []int, stars []core.Star) {
	p := &parts[i]
	ndim := e.Par.NDim
	fd := float64(ndim)
	h := p.H
	invH2 := 1.0 / (h * h)
	rngSqd := e.Kern.RangeSqd()

	// Grad-h density correction: Omega = 1 + (h/(d rho)) Sum m dW/dh.
	omegaSum := 0.0
	levelNeib := p.Level
	potMin := true
	for _, j := range cands {
		s2 := core.Dist2(p.R, parts[j].R, ndim) * invH2
		if s2 >= rngSqd {
			continue
		}
		omegaSum += parts[j].M * e.Kern.WOmegaS2(s2)
		if parts[j].Level > levelNeib {
			levelNeib = parts[j].Level
		}
		if j != i && parts[j].Phi < p.Phi {
			potMin = false
		}
	}
	omega := 1.0 + (h/(fd*p.Rho))*omegaSum/powH(h, ndim+1)
	if omega <= 0 {
		omega = 1.0
	}
	p.InvOmega = 1.0 / omega
	p.LevelNeib = levelNeib
	p.PotMin = potMin

	// Grad-h gravity correction.
	p.Zeta = 0.0
	p.Chi = 0.0
	if e.Par.SelfGravity {
		zetaSum := 0.0
		for _, j := range cands {
			s2 := core.Dist2(p.R, parts[j].R, ndim) * invH2
			if s2 >= rngSqd {
				continue
			}
			zetaSum += parts[j].M * e.Kern.WZetaS2(s2)
		}
		p.Zeta = -(h / (fd * p.Rho)) * p.InvOmega * zetaSum * invH2

		// Stellar analogue with single-sided effective softening.
		if len(stars) > 0 {
			chiSum := 0.0
			for s := range stars {
				var invHEff float64
				if e.Par.SoftenStars {
					invHEff = 2.0 / (h + stars[s].H)
				} else {
					invHEff = 2.0 / h
				}
				s2 := core.Dist2(p.R, stars[s].R, ndim) * invHEff * invHEff
				if s2 >= rngSqd {
					continue
				}
				chiSum += stars[s].M * e.Kern.WZetaS2(s2) * invHEff * invHEff
			}
			p.Chi = -(h / (fd * p.Rho)) * p.InvOmega * chiSum
		}
	}

	// Thermodynamics through the equation of state.
	if e.Eos.FixesEnergy() {
		p.U = e.Eos.SpecificInternalEnergy(p)
	}
	p.Press = e.Eos.Pressure(p)
	p.Sound = e.Eos.SoundSpeed(p)
	p.Pfactor = p.Press * p.InvOmega / (p.Rho * p.Rho)
}

// UpdateDensities runs the h iteration and property computation for every
// listed particle, widening the candidate radius on the transient
// small-list signal. hmax0 seeds the candidate reach; hcap is the largest
// h the caller can support (box size bound).
func (e *Engine) UpdateDensities(ids []int, parts []core.Particle, n int, src neighbor.Source, stars []core.Star, hmax0, hcap float64) error {
	rng := e.Kern.Range()
	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	e.parallelFor(len(ids), func(tid, start, end int) {
		cands := make([]int, 0, 128)
		for w := start; w < end; w++ {
			i := ids[w]
			hmax := hmax0
			if h := parts[i].H * 1.1; h > hmax {
				hmax = h
			}
			for {
				cands = src.Gather(parts[i].R, rng*hmax, cands[:0])
				err := e.SolveH(i, parts, cands, hmax)
				if err == nil {
					break
				}
				if errors.Is(err, core.ErrSmallNeighbourList) {
					hmax *= 2.0
					if hmax > hcap {
						// Genuinely isolated: clamp h at the cap.
						parts[i].H = hcap
						parts[i].Rho = e.densityAt(i, hcap, parts, cands)
						if parts[i].Rho <= 0 {
							// Self-contribution only.
							parts[i].Rho = parts[i].M * e.Kern.Norm() * e.Kern.W0(0) / powH(hcap, e.Par.NDim)
						}
						break
					}
					continue
				}
				fail(err)
				return
			}
			cands = src.Gather(parts[i].R, rng*parts[i].H, cands[:0])
			e.ComputeProperties(i, parts, cands, stars)
		}
	})

	return firstErr
}
