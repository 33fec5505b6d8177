package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Diagnostics measures the current state: energies, momentum, extremes.
// The energy summations run through compensated adds so late-time drift
// reflects the integrator, not the bookkeeping; momentum is a plain sum.
func (s *Simulator) Diagnostics() StepStats {
	n := s.nReal
	ke := make([]float64, 0, n)
	th := make([]float64, 0, n)
	pe := make([]float64, 0, n)
	var mom core.Vec
	maxV := 0.0

	for i := 0; i < n; i++ {
		p := &s.parts[i]
		v2 := p.V.Dot(p.V, s.Opt.NDim)
		ke = append(ke, 0.5*p.M*v2)
		th = append(th, p.M*p.U)
		if s.Opt.SelfGravity {
			pe = append(pe, 0.5*p.M*p.Phi)
		}
		for k := 0; k < s.Opt.NDim; k++ {
			mom[k] += p.M * p.V[k]
		}
		if v := math.Sqrt(v2); v > maxV {
			maxV = v
		}
	}

	st := StepStats{
		Step:     s.step,
		Time:     s.time,
		Kinetic:  floats.SumCompensated(ke),
		Thermal:  floats.SumCompensated(th),
		Momentum: mom,
		MaxVel:   maxV,
		NParts:   s.nReal,
		NGhosts:  s.nTotal - s.nReal,
	}
	if s.Opt.SelfGravity {
		st.Potential = floats.SumCompensated(pe)
	}
	if s.Sinks != nil {
		st.NSinks = len(s.Sinks.Sinks)
	}
	if s.Dom != nil {
		st.Imbalance = s.Dom.Imbalance(s.parts[:s.nReal], s.nReal)
	}
	return st
}

// TotalEnergy is the conserved sum for closures without external input.
func (st StepStats) TotalEnergy() float64 {
	return st.Kinetic + st.Thermal + st.Potential
}

// WorkSpread summarises per-step work samples: mean and standard
// deviation of the recorded imbalance history.
func WorkSpread(stats []StepStats) (mean, sigma float64) {
	xs := make([]float64, len(stats))
	for i, st := range stats {
		xs[i] = st.Imbalance
	}
	return stat.Mean(xs, nil), stat.StdDev(xs, nil)
}

// PeakDensity returns the densest particle's density.
func (s *Simulator) PeakDensity() float64 {
	peak := 0.0
	for i := 0; i < s.nReal; i++ {
		if s.parts[i].Rho > peak {
			peak = s.parts[i].Rho
		}
	}
	return peak
}
