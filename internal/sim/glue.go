package sim

import (
	"github.com/stefano-meschiari/gandalf/internal/core"
)

// buildGhosts rebuilds the full ghost population: boundary replicas from
// the real particles, then the remote overlap ghosts from peers.
func (s *Simulator) buildGhosts() error {
	parts, nLocal, err := s.Bound.CreateGhosts(s.parts, s.nReal)
	if err != nil {
		return &core.StepError{Step: s.step, Time: s.time, Particle: -1, Err: err}
	}
	s.parts, s.nLocal = parts, nLocal

	if s.Dom != nil {
		parts, nTotal, err := s.Dom.ExchangeGhosts(s.parts, s.nLocal)
		if err != nil {
			return &core.StepError{Step: s.step, Time: s.time, Particle: -1, Err: err}
		}
		s.parts, s.nTotal = parts, nTotal
	} else {
		s.nTotal = s.nLocal
	}
	return nil
}

// refreshGhosts re-copies origin state onto every ghost, local first,
// then the remote update collective.
func (s *Simulator) refreshGhosts() {
	s.Bound.RefreshGhosts(s.parts, s.nReal, s.nLocal)
	if s.Dom != nil {
		if err := s.Dom.UpdateGhosts(s.parts, s.nLocal); err != nil {
			// A mismatched refresh is unrecoverable.
			s.Rep.Fatal(&core.StepError{Step: s.step, Time: s.time, Particle: -1, Err: err})
		}
	}
}

// solveDensities rebuilds the neighbour index and runs the h iteration
// plus property pass for the listed particles.
func (s *Simulator) solveDensities(ids []int) error {
	s.Search.Build(s.parts, s.nTotal)
	hmax0 := s.seedH()
	if err := s.Engine.UpdateDensities(ids, s.parts, s.nTotal, s.Search, s.allStars(), hmax0, s.hcap()); err != nil {
		return &core.StepError{Step: s.step, Time: s.time, Particle: -1, Err: err}
	}
	return nil
}

// seedH picks the initial candidate reach for the h iteration from the
// current population.
func (s *Simulator) seedH() float64 {
	h := 0.0
	for i := 0; i < s.nReal; i++ {
		if s.parts[i].H > h {
			h = s.parts[i].H
		}
	}
	if h <= 0 {
		h = 0.1 * s.hcap()
	}
	return h
}

// forces runs the hydrodynamic pair loop and, when enabled, self-gravity
// and the star-gas attraction for the listed particles.
func (s *Simulator) forces(ids []int) error {
	if len(ids) > 0 {
		if s.Opt.Hydro {
			lists := s.neighborLists(ids)
			s.Engine.HydroForces(ids, lists, s.parts, s.nTotal)
		}
		if s.Opt.SelfGravity {
			s.Engine.GravityForces(ids, s.parts, s.nReal, s.allStars())
		}
	}
	return nil
}

// neighborLists gathers force candidates: the reach covers both sides'
// kernels via the global maximum h.
func (s *Simulator) neighborLists(ids []int) [][]int {
	hmax := 0.0
	for i := 0; i < s.nTotal; i++ {
		if s.parts[i].H > hmax {
			hmax = s.parts[i].H
		}
	}
	reach := s.Engine.Kern.Range() * hmax * 1.01
	lists := make([][]int, len(ids))
	for w, i := range ids {
		lists[w] = s.Search.Gather(s.parts[i].R, reach, nil)
	}
	return lists
}
