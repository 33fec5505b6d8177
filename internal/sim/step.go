package sim

import (
	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/nbody"
)

// MacroStep advances the whole system by one global step DtMax using the
// block hierarchy: particles at deeper levels complete several sub-steps
// inside one macro step, all synchronising at its end.
func (s *Simulator) MacroStep() error {
	// 1. Wrap strays back into the box.
	s.Bound.Wrap(s.parts, s.nReal)

	// 2. Load balance when due.
	if s.Dom != nil && s.Opt.RebalanceEvery > 0 && s.step%s.Opt.RebalanceEvery == 0 {
		parts, n, err := s.Dom.Rebalance(s.parts[:s.nReal], s.nReal)
		if err != nil {
			return &core.StepError{Step: s.step, Time: s.time, Particle: -1, Err: err}
		}
		s.parts, s.nReal = parts, n
	}

	// 3. Ghost build: boundary replicas, then the inter-worker overlap.
	if err := s.buildGhosts(); err != nil {
		return err
	}

	// 4-5. Neighbour lists and density solve for everyone (macro start
	// synchronises all levels).
	allReal := s.realIDs()
	if err := s.solveDensities(allReal); err != nil {
		return err
	}
	s.refreshGhosts()

	// 6. Forces on every particle, then assign levels.
	if err := s.forces(allReal); err != nil {
		return err
	}
	s.assignLevels(allReal)

	s.curMaxLevel = 0
	for _, i := range allReal {
		if s.parts[i].Level > s.curMaxLevel {
			s.curMaxLevel = s.parts[i].Level
		}
	}
	if s.Dom != nil {
		// Workers must agree on the sub-step schedule or the ghost
		// refresh collectives fall out of step.
		s.curMaxLevel = s.Dom.GlobalMax(s.curMaxLevel)
	}
	nSub := s.Steps.NStep(0) // substeps per macro step at full depth
	dtSub := s.Opt.DtMax / float64(nSub)
	// Idle sub-steps between the deepest occupied level's boundaries are
	// skipped wholesale.
	stride := s.Steps.NStep(s.curMaxLevel)

	// Stars need accelerations before their first checkpoint.
	if s.Opt.StarGravity && s.step == 0 {
		s.starForces()
	}

	// Checkpoint everyone at the synchronised start.
	for _, i := range allReal {
		s.checkpointFluid(i, 0)
	}
	for i := range s.stars {
		nbody.Checkpoint(&s.stars[i], 0)
	}
	for i := range s.sinkStars() {
		nbody.Checkpoint(s.sinkStars()[i], 0)
	}

	// 7. Sub-step loop.
	for sub := stride; sub <= nSub; sub += stride {
		// Drift every particle to the sub-step time.
		for i := 0; i < s.nReal; i++ {
			dt := float64(sub-s.parts[i].TLast) * dtSub
			s.advanceFluid(i, dt)
		}
		if s.Opt.StarGravity {
			for i := range s.stars {
				nbody.Advance(&s.stars[i], float64(sub-s.stars[i].TLast)*dtSub, s.Opt.NDim)
			}
			for _, st := range s.sinkStars() {
				nbody.Advance(st, float64(sub-st.TLast)*dtSub, s.Opt.NDim)
			}
		}

		// Particles finishing their block at this time become active.
		active := active(s.parts, s.nReal, sub)
		for i := 0; i < s.nReal; i++ {
			s.parts[i].Active = false
		}
		for _, i := range active {
			s.parts[i].Active = true
		}
		// The refresh and density collectives run on every worker even
		// with an empty active set: skipping them on one rank would
		// desynchronise the exchange.
		s.refreshGhosts()
		if err := s.solveDensities(active); err != nil {
			return err
		}
		s.refreshGhosts()
		if err := s.forces(active); err != nil {
			return err
		}
		if s.Opt.StarGravity {
			s.starForces()
		}

		// End-of-block correction and re-checkpoint.
		for _, i := range active {
			dt := float64(sub-s.parts[i].TLast) * dtSub
			s.correctFluid(i, dt)
			s.checkpointFluid(i, sub)
		}
		if s.Opt.StarGravity {
			for i := range s.stars {
				st := &s.stars[i]
				nbody.Correct(st, float64(sub-st.TLast)*dtSub, s.Opt.NDim)
				nbody.Checkpoint(st, sub)
			}
			for _, st := range s.sinkStars() {
				nbody.Correct(st, float64(sub-st.TLast)*dtSub, s.Opt.NDim)
				nbody.Checkpoint(st, sub)
			}
		}

		// Levels may deepen immediately; they relax only when the new
		// block boundary lines up with the hierarchy.
		s.reassignLevels(active, sub)
	}

	// 8. Sink formation and accretion at the synchronised end.
	if s.Sinks != nil {
		nBefore := s.nReal
		s.nReal = s.Sinks.FormSinks(s.parts[:s.nReal], s.nReal, 0)
		s.nReal = s.Sinks.Accrete(s.parts[:s.nReal], s.nReal, s.Opt.DtMax)
		s.Sinks.MarkInteriors(s.parts[:s.nReal], s.nReal)
		if s.nReal != nBefore {
			s.Log.Info("sinks", "formed_or_accreted", nBefore-s.nReal, "nsinks", len(s.Sinks.Sinks))
			s.nLocal, s.nTotal = s.nReal, s.nReal
		}
	}

	s.step++
	s.time += s.Opt.DtMax
	return nil
}

// active lists real particles whose block ends at sub-step time sub.
func active(parts []core.Particle, n, sub int) []int {
	var out []int
	for i := 0; i < n; i++ {
		if sub-parts[i].TLast == parts[i].NStep {
			out = append(out, i)
		}
	}
	return out
}

// starForces evaluates gravity over persistent stars and sink stars as
// one population, so the two groups attract each other, then splits the
// results back into their owners.
func (s *Simulator) starForces() {
	sinks := s.sinkStars()
	if len(sinks) == 0 {
		s.NBody.Forces(s.stars, s.parts, s.nReal)
		return
	}
	combined := make([]core.Star, 0, len(s.stars)+len(sinks))
	combined = append(combined, s.stars...)
	for _, st := range sinks {
		combined = append(combined, *st)
	}
	s.NBody.Forces(combined, s.parts, s.nReal)
	copy(s.stars, combined[:len(s.stars)])
	for i, st := range sinks {
		*st = combined[len(s.stars)+i]
	}
}

func (s *Simulator) sinkStars() []*core.Star {
	if s.Sinks == nil {
		return nil
	}
	out := make([]*core.Star, len(s.Sinks.Sinks))
	for i := range s.Sinks.Sinks {
		out[i] = &s.Sinks.Sinks[i].Star
	}
	return out
}

func (s *Simulator) realIDs() []int {
	ids := make([]int, s.nReal)
	for i := range ids {
		ids[i] = i
		s.parts[i].Active = true
	}
	return ids
}

// checkpointFluid saves the start-of-block state of particle i.
func (s *Simulator) checkpointFluid(i, t int) {
	p := &s.parts[i]
	p.R0 = p.R
	p.V0 = p.V
	for k := 0; k < s.Opt.NDim; k++ {
		p.A0[k] = p.A[k] + p.AGrav[k]
	}
	p.U0 = p.U
	p.DuDt0 = p.DuDt
	p.TLast = t
}

// advanceFluid drifts and provisionally kicks particle i a time dt past
// its checkpoint.
func (s *Simulator) advanceFluid(i int, dt float64) {
	p := &s.parts[i]
	for k := 0; k < s.Opt.NDim; k++ {
		p.R[k] = p.R0[k] + p.V0[k]*dt + 0.5*p.A0[k]*dt*dt
		p.V[k] = p.V0[k] + p.A0[k]*dt
	}
	if !s.Engine.Eos.FixesEnergy() {
		p.U = p.U0 + p.DuDt0*dt
		if p.U < 0 {
			p.U = 0.1 * p.U0
		}
	}
}

// correctFluid applies the end-of-block velocity and energy corrections
// once the new derivatives are known.
func (s *Simulator) correctFluid(i int, dt float64) {
	p := &s.parts[i]
	for k := 0; k < s.Opt.NDim; k++ {
		aNew := p.A[k] + p.AGrav[k]
		p.V[k] = p.V0[k] + 0.5*(p.A0[k]+aNew)*dt
	}
	if !s.Engine.Eos.FixesEnergy() {
		p.U = p.U0 + 0.5*(p.DuDt0+p.DuDt)*dt
		if p.U < 0 {
			p.U = 0.1 * p.U0
		}
	}
	s.Engine.EvolveAlpha(p, dt)
}

// assignLevels computes fresh per-particle levels from the step criteria.
func (s *Simulator) assignLevels(ids []int) {
	for _, i := range ids {
		p := &s.parts[i]
		level := s.Steps.LevelFor(s.Steps.FluidDt(p))
		level = s.Steps.CapLevel(level, p.LevelNeib)
		p.Level = level
		p.NStep = s.Steps.NStep(level)
	}
}

// reassignLevels updates levels of particles that just completed a block.
// Deepening applies at once (bounded by the current macro depth so the
// sub-step stride stays valid); relaxing waits for an aligned boundary.
func (s *Simulator) reassignLevels(ids []int, sub int) {
	for _, i := range ids {
		p := &s.parts[i]
		level := s.Steps.LevelFor(s.Steps.FluidDt(p))
		level = s.Steps.CapLevel(level, p.LevelNeib)
		if level > s.curMaxLevel {
			level = s.curMaxLevel
		}
		if level < p.Level {
			// Only relax when the coarser block boundary lines up.
			if sub%s.Steps.NStep(level) != 0 {
				level = p.Level
			}
		}
		p.Level = level
		p.NStep = s.Steps.NStep(level)
		// Never step past the macro boundary.
		if sub+p.NStep > s.Steps.NStep(0) {
			p.NStep = s.Steps.NStep(0) - sub
			if p.NStep < 1 {
				p.NStep = 1
			}
		}
	}
}
