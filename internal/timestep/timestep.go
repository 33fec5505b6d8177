// Package timestep computes per-particle time steps and the
// power-of-two block levels the integrator steps them on.
package timestep

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Controller holds the step multipliers and the level hierarchy bounds.
type Controller struct {
	NDim         int
	CourantMult  float64
	AccelMult    float64
	EnergyMult   float64
	DtMax        float64 // the level-0 (global) step
	MaxLevels    int     // deepest allowed level
	LevelDiffMax int     // cap on the level gap between neighbours
}

// FluidDt returns the per-particle step: the minimum of the Courant,
// acceleration and energy criteria.
func (c *Controller) FluidDt(p *core.Particle) float64 {
	dt := math.Inf(1)

	// Courant: h over the fastest signal crossing it.
	denom := p.H*math.Abs(p.DivV) + p.VsigMax
	if denom > 0 {
		dt = c.CourantMult * p.H / denom
	}

	aTot := 0.0
	for k := 0; k < c.NDim; k++ {
		a := p.A[k] + p.AGrav[k]
		aTot += a * a
	}
	if aTot > 0 {
		if d := c.AccelMult * math.Sqrt(p.H/math.Sqrt(aTot)); d < dt {
			dt = d
		}
	}

	if p.DuDt != 0 && p.U > 0 {
		if d := c.EnergyMult * math.Abs(p.U/p.DuDt); d < dt {
			dt = d
		}
	}
	return dt
}

// StarDt returns the acceleration criterion for a star.
func (c *Controller) StarDt(s *core.Star) float64 {
	aTot := s.A.Norm(c.NDim)
	if aTot <= 0 {
		return math.Inf(1)
	}
	return c.AccelMult * math.Sqrt(s.H/aTot)
}

// LevelFor maps a time step onto the block hierarchy: the smallest level
// whose step DtMax/2^level does not exceed dt, clamped to [0, MaxLevels].
func (c *Controller) LevelFor(dt float64) int {
	if dt >= c.DtMax {
		return 0
	}
	level := int(math.Ceil(math.Log2(c.DtMax / dt)))
	if level > c.MaxLevels {
		level = c.MaxLevels
	}
	if level < 0 {
		level = 0
	}
	return level
}

// CapLevel promotes a particle whose neighbours step much more finely:
// the level difference may not exceed LevelDiffMax.
func (c *Controller) CapLevel(level, levelNeib int) int {
	if c.LevelDiffMax > 0 && levelNeib-level > c.LevelDiffMax {
		return levelNeib - c.LevelDiffMax
	}
	return level
}

// NStep returns the integer step count of a level in units of the
// deepest-level substep.
func (c *Controller) NStep(level int) int {
	return 1 << (c.MaxLevels - level)
}

// DtLevel returns the physical step of a level.
func (c *Controller) DtLevel(level int) float64 {
	return c.DtMax / float64(int(1)<<level)
}
