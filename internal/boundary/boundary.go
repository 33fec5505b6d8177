// Package boundary wraps particles back into the simulation box on
// periodic axes and replicates them across periodic and mirror faces as
// ghost particles. Ghosts are generated dimension by dimension so corner
// ghosts fall out of the later passes; a refresh pass re-copies origin
// state each step without re-deriving the ghost set.
package boundary

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Manager owns the ghost bookkeeping for one worker's particle array.
type Manager struct {
	Box       core.Box
	NDim      int
	KernRange float64 // kernel support radius in units of h
	RGhost    float64 // reach safety factor
	TGhost    float64 // lifetime used to project velocities onto faces
	MaxGhosts int
}

// Wrap maps real particles back into the box on periodic axes, shifting
// the integrator checkpoint along with the position. Open and mirror axes
// are untouched (mirror faces reflect via ghosts, not by moving reals).
func (m *Manager) Wrap(parts []core.Particle, n int) {
	for k := 0; k < m.NDim; k++ {
		size := m.Box.Size(k)
		if m.Box.Bound[k][0] == core.BoundaryPeriodic {
			for i := 0; i < n; i++ {
				for parts[i].R[k] < m.Box.Min[k] {
					parts[i].R[k] += size
					parts[i].R0[k] += size
				}
			}
		}
		if m.Box.Bound[k][1] == core.BoundaryPeriodic {
			for i := 0; i < n; i++ {
				for parts[i].R[k] >= m.Box.Max[k] {
					parts[i].R[k] -= size
					parts[i].R0[k] -= size
				}
			}
		}
	}
}

// reaches reports whether particle p projects onto the lower (side 0) or
// upper (side 1) face of axis k within one ghost lifetime.
func (m *Manager) reaches(p *core.Particle, k, side int) bool {
	reach := m.RGhost * m.KernRange * p.H
	if side == 0 {
		drift := p.V[k] * m.TGhost
		if drift > 0 {
			drift = 0
		}
		return p.R[k]+drift < m.Box.Min[k]+reach
	}
	drift := p.V[k] * m.TGhost
	if drift < 0 {
		drift = 0
	}
	return p.R[k]+drift > m.Box.Max[k]-reach
}

// makeGhost copies candidate c applying op on axis k. The origin always
// points at the ultimate real particle so refresh never chases chains.
func makeGhost(parts []core.Particle, c, k int, op core.GhostOp, box *core.Box) core.Particle {
	g := parts[c]
	if !parts[c].Tag.Real() {
		g.Origin = parts[c].Origin
	} else {
		g.Origin = c
	}
	g.Tag.Op[k] = op
	g.Active = false
	applyGhostOp(&g, k, op, box)
	return g
}

func applyGhostOp(g *core.Particle, k int, op core.GhostOp, box *core.Box) {
	switch op {
	case core.GhostPeriodicLHS:
		g.R[k] += box.Size(k)
	case core.GhostPeriodicRHS:
		g.R[k] -= box.Size(k)
	case core.GhostMirrorLHS:
		g.R[k] = 2.0*box.Min[k] - g.R[k]
		g.V[k] = -g.V[k]
	case core.GhostMirrorRHS:
		g.R[k] = 2.0*box.Max[k] - g.R[k]
		g.V[k] = -g.V[k]
	}
}

// CreateGhosts rebuilds the ghost population from the n real particles.
// It returns the extended slice and the new total count. Exceeding
// MaxGhosts is fatal: the preallocated ghost budget is a hard limit.
func (m *Manager) CreateGhosts(parts []core.Particle, n int) ([]core.Particle, int, error) {
	parts = parts[:n]
	for k := 0; k < m.NDim; k++ {
		// Later axes see ghosts made by earlier ones: corners come free.
		nCand := len(parts)
		for c := 0; c < nCand; c++ {
			if m.reaches(&parts[c], k, 0) {
				switch m.Box.Bound[k][0] {
				case core.BoundaryPeriodic:
					parts = append(parts, makeGhost(parts, c, k, core.GhostPeriodicLHS, &m.Box))
				case core.BoundaryMirror:
					parts = append(parts, makeGhost(parts, c, k, core.GhostMirrorLHS, &m.Box))
				}
			}
			if m.reaches(&parts[c], k, 1) {
				switch m.Box.Bound[k][1] {
				case core.BoundaryPeriodic:
					parts = append(parts, makeGhost(parts, c, k, core.GhostPeriodicRHS, &m.Box))
				case core.BoundaryMirror:
					parts = append(parts, makeGhost(parts, c, k, core.GhostMirrorRHS, &m.Box))
				}
			}
		}
	}
	nGhost := len(parts) - n
	if m.MaxGhosts > 0 && nGhost > m.MaxGhosts {
		return parts, len(parts), fmt.Errorf("%w: %d ghosts exceed capacity %d", core.ErrGhostOverflow, nGhost, m.MaxGhosts)
	}
	return parts, len(parts), nil
}

// RefreshGhosts copies full origin state onto every ghost and reapplies
// the stored shift or reflection. Tags and origins are immutable.
func (m *Manager) RefreshGhosts(parts []core.Particle, nReal, nTotal int) {
	for g := nReal; g < nTotal; g++ {
		tag := parts[g].Tag
		if tag.Remote {
			continue // refreshed by the inter-worker exchange
		}
		origin := parts[g].Origin
		p := parts[origin]
		p.Tag = tag
		p.Origin = origin
		p.Active = false
		for k := 0; k < m.NDim; k++ {
			applyGhostOp(&p, k, tag.Op[k], &m.Box)
		}
		parts[g] = p
	}
}
