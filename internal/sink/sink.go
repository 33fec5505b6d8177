// Package sink identifies collapsing potential minima, converts them to
// sink particles and accretes neighbouring fluid onto them with
// conservative mass, momentum and energy transfer.
package sink

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Options control formation and accretion.
type Options struct {
	NDim      int
	RhoSink   float64 // formation density threshold
	RadiusFac float64 // sink radius in units of the forming particle's h
	Smooth    bool    // smooth (fractional) vs sudden accretion
	G         float64
	MassFloor float64 // a particle is absorbed outright when one accretion step would leave it below this fraction of its current mass
}

// Sink couples a star to its accretion radius and running totals.
type Sink struct {
	Star    core.Star
	Radius  float64
	MAcc    float64 // total accreted mass
	EAcc    float64 // accreted kinetic+thermal energy
}

// Manager owns the sink population of one worker.
type Manager struct {
	Opt   Options
	Sinks []Sink
}

// candidate reports whether particle p can form a sink: a flagged
// potential minimum above the density threshold whose neighbourhood is
// converging onto it.
func (m *Manager) candidate(p *core.Particle) bool {
	return p.Tag.Real() && p.Sink < 0 && p.PotMin && p.Rho >= m.Opt.RhoSink && p.DivV < 0
}

// FormSinks converts every candidate into a new sink atomically: the star
// inherits the particle's mass and kinematics and the fluid particle is
// removed. Returns the compacted particle count.
func (m *Manager) FormSinks(parts []core.Particle, n int, t int) int {
	for i := 0; i < n; {
		if !m.candidate(&parts[i]) {
			i++
			continue
		}
		p := &parts[i]
		s := Sink{
			Star: core.Star{
				R: p.R, V: p.V, A: p.A.Add(p.AGrav),
				M: p.M, H: p.H,
				TLast: t, Binary: -1,
			},
			Radius: m.Opt.RadiusFac * p.H,
		}
		s.Star.R0, s.Star.V0, s.Star.A0 = s.Star.R, s.Star.V, s.Star.A
		m.Sinks = append(m.Sinks, s)

		// Swap-remove keeps the array dense; indices are rebuilt next step.
		n--
		parts[i] = parts[n]
	}
	return n
}

// MarkInteriors tags fluid particles sitting inside a sink radius so the
// h solver can honour its lower bound there.
func (m *Manager) MarkInteriors(parts []core.Particle, n int) {
	for i := 0; i < n; i++ {
		parts[i].Sink = -1
		for s := range m.Sinks {
			r2 := core.Dist2(parts[i].R, m.Sinks[s].Star.R, m.Opt.NDim)
			if r2 < m.Sinks[s].Radius*m.Sinks[s].Radius {
				parts[i].Sink = s
				break
			}
		}
	}
}

// Accrete transfers mass from fluid particles inside each sink radius.
// Smooth mode moves the fraction dt/t_dyn per step (t_dyn the sink
// dynamical time); sudden mode absorbs neighbours whole. Returns the
// compacted particle count.
func (m *Manager) Accrete(parts []core.Particle, n int, dt float64) int {
	for s := range m.Sinks {
		sk := &m.Sinks[s]
		for i := 0; i < n; {
			p := &parts[i]
			if !p.Tag.Real() {
				i++
				continue
			}
			r2 := core.Dist2(p.R, sk.Star.R, m.Opt.NDim)
			if r2 >= sk.Radius*sk.Radius {
				i++
				continue
			}

			f := 1.0
			if m.Opt.Smooth {
				tDyn := math.Sqrt(sk.Radius * sk.Radius * sk.Radius / (m.Opt.G * math.Max(sk.Star.M, 1e-30)))
				f = math.Min(1.0, dt/tDyn)
			}
			dm := f * p.M

			// Full absorption below the mass floor avoids dust particles.
			whole := f >= 1.0 || p.M-dm < m.Opt.MassFloor*p.M
			if whole {
				dm = p.M
			}

			mNew := sk.Star.M + dm
			for k := 0; k < m.Opt.NDim; k++ {
				sk.Star.R[k] = (sk.Star.M*sk.Star.R[k] + dm*p.R[k]) / mNew
				sk.Star.V[k] = (sk.Star.M*sk.Star.V[k] + dm*p.V[k]) / mNew
			}
			sk.Star.M = mNew
			sk.MAcc += dm
			sk.EAcc += dm * (0.5*p.V.Dot(p.V, m.Opt.NDim) + p.U)

			if whole {
				n--
				parts[i] = parts[n]
				continue
			}
			p.M -= dm
			i++
		}
	}
	return n
}

// Stars returns the star views of all sinks (used by gravity and output).
func (m *Manager) Stars() []core.Star {
	out := make([]core.Star, len(m.Sinks))
	for i := range m.Sinks {
		out[i] = m.Sinks[i].Star
	}
	return out
}
