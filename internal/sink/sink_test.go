package sink

import (
	"math"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func manager(smooth bool) *Manager {
	return &Manager{Opt: Options{
		NDim:      3,
		RhoSink:   10.0,
		RadiusFac: 2.0,
		Smooth:    smooth,
		G:         1.0,
		MassFloor: 1e-3,
	}}
}

func TestFormSinks(t *testing.T) {
	m := manager(false)
	parts := []core.Particle{
		{R: core.Vec{0, 0, 0}, V: core.Vec{1, 0, 0}, M: 2, H: 0.5, Rho: 20, DivV: -1, PotMin: true, Sink: -1},
		{R: core.Vec{5, 0, 0}, M: 1, H: 0.5, Rho: 20, DivV: -1, PotMin: false, Sink: -1},
		{R: core.Vec{9, 0, 0}, M: 1, H: 0.5, Rho: 5, DivV: -1, PotMin: true, Sink: -1},
	}
	n := m.FormSinks(parts, len(parts), 0)
	if n != 2 {
		t.Fatalf("expected 2 surviving particles, got %d", n)
	}
	if len(m.Sinks) != 1 {
		t.Fatalf("expected 1 sink, got %d", len(m.Sinks))
	}
	s := m.Sinks[0]
	if s.Star.M != 2 || s.Star.V[0] != 1 {
		t.Errorf("sink did not inherit particle state: m=%g v=%g", s.Star.M, s.Star.V[0])
	}
	if s.Radius != 1.0 {
		t.Errorf("sink radius %g, want RadiusFac*h = 1", s.Radius)
	}
}

func TestSuddenAccretionConserves(t *testing.T) {
	m := manager(false)
	m.Sinks = []Sink{{
		Star:   core.Star{R: core.Vec{0, 0, 0}, V: core.Vec{0, 0, 0}, M: 1, Binary: -1},
		Radius: 1.0,
	}}
	parts := []core.Particle{
		{R: core.Vec{0.5, 0, 0}, V: core.Vec{0, 1, 0}, M: 1, U: 0.25, Sink: -1},
		{R: core.Vec{3, 0, 0}, V: core.Vec{0, 0, 0}, M: 1, Sink: -1},
	}
	pyBefore := m.Sinks[0].Star.M*m.Sinks[0].Star.V[1] + parts[0].M*parts[0].V[1]

	n := m.Accrete(parts, len(parts), 0.1)
	if n != 1 {
		t.Fatalf("expected 1 surviving particle, got %d", n)
	}
	s := &m.Sinks[0]
	if math.Abs(s.Star.M-2.0) > 1e-12 {
		t.Errorf("sink mass %g, want 2", s.Star.M)
	}
	if math.Abs(s.Star.M*s.Star.V[1]-pyBefore) > 1e-12 {
		t.Errorf("momentum not conserved: %g vs %g", s.Star.M*s.Star.V[1], pyBefore)
	}
	if math.Abs(s.MAcc-1.0) > 1e-12 {
		t.Errorf("accreted mass %g, want 1", s.MAcc)
	}
	wantE := 0.5*1*1 + 0.25
	if math.Abs(s.EAcc-wantE) > 1e-12 {
		t.Errorf("accreted energy %g, want %g", s.EAcc, wantE)
	}
}

func TestSmoothAccretionPartial(t *testing.T) {
	m := manager(true)
	m.Sinks = []Sink{{
		Star:   core.Star{R: core.Vec{0, 0, 0}, M: 1, Binary: -1},
		Radius: 1.0,
	}}
	parts := []core.Particle{{R: core.Vec{0.5, 0, 0}, M: 1, Sink: -1}}
	// t_dyn = 1 for R=1, M=1, G=1; dt = 0.25 -> quarter of the mass.
	n := m.Accrete(parts, len(parts), 0.25)
	if n != 1 {
		t.Fatalf("particle should survive smooth accretion, n=%d", n)
	}
	if math.Abs(parts[0].M-0.75) > 1e-6 {
		t.Errorf("particle mass %g, want 0.75", parts[0].M)
	}
	if math.Abs(m.Sinks[0].Star.M-1.25) > 1e-6 {
		t.Errorf("sink mass %g, want 1.25", m.Sinks[0].Star.M)
	}
}

func TestMarkInteriors(t *testing.T) {
	m := manager(false)
	m.Sinks = []Sink{{Star: core.Star{R: core.Vec{0, 0, 0}, Binary: -1}, Radius: 1.0}}
	parts := []core.Particle{
		{R: core.Vec{0.5, 0, 0}, Sink: -1},
		{R: core.Vec{2, 0, 0}, Sink: 0},
	}
	m.MarkInteriors(parts, len(parts))
	if parts[0].Sink != 0 {
		t.Error("interior particle not marked")
	}
	if parts[1].Sink != -1 {
		t.Error("exterior particle should be cleared")
	}
}
