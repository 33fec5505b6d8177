package boundary

import (
	"math"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func periodicBox() core.Box {
	b := core.Box{Min: core.Vec{0, 0, 0}, Max: core.Vec{1, 1, 1}}
	for k := 0; k < 3; k++ {
		b.Bound[k][0] = core.BoundaryPeriodic
		b.Bound[k][1] = core.BoundaryPeriodic
	}
	return b
}

func manager(ndim int, box core.Box) *Manager {
	return &Manager{
		Box:       box,
		NDim:      ndim,
		KernRange: 2.0,
		RGhost:    1.1,
		TGhost:    0.0,
		MaxGhosts: 1 << 16,
	}
}

func TestWrapIdempotent(t *testing.T) {
	m := manager(3, periodicBox())
	parts := []core.Particle{
		{R: core.Vec{-0.3, 0.5, 1.2}, R0: core.Vec{-0.3, 0.5, 1.2}, Sink: -1},
		{R: core.Vec{0.5, -1.6, 0.5}, R0: core.Vec{0.5, -1.6, 0.5}, Sink: -1},
	}
	m.Wrap(parts, len(parts))
	first := []core.Vec{parts[0].R, parts[1].R}
	for i := range parts {
		if !m.Box.Contains(parts[i].R, 3) {
			t.Fatalf("particle %d not wrapped into box: %v", i, parts[i].R)
		}
	}
	m.Wrap(parts, len(parts))
	for i := range parts {
		if parts[i].R != first[i] {
			t.Errorf("wrap not idempotent for particle %d: %v vs %v", i, parts[i].R, first[i])
		}
	}
	// Checkpoint shifted in lockstep.
	if parts[0].R0[0] != parts[0].R[0] {
		t.Errorf("checkpoint not shifted with position: %g vs %g", parts[0].R0[0], parts[0].R[0])
	}
}

func TestPeriodicGhostShift(t *testing.T) {
	m := manager(1, func() core.Box {
		b := core.Box{Min: core.Vec{0}, Max: core.Vec{1}}
		b.Bound[0][0] = core.BoundaryPeriodic
		b.Bound[0][1] = core.BoundaryPeriodic
		return b
	}())
	parts := []core.Particle{
		{R: core.Vec{0.05}, V: core.Vec{0.3}, M: 1, H: 0.05, Sink: -1},
		{R: core.Vec{0.5}, M: 1, H: 0.05, Sink: -1},
	}
	out, nTot, err := m.CreateGhosts(parts, len(parts))
	if err != nil {
		t.Fatal(err)
	}
	if nTot != 3 {
		t.Fatalf("expected 1 ghost, got %d", nTot-2)
	}
	g := out[2]
	if g.Tag.Op[0] != core.GhostPeriodicLHS {
		t.Errorf("wrong tag: %v", g.Tag.Op[0])
	}
	if math.Abs(g.R[0]-1.05) > 1e-12 {
		t.Errorf("ghost at %g, want 1.05", g.R[0])
	}
	if g.V[0] != 0.3 {
		t.Errorf("periodic ghost must keep velocity, got %g", g.V[0])
	}
	if g.Origin != 0 || g.Active {
		t.Errorf("ghost bookkeeping wrong: origin=%d active=%v", g.Origin, g.Active)
	}
}

func TestMirrorGhostReflects(t *testing.T) {
	b := core.Box{Min: core.Vec{0}, Max: core.Vec{1}}
	b.Bound[0][0] = core.BoundaryMirror
	m := manager(1, b)
	parts := []core.Particle{{R: core.Vec{0.04}, V: core.Vec{-0.5}, M: 1, H: 0.05, Sink: -1}}
	out, nTot, err := m.CreateGhosts(parts, 1)
	if err != nil {
		t.Fatal(err)
	}
	if nTot != 2 {
		t.Fatalf("expected 1 ghost, got %d", nTot-1)
	}
	if math.Abs(out[1].R[0]+0.04) > 1e-12 {
		t.Errorf("mirror ghost at %g, want -0.04", out[1].R[0])
	}
	if out[1].V[0] != 0.5 {
		t.Errorf("mirror ghost velocity %g, want negated 0.5", out[1].V[0])
	}
}

func TestCornerGhosts(t *testing.T) {
	b := core.Box{Min: core.Vec{0, 0, 0}, Max: core.Vec{1, 1, 1}}
	for k := 0; k < 2; k++ {
		b.Bound[k][0] = core.BoundaryPeriodic
		b.Bound[k][1] = core.BoundaryPeriodic
	}
	m := manager(2, b)
	parts := []core.Particle{{R: core.Vec{0.02, 0.03, 0}, M: 1, H: 0.05, Sink: -1}}
	out, nTot, err := m.CreateGhosts(parts, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Near the lower corner: x ghost, y ghost, and the xy corner ghost.
	if nTot != 4 {
		t.Fatalf("expected 3 ghosts, got %d", nTot-1)
	}
	var corner *core.Particle
	for i := 1; i < nTot; i++ {
		if out[i].Tag.Op[0] == core.GhostPeriodicLHS && out[i].Tag.Op[1] == core.GhostPeriodicLHS {
			corner = &out[i]
		}
		if out[i].Origin != 0 {
			t.Errorf("ghost %d origin %d, want 0", i, out[i].Origin)
		}
	}
	if corner == nil {
		t.Fatal("missing corner ghost")
	}
	if math.Abs(corner.R[0]-1.02) > 1e-12 || math.Abs(corner.R[1]-1.03) > 1e-12 {
		t.Errorf("corner ghost at %v", corner.R)
	}
}

func TestRefreshTracksOrigin(t *testing.T) {
	m := manager(1, func() core.Box {
		b := core.Box{Min: core.Vec{0}, Max: core.Vec{1}}
		b.Bound[0][0] = core.BoundaryPeriodic
		b.Bound[0][1] = core.BoundaryPeriodic
		return b
	}())
	parts := []core.Particle{{R: core.Vec{0.05}, M: 1, H: 0.05, U: 1.0, Sink: -1}}
	out, nTot, err := m.CreateGhosts(parts, 1)
	if err != nil {
		t.Fatal(err)
	}
	if nTot != 2 {
		t.Fatal("expected one ghost")
	}

	// Mutate the origin; refresh must propagate everything but the shift.
	out[0].U = 42.0
	out[0].Rho = 3.0
	out[0].R[0] = 0.07
	m.RefreshGhosts(out, 1, nTot)

	if out[1].U != 42.0 || out[1].Rho != 3.0 {
		t.Errorf("ghost state not refreshed: u=%g rho=%g", out[1].U, out[1].Rho)
	}
	if math.Abs(out[1].R[0]-1.07) > 1e-12 {
		t.Errorf("ghost position %g, want 1.07", out[1].R[0])
	}
	// Ghost minus shift equals origin exactly.
	if math.Abs((out[1].R[0]-m.Box.Size(0))-out[0].R[0]) > 1e-12 {
		t.Error("ghost-origin relation violated after refresh")
	}
}

func TestGhostOverflowFatal(t *testing.T) {
	m := manager(1, func() core.Box {
		b := core.Box{Min: core.Vec{0}, Max: core.Vec{1}}
		b.Bound[0][0] = core.BoundaryPeriodic
		b.Bound[0][1] = core.BoundaryPeriodic
		return b
	}())
	m.MaxGhosts = 1
	parts := []core.Particle{
		{R: core.Vec{0.01}, M: 1, H: 0.05, Sink: -1},
		{R: core.Vec{0.99}, M: 1, H: 0.05, Sink: -1},
	}
	if _, _, err := m.CreateGhosts(parts, 2); err == nil {
		t.Fatal("expected ghost overflow error")
	}
}
