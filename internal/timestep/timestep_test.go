package timestep

import (
	"math"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func controller() *Controller {
	return &Controller{
		NDim:         3,
		CourantMult:  0.2,
		AccelMult:    0.3,
		EnergyMult:   0.4,
		DtMax:        1.0,
		MaxLevels:    8,
		LevelDiffMax: 2,
	}
}

func TestFluidDtCriteria(t *testing.T) {
	c := controller()
	p := &core.Particle{H: 0.1, VsigMax: 2.0, Sink: -1}
	want := 0.2 * 0.1 / 2.0
	if dt := c.FluidDt(p); math.Abs(dt-want) > 1e-12 {
		t.Errorf("courant dt = %g, want %g", dt, want)
	}

	// A huge acceleration must shrink the step below the Courant value.
	p.A = core.Vec{1e6, 0, 0}
	if dt := c.FluidDt(p); dt >= want {
		t.Errorf("acceleration criterion ignored: dt=%g", dt)
	}

	// A violent energy change must dominate everything.
	p.A = core.Vec{}
	p.U = 1.0
	p.DuDt = -1e9
	if dt := c.FluidDt(p); dt > 1e-8 {
		t.Errorf("energy criterion ignored: dt=%g", dt)
	}
}

func TestLevelMapping(t *testing.T) {
	c := controller()
	cases := []struct {
		dt    float64
		level int
	}{
		{2.0, 0},
		{1.0, 0},
		{0.5, 1},
		{0.3, 2},
		{0.06, 5},
		{1e-9, 8}, // clamped at MaxLevels
	}
	for _, tc := range cases {
		if got := c.LevelFor(tc.dt); got != tc.level {
			t.Errorf("LevelFor(%g) = %d, want %d", tc.dt, got, tc.level)
		}
	}
	// A level's physical step must satisfy its own mapping.
	for level := 0; level <= c.MaxLevels; level++ {
		if got := c.LevelFor(c.DtLevel(level)); got != level {
			t.Errorf("round trip level %d -> %d", level, got)
		}
	}
}

func TestCapLevelPromotes(t *testing.T) {
	c := controller()
	if got := c.CapLevel(1, 6); got != 4 {
		t.Errorf("CapLevel(1,6) = %d, want 4", got)
	}
	if got := c.CapLevel(5, 6); got != 5 {
		t.Errorf("CapLevel(5,6) = %d, want unchanged 5", got)
	}
}

func TestNStepPowers(t *testing.T) {
	c := controller()
	if c.NStep(c.MaxLevels) != 1 {
		t.Error("deepest level must step every substep")
	}
	if c.NStep(0) != 1<<c.MaxLevels {
		t.Error("level 0 must span the whole block")
	}
}
