// Package eos implements the equation-of-state closures queried by the
// SPH engine after each density update: isothermal, barotropic and
// adiabatic. Temperatures are in units where k_B/m_H = 1.
package eos

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// EOS answers the five scalar queries of the SPH engine.
type EOS interface {
	Pressure(p *core.Particle) float64
	SoundSpeed(p *core.Particle) float64
	// SpecificInternalEnergy returns u for closures that determine it from
	// the density; for the adiabatic closure it returns the evolved value.
	SpecificInternalEnergy(p *core.Particle) float64
	Temperature(p *core.Particle) float64
	// EntropicFunction returns A = P / rho^gamma.
	EntropicFunction(p *core.Particle) float64
	Gamma() float64
	// FixesEnergy reports whether the closure overwrites u each step.
	FixesEnergy() bool
}

// Params carries the thermodynamic constants shared by the closures.
type Params struct {
	Gamma   float64 // ratio of specific heats
	MuBar   float64 // mean molecular weight
	Temp0   float64 // isothermal / barotropic base temperature
	RhoBary float64 // barotropic transition density
}

// New builds the closure named by tag.
func New(tag string, par Params) (EOS, error) {
	if par.Gamma <= 1.0 {
		return nil, fmt.Errorf("eos: gamma must exceed 1, got %g", par.Gamma)
	}
	if par.MuBar <= 0.0 {
		return nil, fmt.Errorf("eos: mu_bar must be positive, got %g", par.MuBar)
	}
	switch tag {
	case "isothermal":
		return newIsothermal(par), nil
	case "barotropic":
		if par.RhoBary <= 0.0 {
			return nil, fmt.Errorf("eos: rho_bary must be positive, got %g", par.RhoBary)
		}
		return newBarotropic(par), nil
	case "adiabatic", "energy_eqn":
		return newAdiabatic(par), nil
	}
	return nil, fmt.Errorf("unknown eos: %s", tag)
}
