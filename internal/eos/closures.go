package eos

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Isothermal keeps every particle at the same temperature: u is fixed at
// temp0/((gamma-1) mu_bar) and P = (gamma-1) rho u.
type Isothermal struct {
	gamma float64
	muBar float64
	temp0 float64
	uFix  float64
}

func newIsothermal(par Params) *Isothermal {
	return &Isothermal{
		gamma: par.Gamma,
		muBar: par.MuBar,
		temp0: par.Temp0,
		uFix:  par.Temp0 / ((par.Gamma - 1.0) * par.MuBar),
	}
}

func (e *Isothermal) Gamma() float64    { return e.gamma }
func (e *Isothermal) FixesEnergy() bool { return true }

func (e *Isothermal) Pressure(p *core.Particle) float64 {
	return (e.gamma - 1.0) * p.Rho * e.uFix
}

func (e *Isothermal) SoundSpeed(p *core.Particle) float64 {
	return math.Sqrt((e.gamma - 1.0) * e.uFix)
}

func (e *Isothermal) SpecificInternalEnergy(p *core.Particle) float64 { return e.uFix }

func (e *Isothermal) Temperature(p *core.Particle) float64 { return e.temp0 }

func (e *Isothermal) EntropicFunction(p *core.Particle) float64 {
	return e.Pressure(p) / math.Pow(p.Rho, e.gamma)
}

// Barotropic transitions from isothermal to adiabatic behaviour around
// rho_bary: P = K rho (1 + (rho/rho_bary)^(gamma-1)).
type Barotropic struct {
	gamma   float64
	muBar   float64
	temp0   float64
	rhoBary float64
	kPoly   float64
}

func newBarotropic(par Params) *Barotropic {
	return &Barotropic{
		gamma:   par.Gamma,
		muBar:   par.MuBar,
		temp0:   par.Temp0,
		rhoBary: par.RhoBary,
		kPoly:   par.Temp0 / par.MuBar,
	}
}

func (e *Barotropic) Gamma() float64    { return e.gamma }
func (e *Barotropic) FixesEnergy() bool { return true }

func (e *Barotropic) Pressure(p *core.Particle) float64 {
	return e.kPoly * p.Rho * (1.0 + math.Pow(p.Rho/e.rhoBary, e.gamma-1.0))
}

func (e *Barotropic) SoundSpeed(p *core.Particle) float64 {
	return math.Sqrt(e.Pressure(p) / p.Rho)
}

func (e *Barotropic) SpecificInternalEnergy(p *core.Particle) float64 {
	return e.Pressure(p) / ((e.gamma - 1.0) * p.Rho)
}

func (e *Barotropic) Temperature(p *core.Particle) float64 {
	return e.temp0 * (1.0 + math.Pow(p.Rho/e.rhoBary, e.gamma-1.0))
}

func (e *Barotropic) EntropicFunction(p *core.Particle) float64 {
	return e.Pressure(p) / math.Pow(p.Rho, e.gamma)
}

// Adiabatic evolves u through the energy equation: P = (gamma-1) rho u.
type Adiabatic struct {
	gamma float64
	muBar float64
}

func newAdiabatic(par Params) *Adiabatic {
	return &Adiabatic{gamma: par.Gamma, muBar: par.MuBar}
}

func (e *Adiabatic) Gamma() float64    { return e.gamma }
func (e *Adiabatic) FixesEnergy() bool { return false }

func (e *Adiabatic) Pressure(p *core.Particle) float64 {
	return (e.gamma - 1.0) * p.Rho * p.U
}

func (e *Adiabatic) SoundSpeed(p *core.Particle) float64 {
	return math.Sqrt(e.gamma * (e.gamma - 1.0) * p.U)
}

func (e *Adiabatic) SpecificInternalEnergy(p *core.Particle) float64 { return p.U }

func (e *Adiabatic) Temperature(p *core.Particle) float64 {
	return (e.gamma - 1.0) * e.muBar * p.U
}

func (e *Adiabatic) EntropicFunction(p *core.Particle) float64 {
	return e.Pressure(p) / math.Pow(p.Rho, e.gamma)
}
