// Package config defines the YAML parameter set the engine consumes,
// named presets for the bundled test problems, and validation of tags
// and boundary combinations at load time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Defaults shared by every preset.
const (
	DefaultHFac      = 1.2
	DefaultHConverge = 1e-3
	DefaultGamma     = 5.0 / 3.0
	DefaultMuBar     = 1.0
	DefaultCourant   = 0.15
	DefaultAccel     = 0.3
	DefaultEnergy    = 0.3
)

// AxisBounds names the two face tags of one axis.
type AxisBounds struct {
	LHS string `yaml:"lhs"`
	RHS string `yaml:"rhs"`
}

// SinkConfig switches and tunes sink particles.
type SinkConfig struct {
	Enabled   bool    `yaml:"enabled"`
	RhoSink   float64 `yaml:"rho_sink"`
	RadiusFac float64 `yaml:"radius_fac"`
	Smooth    bool    `yaml:"smooth"`
	MassFloor float64 `yaml:"mass_floor"`
}

// PartitionConfig tunes the distributed layer.
type PartitionConfig struct {
	Workers        int `yaml:"workers"`
	RebalanceEvery int `yaml:"rebalance_every"`
	MaxParticles   int `yaml:"max_particles"`
}

// Config is the full parameter set of a run.
type Config struct {
	NDim       int    `yaml:"ndim"`
	Nsph       int    `yaml:"nsph"`
	IC         string `yaml:"ic"`
	Eos        string `yaml:"eos"`
	Kernel     string `yaml:"kernel"`
	Integrator string `yaml:"integrator"`

	Gamma   float64 `yaml:"gamma"`
	MuBar   float64 `yaml:"mu_bar"`
	Temp0   float64 `yaml:"temp0"`
	RhoBary float64 `yaml:"rho_bary"`

	HFac      float64 `yaml:"h_fac"`
	HConverge float64 `yaml:"h_converge"`

	Avisc     string  `yaml:"avisc"`
	Acond     string  `yaml:"acond"`
	AlphaVisc float64 `yaml:"alpha_visc"`
	BetaVisc  float64 `yaml:"beta_visc"`
	AlphaMin  float64 `yaml:"alpha_min"`
	AlphaCond float64 `yaml:"alpha_cond"`
	CAlpha    float64 `yaml:"c_alpha"`

	Bounds [3]AxisBounds `yaml:"bounds"`
	BoxMin [3]float64    `yaml:"box_min"`
	BoxMax [3]float64    `yaml:"box_max"`

	DtMax        float64 `yaml:"dt_max"`
	TEnd         float64 `yaml:"t_end"`
	CourantMult  float64 `yaml:"courant_mult"`
	AccelMult    float64 `yaml:"accel_mult"`
	EnergyMult   float64 `yaml:"energy_mult"`
	MaxLevels    int     `yaml:"max_levels"`
	LevelDiffMax int     `yaml:"level_diff_max"`

	Hydro       bool    `yaml:"hydro"`
	SelfGravity bool    `yaml:"self_gravity"`
	StarGravity bool    `yaml:"star_gravity"`
	SoftenStars bool    `yaml:"soften_stars"`
	G           float64 `yaml:"grav_const"`

	GhostFac  float64 `yaml:"ghost_fac"`
	MaxGhosts int     `yaml:"max_ghosts"`

	Sinks     SinkConfig      `yaml:"sinks"`
	Partition PartitionConfig `yaml:"partition"`

	Seed int64 `yaml:"seed"`
}

// Default returns a runnable baseline configuration.
func Default() *Config {
	return &Config{
		NDim:         3,
		Nsph:         1000,
		IC:           "uniform_cube",
		Eos:          "adiabatic",
		Kernel:       "m4",
		Integrator:   "lfdkd",
		Gamma:        DefaultGamma,
		MuBar:        DefaultMuBar,
		Temp0:        1.0,
		HFac:         DefaultHFac,
		HConverge:    DefaultHConverge,
		Avisc:        "fixed",
		Acond:        "none",
		AlphaVisc:    1.0,
		BetaVisc:     2.0,
		AlphaMin:     0.1,
		AlphaCond:    1.0,
		CAlpha:       0.1,
		BoxMin:       [3]float64{0, 0, 0},
		BoxMax:       [3]float64{1, 1, 1},
		Bounds:       [3]AxisBounds{{"periodic", "periodic"}, {"periodic", "periodic"}, {"periodic", "periodic"}},
		DtMax:        0.005,
		TEnd:         0.1,
		CourantMult:  DefaultCourant,
		AccelMult:    DefaultAccel,
		EnergyMult:   DefaultEnergy,
		MaxLevels:    4,
		LevelDiffMax: 2,
		Hydro:        true,
		G:            1.0,
		GhostFac:     1.1,
		MaxGhosts:    1 << 18,
		Partition:    PartitionConfig{Workers: 1, RebalanceEvery: 4},
		Seed:         42,
	}
}

// Load reads a YAML config over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Box assembles the simulation box with its boundary tags.
func (c *Config) Box() (core.Box, error) {
	var b core.Box
	for k := 0; k < 3; k++ {
		b.Min[k] = c.BoxMin[k]
		b.Max[k] = c.BoxMax[k]
	}
	for k := 0; k < c.NDim; k++ {
		lhs, ok := core.ParseBoundary(c.Bounds[k].LHS)
		if !ok {
			return b, fmt.Errorf("%w: unknown boundary %q", core.ErrConfig, c.Bounds[k].LHS)
		}
		rhs, ok := core.ParseBoundary(c.Bounds[k].RHS)
		if !ok {
			return b, fmt.Errorf("%w: unknown boundary %q", core.ErrConfig, c.Bounds[k].RHS)
		}
		// Periodic wrap needs both faces; a half-periodic axis cannot
		// conserve anything.
		if (lhs == core.BoundaryPeriodic) != (rhs == core.BoundaryPeriodic) {
			return b, fmt.Errorf("%w: axis %d periodic on one face only", core.ErrConfig, k)
		}
		if b.Max[k] <= b.Min[k] && (lhs != core.BoundaryOpen || rhs != core.BoundaryOpen) {
			return b, fmt.Errorf("%w: axis %d box extent not positive", core.ErrConfig, k)
		}
		b.Bound[k][0] = lhs
		b.Bound[k][1] = rhs
	}
	return b, nil
}

// Validate rejects unknown tags and inconsistent combinations. Kernel and
// EOS tags are checked by their factories at build time; this covers the
// orchestration-level constraints.
func (c *Config) Validate() error {
	if c.NDim < 1 || c.NDim > 3 {
		return fmt.Errorf("%w: ndim %d", core.ErrConfig, c.NDim)
	}
	if c.Integrator != "lfdkd" {
		return fmt.Errorf("%w: unknown integrator %q", core.ErrConfig, c.Integrator)
	}
	if _, err := c.Box(); err != nil {
		return err
	}
	if c.DtMax <= 0 || c.TEnd <= 0 {
		return fmt.Errorf("%w: dt_max and t_end must be positive", core.ErrConfig)
	}
	if c.SelfGravity && c.NDim != 3 {
		return fmt.Errorf("%w: self-gravity requires ndim=3", core.ErrConfig)
	}
	w := c.Partition.Workers
	if w < 1 || w&(w-1) != 0 {
		return fmt.Errorf("%w: workers %d not a power of two", core.ErrConfig, w)
	}
	if w > 1 && (c.SelfGravity || c.StarGravity) {
		return fmt.Errorf("%w: gravity is direct-sum and single-worker", core.ErrConfig)
	}
	if c.Sinks.Enabled && !c.SelfGravity {
		return fmt.Errorf("%w: sinks require self-gravity", core.ErrConfig)
	}
	if c.MaxLevels < 0 || c.MaxLevels > 16 {
		return fmt.Errorf("%w: max_levels %d out of range", core.ErrConfig, c.MaxLevels)
	}
	return nil
}
