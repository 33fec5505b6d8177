package config

// Presets for the bundled test problems, keyed by name.
var presets = map[string]func() *Config{
	// 1-D Sod tube: isothermal, periodic, hydro only.
	"shocktube": func() *Config {
		c := Default()
		c.NDim = 1
		c.Nsph = 400
		c.IC = "shocktube"
		c.Eos = "isothermal"
		c.Temp0 = 1.0
		c.BoxMin = [3]float64{0, 0, 0}
		c.BoxMax = [3]float64{1, 0, 0}
		c.Bounds[0] = AxisBounds{"periodic", "periodic"}
		c.Avisc = "fixed"
		c.Acond = "wadsley"
		c.DtMax = 0.002
		c.TEnd = 0.2
		return c
	},

	// Static uniform cube: equilibrium must hold.
	"static_cube": func() *Config {
		c := Default()
		c.Nsph = 4096
		c.IC = "uniform_cube"
		c.Eos = "isothermal"
		c.DtMax = 0.002
		c.TEnd = 0.02
		c.Avisc = "none"
		return c
	},

	// Two equal point masses on a circular orbit, no fluid.
	"binary_orbit": func() *Config {
		c := Default()
		c.Nsph = 0
		c.IC = "binary"
		c.Hydro = false
		c.StarGravity = true
		c.G = 1.0
		c.DtMax = 0.001
		c.TEnd = 6.2832
		c.Bounds = [3]AxisBounds{{"open", "open"}, {"open", "open"}, {"open", "open"}}
		c.BoxMin = [3]float64{-2, -2, -2}
		c.BoxMax = [3]float64{2, 2, 2}
		c.MaxLevels = 0
		return c
	},

	// Boss & Bodenheimer rotating core collapse with sinks. Scaled units:
	// unit mass and radius, G=1, free-fall time ~1.1; the gas is cold
	// (thermal/gravitational ~ 0.15) and the barotropic knee sits below
	// the sink threshold so fragments heat before conversion.
	"boss_bodenheimer": func() *Config {
		c := Default()
		c.Nsph = 1600
		c.IC = "boss_bodenheimer"
		c.Eos = "barotropic"
		c.Temp0 = 0.05
		c.RhoBary = 50.0
		c.SelfGravity = true
		c.StarGravity = true
		c.G = 1.0
		c.Bounds = [3]AxisBounds{{"open", "open"}, {"open", "open"}, {"open", "open"}}
		c.BoxMin = [3]float64{-2, -2, -2}
		c.BoxMax = [3]float64{2, 2, 2}
		c.DtMax = 0.004
		c.TEnd = 1.2
		c.Sinks = SinkConfig{Enabled: true, RhoSink: 100.0, RadiusFac: 2.0, Smooth: false, MassFloor: 1e-3}
		return c
	},

	// Uniform sphere split across two workers.
	"uniform_sphere": func() *Config {
		c := Default()
		c.Nsph = 10000
		c.IC = "uniform_sphere"
		c.Eos = "isothermal"
		c.Bounds = [3]AxisBounds{{"open", "open"}, {"open", "open"}, {"open", "open"}}
		c.BoxMin = [3]float64{-1, -1, -1}
		c.BoxMax = [3]float64{1, 1, 1}
		c.Partition = PartitionConfig{Workers: 2, RebalanceEvery: 1}
		c.DtMax = 0.002
		c.TEnd = 0.01
		return c
	},
}

// Preset returns a named preset, or nil if unknown.
func Preset(name string) *Config {
	if fn, ok := presets[name]; ok {
		return fn()
	}
	return nil
}

// ListPresets names the available presets.
func ListPresets() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	return out
}
