package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := Preset("shocktube")
	if cfg == nil {
		t.Fatal("missing shocktube preset")
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.NDim != cfg.NDim || got.Nsph != cfg.Nsph || got.Eos != cfg.Eos || got.TEnd != cfg.TEnd {
		t.Errorf("round trip changed config: %+v", got)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := Preset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
	if Preset("no_such_preset") != nil {
		t.Error("unknown preset should return nil")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"bad ndim", func(c *Config) { c.NDim = 4 }},
		{"bad integrator", func(c *Config) { c.Integrator = "rk4" }},
		{"half periodic", func(c *Config) { c.Bounds[0] = AxisBounds{"periodic", "open"} }},
		{"bad boundary tag", func(c *Config) { c.Bounds[1] = AxisBounds{"reflecting", "open"} }},
		{"zero dt", func(c *Config) { c.DtMax = 0 }},
		{"2d gravity", func(c *Config) { c.NDim = 2; c.SelfGravity = true }},
		{"three workers", func(c *Config) { c.Partition.Workers = 3 }},
		{"distributed gravity", func(c *Config) { c.Partition.Workers = 2; c.SelfGravity = true }},
		{"sinks without gravity", func(c *Config) { c.Sinks.Enabled = true }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mut(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: error %v does not wrap ErrConfig", tc.name, err)
		}
	}
}

func TestBuildSimulator(t *testing.T) {
	cfg := Preset("static_cube")
	s, err := BuildSimulator(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("nil simulator")
	}
	// Unknown kernel surfaces through the factory.
	cfg.Kernel = "poly6"
	if _, err := BuildSimulator(cfg, nil, nil); err == nil {
		t.Error("expected unknown kernel error")
	}
}
