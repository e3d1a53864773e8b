package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Families) != 3 {
		t.Errorf("expected 3 default families, got %v", cfg.Families)
	}
	if cfg.Dialect != "js" {
		t.Errorf("expected dialect js, got %s", cfg.Dialect)
	}
	if !cfg.Negate {
		t.Error("accel export should be negated by default")
	}
	if cfg.SimplifyTimeout <= 0 {
		t.Error("simplify timeout should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset("ropedrum", "drum_counterweight")
	if p == nil {
		t.Fatal("expected preset, got nil")
	}
	if p.Values["r"] != 60 {
		t.Errorf("expected r 60, got %f", p.Values["r"])
	}
	if !p.FitLength {
		t.Error("drum_counterweight should refit L")
	}
	if GetPreset("ropedrum_y", "drum_counterweight") != p {
		t.Error("ropedrum_y should share the drum presets")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if p := GetPreset("ropedrum", "nonexistent"); p != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if p := GetPreset("nonexistent", "drum_counterweight"); p != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("ropedrum")
	if len(presets) != 3 {
		t.Errorf("expected 3 drum presets, got %v", presets)
	}
	if presets[0] != "drum_counterweight" {
		t.Errorf("expected sorted names, got %v", presets)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestAddPreset(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.AddPreset("colinear", "roller_on_line"); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Vectors) != 1 || cfg.Vectors[0].Family != "colinear" {
		t.Fatalf("unexpected vectors %+v", cfg.Vectors)
	}
	cfg.Vectors[0].Values["x"] = -1
	if GetPreset("colinear", "roller_on_line").Values["x"] != 6 {
		t.Error("AddPreset must copy preset values")
	}
	if err := cfg.AddPreset("colinear", "missing"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conlab.yaml")
	cfg := DefaultConfig()
	cfg.Families = []string{"ropedrum"}
	cfg.SimplifyTimeout = 750 * time.Millisecond
	if err := cfg.AddPreset("ropedrum", "drum_counterweight"); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SimplifyTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", got.SimplifyTimeout)
	}
	if len(got.Vectors) != 1 || got.Vectors[0].Values["x1"] != 436 || !got.Vectors[0].FitLength {
		t.Errorf("vector not preserved: %+v", got.Vectors)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conlab.yaml")
	if err := os.WriteFile(path, []byte("dialect: go\nsimplify_timeout: 2s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dialect != "go" || cfg.SimplifyTimeout != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Budget != DefaultBudget || cfg.Landscape.GridSize != DefaultGridSize {
		t.Error("defaults lost for unset fields")
	}
}

func TestLandscapeNoiseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conlab.yaml")
	body := "landscape:\n  noise_sigma: 0\n  seed: 7\n  covariance: [[4, 1], [1, 3]]\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.Landscape.SyntheticOptions()
	if opts.NoiseSigma != 0 || opts.Seed != 7 {
		t.Errorf("expected noise 0 and seed 7, got %g and %d", opts.NoiseSigma, opts.Seed)
	}
	if opts.Covariance == nil || opts.Covariance.At(0, 1) != 1 {
		t.Errorf("covariance not carried: %v", opts.Covariance)
	}
	if opts.Size != DefaultGridSize || opts.Optimum != DefaultOptimum {
		t.Errorf("defaults lost: %+v", opts)
	}

	if got := DefaultConfig().Landscape.SyntheticOptions().NoiseSigma; got != DefaultNoiseSigma {
		t.Errorf("expected default noise %g, got %g", DefaultNoiseSigma, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative timeout", func(c *Config) { c.SimplifyTimeout = -time.Second }},
		{"negative budget", func(c *Config) { c.Budget = -1 }},
		{"negative noise", func(c *Config) { c.Landscape.NoiseSigma = -1 }},
		{"three eigenvalues", func(c *Config) { c.Landscape.Eigenvalues = []float64{1, 2, 3} }},
		{"asymmetric covariance", func(c *Config) { c.Landscape.Covariance = [][]float64{{1, 2}, {3, 4}} }},
		{"unnamed vector", func(c *Config) { c.Vectors = []VectorConfig{{Values: map[string]float64{"x": 1}}} }},
		{"empty vector", func(c *Config) { c.Vectors = []VectorConfig{{Name: "v"}} }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
