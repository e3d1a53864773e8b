package config

import (
	"fmt"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/conlab/internal/landscape"
)

const (
	DefaultDialect         = "js"
	DefaultSimplifyTimeout = 5 * time.Second
	DefaultBudget          = 200_000
	DefaultTolerance       = 1e-9
	DefaultFDTolerance     = 1e-5
	DefaultRandomVectors   = 3
	DefaultSeed            = 42
	DefaultOutputDir       = "runs"
	DefaultGridSize        = 15
	DefaultOptimum         = 2850.0
	DefaultDPI             = 300
	DefaultLevels          = 20
	DefaultNoiseSigma      = 30.0
)

type Config struct {
	Families        []string        `yaml:"families"`
	Dialect         string          `yaml:"dialect"`
	Negate          bool            `yaml:"negate"`
	SimplifyTimeout time.Duration   `yaml:"simplify_timeout"`
	Budget          int             `yaml:"budget"`
	Tolerance       float64         `yaml:"tolerance"`
	FDTolerance     float64         `yaml:"fd_tolerance"`
	RandomVectors   int             `yaml:"random_vectors"`
	Seed            int64           `yaml:"seed"`
	Parallel        int             `yaml:"parallel"`
	OutputDir       string          `yaml:"output_dir"`
	Vectors         []VectorConfig  `yaml:"vectors"`
	Landscape       LandscapeConfig `yaml:"landscape"`
}

// VectorConfig is a named numeric test vector. An empty family applies the
// vector to every family whose symbols it binds. With FitLength the rope
// length L is recomputed so that the drum residual vanishes.
type VectorConfig struct {
	Name      string             `yaml:"name"`
	Family    string             `yaml:"family,omitempty"`
	FitLength bool               `yaml:"fit_length,omitempty"`
	Values    map[string]float64 `yaml:"values"`
}

type LandscapeConfig struct {
	Input       string      `yaml:"input"`
	OutputDir   string      `yaml:"output_dir"`
	Title       string      `yaml:"title"`
	ZLabel      string      `yaml:"z_label"`
	Levels      int         `yaml:"levels"`
	DPI         int         `yaml:"dpi"`
	GridSize    int         `yaml:"grid_size"`
	Optimum     float64     `yaml:"optimum"`
	Eigenvalues []float64   `yaml:"eigenvalues"`
	Covariance  [][]float64 `yaml:"covariance,omitempty"`
	NoiseSigma  float64     `yaml:"noise_sigma"`
	Seed        int64       `yaml:"seed"`
}

// SyntheticOptions builds the demo-plot generator settings. A covariance,
// when set, takes precedence over the eigenvalues.
func (l LandscapeConfig) SyntheticOptions() landscape.SyntheticOptions {
	opts := landscape.DefaultSynthetic()
	opts.Size, opts.Optimum = l.GridSize, l.Optimum
	opts.NoiseSigma, opts.Seed = l.NoiseSigma, l.Seed
	if len(l.Eigenvalues) == 2 {
		opts.Eigenvalues = [2]float64{l.Eigenvalues[0], l.Eigenvalues[1]}
	}
	if c := l.Covariance; len(c) == 2 && len(c[0]) == 2 && len(c[1]) == 2 {
		opts.Covariance = mat.NewSymDense(2, []float64{c[0][0], c[0][1], c[1][0], c[1][1]})
	}
	return opts
}

func DefaultConfig() *Config {
	return &Config{
		Families:        []string{"colinear", "ropedrum", "ropedrum_y"},
		Dialect:         DefaultDialect,
		Negate:          true,
		SimplifyTimeout: DefaultSimplifyTimeout,
		Budget:          DefaultBudget,
		Tolerance:       DefaultTolerance,
		FDTolerance:     DefaultFDTolerance,
		RandomVectors:   DefaultRandomVectors,
		Seed:            DefaultSeed,
		OutputDir:       DefaultOutputDir,
		Landscape: LandscapeConfig{
			Input:       "landscape-data.json",
			OutputDir:   ".",
			Title:       "Objective Function Landscape",
			ZLabel:      "Range (ft)",
			Levels:      DefaultLevels,
			DPI:         DefaultDPI,
			GridSize:    DefaultGridSize,
			Optimum:     DefaultOptimum,
			Eigenvalues: []float64{450, 180},
			NoiseSigma:  DefaultNoiseSigma,
			Seed:        DefaultSeed,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	switch {
	case c.SimplifyTimeout < 0:
		return fmt.Errorf("config: simplify_timeout must not be negative")
	case c.Budget < 0:
		return fmt.Errorf("config: budget must not be negative")
	case c.RandomVectors < 0:
		return fmt.Errorf("config: random_vectors must not be negative")
	case c.Landscape.NoiseSigma < 0:
		return fmt.Errorf("config: landscape.noise_sigma must not be negative")
	case len(c.Landscape.Eigenvalues) != 0 && len(c.Landscape.Eigenvalues) != 2:
		return fmt.Errorf("config: landscape.eigenvalues needs 2 values, got %d", len(c.Landscape.Eigenvalues))
	}
	if cov := c.Landscape.Covariance; len(cov) > 0 {
		if len(cov) != 2 || len(cov[0]) != 2 || len(cov[1]) != 2 {
			return fmt.Errorf("config: landscape.covariance must be 2x2")
		}
		if cov[0][1] != cov[1][0] {
			return fmt.Errorf("config: landscape.covariance must be symmetric")
		}
	}
	for i, v := range c.Vectors {
		if v.Name == "" {
			return fmt.Errorf("config: vector %d has no name", i)
		}
		if len(v.Values) == 0 {
			return fmt.Errorf("config: vector %s has no values", v.Name)
		}
	}
	return nil
}

// AddPreset appends the named fixture of family to the configured vectors.
func (c *Config) AddPreset(family, name string) error {
	p := GetPreset(family, name)
	if p == nil {
		return fmt.Errorf("config: unknown preset %s/%s (have %v)", family, name, ListPresets(family))
	}
	values := make(map[string]float64, len(p.Values))
	for k, v := range p.Values {
		values[k] = v
	}
	c.Vectors = append(c.Vectors, VectorConfig{Name: name, Family: family, FitLength: p.FitLength, Values: values})
	return nil
}
