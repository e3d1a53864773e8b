// Package landscape loads, synthesises and renders objective landscapes
// sampled on a square grid spanned by two principal covariance directions.
package landscape

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
)

var (
	// ErrInputMissing indicates the landscape data file does not exist.
	ErrInputMissing = errors.New("landscape: input file missing")

	// ErrInvalidData indicates a landscape file with inconsistent contents.
	ErrInvalidData = errors.New("landscape: invalid data")
)

// MissingInputError carries the remediation message for an absent data file.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("Error: %s not found. Please run the optimizer first.", e.Path)
}

func (e *MissingInputError) Unwrap() error { return ErrInputMissing }

// Data is the landscape file written by the optimizer. T1, T2 and Objective
// are flattened row-major samples of an N x N grid; the grid coordinates are
// multiplied by Scale1 and Scale2 to give distances along the principal
// directions.
type Data struct {
	Eigenvalues []float64 `json:"eigenvalues"`
	T1          []float64 `json:"t1_grid"`
	T2          []float64 `json:"t2_grid"`
	Objective   []float64 `json:"objectiveValues"`
	Scale1      float64   `json:"scale1"`
	Scale2      float64   `json:"scale2"`
	MinObj      float64   `json:"minObj"`
	MaxObj      float64   `json:"maxObj"`
}

// DefaultFile is the name the optimizer writes to.
const DefaultFile = "landscape-data.json"

// Load reads and validates a landscape file. A stored minObj/maxObj that
// disagrees with the objective values is logged at debug level.
func Load(path string) (*Data, error) {
	return load(path, slog.Default())
}

func load(path string, log *slog.Logger) (*Data, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingInputError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if lo, hi := d.objectiveRange(); d.RangeDrift() > 1e-9*math.Max(1, math.Max(math.Abs(lo), math.Abs(hi))) {
		log.Debug("stored objective range differs from the data",
			"file", path, "min_obj", d.MinObj, "max_obj", d.MaxObj, "data_min", lo, "data_max", hi)
	}
	return &d, nil
}

func (d *Data) objectiveRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, z := range d.Objective {
		lo, hi = math.Min(lo, z), math.Max(hi, z)
	}
	return lo, hi
}

// RangeDrift is the largest gap between the stored minObj/maxObj and the
// extremes of the objective values.
func (d *Data) RangeDrift() float64 {
	if len(d.Objective) == 0 {
		return 0
	}
	lo, hi := d.objectiveRange()
	return math.Max(math.Abs(d.MinObj-lo), math.Abs(d.MaxObj-hi))
}

// Save writes d as indented JSON.
func (d *Data) Save(path string) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Validate checks array lengths, the square sample count and finiteness.
func (d *Data) Validate() error {
	n := len(d.Objective)
	switch {
	case len(d.Eigenvalues) != 2:
		return fmt.Errorf("%w: want 2 eigenvalues, got %d", ErrInvalidData, len(d.Eigenvalues))
	case n == 0:
		return fmt.Errorf("%w: no objective values", ErrInvalidData)
	case len(d.T1) != n || len(d.T2) != n:
		return fmt.Errorf("%w: t1_grid (%d), t2_grid (%d) and objectiveValues (%d) differ in length",
			ErrInvalidData, len(d.T1), len(d.T2), n)
	}
	if side(n) < 0 {
		return fmt.Errorf("%w: %d samples is not a square grid", ErrInvalidData, n)
	}
	for i, z := range d.Objective {
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return fmt.Errorf("%w: objective value %d is %v", ErrInvalidData, i, z)
		}
	}
	if d.Scale1 <= 0 || d.Scale2 <= 0 {
		return fmt.Errorf("%w: scales must be positive (%g, %g)", ErrInvalidData, d.Scale1, d.Scale2)
	}
	return nil
}

func side(n int) int {
	s := int(math.Round(math.Sqrt(float64(n))))
	if s*s != n {
		return -1
	}
	return s
}

// Grid returns the samples as a scaled grid.
func (d *Data) Grid() (*Grid, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	n := side(len(d.Objective))
	g := &Grid{
		n:      n,
		xs:     make([]float64, n),
		ys:     make([]float64, n),
		z:      d.Objective,
		Eigen:  [2]float64{d.Eigenvalues[0], d.Eigenvalues[1]},
		Scale1: d.Scale1,
		Scale2: d.Scale2,
	}
	// t1 varies along the fast index for meshgrid-style files and along the
	// slow index otherwise.
	g.xFast = n == 1 || d.T1[1] != d.T1[0]
	for i := 0; i < n; i++ {
		if g.xFast {
			g.xs[i] = d.T1[i] * d.Scale1
			g.ys[i] = d.T2[i*n] * d.Scale2
		} else {
			g.xs[i] = d.T1[i*n] * d.Scale1
			g.ys[i] = d.T2[i] * d.Scale2
		}
	}
	for i := 1; i < n; i++ {
		if g.xs[i] <= g.xs[i-1] || g.ys[i] <= g.ys[i-1] {
			return nil, fmt.Errorf("%w: grid axes must be strictly increasing", ErrInvalidData)
		}
	}
	return g, nil
}

// Grid is an N x N landscape over scaled principal coordinates. It
// implements plotter.GridXYZ with columns along direction 1 and rows along
// direction 2.
type Grid struct {
	n      int
	xs, ys []float64
	z      []float64
	xFast  bool

	Eigen          [2]float64
	Scale1, Scale2 float64
}

func (g *Grid) Dims() (c, r int) { return g.n, g.n }
func (g *Grid) X(c int) float64  { return g.xs[c] }
func (g *Grid) Y(r int) float64  { return g.ys[r] }

func (g *Grid) Z(c, r int) float64 {
	if g.xFast {
		return g.z[r*g.n+c]
	}
	return g.z[c*g.n+r]
}

// Size is the number of samples along each axis.
func (g *Grid) Size() int { return g.n }

// Center returns the column and row of the grid centre, where the optimum sits.
func (g *Grid) Center() (c, r int) { return g.n / 2, g.n / 2 }

// Stats summarises the objective values.
type Stats struct {
	Points int
	Min    float64
	Max    float64
	Mean   float64
	// Optimum is the value at the grid centre.
	Optimum float64
}

func (g *Grid) Stats() Stats {
	s := Stats{Points: len(g.z), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, z := range g.z {
		s.Min = math.Min(s.Min, z)
		s.Max = math.Max(s.Max, z)
		sum += z
	}
	s.Mean = sum / float64(len(g.z))
	s.Optimum = g.Z(g.Center())
	return s
}

// CrossSections returns the objective along each principal direction
// through the grid centre.
func (g *Grid) CrossSections() (dir1, dir2 []float64) {
	cc, cr := g.Center()
	dir1 = make([]float64, g.n)
	dir2 = make([]float64, g.n)
	for i := 0; i < g.n; i++ {
		dir1[i] = g.Z(i, cr)
		dir2[i] = g.Z(cc, i)
	}
	return dir1, dir2
}
