// Package constraints defines the constraint families the derivation engine
// works on. A family supplies its residual C as a symbolic expression over
// particle coordinates and parameters, the closed-form solver formulas it is
// expected to agree with, and numeric guards for degenerate configurations.
package constraints

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/san-kum/conlab/internal/symbolic"
)

// Vector binds every symbol of a family to a numeric value.
type Vector = symbolic.Env

// AccelTarget marks a reference formula for the acceleration term.
const AccelTarget = "accel"

// AxisOrder is the storage order of a particle's two components.
type AxisOrder int

const (
	XY AxisOrder = iota
	YX
)

func (a AxisOrder) String() string {
	if a == YX {
		return "yx"
	}
	return "xy"
}

func ParseAxisOrder(s string) (AxisOrder, error) {
	switch strings.ToLower(s) {
	case "", "xy":
		return XY, nil
	case "yx", "y":
		return YX, nil
	}
	return XY, fmt.Errorf("unknown axis order %q", s)
}

// Particle names the position and velocity symbols of one particle.
type Particle struct {
	Role   string
	X, Y   string
	VX, VY string
}

// Coords returns the position symbols in storage order.
func (p Particle) Coords(order AxisOrder) [2]string {
	if order == YX {
		return [2]string{p.Y, p.X}
	}
	return [2]string{p.X, p.Y}
}

// Velocities returns the velocity symbols in storage order.
func (p Particle) Velocities(order AxisOrder) [2]string {
	if order == YX {
		return [2]string{p.VY, p.VX}
	}
	return [2]string{p.VX, p.VY}
}

// Reference is a hand-derived closed form that the engine must reproduce.
// Target is a coordinate symbol for a gradient entry or AccelTarget. Of, when
// set, restricts the comparison to that part of the residual.
type Reference struct {
	Name   string
	Target string
	Expr   symbolic.Expr
	Of     symbolic.Expr
}

// Family is one constraint kind under a fixed axis order.
type Family interface {
	Name() string
	Description() string
	Order() AxisOrder
	Particles() []Particle
	Params() []string
	Residual() symbolic.Expr
	References() []Reference
	// Check rejects vectors at which the residual is not differentiable.
	Check(v Vector) error
	// Sample draws a random non-degenerate vector.
	Sample(rng *rand.Rand) Vector
}

// Coordinates lists the position symbols of f in gradient-row order.
func Coordinates(f Family) []string {
	var out []string
	for _, p := range f.Particles() {
		c := p.Coords(f.Order())
		out = append(out, c[0], c[1])
	}
	return out
}

// Motion maps every position symbol of f to its velocity symbol.
func Motion(f Family) map[string]string {
	m := make(map[string]string)
	for _, p := range f.Particles() {
		m[p.X] = p.VX
		m[p.Y] = p.VY
	}
	return m
}

// Symbols lists every symbol a complete vector for f must bind, sorted.
func Symbols(f Family) []string {
	var out []string
	for _, p := range f.Particles() {
		out = append(out, p.X, p.Y, p.VX, p.VY)
	}
	out = append(out, f.Params()...)
	sort.Strings(out)
	return out
}

// Missing returns the symbols of f that v does not bind.
func Missing(f Family, v Vector) []string {
	var out []string
	for _, s := range Symbols(f) {
		if _, ok := v[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// New returns the family registered under name.
func New(name string) (Family, error) {
	switch strings.ToLower(name) {
	case "colinear", "roller":
		return NewColinear(XY), nil
	case "colinear_y":
		return NewColinear(YX), nil
	case "ropedrum", "rope_drum":
		return NewRopeDrum(XY), nil
	case "ropedrum_y", "ropedrumy":
		return NewRopeDrum(YX), nil
	}
	return nil, fmt.Errorf("unknown constraint family %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names lists the registered family names.
func Names() []string {
	return []string{"colinear", "colinear_y", "ropedrum", "ropedrum_y"}
}

func sym(name string) symbolic.Expr { return symbolic.S(name) }

func diff(a, b string) symbolic.Expr { return symbolic.Minus(sym(a), sym(b)) }

func sq(e symbolic.Expr) symbolic.Expr { return symbolic.PowOf(e, symbolic.N(2)) }

func pow(e symbolic.Expr, n int64) symbolic.Expr { return symbolic.PowOf(e, symbolic.N(n)) }

func powf(e symbolic.Expr, p, q int64) symbolic.Expr { return symbolic.PowOf(e, symbolic.F(p, q)) }

func uniform(rng *rand.Rand, lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
