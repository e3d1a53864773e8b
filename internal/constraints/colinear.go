package constraints

import (
	"math"
	"math/rand"

	"github.com/san-kum/conlab/internal/symbolic"
)

// Colinear keeps a slide particle on the line from base through reference.
// C is the signed perpendicular offset of slide from that line.
type Colinear struct {
	order AxisOrder
}

func NewColinear(order AxisOrder) *Colinear { return &Colinear{order: order} }

func (c *Colinear) Name() string {
	if c.order == YX {
		return "colinear_y"
	}
	return "colinear"
}

func (c *Colinear) Description() string {
	return "signed distance of slide from the line through base toward reference"
}

func (c *Colinear) Order() AxisOrder { return c.order }

func (c *Colinear) Particles() []Particle {
	return []Particle{
		{Role: "slide", X: "x", Y: "y", VX: "h", VY: "v"},
		{Role: "reference", X: "xref", Y: "yref", VX: "href", VY: "vref"},
		{Role: "base", X: "xbase", Y: "ybase", VX: "hbase", VY: "vbase"},
	}
}

func (c *Colinear) Params() []string { return nil }

// relative coordinates of slide and reference with respect to base
func (c *Colinear) rel() (x, y, xr, yr symbolic.Expr) {
	return diff("x", "xbase"), diff("y", "ybase"), diff("xref", "xbase"), diff("yref", "ybase")
}

func (c *Colinear) Residual() symbolic.Expr {
	x, y, xr, yr := c.rel()
	cross := symbolic.Minus(symbolic.MulOf(xr, y), symbolic.MulOf(yr, x))
	return symbolic.MulOf(cross, powf(symbolic.AddOf(sq(xr), sq(yr)), -1, 2))
}

// References are the solver's computeEffectColinear and
// computeAccelerationColinear formulas written over relative coordinates.
func (c *Colinear) References() []Reference {
	x, y, xr, yr := c.rel()
	h, v := diff("h", "hbase"), diff("v", "vbase")
	hr, vr := diff("href", "hbase"), diff("vref", "vbase")

	n2 := symbolic.AddOf(sq(xr), sq(yr))
	inv := powf(n2, -1, 2)
	inv3 := powf(n2, -3, 2)

	eX := symbolic.NegOf(symbolic.MulOf(yr, inv))
	eY := symbolic.MulOf(xr, inv)
	eXref := symbolic.MulOf(symbolic.AddOf(symbolic.MulOf(x, xr, yr), symbolic.MulOf(y, sq(yr))), inv3)
	eYref := symbolic.NegOf(symbolic.MulOf(symbolic.AddOf(symbolic.MulOf(x, sq(xr)), symbolic.MulOf(xr, y, yr)), inv3))
	eXbase := symbolic.NegOf(symbolic.AddOf(eX, eXref))
	eYbase := symbolic.NegOf(symbolic.AddOf(eY, eYref))

	xh, yh := symbolic.MulOf(xr, inv), symbolic.MulOf(yr, inv)
	bracket := symbolic.Minus(
		symbolic.MulOf(
			symbolic.AddOf(
				symbolic.MulOf(symbolic.Minus(symbolic.MulOf(symbolic.N(2), hr, x), symbolic.MulOf(vr, y)), sq(xh)),
				symbolic.MulOf(symbolic.N(3), symbolic.AddOf(symbolic.MulOf(vr, x), symbolic.MulOf(hr, y)), xh, yh),
				symbolic.MulOf(symbolic.Minus(symbolic.MulOf(symbolic.N(2), vr, y), symbolic.MulOf(hr, x)), sq(yh)),
			),
			symbolic.PowOf(n2, symbolic.N(-1)),
		),
		symbolic.MulOf(symbolic.N(2), symbolic.AddOf(symbolic.MulOf(h, xh), symbolic.MulOf(v, yh)), inv),
	)
	accel := symbolic.MulOf(symbolic.Minus(symbolic.MulOf(vr, xh), symbolic.MulOf(hr, yh)), bracket)

	return []Reference{
		{Name: "eX", Target: "x", Expr: eX},
		{Name: "eY", Target: "y", Expr: eY},
		{Name: "eXref", Target: "xref", Expr: eXref},
		{Name: "eYref", Target: "yref", Expr: eYref},
		{Name: "eXbase", Target: "xbase", Expr: eXbase},
		{Name: "eYbase", Target: "ybase", Expr: eYbase},
		{Name: "accel", Target: AccelTarget, Expr: accel},
	}
}

// minBaseSeparation is the smallest |reference - base| treated as a line.
const minBaseSeparation = 1e-9

func (c *Colinear) Check(v Vector) error {
	dx, dy := v["xref"]-v["xbase"], v["yref"]-v["ybase"]
	if math.Hypot(dx, dy) <= minBaseSeparation {
		return &symbolic.DomainError{
			Guard:  symbolic.GuardDegenerate,
			Expr:   "reference coincides with base",
			Arg:    math.Hypot(dx, dy),
			Values: pick(v, "xbase", "ybase", "xref", "yref"),
		}
	}
	return nil
}

func (c *Colinear) Sample(rng *rand.Rand) Vector {
	v := Vector{}
	for {
		for _, p := range c.Particles() {
			v[p.X] = uniform(rng, -200, 200)
			v[p.Y] = uniform(rng, -200, 200)
			v[p.VX] = uniform(rng, -10, 10)
			v[p.VY] = uniform(rng, -10, 10)
		}
		if math.Hypot(v["xref"]-v["xbase"], v["yref"]-v["ybase"]) > 10 {
			return v
		}
	}
}

// Offset is the numeric residual: the cross product of (reference - base)
// and (slide - base) divided by |reference - base|.
func (c *Colinear) Offset(v Vector) (float64, error) {
	if err := c.Check(v); err != nil {
		return 0, err
	}
	xr, yr := v["xref"]-v["xbase"], v["yref"]-v["ybase"]
	x, y := v["x"]-v["xbase"], v["y"]-v["ybase"]
	return (xr*y - yr*x) / math.Hypot(xr, yr), nil
}

func pick(v Vector, names ...string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		if val, ok := v[n]; ok {
			out[n] = val
		}
	}
	return out
}

// ExportName is the solver-side name, as in computeEffectColinear.
func (c *Colinear) ExportName() string { return "Colinear" }

func (c *Colinear) ParamField(name string) string { return name }
