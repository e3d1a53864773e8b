package constraints

import (
	"math"
	"math/rand"

	"github.com/san-kum/conlab/internal/symbolic"
)

// RopeDrum models a rope from a free end p1 that runs tangent onto a drum
// centred at p2 and is wrapped up to the anchor p3 on the circumference.
//
//	C = T + r*(atan2(y3-y2, x3-x2) - (atan2(y1-y2, x1-x2) + pi/2 - asin(r/d))) - L
//
// where d = |p1-p2| and T = sqrt(d^2 - r^2) is the tangent length. The arc
// angle is theta_p3 - theta_T.
type RopeDrum struct {
	order AxisOrder
}

// NewRopeDrum builds the family; YX is the RopeDrumY storage layout.
func NewRopeDrum(order AxisOrder) *RopeDrum { return &RopeDrum{order: order} }

func (d *RopeDrum) Name() string {
	if d.order == YX {
		return "ropedrum_y"
	}
	return "ropedrum"
}

func (d *RopeDrum) Description() string {
	return "tangent length from p1 to the drum plus wrapped arc to p3 minus rope length"
}

func (d *RopeDrum) Order() AxisOrder { return d.order }

func (d *RopeDrum) Particles() []Particle {
	return []Particle{
		{Role: "p1", X: "x1", Y: "y1", VX: "vx1", VY: "vy1"},
		{Role: "p2", X: "x2", Y: "y2", VX: "vx2", VY: "vy2"},
		{Role: "p3", X: "x3", Y: "y3", VX: "vx3", VY: "vy3"},
	}
}

func (d *RopeDrum) Params() []string { return []string{"r", "L"} }

type drumTerms struct {
	dx, dy, dx3, dy3 symbolic.Expr
	d2, d32          symbolic.Expr
	r                symbolic.Expr
	tangent          symbolic.Expr
	thetaT, theta3   symbolic.Expr
}

func (d *RopeDrum) terms() drumTerms {
	var t drumTerms
	t.dx, t.dy = diff("x1", "x2"), diff("y1", "y2")
	t.dx3, t.dy3 = diff("x3", "x2"), diff("y3", "y2")
	t.d2 = symbolic.AddOf(sq(t.dx), sq(t.dy))
	t.d32 = symbolic.AddOf(sq(t.dx3), sq(t.dy3))
	t.r = sym("r")
	t.tangent = symbolic.SqrtOf(symbolic.Minus(t.d2, sq(t.r)))
	t.thetaT = symbolic.AddOf(
		symbolic.Atan2Of(t.dy, t.dx),
		symbolic.MulOf(symbolic.F(1, 2), symbolic.Pi),
		symbolic.NegOf(symbolic.AsinOf(symbolic.MulOf(t.r, powf(t.d2, -1, 2)))),
	)
	t.theta3 = symbolic.Atan2Of(t.dy3, t.dx3)
	return t
}

func (d *RopeDrum) Residual() symbolic.Expr {
	t := d.terms()
	arc := symbolic.MulOf(t.r, symbolic.Minus(t.theta3, t.thetaT))
	return symbolic.AddOf(t.tangent, arc, symbolic.NegOf(sym("L")))
}

// Tangent is the straight segment part T of the residual.
func (d *RopeDrum) Tangent() symbolic.Expr { return d.terms().tangent }

// References holds the hand-derived gradient, the full acceleration and the
// tangent-part acceleration (wedge^2 - r^2|v|^2)/T^3, all over relative
// coordinates and velocities.
func (d *RopeDrum) References() []Reference {
	t := d.terms()
	inv2 := symbolic.PowOf(t.d2, symbolic.N(-1))
	inv32 := symbolic.PowOf(t.d32, symbolic.N(-1))
	r := t.r

	gx1 := symbolic.MulOf(symbolic.AddOf(symbolic.MulOf(t.dx, t.tangent), symbolic.MulOf(r, t.dy)), inv2)
	gy1 := symbolic.MulOf(symbolic.Minus(symbolic.MulOf(t.dy, t.tangent), symbolic.MulOf(r, t.dx)), inv2)
	gx3 := symbolic.NegOf(symbolic.MulOf(r, t.dy3, inv32))
	gy3 := symbolic.MulOf(r, t.dx3, inv32)
	gx2 := symbolic.NegOf(symbolic.AddOf(gx1, gx3))
	gy2 := symbolic.NegOf(symbolic.AddOf(gy1, gy3))

	vx, vy := diff("vx1", "vx2"), diff("vy1", "vy2")
	wx, wy := diff("vx3", "vx2"), diff("vy3", "vy2")
	dv := symbolic.AddOf(symbolic.MulOf(t.dx, vx), symbolic.MulOf(t.dy, vy))
	v2 := symbolic.AddOf(sq(vx), sq(vy))
	wedge := symbolic.Minus(symbolic.MulOf(t.dy, vx), symbolic.MulOf(t.dx, vy))

	tangentAccel := symbolic.MulOf(
		symbolic.Minus(sq(wedge), symbolic.MulOf(sq(r), v2)),
		pow(t.tangent, -3),
	)

	// second derivatives of the two polar angles and of asin(r/d)
	cross1 := symbolic.Minus(symbolic.MulOf(t.dx, vy), symbolic.MulOf(t.dy, vx))
	theta1pp := symbolic.MulOf(symbolic.N(-2), cross1, dv, pow(t.d2, -2))
	cross3 := symbolic.Minus(symbolic.MulOf(t.dx3, wy), symbolic.MulOf(t.dy3, wx))
	dw := symbolic.AddOf(symbolic.MulOf(t.dx3, wx), symbolic.MulOf(t.dy3, wy))
	theta3pp := symbolic.MulOf(symbolic.N(-2), cross3, dw, pow(t.d32, -2))

	u := symbolic.MulOf(r, powf(t.d2, -1, 2))
	up := symbolic.NegOf(symbolic.MulOf(r, dv, powf(t.d2, -3, 2)))
	upp := symbolic.NegOf(symbolic.MulOf(r, symbolic.Minus(
		symbolic.MulOf(v2, powf(t.d2, -3, 2)),
		symbolic.MulOf(symbolic.N(3), sq(dv), powf(t.d2, -5, 2)),
	)))
	oneMinusU2 := symbolic.Minus(symbolic.N(1), sq(u))
	asinpp := symbolic.AddOf(
		symbolic.MulOf(upp, powf(oneMinusU2, -1, 2)),
		symbolic.MulOf(u, sq(up), powf(oneMinusU2, -3, 2)),
	)
	accel := symbolic.AddOf(tangentAccel, symbolic.MulOf(r, symbolic.AddOf(theta3pp, symbolic.NegOf(theta1pp), asinpp)))

	return []Reference{
		{Name: "dC/dx1", Target: "x1", Expr: gx1},
		{Name: "dC/dy1", Target: "y1", Expr: gy1},
		{Name: "dC/dx2", Target: "x2", Expr: gx2},
		{Name: "dC/dy2", Target: "y2", Expr: gy2},
		{Name: "dC/dx3", Target: "x3", Expr: gx3},
		{Name: "dC/dy3", Target: "y3", Expr: gy3},
		{Name: "accel", Target: AccelTarget, Expr: accel},
		{Name: "tangent accel", Target: AccelTarget, Expr: tangentAccel, Of: t.tangent},
	}
}

func (d *RopeDrum) Check(v Vector) error {
	dist := math.Hypot(v["x1"]-v["x2"], v["y1"]-v["y2"])
	if dist <= v["r"] {
		return &symbolic.DomainError{
			Guard:  symbolic.GuardDegenerate,
			Expr:   "free end inside drum (|p1-p2| <= r)",
			Arg:    dist,
			Values: pick(v, "x1", "y1", "x2", "y2", "r"),
		}
	}
	if v["x3"] == v["x2"] && v["y3"] == v["y2"] {
		return &symbolic.DomainError{
			Guard:  symbolic.GuardDegenerate,
			Expr:   "anchor at drum centre (p3 == p2)",
			Values: pick(v, "x2", "y2", "x3", "y3"),
		}
	}
	arc, err := d.ArcAngle(v, false)
	if err != nil {
		return err
	}
	if arc < -math.Pi || arc > math.Pi {
		return &symbolic.DomainError{
			Guard:  symbolic.GuardDegenerate,
			Expr:   "arc angle crosses the atan2 branch at +-pi (theta_p3 - theta_T outside [-pi, pi])",
			Arg:    arc,
			Values: pick(v, "x1", "y1", "x2", "y2", "x3", "y3", "r"),
		}
	}
	return nil
}

// Sample draws a vector on the constraint surface. Draws whose arc angle
// crosses the atan2 branch are rejected.
func (d *RopeDrum) Sample(rng *rand.Rand) Vector {
	for {
		v := d.sample(rng)
		if d.Check(v) == nil {
			return v
		}
	}
}

func (d *RopeDrum) sample(rng *rand.Rand) Vector {
	r := uniform(rng, 20, 80)
	cx, cy := uniform(rng, -300, 300), uniform(rng, -300, 300)
	a1 := uniform(rng, -math.Pi, math.Pi)
	dist := r * uniform(rng, 1.3, 5)
	a3 := uniform(rng, -math.Pi, math.Pi)
	v := Vector{
		"r":  r,
		"x2": cx, "y2": cy,
		"x1": cx + dist*math.Cos(a1), "y1": cy + dist*math.Sin(a1),
		"x3": cx + r*math.Cos(a3), "y3": cy + r*math.Sin(a3),
	}
	for _, p := range d.Particles() {
		v[p.VX] = uniform(rng, -10, 10)
		v[p.VY] = uniform(rng, -10, 10)
	}
	tl, _ := d.TangentLength(v)
	arc, _ := d.ArcAngle(v, false)
	v["L"] = tl + r*arc
	return v
}

// TangentLength evaluates sqrt(|p1-p2|^2 - r^2). A free end inside the drum
// yields a sqrt domain error rather than NaN.
func (d *RopeDrum) TangentLength(v Vector) (float64, error) {
	return d.Tangent().Eval(v)
}

// ArcAngle evaluates theta_p3 - theta_T, optionally wrapped into [-pi, pi].
func (d *RopeDrum) ArcAngle(v Vector, wrap bool) (float64, error) {
	t := d.terms()
	a, err := symbolic.Minus(t.theta3, t.thetaT).Eval(v)
	if err != nil {
		return 0, err
	}
	if wrap {
		a = WrapAngle(a)
	}
	return a, nil
}

// FitLength returns the rope length L that zeroes the residual at v. L in v
// is ignored. Vectors rejected by Check, including an arc angle across the
// atan2 branch, return the domain error.
func (d *RopeDrum) FitLength(v Vector) (float64, error) {
	if err := d.Check(v); err != nil {
		return 0, err
	}
	tl, err := d.TangentLength(v)
	if err != nil {
		return 0, err
	}
	arc, err := d.ArcAngle(v, false)
	if err != nil {
		return 0, err
	}
	return tl + v["r"]*arc, nil
}

// WrapAngle maps a into [-pi, pi].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// ExportName is the solver-side name, as in computeEffectRopeDrum.
func (d *RopeDrum) ExportName() string { return "RopeDrum" }

// ParamField maps a parameter symbol to its field on the solver object.
func (d *RopeDrum) ParamField(name string) string {
	switch name {
	case "r":
		return "radius"
	case "L":
		return "length"
	}
	return name
}
