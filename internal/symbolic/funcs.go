package symbolic

import "math"

// ============================================================
// Func: unary elementary functions
// ============================================================

const (
	fnSin  = "sin"
	fnCos  = "cos"
	fnAsin = "asin"
	fnLn   = "ln"
)

type Func struct {
	name string
	arg  Expr
	key  string
}

func newFunc(name string, arg Expr) *Func {
	f := &Func{name: name, arg: arg}
	f.key = plainString(f)
	return f
}

func SinOf(arg Expr) Expr {
	if IsZero(arg) {
		return zero
	}
	return newFunc(fnSin, arg)
}

func CosOf(arg Expr) Expr {
	if IsZero(arg) {
		return one
	}
	return newFunc(fnCos, arg)
}

func AsinOf(arg Expr) Expr {
	if IsZero(arg) {
		return zero
	}
	return newFunc(fnAsin, arg)
}

func LnOf(arg Expr) Expr {
	if n, ok := arg.(*Num); ok && n.IsOne() {
		return zero
	}
	return newFunc(fnLn, arg)
}

func (f *Func) Name() string       { return f.name }
func (f *Func) Arg() Expr          { return f.arg }
func (f *Func) String() string     { return f.key }
func (f *Func) freeSyms() []string { return f.arg.freeSyms() }

func (f *Func) Diff(name string) Expr {
	if !DependsOn(f.arg, name) {
		return zero
	}
	du := f.arg.Diff(name)
	switch f.name {
	case fnSin:
		return MulOf(CosOf(f.arg), du)
	case fnCos:
		return MulOf(negOne, SinOf(f.arg), du)
	case fnAsin:
		// d asin(u) = du / sqrt(1 - u^2)
		return MulOf(du, PowOf(Minus(one, PowOf(f.arg, two)), F(-1, 2)))
	case fnLn:
		return MulOf(du, PowOf(f.arg, negOne))
	}
	panic("symbolic: unknown function " + f.name)
}

func (f *Func) Sub(name string, value Expr) Expr {
	if !DependsOn(f.arg, name) {
		return f
	}
	return rebuildFunc(f.name, f.arg.Sub(name, value))
}

func rebuildFunc(name string, arg Expr) Expr {
	switch name {
	case fnSin:
		return SinOf(arg)
	case fnCos:
		return CosOf(arg)
	case fnAsin:
		return AsinOf(arg)
	case fnLn:
		return LnOf(arg)
	}
	panic("symbolic: unknown function " + name)
}

func (f *Func) Eval(env Env) (float64, error) {
	u, err := f.arg.Eval(env)
	if err != nil {
		return 0, err
	}
	var v float64
	switch f.name {
	case fnSin:
		v = math.Sin(u)
	case fnCos:
		v = math.Cos(u)
	case fnAsin:
		if u < -1 || u > 1 {
			return 0, domainErr(GuardAsin, f.arg, u, env)
		}
		v = math.Asin(u)
	case fnLn:
		if u <= 0 {
			return 0, domainErr(GuardLn, f.arg, u, env)
		}
		v = math.Log(u)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domainErr(GuardNonFinite, f, v, env)
	}
	return v, nil
}

// ============================================================
// Atan2
// ============================================================

// Atan2 is the quadrant-aware angle of the point (x, y).
type Atan2 struct {
	y, x Expr
	key  string
	syms []string
}

func Atan2Of(y, x Expr) Expr {
	if IsZero(y) {
		if n, ok := x.(*Num); ok && n.Sign() > 0 {
			return zero
		}
	}
	a := &Atan2{y: y, x: x, syms: mergeSyms(y, x)}
	a.key = plainString(a)
	return a
}

func (a *Atan2) Y() Expr            { return a.y }
func (a *Atan2) X() Expr            { return a.x }
func (a *Atan2) String() string     { return a.key }
func (a *Atan2) freeSyms() []string { return a.syms }

func (a *Atan2) Diff(name string) Expr {
	if !DependsOn(a, name) {
		return zero
	}
	// (x dy - y dx) / (x^2 + y^2)
	num := Minus(MulOf(a.x, a.y.Diff(name)), MulOf(a.y, a.x.Diff(name)))
	den := AddOf(PowOf(a.x, two), PowOf(a.y, two))
	return QuoOf(num, den)
}

func (a *Atan2) Sub(name string, value Expr) Expr {
	if !DependsOn(a, name) {
		return a
	}
	return Atan2Of(a.y.Sub(name, value), a.x.Sub(name, value))
}

func (a *Atan2) Eval(env Env) (float64, error) {
	y, err := a.y.Eval(env)
	if err != nil {
		return 0, err
	}
	x, err := a.x.Eval(env)
	if err != nil {
		return 0, err
	}
	if x == 0 && y == 0 {
		return 0, domainErr(GuardAtan2, a, 0, env)
	}
	return math.Atan2(y, x), nil
}
