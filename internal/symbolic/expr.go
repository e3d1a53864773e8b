package symbolic

import (
	"math"
	"math/big"
	"sort"
	"strconv"
)

// Expr is an immutable symbolic expression.
type Expr interface {
	// String is the plain-dialect rendering; it doubles as the canonical key.
	String() string
	Diff(name string) Expr
	Sub(name string, value Expr) Expr
	Eval(env Env) (float64, error)
	freeSyms() []string
}

// Env binds symbol names to values for evaluation.
type Env map[string]float64

// Clone returns a copy of the environment.
func (e Env) Clone() Env {
	c := make(Env, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// ============================================================
// Num: exact rational constant
// ============================================================

type Num struct{ val *big.Rat }

var (
	zero   = N(0)
	one    = N(1)
	negOne = N(-1)
	two    = N(2)
	half   = F(1, 2)
)

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }

func F(p, q int64) *Num {
	if q == 0 {
		panic("symbolic: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NFloat converts a finite float64 exactly.
func NFloat(f float64) *Num {
	r := new(big.Rat)
	if r.SetFloat64(f) == nil {
		panic("symbolic: non-finite constant")
	}
	return &Num{val: r}
}

func ratNum(r *big.Rat) *Num { return &Num{val: r} }

func (n *Num) Diff(string) Expr                { return zero }
func (n *Num) Sub(string, Expr) Expr           { return n }
func (n *Num) Eval(Env) (float64, error)       { return n.Float64(), nil }
func (n *Num) freeSyms() []string              { return nil }
func (n *Num) Float64() float64                { f, _ := n.val.Float64(); return f }
func (n *Num) Rat() *big.Rat                   { return new(big.Rat).Set(n.val) }
func (n *Num) Sign() int                       { return n.val.Sign() }
func (n *Num) IsZero() bool                    { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool                     { return n.val.IsInt() && n.val.Num().IsInt64() && n.val.Num().Int64() == 1 }
func (n *Num) IsInt() bool                     { return n.val.IsInt() }
func (n *Num) smallDenom() bool                { return n.val.Denom().BitLen() <= 20 }
func (n *Num) String() string                  { return n.plain() }

func (n *Num) plain() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	if n.smallDenom() {
		return n.val.RatString()
	}
	return strconv.FormatFloat(n.Float64(), 'g', -1, 64)
}

// ============================================================
// Sym: named real scalar
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym { return &Sym{name: name} }

func (s *Sym) Name() string       { return s.name }
func (s *Sym) String() string     { return s.name }
func (s *Sym) freeSyms() []string { return []string{s.name} }

func (s *Sym) Diff(name string) Expr {
	if s.name == name {
		return one
	}
	return zero
}

func (s *Sym) Sub(name string, value Expr) Expr {
	if s.name == name {
		return value
	}
	return s
}

func (s *Sym) Eval(env Env) (float64, error) {
	v, ok := env[s.name]
	if !ok {
		return 0, &unboundError{name: s.name}
	}
	return v, nil
}

type unboundError struct{ name string }

func (e *unboundError) Error() string { return ErrUnboundSymbol.Error() + ": " + e.name }
func (e *unboundError) Unwrap() error { return ErrUnboundSymbol }

// ============================================================
// Pi
// ============================================================

type piConst struct{}

// Pi is the circle constant.
var Pi Expr = piConst{}

func (piConst) String() string            { return "pi" }
func (piConst) Diff(string) Expr          { return zero }
func (p piConst) Sub(string, Expr) Expr   { return p }
func (piConst) Eval(Env) (float64, error) { return math.Pi, nil }
func (piConst) freeSyms() []string        { return nil }

// ============================================================
// Helpers
// ============================================================

// FreeSymbols returns the sorted names of the symbols e depends on.
func FreeSymbols(e Expr) []string {
	s := e.freeSyms()
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// DependsOn reports whether name occurs in e.
func DependsOn(e Expr, name string) bool {
	s := e.freeSyms()
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// Equal reports structural equality of the canonical forms.
func Equal(a, b Expr) bool { return a.String() == b.String() }

// IsZero reports whether e is the literal constant zero.
func IsZero(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.IsZero()
}

// Size counts the nodes of e.
func Size(e Expr) int {
	switch v := e.(type) {
	case *Add:
		n := 1
		for _, t := range v.terms {
			n += Size(t)
		}
		return n
	case *Mul:
		n := 1
		for _, f := range v.factors {
			n += Size(f)
		}
		return n
	case *Pow:
		return 1 + Size(v.base) + Size(v.exp)
	case *Func:
		return 1 + Size(v.arg)
	case *Atan2:
		return 1 + Size(v.y) + Size(v.x)
	default:
		return 1
	}
}

func mergeSyms(children ...Expr) []string {
	var out []string
	for _, c := range children {
		s := c.freeSyms()
		if len(s) == 0 {
			continue
		}
		if out == nil {
			out = s
			continue
		}
		out = unionSorted(out, s)
	}
	return out
}

func unionSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
