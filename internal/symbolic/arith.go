package symbolic

import (
	"math"
	"math/big"
	"sort"
)

// ============================================================
// Add: sum of terms
// ============================================================

type Add struct {
	terms []Expr
	key   string
	syms  []string
}

// AddOf sums terms, collecting like terms by their non-constant part.
func AddOf(terms ...Expr) Expr {
	type group struct {
		coeff *big.Rat
		rest  Expr
	}
	constant := new(big.Rat)
	groups := map[string]*group{}
	keys := []string{}

	var add func(t Expr)
	add = func(t Expr) {
		switch v := t.(type) {
		case *Add:
			for _, inner := range v.terms {
				add(inner)
			}
		case *Num:
			constant.Add(constant, v.val)
		default:
			c, rest := splitCoeff(t)
			k := rest.String()
			g, seen := groups[k]
			if !seen {
				g = &group{coeff: new(big.Rat), rest: rest}
				groups[k] = g
				keys = append(keys, k)
			}
			g.coeff.Add(g.coeff, c)
		}
	}
	for _, t := range terms {
		add(t)
	}

	sort.Strings(keys)
	out := make([]Expr, 0, len(keys)+1)
	for _, k := range keys {
		g := groups[k]
		if g.coeff.Sign() == 0 {
			continue
		}
		out = append(out, scaled(g.coeff, g.rest))
	}
	if constant.Sign() != 0 {
		out = append(out, ratNum(constant))
	}
	switch len(out) {
	case 0:
		return zero
	case 1:
		return out[0]
	}
	a := &Add{terms: out, syms: mergeSyms(out...)}
	a.key = plainString(a)
	return a
}

// NegOf returns -e.
func NegOf(e Expr) Expr { return MulOf(negOne, e) }

// Minus returns a - b.
func Minus(a, b Expr) Expr { return AddOf(a, NegOf(b)) }

// QuoOf returns a / b.
func QuoOf(a, b Expr) Expr { return MulOf(a, PowOf(b, negOne)) }

func (a *Add) Terms() []Expr      { return a.terms }
func (a *Add) String() string     { return a.key }
func (a *Add) freeSyms() []string { return a.syms }

func (a *Add) Diff(name string) Expr {
	if !DependsOn(a, name) {
		return zero
	}
	ds := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		ds = append(ds, t.Diff(name))
	}
	return AddOf(ds...)
}

func (a *Add) Sub(name string, value Expr) Expr {
	if !DependsOn(a, name) {
		return a
	}
	ts := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		ts[i] = t.Sub(name, value)
	}
	return AddOf(ts...)
}

func (a *Add) Eval(env Env) (float64, error) {
	acc := 0.0
	for _, t := range a.terms {
		v, err := t.Eval(env)
		if err != nil {
			return 0, err
		}
		acc += v
	}
	if math.IsNaN(acc) || math.IsInf(acc, 0) {
		return 0, domainErr(GuardNonFinite, a, acc, env)
	}
	return acc, nil
}

// ============================================================
// Mul: product of factors
// ============================================================

// Mul keeps an optional rational coefficient first, then factors sorted by key.
type Mul struct {
	factors []Expr
	key     string
	syms    []string
}

// MulOf multiplies factors, merging powers of a common base.
func MulOf(factors ...Expr) Expr {
	type group struct {
		base Expr
		exps []Expr
	}
	coeff := big.NewRat(1, 1)
	groups := map[string]*group{}
	keys := []string{}

	var add func(f Expr)
	add = func(f Expr) {
		switch v := f.(type) {
		case *Num:
			coeff.Mul(coeff, v.val)
		case *Mul:
			for _, inner := range v.factors {
				add(inner)
			}
		default:
			base, exp := splitPow(f)
			k := base.String()
			g, seen := groups[k]
			if !seen {
				g = &group{base: base}
				groups[k] = g
				keys = append(keys, k)
			}
			g.exps = append(g.exps, exp)
		}
	}
	for _, f := range factors {
		add(f)
	}
	if coeff.Sign() == 0 {
		return zero
	}

	others := make([]Expr, 0, len(keys))
	regroup := false
	for _, k := range keys {
		g := groups[k]
		var p Expr
		if len(g.exps) == 1 {
			p = PowOf(g.base, g.exps[0])
		} else {
			p = PowOf(g.base, AddOf(g.exps...))
		}
		switch pv := p.(type) {
		case *Num:
			coeff.Mul(coeff, pv.val)
		case *Mul:
			// merged powers of a product may share bases with other factors
			regroup = true
			others = append(others, pv)
		default:
			others = append(others, p)
		}
	}
	if coeff.Sign() == 0 {
		return zero
	}
	if regroup {
		return MulOf(append([]Expr{ratNum(coeff)}, others...)...)
	}
	sort.SliceStable(others, func(i, j int) bool { return others[i].String() < others[j].String() })

	if len(others) == 0 {
		return ratNum(coeff)
	}
	isOne := coeff.Cmp(big.NewRat(1, 1)) == 0
	if isOne && len(others) == 1 {
		return others[0]
	}
	fs := others
	if !isOne {
		fs = append([]Expr{ratNum(coeff)}, others...)
	}
	return rawMul(fs)
}

func rawMul(fs []Expr) *Mul {
	m := &Mul{factors: fs, syms: mergeSyms(fs...)}
	m.key = plainString(m)
	return m
}

// splitCoeff separates a leading rational coefficient from the rest of a term.
func splitCoeff(e Expr) (*big.Rat, Expr) {
	m, ok := e.(*Mul)
	if !ok {
		return big.NewRat(1, 1), e
	}
	c, ok := m.factors[0].(*Num)
	if !ok {
		return big.NewRat(1, 1), e
	}
	rest := m.factors[1:]
	if len(rest) == 1 {
		return c.val, rest[0]
	}
	return c.val, rawMul(rest)
}

// scaled rebuilds coeff*rest without re-sorting rest.
func scaled(coeff *big.Rat, rest Expr) Expr {
	if coeff.Cmp(big.NewRat(1, 1)) == 0 {
		return rest
	}
	c := ratNum(new(big.Rat).Set(coeff))
	if m, ok := rest.(*Mul); ok {
		if _, hasCoeff := m.factors[0].(*Num); !hasCoeff {
			return rawMul(append([]Expr{c}, m.factors...))
		}
	}
	if _, ok := rest.(*Mul); ok {
		return MulOf(c, rest)
	}
	return rawMul([]Expr{c, rest})
}

func splitPow(e Expr) (base, exp Expr) {
	if p, ok := e.(*Pow); ok {
		return p.base, p.exp
	}
	return e, one
}

func (m *Mul) Factors() []Expr    { return m.factors }
func (m *Mul) String() string     { return m.key }
func (m *Mul) freeSyms() []string { return m.syms }

func (m *Mul) Diff(name string) Expr {
	if !DependsOn(m, name) {
		return zero
	}
	terms := make([]Expr, 0, len(m.factors))
	for i, fi := range m.factors {
		if !DependsOn(fi, name) {
			continue
		}
		rest := make([]Expr, 0, len(m.factors))
		rest = append(rest, fi.Diff(name))
		for j, fj := range m.factors {
			if j != i {
				rest = append(rest, fj)
			}
		}
		terms = append(terms, MulOf(rest...))
	}
	return AddOf(terms...)
}

func (m *Mul) Sub(name string, value Expr) Expr {
	if !DependsOn(m, name) {
		return m
	}
	fs := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		fs[i] = f.Sub(name, value)
	}
	return MulOf(fs...)
}

func (m *Mul) Eval(env Env) (float64, error) {
	acc := 1.0
	for _, f := range m.factors {
		v, err := f.Eval(env)
		if err != nil {
			return 0, err
		}
		acc *= v
	}
	if math.IsNaN(acc) || math.IsInf(acc, 0) {
		return 0, domainErr(GuardNonFinite, m, acc, env)
	}
	return acc, nil
}

// ============================================================
// Pow: base^exp
// ============================================================

type Pow struct {
	base, exp Expr
	key       string
	syms      []string
}

// maxExactPower bounds exact rational exponentiation of constants.
const maxExactPower = 64

func PowOf(base, exp Expr) Expr {
	en, expIsNum := exp.(*Num)
	if expIsNum {
		if en.IsZero() {
			return one
		}
		if en.IsOne() {
			return base
		}
	}
	if bn, ok := base.(*Num); ok {
		if bn.IsZero() {
			if expIsNum && en.Sign() > 0 {
				return zero
			}
			return rawPow(base, exp)
		}
		if bn.IsOne() {
			return one
		}
		if expIsNum && en.IsInt() && en.val.Num().IsInt64() {
			if e := en.val.Num().Int64(); e >= -maxExactPower && e <= maxExactPower {
				return ratNum(ratPow(bn.val, e))
			}
		}
	}
	if expIsNum && en.IsInt() {
		switch b := base.(type) {
		case *Pow:
			return PowOf(b.base, MulOf(b.exp, en))
		case *Mul:
			parts := make([]Expr, len(b.factors))
			for i, f := range b.factors {
				parts[i] = PowOf(f, en)
			}
			return MulOf(parts...)
		}
	}
	return rawPow(base, exp)
}

func rawPow(base, exp Expr) *Pow {
	p := &Pow{base: base, exp: exp, syms: mergeSyms(base, exp)}
	p.key = plainString(p)
	return p
}

func ratPow(b *big.Rat, e int64) *big.Rat {
	neg := e < 0
	if neg {
		e = -e
	}
	r := big.NewRat(1, 1)
	for i := int64(0); i < e; i++ {
		r.Mul(r, b)
	}
	if neg {
		r.Inv(r)
	}
	return r
}

// SqrtOf returns arg^(1/2).
func SqrtOf(arg Expr) Expr { return PowOf(arg, half) }

func (p *Pow) Base() Expr         { return p.base }
func (p *Pow) Exp() Expr          { return p.exp }
func (p *Pow) String() string     { return p.key }
func (p *Pow) freeSyms() []string { return p.syms }

func (p *Pow) Diff(name string) Expr {
	bd := DependsOn(p.base, name)
	ed := DependsOn(p.exp, name)
	switch {
	case !bd && !ed:
		return zero
	case !ed:
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, negOne)), p.base.Diff(name))
	case !bd:
		return MulOf(p, LnOf(p.base), p.exp.Diff(name))
	default:
		return MulOf(p, AddOf(
			MulOf(p.exp.Diff(name), LnOf(p.base)),
			MulOf(p.exp, p.base.Diff(name), PowOf(p.base, negOne)),
		))
	}
}

func (p *Pow) Sub(name string, value Expr) Expr {
	if !DependsOn(p, name) {
		return p
	}
	return PowOf(p.base.Sub(name, value), p.exp.Sub(name, value))
}

func (p *Pow) Eval(env Env) (float64, error) {
	b, err := p.base.Eval(env)
	if err != nil {
		return 0, err
	}
	e, err := p.exp.Eval(env)
	if err != nil {
		return 0, err
	}
	if b == 0 && e < 0 {
		return 0, domainErr(GuardDivision, p.base, b, env)
	}
	if b < 0 && e != math.Trunc(e) {
		g := GuardPow
		if en, ok := p.exp.(*Num); ok && en.val.Denom().Cmp(big.NewInt(2)) == 0 {
			g = GuardSqrt
		}
		return 0, domainErr(g, p.base, b, env)
	}
	var v float64
	switch e {
	case 0.5:
		v = math.Sqrt(b)
	case -0.5:
		v = 1 / math.Sqrt(b)
	case -1:
		v = 1 / b
	case 2:
		v = b * b
	default:
		v = math.Pow(b, e)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domainErr(GuardNonFinite, p, v, env)
	}
	return v, nil
}
