package symbolic

import (
	"context"
	"fmt"
	"math/big"
)

// DefaultBudget is the node budget used when a caller passes zero.
const DefaultBudget = 200_000

const (
	maxExpandPower = 8
	maxCanonPasses = 4
	ctxCheckEvery  = 256
)

type expander struct {
	ctx    context.Context
	budget int
	steps  int
}

func (x *expander) tick(n int) error {
	before := x.steps
	x.steps += n
	if x.steps > x.budget {
		return fmt.Errorf("%w: node budget %d exhausted", ErrSimplifyTimeout, x.budget)
	}
	if before/ctxCheckEvery != x.steps/ctxCheckEvery {
		if err := x.ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSimplifyTimeout, err)
		}
	}
	return nil
}

func (x *expander) expand(e Expr) (Expr, error) {
	if err := x.tick(1); err != nil {
		return nil, err
	}
	switch v := e.(type) {
	case *Add:
		ts := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			et, err := x.expand(t)
			if err != nil {
				return nil, err
			}
			ts[i] = et
		}
		return AddOf(ts...), nil

	case *Mul:
		fs := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			ef, err := x.expand(f)
			if err != nil {
				return nil, err
			}
			fs[i] = ef
		}
		return x.distribute(fs)

	case *Pow:
		base, err := x.expand(v.base)
		if err != nil {
			return nil, err
		}
		exp, err := x.expand(v.exp)
		if err != nil {
			return nil, err
		}
		if _, isSum := base.(*Add); isSum {
			if n, ok := exp.(*Num); ok && n.IsInt() && n.Sign() > 0 && n.val.Num().Cmp(big.NewInt(maxExpandPower)) <= 0 {
				k := int(n.val.Num().Int64())
				fs := make([]Expr, k)
				for i := range fs {
					fs[i] = base
				}
				return x.distribute(fs)
			}
		}
		return PowOf(base, exp), nil

	case *Func:
		arg, err := x.expand(v.arg)
		if err != nil {
			return nil, err
		}
		return rebuildFunc(v.name, arg), nil

	case *Atan2:
		y, err := x.expand(v.y)
		if err != nil {
			return nil, err
		}
		xx, err := x.expand(v.x)
		if err != nil {
			return nil, err
		}
		return Atan2Of(y, xx), nil
	}
	return e, nil
}

// distribute multiplies out factors over any sums among them.
func (x *expander) distribute(fs []Expr) (Expr, error) {
	terms := []Expr{one}
	for _, f := range fs {
		var addends []Expr
		if s, ok := f.(*Add); ok {
			addends = s.terms
		} else {
			addends = []Expr{f}
		}
		if err := x.tick(len(terms) * len(addends)); err != nil {
			return nil, err
		}
		next := make([]Expr, 0, len(terms)*len(addends))
		for _, t := range terms {
			for _, a := range addends {
				next = append(next, MulOf(t, a))
			}
		}
		terms = next
	}
	return AddOf(terms...), nil
}

// Canonicalize expands products and small integer powers of sums and
// collects like terms until the form stops changing. It gives up with
// [ErrSimplifyTimeout] when ctx is done or the node budget is spent.
func Canonicalize(ctx context.Context, e Expr, budget int) (Expr, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	x := &expander{ctx: ctx, budget: budget}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimplifyTimeout, err)
	}
	cur := e
	for pass := 0; pass < maxCanonPasses; pass++ {
		next, err := x.expand(cur)
		if err != nil {
			return nil, err
		}
		if Equal(next, cur) {
			return next, nil
		}
		cur = next
	}
	return cur, nil
}

// ProveZero reports whether e canonicalizes to zero, first as is and then
// after multiplying through by the common denominator of its terms. A false
// result with a nil error means the identity could not be shown symbolically.
func ProveZero(ctx context.Context, e Expr, budget int) (bool, error) {
	c, err := Canonicalize(ctx, e, budget)
	if err != nil {
		return false, err
	}
	for round := 0; round < 2; round++ {
		if IsZero(c) {
			return true, nil
		}
		scale := commonDenominator(c)
		if scale == nil {
			return false, nil
		}
		c, err = Canonicalize(ctx, scaleTerms(c, scale), budget)
		if err != nil {
			return false, err
		}
	}
	return IsZero(c), nil
}

// scaleTerms multiplies each term separately so that powers merge before
// any sum in scale is distributed.
func scaleTerms(e, scale Expr) Expr {
	s, ok := e.(*Add)
	if !ok {
		return MulOf(e, scale)
	}
	ts := make([]Expr, len(s.terms))
	for i, t := range s.terms {
		ts[i] = MulOf(t, scale)
	}
	return AddOf(ts...)
}

// commonDenominator returns the product of every base raised to the largest
// negative exponent it carries in any term, or nil when there is none.
func commonDenominator(e Expr) Expr {
	type entry struct {
		base Expr
		exp  *big.Rat
	}
	seen := map[string]*entry{}
	var order []string
	terms := []Expr{e}
	if s, ok := e.(*Add); ok {
		terms = s.terms
	}
	for _, t := range terms {
		fs := []Expr{t}
		if m, ok := t.(*Mul); ok {
			fs = m.factors
		}
		for _, f := range fs {
			p, ok := f.(*Pow)
			if !ok {
				continue
			}
			n, ok := p.exp.(*Num)
			if !ok || n.Sign() >= 0 {
				continue
			}
			k := p.base.String()
			mag := new(big.Rat).Neg(n.val)
			if cur, ok := seen[k]; ok {
				if mag.Cmp(cur.exp) > 0 {
					cur.exp = mag
				}
				continue
			}
			seen[k] = &entry{base: p.base, exp: mag}
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return nil
	}
	fs := make([]Expr, 0, len(order))
	for _, k := range order {
		en := seen[k]
		fs = append(fs, PowOf(en.base, ratNum(en.exp)))
	}
	return MulOf(fs...)
}
