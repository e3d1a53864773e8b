package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

// Verify checks a == b. A symbolic proof is tried first; if simplification
// cannot settle it within budget the formulas are compared at every vector.
// Disagreement returns a *MismatchError, and the absence of both a proof and
// vectors returns ErrInconclusive.
func (e *Engine) Verify(ctx context.Context, subject string, a, b symbolic.Expr, vectors []NamedVector) (Verdict, error) {
	sctx, cancel := e.bounded(ctx)
	proved, err := symbolic.ProveZero(sctx, symbolic.Minus(a, b), e.opts.Budget)
	cancel()
	switch {
	case errors.Is(err, symbolic.ErrSimplifyTimeout):
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		e.log.Debug("symbolic verification gave up, falling back to numeric", "subject", subject, "error", err)
	case err != nil:
		return Verdict{}, err
	case proved:
		return Verdict{Subject: subject, Method: MethodSymbolic, Match: true}, nil
	}

	v := Verdict{Subject: subject, Method: MethodNumeric, Match: true}
	if len(vectors) == 0 {
		v.Match = false
		return v, fmt.Errorf("%w: %s", ErrInconclusive, subject)
	}
	for _, nv := range vectors {
		va, err := a.Eval(nv.Values)
		if err != nil {
			return v, fmt.Errorf("%s at %s: %w", subject, nv.Name, err)
		}
		vb, err := b.Eval(nv.Values)
		if err != nil {
			return v, fmt.Errorf("%s at %s: %w", subject, nv.Name, err)
		}
		v.Points++
		abs, rel := difference(va, vb)
		v.MaxAbsDiff = math.Max(v.MaxAbsDiff, abs)
		v.MaxRelDiff = math.Max(v.MaxRelDiff, rel)
		if rel > e.opts.Tolerance {
			v.Match = false
			return v, &MismatchError{
				Subject: subject, Vector: nv.Name, A: va, B: vb,
				FormulaA: a.String(), FormulaB: b.String(),
			}
		}
	}
	return v, nil
}

// difference returns |a-b| and the same scaled by max(1, |a|, |b|).
func difference(a, b float64) (abs, rel float64) {
	abs = math.Abs(a - b)
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return abs, abs / scale
}

const (
	gradientStep = 1e-6
	accelStep    = 1e-3
)

// CheckFiniteDifference compares the derived gradient row against central
// differences of the residual, and the acceleration term against a second
// central difference of C(t) along the motion line.
func (e *Engine) CheckFiniteDifference(f constraints.Family, d *Derivation, vectors []NamedVector) ([]Verdict, error) {
	coords := constraints.Coordinates(f)
	motion := constraints.Motion(f)

	grad := Verdict{Subject: "gradient vs finite differences", Method: MethodFiniteDifference, Match: true}
	accel := Verdict{Subject: "acceleration vs finite differences", Method: MethodFiniteDifference, Match: true}

	for _, nv := range vectors {
		base := nv.Values
		var evalErr error
		residualAt := func(w symbolic.Env) float64 {
			c, err := d.Residual.Eval(w)
			if err != nil && evalErr == nil {
				evalErr = err
			}
			return c
		}

		x0 := make([]float64, len(coords))
		for i, c := range coords {
			x0[i] = base[c]
		}
		work := base.Clone()
		numeric := fd.Gradient(nil, func(x []float64) float64 {
			for i, c := range coords {
				work[c] = x[i]
			}
			return residualAt(work)
		}, x0, &fd.Settings{Formula: fd.Central, Step: gradientStep * scaleOf(x0)})
		if evalErr != nil {
			return nil, fmt.Errorf("finite differences at %s: %w", nv.Name, evalErr)
		}
		for i, entry := range d.Gradient {
			got, err := entry.Expr.Eval(base)
			if err != nil {
				return nil, fmt.Errorf("dC/d%s at %s: %w", entry.Coord, nv.Name, err)
			}
			abs, rel := difference(got, numeric[i])
			grad.MaxAbsDiff = math.Max(grad.MaxAbsDiff, abs)
			grad.MaxRelDiff = math.Max(grad.MaxRelDiff, rel)
			if rel > e.opts.FDTolerance {
				grad.Match = false
				return append([]Verdict{}, grad), &MismatchError{
					Subject: "dC/d" + entry.Coord + " vs finite difference", Vector: nv.Name,
					A: got, B: numeric[i], FormulaA: entry.Expr.String(), FormulaB: "central difference",
				}
			}
		}
		grad.Points++

		line := base.Clone()
		numAccel := fd.Derivative(func(t float64) float64 {
			for pos, vel := range motion {
				line[pos] = base[pos] + t*base[vel]
			}
			return residualAt(line)
		}, 0, &fd.Settings{Formula: fd.Central2nd, Step: accelStep})
		if evalErr != nil {
			return nil, fmt.Errorf("finite differences at %s: %w", nv.Name, evalErr)
		}
		got, err := d.Acceleration.Expr.Eval(base)
		if err != nil {
			return nil, fmt.Errorf("acceleration at %s: %w", nv.Name, err)
		}
		abs, rel := difference(got, numAccel)
		accel.MaxAbsDiff = math.Max(accel.MaxAbsDiff, abs)
		accel.MaxRelDiff = math.Max(accel.MaxRelDiff, rel)
		if rel > e.opts.FDTolerance {
			accel.Match = false
			return []Verdict{grad, accel}, &MismatchError{
				Subject: "acceleration vs finite difference", Vector: nv.Name,
				A: got, B: numAccel, FormulaA: d.Acceleration.Expr.String(), FormulaB: "second central difference",
			}
		}
		accel.Points++
	}
	return []Verdict{grad, accel}, nil
}

func scaleOf(x []float64) float64 {
	s := 1.0
	for _, v := range x {
		s = math.Max(s, math.Abs(v))
	}
	return s
}
