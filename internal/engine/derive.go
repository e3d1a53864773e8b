package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

// Derive runs the full pipeline for one family: residual, motion model,
// gradient row, acceleration term, translation invariance, agreement with the
// family's reference formulas, finite-difference cross-checks, evaluation at
// every vector and, for an exporting dialect, the snippet, its round trip and
// an execution of the snippet text.
func (e *Engine) Derive(ctx context.Context, f constraints.Family) (*Derivation, error) {
	start := time.Now()
	fail := func(stage string, err error) (*Derivation, error) {
		return nil, &DerivationError{Family: f.Name(), Stage: stage, Wrapped: err}
	}
	log := e.log.With("family", f.Name())

	d := &Derivation{
		Family:      f.Name(),
		Order:       f.Order(),
		Description: f.Description(),
		Residual:    f.Residual(),
		Dialect:     e.opts.Dialect,
	}
	d.logf("== %s (%s axis order) ==", f.Name(), f.Order())
	d.logf("constraint: %s", f.Description())
	for _, p := range f.Particles() {
		c, v := p.Coords(f.Order()), p.Velocities(f.Order())
		d.logf("particle %-9s pos = (%s, %s)  vel = (%s, %s)", p.Role, c[0], c[1], v[0], v[1])
	}
	if ps := f.Params(); len(ps) > 0 {
		d.logf("parameters: %s", strings.Join(ps, ", "))
	}
	d.logf("C = %s", d.Residual)

	vectors, err := e.vectorsFor(f)
	if err != nil {
		return fail("vectors", err)
	}
	d.Vectors = vectors
	log.Debug("test vectors ready", "count", len(vectors))

	ct := e.MotionSubstitution(f, d.Residual)
	d.logf("motion model: p(t) = p + t*v for %d coordinates", len(constraints.Coordinates(f)))
	d.logf("C(t) = %s", ct)

	d.Gradient, err = e.Gradient(ctx, f, d.Residual)
	if err != nil {
		return fail("gradient", err)
	}
	for _, g := range d.Gradient {
		d.logf("dC/d%s = %s%s", g.Coord, g.Expr, unsimplifiedMark(g.Simplified))
	}

	d.logf("dC/dt at t=0 = %s", ct.Diff(TimeSymbol).Sub(TimeSymbol, symbolic.N(0)))
	d.Acceleration, err = e.Acceleration(ctx, f, d.Residual)
	if err != nil {
		return fail("acceleration", err)
	}
	d.logf("d2C/dt2 at t=0 = %s%s", d.Acceleration.Expr, unsimplifiedMark(d.Acceleration.Simplified))

	if err := e.checkTranslation(ctx, f, d); err != nil {
		return fail("translation invariance", err)
	}
	if err := e.checkReferences(ctx, f, d); err != nil {
		return fail("reference formulas", err)
	}

	fdv, err := e.CheckFiniteDifference(f, d, vectors)
	d.Verdicts = append(d.Verdicts, fdv...)
	if err != nil {
		return fail("finite differences", err)
	}
	for _, v := range fdv {
		d.logf("verify %s", v)
	}

	if err := e.evaluate(f, d); err != nil {
		return fail("evaluation", err)
	}

	if e.opts.Dialect != symbolic.Plain {
		d.Snippet, err = Export(f, d, e.opts.Dialect, e.opts.Negate)
		if err != nil {
			return fail("export", err)
		}
		rt, err := e.RoundTrip(d, e.opts.Dialect, vectors)
		d.Verdicts = append(d.Verdicts, rt)
		if err != nil {
			return fail("export", err)
		}
		d.logf("verify %s", rt)

		sv, err := e.CheckSnippet(f, d, vectors)
		d.Verdicts = append(d.Verdicts, sv)
		if err != nil {
			return fail("export", err)
		}
		d.logf("verify %s", sv)
	}

	d.Elapsed = time.Since(start)
	log.Info("derivation complete", "verdicts", len(d.Verdicts), "elapsed", d.Elapsed.Round(time.Millisecond))
	return d, nil
}

// DeriveAll derives every family concurrently. Results keep the input order;
// the first failure cancels the rest.
func (e *Engine) DeriveAll(ctx context.Context, families []constraints.Family) ([]*Derivation, error) {
	out := make([]*Derivation, len(families))
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Parallel > 0 {
		g.SetLimit(e.opts.Parallel)
	}
	for i, f := range families {
		i, f := i, f
		g.Go(func() error {
			d, err := e.Derive(gctx, f)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// vectorsFor collects the configured vectors that bind every symbol of f,
// plus RandomVectors seeded samples. Degenerate vectors are rejected.
func (e *Engine) vectorsFor(f constraints.Family) ([]NamedVector, error) {
	var out []NamedVector
	for _, nv := range e.opts.Vectors {
		if nv.Family != "" && nv.Family != f.Name() {
			continue
		}
		if miss := constraints.Missing(f, nv.Values); len(miss) > 0 {
			if nv.Family == "" {
				continue
			}
			return nil, fmt.Errorf("%w: %s lacks %s", ErrIncompleteVector, nv.Name, strings.Join(miss, ", "))
		}
		if err := f.Check(nv.Values); err != nil {
			return nil, fmt.Errorf("vector %s: %w", nv.Name, err)
		}
		out = append(out, nv)
	}
	if e.opts.RandomVectors > 0 {
		rng := rand.New(rand.NewSource(e.opts.Seed))
		for i := 0; i < e.opts.RandomVectors; i++ {
			out = append(out, NamedVector{
				Name:   fmt.Sprintf("random-%d", i+1),
				Family: f.Name(),
				Values: f.Sample(rng),
			})
		}
	}
	return out, nil
}

// checkTranslation verifies that the gradient components along each axis sum
// to zero, so the base gradient is minus the sum of the others.
func (e *Engine) checkTranslation(ctx context.Context, f constraints.Family, d *Derivation) error {
	var xs, ys []symbolic.Expr
	byCoord := make(map[string]symbolic.Expr, len(d.Gradient))
	for _, g := range d.Gradient {
		byCoord[g.Coord] = g.Expr
	}
	for _, p := range f.Particles() {
		xs = append(xs, byCoord[p.X])
		ys = append(ys, byCoord[p.Y])
	}
	for _, axis := range []struct {
		name  string
		terms []symbolic.Expr
	}{{"x", xs}, {"y", ys}} {
		v, err := e.Verify(ctx, "translation invariance along "+axis.name, symbolic.AddOf(axis.terms...), symbolic.N(0), d.Vectors)
		d.Verdicts = append(d.Verdicts, v)
		if err != nil {
			return err
		}
		d.logf("verify %s", v)
	}
	return nil
}

func (e *Engine) checkReferences(ctx context.Context, f constraints.Family, d *Derivation) error {
	byCoord := make(map[string]symbolic.Expr, len(d.Gradient))
	for _, g := range d.Gradient {
		byCoord[g.Coord] = g.Expr
	}
	for _, ref := range f.References() {
		var derived symbolic.Expr
		switch {
		case ref.Target != constraints.AccelTarget:
			derived = byCoord[ref.Target]
		case ref.Of != nil:
			part, err := e.Acceleration(ctx, f, ref.Of)
			if err != nil {
				return err
			}
			derived = part.Expr
		default:
			derived = d.Acceleration.Expr
		}
		if derived == nil {
			return fmt.Errorf("reference %s targets unknown coordinate %s", ref.Name, ref.Target)
		}
		v, err := e.Verify(ctx, "reference "+ref.Name, derived, ref.Expr, d.Vectors)
		d.Verdicts = append(d.Verdicts, v)
		if err != nil {
			var mm *MismatchError
			if errors.As(err, &mm) {
				e.log.Error("derived formula disagrees with reference", "family", f.Name(), "reference", ref.Name, "vector", mm.Vector)
			}
			return err
		}
		d.logf("verify %s", v)
	}
	return nil
}

func (e *Engine) evaluate(f constraints.Family, d *Derivation) error {
	for _, nv := range d.Vectors {
		ev := Evaluation{Vector: nv.Name, Magnitudes: map[string]float64{}}
		var err error
		if ev.Residual, err = d.Residual.Eval(nv.Values); err != nil {
			return fmt.Errorf("C at %s: %w", nv.Name, err)
		}
		vals := make(map[string]float64, len(d.Gradient))
		for _, g := range d.Gradient {
			x, err := g.Expr.Eval(nv.Values)
			if err != nil {
				return fmt.Errorf("dC/d%s at %s: %w", g.Coord, nv.Name, err)
			}
			vals[g.Coord] = x
			ev.Gradient = append(ev.Gradient, x)
		}
		for _, p := range f.Particles() {
			ev.Magnitudes[p.Role] = math.Hypot(vals[p.X], vals[p.Y])
		}
		if ev.Acceleration, err = d.Acceleration.Expr.Eval(nv.Values); err != nil {
			return fmt.Errorf("acceleration at %s: %w", nv.Name, err)
		}
		d.Evaluations = append(d.Evaluations, ev)

		d.logf("at %s: C = %.9g, accel = %.9g", nv.Name, ev.Residual, ev.Acceleration)
		for _, p := range f.Particles() {
			d.logf("  |grad C_%s| = %.9g", p.Role, ev.Magnitudes[p.Role])
		}
	}
	return nil
}

func unsimplifiedMark(simplified bool) string {
	if simplified {
		return ""
	}
	return "  [unsimplified: budget exhausted]"
}
