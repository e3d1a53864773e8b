// Package engine derives, verifies and exports constraint gradients and
// acceleration terms for the families in package constraints.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

// Engine runs derivations with a fixed set of options. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	opts Options
	log  *slog.Logger
}

// New returns an engine. Zero-valued tolerances and budgets fall back to
// DefaultOptions.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Budget <= 0 {
		opts.Budget = def.Budget
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.FDTolerance <= 0 {
		opts.FDTolerance = def.FDTolerance
	}
	if opts.RoundTripTolerance <= 0 {
		opts.RoundTripTolerance = def.RoundTripTolerance
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// MotionSubstitution replaces every position symbol p of f in c with
// p + t*v_p, giving C(t) under constant velocities.
func (e *Engine) MotionSubstitution(f constraints.Family, c symbolic.Expr) symbolic.Expr {
	t := symbolic.S(TimeSymbol)
	for pos, vel := range constraints.Motion(f) {
		if !symbolic.DependsOn(c, pos) {
			continue
		}
		moving := symbolic.AddOf(symbolic.S(pos), symbolic.MulOf(t, symbolic.S(vel)))
		c = c.Sub(pos, moving)
	}
	return c
}

// Gradient differentiates c by every position coordinate of f, in row order.
func (e *Engine) Gradient(ctx context.Context, f constraints.Family, c symbolic.Expr) ([]Entry, error) {
	coords := constraints.Coordinates(f)
	row := make([]Entry, 0, len(coords))
	for _, coord := range coords {
		d := c.Diff(coord)
		if symbolic.DependsOn(d, TimeSymbol) {
			d = d.Sub(TimeSymbol, symbolic.N(0))
		}
		s, ok, err := e.simplify(ctx, "dC/d"+coord, d)
		if err != nil {
			return nil, err
		}
		if symbolic.DependsOn(s, TimeSymbol) {
			return nil, fmt.Errorf("%w: dC/d%s", ErrTimeLeak, coord)
		}
		row = append(row, Entry{Coord: coord, Expr: s, Simplified: ok})
	}
	return row, nil
}

// Acceleration returns d²C(t)/dt² at t = 0 with velocities held constant.
func (e *Engine) Acceleration(ctx context.Context, f constraints.Family, c symbolic.Expr) (Term, error) {
	ct := e.MotionSubstitution(f, c)
	d2 := ct.Diff(TimeSymbol).Diff(TimeSymbol).Sub(TimeSymbol, symbolic.N(0))
	s, ok, err := e.simplify(ctx, "d2C/dt2", d2)
	if err != nil {
		return Term{}, err
	}
	return Term{Expr: s, Simplified: ok}, nil
}

// simplify canonicalises x under the configured time and node budget. When
// the budget runs out the unsimplified form is returned with ok == false.
// The canonical form is kept only if it is no larger than the input.
func (e *Engine) simplify(ctx context.Context, subject string, x symbolic.Expr) (symbolic.Expr, bool, error) {
	sctx, cancel := e.bounded(ctx)
	defer cancel()

	c, err := symbolic.Canonicalize(sctx, x, e.opts.Budget)
	if errors.Is(err, symbolic.ErrSimplifyTimeout) {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		e.log.Warn("simplification gave up, keeping unsimplified form",
			"subject", subject, "nodes", symbolic.Size(x), "error", err)
		return x, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if symbolic.Size(c) > symbolic.Size(x) {
		e.log.Debug("canonical form larger than input, keeping input",
			"subject", subject, "input", symbolic.Size(x), "canonical", symbolic.Size(c))
		return x, true, nil
	}
	return c, true, nil
}

func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.SimplifyTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.SimplifyTimeout)
	}
	return context.WithCancel(ctx)
}
