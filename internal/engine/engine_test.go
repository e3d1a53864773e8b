package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

func drumCounterweight(family string) NamedVector {
	return NamedVector{
		Name:   "drum_counterweight",
		Family: family,
		Values: constraints.Vector{
			"x1": 436, "y1": 622,
			"x2": 536, "y2": 472.7,
			"x3": 578, "y3": 515,
			"r": 60, "L": 13.240879597,
			"vx1": 0, "vy1": 0, "vx2": 0, "vy2": 0, "vx3": 0, "vy3": 0,
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SimplifyTimeout = 2 * time.Second
	opts.Budget = 50_000
	opts.RandomVectors = 2
	opts.Seed = 1
	return opts
}

func TestMotionSubstitution(t *testing.T) {
	e := New(testOptions())
	f := constraints.NewColinear(constraints.XY)
	ct := e.MotionSubstitution(f, f.Residual())

	assert.True(t, symbolic.DependsOn(ct, TimeSymbol))
	at0 := ct.Sub(TimeSymbol, symbolic.N(0))
	assert.True(t, symbolic.Equal(at0, f.Residual()))
}

func TestGradientColinear(t *testing.T) {
	e := New(testOptions())
	f := constraints.NewColinear(constraints.XY)
	row, err := e.Gradient(context.Background(), f, f.Residual())
	require.NoError(t, err)
	require.Len(t, row, 6)

	coords := make([]string, len(row))
	for i, g := range row {
		coords[i] = g.Coord
		assert.False(t, symbolic.DependsOn(g.Expr, TimeSymbol))
	}
	assert.Equal(t, constraints.Coordinates(f), coords)
}

func TestVerifySymbolicProof(t *testing.T) {
	e := New(testOptions())
	a, b := symbolic.S("a"), symbolic.S("b")
	lhs := symbolic.PowOf(symbolic.AddOf(a, b), symbolic.N(2))
	rhs := symbolic.AddOf(symbolic.PowOf(a, symbolic.N(2)), symbolic.MulOf(symbolic.N(2), a, b), symbolic.PowOf(b, symbolic.N(2)))

	v, err := e.Verify(context.Background(), "binomial", lhs, rhs, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodSymbolic, v.Method)
	assert.True(t, v.Match)
	assert.True(t, v.Method.Proof())
	assert.Contains(t, v.String(), "symbolic proof")
}

func TestVerifyFallsBackToNumeric(t *testing.T) {
	opts := testOptions()
	opts.Budget = 3
	e := New(opts)
	a, b := symbolic.S("a"), symbolic.S("b")
	lhs := symbolic.PowOf(symbolic.AddOf(a, b), symbolic.N(2))
	rhs := symbolic.AddOf(symbolic.PowOf(a, symbolic.N(2)), symbolic.MulOf(symbolic.N(2), a, b), symbolic.PowOf(b, symbolic.N(2)))
	vectors := []NamedVector{
		{Name: "p", Values: symbolic.Env{"a": 1.5, "b": -2}},
		{Name: "q", Values: symbolic.Env{"a": 3, "b": 7}},
	}

	v, err := e.Verify(context.Background(), "binomial", lhs, rhs, vectors)
	require.NoError(t, err)
	assert.Equal(t, MethodNumeric, v.Method)
	assert.Equal(t, 2, v.Points)
	assert.False(t, v.Method.Proof())
	assert.Contains(t, v.String(), "not a proof")
}

func TestVerifyInconclusive(t *testing.T) {
	e := New(testOptions())
	_, err := e.Verify(context.Background(), "unrelated", symbolic.S("a"), symbolic.S("b"), nil)
	assert.ErrorIs(t, err, ErrInconclusive)
}

func TestVerifyReportsDomainError(t *testing.T) {
	e := New(testOptions())
	x := symbolic.S("x")
	vectors := []NamedVector{{Name: "neg", Values: symbolic.Env{"x": -1}}}
	_, err := e.Verify(context.Background(), "roots", symbolic.SqrtOf(x), x, vectors)
	var de *symbolic.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, symbolic.GuardSqrt, de.Guard)
	assert.Equal(t, -1.0, de.Values["x"])
}

// The hand-written dC/dx1 from the first manual derivation used |p1-p2|^3
// where d^2 belongs; it must be rejected, not silently accepted.
func TestVerifyRejectsLegacyDrumGradient(t *testing.T) {
	e := New(testOptions())
	f := constraints.NewRopeDrum(constraints.XY)
	row, err := e.Gradient(context.Background(), f, f.Residual())
	require.NoError(t, err)

	s := symbolic.S
	dx, dy := symbolic.Minus(s("x1"), s("x2")), symbolic.Minus(s("y1"), s("y2"))
	d2 := symbolic.AddOf(symbolic.PowOf(dx, symbolic.N(2)), symbolic.PowOf(dy, symbolic.N(2)))
	d3 := symbolic.PowOf(d2, symbolic.F(3, 2))
	tl := symbolic.SqrtOf(symbolic.Minus(d2, symbolic.PowOf(s("r"), symbolic.N(2))))
	legacy := symbolic.AddOf(
		symbolic.QuoOf(dx, tl),
		symbolic.QuoOf(symbolic.MulOf(s("r"), dy), d2),
		symbolic.NegOf(symbolic.QuoOf(symbolic.MulOf(symbolic.PowOf(s("r"), symbolic.N(2)), dx), symbolic.MulOf(d3, tl))),
	)

	_, err = e.Verify(context.Background(), "legacy dC/dx1", row[0].Expr, legacy, []NamedVector{drumCounterweight("ropedrum")})
	var mm *MismatchError
	require.True(t, errors.As(err, &mm), "got %v", err)
	assert.InDelta(t, -0.247139865, mm.A, 1e-8)
	assert.InDelta(t, -0.31259373, mm.B, 1e-6)
	assert.Equal(t, "drum_counterweight", mm.Vector)
}

func TestDeriveColinear(t *testing.T) {
	e := New(testOptions())
	d, err := e.Derive(context.Background(), constraints.NewColinear(constraints.XY))
	require.NoError(t, err)

	require.Len(t, d.Gradient, 6)
	require.Len(t, d.Evaluations, 2)
	for _, v := range d.Verdicts {
		assert.True(t, v.Match, v.String())
	}
	subjects := make([]string, 0, len(d.Verdicts))
	for _, v := range d.Verdicts {
		subjects = append(subjects, v.Subject)
	}
	assert.Contains(t, subjects, "reference accel")
	assert.Contains(t, subjects, "translation invariance along x")
	assert.Contains(t, subjects, "gradient vs finite differences")

	assert.Contains(t, d.Snippet, "function computeEffectColinear(result, colinear, system) {")
	assert.Contains(t, d.Snippet, "pget(system.positions, colinear.slide)")
	assert.Contains(t, d.Snippet, "return -acceleration;")
	assert.NotEmpty(t, d.Transcript)
}

func TestDeriveRopeDrumPreset(t *testing.T) {
	opts := testOptions()
	opts.Vectors = []NamedVector{drumCounterweight("ropedrum")}
	e := New(opts)

	d, err := e.Derive(context.Background(), constraints.NewRopeDrum(constraints.XY))
	require.NoError(t, err)
	require.NotEmpty(t, d.Evaluations)

	ev := d.Evaluations[0]
	assert.Equal(t, "drum_counterweight", ev.Vector)
	assert.InDelta(t, 0, ev.Residual, 1e-6)
	want := []float64{-0.247139865, 0.968979818, 0.961407487, -1.678181712, -0.714267622, 0.709201895}
	require.Len(t, ev.Gradient, len(want))
	for i := range want {
		assert.InDelta(t, want[i], ev.Gradient[i], 1e-8, d.Gradient[i].Coord)
	}
	assert.InDelta(t, 0, ev.Acceleration, 1e-12)
	assert.Contains(t, ev.Magnitudes, "p1")

	var tangent bool
	for _, v := range d.Verdicts {
		if v.Subject == "reference tangent accel" {
			tangent = true
			assert.True(t, v.Match)
		}
	}
	assert.True(t, tangent)
}

func TestDeriveRopeDrumYSwapsStorage(t *testing.T) {
	opts := testOptions()
	opts.Vectors = []NamedVector{drumCounterweight("ropedrum_y")}
	e := New(opts)

	d, err := e.Derive(context.Background(), constraints.NewRopeDrum(constraints.YX))
	require.NoError(t, err)

	assert.Equal(t, "y1", d.Gradient[0].Coord)
	assert.Equal(t, "x1", d.Gradient[1].Coord)
	assert.InDelta(t, 0.968979818, d.Evaluations[0].Gradient[0], 1e-8)
	assert.InDelta(t, -0.247139865, d.Evaluations[0].Gradient[1], 1e-8)

	assert.Contains(t, d.Snippet, "function computeEffectRopeDrumY(result, ropedrum, system) {")
	assert.Contains(t, d.Snippet, "let y1 = pos1[0];")
	assert.Contains(t, d.Snippet, "let x1 = pos1[1];")
	assert.Contains(t, d.Snippet, "let r = ropedrum.radius;")
}

func TestDeriveRejectsIncompleteVector(t *testing.T) {
	opts := testOptions()
	nv := drumCounterweight("ropedrum")
	delete(nv.Values, "r")
	opts.Vectors = []NamedVector{nv}

	_, err := New(opts).Derive(context.Background(), constraints.NewRopeDrum(constraints.XY))
	assert.ErrorIs(t, err, ErrIncompleteVector)
	var de *DerivationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "vectors", de.Stage)
}

func TestDeriveRejectsDegenerateVector(t *testing.T) {
	opts := testOptions()
	nv := drumCounterweight("ropedrum")
	nv.Values["x1"], nv.Values["y1"] = 540, 480
	opts.Vectors = []NamedVector{nv}

	_, err := New(opts).Derive(context.Background(), constraints.NewRopeDrum(constraints.XY))
	var dom *symbolic.DomainError
	require.True(t, errors.As(err, &dom))
	assert.Equal(t, symbolic.GuardDegenerate, dom.Guard)
}

func TestDeriveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testOptions()).Derive(ctx, constraints.NewColinear(constraints.XY))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeriveKeepsUnsimplifiedFormOnBudget(t *testing.T) {
	opts := testOptions()
	opts.Budget = 4
	d, err := New(opts).Derive(context.Background(), constraints.NewColinear(constraints.XY))
	require.NoError(t, err)
	assert.False(t, d.Acceleration.Simplified)
	for _, g := range d.Gradient {
		assert.False(t, g.Simplified, g.Coord)
	}
	assert.Contains(t, strings.Join(d.Transcript, "\n"), "unsimplified")
}

func TestDeriveAllKeepsOrder(t *testing.T) {
	opts := testOptions()
	opts.Parallel = 2
	e := New(opts)
	fams := []constraints.Family{
		constraints.NewRopeDrum(constraints.XY),
		constraints.NewColinear(constraints.XY),
	}
	ds, err := e.DeriveAll(context.Background(), fams)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "ropedrum", ds[0].Family)
	assert.Equal(t, "colinear", ds[1].Family)
}

func TestExportGo(t *testing.T) {
	opts := testOptions()
	opts.Dialect = symbolic.Go
	e := New(opts)
	f := constraints.NewRopeDrum(constraints.XY)
	d, err := e.Derive(context.Background(), f)
	require.NoError(t, err)

	assert.Contains(t, d.Snippet, "func computeEffectRopeDrum(pos1, pos2, pos3 [2]float64, r float64) (g1, g2, g3 [2]float64) {")
	assert.Contains(t, d.Snippet, "\treturn -(")
	assert.NotContains(t, d.Snippet, "Math.")

	plain, err := Export(f, d, symbolic.JS, false)
	require.NoError(t, err)
	assert.Contains(t, plain, "return acceleration;")

	_, err = Export(f, d, symbolic.Plain, false)
	assert.Error(t, err)
}

func TestRoundTripInconclusiveWithoutVectors(t *testing.T) {
	e := New(testOptions())
	d := &Derivation{Acceleration: Term{Expr: symbolic.S("a")}}
	_, err := e.RoundTrip(d, symbolic.JS, nil)
	assert.ErrorIs(t, err, ErrInconclusive)
}

func TestCheckSnippetRunsBothDialects(t *testing.T) {
	for _, dialect := range []symbolic.Dialect{symbolic.JS, symbolic.Go} {
		for _, f := range []constraints.Family{
			constraints.NewColinear(constraints.XY),
			constraints.NewRopeDrum(constraints.XY),
			constraints.NewRopeDrum(constraints.YX),
		} {
			opts := testOptions()
			opts.Dialect = dialect
			d, err := New(opts).Derive(context.Background(), f)
			require.NoError(t, err, "%s %s", f.Name(), dialect)

			found := false
			for _, v := range d.Verdicts {
				if v.Subject == "snippet evaluation ("+dialect.String()+")" {
					found = true
					assert.True(t, v.Match)
					assert.Equal(t, len(d.Vectors), v.Points)
				}
			}
			assert.True(t, found, "%s %s: no snippet verdict", f.Name(), dialect)
		}
	}
}

func TestCheckSnippetCatchesBrokenWrapping(t *testing.T) {
	opts := testOptions()
	opts.Vectors = []NamedVector{drumCounterweight("ropedrum_y")}
	e := New(opts)
	f := constraints.NewRopeDrum(constraints.YX)
	d, err := e.Derive(context.Background(), f)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit *strings.Replacer
	}{
		{"swapped storage slots", strings.NewReplacer("pos1[0]", "pos1[1]", "pos1[1]", "pos1[0]")},
		{"missing negation", strings.NewReplacer("return -acceleration;", "return acceleration;")},
		{"gradients assigned to the wrong particle", strings.NewReplacer("], ropedrum.p1);", "], ropedrum.p3);", "], ropedrum.p3);", "], ropedrum.p1);")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := *d
			broken.Snippet = tt.edit.Replace(d.Snippet)
			require.NotEqual(t, d.Snippet, broken.Snippet)

			v, err := e.CheckSnippet(f, &broken, d.Vectors)
			var mm *MismatchError
			require.True(t, errors.As(err, &mm), "got %v", err)
			assert.False(t, v.Match)
		})
	}
}
