package symbolic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	x = S("x")
	y = S("y")
)

func TestConstructorsCollect(t *testing.T) {
	tests := []struct {
		name string
		got  Expr
		want Expr
	}{
		{"like terms", AddOf(x, x), MulOf(N(2), x)},
		{"cancelling terms", AddOf(x, NegOf(x)), N(0)},
		{"constant fold", AddOf(N(2), F(1, 2)), F(5, 2)},
		{"merged powers", MulOf(x, x, x), PowOf(x, N(3))},
		{"reciprocal", MulOf(x, PowOf(x, N(-1))), N(1)},
		{"square of root", MulOf(SqrtOf(x), SqrtOf(x)), x},
		{"power of power", PowOf(PowOf(x, F(1, 2)), N(4)), PowOf(x, N(2))},
		{"power of product", PowOf(MulOf(x, y), N(2)), MulOf(PowOf(x, N(2)), PowOf(y, N(2)))},
		{"exact constant power", PowOf(F(2, 3), N(-2)), F(9, 4)},
		{"zero factor", MulOf(x, N(0), y), N(0)},
		{"commutative", MulOf(y, x), MulOf(x, y)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Equal(tt.got, tt.want), "got %s, want %s", tt.got, tt.want)
		})
	}
}

func TestDiff(t *testing.T) {
	env := Env{"x": 0.7, "y": -1.3}
	tests := []struct {
		name string
		f    Expr
		df   func(x, y float64) float64
	}{
		{"polynomial", AddOf(MulOf(N(3), PowOf(x, N(2))), MulOf(x, y)), func(x, y float64) float64 { return 6*x + y }},
		{"quotient", QuoOf(x, AddOf(N(1), PowOf(y, N(2)))), func(x, y float64) float64 { return 1 / (1 + y*y) }},
		{"sqrt", SqrtOf(AddOf(PowOf(x, N(2)), PowOf(y, N(2)))), func(x, y float64) float64 { return x / math.Hypot(x, y) }},
		{"asin", AsinOf(MulOf(F(1, 2), x)), func(x, y float64) float64 { return 0.5 / math.Sqrt(1-x*x/4) }},
		{"atan2", Atan2Of(y, x), func(x, y float64) float64 { return -y / (x*x + y*y) }},
		{"sin cos", MulOf(SinOf(x), CosOf(y)), func(x, y float64) float64 { return math.Cos(x) * math.Cos(y) }},
		{"ln", LnOf(PowOf(x, N(2))), func(x, y float64) float64 { return 2 / x }},
		{"symbolic exponent", PowOf(N(2), x), func(x, y float64) float64 { return math.Pow(2, x) * math.Ln2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f.Diff("x").Eval(env)
			require.NoError(t, err)
			assert.InDelta(t, tt.df(env["x"], env["y"]), got, 1e-12)
		})
	}
}

func TestDiffIndependentSymbol(t *testing.T) {
	f := MulOf(SinOf(y), Atan2Of(y, N(3)))
	assert.True(t, IsZero(f.Diff("x")))
}

func TestSub(t *testing.T) {
	f := AddOf(PowOf(x, N(2)), y)
	g := f.Sub("x", AddOf(y, N(1)))
	v, err := g.Eval(Env{"y": 2})
	require.NoError(t, err)
	assert.Equal(t, 11.0, v)
	assert.False(t, DependsOn(g, "x"))
	assert.Equal(t, []string{"y"}, FreeSymbols(g))
}

func TestEvalGuards(t *testing.T) {
	tests := []struct {
		name  string
		e     Expr
		env   Env
		guard Guard
	}{
		{"sqrt of negative", SqrtOf(x), Env{"x": -1}, GuardSqrt},
		{"inverse sqrt of negative", PowOf(x, F(-1, 2)), Env{"x": -4}, GuardSqrt},
		{"cube root of negative", PowOf(x, F(1, 3)), Env{"x": -8}, GuardPow},
		{"division by zero", QuoOf(y, x), Env{"x": 0, "y": 1}, GuardDivision},
		{"asin out of range", AsinOf(QuoOf(y, x)), Env{"x": 1, "y": 2}, GuardAsin},
		{"log of zero", LnOf(x), Env{"x": 0}, GuardLn},
		{"atan2 at origin", Atan2Of(y, x), Env{"x": 0, "y": 0}, GuardAtan2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.e.Eval(tt.env)
			var de *DomainError
			require.True(t, errors.As(err, &de), "want DomainError, got %v", err)
			assert.Equal(t, tt.guard, de.Guard)
			assert.NotEmpty(t, de.Values)
		})
	}
}

func TestEvalUnbound(t *testing.T) {
	_, err := AddOf(x, y).Eval(Env{"x": 1})
	assert.ErrorIs(t, err, ErrUnboundSymbol)
	assert.Contains(t, err.Error(), "y")
}

func TestFormatDialects(t *testing.T) {
	r := SqrtOf(AddOf(PowOf(x, N(2)), PowOf(y, N(2))))
	assert.Equal(t, "Math.sqrt(Math.pow(x, 2.0) + Math.pow(y, 2.0))", Format(r, JS))
	assert.Equal(t, "math.Sqrt(math.Pow(x, 2.0) + math.Pow(y, 2.0))", Format(r, Go))
	assert.Equal(t, "sqrt(x^2 + y^2)", Format(r, Plain))

	assert.Equal(t, "x / y", Format(QuoOf(x, y), JS))
	assert.Equal(t, "-x", Format(NegOf(x), Go))
	assert.Equal(t, "x - y", Format(Minus(x, y), JS))
	assert.Equal(t, "x / 2.0", Format(MulOf(F(1, 2), x), JS))
	assert.Equal(t, "Math.PI", Format(Pi, JS))
}

func TestFormatParseRoundTrip(t *testing.T) {
	e := AddOf(
		MulOf(F(-3, 7), QuoOf(SqrtOf(AddOf(PowOf(x, N(2)), N(4))), y)),
		Atan2Of(NegOf(y), x),
		AsinOf(QuoOf(N(1), AddOf(PowOf(x, N(2)), N(2)))),
		MulOf(Pi, PowOf(y, N(-2))),
		NFloat(0.1),
	)
	env := Env{"x": 1.25, "y": -0.8}
	want, err := e.Eval(env)
	require.NoError(t, err)

	for _, d := range []Dialect{JS, Go} {
		t.Run(d.String(), func(t *testing.T) {
			back, err := Parse(Format(e, d))
			require.NoError(t, err)
			got, err := back.Eval(env)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, src := range []string{"x ^ 2", "foo(x)", "Math.pow(x)", "x % 2", "\"s\"", "fmt.Sqrt(x)", "x +"} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("JavaScript")
	require.NoError(t, err)
	assert.Equal(t, JS, d)
	d, err = ParseDialect("go")
	require.NoError(t, err)
	assert.Equal(t, Go, d)
	_, err = ParseDialect("fortran")
	assert.Error(t, err)
}

func TestCanonicalizeExpands(t *testing.T) {
	e := PowOf(AddOf(x, y), N(2))
	c, err := Canonicalize(context.Background(), e, 0)
	require.NoError(t, err)
	want := AddOf(PowOf(x, N(2)), MulOf(N(2), x, y), PowOf(y, N(2)))
	assert.True(t, Equal(c, want), "got %s", c)
}

func TestCanonicalizeBudget(t *testing.T) {
	wide := PowOf(AddOf(x, y, S("z"), S("w"), N(1)), N(8))
	_, err := Canonicalize(context.Background(), wide, 50)
	assert.ErrorIs(t, err, ErrSimplifyTimeout)
}

func TestCanonicalizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Canonicalize(ctx, AddOf(x, y), 0)
	assert.ErrorIs(t, err, ErrSimplifyTimeout)
}

func TestProveZero(t *testing.T) {
	ctx := context.Background()

	t.Run("binomial", func(t *testing.T) {
		e := Minus(PowOf(AddOf(x, y), N(2)), AddOf(PowOf(x, N(2)), MulOf(N(2), x, y), PowOf(y, N(2))))
		ok, err := ProveZero(ctx, e, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("common denominator", func(t *testing.T) {
		s := AddOf(x, y)
		e := AddOf(QuoOf(x, s), QuoOf(y, s), N(-1))
		ok, err := ProveZero(ctx, e, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("translation invariance of distance", func(t *testing.T) {
		x1, x2, y1, y2 := S("x1"), S("x2"), S("y1"), S("y2")
		d := SqrtOf(AddOf(PowOf(Minus(x1, x2), N(2)), PowOf(Minus(y1, y2), N(2))))
		ok, err := ProveZero(ctx, AddOf(d.Diff("x1"), d.Diff("x2")), 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-identity", func(t *testing.T) {
		ok, err := ProveZero(ctx, Minus(PowOf(x, N(2)), x), 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSize(t *testing.T) {
	assert.Equal(t, 1, Size(x))
	assert.Equal(t, 3, Size(AddOf(x, y)))
	assert.Greater(t, Size(Atan2Of(y, SqrtOf(x))), 3)
}
