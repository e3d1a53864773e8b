// Package symbolic is a small computer-algebra kernel for constraint derivations.
//
// Expressions are immutable trees built through constructors that keep a local
// canonical form (flattened sums and products, collected like terms, merged
// powers, exact rational coefficients):
//
//   - [Num]: exact rational constant
//   - [Sym]: named real scalar
//   - [Add], [Mul], [Pow]: arithmetic
//   - [Func]: sin, cos, asin, ln
//   - [Atan2]: two-argument arctangent
//
// Every node supports symbolic differentiation ([Expr.Diff]), substitution
// ([Expr.Sub]) and guarded float64 evaluation ([Expr.Eval]). Deeper
// simplification ([Canonicalize], [ProveZero]) runs under a context and a node
// budget so that a runaway expansion surfaces as [ErrSimplifyTimeout] instead
// of a hang.
//
// [Format] lowers an expression to flat arithmetic text for a target language
// and [Parse] reads that text back.
//
// # Example
//
//	x, y := symbolic.S("x"), symbolic.S("y")
//	r := symbolic.SqrtOf(symbolic.AddOf(symbolic.PowOf(x, symbolic.N(2)), symbolic.PowOf(y, symbolic.N(2))))
//	dr := r.Diff("x") // x*(x^2 + y^2)^(-1/2)
//	v, err := dr.Eval(symbolic.Env{"x": 3, "y": 4})
package symbolic
