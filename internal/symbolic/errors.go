package symbolic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSimplifyTimeout indicates a simplification ran out of time or node budget.
	ErrSimplifyTimeout = errors.New("symbolic: simplification did not finish in bounded time")

	// ErrUnboundSymbol indicates evaluation hit a symbol with no value.
	ErrUnboundSymbol = errors.New("symbolic: unbound symbol")

	// ErrParse indicates text that is not a supported flat arithmetic expression.
	ErrParse = errors.New("symbolic: cannot parse expression")
)

// Guard names the domain check an evaluation violated.
type Guard string

const (
	GuardSqrt       Guard = "sqrt of negative"
	GuardPow        Guard = "fractional power of negative"
	GuardDivision   Guard = "division by zero"
	GuardAsin       Guard = "asin argument outside [-1, 1]"
	GuardLn         Guard = "log of non-positive"
	GuardAtan2      Guard = "atan2(0, 0)"
	GuardNonFinite  Guard = "non-finite result"
	GuardDegenerate Guard = "degenerate configuration"
)

// DomainError reports an evaluation that landed outside a function's domain.
// Values holds the offending variable values of the guarded subexpression.
type DomainError struct {
	Guard  Guard
	Expr   string
	Arg    float64
	Values map[string]float64
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "symbolic: domain violation (%s): argument %g in %s", e.Guard, e.Arg, truncate(e.Expr, 160))
	if len(e.Values) > 0 {
		names := make([]string, 0, len(e.Values))
		for n := range e.Values {
			names = append(names, n)
		}
		sort.Strings(names)
		sb.WriteString(" at ")
		for i, n := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%g", n, e.Values[n])
		}
	}
	return sb.String()
}

func domainErr(g Guard, e Expr, arg float64, env Env) *DomainError {
	vals := make(map[string]float64)
	for _, name := range e.freeSyms() {
		if v, ok := env[name]; ok {
			vals[name] = v
		}
	}
	return &DomainError{Guard: g, Expr: e.String(), Arg: arg, Values: vals}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
