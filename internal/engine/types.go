package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

// TimeSymbol is the parameter of the constant-velocity motion model.
const TimeSymbol = "t"

// Options configures a derivation run.
type Options struct {
	// SimplifyTimeout bounds each simplification attempt.
	SimplifyTimeout time.Duration
	// Budget bounds the nodes a simplification may visit.
	Budget int
	// Tolerance is the relative tolerance of numeric verification.
	Tolerance float64
	// FDTolerance is the relative tolerance of finite-difference checks.
	FDTolerance float64
	// RoundTripTolerance bounds the relative error of re-parsed exports.
	RoundTripTolerance float64

	Dialect symbolic.Dialect
	// Negate exports -accel, the sign the external solver consumes.
	Negate bool

	Vectors       []NamedVector
	RandomVectors int
	Seed          int64
	// Parallel caps concurrent derivations in DeriveAll; zero means unlimited.
	Parallel int

	Logger *slog.Logger
}

// DefaultOptions returns the settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		SimplifyTimeout:    5 * time.Second,
		Budget:             symbolic.DefaultBudget,
		Tolerance:          1e-9,
		FDTolerance:        1e-5,
		RoundTripTolerance: 1e-9,
		Dialect:            symbolic.JS,
		Negate:             true,
		RandomVectors:      3,
		Seed:               42,
	}
}

// NamedVector is a test vector addressed by name. An empty Family applies to
// every family that it binds completely.
type NamedVector struct {
	Name   string
	Family string
	Values constraints.Vector
}

// Method names how a verdict was reached.
type Method string

const (
	MethodSymbolic         Method = "symbolic"
	MethodNumeric          Method = "numeric"
	MethodFiniteDifference Method = "finite-difference"
)

// Proof reports whether the method establishes identity rather than
// agreement at sample points.
func (m Method) Proof() bool { return m == MethodSymbolic }

// Verdict is the outcome of comparing two formulas.
type Verdict struct {
	Subject    string  `json:"subject"`
	Method     Method  `json:"method"`
	Match      bool    `json:"match"`
	Points     int     `json:"points"`
	MaxAbsDiff float64 `json:"max_abs_diff"`
	MaxRelDiff float64 `json:"max_rel_diff"`
}

func (v Verdict) String() string {
	status := "MATCH"
	if !v.Match {
		status = "MISMATCH"
	}
	switch v.Method {
	case MethodSymbolic:
		return fmt.Sprintf("%s: %s (symbolic proof)", v.Subject, status)
	case MethodNumeric:
		return fmt.Sprintf("%s: %s (numeric at %d points only, max rel diff %.2e; not a proof)", v.Subject, status, v.Points, v.MaxRelDiff)
	default:
		return fmt.Sprintf("%s: %s (%s at %d points, max rel diff %.2e)", v.Subject, status, v.Method, v.Points, v.MaxRelDiff)
	}
}

// Entry is one coordinate of a gradient row.
type Entry struct {
	Coord      string
	Expr       symbolic.Expr
	Simplified bool
}

// Term is a derived scalar such as the acceleration term.
type Term struct {
	Expr       symbolic.Expr
	Simplified bool
}

// Evaluation holds a derivation evaluated at one test vector.
type Evaluation struct {
	Vector       string             `json:"vector"`
	Residual     float64            `json:"residual"`
	Gradient     []float64          `json:"gradient"`
	Magnitudes   map[string]float64 `json:"magnitudes"`
	Acceleration float64            `json:"acceleration"`
}

// Derivation is the full result for one family.
type Derivation struct {
	Family       string
	Order        constraints.AxisOrder
	Description  string
	Residual     symbolic.Expr
	Gradient     []Entry
	Acceleration Term
	Verdicts     []Verdict
	Vectors      []NamedVector
	Evaluations  []Evaluation
	Dialect      symbolic.Dialect
	Snippet      string
	Transcript   []string
	Elapsed      time.Duration
}

func (d *Derivation) logf(format string, args ...any) {
	d.Transcript = append(d.Transcript, fmt.Sprintf(format, args...))
}

// Formulas returns the derived formulas as name, plain text pairs in row order.
func (d *Derivation) Formulas() [][2]string {
	out := [][2]string{{"C", d.Residual.String()}}
	for _, g := range d.Gradient {
		out = append(out, [2]string{"dC/d" + g.Coord, g.Expr.String()})
	}
	return append(out, [2]string{"accel", d.Acceleration.Expr.String()})
}
