package engine

import (
	"errors"
	"fmt"
)

// Domain errors for derivation runs.
var (
	// ErrInconclusive indicates two formulas could not be proven equal and
	// there were no test vectors to check them numerically.
	ErrInconclusive = errors.New("engine: no symbolic proof and no test vectors")

	// ErrIncompleteVector indicates a test vector that leaves a symbol unbound.
	ErrIncompleteVector = errors.New("engine: test vector does not bind every symbol")

	// ErrTimeLeak indicates a gradient entry that still depends on time.
	ErrTimeLeak = errors.New("engine: gradient depends on the time symbol")
)

// MismatchError reports two formulas that disagree at a test vector.
type MismatchError struct {
	Subject  string
	Vector   string
	A, B     float64
	FormulaA string
	FormulaB string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("engine: %s mismatch at %s: %.12g vs %.12g (diff %.3g)\n  a = %s\n  b = %s",
		e.Subject, e.Vector, e.A, e.B, e.A-e.B, clip(e.FormulaA), clip(e.FormulaB))
}

// DerivationError wraps an error with the family and stage it came from.
type DerivationError struct {
	Family  string
	Stage   string
	Wrapped error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Family, e.Stage, e.Wrapped)
}

func (e *DerivationError) Unwrap() error {
	return e.Wrapped
}

func clip(s string) string {
	if len(s) > 240 {
		return s[:240] + "..."
	}
	return s
}
