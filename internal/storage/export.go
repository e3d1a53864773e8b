package storage

import (
	"github.com/san-kum/conlab/internal/engine"
	"github.com/san-kum/conlab/internal/symbolic"
)

type FormulaData struct {
	Name       string `json:"name"`
	Plain      string `json:"plain"`
	Code       string `json:"code,omitempty"`
	Simplified bool   `json:"simplified"`
}

type ExportData struct {
	Family      string              `json:"family"`
	AxisOrder   string              `json:"axis_order"`
	Description string              `json:"description"`
	Dialect     string              `json:"dialect"`
	Residual    string              `json:"residual"`
	Gradient    []FormulaData       `json:"gradient"`
	Accel       FormulaData         `json:"acceleration"`
	Verdicts    []engine.Verdict    `json:"verdicts"`
	Evaluations []engine.Evaluation `json:"evaluations"`
	Snippet     string              `json:"snippet,omitempty"`
}

// ExportJSON writes the formulas, verdicts and evaluations of d as JSON.
// Code carries each formula in d's dialect when that dialect is exportable.
func ExportJSON(path string, d *engine.Derivation) error {
	code := func(e symbolic.Expr) string {
		if d.Dialect == symbolic.Plain {
			return ""
		}
		return symbolic.Format(e, d.Dialect)
	}
	data := ExportData{
		Family:      d.Family,
		AxisOrder:   d.Order.String(),
		Description: d.Description,
		Dialect:     d.Dialect.String(),
		Residual:    d.Residual.String(),
		Gradient:    make([]FormulaData, len(d.Gradient)),
		Accel: FormulaData{
			Name:       "accel",
			Plain:      d.Acceleration.Expr.String(),
			Code:       code(d.Acceleration.Expr),
			Simplified: d.Acceleration.Simplified,
		},
		Verdicts:    d.Verdicts,
		Evaluations: d.Evaluations,
		Snippet:     d.Snippet,
	}
	for i, g := range d.Gradient {
		data.Gradient[i] = FormulaData{
			Name:       "dC/d" + g.Coord,
			Plain:      g.Expr.String(),
			Code:       code(g.Expr),
			Simplified: g.Simplified,
		}
	}

	return writeJSON(path, data)
}
