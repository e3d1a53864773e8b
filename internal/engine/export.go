package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

// exportNamer is implemented by families that know their solver-side names.
type exportNamer interface {
	ExportName() string
	ParamField(name string) string
}

type snippet struct {
	f       constraints.Family
	d       *Derivation
	dialect symbolic.Dialect
	negate  bool
	sb      strings.Builder
}

// Export renders the gradient row and acceleration term of d as solver
// functions in the given dialect. Coordinates are read from pos[0]/pos[1]
// according to the family's axis order. With negate the acceleration
// function returns -accel.
func Export(f constraints.Family, d *Derivation, dialect symbolic.Dialect, negate bool) (string, error) {
	if dialect != symbolic.JS && dialect != symbolic.Go {
		return "", fmt.Errorf("engine: cannot export to %s dialect", dialect)
	}
	s := &snippet{f: f, d: d, dialect: dialect, negate: negate}
	if dialect == symbolic.JS {
		s.effectJS()
		s.sb.WriteString("\n")
		s.accelJS()
	} else {
		s.effectGo()
		s.sb.WriteString("\n")
		s.accelGo()
	}
	return s.sb.String(), nil
}

// RoundTrip re-parses every exported formula of d and compares it with the
// symbolic value at each vector.
func (e *Engine) RoundTrip(d *Derivation, dialect symbolic.Dialect, vectors []NamedVector) (Verdict, error) {
	v := Verdict{Subject: "export round trip (" + dialect.String() + ")", Method: MethodNumeric, Match: true}
	if len(vectors) == 0 {
		v.Match = false
		return v, fmt.Errorf("%w: %s", ErrInconclusive, v.Subject)
	}
	check := func(name string, x symbolic.Expr) error {
		text := symbolic.Format(x, dialect)
		back, err := symbolic.Parse(text)
		if err != nil {
			return fmt.Errorf("re-parse %s: %w", name, err)
		}
		for _, nv := range vectors {
			want, err := x.Eval(nv.Values)
			if err != nil {
				return fmt.Errorf("%s at %s: %w", name, nv.Name, err)
			}
			got, err := back.Eval(nv.Values)
			if err != nil {
				return fmt.Errorf("exported %s at %s: %w", name, nv.Name, err)
			}
			abs, rel := difference(want, got)
			v.MaxAbsDiff = max(v.MaxAbsDiff, abs)
			v.MaxRelDiff = max(v.MaxRelDiff, rel)
			if rel > e.opts.RoundTripTolerance {
				v.Match = false
				return &MismatchError{Subject: "exported " + name, Vector: nv.Name, A: want, B: got, FormulaA: x.String(), FormulaB: text}
			}
		}
		v.Points++
		return nil
	}
	for _, g := range d.Gradient {
		if err := check("dC/d"+g.Coord, g.Expr); err != nil {
			return v, err
		}
	}
	if err := check("accel", d.Acceleration.Expr); err != nil {
		return v, err
	}
	return v, nil
}

func (s *snippet) names() (fn, obj string) {
	if n, ok := s.f.(exportNamer); ok {
		fn = n.ExportName()
	} else {
		fn = camel(s.f.Name())
	}
	obj = strings.ToLower(fn)
	if s.f.Order() == constraints.YX {
		fn += "Y"
	}
	return fn, obj
}

func (s *snippet) paramField(p string) string {
	if n, ok := s.f.(exportNamer); ok {
		return n.ParamField(p)
	}
	return p
}

func (s *snippet) used(exprs ...symbolic.Expr) func(string) bool {
	return func(name string) bool {
		for _, x := range exprs {
			if symbolic.DependsOn(x, name) {
				return true
			}
		}
		return false
	}
}

func (s *snippet) gradientExprs() []symbolic.Expr {
	out := make([]symbolic.Expr, len(s.d.Gradient))
	for i, g := range s.d.Gradient {
		out[i] = g.Expr
	}
	return out
}

func (s *snippet) line(format string, args ...any) {
	fmt.Fprintf(&s.sb, format+"\n", args...)
}

func (s *snippet) effectJS() {
	fn, obj := s.names()
	uses := s.used(s.gradientExprs()...)
	order := s.f.Order()

	s.line("function computeEffect%s(result, %s, system) {", fn, obj)
	for i, p := range s.f.Particles() {
		s.line("  let pos%d = pget(system.positions, %s.%s);", i+1, obj, p.Role)
	}
	for i, p := range s.f.Particles() {
		for k, c := range p.Coords(order) {
			if uses(c) {
				s.line("  let %s = pos%d[%d];", c, i+1, k)
			}
		}
	}
	s.jsParams(obj, uses)
	s.line("")
	for _, g := range s.d.Gradient {
		s.line("  let %s = %s;", gradVar(g.Coord), symbolic.Format(g.Expr, symbolic.JS))
	}
	s.line("")
	for _, p := range s.f.Particles() {
		c := p.Coords(order)
		s.line("  sparsepset(result, [%s, %s], %s.%s);", gradVar(c[0]), gradVar(c[1]), obj, p.Role)
	}
	s.line("  return result;")
	s.line("}")
}

func (s *snippet) accelJS() {
	fn, obj := s.names()
	uses := s.used(s.d.Acceleration.Expr)
	order := s.f.Order()

	s.line("function computeAcceleration%s(%s, system) {", fn, obj)
	for i, p := range s.f.Particles() {
		s.line("  let pos%d = pget(system.positions, %s.%s);", i+1, obj, p.Role)
		s.line("  let vel%d = pget(system.velocities, %s.%s);", i+1, obj, p.Role)
	}
	for i, p := range s.f.Particles() {
		coords, vels := p.Coords(order), p.Velocities(order)
		for k := range coords {
			if uses(coords[k]) {
				s.line("  let %s = pos%d[%d];", coords[k], i+1, k)
			}
			if uses(vels[k]) {
				s.line("  let %s = vel%d[%d];", vels[k], i+1, k)
			}
		}
	}
	s.jsParams(obj, uses)
	s.line("")
	s.line("  let acceleration = %s;", symbolic.Format(s.d.Acceleration.Expr, symbolic.JS))
	if s.negate {
		s.line("  return -acceleration;")
	} else {
		s.line("  return acceleration;")
	}
	s.line("}")
}

func (s *snippet) jsParams(obj string, uses func(string) bool) {
	for _, p := range s.f.Params() {
		if uses(p) {
			s.line("  let %s = %s.%s;", p, obj, s.paramField(p))
		}
	}
}

func (s *snippet) effectGo() {
	fn, _ := s.names()
	uses := s.used(s.gradientExprs()...)
	order := s.f.Order()
	parts := s.f.Particles()

	args := make([]string, 0, len(parts)+1)
	for i := range parts {
		args = append(args, fmt.Sprintf("pos%d", i+1))
	}
	sig := strings.Join(args, ", ") + " [2]float64"
	if ps := s.usedParams(uses); len(ps) > 0 {
		sig += ", " + strings.Join(ps, ", ") + " float64"
	}
	results := make([]string, len(parts))
	for i := range parts {
		results[i] = fmt.Sprintf("g%d", i+1)
	}

	s.line("// computeEffect%s returns the constraint gradient for each particle in storage order.", fn)
	s.line("func computeEffect%s(%s) (%s [2]float64) {", fn, sig, strings.Join(results, ", "))
	for i, p := range parts {
		for k, c := range p.Coords(order) {
			if uses(c) {
				s.line("\t%s := pos%d[%d]", c, i+1, k)
			}
		}
	}
	s.line("")
	for i, p := range parts {
		c := p.Coords(order)
		s.line("\tg%d = [2]float64{", i+1)
		s.line("\t\t%s,", symbolic.Format(s.entry(c[0]), symbolic.Go))
		s.line("\t\t%s,", symbolic.Format(s.entry(c[1]), symbolic.Go))
		s.line("\t}")
	}
	s.line("\treturn %s", strings.Join(results, ", "))
	s.line("}")
}

func (s *snippet) accelGo() {
	fn, _ := s.names()
	uses := s.used(s.d.Acceleration.Expr)
	order := s.f.Order()
	parts := s.f.Particles()

	args := make([]string, 0, 2*len(parts))
	for i := range parts {
		args = append(args, fmt.Sprintf("pos%d", i+1))
	}
	for i := range parts {
		args = append(args, fmt.Sprintf("vel%d", i+1))
	}
	sig := strings.Join(args, ", ") + " [2]float64"
	if ps := s.usedParams(uses); len(ps) > 0 {
		sig += ", " + strings.Join(ps, ", ") + " float64"
	}

	s.line("// computeAcceleration%s returns the velocity-dependent term of the constraint's second derivative.", fn)
	s.line("func computeAcceleration%s(%s) float64 {", fn, sig)
	for i, p := range parts {
		coords, vels := p.Coords(order), p.Velocities(order)
		for k := range coords {
			if uses(coords[k]) {
				s.line("\t%s := pos%d[%d]", coords[k], i+1, k)
			}
			if uses(vels[k]) {
				s.line("\t%s := vel%d[%d]", vels[k], i+1, k)
			}
		}
	}
	s.line("")
	expr := symbolic.Format(s.d.Acceleration.Expr, symbolic.Go)
	if s.negate {
		s.line("\treturn -(%s)", expr)
	} else {
		s.line("\treturn %s", expr)
	}
	s.line("}")
}

func (s *snippet) usedParams(uses func(string) bool) []string {
	var out []string
	for _, p := range s.f.Params() {
		if uses(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *snippet) entry(coord string) symbolic.Expr {
	for _, g := range s.d.Gradient {
		if g.Coord == coord {
			return g.Expr
		}
	}
	return symbolic.N(0)
}

func gradVar(coord string) string { return "dC_d" + coord }

func camel(name string) string {
	var sb strings.Builder
	up := true
	for _, r := range name {
		if r == '_' || r == '-' {
			up = true
			continue
		}
		if up {
			r = unicode.ToUpper(r)
			up = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
