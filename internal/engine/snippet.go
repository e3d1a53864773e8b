package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

var (
	jsFunc   = regexp.MustCompile(`^function (\w+)\(`)
	jsPget   = regexp.MustCompile(`^let (\w+) = pget\(system\.(positions|velocities), \w+\.(\w+)\);$`)
	jsLet    = regexp.MustCompile(`^let (\w+) = (.+);$`)
	jsField  = regexp.MustCompile(`^(\w+)\.(\w+)$`)
	jsSet    = regexp.MustCompile(`^sparsepset\(result, \[(\w+), (\w+)\], \w+\.(\w+)\);$`)
	jsReturn = regexp.MustCompile(`^return (-?)acceleration;$`)

	goFunc   = regexp.MustCompile(`^func (\w+)\(`)
	goIndex  = regexp.MustCompile(`^(\w+) := (\w+)\[([01])\]$`)
	goGrad   = regexp.MustCompile(`^g(\d+) = \[2\]float64\{$`)
	indexRHS = regexp.MustCompile(`^(\w+)\[([01])\]$`)
)

// snippetRun is what one execution of an exported snippet produced: the
// per-particle gradient in storage order and the returned acceleration.
type snippetRun struct {
	grads    map[string][2]float64
	accel    float64
	hasAccel bool
}

// solverState is the storage an exported snippet reads from: per-role
// position and velocity pairs in the family's axis order, and parameter
// fields on the constraint object.
type solverState struct {
	pos, vel map[string][2]float64
	roles    []string
	fields   map[string]float64
	params   map[string]float64
}

func newSolverState(f constraints.Family, v constraints.Vector) solverState {
	st := solverState{
		pos:    map[string][2]float64{},
		vel:    map[string][2]float64{},
		fields: map[string]float64{},
		params: map[string]float64{},
	}
	for _, p := range f.Particles() {
		pos, vel := [2]float64{v[p.X], v[p.Y]}, [2]float64{v[p.VX], v[p.VY]}
		if f.Order() == constraints.YX {
			pos, vel = [2]float64{pos[1], pos[0]}, [2]float64{vel[1], vel[0]}
		}
		st.pos[p.Role], st.vel[p.Role] = pos, vel
		st.roles = append(st.roles, p.Role)
	}
	s := &snippet{f: f}
	for _, p := range f.Params() {
		st.fields[s.paramField(p)] = v[p]
		st.params[p] = v[p]
	}
	return st
}

// CheckSnippet executes the exported snippet text of d at every vector and
// compares what it returns with the derived gradient row and acceleration
// term. The snippet's own extraction lines decide which storage slot feeds
// which coordinate, so a swapped axis, a wrong particle assignment or a
// missing negation shows up as a mismatch.
func (e *Engine) CheckSnippet(f constraints.Family, d *Derivation, vectors []NamedVector) (Verdict, error) {
	v := Verdict{Subject: "snippet evaluation (" + d.Dialect.String() + ")", Method: MethodNumeric, Match: true}
	if d.Snippet == "" || len(vectors) == 0 {
		v.Match = false
		return v, fmt.Errorf("%w: %s", ErrInconclusive, v.Subject)
	}

	compare := func(name, vector string, want, got float64) error {
		abs, rel := difference(want, got)
		v.MaxAbsDiff = max(v.MaxAbsDiff, abs)
		v.MaxRelDiff = max(v.MaxRelDiff, rel)
		if rel > e.opts.RoundTripTolerance {
			v.Match = false
			return &MismatchError{Subject: "snippet " + name, Vector: vector, A: want, B: got, FormulaA: "derived", FormulaB: "snippet"}
		}
		return nil
	}

	for _, nv := range vectors {
		run, err := runSnippet(d.Snippet, d.Dialect, newSolverState(f, nv.Values))
		if err != nil {
			v.Match = false
			return v, fmt.Errorf("snippet at %s: %w", nv.Name, err)
		}
		for _, p := range f.Particles() {
			got, ok := run.grads[p.Role]
			if !ok {
				v.Match = false
				return v, fmt.Errorf("snippet at %s: no gradient assigned to %s", nv.Name, p.Role)
			}
			c := p.Coords(f.Order())
			for k := range c {
				want, err := entryExpr(d, c[k]).Eval(nv.Values)
				if err != nil {
					return v, fmt.Errorf("dC/d%s at %s: %w", c[k], nv.Name, err)
				}
				if err := compare(fmt.Sprintf("%s[%d]", p.Role, k), nv.Name, want, got[k]); err != nil {
					return v, err
				}
			}
		}
		if !run.hasAccel {
			v.Match = false
			return v, fmt.Errorf("snippet at %s: acceleration is never returned", nv.Name)
		}
		want, err := d.Acceleration.Expr.Eval(nv.Values)
		if err != nil {
			return v, fmt.Errorf("accel at %s: %w", nv.Name, err)
		}
		if e.opts.Negate {
			want = -want
		}
		if err := compare("acceleration", nv.Name, want, run.accel); err != nil {
			return v, err
		}
		v.Points++
	}
	return v, nil
}

func entryExpr(d *Derivation, coord string) symbolic.Expr {
	for _, g := range d.Gradient {
		if g.Coord == coord {
			return g.Expr
		}
	}
	return symbolic.N(0)
}

func evalText(text string, env symbolic.Env) (float64, error) {
	x, err := symbolic.Parse(text)
	if err != nil {
		return 0, err
	}
	return x.Eval(env)
}

func runSnippet(text string, dialect symbolic.Dialect, st solverState) (*snippetRun, error) {
	switch dialect {
	case symbolic.JS:
		return runJS(text, st)
	case symbolic.Go:
		return runGo(text, st)
	}
	return nil, fmt.Errorf("engine: no snippet runner for %s dialect", dialect)
}

func runJS(text string, st solverState) (*snippetRun, error) {
	run := &snippetRun{grads: map[string][2]float64{}}
	var env symbolic.Env
	var arrays map[string][2]float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case jsFunc.MatchString(line):
			env, arrays = symbolic.Env{}, map[string][2]float64{}
		case env == nil || line == "":
		case jsPget.MatchString(line):
			m := jsPget.FindStringSubmatch(line)
			src := st.pos
			if m[2] == "velocities" {
				src = st.vel
			}
			pair, ok := src[m[3]]
			if !ok {
				return nil, fmt.Errorf("unknown particle %q", m[3])
			}
			arrays[m[1]] = pair
		case jsSet.MatchString(line):
			m := jsSet.FindStringSubmatch(line)
			run.grads[m[3]] = [2]float64{env[m[1]], env[m[2]]}
		case jsReturn.MatchString(line):
			m := jsReturn.FindStringSubmatch(line)
			run.accel, run.hasAccel = env["acceleration"], true
			if m[1] == "-" {
				run.accel = -run.accel
			}
		case jsLet.MatchString(line):
			m := jsLet.FindStringSubmatch(line)
			val, err := jsValue(m[2], env, arrays, st)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m[1], err)
			}
			env[m[1]] = val
		}
	}
	return run, nil
}

func jsValue(rhs string, env symbolic.Env, arrays map[string][2]float64, st solverState) (float64, error) {
	if m := indexRHS.FindStringSubmatch(rhs); m != nil {
		pair, ok := arrays[m[1]]
		if !ok {
			return 0, fmt.Errorf("unknown array %q", m[1])
		}
		k, _ := strconv.Atoi(m[2])
		return pair[k], nil
	}
	if m := jsField.FindStringSubmatch(rhs); m != nil && m[1] != "Math" {
		val, ok := st.fields[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown field %q", m[2])
		}
		return val, nil
	}
	return evalText(rhs, env)
}

func runGo(text string, st solverState) (*snippetRun, error) {
	run := &snippetRun{grads: map[string][2]float64{}}
	var env symbolic.Env
	var arrays map[string][2]float64
	var fn string
	grad, pending := -1, []string(nil)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case goFunc.MatchString(line):
			fn = goFunc.FindStringSubmatch(line)[1]
			env, arrays = symbolic.Env{}, map[string][2]float64{}
			for p, val := range st.params {
				env[p] = val
			}
			for i, role := range st.roles {
				arrays[fmt.Sprintf("pos%d", i+1)] = st.pos[role]
				arrays[fmt.Sprintf("vel%d", i+1)] = st.vel[role]
			}
		case env == nil || line == "" || strings.HasPrefix(line, "//"):
		case goIndex.MatchString(line):
			m := goIndex.FindStringSubmatch(line)
			pair, ok := arrays[m[2]]
			if !ok {
				return nil, fmt.Errorf("unknown array %q", m[2])
			}
			k, _ := strconv.Atoi(m[3])
			env[m[1]] = pair[k]
		case goGrad.MatchString(line):
			grad, _ = strconv.Atoi(goGrad.FindStringSubmatch(line)[1])
			pending = pending[:0]
		case grad > 0 && line == "}":
			if grad > len(st.roles) || len(pending) != 2 {
				return nil, fmt.Errorf("malformed gradient g%d", grad)
			}
			var pair [2]float64
			for k, x := range pending {
				val, err := evalText(x, env)
				if err != nil {
					return nil, fmt.Errorf("g%d[%d]: %w", grad, k, err)
				}
				pair[k] = val
			}
			run.grads[st.roles[grad-1]] = pair
			grad = -1
		case grad > 0:
			pending = append(pending, strings.TrimSuffix(line, ","))
		case strings.HasPrefix(fn, "computeAcceleration") && strings.HasPrefix(line, "return "):
			val, err := evalText(strings.TrimPrefix(line, "return "), env)
			if err != nil {
				return nil, fmt.Errorf("acceleration: %w", err)
			}
			run.accel, run.hasAccel = val, true
		}
	}
	return run, nil
}
