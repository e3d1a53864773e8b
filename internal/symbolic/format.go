package symbolic

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Dialect selects the target syntax of [Format].
type Dialect int

const (
	// Plain is the human-readable form used for keys and transcripts.
	Plain Dialect = iota
	// JS targets JavaScript with Math.* calls.
	JS
	// Go targets Go with math.* calls.
	Go
)

func (d Dialect) String() string {
	switch d {
	case JS:
		return "js"
	case Go:
		return "go"
	default:
		return "plain"
	}
}

// Ext is the file extension for snippets in this dialect.
func (d Dialect) Ext() string {
	switch d {
	case JS:
		return "js"
	case Go:
		return "go"
	default:
		return "txt"
	}
}

// ParseDialect maps a name such as "js" or "go" to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "text", "":
		return Plain, nil
	case "js", "javascript":
		return JS, nil
	case "go", "golang":
		return Go, nil
	}
	return Plain, fmt.Errorf("unknown dialect %q (want plain, js or go)", s)
}

// Format renders e as flat arithmetic text in the given dialect.
func Format(e Expr, d Dialect) string {
	return printer{d: d}.node(e)
}

func plainString(e Expr) string { return printer{d: Plain}.node(e) }

const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

type printer struct{ d Dialect }

func (p printer) child(e Expr) string {
	if p.d == Plain {
		return e.String()
	}
	return p.node(e)
}

func (p printer) wrap(e Expr, min int) string {
	s := p.child(e)
	if p.prec(e) < min {
		return "(" + s + ")"
	}
	return s
}

func (p printer) prec(e Expr) int {
	switch v := e.(type) {
	case *Num:
		switch {
		case !v.IsInt() && v.smallDenom():
			return precMul
		case v.Sign() < 0:
			return precUnary
		}
		return precAtom
	case *Add:
		return precAdd
	case *Mul:
		return precMul
	case *Pow:
		if n, ok := v.exp.(*Num); ok {
			if n.Sign() < 0 {
				return precMul
			}
			if n.val.Cmp(half.val) == 0 {
				return precAtom
			}
		}
		if p.d == Plain {
			return precPow
		}
		return precAtom
	}
	return precAtom
}

func (p printer) node(e Expr) string {
	switch v := e.(type) {
	case *Num:
		return p.num(v)
	case *Sym:
		return v.name
	case piConst:
		switch p.d {
		case JS:
			return "Math.PI"
		case Go:
			return "math.Pi"
		}
		return "pi"
	case *Add:
		var sb strings.Builder
		for i, t := range v.terms {
			s := p.wrap(t, precAdd)
			if i == 0 {
				sb.WriteString(s)
				continue
			}
			if strings.HasPrefix(s, "-") {
				sb.WriteString(" - ")
				sb.WriteString(s[1:])
			} else {
				sb.WriteString(" + ")
				sb.WriteString(s)
			}
		}
		return sb.String()
	case *Mul:
		return p.product(v.factors)
	case *Pow:
		if n, ok := v.exp.(*Num); ok {
			if n.Sign() < 0 {
				return p.product([]Expr{v})
			}
			if n.val.Cmp(half.val) == 0 {
				return p.call("sqrt", v.base)
			}
		}
		if p.d == Plain {
			return p.wrap(v.base, precAtom) + "^" + p.wrap(v.exp, precAtom)
		}
		return p.call("pow", v.base, v.exp)
	case *Func:
		return p.call(v.name, v.arg)
	case *Atan2:
		return p.call("atan2", v.y, v.x)
	}
	panic(fmt.Sprintf("symbolic: cannot format %T", e))
}

var callNames = map[Dialect]map[string]string{
	JS: {"sqrt": "Math.sqrt", "pow": "Math.pow", "sin": "Math.sin", "cos": "Math.cos", "asin": "Math.asin", "ln": "Math.log", "atan2": "Math.atan2"},
	Go: {"sqrt": "math.Sqrt", "pow": "math.Pow", "sin": "math.Sin", "cos": "math.Cos", "asin": "math.Asin", "ln": "math.Log", "atan2": "math.Atan2"},
}

func (p printer) call(name string, args ...Expr) string {
	fn := name
	if m, ok := callNames[p.d]; ok {
		fn = m[name]
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.child(a)
	}
	return fn + "(" + strings.Join(parts, ", ") + ")"
}

// product renders factors as "num / den", moving negative powers below the bar.
func (p printer) product(factors []Expr) string {
	coeff := big.NewRat(1, 1)
	var num, den []string
	for _, f := range factors {
		if n, ok := f.(*Num); ok {
			coeff.Mul(coeff, n.val)
			continue
		}
		if pw, ok := f.(*Pow); ok {
			if n, ok := pw.exp.(*Num); ok && n.Sign() < 0 {
				inv := PowOf(pw.base, ratNum(new(big.Rat).Neg(n.val)))
				den = append(den, p.wrap(inv, precUnary))
				continue
			}
		}
		num = append(num, p.wrap(f, precUnary))
	}

	sign := ""
	if coeff.Sign() < 0 {
		sign = "-"
		coeff.Neg(coeff)
	}
	var head []string
	switch {
	case coeff.IsInt():
		if coeff.Num().Cmp(big.NewInt(1)) != 0 || len(num) == 0 {
			head = append(head, p.intLit(coeff.Num()))
		}
	case (&Num{val: coeff}).smallDenom():
		if coeff.Num().Cmp(big.NewInt(1)) != 0 || len(num) == 0 {
			head = append(head, p.intLit(coeff.Num()))
		}
		den = append([]string{p.intLit(coeff.Denom())}, den...)
	default:
		f, _ := coeff.Float64()
		head = append(head, floatLit(f))
	}
	num = append(head, num...)

	s := sign + strings.Join(num, " * ")
	switch len(den) {
	case 0:
		return s
	case 1:
		return s + " / " + den[0]
	}
	return s + " / (" + strings.Join(den, " * ") + ")"
}

func (p printer) num(n *Num) string {
	if p.d == Plain {
		return n.plain()
	}
	if n.IsInt() {
		return p.intLit(n.val.Num())
	}
	if n.smallDenom() {
		return p.product([]Expr{n})
	}
	return floatLit(n.Float64())
}

func (p printer) intLit(i *big.Int) string {
	if p.d == Plain {
		return i.String()
	}
	if i.BitLen() <= 53 {
		return i.String() + ".0"
	}
	f, _ := new(big.Float).SetInt(i).Float64()
	return floatLit(f)
}

// floatLit renders f so that it reads back as a floating-point literal.
func floatLit(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}
