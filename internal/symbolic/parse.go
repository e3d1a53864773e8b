package symbolic

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math/big"
	"strings"
)

// Parse reads an expression written in the JS or Go dialect. Plain output
// uses ^ for powers and is not accepted.
func Parse(src string) (Expr, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return fromAST(node)
}

func fromAST(n ast.Expr) (Expr, error) {
	switch v := n.(type) {
	case *ast.ParenExpr:
		return fromAST(v.X)

	case *ast.BasicLit:
		if v.Kind != token.INT && v.Kind != token.FLOAT {
			return nil, fmt.Errorf("%w: literal %s", ErrParse, v.Value)
		}
		r, ok := new(big.Rat).SetString(strings.ReplaceAll(v.Value, "_", ""))
		if !ok {
			return nil, fmt.Errorf("%w: number %s", ErrParse, v.Value)
		}
		return ratNum(r), nil

	case *ast.Ident:
		if v.Name == "pi" {
			return Pi, nil
		}
		return S(v.Name), nil

	case *ast.SelectorExpr:
		if isMathPkg(v.X) && strings.EqualFold(v.Sel.Name, "pi") {
			return Pi, nil
		}
		return nil, fmt.Errorf("%w: unsupported selector %s", ErrParse, v.Sel.Name)

	case *ast.UnaryExpr:
		x, err := fromAST(v.X)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case token.SUB:
			return NegOf(x), nil
		case token.ADD:
			return x, nil
		}
		return nil, fmt.Errorf("%w: unary operator %s", ErrParse, v.Op)

	case *ast.BinaryExpr:
		x, err := fromAST(v.X)
		if err != nil {
			return nil, err
		}
		y, err := fromAST(v.Y)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case token.ADD:
			return AddOf(x, y), nil
		case token.SUB:
			return Minus(x, y), nil
		case token.MUL:
			return MulOf(x, y), nil
		case token.QUO:
			return QuoOf(x, y), nil
		}
		return nil, fmt.Errorf("%w: operator %s", ErrParse, v.Op)

	case *ast.CallExpr:
		return callFromAST(v)
	}
	return nil, fmt.Errorf("%w: unsupported syntax %T", ErrParse, n)
}

func callFromAST(c *ast.CallExpr) (Expr, error) {
	var name string
	switch fn := c.Fun.(type) {
	case *ast.Ident:
		name = fn.Name
	case *ast.SelectorExpr:
		if !isMathPkg(fn.X) {
			return nil, fmt.Errorf("%w: call on non-math receiver", ErrParse)
		}
		name = strings.ToLower(fn.Sel.Name)
	default:
		return nil, fmt.Errorf("%w: unsupported call", ErrParse)
	}

	args := make([]Expr, len(c.Args))
	for i, a := range c.Args {
		e, err := fromAST(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrParse, name, n, len(args))
		}
		return nil
	}

	switch name {
	case "sqrt", "sin", "cos", "asin", "log", "ln":
		if err := want(1); err != nil {
			return nil, err
		}
	case "pow", "atan2":
		if err := want(2); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown function %s", ErrParse, name)
	}

	switch name {
	case "sqrt":
		return SqrtOf(args[0]), nil
	case "sin":
		return SinOf(args[0]), nil
	case "cos":
		return CosOf(args[0]), nil
	case "asin":
		return AsinOf(args[0]), nil
	case "log", "ln":
		return LnOf(args[0]), nil
	case "pow":
		return PowOf(args[0], args[1]), nil
	default:
		return Atan2Of(args[0], args[1]), nil
	}
}

func isMathPkg(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && (id.Name == "Math" || id.Name == "math")
}
