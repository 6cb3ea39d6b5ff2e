package eval

import (
	"context"
	"math"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

func init() {
	unary1("ABS", func(n float64) (float64, *forgeerr.Error) { return math.Abs(n), nil })
	unary1("SQRT", func(n float64) (float64, *forgeerr.Error) {
		if n < 0 {
			return 0, forgeerr.Domain("SQRT", []interface{}{n}, "square root of negative number")
		}
		return math.Sqrt(n), nil
	})
	unary1("EXP", func(n float64) (float64, *forgeerr.Error) { return math.Exp(n), nil })
	unary1("LN", func(n float64) (float64, *forgeerr.Error) {
		if n <= 0 {
			return 0, forgeerr.Domain("LN", []interface{}{n}, "logarithm of non-positive number")
		}
		return math.Log(n), nil
	})
	unary1("LOG10", func(n float64) (float64, *forgeerr.Error) {
		if n <= 0 {
			return 0, forgeerr.Domain("LOG10", []interface{}{n}, "logarithm of non-positive number")
		}
		return math.Log10(n), nil
	})
	unary1("SIGN", func(n float64) (float64, *forgeerr.Error) {
		switch {
		case n > 0:
			return 1, nil
		case n < 0:
			return -1, nil
		default:
			return 0, nil
		}
	})
	unary1("TRUNC", func(n float64) (float64, *forgeerr.Error) { return math.Trunc(n), nil })

	binary2("MOD", func(a, b float64) (float64, *forgeerr.Error) {
		if b == 0 {
			return 0, forgeerr.Domain("MOD", []interface{}{a, b}, "division by zero")
		}
		return math.Mod(a, b), nil
	})
	binary2("POWER", func(a, b float64) (float64, *forgeerr.Error) { return math.Pow(a, b), nil })
	binary2("ROUND", func(n, digits float64) (float64, *forgeerr.Error) { return roundTo(n, int(digits)), nil })
	binary2("ROUNDUP", func(n, digits float64) (float64, *forgeerr.Error) { return roundDirected(n, int(digits), true), nil })
	binary2("ROUNDDOWN", func(n, digits float64) (float64, *forgeerr.Error) { return roundDirected(n, int(digits), false), nil })
	binary2("CEILING", func(n, significance float64) (float64, *forgeerr.Error) {
		if significance == 0 {
			return 0, nil
		}
		return math.Ceil(n/significance) * significance, nil
	})
	binary2("FLOOR", func(n, significance float64) (float64, *forgeerr.Error) {
		if significance == 0 {
			return 0, nil
		}
		return math.Floor(n/significance) * significance, nil
	})

	register(FuncDef{
		Name: "LOG", MinArgs: 1, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			base := 10.0
			if len(vals) == 2 {
				bn, berr := vals[1].AsNumber()
				if berr != nil {
					return model.Err(berr), nil
				}
				base = bn
			}
			return broadcastUnary(vals[0], func(x model.Value) model.Value {
				n, nerr := x.AsNumber()
				if nerr != nil {
					return model.Err(nerr)
				}
				if n <= 0 || base <= 0 || base == 1 {
					return model.Err(forgeerr.Domain("LOG", []interface{}{n, base}, "invalid logarithm arguments"))
				}
				return model.Num(math.Log(n) / math.Log(base))
			}), nil
		},
	})

	register(FuncDef{
		Name: "SUMPRODUCT", MinArgs: 2, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalAggArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			n := vals[0].Len()
			for _, v := range vals {
				if v.Len() != n {
					return model.Err(forgeerr.Shape("SUMPRODUCT", n, v.Len())), nil
				}
			}
			total := 0.0
			for i := 0; i < n; i++ {
				product := 1.0
				for _, v := range vals {
					x, xerr := v.At(i).AsNumber()
					if xerr != nil {
						return model.Err(xerr), nil
					}
					product *= x
				}
				total += product
			}
			return model.Num(total), nil
		},
	})

	register(FuncDef{
		Name: "PRODUCT", MinArgs: 1, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalAggArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			items, ferr := flatten(vals)
			if ferr != nil {
				return model.Err(ferr), nil
			}
			total := 1.0
			for _, item := range items {
				n, nerr := item.AsNumber()
				if nerr != nil {
					return model.Err(nerr), nil
				}
				total *= n
			}
			return model.Num(total), nil
		},
	})
}

func roundTo(n float64, digits int) float64 {
	mul := math.Pow(10, float64(digits))
	return math.Round(n*mul) / mul
}

func roundDirected(n float64, digits int, up bool) float64 {
	mul := math.Pow(10, float64(digits))
	if up {
		if n >= 0 {
			return math.Ceil(n*mul) / mul
		}
		return math.Floor(n*mul) / mul
	}
	if n >= 0 {
		return math.Floor(n*mul) / mul
	}
	return math.Ceil(n*mul) / mul
}
