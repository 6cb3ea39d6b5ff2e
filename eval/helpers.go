package eval

import (
	"context"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// unary1 registers a single-argument, broadcast-over-columns numeric
// function: the argument is evaluated once and the function applied
// elementwise to each resulting model.Value.
func unary1(name string, f func(float64) (float64, *forgeerr.Error)) {
	register(FuncDef{
		Name: name, MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				n, nerr := x.AsNumber()
				if nerr != nil {
					return model.Err(nerr)
				}
				r, rerr := f(n)
				if rerr != nil {
					return model.Err(rerr)
				}
				return model.Num(r)
			}), nil
		},
	})
}

// binary2 registers a two-argument numeric function, broadcasting across
// whichever operand (or both) is a column.
func binary2(name string, f func(a, b float64) (float64, *forgeerr.Error)) {
	register(FuncDef{
		Name: name, MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			return broadcastBinary(name, vals[0], vals[1], func(a, bv model.Value) model.Value {
				an, aerr := a.AsNumber()
				if aerr != nil {
					return model.Err(aerr)
				}
				bn, berr := bv.AsNumber()
				if berr != nil {
					return model.Err(berr)
				}
				r, rerr := f(an, bn)
				if rerr != nil {
					return model.Err(rerr)
				}
				return model.Num(r)
			}), nil
		},
	})
}

// numbersOf coerces every Value to a float64, short-circuiting on the first
// coercion failure.
func numbersOf(vals []model.Value) ([]float64, *forgeerr.Error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		n, err := v.AsNumber()
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
