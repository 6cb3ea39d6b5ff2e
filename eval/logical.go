package eval

import (
	"context"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/model"
)

func init() {
	register(FuncDef{
		Name: "IF", MinArgs: 2, MaxArgs: 3,
		Eval: evalIf,
	})
	register(FuncDef{
		Name: "AND", MinArgs: 1, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return boolFold(ctx, ec, b, args, true)
		},
	})
	register(FuncDef{
		Name: "OR", MinArgs: 1, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return boolFold(ctx, ec, b, args, false)
		},
	})
	register(FuncDef{
		Name: "NOT", MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				bv, berr := x.AsBool()
				if berr != nil {
					return model.Err(berr)
				}
				return model.Boolean(!bv)
			}), nil
		},
	})
	register(FuncDef{
		Name: "ISERROR", MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return model.Boolean(v.IsError()), nil
		},
	})
	register(FuncDef{
		Name: "IFERROR", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			if !v.IsError() {
				return v, nil
			}
			return Eval(ctx, ec, b, args[1])
		},
	})
}

// evalIf short-circuits when the condition is a scalar, per §4.6
// ("unevaluated branches must not raise"). When the condition is itself a
// column (a row-wise predicate read in aggregation context), both branches
// are evaluated and selected elementwise, since there is no single path to
// take.
func evalIf(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
	cond, err := Eval(ctx, ec, b, args[0])
	if err != nil {
		return model.Value{}, err
	}
	if cond.IsError() {
		return cond, nil
	}

	elseArg := func() (model.Value, error) {
		if len(args) == 3 {
			return Eval(ctx, ec, b, args[2])
		}
		return model.Boolean(false), nil
	}

	if !cond.IsColumn() {
		truth, terr := cond.AsBool()
		if terr != nil {
			return model.Err(terr), nil
		}
		if truth {
			return Eval(ctx, ec, b, args[1])
		}
		return elseArg()
	}

	thenV, err := Eval(ctx, ec, b, args[1])
	if err != nil {
		return model.Value{}, err
	}
	elseV, err := elseArg()
	if err != nil {
		return model.Value{}, err
	}
	n := cond.Len()
	out := make([]model.Value, n)
	for i := 0; i < n; i++ {
		truth, terr := cond.At(i).AsBool()
		if terr != nil {
			out[i] = model.Err(terr)
			continue
		}
		if truth {
			out[i] = thenV.At(i)
		} else {
			out[i] = elseV.At(i)
		}
	}
	return model.Vec(out), nil
}

func boolFold(ctx context.Context, ec *Context, b Binding, args []*ast.Expr, isAnd bool) (model.Value, error) {
	vals, err := evalArgs(ctx, ec, b, args)
	if err != nil {
		return model.Value{}, err
	}
	items, ferr := flatten(vals)
	if ferr != nil {
		return model.Err(ferr), nil
	}
	result := isAnd
	for _, item := range items {
		bv, berr := item.AsBool()
		if berr != nil {
			return model.Err(berr), nil
		}
		if isAnd {
			result = result && bv
		} else {
			result = result || bv
		}
	}
	return model.Boolean(result), nil
}
