package eval

import (
	"context"
	"strings"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// FuncDef describes one entry of the built-in function library (§4.6). Eval
// receives the unevaluated argument ASTs, not pre-computed values, so IF can
// short-circuit and aggregate functions can force whole-vector evaluation of
// their range arguments.
type FuncDef struct {
	Name             string
	MinArgs, MaxArgs int // MaxArgs < 0 means unbounded
	Eval             func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error)
}

var registry = map[string]FuncDef{}

// register adds fn to the process-wide immutable function table (§5: "the
// function library is a process-wide immutable table"). Called from each
// function file's init, one per builtin group.
func register(fn FuncDef) {
	if _, exists := registry[fn.Name]; exists {
		panic("eval: duplicate function registration " + fn.Name)
	}
	registry[fn.Name] = fn
}

// Lookup reports whether a function name (case-insensitive) is registered
// and returns its definition.
func Lookup(name string) (FuncDef, bool) {
	fn, ok := registry[strings.ToUpper(name)]
	return fn, ok
}

func evalCall(ctx context.Context, ec *Context, b Binding, e *ast.Expr) (model.Value, error) {
	fn, ok := registry[strings.ToUpper(e.Func)]
	if !ok {
		return model.Err(forgeerr.Domain(e.Func, nil, "unknown function")), nil
	}
	if len(e.Args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(e.Args) > fn.MaxArgs) {
		return model.Err(forgeerr.Domain(e.Func, []interface{}{len(e.Args)}, "wrong number of arguments")), nil
	}
	return fn.Eval(ctx, ec, b, e.Args)
}

// evalArgs evaluates every argument under b, stopping at the first Go error
// (cancellation). Domain/shape errors inside an argument become Value errors
// and are not short-circuited here: the caller decides how to propagate them.
func evalArgs(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) ([]model.Value, error) {
	out := make([]model.Value, len(args))
	for i, a := range args {
		v, err := Eval(ctx, ec, b, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalAggArgs evaluates args with InAggregation set, so a bare same-table
// column reference yields its full vector instead of the row-bound element
// (§4.6: "A column reference inside an aggregation function passes the
// entire vector").
func evalAggArgs(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) ([]model.Value, error) {
	ab := b
	ab.InAggregation = true
	return evalArgs(ctx, ec, ab, args)
}

// flatten expands a mix of scalars and columns into one slice of scalar
// Values, for aggregate functions that operate over the union of their
// arguments' elements (SUM(a, b.col, 3) sums across all of them).
func flatten(vals []model.Value) ([]model.Value, *forgeerr.Error) {
	var out []model.Value
	for _, v := range vals {
		if v.IsError() {
			return nil, v.Err
		}
		if v.IsColumn() {
			out = append(out, v.Column...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// firstError returns the first error Value's error, if any.
func firstError(vals []model.Value) *forgeerr.Error {
	for _, v := range vals {
		if v.IsError() {
			return v.Err
		}
	}
	return nil
}
