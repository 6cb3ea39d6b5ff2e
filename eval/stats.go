package eval

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// aggregateFn registers a function whose arguments are all evaluated in
// aggregation mode (bare same-table column refs yield whole vectors) and
// then flattened into one numeric slice and reduced in a single pass, since
// Forge has no streaming row source to buffer against.
func aggregateFn(name string, minArgs int, reduce func(xs []float64) (float64, *forgeerr.Error)) {
	register(FuncDef{
		Name: name, MinArgs: minArgs, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalAggArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			items, ferr := flatten(vals)
			if ferr != nil {
				return model.Err(ferr), nil
			}
			xs, nerr := numbersOf(items)
			if nerr != nil {
				return model.Err(nerr), nil
			}
			r, rerr := reduce(xs)
			if rerr != nil {
				return model.Err(rerr), nil
			}
			return model.Num(r), nil
		},
	})
}

func init() {
	aggregateFn("SUM", 1, func(xs []float64) (float64, *forgeerr.Error) {
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return total, nil
	})
	aggregateFn("AVERAGE", 1, func(xs []float64) (float64, *forgeerr.Error) {
		if len(xs) == 0 {
			return 0, forgeerr.Domain("AVERAGE", nil, "no values to average")
		}
		return sum(xs) / float64(len(xs)), nil
	})
	aggregateFn("MIN", 1, func(xs []float64) (float64, *forgeerr.Error) {
		if len(xs) == 0 {
			return 0, nil
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x < m {
				m = x
			}
		}
		return m, nil
	})
	aggregateFn("MAX", 1, func(xs []float64) (float64, *forgeerr.Error) {
		if len(xs) == 0 {
			return 0, nil
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x > m {
				m = x
			}
		}
		return m, nil
	})
	aggregateFn("COUNT", 1, func(xs []float64) (float64, *forgeerr.Error) { return float64(len(xs)), nil })
	aggregateFn("MEDIAN", 1, func(xs []float64) (float64, *forgeerr.Error) {
		if len(xs) == 0 {
			return 0, forgeerr.Domain("MEDIAN", nil, "no values")
		}
		sorted := append([]float64(nil), xs...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid], nil
		}
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	})
	aggregateFn("STDEV", 1, func(xs []float64) (float64, *forgeerr.Error) { return stdev(xs, true) })
	aggregateFn("VAR", 1, func(xs []float64) (float64, *forgeerr.Error) { return variance(xs, true) })
	aggregateFn("GEOMEAN", 1, func(xs []float64) (float64, *forgeerr.Error) {
		if len(xs) == 0 {
			return 0, forgeerr.Domain("GEOMEAN", nil, "no values")
		}
		product := 1.0
		for _, x := range xs {
			if x <= 0 {
				return 0, forgeerr.Domain("GEOMEAN", []interface{}{x}, "geometric mean requires positive values")
			}
			product *= x
		}
		return math.Pow(product, 1/float64(len(xs))), nil
	})

	register(FuncDef{
		Name: "COUNTA", MinArgs: 1, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalAggArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			items, ferr := flatten(vals)
			if ferr != nil {
				return model.Err(ferr), nil
			}
			return model.Num(float64(len(items))), nil
		},
	})

	register(FuncDef{
		Name: "PERCENTILE", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			rangeVals, err := Eval(ctx, ec, setAgg(b), args[0])
			if err != nil {
				return model.Value{}, err
			}
			kVal, err := Eval(ctx, ec, b, args[1])
			if err != nil {
				return model.Value{}, err
			}
			items, ferr := flatten([]model.Value{rangeVals})
			if ferr != nil {
				return model.Err(ferr), nil
			}
			xs, nerr := numbersOf(items)
			if nerr != nil {
				return model.Err(nerr), nil
			}
			k, kerr := kVal.AsNumber()
			if kerr != nil {
				return model.Err(kerr), nil
			}
			r, rerr := percentile(xs, k)
			if rerr != nil {
				return model.Err(rerr), nil
			}
			return model.Num(r), nil
		},
	})

	register(FuncDef{
		Name: "SUMIF", MinArgs: 2, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return condAggregate(ctx, ec, b, args, true)
		},
	})
	register(FuncDef{
		Name: "COUNTIF", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return condAggregate(ctx, ec, b, args, false)
		},
	})
}

func setAgg(b Binding) Binding { b.InAggregation = true; return b }

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func variance(xs []float64, sample bool) (float64, *forgeerr.Error) {
	n := len(xs)
	if sample && n < 2 {
		return 0, forgeerr.Domain("VAR", nil, "at least two values required")
	}
	if n == 0 {
		return 0, forgeerr.Domain("VAR", nil, "no values")
	}
	mean := sum(xs) / float64(n)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	denom := float64(n)
	if sample {
		denom = float64(n - 1)
	}
	return ss / denom, nil
}

func stdev(xs []float64, sample bool) (float64, *forgeerr.Error) {
	v, err := variance(xs, sample)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

func percentile(xs []float64, k float64) (float64, *forgeerr.Error) {
	if len(xs) == 0 {
		return 0, forgeerr.Domain("PERCENTILE", nil, "no values")
	}
	if k < 0 || k > 1 {
		return 0, forgeerr.Domain("PERCENTILE", []interface{}{k}, "k must be between 0 and 1")
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	pos := k * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}

// condAggregate implements SUMIF/COUNTIF's simple single-criterion matching
// (numeric comparison operators ">100", "<=3" or exact equality otherwise).
func condAggregate(ctx context.Context, ec *Context, b Binding, args []*ast.Expr, summing bool) (model.Value, error) {
	rangeVal, err := Eval(ctx, ec, setAgg(b), args[0])
	if err != nil {
		return model.Value{}, err
	}
	critVal, err := Eval(ctx, ec, b, args[1])
	if err != nil {
		return model.Value{}, err
	}
	sumRange := rangeVal
	if summing && len(args) == 3 {
		sumRange, err = Eval(ctx, ec, setAgg(b), args[2])
		if err != nil {
			return model.Value{}, err
		}
	}
	if rangeVal.IsError() {
		return rangeVal, nil
	}
	if critVal.IsError() {
		return critVal, nil
	}
	critText, _ := critVal.AsText()
	pred, perr := parseCriteria(critText, critVal)
	if perr != nil {
		return model.Err(perr), nil
	}

	n := rangeVal.Len()
	if summing && sumRange.Len() != n {
		return model.Err(forgeerr.Shape("SUMIF", n, sumRange.Len())), nil
	}
	total := 0.0
	count := 0.0
	for i := 0; i < n; i++ {
		ok, perr := pred(rangeVal.At(i))
		if perr != nil {
			return model.Err(perr), nil
		}
		if !ok {
			continue
		}
		count++
		if summing {
			s, serr := sumRange.At(i).AsNumber()
			if serr != nil {
				return model.Err(serr), nil
			}
			total += s
		}
	}
	if summing {
		return model.Num(total), nil
	}
	return model.Num(count), nil
}

// parseCriteria builds a predicate from a SUMIF/COUNTIF criteria Value:
// ">N", "<N", ">=N", "<=N", "<>N" or a bare equality (numeric or text).
func parseCriteria(text string, raw model.Value) (func(model.Value) (bool, *forgeerr.Error), *forgeerr.Error) {
	ops := []string{">=", "<=", "<>", ">", "<", "="}
	for _, op := range ops {
		if strings.HasPrefix(text, op) {
			rhsText := strings.TrimSpace(text[len(op):])
			rhs, perr := strconv.ParseFloat(rhsText, 64)
			if perr != nil {
				return nil, forgeerr.Domain("criteria", []interface{}{text}, "non-numeric comparison criteria")
			}
			return func(v model.Value) (bool, *forgeerr.Error) {
				n, nerr := v.AsNumber()
				if nerr != nil {
					return false, nil
				}
				switch op {
				case ">=":
					return n >= rhs, nil
				case "<=":
					return n <= rhs, nil
				case "<>":
					return n != rhs, nil
				case ">":
					return n > rhs, nil
				case "<":
					return n < rhs, nil
				case "=":
					return n == rhs, nil
				}
				return false, nil
			}, nil
		}
	}
	return func(v model.Value) (bool, *forgeerr.Error) {
		if raw.Kind == model.KindText {
			t, _ := v.AsText()
			return t == text, nil
		}
		n, nerr := v.AsNumber()
		if nerr != nil {
			return false, nil
		}
		rn, _ := raw.AsNumber()
		return n == rn, nil
	}, nil
}
