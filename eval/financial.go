package eval

import (
	"context"
	"math"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

func init() {
	register(FuncDef{
		Name: "NPV", MinArgs: 2, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			rateV, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			if rateV.IsError() {
				return rateV, nil
			}
			rate, rerr := rateV.AsNumber()
			if rerr != nil {
				return model.Err(rerr), nil
			}
			flows, err := evalAggArgs(ctx, ec, b, args[1:])
			if err != nil {
				return model.Value{}, err
			}
			items, ferr := flatten(flows)
			if ferr != nil {
				return model.Err(ferr), nil
			}
			cashflows, nerr := numbersOf(items)
			if nerr != nil {
				return model.Err(nerr), nil
			}
			return model.Num(npv(rate, cashflows)), nil
		},
	})

	register(FuncDef{
		Name: "IRR", MinArgs: 1, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			flowsV, err := Eval(ctx, ec, setAgg(b), args[0])
			if err != nil {
				return model.Value{}, err
			}
			if flowsV.IsError() {
				return flowsV, nil
			}
			items, ferr := flatten([]model.Value{flowsV})
			if ferr != nil {
				return model.Err(ferr), nil
			}
			cashflows, nerr := numbersOf(items)
			if nerr != nil {
				return model.Err(nerr), nil
			}
			guess := 0.1
			if len(args) == 2 {
				gv, err := Eval(ctx, ec, b, args[1])
				if err != nil {
					return model.Value{}, err
				}
				g, gerr := gv.AsNumber()
				if gerr != nil {
					return model.Err(gerr), nil
				}
				guess = g
			}
			r, rerr := irr(cashflows, guess)
			if rerr != nil {
				return model.Err(rerr), nil
			}
			return model.Num(r), nil
		},
	})

	register(FuncDef{
		Name: "PMT", MinArgs: 3, MaxArgs: 5,
		Eval: financialFn(func(xs []float64) (float64, *forgeerr.Error) {
			rate, nper, pv, fv, typ := xs[0], xs[1], xs[2], xs[3], xs[4]
			if rate == 0 {
				return -(pv + fv) / nper, nil
			}
			factor := math.Pow(1+rate, nper)
			pmt := -rate * (pv*factor + fv) / ((1 + rate*typ) * (factor - 1))
			return pmt, nil
		}),
	})

	register(FuncDef{
		Name: "PV", MinArgs: 3, MaxArgs: 5,
		// Signature: rate, nper, pmt, [fv], [type].
		Eval: financialFn(func(xs []float64) (float64, *forgeerr.Error) {
			rate, nper, pmt, fv, typ := xs[0], xs[1], xs[2], xs[3], xs[4]
			if rate == 0 {
				return -(fv + pmt*nper), nil
			}
			factor := math.Pow(1+rate, nper)
			return -(fv + pmt*(1+rate*typ)*(factor-1)/rate) / factor, nil
		}),
	})

	register(FuncDef{
		Name: "FV", MinArgs: 3, MaxArgs: 5,
		// Signature: rate, nper, pmt, [pv], [type].
		Eval: financialFn(func(xs []float64) (float64, *forgeerr.Error) {
			rate, nper, pmt, pv, typ := xs[0], xs[1], xs[2], xs[3], xs[4]
			if rate == 0 {
				return -(pv + pmt*nper), nil
			}
			factor := math.Pow(1+rate, nper)
			return -(pv*factor + pmt*(1+rate*typ)*(factor-1)/rate), nil
		}),
	})

	register(FuncDef{
		Name: "RATE", MinArgs: 3, MaxArgs: 5,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			xs, nerr := numbersOf(vals)
			if nerr != nil {
				return model.Err(nerr), nil
			}
			for len(xs) < 5 {
				xs = append(xs, 0)
			}
			nper, pmt, pv, fv := xs[0], xs[1], xs[2], xs[3]
			typ := xs[4]
			r, rerr := rate(nper, pmt, pv, fv, typ)
			if rerr != nil {
				return model.Err(rerr), nil
			}
			return model.Num(r), nil
		},
	})
}

// financialFn evaluates a fixed-shape (rate, nper, arg2[, arg3[, type]])
// call, zero-filling omitted optional arguments, per the common Excel
// financial-function signature shape.
func financialFn(f func(xs []float64) (float64, *forgeerr.Error)) func(context.Context, *Context, Binding, []*ast.Expr) (model.Value, error) {
	return func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
		vals, err := evalArgs(ctx, ec, b, args)
		if err != nil {
			return model.Value{}, err
		}
		if ferr := firstError(vals); ferr != nil {
			return model.Err(ferr), nil
		}
		xs, nerr := numbersOf(vals)
		if nerr != nil {
			return model.Err(nerr), nil
		}
		for len(xs) < 5 {
			xs = append(xs, 0)
		}
		r, rerr := f(xs)
		if rerr != nil {
			return model.Err(rerr), nil
		}
		return model.Num(r), nil
	}
}

func npv(rate float64, flows []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, float64(i+1))
	}
	return total
}

// irr finds the discount rate that zeroes npv via Newton's method, seeded
// from guess. Iteration stops early if the derivative is zero, and after 50
// steps without convergence the last estimate is returned; only a NaN or
// infinite estimate is reported as a domain error.
func irr(flows []float64, guess float64) (float64, *forgeerr.Error) {
	if len(flows) < 2 {
		return 0, forgeerr.Domain("IRR", nil, "at least two cash flows required")
	}
	rate := guess
	for i := 0; i < 50; i++ {
		f := npv(rate, flows)
		df := npvDerivative(rate, flows)
		if df == 0 {
			break
		}
		next := rate - f/df
		if math.Abs(next-rate) < 1e-9 {
			return next, nil
		}
		rate = next
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, forgeerr.Domain("IRR", nil, "failed to converge")
	}
	return rate, nil
}

func npvDerivative(rate float64, flows []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		n := float64(i + 1)
		total += -n * cf / math.Pow(1+rate, n+1)
	}
	return total
}

// rate solves for the periodic interest rate via Newton's method over the
// standard annuity equation pv*(1+r)^n + pmt*(1+r*type)*((1+r)^n-1)/r + fv = 0.
func rate(nper, pmt, pv, fv, typ float64) (float64, *forgeerr.Error) {
	guess := 0.1
	for i := 0; i < 100; i++ {
		factor := math.Pow(1+guess, nper)
		f := pv*factor + pmt*(1+guess*typ)*(factor-1)/guess + fv
		df := nper*pv*math.Pow(1+guess, nper-1) +
			pmt*((typ*(factor-1)/guess)+(1+guess*typ)*(nper*math.Pow(1+guess, nper-1)*guess-(factor-1))/(guess*guess))
		if df == 0 {
			break
		}
		next := guess - f/df
		if math.Abs(next-guess) < 1e-9 {
			return next, nil
		}
		guess = next
	}
	if math.IsNaN(guess) || math.IsInf(guess, 0) {
		return 0, forgeerr.Domain("RATE", nil, "failed to converge")
	}
	return guess, nil
}
