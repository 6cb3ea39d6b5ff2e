package eval

import (
	"context"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

func init() {
	register(FuncDef{
		Name: "INDEX", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			rangeV, err := Eval(ctx, ec, setAgg(b), args[0])
			if err != nil {
				return model.Value{}, err
			}
			idxV, err := Eval(ctx, ec, b, args[1])
			if err != nil {
				return model.Value{}, err
			}
			if rangeV.IsError() {
				return rangeV, nil
			}
			if idxV.IsError() {
				return idxV, nil
			}
			idx, ierr := idxV.AsNumber()
			if ierr != nil {
				return model.Err(ierr), nil
			}
			return rangeV.At(int(idx) - 1), nil
		},
	})

	register(FuncDef{
		Name: "MATCH", MinArgs: 2, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			needle, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			rangeV, err := Eval(ctx, ec, setAgg(b), args[1])
			if err != nil {
				return model.Value{}, err
			}
			if needle.IsError() {
				return needle, nil
			}
			if rangeV.IsError() {
				return rangeV, nil
			}
			matchType := 1.0
			if len(args) == 3 {
				mtV, err := Eval(ctx, ec, b, args[2])
				if err != nil {
					return model.Value{}, err
				}
				mt, mterr := mtV.AsNumber()
				if mterr != nil {
					return model.Err(mterr), nil
				}
				matchType = mt
			}
			idx, merr := match(needle, rangeV, matchType)
			if merr != nil {
				return model.Err(merr), nil
			}
			return model.Num(float64(idx + 1)), nil
		},
	})

	register(FuncDef{
		Name: "VLOOKUP", MinArgs: 3, MaxArgs: 4,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return tableLookup(ctx, ec, b, args, false)
		},
	})
	register(FuncDef{
		Name: "HLOOKUP", MinArgs: 3, MaxArgs: 4,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return tableLookup(ctx, ec, b, args, true)
		},
	})

	register(FuncDef{
		Name: "CHOOSE", MinArgs: 2, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			idxV, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			if idxV.IsError() {
				return idxV, nil
			}
			idx, ierr := idxV.AsNumber()
			if ierr != nil {
				return model.Err(ierr), nil
			}
			i := int(idx)
			if i < 1 || i >= len(args) {
				return model.Err(forgeerr.Domain("CHOOSE", []interface{}{i}, "index out of range")), nil
			}
			return Eval(ctx, ec, b, args[i])
		},
	})
}

// match implements MATCH's three modes: 1 (largest value <= needle, range
// ascending), 0 (exact match), -1 (smallest value >= needle, range
// descending).
func match(needle, rangeV model.Value, matchType float64) (int, *forgeerr.Error) {
	n := rangeV.Len()
	if matchType == 0 {
		for i := 0; i < n; i++ {
			if valuesEqual(needle, rangeV.At(i)) {
				return i, nil
			}
		}
		return 0, forgeerr.Domain("MATCH", nil, "no exact match")
	}
	best := -1
	for i := 0; i < n; i++ {
		cmp, err := compareForMatch(needle, rangeV.At(i))
		if err != nil {
			return 0, err
		}
		if matchType > 0 && cmp >= 0 {
			best = i
		}
		if matchType < 0 && cmp <= 0 {
			best = i
		}
	}
	if best < 0 {
		return 0, forgeerr.Domain("MATCH", nil, "no approximate match")
	}
	return best, nil
}

func compareForMatch(a, b model.Value) (int, *forgeerr.Error) {
	if a.Kind == model.KindText || b.Kind == model.KindText {
		at, aerr := a.AsText()
		if aerr != nil {
			return 0, aerr
		}
		bt, berr := b.AsText()
		if berr != nil {
			return 0, berr
		}
		return ordText(at, bt), nil
	}
	an, aerr := a.AsNumber()
	if aerr != nil {
		return 0, aerr
	}
	bn, berr := b.AsNumber()
	if berr != nil {
		return 0, berr
	}
	return ordNumber(an, bn), nil
}

func valuesEqual(a, b model.Value) bool {
	cmp, err := compareForMatch(a, b)
	return err == nil && cmp == 0
}

// tableLookup implements VLOOKUP/HLOOKUP: lookup_value, table_array,
// result, [exact_match]. Forge has no native 2-D range type, so table_array
// must itself resolve to a column Value treated as the lookup column, and
// the third argument is evaluated as a whole column from which the matching
// row is returned (it is not a numeric column offset). The match is exact
// unless exact_match is FALSE. hlookup is accepted for API parity with the
// original spreadsheet surface but behaves identically, since Forge tables
// are column-oriented.
func tableLookup(ctx context.Context, ec *Context, b Binding, args []*ast.Expr, hlookup bool) (model.Value, error) {
	_ = hlookup
	needle, err := Eval(ctx, ec, b, args[0])
	if err != nil {
		return model.Value{}, err
	}
	lookupCol, err := Eval(ctx, ec, setAgg(b), args[0+1])
	if err != nil {
		return model.Value{}, err
	}
	if needle.IsError() {
		return needle, nil
	}
	if lookupCol.IsError() {
		return lookupCol, nil
	}
	resultCol, err := Eval(ctx, ec, setAgg(b), args[2])
	if err != nil {
		return model.Value{}, err
	}
	if resultCol.IsError() {
		return resultCol, nil
	}
	exact := true
	if len(args) == 4 {
		ev, err := Eval(ctx, ec, b, args[3])
		if err != nil {
			return model.Value{}, err
		}
		eb, eerr := ev.AsBool()
		if eerr != nil {
			return model.Err(eerr), nil
		}
		exact = eb
	}
	matchType := 0.0
	if !exact {
		matchType = 1
	}
	idx, merr := match(needle, lookupCol, matchType)
	if merr != nil {
		return model.Err(merr), nil
	}
	if idx >= resultCol.Len() {
		return model.Err(forgeerr.Shape("VLOOKUP", lookupCol.Len(), resultCol.Len())), nil
	}
	return resultCol.At(idx), nil
}
