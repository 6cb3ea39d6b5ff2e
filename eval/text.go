package eval

import (
	"context"
	"strconv"
	"strings"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// textUnary registers a single-argument, broadcast-over-columns text
// function.
func textUnary(name string, f func(string) (string, *forgeerr.Error)) {
	register(FuncDef{
		Name: name, MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				s, serr := x.AsText()
				if serr != nil {
					return model.Err(serr)
				}
				r, rerr := f(s)
				if rerr != nil {
					return model.Err(rerr)
				}
				return model.Str(r)
			}), nil
		},
	})
}

func init() {
	textUnary("TRIM", func(s string) (string, *forgeerr.Error) { return strings.TrimSpace(s), nil })
	textUnary("UPPER", func(s string) (string, *forgeerr.Error) { return strings.ToUpper(s), nil })
	textUnary("LOWER", func(s string) (string, *forgeerr.Error) { return strings.ToLower(s), nil })
	textUnary("PROPER", func(s string) (string, *forgeerr.Error) { return strings.Title(strings.ToLower(s)), nil })
	textUnary("T", func(s string) (string, *forgeerr.Error) { return s, nil })

	register(FuncDef{
		Name: "LEN", MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				s, serr := x.AsText()
				if serr != nil {
					return model.Err(serr)
				}
				return model.Num(float64(len([]rune(s))))
			}), nil
		},
	})

	register(FuncDef{
		Name: "N", MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				n, nerr := x.AsNumber()
				if nerr != nil {
					return model.Num(0)
				}
				return model.Num(n)
			}), nil
		},
	})

	register(FuncDef{
		Name: "VALUE", MinArgs: 1, MaxArgs: 1,
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
				return model.Num(n)
			}), nil
		},
	})

	register(FuncDef{
		Name: "CONCAT", MinArgs: 1, MaxArgs: -1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			var sb strings.Builder
			for _, v := range vals {
				if v.IsError() {
					return v, nil
				}
				s, serr := v.AsText()
				if serr != nil {
					return model.Err(serr), nil
				}
				sb.WriteString(s)
			}
			return model.Str(sb.String()), nil
		},
	})

	register(FuncDef{
		Name: "EXACT", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			return broadcastBinary("EXACT", vals[0], vals[1], func(a, bv model.Value) model.Value {
				at, aerr := a.AsText()
				if aerr != nil {
					return model.Err(aerr)
				}
				bt, berr := bv.AsText()
				if berr != nil {
					return model.Err(berr)
				}
				return model.Boolean(at == bt)
			}), nil
		},
	})

	register(FuncDef{
		Name: "REPT", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if vals[0].IsError() {
				return vals[0], nil
			}
			if vals[1].IsError() {
				return vals[1], nil
			}
			s, serr := vals[0].AsText()
			if serr != nil {
				return model.Err(serr), nil
			}
			n, nerr := vals[1].AsNumber()
			if nerr != nil {
				return model.Err(nerr), nil
			}
			if n < 0 {
				return model.Err(forgeerr.Domain("REPT", []interface{}{n}, "negative repeat count")), nil
			}
			return model.Str(strings.Repeat(s, int(n))), nil
		},
	})

	register(FuncDef{
		Name: "LEFT", MinArgs: 2, MaxArgs: 2,
		Eval: textSlice(func(s string, n int) string {
			r := []rune(s)
			if n > len(r) {
				n = len(r)
			}
			if n < 0 {
				n = 0
			}
			return string(r[:n])
		}),
	})
	register(FuncDef{
		Name: "RIGHT", MinArgs: 2, MaxArgs: 2,
		Eval: textSlice(func(s string, n int) string {
			r := []rune(s)
			if n > len(r) {
				n = len(r)
			}
			if n < 0 {
				n = 0
			}
			return string(r[len(r)-n:])
		}),
	})

	register(FuncDef{
		Name: "MID", MinArgs: 3, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			s, serr := vals[0].AsText()
			if serr != nil {
				return model.Err(serr), nil
			}
			start, sterr := vals[1].AsNumber()
			if sterr != nil {
				return model.Err(sterr), nil
			}
			count, cerr := vals[2].AsNumber()
			if cerr != nil {
				return model.Err(cerr), nil
			}
			r := []rune(s)
			from := int(start) - 1
			if from < 0 {
				from = 0
			}
			if from > len(r) {
				from = len(r)
			}
			to := from + int(count)
			if to > len(r) {
				to = len(r)
			}
			if to < from {
				to = from
			}
			return model.Str(string(r[from:to])), nil
		},
	})

	register(FuncDef{
		Name: "FIND", MinArgs: 2, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			needle, nerr := vals[0].AsText()
			if nerr != nil {
				return model.Err(nerr), nil
			}
			haystack, herr := vals[1].AsText()
			if herr != nil {
				return model.Err(herr), nil
			}
			start := 0
			if len(vals) == 3 {
				sn, snerr := vals[2].AsNumber()
				if snerr != nil {
					return model.Err(snerr), nil
				}
				start = int(sn) - 1
			}
			if start < 0 || start > len(haystack) {
				return model.Err(forgeerr.Domain("FIND", []interface{}{start}, "start out of range")), nil
			}
			idx := strings.Index(haystack[start:], needle)
			if idx < 0 {
				return model.Err(forgeerr.Domain("FIND", []interface{}{needle, haystack}, "text not found")), nil
			}
			return model.Num(float64(start + idx + 1)), nil
		},
	})

	register(FuncDef{
		Name: "SUBSTITUTE", MinArgs: 3, MaxArgs: 4,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			s, serr := vals[0].AsText()
			if serr != nil {
				return model.Err(serr), nil
			}
			old, oerr := vals[1].AsText()
			if oerr != nil {
				return model.Err(oerr), nil
			}
			newText, nerr := vals[2].AsText()
			if nerr != nil {
				return model.Err(nerr), nil
			}
			if len(vals) == 3 {
				return model.Str(strings.ReplaceAll(s, old, newText)), nil
			}
			occ, operr := vals[3].AsNumber()
			if operr != nil {
				return model.Err(operr), nil
			}
			return model.Str(replaceNth(s, old, newText, int(occ))), nil
		},
	})

	register(FuncDef{
		Name: "TEXT", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			n, nerr := vals[0].AsNumber()
			if nerr != nil {
				return model.Err(nerr), nil
			}
			format, ferr2 := vals[1].AsText()
			if ferr2 != nil {
				return model.Err(ferr2), nil
			}
			return model.Str(formatNumber(n, format)), nil
		},
	})
}

func textSlice(f func(string, int) string) func(context.Context, *Context, Binding, []*ast.Expr) (model.Value, error) {
	return func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
		vals, err := evalArgs(ctx, ec, b, args)
		if err != nil {
			return model.Value{}, err
		}
		if ferr := firstError(vals); ferr != nil {
			return model.Err(ferr), nil
		}
		s, serr := vals[0].AsText()
		if serr != nil {
			return model.Err(serr), nil
		}
		n, nerr := vals[1].AsNumber()
		if nerr != nil {
			return model.Err(nerr), nil
		}
		return model.Str(f(s, int(n))), nil
	}
}

func replaceNth(s, old, newText string, n int) string {
	if old == "" || n <= 0 {
		return s
	}
	idx := -1
	from := 0
	for i := 0; i < n; i++ {
		pos := strings.Index(s[from:], old)
		if pos < 0 {
			return s
		}
		idx = from + pos
		from = idx + len(old)
	}
	return s[:idx] + newText + s[idx+len(old):]
}

// formatNumber is a small, deterministic subset of Excel's TEXT() number
// formats: "0" (integer), "0.00" (fixed decimals), "0%" (percentage).
func formatNumber(n float64, format string) string {
	switch {
	case strings.HasSuffix(format, "%"):
		decimals := strings.Count(strings.TrimSuffix(format, "%"), "0") - 1
		if decimals < 0 {
			decimals = 0
		}
		return strconv.FormatFloat(n*100, 'f', decimals, 64) + "%"
	case strings.Contains(format, "."):
		decimals := len(format) - strings.Index(format, ".") - 1
		return strconv.FormatFloat(n, 'f', decimals, 64)
	default:
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
}
