package eval

import (
	"context"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Dates are represented as serial day counts from the same epoch
// spreadsheet tools use (1899-12-30), so date arithmetic composes with the
// ordinary +/- operators without a distinct Value kind.
var dateEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dateParser recognises date text ("2026-03-05", "Mar 5 2026") for
// DATEVALUE and the text-accepting forms of EDATE/EOMONTH/DATEDIF. It loads
// when's full English rule set, so relative phrases are recognised too and
// resolve against the run's fixed clock.
// It is never consulted by TODAY()/NOW(), which are the only wall-clock
// sample points §5 permits.
var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDateText resolves raw against now (the run's fixed clock, not
// time.Now()) so a formula referencing the same text parses identically
// throughout one calculation pass.
func parseDateText(raw string, now time.Time) (float64, *forgeerr.Error) {
	r, err := dateParser.Parse(raw, now)
	if err != nil || r == nil {
		return 0, forgeerr.Domain("DATEVALUE", []interface{}{raw}, "unrecognised date")
	}
	return timeToSerial(r.Time), nil
}

// dateSerialFromValue accepts either a numeric serial or date text, so a
// user can write either a literal serial or a quoted date string
// interchangeably as a date-family function argument.
func dateSerialFromValue(v model.Value, now time.Time) (float64, *forgeerr.Error) {
	if v.Kind == model.KindText {
		return parseDateText(v.Text, now)
	}
	return v.AsNumber()
}

func serialToTime(serial float64) time.Time {
	return dateEpoch.Add(time.Duration(serial*24) * time.Hour)
}

func timeToSerial(t time.Time) float64 {
	return t.Sub(dateEpoch).Hours() / 24
}

func init() {
	register(FuncDef{
		Name: "TODAY", MinArgs: 0, MaxArgs: 0,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return model.Num(timeToSerial(ec.Config.Now.Truncate(24 * time.Hour))), nil
		},
	})
	register(FuncDef{
		Name: "NOW", MinArgs: 0, MaxArgs: 0,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			return model.Num(timeToSerial(ec.Config.Now)), nil
		},
	})

	dateUnary("YEAR", func(t time.Time) float64 { return float64(t.Year()) })
	dateUnary("MONTH", func(t time.Time) float64 { return float64(t.Month()) })
	dateUnary("DAY", func(t time.Time) float64 { return float64(t.Day()) })
	dateUnary("WEEKDAY", func(t time.Time) float64 { return float64(t.Weekday()) + 1 })

	register(FuncDef{
		Name: "DATE", MinArgs: 3, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			y, yerr := vals[0].AsNumber()
			if yerr != nil {
				return model.Err(yerr), nil
			}
			mo, merr := vals[1].AsNumber()
			if merr != nil {
				return model.Err(merr), nil
			}
			d, derr := vals[2].AsNumber()
			if derr != nil {
				return model.Err(derr), nil
			}
			t := time.Date(int(y), time.Month(int(mo)), int(d), 0, 0, 0, 0, time.UTC)
			return model.Num(timeToSerial(t)), nil
		},
	})

	register(FuncDef{
		Name: "EDATE", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			base, berr := dateSerialFromValue(vals[0], ec.Config.Now)
			if berr != nil {
				return model.Err(berr), nil
			}
			months, merr := vals[1].AsNumber()
			if merr != nil {
				return model.Err(merr), nil
			}
			t := serialToTime(base).AddDate(0, int(months), 0)
			return model.Num(timeToSerial(t)), nil
		},
	})

	register(FuncDef{
		Name: "EOMONTH", MinArgs: 2, MaxArgs: 2,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			base, berr := dateSerialFromValue(vals[0], ec.Config.Now)
			if berr != nil {
				return model.Err(berr), nil
			}
			months, merr := vals[1].AsNumber()
			if merr != nil {
				return model.Err(merr), nil
			}
			t := serialToTime(base).AddDate(0, int(months)+1, 0)
			firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			lastOfMonth := firstOfNext.Add(-24 * time.Hour)
			return model.Num(timeToSerial(lastOfMonth)), nil
		},
	})

	register(FuncDef{
		Name: "DATEDIF", MinArgs: 3, MaxArgs: 3,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			vals, err := evalArgs(ctx, ec, b, args)
			if err != nil {
				return model.Value{}, err
			}
			if ferr := firstError(vals); ferr != nil {
				return model.Err(ferr), nil
			}
			startS, serr := dateSerialFromValue(vals[0], ec.Config.Now)
			if serr != nil {
				return model.Err(serr), nil
			}
			endS, eerr := dateSerialFromValue(vals[1], ec.Config.Now)
			if eerr != nil {
				return model.Err(eerr), nil
			}
			unit, uerr := vals[2].AsText()
			if uerr != nil {
				return model.Err(uerr), nil
			}
			start := serialToTime(startS)
			end := serialToTime(endS)
			switch unit {
			case "d", "D":
				return model.Num(endS - startS), nil
			case "m", "M":
				return model.Num(float64(monthsBetween(start, end))), nil
			case "y", "Y":
				return model.Num(float64(monthsBetween(start, end) / 12)), nil
			}
			return model.Err(forgeerr.Domain("DATEDIF", []interface{}{unit}, "unsupported unit")), nil
		},
	})

	register(FuncDef{
		Name: "DATEVALUE", MinArgs: 1, MaxArgs: 1,
		Eval: func(ctx context.Context, ec *Context, b Binding, args []*ast.Expr) (model.Value, error) {
			v, err := Eval(ctx, ec, b, args[0])
			if err != nil {
				return model.Value{}, err
			}
			return broadcastUnary(v, func(x model.Value) model.Value {
				txt, terr := x.AsText()
				if terr != nil {
					return model.Err(terr)
				}
				serial, derr := parseDateText(txt, ec.Config.Now)
				if derr != nil {
					return model.Err(derr)
				}
				return model.Num(serial)
			}), nil
		},
	})
}

func dateUnary(name string, f func(time.Time) float64) {
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
				return model.Num(f(serialToTime(n)))
			}), nil
		},
	})
}

func monthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}
