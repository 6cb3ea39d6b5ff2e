// Package eval implements the evaluator of §4.6: it computes expression
// trees over vector-valued columns and scalar values, and hosts the
// built-in function library.
//
// Evaluation is one Eval(ctx, ec, binding, expr) function that switches on
// the expression's ast.Kind; function calls dispatch through the FuncDef
// registry in call.go, and the SUM/AVERAGE/STDEV aggregate family reduces
// its arguments in a single pass in stats.go.
package eval

import (
	"context"
	"math"
	"time"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Config carries the small immutable configuration record of §9's design
// notes: the evaluator's part of it is the TODAY() override, passed by value
// into the core rather than held as global mutable state. Tolerance
// thresholds live in config.Config and are used by the validator only.
type Config struct {
	// Now is sampled once per calculation run and returned by TODAY();
	// tests override it via Config.Now instead of touching wall-clock time.
	Now time.Time
}

func DefaultConfig() Config { return Config{Now: time.Now().UTC()} }

// Binding is the row-wise evaluation context of §4.6: which table (if any)
// same-table column references are bound to, which row index they resolve
// against, and whether the current subtree is an aggregation function's
// argument (in which case a bare column reference yields its full vector
// rather than the row-bound element).
type Binding struct {
	Table         *model.Table
	Row           int // -1 outside a row-wise column formula
	InAggregation bool
}

func ScalarBinding() Binding { return Binding{Row: -1} }

// Context threads the registry, analyser, computed-value cache, and
// configuration through every Eval call.
type Context struct {
	Model    *model.Model
	Registry *model.Registry
	Analyzer *analyzer.Analyzer
	Cache    map[model.CellID]model.Value
	Config   Config
	Warnings []model.UnitWarning

	doc  *model.Document
	cell *model.Cell
}

func NewContext(m *model.Model, reg *model.Registry, az *analyzer.Analyzer, cfg Config) *Context {
	return &Context{Model: m, Registry: reg, Analyzer: az, Cache: map[model.CellID]model.Value{}, Config: cfg}
}

// ForCell scopes ec to the cell about to be evaluated, so Ref resolution
// can reach the cell's owning document and (for row-wise formulas) table.
func (ec *Context) ForCell(cell *model.Cell) *Context {
	scoped := *ec
	doc, _ := ec.Model.Document(cell.Addr.Document)
	scoped.doc = doc
	scoped.cell = cell
	return &scoped
}

func (ec *Context) AddWarning(cellPath, message string) {
	ec.Warnings = append(ec.Warnings, model.UnitWarning{CellPath: cellPath, Message: message})
}

// Eval evaluates e under binding b. Evaluation never returns a Go error for
// domain/shape/reference failures internal to the formula: those become
// error Values that propagate (§4.6). A Go error is only returned for
// cancellation.
func Eval(ctx context.Context, ec *Context, b Binding, e *ast.Expr) (model.Value, error) {
	if err := ctx.Err(); err != nil {
		return model.Value{}, forgeerr.Cancelled(err.Error())
	}

	switch e.Kind {
	case ast.NumberLit:
		return model.Num(e.Number), nil
	case ast.TextLit:
		return model.Str(e.Text), nil
	case ast.BoolLit:
		return model.Boolean(e.Bool), nil
	case ast.Ref:
		return evalRef(ec, b, e)
	case ast.UnaryMinus:
		v, err := Eval(ctx, ec, b, e.Right)
		if err != nil {
			return model.Value{}, err
		}
		return broadcastUnary(v, func(x model.Value) model.Value {
			n, nerr := x.AsNumber()
			if nerr != nil {
				return model.Err(nerr)
			}
			return model.Num(-n)
		}), nil
	case ast.BinaryOp:
		left, err := Eval(ctx, ec, b, e.Left)
		if err != nil {
			return model.Value{}, err
		}
		right, err := Eval(ctx, ec, b, e.Right)
		if err != nil {
			return model.Value{}, err
		}
		return evalBinary(e.Op, left, right), nil
	case ast.Call:
		return evalCall(ctx, ec, b, e)
	case ast.Index:
		return evalIndex(ctx, ec, b, e)
	}
	return model.Err(forgeerr.Domain("eval", nil, "unsupported expression kind "+e.Kind.String())), nil
}

func evalIndex(ctx context.Context, ec *Context, b Binding, e *ast.Expr) (model.Value, error) {
	base, err := Eval(ctx, ec, b, e.Base)
	if err != nil {
		return model.Value{}, err
	}
	idxV, err := Eval(ctx, ec, b, e.Index)
	if err != nil {
		return model.Value{}, err
	}
	if base.IsError() {
		return base, nil
	}
	if idxV.IsError() {
		return idxV, nil
	}
	n, nerr := idxV.AsNumber()
	if nerr != nil {
		return model.Err(nerr), nil
	}
	return base.At(int(n)), nil
}

func evalRef(ec *Context, b Binding, e *ast.Expr) (model.Value, error) {
	id, rerr := ec.Analyzer.Resolve(ec.doc, ec.cell, e)
	if rerr != nil {
		return model.Err(rerr.(*forgeerr.Error)), nil
	}
	target := ec.Registry.Cell(id)
	cached, ok := ec.Cache[id]
	if !ok {
		return model.Err(forgeerr.Domain("reference", []interface{}{e.String()}, "referenced cell not yet computed")), nil
	}

	if target.Column != nil {
		sameTable := b.Table != nil && target.Table == b.Table
		switch {
		case b.InAggregation:
			return cached, nil
		case sameTable && b.Row >= 0:
			return cached.At(b.Row), nil
		default:
			return model.Err(forgeerr.Domain(e.String(), nil,
				"bare column reference outside an aggregation function requires a row-wise context")), nil
		}
	}
	return cached, nil
}

func broadcastUnary(v model.Value, f func(model.Value) model.Value) model.Value {
	if v.IsError() {
		return v
	}
	if v.IsColumn() {
		out := make([]model.Value, len(v.Column))
		for i, item := range v.Column {
			out[i] = f(item)
		}
		return model.Vec(out)
	}
	return f(v)
}

func broadcastBinary(op string, left, right model.Value, f func(a, b model.Value) model.Value) model.Value {
	if left.IsError() {
		return left
	}
	if right.IsError() {
		return right
	}
	lc, rc := left.IsColumn(), right.IsColumn()
	switch {
	case lc && rc:
		if len(left.Column) != len(right.Column) {
			return model.Err(forgeerr.Shape(op, len(left.Column), len(right.Column)))
		}
		out := make([]model.Value, len(left.Column))
		for i := range out {
			out[i] = f(left.Column[i], right.Column[i])
		}
		return model.Vec(out)
	case lc:
		out := make([]model.Value, len(left.Column))
		for i := range out {
			out[i] = f(left.Column[i], right)
		}
		return model.Vec(out)
	case rc:
		out := make([]model.Value, len(right.Column))
		for i := range out {
			out[i] = f(left, right.Column[i])
		}
		return model.Vec(out)
	default:
		return f(left, right)
	}
}

func evalBinary(op ast.Op, left, right model.Value) model.Value {
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpPow:
		return broadcastBinary(op.String(), left, right, func(a, b model.Value) model.Value { return arithElem(op, a, b) })
	case ast.OpConcat:
		return broadcastBinary("&", left, right, concatElem)
	default:
		return broadcastBinary(op.String(), left, right, func(a, b model.Value) model.Value { return compareElem(op, a, b) })
	}
}

func arithElem(op ast.Op, a, b model.Value) model.Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	an, aerr := a.AsNumber()
	if aerr != nil {
		return model.Err(aerr)
	}
	bn, berr := b.AsNumber()
	if berr != nil {
		return model.Err(berr)
	}
	switch op {
	case ast.OpAdd:
		return model.Num(an + bn)
	case ast.OpSub:
		return model.Num(an - bn)
	case ast.OpMul:
		return model.Num(an * bn)
	case ast.OpDiv:
		if bn == 0 {
			return model.Err(forgeerr.Domain("/", []interface{}{an, bn}, "division by zero"))
		}
		return model.Num(an / bn)
	case ast.OpPow:
		return model.Num(math.Pow(an, bn))
	}
	return model.Err(forgeerr.Domain("arith", nil, "unsupported operator"))
}

func concatElem(a, b model.Value) model.Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	at, aerr := a.AsText()
	if aerr != nil {
		return model.Err(aerr)
	}
	bt, berr := b.AsText()
	if berr != nil {
		return model.Err(berr)
	}
	return model.Str(at + bt)
}

func compareElem(op ast.Op, a, b model.Value) model.Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	if a.Kind == model.KindText || b.Kind == model.KindText {
		if a.Kind != model.KindText || b.Kind != model.KindText {
			return model.Err(forgeerr.Domain("compare", []interface{}{a, b}, "cannot compare text to number"))
		}
		return model.Boolean(compareOrdered(op, ordText(a.Text, b.Text)))
	}
	an, aerr := a.AsNumber()
	if aerr != nil {
		return model.Err(aerr)
	}
	bn, berr := b.AsNumber()
	if berr != nil {
		return model.Err(berr)
	}
	return model.Boolean(compareOrdered(op, ordNumber(an, bn)))
}

func ordNumber(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func ordText(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op ast.Op, cmp int) bool {
	switch op {
	case ast.OpEq:
		return cmp == 0
	case ast.OpNeq:
		return cmp != 0
	case ast.OpLt:
		return cmp < 0
	case ast.OpLte:
		return cmp <= 0
	case ast.OpGt:
		return cmp > 0
	case ast.OpGte:
		return cmp >= 0
	}
	return false
}
