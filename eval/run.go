package eval

import (
	"context"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
	"github.com/forgelang/forge/scheduler"
)

// CellError names one error-valued cell surfaced after a run, per §4.6's
// final collection pass ("the top-level collector walks the final model to
// harvest every error cell").
type CellError struct {
	Cell model.CellAddr
	Row  int // -1 for a scalar or whole-column error
	Err  *forgeerr.Error
}

// Result is the outcome of one calculation pass.
type Result struct {
	Model    *model.Model
	Registry *model.Registry
	Graph    *analyzer.Graph
	Warnings []model.UnitWarning
	Errors   []CellError
}

// Run executes the full load-to-evaluate pipeline's back half (analyse,
// schedule, evaluate) over an already-loaded model, mutating its scalars
// and columns in place with computed values, per §4.6.
//
// Scheduling and reference resolution are re-derived here rather than
// reusing Graph's edge list to fetch values, since a row-wise formula's
// reference to a same-table column must bind to one row's element, a
// distinction the dependency graph (cell-level only) doesn't carry; see
// analyzer.Resolve's doc comment.
func Run(ctx context.Context, m *model.Model, cfg Config) (*Result, error) {
	reg, err := model.Build(m)
	if err != nil {
		return nil, err
	}
	az := analyzer.New(m, reg)
	g, err := az.Analyze()
	if err != nil {
		return nil, err
	}
	order, err := scheduler.Order(reg, g)
	if err != nil {
		return nil, err
	}

	ec := NewContext(m, reg, az, cfg)
	for _, id := range order {
		cell := reg.Cell(id)
		cctx := ec.ForCell(cell)

		if cell.Formula == nil {
			ec.Cache[id] = literalValue(cell)
			continue
		}

		if cell.Column != nil {
			rows := cell.Table.RowCount
			vals := make([]model.Value, rows)
			for row := 0; row < rows; row++ {
				v, everr := Eval(ctx, cctx, Binding{Table: cell.Table, Row: row}, cell.Formula)
				if everr != nil {
					return nil, everr
				}
				vals[row] = v
			}
			cell.Column.Values = vals
			ec.Cache[id] = model.Vec(vals)
			continue
		}

		v, everr := Eval(ctx, cctx, ScalarBinding(), cell.Formula)
		if everr != nil {
			return nil, everr
		}
		cell.Scalar.Value = v
		cell.Scalar.HasValue = true
		ec.Cache[id] = v
	}

	applyUnitWarnings(ec, reg)

	var errs []CellError
	for _, cell := range reg.Cells() {
		collectErrors(cell.Addr, ec.Cache[cell.ID], &errs)
	}

	return &Result{Model: m, Registry: reg, Graph: g, Warnings: ec.Warnings, Errors: errs}, nil
}

func literalValue(cell *model.Cell) model.Value {
	if cell.Scalar != nil {
		return cell.Scalar.Value
	}
	return model.Vec(cell.Column.Values)
}

func collectErrors(addr model.CellAddr, v model.Value, out *[]CellError) {
	if v.IsError() {
		*out = append(*out, CellError{Cell: addr, Row: -1, Err: v.Err})
		return
	}
	if v.IsColumn() {
		for i, item := range v.Column {
			if item.IsError() {
				*out = append(*out, CellError{Cell: addr, Row: i, Err: item.Err})
			}
		}
	}
}

// applyUnitWarnings walks every formula a second time, this time only to
// compare declared units of its immediate operands when both resolve
// directly to a reference, per §4.6's warning-only unit algebra. Nested
// sub-expressions are not unit-checked: the algebra is advisory, not a
// full inference pass.
func applyUnitWarnings(ec *Context, reg *model.Registry) {
	for _, cell := range reg.Cells() {
		if cell.Formula == nil || cell.Formula.Kind != ast.BinaryOp {
			continue
		}
		doc, _ := ec.Model.Document(cell.Addr.Document)
		leftUnit, leftOK := refUnit(ec, doc, cell, cell.Formula.Left)
		rightUnit, rightOK := refUnit(ec, doc, cell, cell.Formula.Right)
		if !leftOK || !rightOK {
			continue
		}
		var warning string
		switch cell.Formula.Op {
		case ast.OpAdd, ast.OpSub:
			_, warning = model.ComposeAdditive(leftUnit, rightUnit)
		case ast.OpMul:
			_, warning = model.ComposeMultiplicative(leftUnit, rightUnit)
		}
		if warning != "" {
			ec.AddWarning(cell.Addr.String(), warning)
		}
	}
}

// refUnit resolves e, when it is a bare reference, to its target cell's
// declared unit.
func refUnit(ec *Context, doc *model.Document, cell *model.Cell, e *ast.Expr) (model.Unit, bool) {
	if e == nil || e.Kind != ast.Ref {
		return model.Unit{}, false
	}
	id, err := ec.Analyzer.Resolve(doc, cell, e)
	if err != nil {
		return model.Unit{}, false
	}
	target := ec.Registry.Cell(id)
	if target.Scalar != nil {
		return target.Scalar.Unit, true
	}
	if target.Column != nil {
		return target.Column.Unit, true
	}
	return model.Unit{}, false
}
