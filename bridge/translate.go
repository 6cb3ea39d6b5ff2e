package bridge

import (
	"strings"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
	"github.com/forgelang/forge/parser"
)

// aggregateFuncs names the functions whose arguments evaluate over a whole
// column rather than one row, mirroring eval's aggregation-mode dispatch
// (package eval does not export this set, so the bridge keeps its own
// small copy, see DESIGN.md).
var aggregateFuncs = map[string]bool{
	"SUM": true, "AVERAGE": true, "MIN": true, "MAX": true, "COUNT": true,
	"COUNTA": true, "MEDIAN": true, "STDEV": true, "VAR": true, "GEOMEAN": true,
	"PERCENTILE": true, "SUMIF": true, "COUNTIF": true, "SUMPRODUCT": true, "PRODUCT": true,
}

// exportCtx carries the state a single formula's translation needs: the
// allocation table, the analyser used to resolve names exactly as the
// evaluator would, the formula's own document/cell, and, for a row-wise
// column formula, which row is being emitted.
type exportCtx struct {
	alloc *Allocation
	az    *analyzer.Analyzer
	doc   *model.Document
	cell  *model.Cell
	row   int // 0-based; -1 for a scalar/whole-column formula
	inAgg bool
}

// ToGridFormula translates cell's formula (already resolved name-form) into
// spreadsheet grid-address form, per §4.9: "each named cell or column is
// given a deterministic sheet/cell allocation; the translator walks the
// expression tree and replaces references accordingly."
func ToGridFormula(alloc *Allocation, az *analyzer.Analyzer, doc *model.Document, cell *model.Cell, row int) (string, error) {
	tc := exportCtx{alloc: alloc, az: az, doc: doc, cell: cell, row: row, inAgg: row < 0}
	body, err := rewriteToGrid(tc, cell.Formula)
	if err != nil {
		return "", err
	}
	return "=" + body, nil
}

func rewriteToGrid(tc exportCtx, e *ast.Expr) (string, error) {
	switch e.Kind {
	case ast.NumberLit, ast.TextLit, ast.BoolLit:
		return e.String(), nil

	case ast.Ref:
		id, err := tc.az.Resolve(tc.doc, tc.cell, e)
		if err != nil {
			return "", err
		}
		target := tc.az.Registry.Cell(id)
		slot, ok := tc.alloc.Slot(id)
		if !ok {
			return "", forgeerr.ImportExport("", "", "no grid allocation for "+target.Addr.String())
		}
		sameTable := tc.cell.Table != nil && target.Table != nil && target.Table == tc.cell.Table
		ref := slot.RangeAddr()
		if target.Column != nil && sameTable && !tc.inAgg {
			ref = slot.CellAt(tc.row)
		}
		if slot.Sheet != currentSheet(tc) {
			// Cross-sheet references are written sheet-qualified with '.',
			// not the conventional spreadsheet '!': Forge's tokenizer has
			// no '!' token, but '.' is already a legal identifier
			// character, so "Sheet.B2" round-trips through ParseGrid
			// unchanged (see DESIGN.md).
			return slot.Sheet + "." + ref, nil
		}
		return ref, nil

	case ast.UnaryMinus:
		inner, err := rewriteToGrid(tc, e.Right)
		if err != nil {
			return "", err
		}
		return "-" + inner, nil

	case ast.BinaryOp:
		l, err := rewriteToGrid(tc, e.Left)
		if err != nil {
			return "", err
		}
		r, err := rewriteToGrid(tc, e.Right)
		if err != nil {
			return "", err
		}
		return l + " " + e.Op.String() + " " + r, nil

	case ast.Call:
		child := tc
		if aggregateFuncs[e.Func] {
			child.inAgg = true
		}
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			arg, err := rewriteToGrid(child, a)
			if err != nil {
				return "", err
			}
			args[i] = arg
		}
		return e.Func + "(" + strings.Join(args, ",") + ")", nil

	case ast.Index:
		return "", forgeerr.ImportExport("", "", "bridge does not support indexed expressions")
	}
	return "", forgeerr.ImportExport("", "", "unsupported expression kind in bridge translation")
}

// currentSheet returns the sheet the formula's own cell lives on, so
// same-sheet references are emitted without a sheet qualifier.
func currentSheet(tc exportCtx) string {
	addr := tc.cell.Addr
	id, ok := tc.az.Registry.Lookup(addr)
	if !ok {
		return ""
	}
	slot, ok := tc.alloc.Slot(id)
	if !ok {
		return ""
	}
	return slot.Sheet
}

// FromGridFormula reverse-translates a spreadsheet formula (as read back
// from an exported workbook) into Forge's name-form syntax, per §4.9's
// import: "reverse-translates grid-address formulas back into name-form
// using the original allocation table." The raw text is parsed with
// parser.ParseGrid (which legalises the bridge-only "A:B" range syntax),
// then every Ref/Range leaf is rewritten from a grid address into a name
// before rendering back to text with Expr.String().
func FromGridFormula(alloc *Allocation, sheet string, raw string) (string, error) {
	expr, err := parser.ParseGrid(raw)
	if err != nil {
		return "", forgeerr.ImportExport(sheet, "", "unparseable grid formula: "+err.Error())
	}
	renamed, err := rewriteFromGrid(alloc, sheet, expr)
	if err != nil {
		return "", err
	}
	return "=" + renamed.String(), nil
}

// rewriteFromGrid walks a grid-address expression tree and returns an
// equivalent name-form tree. Cross-sheet references are written by the
// exporter as "Sheet.B2" (sheet-qualified via '.', since Forge identifiers
// already permit '.' and the tokenizer has no '!', see DESIGN.md), which
// parses as an ast.RefTableColumn whose first part is the sheet name.
func rewriteFromGrid(alloc *Allocation, sheet string, e *ast.Expr) (*ast.Expr, error) {
	switch e.Kind {
	case ast.NumberLit, ast.TextLit, ast.BoolLit:
		return e, nil

	case ast.Ref:
		refSheet, addr := sheet, e.RefParts[0]
		if e.RefForm == ast.RefTableColumn && len(e.RefParts) == 2 {
			refSheet, addr = e.RefParts[0], e.RefParts[1]
		}
		if hit, ok := alloc.lookupSingle(refSheet, addr); ok {
			if refSheet == sheet && hit.Addr.Table != "" {
				// A same-sheet column reference is a sibling column of the
				// formula's own table, written bare as it was authored.
				return &ast.Expr{Kind: ast.Ref, RefForm: ast.RefName, RefParts: []string{hit.Addr.Name}}, nil
			}
			return nameRef(hit.Addr), nil
		}
		return nil, forgeerr.ImportExport(refSheet, addr, "address has no recorded allocation")

	case ast.Range:
		fromSheet, from := sheet, e.RangeFrom.RefParts[0]
		if e.RangeFrom.RefForm == ast.RefTableColumn && len(e.RangeFrom.RefParts) == 2 {
			fromSheet, from = e.RangeFrom.RefParts[0], e.RangeFrom.RefParts[1]
		}
		to := e.RangeTo.RefParts[len(e.RangeTo.RefParts)-1]
		if caddr, ok := alloc.lookupRange(fromSheet, from+":"+to); ok {
			return &ast.Expr{Kind: ast.Ref, RefForm: ast.RefTableColumn, RefParts: []string{caddr.Table, caddr.Name}}, nil
		}
		return nil, forgeerr.ImportExport(fromSheet, from+":"+to, "range has no recorded allocation")

	case ast.UnaryMinus:
		inner, err := rewriteFromGrid(alloc, sheet, e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.UnaryMinus, Right: inner}, nil

	case ast.BinaryOp:
		l, err := rewriteFromGrid(alloc, sheet, e.Left)
		if err != nil {
			return nil, err
		}
		r, err := rewriteFromGrid(alloc, sheet, e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.BinaryOp, Op: e.Op, Left: l, Right: r}, nil

	case ast.Call:
		args := make([]*ast.Expr, len(e.Args))
		for i, a := range e.Args {
			arg, err := rewriteFromGrid(alloc, sheet, a)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &ast.Expr{Kind: ast.Call, Func: e.Func, Args: args}, nil
	}
	return nil, forgeerr.ImportExport(sheet, "", "unsupported grid expression kind")
}

func nameRef(addr model.CellAddr) *ast.Expr {
	if addr.Table == "" {
		return &ast.Expr{Kind: ast.Ref, RefForm: ast.RefName, RefParts: []string{addr.Name}}
	}
	return &ast.Expr{Kind: ast.Ref, RefForm: ast.RefTableColumn, RefParts: []string{addr.Table, addr.Name}}
}
