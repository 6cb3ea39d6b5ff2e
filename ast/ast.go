// Package ast defines the expression tree produced by the parser (§4.2) and
// walked by the analyser, evaluator, and spreadsheet bridge.
//
// Per §9's design notes, nodes are a flat tagged union with owned sub-trees
// rather than a hierarchy of interface implementations: every package that
// walks a tree switches on Kind instead of type-asserting distinct node
// types.
package ast

import (
	"fmt"
	"strings"

	"github.com/forgelang/forge/token"
)

// Kind tags the variant of an Expr node.
type Kind int

const (
	Invalid Kind = iota
	NumberLit
	TextLit
	BoolLit
	Ref
	Call
	UnaryMinus
	BinaryOp
	Range
	Index
)

func (k Kind) String() string {
	switch k {
	case NumberLit:
		return "NumberLit"
	case TextLit:
		return "TextLit"
	case BoolLit:
		return "BoolLit"
	case Ref:
		return "Ref"
	case Call:
		return "Call"
	case UnaryMinus:
		return "UnaryMinus"
	case BinaryOp:
		return "BinaryOp"
	case Range:
		return "Range"
	case Index:
		return "Index"
	}
	return "Invalid"
}

// Op identifies a binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
)

var opSymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpPow: "^", OpConcat: "&",
	OpEq: "=", OpNeq: "<>", OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">=",
}

func (o Op) String() string { return opSymbols[o] }

// OpFromToken maps a binary operator token to its Op, used by both the
// parser and the spreadsheet bridge's formula rewriter.
func OpFromToken(t token.Type) (Op, bool) {
	switch t {
	case token.PLUS:
		return OpAdd, true
	case token.MINUS:
		return OpSub, true
	case token.STAR:
		return OpMul, true
	case token.SLASH:
		return OpDiv, true
	case token.CARET:
		return OpPow, true
	case token.AMP:
		return OpConcat, true
	case token.EQ:
		return OpEq, true
	case token.NEQ:
		return OpNeq, true
	case token.LT:
		return OpLt, true
	case token.LTE:
		return OpLte, true
	case token.GT:
		return OpGt, true
	case token.GTE:
		return OpGte, true
	}
	return 0, false
}

// RefForm distinguishes the three reference syntaxes of §3.
type RefForm int

const (
	RefName        RefForm = iota // name
	RefTableColumn                // table.column
	RefCrossDoc                   // @alias.path
)

// Expr is a single expression tree node. Only the fields relevant to Kind
// are populated; this is the "flat variant with owned sub-trees" of §9.
type Expr struct {
	Kind Kind
	Pos  token.Pos

	// NumberLit
	Number float64
	// TextLit
	Text string
	// BoolLit
	Bool bool

	// Ref
	RefForm  RefForm
	RefParts []string // dotted path components, alias stripped of '@'

	// Call
	Func string
	Args []*Expr

	// UnaryMinus / BinaryOp
	Op    Op
	Left  *Expr
	Right *Expr // UnaryMinus uses Right as its operand

	// Range (A:B, grid formulas only)
	RangeFrom *Expr
	RangeTo   *Expr

	// Index (X[i])
	Base  *Expr
	Index *Expr
}

// String renders a canonical textual form, used in error messages and
// round-trip tests.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case NumberLit:
		return trimFloat(e.Number)
	case TextLit:
		return fmt.Sprintf("%q", e.Text)
	case BoolLit:
		if e.Bool {
			return "TRUE"
		}
		return "FALSE"
	case Ref:
		prefix := ""
		if e.RefForm == RefCrossDoc {
			prefix = "@"
		}
		return prefix + strings.Join(e.RefParts, ".")
	case Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = a.String()
		}
		return e.Func + "(" + strings.Join(args, ", ") + ")"
	case UnaryMinus:
		return "-" + e.Right.String()
	case BinaryOp:
		return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
	case Range:
		return e.RangeFrom.String() + ":" + e.RangeTo.String()
	case Index:
		return e.Base.String() + "[" + e.Index.String() + "]"
	}
	return "<invalid>"
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// Walk calls visit on every node in the tree rooted at e, in pre-order.
// Used by the dependency analyser, the evaluator, and the bridge's formula
// rewriter (one traversal helper shared by all three).
func Walk(e *Expr, visit func(*Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e.Kind {
	case Call:
		for _, a := range e.Args {
			Walk(a, visit)
		}
	case UnaryMinus:
		Walk(e.Right, visit)
	case BinaryOp:
		Walk(e.Left, visit)
		Walk(e.Right, visit)
	case Range:
		Walk(e.RangeFrom, visit)
		Walk(e.RangeTo, visit)
	case Index:
		Walk(e.Base, visit)
		Walk(e.Index, visit)
	}
}
