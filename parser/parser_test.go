package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/ast"
)

func TestParsePrecedence(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=1 + 2 * 3 ^ 2")
	require.NoError(err)
	require.Equal("1 + 2 * 3 ^ 2", expr.String())
	require.Equal(ast.BinaryOp, expr.Kind)
	require.Equal(ast.OpAdd, expr.Op)
}

func TestParseComparisonIsLowestPrecedence(t *testing.T) {
	require := require.New(t)

	expr, err := Parse(`revenue - cogs > target & " units"`)
	require.NoError(err)
	require.Equal(ast.OpGt, expr.Op)
}

func TestParseUnaryMinus(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=-revenue + 1")
	require.NoError(err)
	require.Equal(ast.OpAdd, expr.Op)
	require.Equal(ast.UnaryMinus, expr.Left.Kind)
}

func TestParseFunctionCall(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=SUM(revenue, cogs, 1)")
	require.NoError(err)
	require.Equal(ast.Call, expr.Kind)
	require.Equal("SUM", expr.Func)
	require.Len(expr.Args, 3)
}

func TestParseTableColumnReference(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=financials.revenue")
	require.NoError(err)
	require.Equal(ast.RefTableColumn, expr.RefForm)
	require.Equal([]string{"financials", "revenue"}, expr.RefParts)
}

func TestParseCrossDocumentReference(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=@pricing.base_price * 1.1")
	require.NoError(err)
	require.Equal(ast.RefCrossDoc, expr.Left.RefForm)
	require.Equal([]string{"pricing", "base_price"}, expr.Left.RefParts)
}

func TestParseIndex(t *testing.T) {
	require := require.New(t)

	expr, err := Parse("=revenue[1]")
	require.NoError(err)
	require.Equal(ast.Index, expr.Kind)
}

func TestParseRangeRejectedOutsideGridContext(t *testing.T) {
	require := require.New(t)

	_, err := Parse("=A:B")
	require.Error(err)
}

func TestParseGridAcceptsRange(t *testing.T) {
	require := require.New(t)

	expr, err := ParseGrid("=SUM(A2:A101)")
	require.NoError(err)
	require.Equal(ast.Range, expr.Args[0].Kind)
}

func TestParseErrorReportsPosition(t *testing.T) {
	require := require.New(t)

	_, err := Parse("=1 +")
	require.Error(err)
	var perr *Error
	require.ErrorAs(err, &perr)
}

func TestParseUnclosedParen(t *testing.T) {
	require := require.New(t)

	_, err := Parse("=(1 + 2")
	require.Error(err)
}
