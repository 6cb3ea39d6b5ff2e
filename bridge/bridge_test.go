package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/eval"
	"github.com/forgelang/forge/loader"
)

// TestS5SpreadsheetRoundTrip covers §8's scenario S5: one table of three
// literal columns and two row-wise formula columns, plus two aggregate
// scalars, survives an export/import round trip with formulas readable in
// name form and values intact within the tolerance.
func TestS5SpreadsheetRoundTrip(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "s5.yaml")
	require.NoError(os.WriteFile(srcPath, []byte(`financials:
  month: ["jan", "feb", "mar"]
  revenue: [100, 200, 300]
  cogs: [30, 60, 90]
  gross_profit: "=revenue - cogs"
  margin: "=gross_profit / revenue"
total_revenue:
  formula: "=SUM(financials.revenue)"
average_margin:
  formula: "=AVERAGE(financials.margin)"
`), 0644))

	m, err := loader.Load(srcPath)
	require.NoError(err)

	xlsxPath := filepath.Join(dir, "s5.xlsx")
	require.NoError(Export(context.Background(), m, xlsxPath))

	imported, err := Import(context.Background(), xlsxPath, ImportOptions{})
	require.NoError(err)
	require.Len(imported.Documents, 1)
	doc := imported.Documents[0]

	tbl, ok := doc.Table("financials")
	require.True(ok)
	gp, ok := tbl.Column("gross_profit")
	require.True(ok)
	require.Equal("=revenue - cogs", gp.Formula)
	margin, ok := tbl.Column("margin")
	require.True(ok)
	require.Equal("=gross_profit / revenue", margin.Formula)

	rev, ok := tbl.Column("revenue")
	require.True(ok)
	require.Len(rev.Values, 3)
	n, _ := rev.Values[0].AsNumber()
	require.InDelta(100, n, 1e-9)

	total, ok := doc.Scalar("total_revenue")
	require.True(ok)
	require.Equal("=SUM(financials.revenue)", total.Formula)

	avg, ok := doc.Scalar("average_margin")
	require.True(ok)
	require.Equal("=AVERAGE(financials.margin)", avg.Formula)

	// The round-tripped model computes to the same values as the source.
	_, err = eval.Run(context.Background(), imported, eval.DefaultConfig())
	require.NoError(err)
	totalVal, _ := total.Value.AsNumber()
	require.InDelta(600, totalVal, 1e-9)
	gpVals := gp.Values
	require.Len(gpVals, 3)
	gp0, _ := gpVals[0].AsNumber()
	require.InDelta(70, gp0, 1e-9)
}

func TestExportRefusesCyclicModel(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "cycle.yaml")
	require.NoError(os.WriteFile(srcPath, []byte(`a:
  formula: "=b"
b:
  formula: "=a"
`), 0644))

	m, err := loader.Load(srcPath)
	require.NoError(err)

	xlsxPath := filepath.Join(dir, "cycle.xlsx")
	err = Export(context.Background(), m, xlsxPath)
	require.Error(err)
	_, statErr := os.Stat(xlsxPath)
	require.True(os.IsNotExist(statErr))
}

func TestExportCrossSheetReferenceUsesDotQualifier(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "cross.yaml")
	require.NoError(os.WriteFile(srcPath, []byte(`tax_rate:
  value: 0.08
financials:
  revenue: [100, 200]
  tax: "=revenue * tax_rate"
`), 0644))

	m, err := loader.Load(srcPath)
	require.NoError(err)

	xlsxPath := filepath.Join(dir, "cross.xlsx")
	require.NoError(Export(context.Background(), m, xlsxPath))

	imported, err := Import(context.Background(), xlsxPath, ImportOptions{})
	require.NoError(err)
	doc := imported.Documents[0]
	tbl, ok := doc.Table("financials")
	require.True(ok)
	tax, ok := tbl.Column("tax")
	require.True(ok)
	require.Equal("=revenue * tax_rate", tax.Formula)
}
