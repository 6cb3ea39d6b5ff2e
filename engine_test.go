package forge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	forge "github.com/forgelang/forge"
	"github.com/forgelang/forge/config"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEngineLoadCalculateValidate(t *testing.T) {
	require := require.New(t)
	path := writeFixture(t, `
take_rate:
  value: 0.10
gross_margin:
  value: 0.5
  formula: "=1 - take_rate"
`)
	e := forge.New(config.Default())
	ctx := context.Background()

	m, err := e.Load(ctx, path)
	require.NoError(err)

	_, report, err := e.Calculate(ctx, m)
	require.NoError(err)
	require.NotEmpty(report.RunID.String())
	require.Empty(report.Errors)

	valReport, err := e.Validate(ctx, m)
	require.NoError(err)
	require.Len(valReport.Mismatches, 1) // stored 0.5 vs recomputed 0.9
}

func TestEngineWriteResolvesDocumentByPath(t *testing.T) {
	require := require.New(t)
	path := writeFixture(t, `
take_rate:
  value: 0.10
gross_margin:
  value: 0.5
  formula: "=1 - take_rate"
`)
	e := forge.New(config.Default())
	ctx := context.Background()

	m, err := e.Load(ctx, path)
	require.NoError(err)
	_, _, err = e.Calculate(ctx, m)
	require.NoError(err)

	diff, err := e.Write(ctx, path, m, true)
	require.NoError(err)
	require.True(diff.Changed)
}

func TestEngineExportImportRoundTrip(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := writeFixture(t, `
financials:
  revenue: [100, 200]
  cogs: [30, 60]
  gross_profit: "=revenue - cogs"
`)
	e := forge.New(config.Default())
	ctx := context.Background()

	m, err := e.Load(ctx, path)
	require.NoError(err)

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(e.Export(ctx, m, xlsxPath))

	imported, err := e.Import(ctx, xlsxPath, forge.ImportOptions{})
	require.NoError(err)
	require.Len(imported.Documents, 1)
}

func TestEngineAuditTracesDependencyChain(t *testing.T) {
	require := require.New(t)
	path := writeFixture(t, `
take_rate:
  value: 0.10
gross_margin:
  formula: "=1 - take_rate"
`)
	e := forge.New(config.Default())
	ctx := context.Background()

	m, err := e.Load(ctx, path)
	require.NoError(err)

	trace, err := e.Audit(ctx, m, "test:gross_margin")
	require.NoError(err)
	require.Equal("test:gross_margin", trace.Target.String())
	require.Len(trace.Steps, 2) // take_rate, then gross_margin

	last := trace.Steps[len(trace.Steps)-1]
	require.Equal("gross_margin", last.Cell.Name)
	n, _ := last.Value.AsNumber()
	require.InDelta(0.9, n, 1e-9)
}
