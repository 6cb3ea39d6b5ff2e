package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSimpleTable(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "financials.yaml", `
_forge_version: "1.0.0"
financials:
  revenue: [1000, 1200, 1500, 1800]
  cogs: [300, 360, 450, 540]
  gross_profit: "=revenue - cogs"
  gross_margin: "=gross_profit / revenue"
`)

	m, err := Load(path)
	require.NoError(err)
	require.Len(m.Documents, 1)

	doc := m.Documents[0]
	tbl, ok := doc.Table("financials")
	require.True(ok)
	require.Equal(4, tbl.RowCount)

	gp, ok := tbl.Column("gross_profit")
	require.True(ok)
	require.Equal("=revenue - cogs", gp.Formula)
}

func TestLoadScalarAggregation(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "test.yaml", `
take_rate:
  value: 0.10
gross_margin:
  formula: "=1 - take_rate"
`)

	m, err := Load(path)
	require.NoError(err)
	doc := m.Documents[0]

	tr, ok := doc.Scalar("take_rate")
	require.True(ok)
	require.Equal(0.10, tr.Value.Number)

	gm, ok := doc.Scalar("gross_margin")
	require.True(ok)
	require.Equal("=1 - take_rate", gm.Formula)
}

func TestLoadCrossDocumentInclude(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	writeFile(t, dir, "pricing.yaml", `
base_price:
  value: 100
`)
	path := writeFile(t, dir, "main.yaml", `
includes:
  pricing: pricing.yaml
markup:
  formula: "=@pricing.base_price * 1.1"
`)

	m, err := Load(path)
	require.NoError(err)
	doc := m.Documents[0]
	require.Contains(doc.Includes, "pricing")
	require.Equal(doc.Includes["pricing"].Name, "pricing")
}

func TestLoadMismatchedColumnLengthIsError(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "bad.yaml", `
financials:
  revenue: [1000, 1200, 1500]
  cogs: [300, 360]
`)

	_, err := Load(path)
	require.Error(err)
}

func TestLoadIncludeCycleIsDetected(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	writeFile(t, dir, "a.yaml", `
includes:
  b: b.yaml
x:
  value: 1
`)
	path := writeFile(t, dir, "b.yaml", `
includes:
  a: a.yaml
y:
  value: 2
`)

	_, err := Load(path)
	require.Error(err)
}
