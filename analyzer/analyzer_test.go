package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/loader"
	"github.com/forgelang/forge/model"
)

func load(t *testing.T, dir, name, content string) *model.Model {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	m, err := loader.Load(path)
	require.NoError(t, err)
	return m
}

func TestAnalyzeSimpleDerivedColumn(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	m := load(t, dir, "financials.yaml", `
financials:
  revenue: [1000, 1200, 1500, 1800]
  cogs: [300, 360, 450, 540]
  gross_profit: "=revenue - cogs"
`)

	reg, err := model.Build(m)
	require.NoError(err)

	g, err := New(m, reg).Analyze()
	require.NoError(err)

	gpID, ok := reg.Lookup(model.CellAddr{Document: "financials", Table: "financials", Name: "gross_profit"})
	require.True(ok)
	require.Len(g.Edges[gpID], 2)
}

func TestAnalyzeUnresolvedReferenceSuggestsMatch(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	m := load(t, dir, "financials.yaml", `
financials:
  Revenue: [1000]
  cogs: [300]
  gross_profit: "=Revene - cogs"
`)

	reg, err := model.Build(m)
	require.NoError(err)

	_, err = New(m, reg).Analyze()
	require.Error(err)
	require.Contains(err.Error(), "Revenue")
}

func TestAnalyzeCrossDocumentReference(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	require.NoError(os.WriteFile(filepath.Join(dir, "pricing.yaml"), []byte(`
base_price:
  value: 100
`), 0644))
	m := load(t, dir, "main.yaml", `
includes:
  pricing: pricing.yaml
markup:
  formula: "=@pricing.base_price * 1.1"
`)

	reg, err := model.Build(m)
	require.NoError(err)

	g, err := New(m, reg).Analyze()
	require.NoError(err)

	markupID, ok := reg.Lookup(model.CellAddr{Document: "main", Name: "markup"})
	require.True(ok)
	require.Len(g.Edges[markupID], 1)
}

func TestAnalyzeUnknownAliasIsReferenceError(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	m := load(t, dir, "main.yaml", `
markup:
  formula: "=@nope.base_price * 1.1"
`)

	reg, err := model.Build(m)
	require.NoError(err)

	_, err = New(m, reg).Analyze()
	require.Error(err)
}
