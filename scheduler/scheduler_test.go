package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/loader"
	"github.com/forgelang/forge/model"
)

func loadModel(t *testing.T, content string) (*model.Model, *model.Registry) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	m, err := loader.Load(path)
	require.NoError(t, err)
	reg, err := model.Build(m)
	require.NoError(t, err)
	return m, reg
}

func TestSchedulerOrdersDependenciesBeforeDependents(t *testing.T) {
	require := require.New(t)

	m, reg := loadModel(t, `
financials:
  revenue: [1000, 1200]
  cogs: [300, 360]
  gross_profit: "=revenue - cogs"
  gross_margin: "=gross_profit / revenue"
`)
	g, err := analyzer.New(m, reg).Analyze()
	require.NoError(err)

	order, err := Order(reg, g)
	require.NoError(err)

	pos := map[model.CellID]int{}
	for i, id := range order {
		pos[id] = i
	}
	gpID, _ := reg.Lookup(model.CellAddr{Document: "test", Table: "financials", Name: "gross_profit"})
	gmID, _ := reg.Lookup(model.CellAddr{Document: "test", Table: "financials", Name: "gross_margin"})
	require.Less(pos[gpID], pos[gmID])
}

func TestSchedulerDetectsCycle(t *testing.T) {
	require := require.New(t)

	m, reg := loadModel(t, `
a:
  formula: "=b + 1"
b:
  formula: "=a + 1"
`)
	g, err := analyzer.New(m, reg).Analyze()
	require.NoError(err)

	_, err = Order(reg, g)
	require.Error(err)
	require.Contains(err.Error(), "test:a")
	require.Contains(err.Error(), "test:b")
}
