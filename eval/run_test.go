package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/loader"
	"github.com/forgelang/forge/model"
)

func writeDoc(t *testing.T, content string) *model.Model {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	m, err := loader.Load(path)
	require.NoError(t, err)
	return m
}

func TestS1SimpleDerivedColumn(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
financials:
  revenue: [1000, 1200, 1500, 1800]
  cogs: [300, 360, 450, 540]
  gross_profit: "=revenue - cogs"
  gross_margin: "=gross_profit / revenue"
`)

	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)
	require.Empty(res.Errors)

	doc, _ := m.Document("test")
	table, _ := doc.Table("financials")

	gp, _ := table.Column("gross_profit")
	gm, _ := table.Column("gross_margin")

	wantProfit := []float64{700, 840, 1050, 1260}
	for i, want := range wantProfit {
		got, err := gp.Values[i].AsNumber()
		require.Nil(err)
		require.InDelta(want, got, 1e-9)
	}
	for _, v := range gm.Values {
		got, err := v.AsNumber()
		require.Nil(err)
		require.InDelta(0.7, got, 1e-9)
	}
}

func TestS2ScalarAggregation(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
take_rate:
  value: 0.10
gross_margin:
  formula: "=1 - take_rate"
`)

	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)
	require.Empty(res.Errors)

	doc, _ := m.Document("test")
	gm, ok := doc.Scalar("gross_margin")
	require.True(ok)
	got, gerr := gm.Value.AsNumber()
	require.Nil(gerr)
	require.InDelta(0.9, got, 1e-9)
}

func TestDivisionByZeroPropagatesAsErrorValue(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
financials:
  revenue: [100, 50]
  cogs: [10, 0]
  ratio: "=revenue / cogs"
  doubled: "=ratio * 2"
`)
	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)

	doc, _ := m.Document("test")
	table, _ := doc.Table("financials")
	doubled, _ := table.Column("doubled")
	require.False(doubled.Values[0].IsError())
	require.True(doubled.Values[1].IsError())
	require.NotEmpty(res.Errors)
}

func TestShapeMismatchBetweenColumnsIsError(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
a:
  x: [1, 2, 3]
b:
  y: [1, 2]
total:
  formula: "=SUM(a.x + b.y)"
`)
	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)
	require.NotEmpty(res.Errors)

	doc, _ := m.Document("test")
	total, _ := doc.Scalar("total")
	require.True(total.Value.IsError())
}

func TestAggregateFunctionOverColumn(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
financials:
  revenue: [100, 200, 300]
total_revenue:
  formula: "=SUM(financials.revenue)"
average_revenue:
  formula: "=AVERAGE(financials.revenue)"
`)
	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)
	require.Empty(res.Errors)

	doc, _ := m.Document("test")
	total, _ := doc.Scalar("total_revenue")
	avg, _ := doc.Scalar("average_revenue")
	tv, _ := total.Value.AsNumber()
	av, _ := avg.Value.AsNumber()
	require.InDelta(600, tv, 1e-9)
	require.InDelta(200, av, 1e-9)
}

func TestIfShortCircuitsUnevaluatedBranch(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
financials:
  revenue: [0, 100]
  safe_ratio: "=IF(revenue = 0, 0, 100 / revenue)"
`)
	res, err := Run(context.Background(), m, DefaultConfig())
	require.NoError(err)
	require.Empty(res.Errors)

	doc, _ := m.Document("test")
	table, _ := doc.Table("financials")
	col, _ := table.Column("safe_ratio")
	first, _ := col.Values[0].AsNumber()
	require.Equal(0.0, first)
}

func TestTodayUsesConfiguredNow(t *testing.T) {
	require := require.New(t)
	m := writeDoc(t, `
today_value:
  formula: "=TODAY()"
`)
	fixed := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)
	res, err := Run(context.Background(), m, Config{Now: fixed})
	require.NoError(err)
	require.Empty(res.Errors)

	doc, _ := m.Document("test")
	s, _ := doc.Scalar("today_value")
	got, _ := s.Value.AsNumber()
	require.InDelta(timeToSerial(fixed), got, 1e-9)
}
