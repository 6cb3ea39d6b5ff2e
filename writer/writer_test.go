package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/eval"
	"github.com/forgelang/forge/loader"
)

func TestWriteDryRunLeavesFileUntouched(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	original := `take_rate:
  value: 0.10
gross_margin:
  value: 0.5
  formula: "=1 - take_rate"
`
	require.NoError(os.WriteFile(path, []byte(original), 0644))

	m, err := loader.Load(path)
	require.NoError(err)
	_, err = eval.Run(context.Background(), m, eval.DefaultConfig())
	require.NoError(err)

	diff, err := Write(context.Background(), path, m, "test", true)
	require.NoError(err)
	require.True(diff.Changed)

	onDisk, err := os.ReadFile(path)
	require.NoError(err)
	require.Equal(original, string(onDisk))
}

func TestWriteSubstitutesComputedScalarValue(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(os.WriteFile(path, []byte(`take_rate:
  value: 0.10
gross_margin:
  value: 0.5
  formula: "=1 - take_rate"
`), 0644))

	m, err := loader.Load(path)
	require.NoError(err)
	_, err = eval.Run(context.Background(), m, eval.DefaultConfig())
	require.NoError(err)

	diff, err := Write(context.Background(), path, m, "test", false)
	require.NoError(err)
	require.True(diff.Changed)

	onDisk, err := os.ReadFile(path)
	require.NoError(err)

	reloaded, err := loader.Load(path)
	require.NoError(err)
	doc, ok := reloaded.Document("test")
	require.True(ok)
	margin, ok := doc.Scalar("gross_margin")
	require.True(ok)
	n, _ := margin.Value.AsNumber()
	require.InDelta(0.9, n, 1e-9)

	// take_rate, which has no formula, is left byte-for-byte untouched.
	require.Contains(string(onDisk), "take_rate:")
}

func TestWriteAddsComputedColumnSibling(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(os.WriteFile(path, []byte(`financials:
  revenue: [100, 200]
  cogs: [30, 60]
  gross_profit: "=revenue - cogs"
`), 0644))

	m, err := loader.Load(path)
	require.NoError(err)
	_, err = eval.Run(context.Background(), m, eval.DefaultConfig())
	require.NoError(err)

	diff, err := Write(context.Background(), path, m, "test", false)
	require.NoError(err)
	require.True(diff.Changed)
	require.Contains(diff.After, "gross_profit_computed")

	reloaded, err := loader.Load(path)
	require.NoError(err)
	doc, ok := reloaded.Document("test")
	require.True(ok)
	tbl, ok := doc.Table("financials")
	require.True(ok)
	_, ok = tbl.Column("gross_profit_computed")
	require.True(ok)
}

func TestWriteNoOpWhenNoFormulasPresent(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	original := `take_rate:
  value: 0.10
`
	require.NoError(os.WriteFile(path, []byte(original), 0644))

	m, err := loader.Load(path)
	require.NoError(err)

	diff, err := Write(context.Background(), path, m, "test", false)
	require.NoError(err)
	require.False(diff.Changed)

	onDisk, err := os.ReadFile(path)
	require.NoError(err)
	require.Equal(original, string(onDisk))
}
