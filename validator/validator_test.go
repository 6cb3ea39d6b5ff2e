package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/config"
	"github.com/forgelang/forge/loader"
)

func TestS2ValidateReportsExactlyOneMismatch(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(os.WriteFile(path, []byte(`
take_rate:
  value: 0.10
gross_margin:
  value: 0.5
  formula: "=1 - take_rate"
`), 0644))

	m, err := loader.Load(path)
	require.NoError(err)

	report, err := Validate(context.Background(), m, config.Default())
	require.NoError(err)
	require.Len(report.Mismatches, 1)

	mismatch := report.Mismatches[0]
	require.Equal("test:gross_margin", mismatch.Cell.String())
	storedVal, _ := mismatch.Stored.AsNumber()
	computedVal, _ := mismatch.Computed.AsNumber()
	require.Equal(0.5, storedVal)
	require.InDelta(0.9, computedVal, 1e-9)
}

func TestValidateAcceptsWithinTolerance(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(os.WriteFile(path, []byte(`
take_rate:
  value: 0.10
gross_margin:
  value: 0.9000000001
  formula: "=1 - take_rate"
`), 0644))

	m, err := loader.Load(path)
	require.NoError(err)

	report, err := Validate(context.Background(), m, config.Default())
	require.NoError(err)
	require.Empty(report.Mismatches)
}
