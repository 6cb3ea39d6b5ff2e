package forgeerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCycleErrorNamesCells(t *testing.T) {
	require := require.New(t)

	err := Cycle([]string{"test.a", "test.b"})
	require.True(err.Is(KindCycle))
	require.Contains(err.Error(), "test.a")
	require.Contains(err.Error(), "test.b")
}

func TestReferenceErrorCarriesSuggestion(t *testing.T) {
	require := require.New(t)

	err := Reference("=Revene - cogs", "test.formula", "Revene", "Revenue", []string{"Revenue", "cogs"})
	require.Equal("Revenue", err.Suggestion)
	require.Contains(err.Error(), `did you mean "Revenue"?`)
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	require := require.New(t)

	var err error = fmt.Errorf("outer: %w", Shape("minus", 3, 4))
	require.True(Is(err, KindShape))
	require.False(Is(err, KindCycle))
}
