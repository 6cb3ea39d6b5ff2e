package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRegistersCellsInDocumentOrder(t *testing.T) {
	require := require.New(t)

	doc := NewDocument("test", "test.yaml")
	doc.Scalars = append(doc.Scalars,
		&Scalar{Path: "a", Formula: "=b + 1"},
		&Scalar{Path: "b", Value: Num(1), HasValue: true},
	)
	m := NewModel()
	m.AddDocument(doc)

	reg, err := Build(m)
	require.NoError(err)
	require.Equal(2, reg.Len())

	idA, ok := reg.Lookup(CellAddr{Document: "test", Name: "a"})
	require.True(ok)
	require.Equal(CellID(0), idA)
	require.NotNil(reg.Cell(idA).Formula)
}

func TestValueCoercion(t *testing.T) {
	require := require.New(t)

	b := Boolean(true)
	n, err := b.AsNumber()
	require.Nil(err)
	require.Equal(1.0, n)

	s := Str("3.5")
	n2, err := s.AsNumber()
	require.Nil(err)
	require.Equal(3.5, n2)

	badStr := Str("not a number")
	_, err = badStr.AsNumber()
	require.NotNil(err)
}

func TestColumnVsScalarAreDistinct(t *testing.T) {
	require := require.New(t)

	single := Vec([]Value{Num(5)})
	require.True(single.IsColumn())
	require.Equal(1, single.Len())

	scalar := Num(5)
	require.False(scalar.IsColumn())
}
