package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/token"
)

func TestTokenizeArithmetic(t *testing.T) {
	require := require.New(t)

	toks, err := Tokenize("=revenue - cogs")
	require.NoError(err)
	require.Equal([]token.Type{token.IDENT, token.MINUS, token.IDENT, token.EOF}, types(toks))
}

func TestTokenizeMultiCharOperators(t *testing.T) {
	require := require.New(t)

	toks, err := Tokenize("a <= b <> c >= d")
	require.NoError(err)
	require.Equal([]token.Type{
		token.IDENT, token.LTE, token.IDENT, token.NEQ, token.IDENT, token.GTE, token.IDENT, token.EOF,
	}, types(toks))
}

func TestTokenizeStringWithDoubledQuoteEscape(t *testing.T) {
	require := require.New(t)

	toks, err := Tokenize(`"say ""hi"""`)
	require.NoError(err)
	require.Len(toks, 2)
	require.Equal(`say "hi"`, toks[0].Literal)
}

func TestTokenizeScientificNotation(t *testing.T) {
	require := require.New(t)

	toks, err := Tokenize("1.5e-3 + 2E+4")
	require.NoError(err)
	require.Equal("1.5e-3", toks[0].Literal)
	require.Equal("2E+4", toks[2].Literal)
}

func TestTokenizeCrossDocumentReference(t *testing.T) {
	require := require.New(t)

	toks, err := Tokenize("@pricing.base_price * 1.1")
	require.NoError(err)
	require.Equal("@pricing.base_price", toks[0].Literal)
}

func TestTokenizeUnterminatedStringIsError(t *testing.T) {
	require := require.New(t)

	_, err := Tokenize(`"unterminated`)
	require.Error(err)
	var lexErr *Error
	require.ErrorAs(err, &lexErr)
}

func TestTokenizeUnexpectedCharacterIsError(t *testing.T) {
	require := require.New(t)

	_, err := Tokenize("a $ b")
	require.Error(err)
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}
