package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestScanTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"assignment", "x = 1", []TokenType{TokenIdent, TokenEqual, TokenNumber, TokenEOF}},
		{"keywords", "if x then return end", []TokenType{TokenIf, TokenIdent, TokenThen, TokenReturn, TokenEnd, TokenEOF}},
		{"comparison", "a ~= b == c <= d >= e", []TokenType{
			TokenIdent, TokenNotEqual, TokenIdent, TokenEqEq, TokenIdent, TokenLE, TokenIdent, TokenGE, TokenIdent, TokenEOF,
		}},
		{"dots", "a .. b ...", []TokenType{TokenIdent, TokenConcat, TokenIdent, TokenDots, TokenEOF}},
		{"comment", "x -- ignored\ny", []TokenType{TokenIdent, TokenIdent, TokenEOF}},
		{"method call", "t:m{}", []TokenType{TokenIdent, TokenColon, TokenIdent, TokenLBrace, TokenRBrace, TokenEOF}},
		{"index", "t[1]", []TokenType{TokenIdent, TokenLBracket, TokenNumber, TokenRBracket, TokenEOF}},
		{"shebang", "#!/usr/bin/env wisp\nx", []TokenType{TokenIdent, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(tt.input)
			got := tokenTypes(s.ScanTokens())
			require.False(t, s.HadError(), "errors: %v", s.Errors())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'it''s'`, "it"},
		{`"a\nb"`, "a\nb"},
		{`"\65\66"`, "AB"},
		{`"q\"q"`, `q"q`},
		{"[[long\nstring]]", "long\nstring"},
		{"[[a [[nested]] b]]", "a [[nested]] b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := NewScanner(tt.input).ScanTokens()
			require.Equal(t, TokenString, tokens[0].Type)
			require.Equal(t, tt.want, tokens[0].Lexeme)
		})
	}
}

func TestNumbers(t *testing.T) {
	for _, input := range []string{"1", "3.25", ".5", "1e10", "2E-3"} {
		tokens := NewScanner(input).ScanTokens()
		require.Equal(t, TokenNumber, tokens[0].Type, input)
		require.Equal(t, input, tokens[0].Lexeme)
	}
}

func TestLexicalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"stray hash", "invalid syntax ###"},
		{"unfinished string", `x = "abc`},
		{"lone tilde", "a ~ b"},
		{"malformed number", "x = 12ab"},
		{"unfinished long string", "[[abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(tt.input)
			s.ScanTokens()
			require.True(t, s.HadError())
		})
	}
}

func TestLineNumbers(t *testing.T) {
	tokens := NewScanner("a\nb\n\nc").ScanTokens()
	require.Equal(t, 1, tokens[0].Line)
	require.Equal(t, 2, tokens[1].Line)
	require.Equal(t, 4, tokens[2].Line)
}
