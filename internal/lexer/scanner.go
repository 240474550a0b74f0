package lexer

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType string

const (
	// Keywords
	TokenAnd      TokenType = "AND"
	TokenDo       TokenType = "DO"
	TokenElse     TokenType = "ELSE"
	TokenElseif   TokenType = "ELSEIF"
	TokenEnd      TokenType = "END"
	TokenFunction TokenType = "FUNCTION"
	TokenIf       TokenType = "IF"
	TokenLocal    TokenType = "LOCAL"
	TokenNil      TokenType = "NIL"
	TokenNot      TokenType = "NOT"
	TokenOr       TokenType = "OR"
	TokenRepeat   TokenType = "REPEAT"
	TokenReturn   TokenType = "RETURN"
	TokenThen     TokenType = "THEN"
	TokenUntil    TokenType = "UNTIL"
	TokenWhile    TokenType = "WHILE"

	// Literals
	TokenIdent  TokenType = "IDENT"
	TokenString TokenType = "STRING"
	TokenNumber TokenType = "NUMBER"

	// Symbols
	TokenLParen    TokenType = "("
	TokenRParen    TokenType = ")"
	TokenLBrace    TokenType = "{"
	TokenRBrace    TokenType = "}"
	TokenLBracket  TokenType = "["
	TokenRBracket  TokenType = "]"
	TokenPlus      TokenType = "+"
	TokenMinus     TokenType = "-"
	TokenStar      TokenType = "*"
	TokenSlash     TokenType = "/"
	TokenCaret     TokenType = "^"
	TokenEqual     TokenType = "="
	TokenEqEq      TokenType = "=="
	TokenNotEqual  TokenType = "~="
	TokenLT        TokenType = "<"
	TokenGT        TokenType = ">"
	TokenLE        TokenType = "<="
	TokenGE        TokenType = ">="
	TokenConcat    TokenType = ".."
	TokenDots      TokenType = "..."
	TokenComma     TokenType = ","
	TokenDot       TokenType = "."
	TokenColon     TokenType = ":"
	TokenSemicolon TokenType = ";"
	TokenEOF       TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"and":      TokenAnd,
	"do":       TokenDo,
	"else":     TokenElse,
	"elseif":   TokenElseif,
	"end":      TokenEnd,
	"function": TokenFunction,
	"if":       TokenIf,
	"local":    TokenLocal,
	"nil":      TokenNil,
	"not":      TokenNot,
	"or":       TokenOr,
	"repeat":   TokenRepeat,
	"return":   TokenReturn,
	"then":     TokenThen,
	"until":    TokenUntil,
	"while":    TokenWhile,
}

// Token is one lexeme. For strings Lexeme holds the decoded contents.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	File   string
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s'", t.Type, t.Lexeme)
}

// LexError is a malformed token.
type LexError struct {
	Message string
	Line    int
}

func (e LexError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type Scanner struct {
	source  string
	file    string
	tokens  []Token
	errors  []LexError
	start   int
	current int
	line    int
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// NewScannerWithFile creates a scanner whose tokens remember the chunk name.
func NewScannerWithFile(source, file string) *Scanner {
	s := NewScanner(source)
	s.file = file
	return s
}

func (s *Scanner) ScanTokens() []Token {
	// A leading '#' line is a shebang.
	if s.current == 0 && len(s.source) > 0 && s.source[0] == '#' {
		s.skipLine()
	}

	for !s.isAtEnd() {
		s.sanitize()
		s.start = s.current
		if s.isAtEnd() {
			break
		}
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF, Lexeme: "<eof>", Line: s.line, File: s.file})
	return s.tokens
}

// HadError reports whether any malformed input was seen.
func (s *Scanner) HadError() bool {
	return len(s.errors) > 0
}

// Errors returns the lexical errors in source order.
func (s *Scanner) Errors() []LexError {
	return s.errors
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '{':
		s.addToken(TokenLBrace)
	case '}':
		s.addToken(TokenRBrace)
	case ']':
		s.addToken(TokenRBracket)
	case '[':
		if s.peek() == '[' {
			s.advance()
			s.longString()
		} else {
			s.addToken(TokenLBracket)
		}
	case '+':
		s.addToken(TokenPlus)
	case '-':
		if s.match('-') {
			s.skipLine()
		} else {
			s.addToken(TokenMinus)
		}
	case '*':
		s.addToken(TokenStar)
	case '/':
		s.addToken(TokenSlash)
	case '^':
		s.addToken(TokenCaret)
	case '=':
		if s.match('=') {
			s.addToken(TokenEqEq)
		} else {
			s.addToken(TokenEqual)
		}
	case '~':
		if s.match('=') {
			s.addToken(TokenNotEqual)
		} else {
			s.error("unexpected symbol '~'")
		}
	case '<':
		if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case ':':
		s.addToken(TokenColon)
	case ',':
		s.addToken(TokenComma)
	case ';':
		s.addToken(TokenSemicolon)
	case '.':
		if s.match('.') {
			if s.match('.') {
				s.addToken(TokenDots)
			} else {
				s.addToken(TokenConcat)
			}
		} else if isDigit(s.peek()) {
			s.number()
		} else {
			s.addToken(TokenDot)
		}
	case '"', '\'':
		s.string(c)
	default:
		if isDigit(c) {
			s.number()
		} else if isAlpha(c) {
			s.identifier()
		} else {
			s.error(fmt.Sprintf("unexpected symbol '%c'", c))
		}
	}
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	if kw, ok := keywords[text]; ok {
		s.addToken(kw)
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	if s.peek() == 'e' || s.peek() == 'E' {
		save := s.current
		s.advance()
		if s.peek() == '+' || s.peek() == '-' {
			s.advance()
		}
		if !isDigit(s.peek()) {
			s.current = save
		}
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	if isAlpha(s.peek()) {
		s.error(fmt.Sprintf("malformed number near '%s'", s.source[s.start:s.current+1]))
		return
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) string(quote byte) {
	var sb strings.Builder
	for s.peek() != quote {
		if s.isAtEnd() || s.peek() == '\n' {
			s.error("unfinished string")
			return
		}
		c := s.advance()
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if s.isAtEnd() {
			s.error("unfinished string")
			return
		}
		switch e := s.advance(); e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '\n':
			s.line++
			sb.WriteByte('\n')
		default:
			if isDigit(e) {
				n := int(e - '0')
				for i := 0; i < 2 && isDigit(s.peek()); i++ {
					n = n*10 + int(s.advance()-'0')
				}
				if n > 255 {
					s.error("escape sequence too large")
					return
				}
				sb.WriteByte(byte(n))
			} else {
				sb.WriteByte(e)
			}
		}
	}
	s.advance()
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: sb.String(), Line: s.line, File: s.file})
}

// longString reads a [[...]] literal. Nested [[ ]] pairs are allowed.
func (s *Scanner) longString() {
	line := s.line
	level := 1
	if s.peek() == '\n' {
		s.line++
		s.advance()
	}
	begin := s.current
	for {
		if s.isAtEnd() {
			s.error("unfinished long string")
			return
		}
		c := s.advance()
		switch {
		case c == '\n':
			s.line++
		case c == '[' && s.peek() == '[':
			s.advance()
			level++
		case c == ']' && s.peek() == ']':
			s.advance()
			level--
			if level == 0 {
				value := s.source[begin : s.current-2]
				s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: value, Line: line, File: s.file})
				return
			}
		}
	}
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Line: s.line, File: s.file})
}

func (s *Scanner) error(msg string) {
	s.errors = append(s.errors, LexError{Message: msg, Line: s.line})
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return '\000'
	}
	return s.source[s.current+1]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) sanitize() {
	for !s.isAtEnd() && unicode.IsSpace(rune(s.peek())) {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
}

func (s *Scanner) skipLine() {
	for !s.isAtEnd() && s.peek() != '\n' {
		s.advance()
	}
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
