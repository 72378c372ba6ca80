package lexer

import (
	"testing"

	"github.com/xirelogy/go-wasmrepl/internal/token"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `def half(x: int) -> int:
    return x // 2
half(3)
`

	tests := []token.Token{
		{Type: token.Def, Literal: "def"},
		{Type: token.Ident, Literal: "half"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Ident, Literal: "x"},
		{Type: token.Colon, Literal: ":"},
		{Type: token.Ident, Literal: "int"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.Arrow, Literal: "->"},
		{Type: token.Ident, Literal: "int"},
		{Type: token.Colon, Literal: ":"},
		{Type: token.Newline},
		{Type: token.Indent},
		{Type: token.Return, Literal: "return"},
		{Type: token.Ident, Literal: "x"},
		{Type: token.SlashSlash, Literal: "//"},
		{Type: token.Number, Literal: "2"},
		{Type: token.Newline},
		{Type: token.Dedent},
		{Type: token.Ident, Literal: "half"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Number, Literal: "3"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.Newline},
		{Type: token.EOF},
	}

	l := New(input)
	for i, expected := range tests {
		tok := l.NextToken()
		if tok.Type != expected.Type || tok.Literal != expected.Literal {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Type, expected.Literal, tok.Type, tok.Literal)
		}
	}
}

func TestLexerClosesBlocksAtEOF(t *testing.T) {
	input := "if x:\n  if y:\n    pass"
	expected := []token.Type{
		token.If, token.Ident, token.Colon, token.Newline, token.Indent,
		token.If, token.Ident, token.Colon, token.Newline, token.Indent,
		token.Pass, token.Newline, token.Dedent, token.Dedent, token.EOF, token.EOF,
	}
	l := New(input)
	for i, want := range expected {
		if tok := l.NextToken(); tok.Type != want {
			t.Fatalf("token %d: expected %v, got %v", i, want, tok.Type)
		}
	}
}

func TestLexerSkipsBlankAndCommentLines(t *testing.T) {
	input := "x\n\n   # note\ny  # trailing\n"
	expected := []token.Type{token.Ident, token.Newline, token.Ident, token.Newline, token.EOF}
	l := New(input)
	for i, want := range expected {
		if tok := l.NextToken(); tok.Type != want {
			t.Fatalf("token %d: expected %v, got %v", i, want, tok.Type)
		}
	}
}

func TestLexerInconsistentDedent(t *testing.T) {
	input := "if x:\n    pass\n  pass\n"
	l := New(input)
	var sawIllegal bool
	for i := 0; i < 20; i++ {
		tok := l.NextToken()
		if tok.Type == token.Illegal {
			sawIllegal = true
			break
		}
		if tok.Type == token.EOF {
			break
		}
	}
	if !sawIllegal {
		t.Fatalf("expected an illegal token for inconsistent dedent")
	}
}

func TestLexerIgnoresNewlinesInParens(t *testing.T) {
	input := "max(1,\n    2)\n"
	expected := []token.Type{
		token.Ident, token.LParen, token.Number, token.Comma, token.Number, token.RParen,
		token.Newline, token.EOF,
	}
	l := New(input)
	for i, want := range expected {
		if tok := l.NextToken(); tok.Type != want {
			t.Fatalf("token %d: expected %v, got %v", i, want, tok.Type)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := New("a\n  bc")
	l.NextToken() // a
	l.NextToken() // newline
	l.NextToken() // indent
	tok := l.NextToken()
	if tok.Literal != "bc" || tok.Pos.Line != 2 || tok.Pos.Column != 3 {
		t.Fatalf("expected bc at 2:3, got %q at %d:%d", tok.Literal, tok.Pos.Line, tok.Pos.Column)
	}
}
