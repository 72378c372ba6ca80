package lexer

import (
	"strings"

	"github.com/xirelogy/go-wasmrepl/internal/token"
)

const tabWidth = 8

// Lexer converts source text into a stream of tokens, synthesising
// INDENT/DEDENT tokens from leading whitespace.
type Lexer struct {
	input       string
	pos         int  // current position in bytes
	readPos     int  // next read position
	ch          byte // current char
	line        int
	column      int
	parenDepth  int
	indents     []int
	pending     []token.Token
	atLineStart bool
	eof         bool
	lastToken   token.Type
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		column:      0,
		indents:     []int{0},
		atLineStart: true,
		lastToken:   token.Newline, // treat start as newline boundary
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return l.finishToken(tok)
	}
	if l.atLineStart && l.parenDepth == 0 {
		l.atLineStart = false
		if tok, ok := l.readIndentation(); ok {
			return tok
		}
	}

	for {
		l.skipWhitespace()

		if l.ch == '#' {
			l.skipLineComment()
			continue
		}

		if l.ch == '\n' {
			tok := l.makeToken(token.Newline, "")
			l.readChar()
			if l.parenDepth > 0 {
				continue
			}
			l.atLineStart = true
			return l.finishToken(tok)
		}

		if l.ch == 0 {
			return l.endOfInput()
		}

		switch l.ch {
		case '=':
			return l.oneOrTwo('=', token.Assign, token.Equal)
		case '!':
			if l.peekChar() == '=' {
				return l.twoChar(token.NotEqual)
			}
			return l.single(token.Illegal)
		case '<':
			return l.oneOrTwo('=', token.Less, token.LessEqual)
		case '>':
			return l.oneOrTwo('=', token.Greater, token.GreaterEqual)
		case '-':
			return l.oneOrTwo('>', token.Minus, token.Arrow)
		case '/':
			if l.peekChar() == '/' {
				return l.twoChar(token.SlashSlash)
			}
			return l.single(token.Illegal)
		case '+':
			return l.single(token.Plus)
		case '*':
			return l.single(token.Star)
		case '%':
			return l.single(token.Percent)
		case ',':
			return l.single(token.Comma)
		case ':':
			return l.single(token.Colon)
		case '.':
			return l.single(token.Dot)
		case '(':
			l.parenDepth++
			return l.single(token.LParen)
		case ')':
			if l.parenDepth > 0 {
				l.parenDepth--
			}
			return l.single(token.RParen)
		default:
			if isLetter(l.ch) {
				return l.readIdentifier()
			}
			if isDigit(l.ch) {
				return l.readNumber()
			}
			return l.single(token.Illegal)
		}
	}
}

// readIndentation measures the leading whitespace of the next non-blank
// line and queues INDENT/DEDENT tokens when the level changes.
func (l *Lexer) readIndentation() (token.Token, bool) {
	for {
		width := 0
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			switch l.ch {
			case ' ':
				width++
			case '\t':
				width += tabWidth - width%tabWidth
			}
			l.readChar()
		}
		switch l.ch {
		case '\n':
			l.readChar()
			continue
		case '#':
			l.skipLineComment()
			continue
		case 0:
			return token.Token{}, false
		}

		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			return l.finishToken(l.makeToken(token.Indent, "")), true
		case width < top:
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				l.pending = append(l.pending, l.makeToken(token.Dedent, ""))
			}
			if l.indents[len(l.indents)-1] != width {
				l.pending = append(l.pending, l.makeToken(token.Illegal, "inconsistent dedent"))
			}
			return l.NextToken(), true
		default:
			return token.Token{}, false
		}
	}
}

func (l *Lexer) endOfInput() token.Token {
	if l.eof {
		return l.finishToken(l.makeToken(token.EOF, ""))
	}
	l.eof = true
	if l.lastToken != token.Newline && l.lastToken != token.Dedent {
		l.pending = append(l.pending, l.makeToken(token.Newline, ""))
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.pending = append(l.pending, l.makeToken(token.Dedent, ""))
	}
	l.pending = append(l.pending, l.makeToken(token.EOF, ""))
	return l.NextToken()
}

func (l *Lexer) single(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return l.finishToken(tok)
}

func (l *Lexer) twoChar(t token.Type) token.Token {
	ch := l.ch
	tok := l.makeToken(t, "")
	l.readChar()
	tok.Literal = string(ch) + string(l.ch)
	l.readChar()
	return l.finishToken(tok)
}

func (l *Lexer) oneOrTwo(next byte, one, two token.Type) token.Token {
	if l.peekChar() == next {
		return l.twoChar(two)
	}
	return l.single(one)
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Pos: token.Position{
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) finishToken(tok token.Token) token.Token {
	l.lastToken = tok.Type
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	start := l.makeToken(token.Ident, "")
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	start.Type = token.LookupIdent(lit)
	start.Literal = lit
	return l.finishToken(start)
}

func (l *Lexer) readNumber() token.Token {
	start := l.makeToken(token.Number, "")
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	start.Literal = sb.String()
	return l.finishToken(start)
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
