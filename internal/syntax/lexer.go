// Package syntax implements the §6 textual net grammar: a hand-written
// lexer feeding a recursive-descent parser, in the idiom of
// daios-ai-msg's lexer.go/parser.go pair (a TokenType enum, a Token
// carrying its raw lexeme, and a byte-at-a-time Lexer with a single
// lookahead rune) — that repo is reference material, not the teacher,
// so only the shape is borrowed here, not its code or its grammar.
package syntax

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

// TokenType identifies the kind of a lexical token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	AT       // @name (lexeme includes the @)
	AMP      // &
	TILDE    // ~
	STAR     // *
	HASH     // # (only ever precedes a numeric literal)
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }
	LANGLE   // <
	RANGLE   // >
	QUESTION // ?
	EQUALS   // =

	IDENT  // a bare variable name
	NUMBER // the digits/sign/dot after a #
	OPCODE // an operator token inside <op A B>
)

// Token is one lexical unit: its kind, the raw text it was scanned from,
// and the byte offset it started at (for error messages).
type Token struct {
	Type   TokenType
	Lexeme string
	Pos    int
}

// Lexer scans a textual net program one rune at a time.
type Lexer struct {
	src string
	pos int
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.pos++
			continue
		}
		if c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

// Next scans and returns the next token, or an EOF token at end of input.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Pos: start}, nil
	}

	c := l.src[l.pos]
	switch c {
	case '@':
		l.pos++
		name, err := l.scanIdent()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: AT, Lexeme: "@" + name, Pos: start}, nil
	case '&':
		l.pos++
		return Token{Type: AMP, Lexeme: "&", Pos: start}, nil
	case '~':
		l.pos++
		return Token{Type: TILDE, Lexeme: "~", Pos: start}, nil
	case '*':
		l.pos++
		return Token{Type: STAR, Lexeme: "*", Pos: start}, nil
	case '[':
		l.pos++
		return Token{Type: LBRACKET, Lexeme: "[", Pos: start}, nil
	case ']':
		l.pos++
		return Token{Type: RBRACKET, Lexeme: "]", Pos: start}, nil
	case '{':
		l.pos++
		return Token{Type: LBRACE, Lexeme: "{", Pos: start}, nil
	case '}':
		l.pos++
		return Token{Type: RBRACE, Lexeme: "}", Pos: start}, nil
	case '?':
		l.pos++
		return Token{Type: QUESTION, Lexeme: "?", Pos: start}, nil
	case '=':
		l.pos++
		return Token{Type: EQUALS, Lexeme: "=", Pos: start}, nil
	case '#':
		l.pos++
		lit := l.scanNumberLiteral()
		return Token{Type: NUMBER, Lexeme: lit, Pos: start}, nil
	case '<':
		l.pos++
		return Token{Type: LANGLE, Lexeme: "<", Pos: start}, nil
	case '>':
		l.pos++
		return Token{Type: RANGLE, Lexeme: ">", Pos: start}, nil
	}

	if isIdentStart(c) {
		name, err := l.scanIdent()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: IDENT, Lexeme: name, Pos: start}, nil
	}

	return Token{}, fmt.Errorf("syntax: unexpected byte %q at offset %d", c, start)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) scanIdent() (string, error) {
	start := l.pos
	if l.pos >= len(l.src) || !isIdentStart(l.src[l.pos]) {
		return "", fmt.Errorf("syntax: expected identifier at offset %d", l.pos)
	}
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos], nil
}

// scanNumberLiteral consumes everything a NUM literal can spell after the
// leading '#': an optional '-', digits, an optional '.digits', or one of
// the bareword specials NaN/inf/-inf.
func (l *Lexer) scanNumberLiteral() string {
	start := l.pos
	if l.peekByte() == '-' {
		l.pos++
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if (c >= '0' && c <= '9') || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			l.pos++
			continue
		}
		break
	}
	return l.src[start:l.pos]
}

// ScanOperator consumes the operator spelling of an `<op A B>` node's
// `op`, up to the next whitespace. The parser calls this directly (not
// through Next) right after consuming a LANGLE token that it has already
// determined introduces an OP2 rather than a `?<A B>` MAT, since operator
// spellings like "==" and "f32.+" don't tokenize under Next's one-rune
// dispatch.
func (l *Lexer) ScanOperator() (string, error) {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		l.pos++
	}
	if l.pos == start {
		return "", fmt.Errorf("syntax: expected operator after '<' at offset %d", start)
	}
	return l.src[start:l.pos], nil
}

// ParseNumberLiteral interprets the text scanned after a leading '#' by
// scanNumberLiteral into a concrete NUM port, per spec.md §6's literal
// forms: decimal ints are U60, a leading '-' makes I60, a decimal point
// or one of NaN/inf/-inf makes F60.
func ParseNumberLiteral(lit string) (port.Port, error) {
	switch lit {
	case "NaN":
		return numeric.NewFloat(float32(math.NaN())), nil
	case "inf":
		return numeric.NewFloat(float32(math.Inf(1))), nil
	case "-inf":
		return numeric.NewFloat(float32(math.Inf(-1))), nil
	}
	if strings.Contains(lit, ".") {
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return 0, fmt.Errorf("syntax: invalid float literal %q: %w", lit, err)
		}
		return numeric.NewFloat(float32(f)), nil
	}
	if strings.HasPrefix(lit, "-") {
		n, err := strconv.ParseInt(lit, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("syntax: invalid integer literal %q: %w", lit, err)
		}
		return port.NewNum(port.I60, int32(n)), nil
	}
	n, err := strconv.ParseUint(lit, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("syntax: invalid integer literal %q: %w", lit, err)
	}
	return port.NewNum(port.U60, int32(n)), nil
}
