package lexer

import (
	"strings"

	"github.com/xplshn/cinterp/pkg/token"
)

const simpleEscapes = `abefnrtv\?"'`

func isOctalDigit(c rune) bool { return c >= '0' && c <= '7' }

// lexEscape scans one escape sequence starting at the backslash and pushes it as an
// EscapeSequence sub-token.
func (l *Lexer) lexEscape() bool {
	begin, line, col := l.pos, l.line, l.column
	l.advance()

	c := l.peek()
	n := 0
	switch {
	case c != 0 && strings.ContainsRune(simpleEscapes, c):
		n = 1
	case isOctalDigit(c) && isOctalDigit(l.peekNext()) && isOctalDigit(l.peekAt(2)):
		n = 3
	case (c == 'x' || c == 'X') && isHexDigit(l.peekNext()) && isHexDigit(l.peekAt(2)):
		n = 3
		if isHexDigit(l.peekAt(3)) && isHexDigit(l.peekAt(4)) {
			n = 5
		}
	case c == '0':
		n = 1
	default:
		l.fail("Invalid escape sequence")
		return false
	}
	for range n {
		l.advance()
	}
	text := string(l.source[begin:l.pos])
	l.tokens = append(l.tokens, token.Token{Kind: token.EscapeSequence, Text: text, Line: line, Column: col, Len: l.pos - begin})
	return true
}

// pushPart pushes a sub-token that starts at begin.
func (l *Lexer) pushPart(kind token.Kind, begin, line, col int) {
	l.tokens = append(l.tokens, token.Token{
		Kind: kind, Text: string(l.source[begin:l.pos]), Line: line, Column: col, Len: l.pos - begin,
	})
}

// assemble consumes the closing quote, pops the sub-tokens pushed since the opening quote
// of kind open and replaces them by a single literal whose text is their concatenation.
func (l *Lexer) assemble(kind, open token.Kind) {
	begin, line, col := l.pos, l.line, l.column
	l.advance()
	closing := token.Token{Kind: open, Text: string(l.source[begin:l.pos]), Line: line, Column: col, Len: 1}

	i := len(l.tokens) - 1
	for i >= 0 && l.tokens[i].Kind != open {
		i--
	}
	parts := make([]token.Token, len(l.tokens)-i, len(l.tokens)-i+1)
	copy(parts, l.tokens[i:])
	parts = append(parts, closing)
	l.tokens = l.tokens[:i]

	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	tok := l.makeToken(kind, sb.String())
	tok.Parts = parts
	l.tokens = append(l.tokens, tok)
}

func lexString(l *Lexer) stateFn {
	if l.peek() == 'L' {
		l.advance()
	}
	l.advance()
	l.pushPart(token.DoubleQuotes, l.start, l.startLine, l.startCol)

	partStart, partLine, partCol := l.pos, l.line, l.column
	flush := func() {
		if l.pos > partStart {
			l.pushPart(token.StringPart, partStart, partLine, partCol)
		}
	}
	for {
		switch c := l.peek(); {
		case l.isAtEnd() || c == '\n':
			return l.failAtStart("Unclosed quote.")
		case c == '\\':
			flush()
			if !l.lexEscape() {
				return nil
			}
			partStart, partLine, partCol = l.pos, l.line, l.column
		case c == '"':
			flush()
			l.assemble(token.StringLiteral, token.DoubleQuotes)
			return lexDefault
		default:
			l.advance()
		}
	}
}

func lexChar(l *Lexer) stateFn {
	l.advance()
	l.pushPart(token.Quotes, l.start, l.startLine, l.startCol)

	switch c := l.peek(); {
	case l.isAtEnd() || c == '\n':
		return l.failAtStart("Unclosed quote.")
	case c == '\'':
		return l.fail("Empty char literal")
	case c == '\\':
		if !l.lexEscape() {
			return nil
		}
	default:
		begin, line, col := l.pos, l.line, l.column
		l.advance()
		l.pushPart(token.CharLiteral, begin, line, col)
	}

	if l.isAtEnd() {
		return l.failAtStart("Unclosed quote.")
	}
	if l.peek() != '\'' {
		return l.fail("Invalid char literal")
	}
	l.assemble(token.CharLiteral, token.Quotes)
	return lexDefault
}
