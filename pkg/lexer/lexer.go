package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

// stateFn is one state of the scanner; it returns the next state, or nil to stop.
type stateFn func(*Lexer) stateFn

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int

	// start of the lexeme being scanned
	start     int
	startLine int
	startCol  int

	// numeric literal scratch space shared by the number states
	lexeme strings.Builder
	radix  token.Radix

	tokens []token.Token
	ids    map[string]int
	cfg    *config.Config
	err    error
}

func NewLexer(source string, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{
		source: []rune(source), line: 1, column: 1, cfg: cfg, ids: make(map[string]int),
	}
}

// LexicalAnalysis tokenizes src with the default configuration.
func LexicalAnalysis(src string) ([]token.Token, error) {
	return NewLexer(src, nil).Tokenize()
}

// Tokenize runs the state machine to the end of the input. On failure no tokens are returned.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	for state := lexDefault; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	for i := range l.tokens {
		l.tokens[i].ID = l.intern(l.tokens[i].Text)
	}
	return l.tokens, nil
}

// intern hands out ids in order of first appearance, starting at 1.
func (l *Lexer) intern(text string) int {
	if id, ok := l.ids[text]; ok {
		return id
	}
	id := len(l.ids) + 1
	l.ids[text] = id
	return id
}

func (l *Lexer) peek() rune { return l.peekAt(0) }

func (l *Lexer) peekNext() rune { return l.peekAt(1) }

func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.source) {
		return 0
	}
	return l.source[l.pos+n]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) mark() { l.start, l.startLine, l.startCol = l.pos, l.line, l.column }

func (l *Lexer) makeToken(kind token.Kind, text string) token.Token {
	return token.Token{Kind: kind, Text: text, Line: l.startLine, Column: l.startCol, Len: l.pos - l.start}
}

func (l *Lexer) emit(kind token.Kind, text string) { l.tokens = append(l.tokens, l.makeToken(kind, text)) }

// fail records the error at the current character and stops the machine.
func (l *Lexer) fail(format string, args ...any) stateFn {
	l.err = &util.LexicalError{Pos: util.Pos{Line: l.line, Column: l.column, Len: 1}, Msg: fmt.Sprintf(format, args...)}
	return nil
}

// failAtStart records the error at the start of the current lexeme.
func (l *Lexer) failAtStart(format string, args ...any) stateFn {
	pos := util.Pos{Line: l.startLine, Column: l.startCol, Len: max(l.pos-l.start, 1)}
	l.err = &util.LexicalError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	return nil
}

func lexDefault(l *Lexer) stateFn {
	for unicode.IsSpace(l.peek()) {
		l.advance()
	}
	if l.isAtEnd() {
		return nil
	}
	l.mark()

	c := l.peek()
	switch {
	case unicode.IsDigit(c):
		l.lexeme.Reset()
		l.radix = token.Decimal
		return lexNumber
	case c == '"' || (c == 'L' && l.peekNext() == '"'):
		return lexString
	case unicode.IsLetter(c) || c == '_':
		return lexIdentifier
	case c == '.':
		return lexPoint
	case c == '#':
		if !l.cfg.IsFeatureEnabled(config.FeatDirectives) {
			return l.fail("Unknown symbol: %c", c)
		}
		return lexDirective
	case strings.ContainsRune("()[]{};,", c):
		l.advance()
		l.emit(token.Punctuator, string(c))
		return lexDefault
	case c == '\'':
		return lexChar
	case c == '/':
		return lexSlash
	case strings.ContainsRune("+-*%<>~|&^=!?:", c):
		return lexOperator
	}
	return l.fail("Unknown symbol: %c", c)
}

func lexIdentifier(l *Lexer) stateFn {
	for c := l.peek(); unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'; c = l.peek() {
		l.advance()
	}
	text := string(l.source[l.start:l.pos])
	kind := token.Identifier
	if token.TypeKeywords[text] {
		kind = token.Type
	} else if token.Keywords[text] {
		kind = token.Keyword
	}
	l.emit(kind, text)
	return lexDefault
}

func lexDirective(l *Lexer) stateFn {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	l.emit(token.Directive, strings.TrimRightFunc(string(l.source[l.start:l.pos]), unicode.IsSpace))
	return lexDefault
}

func lexPoint(l *Lexer) stateFn {
	next := l.peekNext()
	switch {
	case unicode.IsLetter(next) || next == '_':
		l.advance()
		l.emit(token.Punctuator, ".")
		return lexDefault
	case unicode.IsDigit(next):
		l.lexeme.Reset()
		return lexFloat
	}
	return l.fail("Invalid point position.")
}

func lexSlash(l *Lexer) stateFn {
	switch l.peekNext() {
	case '/':
		for !l.isAtEnd() && l.peek() != '\n' {
			l.advance()
		}
		return lexDefault
	case '*':
		l.advance()
		l.advance()
		for !l.isAtEnd() {
			if l.peek() == '*' && l.peekNext() == '/' {
				l.advance()
				l.advance()
				return lexDefault
			}
			l.advance()
		}
		return l.failAtStart("Unclosed block comment.")
	}
	return lexOperator
}

// operators is ordered so that the longest spelling is tried first.
var operators = []string{
	"<<=", ">>=",
	"++", "+=", "--", "-=", "->", "*=", "/=", "%=", "<<", "<=", ">>", ">=",
	"||", "|=", "&&", "&=", "^=", "==", "!=",
	"+", "-", "*", "/", "%", "<", ">", "~", "|", "&", "^", "=", "!", "?", ":",
}

func lexOperator(l *Lexer) stateFn {
	for _, op := range operators {
		if l.hasPrefix(op) {
			for range len(op) {
				l.advance()
			}
			l.emit(token.Punctuator, op)
			return lexDefault
		}
	}
	return l.fail("Unknown symbol: %c", l.peek())
}

func (l *Lexer) hasPrefix(s string) bool {
	for i, r := range []rune(s) {
		if l.peekAt(i) != r {
			return false
		}
	}
	return true
}
