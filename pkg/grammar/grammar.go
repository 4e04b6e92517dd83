// Package grammar is a small parser-combinator library over token slices. A Grammar either
// matches at a position, returning the node it built and the position after it, fails softly
// (nil node, nil error) so that an enclosing alternative can try something else, or fails hard
// with a *util.SyntaxError that aborts the whole parse.
package grammar

import (
	"fmt"
	"sync"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

type Grammar interface {
	Match(s *State, pos int) (*ast.Node, int, error)
}

// State is the per-parse input and memo table. Grammars themselves are immutable and may be
// shared between goroutines; a State may not.
type State struct {
	Tokens []token.Token
	memo   map[memoKey]memoEntry
	far    int
}

type memoKey struct {
	rule *Ref
	pos  int
}

type memoEntry struct {
	node *ast.Node
	next int
	err  error
}

func NewState(tokens []token.Token) *State {
	return &State{Tokens: tokens, memo: make(map[memoKey]memoEntry)}
}

func (s *State) AtEnd(pos int) bool { return pos >= len(s.Tokens) }

// Furthest is the position of the rightmost token any grammar failed to match.
func (s *State) Furthest() int { return s.far }

// ErrorAt builds a syntax error located at the token at pos, or just past the last token.
func (s *State) ErrorAt(pos int, format string, args ...any) *util.SyntaxError {
	var p util.Pos
	switch {
	case pos < len(s.Tokens):
		p = util.PosOf(s.Tokens[pos])
	case len(s.Tokens) > 0:
		last := s.Tokens[len(s.Tokens)-1]
		p = util.Pos{Line: last.Line, Column: last.Column + last.Len, Len: 1}
	}
	return &util.SyntaxError{Pos: p, Msg: fmt.Sprintf(format, args...)}
}

// GrammarFunc adapts a function to the Grammar interface.
type GrammarFunc func(s *State, pos int) (*ast.Node, int, error)

func (f GrammarFunc) Match(s *State, pos int) (*ast.Node, int, error) { return f(s, pos) }

// Pred matches one token satisfying fn and yields it as a Value node.
func Pred(fn func(token.Token) bool) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		if s.AtEnd(pos) || !fn(s.Tokens[pos]) {
			s.far = max(s.far, pos)
			return nil, pos, nil
		}
		return ast.NewValue(s.Tokens[pos]), pos + 1, nil
	})
}

// Tok matches a punctuator, keyword or type keyword spelled text.
func Tok(text string) Grammar {
	return Pred(func(t token.Token) bool { return t.Is(text) })
}

func Kind(kind token.Kind) Grammar {
	return Pred(func(t token.Token) bool { return t.Kind == kind })
}

// Empty always matches without consuming input.
func Empty() Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		return ast.NewEmpty(), pos, nil
	})
}

// Alt tries each alternative from the same position and returns the first match.
func Alt(alts ...Grammar) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		for _, g := range alts {
			node, next, err := g.Match(s, pos)
			if err != nil {
				return nil, pos, err
			}
			if node != nil {
				return node, next, nil
			}
		}
		return nil, pos, nil
	})
}

// Ref is a named, lazily built grammar. It breaks the cycles of a recursive grammar and
// memoizes its results per State and position.
type Ref struct {
	Name  string
	build func() Grammar
	once  sync.Once
	g     Grammar
}

func Rule(name string, build func() Grammar) *Ref {
	return &Ref{Name: name, build: build}
}

func (r *Ref) Match(s *State, pos int) (*ast.Node, int, error) {
	key := memoKey{r, pos}
	if e, ok := s.memo[key]; ok {
		return e.node, e.next, e.err
	}
	r.once.Do(func() { r.g = r.build() })
	node, next, err := r.g.Match(s, pos)
	if node == nil {
		next = pos
	}
	s.memo[key] = memoEntry{node, next, err}
	return node, next, err
}
