package grammar

import (
	"errors"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

type step struct {
	g   Grammar
	msg string // non-empty: a miss here is a syntax error
}

// Sequence matches its steps one after the other. Build it with Seq, Then and Must, and
// close it with As or AsChecked.
type Sequence struct {
	steps []step
	merge func([]*ast.Node) (*ast.Node, error)
}

func Seq(first Grammar) *Sequence {
	return &Sequence{steps: []step{{g: first}}}
}

func (q *Sequence) Then(g Grammar) *Sequence {
	q.steps = append(q.steps, step{g: g})
	return q
}

// Must turns a miss of the preceding step into a syntax error with message msg.
func (q *Sequence) Must(msg string) *Sequence {
	q.steps[len(q.steps)-1].msg = msg
	return q
}

// As sets the function that builds the result from the matched nodes.
func (q *Sequence) As(merge func([]*ast.Node) *ast.Node) *Sequence {
	q.merge = func(nodes []*ast.Node) (*ast.Node, error) { return merge(nodes), nil }
	return q
}

// AsChecked is like As, but the merge may reject the match with a syntax error located at
// the first token of the sequence.
func (q *Sequence) AsChecked(merge func([]*ast.Node) (*ast.Node, error)) *Sequence {
	q.merge = merge
	return q
}

func (q *Sequence) Match(s *State, pos int) (*ast.Node, int, error) {
	start := pos
	nodes := make([]*ast.Node, 0, len(q.steps))
	for _, st := range q.steps {
		node, next, err := st.g.Match(s, pos)
		if err != nil {
			return nil, start, err
		}
		if node == nil {
			if st.msg != "" {
				return nil, start, s.ErrorAt(pos, "%s", st.msg)
			}
			return nil, start, nil
		}
		nodes = append(nodes, node)
		pos = next
	}
	if q.merge == nil {
		if len(nodes) == 1 {
			return nodes[0], pos, nil
		}
		return ast.NewOperator("", nodes...), pos, nil
	}
	node, err := q.merge(nodes)
	if err != nil {
		var syn *util.SyntaxError
		if !errors.As(err, &syn) {
			syn = s.ErrorAt(start, "%s", err.Error())
		}
		return nil, start, syn
	}
	return node, pos, nil
}

// Fold matches first and then rest as many times as possible, combining with merge from the
// left. Unless canEmpty, at least one rest must match.
func Fold(first, rest Grammar, merge func(acc, next *ast.Node) *ast.Node, canEmpty bool) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		acc, next, err := first.Match(s, pos)
		if acc == nil || err != nil {
			return nil, pos, err
		}
		folded := 0
		for {
			node, after, err := rest.Match(s, next)
			if err != nil {
				return nil, pos, err
			}
			if node == nil || after == next {
				break
			}
			acc = merge(acc, node)
			next = after
			folded++
		}
		if folded == 0 && !canEmpty {
			return nil, pos, nil
		}
		return acc, next, nil
	})
}

// Binary is a left-associative chain of operand separated by any of ops. Each operator node is
// named by the operator and carries its token.
func Binary(operand Grammar, ops ...string) Grammar {
	opSet := make(map[string]bool, len(ops))
	for _, op := range ops {
		opSet[op] = true
	}
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		left, next, err := operand.Match(s, pos)
		if left == nil || err != nil {
			return nil, pos, err
		}
		for !s.AtEnd(next) {
			tok := s.Tokens[next]
			if tok.Kind != token.Punctuator || !opSet[tok.Text] {
				break
			}
			right, after, err := operand.Match(s, next+1)
			if err != nil {
				return nil, pos, err
			}
			if right == nil {
				break
			}
			left = ast.NewBinary(tok.Text, left, right)
			left.Tok = tok
			next = after
		}
		return left, next, nil
	})
}

// PreUnary matches op followed by operand.
func PreUnary(op string, operand Grammar, name string) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		if s.AtEnd(pos) || !s.Tokens[pos].Is(op) {
			return nil, pos, nil
		}
		child, next, err := operand.Match(s, pos+1)
		if child == nil || err != nil {
			return nil, pos, err
		}
		node := ast.NewUnary(name, child)
		node.Tok = s.Tokens[pos]
		return node, next, nil
	})
}

// PostUnary matches operand followed by op.
func PostUnary(operand Grammar, op string, name string) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		child, next, err := operand.Match(s, pos)
		if child == nil || err != nil {
			return nil, pos, err
		}
		if s.AtEnd(next) || !s.Tokens[next].Is(op) {
			return nil, pos, nil
		}
		node := ast.NewUnary(name, child)
		node.Tok = s.Tokens[next]
		return node, next + 1, nil
	})
}

// Block matches inner between the punctuators left and right. An empty name defaults to
// left+".."+right.
func Block(left, right string, inner Grammar, name string) Grammar {
	if name == "" {
		name = left + ".." + right
	}
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		if s.AtEnd(pos) || !s.Tokens[pos].Is(left) {
			return nil, pos, nil
		}
		node, next, err := inner.Match(s, pos+1)
		if node == nil || err != nil {
			return nil, pos, err
		}
		if s.AtEnd(next) || !s.Tokens[next].Is(right) {
			return nil, pos, nil
		}
		block := ast.NewUnary(name, node)
		block.Tok = s.Tokens[pos]
		return block, next + 1, nil
	})
}

// List matches zero or more elem. Without a separator it stops at the first element that does
// not match and may always be empty. With a separator, an element must follow every separator
// and the list is empty only if canEmpty.
func List(elem Grammar, sep string, canEmpty bool, name string) Grammar {
	return GrammarFunc(func(s *State, pos int) (*ast.Node, int, error) {
		var items []*ast.Node
		next := pos
		for {
			if sep != "" && len(items) > 0 {
				if s.AtEnd(next) || !s.Tokens[next].Is(sep) {
					break
				}
				node, after, err := elem.Match(s, next+1)
				if err != nil {
					return nil, pos, err
				}
				if node == nil {
					return nil, pos, nil
				}
				items = append(items, node)
				next = after
				continue
			}
			node, after, err := elem.Match(s, next)
			if err != nil {
				return nil, pos, err
			}
			if node == nil || after == next {
				break
			}
			items = append(items, node)
			next = after
		}
		if len(items) == 0 && sep != "" && !canEmpty {
			return nil, pos, nil
		}
		return ast.NewOperator(name, items...), next, nil
	})
}
