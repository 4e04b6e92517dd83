package parser

import (
	"errors"
	"slices"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/grammar"
	"github.com/xplshn/cinterp/pkg/token"
)

var errMoreThanOneDefault = errors.New("Switch case has more than one default.")

func first(n []*ast.Node) *ast.Node { return n[0] }

// withTok gives n the token that locates from: its own token, or the first one under it.
func withTok(n, from *ast.Node) *ast.Node {
	switch {
	case from.Type == ast.Value || from.Tok.Line > 0:
		n.Tok = from.Tok
	default:
		if tok, ok := from.FirstToken(); ok {
			n.Tok = tok
		}
	}
	return n
}

func typeToks(n *ast.Node) []token.Token {
	if n.Type == ast.Value {
		return []token.Token{n.Tok}
	}
	return n.Toks
}

func initialization(n []*ast.Node) *ast.Node {
	return withTok(ast.NewBinary(ast.OpVarInit, n[0], n[2]), n[1])
}

func (r *rules) buildExpression() grammar.Grammar {
	assignOp := grammar.Pred(func(t token.Token) bool { return t.Kind == token.Punctuator && ast.AssignOps[t.Text] })
	assign := grammar.Seq(r.lvalue).Then(assignOp).Then(r.expression).As(func(n []*ast.Node) *ast.Node {
		return withTok(ast.NewBinary(n[1].Tok.Text, n[0], n[2]), n[1])
	})
	initList := grammar.Block("{", "}", grammar.List(r.expression, ",", false, ast.OpInitValues), ast.OpInitList)
	return grammar.Alt(assign, r.ternary, initList)
}

func (r *rules) buildTernary() grammar.Grammar {
	return grammar.Alt(
		grammar.Seq(r.flat).
			Then(grammar.Tok("?")).
			Then(r.ternary).
			Then(grammar.Tok(":")).Must("Invalid ternary operator: ':' is missed").
			Then(r.ternary).
			As(func(n []*ast.Node) *ast.Node {
				return withTok(ast.NewTernary(ast.OpTernary, n[0], n[2], n[4]), n[1])
			}),
		r.flat,
	)
}

func (r *rules) buildPrefix() grammar.Grammar {
	sizeof := grammar.Seq(grammar.Tok("sizeof")).
		Then(grammar.Tok("(")).Must("Invalid sizeof operator: '(' is missed.").
		Then(r.typ).Must("Invalid sizeof operator: type is missed.").
		Then(grammar.Tok(")")).Must("Invalid sizeof operator: ')' is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewOperator(ast.OpSizeof, n[2]), n[0]) })
	cast := grammar.Seq(grammar.Tok("(")).
		Then(r.typ).
		Then(grammar.Tok(")")).
		Then(r.prefix).
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewOperator(ast.OpCast, n[1], n[3]), n[0]) })
	return grammar.Alt(
		grammar.PreUnary("++", r.lvalue, ast.OpPreInc),
		grammar.PreUnary("--", r.lvalue, ast.OpPreDec),
		grammar.PreUnary("-", r.prefix, ast.OpNeg),
		grammar.PreUnary("+", r.prefix, ast.OpPlus),
		grammar.PreUnary("*", r.prefix, ast.OpDeref),
		grammar.PreUnary("!", r.prefix, ast.OpNot),
		grammar.PreUnary("~", r.prefix, ast.OpCompl),
		grammar.PreUnary("&", r.prefix, ast.OpAddr),
		sizeof,
		cast,
		r.postfix,
	)
}

func (r *rules) buildPostfix() grammar.Grammar {
	call := grammar.Seq(r.rvalue).
		Then(grammar.Tok("(")).
		Then(grammar.List(r.expression, ",", true, "Function call args")).
		Then(grammar.Tok(")")).Must("Invalid function calling: ')' is missed.").
		As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewOperator(ast.OpCall, slices.Concat([]*ast.Node{n[0]}, n[2].Children)...), n[0])
		})
	return grammar.Alt(
		grammar.PostUnary(r.lvalue, "++", ast.OpPostInc),
		grammar.PostUnary(r.lvalue, "--", ast.OpPostDec),
		call,
		r.rvalue,
	)
}

func (r *rules) buildRValue() grammar.Grammar {
	literal := grammar.Pred(func(t token.Token) bool { return t.Kind.IsLiteral() })
	return grammar.Alt(r.lvalue, grammar.Block("(", ")", r.expression, ""), literal)
}

// buildLValue matches something that can be assigned to: a name, a chain of
// "[..]", "." and "->" accesses, or a dereference.
func (r *rules) buildLValue() grammar.Grammar {
	membered := grammar.Alt(r.ident, grammar.Block("(", ")", r.expression, ""))
	access := grammar.Alt(
		grammar.Seq(grammar.Tok("[")).Then(r.expression).Then(grammar.Tok("]")).As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewUnary(ast.OpIndex, n[1]), n[0])
		}),
		grammar.Seq(grammar.Tok(".")).Then(r.ident).As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewUnary(ast.OpMember, n[1]), n[0])
		}),
		grammar.Seq(grammar.Tok("->")).
			Then(r.ident).Must("Invalid -> operator: identifier is missed.").
			As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewUnary(ast.OpArrow, n[1]), n[0]) }),
	)
	chain := grammar.Fold(membered, access, func(acc, next *ast.Node) *ast.Node {
		b := ast.NewBinary(next.Op, acc, next.Children[0])
		b.Tok = next.Tok
		return b
	}, false)
	return grammar.Alt(chain, grammar.PreUnary("*", r.prefix, ast.OpDeref), r.ident)
}
