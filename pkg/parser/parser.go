package parser

import (
	"slices"
	"sync"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/grammar"
	"github.com/xplshn/cinterp/pkg/token"
)

// Parser runs the C grammar over a token stream
type Parser struct {
	g grammar.Grammar
}

// The grammar graph is immutable, so one copy per feature set is shared by every parse.
var grammars = [2]func() grammar.Grammar{
	sync.OnceValue(func() grammar.Grammar { return build(false) }),
	sync.OnceValue(func() grammar.Grammar { return build(true) }),
}

// NewParser selects the grammar variant for cfg; a nil cfg means the defaults.
func NewParser(cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	variant := 0
	if cfg.IsFeatureEnabled(config.FeatNestedBlocks) {
		variant = 1
	}
	return &Parser{g: grammars[variant]()}
}

// SyntaxAnalysis parses tokens with the default configuration.
func SyntaxAnalysis(tokens []token.Token) (*ast.Node, error) {
	return NewParser(nil).Parse(tokens)
}

// Parse returns the "Program" node, or the first syntax error.
func (p *Parser) Parse(tokens []token.Token) (*ast.Node, error) {
	s := grammar.NewState(tokens)
	root, next, err := p.g.Match(s, 0)
	if err != nil {
		return nil, err
	}
	if root == nil || next != len(tokens) {
		return nil, s.ErrorAt(max(next, s.Furthest()), "Invalid syntax")
	}
	return root, nil
}

type rules struct {
	nestedBlocks bool

	program, structDecl, funcDecl, funcProto *grammar.Ref
	ifStmt, switchStmt, caseStmt, forLoop    *grammar.Ref
	whileLoop, doWhile, scope, lines, line   *grammar.Ref
	instruction, label, keyword              *grammar.Ref
	varCreating, varDecl, typ, ident         *grammar.Ref
	expression, ternary, flat, shift         *grammar.Ref
	additive, multiplicative, prefix         *grammar.Ref
	postfix, rvalue, lvalue                  *grammar.Ref
}

func build(nestedBlocks bool) grammar.Grammar {
	r := &rules{nestedBlocks: nestedBlocks}
	r.program = grammar.Rule("Program", r.buildProgram)
	r.structDecl = grammar.Rule("StructDecl", r.buildStructDecl)
	r.funcDecl = grammar.Rule("FunctionDecl", r.buildFuncDecl)
	r.funcProto = grammar.Rule("FunctionPrototype", r.buildFuncProto)
	r.ifStmt = grammar.Rule("If", r.buildIf)
	r.switchStmt = grammar.Rule("Switch", r.buildSwitch)
	r.caseStmt = grammar.Rule("Case", r.buildCase)
	r.forLoop = grammar.Rule("For", r.buildFor)
	r.whileLoop = grammar.Rule("While", r.buildWhile)
	r.doWhile = grammar.Rule("DoWhile", r.buildDoWhile)
	r.scope = grammar.Rule("Scope", r.buildScope)
	r.lines = grammar.Rule("Lines", r.buildLines)
	r.line = grammar.Rule("Line", r.buildLine)
	r.instruction = grammar.Rule("Instruction", r.buildInstruction)
	r.label = grammar.Rule("Label", r.buildLabel)
	r.keyword = grammar.Rule("Keyword", r.buildKeyword)
	r.varCreating = grammar.Rule("VariableCreating", r.buildVarCreating)
	r.varDecl = grammar.Rule("VariableDeclaration", r.buildVarDecl)
	r.typ = grammar.Rule("Type", r.buildType)
	r.ident = grammar.Rule("Ident", func() grammar.Grammar { return grammar.Kind(token.Identifier) })
	r.expression = grammar.Rule("Expression", r.buildExpression)
	r.ternary = grammar.Rule("Ternary", r.buildTernary)
	r.flat = grammar.Rule("Binary", func() grammar.Grammar {
		return grammar.Binary(r.shift, "==", "!=", ">", "<", ">=", "<=", "&", "^", "|", "&&", "||")
	})
	r.shift = grammar.Rule("Shift", func() grammar.Grammar { return grammar.Binary(r.additive, "<<", ">>") })
	r.additive = grammar.Rule("Additive", func() grammar.Grammar { return grammar.Binary(r.multiplicative, "+", "-") })
	r.multiplicative = grammar.Rule("Multiplicative", func() grammar.Grammar {
		return grammar.Binary(r.prefix, "*", "/", "%")
	})
	r.prefix = grammar.Rule("Prefix", r.buildPrefix)
	r.postfix = grammar.Rule("Postfix", r.buildPostfix)
	r.rvalue = grammar.Rule("RValue", r.buildRValue)
	r.lvalue = grammar.Rule("LValue", r.buildLValue)
	return r.program
}

// Declarations

func (r *rules) buildProgram() grammar.Grammar {
	globalVars := grammar.Seq(r.varCreating).
		Then(grammar.Tok(";")).Must("; missed after variable creating.").
		As(first)
	item := grammar.Alt(r.structDecl, r.funcDecl, r.funcProto, globalVars, grammar.Kind(token.Directive))
	return grammar.List(item, "", true, ast.OpProgram)
}

func (r *rules) buildStructDecl() grammar.Grammar {
	field := grammar.Seq(r.varDecl).
		Then(grammar.Tok(";")).Must("Invalid struct field declaration: ';' is missed.").
		As(first)
	fields := grammar.Block("{", "}", grammar.List(field, "", true, ast.OpStructFields), ast.OpStructFields)
	return grammar.Seq(grammar.Tok("struct")).
		Then(r.ident).
		Then(fields).
		Then(grammar.Tok(";")).Must("Invalid structure declaration: ';' is missed.").
		As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewBinary(ast.OpStructDecl, n[1], n[2].Children[0]), n[0])
		})
}

// params matches a parameter list; "(void)" and "()" both declare none.
func (r *rules) params() grammar.Grammar {
	none := grammar.Seq(grammar.Tok("void")).As(func([]*ast.Node) *ast.Node {
		return ast.NewOperator(ast.OpFuncParams)
	})
	return grammar.Alt(
		grammar.List(r.varCreating, ",", false, ast.OpFuncParams),
		none,
		grammar.List(r.varCreating, ",", true, ast.OpFuncParams),
	)
}

func (r *rules) buildFuncDecl() grammar.Grammar {
	return grammar.Seq(r.typ).
		Then(r.ident).
		Then(grammar.Tok("(")).
		Then(r.params()).
		Then(grammar.Tok(")")).Must("Invalid function declaration: ')' is missed.").
		Then(r.scope).
		As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewOperator(ast.OpFuncDecl, n[0], n[1], n[3], n[5]), n[1])
		})
}

func (r *rules) buildFuncProto() grammar.Grammar {
	return grammar.Seq(r.typ).
		Then(r.ident).
		Then(grammar.Tok("(")).
		Then(r.params()).
		Then(grammar.Tok(")")).Must("Invalid function declaration: ')' is missed.").
		Then(grammar.Tok(";")).
		As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewOperator(ast.OpFuncProto, n[0], n[1], n[3]), n[1])
		})
}

// buildType matches a specifier list such as "unsigned long *" or "struct point *".
// One token stays a Value node, anything longer becomes a Types node.
func (r *rules) buildType() grammar.Grammar {
	structType := grammar.Seq(grammar.Tok("struct")).Then(r.ident).As(func(n []*ast.Node) *ast.Node {
		return ast.NewTypes(n[0].Tok, n[1].Tok)
	})
	word := grammar.Kind(token.Type)
	return grammar.Fold(
		grammar.Alt(structType, word),
		grammar.Alt(structType, word, grammar.Tok("*")),
		func(acc, next *ast.Node) *ast.Node { return ast.NewTypes(slices.Concat(typeToks(acc), typeToks(next))...) },
		true,
	)
}

func (r *rules) buildVarDecl() grammar.Grammar {
	decl := grammar.Seq(r.typ).Then(r.ident).As(func(n []*ast.Node) *ast.Node {
		return withTok(ast.NewBinary(ast.OpVarDecl, n[0], n[1]), n[1])
	})
	dim := grammar.Seq(grammar.Tok("[")).
		Then(grammar.Alt(r.expression, grammar.Empty())).
		Then(grammar.Tok("]")).
		As(func(n []*ast.Node) *ast.Node {
			if n[1].Type == ast.Empty {
				return withTok(ast.NewOperator(ast.OpArrayDeclEmpty), n[0])
			}
			return withTok(ast.NewUnary(ast.OpArrayDecl, n[1]), n[0])
		})
	return grammar.Fold(decl, dim, func(acc, next *ast.Node) *ast.Node {
		return withTok(ast.NewOperator(ast.OpVarDecl, slices.Concat(acc.Children, []*ast.Node{next})...), acc)
	}, true)
}

// buildVarCreating matches a declarator group: "int a = 1, *b, c = 2". Every declarator after
// the first repeats the base type of the first one plus its own pointer levels.
func (r *rules) buildVarCreating() grammar.Grammar {
	firstDecl := grammar.Alt(
		grammar.Seq(r.varDecl).Then(grammar.Tok("=")).Then(r.expression).As(initialization),
		r.varDecl,
	)
	modifiers := grammar.List(grammar.Alt(grammar.Tok("*"), grammar.Tok("const")), "", true, "")
	nextDecl := grammar.Seq(grammar.Tok(",")).
		Then(modifiers).
		Then(r.ident).
		Then(grammar.Alt(
			grammar.Seq(grammar.Tok("=")).Then(r.expression).As(func(n []*ast.Node) *ast.Node {
				return withTok(ast.NewUnary("=", n[1]), n[0])
			}),
			grammar.Empty(),
		)).
		As(func(n []*ast.Node) *ast.Node { return ast.NewOperator("", n[1], n[2], n[3]) })

	return grammar.Fold(firstDecl, nextDecl, func(acc, next *ast.Node) *ast.Node {
		group := acc
		if !acc.Is(ast.OpVarsDecl) {
			group = withTok(ast.NewOperator(ast.OpVarsDecl, acc), acc)
		}
		modifiers, name, init := next.Children[0], next.Children[1], next.Children[2]

		toks := baseToks(group.Children[0])
		for _, m := range modifiers.Children {
			toks = append(toks, m.Tok)
		}
		var typ *ast.Node
		if len(toks) == 1 {
			typ = ast.NewValue(toks[0])
		} else {
			typ = ast.NewTypes(toks...)
		}
		decl := withTok(ast.NewBinary(ast.OpVarDecl, typ, name), name)
		if init.Type != ast.Empty {
			decl = withTok(ast.NewBinary(ast.OpVarInit, decl, init.Children[0]), init)
		}
		return withTok(ast.NewOperator(ast.OpVarsDecl, slices.Concat(group.Children, []*ast.Node{decl})...), group)
	}, true)
}

// baseToks returns the type tokens of a declarator without its pointer levels.
func baseToks(decl *ast.Node) []token.Token {
	if decl.Is(ast.OpVarInit) {
		decl = decl.Children[0]
	}
	toks := typeToks(decl.Children[0])
	for i, t := range toks {
		if t.Is("*") {
			return slices.Clone(toks[:i])
		}
	}
	return slices.Clone(toks)
}

// Statements

func (r *rules) buildScope() grammar.Grammar {
	return grammar.Seq(grammar.Tok("{")).Then(r.lines).Then(grammar.Tok("}")).As(func(n []*ast.Node) *ast.Node {
		return n[1]
	})
}

func (r *rules) buildLines() grammar.Grammar {
	alts := []grammar.Grammar{r.line, r.label, r.whileLoop, r.doWhile, r.forLoop, r.ifStmt, r.switchStmt}
	if r.nestedBlocks {
		alts = append(alts, r.scope)
	}
	return grammar.List(grammar.Alt(alts...), "", true, ast.OpBlock)
}

func (r *rules) buildLine() grammar.Grammar {
	return grammar.Seq(grammar.List(r.instruction, ",", true, "Instruction list")).
		Then(grammar.Tok(";")).
		As(func(n []*ast.Node) *ast.Node {
			items := n[0].Children
			name := ast.OpLines
			switch len(items) {
			case 0:
				name = ast.OpEmptyLine
			case 1:
				name = ast.OpLine
			}
			return withTok(ast.NewOperator(name, items...), n[1])
		})
}

func (r *rules) buildInstruction() grammar.Grammar {
	return grammar.Alt(r.varCreating, r.varDecl, r.expression, r.keyword)
}

func (r *rules) buildLabel() grammar.Grammar {
	return grammar.Seq(r.ident).Then(grammar.Tok(":")).As(func(n []*ast.Node) *ast.Node {
		return withTok(ast.NewUnary(ast.OpLabel, n[0]), n[0])
	})
}

func (r *rules) buildKeyword() grammar.Grammar {
	ret := grammar.Seq(grammar.Tok("return")).
		Then(grammar.Alt(r.expression, grammar.Empty())).
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewUnary(ast.OpReturn, n[1]), n[0]) })
	jump := grammar.Seq(grammar.Tok("goto")).
		Then(r.ident).Must("Goto invalid declaration: label is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewUnary(ast.OpGoto, n[1]), n[0]) })
	return grammar.Alt(grammar.Tok("break"), grammar.Tok("continue"), ret, jump)
}

// body is what may follow a loop or branch header.
func (r *rules) body() grammar.Grammar {
	return grammar.Alt(r.scope, r.line)
}

func (r *rules) buildIf() grammar.Grammar {
	ifPart := grammar.Seq(grammar.Tok("if")).
		Then(grammar.Tok("(")).Must("Invalid if declaration: '(' is missed.").
		Then(r.expression).Must("Invalid if declaration: predicate is missed.").
		Then(grammar.Tok(")")).Must("Invalid if declaration: ')' is missed.").
		Then(r.body()).Must("Invalid if declaration: body is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewBinary(ast.OpIf, n[2], n[4]), n[0]) })
	elseIf := grammar.Seq(grammar.Tok("else")).
		Then(grammar.Tok("if")).
		Then(grammar.Tok("(")).Must("Invalid else if declaration: '(' is missed.").
		Then(r.expression).Must("Invalid else if declaration: predicate is missed.").
		Then(grammar.Tok(")")).Must("Invalid if declaration: ')' is missed.").
		Then(r.body()).Must("Invalid else if declaration: body is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewBinary(ast.OpElseIf, n[3], n[5]), n[1]) })
	elsePart := grammar.Seq(grammar.Tok("else")).
		Then(r.body()).Must("Invalid else declaration: body is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewUnary(ast.OpElse, n[1]), n[0]) })

	return grammar.Seq(ifPart).
		Then(grammar.List(elseIf, "", true, "")).
		Then(grammar.Alt(elsePart, grammar.Empty())).
		As(func(n []*ast.Node) *ast.Node {
			branches := slices.Concat([]*ast.Node{n[0]}, n[1].Children)
			if n[2].Type == ast.Empty {
				return withTok(ast.NewOperator(ast.OpIfChain, branches...), n[0])
			}
			return withTok(ast.NewOperator(ast.OpIfChainElse, append(branches, n[2])...), n[0])
		})
}

func (r *rules) buildSwitch() grammar.Grammar {
	return grammar.Seq(grammar.Tok("switch")).
		Then(grammar.Tok("(")).
		Then(r.expression).
		Then(grammar.Tok(")")).
		Then(grammar.Tok("{")).
		Then(grammar.List(r.caseStmt, "", true, ast.OpCases)).
		Then(grammar.Tok("}")).
		AsChecked(func(n []*ast.Node) (*ast.Node, error) {
			defaults := 0
			for _, c := range n[5].Children {
				if c.Children[0].Type == ast.Value && c.Children[0].Tok.Is("default") {
					defaults++
				}
			}
			if defaults > 1 {
				return nil, errMoreThanOneDefault
			}
			return withTok(ast.NewBinary(ast.OpSwitch, n[2], n[5]), n[0]), nil
		})
}

func (r *rules) buildCase() grammar.Grammar {
	value := grammar.Alt(
		grammar.Seq(grammar.Tok("case")).Then(r.expression).As(func(n []*ast.Node) *ast.Node { return n[1] }),
		grammar.Tok("default"),
	)
	var body grammar.Grammar = grammar.Alt(r.scope, r.lines)
	if r.nestedBlocks {
		body = r.lines
	}
	return grammar.Seq(value).Then(grammar.Tok(":")).Then(body).As(func(n []*ast.Node) *ast.Node {
		return withTok(ast.NewBinary(ast.OpCase, n[0], n[2]), n[1])
	})
}

func (r *rules) buildFor() grammar.Grammar {
	clause := grammar.Alt(r.instruction, grammar.Empty())
	return grammar.Seq(grammar.Tok("for")).
		Then(grammar.Tok("(")).Must("Invalid for declaration: '(' is missed.").
		Then(clause).
		Then(grammar.Tok(";")).Must("Invalid for declaration: ';' is missed.").
		Then(clause).
		Then(grammar.Tok(";")).Must("Invalid for declaration: ';' is missed.").
		Then(clause).
		Then(grammar.Tok(")")).Must("Invalid for declaration: ')' is missed.").
		Then(r.body()).Must("Invalid for declaration: body is missed.").
		As(func(n []*ast.Node) *ast.Node {
			return withTok(ast.NewOperator(ast.OpFor, n[2], n[4], n[6], n[8]), n[0])
		})
}

func (r *rules) buildWhile() grammar.Grammar {
	return grammar.Seq(grammar.Tok("while")).
		Then(grammar.Tok("(")).Must("Invalid while declaration: '(' is missed.").
		Then(r.expression).
		Then(grammar.Tok(")")).Must("Invalid while declaration: ')' is missed.").
		Then(r.body()).
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewBinary(ast.OpWhile, n[2], n[4]), n[0]) })
}

func (r *rules) buildDoWhile() grammar.Grammar {
	return grammar.Seq(grammar.Tok("do")).
		Then(r.body()).
		Then(grammar.Tok("while")).Must("Invalid do while declaration: 'while' is missed.").
		Then(grammar.Tok("(")).Must("Invalid do while declaration: '(' is missed.").
		Then(r.expression).
		Then(grammar.Tok(")")).Must("Invalid do while declaration: ')' is missed.").
		Then(grammar.Tok(";")).Must("Invalid do while declaration: ';' is missed.").
		As(func(n []*ast.Node) *ast.Node { return withTok(ast.NewBinary(ast.OpDoWhile, n[4], n[1]), n[0]) })
}
