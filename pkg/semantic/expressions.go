package semantic

import (
	"strings"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/token"
)

func builtin(parts ...string) *ast.TypeInfo { return &ast.TypeInfo{Parts: parts} }

var (
	typeChar   = builtin("char")
	typeInt    = builtin("int")
	typeUInt   = builtin("unsigned", "int")
	typeLong   = builtin("long", "int")
	typeULong  = builtin("unsigned", "long", "int")
	typeFloat  = builtin("float")
	typeDouble = builtin("double")
	typeString = builtin("char", "*")
)

// LiteralType is the type of a literal token.
func LiteralType(tok token.Token) *ast.TypeInfo {
	switch tok.Kind {
	case token.IntLiteral:
		switch {
		case tok.Lit.Unsigned && tok.Lit.Long > 0:
			return typeULong
		case tok.Lit.Unsigned:
			return typeUInt
		case tok.Lit.Long > 0:
			return typeLong
		}
		return typeInt
	case token.CharLiteral:
		return typeChar
	case token.StringLiteral:
		return typeString
	case token.FloatLiteral:
		return typeFloat
	case token.DoubleLiteral:
		return typeDouble
	}
	return nil
}

// rvalueType infers and records the type of an expression.
func (a *Analyzer) rvalueType(n *ast.Node) *ast.TypeInfo {
	t := a.exprType(n)
	n.Annotate(t)
	return t
}

func (a *Analyzer) exprType(n *ast.Node) *ast.TypeInfo {
	switch n.Type {
	case ast.Value:
		if n.Tok.Kind == token.Identifier {
			info := a.lookup(n.Tok)
			switch {
			case info == nil:
				a.fail(n.Tok, "Identifier %s used without declaration.", n.Tok.Text)
			case info.Func != nil:
				a.fail(n.Tok, "Function %s used as a variable.", n.Tok.Text)
			}
			return info.Type
		}
		if t := LiteralType(n.Tok); t != nil {
			return t
		}
		a.fail(n.Tok, "Invalid expression: %s.", n.Tok.Text)
	case ast.Operator:
		return a.operatorType(n)
	}
	a.failAt(n, "Invalid expression.")
	return nil
}

func (a *Analyzer) operatorType(n *ast.Node) *ast.TypeInfo {
	if ast.AssignOps[n.Op] {
		return a.assignment(n)
	}
	switch n.Op {
	case ast.OpParens:
		return a.rvalueType(n.Children[0])
	case ast.OpTernary:
		a.condition(n.Children[0])
		yes, no := a.rvalueType(n.Children[1]), a.rvalueType(n.Children[2])
		if t := ast.Common(yes, no); t != nil {
			return t
		}
		a.failAt(n, "Invalid ternary operator branches types.")
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		return a.increment(n)
	case ast.OpNeg, ast.OpPlus:
		t := a.rvalueType(n.Children[0])
		if !t.IsInteger() && !t.IsFloating() {
			a.failAt(n, "Invalid type of unary %s operand.", n.Tok.Text)
		}
		return t.Unqualified()
	case ast.OpNot:
		a.condition(n.Children[0])
		return typeChar
	case ast.OpCompl:
		t := a.rvalueType(n.Children[0])
		if !t.IsInteger() {
			a.failAt(n, "Not integer argument of unary operator.")
		}
		return t.Unqualified()
	case ast.OpDeref:
		t := a.rvalueType(n.Children[0])
		pointee := t.IfIndexed()
		if pointee == nil {
			a.failAt(n, "Invalid type of star operator: %s.", t)
		}
		return pointee
	case ast.OpAddr:
		a.requireLValue(n.Children[0])
		return a.rvalueType(n.Children[0]).PointerTo()
	case ast.OpSizeof:
		a.typeOf(n.Children[0])
		return typeInt
	case ast.OpCast:
		return a.cast(n)
	case ast.OpCall:
		return a.call(n)
	case ast.OpIndex:
		t := a.rvalueType(n.Children[0])
		elem := t.IfIndexed()
		if elem == nil {
			a.failAt(n, "Not indexed type %s.", t)
		}
		if !a.rvalueType(n.Children[1]).IsInteger() {
			a.failAt(n.Children[1], "Not integer indexer argument.")
		}
		return elem
	case ast.OpMember:
		t := a.rvalueType(n.Children[0])
		fields := t.IfPointed()
		if fields == nil {
			a.failAt(n, "Not pointable type: %s.", t)
		}
		return a.field(fields, n.Children[1].Tok)
	case ast.OpArrow:
		t := a.rvalueType(n.Children[0])
		fields := t.IfArrowed()
		if fields == nil {
			a.failAt(n, "Not arrowable type %s.", t)
		}
		return a.field(fields, n.Children[1].Tok)
	case ast.OpInitList:
		a.failAt(n, "Initializer list is allowed only in declarations.")
	case "+", "-", "*", "/", "%",
		"==", "!=", ">", "<", ">=", "<=",
		"<<", ">>", "&", "^", "|", "&&", "||":
		return a.binaryType(n.Op, a.rvalueType(n.Children[0]), a.rvalueType(n.Children[1]), n)
	}
	a.failAt(n, "Invalid expression.")
	return nil
}

func (a *Analyzer) field(fields map[string]*ast.TypeInfo, name token.Token) *ast.TypeInfo {
	t, ok := fields[name.Text]
	if !ok {
		a.fail(name, "Invalid point member accessing: %s is invalid field.", name.Text)
	}
	return t
}

func (a *Analyzer) binaryType(op string, l, r *ast.TypeInfo, at *ast.Node) *ast.TypeInfo {
	if l.IsStruct() || r.IsStruct() {
		a.failAt(at, "Struct operand of %s.", op)
	}
	if l.IsVoid() || r.IsVoid() {
		a.failAt(at, "Invalid type of %s operand.", op)
	}
	switch op {
	case "+", "-", "*", "/", "%":
		return a.arithmetic(op, l, r, at)
	case "==", "!=", ">", "<", ">=", "<=":
		if ast.Common(l, r) == nil {
			a.failAt(at, "Invalid operator args types.")
		}
		return typeChar
	}
	if !l.IsInteger() || !r.IsInteger() {
		a.failAt(at, "Not integer argument of binary operator.")
	}
	return ast.Common(l, r)
}

func (a *Analyzer) arithmetic(op string, l, r *ast.TypeInfo, at *ast.Node) *ast.TypeInfo {
	lp, rp := l.IsPointer(), r.IsPointer()
	switch {
	case lp && rp:
		if op == "-" && ast.CanImplicitCast(r, l) == nil {
			return typeLong
		}
	case lp:
		if (op == "+" || op == "-") && r.IsInteger() {
			return l
		}
	case rp:
		if op == "+" && l.IsInteger() {
			return r
		}
	case op == "%" && (!l.IsInteger() || !r.IsInteger()):
	default:
		if t := ast.Common(l, r); t != nil {
			return t
		}
	}
	a.failAt(at, "Invalid type of %s operand.", op)
	return nil
}

func (a *Analyzer) requireLValue(n *ast.Node) {
	switch {
	case n.IsToken(token.Identifier), n.Is(ast.OpIndex, ast.OpMember, ast.OpArrow, ast.OpDeref):
	case n.Is(ast.OpParens):
		a.requireLValue(n.Children[0])
	default:
		a.failAt(n, "Expression is not assignable.")
	}
}

func (a *Analyzer) assignment(n *ast.Node) *ast.TypeInfo {
	left, right := n.Children[0], n.Children[1]
	a.requireLValue(left)
	lt := a.rvalueType(left)
	if lt.IsReadOnly() {
		a.failAt(left, "Assignment of read-only location.")
	}
	rt := a.rvalueType(right)
	if n.Op == "=" {
		a.assignable(rt, lt, right)
		return lt
	}
	a.binaryType(strings.TrimSuffix(n.Op, "="), lt, rt, n)
	return lt
}

func (a *Analyzer) increment(n *ast.Node) *ast.TypeInfo {
	operand := n.Children[0]
	a.requireLValue(operand)
	t := a.rvalueType(operand)
	switch {
	case t.IsStruct():
		a.failAt(n, "Struct with %s.", strings.ToLower(n.Op))
	case t.IsReadOnly():
		a.failAt(operand, "Assignment of read-only location.")
	case !t.IsInteger() && !t.IsFloating() && !t.IsPointer():
		a.failAt(n, "Invalid type of %s operand.", n.Tok.Text)
	}
	return t
}

func (a *Analyzer) cast(n *ast.Node) *ast.TypeInfo {
	target := a.typeOf(n.Children[0])
	operand := n.Children[1]
	from := a.rvalueType(operand)
	if operand.IsToken(token.StringLiteral) {
		a.failAt(operand, "Invalid cast to string.")
	}
	if (target.IsStruct() || from.IsStruct()) && target.Struct != from.Struct {
		a.failAt(n, "Invalid struct cast.")
	}
	return target
}

func (a *Analyzer) call(n *ast.Node) *ast.TypeInfo {
	callee, args := n.Children[0], n.Children[1:]
	if !callee.IsToken(token.Identifier) {
		a.failAt(callee, "Invalid function calling.")
	}
	info := a.lookup(callee.Tok)
	switch {
	case info == nil && callee.Tok.Text == "printf":
		if len(args) == 0 {
			a.failAt(n, "printf needs a format argument.")
		}
		for _, arg := range args {
			a.rvalueType(arg)
		}
		callee.Annotate(typeInt)
		return typeInt
	case info == nil:
		a.fail(callee.Tok, "Function %s is not declared.", callee.Tok.Text)
	case info.Func == nil:
		a.fail(callee.Tok, "Function replaced by variable.")
	case len(args) > len(info.Func.Params):
		a.failAt(n, "Given extra function args.")
	case len(args) < len(info.Func.Params):
		a.failAt(n, "Not enough function args.")
	}
	for i, arg := range args {
		if err := ast.CanImplicitCast(a.rvalueType(arg), info.Func.Params[i]); err != nil {
			a.failAt(arg, "Invalid function argument: %s", err.Error())
		}
	}
	callee.Annotate(info.Type)
	return info.Type
}
