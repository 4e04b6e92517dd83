package interp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/token"
)

var charType = &ast.TypeInfo{Parts: []string{"char"}}

func (it *Interpreter) eval(n *ast.Node) Value {
	switch n.Type {
	case ast.Value:
		switch {
		case n.Tok.Kind == token.Identifier:
			return it.load(n, it.variable(n))
		case n.Tok.Kind == token.StringLiteral:
			return pointerValue(it.stringLiteral(n))
		case n.Tok.Kind.IsLiteral():
			v, err := literal(n.Tok)
			it.check(n, err)
			return v
		}
	case ast.Operator:
		return it.operator(n)
	}
	it.fail(n, "Invalid expression.")
	return Value{}
}

func (it *Interpreter) variable(n *ast.Node) Cell {
	c, ok := it.scopes.lookup(n.Tok.ID)
	if !ok {
		it.fail(n, "Identifier %s used without declaration.", n.Tok.Text)
	}
	return c
}

func (it *Interpreter) stringLiteral(n *ast.Node) Pointer {
	if p, ok := it.strs[n]; ok {
		return p
	}
	text := literalBytes(n.Tok)
	values := make([]Value, len(text)+1)
	for i := range text {
		values[i] = intValue(int64(int8(text[i])), 1, false)
	}
	values[len(text)] = intValue(0, 1, false)
	p := Pointer{Buf: it.mem.alloc(values...), Elem: charType}
	it.strs[n] = p
	return p
}

func (it *Interpreter) operator(n *ast.Node) Value {
	if ast.AssignOps[n.Op] {
		return it.assignment(n)
	}
	switch n.Op {
	case ast.OpParens:
		return it.eval(n.Children[0])
	case ast.OpTernary:
		if it.truthy(n.Children[0]) {
			return it.eval(n.Children[1])
		}
		return it.eval(n.Children[2])
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		return it.increment(n)
	case ast.OpNeg, ast.OpPlus, ast.OpCompl:
		return it.unary(n)
	case ast.OpNot:
		return boolValue(!it.truthy(n.Children[0]))
	case ast.OpDeref, ast.OpIndex, ast.OpMember, ast.OpArrow:
		return it.load(n, it.address(n))
	case ast.OpAddr:
		c, elem := it.lvalue(n.Children[0])
		return pointerValue(Pointer{Buf: c.Buf, Index: c.Index, Elem: elem})
	case ast.OpSizeof:
		return intValue(int64(it.typeOf(n.Children[0]).Size()), 4, false)
	case ast.OpCast:
		return it.cast(n)
	case ast.OpCall:
		return it.callExpr(n)
	case "&&":
		return boolValue(it.truthy(n.Children[0]) && it.truthy(n.Children[1]))
	case "||":
		return boolValue(it.truthy(n.Children[0]) || it.truthy(n.Children[1]))
	case ast.OpInitList:
		it.fail(n, "Initializer list is allowed only in declarations.")
	}
	if len(n.Children) != 2 {
		it.fail(n, "Invalid expression.")
	}
	v, err := binary(n.Op, it.eval(n.Children[0]), it.eval(n.Children[1]))
	it.check(n, err)
	return v
}

// address resolves an lvalue to its cell.
func (it *Interpreter) address(n *ast.Node) Cell {
	c, _ := it.lvalue(n)
	return c
}

// lvalue resolves an lvalue to its cell and the type stored there, nil when unknown.
func (it *Interpreter) lvalue(n *ast.Node) (Cell, *ast.TypeInfo) {
	switch {
	case n.IsToken(token.Identifier):
		c := it.variable(n)
		return c, it.types[c]
	case n.Is(ast.OpParens):
		return it.lvalue(n.Children[0])
	case n.Is(ast.OpIndex):
		base, index := it.eval(n.Children[0]), it.eval(n.Children[1])
		if base.Kind != KindPointer {
			it.fail(n, "Not indexed value of %s type.", base.Kind)
		}
		if index.Kind != KindInt {
			it.fail(n.Children[1], "Not integer indexer argument.")
		}
		return Cell{Buf: base.Ptr.Buf, Index: base.Ptr.Index + int(index.I)}, base.Ptr.Elem
	case n.Is(ast.OpDeref):
		p := it.eval(n.Children[0])
		if p.Kind != KindPointer {
			it.fail(n, "Invalid type of star operator: %s.", p.Kind)
		}
		return p.Ptr.Cell(), p.Ptr.Elem
	case n.Is(ast.OpMember):
		s := it.eval(n.Children[0])
		return it.field(n, s), it.fieldType(s, n.Children[1].Tok.Text)
	case n.Is(ast.OpArrow):
		p := it.eval(n.Children[0])
		if p.Kind != KindPointer {
			it.fail(n, "Not arrowable value of %s type.", p.Kind)
		}
		s := it.load(n, p.Ptr.Cell())
		return it.field(n, s), it.fieldType(s, n.Children[1].Tok.Text)
	}
	it.fail(n, "Expression is not assignable.")
	return Cell{}, nil
}

func (it *Interpreter) fieldType(s Value, name string) *ast.TypeInfo {
	if info, ok := it.structs[s.Struct.Name]; ok {
		return info.Fields[name]
	}
	return nil
}

func (it *Interpreter) field(n *ast.Node, s Value) Cell {
	name := n.Children[1].Tok.Text
	if s.Kind != KindStruct {
		it.fail(n, "Not pointable value of %s type.", s.Kind)
	}
	c, ok := s.Struct.Fields[name]
	if !ok {
		it.fail(n.Children[1], "Invalid point member accessing: %s is invalid field.", name)
	}
	return c
}

func (it *Interpreter) assignment(n *ast.Node) Value {
	if target := n.Children[0]; n.Op == "=" && target.IsToken(token.Identifier) {
		if _, ok := it.scopes.lookup(target.Tok.ID); !ok {
			// A plain store to an unbound name binds it in the current scope.
			v := it.eval(n.Children[1])
			c := it.holding(n, v)
			it.types[c] = valueType(v)
			it.scopes.bind(target.Tok.ID, c)
			return v
		}
	}
	c := it.address(n.Children[0])
	v := it.eval(n.Children[1])
	if n.Op != "=" {
		var err error
		v, err = binary(strings.TrimSuffix(n.Op, "="), it.load(n, c), v)
		it.check(n, err)
	}
	return it.assign(n, c, v)
}

func (it *Interpreter) increment(n *ast.Node) Value {
	c := it.address(n.Children[0])
	old := it.load(n, c)
	op := "+"
	if n.Is(ast.OpPreDec, ast.OpPostDec) {
		op = "-"
	}
	next, err := binary(op, old, intValue(1, 4, false))
	it.check(n, err)
	next = it.assign(n, c, next)
	if n.Is(ast.OpPostInc, ast.OpPostDec) {
		return old
	}
	return next
}

func (it *Interpreter) unary(n *ast.Node) Value {
	v := it.eval(n.Children[0])
	switch v.Kind {
	case KindInt:
		w, u := promote(v, intValue(0, 4, false))
		switch n.Op {
		case ast.OpNeg:
			return intValue(-v.I, w, u)
		case ast.OpCompl:
			return intValue(^v.I, w, u)
		}
		return intValue(v.I, w, u)
	case KindFloat, KindDouble:
		switch n.Op {
		case ast.OpNeg:
			return floatValue(-v.F, v.Kind)
		case ast.OpPlus:
			return v
		}
	}
	it.fail(n, "Invalid operand of unary %s: %s.", n.Tok.Text, v.Kind)
	return Value{}
}

func (it *Interpreter) cast(n *ast.Node) Value {
	ti := it.typeOf(n.Children[0])
	v := it.eval(n.Children[1])
	if ti.IsVoid() {
		return Value{Kind: KindVoid}
	}
	like := scalarZero(ti)
	if ti.IsStruct() {
		like = Value{Kind: KindStruct, Struct: &StructValue{Name: ti.Struct}}
	}
	conv, err := convertLike(v, like)
	it.check(n, err)
	return conv
}

func (it *Interpreter) callExpr(n *ast.Node) Value {
	callee, args := n.Children[0], n.Children[1:]
	if callee.IsToken(token.Identifier) && callee.Tok.Text == "printf" && !it.defined(callee) {
		return it.printf(n, args)
	}
	fn := it.eval(callee)
	if fn.Kind != KindFunction {
		it.fail(callee, "%s is not a function.", callee.Text())
	}
	values := make([]Value, len(args))
	for i, arg := range args {
		values[i] = it.eval(arg)
	}
	return it.call(fn.Fn, values, n)
}

// defined reports whether the program supplies its own body for the callee.
func (it *Interpreter) defined(callee *ast.Node) bool {
	c, ok := it.scopes.lookup(callee.Tok.ID)
	if !ok {
		return false
	}
	v := it.load(callee, c)
	return v.Kind == KindFunction && v.Fn.Body != nil
}

// printf writes the text of its first argument and a newline. Further arguments are not
// evaluated and conversions are not expanded.
func (it *Interpreter) printf(n *ast.Node, args []*ast.Node) Value {
	if len(args) == 0 {
		it.fail(n, "printf needs a format argument.")
	}
	text := it.render(args[0], it.eval(args[0]))
	if _, err := fmt.Fprintln(it.out, text); err != nil {
		it.check(n, fmt.Errorf("writing program output: %w", err))
	}
	return intValue(int64(len(text)+1), 4, false)
}

// render formats a value the way C would print it.
func (it *Interpreter) render(n *ast.Node, v Value) string {
	switch v.Kind {
	case KindInt:
		if v.Unsigned {
			return strconv.FormatUint(uint64(v.I), 10)
		}
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindPointer:
		switch {
		case v.Ptr.IsNull():
			return "(nil)"
		case v.Ptr.Elem != nil && v.Ptr.Elem.Base() == "char" && !v.Ptr.Elem.IsPointer():
			return it.cString(n, v.Ptr)
		}
		return fmt.Sprintf("%#x", v.asInt())
	case KindStruct:
		return "struct " + v.Struct.Name
	case KindFunction:
		return v.Fn.Name
	}
	return ""
}

func (it *Interpreter) cString(n *ast.Node, p Pointer) string {
	var sb strings.Builder
	for c := p.Cell(); ; c.Index++ {
		v := it.load(n, c)
		if v.I == 0 {
			break
		}
		sb.WriteByte(byte(v.I))
	}
	return sb.String()
}

// literal is the value of a literal token other than a string.
func literal(tok token.Token) (Value, error) {
	switch tok.Kind {
	case token.IntLiteral:
		digits := strings.TrimRight(strings.ToLower(tok.Text), "ul")
		u, err := strconv.ParseUint(digits, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("Invalid integer literal %s.", tok.Text)
		}
		width := 4
		if tok.Lit.Long > 0 || (!tok.Lit.Unsigned && u > 1<<31-1) || u > 1<<32-1 {
			width = 8
		}
		return intValue(int64(u), width, tok.Lit.Unsigned), nil
	case token.CharLiteral:
		b := literalBytes(tok)
		if len(b) == 0 {
			return Value{}, errors.New("Empty char literal.")
		}
		return intValue(int64(int8(b[0])), 1, false), nil
	case token.FloatLiteral:
		f, err := strconv.ParseFloat(strings.TrimSuffix(tok.Text, "f"), 32)
		if err != nil {
			return Value{}, fmt.Errorf("Invalid float literal %s.", tok.Text)
		}
		return floatValue(f, KindFloat), nil
	case token.DoubleLiteral:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("Invalid double literal %s.", tok.Text)
		}
		return floatValue(f, KindDouble), nil
	}
	return Value{}, fmt.Errorf("Invalid literal %s.", tok.Text)
}
