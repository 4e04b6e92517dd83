// Package interp executes a parsed program by walking its tree. It derives the runtime types it
// needs on its own and does not rely on a prior semantic pass.
package interp

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"
	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

var log = commonlog.GetLogger("cinterp.interp")

type signal int

const (
	sigNormal signal = iota
	sigReturn
	sigBreak
	sigContinue
	sigGoto
)

// control is what a statement hands back to the statement list that ran it.
type control struct {
	sig   signal
	value Value
	label string
}

type bailout struct{ err error }

const defaultArraySize = 5

type Interpreter struct {
	cfg     *config.Config
	out     io.Writer
	mem     arena
	scopes  scopeStack
	structs map[string]*ast.StructInfo
	layouts map[string][]*ast.Node
	strs    map[*ast.Node]Pointer
	types   map[Cell]*ast.TypeInfo // declared type of each variable cell
	depth   int
}

func New(cfg *config.Config, out io.Writer) *Interpreter {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Interpreter{cfg: cfg, out: out}
}

// Interpret runs the main function of root with the default configuration.
func Interpret(root *ast.Node, out io.Writer) error {
	return New(nil, out).Run(root)
}

// Run registers the top-level declarations of root and calls main. State from a previous Run
// is discarded.
func (it *Interpreter) Run(root *ast.Node) (err error) {
	it.mem = arena{}
	it.scopes = scopeStack{current: -1}
	it.structs = make(map[string]*ast.StructInfo)
	it.layouts = make(map[string][]*ast.Node)
	it.strs = make(map[*ast.Node]Pointer)
	it.types = make(map[Cell]*ast.TypeInfo)
	it.depth = 0

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch r := r.(type) {
		case bailout:
			err = r.err
		case error:
			err = &util.InterpretationError{Msg: r.Error(), Err: r}
		default:
			panic(r)
		}
		log.Debugf("run failed: %v", err)
	}()

	it.scopes.push(-1)
	main := it.register(root)
	if main == nil {
		it.fail(nil, "No main.")
	}
	it.call(main, nil, root)
	log.Debugf("run finished, %d buffers allocated", len(it.mem.bufs))
	return nil
}

func (it *Interpreter) fail(n *ast.Node, format string, args ...any) {
	panic(bailout{&util.InterpretationError{Pos: posOf(n), Msg: fmt.Sprintf(format, args...)}})
}

// check fails with err as both message and cause.
func (it *Interpreter) check(n *ast.Node, err error) {
	if err != nil {
		panic(bailout{&util.InterpretationError{Pos: posOf(n), Msg: err.Error(), Err: err}})
	}
}

func posOf(n *ast.Node) util.Pos {
	if n == nil {
		return util.Pos{}
	}
	if n.Tok.Line > 0 {
		return util.PosOf(n.Tok)
	}
	tok, _ := n.FirstToken()
	return util.PosOf(tok)
}

func (it *Interpreter) load(n *ast.Node, c Cell) Value {
	v, err := it.mem.load(c)
	if err != nil {
		panic(bailout{&util.InterpretationError{Pos: posOf(n), Msg: "Invalid index", Err: err}})
	}
	return v
}

func (it *Interpreter) store(n *ast.Node, c Cell, v Value) {
	if err := it.mem.store(c, v); err != nil {
		panic(bailout{&util.InterpretationError{Pos: posOf(n), Msg: "Invalid index", Err: err}})
	}
}

// Declarations

func (it *Interpreter) register(root *ast.Node) *Function {
	var main *Function
	for _, item := range root.Children {
		switch {
		case item.IsToken(token.Directive):
		case item.Is(ast.OpStructDecl):
			it.declareStruct(item)
		case item.Is(ast.OpFuncDecl, ast.OpFuncProto):
			if fn := it.declareFunc(item); fn.Name == "main" && fn.Body != nil && len(fn.Params) == 0 {
				main = fn
			}
		default:
			it.declaration(item)
		}
	}
	return main
}

// LookupStruct lets type resolution see the structs registered so far.
func (it *Interpreter) LookupStruct(name string) (*ast.StructInfo, bool) {
	info, ok := it.structs[name]
	return info, ok
}

func (it *Interpreter) typeOf(n *ast.Node) *ast.TypeInfo {
	if n.Typ != nil {
		return n.Typ
	}
	ti, err := ast.NewTypeInfo(n.TypeWords(), it)
	it.check(n, err)
	n.Annotate(ti)
	return ti
}

// declType adds a pointer level per array dimension of decl.
func (it *Interpreter) declType(decl *ast.Node) *ast.TypeInfo {
	ti := it.typeOf(decl.Children[0])
	for range decl.Children[2:] {
		ti = ti.PointerTo()
	}
	return ti
}

func (it *Interpreter) declareStruct(n *ast.Node) {
	name := n.Children[0].Tok.Text
	info := &ast.StructInfo{Name: name, Fields: make(map[string]*ast.TypeInfo)}
	it.structs[name] = info
	fields := n.Children[1].Children
	for _, field := range fields {
		fieldName := field.Children[1].Tok.Text
		info.Fields[fieldName] = it.declType(field)
		info.Order = append(info.Order, fieldName)
	}
	it.layouts[name] = fields
}

func params(list *ast.Node) []*ast.Node {
	var decls []*ast.Node
	for _, p := range list.Children {
		if p.Is(ast.OpVarsDecl) {
			decls = append(decls, params(p)...)
			continue
		}
		decls = append(decls, p)
	}
	return decls
}

func (it *Interpreter) declareFunc(n *ast.Node) *Function {
	name := n.Children[1].Tok
	fn := &Function{Name: name.Text, Params: params(n.Children[2]), Ret: it.typeOf(n.Children[0])}
	if n.Is(ast.OpFuncDecl) {
		fn.Body = n.Children[3]
	}
	if c, ok := it.scopes.lookup(name.ID); ok {
		prev := it.load(n, c)
		if prev.Kind == KindFunction && fn.Body == nil {
			return prev.Fn
		}
		it.store(n, c, Value{Kind: KindFunction, Fn: fn})
		return fn
	}
	it.scopes.bind(name.ID, Cell{Buf: it.mem.alloc(Value{Kind: KindFunction, Fn: fn})})
	return fn
}

func (it *Interpreter) declaration(n *ast.Node) bool {
	switch {
	case n.Is(ast.OpVarsDecl):
		for _, c := range n.Children {
			it.declaration(c)
		}
	case n.Is(ast.OpVarDecl):
		it.declareVar(n, nil)
	case n.Is(ast.OpVarInit):
		it.declareVar(n.Children[0], n.Children[1])
	default:
		return false
	}
	return true
}

// zero allocates the fields of a struct type; other types need no storage.
func (it *Interpreter) zero(ti *ast.TypeInfo) Value {
	if !ti.IsStruct() {
		return scalarZero(ti)
	}
	fields, ok := it.layouts[ti.Struct]
	if !ok {
		panic(bailout{&util.InterpretationError{Msg: fmt.Sprintf("Unknown struct %s.", ti.Struct)}})
	}
	sv := &StructValue{Name: ti.Struct, Fields: make(map[string]Cell, len(fields))}
	for _, field := range fields {
		name := field.Children[1].Tok.Text
		sv.Fields[name] = it.allocVar(field, nil)
		sv.Order = append(sv.Order, name)
	}
	return Value{Kind: KindStruct, Struct: sv}
}

// allocVar creates the storage of a declared variable. Arrays are buffers reached through a
// pointer cell; a 2-D array is a buffer of row pointers.
func (it *Interpreter) allocVar(decl, init *ast.Node) Cell {
	base := it.typeOf(decl.Children[0])
	dims := decl.Children[2:]
	switch len(dims) {
	case 0:
		return Cell{Buf: it.mem.alloc(it.zero(base))}
	case 1, 2:
		sizes := make([]int, len(dims))
		for i, dim := range dims {
			sizes[i] = it.dimSize(dim, init, i)
		}
		return Cell{Buf: it.mem.alloc(it.array(base, sizes))}
	}
	it.fail(dims[2], "Only 1-D and 2-D arrays are supported.")
	return Cell{}
}

func (it *Interpreter) dimSize(dim, init *ast.Node, depth int) int {
	if dim.Is(ast.OpArrayDecl) {
		v := it.eval(dim.Children[0])
		if v.Kind != KindInt || v.I <= 0 {
			it.fail(dim, "Invalid array size.")
		}
		return int(v.I)
	}
	if init != nil && init.Is(ast.OpInitList) {
		if n := listLen(init, depth); n > 0 {
			return n
		}
	}
	return defaultArraySize
}

// listLen is the longest initializer list found depth levels down.
func listLen(list *ast.Node, depth int) int {
	values := list.Children[0].Children
	if depth == 0 {
		return len(values)
	}
	longest := 0
	for _, v := range values {
		if v.Is(ast.OpInitList) {
			longest = max(longest, listLen(v, depth-1))
		}
	}
	return longest
}

func (it *Interpreter) array(elem *ast.TypeInfo, sizes []int) Value {
	values := make([]Value, sizes[0])
	if len(sizes) == 1 {
		for i := range values {
			values[i] = it.zero(elem)
		}
		return pointerValue(Pointer{Buf: it.mem.alloc(values...), Elem: elem})
	}
	for i := range values {
		values[i] = it.array(elem, sizes[1:])
	}
	return pointerValue(Pointer{Buf: it.mem.alloc(values...), Elem: elem.PointerTo()})
}

func (it *Interpreter) declareVar(decl, init *ast.Node) {
	name := decl.Children[1].Tok
	var cell Cell
	typ := it.declType(decl)
	switch {
	case it.typeOf(decl.Children[0]).IsAuto():
		if init == nil || init.Is(ast.OpInitList) {
			it.fail(decl, "Can't deduce the type of %s.", name.Text)
		}
		v := it.eval(init)
		typ = valueType(v)
		cell = it.holding(init, v)
	case init != nil && init.Is(ast.OpInitList):
		cell = it.allocVar(decl, init)
		it.initList(cell, init)
	case init != nil:
		cell = it.allocVar(decl, nil)
		it.assign(init, cell, it.eval(init))
	default:
		cell = it.allocVar(decl, nil)
	}
	it.types[cell] = typ
	it.scopes.bind(name.ID, cell)
}

// holding allocates a cell for v. A struct gets fields of its own.
func (it *Interpreter) holding(n *ast.Node, v Value) Cell {
	if v.Kind != KindStruct {
		return Cell{Buf: it.mem.alloc(v)}
	}
	c := Cell{Buf: it.mem.alloc(it.zero(valueType(v)))}
	it.assign(n, c, v)
	return c
}

func (it *Interpreter) initList(c Cell, list *ast.Node) {
	target := it.load(list, c)
	values := list.Children[0].Children
	slot := func(i int) Cell {
		if target.Kind == KindPointer {
			return Cell{Buf: target.Ptr.Buf, Index: target.Ptr.Index + i}
		}
		return target.Struct.Fields[target.Struct.Order[i]]
	}
	switch target.Kind {
	case KindPointer:
	case KindStruct:
		if len(values) > len(target.Struct.Order) {
			it.fail(list, "Too many initializers for struct %s.", target.Struct.Name)
		}
	default:
		it.fail(list, "Invalid initializer list.")
	}
	for i, v := range values {
		if v.Is(ast.OpInitList) {
			it.initList(slot(i), v)
			continue
		}
		it.assign(v, slot(i), it.eval(v))
	}
}

// assign stores v in c converted to the shape of the value already there. Structs are copied
// field by field.
func (it *Interpreter) assign(n *ast.Node, c Cell, v Value) Value {
	cur := it.load(n, c)
	if cur.Kind == KindStruct && v.Kind == KindStruct {
		if cur.Struct.Name != v.Struct.Name {
			it.fail(n, "Invalid struct assignment of %s to %s.", v.Struct.Name, cur.Struct.Name)
		}
		for _, name := range cur.Struct.Order {
			it.assign(n, cur.Struct.Fields[name], it.load(n, v.Struct.Fields[name]))
		}
		return cur
	}
	conv, err := convertLike(v, cur)
	it.check(n, err)
	it.store(n, c, conv)
	return conv
}

// Calls

func (it *Interpreter) call(fn *Function, args []Value, at *ast.Node) Value {
	if fn.Body == nil {
		it.fail(at, "Function %s is declared but never defined.", fn.Name)
	}
	if len(args) != len(fn.Params) {
		it.fail(at, "Function %s takes %d arguments, %d given.", fn.Name, len(fn.Params), len(args))
	}
	it.depth++
	if it.depth > it.cfg.MaxCallDepth {
		it.fail(at, "Stack overflow.")
	}

	saved := it.scopes.push(0)
	for i, p := range fn.Params {
		typ := it.declType(p)
		cell := Cell{Buf: it.mem.alloc(it.zero(typ))}
		it.assign(at, cell, args[i])
		it.types[cell] = typ
		it.scopes.bind(p.Children[1].Tok.ID, cell)
	}
	c := it.statements(fn.Body.Children)
	it.scopes.pop(saved)
	it.depth--

	if c.sig == sigGoto {
		it.fail(fn.Body, "Label %s is not reachable from the goto.", c.label)
	}
	switch {
	case fn.Ret.IsVoid():
		return Value{Kind: KindVoid}
	case c.sig != sigReturn || c.value.Kind == KindVoid:
		return it.zero(fn.Ret)
	case c.value.Kind == KindStruct:
		return c.value
	}
	v, err := convertLike(c.value, scalarZero(fn.Ret))
	it.check(at, err)
	return v
}

// Statements

func (it *Interpreter) scoped(fn func() control) control {
	saved := it.scopes.push(it.scopes.current)
	c := fn()
	it.scopes.pop(saved)
	return c
}

// statements runs a statement list, resolving gotos to labels of this list.
func (it *Interpreter) statements(stmts []*ast.Node) control {
	for i := 0; i < len(stmts); i++ {
		c := it.exec(stmts[i])
		if c.sig == sigGoto {
			if j := findLabel(stmts, c.label); j >= 0 {
				i = j
				continue
			}
		}
		if c.sig != sigNormal {
			return c
		}
	}
	return control{}
}

func findLabel(stmts []*ast.Node, label string) int {
	for i, s := range stmts {
		if s.Is(ast.OpLabel) && s.Children[0].Tok.Text == label {
			return i
		}
	}
	return -1
}

// body runs the body of a branch or loop in its own scope.
func (it *Interpreter) body(n *ast.Node) control {
	if n.Is(ast.OpBlock) {
		return it.exec(n)
	}
	return it.scoped(func() control { return it.exec(n) })
}

// iteration runs one pass of a loop body and reports whether the loop must stop.
func (it *Interpreter) iteration(body *ast.Node) (bool, control) {
	c := it.body(body)
	switch c.sig {
	case sigBreak:
		return true, control{}
	case sigReturn, sigGoto:
		return true, c
	}
	return false, control{}
}

func (it *Interpreter) truthy(n *ast.Node) bool {
	ok, err := it.eval(n).truthy()
	it.check(n, err)
	return ok
}

func (it *Interpreter) exec(n *ast.Node) control {
	switch {
	case n.Is(ast.OpBlock):
		return it.scoped(func() control { return it.statements(n.Children) })
	case n.Is(ast.OpEmptyLine, ast.OpLine, ast.OpLines):
		for _, ins := range n.Children {
			if c := it.instruction(ins); c.sig != sigNormal {
				return c
			}
		}
	case n.Is(ast.OpLabel):
	case n.Is(ast.OpIfChain, ast.OpIfChainElse):
		for _, branch := range n.Children {
			if branch.Is(ast.OpElse) {
				return it.body(branch.Children[0])
			}
			if it.truthy(branch.Children[0]) {
				return it.body(branch.Children[1])
			}
		}
	case n.Is(ast.OpWhile):
		return it.scoped(func() control {
			for it.truthy(n.Children[0]) {
				if stop, c := it.iteration(n.Children[1]); stop {
					return c
				}
			}
			return control{}
		})
	case n.Is(ast.OpDoWhile):
		return it.scoped(func() control {
			for {
				if stop, c := it.iteration(n.Children[1]); stop {
					return c
				}
				if !it.truthy(n.Children[0]) {
					return control{}
				}
			}
		})
	case n.Is(ast.OpFor):
		return it.scoped(func() control {
			init, cond, step := n.Children[0], n.Children[1], n.Children[2]
			if init.Type != ast.Empty {
				it.instruction(init)
			}
			for cond.Type == ast.Empty || it.truthy(cond) {
				if stop, c := it.iteration(n.Children[3]); stop {
					return c
				}
				if step.Type != ast.Empty {
					it.eval(step)
				}
			}
			return control{}
		})
	case n.Is(ast.OpSwitch):
		return it.switchStatement(n)
	default:
		it.fail(n, "Invalid statement.")
	}
	return control{}
}

// switchStatement runs the first case equal to the selector; default matches wherever it
// appears. Control never falls into the next case and a break only ends the case body.
func (it *Interpreter) switchStatement(n *ast.Node) control {
	selector := it.eval(n.Children[0])
	for _, cs := range n.Children[1].Children {
		value := cs.Children[0]
		if !(value.Type == ast.Value && value.Tok.Is("default")) {
			eq, err := binary("==", selector, it.eval(value))
			it.check(value, err)
			if eq.I == 0 {
				continue
			}
		}
		c := it.body(cs.Children[1])
		if c.sig == sigBreak {
			return control{}
		}
		return c
	}
	return control{}
}

func (it *Interpreter) instruction(n *ast.Node) control {
	switch {
	case it.declaration(n):
	case n.Type == ast.Value && n.Tok.Is("break"):
		return control{sig: sigBreak}
	case n.Type == ast.Value && n.Tok.Is("continue"):
		return control{sig: sigContinue}
	case n.Is(ast.OpReturn):
		if n.Children[0].Type == ast.Empty {
			return control{sig: sigReturn}
		}
		return control{sig: sigReturn, value: it.eval(n.Children[0])}
	case n.Is(ast.OpGoto):
		return control{sig: sigGoto, label: n.Children[0].Tok.Text}
	default:
		it.eval(n)
	}
	return control{}
}
