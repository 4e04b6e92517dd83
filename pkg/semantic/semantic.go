// Package semantic checks a parsed program: declarations, scoping, control-flow placement and
// the C type rules. The first violation stops the analysis.
package semantic

import (
	"fmt"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

type scopeKind int

const (
	scopeGlobal scopeKind = iota
	scopeFunction
	scopeBlock
	scopeLoop
	scopeSwitch
)

// FuncInfo is the signature of a declared function.
type FuncInfo struct {
	Ret     *ast.TypeInfo
	Params  []*ast.TypeInfo
	Defined bool
}

// IdentifierInfo describes a name bound in a scope. Func is set for functions, whose Type is
// the return type.
type IdentifierInfo struct {
	Name string
	Type *ast.TypeInfo
	Func *FuncInfo
	Tok  token.Token
}

type scope struct {
	kind    scopeKind
	parent  int
	idents  map[int]*IdentifierInfo
	structs map[string]*ast.StructInfo
}

// funcContext tracks what a function body needs checked once it has been walked.
type funcContext struct {
	ret    *ast.TypeInfo
	labels map[string]token.Token
	used   map[string]bool
	gotos  []token.Token
}

type Analyzer struct {
	cfg      *config.Config
	scopes   []scope
	current  int
	fn       *funcContext
	warnings []util.Warning
}

// bailout carries the first error up to Analyze.
type bailout struct{ err error }

func NewAnalyzer(cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Analyzer{cfg: cfg, current: -1}
}

// SemanticAnalysis checks root with the default configuration.
func SemanticAnalysis(root *ast.Node) error {
	return NewAnalyzer(nil).Analyze(root)
}

// Warnings returns the findings of the last Analyze call.
func (a *Analyzer) Warnings() []util.Warning { return a.warnings }

func (a *Analyzer) Analyze(root *ast.Node) (err error) {
	a.scopes, a.current, a.fn, a.warnings = nil, -1, nil, nil
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()

	a.enterScope(scopeGlobal)
	for _, item := range root.Children {
		switch {
		case item.IsToken(token.Directive):
			a.warn(config.WarnDirective, item.Tok, "Preprocessor directive %q is ignored.", item.Tok.Text)
		case item.Is(ast.OpStructDecl):
			a.declareStruct(item)
		case item.Is(ast.OpFuncDecl, ast.OpFuncProto):
			a.declareFunc(item)
		default:
			a.declaration(item)
		}
	}
	return nil
}

func (a *Analyzer) fail(tok token.Token, format string, args ...any) {
	panic(bailout{&util.SemanticError{Pos: util.PosOf(tok), Msg: fmt.Sprintf(format, args...)}})
}

func (a *Analyzer) failAt(n *ast.Node, format string, args ...any) {
	a.fail(nodeTok(n), format, args...)
}

func (a *Analyzer) warn(w config.Warning, tok token.Token, format string, args ...any) {
	if !a.cfg.IsWarningEnabled(w) {
		return
	}
	a.warnings = append(a.warnings, util.Warning{
		Pos: util.PosOf(tok), Name: a.cfg.WarningName(w), Msg: fmt.Sprintf(format, args...),
	})
}

// nodeTok is the token diagnostics about n point at.
func nodeTok(n *ast.Node) token.Token {
	if n.Tok.Line > 0 {
		return n.Tok
	}
	tok, _ := n.FirstToken()
	return tok
}

// Scopes

func (a *Analyzer) enterScope(kind scopeKind) {
	a.scopes = append(a.scopes, scope{
		kind: kind, parent: a.current,
		idents: make(map[int]*IdentifierInfo), structs: make(map[string]*ast.StructInfo),
	})
	a.current = len(a.scopes) - 1
}

func (a *Analyzer) exitScope() { a.current = a.scopes[a.current].parent }

func (a *Analyzer) lookup(tok token.Token) *IdentifierInfo {
	for i := a.current; i >= 0; i = a.scopes[i].parent {
		if info, ok := a.scopes[i].idents[tok.ID]; ok {
			return info
		}
	}
	return nil
}

// LookupStruct resolves a struct name through the enclosing scopes.
func (a *Analyzer) LookupStruct(name string) (*ast.StructInfo, bool) {
	for i := a.current; i >= 0; i = a.scopes[i].parent {
		if info, ok := a.scopes[i].structs[name]; ok {
			return info, true
		}
	}
	return nil, false
}

// inside reports whether a scope of one of kinds encloses the current one within the function.
func (a *Analyzer) inside(kinds ...scopeKind) bool {
	for i := a.current; i >= 0; i = a.scopes[i].parent {
		k := a.scopes[i].kind
		if k == scopeFunction || k == scopeGlobal {
			return false
		}
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
	}
	return false
}

func (a *Analyzer) bind(tok token.Token, info *IdentifierInfo) {
	if _, ok := a.scopes[a.current].idents[tok.ID]; ok {
		a.fail(tok, "Variable %s is already declared in this scope.", tok.Text)
	}
	a.scopes[a.current].idents[tok.ID] = info
}

// Types

// typeOf validates a type specifier node.
func (a *Analyzer) typeOf(n *ast.Node) *ast.TypeInfo {
	ti, err := ast.NewTypeInfo(n.TypeWords(), a)
	if err != nil {
		a.failAt(n, "%s", err.Error())
	}
	n.Annotate(ti)
	return ti
}

// declType is the type of a "Variable declaration" node; every array dimension adds a
// pointer level.
func (a *Analyzer) declType(decl *ast.Node) *ast.TypeInfo {
	ti := a.typeOf(decl.Children[0])
	for _, dim := range decl.Children[2:] {
		if dim.Is(ast.OpArrayDecl) {
			size := a.rvalueType(dim.Children[0])
			if !size.IsInteger() {
				a.failAt(dim, "Array size must be integer.")
			}
		}
		ti = ti.PointerTo()
	}
	return ti
}

// Declarations

func (a *Analyzer) declareStruct(n *ast.Node) {
	name := n.Children[0].Tok
	if _, dup := a.scopes[a.current].structs[name.Text]; dup {
		a.fail(name, "Struct %s is already declared.", name.Text)
	}
	info := &ast.StructInfo{Name: name.Text, Fields: make(map[string]*ast.TypeInfo)}
	a.scopes[a.current].structs[name.Text] = info

	for _, field := range n.Children[1].Children {
		fieldName := field.Children[1].Tok
		ti := a.declType(field)
		if ti.Struct == name.Text && ti.Stars() == 0 {
			a.fail(fieldName, "Struct %s contains itself.", name.Text)
		}
		if _, dup := info.Fields[fieldName.Text]; dup {
			a.fail(fieldName, "Duplicate struct field: %s", fieldName.Text)
		}
		field.Annotate(ti)
		info.Fields[fieldName.Text] = ti
		info.Order = append(info.Order, fieldName.Text)
	}
}

// params flattens a parameter list to its declarations.
func (a *Analyzer) params(list *ast.Node) []*ast.Node {
	var decls []*ast.Node
	for _, p := range list.Children {
		switch {
		case p.Is(ast.OpVarsDecl):
			decls = append(decls, a.params(p)...)
		case p.Is(ast.OpVarDecl):
			decls = append(decls, p)
		default:
			a.failAt(p, "Function parameter can't be initialized.")
		}
	}
	return decls
}

func (a *Analyzer) declareFunc(n *ast.Node) {
	ret := a.typeOf(n.Children[0])
	name := n.Children[1].Tok
	decls := a.params(n.Children[2])
	sig := &FuncInfo{Ret: ret, Defined: n.Is(ast.OpFuncDecl)}
	for _, d := range decls {
		sig.Params = append(sig.Params, a.declType(d))
	}

	if prev := a.scopes[a.current].idents[name.ID]; prev != nil {
		switch {
		case prev.Func == nil:
			a.fail(name, "Identifier %s is already declared.", name.Text)
		case prev.Func.Defined && sig.Defined:
			a.fail(name, "Function %s is already defined.", name.Text)
		case !sameSignature(prev.Func, sig):
			a.fail(name, "Function %s does not match its previous declaration.", name.Text)
		}
		prev.Func.Defined = prev.Func.Defined || sig.Defined
	} else {
		a.scopes[a.current].idents[name.ID] = &IdentifierInfo{Name: name.Text, Type: ret, Func: sig, Tok: name}
	}
	n.Annotate(ret)
	if !sig.Defined {
		return
	}

	a.fn = &funcContext{ret: ret, labels: make(map[string]token.Token), used: make(map[string]bool)}
	a.enterScope(scopeFunction)
	for i, d := range decls {
		tok := d.Children[1].Tok
		d.Annotate(sig.Params[i])
		a.bind(tok, &IdentifierInfo{Name: tok.Text, Type: sig.Params[i], Tok: tok})
	}
	a.block(n.Children[3])
	a.exitScope()

	for _, g := range a.fn.gotos {
		if _, ok := a.fn.labels[g.Text]; !ok {
			a.fail(g, "Used undeclared label: %s", g.Text)
		}
	}
	for label, tok := range a.fn.labels {
		if !a.fn.used[label] {
			a.warn(config.WarnUnusedLabel, tok, "Label %s is never used.", label)
		}
	}
	a.fn = nil
}

func sameSignature(x, y *FuncInfo) bool {
	if !x.Ret.Equal(y.Ret) || len(x.Params) != len(y.Params) {
		return false
	}
	for i := range x.Params {
		if !x.Params[i].Equal(y.Params[i]) {
			return false
		}
	}
	return true
}

// declaration handles the declaration forms; it reports whether n was one.
func (a *Analyzer) declaration(n *ast.Node) bool {
	switch {
	case n.Is(ast.OpVarsDecl):
		for _, c := range n.Children {
			a.declaration(c)
		}
	case n.Is(ast.OpVarDecl):
		a.declareVar(n, nil)
	case n.Is(ast.OpVarInit):
		a.declareVar(n.Children[0], n.Children[1])
	default:
		return false
	}
	return true
}

func (a *Analyzer) declareVar(decl, init *ast.Node) {
	name := decl.Children[1].Tok
	ti := a.declType(decl)

	switch {
	case init == nil && ti.IsAuto():
		a.fail(name, "Variable of %s not initialized.", decl.Children[0].Text())
	case init == nil && ti.IsReadOnly():
		a.fail(name, "Const variable not initialized.")
	case init != nil && init.Is(ast.OpInitList):
		if ti.IsAuto() {
			a.failAt(init, "Can't deduce auto from an initializer list.")
		}
		a.initList(init, ti)
	case init != nil && ti.IsAuto():
		if !a.cfg.IsFeatureEnabled(config.FeatAutoInfer) {
			a.fail(name, "Auto type inference is disabled.")
		}
		rt := a.rvalueType(init)
		if rt.IsVoid() {
			a.failAt(init, "Invalid void casting.")
		}
		ti = rt.Unqualified()
	case init != nil:
		a.assignable(a.rvalueType(init), ti, init)
	}
	decl.Annotate(ti)
	a.bind(name, &IdentifierInfo{Name: name.Text, Type: ti, Tok: name})
}

// initList checks a brace initializer against the array or struct type it initializes.
func (a *Analyzer) initList(list *ast.Node, ti *ast.TypeInfo) {
	values := list.Children[0].Children
	switch {
	case ti.IsPointer():
		elem := ti.IfIndexed()
		for _, v := range values {
			a.initValue(v, elem)
		}
	case ti.IsStruct():
		if len(values) > len(ti.FieldOrder) {
			a.failAt(list, "Too many initializers for struct %s.", ti.Struct)
		}
		for i, v := range values {
			a.initValue(v, ti.Fields[ti.FieldOrder[i]])
		}
	default:
		a.failAt(list, "Invalid initializer list for type %s.", ti)
	}
	list.Annotate(ti)
}

func (a *Analyzer) initValue(v *ast.Node, ti *ast.TypeInfo) {
	if v.Is(ast.OpInitList) {
		a.initList(v, ti)
		return
	}
	a.assignable(a.rvalueType(v), ti, v)
}

// assignable fails unless a value of type from may be stored as to.
func (a *Analyzer) assignable(from, to *ast.TypeInfo, at *ast.Node) {
	if err := ast.CanImplicitCast(from, to); err != nil {
		a.failAt(at, "%s", err.Error())
	}
}

// Statements

// block checks the statements of a "Block of code" in the current scope.
func (a *Analyzer) block(n *ast.Node) {
	unreachable := false
	for _, stmt := range n.Children {
		if unreachable && !stmt.Is(ast.OpLabel) && !stmt.Is(ast.OpEmptyLine) {
			a.warn(config.WarnUnreachableCode, nodeTok(stmt), "Unreachable code.")
			unreachable = false
		}
		a.statement(stmt)
		if stmt.Is(ast.OpLabel) {
			unreachable = false
		}
		if jumps(stmt) {
			unreachable = true
		}
	}
}

// jumps reports whether a line ends with return, break, continue or goto.
func jumps(stmt *ast.Node) bool {
	if !stmt.Is(ast.OpLine, ast.OpLines) {
		return false
	}
	last := stmt.Children[len(stmt.Children)-1]
	return last.Is(ast.OpReturn, ast.OpGoto) || (last.Type == ast.Value && (last.Tok.Is("break") || last.Tok.Is("continue")))
}

// scoped checks a body in a fresh scope of the given kind.
func (a *Analyzer) scoped(kind scopeKind, body *ast.Node) {
	a.enterScope(kind)
	defer a.exitScope()
	if body.Is(ast.OpBlock) {
		a.block(body)
		return
	}
	a.statement(body)
}

func (a *Analyzer) statement(n *ast.Node) {
	switch {
	case n.Is(ast.OpBlock):
		a.scoped(scopeBlock, n)
	case n.Is(ast.OpEmptyLine, ast.OpLine, ast.OpLines):
		for _, ins := range n.Children {
			a.instruction(ins)
		}
	case n.Is(ast.OpLabel):
		tok := n.Children[0].Tok
		if _, dup := a.fn.labels[tok.Text]; dup {
			a.fail(tok, "The same label is declared more than once: %s", tok.Text)
		}
		a.fn.labels[tok.Text] = tok
	case n.Is(ast.OpIfChain, ast.OpIfChainElse):
		for _, branch := range n.Children {
			if branch.Is(ast.OpElse) {
				a.scoped(scopeBlock, branch.Children[0])
				continue
			}
			a.condition(branch.Children[0])
			a.scoped(scopeBlock, branch.Children[1])
		}
	case n.Is(ast.OpWhile):
		a.condition(n.Children[0])
		a.scoped(scopeLoop, n.Children[1])
	case n.Is(ast.OpDoWhile):
		a.scoped(scopeLoop, n.Children[1])
		a.condition(n.Children[0])
	case n.Is(ast.OpFor):
		a.enterScope(scopeLoop)
		if init := n.Children[0]; init.Type != ast.Empty {
			a.instruction(init)
		}
		if cond := n.Children[1]; cond.Type != ast.Empty {
			a.condition(cond)
		}
		if step := n.Children[2]; step.Type != ast.Empty {
			a.instruction(step)
		}
		a.statement(n.Children[3])
		a.exitScope()
	case n.Is(ast.OpSwitch):
		a.switchStatement(n)
	default:
		a.failAt(n, "Invalid statement.")
	}
}

func (a *Analyzer) condition(n *ast.Node) {
	t := a.rvalueType(n)
	if t.IsStruct() || t.IsVoid() {
		a.failAt(n, "Invalid condition type: %s.", t)
	}
}

func (a *Analyzer) switchStatement(n *ast.Node) {
	selector := a.rvalueType(n.Children[0])
	if !selector.IsInteger() {
		a.failAt(n.Children[0], "Not integer switch selector.")
	}
	seen := make(map[string]bool)
	a.enterScope(scopeSwitch)
	for _, c := range n.Children[1].Children {
		value := c.Children[0]
		if !(value.Type == ast.Value && value.Tok.Is("default")) {
			if !a.rvalueType(value).IsInteger() {
				a.failAt(value, "Not integer case value.")
			}
			if value.Type == ast.Value && value.Tok.Kind.IsLiteral() {
				if seen[value.Tok.Text] {
					a.warn(config.WarnDuplicateCase, value.Tok, "Duplicate case value %s.", value.Tok.Text)
				}
				seen[value.Tok.Text] = true
			}
		}
		a.scoped(scopeBlock, c.Children[1])
	}
	a.exitScope()
}

// instruction checks one item of a line: a declaration, a jump or an expression.
func (a *Analyzer) instruction(n *ast.Node) {
	if a.declaration(n) {
		return
	}
	switch {
	case n.Type == ast.Value && n.Tok.Is("break"):
		if !a.inside(scopeLoop, scopeSwitch) {
			a.fail(n.Tok, "Break statement not within loop or switch.")
		}
	case n.Type == ast.Value && n.Tok.Is("continue"):
		if !a.inside(scopeLoop) {
			a.fail(n.Tok, "Continue statement not within loop.")
		}
	case n.Is(ast.OpReturn):
		a.returnStatement(n)
	case n.Is(ast.OpGoto):
		tok := n.Children[0].Tok
		a.fn.gotos = append(a.fn.gotos, tok)
		a.fn.used[tok.Text] = true
	default:
		a.rvalueType(n)
	}
}

func (a *Analyzer) returnStatement(n *ast.Node) {
	value := n.Children[0]
	switch {
	case a.fn.ret.IsVoid() && value.Type != ast.Empty:
		a.failAt(value, "Void function can't return a value.")
	case !a.fn.ret.IsVoid() && value.Type == ast.Empty:
		a.failAt(n, "Function must return a value of type %s.", a.fn.ret)
	case value.Type != ast.Empty:
		a.assignable(a.rvalueType(value), a.fn.ret, value)
	}
}
