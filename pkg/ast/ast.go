// Package ast defines the syntax tree built by the parser and the C type descriptors shared by
// the semantic analyzer and the interpreter.
package ast

import (
	"strings"

	"github.com/xplshn/cinterp/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	Empty    NodeType = iota
	Value             // a single token: identifier, literal, keyword or one-word type
	Types             // a multi-token type specifier such as "unsigned long int *"
	Operator          // a named interior node
)

// Node represents a node in the Abstract Syntax Tree. Nodes are never mutated after the
// parser returns, except for Typ which the analyzer fills in once.
type Node struct {
	Type     NodeType
	Tok      token.Token
	Toks     []token.Token
	Op       string
	Children []*Node
	Typ      *TypeInfo
}

// Operator names as they appear in the parse tree.
const (
	OpProgram        = "Program"
	OpStructDecl     = "Struct declaration"
	OpStructFields   = "Struct fields"
	OpFuncDecl       = "Function declaration"
	OpFuncProto      = "Function prototype"
	OpFuncParams     = "Function parameters"
	OpBlock          = "Block of code"
	OpIfChain        = "If else if statements"
	OpIfChainElse    = "If else if else statements"
	OpIf             = "If statement"
	OpElseIf         = "Else if statement"
	OpElse           = "Else statement"
	OpSwitch         = "Switch case"
	OpCases          = "Cases"
	OpCase           = "Case"
	OpFor            = "For loop"
	OpWhile          = "While loop"
	OpDoWhile        = "Do while loop"
	OpLabel          = "Label"
	OpReturn         = "Return"
	OpGoto           = "Go to"
	OpEmptyLine      = "Empty line ;"
	OpLine           = "Line ;"
	OpLines          = "Lines ;"
	OpVarsDecl       = "Variables declaration"
	OpVarDecl        = "Variable declaration"
	OpVarInit        = "Variable initialization"
	OpArrayDecl      = "Array declaration [..]"
	OpArrayDeclEmpty = "Array declaration []"
	OpInitList       = "{..}"
	OpInitValues     = "Init values"
	OpParens         = "(..)"
	OpTernary        = "Ternary operator ?:"
	OpPreInc         = "Preincrement ++"
	OpPreDec         = "Predecrement --"
	OpPostInc        = "Postincrement ++"
	OpPostDec        = "Postdecrement --"
	OpNeg            = "Negation -"
	OpPlus           = "Plus +"
	OpDeref          = "Indirection *"
	OpNot            = "Logical not !"
	OpCompl          = "Bitwise complement ~"
	OpAddr           = "Address-of &"
	OpSizeof         = "Sizeof"
	OpCast           = "Type cast"
	OpCall           = "Function calling"
	OpIndex          = "Indexer [..]"
	OpMember         = "Member access ."
	OpArrow          = "Member access ->"
)

// AssignOps are the assignment operators; binary operator nodes are named by their token.
var AssignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "^=": true, "|=": true, "<<=": true, ">>=": true,
}

func NewEmpty() *Node { return &Node{Type: Empty} }

func NewValue(tok token.Token) *Node { return &Node{Type: Value, Tok: tok} }

func NewTypes(toks ...token.Token) *Node { return &Node{Type: Types, Toks: toks} }

func NewOperator(op string, children ...*Node) *Node {
	return &Node{Type: Operator, Op: op, Children: children}
}

func NewUnary(op string, child *Node) *Node { return NewOperator(op, child) }

func NewBinary(op string, left, right *Node) *Node { return NewOperator(op, left, right) }

func NewTernary(op string, a, b, c *Node) *Node { return NewOperator(op, a, b, c) }

// Arity is the number of children of an operator node, 0 for leaves.
func (n *Node) Arity() int { return len(n.Children) }

// Is reports whether n is an operator node named one of ops.
func (n *Node) Is(ops ...string) bool {
	if n == nil || n.Type != Operator {
		return false
	}
	for _, op := range ops {
		if n.Op == op {
			return true
		}
	}
	return false
}

// IsToken reports whether n is a Value node holding a token of the given kind.
func (n *Node) IsToken(kind token.Kind) bool {
	return n != nil && n.Type == Value && n.Tok.Kind == kind
}

// Annotate records the node's type the first time it is called.
func (n *Node) Annotate(t *TypeInfo) {
	if n.Typ == nil {
		n.Typ = t
	}
}

// Text renders a leaf the way the tree view shows it.
func (n *Node) Text() string {
	switch n.Type {
	case Value:
		return n.Tok.Text
	case Types:
		words := make([]string, len(n.Toks))
		for i, t := range n.Toks {
			words[i] = t.Text
		}
		return strings.Join(words, " ")
	case Operator:
		return n.Op
	}
	return ""
}

// TypeWords returns the spelling of a Value or Types node used as a type specifier.
func (n *Node) TypeWords() []string {
	switch n.Type {
	case Value:
		return []string{n.Tok.Text}
	case Types:
		words := make([]string, len(n.Toks))
		for i, t := range n.Toks {
			words[i] = t.Text
		}
		return words
	}
	return nil
}

// FirstToken returns the leftmost token under n, used to place diagnostics.
func (n *Node) FirstToken() (token.Token, bool) {
	if n == nil {
		return token.Token{}, false
	}
	switch n.Type {
	case Value:
		return n.Tok, true
	case Types:
		if len(n.Toks) > 0 {
			return n.Toks[0], true
		}
	case Operator:
		for _, c := range n.Children {
			if tok, ok := c.FirstToken(); ok {
				return tok, true
			}
		}
	}
	return token.Token{}, false
}

// Walk calls fn for n and its descendants in pre-order until fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
