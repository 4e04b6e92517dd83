// Package view turns phase results into the token table and parse tree views, and encodes them
// as aligned text, JSON or canonical CBOR.
package view

import (
	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/token"
)

// Row is one line of the token table. A failed tokenization is a single row with ID -1.
type Row struct {
	ID   int    `json:"id" cbor:"id"`
	Kind string `json:"kind" cbor:"kind"`
	Text string `json:"text" cbor:"text"`
}

// TreeNode is a parse tree node as shown to the user.
type TreeNode struct {
	Label    string      `json:"label" cbor:"label"`
	Children []*TreeNode `json:"children,omitempty" cbor:"children,omitempty"`
}

// TokenTable lists tokens in source order.
func TokenTable(tokens []token.Token) []Row {
	rows := make([]Row, len(tokens))
	for i, t := range tokens {
		rows[i] = Row{ID: t.ID, Kind: t.KindName(), Text: t.Text}
	}
	return rows
}

// ErrorTable is the token table shown when tokenization failed.
func ErrorTable(err error) []Row {
	return []Row{{ID: -1, Kind: "Error", Text: err.Error()}}
}

// Tree mirrors root node for node. Empty nodes are omitted.
func Tree(root *ast.Node) *TreeNode {
	return build(root, false)
}

// CollapsedTree is Tree with "(..)" and "Line ;" nodes replaced by their first child.
func CollapsedTree(root *ast.Node) *TreeNode {
	return build(root, true)
}

// ErrorTree is the tree shown when a phase failed.
func ErrorTree(err error) *TreeNode {
	return &TreeNode{Label: err.Error()}
}

func build(n *ast.Node, collapse bool) *TreeNode {
	if n == nil || n.Type == ast.Empty {
		return nil
	}
	if collapse && n.Is(ast.OpParens, ast.OpLine) && len(n.Children) > 0 {
		return build(n.Children[0], collapse)
	}
	t := &TreeNode{Label: n.Text()}
	for _, c := range n.Children {
		if child := build(c, collapse); child != nil {
			t.Children = append(t.Children, child)
		}
	}
	return t
}

// Walk visits t and its descendants in pre-order, passing the depth of each node.
func (t *TreeNode) Walk(fn func(n *TreeNode, depth int)) {
	t.walk(fn, 0)
}

func (t *TreeNode) walk(fn func(*TreeNode, int), depth int) {
	if t == nil {
		return
	}
	fn(t, depth)
	for _, c := range t.Children {
		c.walk(fn, depth+1)
	}
}
