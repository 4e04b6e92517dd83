package view

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/parser"
)

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks, err := lexer.LexicalAnalysis(src)
	if err != nil {
		t.Fatalf("LexicalAnalysis: %v", err)
	}
	root, err := parser.SyntaxAnalysis(toks)
	if err != nil {
		t.Fatalf("SyntaxAnalysis: %v", err)
	}
	return root
}

func TestTokenTable(t *testing.T) {
	toks, err := lexer.LexicalAnalysis("int x = 0x1f;")
	if err != nil {
		t.Fatal(err)
	}
	want := []Row{
		{1, "Type", "int"},
		{2, "Identifier", "x"},
		{3, "Punctuator", "="},
		{4, "Int hex literal", "0x1f"},
		{5, "Punctuator", ";"},
	}
	if diff := cmp.Diff(want, TokenTable(toks)); diff != "" {
		t.Errorf("TokenTable mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorViews(t *testing.T) {
	err := errors.New("Invalid character '@'.")
	if diff := cmp.Diff([]Row{{-1, "Error", "Invalid character '@'."}}, ErrorTable(err)); diff != "" {
		t.Errorf("ErrorTable mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&TreeNode{Label: "Invalid character '@'."}, ErrorTree(err)); diff != "" {
		t.Errorf("ErrorTree mismatch (-want +got):\n%s", diff)
	}
}

func labels(t *TreeNode) []string {
	var out []string
	t.Walk(func(n *TreeNode, depth int) {
		out = append(out, strings.Repeat(".", depth)+n.Label)
	})
	return out
}

func TestTree(t *testing.T) {
	root := parse(t, "int main() { return (1); }")
	want := []string{
		"Program",
		".Function declaration",
		"..int",
		"..main",
		"..Function parameters",
		"..Block of code",
		"...Line ;",
		"....Return",
		".....(..)",
		"......1",
	}
	if diff := cmp.Diff(want, labels(Tree(root))); diff != "" {
		t.Errorf("Tree mismatch (-want +got):\n%s", diff)
	}

	collapsed := []string{
		"Program",
		".Function declaration",
		"..int",
		"..main",
		"..Function parameters",
		"..Block of code",
		"...Return",
		"....1",
	}
	if diff := cmp.Diff(collapsed, labels(CollapsedTree(root))); diff != "" {
		t.Errorf("CollapsedTree mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeOmitsEmpty(t *testing.T) {
	root := parse(t, "int main() { for (;;) break; }")
	var loop *TreeNode
	Tree(root).Walk(func(n *TreeNode, _ int) {
		if n.Label == ast.OpFor {
			loop = n
		}
	})
	if loop == nil {
		t.Fatal("no For loop node")
	}
	if len(loop.Children) != 1 || loop.Children[0].Label != ast.OpLine {
		t.Errorf("For loop children = %v, want only the body", labels(loop))
	}
}

func TestWriteTableText(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{1, "Type", "int"}, {2, "Identifier", "x"}}
	if err := WriteTable(&buf, rows, FormatText); err != nil {
		t.Fatal(err)
	}
	want := "  ID  Kind        Text\n" +
		"   1  Type        int\n" +
		"   2  Identifier  x\n"
	if got := buf.String(); got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestWriteTreeText(t *testing.T) {
	var buf bytes.Buffer
	tree := &TreeNode{Label: "=", Children: []*TreeNode{{Label: "x"}, {Label: "1"}}}
	if err := WriteTree(&buf, tree, FormatText); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "=\n    x\n    1\n"; got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestEncodersRoundTrip(t *testing.T) {
	tree := CollapsedTree(parse(t, "int g = 1;"))

	var js bytes.Buffer
	if err := WriteTree(&js, tree, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var fromJSON TreeNode
	if err := json.Unmarshal(js.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tree, &fromJSON); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}

	var cb bytes.Buffer
	if err := WriteTree(&cb, tree, FormatCBOR); err != nil {
		t.Fatal(err)
	}
	var fromCBOR TreeNode
	if err := cbor.Unmarshal(cb.Bytes(), &fromCBOR); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tree, &fromCBOR); diff != "" {
		t.Errorf("cbor mismatch (-want +got):\n%s", diff)
	}
}

func TestCBORIsCanonical(t *testing.T) {
	rows := []Row{{1, "Type", "int"}}
	var a, b bytes.Buffer
	if err := WriteTable(&a, rows, FormatCBOR); err != nil {
		t.Fatal(err)
	}
	if err := WriteTable(&b, rows, FormatCBOR); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("CBOR encoding is not deterministic")
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := WriteTable(&bytes.Buffer{}, nil, "yaml"); err == nil {
		t.Error("WriteTable accepted an unknown format")
	}
}
