package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/util"
)

// sexpr renders a tree compactly: operators as name(children...), types in brackets.
func sexpr(n *ast.Node) string {
	switch n.Type {
	case ast.Empty:
		return "_"
	case ast.Types:
		return "[" + n.Text() + "]"
	case ast.Operator:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = sexpr(c)
		}
		return n.Op + "(" + strings.Join(parts, " ") + ")"
	}
	return n.Text()
}

func parse(t *testing.T, src string) (*ast.Node, error) {
	t.Helper()
	toks, err := lexer.LexicalAnalysis(src)
	if err != nil {
		t.Fatalf("LexicalAnalysis(%q): %v", src, err)
	}
	return SyntaxAnalysis(toks)
}

// body parses stmts as the body of main and renders its block.
func body(t *testing.T, stmts string) string {
	t.Helper()
	root, err := parse(t, "int main() { "+stmts+" }")
	if err != nil {
		t.Fatalf("SyntaxAnalysis(%q): %v", stmts, err)
	}
	return sexpr(root.Children[0].Children[3])
}

func TestProgramShapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			"int main(){return 0;}",
			"Program(Function declaration(int main Function parameters() Block of code(Line ;(Return(0)))))",
		},
		{
			"int a, *b;",
			"Program(Variables declaration(Variable declaration(int a) Variable declaration([int *] b)))",
		},
		{
			"int *p, q = 1;",
			"Program(Variables declaration(Variable declaration([int *] p) Variable initialization(Variable declaration(int q) 1)))",
		},
		{
			"int a[2][3];",
			"Program(Variable declaration(int a Array declaration [..](2) Array declaration [..](3)))",
		},
		{
			"struct point { int x; int y; };",
			"Program(Struct declaration(point Struct fields(Variable declaration(int x) Variable declaration(int y))))",
		},
		{
			"unsigned long f(int a, char *s);",
			"Program(Function prototype([unsigned long] f Function parameters(Variable declaration(int a) Variable declaration([char *] s))))",
		},
		{
			"#include <stdio.h>\nint main(void){}",
			"Program(#include <stdio.h> Function declaration(int main Function parameters() Block of code()))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			root, err := parse(t, tt.src)
			if err != nil {
				t.Fatalf("SyntaxAnalysis: %v", err)
			}
			if got := sexpr(root); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestStatementShapes(t *testing.T) {
	tests := []struct {
		stmts string
		want  string
	}{
		{"x = 1 + 2 * 3;", "Block of code(Line ;(=(x +(1 *(2 3)))))"},
		{"a = b = 2;", "Block of code(Line ;(=(a =(b 2))))"},
		{"x += y - 1 - 2;", "Block of code(Line ;(+=(x -(-(y 1) 2))))"},
		{"x = c ? 1 : 2;", "Block of code(Line ;(=(x Ternary operator ?:(c 1 2))))"},
		{"x = (long)y + sizeof(int*);", "Block of code(Line ;(=(x +(Type cast(long y) Sizeof([int *])))))"},
		{"p->next->value = a[1].x;", "Block of code(Line ;(=(Member access ->(Member access ->(p next) value) Member access .(Indexer [..](a 1) x))))"},
		{"*p = -x;", "Block of code(Line ;(=(Indirection *(p) Negation -(x))))"},
		{"i++, --j;", "Block of code(Lines ;(Postincrement ++(i) Predecrement --(j)))"},
		{";", "Block of code(Empty line ;())"},
		{`printf("hi", 1);`, `Block of code(Line ;(Function calling(printf "hi" 1)))`},
		{"int v[] = {1, 2};", "Block of code(Line ;(Variable initialization(Variable declaration(int v Array declaration []()) {..}(Init values(1 2)))))"},
		{"loop: goto loop;", "Block of code(Label(loop) Line ;(Go to(loop)))"},
		{"return;", "Block of code(Line ;(Return(_)))"},
		{
			"if (a) x = 1; else if (b) x = 2; else { x = 3; }",
			"Block of code(If else if else statements(If statement(a Line ;(=(x 1))) Else if statement(b Line ;(=(x 2))) Else statement(Block of code(Line ;(=(x 3))))))",
		},
		{"if (a) { }", "Block of code(If else if statements(If statement(a Block of code())))"},
		{
			"for (i = 0; i < 3; i++) continue;",
			"Block of code(For loop(=(i 0) <(i 3) Postincrement ++(i) Line ;(continue)))",
		},
		{"for (;;) break;", "Block of code(For loop(_ _ _ Line ;(break)))"},
		{"while (x) x--;", "Block of code(While loop(x Line ;(Postdecrement --(x))))"},
		{"do { x = x - 1; } while (x);", "Block of code(Do while loop(x Block of code(Line ;(=(x -(x 1))))))"},
		{
			"switch (x) { case 1: y = 1; break; default: y = 0; }",
			"Block of code(Switch case(x Cases(Case(1 Block of code(Line ;(=(y 1)) Line ;(break))) Case(default Block of code(Line ;(=(y 0)))))))",
		},
		{"{ int x; }", "Block of code(Block of code(Line ;(Variable declaration(int x))))"},
	}
	for _, tt := range tests {
		t.Run(tt.stmts, func(t *testing.T) {
			if got := body(t, tt.stmts); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"x = 5;", "Invalid syntax"},
		{"int x", "; missed after variable creating."},
		{"int main() { if x) {} }", "Invalid if declaration: '(' is missed."},
		{"int main() { if (a {} }", "Invalid if declaration: ')' is missed."},
		{"int main() { for (i = 0 i < 3; i++) {} }", "Invalid for declaration: ';' is missed."},
		{"int main() { do {} (x); }", "Invalid do while declaration: 'while' is missed."},
		{"int main() { x = a ? b; }", "Invalid ternary operator: ':' is missed"},
		{"int main() { goto; }", "Goto invalid declaration: label is missed."},
		{"int main() { x = sizeof int; }", "Invalid sizeof operator: '(' is missed."},
		{"int main() { x = p->; }", "Invalid -> operator: identifier is missed."},
		{"int main() { f(1; }", "Invalid function calling: ')' is missed."},
		{"struct s { int x };", "Invalid struct field declaration: ';' is missed."},
		{"struct s { int x; }", "Invalid structure declaration: ';' is missed."},
		{"int main() { switch (x) { default: break; default: break; } }", "Switch case has more than one default."},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := parse(t, tt.src)
			var syn *util.SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("SyntaxAnalysis(%q) error = %v, want a SyntaxError", tt.src, err)
			}
			if syn.Msg != tt.msg {
				t.Errorf("message = %q, want %q", syn.Msg, tt.msg)
			}
		})
	}
}

func TestInvalidSyntaxPosition(t *testing.T) {
	_, err := parse(t, "int x;\nx = 5;")
	var syn *util.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("err = %v", err)
	}
	if syn.Pos.Line != 2 || syn.Pos.Column != 1 {
		t.Errorf("position = %d:%d, want 2:1", syn.Pos.Line, syn.Pos.Column)
	}
}

func TestNestedBlocksFeature(t *testing.T) {
	toks, err := lexer.LexicalAnalysis("int main() { { x = 1; } }")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatNestedBlocks, false)
	if _, err := NewParser(cfg).Parse(toks); err == nil {
		t.Error("a bare block parsed with nested-blocks disabled")
	}
	if _, err := NewParser(nil).Parse(toks); err != nil {
		t.Errorf("default parser: %v", err)
	}
}
