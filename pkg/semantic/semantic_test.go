package semantic

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/parser"
	"github.com/xplshn/cinterp/pkg/util"
)

func analyze(t *testing.T, cfg *config.Config, src string) (*Analyzer, *ast.Node, error) {
	t.Helper()
	toks, err := lexer.LexicalAnalysis(src)
	if err != nil {
		t.Fatalf("LexicalAnalysis: %v", err)
	}
	root, err := parser.SyntaxAnalysis(toks)
	if err != nil {
		t.Fatalf("SyntaxAnalysis: %v", err)
	}
	a := NewAnalyzer(cfg)
	return a, root, a.Analyze(root)
}

func TestValidPrograms(t *testing.T) {
	programs := []string{
		"int main() { return 0; }",
		"int sq(int x) { return x * x; } int main() { return sq(3); }",
		"int f(int); int f(int v) { return v; } int main() { return f(1); }",
		"int main() { int a[5]; a[2] = 7; return *(a + 2); }",
		"int main() { int m[2][3]; m[1][2] = 4; return m[1][2]; }",
		"struct point { int x; int y; }; int main() { struct point p; p.x = 1; return p.x; }",
		"struct node { int v; struct node *next; }; int main() { struct node n; struct node *p = &n; p->v = 2; return p->v; }",
		"int main() { int i; for (i = 0; i < 3; i++) { if (i == 1) continue; } return i; }",
		"int main() { int x = 2; switch (x) { case 1: x = 5; break; default: x = 6; } return x; }",
		"int main() { auto d = 1.5; double e = d * 2; return 0; }",
		"int main() { const int k = 3; int v = k + 1; return v; }",
		"int main() { char *s = \"hi\"; printf(\"%s\", s); return 0; }",
		"int main() { long d; int a[3]; d = &a[2] - &a[0]; return 0; }",
		"int main() { int x = 1; x += 2; x <<= 1; return x > 1 ? x : 0; }",
		"int main() { goto end; end: return 0; }",
		"int main() { unsigned u = 3u; return 0; }",
		"int main() { int v[] = {1, 2, 3}; return v[0]; }",
		"struct p { int x; int y; }; int main() { struct p q = {1, 2}; return q.y; }",
	}
	for _, src := range programs {
		if _, _, err := analyze(t, nil, src); err != nil {
			t.Errorf("%s\n  error: %v", src, err)
		}
	}
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"int main() { return y; }", "Identifier y used without declaration."},
		{"int main() { goto nowhere; }", "Used undeclared label: nowhere"},
		{"int main() { int x; int x; return 0; }", "Variable x is already declared in this scope."},
		{"int main() { const int k; return 0; }", "Const variable not initialized."},
		{"int main() { auto v; return 0; }", "Variable of auto not initialized."},
		{"int main() { break; }", "Break statement not within loop or switch."},
		{"int main() { if (1) continue; return 0; }", "Continue statement not within loop."},
		{"void f() { return 1; } int main() { return 0; }", "Void function can't return a value."},
		{"int main() { return; }", "Function must return a value of type int."},
		{"struct s { int a; }; int main() { struct s v; return v.b; }", "Invalid point member accessing: b is invalid field."},
		{"int main() { int x; return x.y; }", "Not pointable type: int."},
		{"int main() { int x; return x->y; }", "Not arrowable type int."},
		{"struct s { struct s inner; };", "Struct s contains itself."},
		{"int main() { const int k = 1; k = 2; return 0; }", "Assignment of read-only location."},
		{"int main() { 1 = 2; return 0; }", "Expression is not assignable."},
		{"int f(int a) { return a; } int main() { return f(1, 2); }", "Given extra function args."},
		{"int f(int a) { return a; } int main() { return f(); }", "Not enough function args."},
		{"int main() { return g(); }", "Function g is not declared."},
		{"int main() { int g; return g(); }", "Function replaced by variable."},
		{"int main() { float f = 1.5; return 0; }", "Invalid double casting."},
		{"int main() { int x; x = 1.5 % 2; return 0; }", "Invalid type of % operand."},
		{"int main() { int x; return *x; }", "Invalid type of star operator: int."},
		{"int main() { int *p; int *q; p = p + q; return 0; }", "Invalid type of + operand."},
		{"int main() { double d; switch (d) { default: break; } return 0; }", "Not integer switch selector."},
		{"int main() { int x; x = 1 << 1.5; return 0; }", "Not integer argument of binary operator."},
		{"int f(); int f(); int f() { return 1; } int f() { return 2; }", "Function f is already defined."},
		{"int f(int a); int f(char a) { return 0; }", "Function f does not match its previous declaration."},
		{"int main() { l: l: return 0; }", "The same label is declared more than once: l"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, _, err := analyze(t, nil, tt.src)
			var sem *util.SemanticError
			if !errors.As(err, &sem) {
				t.Fatalf("Analyze(%q) error = %v, want a SemanticError", tt.src, err)
			}
			if sem.Msg != tt.msg {
				t.Errorf("message = %q, want %q", sem.Msg, tt.msg)
			}
		})
	}
}

func TestErrorPosition(t *testing.T) {
	_, _, err := analyze(t, nil, "int main() {\n  return missing;\n}")
	var sem *util.SemanticError
	if !errors.As(err, &sem) {
		t.Fatalf("err = %v", err)
	}
	if sem.Pos.Line != 2 || sem.Pos.Column != 10 {
		t.Errorf("position = %d:%d, want 2:10", sem.Pos.Line, sem.Pos.Column)
	}
}

func TestWarnings(t *testing.T) {
	src := `int main() {
	int x = 1;
	unused: x = 2;
	switch (x) { case 1: break; case 1: break; }
	return x;
	x = 3;
}`
	a, _, err := analyze(t, nil, src)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var got []string
	for _, w := range a.Warnings() {
		got = append(got, w.Name)
	}
	want := []string{"duplicate-case", "unreachable-code", "unused-label"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}

	cfg := config.NewConfig()
	if err := cfg.SetWarningByName("all", false); err != nil {
		t.Fatal(err)
	}
	a, _, _ = analyze(t, cfg, src)
	if len(a.Warnings()) != 0 {
		t.Errorf("disabled warnings still reported: %v", a.Warnings())
	}
}

func TestAutoInferFeature(t *testing.T) {
	src := "int main() { auto v = 2; return v; }"
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatAutoInfer, false)
	_, _, err := analyze(t, cfg, src)
	if err == nil || err.Error() != "Auto type inference is disabled." {
		t.Errorf("err = %v, want the auto inference error", err)
	}
	if _, _, err := analyze(t, nil, src); err != nil {
		t.Errorf("default config: %v", err)
	}
}

func TestAnnotations(t *testing.T) {
	_, root, err := analyze(t, nil, "int main() { long l; int *p; l = 1; return *p + 2; }")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	types := map[string]string{}
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Typ != nil && n.Type == ast.Operator {
			types[n.Op] = n.Typ.String()
		}
		return true
	})
	want := map[string]string{
		"Function declaration": "int",
		"Variable declaration": "int *",
		"=":                    "long int",
		"Indirection *":        "int",
		"+":                    "int",
	}
	for op, typ := range want {
		if types[op] != typ {
			t.Errorf("%s annotated %q, want %q", op, types[op], typ)
		}
	}
}
