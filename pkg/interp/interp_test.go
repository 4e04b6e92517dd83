package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/xplshn/cinterp/pkg/ast"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/parser"
	"github.com/xplshn/cinterp/pkg/util"
)

func program(t *testing.T, src string) *ast.Node {
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

func run(t *testing.T, cfg *config.Config, src string) (string, error) {
	t.Helper()
	var out strings.Builder
	err := New(cfg, &out).Run(program(t, src))
	return out.String(), err
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"return zero", "int main(){return 0;}", ""},
		{"pointer arithmetic", "int main() { int a[5]; a[2] = 7; printf(*(a + 2)); return 0; }", "7\n"},
		{"string literal", `int main() { printf("Hello\tworld\n"); return 0; }`, "Hello\tworld\n\n"},
		{"only the first argument", `int main() { printf("%d", 5); return 0; }`, "%d\n"},
		{
			"recursion",
			"int fact(int n) { if (n <= 1) return 1; return n * fact(n - 1); } int main() { printf(fact(5)); return 0; }",
			"120\n",
		},
		{
			"break and continue",
			`int main() {
				int s = 0; int i;
				for (i = 0; i < 10; i++) { if (i % 2 == 0) continue; if (i > 7) break; s += i; }
				printf(s);
				return 0;
			}`,
			"16\n",
		},
		{
			"switch",
			`int pick(int x) {
				int r = 0;
				switch (x) { case 1: r = 10; case 2: r = 20; break; default: r = 99; }
				return r;
			}
			int main() { printf(pick(1)); printf(pick(2)); printf(pick(3)); return 0; }`,
			"10\n20\n99\n",
		},
		{
			"structs",
			`struct point { int x; int y; };
			int main() { struct point p; struct point *q = &p; q->x = 3; p.y = 4; printf(p.x * p.y); return 0; }`,
			"12\n",
		},
		{
			"struct copy",
			`struct box { int v; };
			int main() { struct box a; struct box b; a.v = 1; b = a; a.v = 2; printf(b.v); return 0; }`,
			"1\n",
		},
		{"2-D array", "int main() { int m[2][3]; m[1][2] = 5; printf(m[1][2] + m[0][0]); return 0; }", "5\n"},
		{
			"initializer lists",
			"int main() { int v[] = {4, 5, 6}; int m[2][2] = {{1, 2}, {3, 4}}; printf(v[2]); printf(m[1][0]); return 0; }",
			"6\n3\n",
		},
		{"char wraps", "int main() { char c = 127; c++; printf(c); return 0; }", "-128\n"},
		{"unsigned wraps", "int main() { unsigned int u = 0; u = u - 1; printf(u); return 0; }", "4294967295\n"},
		{"double", "int main() { double d = 1.5; printf(d * 2); return 0; }", "3\n"},
		{"goto", "int main() { int i = 0; loop: i++; if (i < 3) goto loop; printf(i); return 0; }", "3\n"},
		{"char pointer", `int main() { char *s = "abc"; printf(s + 1); return 0; }`, "bc\n"},
		{
			"return from nested loops",
			`int f() { int i; for (i = 0; ; i++) { while (1) { if (i == 2) return 42; break; } } return 0; }
			int main() { printf(f()); return 0; }`,
			"42\n",
		},
		{"do while", "int main() { int n = 0; do { n += 2; } while (n < 5); printf(n); return 0; }", "6\n"},
		{"pointer difference", "int main() { int a[4]; int *p = &a[3]; printf(p - a); return 0; }", "3\n"},
		{"globals", "int g = 4; int twice() { return g * 2; } int main() { g = 5; printf(twice()); return 0; }", "10\n"},
		{"prototype", "int sq(int v); int main() { printf(sq(9)); return 0; } int sq(int v) { return v * v; }", "81\n"},
		{"block scope", "int main() { int x = 1; { int x = 2; } printf(x); return 0; }", "1\n"},
		{"ternary and logic", "int main() { int a = 3; printf(a > 2 && a < 5 ? 1 : 0); return 0; }", "1\n"},
		{"sizeof", "int main() { printf(sizeof(long) + sizeof(char*)); return 0; }", "16\n"},
		{"shifts", "int main() { int x = 1; x <<= 4; printf(x >> 2 | 1); return 0; }", "5\n"},
		{"cast", "int main() { double d = 7.9; printf((int)d); return 0; }", "7\n"},
		{"address of an element", `int main() { char s[3] = {'h', 'i', '\0'}; printf(&s[0]); return 0; }`, "hi\n"},
		{"address of a variable", "int main() { char c = 0; printf(&c); return 0; }", "\n"},
		{"address of a member", "struct S { int n; char c; }; int main() { struct S v; v.c = 0; printf(&v.c); return 0; }", "\n"},
		{
			"address through a parameter",
			`void show(char *p) { printf(&p[1]); } int main() { char s[3] = {'o', 'k', '\0'}; show(s); return 0; }`,
			"k\n",
		},
		{"hex escape before a letter", `int main() { printf("\x41B"); return 0; }`, "AB\n"},
		{"store binds an unknown name", "int main() { n = 4; printf(n + 1); return 0; }", "5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, nil, tt.src)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"int f() { return 1; }", "No main."},
		{"int main(int argc) { return 0; }", "No main."},
		{"int main() { int a[3]; a[3] = 1; return 0; }", "Invalid index"},
		{"int main() { int *p; return *p; }", "Invalid index"},
		{"int main() { int a[2][2][2]; return 0; }", "Only 1-D and 2-D arrays are supported."},
		{"int main() { int z = 0; return 1 / z; }", "Division by zero."},
		{"int f(); int main() { return f(); }", "Function f is declared but never defined."},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := run(t, nil, tt.src)
			var ie *util.InterpretationError
			if !errors.As(err, &ie) {
				t.Fatalf("Run(%q) error = %v, want an InterpretationError", tt.src, err)
			}
			if ie.Msg != tt.msg {
				t.Errorf("message = %q, want %q", ie.Msg, tt.msg)
			}
		})
	}
}

func TestInvalidIndexWrapsCause(t *testing.T) {
	_, err := run(t, nil, "int main() { int a[3]; return a[7]; }")
	var ie *util.InterpretationError
	if !errors.As(err, &ie) || ie.Unwrap() == nil {
		t.Fatalf("err = %v, want a wrapped cause", err)
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStackOverflow(t *testing.T) {
	cfg := config.NewConfig()
	cfg.MaxCallDepth = 100
	_, err := run(t, cfg, "int f(int n) { return f(n + 1); } int main() { return f(0); }")
	if err == nil || err.Error() != "Stack overflow." {
		t.Fatalf("err = %v, want Stack overflow.", err)
	}

	_, err = run(t, cfg, "int f(int n) { if (n == 0) return 0; return f(n - 1); } int main() { return f(50); }")
	if err != nil {
		t.Errorf("recursion under the limit: %v", err)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	root := program(t, `int n = 1; int main() { n = n + 1; printf(n); return 0; }`)
	var out strings.Builder
	it := New(nil, &out)
	for range 2 {
		if err := it.Run(root); err != nil {
			t.Fatal(err)
		}
	}
	if got := out.String(); got != "2\n2\n" {
		t.Errorf("output = %q, want each run to start from fresh globals", got)
	}
}

func TestInterpret(t *testing.T) {
	var out strings.Builder
	if err := Interpret(program(t, `int main() { printf("ok"); return 0; }`), &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "ok\n" {
		t.Errorf("output = %q", out.String())
	}
}

// Interpret works on the bare parse tree: pointer element types come from the runtime values.
func TestInterpretWithoutAnnotations(t *testing.T) {
	root := program(t, `int main() { char s[3] = {'h', 'i', '\0'}; char *p = &s[0]; printf(p); printf(&s[1]); return 0; }`)
	var out strings.Builder
	if err := Interpret(root, &out); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "hi\ni\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDecodeEscapes(t *testing.T) {
	tests := map[string]string{
		`a\nb`:     "a\nb",
		`\x41\x4a`: "AJ",
		`\101`:     "A",
		`\0`:       "\x00",
		`q\"q`:     `q"q`,
		`\\`:       `\`,
		`\x41B`:    "AB",
		`\x41BC`:   "\xbc",
		`\01`:      "\x001",
		`\0123`:    "\n3",
	}
	for in, want := range tests {
		if got := string(decodeEscapes(in)); got != want {
			t.Errorf("decodeEscapes(%q) = %q, want %q", in, got, want)
		}
	}
}
