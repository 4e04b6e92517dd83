package lsp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/xplshn/cinterp/pkg/lexer"
	"github.com/xplshn/cinterp/pkg/session"
	"github.com/xplshn/cinterp/pkg/token"
)

func tokens(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := lexer.LexicalAnalysis(src)
	if err != nil {
		t.Fatalf("LexicalAnalysis: %v", err)
	}
	return toks
}

func TestDiagnosticRange(t *testing.T) {
	r := session.New(nil).Run("int main() {\n  return yy;\n}", session.PhaseSemantic)
	diags := diagnostics(r)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	want := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 9},
		End:   protocol.Position{Line: 1, Character: 11},
	}
	if diff := cmp.Diff(want, d.Range); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", *d.Severity)
	}
	if d.Message != "Identifier yy used without declaration." {
		t.Errorf("message = %q", d.Message)
	}
}

func TestWarningDiagnostics(t *testing.T) {
	r := session.New(nil).Run("int main() { return 0; return 1; }", session.PhaseSemantic)
	diags := diagnostics(r)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if *diags[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("severity = %v, want warning", *diags[0].Severity)
	}
	if !strings.HasSuffix(diags[0].Message, "[-Wunreachable-code]") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestCleanDocument(t *testing.T) {
	r := session.New(nil).Run("int main() { return 0; }", session.PhaseSemantic)
	if diags := diagnostics(r); diags == nil || len(diags) != 0 {
		t.Errorf("diagnostics = %v, want an empty list", diags)
	}
}

func TestUnpositionedError(t *testing.T) {
	r := session.New(nil).Run("int f() { return 0; }", session.PhaseRun)
	diags := diagnostics(r)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diff := cmp.Diff(protocol.Range{}, diags[0].Range); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
}

func TestHover(t *testing.T) {
	toks := tokens(t, "int x = 42;")
	h := hover(toks, protocol.Position{Line: 0, Character: 9})
	if h == nil {
		t.Fatal("no hover on the literal")
	}
	got := h.Contents.(protocol.MarkupContent).Value
	if want := "**Int decimal literal** `42`\n\nid 4"; got != want {
		t.Errorf("hover = %q, want %q", got, want)
	}
	if h := hover(toks, protocol.Position{Line: 0, Character: 3}); h != nil {
		t.Errorf("hover on whitespace = %v, want nil", h)
	}
}

func TestCompletions(t *testing.T) {
	toks := tokens(t, "int counter; int count2; int main() { return co; }")
	var labels []string
	for _, item := range completions("co", toks) {
		labels = append(labels, item.Label)
	}
	want := []string{"const", "continue", "count2", "counter"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"int coun", protocol.Position{Line: 0, Character: 8}, "coun"},
		{"int x;\nre", protocol.Position{Line: 1, Character: 2}, "re"},
		{"a + ", protocol.Position{Line: 0, Character: 4}, ""},
		{"x", protocol.Position{Line: 3, Character: 0}, ""},
		{"ab", protocol.Position{Line: 0, Character: 40}, "ab"},
	}
	for _, tt := range tests {
		if got := extractPrefix(tt.text, tt.pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}
