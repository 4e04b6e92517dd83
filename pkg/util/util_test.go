package util

import (
	"errors"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	src := "int main() {\n  return yy;\n}"
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "positioned",
			err:  &SemanticError{Pos: Pos{Line: 2, Column: 10, Len: 2}, Msg: "Identifier yy used without declaration."},
			want: "a.c:2:10: semantic error: Identifier yy used without declaration.\n" +
				"    return yy;\n" +
				"           ^~\n",
		},
		{
			name: "no position",
			err:  &InterpretationError{Msg: "No main."},
			want: "a.c: interpretation error: No main.\n",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "a.c: error: boom\n",
		},
		{
			name: "line past the end",
			err:  &SyntaxError{Pos: Pos{Line: 9, Column: 1}, Msg: "Invalid syntax"},
			want: "a.c:9:1: syntax error: Invalid syntax\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			Render(&b, "a.c", src, tt.err, false)
			if got := b.String(); got != tt.want {
				t.Errorf("got = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderWarning(t *testing.T) {
	var b strings.Builder
	w := Warning{Pos: Pos{Line: 1, Column: 3, Len: 1}, Name: "unused-label", Msg: "Label x is never used."}
	RenderWarning(&b, "a.c", "x: y", w, false)
	want := "a.c:1:3: warning: Label x is never used. [-Wunused-label]\n  x: y\n    ^\n"
	if got := b.String(); got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestInterpretationErrorUnwraps(t *testing.T) {
	inner := errors.New("Invalid index")
	err := &InterpretationError{Msg: "Invalid index", Err: inner}
	if err.Error() != "Invalid index" {
		t.Errorf("Error() = %q, want the message once", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is does not reach the wrapped failure")
	}
	wrapped := &InterpretationError{Msg: "call f", Err: inner}
	if got, want := wrapped.Error(), "call f: Invalid index"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
