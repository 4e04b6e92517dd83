package lexer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/token"
	"github.com/xplshn/cinterp/pkg/util"
)

type lexeme struct {
	ID   int
	Kind string
	Text string
}

func lexemes(toks []token.Token) []lexeme {
	out := make([]lexeme, len(toks))
	for i, t := range toks {
		out[i] = lexeme{t.ID, t.KindName(), t.Text}
	}
	return out
}

func TestMainReturningZero(t *testing.T) {
	toks, err := LexicalAnalysis("int main(){return 0;}")
	if err != nil {
		t.Fatalf("LexicalAnalysis: %v", err)
	}
	want := []lexeme{
		{1, "Type", "int"},
		{2, "Identifier", "main"},
		{3, "Punctuator", "("},
		{4, "Punctuator", ")"},
		{5, "Punctuator", "{"},
		{6, "Keyword", "return"},
		{7, "Int decimal literal", "0"},
		{8, "Punctuator", ";"},
		{9, "Punctuator", "}"},
	}
	if diff := cmp.Diff(want, lexemes(toks)); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestIDsAreInterned(t *testing.T) {
	toks, err := LexicalAnalysis("a = a + b; int x = a;")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]int{}
	for _, tok := range toks {
		if id, ok := ids[tok.Text]; ok && id != tok.ID {
			t.Errorf("%q has ids %d and %d", tok.Text, id, tok.ID)
		}
		ids[tok.Text] = tok.ID
	}
	if toks[0].ID != 1 {
		t.Errorf("first id = %d, want 1", toks[0].ID)
	}

	// A second pass starts numbering again.
	again, _ := LexicalAnalysis("b")
	if again[0].ID != 1 {
		t.Errorf("id table leaked between passes: got %d", again[0].ID)
	}
}

func TestNumericLiterals(t *testing.T) {
	tests := []struct {
		src      string
		text     string
		kindName string
	}{
		{"42", "42", "Int decimal literal"},
		{"0042", "042", "Int octal literal"},
		{"000", "0", "Int decimal literal"},
		{"0x1F", "0x1f", "Int hex literal"},
		{"0x001", "0x1", "Int hex literal"},
		{"0b0101", "0b101", "Int binary literal"},
		{"10u", "10u", "Unsigned int decimal literal"},
		{"10L", "10l", "Long decimal literal"},
		{"10ull", "10ull", "Unsigned long long decimal literal"},
		{"0x10lu", "0x10lu", "Unsigned long hex literal"},
		{"3.140", "3.14", "Double literal"},
		{"3.0", "3.0", "Double literal"},
		{"00.50", "0.5", "Double literal"},
		{".5", "0.5", "Double literal"},
		{"1.5f", "1.5f", "Float literal"},
		{"2.50e+3", "2.5e3", "Double literal"},
		{"1e-2", "1e-2", "Double literal"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := LexicalAnalysis(tt.src)
			if err != nil {
				t.Fatalf("LexicalAnalysis(%q): %v", tt.src, err)
			}
			if len(toks) != 1 {
				t.Fatalf("got %d tokens, want 1: %v", len(toks), toks)
			}
			if toks[0].Text != tt.text || toks[0].KindName() != tt.kindName {
				t.Errorf("got %q (%s), want %q (%s)", toks[0].Text, toks[0].KindName(), tt.text, tt.kindName)
			}
		})
	}
}

func TestLexicalErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"int x = 3f;", "Can't define floating point literal without point."},
		{"09", "Invalid octal literal with nonoctal symbol: 9."},
		{"12abc", "Invalid numeric literal."},
		{"10uz", "Invalid literal: 10uz."},
		{"1.2.3", "Invalid point position in number"},
		{"1.;", "Float literal can't end with ."},
		{". ", "Invalid point position."},
		{`"abc`, "Unclosed quote."},
		{"\"ab\ncd\"", "Unclosed quote."},
		{"''", "Empty char literal"},
		{"'ab'", "Invalid char literal"},
		{`"\q"`, "Invalid escape sequence"},
		{"/* never closed", "Unclosed block comment."},
		{"int $x;", "Unknown symbol: $"},
		{"@", "Unknown symbol: @"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			toks, err := LexicalAnalysis(tt.src)
			var lexErr *util.LexicalError
			if !errors.As(err, &lexErr) {
				t.Fatalf("LexicalAnalysis(%q) error = %v, want a LexicalError", tt.src, err)
			}
			if lexErr.Msg != tt.msg {
				t.Errorf("message = %q, want %q", lexErr.Msg, tt.msg)
			}
			if toks != nil {
				t.Errorf("got partial tokens %v", toks)
			}
		})
	}
}

func TestStringLiteralIsComposite(t *testing.T) {
	toks, err := LexicalAnalysis(`printf("hi\n");`)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 5 {
		t.Fatalf("got %d tokens, want 5", len(toks))
	}
	str := toks[2]
	if str.Kind != token.StringLiteral || str.Text != `"hi\n"` {
		t.Fatalf("got %s %q, want a string literal \"hi\\n\"", str.Kind, str.Text)
	}
	var parts []lexeme
	for _, p := range str.Parts {
		parts = append(parts, lexeme{Kind: p.Kind.String(), Text: p.Text})
	}
	want := []lexeme{
		{Kind: "Double quotes", Text: `"`},
		{Kind: "String literal", Text: "hi"},
		{Kind: "Escape sequence", Text: `\n`},
		{Kind: "Double quotes", Text: `"`},
	}
	if diff := cmp.Diff(want, parts); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
}

func TestCharLiterals(t *testing.T) {
	for _, src := range []string{`'a'`, `'\n'`, `'\x41'`, `'\101'`, `'\0'`} {
		toks, err := LexicalAnalysis(src)
		if err != nil {
			t.Errorf("LexicalAnalysis(%s): %v", src, err)
			continue
		}
		if len(toks) != 1 || toks[0].Kind != token.CharLiteral || toks[0].Text != src {
			t.Errorf("LexicalAnalysis(%s) = %v", src, toks)
		}
	}
}

func TestOperatorsLongestMatch(t *testing.T) {
	toks, err := LexicalAnalysis("a<<=b->c>>d!=e&&f++ -- ?:")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, tok := range toks {
		if tok.Kind == token.Punctuator {
			got = append(got, tok.Text)
		}
	}
	want := []string{"<<=", "->", ">>", "!=", "&&", "++", "--", "?", ":"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("operators mismatch (-want +got):\n%s", diff)
	}
}

func TestCommentsAndDirectives(t *testing.T) {
	src := "#include <stdio.h>   \n// line\nint /* block */ x;"
	toks, err := LexicalAnalysis(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []lexeme{
		{1, "Preprocessor directive", "#include <stdio.h>"},
		{2, "Type", "int"},
		{3, "Identifier", "x"},
		{4, "Punctuator", ";"},
	}
	if diff := cmp.Diff(want, lexemes(toks)); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestFeatureSwitches(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatDirectives, false)
	if _, err := NewLexer("#define X 1", cfg).Tokenize(); err == nil || err.Error() != "Unknown symbol: #" {
		t.Errorf("directives disabled: err = %v", err)
	}

	cfg = config.NewConfig()
	cfg.SetFeature(config.FeatBinaryLiterals, false)
	if _, err := NewLexer("0b101", cfg).Tokenize(); err == nil || err.Error() != "Invalid numeric literal." {
		t.Errorf("binary literals disabled: err = %v", err)
	}
}

func TestPositions(t *testing.T) {
	toks, err := LexicalAnalysis("int x;\n  x = 10;")
	if err != nil {
		t.Fatal(err)
	}
	ten := toks[5]
	if ten.Text != "10" || ten.Line != 2 || ten.Column != 7 || ten.Len != 2 {
		t.Errorf("got %q at %d:%d len %d, want \"10\" at 2:7 len 2", ten.Text, ten.Line, ten.Column, ten.Len)
	}

	_, err = LexicalAnalysis("int x;\n  @")
	var lexErr *util.LexicalError
	if !errors.As(err, &lexErr) || lexErr.Pos.Line != 2 || lexErr.Pos.Column != 3 {
		t.Errorf("error position = %+v, want 2:3", err)
	}
}
