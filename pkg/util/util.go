package util

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/cinterp/pkg/token"
)

// Pos locates a diagnostic in the source. The zero Pos means "no location".
type Pos struct {
	Line   int
	Column int
	Len    int
}

func PosOf(tok token.Token) Pos { return Pos{Line: tok.Line, Column: tok.Column, Len: tok.Len} }

func (p Pos) IsValid() bool { return p.Line > 0 }

// Positioned is implemented by every phase error.
type Positioned interface {
	error
	Position() Pos
	Phase() string
}

type LexicalError struct {
	Pos Pos
	Msg string
}

func (e *LexicalError) Error() string { return e.Msg }
func (e *LexicalError) Position() Pos { return e.Pos }
func (e *LexicalError) Phase() string { return "lexical" }

type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string { return e.Msg }
func (e *SyntaxError) Position() Pos { return e.Pos }
func (e *SyntaxError) Phase() string { return "syntax" }

type SemanticError struct {
	Pos Pos
	Msg string
}

func (e *SemanticError) Error() string { return e.Msg }
func (e *SemanticError) Position() Pos { return e.Pos }
func (e *SemanticError) Phase() string { return "semantic" }

// InterpretationError wraps the first failure of an interpretation run.
type InterpretationError struct {
	Pos Pos
	Msg string
	Err error
}

func (e *InterpretationError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Msg {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}
func (e *InterpretationError) Unwrap() error { return e.Err }
func (e *InterpretationError) Position() Pos { return e.Pos }
func (e *InterpretationError) Phase() string { return "interpretation" }

// Warning is a non-fatal finding. Name is the -W flag that controls it.
type Warning struct {
	Pos  Pos
	Name string
	Msg  string
}

func (w Warning) String() string { return fmt.Sprintf("%s [-W%s]", w.Msg, w.Name) }

// lineAt returns the 1-based line of src, without its terminator.
func lineAt(src []rune, line int) (string, bool) {
	lineStart := 0
	for i, r := range src {
		if line <= 1 {
			break
		}
		if r == '\n' {
			line--
			lineStart = i + 1
		}
	}
	if line > 1 {
		return "", false
	}
	lineEnd := len(src)
	for i := lineStart; i < len(src); i++ {
		if src[i] == '\n' {
			lineEnd = i
			break
		}
	}
	return strings.TrimRight(string(src[lineStart:lineEnd]), "\r"), true
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, src []rune, pos Pos, color bool) {
	if !pos.IsValid() {
		return
	}
	line, ok := lineAt(src, pos.Line)
	if !ok {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)

	caret := "^"
	if pos.Len > 1 {
		caret += strings.Repeat("~", pos.Len-1)
	}
	col := max(pos.Column-1, 0)
	if color {
		fmt.Fprintf(w, "  %s\033[32m%s\033[0m\n", strings.Repeat(" ", col), caret)
	} else {
		fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", col), caret)
	}
}

// Render prints err the way a compiler does: "file:line:col: phase error: msg", then the
// offending line with a caret. Errors without a position print the header only.
func Render(w io.Writer, filename, src string, err error, color bool) {
	var perr Positioned
	phase, pos := "", Pos{}
	if errors.As(err, &perr) {
		phase, pos = perr.Phase()+" ", perr.Position()
	}
	label := phase + "error:"
	if color {
		label = "\033[31m" + label + "\033[0m"
	}
	if pos.IsValid() {
		fmt.Fprintf(w, "%s:%d:%d: %s %s\n", filename, pos.Line, pos.Column, label, err)
	} else {
		fmt.Fprintf(w, "%s: %s %s\n", filename, label, err)
	}
	printErrorLine(w, []rune(src), pos, color)
}

// RenderWarning prints a warning in the same layout as Render.
func RenderWarning(w io.Writer, filename, src string, warn Warning, color bool) {
	label := "warning:"
	if color {
		label = "\033[33m" + label + "\033[0m"
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s\n", filename, warn.Pos.Line, warn.Pos.Column, label, warn)
	printErrorLine(w, []rune(src), warn.Pos, color)
}
