package token

import "strings"

type Kind int

const (
	Punctuator Kind = iota
	Identifier
	Type
	Keyword
	Directive
	EscapeSequence
	DoubleQuotes
	Quotes
	StringPart
	IntLiteral
	FloatLiteral
	DoubleLiteral
	StringLiteral
	CharLiteral
)

var kindNames = map[Kind]string{
	Punctuator:     "Punctuator",
	Identifier:     "Identifier",
	Type:           "Type",
	Keyword:        "Keyword",
	Directive:      "Preprocessor directive",
	EscapeSequence: "Escape sequence",
	DoubleQuotes:   "Double quotes",
	Quotes:         "Quotes",
	StringPart:     "String literal",
	IntLiteral:     "Int literal",
	FloatLiteral:   "Float literal",
	DoubleLiteral:  "Double literal",
	StringLiteral:  "String literal",
	CharLiteral:    "Char literal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// IsLiteral reports whether tokens of this kind can stand for a value on their own.
func (k Kind) IsLiteral() bool {
	return k >= IntLiteral && k <= CharLiteral
}

type Radix int

const (
	Decimal Radix = iota
	Octal
	Hex
	Binary
)

var radixNames = [...]string{"decimal", "octal", "hex", "binary"}

func (r Radix) String() string { return radixNames[r] }

// Literal describes an integer literal: signedness, width and the radix it was written in.
// Long is 0 for int, 1 for long and 2 for long long.
type Literal struct {
	Unsigned bool
	Long     int
	Radix    Radix
}

// TypeKeywords are re-tagged as Type, checked before Keywords.
var TypeKeywords = map[string]bool{
	"auto": true, "char": true, "const": true, "double": true, "float": true, "int": true,
	"long": true, "short": true, "signed": true, "struct": true, "unsigned": true, "void": true,
}

var Keywords = map[string]bool{
	"break": true, "case": true, "continue": true, "default": true, "do": true, "else": true,
	"enum": true, "extern": true, "for": true, "goto": true, "if": true, "inline": true,
	"register": true, "restrict": true, "return": true, "sizeof": true, "static": true,
	"switch": true, "typedef": true, "union": true, "volatile": true, "while": true,
}

type Token struct {
	ID     int
	Kind   Kind
	Text   string
	Lit    Literal
	Parts  []Token
	Line   int
	Column int
	Len    int
}

// Is reports whether the token is a punctuator, keyword or type keyword spelled text.
func (t Token) Is(text string) bool {
	switch t.Kind {
	case Punctuator, Keyword, Type:
		return t.Text == text
	}
	return false
}

// KindName renders the full kind shown in the token table, literal descriptor included.
func (t Token) KindName() string {
	if t.Kind != IntLiteral {
		return t.Kind.String()
	}
	var words []string
	if t.Lit.Unsigned {
		words = append(words, "unsigned")
	}
	switch t.Lit.Long {
	case 0:
		words = append(words, "int")
	case 1:
		words = append(words, "long")
	default:
		words = append(words, "long", "long")
	}
	words = append(words, t.Lit.Radix.String(), "literal")
	name := strings.Join(words, " ")
	return strings.ToUpper(name[:1]) + name[1:]
}
