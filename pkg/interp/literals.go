package interp

import (
	"strings"

	"github.com/xplshn/cinterp/pkg/token"
)

// stringBody strips the quotes and an L prefix from a string or char literal.
func stringBody(text string) string {
	text = strings.TrimPrefix(text, "L")
	if len(text) < 2 {
		return ""
	}
	return text[1 : len(text)-1]
}

var simpleEscapes = map[byte]byte{
	'a': 7, 'b': 8, 'e': 27, 'f': 12, 'n': '\n', 'r': '\r', 't': '\t', 'v': 11,
	'\\': '\\', '?': '?', '"': '"', '\'': '\'',
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// literalBytes decodes the body of a string or char literal. The lexer already split it into
// escape sequences and plain runs, so each sub-token is decoded on its own.
func literalBytes(tok token.Token) []byte {
	if len(tok.Parts) == 0 {
		return decodeEscapes(stringBody(tok.Text))
	}
	var out []byte
	for _, p := range tok.Parts {
		switch p.Kind {
		case token.EscapeSequence:
			out = append(out, decodeEscapes(p.Text)...)
		case token.DoubleQuotes, token.Quotes:
		default:
			out = append(out, p.Text...)
		}
	}
	return out
}

func isHex(c byte) bool {
	_, ok := hexDigit(c)
	return ok
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// decodeEscapes turns the escape sequences of a literal body into bytes, splitting them the
// way the lexer does: \x takes four hex digits when four follow and two otherwise, an octal
// escape is exactly three digits and \0 alone is NUL. Wide values are truncated to a byte.
func decodeEscapes(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		c := s[i]
		if b, ok := simpleEscapes[c]; ok {
			out = append(out, b)
			continue
		}
		var digits string
		base := 16
		switch {
		case (c == 'x' || c == 'X') && i+4 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) && isHex(s[i+3]) && isHex(s[i+4]):
			digits, i = s[i+1:i+5], i+4
		case (c == 'x' || c == 'X') && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			digits, i = s[i+1:i+3], i+2
		case i+2 < len(s) && isOctal(c) && isOctal(s[i+1]) && isOctal(s[i+2]):
			digits, base, i = s[i:i+3], 8, i+2
		case c == '0':
			out = append(out, 0)
			continue
		default:
			out = append(out, c)
			continue
		}
		v := 0
		for j := range len(digits) {
			d, _ := hexDigit(digits[j])
			v = v*base + int(d)
		}
		out = append(out, byte(v))
	}
	return out
}
