package lexer

import (
	"strings"
	"unicode"

	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/token"
)

func isHexDigit(c rune) bool {
	return unicode.IsDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSuffixLetter(c rune) bool { return strings.ContainsRune("uUlL", c) }

// continuesLiteral reports whether c glued to a literal makes it malformed.
func continuesLiteral(c rune) bool { return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '.' }

func lexNumber(l *Lexer) stateFn {
	if l.peek() == '0' && l.lexeme.Len() == 0 {
		switch l.peekNext() {
		case 'b', 'B':
			if l.cfg.IsFeatureEnabled(config.FeatBinaryLiterals) {
				l.advance()
				l.advance()
				l.radix = token.Binary
				return lexBinary
			}
		case 'x', 'X':
			l.advance()
			l.advance()
			l.radix = token.Hex
			return lexHex
		}
	}

	for unicode.IsDigit(l.peek()) {
		l.lexeme.WriteRune(l.advance())
	}

	c := unicode.ToLower(l.peek())
	switch {
	case c == '.' || c == 'e':
		return lexFloat
	case c == 'f':
		return l.fail("Can't define floating point literal without point.")
	case isSuffixLetter(c):
		return lexSuffix
	case unicode.IsLetter(c):
		return l.fail("Invalid numeric literal.")
	}

	digits := l.lexeme.String()
	if isOctal(digits) {
		if bad := strings.IndexFunc(digits, func(r rune) bool { return r >= '8' }); bad >= 0 {
			return l.failAtStart("Invalid octal literal with nonoctal symbol: %c.", rune(digits[bad]))
		}
		l.emitInt("0"+trimLeadingZeros(digits), token.Literal{Radix: token.Octal})
		return lexDefault
	}
	l.emitInt(trimLeadingZeros(digits), token.Literal{Radix: token.Decimal})
	return lexDefault
}

// isOctal reports whether a run of decimal digits is spelled as an octal literal.
func isOctal(digits string) bool {
	return len(digits) > 1 && digits[0] == '0' && strings.Trim(digits, "0") != ""
}

func trimLeadingZeros(digits string) string {
	if t := strings.TrimLeft(digits, "0"); t != "" {
		return t
	}
	return "0"
}

func (l *Lexer) emitInt(text string, lit token.Literal) {
	tok := l.makeToken(token.IntLiteral, text)
	tok.Lit = lit
	l.tokens = append(l.tokens, tok)
}

func lexBinary(l *Lexer) stateFn {
	for c := l.peek(); c == '0' || c == '1'; c = l.peek() {
		l.lexeme.WriteRune(l.advance())
	}
	c := l.peek()
	switch {
	case isSuffixLetter(c) && l.lexeme.Len() > 0:
		return lexSuffix
	case strings.ContainsRune(".eE", c):
		return l.fail("Binary literal can't have a point.")
	case continuesLiteral(c) || l.lexeme.Len() == 0:
		return l.fail("Invalid binary literal.")
	}
	l.emitInt("0b"+trimLeadingZeros(l.lexeme.String()), token.Literal{Radix: token.Binary})
	return lexDefault
}

func lexHex(l *Lexer) stateFn {
	for isHexDigit(l.peek()) {
		l.lexeme.WriteRune(unicode.ToLower(l.advance()))
	}
	c := l.peek()
	switch {
	case isSuffixLetter(c) && l.lexeme.Len() > 0:
		return lexSuffix
	case c == '.':
		return l.fail("Hex literal can't be floating point.")
	case continuesLiteral(c) || l.lexeme.Len() == 0:
		return l.fail("Invalid hex literal.")
	}
	l.emitInt("0x"+trimLeadingZeros(l.lexeme.String()), token.Literal{Radix: token.Hex})
	return lexDefault
}

var validSuffixes = map[string]bool{"u": true, "l": true, "ul": true, "lu": true, "ll": true, "ull": true, "llu": true}

// lexSuffix reads the integer suffix that follows the digits collected by the number states.
func lexSuffix(l *Lexer) stateFn {
	var sb strings.Builder
	for i := 0; i < 3 && isSuffixLetter(l.peek()); i++ {
		sb.WriteRune(unicode.ToLower(l.advance()))
	}
	suffix := sb.String()
	digits := l.lexeme.String()

	spelled := digits
	switch l.radix {
	case token.Binary:
		spelled = "0b" + digits
	case token.Hex:
		spelled = "0x" + digits
	}
	if !validSuffixes[suffix] || continuesLiteral(l.peek()) {
		for continuesLiteral(l.peek()) {
			sb.WriteRune(l.advance())
		}
		return l.failAtStart("Invalid literal: %s%s.", spelled, sb.String())
	}

	lit := token.Literal{Radix: l.radix, Unsigned: strings.Contains(suffix, "u"), Long: strings.Count(suffix, "l")}
	var text string
	switch {
	case l.radix == token.Binary:
		text = "0b" + trimLeadingZeros(digits)
	case l.radix == token.Hex:
		text = "0x" + trimLeadingZeros(digits)
	case isOctal(digits):
		if bad := strings.IndexFunc(digits, func(r rune) bool { return r >= '8' }); bad >= 0 {
			return l.failAtStart("Invalid octal literal with nonoctal symbol: %c.", rune(digits[bad]))
		}
		lit.Radix = token.Octal
		text = "0" + trimLeadingZeros(digits)
	default:
		text = trimLeadingZeros(digits)
	}
	l.emitInt(text+suffix, lit)
	return lexDefault
}

// lexFloat continues a decimal literal after its integer part (possibly empty) was read.
func lexFloat(l *Lexer) stateFn {
	seenPoint, seenExp := false, false
	for {
		c := l.peek()
		switch {
		case unicode.IsDigit(c):
			l.lexeme.WriteRune(l.advance())
		case c == '.':
			if seenPoint || seenExp {
				return l.fail("Invalid point position in number")
			}
			seenPoint = true
			l.lexeme.WriteRune(l.advance())
		case c == 'e' || c == 'E':
			if seenExp {
				return l.fail("Invalid exponent position in number")
			}
			seenExp = true
			l.advance()
			l.lexeme.WriteRune('e')
			if sign := l.peek(); sign == '+' || sign == '-' {
				l.advance()
				if sign == '-' {
					l.lexeme.WriteRune('-')
				}
			}
		case c == 'f' || c == 'F':
			if last := l.lastLexemeRune(); last == '.' || last == 'e' || last == '-' || continuesLiteral(l.peekNext()) {
				return l.fail("Invalid float literal.")
			}
			l.advance()
			l.emit(token.FloatLiteral, normalizeFloat(l.lexeme.String())+"f")
			return lexDefault
		case unicode.IsLetter(c):
			return l.fail("Invalid float literal")
		default:
			if last := l.lastLexemeRune(); last == '.' || last == 'e' || last == '-' {
				return l.fail("Float literal can't end with %c", last)
			}
			l.emit(token.DoubleLiteral, normalizeFloat(l.lexeme.String()))
			return lexDefault
		}
	}
}

func (l *Lexer) lastLexemeRune() rune {
	s := l.lexeme.String()
	if s == "" {
		return 0
	}
	return rune(s[len(s)-1])
}

// normalizeFloat strips leading zeros of the integer part and trailing zeros of the fraction,
// keeping one digit on each side of the point: "00.50" -> "0.5", "3.0" -> "3.0", ".5e3" -> "0.5e3".
func normalizeFloat(s string) string {
	mantissa, exp, hasExp := strings.Cut(s, "e")
	whole, frac, hasPoint := strings.Cut(mantissa, ".")
	out := trimLeadingZeros(whole)
	if hasPoint {
		frac = strings.TrimRight(frac, "0")
		if frac == "" {
			frac = "0"
		}
		out += "." + frac
	}
	if hasExp {
		out += "e" + exp
	}
	return out
}
