package interp

import (
	"errors"
	"fmt"
)

var errDivisionByZero = errors.New("Division by zero.")

type binaryFunc func(op string, l, r Value) (Value, error)

// dispatch selects the arithmetic for a pair of operand kinds.
var dispatch = map[[2]Kind]binaryFunc{
	{KindInt, KindInt}:         intBinary,
	{KindInt, KindFloat}:       floatBinary,
	{KindInt, KindDouble}:      floatBinary,
	{KindFloat, KindInt}:       floatBinary,
	{KindFloat, KindFloat}:     floatBinary,
	{KindFloat, KindDouble}:    floatBinary,
	{KindDouble, KindInt}:      floatBinary,
	{KindDouble, KindFloat}:    floatBinary,
	{KindDouble, KindDouble}:   floatBinary,
	{KindPointer, KindInt}:     pointerInt,
	{KindInt, KindPointer}:     intPointer,
	{KindPointer, KindPointer}: pointerPointer,
}

func binary(op string, l, r Value) (Value, error) {
	fn, ok := dispatch[[2]Kind{l.Kind, r.Kind}]
	if !ok {
		return Value{}, fmt.Errorf("Invalid operands of %s: %s and %s.", op, l.Kind, r.Kind)
	}
	return fn(op, l, r)
}

// promote applies the usual arithmetic conversions to two integers.
func promote(l, r Value) (width int, unsigned bool) {
	width = max(4, l.Width, r.Width)
	unsigned = (l.Unsigned && l.Width == width) || (r.Unsigned && r.Width == width)
	return width, unsigned
}

func intBinary(op string, l, r Value) (Value, error) {
	w, u := promote(l, r)
	a, b := truncate(l.I, w, u), truncate(r.I, w, u)
	var x int64
	switch op {
	case "+":
		x = a + b
	case "-":
		x = a - b
	case "*":
		x = a * b
	case "/", "%":
		if b == 0 {
			return Value{}, errDivisionByZero
		}
		switch {
		case u && op == "/":
			x = int64(uint64(a) / uint64(b))
		case u:
			x = int64(uint64(a) % uint64(b))
		case op == "/":
			x = a / b
		default:
			x = a % b
		}
	case "&":
		x = a & b
	case "|":
		x = a | b
	case "^":
		x = a ^ b
	case "<<":
		return intValue(a<<uint64(b&63), w, u), nil
	case ">>":
		if u {
			return intValue(int64(uint64(a)>>uint64(b&63)), w, u), nil
		}
		return intValue(a>>uint64(b&63), w, u), nil
	case "==":
		return boolValue(a == b), nil
	case "!=":
		return boolValue(a != b), nil
	case "<", ">", "<=", ">=":
		if u {
			return boolValue(compare(op, uint64(a), uint64(b))), nil
		}
		return boolValue(compare(op, a, b)), nil
	default:
		return Value{}, fmt.Errorf("Invalid integer operator %s.", op)
	}
	return intValue(x, w, u), nil
}

func compare[T int64 | uint64 | float64 | int](op string, a, b T) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "==":
		return a == b
	}
	return a != b
}

func floatBinary(op string, l, r Value) (Value, error) {
	kind := KindFloat
	if l.Kind == KindDouble || r.Kind == KindDouble {
		kind = KindDouble
	}
	a, b := l.asFloat(), r.asFloat()
	switch op {
	case "+":
		return floatValue(a+b, kind), nil
	case "-":
		return floatValue(a-b, kind), nil
	case "*":
		return floatValue(a*b, kind), nil
	case "/":
		return floatValue(a/b, kind), nil
	case "==", "!=", "<", ">", "<=", ">=":
		return boolValue(compare(op, a, b)), nil
	}
	return Value{}, fmt.Errorf("Invalid floating operand of %s.", op)
}

func pointerInt(op string, p, i Value) (Value, error) {
	switch op {
	case "+":
		p.Ptr.Index += int(i.I)
		return p, nil
	case "-":
		p.Ptr.Index -= int(i.I)
		return p, nil
	case "==", "!=":
		if i.I == 0 {
			return boolValue((op == "==") == p.Ptr.IsNull()), nil
		}
	}
	return Value{}, fmt.Errorf("Invalid pointer operation %s.", op)
}

func intPointer(op string, i, p Value) (Value, error) {
	if op == "+" || op == "==" || op == "!=" {
		return pointerInt(op, p, i)
	}
	return Value{}, fmt.Errorf("Invalid pointer operation %s.", op)
}

func pointerPointer(op string, l, r Value) (Value, error) {
	same := l.Ptr.Buf == r.Ptr.Buf
	switch op {
	case "==":
		return boolValue(same && l.Ptr.Index == r.Ptr.Index), nil
	case "!=":
		return boolValue(!same || l.Ptr.Index != r.Ptr.Index), nil
	}
	if !same {
		return Value{}, fmt.Errorf("Pointers to different arrays in %s.", op)
	}
	switch op {
	case "-":
		return intValue(int64(l.Ptr.Index-r.Ptr.Index), 8, false), nil
	case "<", ">", "<=", ">=":
		return boolValue(compare(op, l.Ptr.Index, r.Ptr.Index)), nil
	}
	return Value{}, fmt.Errorf("Invalid pointer operation %s.", op)
}
