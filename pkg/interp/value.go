package interp

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xplshn/cinterp/pkg/ast"
)

type Kind int

const (
	KindVoid Kind = iota
	KindInt       // integer of Width bytes, sign- or zero-extended into I
	KindFloat     // single float, kept rounded to float32 in F
	KindDouble    // double float
	KindPointer
	KindStruct
	KindFunction
)

var kindNames = [...]string{"void", "int", "float", "double", "pointer", "struct", "function"}

func (k Kind) String() string { return kindNames[k] }

// Cell addresses one slot of the value arena.
type Cell struct {
	Buf   int
	Index int
}

// Pointer addresses a cell; Buf == -1 is the null pointer. Elem is the pointee type when known.
type Pointer struct {
	Buf   int
	Index int
	Elem  *ast.TypeInfo
}

func (p Pointer) IsNull() bool { return p.Buf < 0 }

func (p Pointer) Cell() Cell { return Cell{Buf: p.Buf, Index: p.Index} }

type StructValue struct {
	Name   string
	Fields map[string]Cell
	Order  []string
}

type Function struct {
	Name   string
	Params []*ast.Node
	Body   *ast.Node
	Ret    *ast.TypeInfo
}

type Value struct {
	Kind     Kind
	Width    int
	Unsigned bool
	I        int64
	F        float64
	Ptr      Pointer
	Struct   *StructValue
	Fn       *Function
}

var nullPointer = Pointer{Buf: -1}

// truncate wraps x to width bytes.
func truncate(x int64, width int, unsigned bool) int64 {
	if width <= 0 || width >= 8 {
		return x
	}
	bits := uint(width * 8)
	if unsigned {
		return int64(uint64(x) & (1<<bits - 1))
	}
	shift := 64 - bits
	return x << shift >> shift
}

func intValue(x int64, width int, unsigned bool) Value {
	return Value{Kind: KindInt, Width: width, Unsigned: unsigned, I: truncate(x, width, unsigned)}
}

func floatValue(x float64, kind Kind) Value {
	if kind == KindFloat {
		x = float64(float32(x))
	}
	return Value{Kind: kind, F: x}
}

func boolValue(b bool) Value {
	if b {
		return intValue(1, 1, false)
	}
	return intValue(0, 1, false)
}

func pointerValue(p Pointer) Value { return Value{Kind: KindPointer, Ptr: p} }

func (v Value) asFloat() float64 {
	switch v.Kind {
	case KindInt:
		if v.Unsigned {
			return float64(uint64(v.I))
		}
		return float64(v.I)
	case KindFloat, KindDouble:
		return v.F
	}
	return 0
}

func (v Value) asInt() int64 {
	switch v.Kind {
	case KindFloat, KindDouble:
		return int64(v.F)
	case KindPointer:
		if v.Ptr.IsNull() {
			return 0
		}
		return int64(v.Ptr.Buf+1)<<32 | int64(v.Ptr.Index)
	}
	return v.I
}

// truthy is the C truth value of a scalar.
func (v Value) truthy() (bool, error) {
	switch v.Kind {
	case KindInt:
		return v.I != 0, nil
	case KindFloat, KindDouble:
		return v.F != 0, nil
	case KindPointer:
		return !v.Ptr.IsNull(), nil
	}
	return false, fmt.Errorf("Invalid condition value of %s type.", v.Kind)
}

// convertLike converts v to the shape of like: its kind, width and signedness.
func convertLike(v, like Value) (Value, error) {
	switch like.Kind {
	case KindInt:
		switch v.Kind {
		case KindInt, KindPointer:
			return intValue(v.asInt(), like.Width, like.Unsigned), nil
		case KindFloat, KindDouble:
			if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
				return Value{}, fmt.Errorf("Invalid conversion of %s to integer.", strconv.FormatFloat(v.F, 'g', -1, 64))
			}
			if like.Unsigned && v.F >= 0 {
				return intValue(int64(uint64(v.F)), like.Width, true), nil
			}
			return intValue(int64(v.F), like.Width, like.Unsigned), nil
		}
	case KindFloat, KindDouble:
		if v.Kind == KindInt || v.Kind == KindFloat || v.Kind == KindDouble {
			return floatValue(v.asFloat(), like.Kind), nil
		}
	case KindPointer:
		switch {
		case v.Kind == KindPointer:
			if like.Ptr.Elem != nil {
				v.Ptr.Elem = like.Ptr.Elem
			}
			return v, nil
		case v.Kind == KindInt && v.I == 0:
			return pointerValue(Pointer{Buf: -1, Elem: like.Ptr.Elem}), nil
		}
		return Value{}, fmt.Errorf("Invalid pointer cast from %s.", v.Kind)
	case KindStruct:
		if v.Kind == KindStruct && v.Struct.Name == like.Struct.Name {
			return v, nil
		}
		return Value{}, fmt.Errorf("Invalid struct cast to %s.", like.Struct.Name)
	case KindVoid, KindFunction:
		return v, nil
	}
	return Value{}, fmt.Errorf("Invalid cast from %s to %s.", v.Kind, like.Kind)
}

// scalarZero is the zero value of a non-struct type.
func scalarZero(ti *ast.TypeInfo) Value {
	switch {
	case ti.IsPointer():
		return pointerValue(Pointer{Buf: -1, Elem: ti.IfIndexed()})
	case ti.IsVoid(), ti.IsAuto():
		return Value{Kind: KindVoid}
	}
	switch ti.Base() {
	case "float":
		return Value{Kind: KindFloat}
	case "double", "long double":
		return Value{Kind: KindDouble}
	}
	return intValue(0, ti.Size(), ti.IsUnsigned())
}

var intBases = map[int][]string{1: {"char"}, 2: {"short", "int"}, 4: {"int"}, 8: {"long", "int"}}

// valueType is the type an auto variable takes from its initializer, nil when it can't be told.
func valueType(v Value) *ast.TypeInfo {
	switch v.Kind {
	case KindInt:
		var parts []string
		if v.Unsigned {
			parts = append(parts, "unsigned")
		}
		base, ok := intBases[v.Width]
		if !ok {
			base = intBases[4]
		}
		return &ast.TypeInfo{Parts: append(parts, base...)}
	case KindFloat:
		return &ast.TypeInfo{Parts: []string{"float"}}
	case KindDouble:
		return &ast.TypeInfo{Parts: []string{"double"}}
	case KindPointer:
		if v.Ptr.Elem != nil {
			return v.Ptr.Elem.PointerTo()
		}
	case KindStruct:
		return &ast.TypeInfo{Parts: []string{"struct", v.Struct.Name}, Struct: v.Struct.Name}
	}
	return nil
}
