package ast

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// StructInfo is a declared structure: its fields by name and in declaration order.
type StructInfo struct {
	Name   string
	Fields map[string]*TypeInfo
	Order  []string
}

// Size is the sum of the field sizes.
func (s *StructInfo) Size() int {
	size := 0
	for _, name := range s.Order {
		size += s.Fields[name].Size()
	}
	return size
}

// StructTable resolves struct names while types are built.
type StructTable interface {
	LookupStruct(name string) (*StructInfo, bool)
}

// TypeInfo is a validated C type in canonical form:
// [const] [unsigned] base... stars..., where a star may be "*const".
type TypeInfo struct {
	Parts      []string
	Struct     string
	Fields     map[string]*TypeInfo
	FieldOrder []string
}

var (
	errInvalidType = errors.New("Invalid type.")
	errUnknownStr  = errors.New("Unknown struct.")
)

// NewTypeInfo validates a specifier list as written in the source and returns its canonical form.
// structs may be nil when no struct types can occur.
func NewTypeInfo(words []string, structs StructTable) (*TypeInfo, error) {
	specs, stars, err := splitStars(words)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(specs))
	for _, w := range specs {
		counts[w]++
	}
	has := func(names ...string) string {
		for _, n := range names {
			if counts[n] > 0 {
				return n
			}
		}
		return ""
	}

	t := &TypeInfo{}
	var base []string
	switch {
	case counts["auto"] > 0:
		for _, w := range specs {
			if w != "auto" {
				return nil, fmt.Errorf("Auto with invalid type modifier: %s.", w)
			}
		}
		base = []string{"auto"}

	case counts["struct"] > 0:
		if counts["struct"] > 1 {
			return nil, errors.New("Duplicate struct keyword.")
		}
		if has("char", "double", "float", "int", "long", "short", "signed", "unsigned", "void") != "" {
			return nil, errors.New("Invalid struct type modifier.")
		}
		name := ""
		for i, w := range specs {
			if w == "struct" && i+1 < len(specs) && specs[i+1] != "const" {
				name = specs[i+1]
			}
		}
		if name == "" || len(specs)-counts["const"] != 2 {
			return nil, errInvalidType
		}
		info, ok := lookup(structs, name)
		if !ok {
			return nil, errUnknownStr
		}
		t.Struct, t.Fields, t.FieldOrder = name, info.Fields, info.Order
		base = []string{"struct", name}

	case counts["void"] > 0:
		if counts["void"] > 1 {
			return nil, errors.New("Duplicated void")
		}
		if has("char", "double", "float", "int", "long", "short", "signed", "unsigned", "const") != "" {
			return nil, errors.New("Invalid void type modifier.")
		}
		base = []string{"void"}

	case counts["float"] > 0:
		if counts["float"] > 1 {
			return nil, errors.New("Duplicated float")
		}
		if has("char", "double", "int", "long", "short", "signed", "unsigned") != "" {
			return nil, errors.New("Invalid float type modifier.")
		}
		base = []string{"float"}

	case counts["double"] > 0:
		if counts["double"] > 1 {
			return nil, errors.New("Duplicated double")
		}
		if has("char", "int", "short", "signed", "unsigned") != "" {
			return nil, errors.New("Invalid double type modifier.")
		}
		switch counts["long"] {
		case 0:
			base = []string{"double"}
		case 1:
			base = []string{"long", "double"}
		default:
			return nil, errors.New("Very long double.")
		}

	case counts["char"] > 0:
		if counts["char"] > 1 {
			return nil, errors.New("Duplicated char")
		}
		if has("int", "short", "long") != "" {
			return nil, errors.New("Invalid char type modifier.")
		}
		if err := checkSign(counts); err != nil {
			return nil, err
		}
		base = []string{"char"}

	case counts["short"] > 0:
		if counts["short"] > 1 {
			return nil, errors.New("Duplicated short.")
		}
		if counts["long"] > 0 {
			return nil, errInvalidType
		}
		if err := checkSign(counts); err != nil {
			return nil, err
		}
		if counts["int"] > 1 {
			return nil, errors.New("So many ints.")
		}
		base = []string{"short", "int"}

	case counts["long"] > 0:
		if counts["long"] > 2 {
			return nil, errors.New("So long.")
		}
		if err := checkSign(counts); err != nil {
			return nil, err
		}
		if counts["int"] > 1 {
			return nil, errors.New("So many ints.")
		}
		base = []string{"long", "int"}

	case counts["int"] > 0:
		if counts["int"] > 1 {
			return nil, errors.New("So many ints.")
		}
		if err := checkSign(counts); err != nil {
			return nil, err
		}
		base = []string{"int"}

	case len(specs) > 0 && len(specs) == counts["const"]+counts["signed"]+counts["unsigned"]:
		if err := checkSign(counts); err != nil {
			return nil, err
		}
		base = []string{"int"}

	default:
		return nil, errInvalidType
	}

	for _, w := range specs {
		if !knownSpecifier(w) && (t.Struct == "" || w != t.Struct) {
			return nil, errInvalidType
		}
	}

	if counts["const"] > 0 {
		t.Parts = append(t.Parts, "const")
	}
	if counts["unsigned"] > 0 {
		t.Parts = append(t.Parts, "unsigned")
	}
	t.Parts = append(t.Parts, base...)
	t.Parts = append(t.Parts, stars...)
	return t, nil
}

func lookup(structs StructTable, name string) (*StructInfo, bool) {
	if structs == nil {
		return nil, false
	}
	return structs.LookupStruct(name)
}

func knownSpecifier(w string) bool {
	switch w {
	case "auto", "char", "const", "double", "float", "int", "long", "short", "signed", "struct", "unsigned", "void":
		return true
	}
	return false
}

func checkSign(counts map[string]int) error {
	switch {
	case counts["signed"] > 1:
		return errors.New("Duplicated signed.")
	case counts["unsigned"] > 1:
		return errors.New("Duplicated unsigned.")
	case counts["signed"] > 0 && counts["unsigned"] > 0:
		return errors.New("Signed or unsigned?")
	}
	return nil
}

// splitStars separates the specifiers from the pointer levels, merging "* const" into "*const".
func splitStars(words []string) (specs, stars []string, err error) {
	first := slices.Index(words, "*")
	if first < 0 {
		return words, nil, nil
	}
	specs = words[:first]
	for i := first; i < len(words); i++ {
		switch {
		case words[i] == "*" && i+1 < len(words) && words[i+1] == "const":
			stars = append(stars, "*const")
			i++
		case words[i] == "*":
			stars = append(stars, "*")
		default:
			return nil, nil, errInvalidType
		}
	}
	return specs, stars, nil
}

// PointerTo returns t with one more pointer level.
func (t *TypeInfo) PointerTo() *TypeInfo {
	return t.withParts(append(slices.Clone(t.Parts), "*"))
}

func (t *TypeInfo) withParts(parts []string) *TypeInfo {
	return &TypeInfo{Parts: parts, Struct: t.Struct, Fields: t.Fields, FieldOrder: t.FieldOrder}
}

func isStar(p string) bool { return p == "*" || p == "*const" }

func (t *TypeInfo) Stars() int {
	n := 0
	for _, p := range t.Parts {
		if isStar(p) {
			n++
		}
	}
	return n
}

// Base is the type without qualifiers and pointer levels, e.g. "long int" or "struct point".
func (t *TypeInfo) Base() string {
	var words []string
	for _, p := range t.Parts {
		if p != "const" && p != "unsigned" && !isStar(p) {
			words = append(words, p)
		}
	}
	return strings.Join(words, " ")
}

func (t *TypeInfo) IsUnsigned() bool { return slices.Contains(t.Parts, "unsigned") }

func (t *TypeInfo) IsPointer() bool { return t.Stars() > 0 }

func (t *TypeInfo) IsStruct() bool { return t.Struct != "" && t.Stars() == 0 }

func (t *TypeInfo) IsVoid() bool { return t.Base() == "void" && t.Stars() == 0 }

func (t *TypeInfo) IsAuto() bool { return t.Base() == "auto" }

func (t *TypeInfo) IsInteger() bool {
	if t.Stars() > 0 {
		return false
	}
	switch t.Base() {
	case "char", "short int", "int", "long int":
		return true
	}
	return false
}

func (t *TypeInfo) IsFloating() bool {
	if t.Stars() > 0 {
		return false
	}
	switch t.Base() {
	case "float", "double", "long double":
		return true
	}
	return false
}

// IsReadOnly reports whether the outermost level of the type is const.
func (t *TypeInfo) IsReadOnly() bool {
	if n := len(t.Parts); n > 0 && isStar(t.Parts[n-1]) {
		return t.Parts[n-1] == "*const"
	}
	return slices.Contains(t.Parts, "const")
}

// IfIndexed returns the pointee type, or nil when t is not a pointer.
func (t *TypeInfo) IfIndexed() *TypeInfo {
	n := len(t.Parts)
	if n == 0 || !isStar(t.Parts[n-1]) {
		return nil
	}
	return t.withParts(slices.Clone(t.Parts[:n-1]))
}

// IfPointed returns the fields reachable with ".", or nil.
func (t *TypeInfo) IfPointed() map[string]*TypeInfo {
	if t.IsStruct() {
		return t.Fields
	}
	return nil
}

// IfArrowed returns the fields reachable with "->", or nil.
func (t *TypeInfo) IfArrowed() map[string]*TypeInfo {
	if t.Struct != "" && t.Stars() == 1 {
		return t.Fields
	}
	return nil
}

// Unqualified drops const from every level.
func (t *TypeInfo) Unqualified() *TypeInfo {
	parts := make([]string, 0, len(t.Parts))
	for _, p := range t.Parts {
		switch p {
		case "const":
		case "*const":
			parts = append(parts, "*")
		default:
			parts = append(parts, p)
		}
	}
	return t.withParts(parts)
}

func (t *TypeInfo) Equal(o *TypeInfo) bool {
	return t != nil && o != nil && slices.Equal(t.Parts, o.Parts)
}

func (t *TypeInfo) String() string {
	if t == nil {
		return "<nil>"
	}
	return strings.Join(t.Parts, " ")
}

// Size in bytes, used by sizeof.
func (t *TypeInfo) Size() int {
	if t.Stars() > 0 {
		return 8
	}
	switch t.Base() {
	case "char":
		return 1
	case "short int":
		return 2
	case "int", "float":
		return 4
	case "long int", "double":
		return 8
	case "long double":
		return 16
	}
	if t.Struct != "" {
		s := &StructInfo{Fields: t.Fields, Order: t.FieldOrder}
		return s.Size()
	}
	return 0
}

// rank orders the arithmetic types for implicit conversions.
func (t *TypeInfo) rank() int {
	r := 0
	switch t.Base() {
	case "char":
		r = 1
	case "short int", "float":
		r = 2
	case "int", "double":
		r = 4
	case "long int", "long double":
		r = 8
	}
	if t.IsUnsigned() {
		r *= 2
	}
	return r
}

// CanImplicitCast reports whether a value of type from may be stored where to is expected.
func CanImplicitCast(from, to *TypeInfo) error {
	if from.IsAuto() || to.IsAuto() {
		return nil
	}
	if from.Stars() != to.Stars() {
		return errors.New("Invalid pointer casting.")
	}
	fromBase, toBase := from.Base(), to.Base()
	if fromBase == "void" || toBase == "void" {
		if fromBase == toBase && from.Stars() > 0 {
			return nil
		}
		return errors.New("Invalid void casting.")
	}
	if from.Stars() > 0 {
		return nil
	}
	if from.Struct != "" || to.Struct != "" {
		if from.Struct != to.Struct {
			return errors.New("Invalid struct casting.")
		}
		return nil
	}
	switch fromBase {
	case "float":
		if toBase != "float" && toBase != "double" && toBase != "long double" {
			return errors.New("Invalid float casting.")
		}
		return nil
	case "double":
		if toBase != "double" && toBase != "long double" {
			return errors.New("Invalid double casting.")
		}
		return nil
	case "long double":
		if toBase != "long double" {
			return errors.New("Invalid double casting.")
		}
		return nil
	}
	if from.rank() > to.rank() {
		return errors.New("Invalid numeric cast.")
	}
	return nil
}

// Common is the type both operands convert to, without qualifiers, or nil when neither
// converts to the other.
func Common(x, y *TypeInfo) *TypeInfo {
	switch {
	case CanImplicitCast(x, y) == nil:
		return y.Unqualified()
	case CanImplicitCast(y, x) == nil:
		return x.Unqualified()
	}
	return nil
}
