// Package settings implements the two-layer (base/overlay) parameter store
// described in spec.md §4.2, plus the typed Value union carried over the
// wire in the settings overlay of every message.
package settings

import "fmt"

// TypeTag names one of the settings value shapes from spec.md §6.
type TypeTag string

// The settings value type tags. These match the column in spec.md §6 and
// the shapes accepted by original_source's has_parameter_type.
const (
	TypeString    TypeTag = "str"
	TypeInt       TypeTag = "int"
	TypeFloat     TypeTag = "float"
	TypeBool      TypeTag = "bool"
	TypeFloatList TypeTag = "[float]"
	TypeFloatGrid TypeTag = "[[float]]"
)

// Value is a tagged union over the leaf types a settings parameter may
// hold. Exactly one field is meaningful, selected by Tag.
type Value struct {
	Tag       TypeTag
	Str       string
	Int       int64
	Float     float64
	Bool      bool
	FloatList []float64
	FloatGrid [][]float64
}

// String builds a string-valued Value.
func String(s string) Value { return Value{Tag: TypeString, Str: s} }

// Int builds an int-valued Value.
func Int(n int64) Value { return Value{Tag: TypeInt, Int: n} }

// Float builds a float-valued Value.
func Float(f float64) Value { return Value{Tag: TypeFloat, Float: f} }

// Bool builds a bool-valued Value.
func Bool(b bool) Value { return Value{Tag: TypeBool, Bool: b} }

// FloatList builds a []float64-valued Value.
func FloatList(fs []float64) Value { return Value{Tag: TypeFloatList, FloatList: fs} }

// FloatGrid builds a [][]float64-valued Value.
func FloatGrid(fs [][]float64) Value { return Value{Tag: TypeFloatGrid, FloatGrid: fs} }

// HasType reports whether v's shape matches typ, mirrored on
// original_source/settings_manager.py's has_parameter_type: empty lists are
// accepted for both list tags without inspecting element types further,
// since this is a coarse discriminator, not a full validator.
func HasType(v Value, typ TypeTag) bool {
	switch typ {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeFloatList, TypeFloatGrid:
		return v.Tag == typ
	default:
		return false
	}
}

// Equal reports whether two Values carry the same tag and payload.
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TypeString:
		return a.Str == b.Str
	case TypeInt:
		return a.Int == b.Int
	case TypeFloat:
		return a.Float == b.Float
	case TypeBool:
		return a.Bool == b.Bool
	case TypeFloatList:
		return equalFloatSlice(a.FloatList, b.FloatList)
	case TypeFloatGrid:
		if len(a.FloatGrid) != len(b.FloatGrid) {
			return false
		}
		for i := range a.FloatGrid {
			if !equalFloatSlice(a.FloatGrid[i], b.FloatGrid[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalFloatSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Tag {
	case TypeString:
		return fmt.Sprintf("%q", v.Str)
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeFloat:
		return fmt.Sprintf("%g", v.Float)
	case TypeBool:
		return fmt.Sprintf("%t", v.Bool)
	case TypeFloatList:
		return fmt.Sprintf("%v", v.FloatList)
	case TypeFloatGrid:
		return fmt.Sprintf("%v", v.FloatGrid)
	default:
		return "<invalid settings value>"
	}
}
