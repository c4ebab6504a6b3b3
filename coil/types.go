package coil

// ValueType identifies the width and interpretation of an encoded value.
type ValueType uint8

// Value types usable as mnemonic suffixes, type parameters and data
// directive element types.
const (
	TypeNone ValueType = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
)

// ValueTypes maps type names to value types.
var ValueTypes = map[string]ValueType{
	"i8":  TypeI8,
	"i16": TypeI16,
	"i32": TypeI32,
	"i64": TypeI64,
	"u8":  TypeU8,
	"u16": TypeU16,
	"u32": TypeU32,
	"u64": TypeU64,
	"f32": TypeF32,
	"f64": TypeF64,
}

// Size returns the width of the type in bytes.
func (v ValueType) Size() int {
	switch v {
	case TypeI8, TypeU8:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	case TypeI64, TypeU64, TypeF64:
		return 8
	}
	return 0
}

// IsFloat reports whether the type is a floating-point type.
func (v ValueType) IsFloat() bool {
	return v == TypeF32 || v == TypeF64
}

// IsSigned reports whether the type is a signed integer type.
func (v ValueType) IsSigned() bool {
	switch v {
	case TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	}
	return false
}

var typeNames = map[ValueType]string{}

func init() {
	for name, t := range ValueTypes {
		typeNames[t] = name
	}
}

func (v ValueType) String() string {
	return typeNames[v]
}
