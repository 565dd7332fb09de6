package image

// Magic identifies an SCP image. Stored little-endian at offset 0.
const Magic uint32 = 0x53435000

// Recognized format versions. A decoder accepts any minor version under
// a known major.
const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0
)

// HeaderFixedSize is the size of the fixed prologue preceding the tables.
const HeaderFixedSize = 32

// Arch tags the instruction set the code blob was generated for.
type Arch byte

const (
	ArchX8664 Arch = 0
	ArchARM64 Arch = 1
	ArchX8632 Arch = 2
)

func (a Arch) String() string {
	switch a {
	case ArchX8664:
		return "x86_64"
	case ArchARM64:
		return "arm64"
	case ArchX8632:
		return "x86_32"
	}
	return "unknown"
}

// Valid reports whether the tag is a recognized architecture.
func (a Arch) Valid() bool {
	return a <= ArchX8632
}

// CallConv tags the calling convention of every function in the image.
type CallConv byte

const (
	CallCdecl   CallConv = 0
	CallStdcall CallConv = 1
	CallSystem  CallConv = 2
)

func (c CallConv) String() string {
	switch c {
	case CallCdecl:
		return "cdecl"
	case CallStdcall:
		return "stdcall"
	case CallSystem:
		return "system"
	}
	return "unknown"
}

// Valid reports whether the tag is a recognized calling convention.
func (c CallConv) Valid() bool {
	return c <= CallSystem
}

// Header flag bits.
const (
	FlagThreadSafe uint16 = 1 << 0
	FlagRequiresGC uint16 = 1 << 1
)

// Function flag bits.
const (
	FuncFlagPure byte = 1 << 0
)

// TypeCode is the closed enumeration of value types crossing the call
// boundary. Codes above StructRef identify custom types declared in the
// image's type table.
type TypeCode byte

const (
	Void      TypeCode = 0
	Int8      TypeCode = 1
	Int16     TypeCode = 2
	Int32     TypeCode = 3
	Int64     TypeCode = 4
	Float32   TypeCode = 5
	Float64   TypeCode = 6
	Pointer   TypeCode = 7
	StructRef TypeCode = 8
)

// firstCustomType is the lowest code available to custom type ids.
const firstCustomType TypeCode = StructRef + 1

func (t TypeCode) String() string {
	switch t {
	case Void:
		return "void"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Pointer:
		return "pointer"
	case StructRef:
		return "struct_ref"
	}
	return "custom"
}

// Builtin reports whether the code belongs to the base enumeration.
func (t TypeCode) Builtin() bool {
	return t <= StructRef
}

// Custom reports whether the code identifies a declared type entry.
func (t TypeCode) Custom() bool {
	return t >= firstCustomType
}
