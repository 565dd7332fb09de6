package image

// Header is the fixed 32-byte prologue of an SCP image. Immutable after
// decode.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	HeaderSize   uint32
	CodeBlobSize uint64
	Arch         Arch
	CallConv     CallConv
	Flags        uint16
	Checksum     uint32
	Reserved     uint32
}

// ThreadSafe reports whether the image's functions may be invoked
// concurrently without external serialization.
func (h Header) ThreadSafe() bool {
	return h.Flags&FlagThreadSafe != 0
}

// RequiresGC reports whether the image expects a garbage-collector hook.
// The loader treats this as an extension point and imposes no behavior.
func (h Header) RequiresGC() bool {
	return h.Flags&FlagRequiresGC != 0
}

// FunctionEntry describes one exported function. EntryOffset is a byte
// offset into the code blob; the absolute address exists only after
// mapping and is never stored here.
type FunctionEntry struct {
	Name        string
	Params      []TypeCode
	NameOffset  uint32
	EntryOffset uint64
	Return      TypeCode
	Flags       byte
}

// Pure reports whether the function is declared side-effect free.
func (f FunctionEntry) Pure() bool {
	return f.Flags&FuncFlagPure != 0
}

// Field is one member of a declared struct type.
type Field struct {
	Offset uint32
	Type   TypeCode
}

// TypeEntry describes one custom type declared by the image.
type TypeEntry struct {
	Name       string
	Fields     []Field
	NameOffset uint32
	Size       uint32
	ID         uint16
}

// DependencyEntry names another module this image binds against, with
// the minimum version that satisfies it.
type DependencyEntry struct {
	Name            string
	NameOffset      uint32
	RequiredVersion uint32
}

// Image is a fully decoded SCP image: header, resolved tables, the raw
// string pool, and the code blob. Warnings collects soft validation
// findings (non-zero reserved bytes) that do not reject the load.
type Image struct {
	Functions    []FunctionEntry
	Types        []TypeEntry
	Dependencies []DependencyEntry
	Strings      []byte
	Code         []byte
	Warnings     []string
	Header       Header
}

// Function returns the entry with the given name, or nil.
func (img *Image) Function(name string) *FunctionEntry {
	for i := range img.Functions {
		if img.Functions[i].Name == name {
			return &img.Functions[i]
		}
	}
	return nil
}

// Type returns the declared type with the given id, or nil.
func (img *Image) Type(id uint16) *TypeEntry {
	for i := range img.Types {
		if img.Types[i].ID == id {
			return &img.Types[i]
		}
	}
	return nil
}
