package image

import (
	"encoding/binary"

	bin "github.com/scpkg/scpload/image/internal/binary"
)

// Encode serializes the image to the SCP wire layout and stamps a fresh
// checksum. This is the producer boundary: a generator fills in the
// tables and the code blob, and Encode emits a buffer Decode accepts.
//
// When the image carries a string pool (as any decoded image does),
// recorded name offsets and the pool are written back verbatim, so
// Encode(Decode(buf)) reproduces buf byte-for-byte for well-formed
// input. Images built in memory with an empty pool get one built from
// their names, with duplicate names shared.
func (img *Image) Encode() []byte {
	if img.Strings == nil {
		img.buildStringPool()
	}

	tables := bin.NewWriter()
	writeFunctions(tables, img.Functions)
	writeTypes(tables, img.Types)
	writeDependencies(tables, img.Dependencies)
	tables.WriteBytes(img.Strings)

	headerSize := uint32(HeaderFixedSize + tables.Len())

	w := bin.NewWriter()
	w.WriteU32(Magic)
	w.WriteU16(img.Header.VersionMajor)
	w.WriteU16(img.Header.VersionMinor)
	w.WriteU32(headerSize)
	w.WriteU64(uint64(len(img.Code)))
	w.Byte(byte(img.Header.Arch))
	w.Byte(byte(img.Header.CallConv))
	w.WriteU16(img.Header.Flags)
	w.WriteU32(0) // checksum, patched below
	w.WriteU32(img.Header.Reserved)
	w.WriteBytes(tables.Bytes())
	w.WriteBytes(img.Code)

	buf := w.Bytes()
	binary.LittleEndian.PutUint32(buf[checksumOffset:], Checksum(buf))

	img.Header.HeaderSize = headerSize
	img.Header.CodeBlobSize = uint64(len(img.Code))
	img.Header.Checksum = binary.LittleEndian.Uint32(buf[checksumOffset:])
	return buf
}

// buildStringPool assigns name offsets for an image constructed in
// memory. Identical names share one pool entry.
func (img *Image) buildStringPool() {
	w := bin.NewWriter()
	offsets := make(map[string]uint32)

	intern := func(s string) uint32 {
		if off, ok := offsets[s]; ok {
			return off
		}
		off := uint32(w.Len())
		offsets[s] = off
		w.WriteName(s)
		return off
	}

	for i := range img.Functions {
		img.Functions[i].NameOffset = intern(img.Functions[i].Name)
	}
	for i := range img.Types {
		img.Types[i].NameOffset = intern(img.Types[i].Name)
	}
	for i := range img.Dependencies {
		img.Dependencies[i].NameOffset = intern(img.Dependencies[i].Name)
	}
	img.Strings = w.Bytes()
}

func writeFunctions(w *bin.Writer, funcs []FunctionEntry) {
	w.WriteU32(uint32(len(funcs)))
	for i := range funcs {
		fn := &funcs[i]
		w.WriteU32(fn.NameOffset)
		w.WriteU64(fn.EntryOffset)
		w.Byte(byte(len(fn.Params)))
		for _, p := range fn.Params {
			w.Byte(byte(p))
		}
		w.Byte(byte(fn.Return))
		w.Byte(fn.Flags)
	}
}

func writeTypes(w *bin.Writer, types []TypeEntry) {
	w.WriteU32(uint32(len(types)))
	for i := range types {
		te := &types[i]
		w.WriteU16(te.ID)
		w.WriteU32(te.NameOffset)
		w.WriteU32(te.Size)
		w.Byte(byte(len(te.Fields)))
		for _, f := range te.Fields {
			w.WriteU32(f.Offset)
			w.Byte(byte(f.Type))
		}
	}
}

func writeDependencies(w *bin.Writer, deps []DependencyEntry) {
	w.WriteU32(uint32(len(deps)))
	for i := range deps {
		w.WriteU32(deps[i].NameOffset)
		w.WriteU32(deps[i].RequiredVersion)
	}
}
