package image

import (
	stderrors "errors"
	"fmt"
	"unicode/utf8"

	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image/internal/binary"
)

// Decode parses an SCP image buffer into its header, tables, and code
// blob. The buffer may be malformed or truncated; every offset and count
// is validated before use and a bad input yields a structured error,
// never a panic. Decode does not verify the checksum; see VerifyChecksum
// and DecodeVerified.
func Decode(buf []byte) (*Image, error) {
	hdr, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Header: hdr,
		Code:   buf[hdr.HeaderSize:],
	}
	if hdr.Reserved != 0 {
		img.Warnings = append(img.Warnings,
			fmt.Sprintf("reserved header bytes are non-zero (0x%08x)", hdr.Reserved))
	}

	if err := decodeTables(buf[:hdr.HeaderSize], img); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// DecodeVerified parses the buffer and verifies its checksum. This is a
// convenience combining Decode and VerifyChecksum.
func DecodeVerified(buf []byte) (*Image, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if err := VerifyChecksum(buf); err != nil {
		return nil, err
	}
	return img, nil
}

func decodeHeader(buf []byte) (Header, error) {
	var hdr Header
	if len(buf) < HeaderFixedSize {
		return hdr, errors.Format(nil, "buffer too short for header: %d bytes", len(buf))
	}

	r := binary.NewReader(buf)
	magic, _ := r.ReadU32()
	if magic != Magic {
		return hdr, errors.Format([]string{"magic"}, "0x%08x is not an SCP image", magic)
	}

	hdr.VersionMajor, _ = r.ReadU16()
	hdr.VersionMinor, _ = r.ReadU16()
	if hdr.VersionMajor != VersionMajor {
		return hdr, errors.Format([]string{"version"},
			"unrecognized major version %d (supported: %d)", hdr.VersionMajor, VersionMajor)
	}

	hdr.HeaderSize, _ = r.ReadU32()
	hdr.CodeBlobSize, _ = r.ReadU64()

	arch, _ := r.ReadByte()
	hdr.Arch = Arch(arch)
	if !hdr.Arch.Valid() {
		return hdr, errors.Format([]string{"architecture"}, "unknown tag %d", arch)
	}

	cc, _ := r.ReadByte()
	hdr.CallConv = CallConv(cc)
	if !hdr.CallConv.Valid() {
		return hdr, errors.Format([]string{"calling_convention"}, "unknown tag %d", cc)
	}

	hdr.Flags, _ = r.ReadU16()
	hdr.Checksum, _ = r.ReadU32()
	hdr.Reserved, _ = r.ReadU32()

	if hdr.HeaderSize < HeaderFixedSize {
		return hdr, errors.Format([]string{"header_size"},
			"%d smaller than fixed header", hdr.HeaderSize)
	}
	if uint64(hdr.HeaderSize) > uint64(len(buf)) {
		return hdr, errors.Format([]string{"header_size"},
			"%d exceeds buffer length %d", hdr.HeaderSize, len(buf))
	}
	if hdr.CodeBlobSize != uint64(len(buf))-uint64(hdr.HeaderSize) {
		return hdr, errors.Format([]string{"code_blob_size"},
			"declared %d, buffer holds %d", hdr.CodeBlobSize, uint64(len(buf))-uint64(hdr.HeaderSize))
	}
	return hdr, nil
}

// decodeTables reads the four variable-length tables out of the header
// region. The cursor never advances past hdr.HeaderSize: the reader is
// bounded to the header slice, and a short read surfaces as a bounds
// error naming the table it happened in.
func decodeTables(hdrBuf []byte, img *Image) error {
	r := binary.NewReader(hdrBuf)
	if err := r.Seek(HeaderFixedSize); err != nil {
		return errors.Format(nil, "header region shorter than fixed prologue")
	}

	if err := decodeFunctions(r, img); err != nil {
		return err
	}
	if err := decodeTypes(r, img); err != nil {
		return err
	}
	if err := decodeDependencies(r, img); err != nil {
		return err
	}

	// Whatever remains of the header region is the string pool.
	img.Strings = hdrBuf[r.Position():]

	if err := resolveNames(img); err != nil {
		return err
	}
	return nil
}

func decodeFunctions(r *binary.Reader, img *Image) error {
	count, err := r.ReadU32()
	if err != nil {
		return tableBounds(r, "functions", err)
	}
	for i := uint32(0); i < count; i++ {
		var fn FunctionEntry
		if fn.NameOffset, err = r.ReadU32(); err != nil {
			return tableBounds(r, "functions", err)
		}
		if fn.EntryOffset, err = r.ReadU64(); err != nil {
			return tableBounds(r, "functions", err)
		}
		paramCount, err := r.ReadByte()
		if err != nil {
			return tableBounds(r, "functions", err)
		}
		if paramCount > 0 {
			raw, err := r.ReadBytes(int(paramCount))
			if err != nil {
				return tableBounds(r, "functions", err)
			}
			fn.Params = make([]TypeCode, paramCount)
			for j, c := range raw {
				fn.Params[j] = TypeCode(c)
			}
		}
		ret, err := r.ReadByte()
		if err != nil {
			return tableBounds(r, "functions", err)
		}
		fn.Return = TypeCode(ret)
		if fn.Flags, err = r.ReadByte(); err != nil {
			return tableBounds(r, "functions", err)
		}
		img.Functions = append(img.Functions, fn)
	}
	return nil
}

func decodeTypes(r *binary.Reader, img *Image) error {
	count, err := r.ReadU32()
	if err != nil {
		return tableBounds(r, "types", err)
	}
	for i := uint32(0); i < count; i++ {
		var te TypeEntry

		if te.ID, err = r.ReadU16(); err != nil {
			return tableBounds(r, "types", err)
		}
		if te.NameOffset, err = r.ReadU32(); err != nil {
			return tableBounds(r, "types", err)
		}
		if te.Size, err = r.ReadU32(); err != nil {
			return tableBounds(r, "types", err)
		}
		fieldCount, err := r.ReadByte()
		if err != nil {
			return tableBounds(r, "types", err)
		}
		for j := byte(0); j < fieldCount; j++ {
			var f Field
			if f.Offset, err = r.ReadU32(); err != nil {
				return tableBounds(r, "types", err)
			}
			code, err := r.ReadByte()
			if err != nil {
				return tableBounds(r, "types", err)
			}
			f.Type = TypeCode(code)
			te.Fields = append(te.Fields, f)
		}
		img.Types = append(img.Types, te)
	}
	return nil
}

func decodeDependencies(r *binary.Reader, img *Image) error {
	count, err := r.ReadU32()
	if err != nil {
		return tableBounds(r, "dependencies", err)
	}
	for i := uint32(0); i < count; i++ {
		var dep DependencyEntry
		if dep.NameOffset, err = r.ReadU32(); err != nil {
			return tableBounds(r, "dependencies", err)
		}
		if dep.RequiredVersion, err = r.ReadU32(); err != nil {
			return tableBounds(r, "dependencies", err)
		}
		img.Dependencies = append(img.Dependencies, dep)
	}
	return nil
}

// resolveNames turns every name_offset into its string. An offset must
// land inside the pool and reach a null terminator before the pool ends.
func resolveNames(img *Image) error {
	for i := range img.Functions {
		name, err := poolString(img.Strings, img.Functions[i].NameOffset,
			[]string{"functions", itoa(uint32(i)), "name_offset"})
		if err != nil {
			return err
		}
		img.Functions[i].Name = name
	}
	for i := range img.Types {
		name, err := poolString(img.Strings, img.Types[i].NameOffset,
			[]string{"types", itoa(uint32(i)), "name_offset"})
		if err != nil {
			return err
		}
		img.Types[i].Name = name
	}
	for i := range img.Dependencies {
		name, err := poolString(img.Strings, img.Dependencies[i].NameOffset,
			[]string{"dependencies", itoa(uint32(i)), "name_offset"})
		if err != nil {
			return err
		}
		img.Dependencies[i].Name = name
	}
	return nil
}

func poolString(pool []byte, offset uint32, path []string) (string, error) {
	if uint64(offset) >= uint64(len(pool)) {
		return "", errors.OutOfBounds(errors.PhaseDecode, path, uint64(offset), uint64(len(pool)))
	}
	end := offset
	for end < uint32(len(pool)) && pool[end] != 0 {
		end++
	}
	if end == uint32(len(pool)) {
		return "", errors.New(errors.PhaseDecode, errors.KindBounds).
			Path(path...).
			Detail("string at offset %d has no terminator within pool", offset).
			Build()
	}
	s := pool[offset:end]
	if !utf8.Valid(s) {
		return "", errors.Format(path, "string at offset %d is not valid UTF-8", offset)
	}
	return string(s), nil
}

func tableBounds(r *binary.Reader, table string, err error) error {
	if stderrors.Is(err, binary.ErrUnexpectedEnd) {
		return errors.New(errors.PhaseDecode, errors.KindBounds).
			Path(table).
			Detail("table extends past header region").
			Cause(err).
			Build()
	}
	return errors.Wrap(errors.PhaseDecode, errors.KindFormat, err, table+" table")
}

func itoa(n uint32) string {
	return fmt.Sprintf("%d", n)
}
