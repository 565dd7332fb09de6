package image_test

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
)

// minimalImage returns an encoded image with no functions, types, or
// dependencies and a four-byte code blob.
func minimalImage() []byte {
	img := &image.Image{
		Header: image.Header{
			VersionMajor: image.VersionMajor,
			VersionMinor: image.VersionMinor,
			Arch:         image.ArchX8664,
			CallConv:     image.CallCdecl,
		},
		Code: []byte{0xC3, 0x90, 0x90, 0x90},
	}
	return img.Encode()
}

func wantKind(t *testing.T, err error, phase errors.Phase, kind errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !stderrors.Is(err, &errors.Error{Phase: phase, Kind: kind}) {
		t.Fatalf("error = %v, want phase %q kind %q", err, phase, kind)
	}
}

func TestDecodeMinimal(t *testing.T) {
	img, err := image.DecodeVerified(minimalImage())
	if err != nil {
		t.Fatalf("DecodeVerified: %v", err)
	}
	if len(img.Functions) != 0 || len(img.Types) != 0 || len(img.Dependencies) != 0 {
		t.Errorf("tables not empty: %d funcs, %d types, %d deps",
			len(img.Functions), len(img.Types), len(img.Dependencies))
	}
	if len(img.Code) != 4 {
		t.Errorf("code length = %d, want 4", len(img.Code))
	}
	if img.Function("anything") != nil {
		t.Error("Function lookup on empty table should return nil")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	buf := minimalImage()
	buf[3] = 0xFF
	_, err := image.Decode(buf)
	wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	for _, n := range []int{0, 1, 16, 31} {
		_, err := image.Decode(minimalImage()[:n])
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	}
}

func TestDecodeUnknownVersion(t *testing.T) {
	buf := minimalImage()
	binary.LittleEndian.PutUint16(buf[4:], 9)
	_, err := image.Decode(buf)
	wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
}

func TestDecodeSizeMismatch(t *testing.T) {
	t.Run("code blob size lies", func(t *testing.T) {
		buf := minimalImage()
		binary.LittleEndian.PutUint64(buf[12:], 9999)
		_, err := image.Decode(buf)
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	})

	t.Run("header size past buffer", func(t *testing.T) {
		buf := minimalImage()
		binary.LittleEndian.PutUint32(buf[8:], uint32(len(buf))+100)
		_, err := image.Decode(buf)
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	})

	t.Run("header size under fixed prologue", func(t *testing.T) {
		buf := minimalImage()
		binary.LittleEndian.PutUint32(buf[8:], 16)
		_, err := image.Decode(buf)
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	})
}

func TestDecodeUnknownTags(t *testing.T) {
	t.Run("architecture", func(t *testing.T) {
		buf := minimalImage()
		buf[20] = 7
		_, err := image.Decode(buf)
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	})

	t.Run("calling convention", func(t *testing.T) {
		buf := minimalImage()
		buf[21] = 9
		_, err := image.Decode(buf)
		wantKind(t, err, errors.PhaseDecode, errors.KindFormat)
	})
}

func TestDecodeReservedBytesWarning(t *testing.T) {
	img := &image.Image{
		Header: image.Header{
			VersionMajor: image.VersionMajor,
			Reserved:     0xDEAD,
		},
		Code: []byte{0xC3},
	}
	decoded, err := image.Decode(img.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", decoded.Warnings)
	}
}

func TestDecodeFunctionEntry(t *testing.T) {
	img := &image.Image{
		Header: image.Header{
			VersionMajor: image.VersionMajor,
			Flags:        image.FlagThreadSafe,
		},
		Functions: []image.FunctionEntry{
			{
				Name:        "add",
				EntryOffset: 0,
				Params:      []image.TypeCode{image.Int32, image.Int32},
				Return:      image.Int32,
			},
			{
				Name:        "negate",
				EntryOffset: 8,
				Params:      []image.TypeCode{image.Int64},
				Return:      image.Int64,
				Flags:       image.FuncFlagPure,
			},
		},
		Code: make([]byte, 16),
	}

	decoded, err := image.Decode(img.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	add := decoded.Function("add")
	if add == nil {
		t.Fatal("add not found")
	}
	if len(add.Params) != 2 || add.Params[0] != image.Int32 {
		t.Errorf("add params = %v", add.Params)
	}
	if add.Pure() {
		t.Error("add should not be pure")
	}

	neg := decoded.Function("negate")
	if neg == nil {
		t.Fatal("negate not found")
	}
	if neg.EntryOffset != 8 {
		t.Errorf("negate entry offset = %d, want 8", neg.EntryOffset)
	}
	if !neg.Pure() {
		t.Error("negate should be pure")
	}
	if !decoded.Header.ThreadSafe() {
		t.Error("thread_safe flag lost")
	}
}

func TestDecodeEntryOffsetOutOfBounds(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Functions: []image.FunctionEntry{
			// Off-by-one: offset equal to blob size is already invalid.
			{Name: "f", EntryOffset: 4, Return: image.Void},
		},
		Code: make([]byte, 4),
	}
	_, err := image.Decode(img.Encode())
	wantKind(t, err, errors.PhaseDecode, errors.KindBounds)
}

func TestDecodeDuplicateFunctionName(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Functions: []image.FunctionEntry{
			{Name: "f", EntryOffset: 0, Return: image.Void},
			{Name: "f", EntryOffset: 1, Return: image.Void},
		},
		Code: make([]byte, 4),
	}
	_, err := image.Decode(img.Encode())
	wantKind(t, err, errors.PhaseDecode, errors.KindDuplicateSymbol)
}

func TestDecodeUnknownTypeCodes(t *testing.T) {
	t.Run("param", func(t *testing.T) {
		img := &image.Image{
			Header: image.Header{VersionMajor: image.VersionMajor},
			Functions: []image.FunctionEntry{
				{Name: "f", Params: []image.TypeCode{0x40}, Return: image.Void},
			},
			Code: make([]byte, 4),
		}
		_, err := image.Decode(img.Encode())
		wantKind(t, err, errors.PhaseDecode, errors.KindType)
	})

	t.Run("return", func(t *testing.T) {
		img := &image.Image{
			Header: image.Header{VersionMajor: image.VersionMajor},
			Functions: []image.FunctionEntry{
				{Name: "f", Return: 0xEE},
			},
			Code: make([]byte, 4),
		}
		_, err := image.Decode(img.Encode())
		wantKind(t, err, errors.PhaseDecode, errors.KindType)
	})
}

func TestDecodeCustomFieldTypes(t *testing.T) {
	t.Run("backward reference resolves", func(t *testing.T) {
		img := &image.Image{
			Header: image.Header{VersionMajor: image.VersionMajor},
			Types: []image.TypeEntry{
				{ID: 9, Name: "vec2", Size: 8, Fields: []image.Field{
					{Offset: 0, Type: image.Float32},
					{Offset: 4, Type: image.Float32},
				}},
				{ID: 10, Name: "segment", Size: 16, Fields: []image.Field{
					{Offset: 0, Type: 9},
					{Offset: 8, Type: 9},
				}},
			},
			Code: make([]byte, 4),
		}
		decoded, err := image.Decode(img.Encode())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.Type(10) == nil {
			t.Error("type 10 not found")
		}
	})

	t.Run("forward reference rejected", func(t *testing.T) {
		img := &image.Image{
			Header: image.Header{VersionMajor: image.VersionMajor},
			Types: []image.TypeEntry{
				{ID: 9, Name: "a", Size: 8, Fields: []image.Field{{Offset: 0, Type: 10}}},
				{ID: 10, Name: "b", Size: 4, Fields: []image.Field{{Offset: 0, Type: image.Int32}}},
			},
			Code: make([]byte, 4),
		}
		_, err := image.Decode(img.Encode())
		wantKind(t, err, errors.PhaseDecode, errors.KindType)
	})

	t.Run("id colliding with builtin rejected", func(t *testing.T) {
		img := &image.Image{
			Header: image.Header{VersionMajor: image.VersionMajor},
			Types: []image.TypeEntry{
				{ID: 3, Name: "bad", Size: 4},
			},
			Code: make([]byte, 4),
		}
		_, err := image.Decode(img.Encode())
		wantKind(t, err, errors.PhaseDecode, errors.KindType)
	})
}

func TestDecodeNameOffsetOutOfBounds(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Functions: []image.FunctionEntry{
			{Name: "f", EntryOffset: 0, Return: image.Void},
		},
		Code: make([]byte, 4),
	}
	buf := img.Encode()
	// First function entry starts right after the functions count.
	binary.LittleEndian.PutUint32(buf[image.HeaderFixedSize+4:], 0xFFFF)
	_, err := image.Decode(buf)
	wantKind(t, err, errors.PhaseDecode, errors.KindBounds)
}

func TestDecodeUnterminatedString(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Functions: []image.FunctionEntry{
			{Name: "f", NameOffset: 0, EntryOffset: 0, Return: image.Void},
		},
		Strings: []byte{'f'}, // no terminator
		Code:    make([]byte, 4),
	}
	_, err := image.Decode(img.Encode())
	wantKind(t, err, errors.PhaseDecode, errors.KindBounds)
}

func TestDecodeTruncatedTable(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Functions: []image.FunctionEntry{
			{Name: "f", EntryOffset: 0, Return: image.Void},
		},
		Code: make([]byte, 4),
	}
	buf := img.Encode()
	// Claim more functions than the header region can hold.
	binary.LittleEndian.PutUint32(buf[image.HeaderFixedSize:], 1000)
	_, err := image.Decode(buf)
	wantKind(t, err, errors.PhaseDecode, errors.KindBounds)
}

func TestDecodeDependencies(t *testing.T) {
	img := &image.Image{
		Header: image.Header{VersionMajor: image.VersionMajor},
		Dependencies: []image.DependencyEntry{
			{Name: "libmath", RequiredVersion: 2},
			{Name: "libio", RequiredVersion: 1},
		},
		Code: make([]byte, 4),
	}
	decoded, err := image.Decode(img.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Dependencies) != 2 {
		t.Fatalf("dependencies = %d, want 2", len(decoded.Dependencies))
	}
	if decoded.Dependencies[0].Name != "libmath" || decoded.Dependencies[0].RequiredVersion != 2 {
		t.Errorf("dependency 0 = %+v", decoded.Dependencies[0])
	}
}
