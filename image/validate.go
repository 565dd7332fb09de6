package image

import (
	"github.com/scpkg/scpload/errors"
)

// Validate checks the decoded tables against the image's own
// declarations: entry offsets inside the code blob, type codes in the
// known enumeration, custom ids resolvable, and no duplicate symbols.
// Decode runs this automatically; builders should run it before Encode.
func (img *Image) Validate() error {
	if err := img.validateTypeTable(); err != nil {
		return err
	}
	if err := img.validateFunctions(); err != nil {
		return err
	}
	return nil
}

func (img *Image) validateTypeTable() error {
	declared := make(map[uint16]bool, len(img.Types))
	for i := range img.Types {
		te := &img.Types[i]
		path := []string{"types", itoa(uint32(i))}

		if TypeCode(te.ID).Builtin() || te.ID > 255 {
			return errors.New(errors.PhaseDecode, errors.KindType).
				Path(path...).
				Detail("custom type id %d collides with builtin codes or exceeds field-code range", te.ID).
				Build()
		}
		if declared[te.ID] {
			return errors.New(errors.PhaseDecode, errors.KindType).
				Path(path...).
				Detail("type id %d declared more than once", te.ID).
				Build()
		}

		for j, f := range te.Fields {
			fpath := append(path, "fields", itoa(uint32(j)))
			if uint64(f.Offset) >= uint64(te.Size) && te.Size > 0 {
				return errors.OutOfBounds(errors.PhaseDecode, fpath,
					uint64(f.Offset), uint64(te.Size))
			}
			if f.Type.Builtin() {
				continue
			}
			// Field codes may reference custom ids, but only ones
			// declared earlier in the table.
			if !declared[uint16(f.Type)] {
				return errors.UnknownType(errors.PhaseDecode, fpath, byte(f.Type))
			}
		}

		declared[te.ID] = true
	}
	return nil
}

func (img *Image) validateFunctions() error {
	seen := make(map[string]bool, len(img.Functions))
	for i := range img.Functions {
		fn := &img.Functions[i]
		path := []string{"functions", itoa(uint32(i))}

		if seen[fn.Name] {
			return errors.DuplicateSymbol(errors.PhaseDecode, fn.Name)
		}
		seen[fn.Name] = true

		if fn.EntryOffset >= img.Header.CodeBlobSize {
			return errors.OutOfBounds(errors.PhaseDecode,
				append(path, "entry_offset"), fn.EntryOffset, img.Header.CodeBlobSize)
		}

		for j, p := range fn.Params {
			if !p.Builtin() {
				return errors.UnknownType(errors.PhaseDecode,
					append(path, "params", itoa(uint32(j))), byte(p))
			}
		}
		if !fn.Return.Builtin() {
			return errors.UnknownType(errors.PhaseDecode,
				append(path, "return_type"), byte(fn.Return))
		}
	}
	return nil
}
