package loader

import (
	"fmt"
	"unsafe"

	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
)

// checkSignatures validates bind-time self-consistency of an image's
// declared signatures: a struct_ref anywhere in a signature requires
// the image to declare the type table entry it refers to. Base codes
// were already checked against the enumeration at decode.
func checkSignatures(img *image.Image) error {
	needTypes := false
	for i := range img.Functions {
		fn := &img.Functions[i]
		if fn.Return == image.StructRef {
			needTypes = true
		}
		for _, p := range fn.Params {
			if p == image.StructRef {
				needTypes = true
			}
		}
	}
	if needTypes && len(img.Types) == 0 {
		return errors.TypeMismatch(errors.PhaseBind, nil,
			"signature uses struct_ref but the image declares no types")
	}
	return nil
}

// checkArgs validates runtime argument values against the declared
// parameter codes before dispatch. Mismatches are rejected, never
// coerced.
func checkArgs(ref *FunctionRef, args []any) error {
	params := ref.entry.Params
	if len(args) != len(params) {
		return errors.TypeMismatch(errors.PhaseCall,
			[]string{ref.mod.name, ref.entry.Name},
			fmt.Sprintf("%d arguments for %d parameters", len(args), len(params)))
	}
	for i, arg := range args {
		if !argMatches(params[i], arg) {
			return errors.TypeMismatch(errors.PhaseCall,
				[]string{ref.mod.name, ref.entry.Name, fmt.Sprintf("arg%d", i)},
				fmt.Sprintf("%T does not satisfy %s", arg, params[i]))
		}
	}
	return nil
}

func argMatches(code image.TypeCode, arg any) bool {
	switch code {
	case image.Int8:
		_, ok := arg.(int8)
		return ok
	case image.Int16:
		_, ok := arg.(int16)
		return ok
	case image.Int32:
		_, ok := arg.(int32)
		return ok
	case image.Int64:
		_, ok := arg.(int64)
		return ok
	case image.Float32:
		_, ok := arg.(float32)
		return ok
	case image.Float64:
		_, ok := arg.(float64)
		return ok
	case image.Pointer, image.StructRef:
		switch arg.(type) {
		case uintptr, unsafe.Pointer:
			return true
		}
		return false
	case image.Void:
		return arg == nil
	}
	return false
}
