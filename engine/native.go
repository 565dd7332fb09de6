package engine

import (
	"context"
	"unsafe"

	scpload "github.com/scpkg/scpload"
	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
)

// Native dispatches calls by reinterpreting the bound address as a Go
// function value. The zero value is ready to use.
type Native struct{}

// NewNative creates a Native engine.
func NewNative() *Native {
	return &Native{}
}

// funcval mirrors the runtime's closure representation: a pointer to a
// word holding the code address.
type funcval struct {
	fn uintptr
}

type argClass int

const (
	classVoid argClass = iota
	classInt
	classFloat
)

func classify(code image.TypeCode) argClass {
	switch code {
	case image.Void:
		return classVoid
	case image.Float32, image.Float64:
		return classFloat
	default:
		return classInt
	}
}

// Call dispatches to the entry address. Integer-class arguments are
// widened to int64 and floats to float64 before the jump; the result is
// narrowed back to the declared return type.
func (Native) Call(ctx context.Context, site scpload.CallSite, args []any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "context done before dispatch")
	}
	if len(args) != len(site.Params) {
		return nil, errors.TypeMismatch(errors.PhaseCall, nil,
			"argument count does not match signature")
	}

	ints := make([]int64, 0, len(args))
	floats := make([]float64, 0, len(args))
	for i, a := range args {
		switch classify(site.Params[i]) {
		case classInt:
			v, ok := toInt64(a)
			if !ok {
				return nil, errors.TypeMismatch(errors.PhaseCall, nil,
					"argument is not integer-class")
			}
			ints = append(ints, v)
		case classFloat:
			v, ok := toFloat64(a)
			if !ok {
				return nil, errors.TypeMismatch(errors.PhaseCall, nil,
					"argument is not float-class")
			}
			floats = append(floats, v)
		default:
			return nil, errors.TypeMismatch(errors.PhaseCall, nil, "void parameter")
		}
	}

	fv := &funcval{fn: site.Addr}
	entry := unsafe.Pointer(&fv)

	raw, rawF, err := dispatch(entry, classify(site.Return), ints, floats)
	if err != nil {
		return nil, err
	}
	return narrowResult(site.Return, raw, rawF)
}

// dispatch picks the concrete function type for the normalized shape.
// Mixed int/float signatures beyond two arguments have no dispatch path
// here; embedders with richer ABIs plug in their own Engine.
func dispatch(entry unsafe.Pointer, ret argClass, ints []int64, floats []float64) (int64, float64, error) {
	switch {
	case len(floats) == 0:
		switch ret {
		case classFloat:
			if len(ints) == 0 {
				return 0, (*(*func() float64)(entry))(), nil
			}
		case classVoid:
			switch len(ints) {
			case 0:
				(*(*func())(entry))()
				return 0, 0, nil
			case 1:
				(*(*func(int64))(entry))(ints[0])
				return 0, 0, nil
			case 2:
				(*(*func(int64, int64))(entry))(ints[0], ints[1])
				return 0, 0, nil
			case 3:
				(*(*func(int64, int64, int64))(entry))(ints[0], ints[1], ints[2])
				return 0, 0, nil
			case 4:
				(*(*func(int64, int64, int64, int64))(entry))(ints[0], ints[1], ints[2], ints[3])
				return 0, 0, nil
			}
		case classInt:
			switch len(ints) {
			case 0:
				return (*(*func() int64)(entry))(), 0, nil
			case 1:
				return (*(*func(int64) int64)(entry))(ints[0]), 0, nil
			case 2:
				return (*(*func(int64, int64) int64)(entry))(ints[0], ints[1]), 0, nil
			case 3:
				return (*(*func(int64, int64, int64) int64)(entry))(ints[0], ints[1], ints[2]), 0, nil
			case 4:
				return (*(*func(int64, int64, int64, int64) int64)(entry))(ints[0], ints[1], ints[2], ints[3]), 0, nil
			}
		}
	case len(ints) == 0:
		switch ret {
		case classFloat:
			switch len(floats) {
			case 1:
				return 0, (*(*func(float64) float64)(entry))(floats[0]), nil
			case 2:
				return 0, (*(*func(float64, float64) float64)(entry))(floats[0], floats[1]), nil
			}
		case classVoid:
			switch len(floats) {
			case 1:
				(*(*func(float64))(entry))(floats[0])
				return 0, 0, nil
			case 2:
				(*(*func(float64, float64))(entry))(floats[0], floats[1])
				return 0, 0, nil
			}
		case classInt:
			switch len(floats) {
			case 1:
				return (*(*func(float64) int64)(entry))(floats[0]), 0, nil
			case 2:
				return (*(*func(float64, float64) int64)(entry))(floats[0], floats[1]), 0, nil
			}
		}
	}
	return 0, 0, errors.InvalidInput(errors.PhaseCall, "engine has no dispatch path for this signature")
}

func toInt64(a any) (int64, bool) {
	switch v := a.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uintptr:
		return int64(v), true
	case unsafe.Pointer:
		return int64(uintptr(v)), true
	}
	return 0, false
}

func toFloat64(a any) (float64, bool) {
	switch v := a.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func narrowResult(code image.TypeCode, raw int64, rawF float64) (any, error) {
	switch code {
	case image.Void:
		return nil, nil
	case image.Int8:
		return int8(raw), nil
	case image.Int16:
		return int16(raw), nil
	case image.Int32:
		return int32(raw), nil
	case image.Int64:
		return raw, nil
	case image.Float32:
		return float32(rawF), nil
	case image.Float64:
		return rawF, nil
	case image.Pointer, image.StructRef:
		return uintptr(raw), nil
	}
	return nil, errors.UnknownType(errors.PhaseCall, []string{"return_type"}, byte(code))
}
