package engine

import (
	"testing"
	"unsafe"

	"github.com/scpkg/scpload/image"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code image.TypeCode
		want argClass
	}{
		{image.Void, classVoid},
		{image.Int8, classInt},
		{image.Int16, classInt},
		{image.Int32, classInt},
		{image.Int64, classInt},
		{image.Pointer, classInt},
		{image.StructRef, classInt},
		{image.Float32, classFloat},
		{image.Float64, classFloat},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := classify(tt.code); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int8(-5), -5, true},
		{int16(300), 300, true},
		{int32(1 << 20), 1 << 20, true},
		{int64(1 << 40), 1 << 40, true},
		{int(7), 7, true},
		{uintptr(0xFF), 0xFF, true},
		{unsafe.Pointer(nil), 0, true},
		{"nope", 0, false},
		{3.14, 0, false},
	}
	for _, tt := range tests {
		got, ok := toInt64(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("toInt64(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestToFloat64(t *testing.T) {
	if v, ok := toFloat64(float32(1.5)); !ok || v != 1.5 {
		t.Errorf("toFloat64(float32) = %v, %v", v, ok)
	}
	if v, ok := toFloat64(2.25); !ok || v != 2.25 {
		t.Errorf("toFloat64(float64) = %v, %v", v, ok)
	}
	if _, ok := toFloat64(int32(1)); ok {
		t.Error("toFloat64 should reject integers")
	}
}

func TestNarrowResult(t *testing.T) {
	if v, err := narrowResult(image.Int8, 0x1FF, 0); err != nil || v.(int8) != -1 {
		t.Errorf("narrow int8: %v, %v", v, err)
	}
	if v, err := narrowResult(image.Int32, 1<<33|7, 0); err != nil || v.(int32) != 7 {
		t.Errorf("narrow int32: %v, %v", v, err)
	}
	if v, err := narrowResult(image.Float32, 0, 1.5); err != nil || v.(float32) != 1.5 {
		t.Errorf("narrow float32: %v, %v", v, err)
	}
	if v, err := narrowResult(image.Void, 9, 9); err != nil || v != nil {
		t.Errorf("narrow void: %v, %v", v, err)
	}
	if v, err := narrowResult(image.Pointer, 0x1000, 0); err != nil || v.(uintptr) != 0x1000 {
		t.Errorf("narrow pointer: %v, %v", v, err)
	}
	if _, err := narrowResult(image.TypeCode(0x77), 0, 0); err == nil {
		t.Error("expected error for unknown return code")
	}
}
