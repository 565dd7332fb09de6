//go:build unix

package mem

import (
	stderrors "errors"
	"testing"

	"github.com/scpkg/scpload/errors"
)

func TestMapCopiesBlob(t *testing.T) {
	code := []byte{0xC3, 0x90, 0x55, 0x48}
	r, err := Map(code)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Free()

	if r.Base() == 0 {
		t.Fatal("base address is zero")
	}
	if r.Size() != uint64(len(code)) {
		t.Errorf("size = %d, want %d", r.Size(), len(code))
	}
	// Region is read-execute; reading back through the mapping is allowed.
	for i, want := range code {
		if r.buf[i] != want {
			t.Errorf("byte %d: got 0x%02x, want 0x%02x", i, r.buf[i], want)
		}
	}
}

func TestMapZeroSize(t *testing.T) {
	_, err := Map(nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindAllocation}) {
		t.Fatalf("expected allocation error, got %v", err)
	}
}

func TestAddr(t *testing.T) {
	r, err := Map([]byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Free()

	addr, err := r.Addr(2)
	if err != nil {
		t.Fatalf("Addr(2): %v", err)
	}
	if addr != r.Base()+2 {
		t.Errorf("addr = %#x, want base+2", addr)
	}

	if _, err := r.Addr(4); err == nil {
		t.Error("expected bounds error for offset == size")
	}
	if _, err := r.Addr(1 << 40); err == nil {
		t.Error("expected bounds error for huge offset")
	}
}

func TestFreeIdempotent(t *testing.T) {
	r, err := Map([]byte{0xC3})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := r.Free(); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	if err := r.Free(); err != nil {
		t.Fatalf("second Free: %v", err)
	}
}

func TestIndependentRegions(t *testing.T) {
	a, err := Map([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Map a: %v", err)
	}
	defer a.Free()

	b, err := Map([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Map b: %v", err)
	}
	defer b.Free()

	if a.Base() == b.Base() {
		t.Error("two mappings share a base address")
	}
}
