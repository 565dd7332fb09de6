// Package mem maps code blobs into executable memory under a
// write-xor-execute discipline: the region is writable only while the
// blob is copied in, then flipped to read-execute before any address
// escapes. The mapped base is never persisted anywhere; later stages
// receive it only as an additive offset target.
package mem

import (
	"sync"

	"github.com/scpkg/scpload/errors"
)

// Region is an owned executable mapping holding one module's code blob.
type Region struct {
	buf  []byte
	size uint64

	freeOnce sync.Once
	freeErr  error
}

// Map allocates a read/write region sized to the blob, copies the bytes
// in, and transitions the region to read-execute. A zero-size blob or an
// OS-level denial is a non-retryable allocation error.
func Map(code []byte) (*Region, error) {
	if len(code) == 0 {
		return nil, errors.New(errors.PhaseMap, errors.KindAllocation).
			Detail("zero-size code blob").
			Build()
	}

	buf, err := mmapRW(len(code))
	if err != nil {
		return nil, errors.AllocationFailed(uint64(len(code)), err)
	}
	copy(buf, code)

	if err := protectRX(buf); err != nil {
		munmap(buf)
		return nil, errors.AllocationFailed(uint64(len(code)), err)
	}

	return &Region{buf: buf, size: uint64(len(code))}, nil
}

// Base returns the start address of the mapping.
func (r *Region) Base() uintptr {
	return sliceBase(r.buf)
}

// Size returns the blob size the region was mapped for. The OS may have
// rounded the mapping up to a page boundary; addresses are validated
// against the blob size, not the page size.
func (r *Region) Size() uint64 {
	return r.size
}

// Addr computes the absolute address of a byte offset into the blob.
func (r *Region) Addr(offset uint64) (uintptr, error) {
	if offset >= r.size {
		return 0, errors.OutOfBounds(errors.PhaseBind, []string{"entry_offset"}, offset, r.size)
	}
	return r.Base() + uintptr(offset), nil
}

// Free releases the mapping. Safe to call more than once; only the
// first call unmaps.
func (r *Region) Free() error {
	r.freeOnce.Do(func() {
		r.freeErr = munmap(r.buf)
		r.buf = nil
	})
	return r.freeErr
}
