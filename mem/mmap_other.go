//go:build !unix

package mem

import (
	"errors"
	"unsafe"
)

var errUnsupported = errors.New("executable mappings not supported on this platform")

func mmapRW(size int) ([]byte, error) {
	return nil, errUnsupported
}

func protectRX(buf []byte) error {
	return errUnsupported
}

func munmap(buf []byte) error {
	return nil
}

func sliceBase(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
