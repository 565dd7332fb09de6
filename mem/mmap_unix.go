//go:build unix

package mem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func mmapRW(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
}

func protectRX(buf []byte) error {
	return unix.Mprotect(buf, unix.PROT_READ|unix.PROT_EXEC)
}

func munmap(buf []byte) error {
	if buf == nil {
		return nil
	}
	return unix.Munmap(buf)
}

func sliceBase(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
