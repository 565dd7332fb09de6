package image

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/scpkg/scpload/errors"
)

// Checksum layout within the fixed header.
const (
	checksumOffset = 24
	checksumSize   = 4
)

// Checksum computes the integrity digest of a complete image buffer:
// CRC-32 (IEEE 802.3 polynomial, the stdlib ChecksumIEEE parameters)
// over the header region with the checksum field zeroed, followed by
// the code blob. Producers and loaders must agree on these parameters
// bit-for-bit.
func Checksum(buf []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(buf[:checksumOffset])
	h.Write(make([]byte, checksumSize))
	h.Write(buf[checksumOffset+checksumSize:])
	return h.Sum32()
}

// VerifyChecksum recomputes the digest of buf and compares it against
// the declared checksum field. A mismatch means the bytes were damaged
// in transit rather than structurally malformed, so it is reported as a
// distinct, retryable error kind. The buffer must be at least the fixed
// header size; run Decode first to establish that.
func VerifyChecksum(buf []byte) error {
	if len(buf) < HeaderFixedSize {
		return errors.Format(nil, "buffer too short for header: %d bytes", len(buf))
	}
	declared := binary.LittleEndian.Uint32(buf[checksumOffset:])
	computed := Checksum(buf)
	if computed != declared {
		return errors.ChecksumMismatch(declared, computed)
	}
	return nil
}
