// Package image implements the SCP binary format: a self-describing
// container shipping compiled functions into a running process.
//
// An image is a fixed 32-byte little-endian header, followed by the
// Functions, Types, and Dependencies tables, a null-terminated string
// pool, and finally the raw code blob. Decode validates every offset,
// count, and type code against the supplied buffer before anything else
// looks at it; a truncated or malformed buffer produces a structured
// error and never an invalid memory access.
//
// The checksum is CRC-32 (IEEE polynomial) over the header region with
// the checksum field zeroed, concatenated with the code blob. Checksum
// failures are reported distinctly from structural failures so callers
// can tell transit corruption from a broken producer.
//
// Encode is the producer boundary: it emits buffers Decode accepts, and
// re-encoding a decoded image reproduces the original bytes exactly.
package image
