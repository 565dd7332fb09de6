// Package errors provides structured error types for the scpload library.
//
// Errors are categorized by Phase (which loading stage failed) and Kind
// (error category). The Error type includes the offending path, value,
// and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindBounds).
//		Path("functions", "3", "name_offset").
//		Detail("offset past end of string table").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 4096, 128)
//	err := errors.ChecksumMismatch(declared, computed)
//
// All errors implement the standard error interface and support
// errors.Is/As. The Checksum kind is the only retryable one: it signals
// transit corruption rather than a structurally invalid producer, so a
// caller may re-fetch the image and try again.
package errors
