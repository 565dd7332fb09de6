package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which loading stage produced the error
type Phase string

const (
	PhaseDecode   Phase = "decode"   // header and table parsing
	PhaseChecksum Phase = "checksum" // integrity verification
	PhaseMap      Phase = "map"      // executable memory mapping
	PhaseBind     Phase = "bind"     // relocation and dependency resolution
	PhaseCall     Phase = "call"     // invocation through a bound reference
	PhaseRegistry Phase = "registry" // module registry transitions
	PhaseEncode   Phase = "encode"   // image building
)

// Kind categorizes the error
type Kind string

const (
	KindFormat          Kind = "format"           // malformed magic/version/size
	KindBounds          Kind = "bounds"           // offset outside its buffer or table
	KindType            Kind = "type"             // unknown or inconsistent type code
	KindChecksum        Kind = "checksum"         // digest mismatch (corruption, retryable)
	KindAllocation      Kind = "allocation"       // memory mapping failure
	KindVersion         Kind = "version"          // unmet dependency version
	KindDuplicateSymbol Kind = "duplicate_symbol" // function name declared twice
	KindConcurrency     Kind = "concurrency"      // non-thread-safe module invoked concurrently
	KindDrainTimeout    Kind = "drain_timeout"    // retirement exceeded the configured bound
	KindNotFound        Kind = "not_found"        // unknown module or function name
	KindState           Kind = "state"            // operation invalid for current lifecycle state
	KindInvalidInput    Kind = "invalid_input"    // caller-supplied argument rejected
)

// Error is the structured error type used throughout the loader
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether the failure indicates transit corruption
// rather than a structurally invalid producer. Callers may re-fetch and
// retry a retryable load; a non-retryable one will fail the same way
// every time.
func (e *Error) Retryable() bool {
	return e.Kind == KindChecksum
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Format creates a structural format error
func Format(path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindFormat,
		Path:   path,
		Detail: detail,
	}
}

// OutOfBounds creates a bounds error for an offset against its table or buffer
func OutOfBounds(phase Phase, path []string, offset, limit uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBounds,
		Path:   path,
		Detail: fmt.Sprintf("offset %d out of bounds (limit %d)", offset, limit),
		Value:  offset,
	}
}

// UnknownType creates an error for a type code outside the known enumeration
func UnknownType(phase Phase, path []string, code byte) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindType,
		Path:   path,
		Detail: fmt.Sprintf("unknown type code 0x%02x", code),
		Value:  code,
	}
}

// TypeMismatch creates a call-shape mismatch error
func TypeMismatch(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindType,
		Path:   path,
		Detail: detail,
	}
}

// ChecksumMismatch creates a digest mismatch error
func ChecksumMismatch(declared, computed uint32) *Error {
	return &Error{
		Phase:  PhaseChecksum,
		Kind:   KindChecksum,
		Detail: fmt.Sprintf("declared 0x%08x, computed 0x%08x", declared, computed),
		Value:  computed,
	}
}

// AllocationFailed creates a memory mapping failure error
func AllocationFailed(size uint64, cause error) *Error {
	return &Error{
		Phase:  PhaseMap,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to map %d bytes", size),
		Cause:  cause,
	}
}

// VersionUnmet creates an unmet dependency error
func VersionUnmet(name string, required, have uint32) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindVersion,
		Path:   []string{name},
		Detail: fmt.Sprintf("requires version >= %d, have %d", required, have),
	}
}

// DependencyMissing creates an error for an unregistered dependency
func DependencyMissing(name string, required uint32) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindVersion,
		Path:   []string{name},
		Detail: fmt.Sprintf("dependency not registered (requires version >= %d)", required),
	}
}

// DuplicateSymbol creates an error for a name declared twice in one module
func DuplicateSymbol(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicateSymbol,
		Path:   []string{name},
		Detail: "function name declared more than once",
	}
}

// ConcurrencyViolation creates an error for overlapping calls into a
// module whose thread_safe flag is clear
func ConcurrencyViolation(module, function string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindConcurrency,
		Path:   []string{module, function},
		Detail: "concurrent invocation of a non-thread-safe module",
	}
}

// DrainTimeout creates an error for a retirement that exceeded its bound
func DrainTimeout(module string, inflight int64) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindDrainTimeout,
		Path:   []string{module},
		Detail: fmt.Sprintf("%d calls still in flight after drain bound", inflight),
		Value:  inflight,
	}
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidState creates an error for an operation against the wrong lifecycle state
func InvalidState(module, state, op string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindState,
		Path:   []string{module},
		Detail: fmt.Sprintf("cannot %s while %s", op, state),
	}
}

// InvalidInput creates an invalid caller input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
