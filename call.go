package scpload

import (
	"context"

	"github.com/scpkg/scpload/image"
)

// CallSite describes one bound entry point: the absolute address of the
// first instruction after mapping, plus the declared call shape. The
// address is computed at bind time from the mapped base and the entry
// offset; it is never stored in decoded tables.
type CallSite struct {
	Params     []image.TypeCode
	Addr       uintptr
	Return     image.TypeCode
	Convention image.CallConv
}

// Engine dispatches a call into mapped native code. The loader
// guarantees the argument list already matches the declared signature
// when call-time checking is enabled; an engine may still reject shapes
// it cannot dispatch.
type Engine interface {
	Call(ctx context.Context, site CallSite, args []any) (any, error)
}
