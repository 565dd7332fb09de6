package loader

import (
	"context"
	"strings"
	"time"

	scpload "github.com/scpkg/scpload"
	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
)

// FunctionRef is a bound, callable reference to one exported function.
// References resolved before a hot reload keep pointing at the old
// module; calls through them succeed only while that module is Active.
type FunctionRef struct {
	mod   *Module
	entry *image.FunctionEntry
	site  scpload.CallSite
}

// Name returns the exported function name.
func (r *FunctionRef) Name() string {
	return r.entry.Name
}

// Module returns the module the reference is bound into.
func (r *FunctionRef) Module() *Module {
	return r.mod
}

// Signature renders the declared call shape, e.g. "add(int32, int32) int32".
func (r *FunctionRef) Signature() string {
	var b strings.Builder
	b.WriteString(r.entry.Name)
	b.WriteByte('(')
	for i, p := range r.entry.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if r.entry.Return != image.Void {
		b.WriteByte(' ')
		b.WriteString(r.entry.Return.String())
	}
	return b.String()
}

// Invoke dispatches a call through the reference. The in-flight count
// is held for the duration and released on every exit path, so a
// retired module drains correctly even when calls fail. For modules
// without the thread_safe flag, an overlapping call from another
// goroutine is rejected as a concurrency violation before anything
// executes.
func (r *FunctionRef) Invoke(ctx context.Context, args ...any) (any, error) {
	mod := r.mod
	ld := mod.loader

	if !mod.enterCall() {
		return nil, errors.InvalidState(mod.name, mod.State().String(), "invoke")
	}
	defer mod.exitCall()

	if !mod.img.Header.ThreadSafe() {
		if !mod.callMu.TryLock() {
			ld.metrics.observeConcurrencyViolation()
			return nil, errors.ConcurrencyViolation(mod.name, r.entry.Name)
		}
		defer mod.callMu.Unlock()
	}

	if ld.callChecks {
		if err := checkArgs(r, args); err != nil {
			return nil, err
		}
	}

	ld.metrics.callStarted()
	start := time.Now()
	result, err := ld.engine.Call(ctx, r.site, args)
	ld.metrics.callFinished(time.Since(start))
	return result, err
}
