package loader

import (
	"sync"
	"time"

	"go.uber.org/zap"

	scpload "github.com/scpkg/scpload"
	"github.com/scpkg/scpload/engine"
	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
	"github.com/scpkg/scpload/mem"
)

// DrainPolicy decides what happens when a retired module still has
// calls in flight after the drain timeout.
type DrainPolicy int

const (
	// DrainWait surfaces a drain timeout error to the caller and keeps
	// waiting in the background; the mapping is freed when the last
	// call exits.
	DrainWait DrainPolicy = iota
	// DrainForceFree releases the mapping at the timeout. The policy
	// violation is logged and counted, never silent.
	DrainForceFree
)

const defaultDrainTimeout = 30 * time.Second

// Loader owns the module registry and runs the load pipeline.
type Loader struct {
	engine         scpload.Engine
	logger         *zap.Logger
	metrics        *Metrics
	callChecks     bool
	strictReserved bool
	drainTimeout   time.Duration
	drainPolicy    DrainPolicy

	mu      sync.RWMutex
	modules map[string]*Module      // by registry name, current version only
	symbols map[string]*FunctionRef // process-wide exported names
}

// Option configures a Loader.
type Option func(*Loader)

// WithEngine replaces the native call engine.
func WithEngine(e scpload.Engine) Option {
	return func(ld *Loader) { ld.engine = e }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithCallChecks toggles call-time argument validation. Defaults to on;
// release builds that trust their producers can turn it off.
func WithCallChecks(on bool) Option {
	return func(ld *Loader) { ld.callChecks = on }
}

// WithDrainTimeout bounds how long retirement waits for in-flight calls.
func WithDrainTimeout(d time.Duration) Option {
	return func(ld *Loader) { ld.drainTimeout = d }
}

// WithDrainPolicy picks the behavior at the drain bound.
func WithDrainPolicy(p DrainPolicy) Option {
	return func(ld *Loader) { ld.drainPolicy = p }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(ld *Loader) { ld.metrics = m }
}

// WithStrictReserved makes non-zero reserved header bytes a load
// failure instead of a logged warning.
func WithStrictReserved() Option {
	return func(ld *Loader) { ld.strictReserved = true }
}

// New creates a Loader with an empty registry.
func New(opts ...Option) *Loader {
	ld := &Loader{
		engine:       engine.NewNative(),
		logger:       zap.NewNop(),
		callChecks:   true,
		drainTimeout: defaultDrainTimeout,
		modules:      make(map[string]*Module),
		symbols:      make(map[string]*FunctionRef),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load runs the full pipeline over buf and registers the result under
// name+version. Any stage failure leaves the registry unchanged and
// releases anything mapped along the way.
func (ld *Loader) Load(name string, version uint32, buf []byte) (*Module, error) {
	mod, err := ld.load(name, version, buf, false)
	ld.metrics.observeLoad(err)
	return mod, err
}

// HotReload validates and binds newBuf exactly as Load, then atomically
// swaps the exported symbols for name to the new module. The old module
// retires and is freed once its in-flight calls drain.
func (ld *Loader) HotReload(name string, version uint32, newBuf []byte) (*Module, error) {
	mod, err := ld.load(name, version, newBuf, true)
	ld.metrics.observeReload(err)
	return mod, err
}

func (ld *Loader) load(name string, version uint32, buf []byte, replace bool) (*Module, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRegistry, "empty module name")
	}

	// Stages 1-3: decode header and tables, verify checksum. No
	// resources held yet, failure needs no rollback.
	img, err := image.Decode(buf)
	if err != nil {
		return nil, err
	}
	if err := image.VerifyChecksum(buf); err != nil {
		return nil, err
	}
	if ld.strictReserved && len(img.Warnings) > 0 {
		return nil, errors.Format([]string{"reserved"}, "%s", img.Warnings[0])
	}
	for _, w := range img.Warnings {
		ld.logger.Warn("image validation warning",
			zap.String("module", name), zap.String("warning", w))
	}

	mod := newModule(ld, name, version, img)
	mod.setState(StateValidated)

	// Stage 4: map the code blob into executable memory.
	region, err := mem.Map(img.Code)
	if err != nil {
		return nil, err
	}
	mod.region = region
	mod.setState(StateMapped)

	// Stages 5-6 and registration happen under the registry lock so
	// dependency resolution, symbol collision checks, and the insert
	// are one atomic step against concurrent loads.
	ld.mu.Lock()
	old, exists := ld.modules[name]
	if exists && !replace {
		ld.mu.Unlock()
		region.Free()
		return nil, errors.InvalidState(name, "active", "load over an existing module (use HotReload)")
	}
	if !exists && replace {
		ld.mu.Unlock()
		region.Free()
		return nil, errors.NotFound(errors.PhaseRegistry, "module", name)
	}

	if err := ld.bind(mod, old); err != nil {
		ld.mu.Unlock()
		region.Free()
		return nil, err
	}
	mod.setState(StateBound)

	if replace {
		ld.removeSymbolsLocked(old)
	}
	ld.modules[name] = mod
	for fname, ref := range mod.funcs {
		ld.symbols[fname] = ref
	}
	mod.setState(StateActive)
	ld.mu.Unlock()

	ld.metrics.setActiveModules(len(ld.snapshot()))
	ld.logger.Info("module loaded",
		zap.String("module", name),
		zap.Uint32("version", version),
		zap.String("instance", mod.id.String()),
		zap.Int("functions", len(mod.funcs)),
		zap.Bool("thread_safe", img.Header.ThreadSafe()))

	if replace {
		old.retire()
		if err := ld.drain(old); err != nil {
			// The swap already happened; the caller learns the old
			// version is still draining.
			return mod, err
		}
	}
	return mod, nil
}

// Unload retires the named module and releases its mapping once
// in-flight calls drain, bounded by the drain timeout.
func (ld *Loader) Unload(name string) error {
	ld.mu.Lock()
	mod, ok := ld.modules[name]
	if !ok {
		ld.mu.Unlock()
		return errors.NotFound(errors.PhaseRegistry, "module", name)
	}
	delete(ld.modules, name)
	ld.removeSymbolsLocked(mod)
	mod.retire()
	ld.mu.Unlock()

	ld.metrics.observeUnload()
	ld.metrics.setActiveModules(len(ld.snapshot()))
	ld.logger.Info("module retired",
		zap.String("module", name),
		zap.Int64("in_flight", mod.InFlight()))

	return ld.drain(mod)
}

// LookupFunction resolves an exported name across all active modules.
func (ld *Loader) LookupFunction(name string) (*FunctionRef, error) {
	ld.mu.RLock()
	ref, ok := ld.symbols[name]
	ld.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "function", name)
	}
	return ref, nil
}

// Module returns the active module registered under name.
func (ld *Loader) Module(name string) (*Module, error) {
	ld.mu.RLock()
	mod, ok := ld.modules[name]
	ld.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "module", name)
	}
	return mod, nil
}

// Close unloads every module. Intended for process teardown; drain
// errors are collected but do not stop the sweep.
func (ld *Loader) Close() error {
	var firstErr error
	for _, mod := range ld.snapshot() {
		if err := ld.Unload(mod.name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ld *Loader) snapshot() []*Module {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	mods := make([]*Module, 0, len(ld.modules))
	for _, m := range ld.modules {
		mods = append(mods, m)
	}
	return mods
}

func (ld *Loader) removeSymbolsLocked(mod *Module) {
	for fname, ref := range ld.symbols {
		if ref.mod == mod {
			delete(ld.symbols, fname)
		}
	}
}

// drain waits for a retired module's in-flight calls, bounded by the
// configured timeout. The outcome is always observable: a clean drain
// frees the mapping, a forced free is logged and counted, and DrainWait
// hands the timeout error to the caller while a background watcher
// completes the free.
func (ld *Loader) drain(mod *Module) error {
	select {
	case <-mod.drained:
		ld.freeModule(mod, "drained")
		return nil
	default:
	}

	timer := time.NewTimer(ld.drainTimeout)
	defer timer.Stop()

	select {
	case <-mod.drained:
		ld.freeModule(mod, "drained")
		return nil
	case <-timer.C:
	}

	inflight := mod.InFlight()
	ld.metrics.observeDrainTimeout()

	switch ld.drainPolicy {
	case DrainForceFree:
		ld.logger.Error("drain timeout, force-freeing module mapping",
			zap.String("module", mod.name),
			zap.Int64("in_flight", inflight),
			zap.Duration("bound", ld.drainTimeout))
		ld.metrics.observeForcedFree()
		ld.freeModule(mod, "force-freed")
		return nil
	default:
		ld.logger.Warn("drain timeout, waiting for in-flight calls",
			zap.String("module", mod.name),
			zap.Int64("in_flight", inflight),
			zap.Duration("bound", ld.drainTimeout))
		go func() {
			<-mod.drained
			ld.freeModule(mod, "late drain")
		}()
		return errors.DrainTimeout(mod.name, inflight)
	}
}

func (ld *Loader) freeModule(mod *Module, why string) {
	if err := mod.free(); err != nil {
		ld.logger.Error("failed to release module mapping",
			zap.String("module", mod.name), zap.Error(err))
		return
	}
	ld.logger.Debug("module mapping released",
		zap.String("module", mod.name), zap.String("reason", why))
}
