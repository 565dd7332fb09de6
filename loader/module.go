package loader

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/scpkg/scpload/image"
	"github.com/scpkg/scpload/mem"
)

// State is a module's lifecycle position. Transitions only move
// forward: Unloaded through Active, then Retired once superseded or
// unloaded.
type State int32

const (
	StateUnloaded  State = iota
	StateValidated       // decode, tables, and checksum passed
	StateMapped          // code blob copied into executable memory
	StateBound           // entry points relocated, dependencies resolved
	StateActive          // registered and callable
	StateRetired         // draining; freed when in-flight calls reach zero
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateValidated:
		return "validated"
	case StateMapped:
		return "mapped"
	case StateBound:
		return "bound"
	case StateActive:
		return "active"
	case StateRetired:
		return "retired"
	}
	return "invalid"
}

// Module is one loaded SCP image: its validated tables, its executable
// mapping, and its bound function table. A Module exclusively owns its
// mapping; the registry holds a non-owning reference for lookup.
type Module struct {
	id      uuid.UUID
	name    string
	version uint32

	img    *image.Image
	region *mem.Region
	funcs  map[string]*FunctionRef

	state    atomic.Int32
	inflight atomic.Int64

	// callMu serializes invocations when the image's thread_safe flag
	// is clear. Taken with TryLock so overlap is detected, not blocked.
	callMu sync.Mutex

	drainOnce sync.Once
	drained   chan struct{}

	loader *Loader
}

func newModule(ld *Loader, name string, version uint32, img *image.Image) *Module {
	return &Module{
		id:      uuid.New(),
		name:    name,
		version: version,
		img:     img,
		loader:  ld,
		drained: make(chan struct{}),
	}
}

// ID is the instance identity. Two loads of the same buffer produce two
// distinct IDs; the loader never deduplicates by content.
func (m *Module) ID() uuid.UUID { return m.id }

// Name returns the registry name the module was loaded under.
func (m *Module) Name() string { return m.name }

// Version returns the module's registered version.
func (m *Module) Version() uint32 { return m.version }

// State returns the current lifecycle state.
func (m *Module) State() State {
	return State(m.state.Load())
}

// InFlight returns the number of calls currently executing in the module.
func (m *Module) InFlight() int64 {
	return m.inflight.Load()
}

// Image exposes the decoded tables for inspection.
func (m *Module) Image() *image.Image { return m.img }

// Function returns the bound reference for an exported function, or nil.
func (m *Module) Function(name string) *FunctionRef {
	return m.funcs[name]
}

func (m *Module) setState(s State) {
	m.state.Store(int32(s))
}

// enterCall registers an in-flight call. The count is incremented
// before the state check so a concurrent retire either sees the call or
// the call sees the retirement; neither is missed.
func (m *Module) enterCall() bool {
	m.inflight.Add(1)
	if m.State() != StateActive {
		m.exitCall()
		return false
	}
	return true
}

// exitCall runs on every exit path, success or failure. The last call
// out of a retired module signals the drain.
func (m *Module) exitCall() {
	if m.inflight.Add(-1) == 0 && m.State() == StateRetired {
		m.signalDrained()
	}
}

// retire moves the module out of Active. Safe only under the loader's
// registry lock once sym removal has happened; in-flight calls proceed.
func (m *Module) retire() {
	m.setState(StateRetired)
	if m.inflight.Load() == 0 {
		m.signalDrained()
	}
}

func (m *Module) signalDrained() {
	m.drainOnce.Do(func() { close(m.drained) })
}

// free releases the executable mapping. Idempotent.
func (m *Module) free() error {
	if m.region == nil {
		return nil
	}
	return m.region.Free()
}
