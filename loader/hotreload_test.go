package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
	"github.com/scpkg/scpload/loader"
)

func TestHotReloadSwapsSymbols(t *testing.T) {
	ld := loader.New(loader.WithEngine(&stubEngine{}))
	defer ld.Close()

	v1, err := ld.Load("foo", 1, tickImage(t, 0, 0))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	v2, err := ld.HotReload("foo", 2, tickImage(t, 8, 0))
	if err != nil {
		t.Fatalf("HotReload: %v", err)
	}

	if v1.State() != loader.StateRetired {
		t.Errorf("old module state = %v, want retired", v1.State())
	}
	if v2.State() != loader.StateActive {
		t.Errorf("new module state = %v, want active", v2.State())
	}

	ref, err := ld.LookupFunction("tick")
	if err != nil {
		t.Fatalf("LookupFunction after reload: %v", err)
	}
	if ref.Module().Version() != 2 {
		t.Errorf("lookup resolves to version %d, want 2", ref.Module().Version())
	}

	mod, err := ld.Module("foo")
	if err != nil || mod.ID() != v2.ID() {
		t.Errorf("registry holds %v, want the new instance", mod)
	}
}

func TestHotReloadUnknownModule(t *testing.T) {
	ld := loader.New(loader.WithEngine(&stubEngine{}))
	defer ld.Close()

	_, err := ld.HotReload("ghost", 1, tickImage(t, 0, 0))
	wantKind(t, err, errors.PhaseRegistry, errors.KindNotFound)
}

func TestHotReloadValidationFailureKeepsOldVersion(t *testing.T) {
	ld := loader.New(loader.WithEngine(&stubEngine{}))
	defer ld.Close()

	if _, err := ld.Load("foo", 1, tickImage(t, 0, 0)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad := tickImage(t, 0, 0)
	bad[0] = 0xFF
	_, err := ld.HotReload("foo", 2, bad)
	if err == nil {
		t.Fatal("expected reload failure")
	}
	wantKind(t, err, errors.PhaseDecode, errors.KindFormat)

	ref, err := ld.LookupFunction("tick")
	if err != nil {
		t.Fatalf("LookupFunction: %v", err)
	}
	if ref.Module().Version() != 1 {
		t.Errorf("failed reload replaced the module: version %d", ref.Module().Version())
	}
}

func TestHotReloadInFlightCallCompletesAgainstOldVersion(t *testing.T) {
	gate := make(chan struct{})
	eng := &stubEngine{result: int32(1), gate: gate, started: make(chan struct{}, 1)}
	ld := loader.New(
		loader.WithEngine(eng),
		loader.WithDrainTimeout(20*time.Millisecond),
	)
	defer ld.Close()

	v1, err := ld.Load("foo", 1, tickImage(t, 0, image.FlagThreadSafe))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oldRef, err := ld.LookupFunction("tick")
	if err != nil {
		t.Fatalf("LookupFunction: %v", err)
	}

	inFlight := make(chan error, 1)
	go func() {
		_, err := oldRef.Invoke(context.Background())
		inFlight <- err
	}()
	<-eng.started

	// Reload mid-call. The swap happens; the drain times out because
	// the old call is still blocked, and DrainWait reports that.
	_, err = ld.HotReload("foo", 2, tickImage(t, 8, image.FlagThreadSafe))
	wantKind(t, err, errors.PhaseRegistry, errors.KindDrainTimeout)

	newRef, err := ld.LookupFunction("tick")
	if err != nil {
		t.Fatalf("LookupFunction after swap: %v", err)
	}
	if newRef.Module().Version() != 2 {
		t.Errorf("lookup resolves to version %d, want 2", newRef.Module().Version())
	}

	// The in-flight call finishes successfully against the old code.
	close(gate)
	if err := <-inFlight; err != nil {
		t.Errorf("in-flight call: %v", err)
	}

	// New calls through the stale reference are rejected.
	if _, err := oldRef.Invoke(context.Background()); err == nil {
		t.Error("stale reference should not be invokable after retirement")
	}

	waitInFlightZero(t, v1)
}

func TestUnloadDrainForceFree(t *testing.T) {
	gate := make(chan struct{})
	eng := &stubEngine{gate: gate, started: make(chan struct{}, 1)}
	ld := loader.New(
		loader.WithEngine(eng),
		loader.WithDrainTimeout(20*time.Millisecond),
		loader.WithDrainPolicy(loader.DrainForceFree),
	)

	if _, err := ld.Load("m", 1, tickImage(t, 0, image.FlagThreadSafe)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ref, err := ld.LookupFunction("tick")
	if err != nil {
		t.Fatalf("LookupFunction: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := ref.Invoke(context.Background())
		done <- err
	}()
	<-eng.started

	// Force-free does not surface an error; the violation is recorded.
	if err := ld.Unload("m"); err != nil {
		t.Fatalf("Unload under force-free: %v", err)
	}

	close(gate)
	<-done
}

func TestUnloadImmediateWhenIdle(t *testing.T) {
	ld := loader.New(
		loader.WithEngine(&stubEngine{}),
		loader.WithDrainTimeout(time.Hour), // must not be reached
	)

	if _, err := ld.Load("m", 1, emptyImage(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	start := time.Now()
	if err := ld.Unload("m"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("idle unload should not wait for the drain bound")
	}
}

func waitInFlightZero(t *testing.T, mod *loader.Module) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mod.InFlight() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("in-flight count stuck at %d", mod.InFlight())
		}
		time.Sleep(time.Millisecond)
	}
}
