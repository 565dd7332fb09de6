// Package scpload loads SCP images: self-describing binary containers
// that ship compiled functions into a running process without
// recompilation or restart.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	scpload/       Root package with the Engine call-dispatch interface
//	├── loader/    High-level API: registry, load/hot-reload/unload, invoke
//	├── image/     SCP binary format: decode, encode, checksum, validation
//	├── mem/       Executable memory mapping with W^X discipline
//	├── engine/    Native call dispatch for mapped code
//	└── errors/    Structured error types for the load pipeline
//
// # Quick Start
//
// Load an image and call into it:
//
//	ld := loader.New()
//	defer ld.Close()
//
//	mod, err := ld.Load("mathlib", 1, buf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ref, err := ld.LookupFunction("add")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := ref.Invoke(ctx, int32(2), int32(3))
//
// # Loading Pipeline
//
// Load runs a synchronous pipeline on the calling goroutine: header
// decode, table decode, checksum verification, executable mapping,
// relocation and dependency binding, type checking, and finally
// registration. Any stage failure rolls the whole operation back; a
// partially valid module is never registered or callable.
//
// # Hot Reload
//
// HotReload validates and binds a new image exactly as Load does, then
// atomically swaps the exported symbols for that module name. Calls in
// flight against the old version finish against the old code; the old
// mapping is freed once its call count drains to zero.
//
// # Thread Safety
//
// Loader and its registry are safe for concurrent use. Whether calls
// into one module may overlap is declared by the image itself: modules
// without the thread_safe flag are serialized by the loader, and an
// overlapping call is reported as a concurrency violation rather than
// allowed to race.
package scpload
