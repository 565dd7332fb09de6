// Package loader is the high-level API for loading SCP images and
// calling into them.
//
// A Loader owns a process-wide registry of modules keyed by name. Load
// runs the full pipeline on the calling goroutine: decode, checksum,
// executable mapping, relocation, dependency binding, and type
// checking. Every stage either produces validated state for the next or
// aborts the whole load, releasing anything mapped so far; a partially
// valid module is never registered.
//
// HotReload validates a replacement image the same way, then atomically
// swaps the module's exported symbols. The superseded module is retired
// and its mapping freed once in-flight calls drain, bounded by the
// configured drain timeout and policy.
//
// Registry reads may proceed concurrently; mutations are serialized.
// Calls into a module without the thread_safe flag are serialized per
// module, and an overlapping call is rejected as a concurrency
// violation instead of racing.
package loader
