// Package engine dispatches calls into mapped native code.
//
// The Native engine casts a bound entry address to a Go function value,
// the same funcval reinterpretation goloader-style loaders use to call
// hot-loaded code. It therefore only handles code generated against the
// Go internal calling convention; images carrying code for a foreign
// convention need a trampoline engine supplied by the embedder.
//
// The loader performs all type checking before an engine runs. An
// engine's only remaining duty is shape dispatch: picking the concrete
// function type matching the declared signature, or rejecting
// signatures it has no dispatch path for.
package engine
