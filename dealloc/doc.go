// Package dealloc frees native memory once the Go object that owns it becomes
// unreachable.
//
// Owners (arenas, self-owned buffers) register a Releaser with Track. The
// service attaches a runtime cleanup to the owner; when the collector finds
// the owner unreachable the handle is queued and the next sweep calls
// Release exactly once. Explicit release paths call Untrack (caller frees) or
// Free (service frees now); both cancel the pending cleanup, so a later
// notification for the same handle is a no-op.
//
// The service never extends an owner's lifetime. A Releaser must therefore not
// reference its owner, otherwise the owner stays reachable forever.
package dealloc
