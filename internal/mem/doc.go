// Package mem provides the allocation layer every matrix component goes through.
//
// # Free Pool
//
// Pool caches freed blocks by power-of-two size class (8 bytes up to 2^60).
// Matrix algorithms allocate many short-lived, same-sized buffers per call;
// handing those back to the pool instead of the garbage collector keeps the
// steady state allocation free.
//
// # Allocator
//
// Allocator combines the pool with memory accounting against a resource
// controller (exhaustion surfaces as a recoverable out-of-memory error) and,
// when the accelerator switch is on, 64-byte aligned allocation.
//
// # Typed Views
//
// Blocks are plain byte slices. Slice and Block convert between a block and a
// typed view of it; T must not contain pointers.
package mem
