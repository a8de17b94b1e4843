// Package gbcore is the storage core of a sparse-matrix graph engine.
//
// A Matrix holds its entries in a compressed column structure (CSC, or
// hypersparse when few columns are occupied) and defers every change:
//
//   - Insert appends a pending tuple. Tuples may arrive in any order and may
//     repeat a coordinate; nothing is checked until Finalize.
//   - Delete drops matching pending tuples at once and turns a compressed
//     entry into a zombie, a tombstone that keeps its slot until Finalize.
//   - Finalize sorts the pending tuples, combines duplicates with the batch's
//     dedup operator (last write wins by default), merges them with the
//     compressed entries and purges zombies, in O(P log P + N).
//
// # Runtime
//
// A Runtime owns what matrices share: a size-classed free pool behind a
// memory-accounting allocator, the queue of matrices with outstanding work,
// and per-worker scratch workspaces.
//
//	rt, err := gbcore.Init(gbcore.WithMemoryLimit(1 << 30))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	m, _ := rt.NewMatrix(types.FP64, 5, 5)
//	_ = m.InsertFloat64(1, 1, 10)
//	_ = m.InsertFloat64(1, 1, 20) // overwrites at Finalize
//	_ = rt.FinalizeAll(ctx)
//
// # Errors
//
// Every error wraps one of ErrInvalidArgument, ErrDomainMismatch,
// ErrOverflow, ErrOutOfMemory, ErrCorruption or ErrNotFinalized. Out of
// memory is always recoverable: the failed call leaves its matrix intact.
// Built with the gbcore_debug tag, corruption panics instead.
//
// # Concurrency
//
// Matrices carry no lock. Mutating a matrix (and reading one with pending
// tuples, which finalizes it) requires exclusive access; finalized matrices
// may be read concurrently, and distinct matrices may be used from
// different goroutines freely.
//
// # Shallow Copies
//
// ShallowCopy borrows another matrix's buffers. Writes through the copy
// detach the component first, and buffers on loan never return to the free
// pool, so neither side can observe the other's changes.
package gbcore
