// Package resource governs the shared resources of a matrix runtime.
//
//   - Memory: every block the allocator hands out is reserved here first.
//     Reservation is non-blocking; a denied reservation surfaces to callers
//     as an out-of-memory error they can recover from.
//   - Workers: bounds how many deferred-work finalizations run at once.
//   - IO: a token bucket throttling snapshot reads and writes.
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	    MaxWorkers:       4,
//	})
//
//	if err := rc.AcquireMemory(4096); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(4096)
//
// All methods are safe for concurrent use, and a nil *Controller is a valid
// unlimited controller.
package resource
