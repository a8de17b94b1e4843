package mem

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/resource"
	"github.com/hupe1980/gbcore/internal/status"
)

// Allocator hands out class-sized blocks, pool first.
type Allocator struct {
	pool    *Pool
	rc      *resource.Controller
	aligned func() bool

	allocs atomic.Int64
	hits   atomic.Int64
}

// NewAllocator creates an allocator. rc may be nil (unlimited); aligned
// reports whether new blocks must be 64-byte aligned and may be nil.
func NewAllocator(pool *Pool, rc *resource.Controller, aligned func() bool) *Allocator {
	if pool == nil {
		pool = NewPool(0)
	}
	return &Allocator{pool: pool, rc: rc, aligned: aligned}
}

// Pool returns the allocator's free pool.
func (a *Allocator) Pool() *Pool { return a.pool }

// Alloc returns a block of at least size bytes with len == size.
// The contents are unspecified.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative allocation size %d", status.ErrInvalidArgument, size)
	}
	if size == 0 {
		return nil, nil
	}

	class := ClassOf(size)
	if class < 0 {
		return nil, fmt.Errorf("%w: allocation of %d bytes", status.ErrOverflow, size)
	}

	a.allocs.Add(1)
	if b, ok := a.pool.Get(class); ok {
		a.hits.Add(1)
		return b[:size], nil
	}

	n := int64(1) << class
	if err := a.rc.AcquireMemory(n); err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", status.ErrOutOfMemory, n, err)
	}

	var b []byte
	if a.aligned != nil && a.aligned() {
		b = AllocAligned(1 << class)
	} else {
		b = make([]byte, 1<<class)
	}
	return b[:size], nil
}

// Free returns a block to the pool. Blocks the pool cannot take are dropped
// and their reservation released. A block that did not come from Alloc is
// reported as corruption.
func (a *Allocator) Free(b []byte) error {
	if b == nil {
		return nil
	}

	class := classOfCap(cap(b))
	if class < 0 {
		return status.Corrupt("freeing a block of capacity %d that no allocator produced", cap(b))
	}

	if !a.pool.Put(b[:cap(b)], class) {
		a.rc.ReleaseMemory(int64(1) << class)
	}
	return nil
}

// Discard drops a block without pooling it and releases its reservation.
// Used for blocks that may still be referenced elsewhere.
func (a *Allocator) Discard(b []byte) error {
	if b == nil {
		return nil
	}
	class := classOfCap(cap(b))
	if class < 0 {
		return status.Corrupt("discarding a block of capacity %d that no allocator produced", cap(b))
	}
	a.rc.ReleaseMemory(int64(1) << class)
	return nil
}

// Close finalizes the pool and releases the reservations it held.
func (a *Allocator) Close() {
	a.rc.ReleaseMemory(a.pool.Finalize())
}

// Stats returns allocation calls and how many were served by the pool.
func (a *Allocator) Stats() (allocs, poolHits int64) {
	return a.allocs.Load(), a.hits.Load()
}

// InUse returns bytes reserved against the controller, including cached blocks.
func (a *Allocator) InUse() int64 {
	return a.rc.MemoryUsage()
}

// AllocSlice allocates a typed slice of n elements.
func AllocSlice[T any](a *Allocator, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	var zero T
	size, ok := conv.MulInt(n, int(unsafe.Sizeof(zero)))
	if !ok {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", status.ErrOverflow, n, unsafe.Sizeof(zero))
	}
	b, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	return Slice[T](b, n), nil
}

// FreeSlice returns a typed slice obtained from AllocSlice.
func FreeSlice[T any](a *Allocator, s []T) error {
	return a.Free(Block(s))
}

// DiscardSlice is Discard for a typed slice.
func DiscardSlice[T any](a *Allocator, s []T) error {
	return a.Discard(Block(s))
}
