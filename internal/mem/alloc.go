package mem

import (
	"unsafe"
)

// Alignment is the byte alignment used for accelerated allocations (AVX-512 friendly).
const Alignment = 64

// AllocAligned allocates a byte slice of the given size with 64-byte alignment.
// The returned slice has len == cap == size.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	// Allocate size + alignment to ensure we can find an aligned offset
	totalSize := size + Alignment
	buf := make([]byte, totalSize)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := int((Alignment - (addr & (Alignment - 1))) & (Alignment - 1))

	return buf[offset : offset+size : offset+size]
}

// Slice returns a typed view of n elements over block. The view's capacity
// covers the whole block so that Block can recover it.
func Slice[T any](block []byte, n int) []T {
	if block == nil {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	ptr := unsafe.Pointer(unsafe.SliceData(block)) //nolint:gosec // typed view over pooled memory
	capacity := cap(block) / size
	return unsafe.Slice((*T)(ptr), capacity)[:n:capacity]
}

// Block recovers the byte block behind a view created by Slice. When the
// element size does not divide the block, Slice rounded the view's capacity
// down; the block's power-of-two capacity is restored here.
func Block[T any](s []T) []byte {
	if s == nil {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := cap(s) * size
	if n&(n-1) != 0 {
		if c := ClassOf(n); c >= 0 {
			n = 1 << c
		}
	}
	ptr := unsafe.Pointer(unsafe.SliceData(s)) //nolint:gosec // typed view over pooled memory
	return unsafe.Slice((*byte)(ptr), n)
}
