package conv

import "math/bits"

const (
	// MaxIndexBits bounds every dimension and every checked product.
	MaxIndexBits = 60

	// MaxIndex is the largest representable dimension or size.
	MaxIndex uint64 = 1 << MaxIndexBits
)

// CeilLog2 returns ceil(log2(x)), with CeilLog2(0) == CeilLog2(1) == 0.
func CeilLog2(x uint64) int {
	if x <= 1 {
		return 0
	}
	return bits.Len64(x - 1)
}

// MulUint64 returns a*b and true, or 0 and false when either operand exceeds
// MaxIndex or the product could exceed 2^60.
func MulUint64(a, b uint64) (uint64, bool) {
	if a > MaxIndex || b > MaxIndex {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if CeilLog2(a)+CeilLog2(b) > MaxIndexBits {
		return 0, false
	}
	return a * b, true
}

// MulInt is MulUint64 for platform-sized ints. Negative operands are refused.
func MulInt(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	c, ok := MulUint64(uint64(a), uint64(b))
	if !ok || c > uint64(maxInt) {
		return 0, false
	}
	return int(c), true
}

// AddInt returns a+b for non-negative operands bounded by MaxIndex.
func AddInt(a, b int) (int, bool) {
	if a < 0 || b < 0 || uint64(a) > MaxIndex || uint64(b) > MaxIndex {
		return 0, false
	}
	c := uint64(a) + uint64(b)
	if c > uint64(maxInt) {
		return 0, false
	}
	return int(c), true
}

const maxInt = int(^uint(0) >> 1)
