package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilLog2(t *testing.T) {
	cases := map[uint64]int{
		0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 1024: 10, 1025: 11,
		MaxIndex: 60, math.MaxUint64: 64,
	}
	for x, want := range cases {
		assert.Equal(t, want, CeilLog2(x), "x=%d", x)
	}
}

func TestMulUint64(t *testing.T) {
	t.Run("exact products within bound", func(t *testing.T) {
		pairs := [][2]uint64{
			{0, 0}, {0, MaxIndex}, {1, MaxIndex}, {7, 9},
			{1 << 30, 1 << 30}, {3, 1 << 58}, {1000003, 999983},
		}
		for _, p := range pairs {
			got, ok := MulUint64(p[0], p[1])
			assert.True(t, ok, "%d*%d", p[0], p[1])
			assert.Equal(t, p[0]*p[1], got)
		}
	})

	t.Run("operand above max index", func(t *testing.T) {
		got, ok := MulUint64(MaxIndex+1, 1)
		assert.False(t, ok)
		assert.Zero(t, got)

		got, ok = MulUint64(0, math.MaxUint64)
		assert.False(t, ok)
		assert.Zero(t, got)
	})

	t.Run("product too large", func(t *testing.T) {
		got, ok := MulUint64(1<<31, 1<<30)
		assert.False(t, ok)
		assert.Zero(t, got)

		got, ok = MulUint64(MaxIndex, 2)
		assert.False(t, ok)
		assert.Zero(t, got)
	})

	t.Run("conservative precheck", func(t *testing.T) {
		// 3 * (2^58 + 1) fits in 2^60 numerically, but ceil_log2 sums to 61.
		got, ok := MulUint64(3, (1<<58)+1)
		assert.False(t, ok)
		assert.Zero(t, got)
	})
}

func TestMulInt(t *testing.T) {
	got, ok := MulInt(12, 12)
	assert.True(t, ok)
	assert.Equal(t, 144, got)

	_, ok = MulInt(-1, 5)
	assert.False(t, ok)

	_, ok = MulInt(math.MaxInt, 2)
	assert.False(t, ok)
}

func TestAddInt(t *testing.T) {
	got, ok := AddInt(40, 2)
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	_, ok = AddInt(-1, 2)
	assert.False(t, ok)
}
