package workspace

import (
	"math"
	"testing"

	"github.com/hupe1980/gbcore/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMark_Rounds(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(8))
	assert.Equal(t, int64(1), m.Flag())

	m.Mark(3)
	assert.True(t, m.IsMarked(3))
	assert.False(t, m.IsMarked(4))

	m.Reset(1, 0)
	assert.False(t, m.IsMarked(3), "new round forgets old marks")
	m.Mark(4)
	assert.True(t, m.IsMarked(4))
	assert.Zero(t, m.Clears())
}

func TestMark_ResetIncrementNeverClearsUntilOverflow(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(16))

	for i := 0; i < 10000; i++ {
		m.Mark(i % 16)
		m.Reset(1, 0)
	}
	assert.Zero(t, m.Clears())
	assert.Equal(t, int64(10001), m.Flag())

	m.flag = math.MaxInt64 - 3
	m.Mark(0)
	m.Reset(1, 0)
	m.Reset(1, 0)
	assert.Zero(t, m.Clears())
	assert.Equal(t, int64(math.MaxInt64-1), m.Flag())

	m.Reset(1, 0)
	assert.Equal(t, int64(math.MaxInt64), m.Flag())
	assert.Zero(t, m.Clears())

	m.Reset(1, 0)
	assert.Equal(t, int64(1), m.Clears(), "exactly one physical clear")
	assert.Equal(t, int64(1), m.Flag())

	m.Reset(1, 0)
	assert.Equal(t, int64(1), m.Clears())
	assert.Equal(t, int64(2), m.Flag())
	for i := 0; i < m.Len(); i++ {
		assert.False(t, m.IsMarked(i))
	}
}

func TestMark_ResetZeroIncrementClears(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(4))
	m.Set(2, 5)

	assert.Equal(t, int64(1), m.Reset(0, 0))
	assert.Equal(t, int64(1), m.Clears())
	assert.Zero(t, m.Get(2))
}

func TestMark_ResetWithRange(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(4))

	f := m.Reset(1, 10)
	m.Set(0, f+9)
	next := m.Reset(10, 10)
	assert.Greater(t, next, f+9)
	assert.True(t, m.Clear())

	m.flag = math.MaxInt64 - 20
	m.Reset(1, 100)
	assert.Equal(t, int64(1), m.Flag())
	assert.Equal(t, int64(1), m.Clears())
}

func TestMark_Ensure(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(2))
	m.Mark(1)
	require.NoError(t, m.Ensure(1))
	assert.True(t, m.IsMarked(1), "no regrow when large enough")

	require.NoError(t, m.Ensure(100))
	assert.Equal(t, 100, m.Len())
	assert.False(t, m.IsMarked(1))

	assert.ErrorIs(t, m.Ensure(-1), status.ErrOverflow)
}

func TestMark_Clear(t *testing.T) {
	var m Mark
	require.NoError(t, m.Ensure(3))
	assert.True(t, m.Clear())
	m.Mark(0)
	assert.False(t, m.Clear())
}
