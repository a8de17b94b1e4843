package gbcore

import (
	"testing"

	"github.com/hupe1980/gbcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(t *testing.T, rt *Runtime, n uint64) *Matrix {
	t.Helper()
	m := newMatrix(t, rt, types.FP64, n, n)
	for r := uint64(0); r < n; r++ {
		for c := uint64(0); c < n; c++ {
			if (r+c)%2 == 0 {
				require.NoError(t, m.InsertFloat64(r, c, float64(10*r+c)))
			}
		}
	}
	require.NoError(t, m.Finalize())
	return m
}

func TestExtract(t *testing.T) {
	rt := newRuntime(t)
	src := grid(t, rt, 4)

	dst := newMatrix(t, rt, types.FP64, 2, 3)
	require.NoError(t, Extract(dst, src, []uint64{2, 0}, []uint64{0, 2, 3}))

	assert.Equal(t, map[coord]float64{
		{0, 0}: 20, {0, 1}: 22,
		{1, 0}: 0, {1, 1}: 2,
	}, entries(t, dst))
}

func TestExtract_DuplicateIndices(t *testing.T) {
	rt := newRuntime(t)
	src := grid(t, rt, 4)

	dst := newMatrix(t, rt, types.FP64, 3, 2)
	require.NoError(t, Extract(dst, src, []uint64{1, 1, 3}, []uint64{1, 1}))

	assert.Equal(t, map[coord]float64{
		{0, 0}: 11, {0, 1}: 11,
		{1, 0}: 11, {1, 1}: 11,
		{2, 0}: 31, {2, 1}: 31,
	}, entries(t, dst))

	// The Mark workspace is left clear for the next operation.
	ws, err := rt.workspaces.Get()
	require.NoError(t, err)
	require.NoError(t, rt.workspaces.Put(ws))
}

func TestExtract_InPlace(t *testing.T) {
	rt := newRuntime(t)
	m := grid(t, rt, 3)
	require.NoError(t, m.Delete(0, 0))

	// Reverse rows and columns of m into m itself.
	require.NoError(t, Extract(m, m, []uint64{2, 1, 0}, []uint64{2, 1, 0}))

	assert.Equal(t, map[coord]float64{
		{0, 0}: 22, {0, 2}: 20, {1, 1}: 11, {2, 0}: 2,
	}, entries(t, m))
	assert.Zero(t, m.Nzombies())
}

func TestExtract_FromShallowCopy(t *testing.T) {
	rt := newRuntime(t)
	src := grid(t, rt, 3)

	c, err := src.ShallowCopy()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Free() })

	require.NoError(t, Extract(c, src, []uint64{0, 1, 2}, []uint64{1, 0, 2}))
	assert.False(t, Aliased(c, src))
	assert.Equal(t, map[coord]float64{
		{0, 1}: 0, {0, 2}: 2, {1, 0}: 11, {2, 1}: 20, {2, 2}: 22,
	}, entries(t, c))
	assert.Len(t, entries(t, src), 5)
}

func TestExtract_TallMatrix(t *testing.T) {
	rt := newRuntime(t)
	const n = maxMarkRows * 2
	src := newMatrix(t, rt, types.FP64, n, 2)
	require.NoError(t, src.InsertFloat64(n-1, 1, 7))
	require.NoError(t, src.InsertFloat64(3, 0, 5))

	dst := newMatrix(t, rt, types.FP64, 2, 2)
	require.NoError(t, Extract(dst, src, []uint64{n - 1, 3}, []uint64{0, 1}))
	assert.Equal(t, map[coord]float64{{0, 1}: 7, {1, 0}: 5}, entries(t, dst))
}

func TestExtract_Errors(t *testing.T) {
	rt := newRuntime(t)
	src := grid(t, rt, 3)

	dst := newMatrix(t, rt, types.FP64, 2, 2)
	assert.ErrorIs(t, Extract(dst, src, []uint64{0}, []uint64{0, 1}), ErrInvalidArgument)

	var ie *IndexError
	require.ErrorAs(t, Extract(dst, src, []uint64{0, 3}, []uint64{0, 1}), &ie)
	assert.Equal(t, uint64(3), ie.Row)

	reg := types.NewRegistry()
	udt, err := reg.Register("blob", 4)
	require.NoError(t, err)
	udst := newMatrix(t, rt, udt, 2, 2)
	assert.ErrorIs(t, Extract(udst, src, []uint64{0, 1}, []uint64{0, 1}), ErrDomainMismatch)
}
