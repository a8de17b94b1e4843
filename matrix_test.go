package gbcore

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/ops"
	"github.com/hupe1980/gbcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix_LastWriteWins(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.InsertFloat64(1, 1, 20))
	require.NoError(t, m.Finalize())

	n, err := m.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok, err := m.GetFloat64(1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20.0, v)
}

func TestMatrix_DeleteCompressedThenFinalize(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.InsertFloat64(2, 2, 30))
	require.NoError(t, m.Finalize())

	require.NoError(t, m.Delete(2, 2))
	assert.Equal(t, 1, m.Nzombies())

	n, err := m.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "zombies are not counted")

	require.NoError(t, m.Finalize())
	assert.Zero(t, m.Nzombies())

	_, ok, err := m.Get(2, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = m.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMatrix_EndToEnd(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.InsertFloat64(1, 1, 20))
	require.NoError(t, m.InsertFloat64(2, 2, 30))
	require.NoError(t, m.Finalize())
	require.NoError(t, m.Delete(2, 2))
	require.NoError(t, m.Finalize())

	n, err := m.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[coord]float64{{1, 1}: 20}, entries(t, m))
}

func TestMatrix_DeletePendingDropsTuple(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.InsertFloat64(3, 0, 7))
	require.NoError(t, m.InsertFloat64(1, 1, 11))
	assert.Equal(t, 3, m.Npending())

	require.NoError(t, m.Delete(1, 1))
	assert.Equal(t, 1, m.Npending(), "both tuples at (1,1) dropped")
	assert.Zero(t, m.Nzombies())

	assert.Equal(t, map[coord]float64{{3, 0}: 7}, entries(t, m))
}

func TestMatrix_DeletePendingAndCompressed(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.Finalize())
	require.NoError(t, m.InsertFloat64(1, 1, 20))

	require.NoError(t, m.Delete(1, 1))
	assert.Zero(t, m.Npending())
	assert.Equal(t, 1, m.Nzombies())

	require.NoError(t, m.Finalize())
	assert.Empty(t, entries(t, m))
}

func TestMatrix_DeleteLastPendingReleasesBatch(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(0, 0, 1))
	assert.Equal(t, 1, rt.Outstanding())

	require.NoError(t, m.Delete(0, 0))
	assert.Nil(t, m.pending)
	assert.False(t, m.Dirty())
	assert.Zero(t, rt.Outstanding())
}

func TestMatrix_DeleteAbsentIsNoop(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	rt := newRuntime(t, WithMetricsCollector(metrics))
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.Delete(4, 4))
	assert.False(t, m.Dirty())

	require.NoError(t, m.InsertFloat64(1, 1, 1))
	require.NoError(t, m.Finalize())
	require.NoError(t, m.Delete(1, 1))
	require.NoError(t, m.Delete(1, 1))
	assert.Equal(t, 1, m.Nzombies(), "a zombie is not deleted twice")

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.DeleteZombieCount)
}

func TestMatrix_ZombieResurrectedByInsert(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 5, 5)

	require.NoError(t, m.InsertFloat64(2, 2, 30))
	require.NoError(t, m.Finalize())
	require.NoError(t, m.Delete(2, 2))
	require.NoError(t, m.InsertFloat64(2, 2, 5))
	require.NoError(t, m.Finalize())

	assert.Equal(t, map[coord]float64{{2, 2}: 5}, entries(t, m))
}

func TestMatrix_DedupOperator(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.Int64, 4, 4)
	plus := ops.Plus(types.Int64)

	require.NoError(t, m.InsertInt64(0, 3, 1, plus))
	require.NoError(t, m.InsertInt64(2, 1, 100, plus))
	require.NoError(t, m.InsertInt64(0, 3, 2, plus))
	require.NoError(t, m.InsertInt64(0, 3, 3, plus))
	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{0, 3}: 6, {2, 1}: 100}, entries(t, m))

	// Existing entries combine with pending ones, existing value first.
	minus := ops.Builtin(ops.OpMinus, types.Int64)
	require.NoError(t, m.InsertInt64(0, 3, 4, minus))
	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{0, 3}: 2, {2, 1}: 100}, entries(t, m))
}

func TestMatrix_UserDedupOperator(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 3, 3)

	first, err := ops.NewBinaryOp("keep_first", func(z, x, _ []byte) { copy(z, x) }, types.FP64, types.FP64, types.FP64, nil)
	require.NoError(t, err)
	defer ops.FreeBinaryOp(first)

	for _, v := range []float64{1, 2, 3} {
		require.NoError(t, m.Insert(1, 2, types.FP64.Bytes(v), nil, first))
	}
	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{1, 2}: 1}, entries(t, m))
}

func TestMatrix_OperatorChangeFinalizesBatch(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.Int64, 3, 3)

	require.NoError(t, m.InsertInt64(0, 0, 1, ops.Plus(types.Int64)))
	require.NoError(t, m.InsertInt64(0, 0, 1, ops.Plus(types.Int64)))
	assert.Equal(t, 2, m.Npending())

	require.NoError(t, m.InsertInt64(0, 0, 7, nil))
	assert.Equal(t, 1, m.Npending(), "earlier batch merged first")
	assert.Equal(t, 1, m.nnz())

	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{0, 0}: 7}, entries(t, m))
}

func TestMatrix_PendingTypeCast(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 3, 3)

	require.NoError(t, m.InsertInt64(1, 0, 42, nil))
	assert.Equal(t, types.Int64, m.pending.typ)

	require.NoError(t, m.InsertFloat64(2, 0, 0.5))
	assert.Equal(t, 1, m.Npending(), "type change finalizes the int64 batch")

	assert.Equal(t, map[coord]float64{{1, 0}: 42, {2, 0}: 0.5}, entries(t, m))
}

func TestMatrix_SortedFlag(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 10, 10)

	require.NoError(t, m.InsertFloat64(1, 0, 1))
	require.NoError(t, m.InsertFloat64(5, 0, 1))
	require.NoError(t, m.InsertFloat64(5, 0, 2))
	require.NoError(t, m.InsertFloat64(0, 3, 1))
	assert.True(t, m.pending.sorted)

	require.NoError(t, m.InsertFloat64(9, 2, 1))
	assert.False(t, m.pending.sorted)

	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{1, 0}: 1, {5, 0}: 2, {0, 3}: 1, {9, 2}: 1}, entries(t, m))
}

func TestMatrix_PendingGrowth(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 1000, 1000)

	want := make(map[coord]float64)
	for k := 0; k < 500; k++ {
		row, col := uint64(k*7%1000), uint64(k*13%1000)
		require.NoError(t, m.InsertFloat64(row, col, float64(k)))
		want[coord{row, col}] = float64(k)
	}
	assert.GreaterOrEqual(t, m.pending.capacity, 500)

	if diff := cmp.Diff(want, entries(t, m)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrix_Iso(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.Bool, 4, 4)

	for k := uint64(0); k < 4; k++ {
		require.NoError(t, m.InsertBool(k, (k+1)%4, true))
	}
	require.NoError(t, m.Finalize())
	assert.True(t, m.Iso())
	assert.Len(t, m.x, 1)

	v, ok, err := m.Get(2, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, types.GetBool(v))

	require.NoError(t, m.InsertBool(0, 0, false))
	require.NoError(t, m.Finalize())
	assert.False(t, m.Iso())
	assert.Len(t, entries(t, m), 5)
}

func TestMatrix_Format(t *testing.T) {
	rt := newRuntime(t)

	small := newMatrix(t, rt, types.FP64, 5, 5)
	require.NoError(t, small.InsertFloat64(0, 4, 1))
	require.NoError(t, small.Finalize())
	assert.Equal(t, FormatSparse, small.Format())

	wide := newMatrix(t, rt, types.FP64, 10, 1<<40)
	require.NoError(t, wide.InsertFloat64(3, 1<<39, 1))
	require.NoError(t, wide.InsertFloat64(4, 7, 2))
	require.NoError(t, wide.Finalize())
	assert.Equal(t, FormatHypersparse, wide.Format())

	v, ok, err := wide.GetFloat64(3, 1<<39)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok, err = wide.Get(3, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatrix_HugeDimensionsScanPending(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, conv.MaxIndex, conv.MaxIndex)

	require.NoError(t, m.InsertFloat64(conv.MaxIndex-1, conv.MaxIndex-1, 1))
	assert.Nil(t, m.pending.index, "linear keys overflow")
	require.NoError(t, m.InsertFloat64(0, 0, 2))
	require.NoError(t, m.Delete(conv.MaxIndex-1, conv.MaxIndex-1))
	assert.Equal(t, 1, m.Npending())
	assert.Equal(t, map[coord]float64{{0, 0}: 2}, entries(t, m))
}

func TestMatrix_Errors(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 3, 3)

	err := m.InsertFloat64(3, 0, 1)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, uint64(3), ie.Row)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, m.Delete(0, 3), ErrInvalidArgument)
	_, _, err = m.Get(5, 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, m.Insert(0, 0, []byte{1, 2}, types.FP64, nil), ErrInvalidArgument)

	_, err = rt.NewMatrix(types.FP64, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = rt.NewMatrix(types.FP64, conv.MaxIndex+1, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = rt.NewMatrix(nil, 3, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMatrix_DomainMismatch(t *testing.T) {
	rt := newRuntime(t)
	reg := types.NewRegistry()
	pair, err := reg.Register("pair", 16)
	require.NoError(t, err)
	other, err := reg.Register("other", 16)
	require.NoError(t, err)

	m := newMatrix(t, rt, pair, 3, 3)
	require.NoError(t, m.Insert(0, 0, make([]byte, 16), pair, nil))
	assert.ErrorIs(t, m.Insert(0, 1, make([]byte, 16), other, nil), ErrDomainMismatch)
	assert.ErrorIs(t, m.Insert(0, 1, types.FP64.Bytes(1), types.FP64, nil), ErrDomainMismatch)
	assert.ErrorIs(t, m.InsertFloat64(0, 1, 1), ErrDomainMismatch)

	f := newMatrix(t, rt, types.FP64, 3, 3)
	require.NoError(t, f.InsertInt64(0, 0, 1, ops.Plus(types.Int32)))
	assert.ErrorIs(t, f.Insert(0, 0, make([]byte, 16), pair, nil), ErrDomainMismatch)

	n, err := m.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMatrix_FreedHandles(t *testing.T) {
	if status.Debug {
		t.Skip("corruption panics in debug builds")
	}
	rt := newRuntime(t)

	op, err := ops.NewBinaryOp("user_plus", func(z, x, y []byte) {
		types.PutFloat64(z, types.GetFloat64(x)+types.GetFloat64(y))
	}, types.FP64, types.FP64, types.FP64, []byte("x+y"))
	require.NoError(t, err)
	ops.FreeBinaryOp(op)

	m := newMatrix(t, rt, types.FP64, 3, 3)
	assert.ErrorIs(t, m.Insert(0, 0, types.FP64.Bytes(1), nil, op), ErrCorruption)

	require.NoError(t, m.InsertFloat64(0, 0, 1))
	require.NoError(t, m.Free())
	require.NoError(t, m.Free(), "double free is a no-op")
	assert.Zero(t, rt.Outstanding())

	assert.ErrorIs(t, m.InsertFloat64(0, 0, 1), ErrCorruption)
	assert.ErrorIs(t, m.Finalize(), ErrCorruption)
	_, err = m.Nvals()
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestMatrix_ReusesPooledBlocks(t *testing.T) {
	rt := newRuntime(t)
	m := newMatrix(t, rt, types.FP64, 100, 100)

	for round := 0; round < 3; round++ {
		for k := uint64(0); k < 50; k++ {
			require.NoError(t, m.InsertFloat64(k, 99-k, float64(round)))
		}
		require.NoError(t, m.Finalize())
	}
	stats := rt.Stats()
	assert.Positive(t, stats.PoolHits)
	assert.Positive(t, stats.PoolCached)
}

func TestMatrix_OutOfMemoryLeavesMatrixIntact(t *testing.T) {
	rt := newRuntime(t, WithMemoryLimit(1<<20))
	m := newMatrix(t, rt, types.FP64, 8, 8)

	require.NoError(t, m.InsertFloat64(1, 1, 10))
	require.NoError(t, m.InsertFloat64(2, 2, 30))
	require.NoError(t, m.Finalize())

	require.NoError(t, m.InsertFloat64(5, 5, 50))
	require.NoError(t, m.InsertFloat64(1, 1, 11))
	require.NoError(t, m.Delete(2, 2))

	// Exhaust memory: drain the pool, then reserve whatever is left.
	rt.rc.ReleaseMemory(rt.alloc.Pool().Finalize())
	hog := rt.rc.MemoryLimit() - rt.rc.MemoryUsage()
	require.NoError(t, rt.rc.AcquireMemory(hog))

	beforeI := append([]RowIndex(nil), m.i[:m.nnz()]...)
	err := m.Finalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfMemory))

	assert.Equal(t, 2, m.Npending())
	assert.Equal(t, 1, m.Nzombies())
	assert.Equal(t, beforeI, m.i[:m.nnz()])
	assert.Equal(t, 1, rt.Outstanding())

	rt.rc.ReleaseMemory(hog)
	require.NoError(t, m.Finalize())
	assert.Equal(t, map[coord]float64{{1, 1}: 11, {5, 5}: 50}, entries(t, m))
}

func TestMatrix_OutOfMemoryOnInsertKeepsBatch(t *testing.T) {
	rt := newRuntime(t, WithMemoryLimit(1<<16))
	m := newMatrix(t, rt, types.FP64, 1<<20, 1)

	var err error
	inserted := 0
	for k := uint64(0); k < 1<<20; k++ {
		if err = m.InsertFloat64(k, 0, 1); err != nil {
			break
		}
		inserted++
	}
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, inserted, m.Npending())
}
