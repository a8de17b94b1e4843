package gbcore

import (
	"testing"

	"github.com/hupe1980/gbcore/types"
	"github.com/stretchr/testify/require"
)

type coord struct {
	Row, Col uint64
}

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := Init(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func newMatrix(t *testing.T, rt *Runtime, typ *types.Type, nrows, ncols uint64) *Matrix {
	t.Helper()
	m, err := rt.NewMatrix(typ, nrows, ncols)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Free() })
	return m
}

// entries reads every live entry as float64.
func entries(t *testing.T, m *Matrix) map[coord]float64 {
	t.Helper()
	out := make(map[coord]float64)
	require.NoError(t, m.ForEach(func(row, col uint64, val []byte) bool {
		f, err := types.Float64Of(val, m.Type())
		require.NoError(t, err)
		out[coord{row, col}] = f
		return true
	}))
	return out
}
