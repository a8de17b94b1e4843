package benchmark_test

import (
	"testing"

	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/testutil"
	"github.com/hupe1980/gbcore/types"
)

const (
	benchSeed = 42
	benchDim  = 1 << 20
)

// OpenBenchRuntime creates a runtime closed at the end of the benchmark.
func OpenBenchRuntime(b *testing.B, opts ...gbcore.Option) *gbcore.Runtime {
	b.Helper()
	rt, err := gbcore.Init(opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = rt.Close() })
	return rt
}

func newBenchMatrix(b *testing.B, rt *gbcore.Runtime, nrows, ncols uint64) *gbcore.Matrix {
	b.Helper()
	m, err := rt.NewMatrix(types.FP64, nrows, ncols)
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func insertAll(b *testing.B, m *gbcore.Matrix, t *testutil.Tuples) {
	b.Helper()
	for k := range t.Rows {
		if err := m.InsertFloat64(t.Rows[k], t.Cols[k], t.Vals[k]); err != nil {
			b.Fatal(err)
		}
	}
}

// filledMatrix returns a finalized n-entry matrix.
func filledMatrix(b *testing.B, rt *gbcore.Runtime, n int) *gbcore.Matrix {
	b.Helper()
	m := newBenchMatrix(b, rt, benchDim, benchDim)
	insertAll(b, m, testutil.NewRNG(benchSeed).UniformTuples(n, benchDim, benchDim))
	if err := m.Finalize(); err != nil {
		b.Fatal(err)
	}
	return m
}
