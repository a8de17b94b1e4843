package snapshot_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/blobstore"
	gbfs "github.com/hupe1980/gbcore/internal/fs"
	"github.com/hupe1980/gbcore/snapshot"
	"github.com/hupe1980/gbcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T, opts ...gbcore.Option) *gbcore.Runtime {
	t.Helper()
	rt, err := gbcore.Init(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func newMatrix(t *testing.T, rt *gbcore.Runtime, typ *types.Type, nrows, ncols uint64) *gbcore.Matrix {
	t.Helper()
	m, err := rt.NewMatrix(typ, nrows, ncols)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Free() })
	return m
}

// grid fills every cell (r, c) with r+c even with 10r+c.
func grid(t *testing.T, rt *gbcore.Runtime, n uint64) *gbcore.Matrix {
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

func exported(t *testing.T, m *gbcore.Matrix) *gbcore.Exported {
	t.Helper()
	e, err := m.Export()
	require.NoError(t, err)
	return e
}

func TestEncodeDecode(t *testing.T) {
	rt := newRuntime(t)

	hyper := newMatrix(t, rt, types.Int32, 1000, 100000)
	require.NoError(t, hyper.InsertInt64(3, 99999, 7, nil))
	require.NoError(t, hyper.InsertInt64(999, 5, -2, nil))
	require.NoError(t, hyper.Finalize())
	require.Equal(t, gbcore.FormatHypersparse, hyper.Format())

	iso := newMatrix(t, rt, types.Bool, 50, 50)
	for k := uint64(0); k < 50; k++ {
		require.NoError(t, iso.InsertBool(k, (k*7)%50, true))
	}
	require.NoError(t, iso.Finalize())
	require.True(t, iso.Iso())

	empty := newMatrix(t, rt, types.Uint8, 4, 4)

	matrices := map[string]*gbcore.Matrix{
		"Sparse":      grid(t, rt, 64),
		"Hypersparse": hyper,
		"Iso":         iso,
		"Empty":       empty,
	}
	for name, m := range matrices {
		for _, c := range []snapshot.Compression{snapshot.CompressionNone, snapshot.CompressionLZ4, snapshot.CompressionZSTD} {
			t.Run(name+"/"+c.String(), func(t *testing.T) {
				want := exported(t, m)
				data, err := snapshot.Encode(want, c)
				require.NoError(t, err)

				got, err := snapshot.Decode(data, nil)
				require.NoError(t, err)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("decoded snapshot mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestEncode_CompressesLargeMatrix(t *testing.T) {
	rt := newRuntime(t)
	e := exported(t, grid(t, rt, 128))

	raw, err := snapshot.Encode(e, snapshot.CompressionNone)
	require.NoError(t, err)
	packed, err := snapshot.Encode(e, snapshot.CompressionZSTD)
	require.NoError(t, err)

	h, err := snapshot.ParseHeader(packed)
	require.NoError(t, err)
	assert.Equal(t, snapshot.CompressionZSTD, h.Compression)
	assert.Less(t, len(packed), len(raw))
	assert.Equal(t, uint64(len(raw)-28), h.RawLen)
}

func TestDecode_Corrupt(t *testing.T) {
	rt := newRuntime(t)
	data, err := snapshot.Encode(exported(t, grid(t, rt, 8)), snapshot.CompressionNone)
	require.NoError(t, err)

	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(append([]byte(nil), data...))
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"Short", data[:10]},
		{"Truncated", data[:len(data)-1]},
		{"Magic", mutate(func(b []byte) []byte { b[0] ^= 0xff; return b })},
		{"Version", mutate(func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:], 9); return b })},
		{"PayloadBit", mutate(func(b []byte) []byte { b[len(b)-3] ^= 0x01; return b })},
		{"Checksum", mutate(func(b []byte) []byte { b[8] ^= 0x01; return b })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snapshot.Decode(tt.data, nil)
			assert.ErrorIs(t, err, snapshot.ErrCorrupt)
		})
	}
}

func TestDecode_UserDefinedType(t *testing.T) {
	rt := newRuntime(t)
	reg := types.NewRegistry()
	pair, err := reg.Register("pair", 16)
	require.NoError(t, err)

	m := newMatrix(t, rt, pair, 3, 3)
	val := make([]byte, 16)
	binary.LittleEndian.PutUint64(val, 1)
	binary.LittleEndian.PutUint64(val[8:], 2)
	require.NoError(t, m.Insert(1, 2, val, pair, nil))
	require.NoError(t, m.Finalize())

	data, err := snapshot.Encode(exported(t, m), snapshot.CompressionLZ4)
	require.NoError(t, err)

	_, err = snapshot.Decode(data, nil)
	assert.ErrorIs(t, err, snapshot.ErrUnknownType)
	_, err = snapshot.Decode(data, types.NewRegistry())
	assert.ErrorIs(t, err, snapshot.ErrUnknownType)

	other := types.NewRegistry()
	_, err = other.Register("pair", 8)
	require.NoError(t, err)
	_, err = snapshot.Decode(data, other)
	assert.ErrorIs(t, err, snapshot.ErrUnknownType)

	e, err := snapshot.Decode(data, reg)
	require.NoError(t, err)
	assert.Same(t, pair, e.Type)
	assert.Equal(t, val, e.X)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	store := blobstore.NewMemoryStore()

	_, err := snapshot.Latest(ctx, store)
	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	m := newMatrix(t, rt, types.FP64, 5, 5)
	require.NoError(t, m.InsertFloat64(0, 0, 1))
	require.NoError(t, m.InsertFloat64(4, 3, 2.5))
	require.NoError(t, m.Finalize())
	require.NoError(t, m.Delete(0, 0))
	require.NoError(t, m.InsertFloat64(2, 2, 9))

	// Save finalizes the pending insert and the zombie.
	first, err := snapshot.Save(ctx, store, m, snapshot.Options{Compression: snapshot.CompressionLZ4})
	require.NoError(t, err)
	assert.False(t, m.Dirty())

	latest, err := snapshot.Latest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, first, latest)

	got, err := snapshot.LoadLatest(ctx, rt, store, snapshot.Options{})
	require.NoError(t, err)
	defer func() { _ = got.Free() }()

	n, err := got.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	v, ok, err := got.GetFloat64(4, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	_, ok, err = got.GetFloat64(0, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.InsertFloat64(1, 1, 3))
	second, err := snapshot.Save(ctx, store, m, snapshot.Options{})
	require.NoError(t, err)

	names, err := snapshot.List(ctx, store, snapshot.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, names)

	older, err := snapshot.Load(ctx, rt, store, first, snapshot.Options{})
	require.NoError(t, err)
	defer func() { _ = older.Free() }()
	n, err = older.Nvals()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSave_NoCommit(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	store := blobstore.NewMemoryStore()

	name, err := snapshot.Save(ctx, store, grid(t, rt, 4), snapshot.Options{NoCommit: true, Prefix: "adhoc/"})
	require.NoError(t, err)
	assert.Contains(t, name, "adhoc/")

	_, err = snapshot.Latest(ctx, store)
	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	e, err := snapshot.Read(ctx, store, name, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Nvals())
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	store := blobstore.NewMemoryStore()
	m := grid(t, rt, 4)

	var names []string
	for k := 0; k < 4; k++ {
		name, err := snapshot.Save(ctx, store, m, snapshot.Options{})
		require.NoError(t, err)
		names = append(names, name)
	}
	// Move CURRENT back to the oldest snapshot; it survives pruning.
	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte(names[0])))

	deleted, err := snapshot.Prune(ctx, store, 1, snapshot.Options{})
	require.NoError(t, err)
	assert.Equal(t, names[1:3], deleted)

	left, err := snapshot.List(ctx, store, snapshot.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{names[0], names[3]}, left)
}

func TestSaveLoad_LocalStoreThrottled(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, gbcore.WithIOLimit(1<<20))
	store, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	m := grid(t, rt, 32)
	_, err = snapshot.Save(ctx, store, m, snapshot.Options{Compression: snapshot.CompressionZSTD})
	require.NoError(t, err)

	got, err := snapshot.LoadLatest(ctx, rt, store, snapshot.Options{})
	require.NoError(t, err)
	defer func() { _ = got.Free() }()

	if diff := cmp.Diff(exported(t, m), exported(t, got)); diff != "" {
		t.Errorf("loaded matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Missing(t *testing.T) {
	rt := newRuntime(t)
	_, err := snapshot.Load(context.Background(), rt, blobstore.NewMemoryStore(), "snapshots/nope", snapshot.Options{})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSave_WriteFailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	ffs := gbfs.NewFaultyFS(nil)
	store, err := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))
	require.NoError(t, err)

	m := grid(t, rt, 16)
	first, err := snapshot.Save(ctx, store, m, snapshot.Options{})
	require.NoError(t, err)

	ffs.AddRule("snapshots/", gbfs.Fault{FailAfterBytes: 64})
	_, err = snapshot.Save(ctx, store, m, snapshot.Options{})
	require.ErrorIs(t, err, gbfs.ErrInjected)

	latest, err := snapshot.Latest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, first, latest)
	names, err := snapshot.List(ctx, store, snapshot.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{first}, names)
}
