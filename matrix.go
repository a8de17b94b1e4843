package gbcore

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/types"
)

// Format is the storage layout of the compressed structure.
type Format uint8

const (
	// FormatSparse stores one offset per column.
	FormatSparse Format = iota
	// FormatHypersparse stores only the non-empty columns.
	FormatHypersparse
)

func (f Format) String() string {
	if f == FormatSparse {
		return "sparse"
	}
	return "hypersparse"
}

// RowIndex is a stored row index tagged with its liveness.
type RowIndex struct {
	Row    uint64
	Zombie bool
}

// LiveRow returns a live index.
func LiveRow(row uint64) RowIndex { return RowIndex{Row: row} }

// ZombieRow returns a tombstoned index.
func ZombieRow(row uint64) RowIndex { return RowIndex{Row: row, Zombie: true} }

// Matrix is a sparse matrix stored by column (CSC), optionally hypersparse,
// with deferred inserts (pending tuples) and deferred deletes (zombies).
//
// A Matrix is not safe for concurrent mutation. Read-only use from several
// goroutines is safe once the matrix is finalized; Nvals, Get and the other
// readers finalize on demand and therefore count as mutations while work is
// pending.
type Matrix struct {
	rt           *Runtime
	id           uint64
	typ          *types.Type
	nrows, ncols uint64
	format       Format

	// h lists the non-empty columns (hypersparse only). p has nvec+1 offsets
	// into i and x. x holds one value per entry, or a single value when iso.
	h    []uint64
	p    []int
	i    []RowIndex
	x    []byte
	nvec int
	iso  bool

	hShallow, pShallow, iShallow, xShallow bool

	// iLent is set while a shallow copy may share this matrix's own i.
	iLent bool

	// lenders are the matrices whose buffers this one borrows; lends counts
	// the borrowers of this one. Lent buffers never go back to the pool.
	lenders []*Matrix
	lends   atomic.Int32

	nzombies int
	pending  *pendingBatch

	enqueued bool
	freed    bool
}

// ID returns the matrix id, unique within its runtime.
func (m *Matrix) ID() uint64 { return m.id }

// Type returns the element type.
func (m *Matrix) Type() *types.Type { return m.typ }

// Nrows returns the number of rows.
func (m *Matrix) Nrows() uint64 { return m.nrows }

// Ncols returns the number of columns.
func (m *Matrix) Ncols() uint64 { return m.ncols }

// Format returns the current storage format.
func (m *Matrix) Format() Format { return m.format }

// Iso reports whether every entry shares one stored value.
func (m *Matrix) Iso() bool { return m.iso }

// Nzombies returns the number of tombstoned entries awaiting Finalize.
func (m *Matrix) Nzombies() int { return m.nzombies }

// Npending returns the number of pending tuples awaiting Finalize.
func (m *Matrix) Npending() int {
	if m.pending == nil {
		return 0
	}
	return m.pending.count
}

// Dirty reports whether the matrix has pending tuples or zombies.
func (m *Matrix) Dirty() bool {
	return m.nzombies > 0 || m.Npending() > 0
}

// Shallow reports whether any component is borrowed from another matrix.
func (m *Matrix) Shallow() bool {
	return m.hShallow || m.pShallow || m.iShallow || m.xShallow
}

// Runtime returns the runtime that owns the matrix.
func (m *Matrix) Runtime() *Runtime { return m.rt }

// nnz returns the stored entries including zombies.
func (m *Matrix) nnz() int {
	if m.p == nil {
		return 0
	}
	return m.p[m.nvec]
}

// Nvals returns the number of live entries, finalizing first if tuples are
// pending.
func (m *Matrix) Nvals() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	if m.Npending() > 0 {
		if err := m.Finalize(); err != nil {
			return 0, err
		}
	}
	return m.nnz() - m.nzombies, nil
}

// Get returns a copy of the value at (row, col) and whether it is present.
// Pending tuples are finalized first.
func (m *Matrix) Get(row, col uint64) ([]byte, bool, error) {
	if err := m.check(); err != nil {
		return nil, false, err
	}
	if err := m.checkIndex(row, col); err != nil {
		return nil, false, err
	}
	if m.Npending() > 0 {
		if err := m.Finalize(); err != nil {
			return nil, false, err
		}
	}
	pos, ok := m.find(row, col)
	if !ok || m.i[pos].Zombie {
		return nil, false, nil
	}
	return append([]byte(nil), m.value(pos)...), true, nil
}

// GetFloat64 returns the value at (row, col) read as float64.
func (m *Matrix) GetFloat64(row, col uint64) (float64, bool, error) {
	v, ok, err := m.Get(row, col)
	if err != nil || !ok {
		return 0, ok, err
	}
	f, err := types.Float64Of(v, m.typ)
	return f, err == nil, err
}

// Free releases the matrix storage and removes it from the runtime's queue.
// Any later use of the handle reports ErrCorruption. Free on a freed or nil
// matrix is a no-op.
func (m *Matrix) Free() error {
	if m == nil || m.freed {
		return nil
	}
	m.dequeue()
	err := m.releaseCompressed()
	if perr := m.releasePending(); err == nil {
		err = perr
	}
	m.unborrow()
	m.freed = true
	m.rt.live.Add(-1)
	return err
}

// check reports use of a freed handle.
func (m *Matrix) check() error {
	if m == nil {
		return fmt.Errorf("%w: nil matrix", ErrInvalidArgument)
	}
	if m.freed {
		return status.Corrupt("use of freed matrix %d", m.id)
	}
	return nil
}

func (m *Matrix) checkIndex(row, col uint64) error {
	if row >= m.nrows || col >= m.ncols {
		return &IndexError{Row: row, Col: col, Nrows: m.nrows, Ncols: m.ncols}
	}
	return nil
}

// vector returns the position of column col in h/p, if it has a vector.
func (m *Matrix) vector(col uint64) (int, bool) {
	if m.p == nil {
		return 0, false
	}
	if m.format == FormatSparse {
		return int(col), true
	}
	k := sort.Search(m.nvec, func(k int) bool { return m.h[k] >= col })
	return k, k < m.nvec && m.h[k] == col
}

// find locates (row, col) in the compressed structure, zombies included.
func (m *Matrix) find(row, col uint64) (int, bool) {
	k, ok := m.vector(col)
	if !ok {
		return 0, false
	}
	lo, hi := m.p[k], m.p[k+1]
	pos := lo + sort.Search(hi-lo, func(n int) bool { return m.i[lo+n].Row >= row })
	return pos, pos < hi && m.i[pos].Row == row
}

// col returns the column of vector k.
func (m *Matrix) col(k int) uint64 {
	if m.format == FormatHypersparse {
		return m.h[k]
	}
	return uint64(k)
}

// value returns the stored value of entry pos.
func (m *Matrix) value(pos int) []byte {
	size := m.typ.Size
	if m.iso {
		return m.x[:size]
	}
	return m.x[pos*size : (pos+1)*size]
}

func (m *Matrix) enqueue() {
	if m.freed {
		return
	}
	m.rt.queue.Enqueue(m.id, m)
	m.enqueued = true
}

func (m *Matrix) dequeue() {
	if m.enqueued {
		m.rt.queue.Remove(m.id)
		m.enqueued = false
	}
}

// releaseCompressed gives back every owned component and leaves the
// compressed structure empty.
func (m *Matrix) releaseCompressed() error {
	err := m.releaseComponents(m.h, m.p, m.i, m.x, m.hShallow, m.pShallow, m.iShallow, m.xShallow)
	m.h, m.p, m.i, m.x = nil, nil, nil, nil
	m.hShallow, m.pShallow, m.iShallow, m.xShallow = false, false, false, false
	m.nvec, m.nzombies, m.iso = 0, 0, false
	m.format = FormatHypersparse
	return err
}

func (m *Matrix) releaseComponents(h []uint64, p []int, i []RowIndex, x []byte, hs, ps, is, xs bool) error {
	var errs [4]error
	if !hs {
		errs[0] = release(m, h)
	}
	if !ps {
		errs[1] = release(m, p)
	}
	if !is {
		errs[2] = release(m, i)
	}
	if !xs {
		errs[3] = release(m, x)
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// release returns an owned buffer to the pool, or just drops its
// reservation while other matrices still borrow it.
func release[T any](m *Matrix, s []T) error {
	if s == nil {
		return nil
	}
	if m.lends.Load() > 0 {
		return mem.DiscardSlice(m.rt.alloc, s)
	}
	return mem.FreeSlice(m.rt.alloc, s)
}

// unborrow drops this matrix's claims on its lenders once it no longer
// shares any of their buffers.
func (m *Matrix) unborrow() {
	for _, l := range m.lenders {
		l.lends.Add(-1)
	}
	m.lenders = nil
}
