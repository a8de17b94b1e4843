package gbcore

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/ops"
	"github.com/hupe1980/gbcore/types"
)

const minPendingCapacity = 16

// pendingBatch holds inserted tuples not yet merged. rows, cols and values
// are parallel; values holds count values of typ.
type pendingBatch struct {
	rows, cols []uint64
	values     []byte
	count      int
	capacity   int
	sorted     bool
	typ        *types.Type
	op         *ops.BinaryOp

	// index holds col*nrows+row for every pending tuple; nil when the
	// linear key can overflow, in which case lookups scan.
	index *roaring64.Bitmap
}

func (pb *pendingBatch) value(k int) []byte {
	size := pb.typ.Size
	return pb.values[k*size : (k+1)*size]
}

func (pb *pendingBatch) less(a, b int) bool {
	if pb.cols[a] != pb.cols[b] {
		return pb.cols[a] < pb.cols[b]
	}
	return pb.rows[a] < pb.rows[b]
}

// linearKey returns col*nrows+row, or false on overflow.
func (m *Matrix) linearKey(row, col uint64) (uint64, bool) {
	k, ok := conv.MulUint64(col, m.nrows)
	if !ok || k > conv.MaxIndex-row {
		return 0, false
	}
	return k + row, true
}

// Insert appends (row, col, value) to the pending batch. value holds one
// value of vtype (nil means the matrix type). dup resolves tuples that
// land on the same coordinate at Finalize; nil keeps the last one written.
// Duplicates are not looked for here.
//
// Switching vtype or dup against a non-empty batch finalizes it first.
func (m *Matrix) Insert(row, col uint64, value []byte, vtype *types.Type, dup *ops.BinaryOp) error {
	err := m.insert(row, col, value, vtype, dup)
	m.rt.metrics.RecordInsert(err)
	return err
}

func (m *Matrix) insert(row, col uint64, value []byte, vtype *types.Type, dup *ops.BinaryOp) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := m.checkIndex(row, col); err != nil {
		return err
	}
	if vtype == nil {
		vtype = m.typ
	}
	if !types.Compatible(vtype, m.typ) {
		return fmt.Errorf("%w: cannot insert %s into %s matrix", ErrDomainMismatch, vtype, m.typ)
	}
	if len(value) != vtype.Size {
		return fmt.Errorf("%w: value has %d bytes, %s needs %d", ErrInvalidArgument, len(value), vtype, vtype.Size)
	}
	if dup != nil {
		if !dup.Valid() {
			return status.Corrupt("dedup operator %s has been freed", dup)
		}
		if !types.Compatible(dup.X, m.typ) || !types.Compatible(dup.Y, m.typ) || !types.Compatible(dup.Z, m.typ) {
			return fmt.Errorf("%w: dedup operator %s does not apply to %s", ErrDomainMismatch, dup, m.typ)
		}
	}

	if pb := m.pending; pb != nil && pb.count > 0 && (pb.typ != vtype || pb.op != dup) {
		if err := m.Finalize(); err != nil {
			return err
		}
	}

	if m.pending == nil {
		m.pending = &pendingBatch{sorted: true}
		if _, ok := m.linearKey(m.nrows-1, m.ncols-1); ok {
			m.pending.index = roaring64.New()
		}
	}
	pb := m.pending
	pb.typ, pb.op = vtype, dup

	if pb.count == pb.capacity {
		if err := m.growPending(); err != nil {
			return err
		}
	}

	k := pb.count
	pb.rows = pb.rows[:k+1]
	pb.cols = pb.cols[:k+1]
	pb.rows[k], pb.cols[k] = row, col
	pb.values = pb.values[:(k+1)*vtype.Size]
	copy(pb.value(k), value)
	pb.count++

	if k > 0 && pb.sorted && pb.less(k, k-1) {
		pb.sorted = false
	}
	if pb.index != nil {
		key, _ := m.linearKey(row, col)
		pb.index.Add(key)
	}

	if !m.enqueued {
		m.enqueue()
	}
	return nil
}

// growPending doubles the batch capacity. On failure the batch is unchanged.
func (m *Matrix) growPending() error {
	pb := m.pending
	capacity := max(minPendingCapacity, pb.capacity*2)
	vbytes, ok := conv.MulInt(capacity, pb.typ.Size)
	if !ok {
		return fmt.Errorf("%w: pending capacity %d", ErrOverflow, capacity)
	}

	a := m.rt.alloc
	rows, err := mem.AllocSlice[uint64](a, capacity)
	if err != nil {
		return err
	}
	cols, err := mem.AllocSlice[uint64](a, capacity)
	if err != nil {
		return withFree(err, mem.FreeSlice(a, rows))
	}
	values, err := a.Alloc(vbytes)
	if err != nil {
		return withFree(err, errors.Join(mem.FreeSlice(a, rows), mem.FreeSlice(a, cols)))
	}

	rows = rows[:copy(rows, pb.rows)]
	cols = cols[:copy(cols, pb.cols)]
	values = values[:copy(values, pb.values)]

	if err := m.freePendingBuffers(); err != nil {
		return err
	}
	pb.rows, pb.cols, pb.values = rows, cols, values
	pb.capacity = capacity
	return nil
}

func (m *Matrix) freePendingBuffers() error {
	pb := m.pending
	a := m.rt.alloc
	err := mem.FreeSlice(a, pb.rows)
	if ferr := mem.FreeSlice(a, pb.cols); err == nil {
		err = ferr
	}
	if ferr := a.Free(pb.values); err == nil {
		err = ferr
	}
	pb.rows, pb.cols, pb.values = nil, nil, nil
	return err
}

// releasePending frees the pending batch and resets it to empty.
func (m *Matrix) releasePending() error {
	if m.pending == nil {
		return nil
	}
	err := m.freePendingBuffers()
	m.pending = nil
	return err
}

// pendingHas reports whether some pending tuple targets (row, col).
func (m *Matrix) pendingHas(row, col uint64) bool {
	pb := m.pending
	if pb == nil || pb.count == 0 {
		return false
	}
	if pb.index != nil {
		key, _ := m.linearKey(row, col)
		return pb.index.Contains(key)
	}
	for k := 0; k < pb.count; k++ {
		if pb.rows[k] == row && pb.cols[k] == col {
			return true
		}
	}
	return false
}

// dropPending removes every pending tuple at (row, col), keeping the order
// of the rest.
func (m *Matrix) dropPending(row, col uint64) {
	pb := m.pending
	size := pb.typ.Size
	n := 0
	for k := 0; k < pb.count; k++ {
		if pb.rows[k] == row && pb.cols[k] == col {
			continue
		}
		if n != k {
			pb.rows[n], pb.cols[n] = pb.rows[k], pb.cols[k]
			copy(pb.values[n*size:(n+1)*size], pb.value(k))
		}
		n++
	}
	pb.count = n
	pb.rows, pb.cols = pb.rows[:n], pb.cols[:n]
	pb.values = pb.values[:n*size]
	if pb.index != nil {
		key, _ := m.linearKey(row, col)
		pb.index.Remove(key)
	}
}

// Delete removes the entry at (row, col). Pending tuples at the coordinate
// are dropped from the batch at once; an entry in the compressed structure
// becomes a zombie, removed by the next Finalize. Deleting an absent entry
// is a no-op.
func (m *Matrix) Delete(row, col uint64) error {
	outcome, err := m.delete(row, col)
	m.rt.metrics.RecordDelete(outcome, err)
	return err
}

func (m *Matrix) delete(row, col uint64) (DeleteOutcome, error) {
	if err := m.check(); err != nil {
		return DeleteAbsent, err
	}
	if err := m.checkIndex(row, col); err != nil {
		return DeleteAbsent, err
	}

	outcome := DeleteAbsent
	if m.pendingHas(row, col) {
		m.dropPending(row, col)
		outcome = DeletePending
		if m.pending.count == 0 {
			if err := m.releasePending(); err != nil {
				return outcome, err
			}
		}
	}

	if pos, ok := m.find(row, col); ok && !m.i[pos].Zombie {
		if err := m.detachIndices(); err != nil {
			return outcome, err
		}
		m.i[pos].Zombie = true
		m.nzombies++
		outcome = DeleteZombie
	}

	switch {
	case m.Dirty() && !m.enqueued:
		m.enqueue()
	case !m.Dirty():
		m.dequeue()
	}
	return outcome, nil
}

// InsertFloat64 inserts v cast to the matrix type, keeping the last write.
func (m *Matrix) InsertFloat64(row, col uint64, v float64) error {
	if m == nil || m.typ == nil || m.typ.IsUserDefined() {
		return fmt.Errorf("%w: float64 insert needs a built-in matrix type", ErrDomainMismatch)
	}
	return m.Insert(row, col, m.typ.Bytes(v), m.typ, nil)
}

// InsertInt64 inserts an int64 value.
func (m *Matrix) InsertInt64(row, col uint64, v int64, dup *ops.BinaryOp) error {
	b := make([]byte, 8)
	types.PutInt64(b, v)
	return m.Insert(row, col, b, types.Int64, dup)
}

// InsertBool inserts a boolean value.
func (m *Matrix) InsertBool(row, col uint64, v bool) error {
	b := make([]byte, 1)
	types.PutBool(b, v)
	return m.Insert(row, col, b, types.Bool, nil)
}
