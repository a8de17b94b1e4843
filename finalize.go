package gbcore

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/gbcore/accel"
	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/internal/workspace"
	"github.com/hupe1980/gbcore/ops"
	"github.com/hupe1980/gbcore/types"
	"golang.org/x/sync/errgroup"
)

// maxSparseColumns bounds the column count for which the sparse format
// (one offset per column) is considered.
const maxSparseColumns = 1 << 24

// tuples is the sorted, duplicate-free form of a pending batch with values
// already in the matrix type.
type tuples struct {
	rows, cols []uint64
	vals       []byte
	count      int
}

func (t *tuples) free(a *mem.Allocator) error {
	err := errors.Join(
		mem.FreeSlice(a, t.rows),
		mem.FreeSlice(a, t.cols),
		a.Free(t.vals),
	)
	*t = tuples{}
	return err
}

// withFree adds a release failure to err. A nil ferr leaves err unchanged.
func withFree(err, ferr error) error {
	if ferr == nil {
		return err
	}
	return errors.Join(err, ferr)
}

// vecRange describes one output vector: its existing entries [es, ee), its
// pending tuples [ps, pe), and after counting, its live size and offset.
type vecRange struct {
	col      uint64
	es, ee   int
	ps, pe   int
	cnt, off int
}

// combiner evaluates dst = op(dst, y) with the casts the operator needs.
// Each goroutine uses its own combiner.
type combiner struct {
	op     *ops.BinaryOp
	t      *types.Type
	second bool
	x, y   []byte
	z      []byte
}

func newCombiner(op *ops.BinaryOp, t *types.Type, ws *workspace.Workspace) combiner {
	c := combiner{op: op, t: t, second: ops.IsSecond(op, t)}
	if !c.second {
		xs, ys, zs := op.X.Size, op.Y.Size, op.Z.Size
		work := ws.Work(xs + ys + zs)
		c.x, c.y, c.z = work[:xs], work[xs:xs+ys], work[xs+ys:]
	}
	return c
}

// apply combines y (of type yt) into dst (of the matrix type).
func (c *combiner) apply(dst, y []byte, yt *types.Type) error {
	if c.second {
		return types.Cast(dst, c.t, y, yt)
	}
	if err := types.Cast(c.x, c.op.X, dst, c.t); err != nil {
		return err
	}
	if err := types.Cast(c.y, c.op.Y, y, yt); err != nil {
		return err
	}
	if err := c.op.Apply(c.z, c.x, c.y); err != nil {
		return err
	}
	return types.Cast(dst, c.t, c.z, c.op.Z)
}

// Finalize merges the pending tuples into the compressed structure and
// purges zombies. Tuples sharing a coordinate are combined with the batch's
// dedup operator (last write wins by default); a pending tuple landing on
// an existing entry is combined the same way, existing value first.
//
// All new storage is allocated before anything is replaced: if the
// allocator runs out of memory the matrix, pending tuples included, is left
// exactly as it was and Finalize can be retried.
func (m *Matrix) Finalize() error {
	if err := m.check(); err != nil {
		return err
	}
	if !m.Dirty() {
		err := m.releasePendingIfEmpty()
		m.dequeue()
		return err
	}

	start := time.Now()
	pending, zombies := m.Npending(), m.nzombies
	err := m.finalize()
	d := time.Since(start)

	m.rt.metrics.RecordFinalize(pending, zombies, d, err)
	m.rt.logger.LogFinalize(context.Background(), m.id, pending, zombies, m.nnz()-m.nzombies, d, err)
	return err
}

func (m *Matrix) releasePendingIfEmpty() error {
	if m.pending != nil && m.pending.count == 0 {
		return m.releasePending()
	}
	return nil
}

func (m *Matrix) finalize() (err error) {
	if err := status.Assert(m.nzombies <= m.nnz(), "more zombies than entries"); err != nil {
		return err
	}

	a := m.rt.alloc
	ws, err := m.rt.workspaces.Get()
	if err != nil {
		return err
	}
	defer func() { _ = m.rt.workspaces.Put(ws) }()

	var u tuples
	var op *ops.BinaryOp
	if pb := m.pending; pb != nil && pb.count > 0 {
		op = pb.op
		if u, err = m.dedupPending(ws); err != nil {
			return withFree(err, u.free(a))
		}
		defer func() { err = withFree(err, u.free(a)) }()
	}

	plan, err := m.planVectors(&u)
	if err != nil {
		return err
	}
	defer func() { err = withFree(err, mem.FreeSlice(a, plan)) }()

	total := m.nnz() + u.count
	nslices := 1
	if total >= m.rt.opts.parallelThreshold && len(plan) > 1 {
		nslices = min(m.rt.opts.parallelism, len(plan))
	}
	bounds, err := m.sliceBounds(plan, nslices)
	if err != nil {
		return err
	}
	defer func() { err = withFree(err, mem.FreeSlice(a, bounds)) }()

	// Pass 1: live entries per vector.
	_ = runSlices(bounds, func(lo, hi int) error {
		for j := lo; j < hi; j++ {
			m.countVector(&plan[j], &u)
		}
		return nil
	})

	nnew, nne := 0, 0
	for j := range plan {
		plan[j].off = nnew
		nnew += plan[j].cnt
		if plan[j].cnt > 0 {
			nne++
		}
	}

	next, err := m.allocCompressed(plan, nnew, nne)
	if err != nil {
		return err
	}

	// Pass 2: fill rows and values.
	if nnew > 0 {
		err = runSlices(bounds, func(lo, hi int) error {
			sws, err := m.rt.workspaces.Get()
			if err != nil {
				return err
			}
			defer func() { _ = m.rt.workspaces.Put(sws) }()
			c := newCombiner(op, m.typ, sws)
			for j := lo; j < hi; j++ {
				if err := m.fillVector(&plan[j], &u, &c, next); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return withFree(err, next.free(a))
		}
		if err := m.detectIso(next); err != nil {
			return withFree(err, next.free(a))
		}
	}

	return m.commit(next)
}

// dedupPending sorts the batch by (col, row) and combines tuples that share
// a coordinate. The batch itself is not modified.
func (m *Matrix) dedupPending(ws *workspace.Workspace) (_ tuples, err error) {
	pb := m.pending
	a := m.rt.alloc
	n := pb.count

	perm, err := mem.AllocSlice[int](a, n)
	if err != nil {
		return tuples{}, err
	}
	defer func() { err = withFree(err, mem.FreeSlice(a, perm)) }()

	m.sortPending(perm)

	size := m.typ.Size
	vbytes, ok := conv.MulInt(n, size)
	if !ok {
		return tuples{}, fmt.Errorf("%w: %d pending values", ErrOverflow, n)
	}
	var u tuples
	if u.rows, err = mem.AllocSlice[uint64](a, n); err != nil {
		return tuples{}, err
	}
	if u.cols, err = mem.AllocSlice[uint64](a, n); err != nil {
		return tuples{}, withFree(err, u.free(a))
	}
	if u.vals, err = a.Alloc(vbytes); err != nil {
		return tuples{}, withFree(err, u.free(a))
	}

	c := newCombiner(pb.op, m.typ, ws)
	for k := 0; k < n; {
		first := perm[k]
		row, col := pb.rows[first], pb.cols[first]
		dst := u.vals[u.count*size : (u.count+1)*size]
		if err := types.Cast(dst, m.typ, pb.value(first), pb.typ); err != nil {
			return tuples{}, withFree(err, u.free(a))
		}
		k++
		for ; k < n && pb.rows[perm[k]] == row && pb.cols[perm[k]] == col; k++ {
			if err := c.apply(dst, pb.value(perm[k]), pb.typ); err != nil {
				return tuples{}, withFree(err, u.free(a))
			}
		}
		u.rows[u.count], u.cols[u.count] = row, col
		u.count++
	}
	return u, nil
}

// sortPending fills perm with the stable (col, row) order of the batch.
func (m *Matrix) sortPending(perm []int) {
	pb := m.pending
	if !pb.sorted {
		if b, ok := accel.Current(); ok && b.SortPending(pb.rows[:pb.count], pb.cols[:pb.count], perm) {
			return
		}
	}
	for k := range perm {
		perm[k] = k
	}
	if pb.sorted {
		return
	}
	slices.SortStableFunc(perm, func(x, y int) int {
		if c := cmp.Compare(pb.cols[x], pb.cols[y]); c != 0 {
			return c
		}
		return cmp.Compare(pb.rows[x], pb.rows[y])
	})
}

// planVectors lists every vector that has existing entries or pending
// tuples, in column order.
func (m *Matrix) planVectors(u *tuples) ([]vecRange, error) {
	a := m.rt.alloc
	existing := 0
	for k := 0; k < m.nvec; k++ {
		if m.p[k+1] > m.p[k] {
			existing++
		}
	}
	n, ok := conv.AddInt(existing, u.count)
	if !ok {
		return nil, fmt.Errorf("%w: %d vectors", ErrOverflow, existing+u.count)
	}
	plan, err := mem.AllocSlice[vecRange](a, n)
	if err != nil {
		return nil, err
	}
	plan = plan[:0]

	k, q := 0, 0
	for k < m.nvec || q < u.count {
		for k < m.nvec && m.p[k+1] == m.p[k] {
			k++
		}
		if k >= m.nvec && q >= u.count {
			break
		}

		var v vecRange
		switch {
		case k < m.nvec && (q >= u.count || m.col(k) < u.cols[q]):
			v = vecRange{col: m.col(k), es: m.p[k], ee: m.p[k+1], ps: q, pe: q}
			k++
		case k >= m.nvec || u.cols[q] < m.col(k):
			v = vecRange{col: u.cols[q], es: 0, ee: 0, ps: q}
			q = endOfColumn(u, q)
			v.pe = q
		default:
			v = vecRange{col: m.col(k), es: m.p[k], ee: m.p[k+1], ps: q}
			q = endOfColumn(u, q)
			v.pe = q
			k++
		}
		plan = append(plan, v)
	}
	return plan, nil
}

func endOfColumn(u *tuples, q int) int {
	col := u.cols[q]
	for q < u.count && u.cols[q] == col {
		q++
	}
	return q
}

// sliceBounds splits plan into n contiguous slices of similar work.
func (m *Matrix) sliceBounds(plan []vecRange, n int) ([]int, error) {
	bounds, err := mem.AllocSlice[int](m.rt.alloc, n+1)
	if err != nil {
		return nil, err
	}
	bounds[0] = 0
	if n == 1 {
		bounds[1] = len(plan)
		return bounds, nil
	}

	total := 0
	for j := range plan {
		total += (plan[j].ee - plan[j].es) + (plan[j].pe - plan[j].ps)
	}
	target := (total + n - 1) / n

	s, acc := 1, 0
	for j := range plan {
		acc += (plan[j].ee - plan[j].es) + (plan[j].pe - plan[j].ps)
		if s < n && acc >= target*s {
			bounds[s] = j + 1
			s++
		}
	}
	for ; s <= n; s++ {
		bounds[s] = len(plan)
	}
	return bounds, nil
}

// runSlices runs fn over every slice, in parallel when there is more than one.
func runSlices(bounds []int, fn func(lo, hi int) error) error {
	if len(bounds) == 2 {
		return fn(bounds[0], bounds[1])
	}
	var g errgroup.Group
	for s := 0; s+1 < len(bounds); s++ {
		lo, hi := bounds[s], bounds[s+1]
		if lo == hi {
			continue
		}
		g.Go(func() error { return fn(lo, hi) })
	}
	return g.Wait()
}

func (m *Matrix) countVector(v *vecRange, u *tuples) {
	e, q, n := v.es, v.ps, 0
	for e < v.ee && q < v.pe {
		r1, r2 := m.i[e].Row, u.rows[q]
		switch {
		case r1 < r2:
			if !m.i[e].Zombie {
				n++
			}
			e++
		case r1 > r2:
			n++
			q++
		default:
			n++
			e++
			q++
		}
	}
	for ; e < v.ee; e++ {
		if !m.i[e].Zombie {
			n++
		}
	}
	n += v.pe - q
	v.cnt = n
}

func (m *Matrix) fillVector(v *vecRange, u *tuples, c *combiner, next *compressed) error {
	size := m.typ.Size
	out := v.off
	emit := func(row uint64, val []byte) []byte {
		next.i[out] = LiveRow(row)
		dst := next.x[out*size : (out+1)*size]
		copy(dst, val)
		out++
		return dst
	}

	e, q := v.es, v.ps
	for e < v.ee && q < v.pe {
		r1, r2 := m.i[e].Row, u.rows[q]
		switch {
		case r1 < r2:
			if !m.i[e].Zombie {
				emit(r1, m.value(e))
			}
			e++
		case r1 > r2:
			emit(r2, u.vals[q*size:(q+1)*size])
			q++
		default:
			if m.i[e].Zombie {
				emit(r2, u.vals[q*size:(q+1)*size])
			} else {
				dst := emit(r1, m.value(e))
				if err := c.apply(dst, u.vals[q*size:(q+1)*size], m.typ); err != nil {
					return err
				}
			}
			e++
			q++
		}
	}
	for ; e < v.ee; e++ {
		if !m.i[e].Zombie {
			emit(m.i[e].Row, m.value(e))
		}
	}
	for ; q < v.pe; q++ {
		emit(u.rows[q], u.vals[q*size:(q+1)*size])
	}

	if out != v.off+v.cnt {
		return status.Corrupt("vector %d filled %d entries, counted %d", v.col, out-v.off, v.cnt)
	}
	return nil
}

// compressed is a complete set of components not yet owned by a matrix.
type compressed struct {
	format Format
	h      []uint64
	p      []int
	i      []RowIndex
	x      []byte
	nvec   int
	iso    bool
}

func (c *compressed) free(a *mem.Allocator) error {
	err := errors.Join(
		mem.FreeSlice(a, c.h),
		mem.FreeSlice(a, c.p),
		mem.FreeSlice(a, c.i),
		a.Free(c.x),
	)
	*c = compressed{}
	return err
}

// allocCompressed allocates the output structure and its offsets.
func (m *Matrix) allocCompressed(plan []vecRange, nnew, nne int) (*compressed, error) {
	next := &compressed{format: FormatHypersparse}
	if nnew == 0 {
		return next, nil
	}

	a := m.rt.alloc
	if m.preferSparse(nne) {
		next.format = FormatSparse
		next.nvec = int(m.ncols)
	} else {
		next.nvec = nne
	}

	xbytes, ok := conv.MulInt(nnew, m.typ.Size)
	if !ok {
		return nil, fmt.Errorf("%w: %d entries", ErrOverflow, nnew)
	}

	var err error
	if next.format == FormatHypersparse {
		if next.h, err = mem.AllocSlice[uint64](a, nne); err != nil {
			return nil, err
		}
	}
	if next.p, err = mem.AllocSlice[int](a, next.nvec+1); err != nil {
		return nil, withFree(err, next.free(a))
	}
	if next.i, err = mem.AllocSlice[RowIndex](a, nnew); err != nil {
		return nil, withFree(err, next.free(a))
	}
	if next.x, err = a.Alloc(xbytes); err != nil {
		return nil, withFree(err, next.free(a))
	}

	if next.format == FormatHypersparse {
		k := 0
		for j := range plan {
			if plan[j].cnt > 0 {
				next.h[k] = plan[j].col
				next.p[k] = plan[j].off
				k++
			}
		}
		next.p[k] = nnew
		return next, nil
	}

	col := 0
	for j := range plan {
		for ; col <= int(plan[j].col); col++ {
			next.p[col] = plan[j].off
		}
	}
	for ; col <= next.nvec; col++ {
		next.p[col] = nnew
	}
	return next, nil
}

func (m *Matrix) preferSparse(nonEmpty int) bool {
	if m.ncols > maxSparseColumns {
		return false
	}
	weighted, ok := conv.MulUint64(uint64(nonEmpty), m.rt.opts.hyperRatio)
	return !ok || weighted >= m.ncols
}

// detectIso collapses x to one value when every entry holds the same bytes.
// Failing to allocate the smaller buffer just keeps the full one.
func (m *Matrix) detectIso(next *compressed) error {
	size := m.typ.Size
	n := len(next.i)
	if n < 2 {
		return nil
	}
	first := next.x[:size]
	for k := 1; k < n; k++ {
		if !bytes.Equal(first, next.x[k*size:(k+1)*size]) {
			return nil
		}
	}
	a := m.rt.alloc
	iso, err := a.Alloc(size)
	if err != nil {
		return nil
	}
	copy(iso, first)
	if err := a.Free(next.x); err != nil {
		return withFree(err, a.Free(iso))
	}
	next.x = iso
	next.iso = true
	return nil
}

// commit installs next and releases what it replaces.
func (m *Matrix) commit(next *compressed) error {
	oh, op, oi, ox := m.h, m.p, m.i, m.x
	hs, ps, is, xs := m.hShallow, m.pShallow, m.iShallow, m.xShallow

	m.format, m.nvec, m.iso = next.format, next.nvec, next.iso
	m.h, m.p, m.i, m.x = next.h, next.p, next.i, next.x
	m.hShallow, m.pShallow, m.iShallow, m.xShallow = false, false, false, false
	m.iLent = false
	m.nzombies = 0

	err := m.releaseComponents(oh, op, oi, ox, hs, ps, is, xs)
	m.unborrow()
	if perr := m.releasePending(); err == nil {
		err = perr
	}
	m.dequeue()
	return err
}
