package gbcore

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/types"
)

// ShallowCopy returns a matrix that borrows every component of m. The copy
// may be read freely; any in-place write through it first detaches (deep
// copies) the component it touches. m is finalized first.
//
// Buffers lent to a live shallow copy never return to the free pool, so m
// may be finalized or freed while the copy is still in use.
func (m *Matrix) ShallowCopy() (*Matrix, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := m.Finalize(); err != nil {
		return nil, err
	}

	c := m.rt.newHandle(m.typ, m.nrows, m.ncols)
	c.format, c.nvec, c.iso = m.format, m.nvec, m.iso
	c.h, c.p, c.i, c.x = m.h, m.p, m.i, m.x
	c.hShallow, c.pShallow, c.iShallow, c.xShallow = true, true, true, true
	if !m.iShallow && m.i != nil {
		m.iLent = true
	}

	c.lenders = append(make([]*Matrix, 0, len(m.lenders)+1), m.lenders...)
	c.lenders = append(c.lenders, m)
	for _, l := range c.lenders {
		l.lends.Add(1)
	}
	return c, nil
}

// Dup returns a deep copy of m. m is finalized first.
func (m *Matrix) Dup() (*Matrix, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := m.Finalize(); err != nil {
		return nil, err
	}

	next, err := m.clone(m.typ)
	if err != nil {
		return nil, err
	}
	c := m.rt.newHandle(m.typ, m.nrows, m.ncols)
	c.install(next)
	return c, nil
}

// CopyFrom replaces the contents of m with a deep copy of src, casting
// values to m's type. src is finalized first. m may be src itself or alias
// it; the copy is complete before anything of m is released.
func (m *Matrix) CopyFrom(src *Matrix) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := src.check(); err != nil {
		return err
	}
	if m.nrows != src.nrows || m.ncols != src.ncols {
		return fmt.Errorf("%w: copying %dx%d into %dx%d", ErrInvalidArgument, src.nrows, src.ncols, m.nrows, m.ncols)
	}
	if !types.Compatible(m.typ, src.typ) {
		return fmt.Errorf("%w: copying %s into %s", ErrDomainMismatch, src.typ, m.typ)
	}
	if err := src.Finalize(); err != nil {
		return err
	}
	if m == src {
		return nil
	}

	next, err := src.clone(m.typ)
	if err != nil {
		return err
	}
	return m.replace(next)
}

// Aliased reports whether a and b share any component buffer.
func Aliased(a, b *Matrix) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return sameBuffer(a.h, b.h) || sameBuffer(a.p, b.p) || sameBuffer(a.i, b.i) || sameBuffer(a.x, b.x)
}

func sameBuffer[T any](a, b []T) bool {
	return cap(a) > 0 && cap(b) > 0 && unsafe.SliceData(a) == unsafe.SliceData(b)
}

// clone deep copies the compressed structure (zombies included), casting
// values to t.
func (m *Matrix) clone(t *types.Type) (*compressed, error) {
	next := &compressed{format: m.format, nvec: m.nvec, iso: m.iso}
	if m.p == nil {
		next.format = FormatHypersparse
		next.nvec = 0
		next.iso = false
		return next, nil
	}

	a := m.rt.alloc
	nnz := m.nnz()
	nx := nnz
	if m.iso {
		nx = 1
	}
	xbytes, ok := conv.MulInt(nx, t.Size)
	if !ok {
		return nil, fmt.Errorf("%w: %d values", ErrOverflow, nx)
	}

	var err error
	if m.h != nil {
		if next.h, err = mem.AllocSlice[uint64](a, m.nvec); err != nil {
			return nil, err
		}
		copy(next.h, m.h[:m.nvec])
	}
	if next.p, err = mem.AllocSlice[int](a, m.nvec+1); err != nil {
		return nil, withFree(err, next.free(a))
	}
	copy(next.p, m.p[:m.nvec+1])
	if next.i, err = mem.AllocSlice[RowIndex](a, nnz); err != nil {
		return nil, withFree(err, next.free(a))
	}
	copy(next.i, m.i[:nnz])
	if next.x, err = a.Alloc(xbytes); err != nil {
		return nil, withFree(err, next.free(a))
	}

	if t == m.typ {
		copy(next.x, m.x[:xbytes])
		return next, nil
	}
	for k := 0; k < nx; k++ {
		src := m.x[k*m.typ.Size : (k+1)*m.typ.Size]
		if err := types.Cast(next.x[k*t.Size:(k+1)*t.Size], t, src, m.typ); err != nil {
			return nil, withFree(err, next.free(a))
		}
	}
	return next, nil
}

// install sets the components of a fresh, empty handle.
func (m *Matrix) install(next *compressed) {
	m.format, m.nvec, m.iso = next.format, next.nvec, next.iso
	m.h, m.p, m.i, m.x = next.h, next.p, next.i, next.x
	m.iLent = false
	for k := 0; k < len(m.i); k++ {
		if m.i[k].Zombie {
			m.nzombies++
		}
	}
	if m.nzombies > 0 {
		m.enqueue()
	}
}

// replace discards m's contents, pending tuples included, and installs next.
func (m *Matrix) replace(next *compressed) error {
	err := m.releaseCompressed()
	if perr := m.releasePending(); err == nil {
		err = perr
	}
	m.unborrow()
	m.dequeue()
	m.install(next)
	return err
}

// detachIndices gives m its own copy of i before an in-place write. A
// matrix that lent its i to a live shallow copy detaches once too, so the
// copy never observes the write.
func (m *Matrix) detachIndices() error {
	lent := m.iLent && m.lends.Load() > 0
	if !m.iShallow && !lent {
		m.iLent = false
		return nil
	}
	nnz := m.nnz()
	i, err := mem.AllocSlice[RowIndex](m.rt.alloc, nnz)
	if err != nil {
		return err
	}
	copy(i, m.i[:nnz])
	old := m.i
	m.i = i
	if lent {
		m.iLent = false
		return mem.DiscardSlice(m.rt.alloc, old)
	}
	m.iShallow = false
	if !m.Shallow() {
		m.unborrow()
	}
	return nil
}
