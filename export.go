package gbcore

import (
	"fmt"

	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/types"
)

// Exported is the finalized, zombie-free form of a matrix handed to a
// persistence layer. Slices are plain copies owned by the caller.
type Exported struct {
	Type   *types.Type
	Nrows  uint64
	Ncols  uint64
	Format Format
	Iso    bool

	// H lists non-empty columns (hypersparse only), P holds len(vectors)+1
	// offsets into I and X. X holds one value per entry, or one value when Iso.
	H []uint64
	P []uint64
	I []uint64
	X []byte
}

// Nvals returns the number of entries.
func (e *Exported) Nvals() int {
	return len(e.I)
}

// Export copies the compressed structure out of m. Pending tuples and
// zombies are never exported: a dirty matrix returns ErrNotFinalized.
func (m *Matrix) Export() (*Exported, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if m.Dirty() {
		return nil, fmt.Errorf("%w: matrix %d has %d pending tuples and %d zombies", ErrNotFinalized, m.id, m.Npending(), m.nzombies)
	}

	e := &Exported{
		Type:   m.typ,
		Nrows:  m.nrows,
		Ncols:  m.ncols,
		Format: m.format,
		Iso:    m.iso,
	}
	if m.p == nil {
		e.Format = FormatHypersparse
		e.Iso = false
		e.P = []uint64{0}
		return e, nil
	}

	nnz := m.nnz()
	if m.format == FormatHypersparse {
		e.H = append([]uint64(nil), m.h[:m.nvec]...)
	}
	e.P = make([]uint64, m.nvec+1)
	for k := range e.P {
		e.P[k] = uint64(m.p[k])
	}
	e.I = make([]uint64, nnz)
	for k := range e.I {
		e.I[k] = m.i[k].Row
	}
	nx := nnz
	if m.iso {
		nx = 1
	}
	e.X = append([]byte(nil), m.x[:nx*m.typ.Size]...)
	return e, nil
}

// Validate checks that e describes a well-formed matrix.
func (e *Exported) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: exported matrix: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
	}
	if e.Type == nil || e.Type.Size <= 0 {
		return bad("missing type")
	}
	if e.Nrows == 0 || e.Ncols == 0 || e.Nrows > conv.MaxIndex || e.Ncols > conv.MaxIndex {
		return bad("dimensions %dx%d", e.Nrows, e.Ncols)
	}
	if len(e.P) == 0 || e.P[0] != 0 {
		return bad("offsets must start at 0")
	}
	nvec := len(e.P) - 1

	switch e.Format {
	case FormatSparse:
		if uint64(nvec) != e.Ncols || e.H != nil {
			return bad("sparse format needs %d offsets and no column list", e.Ncols+1)
		}
	case FormatHypersparse:
		if len(e.H) != nvec {
			return bad("hypersparse format has %d columns for %d vectors", len(e.H), nvec)
		}
		for k, c := range e.H {
			if c >= e.Ncols || (k > 0 && c <= e.H[k-1]) {
				return bad("column list not strictly increasing below %d", e.Ncols)
			}
		}
	default:
		return bad("unknown format %d", e.Format)
	}

	for k := 0; k < nvec; k++ {
		if e.P[k+1] < e.P[k] {
			return bad("offsets decrease at vector %d", k)
		}
		for pos := e.P[k]; pos < e.P[k+1]; pos++ {
			if pos >= uint64(len(e.I)) {
				return bad("offset %d beyond %d entries", pos, len(e.I))
			}
			if e.I[pos] >= e.Nrows || (pos > e.P[k] && e.I[pos] <= e.I[pos-1]) {
				return bad("rows of vector %d not strictly increasing below %d", k, e.Nrows)
			}
		}
	}
	if e.P[nvec] != uint64(len(e.I)) {
		return bad("%d offsets for %d entries", e.P[nvec], len(e.I))
	}

	nx := len(e.I)
	if e.Iso {
		if nx == 0 {
			return bad("iso matrix without entries")
		}
		nx = 1
	}
	if want, ok := conv.MulInt(nx, e.Type.Size); !ok || len(e.X) != want {
		return bad("%d value bytes for %d values of %s", len(e.X), nx, e.Type)
	}
	return nil
}

// Import creates a matrix from an exported form.
func (rt *Runtime) Import(e *Exported) (*Matrix, error) {
	if rt.closed.Load() {
		return nil, ErrClosed
	}
	if e == nil {
		return nil, fmt.Errorf("%w: nil exported matrix", ErrInvalidArgument)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	m := rt.newHandle(e.Type, e.Nrows, e.Ncols)
	if len(e.I) == 0 {
		return m, nil
	}

	a := rt.alloc
	nvec := len(e.P) - 1
	next := &compressed{format: e.Format, nvec: nvec, iso: e.Iso}
	var err error
	if e.Format == FormatHypersparse {
		if next.h, err = mem.AllocSlice[uint64](a, nvec); err != nil {
			return nil, rt.abandon(m, err)
		}
		copy(next.h, e.H)
	}
	if next.p, err = mem.AllocSlice[int](a, nvec+1); err != nil {
		return nil, rt.abandon(m, withFree(err, next.free(a)))
	}
	for k, off := range e.P {
		next.p[k] = int(off)
	}
	if next.i, err = mem.AllocSlice[RowIndex](a, len(e.I)); err != nil {
		return nil, rt.abandon(m, withFree(err, next.free(a)))
	}
	for k, r := range e.I {
		next.i[k] = LiveRow(r)
	}
	if next.x, err = a.Alloc(len(e.X)); err != nil {
		return nil, rt.abandon(m, withFree(err, next.free(a)))
	}
	copy(next.x, e.X)

	m.install(next)
	return m, nil
}

func (rt *Runtime) abandon(m *Matrix, err error) error {
	_ = m.Free()
	return err
}
