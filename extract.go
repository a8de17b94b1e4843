package gbcore

import (
	"fmt"
	"sort"

	"github.com/hupe1980/gbcore/internal/workspace"
	"github.com/hupe1980/gbcore/types"
)

// maxMarkRows bounds the row count for which Extract indexes rows with the
// Mark workspace; taller matrices use a sorted lookup instead.
const maxMarkRows = 1 << 20

// Extract sets dst = src(rows, cols): dst(ii, jj) = src(rows[ii], cols[jj]).
// dst must be len(rows) x len(cols). Indices may repeat. dst may be src or
// alias it; the result is built completely before dst changes. Pending
// tuples of dst are discarded.
func Extract(dst, src *Matrix, rows, cols []uint64) error {
	if err := dst.check(); err != nil {
		return err
	}
	if err := src.check(); err != nil {
		return err
	}
	if uint64(len(rows)) != dst.nrows || uint64(len(cols)) != dst.ncols {
		return fmt.Errorf("%w: extracting %dx%d into %dx%d", ErrInvalidArgument, len(rows), len(cols), dst.nrows, dst.ncols)
	}
	if !types.Compatible(dst.typ, src.typ) {
		return fmt.Errorf("%w: extracting %s into %s", ErrDomainMismatch, src.typ, dst.typ)
	}
	for _, r := range rows {
		if r >= src.nrows {
			return &IndexError{Row: r, Nrows: src.nrows, Ncols: src.ncols}
		}
	}
	for _, c := range cols {
		if c >= src.ncols {
			return &IndexError{Col: c, Nrows: src.nrows, Ncols: src.ncols}
		}
	}
	if src.Npending() > 0 {
		if err := src.Finalize(); err != nil {
			return err
		}
	}

	ws, err := src.rt.workspaces.Get()
	if err != nil {
		return err
	}
	lookup := newRowLookup(ws, src.nrows, rows)
	defer func() {
		lookup.release()
		_ = src.rt.workspaces.Put(ws)
	}()

	tmp := src.rt.newHandle(dst.typ, dst.nrows, dst.ncols)
	for jj, c := range cols {
		k, ok := src.vector(c)
		if !ok {
			continue
		}
		for pos := src.p[k]; pos < src.p[k+1]; pos++ {
			if src.i[pos].Zombie {
				continue
			}
			err := lookup.each(src.i[pos].Row, func(ii int) error {
				return tmp.insert(uint64(ii), uint64(jj), src.value(pos), src.typ, nil)
			})
			if err != nil {
				_ = tmp.Free()
				return err
			}
		}
	}
	if err := tmp.Finalize(); err != nil {
		_ = tmp.Free()
		return err
	}
	return dst.adopt(tmp)
}

// rowLookup maps a source row to every output position that selects it.
type rowLookup struct {
	ws   *workspace.Workspace
	flag int64
	n    int64

	// sorted is used when rows repeat or the matrix is too tall to mark.
	sorted []rowPos
	marked bool
}

type rowPos struct {
	row uint64
	ii  int
}

func newRowLookup(ws *workspace.Workspace, nrows uint64, rows []uint64) *rowLookup {
	l := &rowLookup{ws: ws, n: int64(len(rows))}
	if nrows <= maxMarkRows && ws.Mark.Ensure(int(nrows)) == nil {
		ws.Flag.Alloc(uint(nrows))
		l.flag = ws.Mark.Reset(1, l.n)
		dup := false
		for ii, r := range rows {
			if ws.Flag.Test(uint(r)) {
				dup = true
				continue
			}
			ws.Flag.Set(uint(r))
			ws.Mark.Set(int(r), l.flag+int64(ii))
		}
		for _, r := range rows {
			ws.Flag.Unset(uint(r))
		}
		if !dup {
			l.marked = true
			return l
		}
	}

	l.sorted = make([]rowPos, len(rows))
	for ii, r := range rows {
		l.sorted[ii] = rowPos{row: r, ii: ii}
	}
	sort.SliceStable(l.sorted, func(a, b int) bool { return l.sorted[a].row < l.sorted[b].row })
	return l
}

func (l *rowLookup) each(row uint64, fn func(ii int) error) error {
	if l.marked {
		s := l.ws.Mark.Get(int(row))
		if s >= l.flag && s < l.flag+l.n {
			return fn(int(s - l.flag))
		}
		return nil
	}
	k := sort.Search(len(l.sorted), func(k int) bool { return l.sorted[k].row >= row })
	for ; k < len(l.sorted) && l.sorted[k].row == row; k++ {
		if err := fn(l.sorted[k].ii); err != nil {
			return err
		}
	}
	return nil
}

// release leaves the Mark clear for the next user.
func (l *rowLookup) release() {
	if l.flag > 0 {
		l.ws.Mark.Reset(l.n, 0)
	}
}

// adopt moves the components of a private temporary into m and frees the
// temporary's handle.
func (m *Matrix) adopt(tmp *Matrix) error {
	next := &compressed{format: tmp.format, h: tmp.h, p: tmp.p, i: tmp.i, x: tmp.x, nvec: tmp.nvec, iso: tmp.iso}
	tmp.h, tmp.p, tmp.i, tmp.x = nil, nil, nil, nil
	tmp.nvec = 0
	_ = tmp.Free()
	return m.replace(next)
}
