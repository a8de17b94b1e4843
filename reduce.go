package gbcore

import (
	"fmt"

	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/ops"
	"github.com/hupe1980/gbcore/types"
	"gonum.org/v1/gonum/mat"
)

// maxDenseElements bounds ToDense.
const maxDenseElements = 1 << 28

// ForEach calls fn for every live entry in column-major order until fn
// returns false. Pending tuples are finalized first. val is only valid
// during the call.
func (m *Matrix) ForEach(fn func(row, col uint64, val []byte) bool) error {
	if err := m.check(); err != nil {
		return err
	}
	if m.Npending() > 0 {
		if err := m.Finalize(); err != nil {
			return err
		}
	}
	for k := 0; k < m.nvec; k++ {
		col := m.col(k)
		for pos := m.p[k]; pos < m.p[k+1]; pos++ {
			if m.i[pos].Zombie {
				continue
			}
			if !fn(m.i[pos].Row, col, m.value(pos)) {
				return nil
			}
		}
	}
	return nil
}

// ExtractTuples returns every live entry as parallel row, column and value
// arrays in column-major order.
func (m *Matrix) ExtractTuples() (rows, cols []uint64, vals []byte, err error) {
	n, err := m.Nvals()
	if err != nil {
		return nil, nil, nil, err
	}
	rows = make([]uint64, 0, n)
	cols = make([]uint64, 0, n)
	vals = make([]byte, 0, n*m.typ.Size)
	err = m.ForEach(func(row, col uint64, val []byte) bool {
		rows = append(rows, row)
		cols = append(cols, col)
		vals = append(vals, val...)
		return true
	})
	return rows, cols, vals, err
}

// Reduce folds every live entry into one value with monoid, starting from
// its identity. The result has the monoid's type. The fold stops as soon as
// the monoid's terminal value is reached.
func (m *Matrix) Reduce(monoid *ops.Monoid) ([]byte, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if monoid == nil {
		return nil, fmt.Errorf("%w: nil monoid", ErrInvalidArgument)
	}
	if !monoid.Valid() {
		return nil, status.Corrupt("monoid %s has been freed", monoid.Op)
	}
	t := monoid.Op.Z
	if !types.Compatible(t, m.typ) {
		return nil, fmt.Errorf("%w: reducing %s with %s", ErrDomainMismatch, m.typ, monoid.Op)
	}

	acc := append([]byte(nil), monoid.Identity...)
	if monoid.IsTerminal(acc) {
		return acc, nil
	}
	y := make([]byte, t.Size)
	z := make([]byte, t.Size)

	var ferr error
	err := m.ForEach(func(_, _ uint64, val []byte) bool {
		if ferr = types.Cast(y, t, val, m.typ); ferr != nil {
			return false
		}
		if ferr = monoid.Op.Apply(z, acc, y); ferr != nil {
			return false
		}
		copy(acc, z)
		return !monoid.IsTerminal(acc)
	})
	if err != nil {
		return nil, err
	}
	if ferr != nil {
		return nil, ferr
	}
	return acc, nil
}

// ReduceFloat64 is Reduce with the result read as float64.
func (m *Matrix) ReduceFloat64(monoid *ops.Monoid) (float64, error) {
	v, err := m.Reduce(monoid)
	if err != nil {
		return 0, err
	}
	return types.Float64Of(v, monoid.Op.Z)
}

// ToDense copies m into a gonum dense matrix. Missing entries are zero.
func (m *Matrix) ToDense() (*mat.Dense, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if m.typ.IsUserDefined() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrDomainMismatch, m.typ)
	}
	n, ok := conv.MulUint64(m.nrows, m.ncols)
	if !ok || n > maxDenseElements {
		return nil, fmt.Errorf("%w: dense %dx%d", ErrOverflow, m.nrows, m.ncols)
	}

	d := mat.NewDense(int(m.nrows), int(m.ncols), nil)
	var ferr error
	err := m.ForEach(func(row, col uint64, val []byte) bool {
		f, err := types.Float64Of(val, m.typ)
		if err != nil {
			ferr = err
			return false
		}
		d.Set(int(row), int(col), f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return d, ferr
}
