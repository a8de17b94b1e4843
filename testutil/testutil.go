package testutil

import (
	"math/rand/v2"
	"sync"
)

// RNG wraps a seeded generator. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15))
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntN returns a pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Uint64N returns a pseudo-random number in [0,n).
func (r *RNG) Uint64N(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64N(n)
}

// Coord is a matrix position.
type Coord struct {
	Row, Col uint64
}

// Tuples holds parallel coordinate and value arrays.
type Tuples struct {
	Rows []uint64
	Cols []uint64
	Vals []float64
}

// Len returns the number of tuples.
func (t *Tuples) Len() int { return len(t.Rows) }

func newTuples(n int) *Tuples {
	return &Tuples{
		Rows: make([]uint64, n),
		Cols: make([]uint64, n),
		Vals: make([]float64, n),
	}
}

// UniformTuples draws n tuples uniformly over an nrows x ncols matrix with
// small integral values, so sums stay exact in float64. Coordinates may
// repeat.
func (r *RNG) UniformTuples(n int, nrows, ncols uint64) *Tuples {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := newTuples(n)
	for k := range n {
		t.Rows[k] = r.rand.Uint64N(nrows)
		t.Cols[k] = r.rand.Uint64N(ncols)
		t.Vals[k] = float64(r.rand.IntN(1000))
	}
	return t
}

// ClusteredTuples draws n tuples whose columns come from only hot distinct
// columns, producing the few-non-empty-columns shape that favors the
// hypersparse format.
func (r *RNG) ClusteredTuples(n int, nrows, ncols uint64, hot int) *Tuples {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := make([]uint64, hot)
	for k := range cols {
		cols[k] = r.rand.Uint64N(ncols)
	}
	t := newTuples(n)
	for k := range n {
		t.Rows[k] = r.rand.Uint64N(nrows)
		t.Cols[k] = cols[r.rand.IntN(hot)]
		t.Vals[k] = float64(r.rand.IntN(1000))
	}
	return t
}

// Op is one step of a mutation workload.
type Op struct {
	Delete bool
	Coord
	Val float64
}

// Churn draws n operations over an nrows x ncols matrix. Roughly one in
// deleteEvery operations deletes a coordinate touched earlier.
func (r *RNG) Churn(n int, nrows, ncols uint64, deleteEvery int) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]Op, 0, n)
	for len(ops) < n {
		if len(ops) > 0 && deleteEvery > 0 && r.rand.IntN(deleteEvery) == 0 {
			prev := ops[r.rand.IntN(len(ops))]
			ops = append(ops, Op{Delete: true, Coord: prev.Coord})
			continue
		}
		ops = append(ops, Op{
			Coord: Coord{Row: r.rand.Uint64N(nrows), Col: r.rand.Uint64N(ncols)},
			Val:   float64(r.rand.IntN(1000)),
		})
	}
	return ops
}

// Model is the expected content of a matrix under last-write-wins inserts.
type Model map[Coord]float64

// Apply replays ops into the model.
func (m Model) Apply(ops []Op) {
	for _, op := range ops {
		if op.Delete {
			delete(m, op.Coord)
			continue
		}
		m[op.Coord] = op.Val
	}
}

// Sum returns the expected result of summing every inserted value per
// coordinate, ignoring deletes.
func (t *Tuples) Sum() Model {
	m := make(Model)
	for k := range t.Rows {
		m[Coord{t.Rows[k], t.Cols[k]}] += t.Vals[k]
	}
	return m
}
