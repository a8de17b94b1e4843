package mem

import (
	"math/bits"
	"sync"
)

const (
	// MinClass is the smallest size class (8 bytes).
	MinClass = 3
	// MaxClass is the largest size class (2^60 bytes).
	MaxClass = 60
	// DefaultClassLimit bounds the blocks cached per class.
	DefaultClassLimit = 64
)

// ClassOf returns the smallest class whose blocks hold size bytes, or -1 if
// size exceeds the largest class.
func ClassOf(size int) int {
	if size <= 1<<MinClass {
		return MinClass
	}
	c := bits.Len64(uint64(size) - 1)
	if c > MaxClass {
		return -1
	}
	return c
}

// classOfCap returns the class of a block with exactly this capacity, or -1.
func classOfCap(c int) int {
	if c < 1<<MinClass || c&(c-1) != 0 {
		return -1
	}
	k := bits.TrailingZeros64(uint64(c))
	if k > MaxClass {
		return -1
	}
	return k
}

// Pool caches freed blocks by size class.
type Pool struct {
	mu      sync.Mutex
	classes [MaxClass + 1][][]byte
	limit   int
	cached  int64 // bytes currently cached
}

// NewPool creates a pool keeping at most limit blocks per class.
// A limit <= 0 uses DefaultClassLimit.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultClassLimit
	}
	return &Pool{limit: limit}
}

// Put caches block in class. It returns false, and the caller keeps
// ownership, if the block does not match the class or the class is full.
func (p *Pool) Put(block []byte, class int) bool {
	if class < MinClass || class > MaxClass || cap(block) != 1<<class {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.classes[class]) >= p.limit {
		return false
	}
	p.classes[class] = append(p.classes[class], block[:cap(block)])
	p.cached += int64(1) << class
	return true
}

// Get pops a cached block of the class, if any.
func (p *Pool) Get(class int) ([]byte, bool) {
	if class < MinClass || class > MaxClass {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	blocks := p.classes[class]
	if len(blocks) == 0 {
		return nil, false
	}
	b := blocks[len(blocks)-1]
	blocks[len(blocks)-1] = nil
	p.classes[class] = blocks[:len(blocks)-1]
	p.cached -= int64(1) << class
	return b, true
}

// Len returns the number of blocks cached in a class.
func (p *Pool) Len(class int) int {
	if class < MinClass || class > MaxClass {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.classes[class])
}

// CachedBytes returns the total size of cached blocks.
func (p *Pool) CachedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached
}

// Finalize drops every cached block and returns the number of bytes released.
// It is idempotent.
func (p *Pool) Finalize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	released := p.cached
	for c := range p.classes {
		clear(p.classes[c])
		p.classes[c] = nil
	}
	p.cached = 0
	return released
}
