package workspace

import (
	"fmt"
	"math"

	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/status"
)

// Mark is a stamp array with an amortized O(1) clear.
type Mark struct {
	stamps []int64
	flag   int64
	clears int64
}

// Ensure grows the array to at least n entries. Growing clears the array.
func (m *Mark) Ensure(n int) error {
	if n < 0 || uint64(n) > conv.MaxIndex {
		return fmt.Errorf("%w: mark size %d", status.ErrOverflow, n)
	}
	if m.flag == 0 {
		m.flag = 1
	}
	if len(m.stamps) >= n {
		return nil
	}
	m.stamps = make([]int64, n)
	m.flag = 1
	return nil
}

// Len returns the number of stamps.
func (m *Mark) Len() int { return len(m.stamps) }

// Flag returns the current round value.
func (m *Mark) Flag() int64 { return m.flag }

// Clears returns how many times the array was physically zeroed by Reset.
func (m *Mark) Clears() int64 { return m.clears }

// Reset starts a new round and returns its flag. Callers that store
// flag+k (0 <= k < rng) pass rng so the next round starts past every stamp.
// An increment of 0, or a flag that would overflow, zeroes the array and
// restarts at 1.
func (m *Mark) Reset(increment, rng int64) int64 {
	if increment < 0 {
		increment = 0
	}
	if rng < 0 {
		rng = 0
	}

	if increment == 0 || m.flag > math.MaxInt64-increment || m.flag+increment > math.MaxInt64-rng {
		clear(m.stamps)
		m.flag = 1
		m.clears++
		return m.flag
	}

	next := m.flag + increment
	if status.Debug {
		for i, s := range m.stamps {
			if s >= next {
				_ = status.Corrupt("mark stamp %d at %d not below new flag %d", s, i, next)
			}
		}
	}
	m.flag = next
	return m.flag
}

// Mark stamps i with the current flag.
func (m *Mark) Mark(i int) { m.stamps[i] = m.flag }

// IsMarked reports whether i was stamped in the current round.
func (m *Mark) IsMarked(i int) bool { return m.stamps[i] == m.flag }

// Set stores an arbitrary stamp.
func (m *Mark) Set(i int, v int64) { m.stamps[i] = v }

// Get returns the stamp at i.
func (m *Mark) Get(i int) int64 { return m.stamps[i] }

// Clear reports whether no stamp reaches the current flag.
func (m *Mark) Clear() bool {
	for _, s := range m.stamps {
		if s >= m.flag {
			return false
		}
	}
	return true
}
