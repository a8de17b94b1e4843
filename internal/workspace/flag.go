package workspace

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/gbcore/internal/status"
)

// Flag is a boolean scratch array.
type Flag struct {
	bits *bitset.BitSet
}

// Alloc makes room for required entries. The set is reallocated, zero
// filled, only when it is too small.
func (f *Flag) Alloc(required uint) {
	if f.bits != nil && f.bits.Len() >= required {
		return
	}
	f.bits = bitset.New(required)
}

// Len returns the capacity in entries.
func (f *Flag) Len() uint {
	if f.bits == nil {
		return 0
	}
	return f.bits.Len()
}

// Set sets entry i.
func (f *Flag) Set(i uint) { f.bits.Set(i) }

// Unset clears entry i.
func (f *Flag) Unset(i uint) { f.bits.Clear(i) }

// Test reports entry i.
func (f *Flag) Test(i uint) bool { return f.bits != nil && f.bits.Test(i) }

// Count returns the number of set entries.
func (f *Flag) Count() uint {
	if f.bits == nil {
		return 0
	}
	return f.bits.Count()
}

// AssertClear reports corruption if any entry is still set.
func (f *Flag) AssertClear() error {
	if f.bits == nil || !f.bits.Any() {
		return nil
	}
	return status.Corrupt("workspace flag has %d entries set", f.bits.Count())
}
