package accel

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Backend is an accelerated implementation of the core's bulk operations.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// SortPending fills perm with the stable permutation that orders the
	// tuples by (col, row). It returns false to decline, in which case the
	// caller sorts on its own.
	SortPending(rows, cols []uint64, perm []int) bool
}

var (
	enabled atomic.Bool

	mu      sync.RWMutex
	backend Backend = radixBackend{}
)

func init() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GBCORE_ACCEL"))) {
	case "1", "true", "on", "yes":
		enabled.Store(true)
	}
}

// Enabled reports whether the accelerator switch is on.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled flips the switch and returns the previous value.
func SetEnabled(on bool) bool {
	return enabled.Swap(on)
}

// Register installs b as the backend and returns the previous one.
// A nil b restores the built-in radix backend.
func Register(b Backend) Backend {
	if b == nil {
		b = radixBackend{}
	}
	mu.Lock()
	defer mu.Unlock()
	prev := backend
	backend = b
	return prev
}

// Current returns the backend to dispatch into, or false when the switch
// is off.
func Current() (Backend, bool) {
	if !enabled.Load() {
		return nil, false
	}
	mu.RLock()
	defer mu.RUnlock()
	return backend, true
}
