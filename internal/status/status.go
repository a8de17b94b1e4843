// Package status defines the error taxonomy shared by every gbcore package.
//
// All public operations return one of these sentinels (possibly wrapped with
// context via %w). Callers match them with errors.Is.
package status

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for nil required handles, malformed
	// dimensions and out-of-range indices.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDomainMismatch is returned when incompatible types are combined.
	ErrDomainMismatch = errors.New("domain mismatch")

	// ErrOverflow is returned when index or size arithmetic would wrap.
	ErrOverflow = errors.New("index or size overflow")

	// ErrOutOfMemory is returned when the allocator is exhausted.
	// It is always recoverable: the failed operation leaves its inputs intact.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrCorruption is returned when an internal invariant does not hold.
	ErrCorruption = errors.New("corruption detected")

	// ErrNotFinalized is returned when an operation requires a matrix without
	// pending tuples or zombies.
	ErrNotFinalized = errors.New("matrix has pending work")
)

// Corrupt reports a violated invariant. Debug builds panic, release builds
// return an error wrapping ErrCorruption.
func Corrupt(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrCorruption, fmt.Sprintf(format, args...))
	if Debug {
		panic(err)
	}
	return err
}

// Assert returns nil if cond holds, otherwise Corrupt(msg).
func Assert(cond bool, msg string) error {
	if cond {
		return nil
	}
	return Corrupt("%s", msg)
}
