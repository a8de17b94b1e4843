package ops

import (
	"fmt"

	"github.com/hupe1980/gbcore/internal/status"
)

// Semiring pairs an additive monoid with a multiplicative operator. It holds
// references only; the monoid and operator may be shared and outlive it.
type Semiring struct {
	Add      *Monoid
	Multiply *BinaryOp

	alloc allocation
}

// NewSemiring creates a user-defined semiring. The multiply operator's output
// type must be the monoid's type.
func NewSemiring(add *Monoid, multiply *BinaryOp) (*Semiring, error) {
	if !add.Valid() || !multiply.Valid() {
		return nil, fmt.Errorf("%w: semiring requires a valid monoid and operator", status.ErrInvalidArgument)
	}
	if multiply.Z != add.Op.Z {
		return nil, fmt.Errorf("%w: multiply produces %s, monoid is over %s", status.ErrDomainMismatch, multiply.Z, add.Op.Z)
	}
	return &Semiring{Add: add, Multiply: multiply, alloc: &owned{}}, nil
}

// Valid reports whether s and the objects it references are usable.
func (s *Semiring) Valid() bool {
	if s == nil || s.alloc == nil {
		return false
	}
	_, dead := s.alloc.(freed)
	return !dead && s.Add.Valid() && s.Multiply.Valid()
}

// Builtin reports whether s is a static built-in.
func (s *Semiring) Builtin() bool {
	if s == nil {
		return false
	}
	_, ok := s.alloc.(static)
	return ok
}

// FreeSemiring releases a user-defined semiring. Its monoid and operator are
// left untouched.
func FreeSemiring(s *Semiring) {
	if s == nil {
		return
	}
	switch s.alloc.(type) {
	case static, freed:
		return
	case *owned:
		s.alloc = freed{}
	}
}
