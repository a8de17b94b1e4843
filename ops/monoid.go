package ops

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/gbcore/internal/status"
)

// Monoid is an associative operator with an identity value and an optional
// terminal value at which a reduction may stop early.
type Monoid struct {
	Op       *BinaryOp
	Identity []byte
	Terminal []byte

	alloc allocation
}

// NewMonoid creates a user-defined monoid. op must have identical x, y and z
// types; identity (and terminal, if given) must hold one value of that type.
func NewMonoid(op *BinaryOp, identity, terminal []byte) (*Monoid, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: monoid requires a valid operator", status.ErrInvalidArgument)
	}
	if op.X != op.Z || op.Y != op.Z {
		return nil, fmt.Errorf("%w: monoid operator %s must have identical x, y and z types", status.ErrDomainMismatch, op)
	}
	size := op.Z.Size
	if len(identity) != size {
		return nil, fmt.Errorf("%w: identity has %d bytes, want %d", status.ErrInvalidArgument, len(identity), size)
	}
	if terminal != nil && len(terminal) != size {
		return nil, fmt.Errorf("%w: terminal has %d bytes, want %d", status.ErrInvalidArgument, len(terminal), size)
	}

	m := &Monoid{
		Op:       op,
		Identity: append([]byte(nil), identity...),
		alloc:    &owned{},
	}
	if terminal != nil {
		m.Terminal = append([]byte(nil), terminal...)
	}
	return m, nil
}

// Valid reports whether m is non-nil and not freed.
func (m *Monoid) Valid() bool {
	if m == nil || m.alloc == nil {
		return false
	}
	_, dead := m.alloc.(freed)
	return !dead && m.Op.Valid()
}

// Builtin reports whether m is a static built-in.
func (m *Monoid) Builtin() bool {
	if m == nil {
		return false
	}
	_, ok := m.alloc.(static)
	return ok
}

// IsTerminal reports whether v equals the monoid's terminal value.
func (m *Monoid) IsTerminal(v []byte) bool {
	return m.Terminal != nil && bytes.Equal(m.Terminal, v[:len(m.Terminal)])
}

// FreeMonoid releases a user-defined monoid together with its identity and
// terminal buffers. The operator is not freed.
func FreeMonoid(m *Monoid) {
	if m == nil {
		return
	}
	switch m.alloc.(type) {
	case static, freed:
		return
	case *owned:
		m.Identity = nil
		m.Terminal = nil
		m.alloc = freed{}
	}
}
