package ops

import (
	"fmt"

	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/types"
)

// Opcode tags an operator.
type Opcode uint8

const (
	OpFirst Opcode = iota + 1
	OpSecond
	OpPair
	OpPlus
	OpMinus
	OpTimes
	OpMin
	OpMax
	OpLOr
	OpLAnd
	OpLXor
	// OpUser tags every user-defined operator.
	OpUser
)

var opcodeNames = [...]string{
	OpFirst: "first", OpSecond: "second", OpPair: "pair", OpPlus: "plus",
	OpMinus: "minus", OpTimes: "times", OpMin: "min", OpMax: "max",
	OpLOr: "lor", OpLAnd: "land", OpLXor: "lxor", OpUser: "user",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return "unknown"
}

// BinaryFunc computes z = f(x, y). Each slice holds exactly one value of the
// operator's corresponding type.
type BinaryFunc func(z, x, y []byte)

// BinaryOp is a binary operator z = f(x, y).
type BinaryOp struct {
	Opcode  Opcode
	X, Y, Z *types.Type
	Name    string

	fn    BinaryFunc
	alloc allocation
}

// NewBinaryOp creates a user-defined operator. definition is an optional blob
// (for example source text for later code generation) owned by the operator.
func NewBinaryOp(name string, fn BinaryFunc, z, x, y *types.Type, definition []byte) (*BinaryOp, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: operator %q has no function", status.ErrInvalidArgument, name)
	}
	if z == nil || x == nil || y == nil {
		return nil, fmt.Errorf("%w: operator %q requires x, y and z types", status.ErrInvalidArgument, name)
	}

	var defn []byte
	if len(definition) > 0 {
		defn = append([]byte(nil), definition...)
	}

	return &BinaryOp{
		Opcode: OpUser,
		X:      x,
		Y:      y,
		Z:      z,
		Name:   name,
		fn:     fn,
		alloc:  &owned{definition: defn},
	}, nil
}

// Valid reports whether op is non-nil and not freed.
func (op *BinaryOp) Valid() bool {
	if op == nil || op.alloc == nil {
		return false
	}
	_, dead := op.alloc.(freed)
	return !dead
}

// Builtin reports whether op is a static built-in.
func (op *BinaryOp) Builtin() bool {
	if op == nil {
		return false
	}
	_, ok := op.alloc.(static)
	return ok
}

// Definition returns the definition blob of a user operator.
func (op *BinaryOp) Definition() []byte {
	if o, ok := op.alloc.(*owned); ok {
		return o.definition
	}
	return nil
}

// Apply computes z = op(x, y).
func (op *BinaryOp) Apply(z, x, y []byte) error {
	if !op.Valid() {
		return status.Corrupt("use of freed operator")
	}
	op.fn(z, x, y)
	return nil
}

func (op *BinaryOp) String() string {
	if op == nil {
		return "<nil>"
	}
	return op.Name
}

// FreeBinaryOp releases a user-defined operator. It is a no-op for nil,
// static and already-freed operators.
func FreeBinaryOp(op *BinaryOp) {
	if op == nil {
		return
	}
	switch a := op.alloc.(type) {
	case static, freed:
		return
	case *owned:
		a.definition = nil
		op.fn = nil
		op.alloc = freed{}
	}
}

// IsSecond reports whether op resolves duplicates by keeping the second
// operand: op is nil (implied overwrite) or the built-in SECOND whose x, y and
// z types all equal t. A nil t means any type.
func IsSecond(op *BinaryOp, t *types.Type) bool {
	if op == nil {
		return true
	}
	if op.Opcode != OpSecond {
		return false
	}
	if t == nil {
		return true
	}
	return op.X == t && op.Y == t && op.Z == t
}
