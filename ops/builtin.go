package ops

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/gbcore/types"
)

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

type codec[T number] struct {
	get func([]byte) T
	put func([]byte, T)
}

var (
	int8Codec   = codec[int8]{func(b []byte) int8 { return int8(b[0]) }, func(b []byte, v int8) { b[0] = byte(v) }}
	uint8Codec  = codec[uint8]{func(b []byte) uint8 { return b[0] }, func(b []byte, v uint8) { b[0] = v }}
	int16Codec  = codec[int16]{func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }, func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) }}
	uint16Codec = codec[uint16]{binary.LittleEndian.Uint16, func(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }}
	int32Codec  = codec[int32]{func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }, func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }}
	uint32Codec = codec[uint32]{binary.LittleEndian.Uint32, func(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }}
	int64Codec  = codec[int64]{types.GetInt64, types.PutInt64}
	uint64Codec = codec[uint64]{types.GetUint64, types.PutUint64}
	fp32Codec   = codec[float32]{types.GetFloat32, types.PutFloat32}
	fp64Codec   = codec[float64]{types.GetFloat64, types.PutFloat64}
)

type opKey struct {
	opcode Opcode
	code   types.Code
}

var (
	builtinOps       = map[opKey]*BinaryOp{}
	builtinMonoids   = map[opKey]*Monoid{}
	builtinSemirings = map[[2]Opcode]map[types.Code]*Semiring{}
)

// Builtin returns the built-in operator for opcode over t, or nil.
func Builtin(opcode Opcode, t *types.Type) *BinaryOp {
	if t == nil {
		return nil
	}
	return builtinOps[opKey{opcode, t.Code}]
}

// Second returns the built-in SECOND operator over t.
func Second(t *types.Type) *BinaryOp { return Builtin(OpSecond, t) }

// Plus returns the built-in PLUS operator over t.
func Plus(t *types.Type) *BinaryOp { return Builtin(OpPlus, t) }

// BuiltinMonoid returns the built-in monoid for opcode over t, or nil.
func BuiltinMonoid(opcode Opcode, t *types.Type) *Monoid {
	if t == nil {
		return nil
	}
	return builtinMonoids[opKey{opcode, t.Code}]
}

// BuiltinSemiring returns the built-in semiring add.mul over t, or nil.
func BuiltinSemiring(add, mul Opcode, t *types.Type) *Semiring {
	if t == nil {
		return nil
	}
	return builtinSemirings[[2]Opcode{add, mul}][t.Code]
}

func defineOp(opcode Opcode, t, z *types.Type, fn BinaryFunc) *BinaryOp {
	op := &BinaryOp{
		Opcode: opcode,
		X:      t,
		Y:      t,
		Z:      z,
		Name:   opcode.String() + "_" + t.Name,
		fn:     fn,
		alloc:  static{},
	}
	builtinOps[opKey{opcode, t.Code}] = op
	return op
}

func defineMonoid(op *BinaryOp, identity, terminal []byte) {
	builtinMonoids[opKey{op.Opcode, op.Z.Code}] = &Monoid{
		Op:       op,
		Identity: identity,
		Terminal: terminal,
		alloc:    static{},
	}
}

func defineSemiring(add, mul Opcode, t *types.Type) {
	key := [2]Opcode{add, mul}
	if builtinSemirings[key] == nil {
		builtinSemirings[key] = map[types.Code]*Semiring{}
	}
	builtinSemirings[key][t.Code] = &Semiring{
		Add:      BuiltinMonoid(add, t),
		Multiply: Builtin(mul, t),
		alloc:    static{},
	}
}

func defineNumeric[T number](t *types.Type, c codec[T], lowest, highest T) {
	size := t.Size
	defineOp(OpFirst, t, t, func(z, x, _ []byte) { copy(z[:size], x) })
	defineOp(OpSecond, t, t, func(z, _, y []byte) { copy(z[:size], y) })
	defineOp(OpPair, t, t, func(z, _, _ []byte) { c.put(z, 1) })
	plus := defineOp(OpPlus, t, t, func(z, x, y []byte) { c.put(z, c.get(x)+c.get(y)) })
	defineOp(OpMinus, t, t, func(z, x, y []byte) { c.put(z, c.get(x)-c.get(y)) })
	times := defineOp(OpTimes, t, t, func(z, x, y []byte) { c.put(z, c.get(x)*c.get(y)) })
	lo := defineOp(OpMin, t, t, func(z, x, y []byte) { c.put(z, min(c.get(x), c.get(y))) })
	hi := defineOp(OpMax, t, t, func(z, x, y []byte) { c.put(z, max(c.get(x), c.get(y))) })

	enc := func(v T) []byte {
		b := make([]byte, size)
		c.put(b, v)
		return b
	}
	defineMonoid(plus, enc(0), nil)
	defineMonoid(times, enc(1), nil)
	defineMonoid(lo, enc(highest), enc(lowest))
	defineMonoid(hi, enc(lowest), enc(highest))

	defineSemiring(OpPlus, OpTimes, t)
	defineSemiring(OpMin, OpPlus, t)
	defineSemiring(OpMax, OpPlus, t)
}

func defineBool() {
	t := types.Bool
	get, put := types.GetBool, types.PutBool
	defineOp(OpFirst, t, t, func(z, x, _ []byte) { z[0] = x[0] })
	defineOp(OpSecond, t, t, func(z, _, y []byte) { z[0] = y[0] })
	defineOp(OpPair, t, t, func(z, _, _ []byte) { put(z, true) })
	lor := defineOp(OpLOr, t, t, func(z, x, y []byte) { put(z, get(x) || get(y)) })
	land := defineOp(OpLAnd, t, t, func(z, x, y []byte) { put(z, get(x) && get(y)) })
	lxor := defineOp(OpLXor, t, t, func(z, x, y []byte) { put(z, get(x) != get(y)) })

	defineMonoid(lor, []byte{0}, []byte{1})
	defineMonoid(land, []byte{1}, []byte{0})
	defineMonoid(lxor, []byte{0}, nil)

	defineSemiring(OpLOr, OpLAnd, t)
}

func init() {
	defineBool()
	defineNumeric(types.Int8, int8Codec, math.MinInt8, math.MaxInt8)
	defineNumeric(types.Uint8, uint8Codec, 0, math.MaxUint8)
	defineNumeric(types.Int16, int16Codec, math.MinInt16, math.MaxInt16)
	defineNumeric(types.Uint16, uint16Codec, 0, math.MaxUint16)
	defineNumeric(types.Int32, int32Codec, math.MinInt32, math.MaxInt32)
	defineNumeric(types.Uint32, uint32Codec, 0, math.MaxUint32)
	defineNumeric(types.Int64, int64Codec, math.MinInt64, math.MaxInt64)
	defineNumeric(types.Uint64, uint64Codec, 0, math.MaxUint64)
	defineNumeric(types.FP32, fp32Codec, float32(math.Inf(-1)), float32(math.Inf(1)))
	defineNumeric(types.FP64, fp64Codec, math.Inf(-1), math.Inf(1))
}
