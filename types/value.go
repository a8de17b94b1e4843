package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/gbcore/internal/status"
)

// Values are stored little-endian, Size bytes per element.

func PutBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

func GetBool(b []byte) bool { return b[0] != 0 }

func PutInt64(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) }

func GetInt64(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func GetUint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func PutFloat64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) }

func GetFloat64(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }

func PutFloat32(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }

func GetFloat32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

// Bytes encodes v as a value of the built-in type t.
func (t *Type) Bytes(v float64) []byte {
	b := make([]byte, t.Size)
	src := make([]byte, 8)
	PutFloat64(src, v)
	_ = Cast(b, t, src, FP64)
	return b
}

// scalar is the widened form every built-in value is read into.
type scalar struct {
	kind byte // 'b', 'i', 'u', 'f'
	i    int64
	u    uint64
	f    float64
}

func load(b []byte, c Code) scalar {
	switch c {
	case CodeBool:
		if b[0] != 0 {
			return scalar{kind: 'b', u: 1}
		}
		return scalar{kind: 'b'}
	case CodeInt8:
		return scalar{kind: 'i', i: int64(int8(b[0]))}
	case CodeUint8:
		return scalar{kind: 'u', u: uint64(b[0])}
	case CodeInt16:
		return scalar{kind: 'i', i: int64(int16(binary.LittleEndian.Uint16(b)))}
	case CodeUint16:
		return scalar{kind: 'u', u: uint64(binary.LittleEndian.Uint16(b))}
	case CodeInt32:
		return scalar{kind: 'i', i: int64(int32(binary.LittleEndian.Uint32(b)))}
	case CodeUint32:
		return scalar{kind: 'u', u: uint64(binary.LittleEndian.Uint32(b))}
	case CodeInt64:
		return scalar{kind: 'i', i: GetInt64(b)}
	case CodeUint64:
		return scalar{kind: 'u', u: GetUint64(b)}
	case CodeFP32:
		return scalar{kind: 'f', f: float64(GetFloat32(b))}
	default:
		return scalar{kind: 'f', f: GetFloat64(b)}
	}
}

func (s scalar) nonZero() bool {
	switch s.kind {
	case 'i':
		return s.i != 0
	case 'f':
		return s.f != 0
	default:
		return s.u != 0
	}
}

func (s scalar) asFloat() float64 {
	switch s.kind {
	case 'i':
		return float64(s.i)
	case 'f':
		return s.f
	default:
		return float64(s.u)
	}
}

// asInt64 wraps integers and saturates floats (NaN becomes 0).
func (s scalar) asInt64(lo, hi int64) int64 {
	switch s.kind {
	case 'i':
		return s.i
	case 'f':
		return saturate(s.f, float64(lo), float64(hi), lo, hi)
	default:
		return int64(s.u)
	}
}

func (s scalar) asUint64(hi uint64) uint64 {
	switch s.kind {
	case 'i':
		return uint64(s.i)
	case 'f':
		switch {
		case math.IsNaN(s.f) || s.f <= 0:
			return 0
		case s.f >= float64(hi):
			return hi
		default:
			return uint64(s.f)
		}
	default:
		return s.u
	}
}

func saturate(f, flo, fhi float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= flo:
		return lo
	case f >= fhi:
		return hi
	default:
		return int64(f)
	}
}

func store(b []byte, c Code, s scalar) {
	switch c {
	case CodeBool:
		PutBool(b, s.nonZero())
	case CodeInt8:
		b[0] = byte(int8(s.asInt64(math.MinInt8, math.MaxInt8)))
	case CodeUint8:
		b[0] = uint8(s.asUint64(math.MaxUint8))
	case CodeInt16:
		binary.LittleEndian.PutUint16(b, uint16(int16(s.asInt64(math.MinInt16, math.MaxInt16))))
	case CodeUint16:
		binary.LittleEndian.PutUint16(b, uint16(s.asUint64(math.MaxUint16)))
	case CodeInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(s.asInt64(math.MinInt32, math.MaxInt32))))
	case CodeUint32:
		binary.LittleEndian.PutUint32(b, uint32(s.asUint64(math.MaxUint32)))
	case CodeInt64:
		PutInt64(b, s.asInt64(math.MinInt64, math.MaxInt64))
	case CodeUint64:
		PutUint64(b, s.asUint64(math.MaxUint64))
	case CodeFP32:
		PutFloat32(b, float32(s.asFloat()))
	default:
		PutFloat64(b, s.asFloat())
	}
}

// Cast converts the value src of type st into dst of type dt. Built-in types
// cast freely; a user-defined type only casts to itself (a plain copy).
func Cast(dst []byte, dt *Type, src []byte, st *Type) error {
	if dt == nil || st == nil {
		return fmt.Errorf("%w: cast requires concrete types", status.ErrInvalidArgument)
	}
	if len(dst) < dt.Size || len(src) < st.Size {
		return fmt.Errorf("%w: cast buffer too small", status.ErrInvalidArgument)
	}
	if dt == st {
		copy(dst[:dt.Size], src[:st.Size])
		return nil
	}
	if dt.IsUserDefined() || st.IsUserDefined() {
		return fmt.Errorf("%w: cannot cast %s to %s", status.ErrDomainMismatch, st, dt)
	}
	store(dst, dt.Code, load(src, st.Code))
	return nil
}

// Float64Of reads a built-in value as float64.
func Float64Of(b []byte, t *Type) (float64, error) {
	if t == nil || t.IsUserDefined() {
		return 0, fmt.Errorf("%w: %s is not numeric", status.ErrDomainMismatch, t)
	}
	return load(b, t.Code).asFloat(), nil
}
