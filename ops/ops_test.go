package ops

import (
	"testing"

	"github.com/hupe1980/gbcore/internal/status"
	"github.com/hupe1980/gbcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plusFP64(z, x, y []byte) {
	types.PutFloat64(z, types.GetFloat64(x)+types.GetFloat64(y))
}

func TestBuiltinOperators(t *testing.T) {
	z := make([]byte, 8)

	require.NoError(t, Plus(types.FP64).Apply(z, types.FP64.Bytes(1.5), types.FP64.Bytes(2)))
	assert.Equal(t, 3.5, types.GetFloat64(z))

	require.NoError(t, Builtin(OpMin, types.Int64).Apply(z, types.Int64.Bytes(-3), types.Int64.Bytes(7)))
	assert.Equal(t, int64(-3), types.GetInt64(z))

	require.NoError(t, Second(types.Int32).Apply(z, types.Int32.Bytes(1), types.Int32.Bytes(9)))
	assert.Equal(t, types.Int32.Bytes(9), z[:4])

	b := make([]byte, 1)
	require.NoError(t, Builtin(OpLXor, types.Bool).Apply(b, []byte{1}, []byte{1}))
	assert.False(t, types.GetBool(b))

	assert.Nil(t, Builtin(OpLOr, types.FP64))
	assert.Nil(t, Builtin(OpPlus, nil))
	assert.Equal(t, "plus_fp64", Plus(types.FP64).Name)
}

func TestFreeBinaryOp(t *testing.T) {
	t.Run("nil is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { FreeBinaryOp(nil) })
	})

	t.Run("builtins are never freed", func(t *testing.T) {
		op := Plus(types.FP64)
		FreeBinaryOp(op)
		assert.True(t, op.Valid())
		assert.True(t, op.Builtin())
	})

	t.Run("owned releases definition", func(t *testing.T) {
		op, err := NewBinaryOp("myplus", plusFP64, types.FP64, types.FP64, types.FP64, []byte("z = x + y"))
		require.NoError(t, err)
		assert.Equal(t, []byte("z = x + y"), op.Definition())
		assert.False(t, op.Builtin())

		FreeBinaryOp(op)
		assert.False(t, op.Valid())
		assert.Nil(t, op.Definition())

		// Second free is harmless.
		assert.NotPanics(t, func() { FreeBinaryOp(op) })
	})

	t.Run("apply after free reports corruption", func(t *testing.T) {
		op, err := NewBinaryOp("myplus", plusFP64, types.FP64, types.FP64, types.FP64, nil)
		require.NoError(t, err)
		FreeBinaryOp(op)

		if status.Debug {
			t.Skip("corruption panics in debug builds")
		}
		err = op.Apply(make([]byte, 8), types.FP64.Bytes(1), types.FP64.Bytes(1))
		assert.ErrorIs(t, err, status.ErrCorruption)
	})
}

func TestNewBinaryOpValidation(t *testing.T) {
	_, err := NewBinaryOp("nofn", nil, types.FP64, types.FP64, types.FP64, nil)
	assert.ErrorIs(t, err, status.ErrInvalidArgument)

	_, err = NewBinaryOp("notype", plusFP64, nil, types.FP64, types.FP64, nil)
	assert.ErrorIs(t, err, status.ErrInvalidArgument)
}

func TestIsSecond(t *testing.T) {
	assert.True(t, IsSecond(nil, types.FP64))
	assert.True(t, IsSecond(Second(types.FP64), types.FP64))
	assert.True(t, IsSecond(Second(types.FP64), nil))
	assert.False(t, IsSecond(Second(types.FP64), types.Int64))
	assert.False(t, IsSecond(Plus(types.FP64), types.FP64))
	assert.False(t, IsSecond(&BinaryOp{}, nil))
	assert.False(t, (&BinaryOp{}).Valid())
}

func TestMonoid(t *testing.T) {
	t.Run("builtin identities", func(t *testing.T) {
		m := BuiltinMonoid(OpPlus, types.Int64)
		require.NotNil(t, m)
		assert.Equal(t, int64(0), types.GetInt64(m.Identity))
		assert.Nil(t, m.Terminal)

		lor := BuiltinMonoid(OpLOr, types.Bool)
		assert.True(t, lor.IsTerminal([]byte{1}))
		assert.False(t, lor.IsTerminal([]byte{0}))

		FreeMonoid(lor)
		assert.True(t, lor.Valid())
	})

	t.Run("owned", func(t *testing.T) {
		op, err := NewBinaryOp("myplus", plusFP64, types.FP64, types.FP64, types.FP64, nil)
		require.NoError(t, err)

		m, err := NewMonoid(op, types.FP64.Bytes(0), nil)
		require.NoError(t, err)
		assert.True(t, m.Valid())

		FreeMonoid(m)
		assert.False(t, m.Valid())
		assert.Nil(t, m.Identity)
		// The operator outlives the monoid.
		assert.True(t, op.Valid())
		FreeMonoid(m)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := NewMonoid(nil, nil, nil)
		assert.ErrorIs(t, err, status.ErrInvalidArgument)

		mixed, err := NewBinaryOp("mixed", plusFP64, types.FP64, types.Int64, types.FP64, nil)
		require.NoError(t, err)
		_, err = NewMonoid(mixed, types.FP64.Bytes(0), nil)
		assert.ErrorIs(t, err, status.ErrDomainMismatch)

		_, err = NewMonoid(Plus(types.FP64), []byte{0}, nil)
		assert.ErrorIs(t, err, status.ErrInvalidArgument)
	})
}

func TestSemiring(t *testing.T) {
	t.Run("builtin", func(t *testing.T) {
		s := BuiltinSemiring(OpLOr, OpLAnd, types.Bool)
		require.NotNil(t, s)
		assert.True(t, s.Builtin())
		assert.True(t, s.Valid())

		pt := BuiltinSemiring(OpPlus, OpTimes, types.FP64)
		require.NotNil(t, pt)
		assert.Equal(t, OpTimes, pt.Multiply.Opcode)
		FreeSemiring(pt)
		assert.True(t, pt.Valid())
	})

	t.Run("owned does not free references", func(t *testing.T) {
		add := BuiltinMonoid(OpMin, types.FP64)
		mul := Plus(types.FP64)

		s, err := NewSemiring(add, mul)
		require.NoError(t, err)
		FreeSemiring(s)

		assert.False(t, s.Valid())
		assert.True(t, add.Valid())
		assert.True(t, mul.Valid())
	})

	t.Run("shared monoid", func(t *testing.T) {
		op, _ := NewBinaryOp("myplus", plusFP64, types.FP64, types.FP64, types.FP64, nil)
		add, err := NewMonoid(op, types.FP64.Bytes(0), nil)
		require.NoError(t, err)

		s1, err := NewSemiring(add, Builtin(OpTimes, types.FP64))
		require.NoError(t, err)
		s2, err := NewSemiring(add, Builtin(OpFirst, types.FP64))
		require.NoError(t, err)

		FreeSemiring(s1)
		assert.True(t, s2.Valid())

		FreeMonoid(add)
		assert.False(t, s2.Valid())
	})

	t.Run("domain mismatch", func(t *testing.T) {
		_, err := NewSemiring(BuiltinMonoid(OpPlus, types.FP64), Builtin(OpTimes, types.Int64))
		assert.ErrorIs(t, err, status.ErrDomainMismatch)
	})
}
