package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/types"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		k    types.Kind
		want string
	}{
		{types.Bit, "bit"},
		{types.Float, "float"},
		{types.Function, "function"},
		{types.Pointer, "pointer"},
		{types.Record, "record"},
		{types.Array, "array"},
		{types.MemoryState, "memstate"},
		{types.Control, "control"},
		{types.Kind(99), "kind(99)"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.k.String())
	}
}

func TestBitTypeEqual(t *testing.T) {
	t.Parallel()

	require.True(t, types.BitType{Width: 32}.Equal(types.BitType{Width: 32}))
	require.False(t, types.BitType{Width: 32}.Equal(types.BitType{Width: 64}))
	require.False(t, types.BitType{Width: 32}.Equal(types.FloatType{Format: types.Single}))
	require.Equal(t, types.Bit, types.BitType{Width: 8}.Kind())
	require.Equal(t, "bit8", types.BitType{Width: 8}.String())
}

func TestFloatTypeEqual(t *testing.T) {
	t.Parallel()

	require.True(t, types.FloatType{Format: types.Double}.Equal(types.FloatType{Format: types.Double}))
	require.False(t, types.FloatType{Format: types.Double}.Equal(types.FloatType{Format: types.Single}))
	require.Equal(t, "single", types.FloatType{Format: types.Single}.String())
	require.Equal(t, "floatfmt(7)", types.FloatFormat(7).String())
}

func TestFunctionTypeEqualAndString(t *testing.T) {
	t.Parallel()

	f1 := types.FunctionType{
		Args:    []types.Type{types.BitType{Width: 32}},
		Results: []types.Type{types.BitType{Width: 1}},
	}
	f2 := types.FunctionType{
		Args:    []types.Type{types.BitType{Width: 32}},
		Results: []types.Type{types.BitType{Width: 1}},
	}
	f3 := types.FunctionType{
		Args:    []types.Type{types.BitType{Width: 64}},
		Results: []types.Type{types.BitType{Width: 1}},
	}
	f4 := types.FunctionType{
		Args:    []types.Type{types.BitType{Width: 32}},
		Results: []types.Type{types.BitType{Width: 1}},
		VarArgs: true,
	}

	require.True(t, f1.Equal(f2))
	require.False(t, f1.Equal(f3))
	require.False(t, f1.Equal(f4))
	require.False(t, f1.Equal(types.BitType{Width: 32}))
	require.Equal(t, "(bit32) -> (bit1)", f1.String())
	require.Equal(t, "(bit32, ...) -> (bit1)", f4.String())
}

func TestPointerTypeEqualAndString(t *testing.T) {
	t.Parallel()

	p1 := types.PointerType{Pointee: types.BitType{Width: 8}}
	p2 := types.PointerType{Pointee: types.BitType{Width: 8}}
	p3 := types.PointerType{Pointee: types.BitType{Width: 16}}

	require.True(t, p1.Equal(p2))
	require.False(t, p1.Equal(p3))
	require.Equal(t, "*bit8", p1.String())
	require.True(t, types.IsPointer(p1))
	require.False(t, types.IsPointer(types.BitType{Width: 8}))
}

func TestRecordTypeEqualAndString(t *testing.T) {
	t.Parallel()

	r1 := types.RecordType{Fields: []types.Type{types.BitType{Width: 8}, types.BitType{Width: 16}}}
	r2 := types.RecordType{Fields: []types.Type{types.BitType{Width: 8}, types.BitType{Width: 16}}}
	r3 := types.RecordType{Fields: []types.Type{types.BitType{Width: 8}}}

	require.True(t, r1.Equal(r2))
	require.False(t, r1.Equal(r3))
	require.Equal(t, "{bit8, bit16}", r1.String())
}

func TestArrayTypeEqualAndString(t *testing.T) {
	t.Parallel()

	a1 := types.ArrayType{Element: types.BitType{Width: 8}, Length: 4}
	a2 := types.ArrayType{Element: types.BitType{Width: 8}, Length: 4}
	a3 := types.ArrayType{Element: types.BitType{Width: 8}, Length: 5}

	require.True(t, a1.Equal(a2))
	require.False(t, a1.Equal(a3))
	require.Equal(t, "[4]bit8", a1.String())
}

func TestMemoryStateTypeEqual(t *testing.T) {
	t.Parallel()

	require.True(t, types.MemoryStateType{}.Equal(types.MemoryStateType{}))
	require.False(t, types.MemoryStateType{}.Equal(types.BitType{Width: 8}))
	require.Equal(t, "memstate", types.MemoryStateType{}.String())
}

func TestControlTypeEqual(t *testing.T) {
	t.Parallel()

	require.True(t, types.ControlType{NAlternatives: 2}.Equal(types.ControlType{NAlternatives: 2}))
	require.False(t, types.ControlType{NAlternatives: 2}.Equal(types.ControlType{NAlternatives: 3}))
	require.Equal(t, "ctl(2)", types.ControlType{NAlternatives: 2}.String())
}
