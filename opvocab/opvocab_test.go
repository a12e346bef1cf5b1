package opvocab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/types"
)

func TestSimpleAccessors(t *testing.T) {
	t.Parallel()

	s := &opvocab.Simple{
		Tag_:    opvocab.Call,
		Args:    []types.Type{types.BitType{Width: 32}},
		Results: []types.Type{types.BitType{Width: 64}},
		Payload: "foo",
	}
	require.Equal(t, opvocab.Call, s.Tag())
	require.Equal(t, []types.Type{types.BitType{Width: 32}}, s.ArgTypes())
	require.Equal(t, []types.Type{types.BitType{Width: 64}}, s.ResultTypes())
	require.Equal(t, "call:foo", s.DebugString())

	plain := &opvocab.Simple{Tag_: opvocab.Load}
	require.Equal(t, "load", plain.DebugString())
}

func TestSimpleEqual(t *testing.T) {
	t.Parallel()

	a := &opvocab.Simple{Tag_: opvocab.Store, Args: []types.Type{types.BitType{Width: 8}}, Payload: "x"}
	b := &opvocab.Simple{Tag_: opvocab.Store, Args: []types.Type{types.BitType{Width: 8}}, Payload: "x"}
	c := &opvocab.Simple{Tag_: opvocab.Store, Args: []types.Type{types.BitType{Width: 16}}, Payload: "x"}
	d := &opvocab.Simple{Tag_: opvocab.Load, Args: []types.Type{types.BitType{Width: 8}}, Payload: "x"}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
	require.False(t, a.Equal(nil))
}

func TestSimpleCopyIsIndependent(t *testing.T) {
	t.Parallel()

	orig := &opvocab.Simple{Tag_: opvocab.GetElementPtr, Args: []types.Type{types.BitType{Width: 8}}}
	cp := orig.Copy().(*opvocab.Simple)
	require.True(t, orig.Equal(cp))

	cp.Args[0] = types.BitType{Width: 64}
	require.False(t, orig.Equal(cp))
	require.Equal(t, types.BitType{Width: 8}, orig.Args[0])
}

func TestDirectCallee(t *testing.T) {
	t.Parallel()

	direct := &opvocab.Simple{Tag_: opvocab.Call, Payload: "pkg.Foo"}
	require.Equal(t, "pkg.Foo", opvocab.DirectCallee(direct))

	indirect := &opvocab.Simple{Tag_: opvocab.Call}
	require.Equal(t, "", opvocab.DirectCallee(indirect))

	notCall := &opvocab.Simple{Tag_: opvocab.Load, Payload: "pkg.Foo"}
	require.Equal(t, "", opvocab.DirectCallee(notCall))
}

func TestIsMemoryAllocating(t *testing.T) {
	t.Parallel()

	require.True(t, opvocab.Alloca.IsMemoryAllocating())
	require.False(t, opvocab.Load.IsMemoryAllocating())
	require.False(t, opvocab.Call.IsMemoryAllocating())
}

func TestRegistryDistinguishedTags(t *testing.T) {
	t.Parallel()

	r := opvocab.NewRegistry()
	for _, tag := range []opvocab.Tag{
		opvocab.Assignment, opvocab.Select, opvocab.Branch, opvocab.Phi,
		opvocab.Alloca, opvocab.Load, opvocab.Store, opvocab.GetElementPtr,
		opvocab.Bitcast, opvocab.Bits2Ptr, opvocab.PtrConstantNull,
		opvocab.UndefConstant, opvocab.Call, opvocab.MemStateMux,
	} {
		op, ok := r.New(tag)
		require.True(t, ok, "tag %q should be registered", tag)
		require.Equal(t, tag, op.Tag())
	}

	_, ok := r.New(opvocab.Tag("unknown"))
	require.False(t, ok)
}

func TestRegistryRegisterPrimitive(t *testing.T) {
	t.Parallel()

	r := opvocab.NewRegistry()
	r.Register(opvocab.Tag("icmp_eq"), func() opvocab.Operator {
		return &opvocab.Simple{Tag_: opvocab.Tag("icmp_eq"), Payload: "eq"}
	})

	op, ok := r.New(opvocab.Tag("icmp_eq"))
	require.True(t, ok)
	require.Equal(t, "icmp_eq:eq", op.DebugString())
}
