package encode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/encode"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/pointsto"
	"github.com/sjalander/jlmgo/region"
	"github.com/sjalander/jlmgo/types"
)

var (
	memT = types.MemoryStateType{}
	i32  = types.BitType{Width: 32}
	ptrI = types.PointerType{Pointee: i32}
)

func allocaOp() opvocab.Operator {
	return &opvocab.Simple{Tag_: opvocab.Alloca, Args: []types.Type{memT}, Results: []types.Type{ptrI, memT}}
}

func bitcastOp() opvocab.Operator {
	return &opvocab.Simple{Tag_: opvocab.Bitcast, Args: []types.Type{ptrI}, Results: []types.Type{ptrI}}
}

func loadOp() opvocab.Operator {
	return &opvocab.Simple{Tag_: opvocab.Load, Args: []types.Type{ptrI, memT}, Results: []types.Type{i32, memT}}
}

// buildTwoAllocatorLambda builds a lambda that allocates two distinct int32
// cells and loads through each (via a trivial bitcast standing in for "this
// pointer aliases that allocation", since the region graph has no bare
// assignment node - §4.4's lowering rule folds assignment into aliasing at
// build time, before any SimpleNode exists). Two genuinely distinct
// allocators are each touched by exactly one load, so the lambda's single
// exit memory-state result must merge both per-allocator states back
// together - the shape that needs an actual memstatemux node, unlike a
// single-allocator function (which the re-encoder leaves unsplit, per its
// own "no node needed for the fully-precise single-object case" comment).
func buildTwoAllocatorLambda(t *testing.T) (*region.Graph, region.NodeHandle) {
	t.Helper()

	g := region.New("", "")
	root := g.Root()

	sig := types.FunctionType{Results: []types.Type{i32, memT}}
	lam := &region.LambdaNode{Signature: sig, Name: "f", NumArgs: 1}
	lamHandle := g.AddNode(root, lam)
	sub := g.NewRegion(lamHandle)
	lam.Subregion = sub

	ms0 := g.NewArgument(sub, memT, "ms0")

	hz1 := g.AddNode(sub, &region.SimpleNode{Op: allocaOp(), Inputs: []region.Output{ms0}})
	ptrZ1, ms1 := region.Output{Node: hz1, Index: 0}, region.Output{Node: hz1, Index: 1}

	hz2 := g.AddNode(sub, &region.SimpleNode{Op: allocaOp(), Inputs: []region.Output{ms1}})
	ptrZ2, ms2 := region.Output{Node: hz2, Index: 0}, region.Output{Node: hz2, Index: 1}

	hx := g.AddNode(sub, &region.SimpleNode{Op: bitcastOp(), Inputs: []region.Output{ptrZ1}})
	hy := g.AddNode(sub, &region.SimpleNode{Op: bitcastOp(), Inputs: []region.Output{ptrZ2}})
	x := region.Output{Node: hx, Index: 0}
	y := region.Output{Node: hy, Index: 0}

	hload1 := g.AddNode(sub, &region.SimpleNode{Op: loadOp(), Inputs: []region.Output{x, ms2}})
	val1, ms3 := region.Output{Node: hload1, Index: 0}, region.Output{Node: hload1, Index: 1}

	hload2 := g.AddNode(sub, &region.SimpleNode{Op: loadOp(), Inputs: []region.Output{y, ms3}})
	_, ms4 := region.Output{Node: hload2, Index: 0}, region.Output{Node: hload2, Index: 1}

	r := g.RegionAt(sub)
	r.Results = append(r.Results,
		region.Result{Origin: val1, Type: i32},
		region.Result{Origin: ms4, Type: memT},
	)
	return g, lamHandle
}

func TestEncodeRunMergesDistinctAllocatorsAtExit(t *testing.T) {
	t.Parallel()

	g, lamHandle := buildTwoAllocatorLambda(t)
	ptg, err := pointsto.Run(g)
	require.NoError(t, err)

	lam := g.Node(lamHandle).(*region.LambdaNode)
	sub := g.RegionAt(lam.Subregion)
	memResIdx := 1
	originalExit := sub.Results[memResIdx].Origin

	encode.Run(g, ptg)

	require.NotEqual(t, originalExit, sub.Results[memResIdx].Origin,
		"re-encoding must rewrite the lambda's exit memory-state to the merge of both allocators' final states")

	var sawMux bool
	for _, h := range sub.Nodes {
		if s, ok := g.Node(h).(*region.SimpleNode); ok && s.Op.Tag() == opvocab.MemStateMux {
			sawMux = true
		}
	}
	require.True(t, sawMux, "two distinct allocators touched by one lambda must produce at least one memstatemux node")
}

func TestEncodeRunIsIdempotent(t *testing.T) {
	t.Parallel()

	g, lamHandle := buildTwoAllocatorLambda(t)
	ptg, err := pointsto.Run(g)
	require.NoError(t, err)
	encode.Run(g, ptg)

	lam := g.Node(lamHandle).(*region.LambdaNode)
	sub := g.RegionAt(lam.Subregion)
	firstPassNodeCount := len(sub.Nodes)

	ptg2, err := pointsto.Run(g)
	require.NoError(t, err)
	encode.Run(g, ptg2)

	require.Equal(t, firstPassNodeCount, len(sub.Nodes),
		"encoding an already-encoded graph a second time must not grow the node count")
}

func TestEliminateDeadNodesDropsUnusedSplitBranches(t *testing.T) {
	t.Parallel()

	g, lamHandle := buildTwoAllocatorLambda(t)
	ptg, err := pointsto.Run(g)
	require.NoError(t, err)
	encode.Run(g, ptg)

	lam := g.Node(lamHandle).(*region.LambdaNode)
	sub := g.RegionAt(lam.Subregion)

	used := map[region.NodeHandle]bool{}
	mark := func(o region.Output) { used[o.Node] = true }
	for _, r := range sub.Results {
		mark(r.Origin)
	}
	for _, h := range sub.Nodes {
		if s, ok := g.Node(h).(*region.SimpleNode); ok {
			for _, in := range s.Inputs {
				mark(in)
			}
		}
	}
	for _, h := range sub.Nodes {
		require.True(t, used[h], "dead-node elimination must have removed node %v with no remaining users", h)
	}
}
