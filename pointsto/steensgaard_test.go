package pointsto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

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

func storeOp() opvocab.Operator {
	return &opvocab.Simple{Tag_: opvocab.Store, Args: []types.Type{ptrI, ptrI, memT}, Results: []types.Type{memT}}
}

// buildChainLambda builds a single-lambda region graph whose body allocates
// four pointer-to-int32 cells a,b,c,d then threads *a=&b; *b=&c; *c=&d as a
// chain of stores, matching §8 scenario 1 (store_chain). Returns the graph
// plus the handles for each alloca SimpleNode, in order [a,b,c,d].
func buildChainLambda(t *testing.T) (*region.Graph, []region.NodeHandle) {
	t.Helper()

	g := region.New("", "")
	root := g.Root()

	sig := types.FunctionType{Results: []types.Type{memT}}
	lam := &region.LambdaNode{Signature: sig, Name: "f", NumArgs: 1}
	lamHandle := g.AddNode(root, lam)
	sub := g.NewRegion(lamHandle)
	lam.Subregion = sub

	ms0 := g.NewArgument(sub, memT, "ms0")

	var allocas []region.NodeHandle
	ms := ms0
	for _, name := range []string{"a", "b", "c", "d"} {
		h := g.AddNode(sub, &region.SimpleNode{Op: allocaOp(), Inputs: []region.Output{ms}})
		allocas = append(allocas, h)
		ms = region.Output{Node: h, Index: 1}
		_ = name
	}
	ptrOf := func(i int) region.Output { return region.Output{Node: allocas[i], Index: 0} }

	for i := 0; i < 3; i++ {
		h := g.AddNode(sub, &region.SimpleNode{
			Op:     storeOp(),
			Inputs: []region.Output{ptrOf(i + 1), ptrOf(i), ms},
		})
		ms = region.Output{Node: h, Index: 0}
	}

	g.RegionAt(sub).Results = append(g.RegionAt(sub).Results, region.Result{Origin: ms, Type: memT})
	return g, allocas
}

func TestSteensgaardStoreChain(t *testing.T) {
	t.Parallel()

	g, allocas := buildChainLambda(t)
	ptg, err := pointsto.Run(g)
	require.NoError(t, err)

	allocID := func(i int) pointsto.NodeID {
		id, ok := ptg.AllocatorFor(allocas[i])
		require.True(t, ok, "allocator for index %d must exist", i)
		return id
	}

	allocA, allocB, allocC, allocD := allocID(0), allocID(1), allocID(2), allocID(3)

	require.Contains(t, ptg.Targets(allocA), allocB, "alloc_a must point to alloc_b")
	require.Contains(t, ptg.Targets(allocB), allocC, "alloc_b must point to alloc_c")
	require.Contains(t, ptg.Targets(allocC), allocD, "alloc_c must point to alloc_d")
	require.Empty(t, ptg.Targets(allocD), "alloc_d receives no store, so it must point nowhere")
}

// TestSteensgaardLoadThroughDoublePointer exercises §8 scenario 3: an
// exported function taking p:**int, executing x=*p; a=*x. x=*p records
// pt(loc(p))=loc(x); a is an int, so a=*x adds no link. After the body runs,
// each pointer argument of an exported lambda has its points-to target
// joined with the unknown-flagged any location (joinUnknown), which merges
// loc(x) into that class. Expected: x carries an edge to the PTG's unknown
// node (its class is unknown-flagged), and so does p (it points to that
// class).
func TestSteensgaardLoadThroughDoublePointer(t *testing.T) {
	t.Parallel()

	g := region.New("", "")
	root := g.Root()

	pp := types.PointerType{Pointee: ptrI}
	sig := types.FunctionType{Args: []types.Type{pp}, Results: []types.Type{memT}}
	lam := &region.LambdaNode{Signature: sig, Name: "f", NumArgs: 2, Exported: true}
	lamHandle := g.AddNode(root, lam)
	sub := g.NewRegion(lamHandle)
	lam.Subregion = sub

	ms0 := g.NewArgument(sub, memT, "ms0")
	p := g.NewArgument(sub, pp, "p")

	hx := g.AddNode(sub, &region.SimpleNode{
		Op:     &opvocab.Simple{Tag_: opvocab.Load, Args: []types.Type{pp, memT}, Results: []types.Type{ptrI, memT}},
		Inputs: []region.Output{p, ms0},
	})
	x := region.Output{Node: hx, Index: 0}
	ms1 := region.Output{Node: hx, Index: 1}

	ha := g.AddNode(sub, &region.SimpleNode{
		Op:     &opvocab.Simple{Tag_: opvocab.Load, Args: []types.Type{ptrI, memT}, Results: []types.Type{i32, memT}},
		Inputs: []region.Output{x, ms1},
	})
	ms2 := region.Output{Node: ha, Index: 1}

	g.RegionAt(sub).Results = append(g.RegionAt(sub).Results, region.Result{Origin: ms2, Type: memT})

	ptg, err := pointsto.Run(g)
	require.NoError(t, err)

	pID, ok := ptg.RegNode(p)
	require.True(t, ok)
	xID, ok := ptg.RegNode(x)
	require.True(t, ok)

	require.Contains(t, ptg.Targets(pID), ptg.Unknown(), "p must point to the unknown node")
	require.Contains(t, ptg.Targets(xID), ptg.Unknown(), "x must point to the unknown node")
}
