package ipgraph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/ipgraph"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

func callInstr(callee string) *tac.Instruction {
	return &tac.Instruction{Op: &opvocab.Simple{Tag_: opvocab.Call, Payload: callee}}
}

func fn(name string, callees ...string) *ipgraph.Function {
	var instrs []*tac.Instruction
	for _, c := range callees {
		instrs = append(instrs, callInstr(c))
	}
	blk := &tac.BasicBlock{ID: 0, Instructions: instrs}
	cfg := &tac.CFG{Blocks: []*tac.BasicBlock{blk}, Entry: blk, Exit: blk}
	return &ipgraph.Function{Name: name, Signature: types.FunctionType{}, CFG: cfg}
}

func names(fs []*ipgraph.Function) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// TestCallGraphSCCsLinearChain checks a straight-line non-recursive call chain
// a->b->c produces three singleton SCCs in callee-before-caller order.
func TestCallGraphSCCsLinearChain(t *testing.T) {
	t.Parallel()

	c := fn("c")
	b := fn("b", "c")
	a := fn("a", "b")
	m := &ipgraph.Module{Functions: []*ipgraph.Function{a, b, c}}

	sccs := m.CallGraphSCCs()

	var order [][]string
	for _, scc := range sccs {
		order = append(order, names(scc))
	}
	want := [][]string{{"c"}, {"b"}, {"a"}}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("CallGraphSCCs() order mismatch (-want +got):\n%s", diff)
	}
}

// TestCallGraphSCCsMutualRecursion checks two functions that call each other
// collapse into a single SCC, regardless of a third unrelated caller.
func TestCallGraphSCCsMutualRecursion(t *testing.T) {
	t.Parallel()

	evenFn := fn("even", "odd")
	oddFn := fn("odd", "even")
	caller := fn("caller", "even")
	m := &ipgraph.Module{Functions: []*ipgraph.Function{caller, evenFn, oddFn}}

	sccs := m.CallGraphSCCs()

	require.Len(t, sccs, 2, "expected the mutually recursive pair plus the caller as two SCCs")
	mutual := sccs[0]
	require.ElementsMatch(t, []string{"even", "odd"}, names(mutual))
	require.Equal(t, []string{"caller"}, names(sccs[1]))
}

func TestFunctionByNameMissing(t *testing.T) {
	t.Parallel()

	m := &ipgraph.Module{Functions: []*ipgraph.Function{fn("a")}}
	_, ok := m.FunctionByName("nonexistent")
	require.False(t, ok)
}
