// Package ipgraph is the input contract a front end hands to the region-graph
// builder (§6): a whole translation unit's worth of functions and global data
// objects, each still in CFG form, plus enough of a call graph for the
// builder's module-level bottom-up pass to find non-recursive and mutually
// recursive groups.
package ipgraph

import (
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// Function is one CFG-form function awaiting lowering to a region-graph
// lambda.
type Function struct {
	Name      string
	Signature types.FunctionType
	Args      []*tac.Variable
	Results   []*tac.Variable
	Exported  bool
	CFG       *tac.CFG
}

// Global is one CFG-form global datum awaiting lowering to a region-graph
// delta. Init computes the datum's initial value: an Entry block with no
// arguments and an Exit block whose single result is the value. Result names
// the exact variable, within Init, that carries that final value - the same
// pointer-identity convention Function uses for its own Results, since the
// builder reads final bindings back out of its environment by variable
// identity, not by name.
type Global struct {
	Name     string
	Type     types.Type
	Exported bool
	Init     *tac.CFG
	Result   *tac.Variable
}

// Module is a whole translation unit: every function and global the builder
// needs to lower, plus the target description the region graph carries.
type Module struct {
	TargetTriple string
	DataLayout   string
	// IRVersion is a semver string identifying the shape of this module's
	// input contract, checked against config.Config's minimum before
	// construction begins.
	IRVersion string
	Functions []*Function
	Globals   []*Global

	byName map[string]*Function
}

// FunctionByName resolves a direct call's callee name.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	if m.byName == nil {
		m.byName = make(map[string]*Function, len(m.Functions))
		for _, f := range m.Functions {
			m.byName[f.Name] = f
		}
	}
	f, ok := m.byName[name]
	return f, ok
}

// calleeNamesOf scans a function's CFG for direct-call instructions
// (opvocab.Call with a non-empty Payload naming the callee) and returns the
// distinct set of names called, in first-seen order.
func calleeNamesOf(f *Function) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range f.CFG.Blocks {
		for _, instr := range b.Instructions {
			if !instr.IsCall() {
				continue
			}
			name := opvocab.DirectCallee(instr.Op)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// CallGraphSCCs partitions the module's functions into strongly connected
// components of the direct-call graph (indirect calls contribute no edge,
// since their callee is not statically known), in reverse-topological
// (callee-before-caller) order - the order the region-graph builder's
// module-level pass consumes them in (§4.4).
func (m *Module) CallGraphSCCs() [][]*Function {
	index := map[*Function]int{}
	lowlink := map[*Function]int{}
	onStack := map[*Function]bool{}
	var stack []*Function
	var sccs [][]*Function
	next := 0

	var strongconnect func(f *Function)
	strongconnect = func(f *Function) {
		index[f] = next
		lowlink[f] = next
		next++
		stack = append(stack, f)
		onStack[f] = true

		for _, name := range calleeNamesOf(f) {
			callee, ok := m.FunctionByName(name)
			if !ok {
				continue
			}
			if _, seen := index[callee]; !seen {
				strongconnect(callee)
				if lowlink[callee] < lowlink[f] {
					lowlink[f] = lowlink[callee]
				}
			} else if onStack[callee] {
				if index[callee] < lowlink[f] {
					lowlink[f] = index[callee]
				}
			}
		}

		if lowlink[f] == index[f] {
			var scc []*Function
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == f {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, f := range m.Functions {
		if _, seen := index[f]; !seen {
			strongconnect(f)
		}
	}
	return sccs
}
