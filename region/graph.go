// Package region implements the hierarchical region graph (§3, §4.4): an
// arena-owned graph of simple and structural nodes (lambda, delta, gamma,
// theta, phi) whose nesting encodes control as explicit value and
// memory-state dataflow. Nodes are addressed by stable integer handles
// rather than owning pointers, so back-edges (theta loop variables, phi
// recursion variables) never need reference counting: the arena's lifetime
// is the graph's lifetime, exactly as described in §9.
package region

import (
	"fmt"

	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/types"
)

// NodeHandle addresses a node in a Graph's arena.
type NodeHandle int

// RegionHandle addresses a region in a Graph's arena.
type RegionHandle int

// Output identifies one value-output of the region graph: the Index'th
// result produced by the node at Node. It is the uniform identity used by
// the points-to analysis for every kind of value - simple-node result,
// lambda/context argument, loop variable, exit variable - because arguments,
// loop variables and context variables are all represented as zero-input
// pseudo nodes in the same arena (see ArgumentNode).
type Output struct {
	Node  NodeHandle
	Index int
}

func (o Output) String() string { return fmt.Sprintf("n%d:%d", o.Node, o.Index) }

// Node is the common interface implemented by every arena entry.
type Node interface {
	// OutputTypes returns the type of each value this node produces.
	OutputTypes() []types.Type
	DebugString() string
}

// SimpleNode is a primitive operation: an operator applied to value inputs,
// producing value outputs. It corresponds to the region-graph "simple"
// variant of §3.
type SimpleNode struct {
	Op     opvocab.Operator
	Inputs []Output
}

// OutputTypes implements Node.
func (n *SimpleNode) OutputTypes() []types.Type { return n.Op.ResultTypes() }

// DebugString implements Node.
func (n *SimpleNode) DebugString() string { return n.Op.DebugString() }

// ArgumentNode is a zero-input pseudo node standing for one slot of a
// region's argument list (a lambda's context variable or function argument,
// a gamma subregion's entry variable, a theta's loop variable, a delta's
// context variable, or a phi's recursion variable). Representing arguments
// as ordinary arena nodes means every pointer-typed value, argument or not,
// has exactly one Output identity and hence exactly one location/regnode -
// the invariant required by §3 and §4.5.
type ArgumentNode struct {
	Type types.Type
	// Label is purely for DebugString/digraph output.
	Label string
}

// OutputTypes implements Node.
func (n *ArgumentNode) OutputTypes() []types.Type { return []types.Type{n.Type} }

// DebugString implements Node.
func (n *ArgumentNode) DebugString() string {
	if n.Label != "" {
		return n.Label
	}
	return "arg"
}

// LambdaNode is a function body: a subregion whose arguments are context
// variables followed by function arguments, and whose single output is the
// function value itself (an allocator in the points-to sense, per §4.6).
type LambdaNode struct {
	Subregion RegionHandle
	// ContextVars gives, for each of the subregion's leading arguments, the
	// Output in the *enclosing* region it imports.
	ContextVars []Output
	NumArgs     int
	Signature   types.FunctionType
	Exported    bool
	Name        string
}

// OutputTypes implements Node.
func (n *LambdaNode) OutputTypes() []types.Type { return []types.Type{types.PointerType{Pointee: n.Signature}} }

// DebugString implements Node.
func (n *LambdaNode) DebugString() string { return "lambda:" + n.Name }

// DeltaNode is a global datum: a subregion computing its initial value, with
// context variables for any dependencies, producing one pointer output (an
// allocator).
type DeltaNode struct {
	Subregion   RegionHandle
	ContextVars []Output
	ValueType   types.Type
	Exported    bool
	Name        string
}

// OutputTypes implements Node.
func (n *DeltaNode) OutputTypes() []types.Type {
	return []types.Type{types.PointerType{Pointee: n.ValueType}}
}

// DebugString implements Node.
func (n *DeltaNode) DebugString() string { return "delta:" + n.Name }

// GammaNode is an n-way conditional: a predicate selecting one of several
// subregions to evaluate, each producing the same exit-variable schema.
type GammaNode struct {
	Predicate Output
	// EntryOrigins[i] is the Output in the enclosing region bound to the
	// i'th entry variable (and hence to Subregions[k].Args[i] for every k).
	EntryOrigins []Output
	Subregions   []RegionHandle
	NumExit      int
	ExitTypes    []types.Type
}

// OutputTypes implements Node.
func (n *GammaNode) OutputTypes() []types.Type { return n.ExitTypes }

// DebugString implements Node.
func (n *GammaNode) DebugString() string { return fmt.Sprintf("gamma(%d-way)", len(n.Subregions)) }

// ThetaNode is a tail-controlled loop: loop variables flow argument->result
// back to argument, and the subregion yields a 2-valued control predicate
// that decides whether to repeat. By convention the subregion's Results list
// holds one entry per loop variable (matching LoopTypes, in order) followed
// by exactly one more entry of ControlType{NAlternatives: 2}: the repeat/exit
// predicate, which is internal to the loop and not part of ThetaNode's own
// OutputTypes.
type ThetaNode struct {
	Subregion RegionHandle
	// LoopInputs[i] is the Output in the enclosing region feeding the i'th
	// loop variable's initial value.
	LoopInputs []Output
	LoopTypes  []types.Type
}

// OutputTypes implements Node.
func (n *ThetaNode) OutputTypes() []types.Type { return n.LoopTypes }

// DebugString implements Node.
func (n *ThetaNode) DebugString() string { return "theta" }

// PhiNode is a mutually recursive group of lambdas/deltas: the recursion
// variables let bodies reference each other before any of them is fully
// built, resolved by the fixed-point binder in builder.go.
type PhiNode struct {
	Subregion    RegionHandle
	ContextVars  []Output
	MemberNames  []string
	MemberTypes  []types.Type
}

// OutputTypes implements Node.
func (n *PhiNode) OutputTypes() []types.Type { return n.MemberTypes }

// DebugString implements Node.
func (n *PhiNode) DebugString() string { return "phi" }

// Result is a single result slot of a region: the Output it is bound to.
type Result struct {
	Origin Output
	Type   types.Type
}

// Region owns an ordered list of arguments, an ordered list of results, and
// the set of node handles nested directly inside it (not recursively - a
// structural node's own subregion nodes are owned by that subregion, not by
// the parent).
type Region struct {
	handle  RegionHandle
	Args    []NodeHandle // each points at an ArgumentNode in the owning Graph
	Results []Result
	Nodes   []NodeHandle
	// Owner is the node handle whose subregion this is, or -1 for the root.
	Owner NodeHandle
}

// Handle returns this region's own handle.
func (r *Region) Handle() RegionHandle { return r.handle }

// Graph is the top-level owner of every node and region. It uniquely owns
// the root region; every structural node uniquely owns its subregion(s).
type Graph struct {
	TargetTriple string
	DataLayout   string

	nodes   []Node
	regions []*Region
	root    RegionHandle
}

// New creates an empty graph with a fresh, empty root region.
func New(targetTriple, dataLayout string) *Graph {
	g := &Graph{TargetTriple: targetTriple, DataLayout: dataLayout}
	g.root = g.NewRegion(-1)
	return g
}

// Root returns the handle of the graph's root region.
func (g *Graph) Root() RegionHandle { return g.root }

// NewRegion allocates a fresh, empty region owned by the node at owner (or
// -1 for the graph's root).
func (g *Graph) NewRegion(owner NodeHandle) RegionHandle {
	r := &Region{handle: RegionHandle(len(g.regions)), Owner: owner}
	g.regions = append(g.regions, r)
	return r.handle
}

// RegionAt dereferences a region handle.
func (g *Graph) RegionAt(h RegionHandle) *Region { return g.regions[h] }

// AllRegions returns every region in the graph, in allocation order.
func (g *Graph) AllRegions() []*Region { return g.regions }

// AddNode appends a node to the arena and returns its handle. If region is
// not -1, the handle is also appended to that region's node list.
func (g *Graph) AddNode(region RegionHandle, n Node) NodeHandle {
	h := NodeHandle(len(g.nodes))
	g.nodes = append(g.nodes, n)
	if int(region) >= 0 {
		g.regions[region].Nodes = append(g.regions[region].Nodes, h)
	}
	return h
}

// Node dereferences a node handle.
func (g *Graph) Node(h NodeHandle) Node { return g.nodes[h] }

// NumNodes returns the total number of nodes in the arena (across every
// region), used by the §8 "nnodes(region-graph) > 0" testable property.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NewArgument allocates a fresh ArgumentNode owned by region and appends it
// to that region's argument list, returning its Output identity.
func (g *Graph) NewArgument(region RegionHandle, t types.Type, label string) Output {
	h := g.AddNode(-1, &ArgumentNode{Type: t, Label: label})
	g.regions[region].Args = append(g.regions[region].Args, h)
	return Output{Node: h, Index: 0}
}

// OutputType resolves the type of a value-output.
func (g *Graph) OutputType(o Output) types.Type {
	return g.nodes[o.Node].OutputTypes()[o.Index]
}

// DeleteNodeFromRegion removes a node handle from a region's node list
// without touching the arena slot itself (the arena never shrinks, so other
// handles stay valid); used by dead-node elimination (§4.8).
func (r *Region) DeleteNodeFromRegion(h NodeHandle) {
	for i, n := range r.Nodes {
		if n == h {
			r.Nodes = append(r.Nodes[:i:i], r.Nodes[i+1:]...)
			return
		}
	}
}
