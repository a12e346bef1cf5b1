package pointsto

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sjalander/jlmgo/region"
)

// NodeKind distinguishes the three points-to graph node variants of §3.
type NodeKind int

const (
	RegNode NodeKind = iota
	AllocatorNode
	UnknownNode
)

func (k NodeKind) String() string {
	switch k {
	case RegNode:
		return "regnode"
	case AllocatorNode:
		return "allocator"
	case UnknownNode:
		return "unknown"
	default:
		return "?"
	}
}

// NodeID addresses a node within a PTG.
type NodeID int

type ptgNode struct {
	kind  NodeKind
	label string
	alloc region.NodeHandle
}

// PTG is the points-to graph produced by Run: a directed graph whose edges
// always target an allocator or the singleton unknown node (§3's invariant).
type PTG struct {
	nodes       []ptgNode
	edges       map[NodeID]map[NodeID]bool
	byOutput    map[region.Output]NodeID
	byAllocNode map[region.NodeHandle]NodeID
	unknown     NodeID
}

func (g *PTG) addNode(n ptgNode) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return id
}

func (g *PTG) addEdge(from, to NodeID) {
	if g.edges[from] == nil {
		g.edges[from] = map[NodeID]bool{}
	}
	g.edges[from][to] = true
}

// Unknown returns the id of the singleton unknown node.
func (g *PTG) Unknown() NodeID { return g.unknown }

// NumNodes returns the total node count, including the unknown singleton.
func (g *PTG) NumNodes() int { return len(g.nodes) }

// Kind reports a node's variant.
func (g *PTG) Kind(id NodeID) NodeKind { return g.nodes[id].kind }

// RegNode looks up the regnode for a region-graph value-output.
func (g *PTG) RegNode(out region.Output) (NodeID, bool) {
	id, ok := g.byOutput[out]
	return id, ok
}

// AllocatorFor looks up the allocator node for a memory-allocating
// region-graph node (alloca, lambda, or delta).
func (g *PTG) AllocatorFor(h region.NodeHandle) (NodeID, bool) {
	id, ok := g.byAllocNode[h]
	return id, ok
}

// Targets returns the (deduplicated, sorted) set of nodes id may point to.
func (g *PTG) Targets(id NodeID) []NodeID {
	m := g.edges[id]
	out := make([]NodeID, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReachableAllocators unions Targets(n) for every n in outs, dropping the
// unknown node if present, for callers that need "the allocators this set
// of values may touch" (the re-encoder's per-region allocator-state map).
func (g *PTG) ReachableAllocators(outs []region.Output) []NodeID {
	seen := map[NodeID]bool{}
	for _, o := range outs {
		id, ok := g.RegNode(o)
		if !ok {
			continue
		}
		for _, t := range g.Targets(id) {
			if t == g.unknown {
				continue
			}
			seen[t] = true
		}
	}
	out := make([]NodeID, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TouchesUnknown reports whether any output in outs may point to the
// unknown node.
func (g *PTG) TouchesUnknown(outs []region.Output) bool {
	for _, o := range outs {
		id, ok := g.RegNode(o)
		if !ok {
			continue
		}
		if g.edges[id][g.unknown] {
			return true
		}
	}
	return false
}

func buildPTG(store *Store) *PTG {
	g := &PTG{
		byOutput:    map[region.Output]NodeID{},
		byAllocNode: map[region.NodeHandle]NodeID{},
		edges:       map[NodeID]map[NodeID]bool{},
	}
	g.unknown = g.addNode(ptgNode{kind: UnknownNode, label: "unknown"})

	ptgNodeOf := make([]NodeID, store.Len())
	for i := 0; i < store.Len(); i++ {
		switch store.kindOf(i) {
		case locReg:
			out := store.outputOf(i)
			id := g.addNode(ptgNode{kind: RegNode, label: out.String()})
			ptgNodeOf[i] = id
			g.byOutput[out] = id
		case locMem:
			h := store.nodeOf(i)
			id := g.addNode(ptgNode{kind: AllocatorNode, label: fmt.Sprintf("mem:%d", int(h)), alloc: h})
			ptgNodeOf[i] = id
			g.byAllocNode[h] = id
		case locAny:
			// The any location is excluded from PTG construction and
			// treated as an alias for unknown (§9's documented choice).
			ptgNodeOf[i] = g.unknown
		}
	}

	type info struct {
		allocs  []NodeID
		unknown bool
	}
	classInfo := map[int]info{}
	for _, class := range store.Classes() {
		root := store.Find(class[0])
		var allocs []NodeID
		for _, idx := range class {
			if store.kindOf(idx) == locMem {
				allocs = append(allocs, ptgNodeOf[idx])
			}
		}
		classInfo[root] = info{allocs: allocs, unknown: store.Unknown(root)}
	}

	for i := 0; i < store.Len(); i++ {
		if store.kindOf(i) == locAny {
			continue
		}
		from := ptgNodeOf[i]
		if classInfo[store.Find(i)].unknown {
			g.addEdge(from, g.unknown)
		}
		if pt, ok := store.PointsTo(i); ok {
			ci := classInfo[store.Find(pt)]
			if ci.unknown {
				g.addEdge(from, g.unknown)
			}
			for _, alloc := range ci.allocs {
				g.addEdge(from, alloc)
			}
		}
	}

	return g
}

// ToDigraph renders the PTG in the digraph debug format named in §6: one
// node per identifier labeled with its debug string, shaped box for
// memory/unknown nodes and oval for register nodes, edges directed from
// source to target.
func (g *PTG) ToDigraph() string {
	var b strings.Builder
	b.WriteString("digraph ptg {\n")
	for i, n := range g.nodes {
		shape := "oval"
		if n.kind != RegNode {
			shape = "box"
		}
		fmt.Fprintf(&b, "  n%d [label=%q, shape=%s];\n", i, n.label, shape)
	}
	ids := make([]NodeID, 0, len(g.edges))
	for from := range g.edges {
		ids = append(ids, from)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, from := range ids {
		for _, to := range g.Targets(from) {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", from, to)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// ToDigraph renders the disjoint-set location store's classes for debugging,
// per the same digraph convention as PTG.ToDigraph.
func (s *Store) ToDigraph() string {
	var b strings.Builder
	b.WriteString("digraph locations {\n")
	for i := 0; i < s.Len(); i++ {
		shape := "oval"
		label := fmt.Sprintf("l%d", i)
		switch s.kindOf(i) {
		case locMem:
			shape = "box"
			label = fmt.Sprintf("mem:%d", int(s.nodeOf(i)))
		case locAny:
			shape = "box"
			label = "any"
		case locReg:
			label = s.outputOf(i).String()
		}
		fmt.Fprintf(&b, "  l%d [label=%q, shape=%s];\n", i, label, shape)
	}
	for i := 0; i < s.Len(); i++ {
		if pt, ok := s.PointsTo(i); ok {
			fmt.Fprintf(&b, "  l%d -> l%d;\n", i, pt)
		}
		if r := s.Find(i); r != i {
			fmt.Fprintf(&b, "  l%d -> l%d [style=dashed];\n", i, r)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
