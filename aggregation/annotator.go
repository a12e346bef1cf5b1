package aggregation

import "github.com/sjalander/jlmgo/tac"

// VarSet is an unordered set of variables.
type VarSet map[*tac.Variable]bool

// Union returns a fresh set containing every variable in any of sets.
func Union(sets ...VarSet) VarSet {
	out := VarSet{}
	for _, s := range sets {
		for v := range s {
			out[v] = true
		}
	}
	return out
}

// Sub returns a \ b.
func Sub(a, b VarSet) VarSet {
	out := VarSet{}
	for v := range a {
		if !b[v] {
			out[v] = true
		}
	}
	return out
}

// Equal reports whether two sets contain exactly the same variables.
func (s VarSet) Equal(other VarSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other[v] {
			return false
		}
	}
	return true
}

func setOf(vars ...*tac.Variable) VarSet {
	s := VarSet{}
	for _, v := range vars {
		s[v] = true
	}
	return s
}

// Demand is the pair of live-variable sets attached to every aggregation
// node: Top (live on entry) and Bottom (live on exit).
type Demand struct {
	Top    VarSet
	Bottom VarSet
}

// Annotate computes the demand map for every node in tree in a single
// post-order pass, per the rules table in §4.3. The demand at the point
// immediately following the whole tree is taken to be the empty set (the
// exit node supplies its own terminal demand).
func Annotate(tree Node) map[Node]*Demand {
	demand := map[Node]*Demand{}
	annotate(tree, VarSet{}, demand)
	return demand
}

// annotate computes and records node's demand given the demand that will be
// live immediately after it (bottomFromParent), returning node's own Top set.
func annotate(node Node, bottomFromParent VarSet, demand map[Node]*Demand) VarSet {
	switch n := node.(type) {
	case *EntryNode:
		d := &Demand{Top: setOf(n.Args...), Bottom: bottomFromParent}
		demand[n] = d
		return d.Top

	case *ExitNode:
		d := &Demand{Top: setOf(n.Results...), Bottom: VarSet{}}
		demand[n] = d
		return d.Top

	case *BlockNode:
		reads, writes := VarSet{}, VarSet{}
		for _, instr := range n.Block.Instructions {
			for _, r := range instr.Reads() {
				reads[r] = true
			}
			for _, w := range instr.Writes() {
				writes[w] = true
			}
		}
		top := Union(Sub(bottomFromParent, writes), reads)
		demand[n] = &Demand{Top: top, Bottom: bottomFromParent}
		return top

	case *LinearNode:
		if len(n.Kids) == 0 {
			demand[n] = &Demand{Top: bottomFromParent, Bottom: bottomFromParent}
			return bottomFromParent
		}
		// Walk right to left: each child's bottom is the next child's top
		// (the last child's bottom is whatever is live after the whole node).
		nextTop := bottomFromParent
		for i := len(n.Kids) - 1; i >= 0; i-- {
			nextTop = annotate(n.Kids[i], nextTop, demand)
		}
		demand[n] = &Demand{Top: nextTop, Bottom: bottomFromParent}
		return nextTop

	case *BranchNode:
		tops := make([]VarSet, len(n.Kids))
		bottoms := make([]VarSet, len(n.Kids))
		for i, k := range n.Kids {
			tops[i] = annotate(k, bottomFromParent, demand)
			bottoms[i] = demand[k].Bottom
		}
		top := Union(append(append([]VarSet{}, tops...))...)
		bottom := Union(bottoms...)
		demand[n] = &Demand{Top: top, Bottom: bottom}
		return top

	case *LoopNode:
		// Fixed point: top = bottom = successor demand, recompute child's
		// demand until top stabilizes; monotone, terminates in at most
		// |Vars| iterations.
		fixed := bottomFromParent
		for {
			top := annotate(n.Body, fixed, demand)
			next := Union(fixed, top)
			if next.Equal(fixed) {
				fixed = next
				break
			}
			fixed = next
		}
		demand[n] = &Demand{Top: fixed, Bottom: fixed}
		return fixed

	default:
		panic("aggregation: unknown node type in Annotate")
	}
}
