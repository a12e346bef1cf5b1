package encode

import "github.com/sjalander/jlmgo/region"

// EliminateDeadNodes implements §4.8: repeatedly removes any node, in any
// region, whose every output has zero users, until a fixed point is reached.
// A node is never considered used by virtue of merely existing - only an
// actual reference from a live Input or Result counts - so the re-encoder's
// orphaned split/merge branches (the ones the call rule leaves unwritten for
// an allocator the caller never supplied) disappear along with whatever else
// the rewriting stranded. The same fixed point also trims unused context
// variables (lambda, delta, phi) and unused gamma entry variables - see
// trimUnusedVars.
//
// Structural nodes (gamma, theta, phi) are never themselves removed by this
// pass, and two of their four variable kinds are deliberately left untrimmed
// even when unused: a gamma's exit variables and a theta's loop variables
// both double as that node's own numbered Outputs (OutputTypes returns
// ExitTypes/LoopTypes directly, position for position), so removing one
// would require renumbering every remaining Output elsewhere in the graph
// that references a surviving sibling by position - more surgery than a
// use-count sweep alone can safely do without a toolchain to check the
// renumbering against. Context variables and gamma entry variables carry no
// such positional meaning outside their own node (nothing references a
// lambda/delta/phi by "its 3rd context variable", the way a theta's 3rd
// Output is tied to its 3rd loop variable), so they can be dropped with no
// renumbering needed elsewhere - see DESIGN.md for the worked argument.
func EliminateDeadNodes(g *region.Graph) {
	for {
		if !sweepOnce(g) {
			return
		}
	}
}

func sweepOnce(g *region.Graph) bool {
	used := make([]bool, g.NumNodes())
	markUses(g, used)

	changed := false
	for _, r := range g.AllRegions() {
		for _, h := range append([]region.NodeHandle(nil), r.Nodes...) {
			if isRemovable(g, h) && !anyOutputUsed(g, h, used) {
				r.DeleteNodeFromRegion(h)
				changed = true
			}
		}
	}
	if trimUnusedVars(g, used) {
		changed = true
	}
	return changed
}

// trimUnusedVars removes context-variable (lambda/delta/phi) and gamma
// entry-variable slots that the live part of the graph never references,
// per the doc comment on EliminateDeadNodes. used reflects liveness as of
// the start of this sweep, computed once by markUses and shared with the
// node-removal pass above so both halves of one sweep agree on what counts
// as live.
func trimUnusedVars(g *region.Graph, used []bool) bool {
	changed := false
	for _, r := range g.AllRegions() {
		for _, h := range r.Nodes {
			switch n := g.Node(h).(type) {
			case *region.LambdaNode:
				if trimContextPrefix(g.RegionAt(n.Subregion), &n.ContextVars, used) {
					changed = true
				}
			case *region.DeltaNode:
				if trimContextPrefix(g.RegionAt(n.Subregion), &n.ContextVars, used) {
					changed = true
				}
			case *region.PhiNode:
				if trimContextPrefix(g.RegionAt(n.Subregion), &n.ContextVars, used) {
					changed = true
				}
			case *region.GammaNode:
				if trimGammaEntries(g, n, used) {
					changed = true
				}
			}
		}
	}
	return changed
}

// trimContextPrefix drops every index i in [0, len(*origins)) whose
// sub.Args[i] is unused, compacting origins and the matching leading slice
// of sub.Args in lockstep; sub.Args[len(*origins):] (a lambda's own
// parameters, a phi's recursion variables) is left untouched and simply
// re-appended after the surviving context slots.
func trimContextPrefix(sub *region.Region, origins *[]region.Output, used []bool) bool {
	n := len(*origins)
	keepIdx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if anyOutputUsed(nil, sub.Args[i], used) {
			keepIdx = append(keepIdx, i)
		}
	}
	if len(keepIdx) == n {
		return false
	}

	newOrigins := make([]region.Output, len(keepIdx))
	newArgs := make([]region.NodeHandle, len(keepIdx), len(sub.Args)-n+len(keepIdx))
	for j, i := range keepIdx {
		newOrigins[j] = (*origins)[i]
		newArgs[j] = sub.Args[i]
	}
	newArgs = append(newArgs, sub.Args[n:]...)

	*origins = newOrigins
	sub.Args = newArgs
	return true
}

// trimGammaEntries drops entry-variable index i only when every one of the
// gamma's arms leaves its own Args[i] unused - each arm owns a distinct
// ArgumentNode per entry index, so a variable must be dead in all of them,
// not just one, before the shared EntryOrigins slot can go.
func trimGammaEntries(g *region.Graph, gamma *region.GammaNode, used []bool) bool {
	n := len(gamma.EntryOrigins)
	arms := make([]*region.Region, len(gamma.Subregions))
	for k, rh := range gamma.Subregions {
		arms[k] = g.RegionAt(rh)
	}

	keepIdx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		live := false
		for _, arm := range arms {
			if anyOutputUsed(nil, arm.Args[i], used) {
				live = true
				break
			}
		}
		if live {
			keepIdx = append(keepIdx, i)
		}
	}
	if len(keepIdx) == n {
		return false
	}

	newOrigins := make([]region.Output, len(keepIdx))
	for j, i := range keepIdx {
		newOrigins[j] = gamma.EntryOrigins[i]
	}
	gamma.EntryOrigins = newOrigins

	for _, arm := range arms {
		newArgs := make([]region.NodeHandle, len(keepIdx))
		for j, i := range keepIdx {
			newArgs[j] = arm.Args[i]
		}
		arm.Args = newArgs
	}
	return true
}

// isRemovable reports whether h is a candidate for removal at all: argument
// pseudo nodes are owned by a region's Args list, not its Nodes list, and
// structural nodes are left in place per the doc comment above.
func isRemovable(g *region.Graph, h region.NodeHandle) bool {
	switch g.Node(h).(type) {
	case *region.SimpleNode:
		return true
	default:
		return false
	}
}

func anyOutputUsed(g *region.Graph, h region.NodeHandle, used []bool) bool {
	n := int(h)
	if n < len(used) {
		return used[n]
	}
	return false
}

// markUses scans every Input reference and every Result origin reachable
// from the graph - across every region, including structural nodes' own
// Inputs (predicate, context vars, loop inputs) - and marks the producing
// node as used.
func markUses(g *region.Graph, used []bool) {
	mark := func(o region.Output) { used[int(o.Node)] = true }

	for _, r := range g.AllRegions() {
		for _, res := range r.Results {
			mark(res.Origin)
		}
		for _, h := range r.Nodes {
			switch n := g.Node(h).(type) {
			case *region.SimpleNode:
				for _, in := range n.Inputs {
					mark(in)
				}
			case *region.GammaNode:
				mark(n.Predicate)
				for _, o := range n.EntryOrigins {
					mark(o)
				}
			case *region.ThetaNode:
				for _, o := range n.LoopInputs {
					mark(o)
				}
			case *region.PhiNode:
				for _, o := range n.ContextVars {
					mark(o)
				}
			case *region.LambdaNode:
				for _, o := range n.ContextVars {
					mark(o)
				}
			case *region.DeltaNode:
				for _, o := range n.ContextVars {
					mark(o)
				}
			}
		}
	}
}
