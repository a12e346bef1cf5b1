package pointsto

import (
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/region"
	"github.com/sjalander/jlmgo/types"
)

// analyzer walks a region graph once, in top-down region order (structural
// parent before its subregion contents; within a region, the node slice
// order - the region-graph builder appends nodes in def-before-use order),
// applying the inference rules of §4.6. It is the sole mutator of the
// location store during a run.
//
// Wire-level conventions assumed of every region.SimpleNode (chosen by the
// builder in package region, since the region graph has no separate opcode
// grammar of its own):
//
//	alloca:      Inputs: [memstate]                Results: [ptr, memstate]
//	load:        Inputs: [ptr, memstate]            Results: [value, memstate]
//	store:       Inputs: [value, ptr, memstate]     Results: [memstate]
//	gep:         Inputs: [ptr]                      Results: [ptr]
//	bitcast:     Inputs: [ptr]                       Results: [ptr]
//	bits2ptr:    Inputs: [bits]                      Results: [ptr]
//	ptr_null:    Inputs: []                           Results: [ptr]
//	undef:       Inputs: []                           Results: [T]
//	call:        Inputs: [callee, args..., memstate]  Results: [results..., memstate]
//
// A call is "direct" when the callee Output names a region.LambdaNode;
// otherwise it is indirect.
type analyzer struct {
	g     *region.Graph
	store *Store
	// memLoc memoizes the single mem(...) location created per allocating
	// node (alloca result, lambda, delta), so repeated visits (e.g. phi
	// members referencing each other) reuse the same location.
	memLoc map[region.NodeHandle]int
}

// Run performs a pure Steensgaard analysis of g and returns the resulting
// points-to graph. It does not mutate g.
func Run(g *region.Graph) (*PTG, error) {
	a := &analyzer{g: g, store: NewStore(), memLoc: map[region.NodeHandle]int{}}

	root := g.RegionAt(g.Root())
	for _, h := range root.Args {
		out := region.Output{Node: h, Index: 0}
		if types.IsPointer(g.OutputType(out)) {
			if _, err := a.store.InsertReg(out, true); err != nil {
				return nil, err
			}
		}
	}

	a.visitRegion(g.Root())
	return buildPTG(a.store), nil
}

// locFor returns the location for a value-output, creating it (non-unknown,
// no points-to) on first reference, or -1 if the output is not pointer
// typed (such outputs carry no location at all).
func (a *analyzer) locFor(out region.Output) int {
	if !types.IsPointer(a.g.OutputType(out)) {
		return -1
	}
	return a.store.Locate(out)
}

// memFor returns the memoized mem(...) location for an allocating node.
func (a *analyzer) memFor(h region.NodeHandle) int {
	if i, ok := a.memLoc[h]; ok {
		return i
	}
	i := a.store.InsertMem(h)
	a.memLoc[h] = i
	return i
}

func (a *analyzer) visitRegion(rh region.RegionHandle) {
	r := a.g.RegionAt(rh)
	for _, h := range r.Nodes {
		a.visitNode(h)
	}
}

func (a *analyzer) visitNode(h region.NodeHandle) {
	switch n := a.g.Node(h).(type) {
	case *region.SimpleNode:
		a.visitSimple(h, n)
	case *region.LambdaNode:
		a.visitLambda(h, n)
	case *region.DeltaNode:
		a.visitDelta(h, n)
	case *region.GammaNode:
		a.visitGamma(h, n)
	case *region.ThetaNode:
		a.visitTheta(h, n)
	case *region.PhiNode:
		a.visitPhi(h, n)
	case *region.ArgumentNode:
		// No rule of its own; locations are created lazily via locFor.
	}
}

func (a *analyzer) visitSimple(h region.NodeHandle, n *region.SimpleNode) {
	result := func(i int) region.Output { return region.Output{Node: h, Index: i} }

	switch n.Op.Tag() {
	case opvocab.Assignment:
		// The alias-copy form (one operand) never reaches here - §4.4's
		// block-lowering rule has region/lower.go alias env[result] to
		// env[operand] directly rather than emitting a node for it. Only
		// the literal-constant form (zero operands) is ever actually
		// built by this module's own builder; the one-operand join below
		// is kept as a defensive fallback for any other Assignment source.
		if len(n.Inputs) == 1 {
			a.store.Join(a.locFor(result(0)), a.locFor(n.Inputs[0]))
		} else {
			a.locFor(result(0)) // constant: insert with no points-to
		}

	case opvocab.Select:
		// Structurally unreachable via this module's own builder -
		// region/lower.go converts every Select into a two-way GammaNode
		// per §4.4, so visitGamma's join applies instead. Kept as a
		// defensive join (both arms may flow to the result) in case some
		// other front end ever emits a bare select node directly.
		p := a.locFor(result(0))
		if p < 0 {
			return
		}
		if len(n.Inputs) == 3 {
			a.store.Join(p, a.locFor(n.Inputs[1]))
			a.store.Join(p, a.locFor(n.Inputs[2]))
		}

	case opvocab.Alloca:
		p := a.locFor(result(0))
		a.store.SetPointsTo(p, a.memFor(h))

	case opvocab.Load:
		q := a.locFor(n.Inputs[0])
		p := a.locFor(result(0))
		if p < 0 {
			return
		}
		if target, ok := a.store.PointsTo(q); !ok {
			a.store.SetPointsTo(q, p)
		} else {
			a.store.Join(p, target)
		}

	case opvocab.Store:
		v, q := n.Inputs[0], n.Inputs[1]
		p := a.locFor(v)
		if p < 0 {
			return
		}
		qLoc := a.locFor(q)
		if target, ok := a.store.PointsTo(qLoc); !ok {
			a.store.SetPointsTo(qLoc, p)
		} else {
			a.store.Join(target, p)
		}

	case opvocab.GetElementPtr, opvocab.Bitcast:
		q := a.locFor(n.Inputs[0])
		p := a.locFor(result(0))
		a.store.Join(q, p)

	case opvocab.Bits2Ptr:
		// Conservative fallback (§9): the result may point anywhere, rather
		// than leaving its location untouched as the original analyzer did.
		if p := a.locFor(result(0)); p >= 0 {
			a.joinUnknown(p)
		}

	case opvocab.PtrConstantNull, opvocab.UndefConstant:
		a.locFor(result(0)) // insert with no points-to; nothing further to do

	case opvocab.Call:
		a.visitCall(h, n)
	}
}

func (a *analyzer) visitCall(h region.NodeHandle, n *region.SimpleNode) {
	callee := n.Inputs[0]
	args := n.Inputs[1 : len(n.Inputs)-1] // drop callee and trailing memstate
	results := make([]region.Output, len(n.Op.ResultTypes())-1)
	for i := range results {
		results[i] = region.Output{Node: h, Index: i}
	}

	if lambda, ok := a.calleeLambda(callee); ok {
		sub := a.g.RegionAt(lambda.Subregion)
		params := sub.Args[len(lambda.ContextVars):]
		for i, arg := range args {
			if i >= len(params) {
				break // variadic tail has no matching formal location
			}
			al := a.locFor(arg)
			pl := a.locFor(region.Output{Node: params[i], Index: 0})
			a.store.Join(al, pl)
		}
		for i, res := range results {
			if i >= len(sub.Results) {
				break
			}
			rl := a.locFor(res)
			cl := a.locFor(sub.Results[i].Origin)
			a.store.Join(rl, cl)
		}
		return
	}

	// Indirect call: every pointer argument and every pointer result may
	// reach anything.
	for _, arg := range args {
		if l := a.locFor(arg); l >= 0 {
			a.joinUnknown(l)
		}
	}
	for _, res := range results {
		if l := a.locFor(res); l >= 0 {
			a.joinUnknown(l)
		}
	}
}

// joinUnknown sets or joins l's points-to target to the any/unknown
// location, per the indirect-call and lambda-export rules. any's own class
// is permanently unknown-flagged, so anything reachable through it reads
// back as unknown without l itself needing to join that class.
func (a *analyzer) joinUnknown(l int) {
	if target, ok := a.store.PointsTo(l); ok {
		a.store.Join(target, a.store.Any())
	} else {
		a.store.SetPointsTo(l, a.store.Any())
	}
}

// calleeLambda resolves a call's callee operand to the region.LambdaNode it
// names when the call is direct, i.e. the callee Output's node is itself a
// lambda (function value produced structurally, not loaded through a
// pointer).
func (a *analyzer) calleeLambda(callee region.Output) (*region.LambdaNode, bool) {
	n, ok := a.g.Node(callee.Node).(*region.LambdaNode)
	return n, ok
}

func (a *analyzer) visitLambda(h region.NodeHandle, n *region.LambdaNode) {
	sub := a.g.RegionAt(n.Subregion)
	for i, origin := range n.ContextVars {
		ol := a.locFor(origin)
		inner := region.Output{Node: sub.Args[i], Index: 0}
		il := a.locFor(inner)
		a.store.Join(ol, il)
	}

	a.visitRegion(n.Subregion)

	out := region.Output{Node: h, Index: 0}
	if l := a.locFor(out); l >= 0 {
		a.store.SetPointsTo(l, a.memFor(h))
	}

	if n.Exported {
		for _, argHandle := range sub.Args[len(n.ContextVars):] {
			out := region.Output{Node: argHandle, Index: 0}
			if l := a.locFor(out); l >= 0 {
				a.joinUnknown(l)
			}
		}
	}
}

func (a *analyzer) visitDelta(h region.NodeHandle, n *region.DeltaNode) {
	sub := a.g.RegionAt(n.Subregion)
	for i, origin := range n.ContextVars {
		ol := a.locFor(origin)
		inner := region.Output{Node: sub.Args[i], Index: 0}
		il := a.locFor(inner)
		a.store.Join(ol, il)
	}

	a.visitRegion(n.Subregion)

	mem := a.memFor(h)
	if l := a.locFor(region.Output{Node: h, Index: 0}); l >= 0 {
		a.store.SetPointsTo(l, mem)
	}
	if len(sub.Results) > 0 {
		if l := a.locFor(sub.Results[0].Origin); l >= 0 {
			a.store.SetPointsTo(l, mem)
		}
	}
}

func (a *analyzer) visitGamma(h region.NodeHandle, n *region.GammaNode) {
	for i, origin := range n.EntryOrigins {
		ol := a.locFor(origin)
		for _, sh := range n.Subregions {
			sub := a.g.RegionAt(sh)
			if i >= len(sub.Args) {
				continue
			}
			al := a.locFor(region.Output{Node: sub.Args[i], Index: 0})
			a.store.Join(ol, al)
		}
	}

	for _, sh := range n.Subregions {
		a.visitRegion(sh)
	}

	for i := range n.ExitTypes {
		out := region.Output{Node: h, Index: i}
		ol := a.locFor(out)
		if ol < 0 {
			continue
		}
		for _, sh := range n.Subregions {
			sub := a.g.RegionAt(sh)
			if i >= len(sub.Results) {
				continue
			}
			rl := a.locFor(sub.Results[i].Origin)
			a.store.Join(ol, rl)
		}
	}
}

func (a *analyzer) visitTheta(h region.NodeHandle, n *region.ThetaNode) {
	sub := a.g.RegionAt(n.Subregion)
	for i, input := range n.LoopInputs {
		il := a.locFor(input)
		al := a.locFor(region.Output{Node: sub.Args[i], Index: 0})
		a.store.Join(il, al)
	}

	a.visitRegion(n.Subregion)

	for i := range n.LoopTypes {
		argL := a.locFor(region.Output{Node: sub.Args[i], Index: 0})
		if argL < 0 {
			continue
		}
		if i >= len(sub.Results) {
			continue
		}
		resL := a.locFor(sub.Results[i].Origin)
		a.store.Join(resL, argL)
		outL := a.locFor(region.Output{Node: h, Index: i})
		a.store.Join(outL, resL)
	}
}

// visitPhi implements the supplemented phi-unification rule (§9: "unify each
// recursion variable with its origin and with every body result targeting
// it, mirroring theta"), which the original analyzer left unimplemented.
func (a *analyzer) visitPhi(h region.NodeHandle, n *region.PhiNode) {
	sub := a.g.RegionAt(n.Subregion)
	for i, origin := range n.ContextVars {
		ol := a.locFor(origin)
		il := a.locFor(region.Output{Node: sub.Args[i], Index: 0})
		a.store.Join(ol, il)
	}

	a.visitRegion(n.Subregion)

	recBase := len(n.ContextVars)
	for i := range n.MemberTypes {
		if recBase+i >= len(sub.Args) || i >= len(sub.Results) {
			continue
		}
		argL := a.locFor(region.Output{Node: sub.Args[recBase+i], Index: 0})
		if argL < 0 {
			continue
		}
		resL := a.locFor(sub.Results[i].Origin)
		a.store.Join(argL, resL)
		outL := a.locFor(region.Output{Node: h, Index: i})
		a.store.Join(outL, resL)
	}
}
