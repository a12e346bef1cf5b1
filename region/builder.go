package region

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sjalander/jlmgo/aggregation"
	"github.com/sjalander/jlmgo/ipgraph"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// BuildModule lowers a whole ipgraph.Module into a region graph (§4.4): one
// delta per global, one lambda per function (wrapped in a phi for each
// mutually recursive group), all appended to the graph's root region.
//
// The per-function aggregation tree and demand-set annotation - a pure
// function of that function's own CFG, with no shared mutable state - is
// computed for every function concurrently via an errgroup before any
// region-graph node is created. Region-graph construction itself walks the
// module's call graph SCCs (callees before callers) sequentially: the Graph
// arena is not safe for concurrent mutation, and a mutually recursive group
// needs its member lambdas pre-bound before their bodies can reference each
// other, which is inherently a sequential fixed-point step.
func BuildModule(m *ipgraph.Module) (*Graph, error) {
	g := New(m.TargetTriple, m.DataLayout)
	root := g.Root()

	prepared, err := prepareFunctions(m)
	if err != nil {
		return nil, err
	}

	b := &builder{g: g, module: m, funcs: prepared, globals: map[string]Output{}, lambdas: map[string]NodeHandle{}}

	for _, gl := range m.Globals {
		if err := b.lowerGlobal(root, gl); err != nil {
			return nil, fmt.Errorf("region: global %q: %w", gl.Name, err)
		}
	}

	for _, scc := range m.CallGraphSCCs() {
		if err := b.lowerSCC(root, scc); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// preparedFunction bundles a function with the aggregation/demand pass
// already run against it.
type preparedFunction struct {
	fn     *ipgraph.Function
	tree   aggregation.Node
	demand map[aggregation.Node]*aggregation.Demand
}

func prepareFunctions(m *ipgraph.Module) (map[string]*preparedFunction, error) {
	out := make(map[string]*preparedFunction, len(m.Functions))
	results := make([]*preparedFunction, len(m.Functions))
	errs := make([]error, len(m.Functions))

	var eg errgroup.Group
	for i, f := range m.Functions {
		i, f := i, f
		eg.Go(func() error {
			tree, err := aggregation.Build(f.CFG, f.Args, f.Results)
			if err != nil {
				errs[i] = fmt.Errorf("region: function %q: %w", f.Name, err)
				return nil
			}
			results[i] = &preparedFunction{fn: f, tree: tree, demand: aggregation.Annotate(tree)}
			return nil
		})
	}
	_ = eg.Wait() // individual errors are collected per-index, not short-circuited

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, f := range m.Functions {
		out[f.Name] = results[i]
	}
	return out, nil
}

// builder carries the shared, sequentially-mutated state of the
// region-graph construction pass: the graph itself, the prepared per-
// function trees, and the name->location tables later SCCs' direct calls and
// global references resolve through.
type builder struct {
	g       *Graph
	module  *ipgraph.Module
	funcs   map[string]*preparedFunction
	globals map[string]Output     // global name -> its delta's Output
	lambdas map[string]NodeHandle // function name -> its LambdaNode handle
}

func (b *builder) lowerGlobal(parent RegionHandle, gl *ipgraph.Global) error {
	delta := &DeltaNode{ValueType: gl.Type, Exported: gl.Exported, Name: gl.Name}
	handle := b.g.AddNode(parent, delta)

	ctxVars := b.freeGlobalRefs(gl.Init, nil)
	ctxOrigins := make([]Output, len(ctxVars))
	for i, v := range ctxVars {
		origin, ok := b.globals[v.Name]
		if !ok {
			return fmt.Errorf("global %q references undefined global %q before it is lowered", gl.Name, v.Name)
		}
		ctxOrigins[i] = origin
	}

	var resultVars []*tac.Variable
	if gl.Result != nil {
		resultVars = []*tac.Variable{gl.Result}
	}
	tree, err := aggregation.Build(gl.Init, nil, resultVars)
	if err != nil {
		return err
	}
	demand := aggregation.Annotate(tree)

	sub := b.g.NewRegion(handle)
	env := map[*tac.Variable]Output{}
	for i, v := range ctxVars {
		arg := b.g.NewArgument(sub, v.Type, "ctx:"+v.Name)
		env[v] = arg
	}

	lb := &funcBuilder{b: b, sub: sub, demand: demand, globalNames: varNames(ctxVars)}
	final, err := lb.lower(tree, env)
	if err != nil {
		return err
	}
	region := b.g.RegionAt(sub)
	if len(resultVars) > 0 {
		region.Results = append(region.Results, Result{Origin: final[resultVars[0]], Type: gl.Type})
	}

	delta.Subregion = sub
	delta.ContextVars = ctxOrigins
	b.globals[gl.Name] = Output{Node: handle, Index: 0}
	return nil
}

func (b *builder) lowerSCC(parent RegionHandle, scc []*ipgraph.Function) error {
	if len(scc) == 1 && !b.selfRecursive(scc[0]) {
		return b.lowerFunction(parent, scc[0])
	}
	return b.lowerPhi(parent, scc)
}

func (b *builder) selfRecursive(f *ipgraph.Function) bool {
	for _, instr := range allInstructions(f.CFG) {
		if instr.IsCall() && opvocab.DirectCallee(instr.Op) == f.Name {
			return true
		}
	}
	return false
}

// lowerFunction lowers a single non-recursive function directly into a
// LambdaNode appended to parent.
func (b *builder) lowerFunction(parent RegionHandle, f *ipgraph.Function) error {
	lam := &LambdaNode{Signature: f.Signature, Exported: f.Exported, Name: f.Name, NumArgs: len(f.Args)}
	handle := b.g.AddNode(parent, lam)
	b.lambdas[f.Name] = handle

	if err := b.fillLambdaBody(handle, lam, f); err != nil {
		return fmt.Errorf("region: function %q: %w", f.Name, err)
	}
	return nil
}

// lowerPhi lowers a mutually (or self-) recursive group: every member's
// LambdaNode handle is allocated up front so bodies can call each other
// (and themselves) before any body is actually built, then each body is
// filled in, and finally the recursion variables are unified with each
// body's own final value via the PhiNode the fixed-point binder produces.
func (b *builder) lowerPhi(parent RegionHandle, scc []*ipgraph.Function) error {
	phi := &PhiNode{MemberNames: make([]string, len(scc)), MemberTypes: make([]types.Type, len(scc))}
	phiHandle := b.g.AddNode(parent, phi)
	sub := b.g.NewRegion(phiHandle)
	phi.Subregion = sub

	ctxVars := b.freeGlobalsForSCC(scc)
	ctxOrigins := make([]Output, len(ctxVars))
	for i, v := range ctxVars {
		origin, ok := b.globals[v.Name]
		if !ok {
			return fmt.Errorf("recursive group references undefined global %q", v.Name)
		}
		ctxOrigins[i] = origin
	}
	for _, v := range ctxVars {
		b.g.NewArgument(sub, v.Type, "ctx:"+v.Name)
	}

	lambdas := make([]*LambdaNode, len(scc))
	for i, f := range scc {
		lam := &LambdaNode{Signature: f.Signature, Exported: f.Exported, Name: f.Name, NumArgs: len(f.Args)}
		h := b.g.AddNode(sub, lam)
		lambdas[i] = lam
		b.lambdas[f.Name] = h
		phi.MemberNames[i] = f.Name
		phi.MemberTypes[i] = types.PointerType{Pointee: f.Signature}
		b.g.NewArgument(sub, phi.MemberTypes[i], "rec:"+f.Name)
	}

	subRegion := b.g.RegionAt(sub)
	for i, f := range scc {
		if err := b.fillLambdaBody(b.lambdas[f.Name], lambdas[i], f); err != nil {
			return fmt.Errorf("region: function %q (recursive group): %w", f.Name, err)
		}
		subRegion.Results = append(subRegion.Results, Result{
			Origin: Output{Node: b.lambdas[f.Name], Index: 0},
			Type:   phi.MemberTypes[i],
		})
	}

	phi.ContextVars = ctxOrigins
	return nil
}

// fillLambdaBody builds lam's subregion body from f's CFG and writes the
// result back through lam (lam's handle may already be visible to other,
// already-lowered callers, per the recursive-binding scheme above).
func (b *builder) fillLambdaBody(handle NodeHandle, lam *LambdaNode, f *ipgraph.Function) error {
	prepared := b.funcs[f.Name]
	ctxVars := b.freeGlobalRefs(f.CFG, f.Args)

	ctxOrigins := make([]Output, len(ctxVars))
	for i, v := range ctxVars {
		origin, ok := b.globals[v.Name]
		if !ok {
			return fmt.Errorf("references undefined global %q", v.Name)
		}
		ctxOrigins[i] = origin
	}

	sub := b.g.NewRegion(handle)
	env := map[*tac.Variable]Output{}
	for _, v := range ctxVars {
		env[v] = b.g.NewArgument(sub, v.Type, "ctx:"+v.Name)
	}
	for _, v := range f.Args {
		env[v] = b.g.NewArgument(sub, v.Type, v.Name)
	}

	lb := &funcBuilder{b: b, sub: sub, demand: prepared.demand, globalNames: varNames(ctxVars)}
	final, err := lb.lower(prepared.tree, env)
	if err != nil {
		return err
	}

	region := b.g.RegionAt(sub)
	for _, rv := range f.Results {
		region.Results = append(region.Results, Result{Origin: final[rv], Type: rv.Type})
	}

	lam.Subregion = sub
	lam.ContextVars = ctxOrigins
	return nil
}

// freeGlobalRefs returns, in a deterministic order, the actual *tac.Variable
// pointers f's CFG uses as operands that are neither one of locals (a result
// produced by some instruction) nor in args, and that name a global known to
// b. The returned pointers are exactly the ones the CFG's own instructions
// hold (the first-seen operand pointer for each distinct name), never
// freshly synthesized copies - env lookups downstream are keyed by pointer
// identity, so a freshly allocated *tac.Variable with the same Name would
// silently fail to bind at every actual use site.
func (b *builder) freeGlobalRefs(cfg *tac.CFG, args []*tac.Variable) []*tac.Variable {
	local := map[string]bool{}
	for _, v := range args {
		local[v.Name] = true
	}
	for _, instr := range allInstructions(cfg) {
		for _, r := range instr.Results {
			local[r.Name] = true
		}
	}
	seen := map[string]bool{}
	var out []*tac.Variable
	for _, instr := range allInstructions(cfg) {
		for _, v := range instr.Operands {
			if local[v.Name] || seen[v.Name] {
				continue
			}
			if _, ok := b.globals[v.Name]; !ok {
				continue
			}
			seen[v.Name] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *builder) freeGlobalsForSCC(scc []*ipgraph.Function) []*tac.Variable {
	seen := map[string]bool{}
	var out []*tac.Variable
	for _, f := range scc {
		for _, v := range b.freeGlobalRefs(f.CFG, f.Args) {
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func varNames(vars []*tac.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

func allInstructions(cfg *tac.CFG) []*tac.Instruction {
	var out []*tac.Instruction
	for _, blk := range cfg.Blocks {
		out = append(out, blk.Instructions...)
	}
	return out
}
