package region

import (
	"fmt"
	"sort"

	"github.com/sjalander/jlmgo/aggregation"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// funcBuilder lowers one already-aggregated function body (or global
// initializer) into region-graph dataflow within a single subregion,
// threading a variable -> Output environment through the tree the same way
// a structured-control-flow-to-SSA rewrite would.
type funcBuilder struct {
	b           *builder
	sub         RegionHandle
	demand      map[aggregation.Node]*aggregation.Demand
	globalNames []string // names of the context globals; not read by lowering or its error messages
}

// lower runs the whole tree and returns the environment in effect at the
// ExitNode, for the caller to read its Results bindings from.
func (lb *funcBuilder) lower(tree aggregation.Node, env map[*tac.Variable]Output) (map[*tac.Variable]Output, error) {
	final, pred, err := lb.step(tree, env, nil)
	if err != nil {
		return nil, err
	}
	if pred != nil {
		return nil, fmt.Errorf("region: dangling branch predicate with no matching branch node")
	}
	return final, nil
}

// step lowers one aggregation node. pendingPredicate carries a branch
// predicate Output computed by an immediately preceding BlockNode sibling,
// for a following BranchNode to consume; it is nil everywhere else.
func (lb *funcBuilder) step(node aggregation.Node, env map[*tac.Variable]Output, pendingPredicate *Output) (map[*tac.Variable]Output, *Output, error) {
	switch n := node.(type) {
	case *aggregation.EntryNode, *aggregation.ExitNode:
		return env, pendingPredicate, nil

	case *aggregation.BlockNode:
		return lb.lowerBlock(n, env)

	case *aggregation.LinearNode:
		cur := env
		var pred *Output
		for _, kid := range n.Kids {
			var err error
			cur, pred, err = lb.step(kid, cur, pred)
			if err != nil {
				return nil, nil, err
			}
		}
		return cur, pred, nil

	case *aggregation.BranchNode:
		if pendingPredicate == nil {
			return nil, nil, fmt.Errorf("region: branch node with no preceding predicate")
		}
		next, err := lb.lowerBranch(n, env, *pendingPredicate)
		return next, nil, err

	case *aggregation.LoopNode:
		if pendingPredicate != nil {
			return nil, nil, fmt.Errorf("region: loop node immediately after a dangling predicate")
		}
		next, err := lb.lowerLoop(n, env)
		return next, nil, err

	default:
		return nil, nil, fmt.Errorf("region: unknown aggregation node type %T", node)
	}
}

// lowerBlock emits one SimpleNode per instruction (except a trailing Branch,
// whose predicate is reported to the caller rather than materialized into
// the graph - the structure it chooses between is already explicit in the
// aggregation tree), per §4.4's two special-cased TAC kinds: an Assignment
// that copies another variable's value is aliased rather than given its own
// node (a zero-operand Assignment is instead a literal constant and still
// gets a node, since there is nothing to alias it to), and a Select becomes
// a two-way GammaNode driven by a 1-of-2 match on its predicate.
func (lb *funcBuilder) lowerBlock(n *aggregation.BlockNode, env map[*tac.Variable]Output) (map[*tac.Variable]Output, *Output, error) {
	env = cloneEnv(env)
	var pred *Output

	for _, instr := range n.Block.Instructions {
		if instr.IsBranch() {
			p, ok := env[instr.Operands[0]]
			if !ok {
				return nil, nil, fmt.Errorf("region: branch predicate %s has no binding", instr.Operands[0])
			}
			pred = &p
			continue
		}

		if instr.Op.Tag() == opvocab.Assignment && len(instr.Operands) == 1 {
			src, ok := env[instr.Operands[0]]
			if !ok {
				return nil, nil, fmt.Errorf("region: assignment operand %s has no binding", instr.Operands[0])
			}
			env[instr.Results[0]] = src
			continue
		}

		if instr.Op.Tag() == opvocab.Select {
			out, err := lb.lowerSelect(instr, env)
			if err != nil {
				return nil, nil, err
			}
			env[instr.Results[0]] = out
			continue
		}

		inputs, err := lb.resolveInputs(instr, env)
		if err != nil {
			return nil, nil, err
		}
		h := lb.b.g.AddNode(lb.sub, &SimpleNode{Op: instr.Op.Copy(), Inputs: inputs})
		for i, r := range instr.Results {
			env[r] = Output{Node: h, Index: i}
		}
	}
	return env, pred, nil
}

// lowerSelect builds the two-way gamma a Select TAC instruction maps to
// (§4.4): operand 0 is the predicate, operand 1 the value chosen when the
// predicate picks arm 0, operand 2 the value chosen when it picks arm 1 -
// the same predicate-first convention opvocab.Branch uses. Both candidate
// values are already bound in the enclosing scope (a select does not itself
// branch control flow), so each arm is just an ArgumentNode pass-through
// selecting its own candidate.
func (lb *funcBuilder) lowerSelect(instr *tac.Instruction, env map[*tac.Variable]Output) (Output, error) {
	if len(instr.Operands) != 3 || len(instr.Results) != 1 {
		return Output{}, fmt.Errorf("region: select expects 3 operands (predicate, true value, false value) and 1 result")
	}
	predVar, trueVar, falseVar := instr.Operands[0], instr.Operands[1], instr.Operands[2]

	predOut, ok := env[predVar]
	if !ok {
		return Output{}, fmt.Errorf("region: select predicate %s has no binding", predVar)
	}
	trueOut, ok := env[trueVar]
	if !ok {
		return Output{}, fmt.Errorf("region: select true-arm operand %s has no binding", trueVar)
	}
	falseOut, ok := env[falseVar]
	if !ok {
		return Output{}, fmt.Errorf("region: select false-arm operand %s has no binding", falseVar)
	}
	resultType := instr.Results[0].Type

	gamma := &GammaNode{
		Predicate:    predOut,
		EntryOrigins: []Output{trueOut, falseOut},
		NumExit:      1,
		ExitTypes:    []types.Type{resultType},
	}
	handle := lb.b.g.AddNode(lb.sub, gamma)

	for arm := 0; arm < 2; arm++ {
		armSub := lb.b.g.NewRegion(handle)
		trueArg := lb.b.g.NewArgument(armSub, resultType, "sel.true")
		falseArg := lb.b.g.NewArgument(armSub, resultType, "sel.false")
		region := lb.b.g.RegionAt(armSub)
		if arm == 0 {
			region.Results = append(region.Results, Result{Origin: trueArg, Type: resultType})
		} else {
			region.Results = append(region.Results, Result{Origin: falseArg, Type: resultType})
		}
		gamma.Subregions = append(gamma.Subregions, armSub)
	}

	return Output{Node: handle, Index: 0}, nil
}

// resolveInputs maps an instruction's TAC operands to region-graph Outputs,
// prepending the resolved callee Output for a direct call (whose TAC operand
// list, unlike an indirect call's, does not itself carry a callee value -
// the callee is instead named out of band by the operator's Payload).
func (lb *funcBuilder) resolveInputs(instr *tac.Instruction, env map[*tac.Variable]Output) ([]Output, error) {
	var prefix []Output
	if instr.IsCall() {
		if name := opvocab.DirectCallee(instr.Op); name != "" {
			h, ok := lb.b.lambdas[name]
			if !ok {
				return nil, fmt.Errorf("region: call to %q before it is lowered", name)
			}
			prefix = []Output{{Node: h, Index: 0}}
		}
	}

	out := make([]Output, 0, len(prefix)+len(instr.Operands))
	out = append(out, prefix...)
	for _, op := range instr.Operands {
		v, ok := env[op]
		if !ok {
			return nil, fmt.Errorf("region: operand %s has no binding at use", op)
		}
		out = append(out, v)
	}
	return out, nil
}

// lowerBranch builds a GammaNode: every variable live across the branch
// (demand.Top) becomes an entry variable bound identically into each arm's
// subregion, and every variable live after it (demand.Bottom) becomes an
// exit variable each arm must supply.
func (lb *funcBuilder) lowerBranch(n *aggregation.BranchNode, env map[*tac.Variable]Output, predicate Output) (map[*tac.Variable]Output, error) {
	d := lb.demand[n]
	entryVars := sortedVars(d.Top)
	exitVars := sortedVars(d.Bottom)

	entryOrigins := make([]Output, len(entryVars))
	for i, v := range entryVars {
		origin, ok := env[v]
		if !ok {
			return nil, fmt.Errorf("region: branch entry variable %s has no binding", v)
		}
		entryOrigins[i] = origin
	}

	exitTypes := make([]types.Type, len(exitVars))
	for i, v := range exitVars {
		exitTypes[i] = v.Type
	}

	gamma := &GammaNode{Predicate: predicate, EntryOrigins: entryOrigins, NumExit: len(exitVars), ExitTypes: exitTypes}
	handle := lb.b.g.AddNode(lb.sub, gamma)

	for _, arm := range n.Kids {
		armSub := lb.b.g.NewRegion(handle)
		armEnv := map[*tac.Variable]Output{}
		for _, v := range entryVars {
			armEnv[v] = lb.b.g.NewArgument(armSub, v.Type, v.Name)
		}
		armLB := &funcBuilder{b: lb.b, sub: armSub, demand: lb.demand}
		final, err := armLB.lower(arm, armEnv)
		if err != nil {
			return nil, err
		}
		region := lb.b.g.RegionAt(armSub)
		for _, v := range exitVars {
			origin, ok := final[v]
			if !ok {
				return nil, fmt.Errorf("region: branch arm does not define exit variable %s", v)
			}
			region.Results = append(region.Results, Result{Origin: origin, Type: v.Type})
		}
		gamma.Subregions = append(gamma.Subregions, armSub)
	}

	out := cloneEnv(env)
	for i, v := range exitVars {
		out[v] = Output{Node: handle, Index: i}
	}
	return out, nil
}

// lowerLoop builds a ThetaNode from a loop's fixed-point demand set (top
// equals bottom, per the annotator): every live variable becomes a loop
// variable, and the body's trailing latch block supplies the repeat/exit
// predicate reserved as the subregion's final result (see ThetaNode's doc
// comment in graph.go).
func (lb *funcBuilder) lowerLoop(n *aggregation.LoopNode, env map[*tac.Variable]Output) (map[*tac.Variable]Output, error) {
	d := lb.demand[n]
	loopVars := sortedVars(d.Top)

	loopInputs := make([]Output, len(loopVars))
	loopTypes := make([]types.Type, len(loopVars))
	for i, v := range loopVars {
		origin, ok := env[v]
		if !ok {
			return nil, fmt.Errorf("region: loop variable %s has no binding before the loop", v)
		}
		loopInputs[i] = origin
		loopTypes[i] = v.Type
	}

	theta := &ThetaNode{LoopInputs: loopInputs, LoopTypes: loopTypes}
	handle := lb.b.g.AddNode(lb.sub, theta)
	sub := lb.b.g.NewRegion(handle)
	theta.Subregion = sub

	bodyEnv := map[*tac.Variable]Output{}
	for i, v := range loopVars {
		bodyEnv[v] = lb.b.g.NewArgument(sub, v.Type, v.Name)
		_ = i
	}

	bodyLB := &funcBuilder{b: lb.b, sub: sub, demand: lb.demand}
	final, pred, err := bodyLB.step(n.Body, bodyEnv, nil)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return nil, fmt.Errorf("region: loop body does not end in a branch predicate")
	}

	region := lb.b.g.RegionAt(sub)
	for _, v := range loopVars {
		origin, ok := final[v]
		if !ok {
			return nil, fmt.Errorf("region: loop body does not redefine loop variable %s", v)
		}
		region.Results = append(region.Results, Result{Origin: origin, Type: v.Type})
	}
	region.Results = append(region.Results, Result{Origin: *pred, Type: types.ControlType{NAlternatives: 2}})

	out := cloneEnv(env)
	for i, v := range loopVars {
		out[v] = Output{Node: handle, Index: i}
	}
	return out, nil
}

func cloneEnv(env map[*tac.Variable]Output) map[*tac.Variable]Output {
	out := make(map[*tac.Variable]Output, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// sortedVars orders a demand set's variables by name for deterministic
// region-graph argument/result layout (TAC variables are assumed uniquely
// named within a function, as any SSA-destructed IR guarantees).
func sortedVars(s aggregation.VarSet) []*tac.Variable {
	out := make([]*tac.Variable, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
