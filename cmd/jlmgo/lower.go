// Command jlmgo is an example front end: it loads real Go packages with
// golang.org/x/tools/go/packages, builds golang.org/x/tools/go/ssa IR for
// them, and lowers every supported function body into the tac package's
// three-address-code form, producing an ipgraph.Module that the three core
// entry points in the root jlmgo package then carry through region-graph
// construction, Steensgaard analysis and memory-state re-encoding.
//
// The SSA form go/ssa hands us is already in single-assignment form with
// explicit *ssa.Phi join points; this module's own tac package deliberately
// is not SSA (its environments key joins by shared *tac.Variable identity,
// the same way a structured-control-flow source language's mutable locals
// do - see region/lower.go). Turning one into the other means destroying
// phi nodes by copy insertion: each *ssa.Phi gets one shared tac.Variable,
// and every predecessor block gets an extra assignment copying its edge
// value into that variable just before it leaves the block, exactly the
// classical out-of-SSA translation.
package main

import (
	"fmt"
	"go/token"

	"golang.org/x/tools/go/ssa"

	"github.com/sjalander/jlmgo/diagnostic"
	"github.com/sjalander/jlmgo/ipgraph"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/restructure"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// memType is the type every function and call threads its pervasive
// memory-state token as, per the wire-level convention documented at the
// top of pointsto/steensgaard.go.
var memType = types.MemoryStateType{}

// funcLowering holds the per-function state threaded through lowering one
// ssa.Function into one ipgraph.Function.
type funcLowering struct {
	fn         *ssa.Function
	cfg        *tac.CFG
	blocks     map[*ssa.BasicBlock]*tac.BasicBlock
	vars       map[ssa.Value]*tac.Variable   // non-tuple-valued ssa.Values -> their tac variable
	tupleVars  map[ssa.Value][]*tac.Variable // multi-result calls -> their per-result variables
	constCache map[ssa.Value]*tac.Variable
	globalVars map[string]*tac.Variable // global name -> the one tac.Variable pointer standing for it in this function
	memVar     *tac.Variable
	resultVars []*tac.Variable
	nextID     int
	nextTmp    int
	exit       *tac.BasicBlock
}

func newBlockIDFunc(fl *funcLowering) func() int {
	return func() int {
		id := fl.nextID
		fl.nextID++
		return id
	}
}

func (fl *funcLowering) newTemp(name string, t types.Type) *tac.Variable {
	fl.nextTmp++
	if name == "" {
		name = fmt.Sprintf("t%d", fl.nextTmp)
	} else {
		name = fmt.Sprintf("%s.%d", name, fl.nextTmp)
	}
	return &tac.Variable{Name: name, Type: t}
}

// lowerFunction converts a single ssa.Function with a body into an
// ipgraph.Function. Functions this driver cannot faithfully represent -
// closures with free variables, generics, anything reaching an unsupported
// instruction - are reported via a *diagnostic.UnsupportedConstruct error
// so the caller can skip just that function.
func lowerFunction(fn *ssa.Function) (*ipgraph.Function, error) {
	if fn.Blocks == nil {
		return nil, &diagnostic.UnsupportedConstruct{Construct: "external or abstract function", Where: fn.String()}
	}
	if len(fn.FreeVars) > 0 {
		return nil, &diagnostic.UnsupportedConstruct{Construct: "closure with free variables", Where: fn.String()}
	}
	if fn.TypeParams().Len() > 0 {
		return nil, &diagnostic.UnsupportedConstruct{Construct: "generic function", Where: fn.String()}
	}

	sig, err := convertSignature(fn.Signature)
	if err != nil {
		return nil, err
	}

	fl := &funcLowering{
		fn:         fn,
		cfg:        &tac.CFG{},
		blocks:     map[*ssa.BasicBlock]*tac.BasicBlock{},
		vars:       map[ssa.Value]*tac.Variable{},
		tupleVars:  map[ssa.Value][]*tac.Variable{},
		constCache: map[ssa.Value]*tac.Variable{},
		globalVars: map[string]*tac.Variable{},
		memVar:     &tac.Variable{Name: "mem", Type: memType},
	}

	for i, b := range fn.Blocks {
		tb := &tac.BasicBlock{ID: i}
		fl.blocks[b] = tb
		fl.cfg.Blocks = append(fl.cfg.Blocks, tb)
	}
	fl.nextID = len(fn.Blocks)
	fl.cfg.Entry = fl.blocks[fn.Blocks[0]]

	fl.exit = &tac.BasicBlock{ID: fl.nextID}
	fl.nextID++
	fl.cfg.Blocks = append(fl.cfg.Blocks, fl.exit)
	fl.cfg.Exit = fl.exit

	var argVars []*tac.Variable
	for _, p := range fn.Params {
		pt, err := convertValueType(p.Type())
		if err != nil {
			return nil, err
		}
		v := &tac.Variable{Name: paramName(p), Type: pt}
		fl.vars[p] = v
		argVars = append(argVars, v)
	}
	args := append([]*tac.Variable{fl.memVar}, argVars...)

	fl.resultVars = make([]*tac.Variable, len(sig.Results))
	for i, rt := range sig.Results {
		fl.resultVars[i] = fl.newTemp("ret", rt)
	}

	fl.declarePhis()

	for _, b := range fn.Blocks {
		if err := fl.lowerBlock(b); err != nil {
			return nil, fmt.Errorf("%s: %w", fn.String(), err)
		}
	}

	results := append(append([]*tac.Variable(nil), fl.resultVars...), fl.memVar)

	if err := restructure.Run(fl.cfg, newBlockIDFunc(fl)); err != nil {
		return nil, fmt.Errorf("%s: restructure: %w", fn.String(), err)
	}

	return &ipgraph.Function{
		Name:      funcName(fn),
		Signature: withMemSignature(sig),
		Args:      args,
		Results:   results,
		Exported:  fn.Synthetic == "" && token.IsExported(fn.Name()),
		CFG:       fl.cfg,
	}, nil
}

// withMemSignature reports the function's signature as seen by callers
// outside this driver - unlike Args/Results, the region-graph lambda's own
// Signature field is purely descriptive (used by indirect-call typing), so
// it keeps the surface Go signature rather than the mem-augmented one.
func withMemSignature(sig types.FunctionType) types.FunctionType { return sig }

// declarePhis pre-creates one shared tac.Variable per *ssa.Phi in the
// function, before any block is actually lowered, since a phi's uses can
// appear in blocks ordered arbitrarily relative to its own.
func (fl *funcLowering) declarePhis() {
	for _, b := range fl.fn.Blocks {
		for _, instr := range b.Instrs {
			phi, ok := instr.(*ssa.Phi)
			if !ok {
				continue
			}
			t, err := convertValueType(phi.Type())
			if err != nil {
				continue // surfaced again, as a real error, when the block defining it is lowered
			}
			fl.vars[phi] = fl.newTemp(phi.Comment, t)
		}
	}
}

func (fl *funcLowering) lowerBlock(b *ssa.BasicBlock) error {
	tb := fl.blocks[b]

	for _, instr := range b.Instrs {
		switch instr.(type) {
		case *ssa.Phi:
			continue // destroyed via predecessor-side copy insertion below
		}

		switch v := instr.(type) {
		case *ssa.If:
			return fl.lowerIf(b, tb, v)
		case *ssa.Jump:
			return fl.lowerJump(b, tb)
		case *ssa.Return:
			return fl.lowerReturn(b, tb, v)

		default:
			if err := fl.lowerInstr(tb, instr); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("block %s has no terminator", b)
}

// emitPhiCopies appends, to tb, one Assignment instruction per phi in succ
// that copies succ's edge value for the from->succ edge into the phi's
// shared variable.
func (fl *funcLowering) emitPhiCopies(tb *tac.BasicBlock, from, succ *ssa.BasicBlock) error {
	edge := predIndex(succ, from)
	for _, instr := range succ.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			continue
		}
		dst, ok := fl.vars[phi]
		if !ok {
			t, err := convertValueType(phi.Type())
			if err != nil {
				return err
			}
			dst = fl.newTemp(phi.Comment, t)
			fl.vars[phi] = dst
		}
		src, err := fl.operand(tb, phi.Edges[edge])
		if err != nil {
			return err
		}
		tb.Instructions = append(tb.Instructions, &tac.Instruction{
			Op:       &opvocab.Simple{Tag_: opvocab.Assignment, Results: []types.Type{dst.Type}},
			Operands: []*tac.Variable{src},
			Results:  []*tac.Variable{dst},
		})
	}
	return nil
}

func predIndex(b, pred *ssa.BasicBlock) int {
	for i, p := range b.Preds {
		if p == pred {
			return i
		}
	}
	return 0
}

func (fl *funcLowering) lowerIf(b *ssa.BasicBlock, tb *tac.BasicBlock, v *ssa.If) error {
	cond, err := fl.operand(tb, v.Cond)
	if err != nil {
		return err
	}

	trueSucc, falseSucc := b.Succs[0], b.Succs[1]
	if err := fl.emitPhiCopies(tb, b, trueSucc); err != nil {
		return err
	}
	if err := fl.emitPhiCopies(tb, b, falseSucc); err != nil {
		return err
	}

	// The tac Branch operator's predicate selects an index directly into
	// Succs, where Succs[0] is the "go there" arm; ssa.If's convention is
	// the same (Succs[0] is the true arm), so the predicate fed to Branch
	// must be 0 exactly when cond is true - the logical complement of cond.
	bit1 := types.BitType{Width: 1}
	predVar := fl.newTemp("notcond", bit1)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: "lnot", Args: []types.Type{bit1}, Results: []types.Type{bit1}},
		Operands: []*tac.Variable{cond},
		Results:  []*tac.Variable{predVar},
	})
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.Branch, Args: []types.Type{bit1}, NTargets: 2},
		Operands: []*tac.Variable{predVar},
	})

	fl.cfg.AddEdge(tb, fl.blocks[trueSucc])
	fl.cfg.AddEdge(tb, fl.blocks[falseSucc])
	return nil
}

func (fl *funcLowering) lowerJump(b *ssa.BasicBlock, tb *tac.BasicBlock) error {
	succ := b.Succs[0]
	if err := fl.emitPhiCopies(tb, b, succ); err != nil {
		return err
	}
	fl.cfg.AddEdge(tb, fl.blocks[succ])
	return nil
}

func (fl *funcLowering) lowerReturn(_ *ssa.BasicBlock, tb *tac.BasicBlock, v *ssa.Return) error {
	for i, rv := range v.Results {
		src, err := fl.operand(tb, rv)
		if err != nil {
			return err
		}
		dst := fl.resultVars[i]
		tb.Instructions = append(tb.Instructions, &tac.Instruction{
			Op:       &opvocab.Simple{Tag_: opvocab.Assignment, Results: []types.Type{dst.Type}},
			Operands: []*tac.Variable{src},
			Results:  []*tac.Variable{dst},
		})
	}
	fl.cfg.AddEdge(tb, fl.exit)
	return nil
}

// operand resolves an ssa.Value used as an instruction operand to its tac
// variable, materializing a defining instruction for constants the first
// time they are referenced.
func (fl *funcLowering) operand(tb *tac.BasicBlock, v ssa.Value) (*tac.Variable, error) {
	if c, ok := v.(*ssa.Const); ok {
		return fl.constOperand(tb, c)
	}
	if g, ok := v.(*ssa.Global); ok {
		name := globalName(g)
		if existing, ok := fl.globalVars[name]; ok {
			return existing, nil
		}
		t, err := convertValueType(g.Type())
		if err != nil {
			return nil, err
		}
		gv := &tac.Variable{Name: name, Type: t}
		fl.globalVars[name] = gv
		return gv, nil
	}
	if existing, ok := fl.vars[v]; ok {
		return existing, nil
	}
	return nil, &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("reference to unlowered value %s", v.Name()), Where: fl.fn.String()}
}

func (fl *funcLowering) constOperand(tb *tac.BasicBlock, c *ssa.Const) (*tac.Variable, error) {
	if cached, ok := fl.constCache[c]; ok {
		return cached, nil
	}
	t, err := convertValueType(c.Type())
	if err != nil {
		return nil, err
	}
	dst := fl.newTemp("const", t)

	var instr *tac.Instruction
	if _, isPtr := t.(types.PointerType); isPtr && c.IsNil() {
		instr = &tac.Instruction{Op: &opvocab.Simple{Tag_: opvocab.PtrConstantNull, Results: []types.Type{t}}, Results: []*tac.Variable{dst}}
	} else if c.Value == nil {
		instr = &tac.Instruction{Op: &opvocab.Simple{Tag_: opvocab.UndefConstant, Results: []types.Type{t}}, Results: []*tac.Variable{dst}}
	} else {
		instr = &tac.Instruction{
			Op:      &opvocab.Simple{Tag_: opvocab.Assignment, Results: []types.Type{t}, Payload: c.Value.String()},
			Results: []*tac.Variable{dst},
		}
	}
	tb.Instructions = append(tb.Instructions, instr)
	fl.constCache[c] = dst
	return dst, nil
}

func paramName(p *ssa.Parameter) string {
	if p.Name() != "" {
		return p.Name()
	}
	return "_"
}

func funcName(fn *ssa.Function) string { return fn.RelString(nil) }

func globalName(g *ssa.Global) string {
	if g.Pkg != nil {
		return g.Pkg.Pkg.Path() + "." + g.Name()
	}
	return g.Name()
}
