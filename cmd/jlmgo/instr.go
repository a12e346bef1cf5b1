package main

import (
	"fmt"
	"go/token"

	"golang.org/x/tools/go/ssa"

	"github.com/sjalander/jlmgo/diagnostic"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// lowerInstr lowers one non-terminator ssa.Instruction, appending zero or
// more tac.Instructions to tb. Every ssa.Value-producing instruction kind
// this driver recognizes binds fl.vars[instr] (or fl.tupleVars[instr], for
// a multi-result call) to the variable(s) it produces.
func (fl *funcLowering) lowerInstr(tb *tac.BasicBlock, instr ssa.Instruction) error {
	switch v := instr.(type) {
	case *ssa.Alloc:
		return fl.lowerAlloc(tb, v)
	case *ssa.Store:
		return fl.lowerStore(tb, v)
	case *ssa.UnOp:
		return fl.lowerUnOp(tb, v)
	case *ssa.BinOp:
		return fl.lowerBinOp(tb, v)
	case *ssa.FieldAddr:
		return fl.lowerFieldAddr(tb, v)
	case *ssa.IndexAddr:
		return fl.lowerIndexAddr(tb, v)
	case *ssa.ChangeType:
		return fl.lowerChangeType(tb, v)
	case *ssa.Convert:
		return fl.lowerConvert(tb, v)
	case *ssa.Call:
		return fl.lowerCall(tb, v)
	case *ssa.Extract:
		return fl.lowerExtract(v)
	case *ssa.DebugRef:
		return nil // carries no runtime effect; purely a source-position annotation

	default:
		return &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("instruction %T", instr), Where: fl.fn.String()}
	}
}

func (fl *funcLowering) lowerAlloc(tb *tac.BasicBlock, v *ssa.Alloc) error {
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}
	dst := fl.newTemp(v.Comment, t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.Alloca, Args: []types.Type{memType}, Results: []types.Type{t, memType}},
		Operands: []*tac.Variable{fl.memVar},
		Results:  []*tac.Variable{dst, fl.memVar},
	})
	fl.vars[v] = dst
	return nil
}

func (fl *funcLowering) lowerStore(tb *tac.BasicBlock, v *ssa.Store) error {
	ptr, err := fl.operand(tb, v.Addr)
	if err != nil {
		return err
	}
	val, err := fl.operand(tb, v.Val)
	if err != nil {
		return err
	}
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.Store, Args: []types.Type{val.Type, ptr.Type, memType}, Results: []types.Type{memType}},
		Operands: []*tac.Variable{val, ptr, fl.memVar},
		Results:  []*tac.Variable{fl.memVar},
	})
	return nil
}

func (fl *funcLowering) lowerUnOp(tb *tac.BasicBlock, v *ssa.UnOp) error {
	x, err := fl.operand(tb, v.X)
	if err != nil {
		return err
	}
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}

	if v.Op == token.MUL { // pointer dereference: load
		dst := fl.newTemp("load", t)
		tb.Instructions = append(tb.Instructions, &tac.Instruction{
			Op:       &opvocab.Simple{Tag_: opvocab.Load, Args: []types.Type{x.Type, memType}, Results: []types.Type{t, memType}},
			Operands: []*tac.Variable{x, fl.memVar},
			Results:  []*tac.Variable{dst, fl.memVar},
		})
		fl.vars[v] = dst
		return nil
	}

	tag, ok := map[token.Token]string{
		token.NOT: "not",
		token.SUB: "neg",
		token.XOR: "bnot",
	}[v.Op]
	if !ok {
		return &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("unary operator %s", v.Op), Where: fl.fn.String()}
	}
	dst := fl.newTemp(tag, t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.Tag(tag), Args: []types.Type{x.Type}, Results: []types.Type{t}},
		Operands: []*tac.Variable{x},
		Results:  []*tac.Variable{dst},
	})
	fl.vars[v] = dst
	return nil
}

var binOpTags = map[token.Token]string{
	token.ADD:     "add",
	token.SUB:     "sub",
	token.MUL:     "mul",
	token.QUO:     "quo",
	token.REM:     "rem",
	token.AND:     "and",
	token.OR:      "or",
	token.XOR:     "xor",
	token.SHL:     "shl",
	token.SHR:     "shr",
	token.AND_NOT: "and_not",
	token.EQL:     "icmp_eq",
	token.NEQ:     "icmp_ne",
	token.LSS:     "icmp_lt",
	token.LEQ:     "icmp_le",
	token.GTR:     "icmp_gt",
	token.GEQ:     "icmp_ge",
}

func (fl *funcLowering) lowerBinOp(tb *tac.BasicBlock, v *ssa.BinOp) error {
	tag, ok := binOpTags[v.Op]
	if !ok {
		return &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("binary operator %s", v.Op), Where: fl.fn.String()}
	}
	x, err := fl.operand(tb, v.X)
	if err != nil {
		return err
	}
	y, err := fl.operand(tb, v.Y)
	if err != nil {
		return err
	}
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}
	dst := fl.newTemp(tag, t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.Tag(tag), Args: []types.Type{x.Type, y.Type}, Results: []types.Type{t}},
		Operands: []*tac.Variable{x, y},
		Results:  []*tac.Variable{dst},
	})
	fl.vars[v] = dst
	return nil
}

func (fl *funcLowering) lowerFieldAddr(tb *tac.BasicBlock, v *ssa.FieldAddr) error {
	ptr, err := fl.operand(tb, v.X)
	if err != nil {
		return err
	}
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}
	dst := fl.newTemp("field", t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.GetElementPtr, Args: []types.Type{ptr.Type}, Results: []types.Type{t}, Payload: fmt.Sprintf("%d", v.Field)},
		Operands: []*tac.Variable{ptr},
		Results:  []*tac.Variable{dst},
	})
	fl.vars[v] = dst
	return nil
}

// lowerIndexAddr lowers array/slice element addressing. The index value
// itself carries no points-to information and is dropped: gep's wire
// convention (a single pointer input/output, §pointsto/steensgaard.go) is
// deliberately index-blind, since Steensgaard unification never
// distinguishes offsets within an aggregate.
func (fl *funcLowering) lowerIndexAddr(tb *tac.BasicBlock, v *ssa.IndexAddr) error {
	ptr, err := fl.operand(tb, v.X)
	if err != nil {
		return err
	}
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}
	dst := fl.newTemp("index", t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{
		Op:       &opvocab.Simple{Tag_: opvocab.GetElementPtr, Args: []types.Type{ptr.Type}, Results: []types.Type{t}, Payload: "index"},
		Operands: []*tac.Variable{ptr},
		Results:  []*tac.Variable{dst},
	})
	fl.vars[v] = dst
	return nil
}

func (fl *funcLowering) lowerChangeType(tb *tac.BasicBlock, v *ssa.ChangeType) error {
	return fl.lowerCastLike(tb, v, v.X)
}

func (fl *funcLowering) lowerConvert(tb *tac.BasicBlock, v *ssa.Convert) error {
	return fl.lowerCastLike(tb, v, v.X)
}

// lowerCastLike handles any unary value-in/value-out conversion (ssa's
// ChangeType, a representation-preserving relabeling, and Convert, a real
// numeric conversion): a pointer-to-pointer cast is a Bitcast, matching the
// tag the region-graph/Steensgaard layer special-cases; anything else is an
// opaque "convert" primitive, since no pass downstream inspects numeric
// conversions structurally.
func (fl *funcLowering) lowerCastLike(tb *tac.BasicBlock, v ssa.Value, x ssa.Value) error {
	src, err := fl.operand(tb, x)
	if err != nil {
		return err
	}
	t, err := convertValueType(v.Type())
	if err != nil {
		return err
	}

	_, srcPtr := src.Type.(types.PointerType)
	_, dstPtr := t.(types.PointerType)
	var op *opvocab.Simple
	if srcPtr && dstPtr {
		op = &opvocab.Simple{Tag_: opvocab.Bitcast, Args: []types.Type{src.Type}, Results: []types.Type{t}}
	} else {
		op = &opvocab.Simple{Tag_: "convert", Args: []types.Type{src.Type}, Results: []types.Type{t}}
	}
	dst := fl.newTemp("cast", t)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{Op: op, Operands: []*tac.Variable{src}, Results: []*tac.Variable{dst}})
	fl.vars[v] = dst
	return nil
}

func (fl *funcLowering) lowerCall(tb *tac.BasicBlock, v *ssa.Call) error {
	common := v.Common()
	if common.IsInvoke() {
		return &diagnostic.UnsupportedConstruct{Construct: "interface method invocation", Where: fl.fn.String()}
	}
	if _, isBuiltin := common.Value.(*ssa.Builtin); isBuiltin {
		return &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("builtin call %s", common.Value.Name()), Where: fl.fn.String()}
	}

	resultTypes, err := callResultTypes(v)
	if err != nil {
		return err
	}
	results := make([]*tac.Variable, len(resultTypes))
	for i, rt := range resultTypes {
		results[i] = fl.newTemp("call", rt)
	}

	var operands []*tac.Variable
	var argTypes []types.Type
	var op *opvocab.Simple

	if callee := common.StaticCallee(); callee != nil {
		op = &opvocab.Simple{Tag_: opvocab.Call, Payload: funcName(callee)}
	} else {
		calleeVar, err := fl.operand(tb, common.Value)
		if err != nil {
			return err
		}
		operands = append(operands, calleeVar)
		argTypes = append(argTypes, calleeVar.Type)
		op = &opvocab.Simple{Tag_: opvocab.Call}
	}

	for _, a := range common.Args {
		av, err := fl.operand(tb, a)
		if err != nil {
			return err
		}
		operands = append(operands, av)
		argTypes = append(argTypes, av.Type)
	}
	operands = append(operands, fl.memVar)
	argTypes = append(argTypes, memType)

	op.Args = argTypes
	op.Results = append(append([]types.Type(nil), resultTypes...), memType)

	instrResults := append(append([]*tac.Variable(nil), results...), fl.memVar)
	tb.Instructions = append(tb.Instructions, &tac.Instruction{Op: op, Operands: operands, Results: instrResults})

	switch len(results) {
	case 0:
		// void call: v itself is never referenced as a value.
	case 1:
		fl.vars[v] = results[0]
	default:
		fl.tupleVars[v] = results
	}
	return nil
}

// callResultTypes returns the real (non-memstate) result types of a call,
// in order, derived from the Go signature rather than from v.Type() so a
// void call yields zero types instead of ssa's empty-tuple representation.
func callResultTypes(v *ssa.Call) ([]types.Type, error) {
	sig := v.Common().Signature()
	n := sig.Results().Len()
	out := make([]types.Type, n)
	for i := 0; i < n; i++ {
		t, err := convertType(sig.Results().At(i).Type())
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (fl *funcLowering) lowerExtract(v *ssa.Extract) error {
	call, ok := v.Tuple.(*ssa.Call)
	if !ok {
		return &diagnostic.UnsupportedConstruct{Construct: "extract from non-call tuple", Where: fl.fn.String()}
	}
	results, ok := fl.tupleVars[call]
	if !ok || v.Index >= len(results) {
		return &diagnostic.UnsupportedConstruct{Construct: "extract index out of range", Where: fl.fn.String()}
	}
	fl.vars[v] = results[v.Index]
	return nil
}
