package main

import (
	"fmt"
	"go/token"
	gotypes "go/types"
	"log"
	"sort"

	"golang.org/x/tools/go/ssa"

	"github.com/sjalander/jlmgo/config"
	"github.com/sjalander/jlmgo/ipgraph"
	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

// buildModule lowers every supported function and package-level variable
// reachable from pkgs (the user's own packages, as opposed to their
// dependencies) into an ipgraph.Module. Functions this driver cannot
// represent are skipped with a logged reason rather than aborting the whole
// run, in keeping with this being an example/best-effort driver rather than
// the core pipeline. Globals are never skipped: one whose element type
// cannot be converted is kept with an empty RecordType as its type.
func buildModule(pkgs []*ssa.Package) *ipgraph.Module {
	m := &ipgraph.Module{
		TargetTriple: "x86_64-unknown-linux-gnu",
		DataLayout:   "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128",
		IRVersion:    config.MinIRVersion,
	}

	seenFuncs := map[string]bool{}
	seenGlobals := map[string]bool{}

	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		names := make([]string, 0, len(pkg.Members))
		for name := range pkg.Members {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			member := pkg.Members[name]
			switch mv := member.(type) {
			case *ssa.Function:
				lowerAndAppendFunction(m, mv, seenFuncs)
				for _, anon := range mv.AnonFuncs {
					lowerAndAppendFunction(m, anon, seenFuncs)
				}
			case *ssa.Global:
				gl := lowerGlobal(mv)
				if !seenGlobals[gl.Name] {
					seenGlobals[gl.Name] = true
					m.Globals = append(m.Globals, gl)
				}
			case *ssa.Type:
				// Nothing is lowered for a named type. go/ssa does not list
				// methods among pkg.Members, so methods of the type are not
				// reached by this loop either.
			}
		}
	}
	return m
}

func lowerAndAppendFunction(m *ipgraph.Module, fn *ssa.Function, seen map[string]bool) {
	name := funcName(fn)
	if seen[name] {
		return
	}
	f, err := lowerFunction(fn)
	if err != nil {
		log.Printf("jlmgo: skipping %s: %v", name, err)
		return
	}
	seen[name] = true
	m.Functions = append(m.Functions, f)
}

// lowerGlobal builds a minimal ipgraph.Global for a package-level variable.
// Its Init CFG does not trace the program's init functions back to find
// this global's actual initializer expression (a real whole-program
// analysis would need to); it conservatively reports the variable's initial
// value as undefined, which is always a sound over-approximation for a
// points-to analysis (an unknown initial value can point anywhere, which is
// exactly what an UndefConstant location carries no points-to edge for -
// the store/load rules already treat a location with no recorded points-to
// target as "not yet known", the same state a genuinely-undef value would
// leave it in).
func lowerGlobal(g *ssa.Global) *ipgraph.Global {
	ptr := g.Type().Underlying().(*gotypes.Pointer)
	elemType, err := convertType(ptr.Elem())
	if err != nil {
		elemType = types.RecordType{} // placeholder element type; the init below never reads it structurally
	}

	entry := &tac.BasicBlock{ID: 0}
	exit := &tac.BasicBlock{ID: 1}
	resultVar := &tac.Variable{Name: fmt.Sprintf("%s.init", globalName(g)), Type: elemType}
	exit.Instructions = []*tac.Instruction{{
		Op:      &opvocab.Simple{Tag_: opvocab.UndefConstant, Results: []types.Type{elemType}},
		Results: []*tac.Variable{resultVar},
	}}
	cfg := &tac.CFG{Blocks: []*tac.BasicBlock{entry, exit}, Entry: entry, Exit: exit}
	cfg.AddEdge(entry, exit)

	return &ipgraph.Global{
		Name:     globalName(g),
		Type:     elemType,
		Exported: token.IsExported(g.Name()),
		Init:     cfg,
		Result:   resultVar,
	}
}

