// Package restructure converts an irreducible or multi-entry-loop CFG into
// reducible form (§4.1) by node splitting: non-trivial strongly connected
// components with more than one entry are given a single dispatch block, fed
// by a fresh continuation variable that each former entry edge sets before
// jumping in. Tarjan's algorithm supplies the SCCs in the reverse-
// topological order the restructurer processes them in, which is also the
// tie-break order named in §4.1.
package restructure

import (
	"fmt"
	"sort"

	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/tac"
	"github.com/sjalander/jlmgo/types"
)

const maxIterations = 1000

// Run restructures cfg in place until every strongly connected component is
// single-entry, then straightens and purges the result. newBlockID is called
// to mint fresh, unique block IDs for the dispatch and dispatch-feeder
// blocks this pass introduces.
func Run(cfg *tac.CFG, newBlockID func() int) error {
	for i := 0; i < maxIterations; i++ {
		sccs := tarjanSCCs(cfg)
		changed := false
		for _, scc := range sccs {
			if len(scc) < 2 && !selfLoop(scc) {
				continue
			}
			if restructureSCC(cfg, scc, newBlockID) {
				changed = true
			}
		}
		if !changed {
			cfg.Straighten()
			cfg.Purge()
			return cfg.Validate()
		}
	}
	return fmt.Errorf("restructure: did not converge to reducible form after %d iterations", maxIterations)
}

func selfLoop(scc []*tac.BasicBlock) bool {
	if len(scc) != 1 {
		return false
	}
	b := scc[0]
	for _, s := range b.Succs {
		if s == b {
			return true
		}
	}
	return false
}

// restructureSCC rewrites one non-trivial SCC so it has a single entry.
// Returns whether any rewriting happened.
func restructureSCC(cfg *tac.CFG, scc []*tac.BasicBlock, newBlockID func() int) bool {
	member := make(map[*tac.BasicBlock]bool, len(scc))
	for _, b := range scc {
		member[b] = true
	}

	order := preorder(cfg.Entry)

	type incoming struct {
		from *tac.BasicBlock
		to   *tac.BasicBlock
	}
	var reroute []incoming
	entrySet := map[*tac.BasicBlock]bool{}
	externalPreds := map[*tac.BasicBlock]int{}

	for _, b := range scc {
		for _, p := range b.Preds {
			if !member[p] {
				entrySet[b] = true
				externalPreds[b]++
				reroute = append(reroute, incoming{p, b})
			} else if order[p] >= order[b] {
				// A repeat (back) edge: p appears no earlier than b in
				// preorder, so p->b re-enters an already-visited block.
				entrySet[b] = true
				reroute = append(reroute, incoming{p, b})
			}
		}
	}

	if len(entrySet) <= 1 {
		return false
	}

	entries := make([]*tac.BasicBlock, 0, len(entrySet))
	for b := range entrySet {
		entries = append(entries, b)
	}
	sort.Slice(entries, func(i, j int) bool {
		pi, pj := externalPreds[entries[i]], externalPreds[entries[j]]
		if pi != pj {
			return pi > pj // retained natural header: most predecessors first
		}
		return entries[i].ID < entries[j].ID
	})

	index := make(map[*tac.BasicBlock]int, len(entries))
	for i, e := range entries {
		index[e] = i
	}

	cvarType := types.BitType{Width: 32}
	cvar := &tac.Variable{Name: fmt.Sprintf("cont%d", newBlockID()), Type: cvarType}

	dispatch := &tac.BasicBlock{ID: newBlockID()}
	dispatch.Instructions = []*tac.Instruction{{
		Op:       &opvocab.Simple{Tag_: opvocab.Branch, Args: []types.Type{cvarType}, NTargets: len(entries)},
		Operands: []*tac.Variable{cvar},
	}}
	cfg.Blocks = append(cfg.Blocks, dispatch)
	for _, e := range entries {
		cfg.AddEdge(dispatch, e)
	}

	for _, r := range reroute {
		idx := index[r.to]
		feeder := &tac.BasicBlock{ID: newBlockID()}
		feeder.Instructions = []*tac.Instruction{{
			Op:      &opvocab.Simple{Tag_: opvocab.Assignment, Results: []types.Type{cvarType}, Payload: fmt.Sprintf("%d", idx)},
			Results: []*tac.Variable{cvar},
		}}
		cfg.Blocks = append(cfg.Blocks, feeder)

		replaceSuccessor(cfg, r.from, r.to, feeder)
		cfg.AddEdge(feeder, dispatch)
	}

	return true
}

// replaceSuccessor rewrites the single edge from->to into from->with,
// preserving from's successor order (so an existing multi-way branch keeps
// selecting the same arm index, now landing on the feeder block instead).
func replaceSuccessor(cfg *tac.CFG, from, to, with *tac.BasicBlock) {
	for i, s := range from.Succs {
		if s == to {
			from.Succs[i] = with
			with.Preds = append(with.Preds, from)
			break
		}
	}
	for i, p := range to.Preds {
		if p == from {
			to.Preds = append(to.Preds[:i:i], to.Preds[i+1:]...)
			break
		}
	}
}

// preorder returns a DFS preorder index for every block reachable from
// start, used to recognize "repeat" edges (edges into an already-visited
// block) cheaply.
func preorder(start *tac.BasicBlock) map[*tac.BasicBlock]int {
	order := map[*tac.BasicBlock]int{}
	n := 0
	var visit func(*tac.BasicBlock)
	visit = func(b *tac.BasicBlock) {
		if _, ok := order[b]; ok {
			return
		}
		order[b] = n
		n++
		for _, s := range b.Succs {
			visit(s)
		}
	}
	visit(start)
	return order
}

// tarjanSCCs returns the CFG's strongly connected components in reverse
// topological order of the condensation (Tarjan's algorithm produces them
// in this order as a side effect of its stack-popping), matching §4.1's
// processing-order tie-break.
func tarjanSCCs(cfg *tac.CFG) [][]*tac.BasicBlock {
	index := map[*tac.BasicBlock]int{}
	lowlink := map[*tac.BasicBlock]int{}
	onStack := map[*tac.BasicBlock]bool{}
	var stack []*tac.BasicBlock
	var sccs [][]*tac.BasicBlock
	next := 0

	var strongconnect func(v *tac.BasicBlock)
	strongconnect = func(v *tac.BasicBlock) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range v.Succs {
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var scc []*tac.BasicBlock
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, b := range cfg.Blocks {
		if _, seen := index[b]; !seen {
			strongconnect(b)
		}
	}
	return sccs
}
