package aggregation

import (
	"fmt"

	"github.com/sjalander/jlmgo/tac"
)

// naturalLoop records a loop header's body-block membership and the single
// exit edge the tail-controlled theta construct expects (§4.4's theta
// lowering requires exactly one control-predicate-bearing exit).
type naturalLoop struct {
	header *tac.BasicBlock
	body   map[*tac.BasicBlock]bool
	latch  *tac.BasicBlock // the block whose branch decides continue/exit
	target *tac.BasicBlock // the block control reaches after the loop
}

// Build constructs the aggregation tree for a reducible CFG (§4.2). args and
// results name the function's argument and result variables, which become
// the EntryNode and ExitNode leaves. The CFG is assumed reducible with
// single-entry, single-back-edge, single-exit natural loops - the shape the
// restructurer (package restructure) guarantees.
func Build(cfg *tac.CFG, args, results []*tac.Variable) (Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}

	dom := computeDomInfo(cfg)
	loops, err := findNaturalLoops(cfg, dom)
	if err != nil {
		return nil, err
	}

	b := &builder{cfg: cfg, dom: dom, loops: loops}
	body := b.build(cfg.Entry, nil)

	tree := &LinearNode{Kids: []Node{
		&EntryNode{Args: args},
		body,
		&ExitNode{Results: results},
	}}
	return Normalize(tree), nil
}

type builder struct {
	cfg   *tac.CFG
	dom   *domInfo
	loops map[*tac.BasicBlock]*naturalLoop
}

// build constructs the aggregation for the region starting at start and
// stopping before limit (limit == nil means "run to the CFG exit").
func (b *builder) build(start, limit *tac.BasicBlock) Node {
	if start == limit || start == nil {
		return &LinearNode{}
	}
	if start == b.cfg.Exit {
		if len(start.Instructions) > 0 {
			return &BlockNode{Block: start}
		}
		return &LinearNode{}
	}

	if loop, ok := b.loops[start]; ok {
		prefix := b.build(start, loop.latch)
		latchNode := &BlockNode{Block: loop.latch}
		bodyNode := Normalize(&LinearNode{Kids: []Node{prefix, latchNode}})
		rest := b.build(loop.target, limit)
		return Normalize(&LinearNode{Kids: []Node{&LoopNode{Body: bodyNode}, rest}})
	}

	block := &BlockNode{Block: start}
	if len(start.Succs) <= 1 {
		var next *tac.BasicBlock
		if len(start.Succs) == 1 {
			next = start.Succs[0]
		}
		rest := b.build(next, limit)
		return Normalize(&LinearNode{Kids: []Node{block, rest}})
	}

	join := b.dom.postdom(start)
	arms := make([]Node, 0, len(start.Succs))
	for _, succ := range start.Succs {
		arms = append(arms, b.build(succ, join))
	}
	rest := b.build(join, limit)
	return Normalize(&LinearNode{Kids: []Node{block, &BranchNode{Kids: arms}, rest}})
}

// findNaturalLoops identifies, for each loop header (the target of a back
// edge), its body-block membership and single exit edge.
func findNaturalLoops(cfg *tac.CFG, dom *domInfo) (map[*tac.BasicBlock]*naturalLoop, error) {
	loops := map[*tac.BasicBlock]*naturalLoop{}

	for _, u := range cfg.Blocks {
		for _, v := range u.Succs {
			if !dom.dominates(v, u) {
				continue // not a back edge
			}
			body := map[*tac.BasicBlock]bool{v: true}
			stack := []*tac.BasicBlock{u}
			body[u] = true
			for len(stack) > 0 {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, p := range n.Preds {
					if !body[p] {
						body[p] = true
						stack = append(stack, p)
					}
				}
			}

			var exitEdges [][2]*tac.BasicBlock
			for bb := range body {
				for _, s := range bb.Succs {
					if !body[s] {
						exitEdges = append(exitEdges, [2]*tac.BasicBlock{bb, s})
					}
				}
			}
			if len(exitEdges) != 1 {
				return nil, fmt.Errorf(
					"aggregation: malformed input: loop at %s has %d exit edges, theta lowering requires exactly one",
					v, len(exitEdges))
			}

			if existing, ok := loops[v]; ok {
				// Multiple back edges into the same header: restructurer
				// should have collapsed these; treat as malformed input.
				return nil, fmt.Errorf("aggregation: malformed input: header %s has more than one back edge (latch %s and %s)",
					v, existing.latch, exitEdges[0][0])
			}
			loops[v] = &naturalLoop{header: v, body: body, latch: exitEdges[0][0], target: exitEdges[0][1]}
		}
	}
	return loops, nil
}
