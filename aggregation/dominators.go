package aggregation

import "github.com/sjalander/jlmgo/tac"

// domInfo holds forward and backward (post-) dominance information for a
// CFG, computed once and consulted by the aggregator to find loop headers
// and branch-reconvergence points.
type domInfo struct {
	order   map[*tac.BasicBlock]int // reverse-postorder index, forward CFG
	idom    map[*tac.BasicBlock]*tac.BasicBlock
	porder  map[*tac.BasicBlock]int // reverse-postorder index, reverse CFG
	ipdom   map[*tac.BasicBlock]*tac.BasicBlock
}

// computeDomInfo implements the iterative Cooper/Harvey/Kennedy dominator
// algorithm in both directions (forward from Entry for dominance, backward
// from Exit for post-dominance). It assumes a reducible CFG, which the
// restructurer guarantees.
func computeDomInfo(cfg *tac.CFG) *domInfo {
	fwdOrder, fwdPO := reversePostorder(cfg.Entry, func(b *tac.BasicBlock) []*tac.BasicBlock { return b.Succs })
	idom := computeIdom(fwdPO, fwdOrder, func(b *tac.BasicBlock) []*tac.BasicBlock { return b.Preds }, cfg.Entry)

	bwdOrder, bwdPO := reversePostorder(cfg.Exit, func(b *tac.BasicBlock) []*tac.BasicBlock { return b.Preds })
	ipdom := computeIdom(bwdPO, bwdOrder, func(b *tac.BasicBlock) []*tac.BasicBlock { return b.Succs }, cfg.Exit)

	return &domInfo{order: fwdOrder, idom: idom, porder: bwdOrder, ipdom: ipdom}
}

// reversePostorder returns both the RPO index map and the RPO-ordered list
// reachable from start, following adj.
func reversePostorder(start *tac.BasicBlock, adj func(*tac.BasicBlock) []*tac.BasicBlock) (map[*tac.BasicBlock]int, []*tac.BasicBlock) {
	visited := map[*tac.BasicBlock]bool{}
	var postorder []*tac.BasicBlock
	var visit func(*tac.BasicBlock)
	visit = func(b *tac.BasicBlock) {
		visited[b] = true
		for _, n := range adj(b) {
			if !visited[n] {
				visit(n)
			}
		}
		postorder = append(postorder, b)
	}
	visit(start)

	order := make(map[*tac.BasicBlock]int, len(postorder))
	rpo := make([]*tac.BasicBlock, len(postorder))
	for i, b := range postorder {
		idx := len(postorder) - 1 - i
		rpo[idx] = b
		order[b] = idx
	}
	return order, rpo
}

// computeIdom is the standard fixed-point intersection algorithm: pred here
// means "the nodes that flow into b" for the direction being computed (CFG
// predecessors for forward dominance, CFG successors for post-dominance).
func computeIdom(rpo []*tac.BasicBlock, order map[*tac.BasicBlock]int, pred func(*tac.BasicBlock) []*tac.BasicBlock, start *tac.BasicBlock) map[*tac.BasicBlock]*tac.BasicBlock {
	idom := map[*tac.BasicBlock]*tac.BasicBlock{start: start}

	intersect := func(a, b *tac.BasicBlock) *tac.BasicBlock {
		for a != b {
			for order[a] > order[b] {
				a = idom[a]
			}
			for order[b] > order[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == start {
				continue
			}
			var newIdom *tac.BasicBlock
			for _, p := range pred(b) {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// dominates reports whether a dominates b in the forward sense.
func (d *domInfo) dominates(a, b *tac.BasicBlock) bool {
	if _, ok := d.order[b]; !ok {
		return false
	}
	for b != nil {
		if b == a {
			return true
		}
		if d.idom[b] == b {
			return b == a
		}
		b = d.idom[b]
	}
	return false
}

// postdom returns the immediate post-dominator of b (the reconvergence
// point for a branch at b), or nil if b is (post-)unreachable.
func (d *domInfo) postdom(b *tac.BasicBlock) *tac.BasicBlock {
	return d.ipdom[b]
}
