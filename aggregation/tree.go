// Package aggregation builds the aggregation tree from a reducible CFG
// (§4.2), normalizes it, and computes per-node demand sets (§4.3). The tree
// is the structured intermediate consumed by the region-graph builder.
package aggregation

import (
	"fmt"

	"github.com/sjalander/jlmgo/tac"
)

// Node is a tagged aggregation-tree node. The six variants named in §3 are
// EntryNode, ExitNode, BlockNode, LinearNode, BranchNode and LoopNode below.
type Node interface {
	// Children returns this node's direct children, in order (nil for
	// leaves).
	Children() []Node
	DebugString() string
}

// EntryNode is the tree's unique root-side leaf, carrying the function's
// argument variables.
type EntryNode struct{ Args []*tac.Variable }

// Children implements Node.
func (*EntryNode) Children() []Node { return nil }

// DebugString implements Node.
func (n *EntryNode) DebugString() string { return fmt.Sprintf("entry(%d args)", len(n.Args)) }

// ExitNode is the tree's unique terminal leaf, carrying the function's
// result variables.
type ExitNode struct{ Results []*tac.Variable }

// Children implements Node.
func (*ExitNode) Children() []Node { return nil }

// DebugString implements Node.
func (n *ExitNode) DebugString() string { return fmt.Sprintf("exit(%d results)", len(n.Results)) }

// BlockNode wraps a single basic block's straight-line TAC list.
type BlockNode struct{ Block *tac.BasicBlock }

// Children implements Node.
func (*BlockNode) Children() []Node { return nil }

// DebugString implements Node.
func (n *BlockNode) DebugString() string { return "block:" + n.Block.String() }

// LinearNode composes children in straight-line sequence: control reaches
// child i+1 only after child i completes.
type LinearNode struct{ Kids []Node }

// Children implements Node.
func (n *LinearNode) Children() []Node { return n.Kids }

// DebugString implements Node.
func (n *LinearNode) DebugString() string { return fmt.Sprintf("linear(%d)", len(n.Kids)) }

// BranchNode composes children as mutually exclusive predicate arms of a
// conditional that reconverges afterward.
type BranchNode struct{ Kids []Node }

// Children implements Node.
func (n *BranchNode) Children() []Node { return n.Kids }

// DebugString implements Node.
func (n *BranchNode) DebugString() string { return fmt.Sprintf("branch(%d arms)", len(n.Kids)) }

// LoopNode wraps a natural loop's single body.
type LoopNode struct{ Body Node }

// Children implements Node.
func (n *LoopNode) Children() []Node { return []Node{n.Body} }

// DebugString implements Node.
func (n *LoopNode) DebugString() string { return "loop" }

// Normalize collapses nested LinearNodes into a single n-ary LinearNode and
// drops LinearNode wrappers with a single child, per §3's tree-normalization
// rule. It is applied bottom-up and mutates the tree in place (the one
// functional-purity exception named in §5).
func Normalize(n Node) Node {
	switch t := n.(type) {
	case *LinearNode:
		var flat []Node
		for _, k := range t.Kids {
			k = Normalize(k)
			if inner, ok := k.(*LinearNode); ok {
				flat = append(flat, inner.Kids...)
			} else {
				flat = append(flat, k)
			}
		}
		if len(flat) == 1 {
			return flat[0]
		}
		return &LinearNode{Kids: flat}
	case *BranchNode:
		for i, k := range t.Kids {
			t.Kids[i] = Normalize(k)
		}
		return t
	case *LoopNode:
		t.Body = Normalize(t.Body)
		return t
	default:
		return n
	}
}
