// Package tac implements the three-address-code model: variables, TAC
// instructions, basic blocks and the control-flow graph that owns them,
// together with the straightening and purging passes that tidy a CFG up
// after restructuring (§4.1).
package tac

import (
	"fmt"

	"github.com/sjalander/jlmgo/opvocab"
	"github.com/sjalander/jlmgo/types"
)

// Variable is a named or anonymous SSA-destructed value with an immutable
// type. Equality is structural: same name, same type.
type Variable struct {
	Name string
	Type types.Type
}

// Equal reports structural equality.
func (v *Variable) Equal(other *Variable) bool {
	if v == other {
		return true
	}
	if v == nil || other == nil {
		return false
	}
	return v.Name == other.Name && v.Type.Equal(other.Type)
}

func (v *Variable) String() string {
	if v == nil {
		return "<nil var>"
	}
	return fmt.Sprintf("%s:%s", v.Name, v.Type)
}

// Instruction is a single TAC operation: an operator applied to ordered
// operand variables, producing ordered result variables. For a Branch
// operator, the predicate (Operands[0]) selects an index directly into the
// owning BasicBlock's Succs slice - there is no separate target-index table.
type Instruction struct {
	Op       opvocab.Operator
	Operands []*Variable
	Results  []*Variable
}

func (i *Instruction) String() string {
	s := ""
	for n, r := range i.Results {
		if n > 0 {
			s += ", "
		}
		s += r.String()
	}
	if len(i.Results) > 0 {
		s += " = "
	}
	s += i.Op.DebugString() + "("
	for n, o := range i.Operands {
		if n > 0 {
			s += ", "
		}
		s += o.String()
	}
	return s + ")"
}

// IsBranch reports whether this instruction is the distinguished branch
// operator (must, if present, be the last instruction of its block).
func (i *Instruction) IsBranch() bool { return i.Op.Tag() == opvocab.Branch }

// IsCall reports whether this instruction is a call (direct or indirect).
func (i *Instruction) IsCall() bool { return i.Op.Tag() == opvocab.Call }

// Reads returns the set of variables this instruction reads (its operands).
func (i *Instruction) Reads() []*Variable { return i.Operands }

// Writes returns the set of variables this instruction writes (its results).
func (i *Instruction) Writes() []*Variable { return i.Results }

// BasicBlock is an ordered list of TAC instructions with an ordered list of
// successor edges. Only the last instruction, if it is a Branch, may make
// len(Succs) > 1.
type BasicBlock struct {
	ID           int
	Instructions []*Instruction
	Succs        []*BasicBlock
	Preds        []*BasicBlock
}

func (b *BasicBlock) String() string { return fmt.Sprintf("bb%d", b.ID) }

// Terminator returns the block's last instruction, or nil if empty.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// CFG is a directed graph of basic blocks with a distinguished entry and
// exit block.
type CFG struct {
	Blocks []*BasicBlock
	Entry  *BasicBlock
	Exit   *BasicBlock
}

// AddEdge links from -> to, maintaining both Succs and Preds.
func (c *CFG) AddEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// RemoveEdge removes a single from->to edge, if present (only the first
// matching occurrence when parallel edges exist; Purge can create them, e.g.
// when both arms of a diamond are empty).
func (c *CFG) RemoveEdge(from, to *BasicBlock) {
	from.Succs = removeFirst(from.Succs, to)
	to.Preds = removeFirst(to.Preds, from)
}

func removeFirst(list []*BasicBlock, target *BasicBlock) []*BasicBlock {
	for i, b := range list {
		if b == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// Validate checks the CFG invariants named in spec §3: entry has no
// predecessors, exit has no successors, every block is reachable from entry,
// and exit is reachable from every block.
func (c *CFG) Validate() error {
	if c.Entry == nil || c.Exit == nil {
		return fmt.Errorf("tac: malformed CFG: missing entry or exit")
	}
	if len(c.Entry.Preds) != 0 {
		return fmt.Errorf("tac: malformed CFG: entry %s has predecessors", c.Entry)
	}
	if len(c.Exit.Succs) != 0 {
		return fmt.Errorf("tac: malformed CFG: exit %s has successors", c.Exit)
	}

	reachableFromEntry := c.reachableFrom(c.Entry, func(b *BasicBlock) []*BasicBlock { return b.Succs })
	for _, b := range c.Blocks {
		if !reachableFromEntry[b] {
			return fmt.Errorf("tac: malformed CFG: %s unreachable from entry", b)
		}
	}

	reachesExit := c.reachableFrom(c.Exit, func(b *BasicBlock) []*BasicBlock { return b.Preds })
	for _, b := range c.Blocks {
		if !reachesExit[b] {
			return fmt.Errorf("tac: malformed CFG: %s cannot reach exit", b)
		}
	}
	return nil
}

func (c *CFG) reachableFrom(start *BasicBlock, adj func(*BasicBlock) []*BasicBlock) map[*BasicBlock]bool {
	seen := map[*BasicBlock]bool{start: true}
	stack := []*BasicBlock{start}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range adj(b) {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// Straighten fuses any block whose sole predecessor has it as sole
// successor, repeatedly, until no more fusions apply. This is run after
// restructuring, per §4.1.
func (c *CFG) Straighten() {
	changed := true
	for changed {
		changed = false
		for _, b := range c.Blocks {
			if b == c.Entry || len(b.Preds) != 1 {
				continue
			}
			pred := b.Preds[0]
			if pred == b || len(pred.Succs) != 1 {
				continue
			}
			if t := pred.Terminator(); t != nil && t.IsBranch() {
				continue
			}
			c.fuse(pred, b)
			changed = true
			break
		}
	}
}

// fuse absorbs b's instructions and successors into pred, removing b.
func (c *CFG) fuse(pred, b *BasicBlock) {
	pred.Instructions = append(pred.Instructions, b.Instructions...)
	pred.Succs = nil
	for _, s := range b.Succs {
		s.Preds = removeFirst(s.Preds, b)
		c.AddEdge(pred, s)
	}
	if c.Exit == b {
		c.Exit = pred
	}
	c.removeBlock(b)
}

func (c *CFG) removeBlock(b *BasicBlock) {
	for _, p := range b.Preds {
		p.Succs = removeFirst(p.Succs, b)
	}
	for _, s := range b.Succs {
		s.Preds = removeFirst(s.Preds, b)
	}
	for i, bb := range c.Blocks {
		if bb == b {
			c.Blocks = append(c.Blocks[:i:i], c.Blocks[i+1:]...)
			break
		}
	}
}

// Purge drops empty (no instructions, exactly one predecessor and one
// successor) and unreachable blocks, per §4.1.
func (c *CFG) Purge() {
	reachable := c.reachableFrom(c.Entry, func(b *BasicBlock) []*BasicBlock { return b.Succs })
	for _, b := range append([]*BasicBlock(nil), c.Blocks...) {
		if b != c.Entry && b != c.Exit && !reachable[b] {
			c.removeBlock(b)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range c.Blocks {
			if b == c.Entry || b == c.Exit {
				continue
			}
			if len(b.Instructions) != 0 || len(b.Preds) != 1 || len(b.Succs) != 1 {
				continue
			}
			pred, succ := b.Preds[0], b.Succs[0]
			c.RemoveEdge(pred, b)
			c.RemoveEdge(b, succ)
			c.AddEdge(pred, succ)
			c.removeBlock(b)
			changed = true
			break
		}
	}
}
