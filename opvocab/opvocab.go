// Package opvocab implements the closed operator vocabulary consumed by both
// the TAC and region-graph intermediate representations. Operators are
// dispatched by a registry keyed on a tag string rather than by runtime type
// reflection, so adding an operator is a single-file change (the pattern
// nilaway's hook package uses for its own closed, growable vocabulary).
package opvocab

import "github.com/sjalander/jlmgo/types"

// Tag names one member of the closed operator vocabulary. The distinguished
// tags below are recognized by every downstream pass; any other tag is an
// opaque "primitive" operator belonging to the external operator library
// (bitwise/float/comparison ops) that this module treats as a vocabulary it
// consumes but does not define.
type Tag string

// Distinguished operator tags. Passes that need to special-case an operator
// (the region-graph builder, the Steensgaard analyzer, the re-encoder) switch
// on these.
const (
	Assignment      Tag = "assignment"
	Select          Tag = "select"
	Branch          Tag = "branch"
	Phi             Tag = "phi"
	Alloca          Tag = "alloca"
	Load            Tag = "load"
	Store           Tag = "store"
	GetElementPtr   Tag = "getelementptr"
	Bitcast         Tag = "bitcast"
	Bits2Ptr        Tag = "bits2ptr"
	PtrConstantNull Tag = "ptr_constant_null"
	UndefConstant   Tag = "undef_constant"
	Call            Tag = "call"
	MemStateMux     Tag = "memstatemux"
)

// Operator is a member of the operator vocabulary: a value that knows the
// number and types of its arguments and results, can compare itself
// structurally to another operator, describe itself for debugging, and copy
// itself so the same logical operation can be placed into multiple graphs
// (the region graph and, transiently, a restructured CFG both need their own
// owned copy of a branch predicate's operator, for instance).
type Operator interface {
	// Tag identifies which member of the vocabulary this is.
	Tag() Tag
	// ArgTypes returns the expected operand types, in order.
	ArgTypes() []types.Type
	// ResultTypes returns the produced result types, in order.
	ResultTypes() []types.Type
	// DebugString is a short human-readable label, e.g. for digraph dumps.
	DebugString() string
	// Equal reports structural equality with another operator.
	Equal(Operator) bool
	// Copy returns an independent copy suitable for use in another graph.
	Copy() Operator
}

// Simple is the common representation for every distinguished operator tag
// plus any opaque primitive: a tag, fixed operand/result types, and an
// optional discriminator payload (e.g. the gep index path, or the external
// vocabulary's own opcode string); a Branch's target count is kept in
// NTargets instead.
type Simple struct {
	Tag_     Tag
	Args     []types.Type
	Results  []types.Type
	Payload  string // e.g. primitive opcode name, or gep index path rendering
	NTargets int    // used by Branch: number of outgoing edges selectable
}

// Tag implements Operator.
func (s *Simple) Tag() Tag { return s.Tag_ }

// ArgTypes implements Operator.
func (s *Simple) ArgTypes() []types.Type { return s.Args }

// ResultTypes implements Operator.
func (s *Simple) ResultTypes() []types.Type { return s.Results }

// DebugString implements Operator.
func (s *Simple) DebugString() string {
	if s.Payload != "" {
		return string(s.Tag_) + ":" + s.Payload
	}
	return string(s.Tag_)
}

// Equal implements Operator.
func (s *Simple) Equal(other Operator) bool {
	o, ok := other.(*Simple)
	if !ok || o.Tag_ != s.Tag_ || o.Payload != s.Payload || o.NTargets != s.NTargets {
		return false
	}
	if len(o.Args) != len(s.Args) || len(o.Results) != len(s.Results) {
		return false
	}
	for i := range s.Args {
		if !s.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	for i := range s.Results {
		if !s.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// Copy implements Operator.
func (s *Simple) Copy() Operator {
	cp := *s
	cp.Args = append([]types.Type(nil), s.Args...)
	cp.Results = append([]types.Type(nil), s.Results...)
	return &cp
}

// DirectCallee returns the callee function name carried in a Call
// operator's Payload, or "" if op is not a direct call (either because it is
// not a Call at all, or because it is an indirect call through a value).
func DirectCallee(op Operator) string {
	if op.Tag() != Call {
		return ""
	}
	if s, ok := op.(*Simple); ok {
		return s.Payload
	}
	return ""
}

// IsMemoryAllocating reports whether an operator of this tag allocates a
// fresh abstract memory object (alloca is the TAC-level case; lambda and
// delta are handled structurally in the region graph and are not Simple
// operators, but are also memory-allocating per §4.6).
func (t Tag) IsMemoryAllocating() bool {
	return t == Alloca
}

// Registry maps tags to factories, so the set of recognized operators can
// grow without touching dispatch call sites that only need a Tag.
type Registry struct {
	factories map[Tag]func() Operator
}

// NewRegistry returns a Registry seeded with the distinguished tags.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Tag]func() Operator)}
	for _, tag := range []Tag{
		Assignment, Select, Branch, Phi, Alloca, Load, Store, GetElementPtr,
		Bitcast, Bits2Ptr, PtrConstantNull, UndefConstant, Call, MemStateMux,
	} {
		tag := tag
		r.factories[tag] = func() Operator { return &Simple{Tag_: tag} }
	}
	return r
}

// Register adds or overrides the factory for tag - used to register
// primitive operators from the external vocabulary (bitwise, float,
// comparison) that this module does not itself define.
func (r *Registry) Register(tag Tag, factory func() Operator) {
	r.factories[tag] = factory
}

// New constructs a zero-value operator for tag, or false if tag is unknown to
// this registry.
func (r *Registry) New(tag Tag) (Operator, bool) {
	f, ok := r.factories[tag]
	if !ok {
		return nil, false
	}
	return f(), true
}
