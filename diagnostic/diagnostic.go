// Package diagnostic defines the three error kinds surfaced at the
// pipeline's top-level entry points (§7) and the debug/test persistence
// format (§6) used to dump a digraph-format rendering of the PTG or location
// store.
package diagnostic

import "fmt"

// InvariantViolation reports that some internal consistency condition the
// pipeline itself is supposed to maintain did not hold - a bug in this
// module, never in its input. Entry points wrap these through
// internal/passutil so a caller never sees a bare panic.
type InvariantViolation struct {
	Where string
	Msg   string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Where, e.Msg)
}

// UnsupportedConstruct reports input that is well-formed but describes a
// construct this port deliberately does not implement (an Open Question
// resolved as "not supported" rather than "implemented").
type UnsupportedConstruct struct {
	Construct string
	Where     string
}

func (e *UnsupportedConstruct) Error() string {
	return fmt.Sprintf("unsupported construct %q in %s", e.Construct, e.Where)
}

// MalformedInput reports that the ipgraph.Module (or a referenced CFG/
// region graph) handed to an entry point violates its own input contract -
// a dangling reference, a missing result binding, a type mismatch - as
// opposed to an internal bug.
type MalformedInput struct {
	Detail string
}

func (e *MalformedInput) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Detail)
}
