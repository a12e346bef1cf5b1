// Package pointsto implements the disjoint-set location store (§4.5), the
// Steensgaard-style unification analyzer (§4.6), and the resulting
// points-to graph (§3, §4.6).
package pointsto

import (
	"fmt"

	"github.com/sjalander/jlmgo/region"
)

// locKind tags which of the three location variants (§3) an element is.
type locKind int

const (
	locReg locKind = iota
	locMem
	locAny
)

// element is one disjoint-set entry. Only a root element's unknown flag and
// pointsTo pointer are meaningful; non-root elements keep their own identity
// (kind/output/node) so the store can still answer "what region-graph value
// does this location correspond to" after merges.
type element struct {
	kind   locKind
	output region.Output     // meaningful when kind == locReg
	node   region.NodeHandle // meaningful when kind == locMem

	parent int
	rank   int

	unknown  bool
	pointsTo int // index of another element, or -1 for "no points-to pointer yet"
}

// Store is the union-find location store described in §4.5: insert_reg,
// insert_mem, find, merge, plus the singleton any location.
type Store struct {
	elems    []*element
	byOutput map[region.Output]int
	anyIdx   int
}

// NewStore creates a location store with its singleton `any` location
// already present.
func NewStore() *Store {
	s := &Store{byOutput: map[region.Output]int{}}
	s.anyIdx = s.alloc(locAny, region.Output{}, -1)
	// any stands for unknown memory; anything ever unioned with it should
	// read back as unknown without callers having to ask separately.
	s.elems[s.anyIdx].unknown = true
	return s
}

func (s *Store) alloc(kind locKind, output region.Output, node region.NodeHandle) int {
	i := len(s.elems)
	s.elems = append(s.elems, &element{
		kind: kind, output: output, node: node,
		parent: i, rank: 0, pointsTo: -1,
	})
	return i
}

// Any returns the singleton `any` location's index.
func (s *Store) Any() int { return s.anyIdx }

// InsertReg inserts a fresh register location for output. It is an error
// (per §4.5's "duplicate" failure) to insert the same output twice.
func (s *Store) InsertReg(output region.Output, unknown bool) (int, error) {
	if _, ok := s.byOutput[output]; ok {
		return -1, fmt.Errorf("pointsto: duplicate location for output %s", output)
	}
	i := s.alloc(locReg, output, -1)
	s.elems[i].unknown = unknown
	s.byOutput[output] = i
	return i, nil
}

// InsertMem inserts a fresh memory location standing for an allocating
// region-graph node (alloca, malloc-like call, lambda, or delta).
func (s *Store) InsertMem(node region.NodeHandle) int {
	return s.alloc(locMem, region.Output{}, node)
}

// Lookup returns the location previously inserted for output, if any,
// without creating one.
func (s *Store) Lookup(output region.Output) (int, bool) {
	i, ok := s.byOutput[output]
	return i, ok
}

// Locate is "find_or_insert" from §4.5/§9: returns the representative for
// output, inserting a fresh non-unknown register location first if none
// exists yet. After find_or_insert, find is infallible for that output.
func (s *Store) Locate(output region.Output) int {
	if i, ok := s.byOutput[output]; ok {
		return s.Find(i)
	}
	i, err := s.InsertReg(output, false)
	if err != nil {
		// Cannot happen: Lookup just reported absence.
		panic(err)
	}
	return i
}

// Find returns the representative of i's class, with path compression.
func (s *Store) Find(i int) int {
	for s.elems[i].parent != i {
		s.elems[i].parent = s.elems[s.elems[i].parent].parent
		i = s.elems[i].parent
	}
	return i
}

// Unknown reports the unknown flag of i's class.
func (s *Store) Unknown(i int) bool { return s.elems[s.Find(i)].unknown }

// PointsTo returns the points-to target of i's class, or (-1, false) if none.
func (s *Store) PointsTo(i int) (int, bool) {
	root := s.Find(i)
	if s.elems[root].pointsTo < 0 {
		return -1, false
	}
	return s.elems[root].pointsTo, true
}

// SetPointsTo sets the points-to target of i's class outright, without
// unifying anything already stored there. Callers that need the unify-if-
// already-set behavior from §4.6's inference rules should check PointsTo
// first and call Join instead when a target already exists.
func (s *Store) SetPointsTo(i, target int) {
	s.elems[s.Find(i)].pointsTo = target
}

// union performs the union-by-rank structural merge of two *already-root*
// elements, OR-ing their unknown flags, and returns the new root. The
// pointsTo field of the result is left as whichever side's was kept by the
// rank comparison; callers that need the two sides' points-to targets
// unified call Join, which overwrites it afterward.
func (s *Store) union(a, b int) int {
	if a == b {
		return a
	}
	ea, eb := s.elems[a], s.elems[b]
	if ea.rank < eb.rank {
		a, b = b, a
		ea, eb = eb, ea
	}
	eb.parent = a
	if ea.rank == eb.rank {
		ea.rank++
	}
	ea.unknown = ea.unknown || eb.unknown
	return a
}

// Merge unions the classes of l1 and l2 (structural union only - no
// points-to recursion) and returns the new representative, matching
// locationset::merge in §4.5. Most callers want Join instead, which also
// recursively unifies points-to targets per §4.6.
func (s *Store) Merge(l1, l2 int) int {
	return s.union(s.Find(l1), s.Find(l2))
}

// Join is the Steensgaard `join` operation (§4.6): merge the two classes,
// then recursively join their points-to targets so that after joining,
// pt(join(x,y)) == join(pt(x), pt(y)). A join with either argument negative
// returns the other argument unchanged (a caller convenience also present in
// the original algorithm).
func (s *Store) Join(a, b int) int {
	if a < 0 {
		return b
	}
	if b < 0 {
		return a
	}
	if s.Find(a) == s.Find(b) {
		return s.Find(a)
	}

	rootA, rootB := s.Find(a), s.Find(b)
	ptA, ptB := s.elems[rootA].pointsTo, s.elems[rootB].pointsTo

	merged := s.union(rootA, rootB)
	if target := s.Join(ptA, ptB); target >= 0 {
		s.elems[merged].pointsTo = target
	} else {
		s.elems[merged].pointsTo = -1
	}
	return merged
}

// Len returns the number of elements ever inserted (for iteration / stats).
func (s *Store) Len() int { return len(s.elems) }

// Classes groups every element index by representative, in a deterministic
// order (representatives ordered by first-seen element index), for
// deterministic PTG construction and digraph dumps.
func (s *Store) Classes() [][]int {
	byRoot := map[int][]int{}
	var order []int
	for i := range s.elems {
		r := s.Find(i)
		if _, ok := byRoot[r]; !ok {
			order = append(order, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, len(order))
	for idx, r := range order {
		out[idx] = byRoot[r]
	}
	return out
}

// kindOf, outputOf and nodeOf expose an element's identity, used by PTG
// construction and digraph dumps.
func (s *Store) kindOf(i int) locKind       { return s.elems[i].kind }
func (s *Store) outputOf(i int) region.Output { return s.elems[i].output }
func (s *Store) nodeOf(i int) region.NodeHandle { return s.elems[i].node }
