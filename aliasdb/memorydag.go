package aliasdb

import (
	"github.com/nickng/alias-hunter/ir"
)

// Element is one abstract memory location. It is either bound to exactly one
// graph value, or anonymous (a wildcard standing in for a whole type-kind
// bucket). Elements are never merged; aliasing is expressed purely by edges.
type Element struct {
	// Value is the graph value this element is bound to, nil for wildcards.
	Value *ir.Value

	pointsTo    map[*Element]struct{}
	pointedFrom map[*Element]struct{}

	// Containment is tracked separately from pointer aliasing: a container
	// may leak aliases of its contents without being an alias of them.
	containedElements map[*Element]struct{}
	containedBy       map[*Element]struct{}
}

func (e *Element) name() string {
	if e.Value == nil {
		return "WILDCARD"
	}
	return e.Value.Name()
}

// PointedFrom returns the elements with a pointer edge into e.
func (e *Element) PointedFrom() []*Element {
	from := make([]*Element, 0, len(e.pointedFrom))
	for el := range e.pointedFrom {
		from = append(from, el)
	}
	return from
}

// MemoryDAG owns the elements of one analysis and answers reachability
// queries over them. Edges are only ever added, never removed, so query
// results grow monotonically during a pass.
type MemoryDAG struct {
	elements []*Element
}

// NewMemoryDAG creates an empty memory graph.
func NewMemoryDAG() *MemoryDAG {
	return &MemoryDAG{}
}

// MakeFreshValue allocates a new element with no edges. v may be nil for
// anonymous (wildcard) elements. A fresh element is a location that does not
// alias anything else yet.
func (d *MemoryDAG) MakeFreshValue(v *ir.Value) *Element {
	e := &Element{
		Value:             v,
		pointsTo:          make(map[*Element]struct{}),
		pointedFrom:       make(map[*Element]struct{}),
		containedElements: make(map[*Element]struct{}),
		containedBy:       make(map[*Element]struct{}),
	}
	d.elements = append(d.elements, e)
	return e
}

// MakePointerTo records that from may alias to. Self edges are dropped.
func (d *MemoryDAG) MakePointerTo(from, to *Element) {
	if from == to {
		return
	}
	from.pointsTo[to] = struct{}{}
	to.pointedFrom[from] = struct{}{}
}

// AddToContainedElements records that container may transitively hold elem.
func (d *MemoryDAG) AddToContainedElements(elem, container *Element) {
	container.containedElements[elem] = struct{}{}
	elem.containedBy[container] = struct{}{}
}

// MemoryLocations returns the memory locations e may point to: the BFS in
// the pointsTo direction bottoms out at elements with no outgoing pointers,
// which stand for the locations themselves. Two values may alias iff their
// location sets intersect. A merge point (an element pointing at several
// locations) shares a location with each of its targets without making the
// targets share one with each other.
func (d *MemoryDAG) MemoryLocations(e *Element) map[*Element]struct{} {
	locs := make(map[*Element]struct{})
	seen := map[*Element]struct{}{e: {}}
	worklist := []*Element{e}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if len(cur.pointsTo) == 0 {
			locs[cur] = struct{}{}
			continue
		}
		for next := range cur.pointsTo {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				worklist = append(worklist, next)
			}
		}
	}
	return locs
}

// MayAlias reports whether a and b may share a memory location.
func (d *MemoryDAG) MayAlias(a, b *Element) bool {
	if a == b {
		return true
	}
	locs := d.MemoryLocations(a)
	for loc := range d.MemoryLocations(b) {
		if _, ok := locs[loc]; ok {
			return true
		}
	}
	return false
}

// MayContainAlias reports whether anything as may hold, transitively
// through containment, may alias anything bs may hold.
func (d *MemoryDAG) MayContainAlias(as, bs []*Element) bool {
	locsA := make(map[*Element]struct{})
	for _, a := range as {
		d.containedLocations(a, locsA, make(map[*Element]struct{}))
	}
	locsB := make(map[*Element]struct{})
	for _, b := range bs {
		d.containedLocations(b, locsB, make(map[*Element]struct{}))
	}
	for loc := range locsB {
		if _, ok := locsA[loc]; ok {
			return true
		}
	}
	return false
}

// containedLocations accumulates the memory locations of e and of
// everything e transitively contains into locs.
func (d *MemoryDAG) containedLocations(e *Element, locs, seen map[*Element]struct{}) {
	if _, ok := seen[e]; ok {
		return
	}
	seen[e] = struct{}{}
	for loc := range d.MemoryLocations(e) {
		locs[loc] = struct{}{}
	}
	for c := range e.containedElements {
		d.containedLocations(c, locs, seen)
	}
}
