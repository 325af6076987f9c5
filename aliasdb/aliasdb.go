// Package aliasdb computes a conservative may-alias approximation over a
// dataflow graph: which values may share underlying storage, which nodes
// write to shared storage, and which node reorderings are safe given both.
//
// Every value with a mutable type (Tensor, List, Tuple, Dict, Class) is
// bound to an element of a memory graph. Two values may alias if their
// elements can reach a common memory location. A special anonymous element
// per type-kind, the wildcard, stands for "anything of this kind we cannot
// track precisely"; it keeps under-specified operators sound. Absence of a
// may-alias link is a guarantee of non-aliasing, presence is not a guarantee
// of aliasing.
//
// The database is built in a single forward walk over the graph and is
// read-only afterwards. Reordering nodes through the move API never changes
// aliasing facts; callers that mutate the graph's values must discard the
// database and rebuild it.
package aliasdb // import "github.com/nickng/alias-hunter/aliasdb"

import (
	"io"
	"log"

	"github.com/nickng/alias-hunter/ir"
)

// ValueSet is a set of graph values.
type ValueSet map[*ir.Value]struct{}

// AliasDb holds the alias and write information of one graph snapshot.
type AliasDb struct {
	graph  *ir.Graph
	dag    *MemoryDAG
	Logger *log.Logger

	elementMap    map[*ir.Value]*Element
	wildcardIndex map[ir.TypeKind]*Element
	writeIndex    map[*ir.Node]ValueSet

	// The write-location cache is rebuilt when a query observes writeGen
	// ahead of cacheGen; registerWrite only bumps writeGen.
	writeGen   uint64
	cacheGen   uint64
	writeCache map[*Element]struct{}
}

// New builds the alias database for a graph by running the analysis once.
// The log output follows the analysis node by node.
func New(graph *ir.Graph, logw io.Writer) (*AliasDb, error) {
	db := &AliasDb{
		graph:         graph,
		dag:           NewMemoryDAG(),
		Logger:        log.New(logw, "aliasdb: ", 0),
		elementMap:    make(map[*ir.Value]*Element),
		wildcardIndex: make(map[ir.TypeKind]*Element),
		writeIndex:    make(map[*ir.Node]ValueSet),
		writeGen:      1,
	}
	if err := db.analyze(graph); err != nil {
		return nil, err
	}
	return db, nil
}

// MayAlias reports whether a and b may share storage.
func (db *AliasDb) MayAlias(a, b *ir.Value) bool {
	if !ir.ShouldTrack(a.Type()) || !ir.ShouldTrack(b.Type()) {
		return false
	}
	return db.dag.MayAlias(db.element(a), db.element(b))
}

// MayAliasSets reports whether any value in as may alias any value in bs.
func (db *AliasDb) MayAliasSets(as, bs ValueSet) bool {
	locs := make(map[*Element]struct{})
	for a := range as {
		if !ir.ShouldTrack(a.Type()) {
			continue
		}
		for loc := range db.dag.MemoryLocations(db.element(a)) {
			locs[loc] = struct{}{}
		}
	}
	if len(locs) == 0 {
		return false
	}
	for b := range bs {
		if !ir.ShouldTrack(b.Type()) {
			continue
		}
		for loc := range db.dag.MemoryLocations(db.element(b)) {
			if _, ok := locs[loc]; ok {
				return true
			}
		}
	}
	return false
}

// MayContainAlias reports whether the values in as and bs may alias,
// treating containers as able to leak aliases of anything inside them.
func (db *AliasDb) MayContainAlias(as, bs []*ir.Value) bool {
	aElems := make([]*Element, 0, len(as))
	for _, v := range as {
		if db.cannotCheckAliasContainment(v) {
			return true
		}
		if ir.ShouldTrack(v.Type()) {
			aElems = append(aElems, db.element(v))
		}
	}
	if len(aElems) == 0 {
		return false
	}
	bElems := make([]*Element, 0, len(bs))
	for _, v := range bs {
		if db.cannotCheckAliasContainment(v) {
			return true
		}
		if ir.ShouldTrack(v.Type()) {
			bElems = append(bElems, db.element(v))
		}
	}
	return db.dag.MayContainAlias(aElems, bElems)
}

// cannotCheckAliasContainment reports whether v is a container whose
// contents the analysis does not track element-wise. Only tuples built by
// prim::TupleConstruct (recursively) have tracked contents.
func (db *AliasDb) cannotCheckAliasContainment(v *ir.Value) bool {
	if !ir.IsContainer(v.Type()) {
		return false
	}
	if v.Node() == nil || v.Node().Kind() != ir.TupleConstruct {
		return true
	}
	for _, in := range v.Node().Inputs() {
		if db.cannotCheckAliasContainment(in) {
			return true
		}
	}
	return false
}

// HasWrites reports whether n (or any node in its sub-blocks) writes to a
// tracked location.
func (db *AliasDb) HasWrites(n *ir.Node) bool {
	if len(db.writeIndex[n]) > 0 {
		return true
	}
	for _, b := range n.Blocks() {
		for _, inner := range b.Nodes() {
			if db.HasWrites(inner) {
				return true
			}
		}
	}
	return false
}

// HasWriters reports whether some node writes to a location v may alias.
func (db *AliasDb) HasWriters(v *ir.Value) bool {
	e, ok := db.elementMap[v]
	if !ok {
		return false
	}
	if db.cacheGen < db.writeGen {
		db.rebuildWriteCache()
	}
	for loc := range db.dag.MemoryLocations(e) {
		if _, ok := db.writeCache[loc]; ok {
			return true
		}
	}
	return false
}

// HasWritersNode reports whether any input or output of n has writers.
func (db *AliasDb) HasWritersNode(n *ir.Node) bool {
	for _, in := range n.Inputs() {
		if db.HasWriters(in) {
			return true
		}
	}
	for _, out := range n.Outputs() {
		if db.HasWriters(out) {
			return true
		}
	}
	return false
}

// GetWrites returns every value written by n, descending into sub-blocks if
// recurseBlocks is set.
func (db *AliasDb) GetWrites(n *ir.Node, recurseBlocks bool) ValueSet {
	writes := make(ValueSet)
	db.getWrites(n, writes, recurseBlocks)
	return writes
}

func (db *AliasDb) getWrites(n *ir.Node, ret ValueSet, recurseBlocks bool) {
	for v := range db.writeIndex[n] {
		ret[v] = struct{}{}
	}
	if recurseBlocks {
		for _, b := range n.Blocks() {
			for _, inner := range b.Nodes() {
				db.getWrites(inner, ret, recurseBlocks)
			}
		}
	}
}

// GetReads returns every value n uses or defines, descending into
// sub-blocks if recurseBlocks is set.
func (db *AliasDb) GetReads(n *ir.Node, recurseBlocks bool) ValueSet {
	reads := make(ValueSet)
	db.getReads(n, reads, recurseBlocks)
	return reads
}

func (db *AliasDb) getReads(n *ir.Node, ret ValueSet, recurseBlocks bool) {
	for _, in := range n.Inputs() {
		ret[in] = struct{}{}
	}
	for _, out := range n.Outputs() {
		ret[out] = struct{}{}
	}
	if recurseBlocks {
		for _, b := range n.Blocks() {
			for _, inner := range b.Nodes() {
				db.getReads(inner, ret, recurseBlocks)
			}
		}
	}
}

// WritesToAlias reports whether n writes to an alias of one of vs.
func (db *AliasDb) WritesToAlias(n *ir.Node, vs ValueSet, recurseBlocks bool) bool {
	return db.MayAliasSets(db.GetWrites(n, recurseBlocks), vs)
}

// WritesToWildcard reports whether n writes to a value in a wildcard set.
func (db *AliasDb) WritesToWildcard(n *ir.Node) bool {
	for v := range db.writeIndex[n] {
		if db.MayAliasWildcard(v) {
			return true
		}
	}
	return false
}

// MayAliasWildcard reports whether v may alias the wildcard set of its
// type-kind. False if nothing of that kind has been wildcarded yet.
func (db *AliasDb) MayAliasWildcard(v *ir.Value) bool {
	if !ir.ShouldTrack(v.Type()) {
		return false
	}
	if e := db.getWildcard(v.Type()); e != nil {
		return db.dag.MayAlias(db.element(v), e)
	}
	return false
}

// registerWrite records that n writes to the memory backing v. Values of
// untracked types never alias and are dropped before any element lookup.
func (db *AliasDb) registerWrite(v *ir.Value, n *ir.Node) {
	if !ir.ShouldTrack(v.Type()) {
		return
	}
	if _, ok := db.elementMap[v]; !ok {
		panic(ErrNoElement)
	}
	if _, ok := db.writeIndex[n]; !ok {
		db.writeIndex[n] = make(ValueSet)
	}
	db.writeIndex[n][v] = struct{}{}
	db.writeGen++
}

func (db *AliasDb) rebuildWriteCache() {
	db.writeCache = make(map[*Element]struct{})
	for _, writes := range db.writeIndex {
		for v := range writes {
			for loc := range db.dag.MemoryLocations(db.element(v)) {
				db.writeCache[loc] = struct{}{}
			}
		}
	}
	db.cacheGen = db.writeGen
}

// element returns the element bound to v, which must exist.
func (db *AliasDb) element(v *ir.Value) *Element {
	e, ok := db.elementMap[v]
	if !ok {
		panic(ErrNoElement)
	}
	return e
}

// giveFreshAlias binds v to a brand-new element. Inside a loop body a value
// may have been bound already; the first binding wins.
func (db *AliasDb) giveFreshAlias(v *ir.Value) {
	if !ir.ShouldTrack(v.Type()) {
		return
	}
	if _, ok := db.elementMap[v]; ok {
		return
	}
	db.elementMap[v] = db.dag.MakeFreshValue(v)
}

func (db *AliasDb) getOrCreateElement(v *ir.Value) *Element {
	if _, ok := db.elementMap[v]; !ok {
		db.giveFreshAlias(v)
	}
	return db.element(v)
}

// makePointerTo records that from may alias to. Values of untracked types
// are dropped; Optional-typed from pointing at a None to is a no-op.
func (db *AliasDb) makePointerTo(from, to *ir.Value) {
	if !ir.ShouldTrack(from.Type()) {
		return
	}
	if from == to {
		return
	}
	if from.Type().Kind == ir.OptionalKind && to.Type().Kind == ir.NoneKind {
		return
	}
	db.dag.MakePointerTo(db.getOrCreateElement(from), db.getOrCreateElement(to))
}

// addToContainedElements records that container may hold elem.
func (db *AliasDb) addToContainedElements(elem, container *ir.Value) {
	if !ir.ShouldTrack(elem.Type()) {
		return
	}
	db.dag.AddToContainedElements(db.getOrCreateElement(elem), db.getOrCreateElement(container))
}

// mapAliases makes each value in from point to its partner in to.
func (db *AliasDb) mapAliases(from, to []*ir.Value) {
	if len(from) != len(to) {
		panic(ErrLoopArity)
	}
	for i := range from {
		db.makePointerTo(from[i], to[i])
	}
}

// getOrCreateWildcard returns the anonymous element standing for "any value
// of this type-kind", creating it on first use.
func (db *AliasDb) getOrCreateWildcard(t *ir.Type) *Element {
	kind, ok := ir.MutableKind(t)
	if !ok {
		panic(ErrNoElement)
	}
	if _, ok := db.wildcardIndex[kind]; !ok {
		db.wildcardIndex[kind] = db.dag.MakeFreshValue(nil)
	}
	return db.wildcardIndex[kind]
}

// getWildcard returns the wildcard element for t's type-kind, or nil if
// nothing of that kind has been wildcarded.
func (db *AliasDb) getWildcard(t *ir.Type) *Element {
	kind, ok := ir.MutableKind(t)
	if !ok {
		return nil
	}
	return db.wildcardIndex[kind]
}

// setWildcard makes v's element point into the wildcard set of its kind.
func (db *AliasDb) setWildcard(v *ir.Value) {
	if !ir.ShouldTrack(v.Type()) {
		return
	}
	db.dag.MakePointerTo(db.getOrCreateElement(v), db.getOrCreateWildcard(v.Type()))
}
