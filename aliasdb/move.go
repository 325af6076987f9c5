package aliasdb

// Topologically-safe node moves. A move drags along the minimal set of
// nodes needed to preserve data dependencies and mutability dependencies
// (writes to may-aliasing locations), or fails without touching the graph.

import (
	"log"

	"github.com/nickng/alias-hunter/ir"
)

type moveSide int

const (
	moveBefore moveSide = iota
	moveAfter
)

// MoveAfterTopologicallyValid moves n after movePoint if the dependencies
// allow it, moving dependent nodes along. Reports whether the move happened.
func (db *AliasDb) MoveAfterTopologicallyValid(n, movePoint *ir.Node) bool {
	return db.tryMove(n, movePoint, moveAfter, false)
}

// MoveBeforeTopologicallyValid is the before-side counterpart of
// MoveAfterTopologicallyValid. The side matters: with nodes n, d, o in
// order where d consumes an output of n, moving n before o succeeds by
// splitting n from d (ending with n, o, d), while moving n after d must
// fail.
func (db *AliasDb) MoveBeforeTopologicallyValid(n, movePoint *ir.Node) bool {
	return db.tryMove(n, movePoint, moveBefore, false)
}

// CouldMoveAfterTopologically reports whether the move would succeed,
// without mutating the graph.
func (db *AliasDb) CouldMoveAfterTopologically(n, movePoint *ir.Node) bool {
	return db.tryMove(n, movePoint, moveAfter, true)
}

// CouldMoveBeforeTopologically reports whether the move would succeed,
// without mutating the graph.
func (db *AliasDb) CouldMoveBeforeTopologically(n, movePoint *ir.Node) bool {
	return db.tryMove(n, movePoint, moveBefore, true)
}

// workingSet is the growing set of nodes that must move together. The mover
// is always at the front; absorbed nodes keep their relative order.
type workingSet struct {
	db     *AliasDb
	nodes  []*ir.Node
	users  map[*ir.Node]int  // Consumers of working-set outputs, with counts.
	writes map[*ir.Value]int // Values written by the set, with counts.
	reads  map[*ir.Value]int // Values used by the set, with counts.
}

func newWorkingSet(mover *ir.Node, db *AliasDb) *workingSet {
	ws := &workingSet{
		db:     db,
		users:  make(map[*ir.Node]int),
		writes: make(map[*ir.Value]int),
		reads:  make(map[*ir.Value]int),
	}
	ws.add(mover)
	return ws
}

// add absorbs n into the working set.
func (ws *workingSet) add(n *ir.Node) {
	ws.nodes = append(ws.nodes, n)
	for user := range ws.usersSameBlock(n) {
		ws.users[user]++
	}
	for w := range ws.db.GetWrites(n, true) {
		ws.writes[w]++
	}
	for r := range ws.db.GetReads(n, true) {
		ws.reads[r]++
	}
}

// eraseMover splits the original mover off the set, leaving only its
// dependencies behind.
func (ws *workingSet) eraseMover() {
	mover := ws.nodes[0]
	for user := range ws.usersSameBlock(mover) {
		if ws.users[user]--; ws.users[user] == 0 {
			delete(ws.users, user)
		}
	}
	for w := range ws.db.GetWrites(mover, true) {
		if ws.writes[w]--; ws.writes[w] == 0 {
			delete(ws.writes, w)
		}
	}
	for r := range ws.db.GetReads(mover, true) {
		if ws.reads[r]--; ws.reads[r] == 0 {
			delete(ws.reads, r)
		}
	}
	ws.nodes = ws.nodes[1:]
}

// dependsOn reports whether the working set cannot move past n.
func (ws *workingSet) dependsOn(n *ir.Node) bool {
	if len(ws.nodes) == 0 {
		return false
	}
	return ws.hasDataDependency(n) || ws.hasMutabilityDependency(n)
}

// hasDataDependency is directional: expanding toward nodes after the set,
// only consumers of the set block; toward nodes before it, only producers.
func (ws *workingSet) hasDataDependency(n *ir.Node) bool {
	if n.IsAfter(ws.nodes[0]) {
		return ws.producesFor(n)
	}
	return ws.consumesFrom(n)
}

// hasMutabilityDependency conflicts on writes to may-aliasing locations,
// not on value equality: two syntactically different values that may share
// storage still conflict.
func (ws *workingSet) hasMutabilityDependency(n *ir.Node) bool {
	nWrites := ws.db.GetWrites(n, true)
	if ws.db.MayAliasSets(nWrites, keys(ws.reads)) {
		return true
	}
	nReads := ws.db.GetReads(n, true)
	return ws.db.MayAliasSets(keys(ws.writes), nReads)
}

// producesFor reports whether the working set produces a value n consumes.
func (ws *workingSet) producesFor(n *ir.Node) bool {
	return ws.users[n] > 0
}

// consumesFrom reports whether the working set consumes a value n produces.
func (ws *workingSet) consumesFrom(n *ir.Node) bool {
	users := ws.usersSameBlock(n)
	for _, member := range ws.nodes {
		if _, ok := users[member]; ok {
			return true
		}
	}
	return false
}

// usersSameBlock returns the users of n's outputs, resolved to nodes in n's
// own block: a use inside a sub-block counts as a use by the enclosing
// control node.
func (ws *workingSet) usersSameBlock(n *ir.Node) map[*ir.Node]struct{} {
	users := make(map[*ir.Node]struct{})
	for _, out := range n.Outputs() {
		for _, use := range out.Uses() {
			if sameBlock := findSameBlock(use.User, n); sameBlock != nil {
				users[sameBlock] = struct{}{}
			}
		}
	}
	return users
}

// findSameBlock walks target's enclosing blocks upward until reaching a
// node in n's block, or nil if target is outside n's block hierarchy.
func findSameBlock(target, n *ir.Node) *ir.Node {
	cur := target
	for cur.OwningBlock() != n.OwningBlock() {
		cur = cur.OwningBlock().OwningNode()
		if cur == nil {
			return nil
		}
	}
	return cur
}

func keys(m map[*ir.Value]int) ValueSet {
	set := make(ValueSet, len(m))
	for v := range m {
		set[v] = struct{}{}
	}
	return set
}

// tryMove tries to move toMove before/after movePoint while preserving
// dependencies. Reports false iff no such move exists; the graph is left
// unmodified unless the move is possible and dryRun is unset.
//
// Starting from toMove, walk toward movePoint one node at a time; a node
// that the working set depends on is absorbed into it (never skipped). If
// the accumulated set still depends on movePoint itself, the move is
// impossible.
func (db *AliasDb) tryMove(toMove, movePoint *ir.Node, side moveSide, dryRun bool) bool {
	if toMove.OwningBlock() != movePoint.OwningBlock() {
		log.Panicf("aliasdb: tryMove across blocks (%s, %s)", toMove.Kind(), movePoint.Kind())
	}
	if toMove == movePoint {
		return true
	}

	ws := newWorkingSet(toMove, db)

	towardPrev := toMove.IsAfter(movePoint)
	step := func(n *ir.Node) *ir.Node {
		if towardPrev {
			return n.Prev()
		}
		return n.Next()
	}

	cur := step(toMove)
	for cur != movePoint {
		if ws.dependsOn(cur) {
			ws.add(cur)
		}
		cur = step(cur)
	}

	// Moving the mover to the far side of movePoint relative to its
	// dependencies splits it from them: the dependencies land on the
	// correct side of movePoint while the mover lands adjacent to it.
	//
	//  toMove              toMove
	//  <dependencies>  ->  movePoint
	//  movePoint           <dependencies>
	splitMoverAndDeps := (side == moveBefore && toMove.IsBefore(movePoint)) ||
		(side == moveAfter && toMove.IsAfter(movePoint))

	if splitMoverAndDeps {
		ws.eraseMover()
	}

	if ws.dependsOn(movePoint) {
		// Intermediate dependencies pin the set to this side of movePoint.
		return false
	}

	if dryRun {
		return true
	}

	if splitMoverAndDeps {
		db.move(toMove, movePoint, side)
		reversed := moveAfter
		if side == moveAfter {
			reversed = moveBefore
		}
		for _, n := range ws.nodes {
			db.move(n, cur, reversed)
			cur = n
		}
	} else {
		for _, n := range ws.nodes {
			db.move(n, cur, side)
			cur = n
		}
	}
	return true
}

func (db *AliasDb) move(toMove, movePoint *ir.Node, side moveSide) {
	switch side {
	case moveBefore:
		toMove.MoveBefore(movePoint)
	case moveAfter:
		toMove.MoveAfter(movePoint)
	}
}
