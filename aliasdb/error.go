package aliasdb

// Predefined errors. Sentinel errors mark internal invariant violations
// (engine bugs); ErrorReport carries user-facing compiler diagnostics.

import (
	"errors"
	"fmt"

	"github.com/nickng/alias-hunter/ir"
)

var (
	ErrNoElement          = errors.New("internal error: no element for value expected in element map")
	ErrSpecialCaseMissed  = errors.New("internal error: special-cased node kind fell through unhandled")
	ErrWildcardUnanchored = errors.New("internal error: wildcard bucket has no pointed-from value")
	ErrNotClassType       = errors.New("internal error: attribute write on non-class receiver")
	ErrLoopArity          = errors.New("internal error: loop carried value count mismatch")
	ErrSubgraphArity      = errors.New("internal error: subgraph has fewer outputs than its node")
)

// ErrorReport is a compiler diagnostic pointing at the offending node's
// source location. It always indicates bad input (e.g. a missing schema
// annotation), not an engine bug.
type ErrorReport struct {
	Node *ir.Node
	Msg  string
}

func (e *ErrorReport) Error() string {
	return fmt.Sprintf("%s: %s\nnode: %s", e.Node.Pos(), e.Msg, e.Node)
}

func reportf(n *ir.Node, format string, args ...interface{}) *ErrorReport {
	return &ErrorReport{Node: n, Msg: fmt.Sprintf(format, args...)}
}
