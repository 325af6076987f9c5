package aliasdb

// The analysis walks the graph once, in order, and determines the reads,
// writes and aliases of every node. The basic strategy is:
//
//  1. Retrieve alias information for every input.
//  2. Use the node's schema alias annotations to propagate alias and write
//     information to the outputs. Unschematized structural nodes have
//     hand-written rules below.

import (
	"errors"

	"github.com/nickng/alias-hunter/ir"
)

var errBadAnnotation = errors.New("internal error: unsupported alias annotation on schema argument")

// specialCased lists the node kinds with a hand-written analysis rule.
// Adding a kind here asserts that analyzeNode handles it before the schema
// path; a listed kind reaching the default arm is an engine bug.
var specialCased = map[ir.Kind]bool{
	ir.If:                  true,
	ir.Loop:                true,
	ir.FusionGroup:         true,
	ir.DifferentiableGraph: true,
	ir.GradOf:              true,
	ir.Fork:                true,
	ir.Wait:                true,
	ir.Constant:            true,
	ir.AutogradZero:        true,
	ir.AutogradAdd:         true,
	ir.FusedConcat:         true,
	ir.BroadcastSizes:      true,
	ir.ChunkSizes:          true,
	ir.CreateObject:        true,
	ir.TupleConstruct:      true,
	ir.ListConstruct:       true,
	ir.DictConstruct:       true,
	ir.TupleUnpack:         true,
	ir.TupleIndex:          true,
	ir.TupleSlice:          true,
	ir.ListUnpack:          true,
	ir.DictIndex:           true,
	ir.GetAttr:             true,
	ir.SetAttr:             true,
	ir.ConstantChunk:       true,
	ir.BroadcastingChunk:   true,
	ir.CallFunction:        true,
	ir.Print:               true,
}

// analyze seeds every mutable graph input as a wildcard (inputs are unknown
// external aliases on entry), then walks all blocks.
func (db *AliasDb) analyze(g *ir.Graph) error {
	for _, in := range g.Inputs() {
		db.setWildcard(in)
	}
	return db.analyzeBlock(g.Block())
}

func (db *AliasDb) analyzeBlock(b *ir.Block) error {
	for _, n := range b.Nodes() {
		if err := db.analyzeNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (db *AliasDb) analyzeNode(n *ir.Node) error {
	db.Logger.Printf("analyze %s", n.Kind())
	switch n.Kind() {
	case ir.If:
		return db.analyzeIf(n)
	case ir.Loop:
		return db.analyzeLoop(n)
	case ir.FusionGroup, ir.DifferentiableGraph:
		return db.analyzeSubgraph(n)
	case ir.GradOf:
		return db.analyzeGradOf(n)
	case ir.Fork:
		db.analyzeFork(n)
		return nil
	case ir.Wait:
		db.analyzeWait(n)
		return nil
	case ir.Constant, ir.AutogradZero, ir.AutogradAdd, ir.FusedConcat,
		ir.BroadcastSizes, ir.ChunkSizes, ir.CreateObject:
		db.analyzeCreator(n)
		return nil
	case ir.TupleConstruct:
		db.analyzeTupleConstruct(n)
		return nil
	case ir.ListConstruct, ir.DictConstruct:
		db.analyzeContainerConstruct(n)
		return nil
	case ir.TupleUnpack, ir.TupleIndex, ir.TupleSlice, ir.ListUnpack,
		ir.DictIndex, ir.GetAttr:
		db.analyzeExtractor(n)
		return nil
	case ir.ConstantChunk:
		db.analyzeChunk(n)
		return nil
	case ir.BroadcastingChunk:
		db.analyzeBroadcastingChunk(n)
		return nil
	case ir.SetAttr:
		return db.analyzeSetAttr(n)
	case ir.Print:
		// Does nothing to tracked state.
		return nil
	case ir.CallFunction:
		return reportf(n, "alias summaries are required to support this feature")
	}

	if specialCased[n.Kind()] {
		panic(ErrSpecialCaseMissed)
	}

	// Custom operators carry no schema guarantees: treat every input as
	// written and every output as a wildcard.
	if !n.Kind().IsBuiltin() {
		db.analyzeCustomOp(n)
		return nil
	}

	schema, ok := n.Schema()
	if !ok {
		return reportf(n, "no alias information registered for operator %s", n.Kind())
	}
	if schema.VarArg || schema.VarRet {
		for _, out := range n.Outputs() {
			if ir.ShouldTrack(out.Type()) {
				return reportf(n, "alias information not found for node: schema of %s is variadic but produces a mutable output; annotate the schema", n.Kind())
			}
		}
	}
	return db.analyzeSchema(n, schema)
}

// analyzeSchema binds the schema's formal alias annotations to the actual
// values at this call site, then uses the binding to alias the outputs.
func (db *AliasDb) analyzeSchema(n *ir.Node, schema *ir.Schema) error {
	formalToActual := make(map[string]*ir.Value)
	for i, arg := range schema.Args {
		if i >= len(n.Inputs()) {
			break
		}
		formal := arg.Alias
		actual := n.Inputs()[i]
		if formal == nil {
			continue
		}
		// Can occur with a schema more general than the value, e.g. a
		// primitive bound to a generic argument.
		if !ir.ShouldTrack(actual.Type()) {
			continue
		}
		// A value cannot start out annotated as a wildcard.
		if formal.WildcardBefore() {
			panic(errBadAnnotation)
		}
		formalAlias := formal.BeforeSet()
		if _, bound := formalToActual[formalAlias]; bound {
			continue
		}
		formalToActual[formalAlias] = actual
		if formal.Write {
			db.registerWrite(actual, n)
		}
		if formal.WildcardAfter() {
			db.setWildcard(actual)
		} else if !formal.SameBeforeAndAfter() {
			// Nothing else is understood after the "->".
			panic(errBadAnnotation)
		}
	}

	for i, ret := range schema.Returns {
		if i >= len(n.Outputs()) {
			break
		}
		actual := n.Outputs()[i]
		formal := ret.Alias
		if formal == nil {
			// A fresh value.
			db.giveFreshAlias(actual)
			continue
		}
		if !ir.ShouldTrack(actual.Type()) {
			continue
		}
		if formal.WildcardBefore() || formal.WildcardAfter() {
			db.setWildcard(actual)
			continue
		}
		for _, formalAlias := range formal.BeforeSets {
			bound, ok := formalToActual[formalAlias]
			if !ok {
				// A set not bound by any input. Alone on the output it is
				// equivalent to fresh, e.g. foo(Tensor(a) self) -> Tensor(b).
				// In the form a|fresh it adds nothing: the output must be
				// assumed to alias `a` anyway.
				if len(formal.BeforeSets) == 1 {
					db.giveFreshAlias(actual)
				}
				continue
			}
			db.makePointerTo(actual, bound)
		}
		if formal.Write {
			db.registerWrite(actual, n)
		}
	}
	return nil
}

// analyzeIf unions both branches: each node output points to the
// corresponding output of the true block and of the false block.
func (db *AliasDb) analyzeIf(n *ir.Node) error {
	trueBlock, falseBlock := n.Blocks()[0], n.Blocks()[1]
	if err := db.analyzeBlock(trueBlock); err != nil {
		return err
	}
	if err := db.analyzeBlock(falseBlock); err != nil {
		return err
	}
	for i, out := range n.Outputs() {
		db.makePointerTo(out, trueBlock.Outputs()[i])
		db.makePointerTo(out, falseBlock.Outputs()[i])
	}
	return nil
}

// analyzeLoop maps the loop-carried inputs into the body, analyses the body
// once (no fixpoint; the single pass is the documented conservative
// approximation), then maps the body outputs back out.
func (db *AliasDb) analyzeLoop(n *ir.Node) error {
	body := n.Blocks()[0]
	loopCarried := n.Inputs()[2:]       // skip trip count, condition
	bodyInputs := body.Inputs()[1:]     // skip iteration counter
	bodyOutputs := body.Outputs()[1:]   // skip continue condition
	if len(loopCarried) != len(bodyInputs) || len(bodyOutputs) != len(n.Outputs()) {
		panic(ErrLoopArity)
	}
	db.mapAliases(bodyInputs, loopCarried)
	if err := db.analyzeBlock(body); err != nil {
		return err
	}
	db.mapAliases(n.Outputs(), bodyOutputs)
	return nil
}

func (db *AliasDb) analyzeGradOf(n *ir.Node) error {
	body := n.Blocks()[0]
	if err := db.analyzeBlock(body); err != nil {
		return err
	}
	db.mapAliases(n.Outputs(), body.Outputs())
	return nil
}

// analyzeSubgraph maps outer inputs into the inner block and inner outputs
// back to the outer outputs. The inner block may carry additional outputs
// (e.g. captured by autodifferentiation); only the first N are mapped.
func (db *AliasDb) analyzeSubgraph(n *ir.Node) error {
	sub := n.Blocks()[0]
	db.mapAliases(sub.Inputs(), n.Inputs())
	if err := db.analyzeBlock(sub); err != nil {
		return err
	}
	if len(sub.Outputs()) < len(n.Outputs()) {
		panic(ErrSubgraphArity)
	}
	for i, out := range n.Outputs() {
		db.makePointerTo(out, sub.Outputs()[i])
	}
	return nil
}

// analyzeCreator gives every output a fresh location.
func (db *AliasDb) analyzeCreator(n *ir.Node) {
	for _, out := range n.Outputs() {
		db.giveFreshAlias(out)
	}
}

// analyzeExtractor wildcards every output. Values extracted from a
// composite may alias anything of their kind.
func (db *AliasDb) analyzeExtractor(n *ir.Node) {
	for _, out := range n.Outputs() {
		db.setWildcard(out)
	}
}

// analyzeChunk: all returned tensors may alias the input tensor.
func (db *AliasDb) analyzeChunk(n *ir.Node) {
	for _, out := range n.Outputs() {
		db.makePointerTo(out, n.Input())
	}
}

// analyzeBroadcastingChunk: input i produces the chunk outputs
// [i*nchunks, (i+1)*nchunks).
func (db *AliasDb) analyzeBroadcastingChunk(n *ir.Node) {
	nchunks := int(n.IntAttr("chunks"))
	outputs := n.Outputs()
	for i, in := range n.Inputs() {
		for _, out := range outputs[i*nchunks : (i+1)*nchunks] {
			db.makePointerTo(out, in)
		}
	}
}

// analyzeFork treats the forked computation as opaque: its effect on the
// inputs is not locally visible, so they become wildcards. The future the
// fork emits is a fresh value.
func (db *AliasDb) analyzeFork(n *ir.Node) {
	for _, in := range n.Inputs() {
		db.setWildcard(in)
	}
	for _, out := range n.Outputs() {
		db.giveFreshAlias(out)
	}
}

// analyzeWait joins a forked computation, which may have written to
// anything reachable from any wildcard. There is no reliable way to recover
// the fork inputs here, so a write is registered against one concrete
// wildcard-pointing value per bucket; every wildcard bucket is anchored by
// at least one such value.
func (db *AliasDb) analyzeWait(n *ir.Node) {
	for _, out := range n.Outputs() {
		db.setWildcard(out)
	}
	for _, wc := range db.wildcardIndex {
		var anchor *ir.Value
		for _, from := range wc.PointedFrom() {
			if from.Value != nil {
				anchor = from.Value
				break
			}
		}
		if anchor == nil {
			panic(ErrWildcardUnanchored)
		}
		db.registerWrite(anchor, n)
	}
}

// analyzeTupleConstruct tracks the constructed tuple's contents
// element-wise through containment edges.
func (db *AliasDb) analyzeTupleConstruct(n *ir.Node) {
	db.getOrCreateElement(n.Output())
	for _, in := range n.Inputs() {
		if ir.ShouldTrack(in.Type()) {
			db.addToContainedElements(in, n.Output())
		}
	}
}

// analyzeContainerConstruct: the container is a fresh value, but the inputs
// have gone inside it and become wildcards. Lists and dicts do not get
// per-element tracking, trading precision for simplicity.
func (db *AliasDb) analyzeContainerConstruct(n *ir.Node) {
	for _, in := range n.Inputs() {
		db.setWildcard(in)
	}
	for _, out := range n.Outputs() {
		db.giveFreshAlias(out)
	}
}

// analyzeSetAttr: an attribute write mutates the receiver, and the stored
// value escapes into it.
func (db *AliasDb) analyzeSetAttr(n *ir.Node) error {
	self := n.Inputs()[0]
	if self.Type().Kind != ir.ClassKind {
		panic(ErrNotClassType)
	}
	db.registerWrite(self, n)
	db.setWildcard(n.Inputs()[1])
	return nil
}

// analyzeCustomOp assumes the worst case: every input is written, every
// output may alias anything of its kind.
func (db *AliasDb) analyzeCustomOp(n *ir.Node) {
	for _, in := range n.Inputs() {
		db.registerWrite(in, n)
	}
	for _, out := range n.Outputs() {
		db.setWildcard(out)
	}
}
