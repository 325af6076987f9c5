package aliasdb

import (
	"bytes"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/nickng/alias-hunter/ir"
)

// newTensor adds a constant node producing a fresh tensor, the usual way to
// obtain a non-wildcard tracked value in these tests.
func newTensor(b *ir.Block, name string) *ir.Value {
	return b.AddNode(ir.Constant).AddOutput(name, ir.TensorType)
}

func mustBuild(t *testing.T, g *ir.Graph) *AliasDb {
	t.Helper()
	db, err := New(g, ioutil.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return db
}

func TestGraphInputsAreWildcards(t *testing.T) {
	g := ir.NewGraph()
	a := g.AddInput("a", ir.TensorType)
	b := g.AddInput("b", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAliasWildcard(a) || !db.MayAliasWildcard(b) {
		t.Errorf("graph inputs must enter the wildcard set")
	}
	if !db.MayAlias(a, b) {
		t.Errorf("two wildcarded tensors may alias")
	}
}

func TestWildcardBucketsByKind(t *testing.T) {
	g := ir.NewGraph()
	a := g.AddInput("a", ir.TensorType)
	l := g.AddInput("l", ir.ListOf(ir.TensorType))
	db := mustBuild(t, g)

	if db.MayAlias(a, l) {
		t.Errorf("tensor and list wildcards live in separate buckets")
	}
}

func TestPureOpProducesFreshOutput(t *testing.T) {
	g := ir.NewGraph()
	a := g.AddInput("a", ir.TensorType)
	n := g.Block().AddNode(ir.Kind("aten::relu"))
	n.AddInput(a)
	y := n.AddOutput("y", ir.TensorType)
	db := mustBuild(t, g)

	if db.MayAlias(a, y) {
		t.Errorf("relu output is fresh, must not alias its input")
	}
	if db.MayAliasWildcard(y) {
		t.Errorf("fresh output must not alias the wildcard set")
	}
	if db.HasWriters(y) {
		t.Errorf("nothing writes to a fresh output")
	}
}

func TestInPlaceOpWritesAndAliases(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	y := newTensor(g.Block(), "y")
	n := g.Block().AddNode(ir.Kind("aten::add_"))
	n.AddInput(x).AddInput(y)
	out := n.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(out, x) {
		t.Errorf("in-place output must alias self")
	}
	if db.MayAlias(out, y) {
		t.Errorf("in-place output must not alias the other operand")
	}
	if !db.HasWrites(n) {
		t.Errorf("in-place node must have writes")
	}
	if !db.HasWriters(x) || !db.HasWriters(out) {
		t.Errorf("self and output must have writers")
	}
	if db.HasWriters(y) {
		t.Errorf("the other operand has no writers")
	}
	writes := db.GetWrites(n, false)
	if _, ok := writes[x]; !ok {
		t.Errorf("write index must record self")
	}
	if !db.WritesToAlias(n, ValueSet{x: {}}, false) {
		t.Errorf("WritesToAlias must see the write to x")
	}
}

func TestWriteVisibleThroughView(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	k := newTensor(g.Block(), "k")
	vn := g.Block().AddNode(ir.Kind("aten::t"))
	vn.AddInput(x)
	v := vn.AddOutput("v", ir.TensorType)
	wn := g.Block().AddNode(ir.Kind("aten::add_"))
	wn.AddInput(x).AddInput(k)
	wn.AddOutput("w", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(v, x) {
		t.Errorf("view must alias its base")
	}
	if !db.HasWriters(v) {
		t.Errorf("a write to the base is a write to the view")
	}
}

func TestChunkOutputsAliasInput(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	n := g.Block().AddNode(ir.ConstantChunk)
	n.AddInput(x)
	c0 := n.AddOutput("c0", ir.TensorType)
	c1 := n.AddOutput("c1", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(c0, x) || !db.MayAlias(c1, x) {
		t.Errorf("chunk outputs must alias the chunked tensor")
	}
}

func TestBroadcastingChunkGrouping(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	y := newTensor(g.Block(), "y")
	n := g.Block().AddNode(ir.BroadcastingChunk)
	n.AddInput(x).AddInput(y)
	n.SetIntAttr("chunks", 2)
	outs := make([]*ir.Value, 4)
	for i := range outs {
		outs[i] = n.AddOutput("", ir.TensorType)
	}
	db := mustBuild(t, g)

	if !db.MayAlias(outs[0], x) || !db.MayAlias(outs[1], x) {
		t.Errorf("first chunk group must alias the first input")
	}
	if !db.MayAlias(outs[2], y) || !db.MayAlias(outs[3], y) {
		t.Errorf("second chunk group must alias the second input")
	}
	if db.MayAlias(outs[0], y) || db.MayAlias(outs[2], x) {
		t.Errorf("chunk groups must not cross inputs")
	}
}

func TestIfOutputAliasesBothBranches(t *testing.T) {
	g := ir.NewGraph()
	p := g.Block().AddNode(ir.Constant).AddOutput("p", ir.BoolType)
	x := newTensor(g.Block(), "x")
	y := newTensor(g.Block(), "y")
	n := g.Block().AddNode(ir.If)
	n.AddInput(p)
	n.AddBlock().RegisterOutput(x)
	n.AddBlock().RegisterOutput(y)
	out := n.AddOutput("out", ir.TensorType)
	k := newTensor(g.Block(), "k")
	wn := g.Block().AddNode(ir.Kind("aten::add_"))
	wn.AddInput(x).AddInput(k)
	wn.AddOutput("w", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(out, x) || !db.MayAlias(out, y) {
		t.Errorf("if output must alias both branch outputs")
	}
	if db.MayAlias(x, y) {
		t.Errorf("branch outputs must not alias each other")
	}
	if !db.HasWriters(out) {
		t.Errorf("a write to one branch value is a write to the merged output")
	}
	if db.HasWriters(y) {
		t.Errorf("the untouched branch value has no writers")
	}
}

func TestLoopCarriedAliasing(t *testing.T) {
	g := ir.NewGraph()
	trip := g.Block().AddNode(ir.Constant).AddOutput("trip", ir.IntType)
	cond := g.Block().AddNode(ir.Constant).AddOutput("cond", ir.BoolType)
	x := newTensor(g.Block(), "x")
	loop := g.Block().AddNode(ir.Loop)
	loop.AddInput(trip).AddInput(cond).AddInput(x)
	body := loop.AddBlock()
	body.AddInput("i", ir.IntType)
	xb := body.AddInput("xb", ir.TensorType)
	k := newTensor(body, "k")
	cont := body.AddNode(ir.Constant).AddOutput("cont", ir.BoolType)
	wn := body.AddNode(ir.Kind("aten::add_"))
	wn.AddInput(xb).AddInput(k)
	xw := wn.AddOutput("xw", ir.TensorType)
	body.RegisterOutput(cont)
	body.RegisterOutput(xw)
	out := loop.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(out, x) {
		t.Errorf("loop output must alias the loop-carried input")
	}
	if !db.HasWriters(x) {
		t.Errorf("the in-place write in the body targets the carried value")
	}
	if !db.HasWrites(loop) {
		t.Errorf("HasWrites must descend into the loop body")
	}
	if len(db.GetWrites(loop, false)) != 0 {
		t.Errorf("the loop node itself writes nothing")
	}
	writes := db.GetWrites(loop, true)
	if _, ok := writes[xb]; !ok {
		t.Errorf("recursive GetWrites must surface body writes")
	}
}

func TestSubgraphMapsThroughInnerBlock(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	fg := g.Block().AddNode(ir.FusionGroup)
	fg.AddInput(x)
	sub := fg.AddBlock()
	xs := sub.AddInput("xs", ir.TensorType)
	vn := sub.AddNode(ir.Kind("aten::t"))
	vn.AddInput(xs)
	v := vn.AddOutput("v", ir.TensorType)
	sub.RegisterOutput(v)
	out := fg.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(out, x) {
		t.Errorf("view inside the subgraph must alias through to the outer input")
	}
	if db.HasWriters(out) {
		t.Errorf("nothing writes in this subgraph")
	}
}

func TestGradOfMapsBodyOutputs(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	gr := g.Block().AddNode(ir.GradOf)
	body := gr.AddBlock()
	vn := body.AddNode(ir.Kind("aten::t"))
	vn.AddInput(x)
	v := vn.AddOutput("v", ir.TensorType)
	body.RegisterOutput(v)
	out := gr.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAlias(out, x) {
		t.Errorf("GradOf output must alias through the body")
	}
}

func TestForkWaitWritesEverywhere(t *testing.T) {
	g := ir.NewGraph()
	a := g.AddInput("a", ir.TensorType)
	fork := g.Block().AddNode(ir.Fork)
	fork.AddInput(a)
	f := fork.AddOutput("f", ir.FutureOf(ir.TensorType))
	wait := g.Block().AddNode(ir.Wait)
	wait.AddInput(f)
	w := wait.AddOutput("w", ir.TensorType)
	db := mustBuild(t, g)

	if !db.MayAliasWildcard(w) {
		t.Errorf("the awaited value may alias anything of its kind")
	}
	if !db.HasWriters(a) {
		t.Errorf("the forked computation may write the forked value")
	}
	if !db.HasWrites(wait) || !db.WritesToWildcard(wait) {
		t.Errorf("wait must register a write into the wildcard set")
	}
	if db.MayAliasWildcard(f) {
		t.Errorf("futures are untracked and never wildcards")
	}
}

func TestTupleContainment(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	y := newTensor(g.Block(), "y")
	n := g.Block().AddNode(ir.TupleConstruct)
	n.AddInput(x).AddInput(y)
	tup := n.AddOutput("tup", ir.TupleOf(ir.TensorType, ir.TensorType))
	db := mustBuild(t, g)

	if !db.MayContainAlias([]*ir.Value{tup}, []*ir.Value{x}) {
		t.Errorf("tuple must contain-alias its elements")
	}
	if db.MayContainAlias([]*ir.Value{x}, []*ir.Value{y}) {
		t.Errorf("distinct fresh tensors must not contain-alias")
	}
	if db.MayAlias(tup, x) {
		t.Errorf("containment must not imply pointer aliasing")
	}
}

func TestListContentsAreOpaque(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	y := newTensor(g.Block(), "y")
	n := g.Block().AddNode(ir.ListConstruct)
	n.AddInput(x)
	l := n.AddOutput("l", ir.ListOf(ir.TensorType))
	db := mustBuild(t, g)

	if !db.MayAliasWildcard(x) {
		t.Errorf("values placed in a list escape into the wildcard set")
	}
	if db.MayAliasWildcard(y) {
		t.Errorf("values never placed in a container stay tracked")
	}
	// Lists have no per-element tracking, so containment checks must be
	// answered conservatively.
	if !db.MayContainAlias([]*ir.Value{l}, []*ir.Value{y}) {
		t.Errorf("list containment is unknowable and must be conservative")
	}
}

func TestExtractorsProduceWildcards(t *testing.T) {
	g := ir.NewGraph()
	obj := g.Block().AddNode(ir.CreateObject).AddOutput("obj", ir.ClassOf("Linear"))
	n := g.Block().AddNode(ir.GetAttr)
	n.AddInput(obj)
	attr := n.AddOutput("attr", ir.TensorType)
	x := newTensor(g.Block(), "x")
	db := mustBuild(t, g)

	if !db.MayAliasWildcard(attr) {
		t.Errorf("extracted attribute may alias anything of its kind")
	}
	if db.MayAliasWildcard(x) {
		t.Errorf("a fresh tensor does not join the wildcard set")
	}
}

func TestSetAttrMutatesReceiver(t *testing.T) {
	g := ir.NewGraph()
	obj := g.Block().AddNode(ir.CreateObject).AddOutput("obj", ir.ClassOf("Linear"))
	w := newTensor(g.Block(), "w")
	n := g.Block().AddNode(ir.SetAttr)
	n.AddInput(obj).AddInput(w)
	db := mustBuild(t, g)

	if !db.HasWriters(obj) {
		t.Errorf("attribute assignment writes the receiver")
	}
	if !db.MayAliasWildcard(w) {
		t.Errorf("the stored value escapes into the receiver")
	}
	if !db.HasWrites(n) {
		t.Errorf("SetAttr must appear in the write index")
	}
}

func TestCustomOpIsConservative(t *testing.T) {
	g := ir.NewGraph()
	a := newTensor(g.Block(), "a")
	b := newTensor(g.Block(), "b")
	n := g.Block().AddNode(ir.Kind("my::mystery"))
	n.AddInput(a).AddInput(b)
	c := n.AddOutput("c", ir.TensorType)
	db := mustBuild(t, g)

	if !db.HasWriters(a) || !db.HasWriters(b) {
		t.Errorf("custom operators must be assumed to write every input")
	}
	if !db.MayAliasWildcard(c) {
		t.Errorf("custom operator outputs may alias anything of their kind")
	}
}

func TestCallFunctionUnsupported(t *testing.T) {
	g := ir.NewGraph()
	n := g.Block().AddNode(ir.CallFunction)
	n.AddOutput("r", ir.TensorType)
	_, err := New(g, ioutil.Discard)
	if err == nil {
		t.Fatalf("expected an error for prim::CallFunction")
	}
	report, ok := err.(*ErrorReport)
	if !ok {
		t.Fatalf("expected *ErrorReport, got %T", err)
	}
	if report.Node != n {
		t.Errorf("report must point at the offending node")
	}
	if !strings.Contains(err.Error(), "alias summaries") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestMissingSchemaRejected(t *testing.T) {
	g := ir.NewGraph()
	n := g.Block().AddNode(ir.Kind("aten::doesnotexist"))
	n.AddOutput("r", ir.TensorType)
	_, err := New(g, ioutil.Discard)
	if err == nil {
		t.Fatalf("expected an error for an unregistered aten operator")
	}
	if !strings.Contains(err.Error(), "no alias information") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestVariadicSchemaWithMutableOutputRejected(t *testing.T) {
	if _, err := ir.RegisterSchema("aten::varcat(...) -> Tensor"); err != nil {
		t.Fatal(err)
	}
	g := ir.NewGraph()
	n := g.Block().AddNode(ir.Kind("aten::varcat"))
	n.AddOutput("r", ir.TensorType)
	_, err := New(g, ioutil.Discard)
	if err == nil {
		t.Fatalf("expected an error for a variadic schema with a mutable output")
	}
	if !strings.Contains(err.Error(), "variadic") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestUntrackedValuesNeverAlias(t *testing.T) {
	g := ir.NewGraph()
	i := g.Block().AddNode(ir.Constant).AddOutput("i", ir.IntType)
	j := g.Block().AddNode(ir.Constant).AddOutput("j", ir.IntType)
	db := mustBuild(t, g)

	if db.MayAlias(i, j) || db.MayAliasWildcard(i) || db.HasWriters(i) {
		t.Errorf("integer values take no part in alias analysis")
	}
}

func TestConservativeAliasToFreshOutput(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	n := g.Block().AddNode(ir.Kind("aten::cuda"))
	n.AddInput(x)
	out := n.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	// The a|fresh annotation must be read as "assume it aliases a".
	if !db.MayAlias(out, x) {
		t.Errorf("an output that may alias self or be fresh must be assumed aliasing")
	}
}

func TestDump(t *testing.T) {
	g := ir.NewGraph()
	x := newTensor(g.Block(), "x")
	k := newTensor(g.Block(), "k")
	n := g.Block().AddNode(ir.Kind("aten::add_"))
	n.AddInput(x).AddInput(k)
	n.AddOutput("out", ir.TensorType)
	db := mustBuild(t, g)

	dump := db.Dump()
	for _, want := range []string{"===1. GRAPH===", "===2. ALIAS DB===", "===3. WRITES===", "out points to: x", "writes to"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestWriteDot(t *testing.T) {
	g := ir.NewGraph()
	a := g.AddInput("a", ir.TensorType)
	n := g.Block().AddNode(ir.Kind("aten::t"))
	n.AddInput(a)
	n.AddOutput("v", ir.TensorType)
	db := mustBuild(t, g)

	var buf bytes.Buffer
	if err := db.WriteDot(&buf); err != nil {
		t.Fatalf("WriteDot: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "digraph") || !strings.Contains(out, "aliasdb") {
		t.Errorf("dot output missing graph header:\n%s", out)
	}
	if !strings.Contains(out, "WILDCARD") {
		t.Errorf("dot output missing the wildcard element:\n%s", out)
	}
}
