package ir

import (
	"testing"
)

func TestNodeOrder(t *testing.T) {
	g := NewGraph()
	a := g.Block().AddNode(Constant)
	b := g.Block().AddNode(Constant)
	c := g.Block().AddNode(Constant)

	if !a.IsBefore(b) || !b.IsBefore(c) {
		t.Errorf("expected append order a < b < c")
	}
	if !c.IsAfter(a) {
		t.Errorf("expected c after a")
	}
	if a.IsAfter(a) || a.IsBefore(a) {
		t.Errorf("a node is neither before nor after itself")
	}
}

func TestMoveAfter(t *testing.T) {
	g := NewGraph()
	a := g.Block().AddNode(Constant)
	b := g.Block().AddNode(Constant)
	c := g.Block().AddNode(Constant)

	a.MoveAfter(c)
	if !b.IsBefore(c) || !c.IsBefore(a) {
		t.Errorf("expected order b < c < a after move")
	}
	nodes := g.Block().Nodes()
	if len(nodes) != 3 || nodes[0] != b || nodes[1] != c || nodes[2] != a {
		t.Errorf("node list does not match topological order after move")
	}
}

func TestMoveBefore(t *testing.T) {
	g := NewGraph()
	a := g.Block().AddNode(Constant)
	b := g.Block().AddNode(Constant)
	c := g.Block().AddNode(Constant)

	c.MoveBefore(a)
	nodes := g.Block().Nodes()
	if len(nodes) != 3 || nodes[0] != c || nodes[1] != a || nodes[2] != b {
		t.Errorf("expected order c, a, b after move")
	}
	if !c.IsBefore(a) || !c.IsBefore(b) {
		t.Errorf("IsBefore does not reflect move")
	}
}

func TestMoveRenumber(t *testing.T) {
	g := NewGraph()
	first := g.Block().AddNode(Constant)
	second := g.Block().AddNode(Constant)
	// Repeatedly squeeze nodes into the same gap to exhaust it.
	for i := 0; i < 64; i++ {
		n := g.Block().AddNode(Constant)
		n.MoveAfter(first)
	}
	if !first.IsBefore(second) {
		t.Errorf("renumbering broke relative order")
	}
	nodes := g.Block().Nodes()
	for i := 1; i < len(nodes); i++ {
		if !nodes[i-1].IsBefore(nodes[i]) {
			t.Errorf("node %d not before node %d after renumbering", i-1, i)
		}
	}
}

func TestUses(t *testing.T) {
	g := NewGraph()
	x := g.AddInput("x", TensorType)
	n := g.Block().AddNode(Kind("aten::relu"))
	n.AddInput(x)
	y := n.AddOutput("y", TensorType)
	g.RegisterOutput(y)

	if len(x.Uses()) != 1 || x.Uses()[0].User != n || x.Uses()[0].Index != 0 {
		t.Errorf("expected x to be used by the relu node at index 0")
	}
	if y.Node() != n {
		t.Errorf("expected y to be produced by the relu node")
	}
	if x.Node() != nil {
		t.Errorf("graph inputs have no producing node")
	}
}

func TestMutableKind(t *testing.T) {
	tests := []struct {
		typ     *Type
		kind    TypeKind
		mutable bool
	}{
		{TensorType, TensorKind, true},
		{ListOf(TensorType), ListKind, true},
		{TupleOf(TensorType, IntType), TupleKind, true},
		{DictOf(StringType, TensorType), DictKind, true},
		{ClassOf("Module"), ClassKind, true},
		{OptionalOf(TensorType), TensorKind, true},
		{OptionalOf(IntType), 0, false},
		{FutureOf(TensorType), 0, false},
		{IntType, 0, false},
		{BoolType, 0, false},
		{NoneType, 0, false},
	}
	for _, test := range tests {
		kind, ok := MutableKind(test.typ)
		if ok != test.mutable {
			t.Errorf("MutableKind(%s): mutable = %t, want %t", test.typ, ok, test.mutable)
			continue
		}
		if ok && kind != test.kind {
			t.Errorf("MutableKind(%s) = %s, want %s", test.typ, kind, test.kind)
		}
	}
}

func TestIsContainer(t *testing.T) {
	if IsContainer(TensorType) {
		t.Errorf("Tensor is not a container")
	}
	if !IsContainer(ListOf(TensorType)) {
		t.Errorf("List is a container")
	}
	if !IsContainer(FutureOf(TupleOf(TensorType))) {
		t.Errorf("container-ness looks through Future")
	}
	if IsContainer(OptionalOf(TensorType)) {
		t.Errorf("Optional[Tensor] holds no contained types")
	}
}
