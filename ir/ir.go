// Package ir defines the dataflow graph representation analysed by
// alias-hunter: graphs of operator nodes over typed values, with nested
// blocks for control constructs and a stable topological node order.
//
package ir // import "github.com/nickng/alias-hunter/ir"

import (
	"fmt"
	"log"
)

// topoInterval is the gap left between consecutive topological positions so
// that nodes can be moved between neighbours without renumbering the block.
const topoInterval = 1 << 10

// Pos is a source position attached to a node for diagnostics.
type Pos struct {
	File string
	Line int
}

// IsValid reports whether the position is known.
func (p Pos) IsValid() bool { return p.File != "" }

func (p Pos) String() string {
	if !p.IsValid() {
		return "(unknown)"
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Use records one consumption of a Value: the consuming node and the input
// index at which the value appears.
type Use struct {
	User  *Node
	Index int
}

// Value is a single SSA-style value in the graph, produced either by a node
// or as a graph/block input.
type Value struct {
	name string
	typ  *Type
	node *Node // Producing node, nil for graph/block inputs.
	uses []Use
}

// Name returns the unique name of the value (without the % sigil).
func (v *Value) Name() string { return v.name }

// Type returns the type of the value.
func (v *Value) Type() *Type { return v.typ }

// Node returns the node producing this value, or nil for block inputs.
func (v *Value) Node() *Node { return v.node }

// Uses returns all recorded uses of this value.
func (v *Value) Uses() []Use { return v.uses }

func (v *Value) String() string { return "%" + v.name }

// Graph is a dataflow graph: one top-level block plus naming state.
type Graph struct {
	block    *Block
	nextName int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	g := &Graph{}
	g.block = newBlock(g, nil)
	return g
}

// Block returns the top-level block of the graph.
func (g *Graph) Block() *Block { return g.block }

// Inputs returns the ordered graph inputs.
func (g *Graph) Inputs() []*Value { return g.block.Inputs() }

// Outputs returns the ordered graph outputs.
func (g *Graph) Outputs() []*Value { return g.block.Outputs() }

// AddInput adds a graph input. An empty name is replaced by a fresh one.
func (g *Graph) AddInput(name string, t *Type) *Value { return g.block.AddInput(name, t) }

// RegisterOutput appends v to the graph outputs.
func (g *Graph) RegisterOutput(v *Value) { g.block.RegisterOutput(v) }

func (g *Graph) newValue(name string, t *Type, node *Node) *Value {
	if name == "" {
		name = fmt.Sprintf("%d", g.nextName)
		g.nextName++
	}
	return &Value{name: name, typ: t, node: node}
}

// Block owns an ordered list of nodes, plus block inputs and outputs.
// The top-level block has no owning node; sub-blocks belong to control
// constructs such as If and Loop.
type Block struct {
	graph   *Graph
	owner   *Node
	inputs  []*Value
	outputs []*Value
	first   *Node
	last    *Node
}

func newBlock(g *Graph, owner *Node) *Block {
	return &Block{graph: g, owner: owner}
}

// Graph returns the graph owning this block.
func (b *Block) Graph() *Graph { return b.graph }

// OwningNode returns the node this block belongs to, or nil for the
// top-level block.
func (b *Block) OwningNode() *Node { return b.owner }

// Inputs returns the ordered block inputs.
func (b *Block) Inputs() []*Value { return b.inputs }

// Outputs returns the ordered block outputs.
func (b *Block) Outputs() []*Value { return b.outputs }

// AddInput adds a block input value.
func (b *Block) AddInput(name string, t *Type) *Value {
	v := b.graph.newValue(name, t, nil)
	b.inputs = append(b.inputs, v)
	return v
}

// RegisterOutput appends v to the block outputs.
func (b *Block) RegisterOutput(v *Value) { b.outputs = append(b.outputs, v) }

// AddNode appends a new node of the given kind to the end of the block.
func (b *Block) AddNode(kind Kind) *Node {
	n := &Node{kind: kind, graph: b.graph, block: b}
	if b.last == nil {
		n.topo = 0
		b.first, b.last = n, n
	} else {
		n.topo = b.last.topo + topoInterval
		n.prev = b.last
		b.last.next = n
		b.last = n
	}
	return n
}

// Nodes returns the nodes of the block in topological order. The returned
// slice is a snapshot; moving nodes while ranging over it is safe.
func (b *Block) Nodes() []*Node {
	var nodes []*Node
	for n := b.first; n != nil; n = n.next {
		nodes = append(nodes, n)
	}
	return nodes
}

// renumber reassigns topological positions over the whole block, restoring
// the inter-node gaps.
func (b *Block) renumber() {
	topo := int64(0)
	for n := b.first; n != nil; n = n.next {
		n.topo = topo
		topo += topoInterval
	}
}

// Node is one operation in a block. Nodes are linked in topological order
// and may own nested sub-blocks (If branches, Loop bodies, subgraphs).
type Node struct {
	kind    Kind
	graph   *Graph
	block   *Block
	inputs  []*Value
	outputs []*Value
	blocks  []*Block
	prev    *Node
	next    *Node
	topo    int64
	pos     Pos
	attrs   map[string]int64
}

// Kind returns the operator kind of the node.
func (n *Node) Kind() Kind { return n.kind }

// Graph returns the graph owning this node.
func (n *Node) Graph() *Graph { return n.graph }

// OwningBlock returns the block the node currently belongs to.
func (n *Node) OwningBlock() *Block { return n.block }

// Inputs returns the ordered node inputs.
func (n *Node) Inputs() []*Value { return n.inputs }

// Outputs returns the ordered node outputs.
func (n *Node) Outputs() []*Value { return n.outputs }

// Blocks returns the nested sub-blocks of the node.
func (n *Node) Blocks() []*Block { return n.blocks }

// Pos returns the source position of the node.
func (n *Node) Pos() Pos { return n.pos }

// SetPos attaches a source position to the node.
func (n *Node) SetPos(p Pos) *Node {
	n.pos = p
	return n
}

// Next returns the node after n in its block, or nil.
func (n *Node) Next() *Node { return n.next }

// Prev returns the node before n in its block, or nil.
func (n *Node) Prev() *Node { return n.prev }

// AddInput appends v to the node inputs and records the use.
func (n *Node) AddInput(v *Value) *Node {
	v.uses = append(v.uses, Use{User: n, Index: len(n.inputs)})
	n.inputs = append(n.inputs, v)
	return n
}

// Input returns the sole input of the node.
func (n *Node) Input() *Value {
	if len(n.inputs) != 1 {
		log.Panicf("ir: node %s has %d inputs, expected 1", n.kind, len(n.inputs))
	}
	return n.inputs[0]
}

// Output returns the sole output of the node.
func (n *Node) Output() *Value {
	if len(n.outputs) != 1 {
		log.Panicf("ir: node %s has %d outputs, expected 1", n.kind, len(n.outputs))
	}
	return n.outputs[0]
}

// AddOutput adds an output value of the given type to the node.
// An empty name is replaced by a fresh one.
func (n *Node) AddOutput(name string, t *Type) *Value {
	v := n.graph.newValue(name, t, n)
	n.outputs = append(n.outputs, v)
	return v
}

// AddBlock adds a nested sub-block to the node.
func (n *Node) AddBlock() *Block {
	b := newBlock(n.graph, n)
	n.blocks = append(n.blocks, b)
	return b
}

// SetIntAttr attaches an integer attribute (e.g. the chunk count of
// prim::BroadcastingChunk) to the node.
func (n *Node) SetIntAttr(name string, val int64) *Node {
	if n.attrs == nil {
		n.attrs = make(map[string]int64)
	}
	n.attrs[name] = val
	return n
}

// IntAttr returns the integer attribute with the given name.
func (n *Node) IntAttr(name string) int64 {
	val, ok := n.attrs[name]
	if !ok {
		log.Panicf("ir: node %s has no attribute %q", n.kind, name)
	}
	return val
}

// IsBefore reports whether n comes before other in their common block.
func (n *Node) IsBefore(other *Node) bool {
	if n.block != other.block {
		log.Panicf("ir: IsBefore across blocks (%s, %s)", n.kind, other.kind)
	}
	return n.topo < other.topo
}

// IsAfter reports whether n comes after other in their common block.
func (n *Node) IsAfter(other *Node) bool {
	return other != n && !n.IsBefore(other)
}

func (n *Node) unlink() {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		n.block.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		n.block.last = n.prev
	}
	n.prev, n.next = nil, nil
}

// MoveBefore moves n immediately before p within their common block.
func (n *Node) MoveBefore(p *Node) {
	if n.block != p.block {
		log.Panicf("ir: MoveBefore across blocks (%s, %s)", n.kind, p.kind)
	}
	if n == p || p.prev == n {
		return
	}
	n.unlink()
	n.prev = p.prev
	n.next = p
	if p.prev != nil {
		p.prev.next = n
	} else {
		n.block.first = n
	}
	p.prev = n
	n.placeBetween()
}

// MoveAfter moves n immediately after p within their common block.
func (n *Node) MoveAfter(p *Node) {
	if n.block != p.block {
		log.Panicf("ir: MoveAfter across blocks (%s, %s)", n.kind, p.kind)
	}
	if n == p || p.next == n {
		return
	}
	n.unlink()
	n.next = p.next
	n.prev = p
	if p.next != nil {
		p.next.prev = n
	} else {
		n.block.last = n
	}
	p.next = n
	n.placeBetween()
}

// placeBetween assigns n a topological position between its new neighbours,
// renumbering the block if the gap is exhausted.
func (n *Node) placeBetween() {
	switch {
	case n.prev == nil:
		n.topo = n.next.topo - topoInterval
	case n.next == nil:
		n.topo = n.prev.topo + topoInterval
	default:
		lo, hi := n.prev.topo, n.next.topo
		if hi-lo < 2 {
			n.block.renumber()
			return
		}
		n.topo = lo + (hi-lo)/2
	}
}
