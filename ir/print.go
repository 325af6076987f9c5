package ir

// Text rendering of graphs. The output mirrors the listing format accepted
// by graphbuilder; it is a debugging aid, not a stable machine format.

import (
	"bytes"
	"fmt"
	"strings"
)

func (g *Graph) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "graph(%s)\n", valueDecls(g.Inputs()))
	writeBlockBody(&buf, g.Block(), "  ")
	return buf.String()
}

func (n *Node) String() string {
	var buf bytes.Buffer
	writeNode(&buf, n, "")
	return strings.TrimSuffix(buf.String(), "\n")
}

func writeBlockBody(buf *bytes.Buffer, b *Block, indent string) {
	for n := b.first; n != nil; n = n.next {
		writeNode(buf, n, indent)
	}
	fmt.Fprintf(buf, "%sreturn(%s)\n", indent, valueNames(b.Outputs()))
}

func writeNode(buf *bytes.Buffer, n *Node, indent string) {
	buf.WriteString(indent)
	if len(n.Outputs()) > 0 {
		fmt.Fprintf(buf, "%s = ", valueDecls(n.Outputs()))
	}
	fmt.Fprintf(buf, "%s(%s)", n.Kind(), valueNames(n.Inputs()))
	if n.Pos().IsValid() {
		fmt.Fprintf(buf, " @%s", n.Pos())
	}
	buf.WriteString("\n")
	for _, b := range n.Blocks() {
		fmt.Fprintf(buf, "%sblock(%s)\n", indent, valueDecls(b.Inputs()))
		writeBlockBody(buf, b, indent+"  ")
	}
	if len(n.Blocks()) > 0 {
		fmt.Fprintf(buf, "%send\n", indent)
	}
}

func valueDecls(vals []*Value) string {
	decls := make([]string, len(vals))
	for i, v := range vals {
		decls[i] = fmt.Sprintf("%s : %s", v, v.Type())
	}
	return strings.Join(decls, ", ")
}

func valueNames(vals []*Value) string {
	names := make([]string, len(vals))
	for i, v := range vals {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}
