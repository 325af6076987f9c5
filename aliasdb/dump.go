package aliasdb

// Debug text rendering of the points-to/contains/writes relation. The
// format is for human eyes, not a stable machine format.

import (
	"bytes"
	"fmt"
	"sort"
)

// Dump renders the graph, the element graph and the write index as text.
func (db *AliasDb) Dump() string {
	var buf bytes.Buffer
	buf.WriteString("===1. GRAPH===\n")
	buf.WriteString(db.graph.String())

	buf.WriteString("\n===2. ALIAS DB===\n")
	for _, e := range db.sortedElements() {
		if len(e.pointsTo) > 0 {
			fmt.Fprintf(&buf, "%s points to: %s\n", e.name(), elementNames(e.pointsTo))
		}
		if len(e.containedElements) > 0 {
			fmt.Fprintf(&buf, "%s contains: %s\n", e.name(), elementNames(e.containedElements))
		}
	}

	buf.WriteString("\n===3. WRITES===\n")
	type write struct {
		node string
		vals []string
	}
	var writes []write
	for n, vals := range db.writeIndex {
		w := write{node: n.String()}
		for v := range vals {
			w.vals = append(w.vals, v.Name())
		}
		sort.Strings(w.vals)
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].node < writes[j].node })
	for _, w := range writes {
		fmt.Fprintf(&buf, "%s writes to %s\n", w.node, commaJoin(w.vals))
	}
	return buf.String()
}

func (db *AliasDb) sortedElements() []*Element {
	elems := append([]*Element(nil), db.dag.elements...)
	sort.Slice(elems, func(i, j int) bool { return elems[i].name() < elems[j].name() })
	return elems
}

func elementNames(set map[*Element]struct{}) string {
	var names []string
	for e := range set {
		names = append(names, e.name())
	}
	sort.Strings(names)
	return commaJoin(names)
}

func commaJoin(names []string) string {
	var buf bytes.Buffer
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(name)
	}
	return buf.String()
}
