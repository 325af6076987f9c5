package aliasdb

import (
	"fmt"
	"io"

	"github.com/awalterschulze/gographviz"
)

// WriteDot renders the element graph in Graphviz dot format: solid edges
// for points-to, dashed edges for containment.
func (db *AliasDb) WriteDot(w io.Writer) error {
	graph := gographviz.NewEscape()
	graph.SetDir(true)
	graph.SetName("aliasdb")

	names := make(map[*Element]string)
	for i, e := range db.dag.elements {
		name := fmt.Sprintf("e%d", i)
		names[e] = name
		attrs := map[string]string{
			"label": fmt.Sprintf("\"%s\"", e.name()),
			"shape": "ellipse",
		}
		if e.Value == nil {
			attrs["shape"] = "diamond"
			attrs["color"] = "red"
		}
		if err := graph.AddNode(graph.Name, name, attrs); err != nil {
			return err
		}
	}
	for _, e := range db.dag.elements {
		for to := range e.pointsTo {
			if err := graph.AddEdge(names[e], names[to], true, nil); err != nil {
				return err
			}
		}
		for elem := range e.containedElements {
			attrs := map[string]string{"style": "dashed", "label": "contains"}
			if err := graph.AddEdge(names[e], names[elem], true, attrs); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, graph.String())
	return err
}
