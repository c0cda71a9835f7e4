// Package graph renders the discovered jump targets as a Graphviz DOT graph.
package graph

import (
	"fmt"
	"io"

	"github.com/emicklei/dot"
	"github.com/retroenv/retrodecode/internal/decoder"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/writer"
)

// Build returns a directed graph with a node per labeled address and an edge
// per discovered jump target, labeled with the jump target type.
func Build(result *decoder.Result) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	nodes := map[jumptarget.Address]dot.Node{}

	node := func(address jumptarget.Address) dot.Node {
		if n, ok := nodes[address]; ok {
			return n
		}
		label := address.String()
		if typ, ok := result.Labels[address]; ok {
			label = writer.LabelName(address, typ)
		}
		n := g.Node(address.String()).Label(label)
		nodes[address] = n
		return n
	}

	for _, edge := range result.Edges {
		g.Edge(node(edge.From), node(edge.To), edge.Type.String())
	}
	return g
}

// Write writes the DOT representation of the result graph.
func Write(w io.Writer, result *decoder.Result) error {
	g := Build(result)
	if _, err := io.WriteString(w, g.String()); err != nil {
		return fmt.Errorf("writing dot graph: %w", err)
	}
	return nil
}
