package plan

import (
	"fmt"

	"github.com/emicklei/dot"
)

// Graph renders p as a graphviz digraph. Each step is a node labelled with
// its position and action, groups are clusters, and edges are the ordering
// constraints between steps.
func (p *Plan) Graph() *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	heads := make([]dot.Node, len(p.Steps))
	for k, s := range p.Steps {
		if s.Kind != KindGroup {
			heads[k] = g.Node(fmt.Sprintf("s%d", k+1)).Label(fmt.Sprintf("%d. %s", k+1, s)).Attr("shape", "box")
			continue
		}

		sub := g.Subgraph(fmt.Sprintf("step%d", k+1), dot.ClusterOption{})
		var prev dot.Node
		for j, m := range s.Members {
			n := sub.Node(fmt.Sprintf("s%d.%d", k+1, j+1)).Label(fmt.Sprintf("%d.%d. %s", k+1, j+1, m)).Attr("shape", "box")
			if j == 0 {
				heads[k] = n
			} else {
				sub.Edge(prev, n).Attr("style", "dashed")
			}
			prev = n
		}
	}

	for _, e := range p.edges {
		g.Edge(heads[e[0]], heads[e[1]])
	}
	return g
}
