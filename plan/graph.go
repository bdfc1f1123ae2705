package plan

import (
	"sort"

	"github.com/xpackagemanager/xpm/metadata"
)

// graph is the ordering graph over the primitive steps of a plan, one node
// per package name. An edge from u to v means u must run before v.
type graph struct {
	steps []Step
	index map[string]int
	out   []map[int]bool
}

func newGraph(steps []Step) *graph {
	g := &graph{
		steps: steps,
		index: make(map[string]int, len(steps)),
		out:   make([]map[int]bool, len(steps)),
	}
	for k, s := range steps {
		g.index[s.Package.Name] = k
		g.out[k] = make(map[int]bool)
	}
	return g
}

func (g *graph) edge(from, to int) {
	if from != to {
		g.out[from][to] = true
	}
}

func (g *graph) successors(n int) []int {
	succ := make([]int, 0, len(g.out[n]))
	for m := range g.out[n] {
		succ = append(succ, m)
	}
	sort.Ints(succ)
	return succ
}

// buildGraph computes the ordering constraints for moving old to target with
// steps, which must hold at most one step per name.
func buildGraph(old, target metadata.InstalledSet, steps []Step) *graph {
	g := newGraph(steps)

	// A package no step touches stays installed throughout the transaction.
	stable := func(d metadata.Dependency) bool {
		for _, ip := range old.Packages() {
			if _, changes := g.index[ip.Name]; !changes && ip.Satisfies(d) {
				return true
			}
		}
		return false
	}

	// satisfierStep returns the step that brings in the package target
	// relies on for d.
	satisfierStep := func(d metadata.Dependency) (int, bool) {
		s, has := target.Satisfier(d)
		if !has {
			return 0, false
		}
		k, has := g.index[s.Name]
		return k, has
	}

	for v, s := range steps {
		switch s.Kind {
		case KindInstall, KindUpgrade:
			// Dependencies go in before their dependents.
			for _, d := range s.Package.Depends {
				if stable(d) {
					continue
				}
				if u, has := satisfierStep(d); has {
					g.edge(u, v)
				}
			}

			// Anything the new package conflicts with goes out first.
			for _, q := range old.Packages() {
				_, fwd := s.Package.ConflictsWith(q.Package)
				_, back := q.ConflictsWith(s.Package.Package)
				if !fwd && !back {
					continue
				}
				if u, has := g.index[q.Name]; has {
					g.edge(u, v)
				}
			}
		}

		var gone metadata.Package
		switch s.Kind {
		case KindRemove:
			gone = s.Package.Package
		case KindUpgrade:
			gone = s.Previous.Package
		default:
			continue
		}

		// A package goes out, or changes version, only once nothing still
		// relies on what it was.
		for _, dependent := range old.Packages() {
			if dependent.Name == gone.Name {
				continue
			}
			for _, d := range dependent.Depends {
				if !gone.Satisfies(d) {
					continue
				}
				if s.Kind == KindUpgrade && s.Package.Satisfies(d) {
					continue
				}
				if u, has := g.index[dependent.Name]; has {
					g.edge(u, v)
					continue
				}
				if stable(d) {
					continue
				}
				if u, has := satisfierStep(d); has {
					g.edge(u, v)
				}
			}
		}
	}

	return g
}

// components returns the strongly connected components of g in reverse
// topological order, as computed by Tarjan's algorithm. Nodes are visited in
// index order so the result is deterministic.
func (g *graph) components() [][]int {
	var (
		index   = make([]int, len(g.steps))
		low     = make([]int, len(g.steps))
		onStack = make([]bool, len(g.steps))
		stack   []int
		next    = 1
		sccs    [][]int
	)

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.successors(v) {
			if index[w] == 0 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && index[w] < low[v] {
				low[v] = index[w]
			}
		}

		if low[v] != index[v] {
			return
		}

		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		sccs = append(sccs, scc)
	}

	for v := range g.steps {
		if index[v] == 0 {
			strongconnect(v)
		}
	}
	return sccs
}

// order collapses every cycle of g into a Group step and sorts the result
// with Kahn's algorithm. Of the steps free to run at any point, removals go
// first, then upgrades, installs, and groups, each by name.
//
// It returns the ordered steps and the ordering edges between them, as
// indices into the returned slice.
func (g *graph) order() ([]Step, [][2]int) {
	sccs := g.components()

	comp := make([]int, len(g.steps))
	csteps := make([]Step, len(sccs))
	for c, scc := range sccs {
		for _, v := range scc {
			comp[v] = c
		}
		if len(scc) == 1 {
			csteps[c] = g.steps[scc[0]]
			continue
		}

		members := make([]Step, 0, len(scc))
		for _, v := range scc {
			members = append(members, g.steps[v])
		}
		sort.Slice(members, func(i, j int) bool {
			return stepLess(members[i], members[j])
		})
		csteps[c] = Step{Kind: KindGroup, Members: members}
	}

	cout := make([]map[int]bool, len(sccs))
	indeg := make([]int, len(sccs))
	for c := range cout {
		cout[c] = make(map[int]bool)
	}
	for v := range g.steps {
		for _, w := range g.successors(v) {
			if cv, cw := comp[v], comp[w]; cv != cw && !cout[cv][cw] {
				cout[cv][cw] = true
				indeg[cw]++
			}
		}
	}

	var ready []int
	for c := range csteps {
		if indeg[c] == 0 {
			ready = append(ready, c)
		}
	}

	pos := make([]int, len(sccs))
	ordered := make([]Step, 0, len(sccs))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return stepLess(csteps[ready[i]], csteps[ready[j]])
		})
		c := ready[0]
		ready = ready[1:]

		pos[c] = len(ordered)
		ordered = append(ordered, csteps[c])

		succ := make([]int, 0, len(cout[c]))
		for d := range cout[c] {
			succ = append(succ, d)
		}
		sort.Ints(succ)
		for _, d := range succ {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(ordered) != len(csteps) {
		// The condensation of any graph is acyclic.
		panic("canary - cycle left after grouping components")
	}

	var edges [][2]int
	for c := range cout {
		for d := range cout[c] {
			edges = append(edges, [2]int{pos[c], pos[d]})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})

	return ordered, edges
}
