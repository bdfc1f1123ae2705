package solver

import (
	"container/heap"

	"github.com/xpackagemanager/xpm/metadata"
)

// atom is a package chosen by the solver, or the root pseudo-package that
// carries the request batch.
type atom struct {
	pkg  metadata.Package
	root bool
}

func (a atom) String() string {
	if a.root {
		return "(root)"
	}
	return a.pkg.String()
}

// dependency is a constraint together with the atom that introduced it.
type dependency struct {
	depender atom
	dep      metadata.Dependency
}

// decision binds a target to an atom. fresh is set when the decision also
// selected the atom's package, rather than reusing one already selected for
// another target.
type decision struct {
	target string
	a      atom
	fresh  bool
}

type selection struct {
	decisions []decision
	selected  map[string]atom // by package name
	bound     map[string]atom // by target
	deps      map[string][]dependency
}

func newSelection() *selection {
	return &selection{
		selected: make(map[string]atom),
		bound:    make(map[string]atom),
		deps:     make(map[string][]dependency),
	}
}

func (s *selection) getDependenciesOn(target string) []dependency {
	return s.deps[target]
}

func (s *selection) pushDecision(d decision) {
	s.decisions = append(s.decisions, d)
}

func (s *selection) popDecision() (d decision) {
	d, s.decisions = s.decisions[len(s.decisions)-1], s.decisions[:len(s.decisions)-1]
	return d
}

// targetOf returns the target whose decision selected the named package.
func (s *selection) targetOf(name string) (string, bool) {
	for _, d := range s.decisions {
		if d.fresh && d.a.pkg.Name == name {
			return d.target, true
		}
	}
	return "", false
}

// unselected is a heap of targets that have dependencies but no binding.
type unselected struct {
	sl  []string
	cmp func(i, j int) bool
}

func (u unselected) Len() int {
	return len(u.sl)
}

func (u unselected) Less(i, j int) bool {
	return u.cmp(i, j)
}

func (u unselected) Swap(i, j int) {
	u.sl[i], u.sl[j] = u.sl[j], u.sl[i]
}

func (u *unselected) Push(x interface{}) {
	u.sl = append(u.sl, x.(string))
}

func (u *unselected) Pop() (v interface{}) {
	v, u.sl = u.sl[len(u.sl)-1], u.sl[:len(u.sl)-1]
	return v
}

// remove takes a target out of the heap; it is a no-op if the target is not
// present.
func (u *unselected) remove(target string) {
	for k, t := range u.sl {
		if t == target {
			heap.Remove(u, k)
			return
		}
	}
}
