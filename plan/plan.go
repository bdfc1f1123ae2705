// Package plan turns a resolved target state into an ordered list of steps
// that moves an installed system to it while keeping the system consistent
// between every two steps.
package plan

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/solver"
)

// Plan is an ordered sequence of steps transforming one installed set into
// another. A Plan is computed against a specific installed set, whose digest
// it records, and applies only to that set.
type Plan struct {
	// Steps in execution order.
	Steps []Step

	// Marks are records whose version stays the same but whose install
	// reason, or metadata, changes. They are written once every step is done.
	Marks []metadata.InstalledPackage

	base   []byte
	target metadata.InstalledSet
	edges  [][2]int
}

// New plans the move from installed to the system described by sol.
func New(installed metadata.InstalledSet, sol solver.Solution) (*Plan, error) {
	return Between(installed, sol.InstalledSet())
}

// Between plans the move from installed to target. The target must be
// closed under dependencies and free of conflicts.
func Between(installed, target metadata.InstalledSet) (*Plan, error) {
	var problems []string
	for _, b := range target.Broken() {
		problems = append(problems, "unsatisfied dependency "+b)
	}
	problems = append(problems, target.Conflicting()...)
	if len(problems) > 0 {
		return nil, &InternalConsistencyError{Problems: problems}
	}

	steps, marks := diff(installed, target)
	ordered, edges := buildGraph(installed, target, steps).order()

	p := &Plan{
		Steps:  ordered,
		Marks:  marks,
		base:   installed.Digest(),
		target: target,
		edges:  edges,
	}
	if err := p.Verify(installed); err != nil {
		return nil, err
	}
	return p, nil
}

// diff computes the unordered primitive steps, by name, and the marks that
// move old to target.
func diff(old, target metadata.InstalledSet) ([]Step, []metadata.InstalledPackage) {
	var steps []Step
	var marks []metadata.InstalledPackage

	for _, ip := range target.Packages() {
		prev, has := old.Get(ip.Name)
		switch {
		case !has:
			steps = append(steps, Step{Kind: KindInstall, Package: ip})
		case !prev.Version.Equal(ip.Version):
			steps = append(steps, Step{Kind: KindUpgrade, Package: ip, Previous: prev})
		case !prev.Equal(ip):
			marks = append(marks, ip)
		}
	}
	for _, ip := range old.Packages() {
		if _, has := target.Get(ip.Name); !has {
			steps = append(steps, Step{Kind: KindRemove, Package: ip})
		}
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Package.Name < steps[j].Package.Name
	})
	return steps, marks
}

// Base returns the digest of the installed set the plan was computed
// against.
func (p *Plan) Base() []byte {
	return p.base
}

// Target returns the installed set the plan produces.
func (p *Plan) Target() metadata.InstalledSet {
	return p.target
}

// Stale reports whether installed differs from the set the plan was computed
// against.
func (p *Plan) Stale(installed metadata.InstalledSet) bool {
	return !bytes.Equal(installed.Digest(), p.base)
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0 && len(p.Marks) == 0
}

// Apply returns the installed set that results from running every step and
// mark of p on installed. It performs no checks; see Verify.
func (p *Plan) Apply(installed metadata.InstalledSet) metadata.InstalledSet {
	for _, s := range p.Steps {
		installed = s.ApplyTo(installed)
	}
	for _, m := range p.Marks {
		installed = installed.With(m)
	}
	return installed
}

// Verify replays p on installed and checks that no step boundary introduces
// an unsatisfied dependency or a conflict that was not already present in
// installed, and that the replay ends at the plan's target.
func (p *Plan) Verify(installed metadata.InstalledSet) error {
	if p.Stale(installed) {
		return &InternalConsistencyError{Problems: []string{"plan was computed against a different installed set"}}
	}

	before := violations(installed)
	cur := installed
	var problems []string
	for k, s := range p.Steps {
		cur = s.ApplyTo(cur)
		for _, v := range violations(cur).list() {
			if !before[v] {
				problems = append(problems, fmt.Sprintf("after step %d (%s): %s", k+1, s, v))
			}
		}
	}
	for _, m := range p.Marks {
		cur = cur.With(m)
	}

	if !cur.Equal(p.target) {
		problems = append(problems, fmt.Sprintf("replay ends at %s, want %s", cur, p.target))
	}
	if len(problems) > 0 {
		return &InternalConsistencyError{Problems: problems}
	}
	return nil
}

type violationSet map[string]bool

func violations(is metadata.InstalledSet) violationSet {
	vs := make(violationSet)
	for _, b := range is.Broken() {
		vs["unsatisfied dependency "+b] = true
	}
	for _, c := range is.Conflicting() {
		vs[c] = true
	}
	return vs
}

func (vs violationSet) list() []string {
	l := make([]string, 0, len(vs))
	for v := range vs {
		l = append(l, v)
	}
	sort.Strings(l)
	return l
}

// Primitives returns every non-group step of p, in execution order.
func (p *Plan) Primitives() []Step {
	var out []Step
	for _, s := range p.Steps {
		out = append(out, s.Primitives()...)
	}
	return out
}

// String renders the plan one step per line.
func (p *Plan) String() string {
	var buf bytes.Buffer
	for k, s := range p.Steps {
		fmt.Fprintf(&buf, "%d. %s\n", k+1, s)
	}
	for _, m := range p.Marks {
		fmt.Fprintf(&buf, "mark %s as %s\n", m.Name, m.Reason)
	}
	return buf.String()
}
