package solver

import (
	"container/heap"
	"context"
	"io/ioutil"
	"log"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpackagemanager/xpm/metadata"
)

// Parameters holds all arguments to a solver run.
//
// Only Store is absolutely required. An empty Installed set and an empty
// request batch are both valid.
type Parameters struct {
	// Installed is the snapshot of currently installed packages. The solver
	// prefers to keep these at their current versions.
	Installed metadata.InstalledSet

	// Requests is the batch of changes to resolve together.
	Requests []Request

	// Store is the frozen metadata the solver picks candidates from.
	Store *metadata.Store

	// Logger receives structured debug output. Optional.
	Logger *logrus.Logger

	// Trace controls whether the solver will generate informative trace output
	// as it moves through the solving process.
	Trace bool

	// TraceLogger is the logger to use for generating trace output. If Trace
	// is true but no logger is provided, solving will result in an error.
	TraceLogger *log.Logger
}

// Solver is a package dependency solver. It is prepared once for a set of
// parameters and then run.
type Solver interface {
	// HashInputs hashes all the inputs that affect the solution. Two
	// solvers with equal input hashes always produce the same result.
	HashInputs() []byte

	// Solve initiates a solving run. It will either complete successfully
	// with a Solution, or fail with an informative error. It never mutates
	// its inputs.
	Solve(ctx context.Context) (Solution, error)
}

// solver is a backtracking-style SAT solver.
type solver struct {
	params Parameters
	l      *logrus.Logger
	tl     *log.Logger

	store     *metadata.Store
	installed metadata.InstalledSet

	// The root pseudo-atom, carrying the request batch and the retention of
	// installed packages as dependencies.
	root atom

	// Package names the request batch removes.
	excluded map[string]bool

	// Installed packages whose current version is not preferred.
	change map[string]bool

	// Targets of install requests; whatever they are bound to is explicit.
	explicit []string

	sel   *selection
	unsel *unselected
	vqs   []*versionQueue

	cands    map[string][]metadata.Package
	attempts int

	// The contradiction most recently found, with the constraint chain that
	// was active when it was found.
	lastFail *UnsatisfiableError
}

// Prepare readies a Solver for use, validating the request batch against the
// installed set.
func Prepare(params Parameters) (Solver, error) {
	if params.Store == nil {
		return nil, errors.New("must provide a non-nil metadata store")
	}
	if params.Trace && params.TraceLogger == nil {
		return nil, errors.New("trace requested, but no logger provided")
	}

	s := &solver{
		params:    params,
		l:         params.Logger,
		tl:        params.TraceLogger,
		store:     params.Store,
		installed: params.Installed,
		excluded:  make(map[string]bool),
		change:    make(map[string]bool),
		cands:     make(map[string][]metadata.Package),
		root:      atom{root: true},
	}
	if s.l == nil {
		s.l = logrus.New()
		s.l.Out = ioutil.Discard
	}

	if err := s.prepareRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Solve is a shortcut for Prepare followed by Solve.
func Solve(ctx context.Context, params Parameters) (Solution, error) {
	s, err := Prepare(params)
	if err != nil {
		return Solution{}, err
	}
	return s.Solve(ctx)
}

// prepareRoot translates the request batch into the root atom's
// dependencies.
func (s *solver) prepareRoot() error {
	requested := make(map[string]bool)
	orphans := false
	var deps []metadata.Dependency

	for _, r := range s.params.Requests {
		switch r.Kind {
		case KindInstall:
			if r.Name == "" {
				return &BadRequestError{Request: r, Reason: "no package named"}
			}
			deps = append(deps, r.dep())
			requested[r.Name] = true
			s.explicit = append(s.explicit, r.Name)
		case KindUpgrade:
			if _, has := s.installed.Get(r.Name); !has {
				return &BadRequestError{Request: r, Reason: "package is not installed"}
			}
			deps = append(deps, r.dep())
			requested[r.Name] = true
			s.change[r.Name] = true
		case KindRemove:
			if _, has := s.installed.Get(r.Name); !has {
				return &BadRequestError{Request: r, Reason: "package is not installed"}
			}
			s.excluded[r.Name] = true
		case KindUpgradeAll:
			for _, name := range s.installed.Names() {
				s.change[name] = true
			}
		case KindRemoveOrphans:
			orphans = true
		default:
			return &BadRequestError{Request: r, Reason: "unknown request kind"}
		}
	}

	for name := range requested {
		if s.excluded[name] {
			return &BadRequestError{Request: Remove(name), Reason: "package is also requested to be installed"}
		}
	}

	for _, ip := range s.installed.Packages() {
		if s.excluded[ip.Name] || requested[ip.Name] {
			continue
		}
		if orphans && ip.Reason == metadata.ReasonDependency {
			continue
		}
		deps = append(deps, metadata.Dependency{Name: ip.Name, Range: metadata.Any()})
	}

	// Order is irrelevant to the outcome, but fixing it keeps traces and
	// errors identical across equivalent batches.
	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].Name != deps[j].Name {
			return deps[i].Name < deps[j].Name
		}
		return deps[i].Range.String() < deps[j].Range.String()
	})
	sort.Strings(s.explicit)
	s.root.pkg.Depends = deps
	return nil
}

func (s *solver) Solve(ctx context.Context) (Solution, error) {
	s.sel = newSelection()
	s.unsel = &unselected{
		sl:  make([]string, 0),
		cmp: s.unselectedComparator,
	}
	heap.Init(s.unsel)
	s.vqs = nil
	s.attempts = 0
	s.lastFail = nil

	s.selectRoot()

	err := s.solve(ctx)
	var soln Solution
	if err == nil {
		soln = s.buildSolution()
	}

	s.traceFinish(soln, err)
	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"attempts": s.attempts,
			"ok":       err == nil,
		}).Info("Solving finished")
	}
	return soln, err
}

func (s *solver) solve(ctx context.Context) error {
	for {
		target, has := s.nextUnselected()
		if !has {
			// no more targets to bind - we're done.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "solving interrupted")
		}

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"attempts": s.attempts,
				"target":   target,
				"selcount": len(s.sel.selected),
			}).Debug("Beginning step in solve loop")
		}

		queue, err := s.createVersionQueue(target)
		if err != nil {
			s.traceStartBacktrack(target, err)
			// Err means a failure somewhere down the line; try backtracking.
			if s.backtrack() {
				// backtracking succeeded, move to the next unselected target
				continue
			}
			return s.lastFail
		}

		if queue.current().pkg.Name == "" {
			panic("canary - queue is empty, but flow indicates success")
		}

		s.selectAtom(target, queue.current())
		s.vqs = append(s.vqs, queue)
	}
}

func (s *solver) createVersionQueue(target string) (*versionQueue, error) {
	cands := s.candidates(target)

	var prefv *metadata.Package
	if len(cands) > 0 {
		if ip, has := s.installed.Get(cands[0].Name); has && ip.Same(cands[0]) && !s.change[ip.Name] {
			prefv = &cands[0]
		}
	}

	q := newVersionQueue(target, cands, prefv)
	s.traceCheckQueue(q, false)

	if len(cands) == 0 {
		err := &noVersionError{target: target}
		s.recordFailure(target, err)
		return nil, err
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"target":    target,
			"queue":     q,
			"installed": prefv != nil,
		}).Debug("Created versionQueue")
	}

	return q, s.findValidVersion(q)
}

// findValidVersion walks through a versionQueue until it finds a candidate
// that satisfies the constraints held in the current state of the solver.
func (s *solver) findValidVersion(q *versionQueue) error {
	if q.isExhausted() {
		// this case shouldn't be reachable, but panic here as a canary
		panic("version queue is empty, should not happen")
	}

	faillen := len(q.fails)

	for {
		cur := q.current()
		err := s.check(q.target, cur)
		if err == nil {
			// we have a good candidate, can return safely
			return nil
		}

		q.advance(err)
		if q.isExhausted() {
			// Queue is empty, bail with error
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithField("target", q.target).Info("Version queue was completely exhausted, marking target as failed")
			}
			break
		}
	}

	// Return a compound error of all the new errors encountered during this
	// attempt to find a new, valid candidate
	err := &noVersionError{
		target: q.target,
		fails:  q.fails[faillen:],
	}
	s.recordFailure(q.target, err)
	return err
}

// recordFailure captures the contradiction for target together with the
// chain of constraints that led to it, while the selection that produced it
// is still intact.
func (s *solver) recordFailure(target string, err error) {
	s.lastFail = &UnsatisfiableError{
		Target: target,
		Chain:  s.chainTo(target),
		Err:    err,
	}
}

// chainTo walks from target back to the root, following the first
// dependency that was placed on each target along the way.
func (s *solver) chainTo(target string) []Link {
	var chain []Link
	seen := make(map[string]bool)
	for !seen[target] {
		seen[target] = true
		deps := s.sel.getDependenciesOn(target)
		if len(deps) == 0 {
			break
		}

		d := deps[0]
		chain = append(chain, Link{Depender: d.depender.String(), Dependency: d.dep})
		if d.depender.root {
			break
		}

		var has bool
		if target, has = s.sel.targetOf(d.depender.pkg.Name); !has {
			break
		}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// backtrack works backwards from the current failed solution to find the next
// solution to try. Decisions are undone chronologically: the most recent
// decision moves on to its next candidate, and when a queue runs dry its
// frame is popped and the decision before it is revisited.
func (s *solver) backtrack() bool {
	if len(s.vqs) == 0 {
		// nothing to backtrack to
		return false
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"selcount":   len(s.sel.selected),
			"queuecount": len(s.vqs),
			"attempts":   s.attempts,
		}).Debug("Beginning backtracking")
	}

	for len(s.vqs) > 0 {
		// Grab the last versionQueue off the list of queues
		q := s.vqs[len(s.vqs)-1]

		// Undo the decision the queue currently stands for
		d := s.unselectLast()
		s.traceBacktrack(d)

		// Advance the queue past the current candidate, which we know is bad
		q.advance(nil)
		if !q.isExhausted() {
			// Search for another acceptable candidate in its queue
			if s.findValidVersion(q) == nil {
				if s.l.Level >= logrus.InfoLevel {
					s.l.WithFields(logrus.Fields{
						"target":  q.target,
						"package": q.current().pkg.ID(),
					}).Info("Backtracking found valid candidate, attempting next solution")
				}

				// Found one! Put it back on the selected queue and stop
				// backtracking
				s.traceCheckQueue(q, true)
				s.selectAtom(q.target, q.current())
				s.attempts++
				return true
			}
		}

		// No solution found; continue backtracking after popping the queue
		// we just inspected off the list
		s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
	}

	return false
}

func (s *solver) nextUnselected() (string, bool) {
	if len(s.unsel.sl) > 0 {
		return s.unsel.sl[0], true
	}

	return "", false
}

// unselectedComparator puts targets naming an installed package first, so
// that the existing system is settled before anything new is chosen, then
// orders lexically.
func (s *solver) unselectedComparator(i, j int) bool {
	iname, jname := s.unsel.sl[i], s.unsel.sl[j]

	if iname == jname {
		return false
	}

	_, iinst := s.installed.Get(iname)
	_, jinst := s.installed.Get(jname)
	if iinst && !jinst {
		return true
	}
	if !iinst && jinst {
		return false
	}

	return iname < jname
}

// candidates returns, in preference order, every package that could be bound
// to target:
//
//  1. the installed package of that name, then installed providers, unless
//     they are marked for change;
//  2. every version of the package of that name, highest first;
//  3. every other provider, by repository priority, name, and version.
//
// Installed records stand in for store entries of the same name and version.
func (s *solver) candidates(target string) []metadata.Package {
	if c, has := s.cands[target]; has {
		return c
	}

	var out []metadata.Package
	seen := make(map[string]bool)
	add := func(p metadata.Package) {
		if ip, has := s.installed.Get(p.Name); has && ip.Same(p) {
			p = ip.Package
		}
		if !seen[p.ID()] {
			seen[p.ID()] = true
			out = append(out, p)
		}
	}

	var instProviders []metadata.Package
	for _, ip := range s.installed.Packages() {
		if ip.Name == target {
			continue
		}
		for _, pr := range ip.Provides {
			if pr.Name == target {
				instProviders = append(instProviders, ip.Package)
				break
			}
		}
	}

	ip, installed := s.installed.Get(target)
	if installed && !s.change[target] {
		add(ip.Package)
	}
	for _, p := range instProviders {
		if !s.change[p.Name] {
			add(p)
		}
	}

	exact := append([]metadata.Package(nil), s.store.Lookup(target)...)
	if installed {
		exact = append(exact, ip.Package)
	}
	sort.SliceStable(exact, func(i, j int) bool {
		return exact[j].Version.Less(exact[i].Version)
	})
	for _, p := range exact {
		add(p)
	}

	providers := append([]metadata.Package(nil), s.store.Providers(target)...)
	providers = append(providers, instProviders...)
	sort.SliceStable(providers, func(i, j int) bool {
		return s.store.ProviderLess(providers[i], providers[j])
	})
	for _, p := range providers {
		if p.Name != target {
			add(p)
		}
	}

	s.cands[target] = out
	return out
}

func (s *solver) selectRoot() {
	s.traceSelectRoot()
	for _, dep := range s.root.pkg.Depends {
		s.addDependency(s.root, dep)
	}
}

// selectAtom binds target to a, selecting a's package and activating its
// dependencies if it was not already selected.
func (s *solver) selectAtom(target string, a atom) {
	_, already := s.sel.selected[a.pkg.Name]
	s.sel.pushDecision(decision{target: target, a: a, fresh: !already})
	s.sel.bound[target] = a
	s.unsel.remove(target)
	s.traceSelect(target, a, already)

	if already {
		return
	}

	s.sel.selected[a.pkg.Name] = a
	for _, dep := range a.pkg.Depends {
		s.addDependency(a, dep)
	}
}

func (s *solver) addDependency(a atom, dep metadata.Dependency) {
	siblingsAndSelf := append(s.sel.getDependenciesOn(dep.Name), dependency{depender: a, dep: dep})
	s.sel.deps[dep.Name] = siblingsAndSelf

	// add target to unselected queue if this is the first dep on it -
	// otherwise it's already in there, or been bound
	if _, bound := s.sel.bound[dep.Name]; len(siblingsAndSelf) == 1 && !bound {
		heap.Push(s.unsel, dep.Name)
	}
}

// unselectLast undoes the most recent decision.
func (s *solver) unselectLast() decision {
	d := s.sel.popDecision()
	delete(s.sel.bound, d.target)

	if d.fresh {
		delete(s.sel.selected, d.a.pkg.Name)

		deps := d.a.pkg.Depends
		for i := len(deps) - 1; i >= 0; i-- {
			name := deps[i].Name
			siblings := s.sel.getDependenciesOn(name)
			siblings = siblings[:len(siblings)-1]

			// if no siblings, remove from unselected queue
			if len(siblings) == 0 {
				delete(s.sel.deps, name)
				s.unsel.remove(name)
			} else {
				s.sel.deps[name] = siblings
			}
		}
	}

	// The target needs binding again as long as anything still depends on it
	if len(s.sel.getDependenciesOn(d.target)) > 0 {
		heap.Push(s.unsel, d.target)
	}
	return d
}

func (s *solver) selectedNames() []string {
	names := make([]string, 0, len(s.sel.selected))
	for n := range s.sel.selected {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *solver) buildSolution() Solution {
	explicit := make(map[string]bool)
	for _, t := range s.explicit {
		if a, has := s.sel.bound[t]; has {
			explicit[a.pkg.Name] = true
		}
	}

	var pkgs []metadata.InstalledPackage
	for _, name := range s.selectedNames() {
		ip := metadata.InstalledPackage{
			Package: s.sel.selected[name].pkg,
			Reason:  metadata.ReasonDependency,
		}
		if prev, has := s.installed.Get(name); has {
			ip.Reason = prev.Reason
		}
		if explicit[name] {
			ip.Reason = metadata.ReasonExplicit
		}
		pkgs = append(pkgs, ip)
	}

	return newSolution(pkgs, s.HashInputs(), s.attempts)
}
