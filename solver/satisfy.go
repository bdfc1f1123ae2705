package solver

import (
	"github.com/sirupsen/logrus"
	"github.com/xpackagemanager/xpm/metadata"
)

// check performs all constraint checks on a candidate for a target. It
// determines if binding the target to the atom would result in a state where
// all solver requirements are still satisfied.
func (s *solver) check(target string, a atom) error {
	if a.root || a.pkg.Name == "" {
		// This shouldn't be able to happen, but if it does, it unequivocally
		// indicates a logical bug somewhere, so blowing up is preferable
		panic("canary - checking empty atom")
	}

	if err := s.checkNotExcluded(a); err != nil {
		return err
	}
	if err := s.checkAtomAllowable(target, a); err != nil {
		return err
	}

	if sel, has := s.sel.selected[a.pkg.Name]; has {
		if !sel.pkg.Same(a.pkg) {
			err := &selectedNameFailure{goal: a, sel: sel}
			s.traceInfo(err)
			return err
		}
		// Already selected for another target; its own constraints are
		// already in effect.
		return nil
	}

	if err := s.checkConflicts(a); err != nil {
		return err
	}

	for _, dep := range a.pkg.Depends {
		if err := s.checkDepsConstraintsAllowable(a, dep); err != nil {
			return err
		}
		if err := s.checkDepsDisallowsSelected(a, dep); err != nil {
			return err
		}
	}

	return nil
}

// checkNotExcluded ensures the atom's package is not being removed.
func (s *solver) checkNotExcluded(a atom) error {
	if !s.excluded[a.pkg.Name] {
		return nil
	}

	err := &excludedFailure{goal: a}
	s.traceInfo(err)
	return err
}

// checkAtomAllowable ensures that an atom itself is acceptable with respect to
// the constraints established by the current solution.
func (s *solver) checkAtomAllowable(target string, a atom) error {
	var failparent []dependency
	for _, dep := range s.sel.getDependenciesOn(target) {
		if !a.pkg.Satisfies(dep.dep) {
			failparent = append(failparent, dep)
		}
	}
	if len(failparent) == 0 {
		return nil
	}

	err := &versionNotAllowedFailure{
		goal:       a,
		target:     target,
		failparent: failparent,
	}
	s.traceInfo(err)
	return err
}

// checkConflicts ensures that the atom declares no conflict matching a
// selected package, and that no selected package declares one matching the
// atom.
func (s *solver) checkConflicts(a atom) error {
	for _, name := range s.selectedNames() {
		other := s.sel.selected[name]
		if c, bad := a.pkg.ConflictsWith(other.pkg); bad {
			err := &conflictFailure{goal: a, other: other, decl: c, declarer: a}
			s.traceInfo(err)
			return err
		}
		if c, bad := other.pkg.ConflictsWith(a.pkg); bad {
			err := &conflictFailure{goal: a, other: other, decl: c, declarer: other}
			s.traceInfo(err)
			return err
		}
	}
	return nil
}

// checkDepsConstraintsAllowable checks that a dependency of an atom, on a
// target not yet bound, still leaves at least one candidate for that target
// admitted by every constraint on it.
func (s *solver) checkDepsConstraintsAllowable(a atom, dep metadata.Dependency) error {
	if _, bound := s.sel.bound[dep.Name]; bound {
		return nil
	}

	siblings := s.sel.getDependenciesOn(dep.Name)
	cands := s.candidates(dep.Name)
	for _, c := range cands {
		if s.viable(a, c, dep, siblings) {
			return nil
		}
	}

	goal := dependency{depender: a, dep: dep}
	if len(cands) == 0 {
		err := &missingTargetFailure{goal: goal}
		s.traceInfo(err)
		return err
	}

	// No admissible candidates - visit all siblings and identify the
	// disagreement(s)
	var failsib []dependency
	var nofailsib []dependency
	for _, sibling := range siblings {
		overlap := false
		for _, c := range cands {
			if c.Satisfies(dep) && c.Satisfies(sibling.dep) {
				overlap = true
				break
			}
		}
		if overlap {
			nofailsib = append(nofailsib, sibling)
		} else {
			failsib = append(failsib, sibling)
		}
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":    a.pkg.Name,
			"version": a.pkg.Version,
			"depname": dep.Name,
			"dep":     dep.String(),
		}).Debug("Candidate cannot be added; its dependency leaves no viable candidate")
	}

	err := &disjointConstraintFailure{
		goal:      goal,
		failsib:   failsib,
		nofailsib: nofailsib,
	}
	s.traceInfo(err)
	return err
}

// viable reports whether c could later be bound to dep's target, were a
// selected now.
func (s *solver) viable(a atom, c metadata.Package, dep metadata.Dependency, siblings []dependency) bool {
	if !c.Satisfies(dep) || s.excluded[c.Name] {
		return false
	}
	if c.Name == a.pkg.Name && !c.Same(a.pkg) {
		return false
	}
	if sel, has := s.sel.selected[c.Name]; has && !sel.pkg.Same(c) {
		return false
	}
	for _, sib := range siblings {
		if !c.Satisfies(sib.dep) {
			return false
		}
	}
	return true
}

// checkDepsDisallowsSelected ensures that an atom's constraint on a target is
// not incompatible with the package that target is already bound to.
func (s *solver) checkDepsDisallowsSelected(a atom, dep metadata.Dependency) error {
	bound, has := s.sel.bound[dep.Name]
	if !has || bound.pkg.Satisfies(dep) {
		return nil
	}

	err := &constraintNotAllowedFailure{
		goal: dependency{depender: a, dep: dep},
		sel:  bound,
	}
	s.traceInfo(err)
	return err
}
