package solver

import (
	"bytes"
	"fmt"

	"github.com/xpackagemanager/xpm/metadata"
)

// UnsatisfiableError is returned when no consistent set of packages satisfies
// the request batch. Err holds the contradiction found last; Chain is the
// path of constraints, starting at the request batch, that led the solver to
// the target it could not satisfy.
type UnsatisfiableError struct {
	Target string
	Chain  []Link
	Err    error
}

// Link is one step in a constraint chain: Depender requires Dependency.
type Link struct {
	Depender   string
	Dependency metadata.Dependency
}

func (e *UnsatisfiableError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "unable to satisfy %s", e.Target)
	for _, l := range e.Chain {
		fmt.Fprintf(&buf, "\n\t%s requires %s", l.Depender, l.Dependency)
	}
	if e.Err != nil {
		fmt.Fprintf(&buf, "\n%s", e.Err)
	}
	return buf.String()
}

// BadRequestError indicates a malformed request batch. It is returned before
// any solving is attempted.
type BadRequestError struct {
	Request Request
	Reason  string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid request %q: %s", e.Request, e.Reason)
}

type traceError interface {
	traceString() string
}

type noVersionError struct {
	target string
	fails  []failedVersion
}

func (e *noVersionError) Error() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("No package or provider of %q could be found.", e.target)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Could not find any candidate for %s that met constraints:", e.target)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.a, failString(f.f, false))
	}

	return buf.String()
}

func (e *noVersionError) traceString() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("no candidates for %s", e.target)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no candidate for %s met constraints:", e.target)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n  %s: %s", f.a, failString(f.f, true))
	}

	return buf.String()
}

func failString(err error, trace bool) string {
	if err == nil {
		return "rejected while backtracking"
	}
	if te, ok := err.(traceError); ok && trace {
		return te.traceString()
	}
	return err.Error()
}

// versionNotAllowedFailure indicates a candidate that does not satisfy the
// constraints already placed on its target.
type versionNotAllowedFailure struct {
	goal       atom
	target     string
	failparent []dependency
}

func (e *versionNotAllowedFailure) Error() string {
	if len(e.failparent) == 1 {
		str := "Could not introduce %s for %s, as it is not allowed by constraint %s from %s."
		return fmt.Sprintf(str, e.goal, e.target, e.failparent[0].dep, e.failparent[0].depender)
	}

	var buf bytes.Buffer

	str := "Could not introduce %s for %s, as it is not allowed by constraints from the following packages:\n"
	fmt.Fprintf(&buf, str, e.goal, e.target)

	for _, f := range e.failparent {
		fmt.Fprintf(&buf, "\t%s from %s\n", f.dep, f.depender)
	}

	return buf.String()
}

func (e *versionNotAllowedFailure) traceString() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s not allowed for %s by:", e.goal, e.target)
	for _, f := range e.failparent {
		fmt.Fprintf(&buf, "\n  %s from %s", f.dep, f.depender)
	}

	return buf.String()
}

// disjointConstraintFailure indicates that a dependency of a candidate leaves
// no viable candidate for its target, given the constraints already present.
type disjointConstraintFailure struct {
	goal      dependency
	failsib   []dependency
	nofailsib []dependency
}

func (e *disjointConstraintFailure) Error() string {
	if len(e.failsib) == 0 && len(e.nofailsib) == 0 {
		str := "Could not introduce %s, as it has a dependency on %s, which no available package satisfies"
		return fmt.Sprintf(str, e.goal.depender, e.goal.dep)
	}

	if len(e.failsib) == 1 {
		str := "Could not introduce %s, as it has a dependency on %s, which has no overlap with existing constraint %s from %s"
		return fmt.Sprintf(str, e.goal.depender, e.goal.dep, e.failsib[0].dep, e.failsib[0].depender)
	}

	var buf bytes.Buffer

	var sibs []dependency
	if len(e.failsib) > 1 {
		sibs = e.failsib

		str := "Could not introduce %s, as it has a dependency on %s, which has no overlap with the following existing constraints:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.dep)
	} else {
		sibs = e.nofailsib

		str := "Could not introduce %s, as it has a dependency on %s, which does not overlap with the intersection of existing constraints from other currently selected packages:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.dep)
	}

	for _, c := range sibs {
		fmt.Fprintf(&buf, "\t%s from %s\n", c.dep, c.depender)
	}

	return buf.String()
}

func (e *disjointConstraintFailure) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "dependency %s disjoint with other dependers:", e.goal.dep)
	if len(e.failsib) == 0 && len(e.nofailsib) == 0 {
		buf.WriteString(" nothing available satisfies it")
	}
	for _, f := range e.failsib {
		fmt.Fprintf(&buf, "\n%s from %s (no overlap)", f.dep, f.depender)
	}
	for _, f := range e.nofailsib {
		fmt.Fprintf(&buf, "\n%s from %s (some overlap)", f.dep, f.depender)
	}

	return buf.String()
}

// missingTargetFailure indicates a dependency on a name that no package,
// installed or available, is called or provides.
type missingTargetFailure struct {
	goal dependency
}

func (e *missingTargetFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as it depends on %s, which no known package is named or provides", e.goal.depender, e.goal.dep.Name)
}

func (e *missingTargetFailure) traceString() string {
	return fmt.Sprintf("%s depends on unknown %s", e.goal.depender, e.goal.dep.Name)
}

// constraintNotAllowedFailure indicates that a dependency of a candidate does
// not admit the package already chosen for that dependency's target.
type constraintNotAllowedFailure struct {
	goal dependency
	sel  atom
}

func (e *constraintNotAllowedFailure) Error() string {
	str := "Could not introduce %s, as it has a dependency on %s, which does not allow the currently selected %s"
	return fmt.Sprintf(str, e.goal.depender, e.goal.dep, e.sel)
}

func (e *constraintNotAllowedFailure) traceString() string {
	str := "%s depends on %s, but %s is already selected"
	return fmt.Sprintf(str, e.goal.depender, e.goal.dep, e.sel)
}

// selectedNameFailure indicates a candidate whose package is already selected
// at a different version.
type selectedNameFailure struct {
	goal atom
	sel  atom
}

func (e *selectedNameFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as %s is already selected", e.goal, e.sel)
}

func (e *selectedNameFailure) traceString() string {
	return fmt.Sprintf("%s already selected", e.sel)
}

// conflictFailure indicates a candidate that conflicts with a selected
// package, in either direction.
type conflictFailure struct {
	goal     atom
	other    atom
	decl     metadata.Dependency
	declarer atom
}

func (e *conflictFailure) Error() string {
	str := "Could not introduce %s, as %s declares a conflict with %s, matched by %s"
	victim := e.other
	if e.declarer.pkg.Same(e.other.pkg) {
		victim = e.goal
	}
	return fmt.Sprintf(str, e.goal, e.declarer, e.decl, victim)
}

func (e *conflictFailure) traceString() string {
	return fmt.Sprintf("conflicts with %s (%s declares %s)", e.other, e.declarer, e.decl)
}

// excludedFailure indicates a candidate that the request batch removes.
type excludedFailure struct {
	goal atom
}

func (e *excludedFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as %s is requested to be removed", e.goal, e.goal.pkg.Name)
}

func (e *excludedFailure) traceString() string {
	return fmt.Sprintf("%s is being removed", e.goal.pkg.Name)
}
