package plan

import (
	"fmt"
	"strings"

	"github.com/xpackagemanager/xpm/metadata"
)

// Kind identifies what a Step does.
type Kind uint8

const (
	// KindInstall adds a package that was not installed.
	KindInstall Kind = iota
	// KindUpgrade replaces the installed version of a package with another
	// one, higher or lower.
	KindUpgrade
	// KindRemove removes an installed package.
	KindRemove
	// KindGroup runs its members as one indivisible step.
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindUpgrade:
		return "upgrade"
	case KindRemove:
		return "remove"
	case KindGroup:
		return "group"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// rank orders kinds within a set of steps that are free to run.
func (k Kind) rank() int {
	switch k {
	case KindRemove:
		return 0
	case KindUpgrade:
		return 1
	case KindInstall:
		return 2
	}
	return 3
}

// Step is one unit of a Plan.
type Step struct {
	Kind Kind `json:"kind"`

	// Package is the record an Install or Upgrade leaves installed, or the
	// record a Remove takes away.
	Package metadata.InstalledPackage `json:"package"`

	// Previous is the record an Upgrade replaces. It is what reversing the
	// upgrade restores.
	Previous metadata.InstalledPackage `json:"previous,omitempty"`

	// Members are the steps of a Group, in execution order. Members are never
	// groups themselves.
	Members []Step `json:"members,omitempty"`
}

// Name returns the name of the package the step acts on. For a group, it is
// the name of its first member.
func (s Step) Name() string {
	if s.Kind == KindGroup {
		if len(s.Members) == 0 {
			return ""
		}
		return s.Members[0].Name()
	}
	return s.Package.Name
}

// Primitives returns the non-group steps s consists of, in execution order.
func (s Step) Primitives() []Step {
	if s.Kind == KindGroup {
		return append([]Step(nil), s.Members...)
	}
	return []Step{s}
}

// ApplyTo returns the installed set that results from running s on is.
func (s Step) ApplyTo(is metadata.InstalledSet) metadata.InstalledSet {
	switch s.Kind {
	case KindInstall, KindUpgrade:
		return is.With(s.Package)
	case KindRemove:
		return is.Without(s.Package.Name)
	case KindGroup:
		for _, m := range s.Members {
			is = m.ApplyTo(is)
		}
	}
	return is
}

// RevertFrom returns the installed set that results from reversing s on is.
func (s Step) RevertFrom(is metadata.InstalledSet) metadata.InstalledSet {
	switch s.Kind {
	case KindInstall:
		return is.Without(s.Package.Name)
	case KindUpgrade:
		return is.With(s.Previous)
	case KindRemove:
		return is.With(s.Package)
	case KindGroup:
		for i := len(s.Members) - 1; i >= 0; i-- {
			is = s.Members[i].RevertFrom(is)
		}
	}
	return is
}

func (s Step) String() string {
	switch s.Kind {
	case KindUpgrade:
		return fmt.Sprintf("upgrade %s %s -> %s", s.Package.Name, s.Previous.Version, s.Package.Version)
	case KindGroup:
		parts := make([]string, 0, len(s.Members))
		for _, m := range s.Members {
			parts = append(parts, m.String())
		}
		return "group [" + strings.Join(parts, "; ") + "]"
	}
	return fmt.Sprintf("%s %s %s", s.Kind, s.Package.Name, s.Package.Version)
}

func stepLess(a, b Step) bool {
	if a.Kind.rank() != b.Kind.rank() {
		return a.Kind.rank() < b.Kind.rank()
	}
	return a.Name() < b.Name()
}
