package solver

import (
	"fmt"

	"github.com/xpackagemanager/xpm/metadata"
)

// RequestKind enumerates the changes a caller can ask for.
type RequestKind uint8

const (
	// KindInstall asks for a package, or capability, to be present.
	KindInstall RequestKind = iota
	// KindRemove asks for a package to be absent.
	KindRemove
	// KindUpgrade asks for an installed package to move to its best version.
	KindUpgrade
	// KindUpgradeAll asks for every installed package to move to its best
	// version.
	KindUpgradeAll
	// KindRemoveOrphans drops the requirement to keep dependency-reason
	// packages that nothing else needs.
	KindRemoveOrphans
)

func (k RequestKind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindRemove:
		return "remove"
	case KindUpgrade:
		return "upgrade"
	case KindUpgradeAll:
		return "upgrade-all"
	case KindRemoveOrphans:
		return "remove-orphans"
	}
	return fmt.Sprintf("RequestKind(%d)", uint8(k))
}

// Request is a single user-requested change. A batch of requests forms one
// resolution problem.
type Request struct {
	Kind  RequestKind
	Name  string
	Range metadata.Range
}

// Install requests name, restricted to r. Pass metadata.Any() for no
// restriction.
func Install(name string, r metadata.Range) Request {
	return Request{Kind: KindInstall, Name: name, Range: r}
}

// Remove requests that name not be installed.
func Remove(name string) Request {
	return Request{Kind: KindRemove, Name: name, Range: metadata.Any()}
}

// Upgrade requests that the installed package name move to the highest
// version admitted by r.
func Upgrade(name string, r metadata.Range) Request {
	return Request{Kind: KindUpgrade, Name: name, Range: r}
}

// UpgradeAll requests that every installed package move to its highest
// admissible version.
func UpgradeAll() Request {
	return Request{Kind: KindUpgradeAll, Range: metadata.Any()}
}

// RemoveOrphans lets the solver drop dependency-reason packages that nothing
// selected needs any longer.
func RemoveOrphans() Request {
	return Request{Kind: KindRemoveOrphans, Range: metadata.Any()}
}

func (r Request) String() string {
	switch r.Kind {
	case KindUpgradeAll, KindRemoveOrphans:
		return r.Kind.String()
	case KindRemove:
		return fmt.Sprintf("%s %s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s %s", r.Kind, metadata.Dependency{Name: r.Name, Range: r.Range})
}

func (r Request) dep() metadata.Dependency {
	return metadata.Dependency{Name: r.Name, Range: r.Range}
}
