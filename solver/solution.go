package solver

import (
	"bytes"
	"fmt"

	"github.com/xpackagemanager/xpm/metadata"
)

// Solution is the result of a successful solve: exactly one package per
// selected name, each with the reason it is installed for.
//
// Every dependency of every package in a Solution is satisfied by a package
// in it, and no two of its packages conflict. A Solution is immutable.
type Solution struct {
	pkgs     []metadata.InstalledPackage
	byName   map[string]int
	hd       []byte
	attempts int
}

func newSolution(pkgs []metadata.InstalledPackage, hd []byte, attempts int) Solution {
	byName := make(map[string]int, len(pkgs))
	for k, ip := range pkgs {
		byName[ip.Name] = k
	}
	return Solution{
		pkgs:     pkgs,
		byName:   byName,
		hd:       hd,
		attempts: attempts,
	}
}

// Packages returns the selected packages, sorted by name.
func (r Solution) Packages() []metadata.InstalledPackage {
	return append([]metadata.InstalledPackage(nil), r.pkgs...)
}

// Get returns the package selected under name.
func (r Solution) Get(name string) (metadata.InstalledPackage, bool) {
	k, has := r.byName[name]
	if !has {
		return metadata.InstalledPackage{}, false
	}
	return r.pkgs[k], true
}

// Len returns the number of selected packages.
func (r Solution) Len() int {
	return len(r.pkgs)
}

// InputsDigest returns the digest of the inputs that produced the solution.
func (r Solution) InputsDigest() []byte {
	return r.hd
}

// Attempts returns the number of times the solver backtracked into a new
// candidate before finding the solution.
func (r Solution) Attempts() int {
	return r.attempts
}

// InstalledSet returns the solution as the installed set it describes.
func (r Solution) InstalledSet() metadata.InstalledSet {
	s, err := metadata.NewInstalledSet(r.pkgs...)
	if err != nil {
		// Names are unique by construction.
		panic(fmt.Sprintf("canary - invalid solution: %s", err))
	}
	return s
}

// String renders the solution one package per line. Equal solutions render
// byte-identically.
func (r Solution) String() string {
	var buf bytes.Buffer
	for _, ip := range r.pkgs {
		fmt.Fprintf(&buf, "%s %s (%s)\n", ip.Name, ip.Version, ip.Reason)
	}
	return buf.String()
}
