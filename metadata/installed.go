package metadata

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Reason records why a package is installed.
type Reason uint8

const (
	// ReasonExplicit marks packages the user asked for by name.
	ReasonExplicit Reason = iota
	// ReasonDependency marks packages pulled in to satisfy another package.
	ReasonDependency
)

func (r Reason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonDependency:
		return "dependency"
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(b []byte) error {
	switch string(b) {
	case "explicit", "":
		*r = ReasonExplicit
	case "dependency":
		*r = ReasonDependency
	default:
		return errors.Errorf("unknown install reason %q", b)
	}
	return nil
}

// InstalledPackage is a package record as held by the installed database.
type InstalledPackage struct {
	Package
	Reason Reason `json:"reason"`
}

// Equal reports whether ip and o are the same record, install reason
// included.
func (ip InstalledPackage) Equal(o InstalledPackage) bool {
	return ip.Reason == o.Reason && ip.fingerprint() == o.fingerprint()
}

// InstalledSet is an immutable snapshot of the installed packages, keyed by
// name. The zero value is an empty set.
type InstalledSet struct {
	m map[string]InstalledPackage
}

// NewInstalledSet builds a set from pkgs. Each name may appear once.
func NewInstalledSet(pkgs ...InstalledPackage) (InstalledSet, error) {
	m := make(map[string]InstalledPackage, len(pkgs))
	for _, ip := range pkgs {
		if ip.Name == "" || ip.Version.IsZero() {
			return InstalledSet{}, errors.New("installed package without name or version")
		}
		if prev, has := m[ip.Name]; has {
			return InstalledSet{}, errors.Errorf("%s installed twice (%s and %s)", ip.Name, prev.Version, ip.Version)
		}
		ip.Package = ip.Package.clone()
		m[ip.Name] = ip
	}
	return InstalledSet{m: m}, nil
}

// MustInstalledSet is like NewInstalledSet but panics on error.
func MustInstalledSet(pkgs ...InstalledPackage) InstalledSet {
	s, err := NewInstalledSet(pkgs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Get returns the installed record for name.
func (s InstalledSet) Get(name string) (InstalledPackage, bool) {
	ip, has := s.m[name]
	return ip, has
}

// Len returns the number of installed packages.
func (s InstalledSet) Len() int {
	return len(s.m)
}

// Names returns the installed names, sorted.
func (s InstalledSet) Names() []string {
	names := make([]string, 0, len(s.m))
	for n := range s.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Packages returns the installed records sorted by name.
func (s InstalledSet) Packages() []InstalledPackage {
	pkgs := make([]InstalledPackage, 0, len(s.m))
	for _, n := range s.Names() {
		pkgs = append(pkgs, s.m[n])
	}
	return pkgs
}

// With returns a copy of s with ip added or replaced.
func (s InstalledSet) With(ip InstalledPackage) InstalledSet {
	m := make(map[string]InstalledPackage, len(s.m)+1)
	for n, p := range s.m {
		m[n] = p
	}
	m[ip.Name] = ip
	return InstalledSet{m: m}
}

// Without returns a copy of s with name removed.
func (s InstalledSet) Without(name string) InstalledSet {
	m := make(map[string]InstalledPackage, len(s.m))
	for n, p := range s.m {
		if n != name {
			m[n] = p
		}
	}
	return InstalledSet{m: m}
}

// Satisfier returns the first installed package, in name order, satisfying d.
func (s InstalledSet) Satisfier(d Dependency) (InstalledPackage, bool) {
	if ip, has := s.m[d.Name]; has && ip.Satisfies(d) {
		return ip, true
	}
	for _, n := range s.Names() {
		if ip := s.m[n]; ip.Satisfies(d) {
			return ip, true
		}
	}
	return InstalledPackage{}, false
}

// Broken lists every dependency of an installed package that nothing in the
// set satisfies, as "name@version: dep" strings, sorted.
func (s InstalledSet) Broken() []string {
	var out []string
	for _, ip := range s.Packages() {
		for _, d := range ip.Depends {
			if _, ok := s.Satisfier(d); !ok {
				out = append(out, ip.ID()+": "+d.String())
			}
		}
	}
	return out
}

// Conflicting lists every pair of installed packages where one declares a
// conflict matching the other, sorted.
func (s InstalledSet) Conflicting() []string {
	var out []string
	pkgs := s.Packages()
	for _, a := range pkgs {
		for _, b := range pkgs {
			if c, bad := a.ConflictsWith(b.Package); bad {
				out = append(out, fmt.Sprintf("%s conflicts with %s (%s)", a.ID(), b.ID(), c))
			}
		}
	}
	return out
}

// Orphans returns the dependency-reason packages that no explicitly installed
// package needs, directly or transitively.
func (s InstalledSet) Orphans() []InstalledPackage {
	needed := make(map[string]bool, len(s.m))
	var stack []string
	for _, n := range s.Names() {
		if s.m[n].Reason == ReasonExplicit {
			needed[n] = true
			stack = append(stack, n)
		}
	}

	for len(stack) > 0 {
		var n string
		n, stack = stack[len(stack)-1], stack[:len(stack)-1]
		for _, d := range s.m[n].Depends {
			dep, ok := s.Satisfier(d)
			if !ok || needed[dep.Name] {
				continue
			}
			needed[dep.Name] = true
			stack = append(stack, dep.Name)
		}
	}

	var orphans []InstalledPackage
	for _, ip := range s.Packages() {
		if !needed[ip.Name] {
			orphans = append(orphans, ip)
		}
	}
	return orphans
}

// Digest returns a sha256 digest of the complete contents of s.
func (s InstalledSet) Digest() []byte {
	h := sha256.New()
	for _, ip := range s.Packages() {
		fmt.Fprintf(h, "%s reason=%s\n", ip.fingerprint(), ip.Reason)
	}
	return h.Sum(nil)
}

// Equal reports whether s and o hold the same records.
func (s InstalledSet) Equal(o InstalledSet) bool {
	return bytes.Equal(s.Digest(), o.Digest())
}

func (s InstalledSet) String() string {
	var parts []string
	for _, ip := range s.Packages() {
		parts = append(parts, ip.ID())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
