package metadata

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Dependency names a package or capability and the range of versions that
// satisfy it. The same shape is used for conflict declarations.
type Dependency struct {
	Name  string
	Range Range
}

// ParseDependency parses forms such as "b", "b>=1.0" or "b >=1.0, <2 || 3.1".
func ParseDependency(s string) (Dependency, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("<>=!*,|", r)
	})
	if i == 0 || s == "" {
		return Dependency{}, errors.Errorf("invalid dependency %q: missing name", s)
	}
	if i < 0 {
		return Dependency{Name: s, Range: Any()}, nil
	}

	r, err := ParseRange(s[i:])
	if err != nil {
		return Dependency{}, errors.Wrapf(err, "invalid dependency %q", s)
	}
	return Dependency{Name: s[:i], Range: r}, nil
}

// MustDependency is like ParseDependency but panics on error.
func MustDependency(s string) Dependency {
	d, err := ParseDependency(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dependency) String() string {
	if d.Range.IsAny() {
		return d.Name
	}
	return d.Name + " " + d.Range.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Dependency) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dependency) UnmarshalText(b []byte) error {
	nd, err := ParseDependency(string(b))
	if err != nil {
		return err
	}
	*d = nd
	return nil
}

// Provide is a capability offered by a package, optionally at a version.
type Provide struct {
	Name    string
	Version Version
}

// ParseProvide parses "name" or "name=version".
func ParseProvide(s string) (Provide, error) {
	s = strings.TrimSpace(s)
	name, ver := s, ""
	if i := strings.IndexByte(s, '='); i >= 0 {
		name, ver = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	if name == "" {
		return Provide{}, errors.Errorf("invalid provide %q: missing name", s)
	}

	p := Provide{Name: name}
	if ver != "" {
		v, err := NewVersion(ver)
		if err != nil {
			return Provide{}, errors.Wrapf(err, "invalid provide %q", s)
		}
		p.Version = v
	}
	return p, nil
}

func (p Provide) String() string {
	if p.Version.IsZero() {
		return p.Name
	}
	return p.Name + "=" + p.Version.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Provide) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provide) UnmarshalText(b []byte) error {
	np, err := ParseProvide(string(b))
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// Package is one version of one package as published by a repository.
type Package struct {
	Name        string       `json:"name"`
	Version     Version      `json:"version"`
	Depends     []Dependency `json:"depends,omitempty"`
	Conflicts   []Dependency `json:"conflicts,omitempty"`
	Provides    []Provide    `json:"provides,omitempty"`
	InstallSize uint64       `json:"install_size,omitempty"`
	Repository  string       `json:"repository,omitempty"`
	Description string       `json:"description,omitempty"`
}

// ID returns the "name@version" identity of the package.
func (p Package) ID() string {
	return p.Name + "@" + p.Version.String()
}

func (p Package) String() string {
	return p.Name + " " + p.Version.String()
}

// Satisfies reports whether p fulfils d, either by name and version or by
// providing the capability d names. An unversioned provide only satisfies an
// unconstrained dependency.
func (p Package) Satisfies(d Dependency) bool {
	if p.Name == d.Name && d.Range.Matches(p.Version) {
		return true
	}
	for _, pr := range p.Provides {
		if pr.Name != d.Name {
			continue
		}
		if d.Range.IsAny() {
			return true
		}
		if !pr.Version.IsZero() && d.Range.Matches(pr.Version) {
			return true
		}
	}
	return false
}

// ConflictsWith reports whether one of p's conflict declarations matches q.
// A package never conflicts with another version of itself; such
// declarations are the usual way of saying "replaces whatever else provides
// this".
func (p Package) ConflictsWith(q Package) (Dependency, bool) {
	if p.Name == q.Name {
		return Dependency{}, false
	}
	for _, c := range p.Conflicts {
		if q.Satisfies(c) {
			return c, true
		}
	}
	return Dependency{}, false
}

// Same reports whether p and q are the same name and version.
func (p Package) Same(q Package) bool {
	return p.Name == q.Name && p.Version.Equal(q.Version)
}

func (p Package) clone() Package {
	c := p
	c.Depends = append([]Dependency(nil), p.Depends...)
	c.Conflicts = append([]Dependency(nil), p.Conflicts...)
	c.Provides = append([]Provide(nil), p.Provides...)
	return c
}

// fingerprint is a complete, stable rendering of p used for digests and
// equality.
func (p Package) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s size=%d repo=%s", p.Name, p.Version, p.InstallSize, p.Repository)
	for _, d := range p.Depends {
		fmt.Fprintf(&b, " dep=%s", d)
	}
	for _, c := range p.Conflicts {
		fmt.Fprintf(&b, " conflict=%s", c)
	}
	for _, pr := range p.Provides {
		fmt.Fprintf(&b, " provide=%s", pr)
	}
	return b.String()
}
