package metadata

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Repository is one collaborator-supplied snapshot of package metadata.
// Higher Priority repositories win ties.
type Repository struct {
	ID       string
	Priority int
	Packages []Package
}

// Store is a frozen, indexed view over a set of repositories. It is safe for
// concurrent use; nothing in it changes after NewStore returns.
type Store struct {
	byName    map[string][]Package
	providers map[string][]Package
	prio      map[string]int
	names     nameTrie
	digest    []byte
}

// NewStore deep copies repos into a new Store.
//
// Two entries with the same name and version in one repository are an error.
// When several repositories publish the same name and version, the entry from
// the highest priority repository is kept; equal priorities fall back to the
// lexically smaller repository id.
func NewStore(repos ...Repository) (*Store, error) {
	s := &Store{
		byName:    make(map[string][]Package),
		providers: make(map[string][]Package),
		prio:      make(map[string]int),
		names:     newNameTrie(),
	}

	for _, r := range repos {
		if r.ID == "" {
			return nil, errors.New("repository with empty id")
		}
		if _, has := s.prio[r.ID]; has {
			return nil, errors.Errorf("repository %q supplied more than once", r.ID)
		}
		s.prio[r.ID] = r.Priority
	}

	chosen := make(map[string]Package)
	for _, r := range repos {
		seen := make(map[string]bool, len(r.Packages))
		for _, p := range r.Packages {
			if p.Name == "" || p.Version.IsZero() {
				return nil, errors.Errorf("repository %q: package without name or version", r.ID)
			}
			id := p.ID()
			if seen[id] {
				return nil, errors.Errorf("repository %q lists %s more than once", r.ID, id)
			}
			seen[id] = true

			p = p.clone()
			p.Repository = r.ID
			if prev, has := chosen[id]; has && !s.outranks(p.Repository, prev.Repository) {
				continue
			}
			chosen[id] = p
		}
	}

	for _, p := range chosen {
		s.byName[p.Name] = append(s.byName[p.Name], p)
		provided := make(map[string]bool, len(p.Provides))
		for _, pr := range p.Provides {
			if provided[pr.Name] {
				continue
			}
			provided[pr.Name] = true
			s.providers[pr.Name] = append(s.providers[pr.Name], p)
		}
	}

	for name, pkgs := range s.byName {
		sort.Slice(pkgs, func(i, j int) bool {
			return pkgs[j].Version.Less(pkgs[i].Version)
		})
		s.names.Insert(name, len(pkgs))
	}
	for _, pkgs := range s.providers {
		sort.Slice(pkgs, func(i, j int) bool {
			return s.providerLess(pkgs[i], pkgs[j])
		})
	}

	s.digest = s.computeDigest()
	return s, nil
}

// outranks reports whether repository a beats repository b.
func (s *Store) outranks(a, b string) bool {
	pa, pb := s.prio[a], s.prio[b]
	if pa != pb {
		return pa > pb
	}
	return a < b
}

// providerLess orders providers by repository priority, then name, then
// version, highest version first.
func (s *Store) providerLess(a, b Package) bool {
	if a.Repository != b.Repository {
		pa, pb := s.prio[a.Repository], s.prio[b.Repository]
		if pa != pb {
			return pa > pb
		}
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return b.Version.Less(a.Version)
}

// Lookup returns every known version of the named package, highest first. The
// returned slice must not be modified.
func (s *Store) Lookup(name string) []Package {
	return s.byName[name]
}

// Find returns the named package at exactly version v.
func (s *Store) Find(name string, v Version) (Package, bool) {
	for _, p := range s.byName[name] {
		if p.Version.Equal(v) {
			return p, true
		}
	}
	return Package{}, false
}

// Providers returns every package providing the capability, ordered by
// repository priority (highest first), then package name, then version
// (highest first). The returned slice must not be modified.
func (s *Store) Providers(capability string) []Package {
	return s.providers[capability]
}

// ProviderLess exposes the provider ordering so that packages from outside
// the store can be merged into it consistently.
func (s *Store) ProviderLess(a, b Package) bool {
	return s.providerLess(a, b)
}

// Priority returns the priority of a repository; unknown repositories rank 0.
func (s *Store) Priority(repo string) int {
	return s.prio[repo]
}

// Names returns all package names, sorted.
func (s *Store) Names() []string {
	return s.names.WalkPrefix("")
}

// Search returns the names of all packages starting with prefix, sorted.
func (s *Store) Search(prefix string) []string {
	return s.names.WalkPrefix(prefix)
}

// Len returns the number of package versions in the store.
func (s *Store) Len() int {
	var n int
	for _, pkgs := range s.byName {
		n += len(pkgs)
	}
	return n
}

// Digest returns a sha256 digest of the store's complete contents.
func (s *Store) Digest() []byte {
	return s.digest
}

func (s *Store) computeDigest() []byte {
	h := sha256.New()

	repos := make([]string, 0, len(s.prio))
	for id := range s.prio {
		repos = append(repos, id)
	}
	sort.Strings(repos)
	for _, id := range repos {
		fmt.Fprintf(h, "repo %s %d\n", id, s.prio[id])
	}

	for _, name := range s.Names() {
		for _, p := range s.byName[name] {
			fmt.Fprintln(h, p.fingerprint())
		}
	}
	return h.Sum(nil)
}
