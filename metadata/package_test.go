package metadata

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDependency(t *testing.T) {
	for in, want := range map[string]string{
		"b":                     "b",
		"b>=1.0":                "b >=1.0.0",
		"  lib-foo >= 1, < 2  ": "lib-foo >=1.0.0, <2.0.0",
		"x==1.0 || ==2.0":       "x ==1.0.0 || ==2.0.0",
		"y *":                   "y",
	} {
		d, err := ParseDependency(in)
		if err != nil {
			t.Errorf("%q: unexpected error: %s", in, err)
			continue
		}
		if d.String() != want {
			t.Errorf("%q: expected %q, got %q", in, want, d.String())
		}
	}

	for _, bad := range []string{"", ">=1.0", "b >=", "b ==nope"} {
		if _, err := ParseDependency(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestSatisfies(t *testing.T) {
	p := Package{
		Name:    "openssl",
		Version: MustVersion("3.0.2"),
		Provides: []Provide{
			{Name: "libssl", Version: MustVersion("3.0")},
			{Name: "crypto"},
		},
	}

	for dep, want := range map[string]bool{
		"openssl":          true,
		"openssl >=3":      true,
		"openssl <3":       false,
		"libssl":           true,
		"libssl >=3":       true,
		"libssl <3":        false,
		"crypto":           true,
		"crypto >=1":       false,
		"something-else":   false,
		"openssl !=3.0.2":  false,
		"libssl ==3.0.0":   true,
		"openssl 3.0.2+x1": false,
	} {
		if got := p.Satisfies(MustDependency(dep)); got != want {
			t.Errorf("%s satisfies %q: expected %v, got %v", p, dep, want, got)
		}
	}
}

func TestConflictsWith(t *testing.T) {
	a := Package{
		Name:      "sendmail",
		Version:   MustVersion("8.0"),
		Provides:  []Provide{{Name: "mta"}},
		Conflicts: []Dependency{MustDependency("mta")},
	}
	b := Package{
		Name:     "postfix",
		Version:  MustVersion("3.5"),
		Provides: []Provide{{Name: "mta"}},
	}
	a2 := a
	a2.Version = MustVersion("8.1")

	if c, bad := a.ConflictsWith(b); !bad || c.Name != "mta" {
		t.Errorf("expected %s to conflict with %s through mta", a, b)
	}
	if _, bad := b.ConflictsWith(a); bad {
		t.Errorf("%s declares no conflicts", b)
	}
	if _, bad := a.ConflictsWith(a2); bad {
		t.Errorf("a package must not conflict with another version of itself")
	}
}

func TestPackageJSON(t *testing.T) {
	ip := InstalledPackage{
		Package: Package{
			Name:        "a",
			Version:     MustVersion("1.2.3-beta"),
			Depends:     []Dependency{MustDependency("b >=1, <2 || 3")},
			Conflicts:   []Dependency{MustDependency("c")},
			Provides:    []Provide{{Name: "cap", Version: MustVersion("2")}},
			InstallSize: 42,
			Repository:  "core",
		},
		Reason: ReasonDependency,
	}

	b, err := json.Marshal(ip)
	if err != nil {
		t.Fatal(err)
	}
	var got InstalledPackage
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}

	if got.fingerprint() != ip.fingerprint() || got.Reason != ip.Reason {
		t.Errorf("round trip changed the record:\n%s", cmp.Diff(ip.fingerprint(), got.fingerprint()))
	}
}
