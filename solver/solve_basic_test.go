package solver

import (
	"strings"

	"github.com/xpackagemanager/xpm/metadata"
)

// mkpkg builds a package from a "name version" string followed by constraint
// strings. Plain strings are dependencies; a leading "!" makes a conflict and
// a leading "+" a provided capability ("+cap" or "+cap=1.0").
func mkpkg(info string, specs ...string) metadata.Package {
	parts := strings.Fields(info)
	if len(parts) != 2 {
		panic("malformed package info " + info)
	}

	p := metadata.Package{
		Name:    parts[0],
		Version: metadata.MustVersion(parts[1]),
	}
	for _, s := range specs {
		switch {
		case strings.HasPrefix(s, "!"):
			p.Conflicts = append(p.Conflicts, metadata.MustDependency(s[1:]))
		case strings.HasPrefix(s, "+"):
			pr, err := metadata.ParseProvide(s[1:])
			if err != nil {
				panic(err)
			}
			p.Provides = append(p.Provides, pr)
		default:
			p.Depends = append(p.Depends, metadata.MustDependency(s))
		}
	}
	return p
}

func install(dep string) Request {
	d := metadata.MustDependency(dep)
	return Install(d.Name, d.Range)
}

func upgrade(dep string) Request {
	d := metadata.MustDependency(dep)
	return Upgrade(d.Name, d.Range)
}

type basicFixture struct {
	// name of this fixture datum
	n string
	// available packages
	ds []metadata.Package
	// installed packages, as "name version" of an entry in ds; a leading "~"
	// marks a dependency-reason install
	installed []string
	// installed packages no longer available anywhere
	gone []metadata.Package
	// the request batch
	reqs []Request
	// expected solution, as "name version" strings
	r []string
	// solve failure expected, if any
	fail bool
	// max attempts the solver should need to find solution. 0 means no limit
	maxAttempts int
}

var basicFixtures = map[string]basicFixture{
	"install picks highest satisfying version": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b >=1.0"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
		},
		reqs: []Request{install("a")},
		r:    []string{"a 1.0.0", "b 2.0.0"},
	},
	"installed package re-requested pulls in missing dependency": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b >=1.0"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
		},
		installed: []string{"a 1.0.0"},
		reqs:      []Request{install("a")},
		r:         []string{"a 1.0.0", "b 2.0.0"},
	},
	"mutually exclusive cycle is unsatisfiable": {
		ds: []metadata.Package{
			mkpkg("x 1.0", "y ==1.0"),
			mkpkg("y 1.0", "x ==2.0"),
		},
		reqs: []Request{install("x")},
		fail: true,
	},
	"satisfiable cycle": {
		ds: []metadata.Package{
			mkpkg("x 1.0", "y ==1.0"),
			mkpkg("y 1.0", "x ==1.0"),
		},
		reqs: []Request{install("x")},
		r:    []string{"x 1.0.0", "y 1.0.0"},
	},
	"installed version is preferred": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b >=1.0"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
			mkpkg("c 1.0.0"),
		},
		installed: []string{"a 1.0.0", "~b 1.0.0"},
		reqs:      []Request{install("c")},
		r:         []string{"a 1.0.0", "b 1.0.0", "c 1.0.0"},
	},
	"installed version dropped when a request excludes it": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
			mkpkg("c 1.0.0", "b >=2"),
		},
		installed: []string{"a 1.0.0", "b 1.0.0"},
		reqs:      []Request{install("c")},
		r:         []string{"a 1.0.0", "b 2.0.0", "c 1.0.0"},
	},
	"upgrade moves to highest": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b >=1.0"),
			mkpkg("b 1.0.0"),
			mkpkg("b 1.5.0"),
			mkpkg("b 2.0.0"),
		},
		installed: []string{"a 1.0.0", "~b 1.0.0"},
		reqs:      []Request{upgrade("b <2")},
		r:         []string{"a 1.0.0", "b 1.5.0"},
	},
	"upgrade all": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0"),
			mkpkg("a 2.0.0", "b >=2"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
		},
		installed: []string{"a 1.0.0", "b 1.0.0"},
		reqs:      []Request{UpgradeAll()},
		r:         []string{"a 2.0.0", "b 2.0.0"},
	},
	"upgrade keeps installed version when nothing newer fits": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b <2"),
			mkpkg("b 1.0.0"),
			mkpkg("b 2.0.0"),
		},
		installed: []string{"a 1.0.0", "~b 1.0.0"},
		reqs:      []Request{upgrade("b")},
		r:         []string{"a 1.0.0", "b 1.0.0"},
	},
	"backtrack past disjoint constraint": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b", "c"),
			mkpkg("b 1.0.0", "d ==1"),
			mkpkg("b 2.0.0", "d ==2"),
			mkpkg("c 1.0.0", "d ==1"),
			mkpkg("d 1.0.0"),
			mkpkg("d 2.0.0"),
		},
		reqs:        []Request{install("a")},
		r:           []string{"a 1.0.0", "b 1.0.0", "c 1.0.0", "d 1.0.0"},
		maxAttempts: 1,
	},
	"backtrack through several versions": {
		ds: []metadata.Package{
			mkpkg("a 1.0.0", "b", "c"),
			mkpkg("b 1.0.0", "x ==1"),
			mkpkg("b 2.0.0", "x ==2"),
			mkpkg("b 3.0.0", "x ==3"),
			mkpkg("c 1.0.0", "z"),
			mkpkg("z 1.0.0", "x ==1"),
			mkpkg("x 1.0.0"),
			mkpkg("x 2.0.0"),
			mkpkg("x 3.0.0"),
		},
		reqs:        []Request{install("a")},
		r:           []string{"a 1.0.0", "b 1.0.0", "c 1.0.0", "x 1.0.0", "z 1.0.0"},
		maxAttempts: 4,
	},
	"capability resolved to first provider by name": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "mta"),
			mkpkg("postfix 3.0", "+mta"),
			mkpkg("exim 4.0", "+mta"),
		},
		reqs: []Request{install("app")},
		r:    []string{"app 1.0.0", "exim 4.0.0"},
	},
	"installed provider is kept": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "mta"),
			mkpkg("postfix 3.0", "+mta"),
			mkpkg("exim 4.0", "+mta"),
			mkpkg("tool 1.0"),
		},
		installed: []string{"app 1.0", "~postfix 3.0"},
		reqs:      []Request{install("tool")},
		r:         []string{"app 1.0.0", "postfix 3.0.0", "tool 1.0.0"},
	},
	"installed provider preferred over a package named like the capability": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "java"),
			mkpkg("java 21.0"),
			mkpkg("openjdk 17.0", "+java"),
		},
		installed: []string{"app 1.0", "~openjdk 17.0"},
		r:         []string{"app 1.0.0", "openjdk 17.0.0"},
	},
	"conflict steers provider choice": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "mta", "!exim"),
			mkpkg("postfix 3.0", "+mta"),
			mkpkg("exim 4.0", "+mta"),
		},
		reqs: []Request{install("app")},
		r:    []string{"app 1.0.0", "postfix 3.0.0"},
	},
	"conflict declared against an installed package": {
		ds: []metadata.Package{
			mkpkg("x 1.0"),
			mkpkg("y 1.0"),
			mkpkg("y 2.0", "!x"),
		},
		installed: []string{"x 1.0"},
		reqs:      []Request{install("y")},
		r:         []string{"x 1.0.0", "y 1.0.0"},
	},
	"conflict declared by an installed package": {
		ds: []metadata.Package{
			mkpkg("x 1.0", "!y >=2"),
			mkpkg("y 1.0"),
			mkpkg("y 2.0"),
		},
		installed: []string{"x 1.0"},
		reqs:      []Request{install("y")},
		r:         []string{"x 1.0.0", "y 1.0.0"},
	},
	"unavoidable conflict": {
		ds: []metadata.Package{
			mkpkg("x 1.0", "!y"),
			mkpkg("y 1.0"),
		},
		installed: []string{"x 1.0"},
		reqs:      []Request{install("y")},
		fail:      true,
	},
	"versioned capability": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "libgl >=2"),
			mkpkg("mesa 1.0", "+libgl=1.0"),
			mkpkg("nvidia 1.0", "+libgl=3.0"),
		},
		reqs: []Request{install("app")},
		r:    []string{"app 1.0.0", "nvidia 1.0.0"},
	},
	"unversioned capability does not satisfy a ranged dependency": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "libgl >=2"),
			mkpkg("mesa 1.0", "+libgl"),
		},
		reqs: []Request{install("app")},
		fail: true,
	},
	"install a capability": {
		ds: []metadata.Package{
			mkpkg("postfix 3.0", "+mta"),
			mkpkg("exim 4.0", "+mta"),
		},
		reqs: []Request{install("mta")},
		r:    []string{"exim 4.0.0"},
	},
	"remove with remaining dependent fails": {
		ds: []metadata.Package{
			mkpkg("p 1.0"),
			mkpkg("q 1.0", "p"),
		},
		installed: []string{"~p 1.0", "q 1.0"},
		reqs:      []Request{Remove("p")},
		fail:      true,
	},
	"remove with alternative provider": {
		ds: []metadata.Package{
			mkpkg("app 1.0", "mta"),
			mkpkg("postfix 3.0", "+mta"),
			mkpkg("exim 4.0", "+mta"),
		},
		installed: []string{"app 1.0", "~postfix 3.0"},
		reqs:      []Request{Remove("postfix")},
		r:         []string{"app 1.0.0", "exim 4.0.0"},
	},
	"remove leaves dependencies in place": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "b"),
			mkpkg("b 1.0"),
		},
		installed: []string{"a 1.0", "~b 1.0"},
		reqs:      []Request{Remove("a")},
		r:         []string{"b 1.0.0"},
	},
	"remove orphans": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "b"),
			mkpkg("b 1.0", "c"),
			mkpkg("c 1.0"),
			mkpkg("d 1.0"),
		},
		installed: []string{"a 1.0", "~b 1.0", "~c 1.0", "~d 1.0"},
		reqs:      []Request{RemoveOrphans()},
		r:         []string{"a 1.0.0", "b 1.0.0", "c 1.0.0"},
	},
	"remove and clean up": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "b"),
			mkpkg("b 1.0"),
		},
		installed: []string{"a 1.0", "~b 1.0"},
		reqs:      []Request{Remove("a"), RemoveOrphans()},
		r:         []string{},
	},
	"missing dependency": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "nope"),
		},
		reqs: []Request{install("a")},
		fail: true,
	},
	"unknown package": {
		ds:   []metadata.Package{mkpkg("a 1.0")},
		reqs: []Request{install("zzz")},
		fail: true,
	},
	"pre-release sorts below its release": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "b <2"),
			mkpkg("b 1.9.0"),
			mkpkg("b 2.0.0-rc.1"),
			mkpkg("b 2.0.0"),
		},
		reqs: []Request{install("a")},
		r:    []string{"a 1.0.0", "b 2.0.0-rc.1"},
	},
	"installed version gone from repositories is kept": {
		ds: []metadata.Package{
			mkpkg("a 2.0"),
			mkpkg("b 1.0"),
		},
		gone: []metadata.Package{mkpkg("a 1.0")},
		reqs: []Request{install("b")},
		r:    []string{"a 1.0.0", "b 1.0.0"},
	},
	"empty request batch is a no-op": {
		ds: []metadata.Package{
			mkpkg("a 1.0", "b >=1", "+cap"),
			mkpkg("a 2.0", "b >=1", "+cap"),
			mkpkg("b 1.0"),
			mkpkg("b 2.0"),
			mkpkg("c 1.0", "cap"),
		},
		installed: []string{"a 1.0", "~b 1.0", "c 1.0"},
		r:         []string{"a 1.0.0", "b 1.0.0", "c 1.0.0"},
	},
	"self conflict through capability": {
		ds: []metadata.Package{
			mkpkg("sendmail 8.0", "+mta", "!mta"),
			mkpkg("postfix 3.0", "+mta", "!mta"),
			mkpkg("app 1.0", "mta"),
		},
		installed: []string{"~sendmail 8.0"},
		reqs:      []Request{install("postfix"), install("app")},
		fail:      true,
	},
	"replace conflicting provider": {
		ds: []metadata.Package{
			mkpkg("sendmail 8.0", "+mta", "!mta"),
			mkpkg("postfix 3.0", "+mta", "!mta"),
			mkpkg("app 1.0", "mta"),
		},
		installed: []string{"app 1.0", "~sendmail 8.0"},
		reqs:      []Request{install("postfix"), Remove("sendmail")},
		r:         []string{"app 1.0.0", "postfix 3.0.0"},
	},
}
