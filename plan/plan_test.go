package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/solver"
)

// mkip builds an installed package from a "name version" string, optionally
// prefixed with "~" for a dependency-reason install, followed by constraint
// strings: plain for dependencies, "!" for conflicts and "+" for provides.
func mkip(info string, specs ...string) metadata.InstalledPackage {
	ip := metadata.InstalledPackage{Reason: metadata.ReasonExplicit}
	if strings.HasPrefix(info, "~") {
		ip.Reason = metadata.ReasonDependency
		info = info[1:]
	}

	parts := strings.Fields(info)
	ip.Name = parts[0]
	ip.Version = metadata.MustVersion(parts[1])
	for _, s := range specs {
		switch {
		case strings.HasPrefix(s, "!"):
			ip.Conflicts = append(ip.Conflicts, metadata.MustDependency(s[1:]))
		case strings.HasPrefix(s, "+"):
			pr, err := metadata.ParseProvide(s[1:])
			if err != nil {
				panic(err)
			}
			ip.Provides = append(ip.Provides, pr)
		default:
			ip.Depends = append(ip.Depends, metadata.MustDependency(s))
		}
	}
	return ip
}

func set(pkgs ...metadata.InstalledPackage) metadata.InstalledSet {
	return metadata.MustInstalledSet(pkgs...)
}

type planFixture struct {
	installed metadata.InstalledSet
	target    metadata.InstalledSet
	// expected plan, one step per line as rendered by Plan.String
	steps []string
}

var planFixtures = map[string]planFixture{
	"empty": {
		installed: set(mkip("a 1.0")),
		target:    set(mkip("a 1.0")),
	},
	"dependencies before dependents": {
		target: set(
			mkip("a 1.0", "b"),
			mkip("~b 1.0", "c"),
			mkip("~c 1.0"),
		),
		steps: []string{
			"install c 1.0.0",
			"install b 1.0.0",
			"install a 1.0.0",
		},
	},
	"dependents removed before dependencies": {
		installed: set(
			mkip("~p 1.0"),
			mkip("q 1.0", "p"),
		),
		target: set(),
		steps: []string{
			"remove q 1.0.0",
			"remove p 1.0.0",
		},
	},
	"removals go first": {
		installed: set(mkip("x 1.0"), mkip("y 1.0")),
		target:    set(mkip("a 1.0"), mkip("y 1.0")),
		steps: []string{
			"remove x 1.0.0",
			"install a 1.0.0",
		},
	},
	"upgrade dependency first": {
		installed: set(
			mkip("app 1.0", "lib >=1"),
			mkip("~lib 1.0"),
		),
		target: set(
			mkip("app 2.0", "lib >=2"),
			mkip("~lib 2.0"),
		),
		steps: []string{
			"upgrade lib 1.0.0 -> 2.0.0",
			"upgrade app 1.0.0 -> 2.0.0",
		},
	},
	"lockstep upgrade is grouped": {
		installed: set(
			mkip("a 1.0", "b ==1"),
			mkip("b 1.0", "a ==1"),
		),
		target: set(
			mkip("a 2.0", "b ==2"),
			mkip("b 2.0", "a ==2"),
		),
		steps: []string{
			"group [upgrade a 1.0.0 -> 2.0.0; upgrade b 1.0.0 -> 2.0.0]",
		},
	},
	"new dependency cycle is grouped": {
		target: set(
			mkip("x 1.0", "y"),
			mkip("~y 1.0", "x"),
		),
		steps: []string{
			"group [install x 1.0.0; install y 1.0.0]",
		},
	},
	"conflicting provider is swapped atomically": {
		installed: set(
			mkip("app 1.0", "mta"),
			mkip("~sendmail 8.0", "+mta", "!mta"),
		),
		target: set(
			mkip("app 1.0", "mta"),
			mkip("postfix 3.0", "+mta", "!mta"),
		),
		steps: []string{
			"group [remove sendmail 8.0.0; install postfix 3.0.0]",
		},
	},
	"conflict orders upgrades": {
		installed: set(
			mkip("a 1.0"),
			mkip("b 1.0"),
		),
		target: set(
			mkip("a 2.0", "!b <2"),
			mkip("b 2.0"),
		),
		steps: []string{
			"upgrade b 1.0.0 -> 2.0.0",
			"upgrade a 1.0.0 -> 2.0.0",
		},
	},
	"conflict held by the old version orders upgrades": {
		installed: set(
			mkip("a 1.0"),
			mkip("b 1.0", "!a >=2"),
		),
		target: set(
			mkip("a 2.0"),
			mkip("b 2.0"),
		),
		steps: []string{
			"upgrade b 1.0.0 -> 2.0.0",
			"upgrade a 1.0.0 -> 2.0.0",
		},
	},
	"provider replaced before the old one goes": {
		installed: set(
			mkip("app 1.0", "java"),
			mkip("~openjdk 17.0", "+java"),
		),
		target: set(
			mkip("app 1.0", "java"),
			mkip("~zulu 21.0", "+java"),
		),
		steps: []string{
			"install zulu 21.0.0",
			"remove openjdk 17.0.0",
		},
	},
	"reason change is a mark": {
		installed: set(mkip("~a 1.0")),
		target:    set(mkip("a 1.0")),
		steps: []string{
			"mark a as explicit",
		},
	},
	"existing breakage is tolerated": {
		installed: set(mkip("a 1.0", "b")),
		target: set(
			mkip("a 1.0", "b"),
			mkip("~b 1.0"),
		),
		steps: []string{
			"install b 1.0.0",
		},
	},
}

func TestPlanFixtures(t *testing.T) {
	for n, fix := range planFixtures {
		fix := fix
		t.Run(n, func(t *testing.T) {
			p, err := Between(fix.installed, fix.target)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}

			var got []string
			if s := strings.TrimSpace(p.String()); s != "" {
				for _, line := range strings.Split(s, "\n") {
					// strip the position prefix
					if i := strings.Index(line, ". "); i > 0 && !strings.HasPrefix(line, "mark") {
						line = line[i+2:]
					}
					got = append(got, line)
				}
			}
			if diff := cmp.Diff(fix.steps, got); diff != "" {
				t.Errorf("plan mismatch (-want +got):\n%s", diff)
			}

			if after := p.Apply(fix.installed); !after.Equal(fix.target) {
				t.Errorf("replaying plan gives %s, want %s", after, fix.target)
			}
			if err := p.Verify(fix.installed); err != nil {
				t.Errorf("plan fails verification: %s", err)
			}
			if p.Empty() != (len(fix.steps) == 0) {
				t.Errorf("Empty() = %v with %d expected steps", p.Empty(), len(fix.steps))
			}
		})
	}
}

func TestPlanRejectsInconsistentTarget(t *testing.T) {
	installed := set(
		mkip("~p 1.0"),
		mkip("q 1.0", "p"),
	)

	cases := map[string]metadata.InstalledSet{
		"remove a dependency of a kept package": set(mkip("q 1.0", "p")),
		"conflicting pair": set(
			mkip("~p 1.0"),
			mkip("q 1.0", "p"),
			mkip("r 1.0", "!p"),
		),
	}

	for n, target := range cases {
		_, err := Between(installed, target)
		if err == nil {
			t.Errorf("%s: expected an error", n)
			continue
		}
		if _, ok := err.(*InternalConsistencyError); !ok {
			t.Errorf("%s: expected *InternalConsistencyError, got %T: %s", n, err, err)
		}
	}
}

func TestVerifyCatchesBadOrder(t *testing.T) {
	fix := planFixtures["dependencies before dependents"]
	p, err := Between(fix.installed, fix.target)
	if err != nil {
		t.Fatal(err)
	}

	for i, j := 0, len(p.Steps)-1; i < j; i, j = i+1, j-1 {
		p.Steps[i], p.Steps[j] = p.Steps[j], p.Steps[i]
	}
	err = p.Verify(fix.installed)
	if err == nil {
		t.Fatal("expected reversed plan to fail verification")
	}
	if !strings.Contains(err.Error(), "unsatisfied dependency a@1.0.0") {
		t.Errorf("unexpected verification error: %s", err)
	}
}

func TestVerifyCatchesStaleBase(t *testing.T) {
	fix := planFixtures["upgrade dependency first"]
	p, err := Between(fix.installed, fix.target)
	if err != nil {
		t.Fatal(err)
	}

	other := fix.installed.With(mkip("extra 1.0"))
	if !p.Stale(other) {
		t.Error("plan should be stale against a different installed set")
	}
	if p.Stale(fix.installed) {
		t.Error("plan should not be stale against its own base")
	}
	if err := p.Verify(other); err == nil {
		t.Error("expected verification against a different set to fail")
	}
}

func TestStepRevertUndoesApply(t *testing.T) {
	installed := set(
		mkip("app 1.0", "mta"),
		mkip("~sendmail 8.0", "+mta", "!mta"),
		mkip("lib 1.0"),
	)
	steps := []Step{
		{Kind: KindRemove, Package: mkip("~sendmail 8.0", "+mta", "!mta")},
		{Kind: KindUpgrade, Package: mkip("lib 2.0"), Previous: mkip("lib 1.0")},
		{Kind: KindGroup, Members: []Step{
			{Kind: KindInstall, Package: mkip("postfix 3.0", "+mta", "!mta")},
			{Kind: KindInstall, Package: mkip("~x 1.0")},
		}},
	}

	for _, s := range steps {
		after := s.ApplyTo(installed)
		if after.Equal(installed) {
			t.Errorf("%s: applying changed nothing", s)
		}
		if back := s.RevertFrom(after); !back.Equal(installed) {
			t.Errorf("%s: reverting gives %s, want %s", s, back, installed)
		}
	}
}

func TestPlanFromSolution(t *testing.T) {
	store, err := metadata.NewStore(metadata.Repository{
		ID: "main",
		Packages: []metadata.Package{
			mkip("a 1.0", "b >=1.0").Package,
			mkip("b 1.0").Package,
			mkip("b 2.0").Package,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := store.Find("a", metadata.MustVersion("1.0"))
	installed := set(metadata.InstalledPackage{Package: a})

	sol, err := solver.Solve(context.Background(), solver.Parameters{
		Installed: installed,
		Requests:  []solver.Request{solver.Install("a", metadata.Any())},
		Store:     store,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := New(installed, sol)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Steps) != 1 || p.Steps[0].String() != "install b 2.0.0" {
		t.Fatalf("unexpected plan:\n%s", p)
	}
	if !p.Apply(installed).Equal(sol.InstalledSet()) {
		t.Errorf("replaying plan does not reproduce the solution")
	}
}

func TestPlanGraph(t *testing.T) {
	fix := planFixtures["conflicting provider is swapped atomically"]
	p, err := Between(fix.installed, fix.target)
	if err != nil {
		t.Fatal(err)
	}

	out := p.Graph().String()
	for _, want := range []string{"digraph", "cluster", "remove sendmail 8.0.0", "install postfix 3.0.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("graph output missing %q:\n%s", want, out)
		}
	}

	fix = planFixtures["dependencies before dependents"]
	p, err = Between(fix.installed, fix.target)
	if err != nil {
		t.Fatal(err)
	}
	out = p.Graph().String()
	if !strings.Contains(out, "->") {
		t.Errorf("expected ordering edges in graph output:\n%s", out)
	}
}
