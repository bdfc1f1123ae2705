package metadata

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func inst(r Reason, info string, deps ...string) InstalledPackage {
	return InstalledPackage{Package: mkPkg(info, deps...), Reason: r}
}

func TestInstalledSetCopyOnWrite(t *testing.T) {
	s := MustInstalledSet(
		inst(ReasonExplicit, "a 1.0", "b"),
		inst(ReasonDependency, "b 1.0"),
	)

	s2 := s.With(inst(ReasonExplicit, "c 1.0")).Without("b")
	if s.Len() != 2 || s2.Len() != 2 {
		t.Fatalf("unexpected lengths %d and %d", s.Len(), s2.Len())
	}
	if _, has := s.Get("c"); has {
		t.Error("With modified the original set")
	}
	if _, has := s2.Get("b"); has {
		t.Error("Without did not remove b")
	}
	if s.Equal(s2) {
		t.Error("different sets compare equal")
	}
	if !s.Equal(MustInstalledSet(inst(ReasonDependency, "b 1.0"), inst(ReasonExplicit, "a 1.0", "b"))) {
		t.Error("insertion order must not matter for equality")
	}
	if s.Equal(MustInstalledSet(inst(ReasonExplicit, "b 1.0"), inst(ReasonExplicit, "a 1.0", "b"))) {
		t.Error("install reasons must matter for equality")
	}

	if _, err := NewInstalledSet(inst(ReasonExplicit, "a 1.0"), inst(ReasonExplicit, "a 2.0")); err == nil {
		t.Error("expected an error for a name installed twice")
	}
}

func TestInstalledSetBroken(t *testing.T) {
	s := MustInstalledSet(
		inst(ReasonExplicit, "a 1.0", "b >=2", "c"),
		inst(ReasonDependency, "b 1.0"),
	)

	want := []string{"a@1.0.0: b >=2.0.0", "a@1.0.0: c"}
	if diff := cmp.Diff(want, s.Broken()); diff != "" {
		t.Errorf("unexpected broken list (-want +got):\n%s", diff)
	}
}

func TestOrphans(t *testing.T) {
	provider := inst(ReasonDependency, "mesa 21.0")
	provider.Provides = []Provide{{Name: "libgl"}}

	s := MustInstalledSet(
		inst(ReasonExplicit, "app 1.0", "lib", "libgl"),
		inst(ReasonDependency, "lib 1.0", "zlib"),
		inst(ReasonDependency, "zlib 1.2"),
		provider,
		inst(ReasonDependency, "stale 0.1", "leftover"),
		inst(ReasonDependency, "leftover 1.0"),
		inst(ReasonExplicit, "tool 2.0"),
	)

	var got []string
	for _, ip := range s.Orphans() {
		got = append(got, ip.Name)
	}
	if diff := cmp.Diff([]string{"leftover", "stale"}, got); diff != "" {
		t.Errorf("unexpected orphans (-want +got):\n%s", diff)
	}
}
