package metadata

import (
	"sort"
	"testing"
)

func TestVersionSorts(t *testing.T) {
	in := []Version{
		MustVersion("2.0.0"),
		MustVersion("1.0.0"),
		MustVersion("1.0.0-rc.1"),
		MustVersion("1.0.0+b"),
		MustVersion("1.0.0-alpha"),
		MustVersion("1.10.0"),
		MustVersion("1.2"),
		{},
		MustVersion("1.0.0+a"),
	}
	want := []string{
		"",
		"1.0.0-alpha",
		"1.0.0-rc.1",
		"1.0.0",
		"1.0.0+a",
		"1.0.0+b",
		"1.2.0",
		"1.10.0",
		"2.0.0",
	}

	sort.Slice(in, func(i, j int) bool { return in[i].Less(in[j]) })
	for k, v := range in {
		if v.String() != want[k] {
			t.Errorf("Sorted version list was not in expected order at position %v:\n\t(GOT): %s\n\t(WNT): %s", k, v, want[k])
		}
	}
}

func TestVersionCompareIsTotal(t *testing.T) {
	a, b := MustVersion("1.0.0+linux"), MustVersion("1.0.0+darwin")
	if a.Equal(b) {
		t.Fatalf("%s and %s should not be equal", a, b)
	}
	if a.Compare(b) != -b.Compare(a) {
		t.Errorf("Compare is not antisymmetric for %s and %s", a, b)
	}
}

func TestVersionText(t *testing.T) {
	var v Version
	if err := v.UnmarshalText([]byte("3.1")); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.MarshalText(); string(got) != "3.1.0" {
		t.Errorf("expected 3.1.0, got %s", got)
	}

	if _, err := NewVersion("not-a-version"); err == nil {
		t.Error("expected an error for a malformed version")
	}
}

func TestRangeMatches(t *testing.T) {
	for _, tc := range []struct {
		r    string
		v    string
		want bool
	}{
		{"", "0.0.1", true},
		{"*", "9.9.9", true},
		{">=1.0", "1.0.0", true},
		{">=1.0", "0.9.9", false},
		{">1.0", "1.0.0", false},
		{"<2", "1.9.9", true},
		{"<2", "2.0.0-rc.1", true},
		{"<=2", "2.0.0", true},
		{"==1.2.3", "1.2.3", true},
		{"=1.2.3", "1.2.4", false},
		{"1.2.3", "1.2.3", true},
		{"!=1.2.3", "1.2.3", false},
		{"!=1.2.3", "1.2.4", true},
		{">=1.0, <2.0", "1.5.0", true},
		{">=1.0, <2.0", "2.0.0", false},
		{">= 1.0 < 2.0", "1.5.0", true},
		{">=1.0, <2.0 || ==3.0", "3.0.0", true},
		{">=1.0, <2.0 || ==3.0", "2.5.0", false},
		{"<1 || *", "7.0.0", true},
	} {
		r, err := ParseRange(tc.r)
		if err != nil {
			t.Errorf("%q: unexpected error: %s", tc.r, err)
			continue
		}
		if got := r.Matches(MustVersion(tc.v)); got != tc.want {
			t.Errorf("%q matches %s: expected %v, got %v", tc.r, tc.v, tc.want, got)
		}
	}
}

func TestRangeParseErrors(t *testing.T) {
	for _, s := range []string{
		">=",
		"1.0 ||",
		">=foo",
		"|| 1.0",
	} {
		if _, err := ParseRange(s); err == nil {
			t.Errorf("%q: expected a parse error", s)
		}
	}
}

func TestRangeString(t *testing.T) {
	for in, want := range map[string]string{
		"":                  "*",
		">= 1.0 , < 2":      ">=1.0.0, <2.0.0",
		"1.0||=2.0":         "==1.0.0 || ==2.0.0",
		"!=1.0.0-beta+meta": "!=1.0.0-beta+meta",
	} {
		if got := MustRange(in).String(); got != want {
			t.Errorf("%q: expected canonical form %q, got %q", in, want, got)
		}
	}
}
