// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"bytes"
	log2 "log"
	"strings"
	"testing"

	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/plan"
)

func ip(name, version string, reason metadata.Reason, deps ...string) metadata.InstalledPackage {
	p := metadata.InstalledPackage{
		Package: metadata.Package{Name: name, Version: metadata.MustVersion(version)},
		Reason:  reason,
	}
	for _, d := range deps {
		p.Depends = append(p.Depends, metadata.MustDependency(d))
	}
	return p
}

func TestFeedback_Step(t *testing.T) {
	cases := []struct {
		step plan.Step
		want string
	}{
		{
			step: plan.Step{Kind: plan.KindInstall, Package: ip("app", "2.0.0", metadata.ReasonExplicit)},
			want: "Installed app 2.0.0",
		},
		{
			step: plan.Step{Kind: plan.KindInstall, Package: ip("lib", "2.0.0", metadata.ReasonDependency)},
			want: "Installed lib 2.0.0 as a dependency",
		},
		{
			step: plan.Step{Kind: plan.KindUpgrade, Package: ip("lib", "2.0.0", 0), Previous: ip("lib", "1.0.0", 0)},
			want: "Upgraded lib from 1.0.0 to 2.0.0",
		},
		{
			step: plan.Step{Kind: plan.KindUpgrade, Package: ip("lib", "1.0.0", 0), Previous: ip("lib", "2.0.0", 0)},
			want: "Downgraded lib from 2.0.0 to 1.0.0",
		},
		{
			step: plan.Step{Kind: plan.KindRemove, Package: ip("old", "0.9.0", 0)},
			want: "Removed old 0.9.0",
		},
	}

	for _, c := range cases {
		buf := &bytes.Buffer{}
		log := log2.New(buf, "", 0)
		NewChangeFeedback(c.step).LogFeedback(log)
		got := strings.TrimSpace(buf.String())
		if c.want != got {
			t.Errorf("Feedbacks are not expected: \n\t(GOT) '%s'\n\t(WNT) '%s'", got, c.want)
		}
	}
}

func TestFeedback_Plan(t *testing.T) {
	before := metadata.MustInstalledSet(
		ip("app", "1.0.0", metadata.ReasonExplicit, "lib >=1"),
		ip("lib", "1.0.0", metadata.ReasonDependency),
	)
	after := metadata.MustInstalledSet(
		ip("app", "1.0.0", metadata.ReasonExplicit, "lib >=1"),
		ip("lib", "1.0.0", metadata.ReasonExplicit),
		ip("tool", "1.0.0", metadata.ReasonExplicit),
	)
	p, err := plan.Between(before, after)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, cf := range PlanFeedback(p) {
		got = append(got, cf.String())
	}
	want := []string{"Installed tool 1.0.0", "Marked lib 1.0.0 as explicit"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Feedbacks are not expected: \n\t(GOT) %q\n\t(WNT) %q", got, want)
	}
}
