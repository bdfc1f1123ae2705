// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"fmt"
	"log"

	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/plan"
)

// Change types
const (
	ChangeInstall   = "install"
	ChangeUpgrade   = "upgrade"
	ChangeDowngrade = "downgrade"
	ChangeRemove    = "remove"
	ChangeMark      = "mark"
)

// ChangeFeedback holds what happened to one package in a transaction.
type ChangeFeedback struct {
	Change, Name, Version, PreviousVersion string
	Reason                                 metadata.Reason
}

// NewChangeFeedback describes a non-group step.
func NewChangeFeedback(s plan.Step) *ChangeFeedback {
	cf := &ChangeFeedback{
		Name:    s.Package.Name,
		Version: s.Package.Version.String(),
		Reason:  s.Package.Reason,
	}
	switch s.Kind {
	case plan.KindInstall:
		cf.Change = ChangeInstall
	case plan.KindRemove:
		cf.Change = ChangeRemove
	case plan.KindUpgrade:
		cf.Change = ChangeUpgrade
		if s.Package.Version.Less(s.Previous.Version) {
			cf.Change = ChangeDowngrade
		}
		cf.PreviousVersion = s.Previous.Version.String()
	}
	return cf
}

// PlanFeedback describes every change p makes, in the order they are made.
func PlanFeedback(p *plan.Plan) []*ChangeFeedback {
	var out []*ChangeFeedback
	for _, s := range p.Primitives() {
		out = append(out, NewChangeFeedback(s))
	}
	for _, ip := range p.Marks {
		out = append(out, &ChangeFeedback{
			Change:  ChangeMark,
			Name:    ip.Name,
			Version: ip.Version.String(),
			Reason:  ip.Reason,
		})
	}
	return out
}

// LogFeedback logs the feedback
func (cf ChangeFeedback) LogFeedback(logger *log.Logger) {
	logger.Printf("  %v", cf.String())
}

// String returns the change as a sentence.
// Example:
// Installed lib 2.0.0 as a dependency
// Upgraded app from 1.0.0 to 2.0.0
func (cf ChangeFeedback) String() string {
	switch cf.Change {
	case ChangeInstall:
		if cf.Reason == metadata.ReasonDependency {
			return fmt.Sprintf("Installed %s %s as a dependency", cf.Name, cf.Version)
		}
		return fmt.Sprintf("Installed %s %s", cf.Name, cf.Version)
	case ChangeUpgrade:
		return fmt.Sprintf("Upgraded %s from %s to %s", cf.Name, cf.PreviousVersion, cf.Version)
	case ChangeDowngrade:
		return fmt.Sprintf("Downgraded %s from %s to %s", cf.Name, cf.PreviousVersion, cf.Version)
	case ChangeRemove:
		return fmt.Sprintf("Removed %s %s", cf.Name, cf.Version)
	case ChangeMark:
		return fmt.Sprintf("Marked %s %s as %s", cf.Name, cf.Version, cf.Reason)
	}
	return fmt.Sprintf("Changed %s %s", cf.Name, cf.Version)
}
