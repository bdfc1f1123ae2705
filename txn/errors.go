package txn

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xpackagemanager/xpm/plan"
)

var (
	// ErrStalePlan is returned when the installed set changed since the plan
	// was computed.
	ErrStalePlan = errors.New("plan was computed against a different installed set")

	// ErrInconsistent is returned when the installed database is flagged
	// after an earlier transaction could not be reversed.
	ErrInconsistent = errors.New("installed database is flagged inconsistent; repair the install root and clear the flag")

	// ErrLocked is returned when another transaction holds the install root.
	ErrLocked = errors.New("install root is locked by another transaction")
)

// ExecutionError reports the step at which a transaction stopped. Err is the
// backend or database failure, or the cancellation that was observed before
// the step started.
type ExecutionError struct {
	// Index of Step among the plan's steps.
	Index int
	Step  plan.Step
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %s", e.Index+1, e.Step, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// RollbackFailedError is returned when reversing a failed transaction itself
// failed. The install root is left partially changed.
type RollbackFailedError struct {
	// Exec is the failure that triggered the rollback.
	Exec *ExecutionError

	// Step is the step whose reversal failed, and Err why.
	Step plan.Step
	Err  error

	// Applied are the steps still applied, in the order they were applied.
	Applied []plan.Step
}

func (e *RollbackFailedError) Error() string {
	var buf bytes.Buffer
	if e.Step.Package.Name == "" {
		fmt.Fprintf(&buf, "%s; rollback then failed: %s", e.Exec, e.Err)
	} else {
		fmt.Fprintf(&buf, "%s; rollback then failed reversing %s: %s", e.Exec, e.Step, e.Err)
	}
	if len(e.Applied) > 0 {
		fmt.Fprintf(&buf, "\nsteps still applied:")
		for _, s := range e.Applied {
			fmt.Fprintf(&buf, "\n\t%s", s)
		}
	}
	return buf.String()
}
