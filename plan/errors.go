package plan

import (
	"bytes"
	"fmt"
)

// InternalConsistencyError is returned when a plan is asked for a target set
// that is not closed or not conflict-free, or when an ordering cannot be
// found that keeps the system consistent between steps. Either case is a bug
// in whatever produced the target.
type InternalConsistencyError struct {
	Problems []string
}

func (e *InternalConsistencyError) Error() string {
	if len(e.Problems) == 1 {
		return "internal consistency error: " + e.Problems[0]
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "internal consistency error, %d problems:", len(e.Problems))
	for _, p := range e.Problems {
		fmt.Fprintf(&buf, "\n\t%s", p)
	}
	return buf.String()
}
