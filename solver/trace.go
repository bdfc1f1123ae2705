package solver

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	successChar   = "✓"
	successCharSp = successChar + " "
	failChar      = "✗"
	failCharSp    = failChar + " "
	backChar      = "←"
)

func (s *solver) traceCheckQueue(q *versionQueue, cont bool) {
	if !s.params.Trace {
		return
	}

	prefix := strings.Repeat("| ", len(s.vqs)+1)
	vlen := strconv.Itoa(len(q.pi))

	var verb string
	if cont {
		verb = "continue"
		vlen = vlen + " more"
	} else {
		verb = "attempt"
	}

	s.tl.Printf("%s\n", tracePrefix(fmt.Sprintf("? %s %s; %s candidates to try", verb, q.target, vlen), prefix, prefix))
}

// traceStartBacktrack is called with the target that first failed, thus
// initiating backtracking
func (s *solver) traceStartBacktrack(target string, err error) {
	if !s.params.Trace {
		return
	}

	prefix := strings.Repeat("| ", len(s.vqs)+1)
	s.tl.Printf("%s\n", tracePrefix(fmt.Sprintf("%s no more candidates for %s; begin backtrack", backChar, target), prefix, prefix))
}

// traceBacktrack is called when a decision is popped off during backtracking
func (s *solver) traceBacktrack(d decision) {
	if !s.params.Trace {
		return
	}

	msg := fmt.Sprintf("%s backtrack: %s no longer bound to %s", backChar, d.target, d.a)
	prefix := strings.Repeat("| ", len(s.vqs))
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

// Called just once after solving has finished, whether success or not
func (s *solver) traceFinish(sol Solution, err error) {
	if !s.params.Trace {
		return
	}

	if err == nil {
		s.tl.Printf("%s found solution with %v packages after %v attempts", successChar, sol.Len(), s.attempts)
	} else {
		s.tl.Printf("%s solving failed", failChar)
	}
}

// traceSelectRoot is called just once, when the root is selected
func (s *solver) traceSelectRoot() {
	if !s.params.Trace {
		return
	}

	s.tl.Printf("Root has %v requirements from %v requests and %v installed packages",
		len(s.root.pkg.Depends), len(s.params.Requests), s.installed.Len())
	s.tl.Printf(successCharSp + "select (root)")
}

// traceSelect is called when a target is successfully bound
func (s *solver) traceSelect(target string, a atom, already bool) {
	if !s.params.Trace {
		return
	}

	var msg string
	switch {
	case already:
		msg = fmt.Sprintf("%s bind %s to already selected %s", successChar, target, a)
	case target != a.pkg.Name:
		msg = fmt.Sprintf("%s select %s to provide %s", successChar, a, target)
	default:
		msg = fmt.Sprintf("%s select %s", successChar, a)
	}

	prefix := strings.Repeat("| ", len(s.vqs))
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

func (s *solver) traceInfo(args ...interface{}) {
	if !s.params.Trace {
		return
	}

	if len(args) == 0 {
		panic("must pass at least one param to traceInfo")
	}

	preflen := len(s.vqs) + 1
	var msg string
	switch data := args[0].(type) {
	case string:
		msg = tracePrefix(fmt.Sprintf(data, args[1:]...), "| ", "| ")
	case traceError:
		preflen++
		// We got a special traceError, use its custom method
		msg = tracePrefix(data.traceString(), "| ", failCharSp)
	case error:
		// Regular error; still use the x leader but default Error() string
		msg = tracePrefix(data.Error(), "| ", failCharSp)
	default:
		// panic here because this can *only* mean a stupid internal bug
		panic(fmt.Sprintf("canary - unknown type passed as first param to traceInfo %T", data))
	}

	prefix := strings.Repeat("| ", preflen)
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

func tracePrefix(msg, sep, fsep string) string {
	parts := strings.Split(strings.TrimSuffix(msg, "\n"), "\n")
	for k, str := range parts {
		if k == 0 {
			parts[k] = fsep + str
		} else {
			parts[k] = sep + str
		}
	}

	return strings.Join(parts, "\n")
}
