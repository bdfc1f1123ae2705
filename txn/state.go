package txn

import "fmt"

// State is the lifecycle state of a Transaction.
type State uint8

const (
	// Planned is the state of a transaction that has not started.
	Planned State = iota
	// InProgress is the state of a transaction while steps are applied, or
	// reversed.
	InProgress
	// Committed is the state of a transaction whose steps all applied.
	Committed
	// RolledBack is the state of a transaction that failed and whose applied
	// steps were all reversed.
	RolledBack
	// Failed is the state of a transaction that failed and could not be
	// fully reversed. The installed database is flagged inconsistent.
	Failed
)

func (s State) String() string {
	switch s {
	case Planned:
		return "planned"
	case InProgress:
		return "in progress"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Committed || s == RolledBack || s == Failed
}

var transitions = map[State][]State{
	Planned:    {InProgress},
	InProgress: {Committed, RolledBack, Failed},
}

func (s State) canMoveTo(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
