package metadata

import (
	"strings"

	"github.com/pkg/errors"
)

type op uint8

const (
	opEQ op = iota
	opNE
	opGT
	opGE
	opLT
	opLE
)

// Longest tokens first, so that ">=" is never read as ">".
var opTokens = []struct {
	tok string
	op  op
}{
	{">=", opGE},
	{"<=", opLE},
	{"==", opEQ},
	{"!=", opNE},
	{">", opGT},
	{"<", opLT},
	{"=", opEQ},
}

func (o op) String() string {
	switch o {
	case opEQ:
		return "=="
	case opNE:
		return "!="
	case opGT:
		return ">"
	case opGE:
		return ">="
	case opLT:
		return "<"
	case opLE:
		return "<="
	}
	panic("unknown range operator")
}

type comparison struct {
	op op
	v  Version
}

func (c comparison) matches(v Version) bool {
	cmp := v.Compare(c.v)
	switch c.op {
	case opEQ:
		return cmp == 0
	case opNE:
		return cmp != 0
	case opGT:
		return cmp > 0
	case opGE:
		return cmp >= 0
	case opLT:
		return cmp < 0
	case opLE:
		return cmp <= 0
	}
	return false
}

func (c comparison) String() string {
	return c.op.String() + c.v.String()
}

// Range is a predicate over versions: a disjunction of conjunctions of
// comparisons.
//
//	>=1.0, <2.0 || ==3.0.0
//
// Terms inside a conjunction are separated by commas or whitespace; "||"
// separates alternatives. A bare version means "==". The empty range, or
// "*", admits every version.
type Range struct {
	// nil means unconstrained. A nil inner slice is an always-true conjunction.
	alts [][]comparison
}

// Any returns the unconstrained range.
func Any() Range {
	return Range{}
}

// Exactly returns the range admitting only v.
func Exactly(v Version) Range {
	return Range{alts: [][]comparison{{{op: opEQ, v: v}}}}
}

// ParseRange parses the textual form of a range.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	var r Range
	for _, alt := range strings.Split(s, "||") {
		terms, err := splitTerms(alt)
		if err != nil {
			return Range{}, errors.Wrapf(err, "invalid range %q", s)
		}
		if len(terms) == 0 {
			return Range{}, errors.Errorf("invalid range %q: empty alternative", s)
		}

		var conj []comparison
		for _, t := range terms {
			if t == "*" {
				continue
			}
			c, err := parseComparison(t)
			if err != nil {
				return Range{}, errors.Wrapf(err, "invalid range %q", s)
			}
			conj = append(conj, c)
		}
		if conj == nil {
			// "*" inside an alternative makes the whole range unconstrained.
			return Any(), nil
		}
		r.alts = append(r.alts, conj)
	}

	return r, nil
}

// MustRange is like ParseRange but panics on error. It exists for fixtures.
func MustRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// splitTerms breaks one alternative into comparison terms, gluing a lone
// operator to the version that follows it (">= 1.0").
func splitTerms(alt string) ([]string, error) {
	fields := strings.Fields(strings.Replace(alt, ",", " ", -1))

	var terms []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) {
			if i+1 == len(fields) {
				return nil, errors.Errorf("operator %q without a version", f)
			}
			f += fields[i+1]
			i++
		}
		terms = append(terms, f)
	}
	return terms, nil
}

func isOperator(s string) bool {
	for _, t := range opTokens {
		if s == t.tok {
			return true
		}
	}
	return false
}

func parseComparison(t string) (comparison, error) {
	c := comparison{op: opEQ}
	for _, tok := range opTokens {
		if strings.HasPrefix(t, tok.tok) {
			c.op = tok.op
			t = t[len(tok.tok):]
			break
		}
	}

	v, err := NewVersion(t)
	if err != nil {
		return comparison{}, err
	}
	c.v = v
	return c, nil
}

// IsAny reports whether r admits every version.
func (r Range) IsAny() bool {
	return r.alts == nil
}

// Matches reports whether v satisfies r.
func (r Range) Matches(v Version) bool {
	if r.alts == nil {
		return true
	}

	for _, conj := range r.alts {
		ok := true
		for _, c := range conj {
			if !c.matches(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// String returns the canonical textual form of r. Two ranges with the same
// canonical form are the same predicate.
func (r Range) String() string {
	if r.alts == nil {
		return "*"
	}

	alts := make([]string, len(r.alts))
	for i, conj := range r.alts {
		terms := make([]string, len(conj))
		for j, c := range conj {
			terms[j] = c.String()
		}
		alts[i] = strings.Join(terms, ", ")
	}
	return strings.Join(alts, " || ")
}

// MarshalText implements encoding.TextMarshaler.
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Range) UnmarshalText(b []byte) error {
	nr, err := ParseRange(string(b))
	if err != nil {
		return err
	}
	*r = nr
	return nil
}
