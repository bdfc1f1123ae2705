package solver

import (
	"fmt"
	"strings"

	"github.com/xpackagemanager/xpm/metadata"
)

type failedVersion struct {
	a atom
	f error
}

// versionQueue is one frame of the decision stack: a target, the candidate
// it is currently bound to, and the candidates not yet tried.
type versionQueue struct {
	target string
	pi     []metadata.Package
	// the installed candidate, if it was put at the front of the queue
	prefv *metadata.Package
	fails []failedVersion
}

func newVersionQueue(target string, cands []metadata.Package, prefv *metadata.Package) *versionQueue {
	return &versionQueue{
		target: target,
		pi:     cands,
		prefv:  prefv,
	}
}

func (vq *versionQueue) current() atom {
	if len(vq.pi) > 0 {
		return atom{pkg: vq.pi[0]}
	}

	return atom{}
}

// advance moves the versionQueue forward to the next candidate, recording the
// failure that eliminated the current one. A nil fail means the candidate was
// abandoned while backtracking.
func (vq *versionQueue) advance(fail error) {
	// Nothing in the queue means...nothing in the queue, nicely enough
	if len(vq.pi) == 0 {
		return
	}

	vq.fails = append(vq.fails, failedVersion{
		a: atom{pkg: vq.pi[0]},
		f: fail,
	})
	vq.pi = vq.pi[1:]
}

// isExhausted indicates whether or not the queue has been exhausted.
func (vq *versionQueue) isExhausted() bool {
	return len(vq.pi) == 0
}

func (vq *versionQueue) String() string {
	var vs []string

	for _, p := range vq.pi {
		vs = append(vs, p.String())
	}
	return fmt.Sprintf("[%s]", strings.Join(vs, ", "))
}
