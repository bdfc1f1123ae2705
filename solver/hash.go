package solver

import (
	"crypto/sha256"
	"sort"
)

// HashInputs computes a digest of all inputs to a Solve() run: the metadata
// store, the installed set, and the request batch.
//
// The digest is recorded on the Solution. If the digests of two runs match,
// their results are identical and there's no need to Solve() again.
func (s *solver) HashInputs() []byte {
	reqs := make(sortedRequests, len(s.params.Requests))
	copy(reqs, s.params.Requests)
	sort.Stable(reqs)

	h := sha256.New()
	h.Write([]byte("store\n"))
	h.Write(s.store.Digest())
	h.Write([]byte("\ninstalled\n"))
	h.Write(s.installed.Digest())
	h.Write([]byte("\nrequests\n"))
	for _, r := range reqs {
		h.Write([]byte(r.String()))
		h.Write([]byte{'\n'})
	}

	return h.Sum(nil)
}

type sortedRequests []Request

func (s sortedRequests) Len() int {
	return len(s)
}

func (s sortedRequests) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sortedRequests) Less(i, j int) bool {
	return s[i].String() < s[j].String()
}
