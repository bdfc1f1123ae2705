package metadata

import (
	"github.com/armon/go-radix"
)

// Typed wrapper around a radix tree, so that the rest of the package never
// has to type assert what comes out of it.

type nameTrie struct {
	t *radix.Tree
}

func newNameTrie() nameTrie {
	return nameTrie{
		t: radix.New(),
	}
}

// Insert is used to add a new entry or update an existing entry. Returns if
// updated.
func (t nameTrie) Insert(s string, count int) (int, bool) {
	if v2, had := t.t.Insert(s, count); had {
		return v2.(int), had
	}
	return 0, false
}

// Get is used to lookup a specific key, returning the value and if it was found
func (t nameTrie) Get(s string) (int, bool) {
	if v, has := t.t.Get(s); has {
		return v.(int), has
	}
	return 0, false
}

// Len is used to return the number of elements in the tree
func (t nameTrie) Len() int {
	return t.t.Len()
}

// WalkPrefix returns, in lexical order, every key starting with prefix.
func (t nameTrie) WalkPrefix(prefix string) []string {
	var keys []string
	t.t.WalkPrefix(prefix, func(s string, v interface{}) bool {
		keys = append(keys, s)
		return false
	})
	return keys
}
