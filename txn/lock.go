package txn

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// rootLocks holds one mutex per install root, shared by every Executor in
// the process. Different roots never contend.
var rootLocks = struct {
	sync.Mutex
	m map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

func rootMutex(root string) *sync.Mutex {
	rootLocks.Lock()
	defer rootLocks.Unlock()

	mu, has := rootLocks.m[root]
	if !has {
		mu = new(sync.Mutex)
		rootLocks.m[root] = mu
	}
	return mu
}

// rootLock is the exclusive transaction lock over an install root: a mutex
// within this process and, if a path is given, a file lock across processes.
type rootLock struct {
	mu *sync.Mutex
	fl *flock.Flock
}

// tryLock acquires the lock for root without waiting. It returns ErrLocked if
// either half of the lock is held elsewhere.
func tryLock(root, path string) (*rootLock, error) {
	mu := rootMutex(root)
	if !mu.TryLock() {
		return nil, ErrLocked
	}

	l := &rootLock{mu: mu}
	if path == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		mu.Unlock()
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		mu.Unlock()
		return nil, errors.Wrapf(err, "failed to lock %s", path)
	}
	if !locked {
		mu.Unlock()
		return nil, ErrLocked
	}

	l.fl = fl
	return l, nil
}

func (l *rootLock) unlock() error {
	defer l.mu.Unlock()
	if l.fl == nil {
		return nil
	}
	return errors.Wrapf(l.fl.Unlock(), "failed to unlock %s", l.fl.Path())
}
