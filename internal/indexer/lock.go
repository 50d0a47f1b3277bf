package indexer

import "sync"

// repoLocks serializes indexing runs that target the same (repo, branch):
// two concurrent requests for one target would otherwise race on the shared
// checkout directory and vector-table rows. Entries are never evicted; the
// set of distinct targets a deployment indexes is small.
type repoLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRepoLocks() *repoLocks {
	return &repoLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the target's lock is held and returns its unlock func.
func (l *repoLocks) Lock(repoURL, branch string) func() {
	key := repoURL + "\x00" + branch

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
