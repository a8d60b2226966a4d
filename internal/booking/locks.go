package booking

import "sync"

// listingLocks serializes write sequences per listing without a global lock.
// Entries are created on demand and removed once nobody holds or waits on
// them, so the table stays proportional to the set of listings currently
// being written.
type listingLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newListingLocks() *listingLocks {
	return &listingLocks{locks: make(map[int64]*lockEntry)}
}

func (l *listingLocks) lock(id int64) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *listingLocks) unlock(id int64) {
	l.mu.Lock()
	e := l.locks[id]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
