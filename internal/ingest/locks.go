package ingest

import (
	"sync"

	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

// digestLocks serialises ingestions of the same pixel content, from the
// duplicate check until the photo row exists. Only one upload of a digest
// ever writes files; the others then see the row and are rejected.
type digestLocks struct {
	mu    sync.Mutex
	locks map[fingerprint.Digest]*digestLock
}

type digestLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the lock for d and returns its release function.
func (l *digestLocks) lock(d fingerprint.Digest) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[fingerprint.Digest]*digestLock)
	}
	dl, ok := l.locks[d]
	if !ok {
		dl = &digestLock{}
		l.locks[d] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, d)
		}
		l.mu.Unlock()
	}
}

// held returns the number of digests with a waiting or holding upload.
func (l *digestLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
