package asset

import (
	"context"
	"sync"
)

// pathLocks serializes probe-then-write sequences per storage path within the process.
type pathLocks struct {
	mu      sync.Mutex
	entries map[string]*pathLock
}

type pathLock struct {
	sem  chan struct{}
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{entries: make(map[string]*pathLock)}
}

// Lock blocks until path is free or ctx is done. The returned func releases the lock.
func (l *pathLocks) Lock(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[path]
	if !ok {
		entry = &pathLock{sem: make(chan struct{}, 1)}
		l.entries[path] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(path, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(path, entry)
		})
	}, nil
}

func (l *pathLocks) release(path string, entry *pathLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, path)
	}
}

func (l *pathLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
