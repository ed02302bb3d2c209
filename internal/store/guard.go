package store

import "sync"

// Guard hands out one mutex per key. Entries are dropped once no holder or
// waiter remains.
type Guard[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until k is free and returns the matching unlock.
func (g *Guard[K]) Lock(k K) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = map[K]*keyLock{}
	}
	l, ok := g.locks[k]
	if !ok {
		l = &keyLock{}
		g.locks[k] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, k)
		}
		g.mu.Unlock()
	}
}

// Held reports how many keys currently have holders or waiters.
func (g *Guard[K]) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
