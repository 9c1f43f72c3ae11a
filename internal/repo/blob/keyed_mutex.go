package blob

import "sync"

// keyedRWMutex hands out one reader/writer lock per key and forgets keys
// that nobody holds.
type keyedRWMutex struct {
	mu    sync.Mutex
	locks map[string]*refCountedRWMutex
}

type refCountedRWMutex struct {
	sync.RWMutex
	refs int
}

func newKeyedRWMutex() *keyedRWMutex {
	return &keyedRWMutex{locks: make(map[string]*refCountedRWMutex)}
}

func (k *keyedRWMutex) lock(key string, exclusive bool) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refCountedRWMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	if exclusive {
		entry.Lock()
	} else {
		entry.RLock()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			if exclusive {
				entry.Unlock()
			} else {
				entry.RUnlock()
			}

			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}
