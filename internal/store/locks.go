package store

import "sync"

// lockSet hands out one mutex per document.
type lockSet struct {
	mu    sync.Mutex
	locks map[Name]*sync.Mutex
}

func (l *lockSet) get(name Name) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = map[Name]*sync.Mutex{}
	}
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	return m
}

func (l *lockSet) acquire(names []Name) (release func()) {
	ordered := lockOrder(names)
	held := make([]*sync.Mutex, 0, len(ordered))
	for _, n := range ordered {
		m := l.get(n)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
