package booking

import "sync"

// lockTable hands out one mutex per transaction id so that transitions on the
// same transaction serialize while unrelated transactions proceed in
// parallel. Entries are reference counted and removed once the last holder
// releases, keeping the table bounded by in-flight transitions.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the per-id mutex is held and returns the release func.
func (t *lockTable) acquire(id string) func() {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &lockEntry{}
		t.entries[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.entries, id)
		}
		t.mu.Unlock()
	}
}
