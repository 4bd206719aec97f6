package presence

import "sync"

// DefaultUser is the display name for peers that joined without
// declaring one.
const DefaultUser = "—"

// Entry is one peer's presence record.
type Entry struct {
	ID    string
	User  string
	Muted bool
}

// Table is a concurrency-safe connection id → Entry map. Snapshot
// returns entries in insertion order.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*Entry),
	}
}

// Upsert creates or updates the entry for id. An empty user falls back
// to DefaultUser on create and leaves the existing name untouched on
// update.
func (t *Table) Upsert(id, user string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		if user != "" {
			e.User = user
		}
		return
	}

	if user == "" {
		user = DefaultUser
	}
	t.entries[id] = &Entry{ID: id, User: user}
	t.order = append(t.order, id)
}

// SetMuted updates the mute flag and reports whether an entry existed.
// A false result is not an error; presence is best-effort.
func (t *Table) SetMuted(id string, muted bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return false
	}
	e.Muted = muted
	return true
}

// Get returns a copy of the entry for id.
func (t *Table) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remove deletes the entry for id and reports whether one existed.
func (t *Table) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of present peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns copies of all entries in insertion order.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		if e, ok := t.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}
