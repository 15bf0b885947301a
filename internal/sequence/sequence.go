// Package sequence implements the process-wide keyed cursor table the
// interpreter's seq and wildcardseq tags advance through on every call.
//
// Entries are small and operations are O(1), so a single coarse mutex
// guards the whole table rather than one lock per key. The store is modeled
// as an explicit handle rather than package-level state so tests and
// concurrent callers can each hold their own instance.
package sequence

import "sync"

// Key identifies a cursor. Kind is "seq" or "wc"; Discriminant is the
// trimmed option list joined with a unit separator (for "seq") or the
// canonical wildcard name plus "_" and a stable options hash (for "wc").
type Key struct {
	Kind          string
	Discriminant string
}

// Cursor is the position into a sequence's value list.
type Cursor struct {
	Values    []string
	NextIndex int
	justRan   bool
}

// Peek returns the value the next Advance would return, without advancing
// and without marking the cursor as referenced by the current request.
func (c *Cursor) Peek() string {
	if len(c.Values) == 0 {
		return ""
	}
	return c.Values[c.NextIndex%len(c.Values)]
}

// Store is the cursor table. The zero value is not usable; use New.
type Store struct {
	mu      sync.Mutex
	cursors map[Key]*Cursor
}

// New creates an empty Store.
func New() *Store {
	return &Store{cursors: make(map[Key]*Cursor)}
}

// Peek returns values[next_index % len] for key, initializing the cursor
// from values if it does not already exist. It does not advance the cursor
// and does not mark it as referenced this request.
func (s *Store) Peek(key Key, values []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrInit(key, values)
	return c.Peek()
}

// Advance returns values[next_index++ % len] for key, initializing the
// cursor from values if needed, and marks it as referenced by the current
// request so GCStale will not drop it.
func (s *Store) Advance(key Key, values []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrInit(key, values)
	c.justRan = true
	if len(c.Values) == 0 {
		return ""
	}
	v := c.Values[c.NextIndex%len(c.Values)]
	c.NextIndex++
	return v
}

// getOrInit must be called with s.mu held.
func (s *Store) getOrInit(key Key, values []string) *Cursor {
	c, ok := s.cursors[key]
	if !ok {
		c = &Cursor{Values: values}
		s.cursors[key] = c
	} else if len(c.Values) == 0 && len(values) > 0 {
		// Lazily populated keys (seq's raw_data is only known at first use).
		c.Values = values
	}
	return c
}

// ClearRanFlags clears the just-ran marker on every cursor. Called at the
// start of each preparse_prompts() call.
func (s *Store) ClearRanFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cursors {
		c.justRan = false
	}
}

// GCStale removes every cursor that was not referenced since the last
// ClearRanFlags call. Called at the end of preparse_prompts().
func (s *Store) GCStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.cursors {
		if !c.justRan {
			delete(s.cursors, k)
		}
	}
}

// Len reports how many cursors are currently tracked, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}
