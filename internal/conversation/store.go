package conversation

import (
	"errors"
	"sync"
)

// Sentinel errors returned by store mutations.
var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrLoadingPresent = errors.New("a loading entry already exists")
)

// Store owns the ordered transcript for one chat session, plus the
// derived quick replies and the in-flight flag. Entries are append-only
// except for the single well-defined replace-by-ID mutation used to
// resolve the loading placeholder. Exactly one lifecycle controller
// mutates a store; the mutex guards against readers on other goroutines
// (transport snapshots).
type Store struct {
	mu           sync.RWMutex
	entries      []MessageEntry
	quickReplies []string
	loading      bool
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an entry to the end of the transcript. Appending a second
// loading entry violates the single-placeholder invariant and is
// rejected.
func (s *Store) Append(entry MessageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.IsLoading && s.hasLoadingLocked() {
		return ErrLoadingPresent
	}
	s.entries = append(s.entries, entry)
	return nil
}

// ReplaceEntry swaps the entry with the given ID for a new one, keeping
// its position. This is the only way the loading placeholder resolves.
func (s *Store) ReplaceEntry(id string, entry MessageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i] = entry
			return nil
		}
	}
	return ErrEntryNotFound
}

// RemoveEntry deletes the entry with the given ID. Used by the failure
// path to drop a dangling placeholder.
func (s *Store) RemoveEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Entries returns a copy of the transcript.
func (s *Store) Entries() []MessageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MessageEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns the entry with the given ID.
func (s *Store) Entry(id string) (MessageEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return MessageEntry{}, false
}

// SetLoading flips the in-flight flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// Loading reports whether a turn is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetQuickReplies replaces the suggestion set derived from the most
// recent assistant message.
func (s *Store) SetQuickReplies(replies []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quickReplies = append([]string(nil), replies...)
}

// QuickReplies returns a copy of the current suggestion set.
func (s *Store) QuickReplies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.quickReplies...)
}

func (s *Store) hasLoadingLocked() bool {
	for _, e := range s.entries {
		if e.IsLoading {
			return true
		}
	}
	return false
}
