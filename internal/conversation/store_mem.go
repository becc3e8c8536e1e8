package conversation

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryStore is the default Store: a map guarded by a read-write mutex.
// Histories live until deleted or until the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]Message)}
}

var _ Store = (*MemoryStore)(nil)

// Get returns a copy of the history for id.
func (s *MemoryStore) Get(_ context.Context, id string) ([]Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.convs[id]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(msgs), true, nil
}

// Append adds msgs to id's history.
func (s *MemoryStore) Append(_ context.Context, id string, msgs ...Message) error {
	if err := ValidateBatch(msgs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = append(s.convs[id], msgs...)
	return nil
}

// Delete removes id and reports whether it existed.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.convs[id]
	delete(s.convs, id)
	return ok, nil
}

// List returns every conversation sorted by ID.
func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.convs))
	for id, msgs := range s.convs {
		out = append(out, Summary{ID: id, MessageCount: len(msgs)})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Len returns the number of conversations.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs), nil
}
