package store

import "errors"

// LayeredStore implements a read-through memory layer over a durable store
type LayeredStore struct {
	memory  Store
	durable Store
}

// NewLayeredStore creates a new layered store
func NewLayeredStore(durable Store) *LayeredStore {
	return &LayeredStore{
		memory:  NewMemoryStore(),
		durable: durable,
	}
}

// Get retrieves a value (checks memory first, then the durable store)
func (s *LayeredStore) Get(key string) ([]byte, bool, error) {
	if val, found, _ := s.memory.Get(key); found {
		return val, true, nil
	}

	val, found, err := s.durable.Get(key)
	if err != nil || !found {
		return nil, false, err
	}

	// Promote to memory
	_ = s.memory.Set(key, val)
	return val, true, nil
}

// Set stores the value durably first; memory is only updated on success
func (s *LayeredStore) Set(key string, value []byte) error {
	if err := s.durable.Set(key, value); err != nil {
		return err
	}
	return s.memory.Set(key, value)
}

// Delete removes a value from both layers
func (s *LayeredStore) Delete(key string) error {
	_ = s.memory.Delete(key)
	return s.durable.Delete(key)
}

// Close closes both layers
func (s *LayeredStore) Close() error {
	return errors.Join(s.memory.Close(), s.durable.Close())
}
