package store

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements in-process storage. Entries never expire.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a value from memory
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	if val, found := s.cache.Get(key); found {
		return append([]byte(nil), val.([]byte)...), true, nil
	}
	return nil, false, nil
}

// Set stores a copy of the value
func (s *MemoryStore) Set(key string, value []byte) error {
	s.cache.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	return nil
}

// Delete removes a value from memory
func (s *MemoryStore) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

// Close flushes the memory store
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
