// Package store persists trained classifier state as opaque blobs keyed by
// model name. Backends: memory (go-cache), disk (JSON files), sqlite and
// badger; Open layers an in-memory cache over the durable backend.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown store backend")

// Store defines the interface for model persistence
type Store interface {
	// Get returns the stored value; found is false when the key is absent
	Get(key string) (value []byte, found bool, err error)

	// Set stores the value, replacing any previous one atomically
	Set(key string, value []byte) error

	// Delete removes the value; deleting a missing key is not an error
	Delete(key string) error

	// Close releases backend resources
	Close() error
}

// Key generates a storage key from a model name
func Key(name string) string {
	hash := sha256.Sum256([]byte(name))
	return "ictrisk:v1:" + hex.EncodeToString(hash[:])
}
