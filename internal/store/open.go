package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open creates the named backend under path. Durable backends are wrapped
// in a LayeredStore.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case "", BackendDisk:
		return NewLayeredStore(NewDiskStore(path)), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(filepath.Join(path, SQLiteFileName))
		if err != nil {
			return nil, err
		}
		return NewLayeredStore(s), nil
	case BackendBadger:
		s, err := NewBadgerStore(path, logger)
		if err != nil {
			return nil, err
		}
		return NewLayeredStore(s), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
