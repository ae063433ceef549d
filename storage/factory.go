package storage

import "fmt"

// NewStore builds an uninitialized store of the given kind. path is the
// directory for the file backend and the database file for sqlite.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file store requires a directory")
		}
		return NewFileStore(path), nil
	case "sqlite":
		if path == "" {
			path = "flappy.db"
		}
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store kind: %s", kind)
	}
}

// CloseIfSupported closes stores that hold external resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
