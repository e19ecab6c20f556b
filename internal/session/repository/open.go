package repository

import (
	"fmt"

	"storefront/sessioncore/internal/security"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the Store for driver rooted at path, and a close function the caller must run.
func Open(driver, path string, sealer security.Sealer) (Store, func() error, error) {
	noop := func() error { return nil }
	switch driver {
	case DriverFile, "":
		return NewFileStore(path, sealer), noop, nil
	case DriverSQLite:
		s, err := OpenSQLiteStore(path, sealer)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case DriverMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("session store: unknown driver %q", driver)
	}
}
