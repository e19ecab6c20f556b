package domain

import "errors"

// Sentinel errors for the session lifecycle. The service never surfaces a usable session alongside any of these.
var (
	ErrStorage            = errors.New("session storage failure")
	ErrCorruptSession     = errors.New("stored session is corrupt")
	ErrCredentialRejected = errors.New("refresh credential rejected by authority")
	ErrNetwork            = errors.New("authority unreachable")
	ErrNoSession          = errors.New("no live session")
	ErrNotApproved        = errors.New("session is not approved")
)

// StorageError wraps a local I/O failure with the store operation that caused it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "session storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError returns a StorageError for op, or nil if err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
