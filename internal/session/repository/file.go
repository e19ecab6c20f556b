package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"storefront/sessioncore/internal/security"
	"storefront/sessioncore/internal/session/domain"
)

// FileStore keeps the session in one file. Saves go through a temp file in the same
// directory and a rename, so readers see either the old record or the new one.
type FileStore struct {
	path  string
	codec codec
}

// NewFileStore returns a store backed by path. The parent directory is created on first Save.
func NewFileStore(path string, sealer security.Sealer) *FileStore {
	return &FileStore{path: filepath.Clean(path), codec: newCodec(sealer)}
}

// Path returns the record location.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the record. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewStorageError("load", err)
	}
	return s.codec.decode(payload)
}

// Save replaces the record. Cancellation is honored only before the write begins.
func (s *FileStore) Save(ctx context.Context, sess *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := s.codec.encode(sess)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return domain.NewStorageError("save", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return domain.NewStorageError("save", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return domain.NewStorageError("save", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.NewStorageError("save", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.NewStorageError("save", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return domain.NewStorageError("save", err)
	}
	committed = true
	syncDir(dir)
	return nil
}

// Delete removes the record file.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewStorageError("delete", err)
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

// syncDir flushes a rename or unlink to disk. Best-effort: not every platform supports fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
