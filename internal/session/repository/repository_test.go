package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/sessioncore/internal/security"
	"storefront/sessioncore/internal/session/domain"
)

func testSession(t *testing.T, userID string) *domain.Session {
	t.Helper()
	s, err := domain.New(userID, domain.RoleMerchant, true, "rt-"+userID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	if err != nil {
		t.Fatalf("domain.New: %v", err)
	}
	return s
}

func testSealer(t *testing.T) security.Sealer {
	t.Helper()
	s, err := security.NewAEADSealer([]byte("0123456789abcdef0123456789abcdef"), "device-1")
	if err != nil {
		t.Fatalf("NewAEADSealer: %v", err)
	}
	return s
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqliteStore, err := OpenSQLiteStore(filepath.Join(dir, "session.db"), testSealer(t))
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "session.json"), testSealer(t)),
		"sqlite": sqliteStore,
		"memory": NewMemoryStore(),
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if s != nil {
				t.Errorf("Load on empty store = %+v, want nil", s)
			}
		})
	}
}

func TestStore_SaveLoadOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, testSession(t, "u1")); err != nil {
				t.Fatalf("Save u1: %v", err)
			}
			if err := store.Save(ctx, testSession(t, "u2")); err != nil {
				t.Fatalf("Save u2: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got == nil || got.UserID != "u2" || got.RefreshToken != "rt-u2" {
				t.Fatalf("Load = %+v, want user u2", got)
			}
			if !got.ExpiresAt.Equal(testSession(t, "u2").ExpiresAt) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, testSession(t, "u2").ExpiresAt)
			}
		})
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, testSession(t, "u1")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := store.Delete(ctx); err != nil {
					t.Fatalf("Delete #%d: %v", i+1, err)
				}
			}
			got, err := store.Load(ctx)
			if err != nil || got != nil {
				t.Errorf("Load after Delete = %+v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestStore_SaveRejectsInvalidSession(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			bad := testSession(t, "u1")
			bad.ExpiresAt = bad.IssuedAt
			if err := store.Save(ctx, bad); err == nil {
				t.Fatal("Save should reject expires_at <= issued_at")
			}
			if got, _ := store.Load(ctx); got != nil {
				t.Errorf("invalid session was persisted: %+v", got)
			}
		})
	}
}

func TestFileStore_GarbageIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"user_id":"u1","role":"merch`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileStore(path, nil).Load(context.Background())
	if !errors.Is(err, domain.ErrCorruptSession) {
		t.Errorf("Load torn file: err = %v, want ErrCorruptSession", err)
	}
}

func TestFileStore_UnknownRoleIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	raw := `{"version":1,"user_id":"u1","role":"customer","approved":true,` +
		`"issued_at":"2026-01-01T00:00:00Z","expires_at":"2026-01-02T00:00:00Z","refresh_token":"rt"}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileStore(path, nil).Load(context.Background())
	if !errors.Is(err, domain.ErrCorruptSession) {
		t.Errorf("Load unknown role: err = %v, want ErrCorruptSession", err)
	}
}

func TestFileStore_SealedWithOtherKeyIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()
	if err := NewFileStore(path, testSealer(t)).Save(ctx, testSession(t, "u1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	other, err := security.NewAEADSealer([]byte("fedcba9876543210fedcba9876543210"), "device-1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewFileStore(path, other).Load(ctx)
	if !errors.Is(err, domain.ErrCorruptSession) {
		t.Errorf("Load with other key: err = %v, want ErrCorruptSession", err)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "session.json"), nil)
	for i := 0; i < 3; i++ {
		if err := store.Save(context.Background(), testSession(t, "u1")); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "session.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only session.json", names)
	}
}

func TestFileStore_SaveCancelledBeforeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, nil)
	if err := store.Save(context.Background(), testSession(t, "u1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Save(ctx, testSession(t, "u2")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save with cancelled ctx: err = %v, want context.Canceled", err)
	}
	got, err := store.Load(context.Background())
	if err != nil || got == nil || got.UserID != "u1" {
		t.Errorf("Load = %+v, %v; want previous record u1", got, err)
	}
}

func TestFileStore_LoadIOErrorIsStorageError(t *testing.T) {
	dir := t.TempDir()
	// A directory at the record path cannot be read as a file.
	path := filepath.Join(dir, "session.json")
	if err := os.Mkdir(path, 0o700); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileStore(path, nil).Load(context.Background())
	if !errors.Is(err, domain.ErrStorage) {
		t.Errorf("Load: err = %v, want ErrStorage", err)
	}
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "load" {
		t.Errorf("Load: err = %#v, want *StorageError{Op: load}", err)
	}
}

func TestSQLiteStore_SingleRow(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "session.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := store.Save(ctx, testSession(t, id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	var n int
	if err := store.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_session`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if _, err := store.sqlDB.ExecContext(ctx, `INSERT INTO device_session (id, payload, updated_at) VALUES (2, x'00', 0)`); err == nil {
		t.Error("a second row should violate the id = 1 check")
	}
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()
	for _, driver := range []string{DriverFile, DriverSQLite, DriverMemory} {
		store, closeFn, err := Open(driver, filepath.Join(dir, driver+".rec"), nil)
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if store == nil {
			t.Errorf("Open(%q) returned nil store", driver)
		}
		if err := closeFn(); err != nil {
			t.Errorf("close %q: %v", driver, err)
		}
	}
	if _, _, err := Open("redis", "x", nil); err == nil {
		t.Error("Open with unknown driver should fail")
	}
}
