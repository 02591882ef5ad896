package testsupport

import (
	"path/filepath"
	"testing"

	"grabarr/internal/queue"
)

// MustOpenStore opens a queue.Store backed by a per-test database file and
// registers cleanup.
func MustOpenStore(t testing.TB) *queue.Store {
	t.Helper()

	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "grabarr.db"))
	if err != nil {
		t.Fatalf("queue.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
