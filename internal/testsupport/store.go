package testsupport

import (
	"context"
	"testing"

	"tonietool/internal/config"
	"tonietool/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending conversion job for tests.
func NewJob(t testing.TB, store *queue.Store, title string, sources []string) *queue.Item {
	t.Helper()

	item, err := store.NewJob(context.Background(), title, sources, "", 96)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return item
}
