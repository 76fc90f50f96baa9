package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask persists a Pending task with one file per name. The files are
// written under the config's upload directory.
func NewTask(t testing.TB, store *queue.Store, cfg *config.Config, names ...string) *queue.Task {
	t.Helper()

	sources := make([]queue.FileSource, 0, len(names))
	for _, name := range names {
		path := filepath.Join(cfg.Paths.UploadDir, uuid.NewString()+"_"+name)
		WriteMedia(t, path, 16)
		sources = append(sources, queue.FileSource{Name: name, Path: path})
	}
	task := queue.NewTask(uuid.NewString(), "", sources, time.Now())
	if err := store.UpsertTask(context.Background(), task); err != nil {
		t.Fatalf("store.UpsertTask: %v", err)
	}
	return task
}
