package queue_test

import (
	"context"
	"testing"
	"time"

	"scribe/internal/queue"
	"scribe/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %#v", health)
	}
	if len(health.MissingTables) != 0 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected schema %#v", health)
	}
	if store.Path() != cfg.QueueDBPath() {
		t.Fatalf("path = %q", store.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	task := testsupport.NewTask(t, store, cfg, "a.mp3")
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.GetTask(context.Background(), task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask after reopen: %v %v", got, err)
	}
}

func TestUpsertAndGetTaskRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	task := testsupport.NewTask(t, store, cfg, "a.mp3", "b.mp3", "c.mp3")
	task.Files[0].StartProcessing(now)
	task.Files[0].Complete(queue.FileResult{Text: "hello world", Language: "en", Duration: 12.5}, now)
	task.Files[1].StartProcessing(now)
	task.Files[1].UpdateProgress(40)
	task.Files[1].Fail("disk error", now)
	task.Files[2].StartProcessing(now)
	task.Files[2].UpdateProgress(70)
	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil || len(got.Files) != 3 {
		t.Fatalf("unexpected task %#v", got)
	}
	completed := got.Files[0]
	if completed.Status != queue.FileStatusCompleted || completed.Result == nil || completed.Result.Text != "hello world" || completed.Result.Language != "en" || completed.Result.Duration != 12.5 {
		t.Fatalf("unexpected completed file %#v", completed)
	}
	if completed.ErrorMessage != "" {
		t.Fatalf("completed file carries error %q", completed.ErrorMessage)
	}
	failed := got.Files[1]
	if failed.Status != queue.FileStatusFailed || failed.ErrorMessage != "disk error" || failed.Result != nil || failed.Progress != 40 {
		t.Fatalf("unexpected failed file %#v", failed)
	}
	processing := got.Files[2]
	if processing.Status != queue.FileStatusProcessing || processing.Progress != 70 || processing.StartedAt == nil || processing.CompletedAt != nil {
		t.Fatalf("unexpected processing file %#v", processing)
	}
	if got.Status() != queue.TaskStatusProcessing || got.Progress() != (100+40+70)/3 {
		t.Fatalf("unexpected derived state %s %d", got.Status(), got.Progress())
	}
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	got, err := store.GetTask(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %v %v", got, err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewTask(t, store, cfg, "a.mp3", "b.mp3")
	task.Files[0].StartProcessing(time.Now())
	task.Files[0].Complete(queue.FileResult{Text: "first"}, time.Now())
	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
	before, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}

	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("second UpsertTask: %v", err)
	}
	after, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	for i := range before.Files {
		b, a := before.Files[i], after.Files[i]
		if a.Status != b.Status || a.Progress != b.Progress || a.ErrorMessage != b.ErrorMessage {
			t.Fatalf("file %d changed: %#v -> %#v", i, b, a)
		}
		if (a.Result == nil) != (b.Result == nil) || (a.Result != nil && *a.Result != *b.Result) {
			t.Fatalf("file %d result changed", i)
		}
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatal("created_at changed on upsert")
	}
}

func TestPendingQueriesAreFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewTask(t, store, cfg, "a.mp3")
	second := testsupport.NewTask(t, store, cfg, "b.mp3", "c.mp3")
	third := testsupport.NewTask(t, store, cfg, "d.mp3")

	ids, err := store.ListPendingTaskIDs(ctx)
	if err != nil {
		t.Fatalf("ListPendingTaskIDs: %v", err)
	}
	want := []string{first.ID, second.ID, third.ID}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	first.Files[0].StartProcessing(time.Now())
	first.Files[0].Complete(queue.FileResult{Text: "done"}, time.Now())
	second.Files[0].StartProcessing(time.Now())
	for _, task := range []*queue.Task{first, second} {
		if err := store.UpsertTask(ctx, task); err != nil {
			t.Fatalf("UpsertTask: %v", err)
		}
	}

	next, err := store.NextTaskID(ctx)
	if err != nil || next != second.ID {
		t.Fatalf("NextTaskID = %q %v, want %q", next, err, second.ID)
	}
	pending, err := store.CountPending(ctx)
	if err != nil || pending != 2 {
		t.Fatalf("CountPending = %d %v, want 2", pending, err)
	}
	queued, err := store.CountQueued(ctx)
	if err != nil || queued != 1 {
		t.Fatalf("CountQueued = %d %v, want 1", queued, err)
	}

	tasks, err := store.ListTasks(ctx, 2)
	if err != nil || len(tasks) != 2 || tasks[0].ID != third.ID {
		t.Fatalf("ListTasks newest first failed: %v %v", tasks, err)
	}
}

func TestFailInterruptedMarksProcessingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewTask(t, store, cfg, "a.mp3", "b.mp3")
	task.Files[0].StartProcessing(time.Now())
	task.Files[0].UpdateProgress(30)
	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}

	n, err := store.FailInterrupted(ctx, queue.InterruptedMessage, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("FailInterrupted = %d %v", n, err)
	}
	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Files[0].Status != queue.FileStatusFailed || got.Files[0].ErrorMessage != queue.InterruptedMessage || got.Files[0].CompletedAt == nil {
		t.Fatalf("unexpected interrupted file %#v", got.Files[0])
	}
	if got.Files[1].Status != queue.FileStatusPending {
		t.Fatalf("pending file touched: %#v", got.Files[1])
	}
}

func TestStatsCompletedFilesAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	base := time.Now()

	task := testsupport.NewTask(t, store, cfg, "a.mp3", "b.mp3", "c.mp3")
	task.Files[0].StartProcessing(base)
	task.Files[0].Complete(queue.FileResult{Text: "older"}, base)
	task.Files[1].StartProcessing(base)
	task.Files[1].Complete(queue.FileResult{Text: "newer"}, base.Add(time.Second))
	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
	testsupport.NewTask(t, store, cfg, "d.mp3")

	stats, err := store.FileStats(ctx)
	if err != nil {
		t.Fatalf("FileStats: %v", err)
	}
	if stats[queue.FileStatusCompleted] != 2 || stats[queue.FileStatusPending] != 2 || stats[queue.FileStatusFailed] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}

	recent, err := store.CompletedFiles(ctx, 1)
	if err != nil {
		t.Fatalf("CompletedFiles: %v", err)
	}
	if len(recent) != 1 || recent[0].Result == nil || recent[0].Result.Text != "newer" {
		t.Fatalf("unexpected recent %#v", recent)
	}

	cleared, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if cleared.DeletedTasks != 2 || cleared.DeletedFiles != 4 {
		t.Fatalf("unexpected clear result %#v", cleared)
	}
	if n, _ := store.CountPending(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}
