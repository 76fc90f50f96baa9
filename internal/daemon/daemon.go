package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/logging"
	"scribe/internal/preflight"
	"scribe/internal/queue"
	"scribe/internal/workflow"
)

// APIVersion is reported by the health endpoint.
const APIVersion = "1.0.0"

// Info describes the transcription backend for health reporting.
type Info struct {
	Model  string
	Device string
}

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	queries  *api.QueryService
	info     Info

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	api       *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Uptime       time.Duration
	Workflow     workflow.Snapshot
	Queue        api.QueueInfo
	Dependencies []deps.Status
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, info Info) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		queries:  api.NewQueryService(store, wf),
		info:     info,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, applies the startup reset policy, and
// launches the workflow manager and API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	if err := d.prepareQueue(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}

	srv := newAPIServer(d.cfg, d, d.logger)
	if err := srv.start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.api = srv
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_address", srv.address()),
	)
	return nil
}

// prepareQueue applies workflow.reset_on_start. Uploads do not survive a
// restart, so either every record is dropped or files caught mid-flight
// are failed.
func (d *Daemon) prepareQueue(ctx context.Context) error {
	if d.cfg.Workflow.ResetOnStart {
		res, err := d.store.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("reset queue: %w", err)
		}
		removed := d.pruneUploads()
		d.logger.Info("queue reset on start",
			logging.String(logging.FieldEventType, "queue_reset"),
			logging.Int64("deleted_tasks", res.DeletedTasks),
			logging.Int64("deleted_files", res.DeletedFiles),
			logging.Int("removed_uploads", removed),
		)
		return nil
	}

	failed, err := d.store.FailInterrupted(ctx, queue.InterruptedMessage, time.Now())
	if err != nil {
		return fmt.Errorf("fail interrupted files: %w", err)
	}
	if failed > 0 {
		logging.WarnWithContext(d.logger, "failed files interrupted by restart", "files_interrupted",
			logging.Int64("files", failed),
			logging.String(logging.FieldImpact, "interrupted files must be uploaded again"),
		)
	}
	return nil
}

// pruneUploads removes leftover upload files. Only called after every task
// record has been cleared, so nothing references them.
func (d *Daemon) pruneUploads() int {
	dir := d.cfg.Paths.UploadDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			d.logger.Debug("remove stale upload failed", logging.String("file", entry.Name()), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// Stop stops the API server and background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	srv := d.api
	d.cancel = nil
	d.api = nil
	d.running.Store(false)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	srv.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("scribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Queries exposes the read-side query service.
func (d *Daemon) Queries() *api.QueryService {
	return d.queries
}

// Enqueue submits files already placed in the upload directory.
func (d *Daemon) Enqueue(ctx context.Context, sources []queue.FileSource, userID string) (string, error) {
	if !d.running.Load() {
		return "", workflow.ErrNotRunning
	}
	return d.workflow.EnqueueSources(ctx, sources, userID)
}

// ClearQueue removes every task record. It fails with workflow.ErrBusy while
// the queue is processing.
func (d *Daemon) ClearQueue(ctx context.Context) (queue.ClearResult, error) {
	if !d.running.Load() {
		return d.store.ClearAll(ctx)
	}
	return d.workflow.Clear(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Info returns the transcription backend description.
func (d *Daemon) Info() Info {
	return d.info
}

// UploadDir is where enqueued files must be staged.
func (d *Daemon) UploadDir() string {
	return d.cfg.Paths.UploadDir
}

// APIAddress returns the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Snapshot(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
	d.mu.Lock()
	if status.Running {
		status.Uptime = time.Since(d.startedAt)
	}
	d.mu.Unlock()

	info, err := d.queries.QueueInfo(ctx)
	if err != nil {
		d.logger.Warn("queue info unavailable", logging.Error(err))
	}
	status.Queue = info
	return status
}
