package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
)

// Transcriber converts one media file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (queue.FileResult, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, path string) (queue.FileResult, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, path string) (queue.FileResult, error) {
	return f(ctx, path)
}

// Store is the persistence the manager drains from. *queue.Store satisfies it.
type Store interface {
	UpsertTask(ctx context.Context, task *queue.Task) error
	GetTask(ctx context.Context, id string) (*queue.Task, error)
	NextTaskID(ctx context.Context) (string, error)
	ClearAll(ctx context.Context) (queue.ClearResult, error)
}

// DurationProbe reports a media file's duration in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// ErrNotRunning is returned when a command is sent before Start or after Stop.
var ErrNotRunning = errors.New("workflow manager not running")

// ErrBusy is returned by Clear while a drain pass is active.
var ErrBusy = errors.New("queue is processing")

// Manager owns the processing loop and its published state.
type Manager struct {
	cfg         *config.Config
	store       Store
	transcriber Transcriber
	probe       DurationProbe
	notifier    notifications.Service
	logger      *slog.Logger
	now         func() time.Time

	commands chan command

	mu       sync.RWMutex
	snapshot Snapshot
	cancel   context.CancelFunc
	done     chan struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithDurationProbe enables duration-informed progress pacing.
func WithDurationProbe(probe DurationProbe) ManagerOption {
	return func(m *Manager) {
		m.probe = probe
	}
}

// WithNotifier publishes task outcomes and loop aborts.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithClock overrides the time source used for transition timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. Call Start before enqueueing.
func NewManager(cfg *config.Config, store Store, transcriber Transcriber, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:         cfg,
		store:       store,
		transcriber: transcriber,
		notifier:    notifications.NewService(nil),
		logger:      logging.NewComponentLogger(logger, "workflow"),
		now:         time.Now,
		commands:    make(chan command),
		snapshot:    Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
