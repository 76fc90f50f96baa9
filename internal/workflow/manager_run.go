package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
)

type commandKind int

const (
	commandEnqueue commandKind = iota
	commandWake
	commandClear
)

type command struct {
	kind    commandKind
	sources []queue.FileSource
	userID  string
	reply   chan commandResult
}

type commandResult struct {
	taskID  string
	cleared queue.ClearResult
	err     error
}

// Start launches the actor goroutine. Tasks left in the store from an
// earlier run are drained immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.snapshot.Running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.store == nil || m.transcriber == nil {
		m.mu.Unlock()
		return errors.New("workflow requires a store and a transcriber")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.snapshot.Running = true
	m.snapshot.State = StateIdle
	m.mu.Unlock()

	go m.run(runCtx)

	next, err := m.store.NextTaskID(ctx)
	if err != nil {
		m.logger.Warn("could not check for leftover tasks", logging.Error(err))
		return nil
	}
	if next != "" {
		m.logger.Info("resuming leftover tasks", logging.String(logging.FieldTaskID, next))
		_, err := m.send(ctx, command{kind: commandWake})
		return err
	}
	return nil
}

// Stop cancels the actor and any in-flight drain pass and waits for both.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.snapshot.Running || m.cancel == nil {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done

	m.publish(func(s *Snapshot) {
		s.Running = false
		s.State = StateIdle
		s.CurrentTaskID = ""
	})
}

// Enqueue creates a task for the given file paths and returns its id without
// waiting for processing. File names are taken from the paths.
func (m *Manager) Enqueue(ctx context.Context, filePaths []string, userID string) (string, error) {
	return m.EnqueueSources(ctx, queue.SourcesFromPaths(filePaths), userID)
}

// EnqueueSources is Enqueue with explicit display names, used when uploads
// are stored under generated names.
func (m *Manager) EnqueueSources(ctx context.Context, sources []queue.FileSource, userID string) (string, error) {
	if len(sources) == 0 {
		return "", errors.New("enqueue: at least one file is required")
	}
	for i, src := range sources {
		if strings.TrimSpace(src.Path) == "" {
			return "", fmt.Errorf("enqueue: file %d has no path", i)
		}
	}
	res, err := m.send(ctx, command{kind: commandEnqueue, sources: sources, userID: userID})
	if err != nil {
		return "", err
	}
	return res.taskID, nil
}

// Clear removes every task record. It refuses while a drain pass is active
// so the loop never writes back a task that was just deleted.
func (m *Manager) Clear(ctx context.Context) (queue.ClearResult, error) {
	res, err := m.send(ctx, command{kind: commandClear})
	if err != nil {
		return queue.ClearResult{}, err
	}
	return res.cleared, nil
}

func (m *Manager) send(ctx context.Context, cmd command) (commandResult, error) {
	m.mu.RLock()
	done := m.done
	running := m.snapshot.Running
	m.mu.RUnlock()
	if !running || done == nil {
		return commandResult{}, ErrNotRunning
	}

	cmd.reply = make(chan commandResult, 1)
	select {
	case m.commands <- cmd:
	case <-done:
		return commandResult{}, ErrNotRunning
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
	// The actor replies to every command it takes, and an accepted enqueue
	// may already be persisted, so the caller's ctx no longer applies.
	res := <-cmd.reply
	return res, res.err
}

// run is the actor. It is the only goroutine that starts drain passes, so at
// most one is ever active.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	var (
		drainDone chan error
		rearm     bool
	)
	startDrain := func() {
		drainDone = make(chan error, 1)
		rearm = false
		m.publish(func(s *Snapshot) { s.State = StateDraining })
		go func(out chan<- error) {
			out <- m.drain(ctx)
		}(drainDone)
	}

	for {
		select {
		case <-ctx.Done():
			if drainDone != nil {
				<-drainDone
			}
			return

		case cmd := <-m.commands:
			switch cmd.kind {
			case commandEnqueue:
				id, err := m.persistNewTask(ctx, cmd.sources, cmd.userID)
				cmd.reply <- commandResult{taskID: id, err: err}
				if err != nil {
					continue
				}
			case commandWake:
				cmd.reply <- commandResult{}
			case commandClear:
				if drainDone != nil {
					cmd.reply <- commandResult{err: ErrBusy}
					continue
				}
				cleared, err := m.store.ClearAll(ctx)
				if err == nil {
					m.logger.Info("queue cleared",
						logging.Int64("deleted_tasks", cleared.DeletedTasks),
						logging.Int64("deleted_files", cleared.DeletedFiles),
						logging.String(logging.FieldEventType, "queue_cleared"),
					)
				}
				cmd.reply <- commandResult{cleared: cleared, err: err}
				continue
			}
			if drainDone == nil {
				startDrain()
			} else {
				rearm = true
			}

		case err := <-drainDone:
			drainDone = nil
			if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				m.publish(func(s *Snapshot) {
					s.State = StateIdle
					s.CurrentTaskID = ""
					s.LastError = err.Error()
				})
				logging.ErrorWithContext(m.logger, "processing loop aborted", "loop_aborted",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check queue database access; the next enqueue restarts the loop"),
				)
				go m.notifyAbort(err)
				continue
			}
			if rearm && ctx.Err() == nil {
				startDrain()
				continue
			}
			m.publish(func(s *Snapshot) {
				s.State = StateIdle
				s.CurrentTaskID = ""
			})
			m.logger.Info("queue idle", logging.String(logging.FieldEventType, "queue_idle"))
		}
	}
}

func (m *Manager) persistNewTask(ctx context.Context, sources []queue.FileSource, userID string) (string, error) {
	task := queue.NewTask(uuid.NewString(), userID, sources, m.now())
	if err := m.store.UpsertTask(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	m.logger.Info("task enqueued",
		logging.String(logging.FieldTaskID, task.ID),
		logging.Int("file_count", len(task.Files)),
		logging.String("user_id", task.UserID),
		logging.String(logging.FieldEventType, "task_enqueued"),
	)
	return task.ID, nil
}

func (m *Manager) notifyAbort(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.notifier.Publish(ctx, notifications.EventLoopAborted, notifications.Payload{"error": cause.Error()}); err != nil {
		m.logger.Warn("abort notification failed", logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"))
	}
}
