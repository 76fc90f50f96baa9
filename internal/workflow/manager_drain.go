package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/services"
)

// DaemonStopReason is recorded on a file whose transcription was cut short by
// shutdown.
const DaemonStopReason = "daemon stopped"

const terminalWriteTimeout = 5 * time.Second

// drain processes tasks until none has unfinished files. A returned error is
// a loop-level failure; per-file failures are recorded on the file instead.
func (m *Manager) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		taskID, err := m.store.NextTaskID(ctx)
		if err != nil {
			return fmt.Errorf("select next task: %w", err)
		}
		if taskID == "" {
			return nil
		}
		task, err := m.store.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("load task %s: %w", taskID, err)
		}
		if task == nil {
			return fmt.Errorf("load task %s: task disappeared", taskID)
		}

		m.setCurrentTask(task.ID)
		if err := m.processTask(ctx, task); err != nil {
			return err
		}
		m.setCurrentTask("")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.TaskPause()):
		}
	}
}

func (m *Manager) processTask(ctx context.Context, task *queue.Task) error {
	taskCtx := services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(taskCtx, m.logger)
	start := time.Now()

	for i := range task.Files {
		if task.Files[i].IsTerminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.processFile(services.WithFileIndex(taskCtx, i), task, i); err != nil {
			return err
		}
	}

	if err := m.store.UpsertTask(taskCtx, task); err != nil {
		return fmt.Errorf("persist drained task %s: %w", task.ID, err)
	}
	summary := task.Summary()
	logger.Info("task drained",
		logging.String("status", string(task.Status())),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "task_drained"),
	)
	m.notifyTask(taskCtx, logger, task, time.Since(start))
	return nil
}

func (m *Manager) notifyTask(ctx context.Context, logger *slog.Logger, task *queue.Task, elapsed time.Duration) {
	summary := task.Summary()
	event := notifications.EventTaskCompleted
	if task.Status() == queue.TaskStatusFailed {
		event = notifications.EventTaskFailed
	}
	err := m.notifier.Publish(ctx, event, notifications.Payload{
		"task_id":   task.ID,
		"user_id":   task.UserID,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"elapsed":   elapsed,
	})
	if err != nil {
		logger.Warn("task notification failed", logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"))
	}
}

// processFile drives one file from Pending to a terminal state. Transcription
// and per-file write failures are recorded on the file. Only shutdown, or a
// file whose failure could not be recorded either, is returned.
func (m *Manager) processFile(ctx context.Context, task *queue.Task, index int) error {
	file := &task.Files[index]
	logger := logging.WithContext(ctx, m.logger)

	file.StartProcessing(m.now())
	if err := m.store.UpsertTask(ctx, task); err != nil {
		if ctx.Err() != nil {
			return m.failOnShutdown(ctx, logger, task, index)
		}
		return m.failOnWrite(ctx, logger, task, index, fmt.Errorf("persist processing transition: %w", err))
	}
	logger.Info("file started",
		logging.FileName(file.Name),
		logging.String(logging.FieldEventType, "file_started"),
	)

	start := time.Now()
	result, err := m.transcribeWithProgress(ctx, logger, task, index)
	if err != nil && ctx.Err() != nil {
		return m.failOnShutdown(ctx, logger, task, index)
	}

	if err != nil {
		file.Fail(err.Error(), m.now())
		logging.WarnWithContext(logger, "file failed", "file_failed",
			logging.FileName(file.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "other files in the task continue"),
		)
	} else {
		file.Complete(result, m.now())
		logger.Info("file completed",
			logging.FileName(file.Name),
			logging.String("language", result.Language),
			logging.Float64("media_seconds", result.Duration),
			logging.Duration("elapsed", time.Since(start)),
			logging.String(logging.FieldEventType, "file_completed"),
		)
	}

	if err := m.persistTerminal(ctx, task); err != nil {
		return m.failOnWrite(ctx, logger, task, index, fmt.Errorf("persist terminal transition: %w", err))
	}
	m.removeUpload(logger, file.Path)
	return nil
}

// persistTerminal writes a terminal file transition. The write outlives
// cancellation of ctx so a finished file is not left Processing on shutdown.
func (m *Manager) persistTerminal(ctx context.Context, task *queue.Task) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	return m.store.UpsertTask(writeCtx, task)
}

// failOnWrite marks the file Failed after a store write error and retries the
// write once. The upload is kept when the failure cannot be recorded.
func (m *Manager) failOnWrite(ctx context.Context, logger *slog.Logger, task *queue.Task, index int, cause error) error {
	file := &task.Files[index]
	file.Fail(cause.Error(), m.now())
	logging.WarnWithContext(logger, "file failed", "file_failed",
		logging.FileName(file.Name),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, "other files in the task continue"),
	)
	if err := m.persistTerminal(ctx, task); err != nil {
		return fmt.Errorf("record failed file %s: %w", file.Name, err)
	}
	m.removeUpload(logger, file.Path)
	return nil
}

// failOnShutdown records the in-flight file as stopped and returns the
// cancellation so the drain pass ends.
func (m *Manager) failOnShutdown(ctx context.Context, logger *slog.Logger, task *queue.Task, index int) error {
	file := &task.Files[index]
	file.Fail(DaemonStopReason, m.now())
	if err := m.persistTerminal(ctx, task); err != nil {
		logger.Warn("could not record interrupted file", logging.Error(err))
		return ctx.Err()
	}
	m.removeUpload(logger, file.Path)
	return ctx.Err()
}

// transcribeWithProgress runs the transcriber while a pacer writes estimated
// progress. The pacer is stopped and waited on before returning, so the
// caller owns the file again when this returns.
func (m *Manager) transcribeWithProgress(ctx context.Context, logger *slog.Logger, task *queue.Task, index int) (queue.FileResult, error) {
	path := task.Files[index].Path

	callCtx := ctx
	timeout := m.cfg.TranscriptionTimeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pacerCtx, stopPacer := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.pace(pacerCtx, logger, task, index)
	}()

	result, err := m.transcriber.Transcribe(callCtx, path)
	stopPacer()
	wg.Wait()

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, "transcription", "transcribe",
			fmt.Sprintf("no result after %s", timeout), err)
	}
	return result, err
}

func (m *Manager) removeUpload(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "upload cleanup failed", "upload_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.upload_dir"),
			logging.String(logging.FieldImpact, "uploaded file remains on disk"),
		)
	}
}
