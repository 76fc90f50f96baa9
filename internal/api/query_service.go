package api

import (
	"context"

	"scribe/internal/queue"
	"scribe/internal/workflow"
)

// TaskReader abstracts the queue persistence reads needed for API queries.
type TaskReader interface {
	GetTask(ctx context.Context, id string) (*queue.Task, error)
	ListTasks(ctx context.Context, limit int) ([]*queue.Task, error)
	CountQueued(ctx context.Context) (int, error)
	CompletedFiles(ctx context.Context, limit int) ([]queue.TaskFile, error)
	FileStats(ctx context.Context) (map[queue.FileStatus]int, error)
}

// StateReader exposes the processing loop snapshot.
type StateReader interface {
	Snapshot() workflow.Snapshot
}

// QueryService exposes read-only task operations returning API DTOs.
type QueryService struct {
	store TaskReader
	state StateReader
}

// NewQueryService constructs a QueryService. state may be nil, in which case
// the queue is reported as idle.
func NewQueryService(store TaskReader, state StateReader) *QueryService {
	if store == nil {
		return nil
	}
	return &QueryService{store: store, state: state}
}

// GetTask returns the task, or nil when it does not exist.
func (s *QueryService) GetTask(ctx context.Context, taskID string) (*Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}

// GetFile returns one file of a task. A missing task or an index outside
// [0, fileCount) yields nil.
func (s *QueryService) GetFile(ctx context.Context, taskID string, index int) (*File, error) {
	task, err := s.load(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	f, ok := task.File(index)
	if !ok {
		return nil, nil
	}
	dto := FromTaskFile(*f)
	return &dto, nil
}

// GetCompletedResults returns the completed files of a task regardless of
// whether the rest are done.
func (s *QueryService) GetCompletedResults(ctx context.Context, taskID string) (*CompletedResults, error) {
	task, err := s.load(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	completed := task.Completed()
	out := &CompletedResults{
		TaskID:         task.ID,
		CompletedCount: len(completed),
		TotalCount:     len(task.Files),
		Results:        make([]FileResult, 0, len(completed)),
	}
	for _, f := range completed {
		out.Results = append(out.Results, fileResult(f))
	}
	return out, nil
}

// GetFileResult returns the transcription of a file, or nil when the file
// does not exist or has not completed.
func (s *QueryService) GetFileResult(ctx context.Context, taskID string, index int) (*FileResult, error) {
	task, err := s.load(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	f, ok := task.File(index)
	if !ok || f.Status != queue.FileStatusCompleted || f.Result == nil {
		return nil, nil
	}
	res := fileResult(*f)
	return &res, nil
}

// GetTaskResults returns the outcome of every file once all are terminal.
// It returns ErrTaskNotFound for a missing task and an *IncompleteError
// while any file is pending or processing.
func (s *QueryService) GetTaskResults(ctx context.Context, taskID string) (*TaskResults, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if outstanding := task.Outstanding(); len(outstanding) > 0 {
		incomplete := &IncompleteError{TaskID: task.ID}
		for _, f := range outstanding {
			incomplete.Outstanding = append(incomplete.Outstanding, outstandingFile(f))
		}
		return nil, incomplete
	}
	out := &TaskResults{
		TaskID:      task.ID,
		Status:      string(task.Status()),
		CompletedAt: formatTimePtr(task.CompletedAt()),
		Summary:     FromSummary(task.Summary()),
		Results:     make([]File, 0, len(task.Files)),
	}
	for _, f := range task.Files {
		out.Results = append(out.Results, FromTaskFile(f))
	}
	return out, nil
}

// QueueInfo reports how many tasks are waiting untouched and which task, if
// any, is being processed.
func (s *QueryService) QueueInfo(ctx context.Context) (QueueInfo, error) {
	info := QueueInfo{State: string(workflow.StateIdle)}
	if s == nil || s.store == nil {
		return info, nil
	}
	length, err := s.store.CountQueued(ctx)
	if err != nil {
		return info, err
	}
	info.QueueLength = length

	if s.state == nil {
		return info, nil
	}
	snap := s.state.Snapshot()
	info.State = string(snap.State)
	info.LastError = snap.LastError
	info.IsProcessing = snap.IsProcessing()
	if snap.CurrentTaskID != "" {
		current, err := s.GetTask(ctx, snap.CurrentTaskID)
		if err != nil {
			return info, err
		}
		info.CurrentTask = current
	}
	return info, nil
}

// ListTasks returns the newest tasks first.
func (s *QueryService) ListTasks(ctx context.Context, limit int) ([]Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	tasks, err := s.store.ListTasks(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromTasks(tasks), nil
}

// RecentFiles returns recently completed files across all tasks.
func (s *QueryService) RecentFiles(ctx context.Context, limit int) ([]RecentFile, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	files, err := s.store.CompletedFiles(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentFile, 0, len(files))
	for _, f := range files {
		out = append(out, recentFile(f))
	}
	return out, nil
}

// FileStats returns file counts keyed by status string.
func (s *QueryService) FileStats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.FileStats(ctx)
	if err != nil {
		return nil, err
	}
	return FromFileStats(stats), nil
}

func (s *QueryService) load(ctx context.Context, taskID string) (*queue.Task, error) {
	if s == nil || s.store == nil || taskID == "" {
		return nil, nil
	}
	return s.store.GetTask(ctx, taskID)
}
