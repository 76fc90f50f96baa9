package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// FileStatus represents the lifecycle of a single file within a task.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

var allFileStatuses = []FileStatus{
	FileStatusPending,
	FileStatusProcessing,
	FileStatusCompleted,
	FileStatusFailed,
}

// AllFileStatuses returns the ordered list of known file statuses.
func AllFileStatuses() []FileStatus {
	cp := make([]FileStatus, len(allFileStatuses))
	copy(cp, allFileStatuses)
	return cp
}

// ParseFileStatus converts a string into a known FileStatus.
func ParseFileStatus(value string) (FileStatus, bool) {
	normalized := FileStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allFileStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions can occur.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// TaskStatus is the aggregate status of a task. It is always computed from
// the task's files and never persisted.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// InterruptedMessage is recorded on files that were mid-transcription when
// the daemon stopped.
const InterruptedMessage = "interrupted by restart"

// FileResult holds the transcription output of a completed file.
type FileResult struct {
	Text     string
	Language string
	// Duration is the media length in seconds.
	Duration float64
}

// TaskFile is one file within a task. Result is set only when the file is
// Completed and ErrorMessage only when it is Failed.
type TaskFile struct {
	TaskID       string
	Index        int
	Name         string
	Path         string
	Status       FileStatus
	Progress     int
	Result       *FileResult
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether the file is Completed or Failed.
func (f TaskFile) IsTerminal() bool {
	return f.Status.IsTerminal()
}

// StartProcessing moves the file into Processing and resets progress.
func (f *TaskFile) StartProcessing(now time.Time) {
	f.Status = FileStatusProcessing
	f.Progress = 0
	f.Result = nil
	f.ErrorMessage = ""
	f.CompletedAt = nil
	started := now.UTC()
	f.StartedAt = &started
}

// UpdateProgress records an intermediate progress value, clamped to [0, 100].
// Values are expected to be non-decreasing; that is not enforced here.
func (f *TaskFile) UpdateProgress(percent int) {
	f.Progress = clampPercent(percent)
}

// Complete stores the transcription result and marks the file Completed.
func (f *TaskFile) Complete(result FileResult, now time.Time) {
	f.Status = FileStatusCompleted
	f.Progress = 100
	f.ErrorMessage = ""
	r := result
	f.Result = &r
	done := now.UTC()
	f.CompletedAt = &done
}

// Fail records the failure message and marks the file Failed. Progress is
// left where it was.
func (f *TaskFile) Fail(message string, now time.Time) {
	f.Status = FileStatusFailed
	f.Result = nil
	f.ErrorMessage = strings.TrimSpace(message)
	if f.ErrorMessage == "" {
		f.ErrorMessage = "unknown error"
	}
	done := now.UTC()
	f.CompletedAt = &done
}

func (f TaskFile) clone() TaskFile {
	cp := f
	if f.Result != nil {
		r := *f.Result
		cp.Result = &r
	}
	if f.StartedAt != nil {
		t := *f.StartedAt
		cp.StartedAt = &t
	}
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// FileSource names a file handed to the queue. Path is owned by the queue
// from this point on and removed once the file has been processed.
type FileSource struct {
	Name string
	Path string
}

// SourcesFromPaths builds sources whose display name is the path's base name.
func SourcesFromPaths(paths []string) []FileSource {
	sources := make([]FileSource, 0, len(paths))
	for _, path := range paths {
		sources = append(sources, FileSource{Name: filepath.Base(path), Path: path})
	}
	return sources
}

// Task is a submitted batch of files. Its file count is fixed at creation.
type Task struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Files     []TaskFile
}

// NewTask builds a task whose files are all Pending, in submission order.
func NewTask(id, userID string, sources []FileSource, now time.Time) *Task {
	created := now.UTC()
	task := &Task{
		ID:        id,
		UserID:    strings.TrimSpace(userID),
		CreatedAt: created,
		Files:     make([]TaskFile, len(sources)),
	}
	for i, src := range sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			name = filepath.Base(src.Path)
		}
		task.Files[i] = TaskFile{
			TaskID:    id,
			Index:     i,
			Name:      name,
			Path:      src.Path,
			Status:    FileStatusPending,
			CreatedAt: created,
		}
	}
	return task
}

// Status derives the aggregate task status from its files:
// completed when every file is terminal and at least one completed, failed
// when every file is terminal and none completed, processing when any file
// is processing or completed, pending otherwise.
func (t *Task) Status() TaskStatus {
	if t == nil || len(t.Files) == 0 {
		return TaskStatusPending
	}
	allTerminal := true
	anyCompleted := false
	anyStarted := false
	for _, f := range t.Files {
		switch f.Status {
		case FileStatusCompleted:
			anyCompleted = true
			anyStarted = true
		case FileStatusProcessing:
			anyStarted = true
			allTerminal = false
		case FileStatusFailed:
		default:
			allTerminal = false
		}
	}
	switch {
	case allTerminal && anyCompleted:
		return TaskStatusCompleted
	case allTerminal:
		return TaskStatusFailed
	case anyStarted:
		return TaskStatusProcessing
	default:
		return TaskStatusPending
	}
}

// Progress is the floor average of file progress values, 0 for an empty task.
func (t *Task) Progress() int {
	if t == nil || len(t.Files) == 0 {
		return 0
	}
	sum := 0
	for _, f := range t.Files {
		sum += f.Progress
	}
	return sum / len(t.Files)
}

// Summary counts files per status.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Summary returns per-status file counts.
func (t *Task) Summary() Summary {
	var s Summary
	if t == nil {
		return s
	}
	s.Total = len(t.Files)
	for _, f := range t.Files {
		switch f.Status {
		case FileStatusPending:
			s.Pending++
		case FileStatusProcessing:
			s.Processing++
		case FileStatusCompleted:
			s.Completed++
		case FileStatusFailed:
			s.Failed++
		}
	}
	return s
}

// File returns the file at index, or false when index is out of range.
func (t *Task) File(index int) (*TaskFile, bool) {
	if t == nil || index < 0 || index >= len(t.Files) {
		return nil, false
	}
	return &t.Files[index], true
}

// AllPending reports whether the loop has not touched any file yet.
func (t *Task) AllPending() bool {
	if t == nil {
		return false
	}
	for _, f := range t.Files {
		if f.Status != FileStatusPending {
			return false
		}
	}
	return true
}

// IsTerminal reports whether every file is Completed or Failed.
func (t *Task) IsTerminal() bool {
	if t == nil {
		return false
	}
	for _, f := range t.Files {
		if !f.IsTerminal() {
			return false
		}
	}
	return true
}

// Outstanding returns the files that have not reached a terminal state.
func (t *Task) Outstanding() []TaskFile {
	if t == nil {
		return nil
	}
	var out []TaskFile
	for _, f := range t.Files {
		if !f.IsTerminal() {
			out = append(out, f.clone())
		}
	}
	return out
}

// Completed returns the files that finished successfully, in index order.
func (t *Task) Completed() []TaskFile {
	if t == nil {
		return nil
	}
	var out []TaskFile
	for _, f := range t.Files {
		if f.Status == FileStatusCompleted {
			out = append(out, f.clone())
		}
	}
	return out
}

// CompletedAt returns the latest file completion time, or nil when no file
// has finished.
func (t *Task) CompletedAt() *time.Time {
	if t == nil {
		return nil
	}
	var latest *time.Time
	for _, f := range t.Files {
		if f.CompletedAt == nil {
			continue
		}
		if latest == nil || f.CompletedAt.After(*latest) {
			ts := *f.CompletedAt
			latest = &ts
		}
	}
	return latest
}

// Clone returns a deep copy safe to hand to readers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Files = make([]TaskFile, len(t.Files))
	for i, f := range t.Files {
		cp.Files[i] = f.clone()
	}
	return &cp
}

func clampPercent(value int) int {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalTasks       int
	TotalFiles       int
	Error            string
}

// ClearResult reports how many rows ClearAll removed.
type ClearResult struct {
	DeletedTasks int64
	DeletedFiles int64
}
