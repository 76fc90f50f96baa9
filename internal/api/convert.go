package api

import (
	"time"

	"scribe/internal/deps"
	"scribe/internal/preflight"
	"scribe/internal/queue"
)

// FromTask converts a queue task to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}
	dto := Task{
		TaskID:   task.ID,
		UserID:   task.UserID,
		Status:   string(task.Status()),
		Progress: task.Progress(),
		Summary:  FromSummary(task.Summary()),
		Files:    make([]File, 0, len(task.Files)),
	}
	dto.CreatedAt = formatTime(task.CreatedAt)
	if task.IsTerminal() {
		dto.CompletedAt = formatTimePtr(task.CompletedAt())
	}
	for _, f := range task.Files {
		dto.Files = append(dto.Files, FromTaskFile(f))
	}
	return dto
}

// FromTasks converts a slice of tasks into API DTOs.
func FromTasks(tasks []*queue.Task) []Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromTaskFile converts a task file to its API representation.
func FromTaskFile(f queue.TaskFile) File {
	dto := File{
		Index:        f.Index,
		Filename:     f.Name,
		Status:       string(f.Status),
		Progress:     f.Progress,
		ErrorMessage: f.ErrorMessage,
		CreatedAt:    formatTime(f.CreatedAt),
		StartedAt:    formatTimePtr(f.StartedAt),
		CompletedAt:  formatTimePtr(f.CompletedAt),
	}
	if f.Status == queue.FileStatusCompleted && f.Result != nil {
		tr := fromResult(*f.Result)
		dto.Transcription = &tr
	}
	return dto
}

// FromSummary converts per-status counts.
func FromSummary(s queue.Summary) Summary {
	return Summary{
		Total:      s.Total,
		Pending:    s.Pending,
		Processing: s.Processing,
		Completed:  s.Completed,
		Failed:     s.Failed,
	}
}

// FromFileStats converts store counts to string keys, including zero
// entries for every known status.
func FromFileStats(stats map[queue.FileStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllFileStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromDependencies converts dependency availability results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

func fileResult(f queue.TaskFile) FileResult {
	res := FileResult{
		TaskID:      f.TaskID,
		FileIndex:   f.Index,
		Filename:    f.Name,
		CompletedAt: formatTimePtr(f.CompletedAt),
	}
	if f.Result != nil {
		res.Transcription = fromResult(*f.Result)
	}
	return res
}

func outstandingFile(f queue.TaskFile) OutstandingFile {
	return OutstandingFile{
		Index:    f.Index,
		Filename: f.Name,
		Status:   string(f.Status),
		Progress: f.Progress,
	}
}

func recentFile(f queue.TaskFile) RecentFile {
	rf := RecentFile{
		TaskID:      f.TaskID,
		FileIndex:   f.Index,
		Filename:    f.Name,
		CompletedAt: formatTimePtr(f.CompletedAt),
	}
	if f.Result != nil {
		rf.Language = f.Result.Language
		rf.Duration = f.Result.Duration
	}
	return rf
}

func fromResult(r queue.FileResult) Transcription {
	return Transcription{Text: r.Text, Language: r.Language, Duration: r.Duration}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
