package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a task in a transport-friendly format.
type Task struct {
	TaskID      string  `json:"task_id"`
	UserID      string  `json:"user_id,omitempty"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	CreatedAt   string  `json:"created_at,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Summary     Summary `json:"summary"`
	Files       []File  `json:"files"`
}

// Summary counts a task's files per status.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// File describes one file of a task. Transcription is present only when the
// file is completed and ErrorMessage only when it failed.
type File struct {
	Index         int            `json:"index"`
	Filename      string         `json:"filename"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	Transcription *Transcription `json:"transcription,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	StartedAt     string         `json:"started_at,omitempty"`
	CompletedAt   string         `json:"completed_at,omitempty"`
}

// Transcription is the text output for a file.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// FileResult is the transcription of a single completed file.
type FileResult struct {
	TaskID        string        `json:"task_id"`
	FileIndex     int           `json:"file_index"`
	Filename      string        `json:"filename"`
	Transcription Transcription `json:"transcription"`
	CompletedAt   string        `json:"completed_at,omitempty"`
}

// CompletedResults lists the completed files of a task that may still be
// processing.
type CompletedResults struct {
	TaskID         string       `json:"task_id"`
	CompletedCount int          `json:"completed_count"`
	TotalCount     int          `json:"total_count"`
	Results        []FileResult `json:"results"`
}

// TaskResults is the full outcome of a task whose files are all terminal.
type TaskResults struct {
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Summary     Summary `json:"summary"`
	Results     []File  `json:"results"`
}

// OutstandingFile names a file that has not reached a terminal state.
type OutstandingFile struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// QueueInfo summarizes the processing queue.
type QueueInfo struct {
	QueueLength  int    `json:"queue_length"`
	IsProcessing bool   `json:"is_processing"`
	State        string `json:"state"`
	LastError    string `json:"last_error,omitempty"`
	CurrentTask  *Task  `json:"current_task"`
}

// RecentFile is a recently completed file from any task.
type RecentFile struct {
	TaskID      string  `json:"task_id"`
	FileIndex   int     `json:"file_index"`
	Filename    string  `json:"filename"`
	Language    string  `json:"language"`
	Duration    float64 `json:"duration"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

// FileStatsResponse provides file counts keyed by status.
type FileStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckStatus captures the result of a preflight check.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// EnqueueResponse acknowledges an accepted upload.
type EnqueueResponse struct {
	TaskID    string   `json:"task_id"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	FileCount int      `json:"file_count"`
	Files     []string `json:"files"`
}

// FileResponse wraps a single file of a task.
type FileResponse struct {
	TaskID string `json:"task_id"`
	File   File   `json:"file"`
}

// RecentFilesResponse wraps recently completed files.
type RecentFilesResponse struct {
	Files []RecentFile `json:"files"`
}

// HealthResponse reports daemon health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Device        string             `json:"device"`
	Model         string             `json:"model"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	APIVersion    string             `json:"api_version"`
	QueueDB       string             `json:"queue_db"`
	Queue         QueueInfo          `json:"queue"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Checks        []CheckStatus      `json:"checks"`
}

// ErrorResponse is the body of every non-2xx API response. Optional fields
// carry the detail of RESULT_NOT_READY and TASK_NOT_COMPLETE errors.
type ErrorResponse struct {
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	CurrentStatus   string   `json:"current_status,omitempty"`
	CurrentProgress *int     `json:"current_progress,omitempty"`
	IncompleteFiles []string `json:"incomplete_files,omitempty"`
}

// Error codes used in ErrorResponse.
const (
	CodeTaskNotFound    = "TASK_NOT_FOUND"
	CodeFileNotFound    = "FILE_NOT_FOUND"
	CodeResultNotReady  = "RESULT_NOT_READY"
	CodeTaskNotComplete = "TASK_NOT_COMPLETE"
	CodeInvalidUpload   = "INVALID_UPLOAD"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeQueueBusy       = "QUEUE_BUSY"
	CodeUnavailable     = "UNAVAILABLE"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL"
)
