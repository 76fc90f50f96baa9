package ipc

import "scribe/internal/api"

// Task mirrors the HTTP API task DTO for IPC callers.
type Task = api.Task

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// CheckStatus describes the outcome of a preflight check.
type CheckStatus = api.CheckStatus

// StopRequest stops the daemon process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and processing loop status.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	LockPath      string             `json:"lock_path"`
	QueueDBPath   string             `json:"queue_db_path"`
	APIAddress    string             `json:"api_address"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	Model         string             `json:"model"`
	Device        string             `json:"device"`
	State         string             `json:"state"`
	CurrentTaskID string             `json:"current_task_id"`
	LastTaskID    string             `json:"last_task_id"`
	LastError     string             `json:"last_error"`
	QueueLength   int                `json:"queue_length"`
	IsProcessing  bool               `json:"is_processing"`
	FileStats     map[string]int     `json:"file_stats"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Checks        []CheckStatus      `json:"checks"`
}

// QueueStatusRequest fetches the queue summary.
type QueueStatusRequest struct{}

// QueueStatusResponse wraps the queue summary.
type QueueStatusResponse struct {
	Info api.QueueInfo `json:"info"`
}

// QueueListRequest lists the most recent tasks. Limit <= 0 uses the server default.
type QueueListRequest struct {
	Limit int `json:"limit"`
}

// QueueListResponse contains tasks, newest first.
type QueueListResponse struct {
	Tasks []Task `json:"tasks"`
}

// QueueClearRequest removes every task.
type QueueClearRequest struct{}

// QueueClearResponse reports removed rows.
type QueueClearResponse struct {
	DeletedTasks int64 `json:"deleted_tasks"`
	DeletedFiles int64 `json:"deleted_files"`
}

// TaskShowRequest fetches a task by id.
type TaskShowRequest struct {
	TaskID string `json:"task_id"`
}

// TaskShowResponse contains a single task.
type TaskShowResponse struct {
	Task Task `json:"task"`
}

// TaskResultsRequest fetches task results. CompletedOnly returns whatever
// has finished even when files are still outstanding.
type TaskResultsRequest struct {
	TaskID        string `json:"task_id"`
	CompletedOnly bool   `json:"completed_only"`
}

// TaskResultsResponse carries either the final results or the partial
// completed set. Outstanding lists files blocking the final results.
type TaskResultsResponse struct {
	Complete    bool                  `json:"complete"`
	Results     *api.TaskResults      `json:"results,omitempty"`
	Completed   *api.CompletedResults `json:"completed,omitempty"`
	Outstanding []api.OutstandingFile `json:"outstanding,omitempty"`
}

// EnqueueFile names a file already staged in the daemon upload directory.
type EnqueueFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// EnqueueRequest submits staged files as one task.
type EnqueueRequest struct {
	UserID string        `json:"user_id"`
	Files  []EnqueueFile `json:"files"`
}

// EnqueueResponse reports the created task.
type EnqueueResponse struct {
	TaskID    string `json:"task_id"`
	FileCount int    `json:"file_count"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTasks       int      `json:"total_tasks"`
	TotalFiles       int      `json:"total_files"`
	Error            string   `json:"error"`
}
