package queue

import (
	"database/sql"
	"errors"
	"time"
)

const fileColumns = "task_id, file_index, file_name, file_path, status, progress, transcription, language, duration, error_message, created_at, started_at, completed_at"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanFile(scanner interface{ Scan(dest ...any) error }) (TaskFile, error) {
	var (
		file          TaskFile
		statusStr     string
		transcription sql.NullString
		language      sql.NullString
		duration      sql.NullFloat64
		errorMessage  sql.NullString
		createdRaw    string
		startedRaw    sql.NullString
		completedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&file.TaskID,
		&file.Index,
		&file.Name,
		&file.Path,
		&statusStr,
		&file.Progress,
		&transcription,
		&language,
		&duration,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return TaskFile{}, err
	}

	file.Status = FileStatus(statusStr)
	if file.Status == FileStatusCompleted {
		file.Result = &FileResult{
			Text:     transcription.String,
			Language: language.String,
			Duration: duration.Float64,
		}
	}
	if file.Status == FileStatusFailed {
		file.ErrorMessage = errorMessage.String
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		file.CreatedAt = created
	}
	file.StartedAt = parseNullableTime(startedRaw)
	file.CompletedAt = parseNullableTime(completedRaw)
	return file, nil
}

// fileArgs returns the insert arguments for fileColumns. Result fields are
// written only for completed files and the error only for failed ones.
func fileArgs(f TaskFile) []any {
	var transcription, language, duration, errorMessage any
	switch f.Status {
	case FileStatusCompleted:
		if f.Result != nil {
			transcription = f.Result.Text
			language = nullableString(f.Result.Language)
			duration = f.Result.Duration
		}
	case FileStatusFailed:
		errorMessage = nullableString(f.ErrorMessage)
	}
	return []any{
		f.TaskID,
		f.Index,
		f.Name,
		f.Path,
		string(f.Status),
		f.Progress,
		transcription,
		language,
		duration,
		errorMessage,
		formatTime(f.CreatedAt),
		nullableTime(f.StartedAt),
		nullableTime(f.CompletedAt),
	}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
