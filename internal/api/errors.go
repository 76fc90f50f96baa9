package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound is returned by operations that require an existing task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskIncomplete marks IncompleteError for errors.Is checks.
	ErrTaskIncomplete = errors.New("task not complete")
)

// IncompleteError reports the files of a task that are still pending or
// processing.
type IncompleteError struct {
	TaskID      string
	Outstanding []OutstandingFile
}

func (e *IncompleteError) Error() string {
	names := make([]string, 0, len(e.Outstanding))
	for _, f := range e.Outstanding {
		names = append(names, fmt.Sprintf("%s (%s)", f.Filename, f.Status))
	}
	return fmt.Sprintf("task %s not complete: %d file(s) outstanding: %s",
		e.TaskID, len(e.Outstanding), strings.Join(names, ", "))
}

// Is matches ErrTaskIncomplete.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrTaskIncomplete
}

// Filenames lists the outstanding file names in index order.
func (e *IncompleteError) Filenames() []string {
	out := make([]string, 0, len(e.Outstanding))
	for _, f := range e.Outstanding {
		out = append(out, f.Filename)
	}
	return out
}
