package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary scribe shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Command holds the
// resolved path when the binary was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

var errNotConfigured = errors.New("command not configured")

// Transcription lists the binaries the transcription pipeline runs: uvx
// launches WhisperX, ffprobe supplies media durations for progress
// estimates and is optional.
func Transcription(ffprobeCommand string) []Requirement {
	return []Requirement{
		{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeCommand,
			Description: "Media duration for progress estimates",
			Optional:    true,
		},
	}
}

// Available reports whether command resolves to an executable.
func Available(command string) bool {
	_, err := lookup(command)
	return err == nil
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		path, err := lookup(req.Command)
		switch {
		case errors.Is(err, errNotConfigured):
			status.Detail = err.Error()
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Command = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

func lookup(command string) (string, error) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", errNotConfigured
	}
	return exec.LookPath(cmd)
}
