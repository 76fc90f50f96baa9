package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveCommand returns the absolute path for command when it can be found
// on PATH or is itself an executable path. Otherwise it returns the trimmed
// command unchanged so callers still get a useful error from exec.
func ResolveCommand(command string) string {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return ""
	}
	if strings.ContainsRune(cmd, filepath.Separator) {
		if info, err := os.Stat(cmd); err == nil && isExecutable(info) {
			if abs, err := filepath.Abs(cmd); err == nil {
				return abs
			}
		}
		return cmd
	}
	if resolved, err := exec.LookPath(cmd); err == nil {
		return resolved
	}
	return cmd
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
