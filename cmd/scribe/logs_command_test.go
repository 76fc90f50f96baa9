package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/testsupport"
)

func TestLogsCommandFiltersByTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "scribe.toml")
	writeTestConfig(t, configPath, cfg)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "task_id=t1 file started\ntask_id=t2 file started\ntask_id=t1 task drained\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "scribe.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--task", "t1"}, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "t2") || strings.Count(out, "t1") != 2 {
		t.Fatalf("unexpected filtered output %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.TrimSpace(out) != "task_id=t1 task drained" {
		t.Fatalf("unexpected tail %q", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	t.Setenv("SCRIBE_NTFY_TOPIC", "")
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "scribe.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}
