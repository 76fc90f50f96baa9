package daemonctl_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/daemonctl"
	"scribe/internal/ipc"
	"scribe/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	summary := daemonctl.BuildDependencySummary([]ipc.DependencyStatus{
		{Name: "uvx", Available: false},
		{Name: "ffprobe", Available: false, Optional: true},
		{Name: "nvidia-smi", Available: true, Optional: true},
	})
	if summary.Severity != "error" || summary.MissingRequired != 1 || summary.MissingOptional != 1 || summary.Available != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if !strings.Contains(summary.Detail, "1/3 available") {
		t.Fatalf("unexpected detail %q", summary.Detail)
	}

	empty := daemonctl.BuildDependencySummary(nil)
	if empty.Severity != "info" {
		t.Fatalf("expected info severity without checks, got %q", empty.Severity)
	}

	ok := daemonctl.BuildDependencySummary([]ipc.DependencyStatus{{Name: "uvx", Available: true}})
	if ok.Severity != "ok" || ok.Detail != "1/1 available" {
		t.Fatalf("unexpected summary %#v", ok)
	}
}

func TestDependencySeverity(t *testing.T) {
	cases := []struct {
		dep  ipc.DependencyStatus
		want string
	}{
		{ipc.DependencyStatus{Available: true}, "ok"},
		{ipc.DependencyStatus{Optional: true}, "warn"},
		{ipc.DependencyStatus{}, "error"},
	}
	for _, tc := range cases {
		if got := daemonctl.DependencySeverity(tc.dep); got != tc.want {
			t.Fatalf("DependencySeverity(%#v) = %q, want %q", tc.dep, got, tc.want)
		}
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewTask(t, store, cfg, "a.wav", "b.wav")

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable || snapshot.Status.Running {
		t.Fatalf("expected offline snapshot, got %#v", snapshot)
	}
	if snapshot.Status.FileStats["pending"] != 2 || snapshot.Status.QueueLength != 1 {
		t.Fatalf("expected local counts, got stats=%v queue=%d", snapshot.Status.FileStats, snapshot.Status.QueueLength)
	}
	if snapshot.Summary.Severity != "ok" {
		t.Fatalf("expected stubbed dependencies to be available, got %#v", snapshot.Summary)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := daemonctl.StopAndTerminate(cfg, 100*time.Millisecond); err != daemonctl.ErrDaemonNotRunning {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := daemonctl.ProcessInfo(cfg.SocketPath())
	if alive || pid != 0 || err != nil {
		t.Fatalf("unexpected process info %v %d %v", alive, pid, err)
	}
	if err := daemonctl.WaitForShutdown(cfg.SocketPath(), 100*time.Millisecond); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestForceKillRequiresPID(t *testing.T) {
	dir := t.TempDir()
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}

	pidPath := filepath.Join(dir, "self.pid")
	if err := os.WriteFile(pidPath, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, "", os.Getpid()); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill the current process, got %v", err)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := daemonctl.Launch("  ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
