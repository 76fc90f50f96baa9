package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/ipc"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) release() {
	g.once.Do(func() {
		if g.ch != nil {
			close(g.ch)
		}
	})
}

func (g *gate) transcriber() workflow.Transcriber {
	return workflow.TranscriberFunc(func(ctx context.Context, path string) (queue.FileResult, error) {
		if g != nil && g.ch != nil {
			select {
			case <-g.ch:
			case <-ctx.Done():
				return queue.FileResult{}, ctx.Err()
			}
		}
		return queue.FileResult{Text: "hello from " + filepath.Ext(path), Language: "en", Duration: 2.5}, nil
	})
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

// setupCLITestEnv runs an in-process daemon and IPC server and writes a
// config file that points the CLI at them.
func setupCLITestEnv(t *testing.T, g *gate) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIBind = ""
	cfg.Paths.Socket = shortSocketPath(t)
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "scribe.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, g.transcriber(), logger)
	d, err := daemon.New(cfg, store, logger, mgr, daemon.Info{Model: "tiny", Device: "cpu"})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		if g != nil {
			g.release()
		}
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		configPath: configPath,
		baseDir:    base,
	}
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "scribe-cli")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nupload_dir = %q\nsocket = %q\n\n[workflow]\ntask_pause_ms = %d\nprogress_interval_ms = %d\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.UploadDir,
		cfg.Paths.Socket,
		cfg.Workflow.TaskPauseMillis,
		cfg.Workflow.ProgressIntervalMillis,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeMedia creates a non-empty local file outside the upload directory.
func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteMedia(t, path, 64)
	return path
}

var queuedTaskPattern = regexp.MustCompile(`Queued task (\S+) \(`)

func queuedTaskID(t *testing.T, out string) string {
	t.Helper()
	m := queuedTaskPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no task id in output %q", out)
	}
	return m[1]
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n---\n%s", needle, haystack)
	}
}

func waitFor(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func uploadDirEmpty(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	return len(entries) == 0
}
