package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestResolveCommandFromPath(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "uvx")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	if got := ResolveCommand(" uvx "); got != stub {
		t.Fatalf("expected %q, got %q", stub, got)
	}
	if got := ResolveCommand(stub); got != stub {
		t.Fatalf("expected explicit path %q, got %q", stub, got)
	}
}

func TestResolveCommandFallsBackToInput(t *testing.T) {
	t.Setenv("PATH", "")
	if got := ResolveCommand("ffprobe"); got != "ffprobe" {
		t.Fatalf("expected unresolved command unchanged, got %q", got)
	}
	if got := ResolveCommand(""); got != "" {
		t.Fatalf("expected empty command, got %q", got)
	}

	dir := t.TempDir()
	notExec := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(notExec, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if got := ResolveCommand(notExec); got != notExec {
		t.Fatalf("expected non-executable path unchanged, got %q", got)
	}
}

func TestTranscriptionRequirementsResolveOnPath(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"uvx", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries(Transcription("ffprobe"))
	if len(results) != 2 || results[0].Name != "uvx" || results[0].Optional || !results[1].Optional {
		t.Fatalf("unexpected requirements %#v", results)
	}
	for _, status := range results {
		if !status.Available || status.Command != filepath.Join(binDir, strings.ToLower(status.Name)) {
			t.Fatalf("expected %s resolved under %s, got %#v", status.Name, binDir, status)
		}
	}

	missing := CheckBinaries(Transcription("  "))
	if missing[1].Available || missing[1].Detail != "command not configured" {
		t.Fatalf("expected unconfigured ffprobe, got %#v", missing[1])
	}
}

func TestAvailable(t *testing.T) {
	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "scribe-stub-tool"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)
	if !Available("scribe-stub-tool") {
		t.Fatal("expected stubbed binary to be found on PATH")
	}
	if Available("  ") || Available("clearly-not-present-binary") {
		t.Fatal("blank or missing commands must not be available")
	}
}
