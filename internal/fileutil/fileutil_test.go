package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "nonexistent")
	dst := filepath.Join(dir, "dst.bin")

	err := CopyFileVerified(src, dst)
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestStageFileCopiesUnderUniqueName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "meeting notes.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	uploads := filepath.Join(dir, "uploads")

	first, err := StageFile(src, uploads)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	second, err := StageFile(src, uploads)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique staged paths, got %q twice", first)
	}
	if filepath.Dir(first) != uploads || !strings.HasSuffix(first, "_meeting notes.mp3") {
		t.Fatalf("unexpected staged path %q", first)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("original should remain: %v", err)
	}
}

func TestStageFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := StageFile(dir, filepath.Join(dir, "uploads")); err == nil {
		t.Fatal("expected error for directory source")
	}
}

func TestRemoveAllIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveAll(present, filepath.Join(dir, "missing.wav"), ""); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(present); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
}
