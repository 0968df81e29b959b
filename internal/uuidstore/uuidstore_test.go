package uuidstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUUIDReadAndCache(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "adsbx-uuid")
	if err := os.WriteFile(srcPath, []byte("abc-123\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(filepath.Join(dir, "cache.db"), srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.UUID()
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc-123" {
		t.Fatalf("UUID() = %q, want abc-123", got)
	}

	if err := os.Remove(srcPath); err != nil {
		t.Fatal(err)
	}
	got2, err := s.UUID()
	if err != nil {
		t.Fatal(err)
	}
	if got2 != "abc-123" {
		t.Fatalf("cached UUID() after source removal = %q, want abc-123", got2)
	}
}

func TestUUIDMissingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.db"), filepath.Join(dir, "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.UUID()
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("UUID() = %q, want empty", got)
	}
}
