package icp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Foo备案材料iOS")
	if err := os.WriteFile(src, []byte("zip bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "out", "nested", "Foo.zip")
	if err := SaveArchive(src, dst); err != nil {
		t.Fatalf("SaveArchive failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination not written: %v", err)
	}
	if string(data) != "zip bytes" {
		t.Errorf("destination = %q", data)
	}

	// Overwrites an existing file
	if err := os.WriteFile(src, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SaveArchive(src, dst); err != nil {
		t.Fatalf("second SaveArchive failed: %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "v2" {
		t.Errorf("destination = %q, want v2", data)
	}
}

func TestSaveArchive_Errors(t *testing.T) {
	dir := t.TempDir()

	if err := SaveArchive(filepath.Join(dir, "missing"), filepath.Join(dir, "out")); !errors.Is(err, ErrIO) {
		t.Errorf("missing source: err = %v, want io error", err)
	}
	if err := SaveArchive("", filepath.Join(dir, "out")); !errors.Is(err, ErrPathResolution) {
		t.Errorf("empty source: err = %v, want path resolution", err)
	}
}
