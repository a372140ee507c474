package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeCloseToleratesNil(t *testing.T) {
	SafeClose(nil, "test")
}

func TestSafeCloseClosesFile(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test.txt")
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	SafeClose(file, filePath)

	if err := file.Close(); err == nil {
		t.Error("expected closing an already-closed file to error")
	}
}

func TestEnsureDirCreatesNestedDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	nestedDir := filepath.Join(tmpDir, "level1", "level2", "level3")
	if err := EnsureDir(nestedDir, 0755); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("nested directory was not created")
	}
}

func TestEnsureDirToleratesExistingDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	if err := EnsureDir(tmpDir, 0755); err != nil {
		t.Errorf("EnsureDir failed on an existing directory: %v", err)
	}
}
