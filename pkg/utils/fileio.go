package utils

import (
	"fmt"
	"os"
)

// SafeClose closes file, logging rather than propagating a close error —
// used in defer positions where the caller has no meaningful way to act
// on a close failure.
func SafeClose(file *os.File, fileName string) {
	if file == nil {
		return
	}
	if err := file.Close(); err != nil {
		fmt.Printf("utils: close %s: %v\n", fileName, err)
	}
}

// EnsureDir creates dir (and any missing parents) if it does not exist.
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("utils: create directory %s: %w", dir, err)
	}
	return nil
}
