package fsutil

import (
	"path/filepath"
	"testing"
)

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free <= 0 {
		t.Fatalf("free space = %d, want > 0", free)
	}
}

func TestFreeSpaceOnMissingPath(t *testing.T) {
	// The target file does not exist yet at allocation time; the check
	// walks up to the nearest existing ancestor.
	free, err := FreeSpace(filepath.Join(t.TempDir(), "sub", "cube.fits"))
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free <= 0 {
		t.Fatalf("free space = %d, want > 0", free)
	}
}

func TestAvailableMemory(t *testing.T) {
	mb, err := AvailableMemory()
	if err != nil {
		t.Fatalf("AvailableMemory: %v", err)
	}
	if mb <= 0 {
		t.Fatalf("available memory = %d MB, want > 0", mb)
	}
}
