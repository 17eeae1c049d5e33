package testsupport

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// RequireFile fails the test unless path is a regular file of the given size.
func RequireFile(t testing.TB, path string, size int64) {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		t.Fatalf("expected %s to be a regular file, got %v", path, info.Mode())
	}
	if size >= 0 && info.Size() != size {
		t.Fatalf("%s size = %d, want %d", path, info.Size(), size)
	}
}

// RequireMissing fails the test if path exists.
func RequireMissing(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected %s to be absent (stat err = %v)", path, err)
	}
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// DropFile writes a file next to dir and renames it in, so watchers see one
// complete file appear instead of a create followed by writes.
func DropFile(t testing.TB, dir, name string, size int64) string {
	t.Helper()
	staging := filepath.Join(filepath.Dir(dir), ".staging")
	src := filepath.Join(staging, name)
	WriteFile(t, src, size)
	dst := filepath.Join(dir, name)
	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("rename %s into %s: %v", name, dir, err)
	}
	return dst
}
