package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceLock is the single-instance lock held by a running agent.
type InstanceLock struct {
	path string
	fl   *flock.Flock
}

// AcquireInstanceLock takes the lock at path without blocking. It returns
// ErrAlreadyRunning when another process holds it.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

// Release drops the lock. Releasing twice is a no-op.
func (l *InstanceLock) Release() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}
