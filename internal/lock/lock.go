package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("lock is held by another process")

// Lock is an exclusive, non-blocking file lock.
type Lock struct {
	fileLock *flock.Flock
}

// Dir returns the default lock directory: $XDG_RUNTIME_DIR/recheck, or
// recheck under the system temp dir.
func Dir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "recheck")
	}
	return filepath.Join(os.TempDir(), "recheck")
}

// PathFor returns the lock file for a host and repo inside dir.
func PathFor(dir, host, repo string) string {
	name := strings.NewReplacer("/", "__", ":", "_").Replace(host + "__" + repo)
	return filepath.Join(dir, name+".lock")
}

// Acquire takes the lock at path without waiting. It fails with ErrHeld when
// another process already holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrHeld)
	}
	return &Lock{fileLock: fileLock}, nil
}

// Release unlocks the lock. The lock file is left in place so every instance
// always contends on the same inode.
func (l *Lock) Release() error {
	if err := l.fileLock.Unlock(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.fileLock.Path(), err)
	}
	return nil
}
