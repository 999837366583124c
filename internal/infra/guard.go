package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

const (
	guardFileName = ".nativehost.lock"
	guardTimeout  = 10 * time.Second
	guardRetry    = 50 * time.Millisecond
)

// FileGuard implements domain.Guard with an advisory lock in the hook directory.
// Uses gofrs/flock for cross-platform compatibility (Unix + Windows).
type FileGuard struct {
	path    string
	timeout time.Duration
}

// NewFileGuard creates a guard whose lock file lives in dir.
func NewFileGuard(dir string) *FileGuard {
	return &FileGuard{
		path:    filepath.Join(dir, guardFileName),
		timeout: guardTimeout,
	}
}

// Path returns the lock file path.
func (g *FileGuard) Path() string {
	return g.path
}

// Do runs fn while holding the lock. Another host instance holding it makes
// Do wait up to the guard timeout.
func (g *FileGuard) Do(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(g.path)
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, guardRetry)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock %s held by another process", g.path)
	}
	defer func() { _ = fileLock.Unlock() }()

	return fn()
}

// Ensure FileGuard implements domain.Guard.
var _ domain.Guard = (*FileGuard)(nil)
