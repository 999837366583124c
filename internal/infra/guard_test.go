package infra

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileGuard_RunsFn(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hooks")
	guard := NewFileGuard(dir)

	ran := false
	err := guard.Do(func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.FileExists(t, guard.Path())
}

func TestFileGuard_PropagatesError(t *testing.T) {
	guard := NewFileGuard(t.TempDir())
	boom := errors.New("boom")

	assert.ErrorIs(t, guard.Do(func() error { return boom }), boom)
}

func TestFileGuard_Serializes(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate guards behave like separate host processes
			err := NewFileGuard(dir).Do(func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestFileGuard_TimesOut(t *testing.T) {
	dir := t.TempDir()
	guard := NewFileGuard(dir)
	guard.timeout = 100 * time.Millisecond

	holder := flock.New(guard.Path())
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	ran := false
	err = guard.Do(func() error {
		ran = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, ran)
}
