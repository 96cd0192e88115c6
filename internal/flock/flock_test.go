package flock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestAcquireConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	release, err := Acquire(t.Context(), path, 0)
	assert.NoError(t, err)

	// A zero timeout fails immediately while the lock is held.
	_, err = Acquire(t.Context(), path, 0)
	assert.Error(t, err)

	assert.NoError(t, release())

	release, err = Acquire(t.Context(), path, 0)
	assert.NoError(t, err)
	assert.NoError(t, release())
}

func TestAcquireWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	first, err := Acquire(t.Context(), path, 0)
	assert.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first()
	}()

	// The second acquirer retries until the holder releases.
	second, err := Acquire(t.Context(), path, 5*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, second())
}

func TestAcquireCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	release, err := Acquire(t.Context(), path, 0)
	assert.NoError(t, err)
	defer func() { _ = release() }()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = Acquire(ctx, path, 5*time.Second)
	assert.IsError(t, err, context.Canceled)
}
