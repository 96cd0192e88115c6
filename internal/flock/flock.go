// Package flock provides advisory file locking.
package flock

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/errors"
	"github.com/jpillora/backoff"
	"golang.org/x/sys/unix"
)

// Acquire an exclusive advisory lock on path, creating the file if
// necessary.
//
// A zero timeout makes a single attempt. Otherwise attempts are retried with
// backoff until the lock is acquired, the timeout expires, or ctx is
// cancelled. The returned function releases the lock.
func Acquire(ctx context.Context, path string, timeout time.Duration) (release func() error, err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) //nolint
	if err != nil {
		return nil, errors.Errorf("failed to open lock file %s: %w", path, err)
	}
	retry := &backoff.Backoff{Min: time.Millisecond * 10, Max: time.Second, Jitter: true}
	deadline := time.Now().Add(timeout)
	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if timeout == 0 || time.Now().After(deadline) {
			_ = file.Close()
			return nil, errors.Errorf("failed to lock %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			_ = file.Close()
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(retry.Duration()):
		}
	}
	return func() error {
		defer file.Close() //nolint:errcheck
		return errors.WithStack(unix.Flock(int(file.Fd()), unix.LOCK_UN))
	}, nil
}
