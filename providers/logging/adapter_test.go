package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/alecthomas/rig/providers/logging"
)

func newCapture() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

func capturedLines(buf *bytes.Buffer) []string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestLegacyLevels(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		t.Run(level.String(), func(t *testing.T) {
			logger, buf := newCapture()
			legacy := logging.Legacy(logger, level)
			legacy.Print("routed")
			assert.Contains(t, buf.String(), "level="+level.String())
			assert.Contains(t, buf.String(), "msg=routed")
		})
	}
}

func TestLegacySplitsLines(t *testing.T) {
	logger, buf := newCapture()
	legacy := logging.Legacy(logger, slog.LevelInfo)
	legacy.Print("first\nsecond")
	lines := capturedLines(buf)
	assert.Equal(t, 2, len(lines))
	assert.Contains(t, lines[0], "msg=first")
	assert.Contains(t, lines[1], "msg=second")
}

func TestLegacyBuffersPartialWrites(t *testing.T) {
	logger, buf := newCapture()
	w := logging.Legacy(logger, slog.LevelInfo).Writer()

	_, err := w.Write([]byte("a line "))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(capturedLines(buf)), "a partial line must not be logged yet")

	_, err = w.Write([]byte("in two parts\ntrailing"))
	assert.NoError(t, err)
	lines := capturedLines(buf)
	assert.Equal(t, 1, len(lines))
	assert.Contains(t, lines[0], `msg="a line in two parts"`)

	// The trailing fragment appears once its newline does.
	_, err = w.Write([]byte("\n"))
	assert.NoError(t, err)
	assert.Equal(t, 2, len(capturedLines(buf)))
}

func TestLegacyConcurrentWrites(t *testing.T) {
	logger, buf := newCapture()
	legacy := logging.Legacy(logger, slog.LevelInfo)
	wg := &sync.WaitGroup{}
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 8 {
				legacy.Printf("worker %d", i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, len(capturedLines(buf)))
}
