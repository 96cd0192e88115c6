package logging

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"strings"
	"sync"
)

// Legacy adapts a [log/slog.Logger] to a [log.Logger], logging every line at
// the given level. Useful for libraries that only accept the legacy logger.
func Legacy(logger *slog.Logger, level slog.Level) *log.Logger {
	return log.New(&lineWriter{logger: logger, level: level}, "", 0)
}

// lineWriter forwards complete lines to the underlying logger, buffering
// partial writes until a newline arrives.
type lineWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  slog.Level
	buffer bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer.Write(p)
	for {
		line, err := w.buffer.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it buffered for the next write.
			w.buffer.WriteString(line)
			return len(p), nil
		}
		w.logger.Log(context.Background(), w.level, strings.TrimSuffix(line, "\n"))
	}
}
