package app

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger interface and implementations
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type NoopLogger struct{}

func (NoopLogger) Infof(component, format string, args ...interface{})  {}
func (NoopLogger) Errorf(component, format string, args ...interface{}) {}

// FileLogger writes one line per entry: RFC3339 timestamp, [LEVEL], component, message.
// It is safe for concurrent use.
type FileLogger struct {
	mu  *sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewFileLogger(w io.Writer) FileLogger { return FileLogger{mu: &sync.Mutex{}, w: w, now: time.Now} }

func (l FileLogger) Infof(component string, format string, args ...interface{}) {
	l.write("INFO", component, format, args...)
}

func (l FileLogger) Errorf(component string, format string, args ...interface{}) {
	l.write("ERROR", component, format, args...)
}

func (l FileLogger) write(level, component, format string, args ...interface{}) {
	if l.w == nil {
		return
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	line := now().Format(time.RFC3339) + " [" + level + "] " + component + ": " + fmt.Sprintf(format, args...) + "\n"
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	_, _ = io.WriteString(l.w, line)
}
