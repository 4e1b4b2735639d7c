package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// RequestLog represents a single HTTP exchange through an imposter or the
// fault-injection proxy.
type RequestLog struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	SpanID       string    `json:"span_id,omitempty"`
	Listener     string    `json:"listener"` // imposter name/port, or "proxy"
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	MatchedStub  int       `json:"matched_stub,omitempty"`
	MatchedRule  string    `json:"matched_rule,omitempty"`
	FaultKind    string    `json:"fault_kind,omitempty"`
	Status       int       `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	FromRecorder bool      `json:"from_recorder,omitempty"`
}

// Logger handles request logging.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a request log entry.
func (l *Logger) Log(entry *RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		fault := ""
		if entry.FaultKind != "" {
			fault = fmt.Sprintf(" [fault:%s]", entry.FaultKind)
		}
		recorder := ""
		if entry.FromRecorder {
			recorder = " [recorded]"
		}
		fmt.Printf("[request] %s %s %s %s -> %d %dms%s%s\n",
			status, entry.Listener, entry.Method, entry.Path, entry.Status, entry.DurationMs, fault, recorder)
		if entry.Error != "" {
			fmt.Printf("[request]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
