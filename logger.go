package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// EventLogger appends timestamped access events to a file.  It is the
// operational trail an operator reads after the fact ("unlocked by alice",
// "host unreachable"); process diagnostics go to the ordinary log instead.
// Safe for concurrent use.
type EventLogger struct {
	filePath string
	mu       sync.Mutex
}

// NewEventLogger creates a logger writing to filePath.
func NewEventLogger(filePath string) *EventLogger {
	return &EventLogger{filePath: filePath}
}

// Log writes a single event with timestamp.  Errors are printed to standard
// error and otherwise ignored; a full disk must not stop the door.
func (el *EventLogger) Log(format string, args ...any) {
	el.mu.Lock()
	defer el.mu.Unlock()
	line := fmt.Sprintf("%s - %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	f, err := os.OpenFile(el.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "event log error: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		fmt.Fprintf(os.Stderr, "event log write error: %v\n", err)
	}
}

// Tail returns up to limit trailing lines of the event log.  Used by the
// status API.
func (el *EventLogger) Tail(limit int) ([]string, error) {
	el.mu.Lock()
	defer el.mu.Unlock()
	data, err := os.ReadFile(el.filePath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}
