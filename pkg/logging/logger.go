package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Log levels in increasing severity
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// StandardLogger writes structured log entries to an io.Writer
type StandardLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  int
	format string
	fields []Field
}

// NewLogger creates a logger from the given configuration
func NewLogger(cfg LogConfig) (*StandardLogger, error) {
	out := io.Writer(os.Stdout)
	if cfg.Output == "file" {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log file path is required for file output")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}

	level, ok := levelRank[cfg.Level]
	if !ok {
		level = levelRank[LevelInfo]
	}

	format := cfg.Format
	if format == "" {
		format = "json"
	}

	return &StandardLogger{
		mu:     &sync.Mutex{},
		out:    out,
		level:  level,
		format: format,
	}, nil
}

// NewTestLogger creates a text logger writing to the given writer, for tests
func NewTestLogger(out io.Writer) *StandardLogger {
	return &StandardLogger{
		mu:     &sync.Mutex{},
		out:    out,
		level:  levelRank[LevelDebug],
		format: "text",
	}
}

// Debug logs a debug message
func (l *StandardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info message
func (l *StandardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warning message
func (l *StandardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error message
func (l *StandardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

// WithFields returns a new logger with the given fields attached to every entry
func (l *StandardLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)

	return &StandardLogger{
		mu:     l.mu,
		out:    l.out,
		level:  l.level,
		format: l.format,
		fields: combined,
	}
}

// LogRunEvent records execution engine events
func (l *StandardLogger) LogRunEvent(workflowID string, executionID string, event string, data map[string]interface{}) {
	fields := []Field{
		{Key: "workflow_id", Value: workflowID},
		{Key: "execution_id", Value: executionID},
		{Key: "event", Value: event},
	}
	for k, v := range data {
		fields = append(fields, Field{Key: k, Value: v})
	}
	l.Info("run "+event, fields...)
}

// LogStepEvent records step execution events
func (l *StandardLogger) LogStepEvent(workflowID string, executionID string, step string, event string, data map[string]interface{}) {
	fields := []Field{
		{Key: "workflow_id", Value: workflowID},
		{Key: "execution_id", Value: executionID},
		{Key: "step", Value: step},
		{Key: "event", Value: event},
	}
	for k, v := range data {
		fields = append(fields, Field{Key: k, Value: v})
	}
	l.Info("step "+event, fields...)
}

// LogSystemEvent records system-level events
func (l *StandardLogger) LogSystemEvent(event string, data map[string]interface{}) {
	fields := []Field{{Key: "event", Value: event}}
	for k, v := range data {
		fields = append(fields, Field{Key: k, Value: v})
	}
	l.Info("system "+event, fields...)
}

func (l *StandardLogger) log(level string, msg string, fields []Field) {
	if levelRank[level] < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
	}

	if len(l.fields) > 0 || len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(l.fields)+len(fields))
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "text" {
		fmt.Fprintf(l.out, "%s %-5s %s%s\n",
			entry.Timestamp.Format(time.RFC3339),
			strings.ToUpper(entry.Level),
			entry.Message,
			formatFields(entry.Fields),
		)
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out, "{\"level\":\"error\",\"message\":\"failed to marshal log entry: %v\"}\n", err)
		return
	}
	l.out.Write(data)
	l.out.Write([]byte("\n"))
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

// NopLogger discards all log entries
type NopLogger struct{}

// Debug implements Logger
func (NopLogger) Debug(msg string, fields ...Field) {}

// Info implements Logger
func (NopLogger) Info(msg string, fields ...Field) {}

// Warn implements Logger
func (NopLogger) Warn(msg string, fields ...Field) {}

// Error implements Logger
func (NopLogger) Error(msg string, fields ...Field) {}

// WithFields implements Logger
func (n NopLogger) WithFields(fields ...Field) Logger { return n }

// LogRunEvent implements Logger
func (NopLogger) LogRunEvent(workflowID string, executionID string, event string, data map[string]interface{}) {
}

// LogStepEvent implements Logger
func (NopLogger) LogStepEvent(workflowID string, executionID string, step string, event string, data map[string]interface{}) {
}

// LogSystemEvent implements Logger
func (NopLogger) LogSystemEvent(event string, data map[string]interface{}) {}
