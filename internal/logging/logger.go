// Package logging provides the structured leveled logger used across the
// engine. Log calls take a message plus alternating key/value pairs:
//
//	log.Info("signal composed", "pair", pair, "confidence", conf)
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is the log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry is the wire shape of one log line in JSON mode
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
}

// Logger writes structured log entries. The With* methods return derived
// loggers and never mutate the receiver, so a logger can be shared freely.
type Logger struct {
	mu          sync.Mutex
	output      io.Writer
	level       Level
	component   string
	traceID     string
	duration    time.Duration
	includeFile bool
	jsonFormat  bool
}

// Config holds logger configuration
type Config struct {
	Level       string `json:"level"`
	Output      string `json:"output"` // "stdout", "stderr", or file path
	Component   string `json:"component"`
	IncludeFile bool   `json:"include_file"` // annotate entries with file:line
	JSONFormat  bool   `json:"json_format"`
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a logger from the given configuration. An unopenable file
// output falls back to stdout.
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	if cfg.Output == "stderr" {
		output = os.Stderr
	} else if cfg.Output != "" && cfg.Output != "stdout" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	return &Logger{
		output:      output,
		level:       ParseLevel(cfg.Level),
		component:   cfg.Component,
		includeFile: cfg.IncludeFile,
		jsonFormat:  cfg.JSONFormat,
	}
}

// Default returns the process-wide logger
func Default() *Logger {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(&Config{
				Level:      "INFO",
				Output:     "stdout",
				Component:  "engine",
				JSONFormat: true,
			})
		}
	})
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// WithComponent returns a derived logger tagged with the component
func (l *Logger) WithComponent(component string) *Logger {
	out := l.clone()
	out.component = component
	return out
}

// WithTraceID returns a derived logger tagged with the trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	out := l.clone()
	out.traceID = traceID
	return out
}

// WithDuration returns a derived logger that reports the elapsed time
func (l *Logger) WithDuration(d time.Duration) *Logger {
	out := l.clone()
	out.duration = d
	return out
}

func (l *Logger) clone() *Logger {
	return &Logger{
		output:      l.output,
		level:       l.level,
		component:   l.component,
		traceID:     l.traceID,
		duration:    l.duration,
		includeFile: l.includeFile,
		jsonFormat:  l.jsonFormat,
	}
}

// write emits one entry. args are alternating key/value pairs; a trailing
// key without a value is ignored, and error values are flattened to strings
// so they serialize cleanly.
func (l *Logger) write(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		TraceID:   l.traceID,
	}
	if l.duration > 0 {
		entry.Duration = l.duration.String()
	}

	if len(args) >= 2 {
		entry.Fields = make(map[string]interface{}, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			key, ok := args[i].(string)
			if !ok {
				continue
			}
			if err, isErr := args[i+1].(error); isErr && err != nil {
				entry.Fields[key] = err.Error()
			} else {
				entry.Fields[key] = args[i+1]
			}
		}
	}

	if l.includeFile {
		if _, file, line, ok := runtime.Caller(2); ok {
			parts := strings.Split(file, "/")
			entry.File = parts[len(parts)-1]
			entry.Line = line
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonFormat {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
	} else {
		l.writeText(entry)
	}
}

func (l *Logger) writeText(entry LogEntry) {
	var b strings.Builder

	b.WriteString(entry.Timestamp[:19]) // trim sub-second noise in text mode
	fmt.Fprintf(&b, " [%-5s] ", entry.Level)

	if entry.Component != "" {
		fmt.Fprintf(&b, "[%s] ", entry.Component)
	}
	if entry.TraceID != "" {
		short := entry.TraceID
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Fprintf(&b, "{%s} ", short)
	}

	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		b.WriteString(" |")
		for k, v := range entry.Fields {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	if entry.Duration != "" {
		fmt.Fprintf(&b, " duration=%s", entry.Duration)
	}
	if entry.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", entry.File, entry.Line)
	}

	fmt.Fprintln(l.output, b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.write(DEBUG, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.write(INFO, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.write(WARN, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.write(ERROR, msg, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.write(FATAL, msg, args...)
	os.Exit(1)
}
