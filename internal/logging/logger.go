// Package logging provides the leveled, structured logger used across the
// application. Output is line-oriented text by default and JSON when
// configured, to stderr, stdout, or an append-only file.
package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sheetchat/sheetchat/internal/config"
)

// LogLevel orders message severities for filtering.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// callerSkip hops over emit and the public level method.
const callerSkip = 2

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LogEntry is the wire shape of one log line in JSON mode.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger writes leveled entries with bound context fields. With* methods
// return copies, so a Logger can be shared and specialized freely.
type Logger struct {
	level      LogLevel
	format     string
	output     io.Writer
	file       *os.File
	mu         sync.Mutex
	fields     map[string]interface{}
	showCaller bool
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// InitializeLogger builds the process-wide logger once. Later calls are
// no-ops, keeping the first configuration.
func InitializeLogger(cfg config.LoggingConfig) error {
	var err error

	loggerOnce.Do(func() {
		globalLogger, err = NewLogger(cfg)
	})

	return err
}

// NewLogger builds a logger from configuration. Caller information is
// recorded when AddSource is set or the level is debug.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	out, file, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	return &Logger{
		level:      parseLogLevel(cfg.Level),
		format:     cfg.Format,
		output:     out,
		file:       file,
		fields:     make(map[string]interface{}),
		showCaller: cfg.AddSource || cfg.Level == "debug",
	}, nil
}

func openOutput(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.File == "" {
			return nil, nil, errors.New("log file path is required when output is 'file'")
		}

		path := config.ExpandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		return file, file, nil
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}
}

// clone copies the logger with extra context fields merged in.
func (l *Logger) clone(extra map[string]interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}

	for k, v := range extra {
		fields[k] = v
	}

	return &Logger{
		level:      l.level,
		format:     l.format,
		output:     l.output,
		file:       l.file,
		fields:     fields,
		showCaller: l.showCaller,
	}
}

// WithField returns a copy of the logger with one extra context field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.clone(map[string]interface{}{key: value})
}

// WithFields returns a copy of the logger with extra context fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.clone(fields)
}

// WithError binds an error as a context field. A nil error returns the
// logger unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.WithField("error", err.Error())
}

func (l *Logger) emit(level LogLevel, message string, err error) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Fields:    l.fields,
	}

	if err != nil {
		entry.Error = err.Error()
	}

	if l.showCaller {
		if _, file, line, ok := runtime.Caller(callerSkip); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	if l.format == "json" {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))

		return
	}

	fmt.Fprintln(l.output, formatText(entry))
}

// formatText renders one entry as a single line, fields sorted by key.
func formatText(entry LogEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", entry.Timestamp, entry.Level)

	if entry.Caller != "" {
		fmt.Fprintf(&b, " (%s)", entry.Caller)
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, entry.Fields[k])
		}

		fmt.Fprintf(&b, " {%s}", strings.Join(parts, " "))
	}

	if entry.Error != "" {
		b.WriteString(" error=" + entry.Error)
	}

	return b.String()
}

func (l *Logger) Debug(message string) {
	l.emit(DebugLevel, message, nil)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(DebugLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Info(message string) {
	l.emit(InfoLevel, message, nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(InfoLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warn(message string) {
	l.emit(WarnLevel, message, nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit(WarnLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Error(message string) {
	l.emit(ErrorLevel, message, nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// ErrorWithErr logs at error level with the error recorded separately
// from the message.
func (l *Logger) ErrorWithErr(message string, err error) {
	l.emit(ErrorLevel, message, err)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}

	return nil
}

// GetLogger returns the process-wide logger, creating a stderr fallback
// if none was initialized.
func GetLogger() *Logger {
	if globalLogger == nil {
		SetupFallbackLogger()
	}

	return globalLogger
}

// SetupFallbackLogger installs a plain text stderr logger at info level.
func SetupFallbackLogger() {
	globalLogger = &Logger{
		level:  InfoLevel,
		format: "text",
		output: os.Stderr,
		fields: make(map[string]interface{}),
	}
}
