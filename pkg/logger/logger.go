package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category
type Category string

const (
	CategoryStartup  Category = "startup"
	CategoryAPI      Category = "api"
	CategoryDB       Category = "db"
	CategoryDrive    Category = "drive"
	CategoryCaption  Category = "caption"
	CategoryQueue    Category = "queue"
	CategoryWorker   Category = "worker"
	CategorySync     Category = "sync"
	CategorySearch   Category = "search"
	CategoryRecovery Category = "recovery"
)

// Level represents log level
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     Level                  `json:"level"`
	Category  Category               `json:"category"`
	Action    string                 `json:"action"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger writes structured entries to per-category daily files and,
// optionally, the console.
type Logger struct {
	mu      sync.Mutex
	logDir  string
	writers map[Category]*os.File
	console bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the default logger
func Init(logDir string, console bool) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(logDir, console)
	})
	return err
}

// NewLogger creates a new logger
func NewLogger(logDir string, console bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Logger{
		logDir:  logDir,
		writers: make(map[Category]*os.File),
		console: console,
	}, nil
}

// getWriter returns or creates a file writer for the category
func (l *Logger) getWriter(category Category) (io.Writer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", category, today)
	path := filepath.Join(l.logDir, filename)

	if writer, exists := l.writers[category]; exists {
		if info, err := writer.Stat(); err == nil && info.Name() == filename {
			return writer, nil
		}
		writer.Close()
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l.writers[category] = file
	return file, nil
}

// Log writes a log entry
func (l *Logger) Log(entry LogEntry) {
	entry.Timestamp = time.Now()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Printf("Error marshaling log entry: %v\n", err)
		return
	}

	writer, err := l.getWriter(entry.Category)
	if err != nil {
		fmt.Printf("Error getting log writer: %v\n", err)
	} else {
		fmt.Fprintln(writer, string(jsonData))
	}

	if l.console {
		l.printToConsole(entry)
	}
}

// printToConsole prints formatted log to console
func (l *Logger) printToConsole(entry LogEntry) {
	timestamp := entry.Timestamp.Format("15:04:05.000")

	levelColors := map[Level]string{
		LevelDebug: "\033[36m", // Cyan
		LevelInfo:  "\033[32m", // Green
		LevelWarn:  "\033[33m", // Yellow
		LevelError: "\033[31m", // Red
	}
	reset := "\033[0m"
	color := levelColors[entry.Level]

	fmt.Printf("%s[%s]%s [%s] [%s] %s: %s",
		color, entry.Level, reset, timestamp, entry.Category, entry.Action, entry.Message)

	if entry.Duration != "" {
		fmt.Printf(" (duration: %s)", entry.Duration)
	}
	if entry.Error != "" {
		fmt.Printf(" ERROR: %s", entry.Error)
	}
	fmt.Println()

	if len(entry.Data) > 0 {
		dataJSON, _ := json.MarshalIndent(entry.Data, "    ", "  ")
		fmt.Printf("    Data: %s\n", string(dataJSON))
	}
}

// Close closes all file writers
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.writers {
		writer.Close()
	}
	l.writers = make(map[Category]*os.File)
}

// Default returns the default logger
func Default() *Logger {
	if defaultLogger == nil {
		Init("logs", true)
	}
	return defaultLogger
}

// Info logs an info-level entry for the given category.
func Info(category Category, action, message string, data map[string]interface{}) {
	Default().Log(LogEntry{Level: LevelInfo, Category: category, Action: action, Message: message, Data: data})
}

// Warn logs a warn-level entry for the given category.
func Warn(category Category, action, message string, data map[string]interface{}) {
	Default().Log(LogEntry{Level: LevelWarn, Category: category, Action: action, Message: message, Data: data})
}

// Error logs an error-level entry for the given category.
func Error(category Category, action, message string, err error, data map[string]interface{}) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	Default().Log(LogEntry{Level: LevelError, Category: category, Action: action, Message: message, Error: errStr, Data: data})
}

// Per-category helpers for the common call sites.

func Startup(action, message string, data map[string]interface{}) {
	Info(CategoryStartup, action, message, data)
}

func StartupWarn(action, message string, data map[string]interface{}) {
	Warn(CategoryStartup, action, message, data)
}

func StartupError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryStartup, action, message, err, data)
}

func API(action, message string, data map[string]interface{}) {
	Info(CategoryAPI, action, message, data)
}

func Drive(action, message string, data map[string]interface{}) {
	Info(CategoryDrive, action, message, data)
}

func DriveError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryDrive, action, message, err, data)
}

func Caption(action, message string, data map[string]interface{}) {
	Info(CategoryCaption, action, message, data)
}

func CaptionError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryCaption, action, message, err, data)
}

func Queue(action, message string, data map[string]interface{}) {
	Info(CategoryQueue, action, message, data)
}

func QueueError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryQueue, action, message, err, data)
}

func Worker(action, message string, data map[string]interface{}) {
	Info(CategoryWorker, action, message, data)
}

func WorkerError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryWorker, action, message, err, data)
}

func Sync(action, message string, data map[string]interface{}) {
	Info(CategorySync, action, message, data)
}

func SyncError(action, message string, err error, data map[string]interface{}) {
	Error(CategorySync, action, message, err, data)
}

func Search(action, message string, data map[string]interface{}) {
	Info(CategorySearch, action, message, data)
}

func SearchError(action, message string, err error, data map[string]interface{}) {
	Error(CategorySearch, action, message, err, data)
}

func Recovery(action, message string, data map[string]interface{}) {
	Info(CategoryRecovery, action, message, data)
}

func RecoveryError(action, message string, err error, data map[string]interface{}) {
	Error(CategoryRecovery, action, message, err, data)
}
