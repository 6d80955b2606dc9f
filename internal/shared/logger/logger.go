package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger provides a simple leveled logging interface
type Logger struct {
	logger *log.Logger
}

// NewLogger creates a new logger instance
func NewLogger() *Logger {
	return &Logger{
		logger: log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile),
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[INFO] %s%s", msg, formatFields(keysAndValues)))
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[ERROR] %s%s", msg, formatFields(keysAndValues)))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[DEBUG] %s%s", msg, formatFields(keysAndValues)))
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[WARN] %s%s", msg, formatFields(keysAndValues)))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[FATAL] %s%s", msg, formatFields(keysAndValues)))
	os.Exit(1)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return nil
}

// formatFields renders alternating key/value pairs as " k=v k=v". An odd
// trailing key is rendered with a missing-value marker instead of dropped.
func formatFields(keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=<missing>", keysAndValues[i])
		}
	}
	return b.String()
}
