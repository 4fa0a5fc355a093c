// ABOUTME: Structured logging with verbosity control and level-based output
// ABOUTME: DEBUG is gated on verbose mode; other levels always print

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

var verbose = false

// SetVerbose enables or disables verbose (DEBUG) logging
func SetVerbose(v bool) {
	verbose = v
}

// IsVerbose returns current verbose setting
func IsVerbose() bool {
	return verbose
}

// SetOutput sets the output destination for logs
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	log.SetOutput(w)
}

func emit(level, format string, args ...any) {
	log.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (only shown when verbose)
func Debug(format string, args ...any) {
	if verbose {
		emit("DEBUG", format, args...)
	}
}

// Info logs at INFO level (always shown)
func Info(format string, args ...any) {
	emit("INFO", format, args...)
}

// Warn logs at WARN level (always shown)
func Warn(format string, args ...any) {
	emit("WARN", format, args...)
}

// Error logs at ERROR level (always shown)
func Error(format string, args ...any) {
	emit("ERROR", format, args...)
}
