// logging.go: Pluggable logging facade for the extension engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sync"
)

// Logger defines the pluggable logging interface for the extension engine.
//
// The engine never logs through a concrete framework: users integrate any
// logging backend (logrus, zap, zerolog, custom) by supplying an
// implementation of this interface. A LogrusAdapter ships with the library;
// see logging_logrus.go.
//
// Design principles:
//   - Level-based: standard log levels (Debug, Info, Warn, Error)
//   - Structured args: alternating key-value pairs
//   - Contextual: With() returns a logger carrying persistent context
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NoOpLogger discards all log messages. Used as the default when no logger
// is supplied and in tests that do not assert on log output.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// DefaultLogger returns the library's default logger.
//
// Returns a NoOpLogger: the engine stays silent unless the host supplies a
// real backend.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// TestLogger captures log messages for assertions in tests.
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new capturing test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{Messages: make([]TestLogMessage, 0)}
}

func (t *TestLogger) capture(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{Level: level, Message: msg, Args: args})
}

// Debug implements Logger (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.capture("DEBUG", msg, args) }

// Info implements Logger (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.capture("INFO", msg, args) }

// Warn implements Logger (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.capture("WARN", msg, args) }

// Error implements Logger (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.capture("ERROR", msg, args) }

// With implements Logger; context chaining is not needed for assertions, so
// the same capturing instance is returned.
func (t *TestLogger) With(args ...any) Logger {
	return t
}

// HasMessage checks whether a message with the given level and text was captured.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}
