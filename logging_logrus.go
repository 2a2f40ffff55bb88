// logging_logrus.go: logrus adapter for the Logger facade
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter adapts a *logrus.Entry to the engine's Logger interface.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter wraps a logrus logger for use with the engine.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{entry: logrus.NewEntry(logger)}
}

// fields converts alternating key-value args into logrus fields. A dangling
// key is kept with a nil value rather than dropped.
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 < len(args) {
			f[key] = args[i+1]
		} else {
			f[key] = nil
		}
	}
	return f
}

// Debug implements Logger
func (l *LogrusAdapter) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

// Info implements Logger
func (l *LogrusAdapter) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

// Warn implements Logger
func (l *LogrusAdapter) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

// Error implements Logger
func (l *LogrusAdapter) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

// With implements Logger
func (l *LogrusAdapter) With(args ...any) Logger {
	return &LogrusAdapter{entry: l.entry.WithFields(fields(args))}
}
