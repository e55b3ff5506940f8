// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"io"
	"os"
)

// Level controls the frequency and type of Logger output.
type Level int

const (
	// LogOff emits nothing.
	LogOff Level = -1
	// LogSummary prints one line when the solver stops.
	LogSummary Level = 0
	// LogIteration prints the named error-column table and a line on every
	// sampled iteration (§4.7).
	LogIteration Level = 1
)

// Logger handles solver progress output. A nil *Logger is always silent;
// the zero Logger{} is at LogSummary and prints Summary lines. Writers must be safe to use
// from one goroutine at a time (the solvers themselves are single-call,
// §5 Thread-safety contract).
type Logger struct {
	Level Level
	Out   io.Writer // defaults to os.Stdout when nil and Level >= LogSummary
}

func (l *Logger) enabled(level Level) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) writer() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *Logger) logf(level Level, format string, a ...any) {
	if !l.enabled(level) {
		return
	}
	fmt.Fprintf(l.writer(), format, a...)
}

// Summary prints a line at LogSummary — always shown when the logger is
// enabled at all.
func (l *Logger) Summary(format string, a ...any) {
	l.logf(LogSummary, format, a...)
}

// Iteration prints a line at LogIteration — only shown for verbose/tracing
// loggers (§4.7: reporting is advisory and never affects numerical output).
func (l *Logger) Iteration(format string, a ...any) {
	l.logf(LogIteration, format, a...)
}

// Header prints the named error-column table header the teacher's printf
// cadence used, once, at LogIteration.
func (l *Logger) Header(cols string) {
	l.logf(LogIteration, "%s\n", cols)
}

// NewVerboseLogger returns a Logger at LogIteration writing to os.Stdout.
// The solver entry points take a *Logger through their Params and never
// construct one themselves; a nil Params.Logger keeps them silent.
func NewVerboseLogger() *Logger {
	return &Logger{Level: LogIteration, Out: os.Stdout}
}
