// Package monitoring is the log plumbing shared by the bot's packages: a
// swappable package-level Logf plus helpers for routing the per-stage
// debug streams to rotated files.
package monitoring

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewRotatingWriter returns a size-rotated log file writer. The stage debug
// streams (ops/diag/trace) write continuously at high frequency during play,
// so unbounded files are not an option.
func NewRotatingWriter(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		LocalTime:  true,
	}
}

// TeeWriter duplicates writes to every given writer, skipping nils. Useful
// for sending a debug stream both to the console and to a rotated file.
func TeeWriter(writers ...io.Writer) io.Writer {
	kept := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			kept = append(kept, w)
		}
	}
	switch len(kept) {
	case 0:
		return io.Discard
	case 1:
		return kept[0]
	}
	return io.MultiWriter(kept...)
}
