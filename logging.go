package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/slicebot/slicebot/internal/arcade/gamestate"
	"github.com/slicebot/slicebot/internal/arcade/pipeline"
	"github.com/slicebot/slicebot/internal/arcade/s1frames"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
	"github.com/slicebot/slicebot/internal/arcade/s6swipes"
	"github.com/slicebot/slicebot/internal/monitoring"
)

// logStreams carries the three debug streams every stage package writes to:
// ops (actionable warnings), diag (tuning diagnostics), trace (per-cycle
// telemetry). A nil stream is disabled.
type logStreams struct {
	ops   io.Writer
	diag  io.Writer
	trace io.Writer

	closers []io.Closer
}

// openLogStreams builds the stream writers. With no log directory, ops and
// diag go to stderr and trace is enabled only on request, since it logs
// every cycle. With a directory, each stream gets its own rotated file and
// ops additionally stays on stderr so the console still shows warnings.
//
// The SLICEBOT_DEBUG_LOG environment variable overrides all of this and
// appends every stream to the named file. It exists for quick field
// debugging without touching flags.
func openLogStreams(dir string, trace bool) (*logStreams, error) {
	if path := os.Getenv("SLICEBOT_DEBUG_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open SLICEBOT_DEBUG_LOG file: %w", err)
		}
		return &logStreams{ops: f, diag: f, trace: f, closers: []io.Closer{f}}, nil
	}

	s := &logStreams{ops: os.Stderr, diag: os.Stderr}
	if trace {
		s.trace = os.Stderr
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	opsFile := monitoring.NewRotatingWriter(filepath.Join(dir, "slicebot-ops.log"))
	diagFile := monitoring.NewRotatingWriter(filepath.Join(dir, "slicebot-diag.log"))
	s.closers = append(s.closers, opsFile, diagFile)
	s.ops = monitoring.TeeWriter(os.Stderr, opsFile)
	s.diag = diagFile
	if trace {
		traceFile := monitoring.NewRotatingWriter(filepath.Join(dir, "slicebot-trace.log"))
		s.closers = append(s.closers, traceFile)
		s.trace = traceFile
	}
	return s, nil
}

// apply points every stage package's debug output at the streams. The
// single-stream packages log at diag level.
func (s *logStreams) apply() {
	pipeline.SetLogWriters(s.ops, s.diag, s.trace)
	s3tracks.SetLogWriters(s3tracks.LogWriters{Ops: s.ops, Diag: s.diag, Trace: s.trace})
	s1frames.SetDebugLogger(s.diag)
	s2detections.SetDebugLogger(s.diag)
	s5targets.SetDebugLogger(s.diag)
	s6swipes.SetDebugLogger(s.diag)
	gamestate.SetDebugLogger(s.diag)
}

// Close closes the rotated files. Safe to call with no files open.
func (s *logStreams) Close() {
	for _, c := range s.closers {
		c.Close()
	}
}
