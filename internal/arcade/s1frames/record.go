package s1frames

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/slicebot/slicebot/internal/security"
)

// RecordingSource tees every frame produced by an inner source into a
// JSONL file for later ReplaySource runs or offline parameter sweeps. A
// recording write failure is surfaced as a source error.
type RecordingSource struct {
	inner Source

	mu sync.Mutex
	f  *os.File
}

// NewRecordingSource wraps inner, writing every frame it produces to the
// JSONL file at path (created or truncated). extraDirs widens the set of
// directories recordings may be written to.
func NewRecordingSource(inner Source, path string, extraDirs ...string) (*RecordingSource, error) {
	if err := security.ValidateExportPath(path, extraDirs...); err != nil {
		return nil, fmt.Errorf("recording path: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	debugf("recording feed to %s", path)
	return &RecordingSource{inner: inner, f: f}, nil
}

// Next pulls from the inner source and records the frame before returning
// it.
func (s *RecordingSource) Next(ctx context.Context) (Frame, error) {
	frame, err := s.inner.Next(ctx)
	if err != nil {
		return Frame{}, err
	}

	data, err := EncodeFrame(frame)
	if err != nil {
		return Frame{}, fmt.Errorf("encode recording frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return Frame{}, fmt.Errorf("write recording: %w", err)
	}
	return frame, nil
}

// Close closes the recording file, then the inner source.
func (s *RecordingSource) Close() error {
	s.mu.Lock()
	ferr := s.f.Close()
	s.mu.Unlock()

	ierr := s.inner.Close()
	if ferr != nil {
		return ferr
	}
	return ierr
}
