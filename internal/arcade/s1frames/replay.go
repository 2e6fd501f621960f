package s1frames

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/slicebot/slicebot/internal/security"
	"github.com/slicebot/slicebot/internal/timeutil"
)

// ReplaySource replays a JSONL feed recording. Frames keep their recorded
// timestamps; pacing reproduces the recorded inter-frame gaps against the
// supplied clock, scaled by rate.
type ReplaySource struct {
	f     *os.File
	sc    *bufio.Scanner
	clock timeutil.Clock
	rate  float64

	lastTS   time.Time // recorded timestamp of the previous frame
	lastWall time.Time // clock instant the previous frame was delivered
}

// NewReplaySource opens the JSONL recording at path. rate scales playback
// speed (2.0 replays at double speed); rate <= 0 replays as fast as the
// consumer pulls. A nil clock uses the real clock.
func NewReplaySource(path string, clock timeutil.Clock, rate float64, extraDirs ...string) (*ReplaySource, error) {
	if err := security.ValidateExportPath(path, extraDirs...); err != nil {
		return nil, fmt.Errorf("replay path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxDatagram)
	debugf("replaying %s at rate %.2f", path, rate)
	return &ReplaySource{f: f, sc: sc, clock: clock, rate: rate}, nil
}

// Next returns the next recorded frame, sleeping out the recorded gap
// since the previous one. io.EOF reports the end of the recording.
func (r *ReplaySource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return Frame{}, fmt.Errorf("replay read: %w", err)
			}
			return Frame{}, io.EOF
		}
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := DecodeFrame(line)
		if err != nil {
			debugf("skipping bad replay line: %v", err)
			continue
		}

		r.pace(frame.Timestamp)
		return frame, nil
	}
}

// pace sleeps out whatever remains of the recorded gap between the
// previous frame and this one.
func (r *ReplaySource) pace(ts time.Time) {
	if r.rate > 0 && !r.lastTS.IsZero() {
		gap := time.Duration(float64(ts.Sub(r.lastTS)) / r.rate)
		if elapsed := r.clock.Since(r.lastWall); gap > elapsed {
			r.clock.Sleep(gap - elapsed)
		}
	}
	r.lastTS = ts
	r.lastWall = r.clock.Now()
}

// Close closes the recording file.
func (r *ReplaySource) Close() error {
	return r.f.Close()
}
