package s1frames

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slicebot/slicebot/internal/httputil"
	"github.com/slicebot/slicebot/internal/timeutil"
)

// HTTPSource polls the detector sidecar's HTTP endpoint for frames. The
// sidecar serves its latest frame at GET <base>/detections; the source
// re-polls until the sequence number moves off the last delivered frame,
// so a sidecar restart (sequence reset) does not wedge the feed. Transport
// errors and non-200 responses are surfaced as source errors: unlike a
// lossy datagram feed, a broken request/response contract means the
// sidecar itself is gone.
type HTTPSource struct {
	base   string
	client httputil.HTTPClient
	clock  timeutil.Clock
	poll   time.Duration

	started bool
	lastSeq uint64
}

// NewHTTPSource creates a source polling base (e.g. "http://127.0.0.1:9901")
// every poll interval. A nil client uses a standard HTTP client; a nil
// clock uses the real clock.
func NewHTTPSource(base string, client httputil.HTTPClient, clock timeutil.Clock, poll time.Duration) *HTTPSource {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &HTTPSource{base: base, client: client, clock: clock, poll: poll}
}

// Next polls until the sidecar reports a frame other than the last one
// delivered.
func (s *HTTPSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		resp, err := s.client.Get(s.base + "/detections")
		if err != nil {
			return Frame{}, fmt.Errorf("poll sidecar: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Frame{}, fmt.Errorf("read sidecar response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return Frame{}, fmt.Errorf("sidecar returned %d", resp.StatusCode)
		}

		frame, err := DecodeFrame(body)
		if err != nil {
			return Frame{}, fmt.Errorf("sidecar payload: %w", err)
		}

		if !s.started || frame.Seq != s.lastSeq {
			s.started = true
			s.lastSeq = frame.Seq
			return frame, nil
		}
		s.clock.Sleep(s.poll)
	}
}

// Close is a no-op; connections are pooled by the client.
func (s *HTTPSource) Close() error {
	return nil
}
