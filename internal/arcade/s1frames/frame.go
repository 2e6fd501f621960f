package s1frames

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
)

// Game-state hints a feed may carry alongside its detections. A source that
// cannot see game state leaves Hint empty and the engine falls back to its
// configured checker.
const (
	HintPlaying  = "playing"
	HintGameOver = "game_over"
)

// Frame is one detector output batch: every bounding box found in one
// captured screen frame, stamped with the capture sequence and time.
type Frame struct {
	Seq        uint64
	Timestamp  time.Time
	Hint       string
	Detections []s2detections.Detection
}

// Source produces frames in capture order. Next blocks until a frame is
// available, the context is canceled, or the feed ends; an orderly end of
// a finite feed is reported as io.EOF.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// wireFrame is the JSON payload the detector sidecar emits: one object per
// frame, one frame per datagram or JSONL line.
type wireFrame struct {
	FrameSeq   uint64          `json:"frame_seq"`
	TSMillis   int64           `json:"ts_ms"`
	GameState  string          `json:"game_state,omitempty"`
	Detections []wireDetection `json:"detections"`
}

type wireDetection struct {
	Box        arcade.Rect `json:"box"`
	Class      string      `json:"class"`
	Confidence float32     `json:"confidence"`
}

// DecodeFrame parses one wire payload. Every decoded detection is stamped
// with the frame's timestamp and sequence number.
func DecodeFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	frame := Frame{
		Seq:       wf.FrameSeq,
		Timestamp: time.UnixMilli(wf.TSMillis).UTC(),
		Hint:      wf.GameState,
	}
	if len(wf.Detections) > 0 {
		frame.Detections = make([]s2detections.Detection, 0, len(wf.Detections))
		for _, wd := range wf.Detections {
			frame.Detections = append(frame.Detections, s2detections.Detection{
				Box:        wd.Box,
				Class:      wd.Class,
				Confidence: wd.Confidence,
				Timestamp:  frame.Timestamp,
				FrameSeq:   frame.Seq,
			})
		}
	}
	return frame, nil
}

// EncodeFrame renders a frame back to its wire payload.
func EncodeFrame(frame Frame) ([]byte, error) {
	wf := wireFrame{
		FrameSeq:   frame.Seq,
		TSMillis:   frame.Timestamp.UnixMilli(),
		GameState:  frame.Hint,
		Detections: make([]wireDetection, 0, len(frame.Detections)),
	}
	for _, d := range frame.Detections {
		wf.Detections = append(wf.Detections, wireDetection{
			Box:        d.Box,
			Class:      d.Class,
			Confidence: d.Confidence,
		})
	}
	return json.Marshal(wf)
}
