// Package s2detections defines the per-frame detection model and the
// validation boundary between the detector feed and the tracking stages.
// Everything downstream of this package may assume detections are finite,
// positively sized, inside the play region, and above the confidence floor.
package s2detections

import (
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
)

// Detection is one detector bounding box in one frame. Detections are
// ephemeral: they exist only for the duration of the cycle that consumed
// them and are never mutated after validation.
type Detection struct {
	Box        arcade.Rect
	Class      string
	Confidence float32
	Timestamp  time.Time
	FrameSeq   uint64
}

// Center returns the center of the detection's bounding box, which is the
// point the tracker associates and the strategy aims at.
func (d Detection) Center() arcade.Point {
	return d.Box.Center()
}
