package s2detections

import (
	"strings"

	"github.com/slicebot/slicebot/internal/arcade"
)

// ValidatorConfig bounds what the validator accepts. Region is the play
// area in screen pixels; detections whose center falls outside it are
// dropped rather than clamped.
type ValidatorConfig struct {
	Region        arcade.Rect
	MinConfidence float64
	MinBoxAreaPx  float64
}

// DropStats counts detections rejected at the boundary, by reason.
// The counts reset every frame; persistent tallies live in the session
// stats, fed from these.
type DropStats struct {
	Malformed     int // non-finite values, non-positive extent, bad confidence range
	Undersized    int // box area below the floor
	LowConfidence int
	OutOfRegion   int
}

// Total returns the number of dropped detections across all reasons.
func (s DropStats) Total() int {
	return s.Malformed + s.Undersized + s.LowConfidence + s.OutOfRegion
}

// Validator screens raw detections before they reach the tracker.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a validator with the given bounds.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate filters dets in place order, returning the surviving detections
// and drop counts for the frame. Class labels are normalized to lower case
// so the tracker's class gate and the policy sets agree on spelling.
// Dropping is silent to callers; counts plus a single debug line per frame
// are the only trace.
func (v *Validator) Validate(dets []Detection) ([]Detection, DropStats) {
	var stats DropStats
	kept := make([]Detection, 0, len(dets))

	for _, d := range dets {
		switch {
		case !d.Box.IsFinite() || d.Box.W <= 0 || d.Box.H <= 0 ||
			d.Confidence < 0 || d.Confidence > 1 || d.Class == "":
			stats.Malformed++
		case d.Box.Area() < v.cfg.MinBoxAreaPx:
			stats.Undersized++
		case float64(d.Confidence) < v.cfg.MinConfidence:
			stats.LowConfidence++
		case !v.cfg.Region.Contains(d.Center()):
			stats.OutOfRegion++
		default:
			d.Class = strings.ToLower(d.Class)
			kept = append(kept, d)
		}
	}

	if stats.Total() > 0 {
		debugf("dropped %d/%d detections (malformed=%d undersized=%d lowconf=%d region=%d)",
			stats.Total(), len(dets), stats.Malformed, stats.Undersized,
			stats.LowConfidence, stats.OutOfRegion)
	}

	return kept, stats
}
