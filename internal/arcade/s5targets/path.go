package s5targets

import (
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
)

// SwipePath is one planned cut: a straight pointer stroke from Start to End
// taking Duration, not to begin before NotBefore. Paths are transient; the
// dispatcher consumes them in the same cycle they were planned and they are
// never persisted as live state.
type SwipePath struct {
	TrackID   string
	Start     arcade.Point
	End       arcade.Point
	Duration  time.Duration
	NotBefore time.Time
	RapidFire bool
}

// Window returns the execution interval of the path. Paths planned in the
// same cycle have non-overlapping windows ordered by NotBefore.
func (p SwipePath) Window() (start, end time.Time) {
	return p.NotBefore, p.NotBefore.Add(p.Duration)
}

// Length returns the stroke length in pixels.
func (p SwipePath) Length() float64 {
	return p.Start.DistTo(p.End)
}
