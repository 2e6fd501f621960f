package s6swipes

import (
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s5targets"
)

// Pointer pacing constants. The press and release dwells keep fast strokes
// from being dropped by the game's input sampling.
const (
	pressSettle   = 30 * time.Millisecond // dwell after the press before the stroke starts
	releaseSettle = 20 * time.Millisecond // dwell at the end point before the release
)

// Step is a single pointer instruction: place the pointer at Pos, then hold
// it there for Hold. The first step of a swipe carries the press, the last
// the release.
type Step struct {
	Pos  arcade.Point
	Hold time.Duration
}

// BuildSteps expands a swipe path into its pointer step sequence: a press
// at the start point, moveSteps interpolated positions spread evenly across
// the path duration, and a release at the end point.
func BuildSteps(path s5targets.SwipePath, moveSteps int) []Step {
	if moveSteps < 1 {
		moveSteps = 1
	}

	steps := make([]Step, 0, moveSteps+2)
	steps = append(steps, Step{Pos: path.Start, Hold: pressSettle})

	moveHold := path.Duration / time.Duration(moveSteps)
	dx := (path.End.X - path.Start.X) / float64(moveSteps)
	dy := (path.End.Y - path.Start.Y) / float64(moveSteps)
	for i := 1; i <= moveSteps; i++ {
		steps = append(steps, Step{
			Pos: arcade.Point{
				X: path.Start.X + dx*float64(i),
				Y: path.Start.Y + dy*float64(i),
			},
			Hold: moveHold,
		})
	}

	steps = append(steps, Step{Pos: path.End, Hold: releaseSettle})
	return steps
}

// strokeTime returns the total move time encoded in a step sequence, i.e.
// the planned swipe duration.
func strokeTime(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps[1 : len(steps)-1] {
		total += s.Hold
	}
	return total
}
