package gamestate

import (
	"context"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
)

// HintChecker reads the game-state hint some feeds carry in the frame
// itself. Feeds without hints yield StateUnknown, which sends a Chain to
// its next checker.
type HintChecker struct{}

func (HintChecker) Check(_ context.Context, frame s1frames.Frame) (State, error) {
	switch frame.Hint {
	case s1frames.HintPlaying:
		return StatePlaying, nil
	case s1frames.HintGameOver:
		return StateGameOver, nil
	default:
		return StateUnknown, nil
	}
}

// FixedChecker always reports the same state, for offline replays and
// benchmarks where no live screen exists.
type FixedChecker struct {
	State State
}

func (c FixedChecker) Check(context.Context, s1frames.Frame) (State, error) {
	return c.State, nil
}
