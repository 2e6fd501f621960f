// Package gamestate decides whether the game is still running. Checkers
// consume the frame the cycle just processed (hint-carrying feeds) or grab
// the screen directly (template matching); the engine ends the session on
// the first StateGameOver.
package gamestate

import (
	"context"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
)

// State is the game's observed run state.
type State int

const (
	// StateUnknown means the checker could not tell; the session keeps
	// cycling.
	StateUnknown State = iota
	// StatePlaying means gameplay is active.
	StatePlaying
	// StateGameOver means the end screen is showing.
	StateGameOver
)

// String returns the wire form of the state.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Checker reports the game state as of the given frame.
type Checker interface {
	Check(ctx context.Context, frame s1frames.Frame) (State, error)
}

// Chain consults checkers in order and returns the first decisive state.
// A checker error is held back while a later checker can still decide; the
// last error surfaces only alongside an all-unknown result.
func Chain(checkers ...Checker) Checker {
	return chainChecker(checkers)
}

type chainChecker []Checker

func (c chainChecker) Check(ctx context.Context, frame s1frames.Frame) (State, error) {
	var lastErr error
	for _, checker := range c {
		state, err := checker.Check(ctx, frame)
		if err != nil {
			lastErr = err
			continue
		}
		if state != StateUnknown {
			return state, nil
		}
	}
	return StateUnknown, lastErr
}
