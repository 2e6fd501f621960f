// Package pipeline provides orchestration for the slicing bot's
// perception-action cycle.
//
// It wires together stages from s1 through s6 and adapter sinks
// (persistence) into a coherent processing flow for both live and replay
// use cases. The pipeline does not own domain logic: it delegates to the
// stage packages and adapters.
//
// This package is the composition root. It imports from the stage
// packages (s1frames, s2detections, s3tracks, s5targets, s6swipes,
// gamestate), but none of those packages import pipeline.
package pipeline
