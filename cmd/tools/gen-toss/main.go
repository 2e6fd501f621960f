// Command gen-toss generates synthetic detector feed recordings: projectile
// arcs with detection jitter, plus the occasional hazard. The output is a
// JSONL file the bot can replay with -feed replay.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
)

func main() {
	output := flag.String("o", "toss.jsonl", "output path")
	frames := flag.Uint64("n", 300, "number of frames")
	seed := flag.Int64("seed", 1, "generator seed")
	spawn := flag.Float64("spawn", 0.12, "per-frame toss spawn chance")
	bombs := flag.Float64("bombs", 0.2, "hazard share of spawned tosses")
	fps := flag.Float64("fps", 30, "simulated frame rate")
	flag.Parse()

	gen := s1frames.NewSyntheticSource(*seed)
	gen.MaxFrames = *frames
	gen.SpawnChance = *spawn
	gen.BombChance = *bombs
	gen.FrameRate = *fps

	src, err := s1frames.NewRecordingSource(gen, *output)
	if err != nil {
		log.Fatalf("Failed to create recording: %v", err)
	}

	var count, detections int
	for {
		frame, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("Generate frame: %v", err)
		}
		count++
		detections += len(frame.Detections)
	}
	if err := src.Close(); err != nil {
		log.Fatalf("Close recording: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames, %d detections)", *output, count, detections)
}
