// Command feed-replay transmits a recorded detection feed over UDP with
// the capture timing reproduced, one frame per datagram. Point it at a
// bot running with -feed udp to re-create a recorded session live.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/slicebot/slicebot/internal/arcade/s1frames"
)

var (
	target     = flag.String("to", "127.0.0.1:9901", "UDP address the bot's feed listens on")
	replayPath = flag.String("replay", "", "JSONL recording to transmit (required)")
	rate       = flag.Float64("rate", 1.0, "Playback speed multiplier; 0 sends as fast as possible")
	loop       = flag.Bool("loop", false, "Restart the recording when it ends")
)

func main() {
	flag.Parse()

	if *replayPath == "" {
		log.Fatal("Error: -replay flag is required")
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sent uint64
	for pass := 1; ; pass++ {
		n, err := transmit(ctx, conn)
		sent += n
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Fatalf("Replay failed: %v", err)
		}
		log.Printf("Pass %d complete, %d frames sent so far", pass, sent)
		if !*loop {
			break
		}
	}
	log.Printf("✓ Sent %d frames to %s", sent, *target)
}

// transmit plays the recording through once, writing each frame to conn
// as its own datagram.
func transmit(ctx context.Context, conn net.Conn) (uint64, error) {
	src, err := s1frames.NewReplaySource(*replayPath, nil, *rate)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	var sent uint64
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		payload, err := s1frames.EncodeFrame(frame)
		if err != nil {
			return sent, err
		}
		if _, err := conn.Write(payload); err != nil {
			return sent, err
		}
		sent++
	}
}
