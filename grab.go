package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"

	"github.com/slicebot/slicebot/internal/arcade/gamestate"
)

// adbGrabber captures the device screen with `adb exec-out screencap -p`.
// A grab takes tens of milliseconds on most devices, which is why the
// template checker only runs at the game-check cadence and not per frame.
func adbGrabber(adbPath, serial string) gamestate.Grabber {
	if adbPath == "" {
		adbPath = "adb"
	}
	return func(ctx context.Context) (image.Image, error) {
		args := []string{"exec-out", "screencap", "-p"}
		if serial != "" {
			args = append([]string{"-s", serial}, args...)
		}
		out, err := exec.CommandContext(ctx, adbPath, args...).Output()
		if err != nil {
			return nil, fmt.Errorf("adb screencap: %w", err)
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			return nil, fmt.Errorf("decode screencap: %w", err)
		}
		return img, nil
	}
}
