package s6swipes

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/ini.v1"
)

// DeviceProfile describes the Android device behind an ADBInjector: the
// panel size swipe coordinates are scaled to, and the measured input
// latency the planner should budget for in its dispatch lead.
type DeviceProfile struct {
	Name         string
	ScreenW      int
	ScreenH      int
	InputLatency time.Duration
}

// LoadDeviceProfile reads the named profile section from an INI file:
//
//	[pixel7]
//	screen_w = 1080
//	screen_h = 2400
//	input_latency_ms = 35
func LoadDeviceProfile(path, name string) (DeviceProfile, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("load device profiles: %w", err)
	}
	section, err := cfg.GetSection(name)
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("device profile %q not found in %s", name, path)
	}

	return DeviceProfile{
		Name:         name,
		ScreenW:      section.Key("screen_w").MustInt(1080),
		ScreenH:      section.Key("screen_h").MustInt(2400),
		InputLatency: time.Duration(section.Key("input_latency_ms").MustInt(30)) * time.Millisecond,
	}, nil
}

// ADBInjector performs swipes on an Android device with
// `adb -s <serial> shell input swipe`. Calls are mutex-serialized; a device
// handles one input command at a time.
type ADBInjector struct {
	mu      sync.Mutex
	adbPath string
	serial  string
	profile DeviceProfile

	// capture region the planner works in; swipe coordinates are scaled
	// from this onto the device panel
	regionW float64
	regionH float64

	run func(name string, args ...string) ([]byte, error)
}

// NewADBInjector creates an injector for the device with the given adb
// serial. regionW and regionH give the capture region size the planner's
// coordinates are relative to; an empty adbPath means "adb" from PATH.
func NewADBInjector(adbPath, serial string, profile DeviceProfile, regionW, regionH float64) *ADBInjector {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &ADBInjector{
		adbPath: adbPath,
		serial:  serial,
		profile: profile,
		regionW: regionW,
		regionH: regionH,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// Profile returns the device profile the injector was built with.
func (a *ADBInjector) Profile() DeviceProfile {
	return a.profile
}

// Inject performs the swipe described by steps on the device.
func (a *ADBInjector) Inject(ctx context.Context, steps []Step) error {
	if len(steps) < 2 {
		return fmt.Errorf("swipe needs at least press and release, got %d step(s)", len(steps))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := steps[0].Pos
	end := steps[len(steps)-1].Pos

	// `input swipe` treats 0 as an instantaneous tap; keep at least 1ms.
	durMS := strokeTime(steps).Milliseconds()
	if durMS < 1 {
		durMS = 1
	}

	args := []string{
		"-s", a.serial, "shell", "input", "swipe",
		strconv.Itoa(a.scaleX(start.X)), strconv.Itoa(a.scaleY(start.Y)),
		strconv.Itoa(a.scaleX(end.X)), strconv.Itoa(a.scaleY(end.Y)),
		strconv.FormatInt(durMS, 10),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := a.run(a.adbPath, args...)
	if err != nil {
		return fmt.Errorf("adb input swipe: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (a *ADBInjector) scaleX(x float64) int {
	if a.regionW <= 0 {
		return int(x)
	}
	return int(x * float64(a.profile.ScreenW) / a.regionW)
}

func (a *ADBInjector) scaleY(y float64) int {
	if a.regionH <= 0 {
		return int(y)
	}
	return int(y * float64(a.profile.ScreenH) / a.regionH)
}

// Close is a no-op; adb connections are per-command.
func (a *ADBInjector) Close() error {
	return nil
}
