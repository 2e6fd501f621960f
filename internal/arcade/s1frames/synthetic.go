package s1frames

import (
	"context"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
)

// cullMargin is how far a toss may drift outside the region before it is
// removed from the simulation.
const cullMargin = 80.0

// toss is one simulated object in flight.
type toss struct {
	class      string
	x, y       float64 // center, px
	vx, vy     float64 // px/s
	w, h       float64
	confidence float32
}

// SyntheticSource generates projectile-arc detections for demos and
// offline tracker runs without a sidecar. Virtual time advances one frame
// interval per Next call; the engine's cycle throttle provides real pacing
// when one is wanted.
type SyntheticSource struct {
	// Configuration
	Region      arcade.Rect // play region detections are generated in
	FrameRate   float64     // virtual frames per second
	SpawnChance float64     // per-frame probability of launching a toss
	BombChance  float64     // probability a toss is a hazard
	Gravity     float64     // px/s^2 downward
	Jitter      float64     // px, detection position noise
	MaxFrames   uint64      // frames before io.EOF; 0 means unbounded
	TargetClass string
	HazardClass string

	// Internal state
	rng  *rand.Rand
	seq  uint64
	now  time.Time
	live []*toss
}

// NewSyntheticSource creates a generator resembling a mid-game screen. The
// same seed always produces the same feed.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{
		Region:      arcade.Rect{W: 1280, H: 720},
		FrameRate:   30.0,
		SpawnChance: 0.12,
		BombChance:  0.2,
		Gravity:     2200.0,
		Jitter:      1.5,
		TargetClass: "fruit",
		HazardClass: "bomb",
		rng:         rand.New(rand.NewSource(seed)),
		now:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Next produces the next simulated frame; io.EOF after MaxFrames.
func (s *SyntheticSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.MaxFrames > 0 && s.seq >= s.MaxFrames {
		return Frame{}, io.EOF
	}

	dt := 1.0 / s.FrameRate
	s.seq++
	s.now = s.now.Add(time.Duration(dt * float64(time.Second)))

	s.advance(dt)
	if s.rng.Float64() < s.SpawnChance {
		s.spawn()
	}

	frame := Frame{Seq: s.seq, Timestamp: s.now, Hint: HintPlaying}
	for _, t := range s.live {
		box := arcade.Rect{
			X: t.x - t.w/2 + s.noise(),
			Y: t.y - t.h/2 + s.noise(),
			W: t.w,
			H: t.h,
		}
		// Emit only fully visible boxes, as a detector clipped to the
		// capture region would.
		if !s.inRegion(box) {
			continue
		}
		frame.Detections = append(frame.Detections, s2detections.Detection{
			Box:        box,
			Class:      t.class,
			Confidence: t.confidence,
			Timestamp:  s.now,
			FrameSeq:   s.seq,
		})
	}
	return frame, nil
}

// advance integrates every live toss one frame and culls those that left
// the region.
func (s *SyntheticSource) advance(dt float64) {
	kept := s.live[:0]
	for _, t := range s.live {
		t.x += t.vx * dt
		t.y += t.vy*dt + 0.5*s.Gravity*dt*dt
		t.vy += s.Gravity * dt

		if t.y-t.h/2 > s.Region.Y+s.Region.H+cullMargin {
			continue
		}
		if t.x+t.w/2 < s.Region.X-cullMargin || t.x-t.w/2 > s.Region.X+s.Region.W+cullMargin {
			continue
		}
		kept = append(kept, t)
	}
	s.live = kept
}

// spawn launches one toss from the bottom edge with an apex in the upper
// part of the region.
func (s *SyntheticSource) spawn() {
	class := s.TargetClass
	if s.rng.Float64() < s.BombChance {
		class = s.HazardClass
	}

	startX := s.Region.X + s.Region.W*(0.2+0.6*s.rng.Float64())
	startY := s.Region.Y + s.Region.H
	apexY := s.Region.Y + s.Region.H*(0.15+0.25*s.rng.Float64())
	size := 36.0 + 16.0*s.rng.Float64()

	s.live = append(s.live, &toss{
		class:      class,
		x:          startX,
		y:          startY,
		vx:         (s.rng.Float64() - 0.5) * 300.0,
		vy:         -math.Sqrt(2.0 * s.Gravity * (startY - apexY)),
		w:          size,
		h:          size,
		confidence: float32(0.82 + 0.15*s.rng.Float64()),
	})
}

func (s *SyntheticSource) noise() float64 {
	if s.Jitter <= 0 {
		return 0
	}
	return (s.rng.Float64()*2.0 - 1.0) * s.Jitter
}

func (s *SyntheticSource) inRegion(box arcade.Rect) bool {
	return box.X >= s.Region.X && box.Y >= s.Region.Y &&
		box.X+box.W <= s.Region.X+s.Region.W &&
		box.Y+box.H <= s.Region.Y+s.Region.H
}

// Close is a no-op.
func (s *SyntheticSource) Close() error {
	return nil
}
