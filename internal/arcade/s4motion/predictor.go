// Package s4motion extrapolates track positions to future instants so swipe
// paths land where an object will be by the time the gesture executes, not
// where it was last seen.
//
// Prediction works from the track's position trail rather than the Kalman
// state: the trail already blends measurement and coasting, and using it
// keeps the predictor usable on replayed or stored tracks that carry no
// filter covariance.
package s4motion

import (
	"math"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s3tracks"
	"github.com/slicebot/slicebot/internal/config"
)

// Config holds predictor parameters.
type Config struct {
	// GravityEnabled adds a vertical acceleration term estimated from the
	// trail. With it disabled, prediction is constant-velocity only.
	GravityEnabled bool
	// MaxAccelPxS2 bounds the estimated vertical acceleration magnitude.
	MaxAccelPxS2 float64
}

// ConfigFromBot builds a predictor Config from a loaded BotConfig.
func ConfigFromBot(cfg *config.BotConfig) Config {
	return Config{
		GravityEnabled: cfg.GetGravityEnabled(),
		MaxAccelPxS2:   cfg.GetMaxAccelPxS2(),
	}
}

// Predictor extrapolates track positions. It is stateless apart from its
// configuration and safe for concurrent use.
type Predictor struct {
	cfg Config
}

// NewPredictor creates a predictor with the given configuration.
func NewPredictor(cfg Config) *Predictor {
	return &Predictor{cfg: cfg}
}

// Predict returns the expected position of a track at the given instant.
//
// With two or more trail samples, velocity is taken from the two most
// recent samples and the position extrapolated linearly from the newest
// one. With three or more samples and gravity enabled, a vertical
// ½·a·dt² term is added, where a is the change between the two most
// recent velocity estimates and is clamped to ±MaxAccelPxS2.
//
// Degrades gracefully: with fewer than two samples it returns the last
// known position with zero velocity, and with no trail at all it returns
// the track's current state estimate. It never errors.
func (p *Predictor) Predict(track *s3tracks.Track, at time.Time) arcade.Point {
	hist := track.History
	n := len(hist)

	if n == 0 {
		return track.Center()
	}
	last := hist[n-1]
	if n == 1 {
		return arcade.Point{X: last.X, Y: last.Y}
	}

	prev := hist[n-2]
	span := last.Timestamp.Sub(prev.Timestamp).Seconds()
	if span <= 0 {
		// Duplicate or reordered timestamps carry no velocity signal.
		return arcade.Point{X: last.X, Y: last.Y}
	}

	vx := (last.X - prev.X) / span
	vy := (last.Y - prev.Y) / span
	dt := at.Sub(last.Timestamp).Seconds()

	x := last.X + vx*dt
	y := last.Y + vy*dt

	if p.cfg.GravityEnabled && n >= 3 {
		prev2 := hist[n-3]
		prevSpan := prev.Timestamp.Sub(prev2.Timestamp).Seconds()
		// The two velocity estimates are centred mid-interval, so their
		// separation is half the total span.
		accelSpan := last.Timestamp.Sub(prev2.Timestamp).Seconds() / 2
		if prevSpan > 0 && accelSpan > 0 {
			vyPrev := (prev.Y - prev2.Y) / prevSpan
			ay := (vy - vyPrev) / accelSpan
			if ay > p.cfg.MaxAccelPxS2 {
				ay = p.cfg.MaxAccelPxS2
			} else if ay < -p.cfg.MaxAccelPxS2 {
				ay = -p.cfg.MaxAccelPxS2
			}
			y += 0.5 * ay * dt * dt
		}
	}

	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return arcade.Point{X: last.X, Y: last.Y}
	}
	return arcade.Point{X: x, Y: y}
}
