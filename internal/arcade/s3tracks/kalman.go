package s3tracks

import (
	"math"
	"time"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
)

// Internal numerical stability constants — not user-tunable.
const (
	// MinDeterminantThreshold is the minimum determinant for covariance matrix inversion
	MinDeterminantThreshold = 1e-6
	// SingularDistanceRejection is the distance returned when covariance is singular
	SingularDistanceRejection = 1e9
)

// Initial covariance for new tracks. Position is known to roughly detector
// accuracy; velocity is unknown, and toss speeds reach ~1500 px/s, so the
// velocity prior must admit a large correction on the second observation.
const (
	initPosVariance = 100.0 // px²
	initVelVariance = 1e6   // (px/s)²
)

func initialCovariance() [16]float64 {
	return [16]float64{
		initPosVariance, 0, 0, 0,
		0, initPosVariance, 0, 0,
		0, 0, initVelVariance, 0,
		0, 0, 0, initVelVariance,
	}
}

// isFiniteState returns true if every element of the Kalman state vector
// (X, Y, VX, VY) and the covariance matrix diagonal is finite (not NaN
// or ±Inf). Used as a post-predict/update guard against numerical
// instability from singular covariance inversions or degenerate inputs.
func isFiniteState(track *Track) bool {
	if math.IsNaN(track.X) || math.IsInf(track.X, 0) {
		return false
	}
	if math.IsNaN(track.Y) || math.IsInf(track.Y, 0) {
		return false
	}
	if math.IsNaN(track.VX) || math.IsInf(track.VX, 0) {
		return false
	}
	if math.IsNaN(track.VY) || math.IsInf(track.VY, 0) {
		return false
	}
	for i := 0; i < 4; i++ {
		v := track.P[i*4+i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// resetKalmanState zeroes a numerically broken track and marks it retired.
// Exactly-once retirement accounting goes through markRetired.
func (t *Tracker) resetKalmanState(track *Track) {
	track.X = 0
	track.Y = 0
	track.VX = 0
	track.VY = 0
	track.P = initialCovariance()
	t.markRetired(track, track.LastSeen)
	Opsf("track %s reset after non-finite filter state", track.TrackID)
}

// clampVelocity scales VX/VY proportionally so the speed magnitude does not
// exceed MaxSpeedPxS. This prevents teleport-like extrapolation from noisy
// Kalman updates or degenerate associations.
func (t *Tracker) clampVelocity(track *Track) {
	speed := math.Sqrt(track.VX*track.VX + track.VY*track.VY)
	if speed > t.cfg.MaxSpeedPxS {
		scale := t.cfg.MaxSpeedPxS / speed
		track.VX *= scale
		track.VY *= scale
	}
}

// predict applies the Kalman prediction step using the constant velocity model.
func (t *Tracker) predict(track *Track, dt float64) {
	// Clamp dt to prevent covariance explosion on frame gaps.
	// Large dt values (e.g. from throttled cycles or replay catch-up) cause
	// F*P*F^T to grow quadratically, ballooning the gating ellipse.
	if dt > t.cfg.MaxPredictDt {
		dt = t.cfg.MaxPredictDt
	}

	// State transition matrix F for constant velocity model:
	// F = [1  0  dt  0 ]
	//     [0  1  0   dt]
	//     [0  0  1   0 ]
	//     [0  0  0   1 ]

	// Predict state: x' = F * x
	track.X += track.VX * dt
	track.Y += track.VY * dt
	// VX and VY remain unchanged in constant velocity model

	// Predict covariance: P' = F * P * F^T + Q
	// For efficiency, we compute this directly

	P := track.P

	// Compute F * P (state transition applied to covariance)
	// Row 0: P[0,j] + dt*P[2,j]
	// Row 1: P[1,j] + dt*P[3,j]
	// Row 2: P[2,j]
	// Row 3: P[3,j]
	var FP [16]float64
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + dt*P[2*4+j]
		FP[1*4+j] = P[1*4+j] + dt*P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}

	// Compute F * P * F^T
	for i := 0; i < 4; i++ {
		track.P[i*4+0] = FP[i*4+0] + dt*FP[i*4+2]
		track.P[i*4+1] = FP[i*4+1] + dt*FP[i*4+3]
		track.P[i*4+2] = FP[i*4+2]
		track.P[i*4+3] = FP[i*4+3]
	}

	// Add process noise Q, scaled by dt for correct uncertainty growth
	// regardless of frame rate. Values in cfg are dt-normalised.
	track.P[0*4+0] += t.cfg.ProcessNoisePos * dt
	track.P[1*4+1] += t.cfg.ProcessNoisePos * dt
	track.P[2*4+2] += t.cfg.ProcessNoiseVel * dt
	track.P[3*4+3] += t.cfg.ProcessNoiseVel * dt

	// Cap covariance diagonal elements to prevent unbounded gating ellipse
	// growth from accumulated prediction steps and occlusion inflation.
	for i := 0; i < 4; i++ {
		if track.P[i*4+i] > t.cfg.MaxCovarianceDiag {
			track.P[i*4+i] = t.cfg.MaxCovarianceDiag
		}
	}

	// Guard: reset state if prediction produced NaN/Inf.
	if !isFiniteState(track) {
		t.resetKalmanState(track)
		return
	}

	// Clamp velocity magnitude after prediction.
	t.clampVelocity(track)
}

// mahalanobisDistanceSquared computes the squared Mahalanobis distance for
// gating a detection center against a track's predicted position. Also
// performs physical plausibility checks to reject spurious associations.
func (t *Tracker) mahalanobisDistanceSquared(track *Track, center arcade.Point, dt float64) float64 {
	// Innovation: difference between measurement and prediction
	dx := center.X - track.X
	dy := center.Y - track.Y

	// Physical plausibility check: reject if position jump is too large
	euclideanDist := math.Sqrt(dx*dx + dy*dy)
	if euclideanDist > t.cfg.MaxPositionJumpPx {
		return SingularDistanceRejection
	}

	// Check if implied velocity would be unreasonable
	if dt > 0 {
		impliedSpeed := euclideanDist / dt
		if impliedSpeed > t.cfg.MaxSpeedPxS {
			return SingularDistanceRejection
		}
	}

	// Innovation covariance S = H * P * H^T + R
	// H = [1 0 0 0; 0 1 0 0] (measurement extracts position only)
	// S = P[0:2, 0:2] + R
	S00 := track.P[0*4+0] + t.cfg.MeasurementNoise
	S01 := track.P[0*4+1]
	S10 := track.P[1*4+0]
	S11 := track.P[1*4+1] + t.cfg.MeasurementNoise

	det := S00*S11 - S01*S10
	if det < MinDeterminantThreshold {
		return SingularDistanceRejection // Singular covariance, reject association
	}

	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// Mahalanobis distance squared: d² = [dx dy] * S^-1 * [dx dy]^T
	return dx*dx*invS00 + dx*dy*(invS01+invS10) + dy*dy*invS11
}

// update applies the Kalman update step with a matched detection measurement
// and refreshes the track's observed features.
func (t *Tracker) update(track *Track, obs s2detections.Detection, ts time.Time) {
	center := obs.Center()
	zX := center.X
	zY := center.Y

	// Innovation
	yX := zX - track.X
	yY := zY - track.Y

	// Innovation covariance S = H * P * H^T + R
	S00 := track.P[0*4+0] + t.cfg.MeasurementNoise
	S01 := track.P[0*4+1]
	S10 := track.P[1*4+0]
	S11 := track.P[1*4+1] + t.cfg.MeasurementNoise

	det := S00*S11 - S01*S10
	if det < MinDeterminantThreshold {
		return // Cannot update with singular covariance
	}

	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// Kalman gain K = P * H^T * S^-1
	// K is 4x2:
	// K[i,0] = P[i,0]*invS00 + P[i,1]*invS10
	// K[i,1] = P[i,0]*invS01 + P[i,1]*invS11
	var K [8]float64
	for i := 0; i < 4; i++ {
		K[i*2+0] = track.P[i*4+0]*invS00 + track.P[i*4+1]*invS10
		K[i*2+1] = track.P[i*4+0]*invS01 + track.P[i*4+1]*invS11
	}

	// Update state: x' = x + K * y
	track.X += K[0*2+0]*yX + K[0*2+1]*yY
	track.Y += K[1*2+0]*yX + K[1*2+1]*yY
	track.VX += K[2*2+0]*yX + K[2*2+1]*yY
	track.VY += K[3*2+0]*yX + K[3*2+1]*yY

	// Update covariance: P' = (I - K*H) * P
	// H extracts position, so (K*H)[i,j] = K[i,0] if j==0, K[i,1] if j==1, 0 otherwise
	var IminusKH [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			identity := 0.0
			if i == j {
				identity = 1
			}
			var kh float64
			if j == 0 {
				kh = K[i*2+0]
			} else if j == 1 {
				kh = K[i*2+1]
			}
			IminusKH[i*4+j] = identity - kh
		}
	}

	var newP [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += IminusKH[i*4+k] * track.P[k*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	track.P = newP

	// Guard: reset state if update produced NaN/Inf.
	if !isFiniteState(track) {
		t.resetKalmanState(track)
		return
	}

	// Clamp velocity magnitude after update.
	t.clampVelocity(track)

	track.LastSeen = ts
	track.ObservationCount++
	track.Confidence = obs.Confidence
	if obs.Confidence > track.MaxConfidence {
		track.MaxConfidence = obs.Confidence
	}

	// Running average for box extent
	n := float64(track.ObservationCount)
	track.W = ((n-1)*track.W + obs.Box.W) / n
	track.H = ((n-1)*track.H + obs.Box.H) / n

	// Append to history, oldest dropped beyond the ring bound
	track.History = append(track.History, TrackPoint{
		X:         track.X,
		Y:         track.Y,
		Timestamp: ts,
	})
	if len(track.History) > t.cfg.MaxTrackHistory {
		track.History = track.History[len(track.History)-t.cfg.MaxTrackHistory:]
	}
}
