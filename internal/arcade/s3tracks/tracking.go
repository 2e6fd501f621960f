package s3tracks

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slicebot/slicebot/internal/arcade"
	"github.com/slicebot/slicebot/internal/arcade/s2detections"
	"github.com/slicebot/slicebot/internal/config"
)

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track with sufficient history
	TrackDeleted   TrackState = "deleted"   // Track retired, pending prune
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxTracks             int           // Maximum number of concurrent tracks
	MaxMisses             int           // Consecutive misses before tentative track retirement
	MaxMissesConfirmed    int           // Consecutive misses before confirmed track retirement (coasting)
	HitsToConfirm         int           // Consecutive hits needed for confirmation
	GatingDistanceSquared float64       // Gate on squared Mahalanobis distance (chi-square quantile, 2 DOF)
	ProcessNoisePos       float64       // Process noise for position (px²/s)
	ProcessNoiseVel       float64       // Process noise for velocity ((px/s)²/s)
	MeasurementNoise      float64       // Measurement noise variance (px²)
	OcclusionInflation    float64       // Position covariance growth factor per coasted frame
	MaxStaleness          time.Duration // Wall-clock limit on time since last observation
	DeletedRetention      time.Duration // How long to keep retired tracks before pruning

	// Kinematics limits
	MaxSpeedPxS       float64 // Maximum plausible speed (px/s)
	MaxPositionJumpPx float64 // Maximum position jump between observations (px)
	MaxPredictDt      float64 // Maximum dt (seconds) per predict step
	MaxCovarianceDiag float64 // Maximum covariance diagonal element

	MaxTrackHistory int // Maximum position trail length
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/slicebot.defaults.json).
// Panics if the file cannot be found — intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	return TrackerConfigFromBot(cfg)
}

// TrackerConfigFromBot builds a TrackerConfig from a loaded BotConfig.
// Use this in production code where the BotConfig is already loaded.
func TrackerConfigFromBot(cfg *config.BotConfig) TrackerConfig {
	noisePx := cfg.GetMeasurementNoisePx()
	return TrackerConfig{
		MaxTracks:             cfg.GetMaxTracks(),
		MaxMisses:             cfg.GetMaxMisses(),
		MaxMissesConfirmed:    cfg.GetMaxMissesConfirmed(),
		HitsToConfirm:         cfg.GetHitsToConfirm(),
		GatingDistanceSquared: cfg.GetDistanceGate(),
		ProcessNoisePos:       cfg.GetProcessNoisePos(),
		ProcessNoiseVel:       cfg.GetProcessNoiseVel(),
		MeasurementNoise:      noisePx * noisePx,
		OcclusionInflation:    cfg.GetOcclusionInflation(),
		MaxStaleness:          cfg.GetMaxStaleness(),
		DeletedRetention:      cfg.GetDeletedRetention(),
		MaxSpeedPxS:           cfg.GetMaxSpeedPxS(),
		MaxPositionJumpPx:     cfg.GetMaxPositionJumpPx(),
		MaxPredictDt:          cfg.GetMaxPredictDt().Seconds(),
		MaxCovarianceDiag:     cfg.GetMaxCovarianceDiag(),
		MaxTrackHistory:       cfg.GetMaxTrackHistory(),
	}
}

// TrackPoint represents a single point in a track's position trail.
type TrackPoint struct {
	X         float64
	Y         float64
	Timestamp time.Time
}

// Track represents a single tracked screen object.
type Track struct {
	// Identity
	TrackID    string
	State      TrackState
	Class      string
	CreatedSeq uint64 // Process-unique creation sequence, drives ordering

	// Lifecycle counters
	Hits             int // Consecutive successful associations
	Misses           int // Consecutive frames without association
	ObservationCount int // Total associated detections over the track's life
	SwipeCount       int // Swipes dispatched against this track

	CreatedAt time.Time
	LastSeen  time.Time // Timestamp of the last associated detection
	RetiredAt time.Time // Zero until the track transitions to deleted

	// Kalman state: position (px) and velocity (px/s)
	X, Y   float64
	VX, VY float64
	P      [16]float64 // 4x4 covariance, row-major, state order [x y vx vy]

	// Smoothed box extent (running average over associated detections)
	W, H float64

	// Confidence of the most recent associated detection, and the highest
	// confidence seen over the track's life
	Confidence    float32
	MaxConfidence float32

	// Position trail, bounded by MaxTrackHistory, oldest dropped
	History []TrackPoint
}

// Center returns the track's current position estimate.
func (track *Track) Center() arcade.Point {
	return arcade.Point{X: track.X, Y: track.Y}
}

// Tracker manages multi-object tracking with explicit lifecycle states.
// It is the sole owner of Track records; every exported accessor returns
// deep copies ordered by creation sequence.
type Tracker struct {
	mu sync.RWMutex

	tracks map[string]*Track
	// order holds track IDs in creation order. Association columns and
	// snapshot output follow this slice, never map iteration order, so
	// equal-cost assignments resolve identically for identical input.
	order      []string
	createdSeq uint64

	cfg TrackerConfig

	// Last update timestamp for dt computation
	lastUpdate time.Time

	// Lifecycle counters (reset via Reset)
	TracksCreated   int
	TracksConfirmed int
	TracksRetired   int

	// Association accumulators
	TotalDetections   int64
	MatchedDetections int64

	// lastAssociations stores the result of the most recent associate()
	// call, indexed by detection index; each element is the trackID the
	// detection was matched to, or "" if it spawned a new track.
	lastAssociations []string
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		tracks: make(map[string]*Track),
		cfg:    cfg,
	}
}

// UpdateConfig applies the given function to the tracker's configuration
// under the tracker lock. This is the safe way to mutate config fields
// from outside the engine goroutine (e.g. HTTP tuning handlers).
func (t *Tracker) UpdateConfig(fn func(*TrackerConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.cfg)
}

// Config returns a copy of the tracker's current configuration.
func (t *Tracker) Config() TrackerConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Reset clears all tracks and resets the tracker to its initial state.
// This is used between sweep permutations so each combination starts
// with a clean tracker (no residual Kalman filter state).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[string]*Track)
	t.order = nil
	t.createdSeq = 0
	t.lastUpdate = time.Time{}
	t.lastAssociations = nil
	t.TracksCreated = 0
	t.TracksConfirmed = 0
	t.TracksRetired = 0
	t.TotalDetections = 0
	t.MatchedDetections = 0
}

// Update processes one frame of validated detections and returns deep
// copies of every live (tentative or confirmed) track in creation order.
// This is the main entry point for the engine cycle.
func (t *Tracker) Update(dets []s2detections.Detection, ts time.Time) []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Compute dt (time delta since last update).
	var dt float64
	if !t.lastUpdate.IsZero() {
		dt = ts.Sub(t.lastUpdate).Seconds()
	} else {
		dt = 1.0 / 30 // Default one 30 fps frame for the first update
	}
	if dt < 0 {
		// Out-of-order timestamps coast in place rather than rewinding.
		dt = 0
	}
	// Clamp dt so throttle-induced gaps don't create an inflated time step
	// for association gating. predict() also clamps independently, but the
	// raw dt flows into associate() where it affects the implied-speed
	// plausibility check.
	if dt > t.cfg.MaxPredictDt {
		dt = t.cfg.MaxPredictDt
	}
	t.lastUpdate = ts

	// Step 1: Predict all live tracks to current time.
	for _, id := range t.order {
		if track := t.tracks[id]; track.State != TrackDeleted {
			t.predict(track, dt)
		}
	}

	// Step 2: Associate detections to tracks using gating.
	associations := t.associate(dets, dt)
	t.lastAssociations = associations
	t.TotalDetections += int64(len(dets))

	// Step 3: Update matched tracks.
	matched := make(map[string]bool, len(dets))
	for di, trackID := range associations {
		if trackID == "" {
			continue
		}
		track := t.tracks[trackID]
		t.update(track, dets[di], ts)
		track.Hits++
		track.Misses = 0
		matched[trackID] = true
		t.MatchedDetections++

		// Promote tentative → confirmed
		if track.State == TrackTentative && track.Hits >= t.cfg.HitsToConfirm {
			track.State = TrackConfirmed
			t.TracksConfirmed++
			Diagf("track %s confirmed (class=%s hits=%d)", track.TrackID, track.Class, track.Hits)
		}
	}

	// Step 4: Handle unmatched tracks with occlusion-aware coasting.
	// Confirmed tracks are allowed more miss frames (MaxMissesConfirmed)
	// than tentative tracks (MaxMisses). The prediction step above keeps
	// the position estimate coasting, and the position covariance is
	// inflated to widen the gate so re-association is easier when the
	// object reappears.
	for _, id := range t.order {
		track := t.tracks[id]
		if matched[id] || track.State == TrackDeleted {
			continue
		}
		track.Misses++
		track.Hits = 0

		if f := t.cfg.OcclusionInflation; f > 1 {
			track.P[0*4+0] *= f
			track.P[1*4+1] *= f
			if track.P[0*4+0] > t.cfg.MaxCovarianceDiag {
				track.P[0*4+0] = t.cfg.MaxCovarianceDiag
			}
			if track.P[1*4+1] > t.cfg.MaxCovarianceDiag {
				track.P[1*4+1] = t.cfg.MaxCovarianceDiag
			}
		}

		// Append the coasted position so the trail stays continuous
		// through occlusion.
		track.History = append(track.History, TrackPoint{
			X:         track.X,
			Y:         track.Y,
			Timestamp: ts,
		})
		if len(track.History) > t.cfg.MaxTrackHistory {
			track.History = track.History[len(track.History)-t.cfg.MaxTrackHistory:]
		}

		if track.Misses >= t.missBudget(track) {
			Diagf("track %s retired after %d misses (state was %s)", track.TrackID, track.Misses, track.State)
			t.markRetired(track, ts)
		}
	}

	// Step 5: Initialise new tracks from unmatched detections.
	for di, trackID := range associations {
		if trackID != "" {
			continue
		}
		if len(t.tracks) >= t.cfg.MaxTracks {
			Opsf("track limit %d reached, dropping detection class=%s", t.cfg.MaxTracks, dets[di].Class)
			continue
		}
		t.initTrack(dets[di], ts)
	}

	// Step 6: Retire tracks unseen for longer than MaxStaleness. Miss
	// budgets cover steady frame rates; the wall-clock bound covers
	// stalls and duplicate tracks that never attract detections.
	if t.cfg.MaxStaleness > 0 {
		for _, id := range t.order {
			track := t.tracks[id]
			if track.State == TrackDeleted {
				continue
			}
			if ts.Sub(track.LastSeen) > t.cfg.MaxStaleness {
				t.markRetired(track, ts)
				Diagf("track %s stale, last seen %s ago", track.TrackID, ts.Sub(track.LastSeen))
			}
		}
	}

	// Step 7: Prune retired tracks past the retention window.
	t.pruneRetired(ts)

	return t.liveSnapshotLocked()
}

// missBudget returns the consecutive-miss limit for a track based on its
// maturity.
func (t *Tracker) missBudget(track *Track) int {
	if track.State == TrackConfirmed && t.cfg.MaxMissesConfirmed > 0 {
		return t.cfg.MaxMissesConfirmed
	}
	return t.cfg.MaxMisses
}

// markRetired transitions a track to the deleted state exactly once.
// Calls on an already retired track are no-ops, so the retirement counter
// and RetiredAt are stable no matter how many paths notice the track is
// dead (miss budget, staleness, numerical reset).
func (t *Tracker) markRetired(track *Track, at time.Time) {
	if track.State == TrackDeleted {
		return
	}
	track.State = TrackDeleted
	track.RetiredAt = at
	t.TracksRetired++
}

// associate performs detection-to-track association using the Hungarian
// (Kuhn–Munkres) algorithm for globally optimal assignment.
//
// The cost matrix is built from squared Mahalanobis distances; rows follow
// detection input order and columns follow track creation order. Entries
// are forbidden on class mismatch or when the distance exceeds the gate.
// Returns a slice indexed by detection index: each element is the trackID
// the detection was associated with, or "" if unassociated.
func (t *Tracker) associate(dets []s2detections.Detection, dt float64) []string {
	associations := make([]string, len(dets))

	activeTrackIDs := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if t.tracks[id].State != TrackDeleted {
			activeTrackIDs = append(activeTrackIDs, id)
		}
	}

	nDets := len(dets)
	nTracks := len(activeTrackIDs)
	if nDets == 0 || nTracks == 0 {
		return associations
	}

	// Build cost matrix [nDets × nTracks].
	costMatrix := make([][]float64, nDets)
	for di := range dets {
		costMatrix[di] = make([]float64, nTracks)
		center := dets[di].Center()
		for tj, trackID := range activeTrackIDs {
			track := t.tracks[trackID]
			// Tracks never change class; a bomb detection must not
			// capture a fruit track however close it passes.
			if track.Class != dets[di].Class {
				costMatrix[di][tj] = hungarianInf
				continue
			}
			dist2 := t.mahalanobisDistanceSquared(track, center, dt)
			if dist2 >= SingularDistanceRejection || dist2 > t.cfg.GatingDistanceSquared {
				costMatrix[di][tj] = hungarianInf
			} else {
				costMatrix[di][tj] = dist2
			}
		}
	}

	assign := HungarianAssign(costMatrix)

	for di := range dets {
		if di < len(assign) && assign[di] >= 0 && assign[di] < nTracks {
			associations[di] = activeTrackIDs[assign[di]]
		}
	}

	return associations
}

// initTrack creates a new tentative track from an unassociated detection.
func (t *Tracker) initTrack(det s2detections.Detection, ts time.Time) *Track {
	trackID := fmt.Sprintf("trk_%s", uuid.NewString())
	t.createdSeq++

	center := det.Center()
	track := &Track{
		TrackID:    trackID,
		State:      TrackTentative,
		Class:      det.Class,
		CreatedSeq: t.createdSeq,
		Hits:       1,
		Misses:     0,

		CreatedAt: ts,
		LastSeen:  ts,

		// Initialise position from the detection center, velocity to zero
		X:  center.X,
		Y:  center.Y,
		VX: 0,
		VY: 0,

		P: initialCovariance(),

		W:             det.Box.W,
		H:             det.Box.H,
		Confidence:    det.Confidence,
		MaxConfidence: det.Confidence,

		ObservationCount: 1,

		History: []TrackPoint{{
			X:         center.X,
			Y:         center.Y,
			Timestamp: ts,
		}},
	}

	t.tracks[trackID] = track
	t.order = append(t.order, trackID)
	t.TracksCreated++
	Tracef("new track %s class=%s at (%.1f,%.1f)", trackID, track.Class, track.X, track.Y)
	return track
}

// pruneRetired removes tracks that have been retired for longer than the
// retention window, keeping the creation-order index in sync.
func (t *Tracker) pruneRetired(ts time.Time) {
	removed := false
	for id, track := range t.tracks {
		if track.State == TrackDeleted && ts.Sub(track.RetiredAt) > t.cfg.DeletedRetention {
			delete(t.tracks, id)
			removed = true
		}
	}
	if !removed {
		return
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if _, ok := t.tracks[id]; ok {
			kept = append(kept, id)
		}
	}
	t.order = kept
}

// AdvanceMisses increments the miss counter for every live track by one
// and retires tracks that exceed their miss budget. This is called on
// throttled cycles where the full Update() is skipped so that tracks are
// not artificially kept alive by the lack of detection delivery.
func (t *Tracker) AdvanceMisses(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.order {
		track := t.tracks[id]
		if track.State == TrackDeleted {
			continue
		}
		track.Misses++
		track.Hits = 0
		if track.Misses >= t.missBudget(track) {
			t.markRetired(track, ts)
		}
	}
}

// RecordSwipe increments the swipe counter for a track. Called by the
// engine after a path against the track has been dispatched.
func (t *Tracker) RecordSwipe(trackID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if track, ok := t.tracks[trackID]; ok {
		track.SwipeCount++
	}
}

// liveSnapshotLocked returns deep copies of every live track in creation
// order. Callers must hold at least a read lock.
func (t *Tracker) liveSnapshotLocked() []*Track {
	live := make([]*Track, 0, len(t.order))
	for _, id := range t.order {
		track := t.tracks[id]
		if track.State != TrackDeleted {
			live = append(live, copyTrack(track))
		}
	}
	return live
}

// copyTrack makes a shallow copy of the struct with a deep-copied History
// slice, safe for callers to read without holding the tracker lock.
func copyTrack(track *Track) *Track {
	copied := *track
	if len(track.History) > 0 {
		copied.History = make([]TrackPoint, len(track.History))
		copy(copied.History, track.History)
	}
	return &copied
}

// GetActiveTracks returns deep copies of currently live (tentative or
// confirmed) tracks in creation order.
func (t *Tracker) GetActiveTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.liveSnapshotLocked()
}

// GetConfirmedTracks returns deep copies of confirmed tracks in creation order.
func (t *Tracker) GetConfirmedTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	confirmed := make([]*Track, 0)
	for _, id := range t.order {
		track := t.tracks[id]
		if track.State == TrackConfirmed {
			confirmed = append(confirmed, copyTrack(track))
		}
	}
	return confirmed
}

// GetTrack returns a deep copy of a track by ID, or nil if not found.
func (t *Tracker) GetTrack(trackID string) *Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	track, ok := t.tracks[trackID]
	if !ok {
		return nil
	}
	return copyTrack(track)
}

// GetTrackCount returns counts of tracks by state.
func (t *Tracker) GetTrackCount() (total, tentative, confirmed, deleted int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, track := range t.tracks {
		total++
		switch track.State {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		case TrackDeleted:
			deleted++
		}
	}
	return
}

// GetRecentlyRetiredTracks returns deep copies of retired tracks still
// within the retention window, in creation order. Used by the monitor
// for fade-out rendering.
func (t *Tracker) GetRecentlyRetiredTracks(ts time.Time) []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	retired := make([]*Track, 0)
	for _, id := range t.order {
		track := t.tracks[id]
		if track.State != TrackDeleted {
			continue
		}
		elapsed := ts.Sub(track.RetiredAt)
		if elapsed >= 0 && elapsed < t.cfg.DeletedRetention {
			retired = append(retired, copyTrack(track))
		}
	}
	return retired
}

// GetLastAssociations returns a copy of the most recent detection-to-track
// associations produced by Update(). The returned slice is indexed by
// detection index; each element is the trackID the detection was matched
// to, or "" if it was unassociated (and spawned a new track).
func (t *Tracker) GetLastAssociations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.lastAssociations == nil {
		return nil
	}
	out := make([]string, len(t.lastAssociations))
	copy(out, t.lastAssociations)
	return out
}

// Speed returns the current speed magnitude in px/s.
func (track *Track) Speed() float64 {
	return math.Sqrt(track.VX*track.VX + track.VY*track.VY)
}
